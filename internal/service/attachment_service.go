package service

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"github.com/noah-isme/reimbursement-portal-api/internal/models"
	appErrors "github.com/noah-isme/reimbursement-portal-api/pkg/errors"
)

type attachmentFileStorage interface {
	SaveStream(filename string, r io.Reader) (string, error)
	Open(filename string) (*os.File, error)
	ReadFile(filename string) ([]byte, error)
	Exists(filename string) bool
	Delete(filename string) error
}

type attachmentSigner interface {
	Generate(resourceID, relPath string) (string, time.Time, error)
	Parse(token string) (resourceID, relPath string, expiresAt time.Time, err error)
}

// AttachmentUpload carries one uploaded document and its declared metadata.
type AttachmentUpload struct {
	Key      models.AttachmentKey
	Filename string
	Size     int64
	MimeType string
	Content  io.ReadSeeker
}

// AttachmentLink is a signed, expiring download URL for one document.
type AttachmentLink struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// AttachmentDownload bundles an opened document for streaming.
type AttachmentDownload struct {
	File       *os.File
	Filename   string
	MimeType   string
	SizeBytes  int64
	CaseNumber string
}

// AttachmentServiceConfig holds validation parameters.
type AttachmentServiceConfig struct {
	MaxFileSize  int64
	AllowedMIMEs []string
	APIPrefix    string
}

// AttachmentService validates, stores and serves supporting documents.
type AttachmentService struct {
	storage attachmentFileStorage
	signer  attachmentSigner
	logger  *zap.Logger
	cfg     AttachmentServiceConfig
	mimeSet map[string]struct{}
	now     func() time.Time
}

// NewAttachmentService constructs the service with defaults.
func NewAttachmentService(storage attachmentFileStorage, signer attachmentSigner, logger *zap.Logger, cfg AttachmentServiceConfig) *AttachmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = 5 * 1024 * 1024
	}
	if len(cfg.AllowedMIMEs) == 0 {
		cfg.AllowedMIMEs = []string{
			"application/pdf",
			"image/jpeg",
			"image/png",
			"application/msword",
			"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		}
	}
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api/v1"
	}
	mimeSet := make(map[string]struct{}, len(cfg.AllowedMIMEs))
	for _, mt := range cfg.AllowedMIMEs {
		mimeSet[strings.ToLower(mt)] = struct{}{}
	}
	return &AttachmentService{
		storage: storage,
		signer:  signer,
		logger:  logger,
		cfg:     cfg,
		mimeSet: mimeSet,
		now:     time.Now,
	}
}

// WithClock overrides the time source used for storage paths.
func (s *AttachmentService) WithClock(now func() time.Time) *AttachmentService {
	if now != nil {
		s.now = now
	}
	return s
}

// MaxFileSize exposes the per-file size limit.
func (s *AttachmentService) MaxFileSize() int64 {
	return s.cfg.MaxFileSize
}

// Store validates every upload and only then writes them. On a write failure
// the files already written are removed. The returned map is keyed by slot.
func (s *AttachmentService) Store(ctx context.Context, uploads []AttachmentUpload) (models.Attachments, error) {
	stored := models.Attachments{}
	if len(uploads) == 0 {
		return stored, nil
	}

	seen := make(map[models.AttachmentKey]struct{}, len(uploads))
	for i := range uploads {
		upload := &uploads[i]
		if !upload.Key.IsValid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown document field %q", upload.Key))
		}
		if _, dup := seen[upload.Key]; dup {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("only one file allowed for %s", upload.Key))
		}
		seen[upload.Key] = struct{}{}
		if upload.Content == nil || upload.Size <= 0 {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s: file is empty", upload.Key))
		}
		if upload.Size > s.cfg.MaxFileSize {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s: file exceeds %d bytes limit", upload.Key, s.cfg.MaxFileSize))
		}
		mimeType, err := s.detectMime(upload)
		if err != nil {
			return nil, err
		}
		upload.MimeType = mimeType
	}

	saved := make([]string, 0, len(uploads))
	for _, upload := range uploads {
		if err := ctx.Err(); err != nil {
			s.Remove(saved)
			return nil, err
		}
		if _, err := upload.Content.Seek(0, io.SeekStart); err != nil {
			s.Remove(saved)
			return nil, appErrors.Internal(err, "failed to reset upload stream")
		}
		name := s.storageName(upload.Filename)
		relPath, err := s.storage.SaveStream(name, upload.Content)
		if err != nil {
			s.Remove(saved)
			return nil, appErrors.Internal(err, "failed to store attachment")
		}
		saved = append(saved, relPath)
		stored[upload.Key] = relPath
	}
	return stored, nil
}

// Remove deletes stored files, logging failures.
func (s *AttachmentService) Remove(paths []string) {
	for _, p := range paths {
		if err := s.storage.Delete(p); err != nil {
			s.logger.Warn("failed to remove attachment", zap.String("path", p), zap.Error(err))
		}
	}
}

// Exists reports whether a stored attachment is still on disk.
func (s *AttachmentService) Exists(relPath string) bool {
	return relPath != "" && s.storage.Exists(relPath)
}

// Load reads a stored attachment into memory.
func (s *AttachmentService) Load(relPath string) ([]byte, error) {
	return s.storage.ReadFile(relPath)
}

// SignedURL issues a download link for one document slot of a request.
func (s *AttachmentService) SignedURL(req *models.Request, key models.AttachmentKey) (*AttachmentLink, error) {
	if s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "download signer unavailable")
	}
	if !key.IsValid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown document field %q", key))
	}
	relPath := req.Attachments[key]
	if relPath == "" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("no %s document on this request", key))
	}
	token, expiresAt, err := s.signer.Generate(req.CaseNumber, relPath)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to generate download token")
	}
	base := strings.TrimRight(s.cfg.APIPrefix, "/")
	return &AttachmentLink{
		URL:       fmt.Sprintf("%s/attachments/download?token=%s", base, token),
		ExpiresAt: expiresAt,
	}, nil
}

// Download validates a token and opens the referenced file.
func (s *AttachmentService) Download(token string) (*AttachmentDownload, error) {
	if s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "download signer unavailable")
	}
	caseNumber, relPath, _, err := s.signer.Parse(token)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired token")
	}
	if !s.storage.Exists(relPath) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "attachment no longer available")
	}
	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to open attachment")
	}
	info, err := file.Stat()
	if err != nil {
		file.Close() //nolint:errcheck
		return nil, appErrors.Internal(err, "failed to read attachment metadata")
	}
	mtype, err := mimetype.DetectReader(file)
	if err != nil {
		file.Close() //nolint:errcheck
		return nil, appErrors.Internal(err, "failed to inspect attachment")
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		file.Close() //nolint:errcheck
		return nil, appErrors.Internal(err, "failed to rewind attachment")
	}
	return &AttachmentDownload{
		File:       file,
		Filename:   path.Base(filepath.ToSlash(relPath)),
		MimeType:   baseMediaType(mtype.String()),
		SizeBytes:  info.Size(),
		CaseNumber: caseNumber,
	}, nil
}

// detectMime prefers the declared content type and sniffs the content when
// the client sent none or a generic one.
func (s *AttachmentService) detectMime(upload *AttachmentUpload) (string, error) {
	declared := strings.ToLower(baseMediaType(upload.MimeType))
	if declared != "" && declared != "application/octet-stream" {
		if _, ok := s.mimeSet[declared]; !ok {
			return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s: invalid file type", upload.Key))
		}
		return declared, nil
	}

	mtype, err := mimetype.DetectReader(upload.Content)
	if err != nil {
		return "", appErrors.Internal(err, "failed to inspect file")
	}
	if _, err := upload.Content.Seek(0, io.SeekStart); err != nil {
		return "", appErrors.Internal(err, "failed to reset upload stream")
	}
	for allowed := range s.mimeSet {
		if mtype.Is(allowed) {
			return allowed, nil
		}
	}
	return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s: invalid file type", upload.Key))
}

// storageName builds <YYYY-MM-DD>/<unixMillis>-<sanitized>, bumping the
// millisecond stamp while the name is taken.
func (s *AttachmentService) storageName(original string) string {
	now := s.now().UTC()
	day := now.Format("2006-01-02")
	base := SanitizeFilename(original)
	millis := now.UnixMilli()
	for {
		name := path.Join(day, fmt.Sprintf("%d-%s", millis, base))
		if !s.storage.Exists(name) {
			return name
		}
		millis++
	}
}

// SanitizeFilename drops any directory part and replaces every character
// outside [A-Za-z0-9.-] with an underscore.
func SanitizeFilename(raw string) string {
	raw = filepath.Base(strings.ReplaceAll(raw, "\\", "/"))
	if raw == "." || raw == "/" || raw == "" {
		raw = "file"
	}
	var b strings.Builder
	for _, r := range raw {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

func baseMediaType(v string) string {
	if i := strings.IndexByte(v, ';'); i >= 0 {
		v = v[:i]
	}
	return strings.TrimSpace(v)
}
