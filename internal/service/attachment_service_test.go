package service

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/reimbursement-portal-api/internal/models"
	appErrors "github.com/noah-isme/reimbursement-portal-api/pkg/errors"
	"github.com/noah-isme/reimbursement-portal-api/pkg/storage"
)

var pdfBytes = []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\ntrailer\n<<>>\n%%EOF\n")

func newTestAttachmentService(t *testing.T) (*AttachmentService, *storage.LocalStorage, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewLocalStorage(dir)
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("secret", time.Hour)
	svc := NewAttachmentService(store, signer, nil, AttachmentServiceConfig{MaxFileSize: 1024})
	svc.WithClock(func() time.Time { return time.Date(2025, 4, 12, 10, 0, 0, 0, time.UTC) })
	return svc, store, dir
}

func upload(key models.AttachmentKey, name, mime string, data []byte) AttachmentUpload {
	return AttachmentUpload{Key: key, Filename: name, Size: int64(len(data)), MimeType: mime, Content: bytes.NewReader(data)}
}

func countFiles(t *testing.T, dir string) int {
	t.Helper()
	n := 0
	require.NoError(t, filepath.Walk(dir, func(_ string, info os.FileInfo, err error) error {
		if err == nil && info.Mode().IsRegular() {
			n++
		}
		return err
	}))
	return n
}

func TestAttachmentStoreWritesDayPartitionedPaths(t *testing.T) {
	svc, store, _ := newTestAttachmentService(t)

	stored, err := svc.Store(context.Background(), []AttachmentUpload{
		upload(models.AttachmentTickets, "my ticket (1).pdf", "application/pdf", pdfBytes),
		upload(models.AttachmentIDProof, "id.pdf", "", pdfBytes),
	})
	require.NoError(t, err)
	require.Len(t, stored, 2)

	ticket := stored[models.AttachmentTickets]
	assert.True(t, strings.HasPrefix(ticket, "2025-04-12/1744452000000-"), ticket)
	assert.True(t, strings.HasSuffix(ticket, "-my_ticket__1_.pdf"), ticket)
	assert.True(t, store.Exists(ticket))
	assert.True(t, svc.Exists(stored[models.AttachmentIDProof]))
	assert.NotEqual(t, ticket, stored[models.AttachmentIDProof])

	data, err := svc.Load(ticket)
	require.NoError(t, err)
	assert.Equal(t, pdfBytes, data)
}

func TestAttachmentStoreAvoidsNameCollisions(t *testing.T) {
	svc, _, _ := newTestAttachmentService(t)

	stored, err := svc.Store(context.Background(), []AttachmentUpload{
		upload(models.AttachmentMandateForm, "form.pdf", "application/pdf", pdfBytes),
		upload(models.AttachmentTAForm, "form.pdf", "application/pdf", pdfBytes),
	})
	require.NoError(t, err)
	assert.NotEqual(t, stored[models.AttachmentMandateForm], stored[models.AttachmentTAForm])
}

func TestAttachmentStoreRejectsBeforeWriting(t *testing.T) {
	cases := map[string][]AttachmentUpload{
		"declared type": {
			upload(models.AttachmentTickets, "a.pdf", "application/pdf", pdfBytes),
			upload(models.AttachmentIDProof, "a.exe", "application/x-msdownload", []byte("MZ")),
		},
		"sniffed type": {
			upload(models.AttachmentTickets, "a.pdf", "application/pdf", pdfBytes),
			upload(models.AttachmentIDProof, "notes", "", []byte("plain text is not allowed")),
		},
		"size": {
			upload(models.AttachmentTickets, "a.pdf", "application/pdf", pdfBytes),
			upload(models.AttachmentIDProof, "big.pdf", "application/pdf", bytes.Repeat([]byte("x"), 2048)),
		},
		"unknown key": {
			upload(models.AttachmentKey("resume"), "a.pdf", "application/pdf", pdfBytes),
		},
		"duplicate key": {
			upload(models.AttachmentTickets, "a.pdf", "application/pdf", pdfBytes),
			upload(models.AttachmentTickets, "b.pdf", "application/pdf", pdfBytes),
		},
	}
	for name, uploads := range cases {
		t.Run(name, func(t *testing.T) {
			svc, _, dir := newTestAttachmentService(t)
			_, err := svc.Store(context.Background(), uploads)
			require.Error(t, err)
			assert.True(t, appErrors.Is(err, appErrors.ErrValidation), err.Error())
			assert.Zero(t, countFiles(t, dir))
		})
	}
}

func TestAttachmentRemove(t *testing.T) {
	svc, store, _ := newTestAttachmentService(t)
	stored, err := svc.Store(context.Background(), []AttachmentUpload{
		upload(models.AttachmentTickets, "a.pdf", "application/pdf", pdfBytes),
	})
	require.NoError(t, err)

	svc.Remove(stored.Paths())
	assert.False(t, store.Exists(stored[models.AttachmentTickets]))
}

func TestAttachmentSignedURLAndDownload(t *testing.T) {
	svc, _, _ := newTestAttachmentService(t)
	stored, err := svc.Store(context.Background(), []AttachmentUpload{
		upload(models.AttachmentCertificates, "cert.pdf", "application/pdf", pdfBytes),
	})
	require.NoError(t, err)
	req := &models.Request{CaseNumber: "REQ25040001", Attachments: stored}

	link, err := svc.SignedURL(req, models.AttachmentCertificates)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(link.URL, "/api/v1/attachments/download?token=REQ25040001."))

	_, err = svc.SignedURL(req, models.AttachmentTickets)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))

	token := strings.TrimPrefix(link.URL, "/api/v1/attachments/download?token=")
	dl, err := svc.Download(token)
	require.NoError(t, err)
	defer dl.File.Close()
	assert.Equal(t, "REQ25040001", dl.CaseNumber)
	assert.Equal(t, "application/pdf", dl.MimeType)
	assert.Equal(t, int64(len(pdfBytes)), dl.SizeBytes)
	body, err := io.ReadAll(dl.File)
	require.NoError(t, err)
	assert.Equal(t, pdfBytes, body)

	_, err = svc.Download(token + "x")
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "report_final_.pdf", SanitizeFilename("report final!.pdf"))
	assert.Equal(t, "passwd", SanitizeFilename("../../etc/passwd"))
	assert.Equal(t, "x.docx", SanitizeFilename(`C:\Users\a\x.docx`))
	assert.Equal(t, "file", SanitizeFilename(""))
}
