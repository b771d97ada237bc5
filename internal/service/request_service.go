package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/reimbursement-portal-api/internal/models"
	"github.com/noah-isme/reimbursement-portal-api/internal/repository"
	appErrors "github.com/noah-isme/reimbursement-portal-api/pkg/errors"
	"github.com/noah-isme/reimbursement-portal-api/pkg/export"
)

const maxCaseNumberAttempts = 3

type requestStore interface {
	Create(ctx context.Context, req *models.Request) error
	FindByCaseNumber(ctx context.Context, caseNumber string) (*models.Request, error)
	ListByStatus(ctx context.Context, status models.RequestStatus) ([]models.Request, error)
	ListAll(ctx context.Context) ([]models.Request, error)
	UpdateStatus(ctx context.Context, update models.StatusUpdate) (*models.Request, error)
}

type caseNumberIssuer interface {
	Next(ctx context.Context) (string, error)
}

type requestNotifier interface {
	SendCreationConfirmation(ctx context.Context, req *models.Request, pdf []byte) error
	SendStatusUpdate(ctx context.Context, req *models.Request) error
}

type requestFormRenderer interface {
	Render(form export.RequestForm) ([]byte, error)
}

type requestAttachmentStore interface {
	Store(ctx context.Context, uploads []AttachmentUpload) (models.Attachments, error)
	Remove(paths []string)
}

type requestCache interface {
	Request(ctx context.Context, caseNumber string) (*models.Request, bool)
	StoreRequest(ctx context.Context, req *models.Request)
	ForgetRequest(ctx context.Context, req *models.Request) error
}

// CreateResult is the outcome of a submission. NotificationError carries a
// failed confirmation email; the request is persisted regardless.
type CreateResult struct {
	Request           *models.Request
	NotificationError error
}

// TransitionResult is the outcome of a status change. NotificationError
// carries a failed status email; the change is persisted regardless.
type TransitionResult struct {
	Request           *models.Request
	NotificationError error
}

// UpdateStatusInput is the admin's requested transition.
type UpdateStatusInput struct {
	Status        models.RequestStatus
	AdminComments *string
}

// RequestServiceDeps bundles the collaborators of RequestService.
type RequestServiceDeps struct {
	Store       requestStore
	CaseNumbers caseNumberIssuer
	Attachments requestAttachmentStore
	Renderer    requestFormRenderer
	Notifier    requestNotifier
	Cache       requestCache
	Metrics     *MetricsService
	Validator   *validator.Validate
	Logger      *zap.Logger
	Now         func() time.Time
}

// RequestService owns the reimbursement request lifecycle.
type RequestService struct {
	store       requestStore
	caseNumbers caseNumberIssuer
	attachments requestAttachmentStore
	renderer    requestFormRenderer
	notifier    requestNotifier
	cache       requestCache
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewRequestService constructs the service.
func NewRequestService(deps RequestServiceDeps) *RequestService {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Validator == nil {
		deps.Validator = validator.New()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &RequestService{
		store:       deps.Store,
		caseNumbers: deps.CaseNumbers,
		attachments: deps.Attachments,
		renderer:    deps.Renderer,
		notifier:    deps.Notifier,
		cache:       deps.Cache,
		metrics:     deps.Metrics,
		validator:   deps.Validator,
		logger:      deps.Logger,
		now:         deps.Now,
	}
}

// Create validates and persists a submission, then renders the form and
// emails the student. A draft carrying a case number keeps it; otherwise one
// is allocated, and re-allocated on a collision.
func (s *RequestService) Create(ctx context.Context, draft *models.Request, uploads []AttachmentUpload) (*CreateResult, error) {
	if draft == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "request payload is required")
	}
	if err := s.validateDraft(draft); err != nil {
		return nil, err
	}

	stored := models.Attachments{}
	if len(uploads) > 0 {
		if s.attachments == nil {
			return nil, appErrors.Clone(appErrors.ErrInternal, "attachment storage unavailable")
		}
		var err error
		stored, err = s.attachments.Store(ctx, uploads)
		if err != nil {
			return nil, err
		}
	}

	now := s.now().UTC()
	req := *draft
	req.ID = ""
	req.Attachments = stored
	req.Status = models.RequestStatusPending
	req.AdminComments = nil
	req.ProcessedBy = nil
	req.ProcessedByName = nil
	req.ProcessedAt = nil
	req.SubmittedAt = now
	req.UpdatedAt = now

	if err := s.insert(ctx, &req, draft.CaseNumber != ""); err != nil {
		if s.attachments != nil {
			s.attachments.Remove(stored.Paths())
		}
		return nil, err
	}
	s.metrics.RecordRequestCreated()

	log := s.logger.With(zap.String("case_number", req.CaseNumber))
	log.Info("reimbursement request created", zap.Int("attachments", len(stored)))

	result := &CreateResult{Request: &req}
	result.NotificationError = s.confirm(ctx, &req, log)
	return result, nil
}

func (s *RequestService) insert(ctx context.Context, req *models.Request, fixedCaseNumber bool) error {
	for attempt := 1; attempt <= maxCaseNumberAttempts; attempt++ {
		if !fixedCaseNumber {
			caseNumber, err := s.caseNumbers.Next(ctx)
			if err != nil {
				return appErrors.Internal(err, "failed to allocate case number")
			}
			req.CaseNumber = caseNumber
		}

		start := time.Now()
		err := s.store.Create(ctx, req)
		s.metrics.ObserveDBQuery("request_create", time.Since(start))
		if err == nil {
			return nil
		}
		if !errors.Is(err, repository.ErrDuplicateCaseNumber) {
			return appErrors.Internal(err, "failed to create request")
		}
		s.logger.Warn("case number collision", zap.String("case_number", req.CaseNumber), zap.Int("attempt", attempt))
		if fixedCaseNumber {
			break
		}
		req.ID = ""
	}
	return appErrors.Clone(appErrors.ErrDuplicateKey, "could not allocate a unique case number")
}

func (s *RequestService) confirm(ctx context.Context, req *models.Request, log *zap.Logger) error {
	if s.notifier == nil {
		return nil
	}
	var renderErr error
	var pdf []byte
	if s.renderer != nil {
		pdf, renderErr = s.renderer.Render(RequestFormFor(req))
		if renderErr != nil {
			log.Error("failed to render request form", zap.Error(renderErr))
			renderErr = notificationError(fmt.Errorf("render request form: %w", renderErr))
		}
	}
	if err := s.notifier.SendCreationConfirmation(ctx, req, pdf); err != nil {
		log.Warn("confirmation email failed", zap.Error(err))
		return err
	}
	return renderErr
}

// FindByCaseNumber returns one request, served from cache when possible.
func (s *RequestService) FindByCaseNumber(ctx context.Context, caseNumber string) (*models.Request, error) {
	req, _, err := s.Lookup(ctx, caseNumber)
	return req, err
}

// Lookup is FindByCaseNumber that also reports whether the cache answered.
func (s *RequestService) Lookup(ctx context.Context, caseNumber string) (*models.Request, bool, error) {
	caseNumber = strings.TrimSpace(caseNumber)
	if caseNumber == "" {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "case number is required")
	}
	if s.cache != nil {
		if cached, hit := s.cache.Request(ctx, caseNumber); hit {
			return cached, true, nil
		}
	}

	start := time.Now()
	req, err := s.store.FindByCaseNumber(ctx, caseNumber)
	s.metrics.ObserveDBQuery("request_find", time.Since(start))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, appErrors.Clone(appErrors.ErrNotFound, "request not found")
		}
		return nil, false, appErrors.Internal(err, "failed to load request")
	}
	if s.cache != nil {
		s.cache.StoreRequest(ctx, req)
	}
	return req, false, nil
}

// ListByStatus returns requests in one status, newest first.
func (s *RequestService) ListByStatus(ctx context.Context, status models.RequestStatus) ([]models.Request, error) {
	if !status.IsValid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid status %q", status))
	}
	start := time.Now()
	requests, err := s.store.ListByStatus(ctx, status)
	s.metrics.ObserveDBQuery("request_list_status", time.Since(start))
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list requests")
	}
	return requests, nil
}

// ListAll returns every request, newest first.
func (s *RequestService) ListAll(ctx context.Context) ([]models.Request, error) {
	start := time.Now()
	requests, err := s.store.ListAll(ctx)
	s.metrics.ObserveDBQuery("request_list_all", time.Since(start))
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list requests")
	}
	return requests, nil
}

// UpdateStatus applies an admin transition. Any status may follow any other.
// The change is committed before the student is emailed, and a failed email
// never undoes it.
func (s *RequestService) UpdateStatus(ctx context.Context, caseNumber string, input UpdateStatusInput, actor *models.JWTClaims) (*TransitionResult, error) {
	if actor == nil || actor.UserID == "" {
		return nil, appErrors.ErrUnauthorized
	}
	if !input.Status.IsValid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid status %q", input.Status))
	}
	caseNumber = strings.TrimSpace(caseNumber)
	if caseNumber == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "case number is required")
	}

	start := time.Now()
	updated, err := s.store.UpdateStatus(ctx, models.StatusUpdate{
		CaseNumber:    caseNumber,
		Status:        input.Status,
		AdminComments: input.AdminComments,
		ProcessedBy:   actor.UserID,
		ProcessedAt:   s.now().UTC(),
	})
	s.metrics.ObserveDBQuery("request_update_status", time.Since(start))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "request not found")
		}
		return nil, appErrors.Internal(err, "failed to update request status")
	}
	s.metrics.RecordStatusTransition(string(updated.Status))

	log := s.logger.With(zap.String("case_number", caseNumber), zap.String("status", string(updated.Status)), zap.String("admin_id", actor.UserID))
	if s.cache != nil {
		if err := s.cache.ForgetRequest(ctx, updated); err != nil {
			log.Warn("failed to invalidate cached request", zap.Error(err))
		}
	}
	log.Info("request status updated")

	result := &TransitionResult{Request: updated}
	if s.notifier != nil {
		if err := s.notifier.SendStatusUpdate(ctx, updated); err != nil {
			log.Warn("status email failed", zap.Error(err))
			result.NotificationError = err
		}
	}
	return result, nil
}

func (s *RequestService) validateDraft(draft *models.Request) error {
	if err := s.validator.Struct(draft.StudentDetails); err != nil {
		return appErrors.Invalid(err, describeValidation("studentDetails", err))
	}
	if draft.TeamDetails != nil {
		if err := s.validator.Struct(draft.TeamDetails); err != nil {
			return appErrors.Invalid(err, describeValidation("teamDetails", err))
		}
	}
	return nil
}

func describeValidation(prefix string, err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid " + prefix
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			parts = append(parts, fmt.Sprintf("%s.%s is required", prefix, lowerFirst(fe.Field())))
		case "email":
			parts = append(parts, fmt.Sprintf("%s.%s must be a valid email", prefix, lowerFirst(fe.Field())))
		default:
			parts = append(parts, fmt.Sprintf("%s.%s is invalid", prefix, lowerFirst(fe.Field())))
		}
	}
	return strings.Join(parts, "; ")
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

// RequestFormFor maps a request onto the printable application form.
func RequestFormFor(req *models.Request) export.RequestForm {
	form := export.RequestForm{
		CaseNumber:  req.CaseNumber,
		SubmittedAt: req.SubmittedAt,
		Student: export.FormStudent{
			Name:       req.StudentDetails.Name,
			RollNumber: req.StudentDetails.RollNumber,
			Department: req.StudentDetails.Department,
			Contact:    req.StudentDetails.Contact,
			Email:      req.StudentDetails.OfficialEmail,
		},
		Attached: map[string]bool{},
	}
	if t := req.TeamDetails; t != nil {
		form.Student.Program = t.Program
		form.Student.Section = t.Section
		form.Student.Semester = t.Semester
		if form.Student.Contact == "" {
			form.Student.Contact = t.ContactNo
		}
	}
	if c := req.CompetitionDetails; c != nil {
		form.Competition = export.FormCompetition{
			Name:      c.CompetitionName,
			Venue:     c.Location,
			StartDate: c.StartDate,
			EndDate:   c.EndDate,
			Position:  c.Position,
			Prize:     c.PrizeAmount,
		}
	}
	for _, key := range req.Attachments.Keys() {
		form.Attached[string(key)] = true
	}
	return form
}
