package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/reimbursement-portal-api/internal/dto"
	"github.com/noah-isme/reimbursement-portal-api/internal/middleware"
	"github.com/noah-isme/reimbursement-portal-api/internal/models"
	"github.com/noah-isme/reimbursement-portal-api/internal/service"
	appErrors "github.com/noah-isme/reimbursement-portal-api/pkg/errors"
	"github.com/noah-isme/reimbursement-portal-api/pkg/logger"
	"github.com/noah-isme/reimbursement-portal-api/pkg/response"
)

const (
	createdMessage          = "Request submitted successfully"
	createdWithEmailMessage = "Request submitted successfully, but there was an issue sending the confirmation email"
	multipartMemory         = 8 << 20
	formOverheadBytes       = 1 << 20
)

type requestService interface {
	Create(ctx context.Context, draft *models.Request, uploads []service.AttachmentUpload) (*service.CreateResult, error)
	Lookup(ctx context.Context, caseNumber string) (*models.Request, bool, error)
	ListByStatus(ctx context.Context, status models.RequestStatus) ([]models.Request, error)
	ListAll(ctx context.Context) ([]models.Request, error)
	UpdateStatus(ctx context.Context, caseNumber string, input service.UpdateStatusInput, actor *models.JWTClaims) (*service.TransitionResult, error)
}

type attachmentLinker interface {
	SignedURL(req *models.Request, key models.AttachmentKey) (*service.AttachmentLink, error)
	MaxFileSize() int64
}

type requestExporter interface {
	Export(ctx context.Context, format service.ExportFormat, status models.RequestStatus) (*service.ExportFile, error)
}

// RequestHandler exposes the reimbursement request endpoints.
type RequestHandler struct {
	service     requestService
	attachments attachmentLinker
	exporter    requestExporter
	logger      *zap.Logger
}

// NewRequestHandler constructs the handler.
func NewRequestHandler(svc requestService, attachments attachmentLinker, exporter requestExporter, log *zap.Logger) *RequestHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &RequestHandler{service: svc, attachments: attachments, exporter: exporter, logger: log}
}

// Create godoc
// @Summary Submit a reimbursement request
// @Tags Requests
// @Accept multipart/form-data
// @Produce json
// @Param studentDetails formData string true "Student details JSON"
// @Param teamDetails formData string false "Team details JSON"
// @Param competitionDetails formData string false "Competition details JSON"
// @Param declaration formData string false "Declaration JSON"
// @Param tickets formData file false "Travel tickets"
// @Param idProof formData file false "ID proof"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Router /student-requests [post]
func (h *RequestHandler) Create(c *gin.Context) {
	maxBody := int64(len(models.AttachmentKeys))*h.maxFileSize() + formOverheadBytes
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBody)
	if err := c.Request.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			response.Error(c, appErrors.Clone(appErrors.ErrPayloadTooLarge, fmt.Sprintf("request body exceeds %d bytes", maxBody)))
			return
		}
		response.Error(c, appErrors.Invalid(err, "invalid multipart payload"))
		return
	}
	form := c.Request.MultipartForm
	defer form.RemoveAll() //nolint:errcheck

	draft, err := decodeDraft(form)
	if err != nil {
		response.Error(c, err)
		return
	}

	uploads, closers, err := collectUploads(form)
	defer func() {
		for _, f := range closers {
			f.Close() //nolint:errcheck
		}
	}()
	if err != nil {
		response.Error(c, err)
		return
	}

	result, err := h.service.Create(c.Request.Context(), draft, uploads)
	if err != nil {
		response.Error(c, err)
		return
	}

	body := dto.CreateRequestResponse{CaseNumber: result.Request.CaseNumber, Message: createdMessage}
	if result.NotificationError != nil {
		body.Message = createdWithEmailMessage
		body.EmailError = result.NotificationError.Error()
		logger.ForRequest(h.logger, c).Warn("request created without confirmation email",
			zap.String("case_number", result.Request.CaseNumber), zap.Error(result.NotificationError))
	}
	response.Created(c, body)
}

// Get godoc
// @Summary Get a request by case number
// @Tags Requests
// @Produce json
// @Param caseNumber path string true "Case number"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /student-requests/{caseNumber} [get]
func (h *RequestHandler) Get(c *gin.Context) {
	req, hit, err := h.service.Lookup(c.Request.Context(), c.Param("caseNumber"))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, req, middleware.ExtractMeta(c))
}

// ListByStatus godoc
// @Summary List requests in one status
// @Tags Requests
// @Produce json
// @Security BearerAuth
// @Param status path string true "Pending, Under Review, Approved or Rejected"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /student-requests/status/{status} [get]
func (h *RequestHandler) ListByStatus(c *gin.Context) {
	requests, err := h.service.ListByStatus(c.Request.Context(), models.RequestStatus(c.Param("status")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, map[string]interface{}{"total": len(requests)})
}

// ListAll godoc
// @Summary List every request
// @Description Newest first. Team and competition fields are repeated at the top level of each item.
// @Tags Requests
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /student-requests/all [get]
func (h *RequestHandler) ListAll(c *gin.Context) {
	requests, err := h.service.ListAll(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewRequestListItems(requests), map[string]interface{}{"total": len(requests)})
}

// UpdateStatus godoc
// @Summary Change the status of a request
// @Tags Requests
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param caseNumber path string true "Case number"
// @Param payload body dto.UpdateStatusRequest true "Status payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /student-requests/{caseNumber}/status [patch]
func (h *RequestHandler) UpdateStatus(c *gin.Context) {
	actor, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var payload dto.UpdateStatusRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Invalid(err, "invalid status payload"))
		return
	}
	result, err := h.service.UpdateStatus(c.Request.Context(), c.Param("caseNumber"), service.UpdateStatusInput{
		Status:        payload.Status,
		AdminComments: payload.AdminComments,
	}, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	body := dto.UpdateStatusResponse{Request: *result.Request}
	if result.NotificationError != nil {
		body.EmailError = result.NotificationError.Error()
	}
	response.JSON(c, http.StatusOK, body, nil)
}

// AttachmentURL godoc
// @Summary Issue a signed download link for an attachment
// @Tags Requests
// @Produce json
// @Security BearerAuth
// @Param caseNumber path string true "Case number"
// @Param key path string true "Attachment field"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /student-requests/{caseNumber}/attachments/{key}/url [get]
func (h *RequestHandler) AttachmentURL(c *gin.Context) {
	if h.attachments == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "attachment service not configured"))
		return
	}
	req, _, err := h.service.Lookup(c.Request.Context(), c.Param("caseNumber"))
	if err != nil {
		response.Error(c, err)
		return
	}
	key := models.AttachmentKey(c.Param("key"))
	link, err := h.attachments.SignedURL(req, key)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.AttachmentURLResponse{Key: key, URL: link.URL, ExpiresAt: link.ExpiresAt}, nil)
}

// Export godoc
// @Summary Export requests as CSV or PDF
// @Tags Requests
// @Produce octet-stream
// @Security BearerAuth
// @Param format query string false "csv (default) or pdf"
// @Param status query string false "Status filter"
// @Success 200 {file} binary
// @Router /student-requests/export [get]
func (h *RequestHandler) Export(c *gin.Context) {
	if h.exporter == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "export service not configured"))
		return
	}
	file, err := h.exporter.Export(c.Request.Context(), service.ExportFormat(c.Query("format")), models.RequestStatus(strings.TrimSpace(c.Query("status"))))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", file.Filename))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, file.ContentType, file.Data)
}

func (h *RequestHandler) maxFileSize() int64 {
	if h.attachments == nil || h.attachments.MaxFileSize() <= 0 {
		return 5 << 20
	}
	return h.attachments.MaxFileSize()
}

func decodeDraft(form *multipart.Form) (*models.Request, error) {
	draft := &models.Request{}
	if !hasField(form, "studentDetails") {
		return nil, appErrors.Clone(appErrors.ErrValidation, "studentDetails is required")
	}
	if err := decodeField(form, "studentDetails", &draft.StudentDetails); err != nil {
		return nil, err
	}
	if hasField(form, "teamDetails") {
		draft.TeamDetails = &models.TeamDetails{}
		if err := decodeField(form, "teamDetails", draft.TeamDetails); err != nil {
			return nil, err
		}
	}
	if hasField(form, "competitionDetails") {
		draft.CompetitionDetails = &models.CompetitionDetails{}
		if err := decodeField(form, "competitionDetails", draft.CompetitionDetails); err != nil {
			return nil, err
		}
	}
	if hasField(form, "declaration") {
		draft.Declaration = &models.Declaration{}
		if err := decodeField(form, "declaration", draft.Declaration); err != nil {
			return nil, err
		}
	}
	return draft, nil
}

func hasField(form *multipart.Form, name string) bool {
	values := form.Value[name]
	return len(values) > 0 && strings.TrimSpace(values[0]) != "" && strings.TrimSpace(values[0]) != "null"
}

// decodeField rejects unknown keys so typos never reach storage silently.
func decodeField(form *multipart.Form, name string, dest interface{}) error {
	dec := json.NewDecoder(strings.NewReader(form.Value[name][0]))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		return appErrors.Invalid(err, "invalid request data format for "+name)
	}
	if dec.More() {
		return appErrors.Clone(appErrors.ErrValidation, "invalid request data format for "+name)
	}
	return nil
}

func collectUploads(form *multipart.Form) ([]service.AttachmentUpload, []multipart.File, error) {
	for field := range form.File {
		if !models.AttachmentKey(field).IsValid() {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unexpected file field %q", field))
		}
	}

	var (
		uploads []service.AttachmentUpload
		opened  []multipart.File
	)
	for _, key := range models.AttachmentKeys {
		headers := form.File[string(key)]
		if len(headers) == 0 {
			continue
		}
		if len(headers) > 1 {
			return nil, opened, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s accepts a single file", key))
		}
		header := headers[0]
		file, err := header.Open()
		if err != nil {
			return nil, opened, appErrors.Internal(err, "failed to open upload")
		}
		opened = append(opened, file)
		uploads = append(uploads, service.AttachmentUpload{
			Key:      key,
			Filename: header.Filename,
			Size:     header.Size,
			MimeType: header.Header.Get("Content-Type"),
			Content:  file,
		})
	}
	return uploads, opened, nil
}
