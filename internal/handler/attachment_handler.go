package handler

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/reimbursement-portal-api/internal/service"
	appErrors "github.com/noah-isme/reimbursement-portal-api/pkg/errors"
	"github.com/noah-isme/reimbursement-portal-api/pkg/response"
)

type attachmentDownloader interface {
	Download(token string) (*service.AttachmentDownload, error)
}

// AttachmentHandler streams stored documents behind signed links.
type AttachmentHandler struct {
	service attachmentDownloader
}

// NewAttachmentHandler constructs the handler.
func NewAttachmentHandler(svc attachmentDownloader) *AttachmentHandler {
	return &AttachmentHandler{service: svc}
}

// Download godoc
// @Summary Download an attachment via signed token
// @Tags Attachments
// @Produce octet-stream
// @Param token query string true "Signed token"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /attachments/download [get]
func (h *AttachmentHandler) Download(c *gin.Context) {
	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	result, err := h.service.Download(token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer result.File.Close() //nolint:errcheck
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", result.Filename))
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, result.SizeBytes, result.MimeType, result.File, nil)
}
