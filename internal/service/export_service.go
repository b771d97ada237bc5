package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/reimbursement-portal-api/internal/models"
	appErrors "github.com/noah-isme/reimbursement-portal-api/pkg/errors"
	"github.com/noah-isme/reimbursement-portal-api/pkg/export"
)

// ExportFormat names a supported export encoding.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

type requestLister interface {
	ListAll(ctx context.Context) ([]models.Request, error)
	ListByStatus(ctx context.Context, status models.RequestStatus) ([]models.Request, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportFile is a rendered export ready to stream.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
	Rows        int
}

// ExportService renders request listings as CSV or PDF.
type ExportService struct {
	requests requestLister
	csv      csvRenderer
	pdf      pdfRenderer
	logger   *zap.Logger
	now      func() time.Time
}

var exportHeaders = []string{
	"Case Number", "Status", "Student", "Roll Number", "Department", "Official Email",
	"Competition", "Location", "Position", "Prize", "Attachments", "Submitted At", "Processed By", "Admin Comments",
}

// NewExportService constructs an ExportService.
func NewExportService(requests requestLister, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer, now func() time.Time) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter(now)
	}
	return &ExportService{requests: requests, csv: csv, pdf: pdf, logger: logger, now: now}
}

// Export renders every request, or those in status when it is non-empty.
func (s *ExportService) Export(ctx context.Context, format ExportFormat, status models.RequestStatus) (*ExportFile, error) {
	format = ExportFormat(strings.ToLower(strings.TrimSpace(string(format))))
	if format == "" {
		format = ExportFormatCSV
	}
	if format != ExportFormatCSV && format != ExportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}

	var (
		requests []models.Request
		err      error
	)
	if status == "" {
		requests, err = s.requests.ListAll(ctx)
	} else {
		requests, err = s.requests.ListByStatus(ctx, status)
	}
	if err != nil {
		return nil, err
	}

	dataset := buildRequestDataset(requests)
	title := "Reimbursement Requests"
	if status != "" {
		title = fmt.Sprintf("Reimbursement Requests - %s", status)
	}

	var (
		payload     []byte
		contentType string
	)
	switch format {
	case ExportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
		contentType = "application/pdf"
	default:
		payload, err = s.csv.Render(dataset)
		contentType = "text/csv"
	}
	if err != nil {
		return nil, appErrors.Internal(err, "failed to render export")
	}

	s.logger.Info("requests exported", zap.String("format", string(format)), zap.String("status", string(status)), zap.Int("rows", len(requests)))
	return &ExportFile{
		Filename:    s.buildFilename(format, status),
		ContentType: contentType,
		Data:        payload,
		Rows:        len(requests),
	}, nil
}

func (s *ExportService) buildFilename(format ExportFormat, status models.RequestStatus) string {
	timestamp := s.now().UTC().Format("20060102_150405")
	scope := "all"
	if status != "" {
		scope = strings.ToLower(strings.ReplaceAll(string(status), " ", "_"))
	}
	return fmt.Sprintf("requests_%s_%s.%s", scope, timestamp, format)
}

func buildRequestDataset(requests []models.Request) export.Dataset {
	rows := make([]map[string]string, 0, len(requests))
	for _, req := range requests {
		row := map[string]string{
			"Case Number":    req.CaseNumber,
			"Status":         string(req.Status),
			"Student":        req.StudentDetails.Name,
			"Roll Number":    req.StudentDetails.RollNumber,
			"Department":     req.StudentDetails.Department,
			"Official Email": req.StudentDetails.OfficialEmail,
			"Attachments":    fmt.Sprintf("%d", len(req.Attachments)),
			"Submitted At":   req.SubmittedAt.UTC().Format(time.RFC3339),
			"Processed By":   deref(req.ProcessedByName),
			"Admin Comments": deref(req.AdminComments),
		}
		if c := req.CompetitionDetails; c != nil {
			row["Competition"] = c.CompetitionName
			row["Location"] = c.Location
			row["Position"] = c.Position
			row["Prize"] = c.PrizeAmount
		}
		rows = append(rows, row)
	}
	return export.Dataset{Headers: exportHeaders, Rows: rows}
}

func deref(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}
