package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/reimbursement-portal-api/internal/models"
	appErrors "github.com/noah-isme/reimbursement-portal-api/pkg/errors"
	"github.com/noah-isme/reimbursement-portal-api/pkg/mailer"
)

type mailSender interface {
	Send(ctx context.Context, msg mailer.Message) error
}

type attachmentReader interface {
	Exists(relPath string) bool
	Load(relPath string) ([]byte, error)
}

// NotificationConfig carries the branding and static forms used in mail.
type NotificationConfig struct {
	PortalName      string
	TeamName        string
	ContactName     string
	ContactPhone    string
	ContactEmail    string
	OfficeDesk      string
	UndertakingPath string
}

// NotificationService composes and sends request emails.
type NotificationService struct {
	sender   mailSender
	files    attachmentReader
	metrics  *MetricsService
	logger   *zap.Logger
	cfg      NotificationConfig
	readFile func(string) ([]byte, error)
}

var mailTemplates = template.Must(template.New("mail").Parse(`
{{define "confirmation"}}<div style="font-family: Arial, sans-serif; max-width: 600px;">
<h2>{{.Portal}} - Request Confirmation</h2>
<p>Dear {{.StudentName}},</p>
<p>Your reimbursement request has been submitted successfully.</p>
<table cellpadding="4">
<tr><td><strong>Case Number:</strong></td><td>{{.CaseNumber}}</td></tr>
<tr><td><strong>Submission Date:</strong></td><td>{{.SubmittedAt}}</td></tr>
{{with .CompetitionName}}<tr><td><strong>Competition:</strong></td><td>{{.}}</td></tr>{{end}}
{{with .Location}}<tr><td><strong>Location:</strong></td><td>{{.}}</td></tr>{{end}}
</table>
<h3>Next Steps</h3>
<ol>
<li>Print the attached application form and the undertaking form.</li>
<li>Sign both forms and have them countersigned by your parent or guardian.</li>
<li>Submit the printed forms with original documents{{with .OfficeDesk}} at {{.}}{{end}}.</li>
<li>Quote case number {{.CaseNumber}} in all correspondence.</li>
</ol>
{{if or .ContactName .ContactPhone .ContactEmail}}<h3>Contact</h3>
<p>{{with .ContactName}}{{.}}<br>{{end}}{{with .ContactPhone}}Phone: {{.}}<br>{{end}}{{with .ContactEmail}}Email: {{.}}{{end}}</p>{{end}}
<p>Best regards,<br>{{.Team}}</p>
</div>{{end}}
{{define "status"}}<div style="font-family: Arial, sans-serif; max-width: 600px;">
<h2>{{.Portal}} - Request Status Update</h2>
<p>Dear {{.StudentName}},</p>
<p>The status of your reimbursement request <strong>{{.CaseNumber}}</strong> has been updated.</p>
<table cellpadding="4">
<tr><td><strong>Status:</strong></td><td>{{.Status}}</td></tr>
<tr><td><strong>Last Updated:</strong></td><td>{{.UpdatedAt}}</td></tr>
{{with .AdminComments}}<tr><td><strong>Admin Comments:</strong></td><td>{{.}}</td></tr>{{end}}
</table>
<p>Best regards,<br>{{.Team}}</p>
</div>{{end}}
`))

type mailView struct {
	Portal          string
	Team            string
	StudentName     string
	CaseNumber      string
	SubmittedAt     string
	UpdatedAt       string
	CompetitionName string
	Location        string
	Status          string
	AdminComments   string
	OfficeDesk      string
	ContactName     string
	ContactPhone    string
	ContactEmail    string
}

// NewNotificationService constructs the dispatcher.
func NewNotificationService(sender mailSender, files attachmentReader, metrics *MetricsService, logger *zap.Logger, cfg NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PortalName == "" {
		cfg.PortalName = "Reimbursement Portal"
	}
	if cfg.TeamName == "" {
		cfg.TeamName = cfg.PortalName + " Team"
	}
	return &NotificationService{
		sender:   sender,
		files:    files,
		metrics:  metrics,
		logger:   logger,
		cfg:      cfg,
		readFile: os.ReadFile,
	}
}

// ConfirmationSubject is the subject line of the submission email.
func (s *NotificationService) ConfirmationSubject() string {
	return s.cfg.PortalName + " Request Confirmation"
}

// StatusSubject is the subject line of the status update email.
func (s *NotificationService) StatusSubject(caseNumber string) string {
	return fmt.Sprintf("%s Request Status Update - Case Number: %s", s.cfg.PortalName, caseNumber)
}

// SendCreationConfirmation emails the student the rendered form, the static
// undertaking form and every uploaded document still on disk.
func (s *NotificationService) SendCreationConfirmation(ctx context.Context, req *models.Request, pdf []byte) error {
	err := s.sendCreationConfirmation(ctx, req, pdf)
	s.metrics.RecordNotification(NotificationKindConfirmation, err)
	return err
}

func (s *NotificationService) sendCreationConfirmation(ctx context.Context, req *models.Request, pdf []byte) error {
	if req == nil {
		return notificationError(errors.New("request missing"))
	}
	to := strings.TrimSpace(req.StudentDetails.OfficialEmail)
	if to == "" {
		return notificationError(errors.New("no recipient address"))
	}

	view := s.baseView(req)
	view.SubmittedAt = formatMailTime(req.SubmittedAt)
	if c := req.CompetitionDetails; c != nil {
		view.CompetitionName = c.CompetitionName
		view.Location = c.Location
	}
	body, err := render("confirmation", view)
	if err != nil {
		return notificationError(err)
	}

	log := s.logger.With(zap.String("case_number", req.CaseNumber))
	var attachments []mailer.Attachment
	if len(pdf) > 0 {
		attachments = append(attachments, mailer.Attachment{
			Filename:    fmt.Sprintf("reimbursement_request_%s.pdf", req.CaseNumber),
			ContentType: "application/pdf",
			Data:        pdf,
		})
	}
	if s.cfg.UndertakingPath != "" {
		if data, err := s.readFile(s.cfg.UndertakingPath); err != nil {
			log.Warn("undertaking form unavailable", zap.String("path", s.cfg.UndertakingPath), zap.Error(err))
		} else {
			attachments = append(attachments, mailer.Attachment{Filename: "undertaking_form.pdf", ContentType: "application/pdf", Data: data})
		}
	}
	for _, key := range req.Attachments.Keys() {
		relPath := req.Attachments[key]
		if s.files == nil || !s.files.Exists(relPath) {
			log.Warn("attachment missing on disk", zap.String("key", string(key)), zap.String("path", relPath))
			continue
		}
		data, err := s.files.Load(relPath)
		if err != nil {
			log.Warn("attachment unreadable", zap.String("key", string(key)), zap.Error(err))
			continue
		}
		attachments = append(attachments, mailer.Attachment{Filename: filepath.Base(relPath), Data: data})
	}

	return s.send(ctx, mailer.Message{
		To:          []string{to},
		Subject:     s.ConfirmationSubject(),
		HTMLBody:    body,
		Attachments: attachments,
	})
}

// SendStatusUpdate emails the student the new status and admin comments.
func (s *NotificationService) SendStatusUpdate(ctx context.Context, req *models.Request) error {
	err := s.sendStatusUpdate(ctx, req)
	s.metrics.RecordNotification(NotificationKindStatusUpdate, err)
	return err
}

func (s *NotificationService) sendStatusUpdate(ctx context.Context, req *models.Request) error {
	if req == nil {
		return notificationError(errors.New("request missing"))
	}
	to := strings.TrimSpace(req.StudentDetails.OfficialEmail)
	if to == "" {
		return notificationError(errors.New("no recipient address"))
	}
	view := s.baseView(req)
	view.Status = string(req.Status)
	view.UpdatedAt = formatMailTime(req.UpdatedAt)
	if req.AdminComments != nil {
		view.AdminComments = *req.AdminComments
	}
	body, err := render("status", view)
	if err != nil {
		return notificationError(err)
	}
	return s.send(ctx, mailer.Message{
		To:       []string{to},
		Subject:  s.StatusSubject(req.CaseNumber),
		HTMLBody: body,
	})
}

func (s *NotificationService) send(ctx context.Context, msg mailer.Message) error {
	if s.sender == nil {
		return notificationError(mailer.ErrNotConfigured)
	}
	if err := s.sender.Send(ctx, msg); err != nil {
		return notificationError(err)
	}
	return nil
}

func (s *NotificationService) baseView(req *models.Request) mailView {
	return mailView{
		Portal:       s.cfg.PortalName,
		Team:         s.cfg.TeamName,
		StudentName:  req.StudentDetails.Name,
		CaseNumber:   req.CaseNumber,
		OfficeDesk:   s.cfg.OfficeDesk,
		ContactName:  s.cfg.ContactName,
		ContactPhone: s.cfg.ContactPhone,
		ContactEmail: s.cfg.ContactEmail,
	}
}

func render(name string, view mailView) (string, error) {
	var buf bytes.Buffer
	if err := mailTemplates.ExecuteTemplate(&buf, name, view); err != nil {
		return "", fmt.Errorf("render %s email: %w", name, err)
	}
	return buf.String(), nil
}

func formatMailTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format("02 Jan 2006 15:04 UTC")
}

func notificationError(err error) error {
	return appErrors.Wrap(err, appErrors.ErrNotification.Code, appErrors.ErrNotification.Status, "failed to send email notification")
}
