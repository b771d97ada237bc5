package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/reimbursement-portal-api/internal/models"
	"github.com/noah-isme/reimbursement-portal-api/pkg/database"
)

// ErrDuplicateCaseNumber is returned when an insert collides on case_number.
var ErrDuplicateCaseNumber = errors.New("duplicate case number")

const requestColumns = `r.id, r.case_number, r.student_details, r.team_details, r.competition_details,
	r.declaration, r.attachments, r.status, r.admin_comments, r.processed_by,
	u.full_name AS processed_by_name, r.processed_at, r.submitted_at, r.updated_at`

// RequestRepository persists reimbursement requests.
type RequestRepository struct {
	db *sqlx.DB
}

// NewRequestRepository constructs the repository.
func NewRequestRepository(db *sqlx.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

// Create inserts a new request row. The case number must already be set.
func (r *RequestRepository) Create(ctx context.Context, req *models.Request) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.Status == "" {
		req.Status = models.RequestStatusPending
	}
	if req.SubmittedAt.IsZero() {
		req.SubmittedAt = time.Now().UTC()
	}
	if req.UpdatedAt.IsZero() {
		req.UpdatedAt = req.SubmittedAt
	}
	if req.Attachments == nil {
		req.Attachments = models.Attachments{}
	}
	const query = `INSERT INTO reimbursement_requests
	(id, case_number, student_details, team_details, competition_details, declaration, attachments, status, admin_comments, processed_by, processed_at, submitted_at, updated_at)
	VALUES (:id, :case_number, :student_details, :team_details, :competition_details, :declaration, :attachments, :status, :admin_comments, :processed_by, :processed_at, :submitted_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, req); err != nil {
		if database.IsUniqueViolation(err, database.CaseNumberConstraint) {
			return ErrDuplicateCaseNumber
		}
		return fmt.Errorf("create request: %w", err)
	}
	return nil
}

// FindByCaseNumber fetches one request. It returns sql.ErrNoRows when absent.
func (r *RequestRepository) FindByCaseNumber(ctx context.Context, caseNumber string) (*models.Request, error) {
	query := `SELECT ` + requestColumns + `
	FROM reimbursement_requests r
	LEFT JOIN users u ON u.id = r.processed_by
	WHERE r.case_number = $1`
	var req models.Request
	if err := r.db.GetContext(ctx, &req, query, caseNumber); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find request %s: %w", caseNumber, err)
	}
	return &req, nil
}

// ListByStatus returns requests in the given status, newest submission first.
func (r *RequestRepository) ListByStatus(ctx context.Context, status models.RequestStatus) ([]models.Request, error) {
	query := `SELECT ` + requestColumns + `
	FROM reimbursement_requests r
	LEFT JOIN users u ON u.id = r.processed_by
	WHERE r.status = $1
	ORDER BY r.submitted_at DESC`
	requests := []models.Request{}
	if err := r.db.SelectContext(ctx, &requests, query, status); err != nil {
		return nil, fmt.Errorf("list requests by status: %w", err)
	}
	return requests, nil
}

// ListAll returns every request, newest submission first, with the name of
// the admin who last processed it.
func (r *RequestRepository) ListAll(ctx context.Context) ([]models.Request, error) {
	query := `SELECT ` + requestColumns + `
	FROM reimbursement_requests r
	LEFT JOIN users u ON u.id = r.processed_by
	ORDER BY r.submitted_at DESC`
	requests := []models.Request{}
	if err := r.db.SelectContext(ctx, &requests, query); err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	return requests, nil
}

// UpdateStatus applies a status transition in a single statement and returns
// the updated row. It returns sql.ErrNoRows when the case number is unknown.
func (r *RequestRepository) UpdateStatus(ctx context.Context, update models.StatusUpdate) (*models.Request, error) {
	query := `WITH r AS (
		UPDATE reimbursement_requests
		SET status = $2, admin_comments = $3, processed_by = $4, processed_at = $5, updated_at = $5
		WHERE case_number = $1
		RETURNING *
	)
	SELECT ` + requestColumns + `
	FROM r
	LEFT JOIN users u ON u.id = r.processed_by`
	var req models.Request
	err := r.db.GetContext(ctx, &req, query,
		update.CaseNumber, update.Status, update.AdminComments, update.ProcessedBy, update.ProcessedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("update request status: %w", err)
	}
	return &req, nil
}
