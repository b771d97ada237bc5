package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/reimbursement-portal-api/internal/models"
	"github.com/noah-isme/reimbursement-portal-api/pkg/database"
)

var requestRowColumns = []string{
	"id", "case_number", "student_details", "team_details", "competition_details",
	"declaration", "attachments", "status", "admin_comments", "processed_by",
	"processed_by_name", "processed_at", "submitted_at", "updated_at",
}

func sampleRequestRow(rows *sqlmock.Rows, caseNumber string, status models.RequestStatus, submitted time.Time) *sqlmock.Rows {
	return rows.AddRow(
		"6f1c1c1e-0000-4000-8000-000000000001",
		caseNumber,
		[]byte(`{"name":"Asha","rollNumber":"21BCS001","department":"CSE","officialEmail":"asha@cumail.in"}`),
		[]byte(`{"teamName":"Byte","semester":"6"}`),
		nil,
		nil,
		[]byte(`{"tickets":"2025-04-12/1-t.pdf"}`),
		string(status),
		nil,
		nil,
		nil,
		nil,
		submitted,
		submitted,
	)
}

func TestRequestCreate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewRequestRepository(db)

	mock.ExpectExec("INSERT INTO reimbursement_requests").WillReturnResult(sqlmock.NewResult(1, 1))

	req := &models.Request{
		CaseNumber:     "REQ25040001",
		StudentDetails: models.StudentDetails{Name: "Asha", RollNumber: "21BCS001", Department: "CSE", OfficialEmail: "asha@cumail.in"},
	}
	require.NoError(t, repo.Create(context.Background(), req))
	assert.NotEmpty(t, req.ID)
	assert.Equal(t, models.RequestStatusPending, req.Status)
	assert.False(t, req.SubmittedAt.IsZero())
	assert.NotNil(t, req.Attachments)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestCreateDuplicateCaseNumber(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewRequestRepository(db)

	mock.ExpectExec("INSERT INTO reimbursement_requests").
		WillReturnError(&pq.Error{Code: "23505", Constraint: database.CaseNumberConstraint})

	err := repo.Create(context.Background(), &models.Request{CaseNumber: "REQ25040001"})
	require.ErrorIs(t, err, ErrDuplicateCaseNumber)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestFindByCaseNumber(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewRequestRepository(db)

	submitted := time.Date(2025, 4, 12, 9, 0, 0, 0, time.UTC)
	rows := sampleRequestRow(sqlmock.NewRows(requestRowColumns), "REQ25040001", models.RequestStatusPending, submitted)
	mock.ExpectQuery(`FROM reimbursement_requests r\s+LEFT JOIN users u ON u.id = r.processed_by\s+WHERE r.case_number = \$1`).
		WithArgs("REQ25040001").
		WillReturnRows(rows)

	req, err := repo.FindByCaseNumber(context.Background(), "REQ25040001")
	require.NoError(t, err)
	assert.Equal(t, "Asha", req.StudentDetails.Name)
	require.NotNil(t, req.TeamDetails)
	assert.Equal(t, "6", req.TeamDetails.Semester)
	assert.Nil(t, req.CompetitionDetails)
	assert.Equal(t, "2025-04-12/1-t.pdf", req.Attachments[models.AttachmentTickets])
	assert.Nil(t, req.ProcessedBy)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestFindByCaseNumberNotFound(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewRequestRepository(db)

	mock.ExpectQuery("FROM reimbursement_requests r").
		WithArgs("REQ99999999").
		WillReturnRows(sqlmock.NewRows(requestRowColumns))

	_, err := repo.FindByCaseNumber(context.Background(), "REQ99999999")
	require.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestListByStatus(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewRequestRepository(db)

	newer := time.Date(2025, 4, 13, 9, 0, 0, 0, time.UTC)
	older := newer.Add(-24 * time.Hour)
	rows := sqlmock.NewRows(requestRowColumns)
	sampleRequestRow(rows, "REQ25040002", models.RequestStatusApproved, newer)
	sampleRequestRow(rows, "REQ25040001", models.RequestStatusApproved, older)
	mock.ExpectQuery(`WHERE r.status = \$1\s+ORDER BY r.submitted_at DESC`).
		WithArgs(models.RequestStatusApproved).
		WillReturnRows(rows)

	requests, err := repo.ListByStatus(context.Background(), models.RequestStatusApproved)
	require.NoError(t, err)
	require.Len(t, requests, 2)
	assert.Equal(t, "REQ25040002", requests[0].CaseNumber)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestListAllEmpty(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewRequestRepository(db)

	mock.ExpectQuery(`ORDER BY r.submitted_at DESC`).WillReturnRows(sqlmock.NewRows(requestRowColumns))

	requests, err := repo.ListAll(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, requests)
	assert.Empty(t, requests)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestListAllResolvesProcessor(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewRequestRepository(db)

	newer := time.Date(2025, 4, 13, 9, 0, 0, 0, time.UTC)
	older := newer.Add(-24 * time.Hour)
	processedAt := newer.Add(2 * time.Hour)
	rows := sqlmock.NewRows(requestRowColumns)
	sampleRequestRow(rows, "REQ25040002", models.RequestStatusPending, newer)
	rows.AddRow(
		"6f1c1c1e-0000-4000-8000-000000000002", "REQ25040001",
		[]byte(`{"name":"Ravi","rollNumber":"21BCS002","department":"ECE","officialEmail":"ravi@cumail.in"}`),
		nil, nil, nil, []byte(`{}`),
		"Approved", "ok", "admin-1", "Dr. Rao", processedAt, older, processedAt,
	)
	mock.ExpectQuery(`FROM reimbursement_requests r\s+LEFT JOIN users u ON u.id = r.processed_by\s+ORDER BY r.submitted_at DESC`).
		WillReturnRows(rows)

	requests, err := repo.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, requests, 2)
	assert.Equal(t, "REQ25040002", requests[0].CaseNumber)
	assert.Nil(t, requests[0].ProcessedByName)
	assert.Equal(t, "REQ25040001", requests[1].CaseNumber)
	require.NotNil(t, requests[1].ProcessedByName)
	assert.Equal(t, "Dr. Rao", *requests[1].ProcessedByName)
	require.NotNil(t, requests[1].ProcessedBy)
	assert.Equal(t, "admin-1", *requests[1].ProcessedBy)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestUpdateStatus(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewRequestRepository(db)

	processedAt := time.Date(2025, 4, 14, 12, 0, 0, 0, time.UTC)
	comment := "Documents verified"
	rows := sqlmock.NewRows(requestRowColumns).AddRow(
		"6f1c1c1e-0000-4000-8000-000000000001", "REQ25040001",
		[]byte(`{"name":"Asha","rollNumber":"21BCS001","department":"CSE","officialEmail":"asha@cumail.in"}`),
		nil, nil, nil, []byte(`{}`),
		"Approved", comment, "admin-1", "Dr. Rao", processedAt, processedAt.Add(-48*time.Hour), processedAt,
	)
	mock.ExpectQuery(`UPDATE reimbursement_requests\s+SET status = \$2`).
		WithArgs("REQ25040001", models.RequestStatusApproved, &comment, "admin-1", processedAt).
		WillReturnRows(rows)

	req, err := repo.UpdateStatus(context.Background(), models.StatusUpdate{
		CaseNumber:    "REQ25040001",
		Status:        models.RequestStatusApproved,
		AdminComments: &comment,
		ProcessedBy:   "admin-1",
		ProcessedAt:   processedAt,
	})
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusApproved, req.Status)
	require.NotNil(t, req.ProcessedByName)
	assert.Equal(t, "Dr. Rao", *req.ProcessedByName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestUpdateStatusUnknownCase(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewRequestRepository(db)

	mock.ExpectQuery("UPDATE reimbursement_requests").WillReturnRows(sqlmock.NewRows(requestRowColumns))

	_, err := repo.UpdateStatus(context.Background(), models.StatusUpdate{
		CaseNumber: "REQ00000000", Status: models.RequestStatusRejected, ProcessedBy: "admin-1", ProcessedAt: time.Now(),
	})
	require.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
