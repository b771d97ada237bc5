package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/reimbursement-portal-api/internal/models"
	appErrors "github.com/noah-isme/reimbursement-portal-api/pkg/errors"
	"github.com/noah-isme/reimbursement-portal-api/pkg/export"
)

type failingLister struct{}

func (failingLister) ListAll(ctx context.Context) ([]models.Request, error) {
	return nil, errors.New("db down")
}

func (failingLister) ListByStatus(ctx context.Context, status models.RequestStatus) ([]models.Request, error) {
	return nil, errors.New("db down")
}

func seededStore() *memoryRequestStore {
	store := newMemoryRequestStore()
	comment := "=cmd|calc"
	for _, req := range []*models.Request{
		{CaseNumber: "REQ25040001", Status: models.RequestStatusPending, StudentDetails: models.StudentDetails{Name: "Asha"}, SubmittedAt: testNow},
		{
			CaseNumber: "REQ25040002", Status: models.RequestStatusApproved, StudentDetails: models.StudentDetails{Name: "Ravi"},
			CompetitionDetails: &models.CompetitionDetails{CompetitionName: "SIH", PrizeAmount: "50000"},
			AdminComments:      &comment, SubmittedAt: testNow,
		},
	} {
		_ = store.Create(context.Background(), req)
	}
	return store
}

func newTestExportService(lister requestLister) *ExportService {
	return NewExportService(lister, zap.NewNop(), export.NewCSVExporter(), export.NewPDFExporter(fixedClock(testNow)), fixedClock(testNow))
}

func TestExportServiceCSVWithStatusFilter(t *testing.T) {
	svc := newTestExportService(seededStore())

	file, err := svc.Export(context.Background(), ExportFormatCSV, models.RequestStatusApproved)
	require.NoError(t, err)
	assert.Equal(t, "text/csv", file.ContentType)
	assert.Equal(t, "requests_approved_20250412_100000.csv", file.Filename)
	assert.Equal(t, 1, file.Rows)

	lines := strings.Split(strings.TrimSpace(string(file.Data)), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "Case Number,Status,Student"))
	assert.Contains(t, lines[1], "REQ25040002,Approved,Ravi")
	assert.Contains(t, lines[1], "SIH")
	assert.Contains(t, lines[1], "'=cmd|calc")
}

func TestExportServicePDFAllRequests(t *testing.T) {
	svc := newTestExportService(seededStore())

	file, err := svc.Export(context.Background(), "PDF", "")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", file.ContentType)
	assert.Equal(t, "requests_all_20250412_100000.pdf", file.Filename)
	assert.Equal(t, 2, file.Rows)
	assert.True(t, strings.HasPrefix(string(file.Data), "%PDF-"))
}

func TestExportServiceDefaultsToCSV(t *testing.T) {
	svc := newTestExportService(newMemoryRequestStore())

	file, err := svc.Export(context.Background(), "", "")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", file.ContentType)
	assert.Equal(t, 0, file.Rows)
}

func TestExportServiceRejectsUnknownFormat(t *testing.T) {
	svc := newTestExportService(newMemoryRequestStore())

	_, err := svc.Export(context.Background(), "xlsx", "")
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestExportServicePropagatesListErrors(t *testing.T) {
	svc := newTestExportService(failingLister{})

	_, err := svc.Export(context.Background(), ExportFormatCSV, "")
	require.Error(t, err)
}
