package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVExporterEscapesFormulas(t *testing.T) {
	out, err := NewCSVExporter().Render(Dataset{
		Headers: []string{"Case Number", "Student"},
		Rows: []map[string]string{
			{"Case Number": "REQ25040001", "Student": "=HYPERLINK(\"x\")"},
			{"Case Number": "REQ25040002", "Student": "Asha"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Case Number,Student\nREQ25040001,\"'=HYPERLINK(\"\"x\"\")\"\nREQ25040002,Asha\n", string(out))
}

func TestCSVExporterRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	require.Error(t, err)
}

func TestPDFExporterRender(t *testing.T) {
	clock := func() time.Time { return time.Date(2025, 4, 12, 10, 0, 0, 0, time.UTC) }
	rows := make([]map[string]string, 0, 80)
	for i := 0; i < 80; i++ {
		rows = append(rows, map[string]string{"Case Number": "REQ25040001", "Status": "Pending"})
	}
	data := Dataset{Headers: []string{"Case Number", "Status"}, Rows: rows}

	first, err := NewPDFExporter(clock).Render(data, "Reimbursement Requests")
	require.NoError(t, err)
	second, err := NewPDFExporter(clock).Render(data, "Reimbursement Requests")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(first, []byte("%PDF-")))
	assert.Equal(t, first, second)

	_, err = NewPDFExporter(clock).Render(Dataset{}, "")
	require.Error(t, err)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd...", truncate("abcdefghij", 7))
}
