package export

import (
	"bytes"
	"compress/zlib"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleForm() RequestForm {
	return RequestForm{
		CaseNumber:  "REQ25040001",
		SubmittedAt: time.Date(2025, 4, 12, 9, 30, 0, 0, time.UTC),
		Student: FormStudent{
			Name: "Asha Verma", RollNumber: "21BCS001", Department: "CSE",
			Program: "B.E. CSE", Section: "A", Semester: "6", Contact: "9999999999", Email: "asha@cumail.in",
		},
		Competition: FormCompetition{
			Name: "Smart India Hackathon", Venue: "Pune", StartDate: "2025-03-01", EndDate: "2025-03-03",
			Position: "1st", Prize: "100000",
		},
		Attached: map[string]bool{"tickets": true, "taForm": true},
	}
}

func TestRequestFormRenderIsDeterministic(t *testing.T) {
	clock := func() time.Time { return time.Date(2025, 4, 12, 10, 0, 0, 0, time.UTC) }
	r := NewRequestFormRenderer("Chandigarh University", "CU", clock)

	first, err := r.Render(sampleForm())
	require.NoError(t, err)
	second, err := r.Render(sampleForm())
	require.NoError(t, err)

	assert.True(t, bytes.HasPrefix(first, []byte("%PDF-")))
	assert.Equal(t, first, second)

	other := sampleForm()
	other.CaseNumber = "REQ25040002"
	third, err := r.Render(other)
	require.NoError(t, err)
	assert.NotEqual(t, first, third)
}

func TestRequestFormRenderHandlesSparseInput(t *testing.T) {
	r := NewRequestFormRenderer("Chandigarh University", "", nil)
	out, err := r.Render(RequestForm{CaseNumber: "REQ25040003"})
	require.NoError(t, err)
	assert.NotEmpty(t, out)

	_, err = r.Render(RequestForm{})
	require.Error(t, err)
}

func TestChecklistTicks(t *testing.T) {
	attached := map[string]bool{"taForm": true}
	var mandate ChecklistItem
	for _, item := range RequiredDocuments {
		if item.Label == "Mandate Form & TA/DA Form" {
			mandate = item
		}
	}
	assert.True(t, mandate.Ticked(attached))
	assert.False(t, RequiredDocuments[0].Ticked(attached))
	assert.Len(t, RequiredDocuments, 9)
}

func TestFormatFormDate(t *testing.T) {
	assert.Equal(t, "01/03/2025", FormatFormDate("2025-03-01"))
	assert.Equal(t, "01/03/2025", FormatFormDate("2025-03-01T00:00:00Z"))
	assert.Equal(t, "next week", FormatFormDate("next week"))
	assert.Equal(t, "", FormatFormDate("  "))
}

// pageText inflates every content stream of a gofpdf document.
func pageText(t *testing.T, doc []byte) []byte {
	t.Helper()
	var text []byte
	for {
		start := bytes.Index(doc, []byte("stream\n"))
		if start < 0 {
			return text
		}
		doc = doc[start+len("stream\n"):]
		end := bytes.Index(doc, []byte("\nendstream"))
		require.GreaterOrEqual(t, end, 0)
		if zr, err := zlib.NewReader(bytes.NewReader(doc[:end])); err == nil {
			inflated, _ := io.ReadAll(zr)
			text = append(text, inflated...)
		}
		doc = doc[end+len("\nendstream"):]
	}
}

func TestRequestFormRenderEncodesAccentedText(t *testing.T) {
	form := sampleForm()
	form.Student.Name = "José Müller"
	form.Competition.Venue = "Zürich"

	out, err := NewRequestFormRenderer("Chandigarh University", "CU", nil).Render(form)
	require.NoError(t, err)

	text := pageText(t, out)
	assert.Contains(t, string(text), "Jos\xe9 M\xfcller")
	assert.Contains(t, string(text), "Z\xfcrich")
	assert.NotContains(t, string(text), "José")
}

func TestPDFExporterEncodesAccentedText(t *testing.T) {
	out, err := NewPDFExporter(nil).Render(Dataset{
		Headers: []string{"Student"},
		Rows:    []map[string]string{{"Student": "Zoë Brontë"}},
	}, "")
	require.NoError(t, err)
	assert.Contains(t, string(pageText(t, out)), "Zo\xeb Bront\xeb")
}
