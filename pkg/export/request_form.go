package export

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// FormStudent is the student block printed on the application form.
type FormStudent struct {
	Name       string
	RollNumber string
	Department string
	Program    string
	Section    string
	Semester   string
	Contact    string
	Email      string
}

// FormCompetition is the competition block printed on the application form.
type FormCompetition struct {
	Name      string
	Venue     string
	StartDate string
	EndDate   string
	Position  string
	Prize     string
}

// RequestForm is everything the application form prints.
type RequestForm struct {
	CaseNumber  string
	SubmittedAt time.Time
	Student     FormStudent
	Competition FormCompetition
	// Attached holds the document slot keys that carry a file.
	Attached map[string]bool
}

// ChecklistItem is one row of the required documents section. It is ticked
// when any of its slot keys is attached.
type ChecklistItem struct {
	Label string
	Keys  []string
}

// RequiredDocuments is the printed documents checklist in form order.
var RequiredDocuments = []ChecklistItem{
	{Label: "Travel Tickets (Original)", Keys: []string{"tickets"}},
	{Label: "Competition Invitation/Selection Letter", Keys: []string{"invitationLetter"}},
	{Label: "Achievement Certificates/Photos", Keys: []string{"certificates"}},
	{Label: "Self-Undertaking Form", Keys: []string{"undertaking"}},
	{Label: "Mandate Form & TA/DA Form", Keys: []string{"mandateForm", "taForm"}},
	{Label: "University ID Card Copy", Keys: []string{"idCards"}},
	{Label: "Last Semester DMC", Keys: []string{"lastSemesterDmc"}},
	{Label: "Current Semester Attendance Record", Keys: []string{"attendanceProof"}},
	{Label: "Identity Proof (Aadhar/PAN)", Keys: []string{"idProof"}},
}

var declarationStatements = []string{
	"All the information provided in this application is true and correct to the best of my knowledge.",
	"The documents attached are genuine and have not been altered in any manner.",
	"I have not claimed reimbursement for this competition from any other source.",
	"I will abide by the reimbursement policy and decisions of the university.",
	"I understand that any false information may lead to rejection of the claim and disciplinary action.",
	"I will refund the reimbursed amount if any discrepancy is found at a later stage.",
}

const (
	formPageWidth = 210.0
	formMargin    = 15.0
	formBodyWidth = formPageWidth - 2*formMargin
	formLabelW    = 60.0
)

// RequestFormRenderer renders the two page reimbursement application form.
// Output depends only on the form and the injected clock.
type RequestFormRenderer struct {
	institutionName string
	institutionCode string
	now             func() time.Time
}

// NewRequestFormRenderer constructs a renderer. A nil clock uses time.Now.
func NewRequestFormRenderer(institutionName, institutionCode string, now func() time.Time) *RequestFormRenderer {
	if now == nil {
		now = time.Now
	}
	return &RequestFormRenderer{institutionName: institutionName, institutionCode: institutionCode, now: now}
}

// Render produces the PDF bytes for form.
func (r *RequestFormRenderer) Render(form RequestForm) ([]byte, error) {
	if form.CaseNumber == "" {
		return nil, fmt.Errorf("request form requires a case number")
	}
	generatedAt := r.now().UTC()

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetCatalogSort(true)
	pdf.SetCreationDate(generatedAt)
	pdf.SetTitle("Reimbursement Application Form "+form.CaseNumber, false)
	pdf.SetMargins(formMargin, formMargin, formMargin)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Arial", "I", 8)
		pdf.CellFormat(0, 10, fmt.Sprintf("Page %d of {nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	pdf.AddPage()
	r.header(pdf, form, generatedAt)
	studentSection(pdf, form)
	competitionSection(pdf, form.Competition)
	documentsSection(pdf, form.Attached)

	pdf.AddPage()
	declarationSection(pdf)
	officeSection(pdf)

	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("render request form: %w", err)
	}
	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render request form: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *RequestFormRenderer) header(pdf *gofpdf.Fpdf, form RequestForm, generatedAt time.Time) {
	if r.institutionCode != "" {
		pdf.SetFont("Arial", "B", 22)
		pdf.CellFormat(0, 10, winAnsi(r.institutionCode), "", 1, "C", false, 0, "")
	}
	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 8, winAnsi(strings.ToUpper(r.institutionName)), "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(0, 7, "Reimbursement Application Form", "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "I", 9)
	pdf.CellFormat(0, 6, "(Applicable only for students winning on any platform)", "", 1, "C", false, 0, "")
	pdf.Ln(3)

	dated := form.SubmittedAt
	if dated.IsZero() {
		dated = generatedAt
	}
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(formBodyWidth/2, 7, winAnsi("Reference No.: "+form.CaseNumber), "", 0, "L", false, 0, "")
	pdf.CellFormat(formBodyWidth/2, 7, "Date: "+dated.UTC().Format("02/01/2006"), "", 1, "R", false, 0, "")
	pdf.Line(formMargin, pdf.GetY()+1, formPageWidth-formMargin, pdf.GetY()+1)
	pdf.Ln(5)
}

func sectionTitle(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont("Arial", "B", 11)
	pdf.SetFillColor(230, 230, 230)
	pdf.CellFormat(0, 8, winAnsi(title), "1", 1, "L", true, 0, "")
	pdf.Ln(1)
}

func labelledRow(pdf *gofpdf.Fpdf, label, value string) {
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(formLabelW, 7, winAnsi(label), "1", 0, "L", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.MultiCell(formBodyWidth-formLabelW, 7, winAnsi(orDash(value)), "1", "L", false)
}

func studentSection(pdf *gofpdf.Fpdf, form RequestForm) {
	s := form.Student
	sectionTitle(pdf, "1. STUDENT DETAILS")
	labelledRow(pdf, "Full Name", s.Name)
	labelledRow(pdf, "UID/Roll Number", s.RollNumber)
	labelledRow(pdf, "Department", s.Department)
	labelledRow(pdf, "Program/Branch", s.Program)
	labelledRow(pdf, "Section", s.Section)
	labelledRow(pdf, "Current Semester", s.Semester)
	labelledRow(pdf, "Contact Number", s.Contact)
	labelledRow(pdf, "Email ID", s.Email)
	pdf.Ln(4)
}

func competitionSection(pdf *gofpdf.Fpdf, c FormCompetition) {
	sectionTitle(pdf, "2. COMPETITION DETAILS")
	labelledRow(pdf, "Competition Name", c.Name)
	labelledRow(pdf, "Venue", c.Venue)
	labelledRow(pdf, "Start Date", FormatFormDate(c.StartDate))
	labelledRow(pdf, "End Date", FormatFormDate(c.EndDate))
	labelledRow(pdf, "Position Secured", c.Position)
	prize := c.Prize
	if prize != "" {
		prize = "Rs. " + prize
	}
	labelledRow(pdf, "Prize Amount", prize)
	pdf.Ln(4)
}

func documentsSection(pdf *gofpdf.Fpdf, attached map[string]bool) {
	sectionTitle(pdf, "3. REQUIRED DOCUMENTS")
	pdf.SetFont("Arial", "", 10)
	for i, item := range RequiredDocuments {
		mark := "[ ]"
		if item.Ticked(attached) {
			mark = "[x]"
		}
		pdf.CellFormat(12, 7, mark, "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 7, winAnsi(fmt.Sprintf("%d. %s", i+1, item.Label)), "", 1, "L", false, 0, "")
	}
}

func declarationSection(pdf *gofpdf.Fpdf) {
	sectionTitle(pdf, "STUDENT DECLARATION")
	pdf.SetFont("Arial", "", 10)
	pdf.MultiCell(0, 6, "I hereby declare that:", "", "L", false)
	for i, statement := range declarationStatements {
		pdf.MultiCell(0, 6, fmt.Sprintf("%d. %s", i+1, statement), "", "L", false)
	}
	pdf.Ln(14)

	half := formBodyWidth / 2
	pdf.CellFormat(half, 6, "______________________________", "", 0, "L", false, 0, "")
	pdf.CellFormat(half, 6, "______________________________", "", 1, "R", false, 0, "")
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(half, 6, "Student Signature", "", 0, "L", false, 0, "")
	pdf.CellFormat(half, 6, "Parent/Guardian Signature", "", 1, "R", false, 0, "")
	pdf.Ln(12)
}

func officeSection(pdf *gofpdf.Fpdf) {
	sectionTitle(pdf, "FOR OFFICE USE ONLY")
	labelledRow(pdf, "Approved By", "")
	labelledRow(pdf, "Date", "")
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(formLabelW, 21, "Remarks", "1", 0, "L", false, 0, "")
	pdf.CellFormat(formBodyWidth-formLabelW, 21, "", "1", 1, "L", false, 0, "")
}

// Ticked reports whether any of the item's slots is attached.
func (i ChecklistItem) Ticked(attached map[string]bool) bool {
	for _, key := range i.Keys {
		if attached[key] {
			return true
		}
	}
	return false
}

// FormatFormDate renders ISO dates as DD/MM/YYYY and returns anything it
// cannot parse unchanged.
func FormatFormDate(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05.000Z07:00", "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format("02/01/2006")
		}
	}
	return raw
}

func orDash(v string) string {
	if strings.TrimSpace(v) == "" {
		return "-"
	}
	return v
}
