package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// RequestStatus captures the review states of a reimbursement request.
type RequestStatus string

const (
	RequestStatusPending     RequestStatus = "Pending"
	RequestStatusUnderReview RequestStatus = "Under Review"
	RequestStatusApproved    RequestStatus = "Approved"
	RequestStatusRejected    RequestStatus = "Rejected"
)

// RequestStatuses lists every accepted status in display order.
var RequestStatuses = []RequestStatus{
	RequestStatusPending,
	RequestStatusUnderReview,
	RequestStatusApproved,
	RequestStatusRejected,
}

// IsValid reports whether s belongs to the status enumeration.
func (s RequestStatus) IsValid() bool {
	for _, candidate := range RequestStatuses {
		if s == candidate {
			return true
		}
	}
	return false
}

// AttachmentKey names one supporting document slot.
type AttachmentKey string

const (
	AttachmentTickets          AttachmentKey = "tickets"
	AttachmentInvitationLetter AttachmentKey = "invitationLetter"
	AttachmentCertificates     AttachmentKey = "certificates"
	AttachmentUndertaking      AttachmentKey = "undertaking"
	AttachmentMandateForm      AttachmentKey = "mandateForm"
	AttachmentTAForm           AttachmentKey = "taForm"
	AttachmentIDCards          AttachmentKey = "idCards"
	AttachmentLastSemesterDMC  AttachmentKey = "lastSemesterDmc"
	AttachmentAttendanceProof  AttachmentKey = "attendanceProof"
	AttachmentIDProof          AttachmentKey = "idProof"
)

// AttachmentKeys is the fixed set of document slots, in form order.
var AttachmentKeys = []AttachmentKey{
	AttachmentTickets,
	AttachmentInvitationLetter,
	AttachmentCertificates,
	AttachmentUndertaking,
	AttachmentMandateForm,
	AttachmentTAForm,
	AttachmentIDCards,
	AttachmentLastSemesterDMC,
	AttachmentAttendanceProof,
	AttachmentIDProof,
}

// IsValid reports whether k is one of the known document slots.
func (k AttachmentKey) IsValid() bool {
	for _, candidate := range AttachmentKeys {
		if k == candidate {
			return true
		}
	}
	return false
}

// StudentDetails identifies the submitting student.
type StudentDetails struct {
	Name          string `json:"name" validate:"required"`
	RollNumber    string `json:"rollNumber" validate:"required"`
	Department    string `json:"department" validate:"required"`
	Year          string `json:"year,omitempty"`
	Contact       string `json:"contact,omitempty"`
	Email         string `json:"email,omitempty" validate:"omitempty,email"`
	OfficialEmail string `json:"officialEmail" validate:"required,email"`
}

// TeamDetails describes the team that competed.
type TeamDetails struct {
	TeamName   string `json:"teamName,omitempty"`
	LeaderName string `json:"leaderName,omitempty"`
	Section    string `json:"section,omitempty"`
	Program    string `json:"program,omitempty"`
	ContactNo  string `json:"contactNo,omitempty"`
	Semester   string `json:"semester,omitempty"`
	TeamSize   string `json:"teamSize,omitempty"`
}

// CompetitionDetails describes the event the claim relates to.
type CompetitionDetails struct {
	CompetitionName string `json:"competitionName,omitempty"`
	Location        string `json:"location,omitempty"`
	StartDate       string `json:"startDate,omitempty"`
	EndDate         string `json:"endDate,omitempty"`
	Position        string `json:"position,omitempty"`
	PrizeAmount     string `json:"prizeAmount,omitempty"`
}

// Declaration records which undertakings the student ticked on the form.
type Declaration struct {
	Compliance     bool `json:"compliance"`
	RulesAwareness bool `json:"rulesAwareness"`
	Attendance     bool `json:"attendance"`
	FeePayment     bool `json:"feePayment"`
}

// Complete reports whether every undertaking was ticked.
func (d *Declaration) Complete() bool {
	return d != nil && d.Compliance && d.RulesAwareness && d.Attendance && d.FeePayment
}

// Attachments maps document slots to stored relative paths.
type Attachments map[AttachmentKey]string

// Keys returns the populated slots in form order.
func (a Attachments) Keys() []AttachmentKey {
	keys := make([]AttachmentKey, 0, len(a))
	for _, key := range AttachmentKeys {
		if a[key] != "" {
			keys = append(keys, key)
		}
	}
	return keys
}

// Paths returns every stored path, sorted.
func (a Attachments) Paths() []string {
	paths := make([]string, 0, len(a))
	for _, p := range a {
		if p != "" {
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)
	return paths
}

// Request is one reimbursement claim as stored in reimbursement_requests.
type Request struct {
	ID                 string              `db:"id" json:"id"`
	CaseNumber         string              `db:"case_number" json:"caseNumber"`
	StudentDetails     StudentDetails      `db:"student_details" json:"studentDetails"`
	TeamDetails        *TeamDetails        `db:"team_details" json:"teamDetails,omitempty"`
	CompetitionDetails *CompetitionDetails `db:"competition_details" json:"competitionDetails,omitempty"`
	Declaration        *Declaration        `db:"declaration" json:"declaration,omitempty"`
	Attachments        Attachments         `db:"attachments" json:"attachments"`
	Status             RequestStatus       `db:"status" json:"status"`
	AdminComments      *string             `db:"admin_comments" json:"adminComments,omitempty"`
	ProcessedBy        *string             `db:"processed_by" json:"processedBy,omitempty"`
	ProcessedByName    *string             `db:"processed_by_name" json:"processedByName,omitempty"`
	ProcessedAt        *time.Time          `db:"processed_at" json:"processedAt,omitempty"`
	SubmittedAt        time.Time           `db:"submitted_at" json:"submittedAt"`
	UpdatedAt          time.Time           `db:"updated_at" json:"updatedAt"`
}

// StatusUpdate carries the fields written by a status transition.
type StatusUpdate struct {
	CaseNumber    string
	Status        RequestStatus
	AdminComments *string
	ProcessedBy   string
	ProcessedAt   time.Time
}

// Value implements driver.Valuer.
func (s StudentDetails) Value() (driver.Value, error) { return jsonValue(s) }

// Scan implements sql.Scanner.
func (s *StudentDetails) Scan(src interface{}) error { return jsonScan(src, s) }

// Value implements driver.Valuer.
func (t TeamDetails) Value() (driver.Value, error) { return jsonValue(t) }

// Scan implements sql.Scanner.
func (t *TeamDetails) Scan(src interface{}) error { return jsonScan(src, t) }

// Value implements driver.Valuer.
func (c CompetitionDetails) Value() (driver.Value, error) { return jsonValue(c) }

// Scan implements sql.Scanner.
func (c *CompetitionDetails) Scan(src interface{}) error { return jsonScan(src, c) }

// Value implements driver.Valuer.
func (d Declaration) Value() (driver.Value, error) { return jsonValue(d) }

// Scan implements sql.Scanner.
func (d *Declaration) Scan(src interface{}) error { return jsonScan(src, d) }

// Value implements driver.Valuer. A nil map is stored as an empty object.
func (a Attachments) Value() (driver.Value, error) {
	if a == nil {
		return []byte("{}"), nil
	}
	return jsonValue(map[AttachmentKey]string(a))
}

// Scan implements sql.Scanner.
func (a *Attachments) Scan(src interface{}) error {
	out := Attachments{}
	if err := jsonScan(src, (*map[AttachmentKey]string)(&out)); err != nil {
		return err
	}
	*a = out
	return nil
}

func jsonValue(v interface{}) (driver.Value, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return raw, nil
}

func jsonScan(src interface{}, dest interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported jsonb source %T", src)
	}
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dest)
}
