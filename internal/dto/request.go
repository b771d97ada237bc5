package dto

import (
	"time"

	"github.com/noah-isme/reimbursement-portal-api/internal/models"
)

// CreateRequestResponse is returned by POST /student-requests.
type CreateRequestResponse struct {
	CaseNumber string `json:"caseNumber"`
	Message    string `json:"message"`
	EmailError string `json:"emailError,omitempty"`
}

// UpdateStatusRequest is the PATCH /student-requests/:caseNumber/status body.
type UpdateStatusRequest struct {
	Status        models.RequestStatus `json:"status" binding:"required"`
	AdminComments *string              `json:"adminComments"`
}

// UpdateStatusResponse wraps the updated request and any mail warning.
type UpdateStatusResponse struct {
	models.Request
	EmailError string `json:"emailError,omitempty"`
}

// AttachmentURLResponse carries a signed attachment link.
type AttachmentURLResponse struct {
	Key       models.AttachmentKey `json:"key"`
	URL       string               `json:"url"`
	ExpiresAt time.Time            `json:"expiresAt"`
}

// RequestListItem is one row of GET /student-requests/all: the request plus
// its team and competition fields lifted to the top level for the admin
// table.
type RequestListItem struct {
	models.Request
	UID             string `json:"uid,omitempty"`
	TeamName        string `json:"teamName,omitempty"`
	LeaderName      string `json:"leaderName,omitempty"`
	Section         string `json:"section,omitempty"`
	Program         string `json:"program,omitempty"`
	ContactNo       string `json:"contactNo,omitempty"`
	Semester        string `json:"semester,omitempty"`
	TeamSize        string `json:"teamSize,omitempty"`
	CompetitionName string `json:"competitionName,omitempty"`
	Location        string `json:"location,omitempty"`
	StartDate       string `json:"startDate,omitempty"`
	EndDate         string `json:"endDate,omitempty"`
	Position        string `json:"position,omitempty"`
	PrizeAmount     string `json:"prizeAmount,omitempty"`
}

// NewRequestListItems flattens requests for the admin listing.
func NewRequestListItems(requests []models.Request) []RequestListItem {
	items := make([]RequestListItem, 0, len(requests))
	for _, req := range requests {
		item := RequestListItem{Request: req, UID: req.StudentDetails.RollNumber}
		if t := req.TeamDetails; t != nil {
			item.TeamName = t.TeamName
			item.LeaderName = t.LeaderName
			item.Section = t.Section
			item.Program = t.Program
			item.ContactNo = t.ContactNo
			item.Semester = t.Semester
			item.TeamSize = t.TeamSize
		}
		if c := req.CompetitionDetails; c != nil {
			item.CompetitionName = c.CompetitionName
			item.Location = c.Location
			item.StartDate = c.StartDate
			item.EndDate = c.EndDate
			item.Position = c.Position
			item.PrizeAmount = c.PrizeAmount
		}
		items = append(items, item)
	}
	return items
}
