package domain

import "time"

type ResponseStatus string

const (
	ResponseDraft         ResponseStatus = "DRAFT"
	ResponsePendingReview ResponseStatus = "PENDING_REVIEW"
	ResponseApproved      ResponseStatus = "APPROVED"
	ResponseExported      ResponseStatus = "EXPORTED"
)

func (s ResponseStatus) Valid() bool {
	switch s {
	case ResponseDraft, ResponsePendingReview, ResponseApproved, ResponseExported:
		return true
	default:
		return false
	}
}

// Response is a drafted answer to one requirement. Version starts at 1 and
// increments by exactly one per successful edit.
type Response struct {
	ID            string         `json:"id"`
	DocumentID    string         `json:"document_id"`
	RequirementID string         `json:"requirement_id,omitempty"`
	Text          string         `json:"response_text"`
	Status        ResponseStatus `json:"status"`
	Version       int            `json:"version"`
	CreatedBy     string         `json:"created_by,omitempty"`
	ApprovedBy    string         `json:"approved_by,omitempty"`
	ApprovedAt    *time.Time     `json:"approved_at,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// Comment is threaded reviewer feedback on a response. Comments live outside
// the response state machine and may exist in any state.
type Comment struct {
	ID         string    `json:"id"`
	ResponseID string    `json:"response_id"`
	Text       string    `json:"comment_text"`
	CreatedBy  string    `json:"created_by"`
	Resolved   bool      `json:"resolved"`
	CreatedAt  time.Time `json:"created_at"`
}

// ComposeOptions steer the external composer when drafting responses.
type ComposeOptions struct {
	Style string `json:"style,omitempty"`
	Mode  string `json:"mode,omitempty"`
	Tone  string `json:"tone,omitempty"`
}
