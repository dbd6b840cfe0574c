package domain

import (
	"errors"
	"time"
)

type RequirementCategory string

const (
	CategoryEligibility RequirementCategory = "ELIGIBILITY"
	CategoryTechnical   RequirementCategory = "TECHNICAL"
	CategoryCompliance  RequirementCategory = "COMPLIANCE"
)

// Categories lists the known buckets in reporting order.
func Categories() []RequirementCategory {
	return []RequirementCategory{CategoryEligibility, CategoryTechnical, CategoryCompliance}
}

func (c RequirementCategory) Valid() bool {
	switch c {
	case CategoryEligibility, CategoryTechnical, CategoryCompliance:
		return true
	default:
		return false
	}
}

// Requirement is one extracted obligation from a tender document. The
// category is extractor-assigned but user-overridable; matching never touches
// it.
type Requirement struct {
	ID              string              `json:"id"`
	DocumentID      string              `json:"document_id"`
	Text            string              `json:"requirement_text"`
	Category        RequirementCategory `json:"category"`
	Subcategory     string              `json:"subcategory,omitempty"`
	ConfidenceScore float64             `json:"confidence_score,omitempty"`
	PageNumber      int                 `json:"page_number,omitempty"`
	ExtractionOrder int                 `json:"extraction_order"`
	CreatedAt       time.Time           `json:"created_at"`
}

// RequirementDraft is an extractor-supplied requirement before admission.
type RequirementDraft struct {
	Text            string              `json:"requirement_text"`
	Category        RequirementCategory `json:"category"`
	Subcategory     string              `json:"subcategory,omitempty"`
	ConfidenceScore float64             `json:"confidence_score,omitempty"`
	PageNumber      int                 `json:"page_number,omitempty"`
	ExtractionOrder int                 `json:"extraction_order"`
}

func (d RequirementDraft) Validate() error {
	if d.Text == "" {
		return WrapError(ErrInvalidInput, "validate requirement", fieldError("requirement_text is empty"))
	}
	if !d.Category.Valid() {
		return WrapError(ErrInvalidInput, "validate requirement", fieldError("unknown category "+string(d.Category)))
	}
	if d.ConfidenceScore < 0 || d.ConfidenceScore > 1 {
		return WrapError(ErrInvalidInput, "validate requirement", fieldError("confidence_score outside [0,1]"))
	}
	return nil
}

func fieldError(msg string) error {
	return errors.New(msg)
}
