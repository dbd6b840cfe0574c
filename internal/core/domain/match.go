package domain

import "time"

// MatchResult links one requirement to a knowledge-base item with a computed
// similarity. Results are immutable once written; a re-run replaces the whole
// set for a requirement under a fresh ComputedAt.
type MatchResult struct {
	ID              string    `json:"id"`
	DocumentID      string    `json:"document_id"`
	RequirementID   string    `json:"requirement_id"`
	KBItemID        string    `json:"kb_item_id,omitempty"`
	MatchPercentage float64   `json:"match_percentage"`
	MatchedContent  string    `json:"matched_content,omitempty"`
	Rank            *int      `json:"rank,omitempty"`
	ComputedAt      time.Time `json:"computed_at"`
}

// MatchDraft is a matcher-supplied result before it is admitted into storage.
type MatchDraft struct {
	RequirementID   string  `json:"requirement_id"`
	KBItemID        string  `json:"kb_item_id,omitempty"`
	MatchPercentage float64 `json:"match_percentage"`
	MatchedContent  string  `json:"matched_content,omitempty"`
	Rank            *int    `json:"rank,omitempty"`
}

func (d MatchDraft) Validate() error {
	if d.RequirementID == "" {
		return WrapError(ErrInvalidInput, "validate match", fieldError("requirement_id is empty"))
	}
	if d.MatchPercentage < 0 || d.MatchPercentage > 100 {
		return WrapError(ErrInvalidInput, "validate match", fieldError("match_percentage outside [0,100]"))
	}
	if d.Rank != nil && *d.Rank < 1 {
		return WrapError(ErrInvalidInput, "validate match", fieldError("rank must be >= 1"))
	}
	return nil
}

// MatchSummary is the derived per-document aggregate. Category and overall
// scores are nil until at least one requirement exists. It is never written
// directly; Recompute owns it.
type MatchSummary struct {
	DocumentID          string    `json:"document_id"`
	EligibilityMatch    *float64  `json:"eligibility_match"`
	TechnicalMatch      *float64  `json:"technical_match"`
	ComplianceMatch     *float64  `json:"compliance_match"`
	OverallMatch        *float64  `json:"overall_match"`
	TotalRequirements   int       `json:"total_requirements"`
	MatchedRequirements int       `json:"matched_requirements"`
	ComputedAt          time.Time `json:"computed_at"`
}

// CategoryBreakdown reports total/matched counts for one category.
type CategoryBreakdown struct {
	Total   int `json:"total"`
	Matched int `json:"matched"`
}

// MatchReport is the read model for the match-summary endpoint: the stored
// summary plus per-category counts and per-requirement best matches.
type MatchReport struct {
	DocumentID   string                                    `json:"document_id"`
	TenderName   string                                    `json:"tender_name"`
	Summary      MatchSummary                              `json:"summary"`
	Breakdown    map[RequirementCategory]CategoryBreakdown `json:"breakdown"`
	Requirements []RequirementWithMatch                    `json:"requirements"`
}

// RequirementWithMatch annotates a requirement with its best match.
type RequirementWithMatch struct {
	Requirement
	MatchPercentage float64 `json:"match_percentage"`
	MatchedContent  string  `json:"matched_content,omitempty"`
}
