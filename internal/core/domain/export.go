package domain

import (
	"fmt"
	"time"
)

// ExportRecord tracks one generated proposal artifact. ExportKey makes the
// renderer call idempotent: re-running an export for the same approval set
// reuses the recorded artifact instead of producing a second one.
type ExportRecord struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	ExportKey  string    `json:"export_key"`
	Format     string    `json:"format"`
	FilePath   string    `json:"file_path"`
	ExportedBy string    `json:"exported_by"`
	CreatedAt  time.Time `json:"created_at"`
}

// ExportKey derives the deterministic artifact key from the document and the
// latest approval timestamp of the responses being exported.
func ExportKey(documentID string, latestApproval time.Time) string {
	return fmt.Sprintf("%s:%d", documentID, latestApproval.UTC().UnixNano())
}

// Proposal is everything the renderer needs to assemble the final artifact.
type Proposal struct {
	DocumentID   string
	TenderName   string
	Company      CompanyProfile
	Requirements []Requirement
	Responses    []Response
	Summary      *MatchSummary
}

// CompanyProfile is the branding block stamped onto exported proposals.
type CompanyProfile struct {
	Name    string `yaml:"name" json:"name"`
	Tagline string `yaml:"tagline" json:"tagline,omitempty"`
	Address string `yaml:"address" json:"address,omitempty"`
	Phone   string `yaml:"phone" json:"phone,omitempty"`
	Email   string `yaml:"email" json:"email,omitempty"`
	Website string `yaml:"website" json:"website,omitempty"`
}
