package xlsx

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/okarpov/tenderdesk/internal/core/domain"
)

func TestRenderProducesComplianceMatrix(t *testing.T) {
	overall := 72.5
	approvedAt := time.Now().UTC()
	proposal := domain.Proposal{
		DocumentID: "doc-1",
		TenderName: "City Hall Renovation",
		Company:    domain.CompanyProfile{Name: "Acme Integrations", Email: "bids@acme.example"},
		Requirements: []domain.Requirement{
			{ID: "req-1", Category: domain.CategoryEligibility, Text: "5 years of experience", PageNumber: 3},
			{ID: "req-2", Category: domain.CategoryTechnical, Text: "ISO 27001", PageNumber: 7},
		},
		Responses: []domain.Response{
			{ID: "resp-1", RequirementID: "req-1", Text: "We have 11 years of experience.",
				Status: domain.ResponseApproved, ApprovedAt: &approvedAt},
		},
		Summary: &domain.MatchSummary{
			TotalRequirements:   2,
			MatchedRequirements: 1,
			OverallMatch:        &overall,
		},
	}

	data, err := New().Render(context.Background(), proposal)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("open rendered workbook: %v", err)
	}
	defer f.Close()

	got, err := f.GetCellValue("Compliance Matrix", "C2")
	if err != nil {
		t.Fatalf("read matrix cell: %v", err)
	}
	if got != "5 years of experience" {
		t.Errorf("C2 = %q", got)
	}
	got, err = f.GetCellValue("Compliance Matrix", "E2")
	if err != nil {
		t.Fatalf("read response cell: %v", err)
	}
	if got != "We have 11 years of experience." {
		t.Errorf("E2 = %q", got)
	}
	got, err = f.GetCellValue("Compliance Matrix", "E3")
	if err != nil {
		t.Fatalf("read empty response cell: %v", err)
	}
	if got != "" {
		t.Errorf("E3 = %q, want empty for a requirement without a response", got)
	}

	title, err := f.GetCellValue("Summary", "B1")
	if err != nil {
		t.Fatalf("read summary cell: %v", err)
	}
	if title != "City Hall Renovation" {
		t.Errorf("summary title = %q", title)
	}
}

func TestFormat(t *testing.T) {
	if got := New().Format(); got != "xlsx" {
		t.Fatalf("Format() = %q", got)
	}
}
