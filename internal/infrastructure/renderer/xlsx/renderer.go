package xlsx

import (
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/okarpov/tenderdesk/internal/core/domain"
)

// Renderer writes the proposal as a two-sheet workbook: a compliance matrix
// of requirements against their approved responses, and a summary sheet with
// the category scores.
type Renderer struct{}

func New() *Renderer { return &Renderer{} }

func (r *Renderer) Format() string { return "xlsx" }

const (
	matrixSheet  = "Compliance Matrix"
	summarySheet = "Summary"
)

func (r *Renderer) Render(_ context.Context, proposal domain.Proposal) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := r.writeMatrix(f, proposal); err != nil {
		return nil, err
	}
	if err := r.writeSummary(f, proposal); err != nil {
		return nil, err
	}

	// The default sheet excelize creates on NewFile.
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("delete default sheet: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("serialize workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *Renderer) writeMatrix(f *excelize.File, proposal domain.Proposal) error {
	if _, err := f.NewSheet(matrixSheet); err != nil {
		return fmt.Errorf("create matrix sheet: %w", err)
	}

	responsesByRequirement := make(map[string]domain.Response, len(proposal.Responses))
	for _, resp := range proposal.Responses {
		responsesByRequirement[resp.RequirementID] = resp
	}

	header := []any{"#", "Category", "Requirement", "Page", "Response", "Response Status"}
	if err := f.SetSheetRow(matrixSheet, "A1", &header); err != nil {
		return fmt.Errorf("write matrix header: %w", err)
	}

	for i, req := range proposal.Requirements {
		resp, ok := responsesByRequirement[req.ID]
		responseText := ""
		responseStatus := ""
		if ok {
			responseText = resp.Text
			responseStatus = string(resp.Status)
		}
		row := []any{i + 1, string(req.Category), req.Text, req.PageNumber, responseText, responseStatus}
		cell := fmt.Sprintf("A%d", i+2)
		if err := f.SetSheetRow(matrixSheet, cell, &row); err != nil {
			return fmt.Errorf("write matrix row %d: %w", i+1, err)
		}
	}

	if err := f.SetColWidth(matrixSheet, "C", "C", 60); err != nil {
		return fmt.Errorf("size requirement column: %w", err)
	}
	if err := f.SetColWidth(matrixSheet, "E", "E", 60); err != nil {
		return fmt.Errorf("size response column: %w", err)
	}
	return nil
}

func (r *Renderer) writeSummary(f *excelize.File, proposal domain.Proposal) error {
	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("create summary sheet: %w", err)
	}

	title := proposal.TenderName
	if title == "" {
		title = proposal.DocumentID
	}
	rows := [][]any{
		{"Tender", title},
		{"Company", proposal.Company.Name},
		{"Generated", time.Now().UTC().Format(time.RFC3339)},
		{},
	}
	if s := proposal.Summary; s != nil {
		rows = append(rows,
			[]any{"Total requirements", s.TotalRequirements},
			[]any{"Matched requirements", s.MatchedRequirements},
			[]any{"Eligibility match", scoreCell(s.EligibilityMatch)},
			[]any{"Technical match", scoreCell(s.TechnicalMatch)},
			[]any{"Compliance match", scoreCell(s.ComplianceMatch)},
			[]any{"Overall match", scoreCell(s.OverallMatch)},
		)
	}
	if proposal.Company.Email != "" {
		rows = append(rows, []any{}, []any{"Contact", proposal.Company.Email})
	}

	for i := range rows {
		cell := fmt.Sprintf("A%d", i+1)
		if err := f.SetSheetRow(summarySheet, cell, &rows[i]); err != nil {
			return fmt.Errorf("write summary row %d: %w", i+1, err)
		}
	}
	return nil
}

func scoreCell(v *float64) any {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.1f%%", *v)
}
