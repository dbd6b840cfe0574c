package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/okarpov/tenderdesk/internal/core/domain"
)

type MatchRepository struct {
	db *sql.DB
}

func NewMatchRepository(db *sql.DB) *MatchRepository {
	return &MatchRepository{db: db}
}

// ReplaceForRequirements deletes the old results of every requirement the
// batch touches and inserts the new set, in one transaction. Requirements
// outside the batch keep their results.
func (r *MatchRepository) ReplaceForRequirements(ctx context.Context, documentID string, results []domain.MatchResult) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	touched := make(map[string]bool)
	for _, res := range results {
		touched[res.RequirementID] = true
	}
	ids := make([]string, 0, len(touched))
	for id := range touched {
		ids = append(ids, id)
	}
	if len(ids) > 0 {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM match_results WHERE document_id = $1 AND requirement_id = ANY($2)`,
			documentID, ids,
		); err != nil {
			return fmt.Errorf("delete old match results: %w", err)
		}
	}

	for _, res := range results {
		_, err := tx.ExecContext(ctx, `
INSERT INTO match_results (
	id, document_id, requirement_id, kb_item_id, match_percentage, matched_content, rank, computed_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
`,
			res.ID, res.DocumentID, res.RequirementID, res.KBItemID,
			res.MatchPercentage, res.MatchedContent, res.Rank, res.ComputedAt,
		)
		if err != nil {
			return fmt.Errorf("insert match result: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace tx: %w", err)
	}
	return nil
}

func (r *MatchRepository) ListByDocument(ctx context.Context, documentID string) ([]domain.MatchResult, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, document_id, requirement_id, kb_item_id, match_percentage, matched_content, rank, computed_at
FROM match_results
WHERE document_id = $1
ORDER BY requirement_id, rank NULLS LAST
`, documentID)
	if err != nil {
		return nil, fmt.Errorf("query match results: %w", err)
	}
	defer rows.Close()

	var out []domain.MatchResult
	for rows.Next() {
		var res domain.MatchResult
		err := rows.Scan(
			&res.ID, &res.DocumentID, &res.RequirementID, &res.KBItemID,
			&res.MatchPercentage, &res.MatchedContent, &res.Rank, &res.ComputedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan match result: %w", err)
		}
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate match results: %w", err)
	}
	return out, nil
}

func (r *MatchRepository) UpsertSummary(ctx context.Context, summary domain.MatchSummary) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO match_summaries (
	document_id, eligibility_match, technical_match, compliance_match, overall_match,
	total_requirements, matched_requirements, computed_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (document_id) DO UPDATE SET
	eligibility_match = EXCLUDED.eligibility_match,
	technical_match = EXCLUDED.technical_match,
	compliance_match = EXCLUDED.compliance_match,
	overall_match = EXCLUDED.overall_match,
	total_requirements = EXCLUDED.total_requirements,
	matched_requirements = EXCLUDED.matched_requirements,
	computed_at = EXCLUDED.computed_at
`,
		summary.DocumentID, summary.EligibilityMatch, summary.TechnicalMatch, summary.ComplianceMatch,
		summary.OverallMatch, summary.TotalRequirements, summary.MatchedRequirements, summary.ComputedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert match summary: %w", err)
	}
	return nil
}

func (r *MatchRepository) GetSummary(ctx context.Context, documentID string) (*domain.MatchSummary, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT document_id, eligibility_match, technical_match, compliance_match, overall_match,
	total_requirements, matched_requirements, computed_at
FROM match_summaries
WHERE document_id = $1
`, documentID)

	var summary domain.MatchSummary
	err := row.Scan(
		&summary.DocumentID, &summary.EligibilityMatch, &summary.TechnicalMatch, &summary.ComplianceMatch,
		&summary.OverallMatch, &summary.TotalRequirements, &summary.MatchedRequirements, &summary.ComputedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan match summary: %w", err)
	}
	return &summary, nil
}
