package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/okarpov/tenderdesk/internal/core/domain"
)

type RequirementRepository struct {
	db *sql.DB
}

func NewRequirementRepository(db *sql.DB) *RequirementRepository {
	return &RequirementRepository{db: db}
}

const requirementColumns = `id, document_id, requirement_text, category, subcategory,
	confidence_score, page_number, extraction_order, created_at`

// ReplaceForDocument swaps the document's requirement set in one transaction.
// Dependent match results and responses go with the old set via FK cascade.
func (r *RequirementRepository) ReplaceForDocument(ctx context.Context, documentID string, reqs []domain.Requirement) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM requirements WHERE document_id = $1`, documentID); err != nil {
		return fmt.Errorf("delete old requirements: %w", err)
	}

	for _, req := range reqs {
		_, err := tx.ExecContext(ctx, `
INSERT INTO requirements (
	id, document_id, requirement_text, category, subcategory,
	confidence_score, page_number, extraction_order, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
`,
			req.ID, req.DocumentID, req.Text, string(req.Category), req.Subcategory,
			req.ConfidenceScore, req.PageNumber, req.ExtractionOrder, req.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert requirement: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace tx: %w", err)
	}
	return nil
}

func (r *RequirementRepository) ListByDocument(ctx context.Context, documentID string) ([]domain.Requirement, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+requirementColumns+`
FROM requirements
WHERE document_id = $1
ORDER BY extraction_order, created_at
`, documentID)
	if err != nil {
		return nil, fmt.Errorf("query requirements: %w", err)
	}
	defer rows.Close()
	return collectRequirements(rows)
}

func (r *RequirementRepository) ListByIDs(ctx context.Context, documentID string, ids []string) ([]domain.Requirement, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT `+requirementColumns+`
FROM requirements
WHERE document_id = $1 AND id = ANY($2)
ORDER BY extraction_order, created_at
`, documentID, ids)
	if err != nil {
		return nil, fmt.Errorf("query requirements by ids: %w", err)
	}
	defer rows.Close()
	return collectRequirements(rows)
}

func (r *RequirementRepository) GetByID(ctx context.Context, id string) (*domain.Requirement, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+requirementColumns+`
FROM requirements
WHERE id = $1
`, id)

	req, err := scanRequirement(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrRequirementNotFound, "get requirement", fmt.Errorf("id %s", id))
		}
		return nil, fmt.Errorf("scan requirement: %w", err)
	}
	return req, nil
}

func (r *RequirementRepository) UpdateCategory(ctx context.Context, id string, category domain.RequirementCategory) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE requirements
SET category = $2
WHERE id = $1
`, id, string(category))
	if err != nil {
		return fmt.Errorf("update requirement category: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update rows affected: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrRequirementNotFound, "update requirement category", fmt.Errorf("id %s", id))
	}
	return nil
}

func collectRequirements(rows *sql.Rows) ([]domain.Requirement, error) {
	var out []domain.Requirement
	for rows.Next() {
		req, err := scanRequirement(rows)
		if err != nil {
			return nil, fmt.Errorf("scan requirement: %w", err)
		}
		out = append(out, *req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate requirements: %w", err)
	}
	return out, nil
}

func scanRequirement(row rowScanner) (*domain.Requirement, error) {
	var req domain.Requirement
	var category string
	err := row.Scan(
		&req.ID, &req.DocumentID, &req.Text, &category, &req.Subcategory,
		&req.ConfidenceScore, &req.PageNumber, &req.ExtractionOrder, &req.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	req.Category = domain.RequirementCategory(category)
	return &req, nil
}
