package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/okarpov/tenderdesk/internal/core/domain"
)

type ExportRepository struct {
	db *sql.DB
}

func NewExportRepository(db *sql.DB) *ExportRepository {
	return &ExportRepository{db: db}
}

// FindByKey returns nil without error when no artifact was recorded under the
// key; absence is an expected outcome, not a failure.
func (r *ExportRepository) FindByKey(ctx context.Context, exportKey string) (*domain.ExportRecord, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, document_id, export_key, format, file_path, exported_by, created_at
FROM exports
WHERE export_key = $1
`, exportKey)

	var rec domain.ExportRecord
	err := row.Scan(&rec.ID, &rec.DocumentID, &rec.ExportKey, &rec.Format, &rec.FilePath, &rec.ExportedBy, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan export record: %w", err)
	}
	return &rec, nil
}

func (r *ExportRepository) Create(ctx context.Context, rec *domain.ExportRecord) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO exports (id, document_id, export_key, format, file_path, exported_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`, rec.ID, rec.DocumentID, rec.ExportKey, rec.Format, rec.FilePath, rec.ExportedBy, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert export record: %w", err)
	}
	return nil
}

func (r *ExportRepository) ListByDocument(ctx context.Context, documentID string) ([]domain.ExportRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, document_id, export_key, format, file_path, exported_by, created_at
FROM exports
WHERE document_id = $1
ORDER BY created_at DESC
`, documentID)
	if err != nil {
		return nil, fmt.Errorf("query export records: %w", err)
	}
	defer rows.Close()

	var out []domain.ExportRecord
	for rows.Next() {
		var rec domain.ExportRecord
		if err := rows.Scan(&rec.ID, &rec.DocumentID, &rec.ExportKey, &rec.Format, &rec.FilePath, &rec.ExportedBy, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan export record: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate export records: %w", err)
	}
	return out, nil
}
