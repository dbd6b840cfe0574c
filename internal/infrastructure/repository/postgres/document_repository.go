package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/okarpov/tenderdesk/internal/core/domain"
)

type DocumentRepository struct {
	db *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) Create(ctx context.Context, doc *domain.Document) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO documents (
	id, owner_id, tender_name, filename, file_type, file_size_bytes, page_count,
	storage_path, status, processing_progress, attempt, error_message, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
`,
		doc.ID, doc.OwnerID, doc.TenderName, doc.FileName, doc.FileType, doc.FileSizeBytes, doc.PageCount,
		doc.StoragePath, string(doc.Status), doc.Progress, doc.Attempt, doc.ErrorMessage, doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

const documentColumns = `id, owner_id, tender_name, filename, file_type, file_size_bytes, page_count,
	storage_path, status, processing_progress, attempt, error_message, created_at, updated_at`

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+documentColumns+`
FROM documents
WHERE id = $1
`, id)

	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", fmt.Errorf("id %s", id))
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}
	return doc, nil
}

func (r *DocumentRepository) ListByOwner(ctx context.Context, ownerID string) ([]domain.Document, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+documentColumns+`
FROM documents
WHERE owner_id = $1
ORDER BY created_at DESC
`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var out []domain.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return out, nil
}

// CompareAndSetLifecycle applies the lifecycle transition only when the stored
// state still equals prev. The guarded UPDATE is the single write path for
// status, progress and attempt, which makes out-of-order callbacks lose.
func (r *DocumentRepository) CompareAndSetLifecycle(ctx context.Context, id string, prev, next domain.LifecycleState) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
UPDATE documents
SET status = $5, processing_progress = $6, attempt = $7, error_message = $8, updated_at = $9
WHERE id = $1 AND status = $2 AND processing_progress = $3 AND attempt = $4
`,
		id, string(prev.Status), prev.Progress, prev.Attempt,
		string(next.Status), next.Progress, next.Attempt, next.ErrorMessage, time.Now().UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("cas document lifecycle: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("cas rows affected: %w", err)
	}
	return affected == 1, nil
}

func (r *DocumentRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete rows affected: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrDocumentNotFound, "delete document", fmt.Errorf("id %s", id))
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*domain.Document, error) {
	var doc domain.Document
	var status string
	err := row.Scan(
		&doc.ID, &doc.OwnerID, &doc.TenderName, &doc.FileName, &doc.FileType, &doc.FileSizeBytes, &doc.PageCount,
		&doc.StoragePath, &status, &doc.Progress, &doc.Attempt, &doc.ErrorMessage, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	doc.Status = domain.DocumentStatus(status)
	return &doc, nil
}
