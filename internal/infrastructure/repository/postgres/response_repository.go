package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/okarpov/tenderdesk/internal/core/domain"
)

type ResponseRepository struct {
	db *sql.DB
}

func NewResponseRepository(db *sql.DB) *ResponseRepository {
	return &ResponseRepository{db: db}
}

const responseColumns = `id, document_id, requirement_id, response_text, status, version,
	created_by, approved_by, approved_at, created_at, updated_at`

// UpsertDraft inserts the draft unless the (document, requirement) pair
// already has a response. Returns whether a row was created; an existing
// response is left untouched.
func (r *ResponseRepository) UpsertDraft(ctx context.Context, resp *domain.Response) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
INSERT INTO responses (
	id, document_id, requirement_id, response_text, status, version,
	created_by, approved_by, approved_at, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (document_id, requirement_id) DO NOTHING
`,
		resp.ID, resp.DocumentID, resp.RequirementID, resp.Text, string(resp.Status), resp.Version,
		resp.CreatedBy, resp.ApprovedBy, resp.ApprovedAt, resp.CreatedAt, resp.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("upsert response draft: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("upsert rows affected: %w", err)
	}
	return affected == 1, nil
}

func (r *ResponseRepository) GetByID(ctx context.Context, id string) (*domain.Response, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+responseColumns+`
FROM responses
WHERE id = $1
`, id)

	resp, err := scanResponse(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrResponseNotFound, "get response", fmt.Errorf("id %s", id))
		}
		return nil, fmt.Errorf("scan response: %w", err)
	}
	return resp, nil
}

func (r *ResponseRepository) ListByDocument(ctx context.Context, documentID string) ([]domain.Response, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+responseColumns+`
FROM responses
WHERE document_id = $1
ORDER BY created_at
`, documentID)
	if err != nil {
		return nil, fmt.Errorf("query responses: %w", err)
	}
	defer rows.Close()
	return collectResponses(rows)
}

func (r *ResponseRepository) ListByDocumentAndStatus(ctx context.Context, documentID string, status domain.ResponseStatus) ([]domain.Response, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+responseColumns+`
FROM responses
WHERE document_id = $1 AND status = $2
ORDER BY created_at
`, documentID, string(status))
	if err != nil {
		return nil, fmt.Errorf("query responses by status: %w", err)
	}
	defer rows.Close()
	return collectResponses(rows)
}

// UpdateTextCAS rewrites the text only when the stored version still matches.
// The same statement bumps the version and demotes a reviewed or approved
// response back to DRAFT, dropping its approval metadata. EXPORTED rows never
// match the guard.
func (r *ResponseRepository) UpdateTextCAS(ctx context.Context, id, text string, expectedVersion int, now time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
UPDATE responses
SET response_text = $3,
	version = version + 1,
	status = CASE WHEN status IN ($5, $6) THEN $7 ELSE status END,
	approved_by = '',
	approved_at = NULL,
	updated_at = $4
WHERE id = $1 AND version = $2 AND status <> $8
`,
		id, expectedVersion, text, now,
		string(domain.ResponsePendingReview), string(domain.ResponseApproved), string(domain.ResponseDraft),
		string(domain.ResponseExported),
	)
	if err != nil {
		return false, fmt.Errorf("cas response text: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("cas rows affected: %w", err)
	}
	return affected == 1, nil
}

func (r *ResponseRepository) UpdateStatusCAS(ctx context.Context, id string, from, to domain.ResponseStatus, now time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
UPDATE responses
SET status = $3, updated_at = $4
WHERE id = $1 AND status = $2
`, id, string(from), string(to), now)
	if err != nil {
		return false, fmt.Errorf("cas response status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("cas rows affected: %w", err)
	}
	return affected == 1, nil
}

func (r *ResponseRepository) Approve(ctx context.Context, id, approver string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
UPDATE responses
SET status = $3, approved_by = $4, approved_at = $5, updated_at = $5
WHERE id = $1 AND status = $2
`, id, string(domain.ResponsePendingReview), string(domain.ResponseApproved), approver, at)
	if err != nil {
		return false, fmt.Errorf("approve response: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("approve rows affected: %w", err)
	}
	return affected == 1, nil
}

func (r *ResponseRepository) MarkExported(ctx context.Context, documentID string, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
UPDATE responses
SET status = $3, updated_at = $4
WHERE document_id = $1 AND status = $2
`, documentID, string(domain.ResponseApproved), string(domain.ResponseExported), now)
	if err != nil {
		return 0, fmt.Errorf("mark responses exported: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark exported rows affected: %w", err)
	}
	return affected, nil
}

func (r *ResponseRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM responses WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete response: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete rows affected: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrResponseNotFound, "delete response", fmt.Errorf("id %s", id))
	}
	return nil
}

func (r *ResponseRepository) AddComment(ctx context.Context, comment *domain.Comment) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO response_comments (id, response_id, comment_text, created_by, resolved, created_at)
VALUES ($1,$2,$3,$4,$5,$6)
`, comment.ID, comment.ResponseID, comment.Text, comment.CreatedBy, comment.Resolved, comment.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	return nil
}

func (r *ResponseRepository) ListComments(ctx context.Context, responseID string) ([]domain.Comment, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, response_id, comment_text, created_by, resolved, created_at
FROM response_comments
WHERE response_id = $1
ORDER BY created_at
`, responseID)
	if err != nil {
		return nil, fmt.Errorf("query comments: %w", err)
	}
	defer rows.Close()

	var out []domain.Comment
	for rows.Next() {
		var c domain.Comment
		if err := rows.Scan(&c.ID, &c.ResponseID, &c.Text, &c.CreatedBy, &c.Resolved, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comments: %w", err)
	}
	return out, nil
}

func (r *ResponseRepository) GetComment(ctx context.Context, commentID string) (*domain.Comment, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, response_id, comment_text, created_by, resolved, created_at
FROM response_comments
WHERE id = $1
`, commentID)

	var c domain.Comment
	err := row.Scan(&c.ID, &c.ResponseID, &c.Text, &c.CreatedBy, &c.Resolved, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrCommentNotFound, "get comment", fmt.Errorf("id %s", commentID))
		}
		return nil, fmt.Errorf("scan comment: %w", err)
	}
	return &c, nil
}

func (r *ResponseRepository) ResolveComment(ctx context.Context, commentID string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE response_comments SET resolved = TRUE WHERE id = $1`, commentID)
	if err != nil {
		return fmt.Errorf("resolve comment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("resolve rows affected: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrCommentNotFound, "resolve comment", fmt.Errorf("id %s", commentID))
	}
	return nil
}

func collectResponses(rows *sql.Rows) ([]domain.Response, error) {
	var out []domain.Response
	for rows.Next() {
		resp, err := scanResponse(rows)
		if err != nil {
			return nil, fmt.Errorf("scan response: %w", err)
		}
		out = append(out, *resp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate responses: %w", err)
	}
	return out, nil
}

func scanResponse(row rowScanner) (*domain.Response, error) {
	var resp domain.Response
	var status string
	err := row.Scan(
		&resp.ID, &resp.DocumentID, &resp.RequirementID, &resp.Text, &status, &resp.Version,
		&resp.CreatedBy, &resp.ApprovedBy, &resp.ApprovedAt, &resp.CreatedAt, &resp.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	resp.Status = domain.ResponseStatus(status)
	return &resp, nil
}
