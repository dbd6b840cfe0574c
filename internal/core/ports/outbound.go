package ports

import (
	"context"
	"io"
	"time"

	"github.com/okarpov/tenderdesk/internal/core/domain"
)

// DocumentRepository persists document state. Lifecycle writes go through a
// compare-and-set so concurrent progress callbacks cannot interleave.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	ListByOwner(ctx context.Context, ownerID string) ([]domain.Document, error)
	// CompareAndSetLifecycle applies next only if the stored status, progress
	// and attempt still equal prev. Returns false when the guard failed.
	CompareAndSetLifecycle(ctx context.Context, id string, prev, next domain.LifecycleState) (bool, error)
	Delete(ctx context.Context, id string) error
}

// RequirementRepository owns extracted requirements.
type RequirementRepository interface {
	ReplaceForDocument(ctx context.Context, documentID string, reqs []domain.Requirement) error
	ListByDocument(ctx context.Context, documentID string) ([]domain.Requirement, error)
	ListByIDs(ctx context.Context, documentID string, ids []string) ([]domain.Requirement, error)
	GetByID(ctx context.Context, id string) (*domain.Requirement, error)
	UpdateCategory(ctx context.Context, id string, category domain.RequirementCategory) error
}

// MatchRepository owns match results and the derived per-document summary.
type MatchRepository interface {
	ReplaceForRequirements(ctx context.Context, documentID string, results []domain.MatchResult) error
	ListByDocument(ctx context.Context, documentID string) ([]domain.MatchResult, error)
	UpsertSummary(ctx context.Context, summary domain.MatchSummary) error
	GetSummary(ctx context.Context, documentID string) (*domain.MatchSummary, error)
}

// ResponseRepository owns responses and their comments.
type ResponseRepository interface {
	// UpsertDraft inserts a v1 DRAFT keyed by (document, requirement); it
	// reports false and leaves the row untouched when one already exists.
	UpsertDraft(ctx context.Context, resp *domain.Response) (bool, error)
	GetByID(ctx context.Context, id string) (*domain.Response, error)
	ListByDocument(ctx context.Context, documentID string) ([]domain.Response, error)
	ListByDocumentAndStatus(ctx context.Context, documentID string, status domain.ResponseStatus) ([]domain.Response, error)
	// UpdateTextCAS rewrites the text if the stored version still equals
	// expectedVersion, bumping the version and demoting PENDING_REVIEW or
	// APPROVED back to DRAFT. Returns false on version mismatch.
	UpdateTextCAS(ctx context.Context, id, text string, expectedVersion int, now time.Time) (bool, error)
	UpdateStatusCAS(ctx context.Context, id string, from, to domain.ResponseStatus, now time.Time) (bool, error)
	Approve(ctx context.Context, id, approver string, at time.Time) (bool, error)
	MarkExported(ctx context.Context, documentID string, now time.Time) (int64, error)
	Delete(ctx context.Context, id string) error

	AddComment(ctx context.Context, comment *domain.Comment) error
	ListComments(ctx context.Context, responseID string) ([]domain.Comment, error)
	GetComment(ctx context.Context, commentID string) (*domain.Comment, error)
	ResolveComment(ctx context.Context, commentID string) error
}

// ExportRepository records generated artifacts keyed for idempotent re-runs.
type ExportRepository interface {
	// FindByKey returns (nil, nil) when no artifact exists for the key.
	FindByKey(ctx context.Context, exportKey string) (*domain.ExportRecord, error)
	Create(ctx context.Context, rec *domain.ExportRecord) error
	ListByDocument(ctx context.Context, documentID string) ([]domain.ExportRecord, error)
}

// ObjectStorage stores source documents and export artifacts.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// TaskQueue carries pipeline and generation tasks between api and worker.
type TaskQueue interface {
	PublishDocumentProcess(ctx context.Context, task domain.ProcessTask) error
	SubscribeDocumentProcess(ctx context.Context, handler func(context.Context, domain.ProcessTask) error) error
	PublishResponseGenerate(ctx context.Context, task domain.GenerateTask) error
	SubscribeResponseGenerate(ctx context.Context, handler func(context.Context, domain.GenerateTask) error) error
}

// Analyzer is the external processing service: parsing, requirement
// extraction, knowledge-base matching and response composition.
type Analyzer interface {
	Parse(ctx context.Context, fileName string, file io.Reader) (domain.ParsedDocument, error)
	ExtractRequirements(ctx context.Context, parsed domain.ParsedDocument) ([]domain.RequirementDraft, error)
	MatchRequirements(ctx context.Context, reqs []domain.Requirement) ([]domain.MatchDraft, error)
	Compose(ctx context.Context, req domain.Requirement, matches []domain.MatchResult, opts domain.ComposeOptions) (string, error)
}

// Renderer assembles the final proposal artifact.
type Renderer interface {
	Render(ctx context.Context, proposal domain.Proposal) ([]byte, error)
	Format() string
}

// TokenProvider exposes the bearer token for outbound calls. Callers must
// read it at call time and never cache it across suspension points.
type TokenProvider interface {
	CurrentToken(ctx context.Context) (string, error)
}

// TokenWatcher lets interested parties observe token refreshes with an
// explicit unsubscribe lifecycle.
type TokenWatcher interface {
	Subscribe(fn func(token string)) (unsubscribe func())
}
