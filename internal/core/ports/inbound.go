package ports

import (
	"context"
	"io"

	"github.com/okarpov/tenderdesk/internal/core/domain"
)

// DocumentUploader is the inbound contract for document upload.
type DocumentUploader interface {
	Upload(ctx context.Context, actor domain.Actor, fileName, tenderName string, size int64, body io.Reader) (*domain.Document, error)
}

// DocumentLifecycle owns the document status state machine.
type DocumentLifecycle interface {
	RequestProcessing(ctx context.Context, actor domain.Actor, documentID string) (*domain.Document, error)
	ReportProgress(ctx context.Context, documentID string, update domain.ProgressUpdate) error
	Retry(ctx context.Context, actor domain.Actor, documentID string) (*domain.Document, error)
}

// PipelineRunner is the worker-side contract that drives one processing
// attempt end to end.
type PipelineRunner interface {
	Run(ctx context.Context, task domain.ProcessTask) error
}

// RequirementCatalog owns extracted requirements and their categorization.
type RequirementCatalog interface {
	Ingest(ctx context.Context, documentID string, drafts []domain.RequirementDraft) ([]domain.Requirement, error)
	Recategorize(ctx context.Context, actor domain.Actor, requirementID string, category domain.RequirementCategory) (*domain.Requirement, error)
	List(ctx context.Context, actor domain.Actor, documentID string) ([]domain.Requirement, error)
}

// MatchAggregator ingests match results and derives the per-document summary.
type MatchAggregator interface {
	IngestMatches(ctx context.Context, documentID string, drafts []domain.MatchDraft) error
	Recompute(ctx context.Context, documentID string) (*domain.MatchSummary, error)
	Report(ctx context.Context, actor domain.Actor, documentID string) (*domain.MatchReport, error)
	ListMatches(ctx context.Context, actor domain.Actor, documentID string) ([]domain.MatchResult, error)
}

// ResponseWorkflow owns responses through drafting, review and approval.
type ResponseWorkflow interface {
	RequestGeneration(ctx context.Context, actor domain.Actor, documentID string, requirementIDs []string, opts domain.ComposeOptions) (int, error)
	Generate(ctx context.Context, task domain.GenerateTask) error
	List(ctx context.Context, actor domain.Actor, documentID string) ([]domain.Response, error)
	Edit(ctx context.Context, actor domain.Actor, responseID, text string, expectedVersion int) (*domain.Response, error)
	SubmitForReview(ctx context.Context, actor domain.Actor, responseID string) (*domain.Response, error)
	Approve(ctx context.Context, actor domain.Actor, responseID string) (*domain.Response, error)
	Delete(ctx context.Context, actor domain.Actor, responseID string) error
	AddComment(ctx context.Context, actor domain.Actor, responseID, text string) (*domain.Comment, error)
	ListComments(ctx context.Context, actor domain.Actor, responseID string) ([]domain.Comment, error)
	ResolveComment(ctx context.Context, actor domain.Actor, commentID string) (*domain.Comment, error)
}

// ExportCoordinator assembles approved responses into an artifact.
type ExportCoordinator interface {
	ExportDocument(ctx context.Context, actor domain.Actor, documentID string) (*domain.ExportRecord, io.ReadCloser, error)
}

// DocumentReader is the inbound read model for document metadata and state.
type DocumentReader interface {
	GetByID(ctx context.Context, actor domain.Actor, id string) (*domain.Document, error)
	List(ctx context.Context, actor domain.Actor) ([]domain.Document, error)
	Delete(ctx context.Context, actor domain.Actor, id string) error
}
