package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/okarpov/tenderdesk/internal/core/domain"
	"github.com/okarpov/tenderdesk/internal/core/ports"
)

// LifecycleUseCase owns the document status state machine. All lifecycle
// writes are compare-and-set updates so out-of-order or duplicate callbacks
// from the external pipeline are dropped instead of corrupting state.
type LifecycleUseCase struct {
	docs  ports.DocumentRepository
	queue ports.TaskQueue
}

func NewLifecycleUseCase(docs ports.DocumentRepository, queue ports.TaskQueue) *LifecycleUseCase {
	return &LifecycleUseCase{docs: docs, queue: queue}
}

// RequestProcessing transitions UPLOADED (or ERROR, which implies a retry) to
// PARSING and hands the document to the worker.
func (uc *LifecycleUseCase) RequestProcessing(ctx context.Context, actor domain.Actor, documentID string) (*domain.Document, error) {
	doc, err := loadOwnedDocument(ctx, uc.docs, actor, documentID)
	if err != nil {
		return nil, err
	}

	prev := doc.Lifecycle()
	next := domain.LifecycleState{Status: domain.StatusParsing, Progress: 0, Attempt: doc.Attempt}
	switch doc.Status {
	case domain.StatusUploaded:
	case domain.StatusError:
		// Starting over from ERROR is a retry: a fresh attempt with the
		// failure cleared.
		next.Attempt = doc.Attempt + 1
	default:
		return nil, domain.WrapError(domain.ErrInvalidState, "request processing",
			fmt.Errorf("document %s is %s", documentID, doc.Status))
	}

	return uc.start(ctx, documentID, prev, next)
}

// Retry is valid only from ERROR: it clears the failure, resets progress,
// returns the document to UPLOADED and re-requests processing.
func (uc *LifecycleUseCase) Retry(ctx context.Context, actor domain.Actor, documentID string) (*domain.Document, error) {
	doc, err := loadOwnedDocument(ctx, uc.docs, actor, documentID)
	if err != nil {
		return nil, err
	}
	if doc.Status != domain.StatusError {
		return nil, domain.WrapError(domain.ErrInvalidState, "retry document",
			fmt.Errorf("document %s is %s, retry requires %s", documentID, doc.Status, domain.StatusError))
	}

	reset := domain.LifecycleState{Status: domain.StatusUploaded, Progress: 0, Attempt: doc.Attempt + 1}
	applied, err := uc.docs.CompareAndSetLifecycle(ctx, documentID, doc.Lifecycle(), reset)
	if err != nil {
		return nil, fmt.Errorf("reset document lifecycle: %w", err)
	}
	if !applied {
		return nil, domain.WrapError(domain.ErrInvalidState, "retry document",
			fmt.Errorf("document %s changed concurrently", documentID))
	}

	next := domain.LifecycleState{Status: domain.StatusParsing, Progress: 0, Attempt: reset.Attempt}
	return uc.start(ctx, documentID, reset, next)
}

func (uc *LifecycleUseCase) start(ctx context.Context, documentID string, prev, next domain.LifecycleState) (*domain.Document, error) {
	applied, err := uc.docs.CompareAndSetLifecycle(ctx, documentID, prev, next)
	if err != nil {
		return nil, fmt.Errorf("start document processing: %w", err)
	}
	if !applied {
		return nil, domain.WrapError(domain.ErrInvalidState, "request processing",
			fmt.Errorf("document %s changed concurrently", documentID))
	}

	if err := uc.queue.PublishDocumentProcess(ctx, domain.ProcessTask{DocumentID: documentID, Attempt: next.Attempt}); err != nil {
		// Roll the transition back so the document can be re-requested.
		if reverted, revertErr := uc.docs.CompareAndSetLifecycle(ctx, documentID, next, prev); revertErr != nil || !reverted {
			slog.Error("lifecycle_revert_failed", "document_id", documentID, "error", revertErr)
		}
		return nil, fmt.Errorf("publish process task: %w", err)
	}

	slog.Info("document_processing_requested", "document_id", documentID, "attempt", next.Attempt)

	doc, err := uc.docs.GetByID(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("reload document: %w", err)
	}
	return doc, nil
}

// ReportProgress applies one pipeline callback. Updates that would move the
// state machine backwards, repeat a delivered update, or belong to a
// superseded attempt fail with ErrStaleUpdate; callers log and drop those
// rather than surfacing them, to tolerate at-least-once delivery.
func (uc *LifecycleUseCase) ReportProgress(ctx context.Context, documentID string, update domain.ProgressUpdate) error {
	if !update.Status.Valid() {
		return domain.WrapError(domain.ErrInvalidInput, "report progress",
			fmt.Errorf("unknown status %q", update.Status))
	}
	if update.Progress < 0 || update.Progress > 100 {
		return domain.WrapError(domain.ErrInvalidInput, "report progress",
			fmt.Errorf("progress %d outside [0,100]", update.Progress))
	}
	if update.Status == domain.StatusError && update.ErrorMessage == "" {
		return domain.WrapError(domain.ErrInvalidInput, "report progress",
			fmt.Errorf("status %s requires an error message", domain.StatusError))
	}

	doc, err := uc.docs.GetByID(ctx, documentID)
	if err != nil {
		return err
	}

	if update.Attempt != doc.Attempt {
		return stalef("attempt %d superseded by %d", update.Attempt, doc.Attempt)
	}
	if doc.Status.Terminal() {
		return stalef("document already %s", doc.Status)
	}

	next := domain.LifecycleState{Attempt: doc.Attempt}
	if update.Status == domain.StatusError {
		// A failure report pins the progress where the pipeline stopped.
		next.Status = domain.StatusError
		next.Progress = doc.Progress
		next.ErrorMessage = update.ErrorMessage
	} else {
		newRank, _ := update.Status.Rank()
		curRank, _ := doc.Status.Rank()
		switch {
		case newRank < curRank:
			return stalef("status %s would regress %s", update.Status, doc.Status)
		case newRank == curRank && update.Progress <= doc.Progress:
			return stalef("progress %d does not advance %d in %s", update.Progress, doc.Progress, doc.Status)
		case update.Progress < doc.Progress:
			return stalef("progress %d below stored %d", update.Progress, doc.Progress)
		}
		next.Status = update.Status
		next.Progress = update.Progress
	}

	applied, err := uc.docs.CompareAndSetLifecycle(ctx, documentID, doc.Lifecycle(), next)
	if err != nil {
		return fmt.Errorf("apply progress update: %w", err)
	}
	if !applied {
		return stalef("document %s changed concurrently", documentID)
	}

	slog.Info("document_progress",
		"document_id", documentID,
		"status", next.Status,
		"progress", next.Progress,
		"attempt", next.Attempt,
	)
	return nil
}

func stalef(format string, args ...any) error {
	return domain.WrapError(domain.ErrStaleUpdate, "report progress", fmt.Errorf(format, args...))
}
