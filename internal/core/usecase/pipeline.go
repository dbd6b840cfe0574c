package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/okarpov/tenderdesk/internal/core/domain"
	"github.com/okarpov/tenderdesk/internal/core/ports"
)

// errAttemptSuperseded aborts a pipeline run whose attempt was replaced by a
// retry. The run is discarded quietly per the callback ordering rules.
var errAttemptSuperseded = errors.New("processing attempt superseded")

// PipelineUseCase drives one processing attempt end to end: parse, extract,
// match, summarize. Every stage reports through the lifecycle guard, so a
// concurrent retry silently invalidates the rest of the run.
type PipelineUseCase struct {
	docs       ports.DocumentRepository
	storage    ports.ObjectStorage
	analyzer   ports.Analyzer
	catalog    ports.RequirementCatalog
	aggregator ports.MatchAggregator
	lifecycle  ports.DocumentLifecycle
}

func NewPipelineUseCase(
	docs ports.DocumentRepository,
	storage ports.ObjectStorage,
	analyzer ports.Analyzer,
	catalog ports.RequirementCatalog,
	aggregator ports.MatchAggregator,
	lifecycle ports.DocumentLifecycle,
) *PipelineUseCase {
	return &PipelineUseCase{
		docs:       docs,
		storage:    storage,
		analyzer:   analyzer,
		catalog:    catalog,
		aggregator: aggregator,
		lifecycle:  lifecycle,
	}
}

func (uc *PipelineUseCase) Run(ctx context.Context, task domain.ProcessTask) error {
	doc, err := uc.docs.GetByID(ctx, task.DocumentID)
	if err != nil {
		return fmt.Errorf("fetch document by id: %w", err)
	}
	if doc.Attempt != task.Attempt {
		slog.Info("pipeline_task_dropped",
			"document_id", task.DocumentID,
			"task_attempt", task.Attempt,
			"current_attempt", doc.Attempt,
		)
		return nil
	}

	if err := uc.runStages(ctx, doc, task.Attempt); err != nil {
		if errors.Is(err, errAttemptSuperseded) {
			slog.Info("pipeline_run_superseded", "document_id", task.DocumentID, "attempt", task.Attempt)
			return nil
		}
		uc.markFailed(ctx, task, err)
		return err
	}
	return nil
}

func (uc *PipelineUseCase) runStages(ctx context.Context, doc *domain.Document, attempt int) error {
	if err := uc.report(ctx, doc.ID, domain.StatusParsing, 10, attempt); err != nil {
		return err
	}

	parsed, err := uc.parse(ctx, doc)
	if err != nil {
		return err
	}
	if err := uc.report(ctx, doc.ID, domain.StatusParsing, 30, attempt); err != nil {
		return err
	}

	if err := uc.report(ctx, doc.ID, domain.StatusExtracting, 40, attempt); err != nil {
		return err
	}
	reqs, err := uc.extract(ctx, doc.ID, parsed)
	if err != nil {
		return err
	}
	if err := uc.report(ctx, doc.ID, domain.StatusExtracting, 60, attempt); err != nil {
		return err
	}

	if err := uc.report(ctx, doc.ID, domain.StatusMatching, 70, attempt); err != nil {
		return err
	}
	if err := uc.match(ctx, doc.ID, reqs); err != nil {
		return err
	}
	if err := uc.report(ctx, doc.ID, domain.StatusMatching, 90, attempt); err != nil {
		return err
	}

	return uc.report(ctx, doc.ID, domain.StatusReady, 100, attempt)
}

func (uc *PipelineUseCase) parse(ctx context.Context, doc *domain.Document) (domain.ParsedDocument, error) {
	file, err := uc.storage.Open(ctx, doc.StoragePath)
	if err != nil {
		return domain.ParsedDocument{}, fmt.Errorf("open stored file: %w", err)
	}
	defer file.Close()

	parsed, err := uc.analyzer.Parse(ctx, doc.FileName, file)
	if err != nil {
		return domain.ParsedDocument{}, fmt.Errorf("parse document: %w", err)
	}
	if parsed.Text == "" {
		return domain.ParsedDocument{}, domain.WrapError(domain.ErrInvalidInput, "parse document", errors.New("empty parsed text"))
	}
	return parsed, nil
}

func (uc *PipelineUseCase) extract(ctx context.Context, documentID string, parsed domain.ParsedDocument) ([]domain.Requirement, error) {
	drafts, err := uc.analyzer.ExtractRequirements(ctx, parsed)
	if err != nil {
		return nil, fmt.Errorf("extract requirements: %w", err)
	}
	reqs, err := uc.catalog.Ingest(ctx, documentID, drafts)
	if err != nil {
		return nil, fmt.Errorf("ingest requirements: %w", err)
	}
	return reqs, nil
}

func (uc *PipelineUseCase) match(ctx context.Context, documentID string, reqs []domain.Requirement) error {
	drafts, err := uc.analyzer.MatchRequirements(ctx, reqs)
	if err != nil {
		return fmt.Errorf("match requirements: %w", err)
	}
	if err := uc.aggregator.IngestMatches(ctx, documentID, drafts); err != nil {
		return fmt.Errorf("ingest matches: %w", err)
	}
	return nil
}

func (uc *PipelineUseCase) report(ctx context.Context, documentID string, status domain.DocumentStatus, progress, attempt int) error {
	err := uc.lifecycle.ReportProgress(ctx, documentID, domain.ProgressUpdate{
		Status:   status,
		Progress: progress,
		Attempt:  attempt,
	})
	if err == nil {
		return nil
	}
	if domain.IsKind(err, domain.ErrStaleUpdate) {
		return errAttemptSuperseded
	}
	return fmt.Errorf("report %s/%d: %w", status, progress, err)
}

func (uc *PipelineUseCase) markFailed(ctx context.Context, task domain.ProcessTask, cause error) {
	err := uc.lifecycle.ReportProgress(ctx, task.DocumentID, domain.ProgressUpdate{
		Status:       domain.StatusError,
		Attempt:      task.Attempt,
		ErrorMessage: cause.Error(),
	})
	if err != nil && !domain.IsKind(err, domain.ErrStaleUpdate) {
		slog.Error("pipeline_mark_failed_error", "document_id", task.DocumentID, "error", err)
	}
}
