package usecase

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/okarpov/tenderdesk/internal/core/domain"
	"github.com/okarpov/tenderdesk/internal/core/ports"
)

// ExportUseCase assembles approved responses into the final proposal
// artifact. The artifact is keyed by document id plus the latest approval
// timestamp, so a retried export after partial failure reuses the recorded
// artifact instead of rendering a second one.
type ExportUseCase struct {
	docs      ports.DocumentRepository
	reqs      ports.RequirementRepository
	matches   ports.MatchRepository
	responses ports.ResponseRepository
	exports   ports.ExportRepository
	storage   ports.ObjectStorage
	renderer  ports.Renderer
	company   domain.CompanyProfile
}

func NewExportUseCase(
	docs ports.DocumentRepository,
	reqs ports.RequirementRepository,
	matches ports.MatchRepository,
	responses ports.ResponseRepository,
	exports ports.ExportRepository,
	storage ports.ObjectStorage,
	renderer ports.Renderer,
	company domain.CompanyProfile,
) *ExportUseCase {
	return &ExportUseCase{
		docs:      docs,
		reqs:      reqs,
		matches:   matches,
		responses: responses,
		exports:   exports,
		storage:   storage,
		renderer:  renderer,
		company:   company,
	}
}

func (uc *ExportUseCase) ExportDocument(ctx context.Context, actor domain.Actor, documentID string) (*domain.ExportRecord, io.ReadCloser, error) {
	doc, err := loadOwnedDocument(ctx, uc.docs, actor, documentID)
	if err != nil {
		return nil, nil, err
	}

	approved, err := uc.responses.ListByDocumentAndStatus(ctx, documentID, domain.ResponseApproved)
	if err != nil {
		return nil, nil, fmt.Errorf("list approved responses: %w", err)
	}
	if len(approved) == 0 {
		return nil, nil, domain.WrapError(domain.ErrInvalidState, "export document",
			fmt.Errorf("document %s has no approved responses", documentID))
	}

	var latest time.Time
	for _, r := range approved {
		if r.ApprovedAt != nil && r.ApprovedAt.After(latest) {
			latest = *r.ApprovedAt
		}
	}
	key := domain.ExportKey(documentID, latest)

	rec, err := uc.exports.FindByKey(ctx, key)
	if err != nil {
		return nil, nil, fmt.Errorf("lookup export record: %w", err)
	}
	if rec == nil {
		rec, err = uc.render(ctx, actor, doc, approved, key, latest)
		if err != nil {
			return nil, nil, err
		}
	} else {
		slog.Info("export_artifact_reused", "document_id", documentID, "export_key", key)
	}

	// Flip APPROVED to EXPORTED after the artifact is durable. If this write
	// failed last time, the retry above found the recorded artifact and we
	// only redo this step.
	marked, err := uc.responses.MarkExported(ctx, documentID, time.Now().UTC())
	if err != nil {
		return nil, nil, fmt.Errorf("mark responses exported: %w", err)
	}
	slog.Info("document_exported",
		"document_id", documentID,
		"export_key", key,
		"responses_marked", marked,
	)

	artifact, err := uc.storage.Open(ctx, rec.FilePath)
	if err != nil {
		return nil, nil, fmt.Errorf("open export artifact: %w", err)
	}
	return rec, artifact, nil
}

func (uc *ExportUseCase) render(
	ctx context.Context,
	actor domain.Actor,
	doc *domain.Document,
	approved []domain.Response,
	key string,
	latest time.Time,
) (*domain.ExportRecord, error) {
	reqs, err := uc.reqs.ListByDocument(ctx, doc.ID)
	if err != nil {
		return nil, fmt.Errorf("list requirements: %w", err)
	}
	summary, err := uc.matches.GetSummary(ctx, doc.ID)
	if err != nil {
		return nil, fmt.Errorf("get match summary: %w", err)
	}

	tenderName := doc.TenderName
	if tenderName == "" {
		tenderName = doc.FileName
	}
	data, err := uc.renderer.Render(ctx, domain.Proposal{
		DocumentID:   doc.ID,
		TenderName:   tenderName,
		Company:      uc.company,
		Requirements: reqs,
		Responses:    approved,
		Summary:      summary,
	})
	if err != nil {
		return nil, fmt.Errorf("render proposal: %w", err)
	}

	path := fmt.Sprintf("exports/%s_%d.%s", doc.ID, latest.UTC().Unix(), uc.renderer.Format())
	if err := uc.storage.Save(ctx, path, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("store export artifact: %w", err)
	}

	rec := &domain.ExportRecord{
		ID:         uuid.NewString(),
		DocumentID: doc.ID,
		ExportKey:  key,
		Format:     uc.renderer.Format(),
		FilePath:   path,
		ExportedBy: actor.ID,
		CreatedAt:  time.Now().UTC(),
	}
	if err := uc.exports.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("record export: %w", err)
	}
	return rec, nil
}
