package usecase

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/okarpov/tenderdesk/internal/core/domain"
	"github.com/okarpov/tenderdesk/internal/core/ports"
)

// SummaryInvalidator recomputes the derived match summary after requirement
// data changes underneath it.
type SummaryInvalidator interface {
	Recompute(ctx context.Context, documentID string) (*domain.MatchSummary, error)
}

type CatalogUseCase struct {
	docs      ports.DocumentRepository
	reqs      ports.RequirementRepository
	summaries SummaryInvalidator
}

func NewCatalogUseCase(
	docs ports.DocumentRepository,
	reqs ports.RequirementRepository,
	summaries SummaryInvalidator,
) *CatalogUseCase {
	return &CatalogUseCase{docs: docs, reqs: reqs, summaries: summaries}
}

// Ingest atomically replaces the requirement set for a document. The whole
// batch is rejected if any record violates the catalog invariants; external
// data never enters half-validated.
func (uc *CatalogUseCase) Ingest(ctx context.Context, documentID string, drafts []domain.RequirementDraft) ([]domain.Requirement, error) {
	doc, err := uc.docs.GetByID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if !ingestAllowed(doc.Status) {
		return nil, domain.WrapError(domain.ErrInvalidState, "ingest requirements",
			fmt.Errorf("document %s is %s, requirements are accepted from %s on", documentID, doc.Status, domain.StatusExtracting))
	}

	for i, draft := range drafts {
		if err := draft.Validate(); err != nil {
			return nil, fmt.Errorf("requirement %d: %w", i, err)
		}
	}

	now := time.Now().UTC()
	reqs := make([]domain.Requirement, 0, len(drafts))
	for _, draft := range drafts {
		reqs = append(reqs, domain.Requirement{
			ID:              uuid.NewString(),
			DocumentID:      documentID,
			Text:            draft.Text,
			Category:        draft.Category,
			Subcategory:     draft.Subcategory,
			ConfidenceScore: draft.ConfidenceScore,
			PageNumber:      draft.PageNumber,
			ExtractionOrder: draft.ExtractionOrder,
			CreatedAt:       now,
		})
	}
	sort.SliceStable(reqs, func(i, j int) bool {
		return reqs[i].ExtractionOrder < reqs[j].ExtractionOrder
	})

	if err := uc.reqs.ReplaceForDocument(ctx, documentID, reqs); err != nil {
		return nil, fmt.Errorf("replace requirements: %w", err)
	}

	if _, err := uc.summaries.Recompute(ctx, documentID); err != nil {
		return nil, fmt.Errorf("recompute summary: %w", err)
	}
	return reqs, nil
}

// Recategorize overrides the extractor-assigned category. Match data is
// untouched; only the derived summary buckets move.
func (uc *CatalogUseCase) Recategorize(ctx context.Context, actor domain.Actor, requirementID string, category domain.RequirementCategory) (*domain.Requirement, error) {
	if !category.Valid() {
		return nil, domain.WrapError(domain.ErrInvalidInput, "recategorize requirement",
			fmt.Errorf("unknown category %q", category))
	}

	req, err := uc.reqs.GetByID(ctx, requirementID)
	if err != nil {
		return nil, err
	}
	if _, err := loadOwnedDocument(ctx, uc.docs, actor, req.DocumentID); err != nil {
		return nil, err
	}

	if err := uc.reqs.UpdateCategory(ctx, requirementID, category); err != nil {
		return nil, fmt.Errorf("update category: %w", err)
	}
	req.Category = category

	if _, err := uc.summaries.Recompute(ctx, req.DocumentID); err != nil {
		return nil, fmt.Errorf("recompute summary: %w", err)
	}
	return req, nil
}

func (uc *CatalogUseCase) List(ctx context.Context, actor domain.Actor, documentID string) ([]domain.Requirement, error) {
	if _, err := loadAccessibleDocument(ctx, uc.docs, actor, documentID); err != nil {
		return nil, err
	}
	reqs, err := uc.reqs.ListByDocument(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("list requirements: %w", err)
	}
	return reqs, nil
}

func ingestAllowed(status domain.DocumentStatus) bool {
	rank, ok := status.Rank()
	if !ok {
		return false
	}
	min, _ := domain.StatusExtracting.Rank()
	return rank >= min
}
