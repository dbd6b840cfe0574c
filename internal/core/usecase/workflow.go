package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/okarpov/tenderdesk/internal/core/domain"
	"github.com/okarpov/tenderdesk/internal/core/ports"
)

// WorkflowUseCase owns responses through DRAFT, PENDING_REVIEW, APPROVED and
// EXPORTED. Edits use optimistic concurrency on the version token; reviewers
// attach comments independently of the state machine.
type WorkflowUseCase struct {
	docs      ports.DocumentRepository
	reqs      ports.RequirementRepository
	matches   ports.MatchRepository
	responses ports.ResponseRepository
	analyzer  ports.Analyzer
	queue     ports.TaskQueue
}

func NewWorkflowUseCase(
	docs ports.DocumentRepository,
	reqs ports.RequirementRepository,
	matches ports.MatchRepository,
	responses ports.ResponseRepository,
	analyzer ports.Analyzer,
	queue ports.TaskQueue,
) *WorkflowUseCase {
	return &WorkflowUseCase{
		docs:      docs,
		reqs:      reqs,
		matches:   matches,
		responses: responses,
		analyzer:  analyzer,
		queue:     queue,
	}
}

// RequestGeneration validates the request and hands drafting to the worker.
// It returns the number of requirements queued.
func (uc *WorkflowUseCase) RequestGeneration(ctx context.Context, actor domain.Actor, documentID string, requirementIDs []string, opts domain.ComposeOptions) (int, error) {
	if _, err := loadOwnedDocument(ctx, uc.docs, actor, documentID); err != nil {
		return 0, err
	}
	if len(requirementIDs) == 0 {
		return 0, domain.WrapError(domain.ErrInvalidInput, "generate responses",
			fmt.Errorf("requirement_ids is empty"))
	}

	reqs, err := uc.reqs.ListByIDs(ctx, documentID, requirementIDs)
	if err != nil {
		return 0, fmt.Errorf("list requirements: %w", err)
	}
	if len(reqs) == 0 {
		return 0, domain.WrapError(domain.ErrRequirementNotFound, "generate responses",
			fmt.Errorf("no requirements found for document %s", documentID))
	}

	ids := make([]string, 0, len(reqs))
	for _, r := range reqs {
		ids = append(ids, r.ID)
	}
	task := domain.GenerateTask{
		DocumentID:     documentID,
		RequirementIDs: ids,
		RequestedBy:    actor.ID,
		Options:        opts,
	}
	if err := uc.queue.PublishResponseGenerate(ctx, task); err != nil {
		return 0, fmt.Errorf("publish generate task: %w", err)
	}
	return len(ids), nil
}

// Generate drafts one response per requirement. The write is an upsert keyed
// by (document, requirement): a requirement that already has a response keeps
// it untouched, so duplicate or concurrent generation requests are harmless.
func (uc *WorkflowUseCase) Generate(ctx context.Context, task domain.GenerateTask) error {
	reqs, err := uc.reqs.ListByIDs(ctx, task.DocumentID, task.RequirementIDs)
	if err != nil {
		return fmt.Errorf("list requirements: %w", err)
	}

	results, err := uc.matches.ListByDocument(ctx, task.DocumentID)
	if err != nil {
		return fmt.Errorf("list match results: %w", err)
	}
	byRequirement := make(map[string][]domain.MatchResult)
	for _, r := range results {
		byRequirement[r.RequirementID] = append(byRequirement[r.RequirementID], r)
	}

	var failed int
	for _, req := range reqs {
		text, err := uc.analyzer.Compose(ctx, req, byRequirement[req.ID], task.Options)
		if err != nil {
			failed++
			slog.Error("response_compose_failed", "document_id", task.DocumentID, "requirement_id", req.ID, "error", err)
			continue
		}

		now := time.Now().UTC()
		created, err := uc.responses.UpsertDraft(ctx, &domain.Response{
			ID:            uuid.NewString(),
			DocumentID:    task.DocumentID,
			RequirementID: req.ID,
			Text:          text,
			Status:        domain.ResponseDraft,
			Version:       1,
			CreatedBy:     task.RequestedBy,
			CreatedAt:     now,
			UpdatedAt:     now,
		})
		if err != nil {
			failed++
			slog.Error("response_draft_failed", "document_id", task.DocumentID, "requirement_id", req.ID, "error", err)
			continue
		}
		if !created {
			slog.Info("response_draft_exists", "document_id", task.DocumentID, "requirement_id", req.ID)
		}
	}

	if failed > 0 && failed == len(reqs) {
		return domain.WrapError(domain.ErrTemporary, "generate responses",
			fmt.Errorf("all %d requirements failed to compose", failed))
	}
	return nil
}

func (uc *WorkflowUseCase) List(ctx context.Context, actor domain.Actor, documentID string) ([]domain.Response, error) {
	if _, err := loadAccessibleDocument(ctx, uc.docs, actor, documentID); err != nil {
		return nil, err
	}
	resps, err := uc.responses.ListByDocument(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("list responses: %w", err)
	}
	return resps, nil
}

// Edit rewrites the response text under optimistic concurrency. A stale
// expectedVersion fails with ErrVersionConflict and leaves the stored row
// untouched; a successful edit bumps the version by exactly one and demotes
// a reviewed or approved response back to DRAFT.
func (uc *WorkflowUseCase) Edit(ctx context.Context, actor domain.Actor, responseID, text string, expectedVersion int) (*domain.Response, error) {
	if strings.TrimSpace(text) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "edit response", fmt.Errorf("response_text is empty"))
	}
	if expectedVersion < 1 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "edit response", fmt.Errorf("expected_version %d is invalid", expectedVersion))
	}

	resp, err := uc.loadMutableResponse(ctx, actor, responseID)
	if err != nil {
		return nil, err
	}
	if resp.Status == domain.ResponseExported {
		return nil, domain.WrapError(domain.ErrInvalidState, "edit response",
			fmt.Errorf("response %s is %s", responseID, resp.Status))
	}

	applied, err := uc.responses.UpdateTextCAS(ctx, responseID, text, expectedVersion, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("update response text: %w", err)
	}
	if !applied {
		return nil, domain.WrapError(domain.ErrVersionConflict, "edit response",
			fmt.Errorf("expected version %d, stored version moved on", expectedVersion))
	}
	return uc.responses.GetByID(ctx, responseID)
}

// SubmitForReview moves DRAFT to PENDING_REVIEW. Submitting an already
// pending response is a no-op.
func (uc *WorkflowUseCase) SubmitForReview(ctx context.Context, actor domain.Actor, responseID string) (*domain.Response, error) {
	resp, err := uc.loadMutableResponse(ctx, actor, responseID)
	if err != nil {
		return nil, err
	}

	switch resp.Status {
	case domain.ResponsePendingReview:
		return resp, nil
	case domain.ResponseDraft:
	default:
		return nil, domain.WrapError(domain.ErrInvalidState, "submit response",
			fmt.Errorf("response %s is %s", responseID, resp.Status))
	}

	applied, err := uc.responses.UpdateStatusCAS(ctx, responseID, domain.ResponseDraft, domain.ResponsePendingReview, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("submit response: %w", err)
	}
	if !applied {
		// Lost a race; idempotent only if the winner also submitted.
		current, err := uc.responses.GetByID(ctx, responseID)
		if err != nil {
			return nil, err
		}
		if current.Status == domain.ResponsePendingReview {
			return current, nil
		}
		return nil, domain.WrapError(domain.ErrInvalidState, "submit response",
			fmt.Errorf("response %s is %s", responseID, current.Status))
	}
	return uc.responses.GetByID(ctx, responseID)
}

// Approve requires reviewer-or-above privilege and a PENDING_REVIEW response.
func (uc *WorkflowUseCase) Approve(ctx context.Context, actor domain.Actor, responseID string) (*domain.Response, error) {
	if !actor.CanApprove() {
		return nil, domain.WrapError(domain.ErrForbidden, "approve response",
			fmt.Errorf("actor %s lacks reviewer privilege", actor.ID))
	}

	resp, err := uc.responses.GetByID(ctx, responseID)
	if err != nil {
		return nil, err
	}
	if resp.Status != domain.ResponsePendingReview {
		return nil, domain.WrapError(domain.ErrInvalidState, "approve response",
			fmt.Errorf("response %s is %s, approval requires %s", responseID, resp.Status, domain.ResponsePendingReview))
	}

	applied, err := uc.responses.Approve(ctx, responseID, actor.ID, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("approve response: %w", err)
	}
	if !applied {
		return nil, domain.WrapError(domain.ErrInvalidState, "approve response",
			fmt.Errorf("response %s left %s concurrently", responseID, domain.ResponsePendingReview))
	}
	return uc.responses.GetByID(ctx, responseID)
}

func (uc *WorkflowUseCase) Delete(ctx context.Context, actor domain.Actor, responseID string) error {
	if _, err := uc.loadMutableResponse(ctx, actor, responseID); err != nil {
		return err
	}
	if err := uc.responses.Delete(ctx, responseID); err != nil {
		return fmt.Errorf("delete response: %w", err)
	}
	return nil
}

func (uc *WorkflowUseCase) AddComment(ctx context.Context, actor domain.Actor, responseID, text string) (*domain.Comment, error) {
	if strings.TrimSpace(text) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "add comment", fmt.Errorf("comment_text is empty"))
	}

	resp, err := uc.responses.GetByID(ctx, responseID)
	if err != nil {
		return nil, err
	}
	if _, err := loadAccessibleDocument(ctx, uc.docs, actor, resp.DocumentID); err != nil {
		return nil, err
	}

	comment := &domain.Comment{
		ID:         uuid.NewString(),
		ResponseID: responseID,
		Text:       text,
		CreatedBy:  actor.ID,
		CreatedAt:  time.Now().UTC(),
	}
	if err := uc.responses.AddComment(ctx, comment); err != nil {
		return nil, fmt.Errorf("add comment: %w", err)
	}
	return comment, nil
}

func (uc *WorkflowUseCase) ListComments(ctx context.Context, actor domain.Actor, responseID string) ([]domain.Comment, error) {
	resp, err := uc.responses.GetByID(ctx, responseID)
	if err != nil {
		return nil, err
	}
	if _, err := loadAccessibleDocument(ctx, uc.docs, actor, resp.DocumentID); err != nil {
		return nil, err
	}
	comments, err := uc.responses.ListComments(ctx, responseID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	return comments, nil
}

func (uc *WorkflowUseCase) ResolveComment(ctx context.Context, actor domain.Actor, commentID string) (*domain.Comment, error) {
	comment, err := uc.responses.GetComment(ctx, commentID)
	if err != nil {
		return nil, err
	}
	resp, err := uc.responses.GetByID(ctx, comment.ResponseID)
	if err != nil {
		return nil, err
	}
	if _, err := loadAccessibleDocument(ctx, uc.docs, actor, resp.DocumentID); err != nil {
		return nil, err
	}

	if err := uc.responses.ResolveComment(ctx, commentID); err != nil {
		return nil, fmt.Errorf("resolve comment: %w", err)
	}
	comment.Resolved = true
	return comment, nil
}

func (uc *WorkflowUseCase) loadMutableResponse(ctx context.Context, actor domain.Actor, responseID string) (*domain.Response, error) {
	resp, err := uc.responses.GetByID(ctx, responseID)
	if err != nil {
		return nil, err
	}
	if _, err := loadOwnedDocument(ctx, uc.docs, actor, resp.DocumentID); err != nil {
		return nil, err
	}
	return resp, nil
}
