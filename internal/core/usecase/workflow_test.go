package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okarpov/tenderdesk/internal/core/domain"
)

func workflowFixture(t *testing.T) (*WorkflowUseCase, *docRepoFake, *reqRepoFake, *respRepoFake, *queueFake, *analyzerFake) {
	t.Helper()
	docs := newDocRepoFake(testDocument(domain.StatusReady, 100, 1))
	reqs := newReqRepoFake()
	resps := newRespRepoFake()
	queue := &queueFake{}
	analyzer := &analyzerFake{}
	uc := NewWorkflowUseCase(docs, reqs, newMatchRepoFake(), resps, analyzer, queue)
	return uc, docs, reqs, resps, queue, analyzer
}

func draftResponse(id, documentID, requirementID string, status domain.ResponseStatus, version int) *domain.Response {
	now := time.Now().UTC()
	return &domain.Response{
		ID:            id,
		DocumentID:    documentID,
		RequirementID: requirementID,
		Text:          "original text",
		Status:        status,
		Version:       version,
		CreatedBy:     "user-1",
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func TestRequestGenerationQueuesTask(t *testing.T) {
	uc, _, reqs, _, queue, _ := workflowFixture(t)
	seeded := seedRequirements(reqs, "doc-1", domain.CategoryTechnical, domain.CategoryCompliance)

	n, err := uc.RequestGeneration(context.Background(), ownerActor(), "doc-1",
		[]string{seeded[0].ID, seeded[1].ID}, domain.ComposeOptions{})
	if err != nil {
		t.Fatalf("RequestGeneration: %v", err)
	}
	if n != 2 {
		t.Errorf("queued = %d, want 2", n)
	}
	if len(queue.generateTasks) != 1 {
		t.Fatalf("published %d tasks, want 1", len(queue.generateTasks))
	}
	if got := queue.generateTasks[0]; got.RequestedBy != "user-1" || len(got.RequirementIDs) != 2 {
		t.Errorf("task = %+v", got)
	}
}

func TestRequestGenerationRejectsEmptySelection(t *testing.T) {
	uc, _, _, _, _, _ := workflowFixture(t)

	_, err := uc.RequestGeneration(context.Background(), ownerActor(), "doc-1", nil, domain.ComposeOptions{})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestGenerateUpsertsOncePerRequirement(t *testing.T) {
	uc, _, reqs, resps, _, _ := workflowFixture(t)
	seeded := seedRequirements(reqs, "doc-1", domain.CategoryTechnical)
	task := domain.GenerateTask{
		DocumentID:     "doc-1",
		RequirementIDs: []string{seeded[0].ID},
		RequestedBy:    "user-1",
	}

	if err := uc.Generate(context.Background(), task); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	first, _ := resps.ListByDocument(context.Background(), "doc-1")
	if len(first) != 1 {
		t.Fatalf("responses = %d, want 1", len(first))
	}

	// Editing then regenerating must not clobber the user's text.
	if _, err := resps.UpdateTextCAS(context.Background(), first[0].ID, "hand edited", 1, time.Now().UTC()); err != nil {
		t.Fatalf("UpdateTextCAS: %v", err)
	}
	if err := uc.Generate(context.Background(), task); err != nil {
		t.Fatalf("Generate again: %v", err)
	}
	second, _ := resps.ListByDocument(context.Background(), "doc-1")
	if len(second) != 1 {
		t.Fatalf("responses after regenerate = %d, want 1", len(second))
	}
	if second[0].Text != "hand edited" || second[0].Version != 2 {
		t.Errorf("regenerate clobbered the edit: %q v%d", second[0].Text, second[0].Version)
	}
}

func TestGenerateContinuesPastComposeFailures(t *testing.T) {
	uc, _, reqs, resps, _, analyzer := workflowFixture(t)
	seeded := seedRequirements(reqs, "doc-1", domain.CategoryTechnical)
	analyzer.composeErr = errors.New("model overloaded")

	err := uc.Generate(context.Background(), domain.GenerateTask{
		DocumentID:     "doc-1",
		RequirementIDs: []string{seeded[0].ID},
		RequestedBy:    "user-1",
	})
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("err = %v, want ErrTemporary when every requirement fails", err)
	}
	all, _ := resps.ListByDocument(context.Background(), "doc-1")
	if len(all) != 0 {
		t.Errorf("responses = %d, want 0", len(all))
	}
}

func TestEditBumpsVersionAndDemotes(t *testing.T) {
	uc, _, _, resps, _, _ := workflowFixture(t)
	approvedAt := time.Now().UTC()
	resp := draftResponse("resp-1", "doc-1", "req-a", domain.ResponseApproved, 3)
	resp.ApprovedBy = "reviewer-1"
	resp.ApprovedAt = &approvedAt
	resps.responses["resp-1"] = resp

	got, err := uc.Edit(context.Background(), ownerActor(), "resp-1", "new text", 3)
	if err != nil {
		t.Fatalf("Edit: %v", err)
	}
	if got.Version != 4 {
		t.Errorf("version = %d, want 4", got.Version)
	}
	if got.Status != domain.ResponseDraft {
		t.Errorf("status = %s, want %s (edit demotes an approved response)", got.Status, domain.ResponseDraft)
	}
	if got.ApprovedBy != "" || got.ApprovedAt != nil {
		t.Errorf("approval metadata survived the demotion: %q %v", got.ApprovedBy, got.ApprovedAt)
	}
}

func TestEditStaleVersionConflicts(t *testing.T) {
	uc, _, _, resps, _, _ := workflowFixture(t)
	resps.responses["resp-1"] = draftResponse("resp-1", "doc-1", "req-a", domain.ResponseDraft, 5)

	_, err := uc.Edit(context.Background(), ownerActor(), "resp-1", "late edit", 4)
	if !domain.IsKind(err, domain.ErrVersionConflict) {
		t.Fatalf("err = %v, want ErrVersionConflict", err)
	}
	stored, _ := resps.GetByID(context.Background(), "resp-1")
	if stored.Text != "original text" || stored.Version != 5 {
		t.Errorf("stored row moved on a failed CAS: %q v%d", stored.Text, stored.Version)
	}
}

func TestEditRejectsExportedResponse(t *testing.T) {
	uc, _, _, resps, _, _ := workflowFixture(t)
	resps.responses["resp-1"] = draftResponse("resp-1", "doc-1", "req-a", domain.ResponseExported, 2)

	_, err := uc.Edit(context.Background(), ownerActor(), "resp-1", "too late", 2)
	if !domain.IsKind(err, domain.ErrInvalidState) {
		t.Fatalf("err = %v, want ErrInvalidState", err)
	}
}

func TestEditRejectsEmptyText(t *testing.T) {
	uc, _, _, resps, _, _ := workflowFixture(t)
	resps.responses["resp-1"] = draftResponse("resp-1", "doc-1", "req-a", domain.ResponseDraft, 1)

	_, err := uc.Edit(context.Background(), ownerActor(), "resp-1", "   ", 1)
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestSubmitForReviewIsIdempotent(t *testing.T) {
	uc, _, _, resps, _, _ := workflowFixture(t)
	resps.responses["resp-1"] = draftResponse("resp-1", "doc-1", "req-a", domain.ResponseDraft, 1)

	first, err := uc.SubmitForReview(context.Background(), ownerActor(), "resp-1")
	if err != nil {
		t.Fatalf("SubmitForReview: %v", err)
	}
	if first.Status != domain.ResponsePendingReview {
		t.Errorf("status = %s, want %s", first.Status, domain.ResponsePendingReview)
	}

	second, err := uc.SubmitForReview(context.Background(), ownerActor(), "resp-1")
	if err != nil {
		t.Fatalf("second SubmitForReview: %v", err)
	}
	if second.Status != domain.ResponsePendingReview {
		t.Errorf("second submit status = %s", second.Status)
	}
}

func TestSubmitForReviewRejectsApproved(t *testing.T) {
	uc, _, _, resps, _, _ := workflowFixture(t)
	resps.responses["resp-1"] = draftResponse("resp-1", "doc-1", "req-a", domain.ResponseApproved, 2)

	_, err := uc.SubmitForReview(context.Background(), ownerActor(), "resp-1")
	if !domain.IsKind(err, domain.ErrInvalidState) {
		t.Fatalf("err = %v, want ErrInvalidState", err)
	}
}

func TestApproveRequiresReviewerRole(t *testing.T) {
	uc, _, _, resps, _, _ := workflowFixture(t)
	resps.responses["resp-1"] = draftResponse("resp-1", "doc-1", "req-a", domain.ResponsePendingReview, 1)

	_, err := uc.Approve(context.Background(), ownerActor(), "resp-1")
	if !domain.IsKind(err, domain.ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}
}

func TestApprovePendingResponse(t *testing.T) {
	uc, _, _, resps, _, _ := workflowFixture(t)
	resps.responses["resp-1"] = draftResponse("resp-1", "doc-1", "req-a", domain.ResponsePendingReview, 1)
	reviewer := domain.Actor{ID: "reviewer-1", Role: domain.RoleReviewer}

	got, err := uc.Approve(context.Background(), reviewer, "resp-1")
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if got.Status != domain.ResponseApproved {
		t.Errorf("status = %s, want %s", got.Status, domain.ResponseApproved)
	}
	if got.ApprovedBy != "reviewer-1" || got.ApprovedAt == nil {
		t.Errorf("approval metadata missing: %q %v", got.ApprovedBy, got.ApprovedAt)
	}
}

func TestApproveRejectsDraft(t *testing.T) {
	uc, _, _, resps, _, _ := workflowFixture(t)
	resps.responses["resp-1"] = draftResponse("resp-1", "doc-1", "req-a", domain.ResponseDraft, 1)
	reviewer := domain.Actor{ID: "reviewer-1", Role: domain.RoleReviewer}

	_, err := uc.Approve(context.Background(), reviewer, "resp-1")
	if !domain.IsKind(err, domain.ErrInvalidState) {
		t.Fatalf("err = %v, want ErrInvalidState", err)
	}
}

func TestCommentLifecycle(t *testing.T) {
	uc, _, _, resps, _, _ := workflowFixture(t)
	resps.responses["resp-1"] = draftResponse("resp-1", "doc-1", "req-a", domain.ResponsePendingReview, 1)
	reviewer := domain.Actor{ID: "reviewer-1", Role: domain.RoleReviewer}

	comment, err := uc.AddComment(context.Background(), reviewer, "resp-1", "cite the ISO certificate")
	if err != nil {
		t.Fatalf("AddComment: %v", err)
	}
	if comment.Resolved {
		t.Error("new comment must start unresolved")
	}

	list, err := uc.ListComments(context.Background(), ownerActor(), "resp-1")
	if err != nil {
		t.Fatalf("ListComments: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("comments = %d, want 1", len(list))
	}

	resolved, err := uc.ResolveComment(context.Background(), ownerActor(), comment.ID)
	if err != nil {
		t.Fatalf("ResolveComment: %v", err)
	}
	if !resolved.Resolved {
		t.Error("comment not marked resolved")
	}
}

func TestAddCommentRejectsEmptyText(t *testing.T) {
	uc, _, _, resps, _, _ := workflowFixture(t)
	resps.responses["resp-1"] = draftResponse("resp-1", "doc-1", "req-a", domain.ResponseDraft, 1)

	_, err := uc.AddComment(context.Background(), ownerActor(), "resp-1", "")
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestForeignUserCannotEdit(t *testing.T) {
	uc, _, _, resps, _, _ := workflowFixture(t)
	resps.responses["resp-1"] = draftResponse("resp-1", "doc-1", "req-a", domain.ResponseDraft, 1)
	stranger := domain.Actor{ID: "user-2", Role: domain.RoleUser}

	_, err := uc.Edit(context.Background(), stranger, "resp-1", "hijack", 1)
	if !domain.IsKind(err, domain.ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}
}
