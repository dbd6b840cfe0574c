package usecase

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/okarpov/tenderdesk/internal/core/domain"
)

func exportFixture(t *testing.T) (*ExportUseCase, *respRepoFake, *exportRepoFake, *rendererFake, *storageFake) {
	t.Helper()
	docs := newDocRepoFake(testDocument(domain.StatusReady, 100, 1))
	resps := newRespRepoFake()
	exports := newExportRepoFake()
	renderer := &rendererFake{}
	storage := newStorageFake()
	uc := NewExportUseCase(docs, newReqRepoFake(), newMatchRepoFake(), resps, exports, storage, renderer,
		domain.CompanyProfile{Name: "Acme Integrations"})
	return uc, resps, exports, renderer, storage
}

func approvedResponse(id, requirementID string, approvedAt time.Time) *domain.Response {
	r := draftResponse(id, "doc-1", requirementID, domain.ResponseApproved, 2)
	r.ApprovedBy = "reviewer-1"
	r.ApprovedAt = &approvedAt
	return r
}

func TestExportRequiresApprovedResponses(t *testing.T) {
	uc, resps, _, _, _ := exportFixture(t)
	resps.responses["resp-1"] = draftResponse("resp-1", "doc-1", "req-a", domain.ResponseDraft, 1)

	_, _, err := uc.ExportDocument(context.Background(), ownerActor(), "doc-1")
	if !domain.IsKind(err, domain.ErrInvalidState) {
		t.Fatalf("err = %v, want ErrInvalidState", err)
	}
}

func TestExportRendersAndMarksResponses(t *testing.T) {
	uc, resps, exports, renderer, _ := exportFixture(t)
	approvedAt := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	resps.responses["resp-1"] = approvedResponse("resp-1", "req-a", approvedAt)
	resps.responses["resp-2"] = approvedResponse("resp-2", "req-b", approvedAt.Add(time.Hour))

	rec, artifact, err := uc.ExportDocument(context.Background(), ownerActor(), "doc-1")
	if err != nil {
		t.Fatalf("ExportDocument: %v", err)
	}
	defer artifact.Close()

	if renderer.renders != 1 {
		t.Errorf("renders = %d, want 1", renderer.renders)
	}
	if rec.Format != "xlsx" {
		t.Errorf("format = %s, want xlsx", rec.Format)
	}
	wantKey := domain.ExportKey("doc-1", approvedAt.Add(time.Hour))
	if rec.ExportKey != wantKey {
		t.Errorf("export key = %s, want %s", rec.ExportKey, wantKey)
	}
	data, _ := io.ReadAll(artifact)
	if string(data) != "artifact" {
		t.Errorf("artifact = %q", data)
	}

	for _, id := range []string{"resp-1", "resp-2"} {
		stored, _ := resps.GetByID(context.Background(), id)
		if stored.Status != domain.ResponseExported {
			t.Errorf("%s status = %s, want %s", id, stored.Status, domain.ResponseExported)
		}
	}
	if len(exports.records) != 1 {
		t.Errorf("export records = %d, want 1", len(exports.records))
	}
}

func TestExportRetryReusesArtifact(t *testing.T) {
	uc, resps, _, renderer, _ := exportFixture(t)
	approvedAt := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	resps.responses["resp-1"] = approvedResponse("resp-1", "req-a", approvedAt)

	if _, artifact, err := uc.ExportDocument(context.Background(), ownerActor(), "doc-1"); err != nil {
		t.Fatalf("first export: %v", err)
	} else {
		artifact.Close()
	}

	// Re-approve the same response set: the approval timestamp did not move,
	// so the retry must find the existing record and skip rendering.
	resps.responses["resp-1"] = approvedResponse("resp-1", "req-a", approvedAt)

	rec, artifact, err := uc.ExportDocument(context.Background(), ownerActor(), "doc-1")
	if err != nil {
		t.Fatalf("second export: %v", err)
	}
	artifact.Close()

	if renderer.renders != 1 {
		t.Errorf("renders = %d, want 1 (artifact reused)", renderer.renders)
	}
	if rec.ExportKey != domain.ExportKey("doc-1", approvedAt) {
		t.Errorf("export key = %s", rec.ExportKey)
	}
}

func TestExportAfterNewApprovalRendersAgain(t *testing.T) {
	uc, resps, exports, renderer, _ := exportFixture(t)
	firstApproval := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	resps.responses["resp-1"] = approvedResponse("resp-1", "req-a", firstApproval)

	if _, artifact, err := uc.ExportDocument(context.Background(), ownerActor(), "doc-1"); err != nil {
		t.Fatalf("first export: %v", err)
	} else {
		artifact.Close()
	}

	// A later approval shifts the key, so the next export is a fresh artifact.
	resps.responses["resp-2"] = approvedResponse("resp-2", "req-b", firstApproval.Add(24*time.Hour))

	if _, artifact, err := uc.ExportDocument(context.Background(), ownerActor(), "doc-1"); err != nil {
		t.Fatalf("second export: %v", err)
	} else {
		artifact.Close()
	}

	if renderer.renders != 2 {
		t.Errorf("renders = %d, want 2", renderer.renders)
	}
	if len(exports.records) != 2 {
		t.Errorf("export records = %d, want 2", len(exports.records))
	}
}

func TestExportForbiddenForStranger(t *testing.T) {
	uc, resps, _, _, _ := exportFixture(t)
	resps.responses["resp-1"] = approvedResponse("resp-1", "req-a", time.Now().UTC())
	stranger := domain.Actor{ID: "user-2", Role: domain.RoleUser}

	_, _, err := uc.ExportDocument(context.Background(), stranger, "doc-1")
	if !domain.IsKind(err, domain.ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}
}
