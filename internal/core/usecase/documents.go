package usecase

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/okarpov/tenderdesk/internal/core/domain"
	"github.com/okarpov/tenderdesk/internal/core/ports"
)

// DocumentInspector pulls file metadata (page count) out of an uploaded file.
type DocumentInspector interface {
	PageCount(fileName string, data []byte) (int, error)
}

type DocumentUseCase struct {
	docs      ports.DocumentRepository
	storage   ports.ObjectStorage
	inspector DocumentInspector
}

func NewDocumentUseCase(
	docs ports.DocumentRepository,
	storage ports.ObjectStorage,
	inspector DocumentInspector,
) *DocumentUseCase {
	return &DocumentUseCase{
		docs:      docs,
		storage:   storage,
		inspector: inspector,
	}
}

func (uc *DocumentUseCase) Upload(
	ctx context.Context,
	actor domain.Actor,
	fileName, tenderName string,
	size int64,
	body io.Reader,
) (*domain.Document, error) {
	if strings.TrimSpace(fileName) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload document", fmt.Errorf("file name is empty"))
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read upload body: %w", err)
	}
	if len(data) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload document", fmt.Errorf("file is empty"))
	}

	id := uuid.NewString()
	storageKey := fmt.Sprintf("%s_%s", id, sanitizeFileName(fileName))
	now := time.Now().UTC()

	if err := uc.storage.Save(ctx, storageKey, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("save to object storage: %w", err)
	}

	doc := &domain.Document{
		ID:            id,
		OwnerID:       actor.ID,
		TenderName:    strings.TrimSpace(tenderName),
		FileName:      fileName,
		FileType:      fileTypeOf(fileName),
		FileSizeBytes: int64(len(data)),
		StoragePath:   storageKey,
		Status:        domain.StatusUploaded,
		Progress:      0,
		Attempt:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if size > 0 {
		doc.FileSizeBytes = size
	}

	if uc.inspector != nil {
		if pages, err := uc.inspector.PageCount(fileName, data); err == nil {
			doc.PageCount = pages
		}
	}

	if err := uc.docs.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("create document metadata: %w", err)
	}
	return doc, nil
}

func (uc *DocumentUseCase) GetByID(ctx context.Context, actor domain.Actor, id string) (*domain.Document, error) {
	return loadAccessibleDocument(ctx, uc.docs, actor, id)
}

func (uc *DocumentUseCase) List(ctx context.Context, actor domain.Actor) ([]domain.Document, error) {
	docs, err := uc.docs.ListByOwner(ctx, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}

func (uc *DocumentUseCase) Delete(ctx context.Context, actor domain.Actor, id string) error {
	doc, err := loadOwnedDocument(ctx, uc.docs, actor, id)
	if err != nil {
		return err
	}

	// Storage removal is best-effort; the row delete cascades to dependents.
	_ = uc.storage.Delete(ctx, doc.StoragePath)

	if err := uc.docs.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

// loadOwnedDocument resolves a document the actor may mutate.
func loadOwnedDocument(ctx context.Context, repo ports.DocumentRepository, actor domain.Actor, id string) (*domain.Document, error) {
	doc, err := repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.OwnerID != actor.ID && actor.Role != domain.RoleAdmin {
		return nil, domain.WrapError(domain.ErrForbidden, "document access", fmt.Errorf("document %s is not owned by %s", id, actor.ID))
	}
	return doc, nil
}

// loadAccessibleDocument resolves a document the actor may read. Reviewers
// get read access to any document so they can work the review queue.
func loadAccessibleDocument(ctx context.Context, repo ports.DocumentRepository, actor domain.Actor, id string) (*domain.Document, error) {
	doc, err := repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.OwnerID == actor.ID || actor.Role == domain.RoleAdmin || actor.Role == domain.RoleReviewer {
		return doc, nil
	}
	return nil, domain.WrapError(domain.ErrForbidden, "document access", fmt.Errorf("document %s is not visible to %s", id, actor.ID))
}

func sanitizeFileName(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" {
		return "document.bin"
	}
	return base
}

func fileTypeOf(name string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	if ext == "" {
		return "BIN"
	}
	return strings.ToUpper(ext)
}
