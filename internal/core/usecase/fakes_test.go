package usecase

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/okarpov/tenderdesk/internal/core/domain"
)

type docRepoFake struct {
	mu     sync.Mutex
	docs   map[string]*domain.Document
	casErr error
}

func newDocRepoFake(docs ...*domain.Document) *docRepoFake {
	f := &docRepoFake{docs: make(map[string]*domain.Document)}
	for _, d := range docs {
		copyDoc := *d
		f.docs[d.ID] = &copyDoc
	}
	return f
}

func (f *docRepoFake) Create(_ context.Context, doc *domain.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copyDoc := *doc
	f.docs[doc.ID] = &copyDoc
	return nil
}

func (f *docRepoFake) GetByID(_ context.Context, id string) (*domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", fmt.Errorf("id %s", id))
	}
	copyDoc := *doc
	return &copyDoc, nil
}

func (f *docRepoFake) ListByOwner(_ context.Context, ownerID string) ([]domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Document
	for _, d := range f.docs {
		if d.OwnerID == ownerID {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (f *docRepoFake) CompareAndSetLifecycle(_ context.Context, id string, prev, next domain.LifecycleState) (bool, error) {
	if f.casErr != nil {
		return false, f.casErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	if !ok {
		return false, domain.WrapError(domain.ErrDocumentNotFound, "cas lifecycle", fmt.Errorf("id %s", id))
	}
	if doc.Status != prev.Status || doc.Progress != prev.Progress || doc.Attempt != prev.Attempt {
		return false, nil
	}
	doc.Status = next.Status
	doc.Progress = next.Progress
	doc.Attempt = next.Attempt
	doc.ErrorMessage = next.ErrorMessage
	doc.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (f *docRepoFake) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.docs, id)
	return nil
}

type reqRepoFake struct {
	mu   sync.Mutex
	reqs map[string][]domain.Requirement // by document id
}

func newReqRepoFake() *reqRepoFake {
	return &reqRepoFake{reqs: make(map[string][]domain.Requirement)}
}

func (f *reqRepoFake) ReplaceForDocument(_ context.Context, documentID string, reqs []domain.Requirement) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs[documentID] = append([]domain.Requirement(nil), reqs...)
	return nil
}

func (f *reqRepoFake) ListByDocument(_ context.Context, documentID string) ([]domain.Requirement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := append([]domain.Requirement(nil), f.reqs[documentID]...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].ExtractionOrder < out[j].ExtractionOrder })
	return out, nil
}

func (f *reqRepoFake) ListByIDs(_ context.Context, documentID string, ids []string) ([]domain.Requirement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []domain.Requirement
	for _, r := range f.reqs[documentID] {
		if want[r.ID] {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *reqRepoFake) GetByID(_ context.Context, id string) (*domain.Requirement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, list := range f.reqs {
		for _, r := range list {
			if r.ID == id {
				copyReq := r
				return &copyReq, nil
			}
		}
	}
	return nil, domain.WrapError(domain.ErrRequirementNotFound, "get requirement", fmt.Errorf("id %s", id))
}

func (f *reqRepoFake) UpdateCategory(_ context.Context, id string, category domain.RequirementCategory) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for docID, list := range f.reqs {
		for i, r := range list {
			if r.ID == id {
				f.reqs[docID][i].Category = category
				return nil
			}
		}
	}
	return domain.WrapError(domain.ErrRequirementNotFound, "update category", fmt.Errorf("id %s", id))
}

type matchRepoFake struct {
	mu        sync.Mutex
	results   map[string][]domain.MatchResult // by document id
	summaries map[string]domain.MatchSummary
	upserts   int
}

func newMatchRepoFake() *matchRepoFake {
	return &matchRepoFake{
		results:   make(map[string][]domain.MatchResult),
		summaries: make(map[string]domain.MatchSummary),
	}
}

func (f *matchRepoFake) ReplaceForRequirements(_ context.Context, documentID string, results []domain.MatchResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	touched := make(map[string]bool)
	for _, r := range results {
		touched[r.RequirementID] = true
	}
	var kept []domain.MatchResult
	for _, r := range f.results[documentID] {
		if !touched[r.RequirementID] {
			kept = append(kept, r)
		}
	}
	f.results[documentID] = append(kept, results...)
	return nil
}

func (f *matchRepoFake) ListByDocument(_ context.Context, documentID string) ([]domain.MatchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.MatchResult(nil), f.results[documentID]...), nil
}

func (f *matchRepoFake) UpsertSummary(_ context.Context, summary domain.MatchSummary) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.summaries[summary.DocumentID] = summary
	f.upserts++
	return nil
}

func (f *matchRepoFake) GetSummary(_ context.Context, documentID string) (*domain.MatchSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.summaries[documentID]
	if !ok {
		return nil, nil
	}
	copySummary := s
	return &copySummary, nil
}

type respRepoFake struct {
	mu        sync.Mutex
	responses map[string]*domain.Response
	comments  map[string]*domain.Comment
}

func newRespRepoFake(resps ...*domain.Response) *respRepoFake {
	f := &respRepoFake{
		responses: make(map[string]*domain.Response),
		comments:  make(map[string]*domain.Comment),
	}
	for _, r := range resps {
		copyResp := *r
		f.responses[r.ID] = &copyResp
	}
	return f
}

func (f *respRepoFake) UpsertDraft(_ context.Context, resp *domain.Response) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.responses {
		if existing.DocumentID == resp.DocumentID && existing.RequirementID == resp.RequirementID {
			return false, nil
		}
	}
	copyResp := *resp
	f.responses[resp.ID] = &copyResp
	return true, nil
}

func (f *respRepoFake) GetByID(_ context.Context, id string) (*domain.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.responses[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrResponseNotFound, "get response", fmt.Errorf("id %s", id))
	}
	copyResp := *r
	return &copyResp, nil
}

func (f *respRepoFake) ListByDocument(_ context.Context, documentID string) ([]domain.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Response
	for _, r := range f.responses {
		if r.DocumentID == documentID {
			out = append(out, *r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (f *respRepoFake) ListByDocumentAndStatus(_ context.Context, documentID string, status domain.ResponseStatus) ([]domain.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Response
	for _, r := range f.responses {
		if r.DocumentID == documentID && r.Status == status {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *respRepoFake) UpdateTextCAS(_ context.Context, id, text string, expectedVersion int, now time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.responses[id]
	if !ok {
		return false, domain.WrapError(domain.ErrResponseNotFound, "update text", fmt.Errorf("id %s", id))
	}
	if r.Version != expectedVersion || r.Status == domain.ResponseExported {
		return false, nil
	}
	r.Text = text
	r.Version++
	if r.Status == domain.ResponsePendingReview || r.Status == domain.ResponseApproved {
		r.Status = domain.ResponseDraft
		r.ApprovedBy = ""
		r.ApprovedAt = nil
	}
	r.UpdatedAt = now
	return true, nil
}

func (f *respRepoFake) UpdateStatusCAS(_ context.Context, id string, from, to domain.ResponseStatus, now time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.responses[id]
	if !ok {
		return false, domain.WrapError(domain.ErrResponseNotFound, "update status", fmt.Errorf("id %s", id))
	}
	if r.Status != from {
		return false, nil
	}
	r.Status = to
	r.UpdatedAt = now
	return true, nil
}

func (f *respRepoFake) Approve(_ context.Context, id, approver string, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.responses[id]
	if !ok {
		return false, domain.WrapError(domain.ErrResponseNotFound, "approve", fmt.Errorf("id %s", id))
	}
	if r.Status != domain.ResponsePendingReview {
		return false, nil
	}
	r.Status = domain.ResponseApproved
	r.ApprovedBy = approver
	approvedAt := at
	r.ApprovedAt = &approvedAt
	r.UpdatedAt = at
	return true, nil
}

func (f *respRepoFake) MarkExported(_ context.Context, documentID string, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, r := range f.responses {
		if r.DocumentID == documentID && r.Status == domain.ResponseApproved {
			r.Status = domain.ResponseExported
			r.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

func (f *respRepoFake) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.responses, id)
	return nil
}

func (f *respRepoFake) AddComment(_ context.Context, comment *domain.Comment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copyComment := *comment
	f.comments[comment.ID] = &copyComment
	return nil
}

func (f *respRepoFake) ListComments(_ context.Context, responseID string) ([]domain.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Comment
	for _, c := range f.comments {
		if c.ResponseID == responseID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f *respRepoFake) GetComment(_ context.Context, commentID string) (*domain.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.comments[commentID]
	if !ok {
		return nil, domain.WrapError(domain.ErrCommentNotFound, "get comment", fmt.Errorf("id %s", commentID))
	}
	copyComment := *c
	return &copyComment, nil
}

func (f *respRepoFake) ResolveComment(_ context.Context, commentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.comments[commentID]
	if !ok {
		return domain.WrapError(domain.ErrCommentNotFound, "resolve comment", fmt.Errorf("id %s", commentID))
	}
	c.Resolved = true
	return nil
}

type exportRepoFake struct {
	mu      sync.Mutex
	records map[string]*domain.ExportRecord // by export key
}

func newExportRepoFake() *exportRepoFake {
	return &exportRepoFake{records: make(map[string]*domain.ExportRecord)}
}

func (f *exportRepoFake) FindByKey(_ context.Context, exportKey string) (*domain.ExportRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[exportKey]
	if !ok {
		return nil, nil
	}
	copyRec := *rec
	return &copyRec, nil
}

func (f *exportRepoFake) Create(_ context.Context, rec *domain.ExportRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copyRec := *rec
	f.records[rec.ExportKey] = &copyRec
	return nil
}

func (f *exportRepoFake) ListByDocument(_ context.Context, documentID string) ([]domain.ExportRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.ExportRecord
	for _, r := range f.records {
		if r.DocumentID == documentID {
			out = append(out, *r)
		}
	}
	return out, nil
}

type storageFake struct {
	mu    sync.Mutex
	files map[string][]byte
}

func newStorageFake() *storageFake {
	return &storageFake{files: make(map[string][]byte)}
}

func (f *storageFake) Save(_ context.Context, key string, data io.Reader) error {
	content, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[key] = content
	return nil
}

func (f *storageFake) Open(_ context.Context, key string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	content, ok := f.files[key]
	if !ok {
		return nil, fmt.Errorf("no stored file %s", key)
	}
	return io.NopCloser(bytes.NewReader(content)), nil
}

func (f *storageFake) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.files, key)
	return nil
}

type queueFake struct {
	mu            sync.Mutex
	processTasks  []domain.ProcessTask
	generateTasks []domain.GenerateTask
	publishErr    error
}

func (f *queueFake) PublishDocumentProcess(_ context.Context, task domain.ProcessTask) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.processTasks = append(f.processTasks, task)
	return nil
}

func (f *queueFake) SubscribeDocumentProcess(context.Context, func(context.Context, domain.ProcessTask) error) error {
	return nil
}

func (f *queueFake) PublishResponseGenerate(_ context.Context, task domain.GenerateTask) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.generateTasks = append(f.generateTasks, task)
	return nil
}

func (f *queueFake) SubscribeResponseGenerate(context.Context, func(context.Context, domain.GenerateTask) error) error {
	return nil
}

type analyzerFake struct {
	parsed     domain.ParsedDocument
	parseErr   error
	drafts     []domain.RequirementDraft
	extractErr error
	matches    []domain.MatchDraft
	matchErr   error
	composed   string
	composeErr error
}

func (f *analyzerFake) Parse(context.Context, string, io.Reader) (domain.ParsedDocument, error) {
	if f.parseErr != nil {
		return domain.ParsedDocument{}, f.parseErr
	}
	return f.parsed, nil
}

func (f *analyzerFake) ExtractRequirements(context.Context, domain.ParsedDocument) ([]domain.RequirementDraft, error) {
	if f.extractErr != nil {
		return nil, f.extractErr
	}
	return f.drafts, nil
}

func (f *analyzerFake) MatchRequirements(_ context.Context, reqs []domain.Requirement) ([]domain.MatchDraft, error) {
	if f.matchErr != nil {
		return nil, f.matchErr
	}
	if f.matches != nil {
		return f.matches, nil
	}
	var out []domain.MatchDraft
	for _, r := range reqs {
		out = append(out, domain.MatchDraft{RequirementID: r.ID, MatchPercentage: 75})
	}
	return out, nil
}

func (f *analyzerFake) Compose(_ context.Context, req domain.Requirement, _ []domain.MatchResult, _ domain.ComposeOptions) (string, error) {
	if f.composeErr != nil {
		return "", f.composeErr
	}
	if f.composed != "" {
		return f.composed, nil
	}
	return "Response to: " + req.Text, nil
}

type rendererFake struct {
	data    []byte
	renders int
	err     error
}

func (f *rendererFake) Render(context.Context, domain.Proposal) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.renders++
	if f.data != nil {
		return f.data, nil
	}
	return []byte("artifact"), nil
}

func (f *rendererFake) Format() string { return "xlsx" }
