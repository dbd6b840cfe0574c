package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/okarpov/tenderdesk/internal/core/domain"
	"github.com/okarpov/tenderdesk/internal/core/ports"
)

// Overall-score weighting policies. The business weighting is not settled, so
// it stays configurable rather than hard-coded.
const (
	WeightingCount    = "count"    // category averages weighted by requirement count
	WeightingCategory = "category" // plain mean of non-empty category averages
)

type AggregatorConfig struct {
	// MatchThreshold is the minimum best-match percentage for a requirement
	// to count as matched.
	MatchThreshold float64
	// OverallWeighting is WeightingCount or WeightingCategory.
	OverallWeighting string
}

func (c AggregatorConfig) normalize() AggregatorConfig {
	out := c
	if out.MatchThreshold <= 0 {
		out.MatchThreshold = 50
	}
	if out.OverallWeighting != WeightingCategory {
		out.OverallWeighting = WeightingCount
	}
	return out
}

type AggregatorUseCase struct {
	cfg     AggregatorConfig
	docs    ports.DocumentRepository
	reqs    ports.RequirementRepository
	matches ports.MatchRepository
}

func NewAggregatorUseCase(
	cfg AggregatorConfig,
	docs ports.DocumentRepository,
	reqs ports.RequirementRepository,
	matches ports.MatchRepository,
) *AggregatorUseCase {
	return &AggregatorUseCase{
		cfg:     cfg.normalize(),
		docs:    docs,
		reqs:    reqs,
		matches: matches,
	}
}

// IngestMatches atomically replaces the results for every requirement the
// batch touches, then recomputes the summary. Records that violate the match
// invariants reject the whole batch at the boundary.
func (uc *AggregatorUseCase) IngestMatches(ctx context.Context, documentID string, drafts []domain.MatchDraft) error {
	reqs, err := uc.reqs.ListByDocument(ctx, documentID)
	if err != nil {
		return fmt.Errorf("list requirements: %w", err)
	}
	known := make(map[string]bool, len(reqs))
	for _, r := range reqs {
		known[r.ID] = true
	}

	ranksSeen := make(map[string]map[int]bool)
	for i, draft := range drafts {
		if err := draft.Validate(); err != nil {
			return fmt.Errorf("match %d: %w", i, err)
		}
		if !known[draft.RequirementID] {
			return domain.WrapError(domain.ErrInvalidInput, "ingest matches",
				fmt.Errorf("match %d references unknown requirement %s", i, draft.RequirementID))
		}
		if draft.Rank != nil {
			if ranksSeen[draft.RequirementID] == nil {
				ranksSeen[draft.RequirementID] = make(map[int]bool)
			}
			if ranksSeen[draft.RequirementID][*draft.Rank] {
				return domain.WrapError(domain.ErrInvalidInput, "ingest matches",
					fmt.Errorf("duplicate rank %d for requirement %s", *draft.Rank, draft.RequirementID))
			}
			ranksSeen[draft.RequirementID][*draft.Rank] = true
		}
	}

	// One timestamp identifies the whole computation run.
	computedAt := time.Now().UTC()
	results := make([]domain.MatchResult, 0, len(drafts))
	for _, draft := range drafts {
		results = append(results, domain.MatchResult{
			ID:              uuid.NewString(),
			DocumentID:      documentID,
			RequirementID:   draft.RequirementID,
			KBItemID:        draft.KBItemID,
			MatchPercentage: draft.MatchPercentage,
			MatchedContent:  draft.MatchedContent,
			Rank:            draft.Rank,
			ComputedAt:      computedAt,
		})
	}

	if err := uc.matches.ReplaceForRequirements(ctx, documentID, results); err != nil {
		return fmt.Errorf("replace match results: %w", err)
	}

	if _, err := uc.Recompute(ctx, documentID); err != nil {
		return err
	}
	return nil
}

// Recompute derives the summary from the current requirement and match sets.
// It is deterministic and idempotent; the summary row is its only write.
func (uc *AggregatorUseCase) Recompute(ctx context.Context, documentID string) (*domain.MatchSummary, error) {
	reqs, err := uc.reqs.ListByDocument(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("list requirements: %w", err)
	}
	results, err := uc.matches.ListByDocument(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("list match results: %w", err)
	}

	summary := uc.summarize(documentID, reqs, results)
	if err := uc.matches.UpsertSummary(ctx, summary); err != nil {
		return nil, fmt.Errorf("upsert match summary: %w", err)
	}
	return &summary, nil
}

func (uc *AggregatorUseCase) summarize(documentID string, reqs []domain.Requirement, results []domain.MatchResult) domain.MatchSummary {
	summary := domain.MatchSummary{
		DocumentID:        documentID,
		TotalRequirements: len(reqs),
		ComputedAt:        time.Now().UTC(),
	}
	if len(reqs) == 0 {
		return summary
	}

	best := bestMatchByRequirement(results)

	type bucket struct {
		sum   float64
		count int
	}
	buckets := make(map[domain.RequirementCategory]*bucket)
	for _, req := range reqs {
		b := buckets[req.Category]
		if b == nil {
			b = &bucket{}
			buckets[req.Category] = b
		}
		pct := best[req.ID]
		b.sum += pct
		b.count++
		if pct >= uc.cfg.MatchThreshold {
			summary.MatchedRequirements++
		}
	}

	averages := make(map[domain.RequirementCategory]float64)
	for cat, b := range buckets {
		averages[cat] = b.sum / float64(b.count)
	}
	if avg, ok := averages[domain.CategoryEligibility]; ok {
		summary.EligibilityMatch = ptr(avg)
	}
	if avg, ok := averages[domain.CategoryTechnical]; ok {
		summary.TechnicalMatch = ptr(avg)
	}
	if avg, ok := averages[domain.CategoryCompliance]; ok {
		summary.ComplianceMatch = ptr(avg)
	}

	// Empty categories are excluded from the overall weighting, never
	// treated as zero.
	var overall float64
	switch uc.cfg.OverallWeighting {
	case WeightingCategory:
		for _, avg := range averages {
			overall += avg
		}
		overall /= float64(len(averages))
	default:
		var weighted float64
		var total int
		for cat, avg := range averages {
			weighted += avg * float64(buckets[cat].count)
			total += buckets[cat].count
		}
		overall = weighted / float64(total)
	}
	summary.OverallMatch = ptr(overall)
	return summary
}

// Report builds the read model for the match-summary endpoint.
func (uc *AggregatorUseCase) Report(ctx context.Context, actor domain.Actor, documentID string) (*domain.MatchReport, error) {
	doc, err := loadAccessibleDocument(ctx, uc.docs, actor, documentID)
	if err != nil {
		return nil, err
	}

	reqs, err := uc.reqs.ListByDocument(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("list requirements: %w", err)
	}
	results, err := uc.matches.ListByDocument(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("list match results: %w", err)
	}
	summary, err := uc.matches.GetSummary(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("get match summary: %w", err)
	}
	if summary == nil {
		derived := uc.summarize(documentID, reqs, results)
		summary = &derived
	}

	best := bestMatchByRequirement(results)
	content := bestContentByRequirement(results)

	report := &domain.MatchReport{
		DocumentID:   documentID,
		TenderName:   doc.TenderName,
		Summary:      *summary,
		Breakdown:    make(map[domain.RequirementCategory]domain.CategoryBreakdown),
		Requirements: make([]domain.RequirementWithMatch, 0, len(reqs)),
	}
	if report.TenderName == "" {
		report.TenderName = doc.FileName
	}
	for _, cat := range domain.Categories() {
		report.Breakdown[cat] = domain.CategoryBreakdown{}
	}

	for _, req := range reqs {
		pct := best[req.ID]
		report.Requirements = append(report.Requirements, domain.RequirementWithMatch{
			Requirement:     req,
			MatchPercentage: pct,
			MatchedContent:  content[req.ID],
		})
		b := report.Breakdown[req.Category]
		b.Total++
		if pct >= uc.cfg.MatchThreshold {
			b.Matched++
		}
		report.Breakdown[req.Category] = b
	}
	return report, nil
}

func (uc *AggregatorUseCase) ListMatches(ctx context.Context, actor domain.Actor, documentID string) ([]domain.MatchResult, error) {
	if _, err := loadAccessibleDocument(ctx, uc.docs, actor, documentID); err != nil {
		return nil, err
	}
	results, err := uc.matches.ListByDocument(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("list match results: %w", err)
	}
	return results, nil
}

func bestMatchByRequirement(results []domain.MatchResult) map[string]float64 {
	best := make(map[string]float64)
	for _, r := range results {
		if r.MatchPercentage > best[r.RequirementID] {
			best[r.RequirementID] = r.MatchPercentage
		}
	}
	return best
}

func bestContentByRequirement(results []domain.MatchResult) map[string]string {
	type top struct {
		pct float64
		set bool
	}
	bests := make(map[string]top)
	content := make(map[string]string)
	for _, r := range results {
		t := bests[r.RequirementID]
		if !t.set || r.MatchPercentage > t.pct {
			bests[r.RequirementID] = top{pct: r.MatchPercentage, set: true}
			content[r.RequirementID] = r.MatchedContent
		}
	}
	return content
}

func ptr(v float64) *float64 { return &v }
