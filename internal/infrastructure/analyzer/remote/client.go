package remote

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/okarpov/tenderdesk/internal/core/domain"
	"github.com/okarpov/tenderdesk/internal/core/ports"
	"github.com/okarpov/tenderdesk/internal/infrastructure/resilience"
)

// Client talks to the external analysis service over HTTP. The bearer token
// is fetched from the provider on every call so a refresh mid-flight is
// picked up by the next request.
type Client struct {
	baseURL    string
	tokens     ports.TokenProvider
	httpClient *http.Client
	executor   *resilience.Executor
}

type Options struct {
	Timeout            time.Duration
	ResilienceExecutor *resilience.Executor
}

func New(baseURL string, tokens ports.TokenProvider, options Options) *Client {
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		tokens:     tokens,
		httpClient: &http.Client{Timeout: timeout},
		executor:   options.ResilienceExecutor,
	}
}

func (c *Client) Parse(ctx context.Context, fileName string, file io.Reader) (domain.ParsedDocument, error) {
	// The file reader cannot be replayed, so the upload itself runs outside
	// the retry loop.
	data, err := io.ReadAll(file)
	if err != nil {
		return domain.ParsedDocument{}, fmt.Errorf("read file for parse: %w", err)
	}

	var response struct {
		Text  string `json:"text"`
		Pages int    `json:"pages"`
	}
	call := func(ctx context.Context) error {
		return c.postMultipart(ctx, "/v1/parse", fileName, data, &response, "parse")
	}
	if err := c.execute(ctx, "analyzer.parse", call); err != nil {
		return domain.ParsedDocument{}, err
	}
	return domain.ParsedDocument{Text: response.Text, Pages: response.Pages}, nil
}

func (c *Client) ExtractRequirements(ctx context.Context, parsed domain.ParsedDocument) ([]domain.RequirementDraft, error) {
	request := map[string]any{
		"text":  parsed.Text,
		"pages": parsed.Pages,
	}
	var response struct {
		Requirements []domain.RequirementDraft `json:"requirements"`
	}
	call := func(ctx context.Context) error {
		return c.postJSON(ctx, "/v1/requirements/extract", request, &response, "extract")
	}
	if err := c.execute(ctx, "analyzer.extract", call); err != nil {
		return nil, err
	}
	return response.Requirements, nil
}

func (c *Client) MatchRequirements(ctx context.Context, reqs []domain.Requirement) ([]domain.MatchDraft, error) {
	type matchInput struct {
		RequirementID string `json:"requirement_id"`
		Text          string `json:"text"`
		Category      string `json:"category"`
	}
	inputs := make([]matchInput, 0, len(reqs))
	for _, r := range reqs {
		inputs = append(inputs, matchInput{RequirementID: r.ID, Text: r.Text, Category: string(r.Category)})
	}

	var response struct {
		Matches []domain.MatchDraft `json:"matches"`
	}
	call := func(ctx context.Context) error {
		return c.postJSON(ctx, "/v1/requirements/match", map[string]any{"requirements": inputs}, &response, "match")
	}
	if err := c.execute(ctx, "analyzer.match", call); err != nil {
		return nil, err
	}
	return response.Matches, nil
}

func (c *Client) Compose(ctx context.Context, req domain.Requirement, matches []domain.MatchResult, opts domain.ComposeOptions) (string, error) {
	type matchContext struct {
		Content         string  `json:"content"`
		MatchPercentage float64 `json:"match_percentage"`
	}
	contexts := make([]matchContext, 0, len(matches))
	for _, m := range matches {
		contexts = append(contexts, matchContext{Content: m.MatchedContent, MatchPercentage: m.MatchPercentage})
	}

	request := map[string]any{
		"requirement_text": req.Text,
		"category":         string(req.Category),
		"matches":          contexts,
		"style":            opts.Style,
		"mode":             opts.Mode,
		"tone":             opts.Tone,
	}
	var response struct {
		Text string `json:"text"`
	}
	call := func(ctx context.Context) error {
		return c.postJSON(ctx, "/v1/responses/compose", request, &response, "compose")
	}
	if err := c.execute(ctx, "analyzer.compose", call); err != nil {
		return "", err
	}
	return strings.TrimSpace(response.Text), nil
}

func (c *Client) execute(ctx context.Context, operation string, call func(context.Context) error) error {
	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, operation, call, classifyAnalyzerError)
	} else {
		err = call(ctx)
	}
	return wrapTemporaryIfNeeded(operation, err)
}
