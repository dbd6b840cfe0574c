package remotedocx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/okarpov/tenderdesk/internal/core/domain"
	"github.com/okarpov/tenderdesk/internal/core/ports"
	"github.com/okarpov/tenderdesk/internal/infrastructure/resilience"
)

// Renderer delegates DOCX assembly to the external document service and
// returns the binary artifact as-is.
type Renderer struct {
	baseURL    string
	tokens     ports.TokenProvider
	httpClient *http.Client
	executor   *resilience.Executor
}

type Options struct {
	Timeout            time.Duration
	ResilienceExecutor *resilience.Executor
}

func New(baseURL string, tokens ports.TokenProvider, options Options) *Renderer {
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Renderer{
		baseURL:    strings.TrimRight(baseURL, "/"),
		tokens:     tokens,
		httpClient: &http.Client{Timeout: timeout},
		executor:   options.ResilienceExecutor,
	}
}

func (r *Renderer) Format() string { return "docx" }

func (r *Renderer) Render(ctx context.Context, proposal domain.Proposal) ([]byte, error) {
	payload, err := json.Marshal(proposal)
	if err != nil {
		return nil, fmt.Errorf("marshal proposal: %w", err)
	}

	var artifact []byte
	call := func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/v1/render/docx", bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("create render request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		if r.tokens != nil {
			token, err := r.tokens.CurrentToken(ctx)
			if err != nil {
				return fmt.Errorf("fetch render token: %w", err)
			}
			if token != "" {
				req.Header.Set("Authorization", "Bearer "+token)
			}
		}

		resp, err := r.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("render request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
			return fmt.Errorf("render status %s: %s", resp.Status, strings.TrimSpace(string(raw)))
		}

		artifact, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read render response: %w", err)
		}
		return nil
	}

	if r.executor != nil {
		err = r.executor.Execute(ctx, "renderer.docx", call, nil)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return nil, err
	}
	if len(artifact) == 0 {
		return nil, fmt.Errorf("render returned an empty artifact")
	}
	return artifact, nil
}
