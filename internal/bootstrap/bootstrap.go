package bootstrap

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/okarpov/tenderdesk/internal/config"
	"github.com/okarpov/tenderdesk/internal/core/domain"
	"github.com/okarpov/tenderdesk/internal/core/ports"
	"github.com/okarpov/tenderdesk/internal/core/usecase"
	"github.com/okarpov/tenderdesk/internal/infrastructure/analyzer/remote"
	"github.com/okarpov/tenderdesk/internal/infrastructure/identity"
	"github.com/okarpov/tenderdesk/internal/infrastructure/inspect"
	"github.com/okarpov/tenderdesk/internal/infrastructure/queue/nats"
	"github.com/okarpov/tenderdesk/internal/infrastructure/renderer/remotedocx"
	"github.com/okarpov/tenderdesk/internal/infrastructure/renderer/xlsx"
	"github.com/okarpov/tenderdesk/internal/infrastructure/repository/postgres"
	"github.com/okarpov/tenderdesk/internal/infrastructure/resilience"
	"github.com/okarpov/tenderdesk/internal/infrastructure/storage/localfs"
)

type App struct {
	Config  config.Config
	Company domain.CompanyProfile

	Queue ports.TaskQueue

	Documents  *usecase.DocumentUseCase
	Lifecycle  *usecase.LifecycleUseCase
	Catalog    *usecase.CatalogUseCase
	Aggregator *usecase.AggregatorUseCase
	Workflow   *usecase.WorkflowUseCase
	Exporter   *usecase.ExportUseCase
	Pipeline   *usecase.PipelineUseCase

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	docRepo := postgres.NewDocumentRepository(db)
	reqRepo := postgres.NewRequirementRepository(db)
	matchRepo := postgres.NewMatchRepository(db)
	respRepo := postgres.NewResponseRepository(db)
	exportRepo := postgres.NewExportRepository(db)

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSProcessSubject, cfg.NATSGenerateSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init task queue: %w", err)
	}

	tokens := newTokenProvider(cfg)
	analyzer := remote.New(cfg.AnalyzerURL, tokens, remote.Options{ResilienceExecutor: executor})
	renderer := newRenderer(cfg, tokens, executor)
	company, err := config.LoadCompanyProfile(cfg.CompanyProfilePath)
	if err != nil {
		queue.Close()
		_ = db.Close()
		return nil, fmt.Errorf("load company profile: %w", err)
	}

	documents := usecase.NewDocumentUseCase(docRepo, storage, inspect.New())
	lifecycle := usecase.NewLifecycleUseCase(docRepo, queue)
	aggregator := usecase.NewAggregatorUseCase(usecase.AggregatorConfig{
		MatchThreshold:   cfg.MatchThreshold,
		OverallWeighting: cfg.OverallWeighting,
	}, docRepo, reqRepo, matchRepo)
	catalog := usecase.NewCatalogUseCase(docRepo, reqRepo, aggregator)
	workflow := usecase.NewWorkflowUseCase(docRepo, reqRepo, matchRepo, respRepo, analyzer, queue)
	exporter := usecase.NewExportUseCase(docRepo, reqRepo, matchRepo, respRepo, exportRepo, storage, renderer, company)
	pipeline := usecase.NewPipelineUseCase(docRepo, storage, analyzer, catalog, aggregator, lifecycle)

	return &App{
		Config:  cfg,
		Company: company,
		Queue:   queue,

		Documents:  documents,
		Lifecycle:  lifecycle,
		Catalog:    catalog,
		Aggregator: aggregator,
		Workflow:   workflow,
		Exporter:   exporter,
		Pipeline:   pipeline,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

// newTokenProvider prefers the identity service when a token URL is
// configured and falls back to the statically issued token.
func newTokenProvider(cfg config.Config) ports.TokenProvider {
	if cfg.AnalyzerTokenURL == "" {
		return identity.NewStaticProvider(cfg.AnalyzerToken)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	fetch := func(ctx context.Context) (string, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.AnalyzerTokenURL, nil)
		if err != nil {
			return "", fmt.Errorf("build token request: %w", err)
		}
		resp, err := client.Do(req)
		if err != nil {
			return "", fmt.Errorf("fetch token: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 300 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return "", fmt.Errorf("fetch token: %s: %s", resp.Status, body)
		}

		var payload struct {
			Token string `json:"token"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			return "", fmt.Errorf("decode token response: %w", err)
		}
		if payload.Token == "" {
			return "", fmt.Errorf("token response is empty")
		}
		return payload.Token, nil
	}
	return identity.NewRefreshingProvider(fetch, 30*time.Second)
}

func newRenderer(cfg config.Config, tokens ports.TokenProvider, executor *resilience.Executor) ports.Renderer {
	if cfg.RendererFormat == "docx" {
		return remotedocx.New(cfg.RendererURL, tokens, remotedocx.Options{ResilienceExecutor: executor})
	}
	return xlsx.New()
}
