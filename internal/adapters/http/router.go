package httpadapter

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/okarpov/tenderdesk/internal/core/domain"
	"github.com/okarpov/tenderdesk/internal/core/ports"
	"github.com/okarpov/tenderdesk/internal/observability/metrics"
)

// RouterConfig carries the request-handling knobs the router cannot derive
// from its use cases.
type RouterConfig struct {
	Service        string
	JWTSecret      string
	MaxUploadBytes int64
	RateLimitRPS   float64
	RateLimitBurst int
	MaxInFlight    int
}

type Router struct {
	cfg     RouterConfig
	metrics *metrics.HTTPServerMetrics

	uploader  ports.DocumentUploader
	docs      ports.DocumentReader
	lifecycle ports.DocumentLifecycle
	catalog   ports.RequirementCatalog
	matches   ports.MatchAggregator
	workflow  ports.ResponseWorkflow
	exporter  ports.ExportCoordinator
}

func NewRouter(
	cfg RouterConfig,
	httpMetrics *metrics.HTTPServerMetrics,
	uploader ports.DocumentUploader,
	docs ports.DocumentReader,
	lifecycle ports.DocumentLifecycle,
	catalog ports.RequirementCatalog,
	matches ports.MatchAggregator,
	workflow ports.ResponseWorkflow,
	exporter ports.ExportCoordinator,
) *Router {
	return &Router{
		cfg:       cfg,
		metrics:   httpMetrics,
		uploader:  uploader,
		docs:      docs,
		lifecycle: lifecycle,
		catalog:   catalog,
		matches:   matches,
		workflow:  workflow,
		exporter:  exporter,
	}
}

func (rt *Router) Handler() http.Handler {
	api := http.NewServeMux()

	api.HandleFunc("POST /api/documents", rt.uploadDocument)
	api.HandleFunc("GET /api/documents", rt.listDocuments)
	api.HandleFunc("GET /api/documents/{id}", rt.getDocument)
	api.HandleFunc("DELETE /api/documents/{id}", rt.deleteDocument)
	api.HandleFunc("GET /api/documents/{id}/status", rt.documentStatus)
	api.HandleFunc("POST /api/documents/{id}/status", rt.reportProgress)
	api.HandleFunc("POST /api/documents/{id}/process", rt.requestProcessing)
	api.HandleFunc("POST /api/documents/{id}/retry", rt.retryProcessing)

	api.HandleFunc("GET /api/documents/{id}/requirements", rt.listRequirements)
	api.HandleFunc("PUT /api/requirements/{id}/category", rt.recategorizeRequirement)
	api.HandleFunc("GET /api/documents/{id}/match-summary", rt.matchSummary)
	api.HandleFunc("GET /api/documents/{id}/matches", rt.listMatches)

	api.HandleFunc("GET /api/documents/{id}/responses", rt.listResponses)
	api.HandleFunc("POST /api/documents/{id}/responses/generate", rt.generateResponses)
	api.HandleFunc("PUT /api/responses/{id}", rt.editResponse)
	api.HandleFunc("DELETE /api/responses/{id}", rt.deleteResponse)
	api.HandleFunc("POST /api/responses/{id}/submit", rt.submitResponse)
	api.HandleFunc("POST /api/responses/{id}/approve", rt.approveResponse)
	api.HandleFunc("GET /api/responses/{id}/comments", rt.listComments)
	api.HandleFunc("POST /api/responses/{id}/comments", rt.addComment)
	api.HandleFunc("POST /api/comments/{id}/resolve", rt.resolveComment)

	api.HandleFunc("POST /api/documents/{id}/export", rt.exportDocument)

	validated, err := requestValidationMiddleware(api)
	if err != nil {
		// The contract document ships with the binary; failing to load it
		// is a build defect, not a runtime condition.
		panic(err)
	}
	protected := authMiddleware(rt.cfg.JWTSecret, validated)
	if rt.cfg.RateLimitRPS > 0 {
		limiter := rate.NewLimiter(rate.Limit(rt.cfg.RateLimitRPS), rt.cfg.RateLimitBurst)
		protected = rateLimitMiddleware(limiter, protected)
	}
	protected = maxInFlightMiddleware(rt.cfg.MaxInFlight, protected)

	// Probes and scrapes stay outside auth and load shedding.
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}
	mux.Handle("/api/", protected)

	var handler http.Handler = mux
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(rt.cfg.Service, handler)
	}
	return requestIDMiddleware(accessLogMiddleware(handler))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= 500 {
		slog.Error("request failed", "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// decodeJSON rejects trailing garbage so truncated payloads fail loudly
// instead of applying a partial update.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return domain.WrapError(domain.ErrInvalidInput, "decode request body", err)
	}
	if dec.More() {
		return domain.WrapError(domain.ErrInvalidInput, "decode request body", errors.New("unexpected trailing data"))
	}
	return nil
}
