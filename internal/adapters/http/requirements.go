package httpadapter

import (
	"net/http"

	"github.com/okarpov/tenderdesk/internal/core/domain"
)

func (rt *Router) listRequirements(w http.ResponseWriter, r *http.Request) {
	reqs, err := rt.catalog.List(r.Context(), actorFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"requirements": reqs})
}

func (rt *Router) recategorizeRequirement(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Category string `json:"category"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	updated, err := rt.catalog.Recategorize(
		r.Context(),
		actorFromContext(r.Context()),
		r.PathValue("id"),
		domain.RequirementCategory(req.Category),
	)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (rt *Router) matchSummary(w http.ResponseWriter, r *http.Request) {
	report, err := rt.matches.Report(r.Context(), actorFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (rt *Router) listMatches(w http.ResponseWriter, r *http.Request) {
	results, err := rt.matches.ListMatches(r.Context(), actorFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"matches": results})
}
