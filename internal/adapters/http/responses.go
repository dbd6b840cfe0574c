package httpadapter

import (
	"net/http"

	"github.com/okarpov/tenderdesk/internal/core/domain"
)

func (rt *Router) listResponses(w http.ResponseWriter, r *http.Request) {
	responses, err := rt.workflow.List(r.Context(), actorFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"responses": responses})
}

func (rt *Router) generateResponses(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RequirementIDs []string              `json:"requirement_ids"`
		Options        domain.ComposeOptions `json:"options"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	queued, err := rt.workflow.RequestGeneration(
		r.Context(),
		actorFromContext(r.Context()),
		r.PathValue("id"),
		req.RequirementIDs,
		req.Options,
	)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"queued": queued})
}

func (rt *Router) editResponse(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text    string `json:"response_text"`
		Version int    `json:"version"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	resp, err := rt.workflow.Edit(r.Context(), actorFromContext(r.Context()), r.PathValue("id"), req.Text, req.Version)
	if err != nil {
		if rt.metrics != nil && domain.IsKind(err, domain.ErrVersionConflict) {
			rt.metrics.RecordEditConflict(rt.cfg.Service)
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (rt *Router) deleteResponse(w http.ResponseWriter, r *http.Request) {
	if err := rt.workflow.Delete(r.Context(), actorFromContext(r.Context()), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) submitResponse(w http.ResponseWriter, r *http.Request) {
	resp, err := rt.workflow.SubmitForReview(r.Context(), actorFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (rt *Router) approveResponse(w http.ResponseWriter, r *http.Request) {
	resp, err := rt.workflow.Approve(r.Context(), actorFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordApproval(rt.cfg.Service)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (rt *Router) listComments(w http.ResponseWriter, r *http.Request) {
	comments, err := rt.workflow.ListComments(r.Context(), actorFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"comments": comments})
}

func (rt *Router) addComment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"comment_text"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	comment, err := rt.workflow.AddComment(r.Context(), actorFromContext(r.Context()), r.PathValue("id"), req.Text)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, comment)
}

func (rt *Router) resolveComment(w http.ResponseWriter, r *http.Request) {
	comment, err := rt.workflow.ResolveComment(r.Context(), actorFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, comment)
}
