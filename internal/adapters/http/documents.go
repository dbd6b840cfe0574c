package httpadapter

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/okarpov/tenderdesk/internal/core/domain"
)

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	if rt.cfg.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, rt.cfg.MaxUploadBytes)
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "file exceeds the upload limit"})
			return
		}
		writeError(w, domain.WrapError(domain.ErrInvalidInput, "upload document", errors.New("multipart field 'file' is required")))
		return
	}
	defer file.Close()

	tenderName := strings.TrimSpace(r.FormValue("tender_name"))

	doc, err := rt.uploader.Upload(
		r.Context(),
		actorFromContext(r.Context()),
		fileHeader.Filename,
		tenderName,
		fileHeader.Size,
		file,
	)
	if err != nil {
		writeError(w, err)
		return
	}

	if rt.metrics != nil {
		rt.metrics.RecordUpload(rt.cfg.Service, doc.FileType, doc.FileSizeBytes)
	}
	writeJSON(w, http.StatusCreated, doc)
}

func (rt *Router) listDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := rt.docs.List(r.Context(), actorFromContext(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

func (rt *Router) getDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := rt.docs.GetByID(r.Context(), actorFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (rt *Router) deleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := rt.docs.Delete(r.Context(), actorFromContext(r.Context()), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) documentStatus(w http.ResponseWriter, r *http.Request) {
	doc, err := rt.docs.GetByID(r.Context(), actorFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":                  doc.ID,
		"status":              doc.Status,
		"processing_progress": doc.Progress,
		"attempt":             doc.Attempt,
		"step":                domain.StepLabel(doc.Status),
		"error_message":       doc.ErrorMessage,
	})
}

func (rt *Router) requestProcessing(w http.ResponseWriter, r *http.Request) {
	doc, err := rt.lifecycle.RequestProcessing(r.Context(), actorFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, doc)
}

func (rt *Router) retryProcessing(w http.ResponseWriter, r *http.Request) {
	doc, err := rt.lifecycle.Retry(r.Context(), actorFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, doc)
}

// reportProgress is the processor's callback. Stale and duplicate deliveries
// are acknowledged with 200 so an at-least-once sender does not retry them.
func (rt *Router) reportProgress(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	if actor.Role != domain.RoleService && actor.Role != domain.RoleAdmin {
		writeError(w, domain.WrapError(domain.ErrForbidden, "report progress",
			errors.New("progress callbacks require a service token")))
		return
	}

	var req struct {
		Status       string `json:"status"`
		Progress     int    `json:"progress"`
		Attempt      int    `json:"attempt"`
		ErrorMessage string `json:"error_message"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	documentID := r.PathValue("id")
	err := rt.lifecycle.ReportProgress(r.Context(), documentID, domain.ProgressUpdate{
		Status:       domain.DocumentStatus(req.Status),
		Progress:     req.Progress,
		Attempt:      req.Attempt,
		ErrorMessage: req.ErrorMessage,
	})
	if domain.IsKind(err, domain.ErrStaleUpdate) {
		slog.Info("progress callback dropped",
			"document_id", documentID,
			"status", req.Status,
			"progress", req.Progress,
			"attempt", req.Attempt,
			"reason", err.Error(),
		)
		if rt.metrics != nil {
			rt.metrics.RecordStaleUpdate(rt.cfg.Service)
		}
		writeJSON(w, http.StatusOK, map[string]any{"applied": false})
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"applied": true})
}
