package httpadapter

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"time"
)

var exportContentTypes = map[string]string{
	"xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

// exportDocument streams the proposal artifact back to the caller. A repeat
// request for the same approval set serves the previously rendered file.
func (rt *Router) exportDocument(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	record, artifact, err := rt.exporter.ExportDocument(r.Context(), actorFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	defer artifact.Close()

	if rt.metrics != nil {
		reused := record.CreatedAt.Before(start)
		rt.metrics.RecordExport(rt.cfg.Service, reused)
	}

	contentType := exportContentTypes[record.Format]
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	fileName := path.Base(record.FilePath)

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))
	w.Header().Set("X-Export-Id", record.ID)
	if _, err := io.Copy(w, artifact); err != nil {
		slog.Error("stream export artifact", "export_id", record.ID, "error", err)
	}
}
