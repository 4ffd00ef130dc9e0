package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/hasu/internal/httpserver/deps"
	"github.com/MrSnakeDoc/hasu/internal/logger"
)

// Rendered serves the output of the last successful pass.
func Rendered(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st := d.Scheduler.Status()
		if st.LastSuccessAt == nil {
			http.Error(w, "no successful render yet", http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(st.Rendered); err != nil {
			d.Logger.Debug("failed to write response", logger.Error(err))
		}
	}
}
