package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/hasu/internal/httpserver/deps"
	"github.com/MrSnakeDoc/hasu/internal/scheduler"
)

type componentStatus struct {
	OK       bool   `json:"ok"`
	Enabled  bool   `json:"enabled"`
	Services *int   `json:"services,omitempty"`
	LastPass string `json:"last_pass,omitempty"`
	Error    string `json:"error,omitempty"`
}

type statusResponse struct {
	Mode       string                     `json:"mode"`
	Scheduler  scheduler.Status           `json:"scheduler"`
	Components map[string]componentStatus `json:"components"`
}

// Status reports the scheduler state and the health of each component.
func Status(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")

		st := d.Scheduler.Status()
		components := map[string]componentStatus{
			"registry": registryStatus(st),
			"redis":    checkRedis(r.Context(), d),
		}

		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(statusResponse{
			Mode:       determineMode(st, components),
			Scheduler:  st,
			Components: components,
		})
	}
}

func registryStatus(st scheduler.Status) componentStatus {
	if st.LastPass == nil {
		return componentStatus{Enabled: true, LastPass: "never"}
	}

	services := st.LastPass.Services
	cs := componentStatus{
		OK:       st.LastPass.OK(),
		Enabled:  true,
		Services: &services,
		LastPass: st.LastPass.StartedAt.Format(time.RFC3339),
	}
	if !cs.OK {
		cs.Error = st.LastPass.ErrorKind
	}
	return cs
}

// determineMode is "ok" when the last pass succeeded, "stale" when an
// older render is still being served, "down" when nothing rendered yet.
func determineMode(st scheduler.Status, components map[string]componentStatus) string {
	switch {
	case st.LastSuccessAt == nil:
		return "down"
	case !components["registry"].OK:
		return "stale"
	case components["redis"].Enabled && !components["redis"].OK:
		return "degraded"
	default:
		return "ok"
	}
}

func checkRedis(ctx context.Context, d deps.Deps) componentStatus {
	if d.RedisClient == nil {
		return componentStatus{Enabled: false}
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := d.RedisClient.Ping(ctx).Err(); err != nil {
		return componentStatus{Enabled: true, Error: err.Error()}
	}
	return componentStatus{OK: true, Enabled: true}
}
