package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/hasu/internal/httpserver/deps"
)

type healthzResponse struct {
	Status        string     `json:"status"`
	UptimeSeconds float64    `json:"uptime_seconds"`
	Scheduler     string     `json:"scheduler"`
	Passes        uint64     `json:"passes"`
	LastSuccessAt *time.Time `json:"last_success_at,omitempty"`
	Version       string     `json:"version,omitempty"`
	Commit        string     `json:"commit,omitempty"`
	BuildDate     string     `json:"build_date,omitempty"`
	GoVersion     string     `json:"go_version,omitempty"`
}

// Healthz is the liveness check. It always answers 200 while the process
// serves requests; failed passes show up in /readyz and /status instead.
func Healthz(d deps.Deps) http.HandlerFunc {
	start := d.StartTime
	now := d.TimeNow
	if now == nil {
		now = time.Now
	}
	return func(w http.ResponseWriter, r *http.Request) {
		st := d.Scheduler.Status()

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		_ = json.NewEncoder(w).Encode(healthzResponse{
			Status:        "ok",
			UptimeSeconds: now().Sub(start).Seconds(),
			Scheduler:     st.State,
			Passes:        st.Passes,
			LastSuccessAt: st.LastSuccessAt,
			Version:       d.Version,
			Commit:        d.Commit,
			BuildDate:     d.BuildDate,
			GoVersion:     d.GoVersion,
		})
	}
}
