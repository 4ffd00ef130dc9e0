package scheduler

import (
	"context"
	"time"
)

// State of the scheduler loop.
type State int

const (
	// Idle is the state between passes.
	Idle State = iota
	// Running is the state while a pass executes.
	Running
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	default:
		return "idle"
	}
}

// Phases of a pass, as reported in logs and results.
const (
	PhaseReconcile = "reconcile"
	PhaseBuild     = "build"
	PhaseRender    = "render"
	PhaseEmit      = "emit"
)

// Sleeper blocks between passes. It returns early with ctx.Err() when ctx
// is cancelled.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// SleeperFunc adapts a function to Sleeper.
type SleeperFunc func(ctx context.Context, d time.Duration) error

func (f SleeperFunc) Sleep(ctx context.Context, d time.Duration) error { return f(ctx, d) }

// TimerSleeper sleeps on a real timer.
var TimerSleeper Sleeper = SleeperFunc(func(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
})

// PassResult describes one reconcile, build and render pass.
type PassResult struct {
	Pass      uint64        `json:"pass"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration_ns"`
	Services  int           `json:"services"`
	Phase     string        `json:"phase,omitempty"`
	ErrorKind string        `json:"error_kind,omitempty"`
	Error     string        `json:"error,omitempty"`
	Err       error         `json:"-"`
}

// OK reports whether the pass succeeded.
func (r PassResult) OK() bool { return r.Err == nil }

// Status is a point-in-time view of the scheduler.
type Status struct {
	State         string      `json:"state"`
	Interval      string      `json:"interval"`
	Passes        uint64      `json:"passes"`
	LastPass      *PassResult `json:"last_pass,omitempty"`
	LastSuccessAt *time.Time  `json:"last_success_at,omitempty"`
	// Rendered is the output of the last successful pass.
	Rendered []byte `json:"-"`
}
