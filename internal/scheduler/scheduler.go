package scheduler

import (
	"context"
	"errors"
	"io"
	"slices"
	"sync"
	"time"

	"github.com/MrSnakeDoc/hasu/internal/domain"
	"github.com/MrSnakeDoc/hasu/internal/logger"
	"github.com/MrSnakeDoc/hasu/internal/render"
)

// Reconciler computes the external services of one pass.
type Reconciler interface {
	Reconcile(ctx context.Context) (domain.ExternalServiceMap, error)
}

// Builder turns reconciled services into a render document.
type Builder interface {
	Build(external domain.ExternalServiceMap) (domain.RenderDocument, error)
}

// Options wires a Scheduler. Reconciler, Builder, Renderer, Output and
// Logger are required.
type Options struct {
	Reconciler   Reconciler
	Builder      Builder
	Renderer     render.Renderer
	TemplatePath string
	Interval     time.Duration
	Output       io.Writer
	Sinks        []Sink
	Sleeper      Sleeper          // defaults to TimerSleeper
	Now          func() time.Time // defaults to time.Now
	Logger       logger.Logger
}

// Scheduler drives reconcile, build and render passes one after the
// other, sleeping Interval between them. A failed pass is logged and the
// next one runs after the normal sleep.
type Scheduler struct {
	reconciler   Reconciler
	builder      Builder
	renderer     render.Renderer
	templatePath string
	interval     time.Duration
	out          io.Writer
	sinks        []Sink
	sleeper      Sleeper
	now          func() time.Time
	logger       logger.Logger

	mu          sync.RWMutex
	state       State
	passes      uint64
	last        *PassResult
	lastSuccess *time.Time
	rendered    []byte

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a scheduler in the Idle state.
func New(opts Options) *Scheduler {
	s := &Scheduler{
		reconciler:   opts.Reconciler,
		builder:      opts.Builder,
		renderer:     opts.Renderer,
		templatePath: opts.TemplatePath,
		interval:     opts.Interval,
		out:          opts.Output,
		sinks:        slices.Clone(opts.Sinks),
		sleeper:      opts.Sleeper,
		now:          opts.Now,
		logger:       opts.Logger,
		state:        Idle,
	}
	if s.sleeper == nil {
		s.sleeper = TimerSleeper
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Run executes passes until ctx is cancelled. The first pass starts
// immediately. Run never returns a pass error.
func (s *Scheduler) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		s.RunOnce(ctx)
		if err := s.sleeper.Sleep(ctx, s.interval); err != nil {
			return
		}
	}
}

// Start runs the loop in the background until Stop or ctx cancellation.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		s.Run(ctx)
	}()
}

// Stop cancels the loop and waits for the current pass to finish.
func (s *Scheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
}

// RunOnce executes a single pass synchronously and records its result.
func (s *Scheduler) RunOnce(ctx context.Context) PassResult {
	s.mu.Lock()
	s.state = Running
	s.passes++
	result := PassResult{Pass: s.passes, StartedAt: s.now()}
	s.mu.Unlock()

	out, phase, err := s.pass(ctx, &result)
	result.Duration = s.now().Sub(result.StartedAt)

	if err != nil {
		result.Err = err
		result.Phase = phase
		result.ErrorKind = domain.Kind(err)
		result.Error = err.Error()
		s.logger.Error("pass failed", append(errorFields(err),
			logger.Uint64("pass", result.Pass),
			logger.String("phase", phase),
			logger.String("kind", result.ErrorKind),
			logger.Duration("next_pass_in", s.interval))...)
	} else {
		s.logger.Info("pass completed",
			logger.Uint64("pass", result.Pass),
			logger.Int("services", result.Services),
			logger.Duration("duration", result.Duration))
		s.emitSinks(ctx, out)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = Idle
	s.last = &result
	if err == nil {
		at := result.StartedAt
		s.lastSuccess = &at
		s.rendered = out.Rendered
	}
	return result
}

func (s *Scheduler) pass(ctx context.Context, result *PassResult) (Output, string, error) {
	external, err := s.reconciler.Reconcile(ctx)
	if err != nil {
		return Output{}, PhaseReconcile, err
	}

	doc, err := s.builder.Build(external)
	if err != nil {
		return Output{}, PhaseBuild, err
	}
	result.Services = len(doc.Services)

	rendered, err := s.renderer.Render(s.templatePath, doc)
	if err != nil {
		return Output{}, PhaseRender, err
	}

	if err := writeRendered(s.out, rendered); err != nil {
		return Output{}, PhaseEmit, err
	}

	return Output{Pass: result.Pass, Document: doc, Rendered: rendered}, "", nil
}

func (s *Scheduler) emitSinks(ctx context.Context, out Output) {
	for _, sink := range s.sinks {
		if err := sink.Emit(ctx, out); err != nil {
			s.logger.Warn("sink failed",
				logger.String("sink", sink.Name()),
				logger.String("phase", PhaseEmit),
				logger.Uint64("pass", out.Pass),
				logger.Error(err))
		}
	}
}

// Status returns a snapshot safe to read from other goroutines.
func (s *Scheduler) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Status{
		State:    s.state.String(),
		Interval: s.interval.String(),
		Passes:   s.passes,
		Rendered: s.rendered,
	}
	if s.last != nil {
		last := *s.last
		st.LastPass = &last
	}
	if s.lastSuccess != nil {
		at := *s.lastSuccess
		st.LastSuccessAt = &at
	}
	return st
}

// State returns the current loop state.
func (s *Scheduler) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// errorFields adds the service name when the error carries one.
func errorFields(err error) []logger.Field {
	fields := []logger.Field{logger.Error(err)}

	var registryErr *domain.RegistryUnavailableError
	var integrity *domain.DataIntegrityError
	var renderErr *domain.TemplateRenderError
	switch {
	case errors.As(err, &registryErr):
		fields = append(fields, logger.String("registry_op", registryErr.Op))
		if registryErr.Service != "" {
			fields = append(fields, logger.String("service", registryErr.Service))
		}
	case errors.As(err, &integrity):
		fields = append(fields, logger.String("service", integrity.Service))
	case errors.As(err, &renderErr):
		fields = append(fields, logger.String("template", renderErr.Path))
	}
	return fields
}
