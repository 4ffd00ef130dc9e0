package scheduler

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/hasu/internal/domain"
	"github.com/MrSnakeDoc/hasu/internal/logger"
	"github.com/MrSnakeDoc/hasu/internal/model"
	"github.com/MrSnakeDoc/hasu/internal/reconcile"
	"github.com/MrSnakeDoc/hasu/internal/registry/registrytest"
	"github.com/MrSnakeDoc/hasu/internal/render"
)

const testTemplate = "{{#Services}}backend {{Name}} {{Mode}} {{Port}}:{{#Nodes}} {{.}}{{/Nodes}}\n{{/Services}}"

type fixture struct {
	registry *registrytest.Fake
	out      *bytes.Buffer
	template string
	sink     *recordingSink
	sleeps   []time.Duration
}

type recordingSink struct {
	mu      sync.Mutex
	outputs []Output
	err     error
}

func (r *recordingSink) Name() string { return "recording" }

func (r *recordingSink) Emit(_ context.Context, out Output) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outputs = append(r.outputs, out)
	return r.err
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	path := filepath.Join(t.TempDir(), "haproxy.mustache")
	require.NoError(t, os.WriteFile(path, []byte(testTemplate), 0o644))

	return &fixture{
		registry: &registrytest.Fake{
			Catalog: domain.CatalogSnapshot{"web": {}, "api": {}},
			Local:   domain.LocalServiceSet{"web": {Service: "web"}},
			Health: map[string][]domain.HealthyInstance{
				"api": {{Node: "n1", Port: 8080, Tags: []string{"release"}, Service: "api"}},
			},
		},
		out:      &bytes.Buffer{},
		template: path,
		sink:     &recordingSink{},
	}
}

// scheduler builds a scheduler whose sleeper cancels ctx after maxPasses.
func (f *fixture) scheduler(cancel context.CancelFunc, maxPasses int) *Scheduler {
	log := logger.NewNop()
	return New(Options{
		Reconciler:   reconcile.New(f.registry, reconcile.Options{Tags: []string{"release"}}, log),
		Builder:      model.NewBuilder(),
		Renderer:     render.NewMustacheRenderer(),
		TemplatePath: f.template,
		Interval:     10 * time.Second,
		Output:       f.out,
		Sinks:        []Sink{f.sink},
		Sleeper: SleeperFunc(func(ctx context.Context, d time.Duration) error {
			f.sleeps = append(f.sleeps, d)
			if cancel != nil && len(f.sleeps) >= maxPasses {
				cancel()
				return ctx.Err()
			}
			return nil
		}),
		Logger: log,
	})
}

func TestRunOnceSingleTCPService(t *testing.T) {
	f := newFixture(t)
	s := f.scheduler(nil, 0)

	result := s.RunOnce(context.Background())
	require.True(t, result.OK(), "pass error: %v", result.Err)

	assert.Equal(t, "backend api tcp 8080: n1\n", f.out.String())
	assert.Equal(t, 1, result.Services)
	assert.Equal(t, Idle, s.State())

	require.Len(t, f.sink.outputs, 1)
	assert.Equal(t, []domain.ServiceEntry{{Name: "api", Port: 8080, Mode: "tcp", Nodes: []string{"n1"}}},
		f.sink.outputs[0].Document.Services)
}

func TestRunOnceHTTPTaggedService(t *testing.T) {
	f := newFixture(t)
	f.registry.Health["api"][0].Tags = []string{"release", "http"}

	result := f.scheduler(nil, 0).RunOnce(context.Background())
	require.True(t, result.OK())
	assert.Equal(t, "backend api http 8080: n1\n", f.out.String())
}

func TestRunOnceNoHealthyInstances(t *testing.T) {
	f := newFixture(t)
	f.registry.Health = nil

	result := f.scheduler(nil, 0).RunOnce(context.Background())
	require.True(t, result.OK())
	assert.Equal(t, 0, result.Services)
	assert.Empty(t, f.out.String())
	require.Len(t, f.sink.outputs, 1)
	assert.Empty(t, f.sink.outputs[0].Document.Services)
}

func TestRunRecoversAfterRegistryFailure(t *testing.T) {
	f := newFixture(t)
	f.registry.SetFailHealth("api", true)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var results []PassResult
	s := f.scheduler(cancel, 2)
	// Heal the registry after the first pass.
	s.sleeper = SleeperFunc(func(ctx context.Context, d time.Duration) error {
		results = append(results, *s.Status().LastPass)
		f.sleeps = append(f.sleeps, d)
		f.registry.SetFailHealth("api", false)
		if len(f.sleeps) >= 2 {
			cancel()
			return ctx.Err()
		}
		return nil
	})

	s.Run(ctx)

	require.Len(t, results, 2)
	assert.Equal(t, domain.KindRegistryUnavailable, results[0].ErrorKind)
	assert.Equal(t, PhaseReconcile, results[0].Phase)
	assert.True(t, results[1].OK())
	assert.Equal(t, []time.Duration{10 * time.Second, 10 * time.Second}, f.sleeps,
		"a failed pass still sleeps the normal interval")
	assert.Equal(t, "backend api tcp 8080: n1\n", f.out.String())
	assert.Len(t, f.sink.outputs, 1, "sinks only see successful passes")
}

func TestRunOnceFailurePhases(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(f *fixture)
		wantPhase string
		wantKind  string
	}{
		{
			name:      "registry",
			setup:     func(f *fixture) { f.registry.FailCatalog = true },
			wantPhase: PhaseReconcile,
			wantKind:  domain.KindRegistryUnavailable,
		},
		{
			name: "port mismatch",
			setup: func(f *fixture) {
				f.registry.Health["api"] = append(f.registry.Health["api"],
					domain.HealthyInstance{Node: "n2", Port: 9090, Service: "api"})
			},
			wantPhase: PhaseBuild,
			wantKind:  domain.KindDataIntegrity,
		},
		{
			name:      "missing template",
			setup:     func(f *fixture) { f.template = filepath.Join(filepath.Dir(f.template), "gone.mustache") },
			wantPhase: PhaseRender,
			wantKind:  domain.KindTemplateRender,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tt.setup(f)
			s := f.scheduler(nil, 0)

			result := s.RunOnce(context.Background())
			require.False(t, result.OK())
			assert.Equal(t, tt.wantPhase, result.Phase)
			assert.Equal(t, tt.wantKind, result.ErrorKind)
			assert.Empty(t, f.out.String(), "nothing is emitted for a failed pass")
			assert.Empty(t, f.sink.outputs)

			st := s.Status()
			assert.Equal(t, "idle", st.State)
			assert.Nil(t, st.LastSuccessAt)
			assert.Nil(t, st.Rendered)
		})
	}
}

func TestSinkFailureDoesNotFailPass(t *testing.T) {
	f := newFixture(t)
	f.sink.err = errors.New("redis down")

	result := f.scheduler(nil, 0).RunOnce(context.Background())
	assert.True(t, result.OK())
	assert.NotEmpty(t, f.out.String())
}

func TestStatusKeepsLastSuccessfulRender(t *testing.T) {
	f := newFixture(t)
	s := f.scheduler(nil, 0)

	require.True(t, s.RunOnce(context.Background()).OK())
	f.registry.FailLocal = true
	require.False(t, s.RunOnce(context.Background()).OK())

	st := s.Status()
	assert.Equal(t, uint64(2), st.Passes)
	require.NotNil(t, st.LastPass)
	assert.Equal(t, domain.KindRegistryUnavailable, st.LastPass.ErrorKind)
	require.NotNil(t, st.LastSuccessAt)
	assert.Equal(t, "backend api tcp 8080: n1\n", string(st.Rendered))
}

func TestRenderIdempotentAcrossPasses(t *testing.T) {
	f := newFixture(t)
	s := f.scheduler(nil, 0)

	require.True(t, s.RunOnce(context.Background()).OK())
	first := f.out.String()
	f.out.Reset()
	require.True(t, s.RunOnce(context.Background()).OK())
	assert.Equal(t, first, f.out.String())
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	f := newFixture(t)
	s := f.scheduler(nil, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.Run(ctx)

	assert.Equal(t, uint64(0), s.Status().Passes)
}

func TestStartStop(t *testing.T) {
	f := newFixture(t)
	s := New(Options{
		Reconciler:   reconcile.New(f.registry, reconcile.Options{Tags: []string{"release"}}, logger.NewNop()),
		Builder:      model.NewBuilder(),
		Renderer:     render.NewMustacheRenderer(),
		TemplatePath: f.template,
		Interval:     time.Hour,
		Output:       &bytes.Buffer{},
		Logger:       logger.NewNop(),
	})

	s.Start(context.Background())
	require.Eventually(t, func() bool { return s.Status().Passes == 1 && s.State() == Idle },
		2*time.Second, 10*time.Millisecond)
	s.Stop()

	assert.Equal(t, uint64(1), s.Status().Passes)
}

func TestTimerSleeperHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := TimerSleeper.Sleep(ctx, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)

	assert.NoError(t, TimerSleeper.Sleep(context.Background(), time.Millisecond))
}
