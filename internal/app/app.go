package app

import (
	"context"
	"fmt"
	"io"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/hasu/internal/config"
	"github.com/MrSnakeDoc/hasu/internal/httpserver"
	"github.com/MrSnakeDoc/hasu/internal/httpserver/deps"
	"github.com/MrSnakeDoc/hasu/internal/logger"
	"github.com/MrSnakeDoc/hasu/internal/model"
	"github.com/MrSnakeDoc/hasu/internal/reconcile"
	"github.com/MrSnakeDoc/hasu/internal/redis"
	"github.com/MrSnakeDoc/hasu/internal/registry"
	"github.com/MrSnakeDoc/hasu/internal/render"
	"github.com/MrSnakeDoc/hasu/internal/scheduler"
	redisstore "github.com/MrSnakeDoc/hasu/internal/store/redis"
	"github.com/MrSnakeDoc/hasu/internal/version"
)

type App struct {
	cfg         *config.Config
	logger      logger.Logger
	scheduler   *scheduler.Scheduler
	server      *httpserver.Server
	redisClient *goredis.Client
}

// New wires the registry client, the pass pipeline and the optional
// status server and Redis publisher. Rendered text is written to out.
func New(ctx context.Context, cfg *config.Config, loggerClient logger.Logger, out io.Writer) (*App, error) {
	loggerClient.Debug("configuration loaded", logger.Any("config", cfg.Redacted()))

	var (
		sinks       []scheduler.Sink
		redisClient *goredis.Client
	)
	if cfg.RedisAddr != "" {
		// Initialize Redis early - fail fast if unavailable
		client, err := redis.Connect(ctx, redis.DefaultConnectOptions(
			cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisConnectTimeout,
		), loggerClient)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		redisClient = client
		sinks = append(sinks, redisstore.NewPublisher(client, cfg.RedisChannel, loggerClient))
	} else {
		loggerClient.Info("redis address not configured, render publisher disabled")
	}

	consul := registry.NewConsulClient(cfg.Address, cfg.RequestTimeout, loggerClient)
	reconciler := reconcile.New(consul, reconcile.Options{
		Tags:    cfg.Tags,
		Workers: cfg.HealthWorkers,
	}, loggerClient)

	sched := scheduler.New(scheduler.Options{
		Reconciler:   reconciler,
		Builder:      model.NewBuilder(),
		Renderer:     render.NewMustacheRenderer(),
		TemplatePath: cfg.TemplatePath,
		Interval:     cfg.Interval,
		Output:       out,
		Sinks:        sinks,
		Logger:       loggerClient,
	})

	a := &App{
		cfg:         cfg,
		logger:      loggerClient,
		scheduler:   sched,
		redisClient: redisClient,
	}

	if cfg.StatusAddr != "" {
		d := deps.Deps{
			Logger:      loggerClient,
			StartTime:   time.Now(),
			Version:     version.Version,
			Commit:      version.Commit,
			BuildDate:   version.BuildDate,
			GoVersion:   version.GoVersion,
			TimeNow:     time.Now,
			Scheduler:   sched,
			RedisClient: redisClient,
		}
		a.server = httpserver.New(cfg.StatusAddr, loggerClient, d)
	}

	return a, nil
}

// Run starts the scheduler loop and blocks until ctx is cancelled or the
// status server fails.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("starting hasu",
		logger.String("version", version.Version),
		logger.String("address", a.cfg.Address),
		logger.String("template", a.cfg.TemplatePath),
		logger.Strings("tags", a.cfg.Tags),
		logger.Duration("interval", a.cfg.Interval))
	a.logger.Info("output path is reserved, rendering to stdout",
		logger.String("output", a.cfg.OutputPath))

	a.scheduler.Start(ctx)

	errCh := make(chan error, 1)
	if a.server != nil {
		go func() {
			if err := a.server.Start(); err != nil {
				errCh <- fmt.Errorf("status server error: %w", err)
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("shutting down gracefully")
	case runErr = <-errCh:
		a.logger.Error("stopping after status server failure", logger.Error(runErr))
	}

	a.scheduler.Stop()

	if a.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
		defer cancel()
		if err := a.server.Stop(shutdownCtx); err != nil && runErr == nil {
			runErr = fmt.Errorf("failed to stop status server: %w", err)
		}
	}

	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warnf("failed to close redis: %v", err)
		} else {
			a.logger.Info("redis closed cleanly")
		}
	}

	if runErr == nil {
		a.logger.Info("hasu stopped cleanly")
	}
	return runErr
}

// Status exposes the scheduler snapshot.
func (a *App) Status() scheduler.Status {
	return a.scheduler.Status()
}
