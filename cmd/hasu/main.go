package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/MrSnakeDoc/hasu/internal/app"
	"github.com/MrSnakeDoc/hasu/internal/config"
	"github.com/MrSnakeDoc/hasu/internal/logger"
	"github.com/MrSnakeDoc/hasu/internal/version"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	switch {
	case errors.Is(err, pflag.ErrHelp):
		config.Usage(os.Stdout)
		return 0
	case errors.Is(err, config.ErrVersion):
		fmt.Println(version.String())
		return 0
	case err != nil:
		fmt.Fprintf(os.Stderr, "hasu: %v\n\n", err)
		config.Usage(os.Stderr)
		return 2
	}

	loggerClient, err := logger.New(cfg.LogLevel, cfg.PrettyLog)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hasu: %v\n", err)
		return 2
	}
	defer func() { _ = loggerClient.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, loggerClient, os.Stdout)
	if err != nil {
		loggerClient.Error("hasu failed to start", logger.Error(err))
		return 1
	}
	if err := a.Run(ctx); err != nil {
		loggerClient.Error("hasu stopped with error", logger.Error(err))
		return 1
	}
	return 0
}
