// Command floodsim classifies building datasets against flood water levels.
//
// Usage:
//
//	floodsim simulate -city tokyo -level 10
//	floodsim batch -city tokyo -levels 5,10,15,20
//	floodsim serve
//	floodsim info
//
// Settings not given as flags come from the environment (see internal/config).
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/flood-impact-engine/internal/config"
	"github.com/couchcryptid/flood-impact-engine/internal/observability"
)

const usage = `usage: floodsim <command> [flags]

commands:
  simulate   classify one water level and write the result files
  batch      classify several water levels and write a batch summary
  serve      run the HTTP API
  info       show the effective configuration and available data
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to init tracing", "error", err)
		os.Exit(1)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, logger)

	app := &app{cfg: cfg, logger: logger, metrics: metrics, stdout: os.Stdout}

	cmd, args := os.Args[1], os.Args[2:]
	switch cmd {
	case "simulate":
		err = app.simulate(ctx, args)
	case "batch":
		err = app.batch(ctx, args)
	case "serve":
		err = app.serve(ctx)
	case "info":
		err = app.info(args)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("command failed", "command", cmd, "error", err)
		stop()
		observability.ShutdownWithTimeout(context.Background(), shutdownTracing, logger)
		os.Exit(1)
	}
}

type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *observability.Metrics
	stdout  io.Writer
}
