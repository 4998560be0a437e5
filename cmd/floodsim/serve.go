package main

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"

	"github.com/couchcryptid/flood-impact-engine/internal/adapter/file"
	httpadapter "github.com/couchcryptid/flood-impact-engine/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/flood-impact-engine/internal/adapter/kafka"
	"github.com/couchcryptid/flood-impact-engine/internal/dataset"
	"github.com/couchcryptid/flood-impact-engine/internal/pipeline"
	"github.com/jonboulle/clockwork"
)

func (a *app) serve(ctx context.Context) error {
	loader := dataset.NewLoader(a.cfg, a.logger, a.metrics)
	cache := dataset.NewCache(loader, a.cfg.DatasetCacheSize, a.cfg.DatasetCacheTTL, clockwork.NewRealClock(), a.metrics)
	runner := pipeline.NewRunner(a.cfg.BatchWorkers, a.logger, a.metrics)

	var kafkaWriter *kafkaadapter.ResultWriter
	if a.cfg.KafkaEnabled {
		kafkaWriter = kafkaadapter.NewResultWriter(a.cfg, a.logger)
		a.logger.Info("kafka result export enabled", "topic", a.cfg.KafkaResultsTopic, "brokers", a.cfg.KafkaBrokers)
	}
	exporters := func(city string) []pipeline.Exporter {
		out := []pipeline.Exporter{file.NewExporter(filepath.Join(a.cfg.OutputDir, file.BatchSummaryName(city)))}
		if kafkaWriter != nil {
			out = append(out, kafkaWriter)
		}
		return out
	}

	api := httpadapter.NewAPI(cache, runner, exporters, a.cfg.DefaultCity, a.cfg.DataDir, a.logger)
	srv := httpadapter.NewServer(a.cfg.HTTPAddr, runner, api, a.logger)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", "error", err)
		}
	}()
	a.metrics.ServerRunning.Set(1)

	// Warm the default city so /readyz reports ready once it can be served.
	go func() {
		loaded, err := cache.Get(ctx, a.cfg.DefaultCity)
		if err != nil {
			a.logger.Error("default city warm-up failed", "city", a.cfg.DefaultCity, "error", err)
			return
		}
		runner.Simulate(ctx, loaded.Dataset, 0)
	}()

	<-ctx.Done()
	a.logger.Info("shutting down")
	a.metrics.ServerRunning.Set(0)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", "error", err)
	}
	if kafkaWriter != nil {
		if err := kafkaWriter.Close(); err != nil {
			a.logger.Error("kafka writer close error", "error", err)
		}
	}

	a.logger.Info("shutdown complete")
	return nil
}
