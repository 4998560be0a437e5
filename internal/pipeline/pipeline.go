// Package pipeline runs flood classifications over datasets and fans the
// resulting batches out to exporters.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/flood-impact-engine/internal/domain"
	"github.com/couchcryptid/flood-impact-engine/internal/observability"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// Exporter persists a batch of results to one destination.
type Exporter interface {
	Name() string
	Export(ctx context.Context, batch domain.Batch) error
}

// Runner classifies datasets at one or many water levels.
type Runner struct {
	workers int
	logger  *slog.Logger
	metrics *observability.Metrics
	tracer  trace.Tracer
	ready   atomic.Bool
}

// NewRunner creates a Runner that computes at most workers levels at a time.
func NewRunner(workers int, logger *slog.Logger, metrics *observability.Metrics) *Runner {
	if workers < 1 {
		workers = 1
	}
	return &Runner{
		workers: workers,
		logger:  logger,
		metrics: metrics,
		tracer:  otel.Tracer(observability.TracerName),
	}
}

// CheckReadiness returns nil once the runner has completed at least one
// classification.
func (r *Runner) CheckReadiness(_ context.Context) error {
	if !r.ready.Load() {
		return errors.New("no simulation has completed yet")
	}
	return nil
}

// Simulate classifies ds at a single water level and aggregates the result.
func (r *Runner) Simulate(ctx context.Context, ds *domain.Dataset, level float64) (domain.FloodResult, domain.Classification) {
	_, span := r.tracer.Start(ctx, "flood.simulate", trace.WithAttributes(
		attribute.String("dataset.id", ds.ID()),
		attribute.Float64("flood.water_level", level),
	))
	defer span.End()

	start := time.Now()
	cls := domain.Classify(ds, level)
	res := domain.Aggregate(level, cls)

	r.metrics.SimulationDuration.Observe(time.Since(start).Seconds())
	r.metrics.SimulationsTotal.Inc()
	r.metrics.BuildingsClassified.Add(float64(res.TotalBuildings))
	r.ready.Store(true)

	span.SetAttributes(
		attribute.Int("flood.flooded", res.FloodedBuildings),
		attribute.Int("flood.partial", res.PartiallyFlooded),
	)
	return res, cls
}

// Run returns one result per level in input order. Levels are computed
// concurrently and duplicates are computed independently. On cancellation no
// partial results are returned.
func (r *Runner) Run(ctx context.Context, ds *domain.Dataset, levels []float64) ([]domain.FloodResult, error) {
	ctx, span := r.tracer.Start(ctx, "batch.run", trace.WithAttributes(
		attribute.String("dataset.id", ds.ID()),
		attribute.String("dataset.name", ds.Name()),
		attribute.Int("batch.levels", len(levels)),
	))
	defer span.End()

	start := time.Now()
	results := make([]domain.FloodResult, len(levels))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i, level := range levels {
		if err := gctx.Err(); err != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i], _ = r.Simulate(gctx, ds, level)
			return nil
		})
	}
	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "batch cancelled")
		r.logger.Warn("batch run cancelled", "dataset", ds.Name(), "levels", len(levels), "error", err)
		return nil, err
	}

	r.metrics.BatchLevels.Observe(float64(len(levels)))
	r.metrics.BatchDuration.Observe(time.Since(start).Seconds())
	r.logger.Info("batch run complete",
		"dataset", ds.Name(),
		"dataset_id", ds.ID(),
		"levels", len(levels),
		"buildings", ds.Len(),
		"duration", time.Since(start),
	)
	return results, nil
}

// NewBatch wraps results for export under a fresh run ID.
func NewBatch(ds *domain.Dataset, results []domain.FloodResult) domain.Batch {
	return domain.Batch{
		RunID:     uuid.NewString(),
		DatasetID: ds.ID(),
		Dataset:   ds.Name(),
		Results:   results,
	}
}

// Export writes batch to every exporter. A failing exporter does not stop the
// others; all failures are joined into the returned error. batch is never
// modified.
func (r *Runner) Export(ctx context.Context, batch domain.Batch, exporters ...Exporter) error {
	var errs []error
	for _, exp := range exporters {
		if err := exp.Export(ctx, batch); err != nil {
			r.metrics.Exports.WithLabelValues(exp.Name(), "error").Inc()
			r.logger.Error("export failed",
				"destination", exp.Name(),
				"run_id", batch.RunID,
				"dataset", batch.Dataset,
				"error", err,
			)
			errs = append(errs, fmt.Errorf("export to %s: %w", exp.Name(), err))
			continue
		}
		r.metrics.Exports.WithLabelValues(exp.Name(), "success").Inc()
		r.logger.Info("batch exported",
			"destination", exp.Name(),
			"run_id", batch.RunID,
			"results", len(batch.Results),
		)
	}
	return errors.Join(errs...)
}
