package pipeline

import (
	"context"

	"github.com/couchcryptid/flood-impact-engine/internal/domain"
)

// Annotated runs a single level and pairs every building with its state, in
// dataset order.
func (r *Runner) Annotated(ctx context.Context, ds *domain.Dataset, level float64) (domain.FloodResult, []domain.ClassifiedBuilding) {
	res, cls := r.Simulate(ctx, ds, level)
	return res, domain.Annotate(ds, cls)
}

// Layer runs a single level and builds the render layer for it.
func (r *Runner) Layer(ctx context.Context, ds *domain.Dataset, level float64) (domain.FloodResult, domain.Layer) {
	res, buildings := r.Annotated(ctx, ds, level)
	return res, domain.BuildLayer(level, ds.Bounds(), buildings)
}
