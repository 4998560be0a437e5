// Command validate checks a batch export against the dataset it was computed
// from. It verifies that every result conserves its building count, that
// counts move monotonically with the water level, and that each stored result
// equals a fresh classification of the dataset.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -batch outputs/batch_summary_tokyo.json \
//	  -city tokyo \
//	  -data data/plateau
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/couchcryptid/flood-impact-engine/internal/adapter/file"
	"github.com/couchcryptid/flood-impact-engine/internal/adapter/synthetic"
	"github.com/couchcryptid/flood-impact-engine/internal/config"
	"github.com/couchcryptid/flood-impact-engine/internal/dataset"
	"github.com/couchcryptid/flood-impact-engine/internal/domain"
	"github.com/couchcryptid/flood-impact-engine/internal/observability"
)

const pctTolerance = 1e-9

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	batchPath := flag.String("batch", "", "path to a batch summary JSON export")
	city := flag.String("city", "tokyo", "city the batch was computed for")
	dataDir := flag.String("data", "data/plateau", "building data directory")
	fallback := flag.Bool("synthetic", true, "use the seeded synthetic dataset when no data file exists")
	seed := flag.Uint64("seed", synthetic.DefaultSeed, "synthetic fallback seed")
	count := flag.Int("count", synthetic.DefaultCount, "synthetic fallback building count")
	flag.Parse()

	if *batchPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	cfg := &config.Config{
		DataDir:           *dataDir,
		LogLevel:          "warn",
		LogFormat:         "text",
		SyntheticFallback: *fallback,
		SyntheticSeed:     *seed,
		SyntheticCount:    *count,
	}
	if code := run(cfg, *batchPath, *city); code != 0 {
		os.Exit(code)
	}
}

func run(cfg *config.Config, batchPath, city string) int {
	fmt.Println("=== Flood Batch Integrity Validation ===")
	fmt.Println()

	results, err := file.ReadResults(batchPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load batch: %v\n", err)
		return 1
	}

	logger := observability.NewLogger(cfg)
	loaded, err := dataset.NewLoader(cfg, logger, observability.NewMetrics()).LoadOrSynthesize(context.Background(), city)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load dataset: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateConservation(results),
		validateMonotonicity(results),
		validateRecompute(results, loaded.Dataset),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Results: %d levels, dataset %s (%s, %d buildings)\n",
		len(results), loaded.Dataset.Name(), loaded.Source, loaded.Dataset.Len())

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Phase 1: Conservation ──
// Every building is counted exactly once and percentages follow the counts.

func validateConservation(results []domain.FloodResult) *phase {
	p := &phase{name: "Phase 1: Conservation (counts, percentages)"}
	if len(results) == 0 {
		p.errorf("batch contains no results")
	}

	for i, r := range results {
		if math.IsNaN(r.WaterLevel) || math.IsInf(r.WaterLevel, 0) {
			p.errorf("result %d: water_level %v is not finite", i, r.WaterLevel)
		}
		if sum := r.FloodedBuildings + r.PartiallyFlooded + r.SafeBuildings; sum != r.TotalBuildings {
			p.errorf("result %d (%gm): flooded+partial+safe=%d, total=%d", i, r.WaterLevel, sum, r.TotalBuildings)
		}
		if r.MaxFloodDepth < 0 {
			p.errorf("result %d (%gm): negative max_flood_depth %g", i, r.WaterLevel, r.MaxFloodDepth)
		}
		if r.Affected() == 0 && r.MaxFloodDepth != 0 {
			p.errorf("result %d (%gm): no affected buildings but max_flood_depth %g", i, r.WaterLevel, r.MaxFloodDepth)
		}

		wantFlooded, wantAffected := 0.0, 0.0
		if r.TotalBuildings > 0 {
			wantFlooded = float64(r.FloodedBuildings) / float64(r.TotalBuildings) * 100
			wantAffected = float64(r.Affected()) / float64(r.TotalBuildings) * 100
		}
		if !floatEq(r.FloodedPercentage, wantFlooded) {
			p.errorf("result %d (%gm): flooded_percentage %g, want %g", i, r.WaterLevel, r.FloodedPercentage, wantFlooded)
		}
		if !floatEq(r.AffectedPercentage, wantAffected) {
			p.errorf("result %d (%gm): affected_percentage %g, want %g", i, r.WaterLevel, r.AffectedPercentage, wantAffected)
		}
	}
	return p
}

// ── Phase 2: Monotonicity ──
// Raising the water never un-floods a building.

func validateMonotonicity(results []domain.FloodResult) *phase {
	p := &phase{name: "Phase 2: Monotonicity (by water level)"}

	sorted := append([]domain.FloodResult(nil), results...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].WaterLevel < sorted[j].WaterLevel })

	for i := 1; i < len(sorted); i++ {
		lo, hi := sorted[i-1], sorted[i]
		if hi.FloodedBuildings < lo.FloodedBuildings {
			p.errorf("flooded drops from %d at %gm to %d at %gm", lo.FloodedBuildings, lo.WaterLevel, hi.FloodedBuildings, hi.WaterLevel)
		}
		if hi.Affected() < lo.Affected() {
			p.errorf("affected drops from %d at %gm to %d at %gm", lo.Affected(), lo.WaterLevel, hi.Affected(), hi.WaterLevel)
		}
		if hi.MaxFloodDepth < lo.MaxFloodDepth {
			p.errorf("max depth drops from %g at %gm to %g at %gm", lo.MaxFloodDepth, lo.WaterLevel, hi.MaxFloodDepth, hi.WaterLevel)
		}
	}
	return p
}

// ── Phase 3: Recompute ──
// Each stored result equals a fresh classification of the dataset.

func validateRecompute(results []domain.FloodResult, ds *domain.Dataset) *phase {
	p := &phase{name: "Phase 3: Recompute (batch vs dataset)"}

	for i, got := range results {
		want := domain.Aggregate(got.WaterLevel, domain.Classify(ds, got.WaterLevel))
		if got.TotalBuildings != want.TotalBuildings {
			p.errorf("result %d (%gm): total %d, dataset has %d", i, got.WaterLevel, got.TotalBuildings, want.TotalBuildings)
			continue
		}
		if got.FloodedBuildings != want.FloodedBuildings || got.PartiallyFlooded != want.PartiallyFlooded || got.SafeBuildings != want.SafeBuildings {
			p.errorf("result %d (%gm): counts %d/%d/%d, recomputed %d/%d/%d", i, got.WaterLevel,
				got.FloodedBuildings, got.PartiallyFlooded, got.SafeBuildings,
				want.FloodedBuildings, want.PartiallyFlooded, want.SafeBuildings)
		}
		if !floatEq(got.MaxFloodDepth, want.MaxFloodDepth) {
			p.errorf("result %d (%gm): max_flood_depth %g, recomputed %g", i, got.WaterLevel, got.MaxFloodDepth, want.MaxFloodDepth)
		}
	}
	return p
}

// ── Helpers ──

func floatEq(a, b float64) bool {
	return math.Abs(a-b) < pctTolerance
}
