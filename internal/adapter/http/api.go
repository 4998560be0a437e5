package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/couchcryptid/flood-impact-engine/internal/adapter/file"
	"github.com/couchcryptid/flood-impact-engine/internal/adapter/geojson"
	"github.com/couchcryptid/flood-impact-engine/internal/dataset"
	"github.com/couchcryptid/flood-impact-engine/internal/domain"
	"github.com/couchcryptid/flood-impact-engine/internal/pipeline"
)

const (
	maxBodyBytes   = 1 << 20
	maxUploadBytes = 64 << 20
	maxLevels      = 1000
)

var errBadRequest = errors.New("bad request")

// uploadName accepts plain file names of the kinds the loader reads.
var uploadName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}\.(geojson|json|asc|shp|shx|dbf|prj|cpg)$`)

// Datasets supplies loaded datasets by city. *dataset.Cache implements it.
type Datasets interface {
	Get(ctx context.Context, city string) (dataset.Loaded, error)
	Entries() []dataset.Entry
	Invalidate(city string)
}

// ExporterFactory returns the exporters a batch for city should be written to.
type ExporterFactory func(city string) []pipeline.Exporter

// API implements the /api routes.
type API struct {
	datasets    Datasets
	runner      *pipeline.Runner
	exporters   ExporterFactory
	defaultCity string
	dataDir     string
	logger      *slog.Logger
}

// NewAPI wires the simulation handlers. exporters may be nil when batches are
// never persisted.
func NewAPI(datasets Datasets, runner *pipeline.Runner, exporters ExporterFactory, defaultCity, dataDir string, logger *slog.Logger) *API {
	return &API{
		datasets:    datasets,
		runner:      runner,
		exporters:   exporters,
		defaultCity: defaultCity,
		dataDir:     dataDir,
		logger:      logger,
	}
}

type simulateRequest struct {
	City       string   `json:"city"`
	WaterLevel *float64 `json:"water_level"`
}

type simulateResponse struct {
	domain.FloodResult
	City      string         `json:"city"`
	DatasetID string         `json:"dataset_id"`
	Source    dataset.Source `json:"source"`
	LayerURL  string         `json:"layer_url"`
}

type batchRequest struct {
	City        string    `json:"city"`
	WaterLevels []float64 `json:"water_levels"`
	Export      bool      `json:"export"`
}

type uploadResponse struct {
	Filename    string   `json:"filename"`
	Bytes       int64    `json:"bytes"`
	Invalidated []string `json:"invalidated"`
}

type statusResponse struct {
	Status        string          `json:"status"`
	DefaultCity   string          `json:"default_city"`
	DataFiles     int             `json:"data_files"`
	LoadedCities  []string        `json:"loaded_cities"`
	Datasets      []dataset.Entry `json:"datasets"`
	ExportEnabled bool            `json:"export_enabled"`
}

func (a *API) handleSimulate(w http.ResponseWriter, r *http.Request) {
	var req simulateRequest
	if err := decodeBody(w, r, &req); err != nil {
		a.writeError(w, err)
		return
	}
	if req.WaterLevel == nil {
		a.writeError(w, fmt.Errorf("%w: water_level is required", errBadRequest))
		return
	}
	if err := checkLevel(*req.WaterLevel); err != nil {
		a.writeError(w, err)
		return
	}

	loaded, err := a.datasets.Get(r.Context(), a.city(req.City))
	if err != nil {
		a.writeError(w, err)
		return
	}

	res, _ := a.runner.Simulate(r.Context(), loaded.Dataset, *req.WaterLevel)
	q := url.Values{}
	q.Set("city", loaded.Dataset.Name())
	q.Set("water_level", strconv.FormatFloat(*req.WaterLevel, 'f', -1, 64))

	writeJSON(w, http.StatusOK, simulateResponse{
		FloodResult: res,
		City:        loaded.Dataset.Name(),
		DatasetID:   loaded.Dataset.ID(),
		Source:      loaded.Source,
		LayerURL:    "/api/layer?" + q.Encode(),
	})
}

func (a *API) handleBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := decodeBody(w, r, &req); err != nil {
		a.writeError(w, err)
		return
	}
	if len(req.WaterLevels) > maxLevels {
		a.writeError(w, fmt.Errorf("%w: at most %d water_levels", errBadRequest, maxLevels))
		return
	}
	for _, l := range req.WaterLevels {
		if err := checkLevel(l); err != nil {
			a.writeError(w, err)
			return
		}
	}

	loaded, err := a.datasets.Get(r.Context(), a.city(req.City))
	if err != nil {
		a.writeError(w, err)
		return
	}

	results, err := a.runner.Run(r.Context(), loaded.Dataset, req.WaterLevels)
	if err != nil {
		a.writeError(w, err)
		return
	}
	batch := pipeline.NewBatch(loaded.Dataset, results)

	if req.Export && a.exporters != nil {
		if err := a.runner.Export(r.Context(), batch, a.exporters(loaded.Dataset.Name())...); err != nil {
			a.writeError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, batch)
}

func (a *API) handleLayer(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	level, err := strconv.ParseFloat(q.Get("water_level"), 64)
	if err != nil {
		a.writeError(w, fmt.Errorf("%w: water_level must be a number", errBadRequest))
		return
	}
	if err := checkLevel(level); err != nil {
		a.writeError(w, err)
		return
	}

	loaded, err := a.datasets.Get(r.Context(), a.city(q.Get("city")))
	if err != nil {
		a.writeError(w, err)
		return
	}

	switch q.Get("format") {
	case "", "layer":
		_, layer := a.runner.Layer(r.Context(), loaded.Dataset, level)
		writeJSON(w, http.StatusOK, layer)
	case "geojson":
		_, buildings := a.runner.Annotated(r.Context(), loaded.Dataset, level)
		w.Header().Set("Content-Type", "application/geo+json")
		if err := geojson.WriteClassified(w, level, buildings); err != nil {
			a.logger.Warn("write geojson layer failed", "error", err)
		}
	default:
		a.writeError(w, fmt.Errorf("%w: format must be layer or geojson", errBadRequest))
	}
}

// handleUpload stores the multipart "file" part in the data directory and
// drops cached datasets for any city the file name mentions.
func (a *API) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	mr, err := r.MultipartReader()
	if err != nil {
		a.writeError(w, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}

	for {
		part, err := mr.NextPart()
		if err != nil {
			a.writeError(w, fmt.Errorf("%w: no file part: %v", errBadRequest, err))
			return
		}
		if part.FormName() != "file" {
			part.Close() //nolint:errcheck // skipping unrelated field
			continue
		}

		// FileName strips directories, so check the name as sent.
		_, params, _ := mime.ParseMediaType(part.Header.Get("Content-Disposition"))
		name := params["filename"]
		if name != filepath.Base(name) || !uploadName.MatchString(name) {
			a.writeError(w, fmt.Errorf("%w: invalid file name %q", errBadRequest, name))
			return
		}

		var n int64
		if err := file.WriteAtomic(filepath.Join(a.dataDir, name), func(dst io.Writer) error {
			var err error
			n, err = io.Copy(dst, part)
			return err
		}); err != nil {
			a.writeError(w, err)
			return
		}

		lower := strings.ToLower(name)
		invalidated := []string{}
		for _, e := range a.datasets.Entries() {
			if strings.Contains(lower, e.City) {
				a.datasets.Invalidate(e.City)
				invalidated = append(invalidated, e.City)
			}
		}
		a.logger.Info("data file uploaded", "file", name, "bytes", n, "invalidated", invalidated)
		writeJSON(w, http.StatusCreated, uploadResponse{Filename: name, Bytes: n, Invalidated: invalidated})
		return
	}
}

func (a *API) handleStatus(w http.ResponseWriter, _ *http.Request) {
	entries := a.datasets.Entries()
	cities := make([]string, 0, len(entries))
	for _, e := range entries {
		cities = append(cities, e.City)
	}

	files := 0
	if des, err := os.ReadDir(a.dataDir); err == nil {
		for _, de := range des {
			if !de.IsDir() {
				files++
			}
		}
	}

	writeJSON(w, http.StatusOK, statusResponse{
		Status:        "running",
		DefaultCity:   a.defaultCity,
		DataFiles:     files,
		LoadedCities:  cities,
		Datasets:      entries,
		ExportEnabled: a.exporters != nil,
	})
}

func (a *API) city(c string) string {
	if c == "" {
		return a.defaultCity
	}
	return c
}

// writeError maps domain errors onto HTTP status codes.
func (a *API) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var schemaErr *domain.SchemaError
	var persistErr *domain.PersistenceError
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		status = http.StatusRequestEntityTooLarge
	case errors.Is(err, errBadRequest), errors.Is(err, dataset.ErrInvalidCity):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrDataUnavailable):
		status = http.StatusNotFound
	case errors.As(err, &schemaErr):
		status = http.StatusUnprocessableEntity
	case errors.As(err, &persistErr):
		status = http.StatusBadGateway
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusServiceUnavailable
	}
	if status >= http.StatusInternalServerError {
		a.logger.Error("api request failed", "status", status, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: decode body: %v", errBadRequest, err)
	}
	return nil
}

func checkLevel(l float64) error {
	if math.IsNaN(l) || math.IsInf(l, 0) {
		return fmt.Errorf("%w: water level must be finite", errBadRequest)
	}
	return nil
}
