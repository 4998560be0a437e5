package main

import (
	"path/filepath"
	"testing"

	"github.com/couchcryptid/flood-impact-engine/internal/adapter/geojson"
	"github.com/couchcryptid/flood-impact-engine/internal/dataset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_NormalizesCityForDefaultPath(t *testing.T) {
	t.Chdir(t.TempDir())

	require.NoError(t, run([]string{"-city", " Tokyo ", "-count", "5"}))

	_, raws, err := geojson.ReadFile(filepath.Join("data", "plateau", "tokyo_buildings.geojson"))
	require.NoError(t, err)
	assert.Len(t, raws, 5)
}

func TestRun_RejectsInvalidCity(t *testing.T) {
	dir := t.TempDir()
	for _, city := range []string{"../etc", "a/b", ""} {
		err := run([]string{"-city", city, "-out", filepath.Join(dir, "x.geojson")})
		assert.ErrorIs(t, err, dataset.ErrInvalidCity, city)
	}
	assert.NoFileExists(t, filepath.Join(dir, "x.geojson"))
}

func TestRun_RejectsNonPositiveCount(t *testing.T) {
	err := run([]string{"-count", "0", "-out", filepath.Join(t.TempDir(), "x.geojson")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "-count must be positive")
}
