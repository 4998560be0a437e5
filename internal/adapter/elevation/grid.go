// Package elevation samples ground heights from ESRI ASCII grid DEMs.
package elevation

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// Grid is a regular raster of elevations in metres. Values are stored row-major
// with row 0 at the top (north) edge, as in the file.
type Grid struct {
	NCols     int
	NRows     int
	XLL       float64 // lower-left corner longitude
	YLL       float64 // lower-left corner latitude
	CellSize  float64
	NoData    float64
	HasNoData bool
	Values    []float64
}

// ReadFile parses the .asc file at path.
func ReadFile(path string) (*Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dem: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// MaxCells bounds the raster size a DEM header may declare.
const MaxCells = 1 << 26

// Parse reads an ESRI ASCII grid. Both xllcorner/yllcorner and
// xllcenter/yllcenter headers are accepted.
func Parse(r io.Reader) (*Grid, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	sc.Split(bufio.ScanWords)

	g := &Grid{}
	var centered bool
	seen := map[string]bool{}

	var first string
	for sc.Scan() {
		key := strings.ToLower(sc.Text())
		if _, err := strconv.ParseFloat(key, 64); err == nil {
			first = key
			break
		}
		if !sc.Scan() {
			return nil, fmt.Errorf("dem header %s: missing value", key)
		}
		val := sc.Text()
		seen[key] = true

		var err error
		switch key {
		case "ncols":
			g.NCols, err = strconv.Atoi(val)
		case "nrows":
			g.NRows, err = strconv.Atoi(val)
		case "xllcorner":
			g.XLL, err = strconv.ParseFloat(val, 64)
		case "yllcorner":
			g.YLL, err = strconv.ParseFloat(val, 64)
		case "xllcenter":
			g.XLL, err = strconv.ParseFloat(val, 64)
			centered = true
		case "yllcenter":
			g.YLL, err = strconv.ParseFloat(val, 64)
			centered = true
		case "cellsize":
			g.CellSize, err = strconv.ParseFloat(val, 64)
		case "nodata_value":
			g.NoData, err = strconv.ParseFloat(val, 64)
			g.HasNoData = true
		default:
			return nil, fmt.Errorf("dem header: unknown key %q", key)
		}
		if err != nil {
			return nil, fmt.Errorf("dem header %s: %w", key, err)
		}
	}

	for _, k := range []string{"ncols", "nrows", "cellsize"} {
		if !seen[k] {
			return nil, fmt.Errorf("dem header: missing %s", k)
		}
	}
	if g.NCols <= 0 || g.NRows <= 0 || !(g.CellSize > 0) {
		return nil, fmt.Errorf("dem header: invalid dimensions %dx%d cell %v", g.NCols, g.NRows, g.CellSize)
	}
	if g.NRows > MaxCells/g.NCols {
		return nil, fmt.Errorf("dem header: %dx%d grid exceeds %d cells", g.NCols, g.NRows, MaxCells)
	}
	if centered {
		g.XLL -= g.CellSize / 2
		g.YLL -= g.CellSize / 2
	}

	n := g.NCols * g.NRows
	if first != "" {
		v, _ := strconv.ParseFloat(first, 64)
		g.Values = append(g.Values, v)
	}
	for sc.Scan() {
		v, err := strconv.ParseFloat(sc.Text(), 64)
		if err != nil {
			return nil, fmt.Errorf("dem value %d: %w", len(g.Values), err)
		}
		if len(g.Values) == n {
			return nil, fmt.Errorf("dem has more than %d values", n)
		}
		g.Values = append(g.Values, v)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read dem: %w", err)
	}
	if len(g.Values) != n {
		return nil, fmt.Errorf("dem has %d values, want %d", len(g.Values), n)
	}
	return g, nil
}

// SampleGround bilinearly interpolates between the four nearest cell centres.
// Near the edge, or when a neighbour holds NODATA, it falls back to the
// containing cell. Positions outside the raster are not sampled.
func (g *Grid) SampleGround(lon, lat float64) (float64, bool) {
	width := float64(g.NCols) * g.CellSize
	height := float64(g.NRows) * g.CellSize
	dx := lon - g.XLL
	dy := lat - g.YLL
	if !(dx >= 0 && dx <= width && dy >= 0 && dy <= height) {
		return 0, false
	}

	// Fractional column/row measured between cell centres, row 0 at the top.
	fc := dx/g.CellSize - 0.5
	fr := (height-dy)/g.CellSize - 0.5

	c0, r0 := int(math.Floor(fc)), int(math.Floor(fr))
	c1, r1 := c0+1, r0+1
	tx, ty := fc-float64(c0), fr-float64(r0)

	if c0 >= 0 && r0 >= 0 && c1 < g.NCols && r1 < g.NRows {
		v00, ok00 := g.at(r0, c0)
		v01, ok01 := g.at(r0, c1)
		v10, ok10 := g.at(r1, c0)
		v11, ok11 := g.at(r1, c1)
		if ok00 && ok01 && ok10 && ok11 {
			top := v00*(1-tx) + v01*tx
			bottom := v10*(1-tx) + v11*tx
			return top*(1-ty) + bottom*ty, true
		}
	}

	col := clamp(int(dx/g.CellSize), g.NCols-1)
	row := clamp(int((height-dy)/g.CellSize), g.NRows-1)
	return g.at(row, col)
}

func (g *Grid) at(row, col int) (float64, bool) {
	v := g.Values[row*g.NCols+col]
	if g.HasNoData && v == g.NoData {
		return 0, false
	}
	return v, true
}

func clamp(i, hi int) int {
	if i < 0 {
		return 0
	}
	if i > hi {
		return hi
	}
	return i
}
