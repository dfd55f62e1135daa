package grib

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// hrrrGrid builds the operational HRRR CONUS grid: 1799x1059 points at 3 km
// on a Lambert conformal projection with both standard parallels at 38.5N.
func hrrrGrid() *LambertGrid {
	return NewLambertGrid(1799, 1059,
		21.138123, 237.280472, // first grid point (south-west corner)
		38.5, 262.5, // LaD, LoV
		38.5, 38.5, // standard parallels
		3000, 3000, // +i east, +j north
	)
}

func TestLambertGrid_FirstPoint(t *testing.T) {
	g := hrrrGrid()

	x, y, ok := g.Locate(21.138123, 237.280472)
	require.True(t, ok)
	assert.InDelta(t, 0.0, x, 1e-3)
	assert.InDelta(t, 0.0, y, 1e-3)
}

func TestLambertGrid_InteriorPoint(t *testing.T) {
	g := hrrrGrid()

	// Northeast US sits well inside the CONUS grid.
	x, y, ok := g.Locate(42.0, -75.0)
	require.True(t, ok)
	assert.Greater(t, x, 1000.0)
	assert.Less(t, x, 1799.0)
	assert.Greater(t, y, 500.0)
	assert.Less(t, y, 1059.0)
}

func TestLambertGrid_EastwardIncreasesX(t *testing.T) {
	g := hrrrGrid()

	x1, _, ok := g.Locate(40.0, -80.0)
	require.True(t, ok)
	x2, _, ok := g.Locate(40.0, -75.0)
	require.True(t, ok)
	assert.Greater(t, x2, x1)
}

func TestLambertGrid_NorthwardIncreasesY(t *testing.T) {
	g := hrrrGrid()

	_, y1, ok := g.Locate(38.0, -75.0)
	require.True(t, ok)
	_, y2, ok := g.Locate(43.0, -75.0)
	require.True(t, ok)
	assert.Greater(t, y2, y1)
}

func TestLambertGrid_StepSizeNearStandardParallel(t *testing.T) {
	g := hrrrGrid()

	// Along the standard parallel the projection is true to scale, so one
	// degree of longitude (~87.2 km at 38.5N) is about 29 grid steps.
	x1, _, ok := g.Locate(38.5, -98.0)
	require.True(t, ok)
	x2, _, ok := g.Locate(38.5, -97.0)
	require.True(t, ok)
	assert.InDelta(t, 29.1, x2-x1, 0.5)
}

func TestLambertGrid_OutsideGrid(t *testing.T) {
	g := hrrrGrid()

	_, _, ok := g.Locate(5.0, -75.0) // deep tropics, south of CONUS
	assert.False(t, ok)
	_, _, ok = g.Locate(42.0, 10.0) // Europe
	assert.False(t, ok)
}

func TestLatLonGrid_Locate(t *testing.T) {
	g := &LatLonGrid{
		Ni: 361, Nj: 181,
		Lat1: 90, Lon1: 0,
		LatStep: -1, LonStep: 1,
	}

	x, y, ok := g.Locate(90, 0)
	require.True(t, ok)
	assert.InDelta(t, 0.0, x, 1e-9)
	assert.InDelta(t, 0.0, y, 1e-9)

	// Negative longitudes wrap into the 0-360 domain.
	x, y, ok = g.Locate(42, -75)
	require.True(t, ok)
	assert.InDelta(t, 285.0, x, 1e-9)
	assert.InDelta(t, 48.0, y, 1e-9)
}

func TestLatLonGrid_OutsideBounds(t *testing.T) {
	g := &LatLonGrid{
		Ni: 10, Nj: 10,
		Lat1: 48, Lon1: 278,
		LatStep: -1, LonStep: 1,
	}

	_, _, ok := g.Locate(49, 280)
	assert.False(t, ok, "north of the grid")
	_, _, ok = g.Locate(40, 290)
	assert.False(t, ok, "east of the grid")
}

func TestWrap360(t *testing.T) {
	assert.InDelta(t, 285.0, wrap360(-75), 1e-9)
	assert.InDelta(t, 5.0, wrap360(365), 1e-9)
	assert.InDelta(t, 0.0, wrap360(720), 1e-9)
	assert.False(t, math.Signbit(wrap360(0)))
}
