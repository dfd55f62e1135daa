package domain

import "math"

// GridLocator maps geographic coordinates onto fractional grid indices.
// Implementations know the grid's projection; callers only see (lat, lon).
type GridLocator interface {
	// Locate returns fractional grid indices for a geographic point, or
	// ok=false when the point falls outside the grid.
	Locate(lat, lon float64) (x, y float64, ok bool)
	// Dims returns the grid's extent in points (nx columns, ny rows).
	Dims() (nx, ny int)
}

// TemperatureField is a decoded 2m temperature grid in degrees Fahrenheit.
// Values are row-major (ny rows of nx); masked points are NaN.
type TemperatureField struct {
	Locator GridLocator
	Values  []float64
}

// At returns the value at grid point (i, j), or NaN when out of range.
func (f TemperatureField) At(i, j int) float64 {
	nx, ny := f.Locator.Dims()
	if i < 0 || i >= nx || j < 0 || j >= ny {
		return math.NaN()
	}
	idx := j*nx + i
	if idx >= len(f.Values) {
		return math.NaN()
	}
	return f.Values[idx]
}

// Sample bilinearly interpolates the field at a geographic point. Returns
// NaN when the point is outside the grid or all surrounding values are
// masked; masked corners are excluded from the weighted average.
func (f TemperatureField) Sample(lat, lon float64) float64 {
	x, y, ok := f.Locator.Locate(lat, lon)
	if !ok {
		return math.NaN()
	}

	i0 := int(math.Floor(x))
	j0 := int(math.Floor(y))
	fx := x - float64(i0)
	fy := y - float64(j0)

	var sum, weight float64
	corners := [4]struct {
		i, j int
		w    float64
	}{
		{i0, j0, (1 - fx) * (1 - fy)},
		{i0 + 1, j0, fx * (1 - fy)},
		{i0, j0 + 1, (1 - fx) * fy},
		{i0 + 1, j0 + 1, fx * fy},
	}
	for _, c := range corners {
		v := f.At(c.i, c.j)
		if math.IsNaN(v) {
			continue
		}
		sum += v * c.w
		weight += c.w
	}
	if weight == 0 {
		return math.NaN()
	}
	return sum / weight
}

// Bounds returns the minimum and maximum unmasked values, or (NaN, NaN)
// when the field is entirely masked.
func (f TemperatureField) Bounds() (min, max float64) {
	min, max = math.NaN(), math.NaN()
	for _, v := range f.Values {
		if math.IsNaN(v) {
			continue
		}
		if math.IsNaN(min) || v < min {
			min = v
		}
		if math.IsNaN(max) || v > max {
			max = v
		}
	}
	return min, max
}

// KelvinToFahrenheit converts a temperature from Kelvin (the GRIB unit for
// TMP) to degrees Fahrenheit.
func KelvinToFahrenheit(k float64) float64 {
	return (k-273.15)*9/5 + 32
}
