package render

import (
	"image/color"
	"math"
)

// turbo polynomial coefficients (Google's turbo colormap, degree-5 fit).
var (
	turboR = [6]float64{0.13572138, 4.61539260, -42.66032258, 132.13108234, -152.94239396, 59.28637943}
	turboG = [6]float64{0.09140261, 2.19418839, 4.84296658, -14.18503333, 4.27729857, 2.82956604}
	turboB = [6]float64{0.10667330, 12.64194608, -60.58204836, 110.36276771, -89.90310912, 27.34824973}
)

// Turbo maps a normalized value in [0, 1] to the turbo colormap. Values
// outside the range are clamped to the end colors.
func Turbo(t float64) color.NRGBA {
	t = clamp01(t)
	return color.NRGBA{
		R: channel(turboR, t),
		G: channel(turboG, t),
		B: channel(turboB, t),
		A: 255,
	}
}

func channel(c [6]float64, t float64) uint8 {
	v := c[0] + t*(c[1]+t*(c[2]+t*(c[3]+t*(c[4]+t*c[5]))))
	return uint8(math.Round(clamp01(v) * 255))
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
