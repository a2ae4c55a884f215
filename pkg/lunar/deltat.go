package lunar

import (
	"math"

	"github.com/soniakeys/meeus/v3/base"
)

// deltaT returns TT-UT in seconds for a Julian Day, using the
// Espenak-Meeus polynomial fits. Outside 1900-2150 the long-term parabola
// is used.
func deltaT(jd float64) float64 {
	y := 2000 + (jd-j2000)/365.25

	switch {
	case math.IsNaN(y) || math.IsInf(y, 0):
		return y
	case y < 1900, y >= 2150:
		u := (y - 1820) / 100
		return -20 + 32*u*u
	case y < 1920:
		return base.Horner(y-1900, -2.79, 1.494119, -0.0598939, 0.0061966, -0.000197)
	case y < 1941:
		return base.Horner(y-1920, 21.20, 0.84493, -0.076100, 0.0020936)
	case y < 1961:
		return base.Horner(y-1950, 29.07, 0.407, -1.0/233, 1.0/2547)
	case y < 1986:
		return base.Horner(y-1975, 45.45, 1.067, -1.0/260, -1.0/718)
	case y < 2005:
		return base.Horner(y-2000, 63.86, 0.3345, -0.060374, 0.0017275, 0.000651814, 0.00002373599)
	case y < 2050:
		return base.Horner(y-2000, 62.92, 0.32217, 0.005589)
	default:
		u := (y - 1820) / 100
		return -20 + 32*u*u - 0.5628*(2150-y)
	}
}
