// Package shading renders a lit lunar disc from a moon age. The light model
// is Lambertian with a softened terminator, tinted earthshine on the night
// side and optional limb darkening on the day side. All passes write into a
// caller-owned *image.NRGBA and hold no state between calls.
package shading

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/chrissnell/moonshade/pkg/lunar"
)

// DefaultSunDistance places the directional light for scene renderers
const DefaultSunDistance = 5.0

var zAxis = r3.Vec{Z: 1}

// SunDirection returns the unit vector toward the Sun for a moon age.
// X points right, Y up and Z toward the observer: age 0 lights the far side
// (z=-1), full moon the near side (z=+1), first quarter comes from the right.
func SunDirection(age float64) r3.Vec {
	phase := 2 * math.Pi * lunar.NormalizeAge(age) / lunar.SynodicMonth

	v := r3.Vec{X: math.Sin(phase), Y: 0, Z: -math.Cos(phase)}
	n := r3.Norm(v)
	if n == 0 {
		return v
	}
	return r3.Scale(1/n, v)
}

// SunPosition places the light at distance along SunDirection.
func SunPosition(age, distance float64) r3.Vec {
	return r3.Scale(distance, SunDirection(age))
}

// Rotate turns v about the viewing axis by degrees, counter-clockwise as
// seen by the observer. It is used to apply an observer's bright-limb
// orientation to the sun vector.
func Rotate(v r3.Vec, degrees float64) r3.Vec {
	if degrees == 0 {
		return v
	}
	return r3.NewRotation(degrees*math.Pi/180, zAxis).Rotate(v)
}

func finite(v r3.Vec) bool {
	for _, c := range [3]float64{v.X, v.Y, v.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}
