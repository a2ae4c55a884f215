package lunar

import (
	"math"
	"time"

	"github.com/soniakeys/meeus/v3/julian"
	"github.com/soniakeys/meeus/v3/sidereal"
)

// Orientation describes how the lit limb is turned on the sky
type Orientation struct {
	BrightLimbAngle  float64 // χ: position angle of bright limb (degrees, from celestial N toward E)
	ParallacticAngle float64 // q: parallactic angle of the Moon (degrees), 0 without a location
	LocalTerminator  float64 // terminator angle relative to the observer's vertical (degrees)
	Rotation         float64 // image-plane rotation to apply to a rendered disc (degrees, counter-clockwise positive)
}

// OrientationAt computes the bright-limb orientation for an observer at
// latDeg/lonDeg (east positive). With both zero the parallactic correction
// is skipped and the geocentric orientation is returned.
//
// Rotation is relative to the renderer's default, where a waxing moon is
// lit from the right (bright limb at χ=270°, pointing west).
func OrientationAt(t time.Time, latDeg, lonDeg float64) Orientation {
	jd := julian.TimeToJD(t.UTC())
	T := (jd + deltaT(jd)/86400 - j2000) / 36525.0
	eps := obliquity(T)

	raSun, decSun := eclipticToEquatorial(sunLongitude(T), 0, eps)
	raMoon, decMoon := eclipticToEquatorial(moonLongitude(T), moonLatitude(T), eps)

	// Position angle of the bright limb (Meeus eq. 48.5)
	deltaRA := raSun - raMoon
	chiY := math.Cos(decSun) * math.Sin(deltaRA)
	chiX := math.Sin(decSun)*math.Cos(decMoon) - math.Cos(decSun)*math.Sin(decMoon)*math.Cos(deltaRA)
	chi := normalizeRadians(math.Atan2(chiY, chiX))

	o := Orientation{
		BrightLimbAngle: radToDeg(chi),
		LocalTerminator: radToDeg(normalizeRadians(chi + math.Pi/2)),
	}

	if latDeg != 0 || lonDeg != 0 {
		phi := degToRad(latDeg)
		lst := normalizeRadians(sidereal.Mean(jd).Angle().Rad() + degToRad(lonDeg))
		H := lst - raMoon

		q := math.Atan2(math.Sin(H), math.Tan(phi)*math.Cos(decMoon)-math.Sin(decMoon)*math.Cos(H))
		o.ParallacticAngle = radToDeg(q)
		o.LocalTerminator = radToDeg(normalizeRadians(chi + math.Pi/2 - q))
		chi = normalizeRadians(chi - q)
	}

	// χ is measured from up toward the left (east) on the image; the
	// renderer's unrotated bright limb points right, at χ=270°.
	o.Rotation = normalizeAngle(radToDeg(chi) - 270)
	if o.Rotation > 180 {
		o.Rotation -= 360
	}

	return o
}

// eclipticToEquatorial converts ecliptic coordinates (lambda, beta in degrees)
// to equatorial coordinates (ra, dec in radians) given obliquity epsilon in degrees.
func eclipticToEquatorial(lambdaDeg, betaDeg, epsilonDeg float64) (ra, dec float64) {
	lam := degToRad(lambdaDeg)
	bet := degToRad(betaDeg)
	eps := degToRad(epsilonDeg)

	dec = math.Asin(math.Sin(bet)*math.Cos(eps) + math.Cos(bet)*math.Sin(eps)*math.Sin(lam))

	ra = math.Atan2(math.Sin(lam)*math.Cos(eps)-math.Tan(bet)*math.Sin(eps), math.Cos(lam))
	if ra < 0 {
		ra += 2 * math.Pi
	}

	return ra, dec
}

// normalizeRadians wraps an angle in radians to the range [0, 2π)
func normalizeRadians(angle float64) float64 {
	twoPi := 2 * math.Pi
	angle = math.Mod(angle, twoPi)
	if angle < 0 {
		angle += twoPi
	}
	return angle
}
