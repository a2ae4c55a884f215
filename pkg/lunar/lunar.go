// Package lunar provides moon phase calculations from the ecliptic longitudes
// of the Sun and Moon. The Moon's longitude comes from a ten-term truncated
// series and the Sun's from its equation of centre, which keeps the phase
// angle within a few hundredths of a degree of the full theory over
// 1925-2125. Results are pure functions of the instant; nothing is cached.
package lunar

import (
	"math"
	"time"

	"github.com/soniakeys/meeus/v3/julian"
)

// SynodicMonth is the mean length of the lunar cycle in days
const SynodicMonth = 29.53058867

// j2000 is the Julian Day of the J2000.0 epoch (2000-01-01 12:00 TT)
const j2000 = 2451545.0

// Snapshot holds the phase information for one instant. Every call to
// Calculate returns a fresh value; callers own their copy.
type Snapshot struct {
	Time         time.Time // the instant the snapshot was computed for
	Age          float64   // days since new moon [0,SynodicMonth), NaN for an invalid time
	Name         string    // traditional day name, empty when the day carries none
	Illumination float64   // illuminated fraction [0,1]: 0=new, 1=full
	Elongation   float64   // Sun→Moon ecliptic longitude difference in degrees [0,360)
	IsWaxing     bool      // true during the first half of the cycle
}

// Valid reports whether the snapshot carries a usable moon age.
func (s Snapshot) Valid() bool {
	return !math.IsNaN(s.Age) && !math.IsInf(s.Age, 0)
}

// Calculate computes the phase snapshot for the given time
func Calculate(t time.Time) Snapshot {
	age := MoonAge(t)

	return Snapshot{
		Time:         t,
		Age:          age,
		Name:         PhaseName(age, t),
		Illumination: Illumination(age),
		Elongation:   age / SynodicMonth * 360,
		IsWaxing:     age < SynodicMonth/2,
	}
}

// MoonAge returns the moon age in days for t. The zero time is treated as
// an unset date and yields NaN.
func MoonAge(t time.Time) float64 {
	if t.IsZero() {
		return math.NaN()
	}
	return AgeFromJD(julian.TimeToJD(t.UTC()))
}

// AgeFromJD returns the moon age for a Julian Day on the UT scale.
// Non-finite input propagates to the result.
func AgeFromJD(jd float64) float64 {
	jde := jd + deltaT(jd)/86400
	T := (jde - j2000) / 36525.0

	elongation := normalizeAngle(moonLongitude(T) - sunLongitude(T))
	return NormalizeAge(elongation / 360.0 * SynodicMonth)
}

// AgeFromUnix returns the moon age for a count of seconds since the Unix
// epoch. It accepts a float so that NaN and ±Inf flow through unchanged.
func AgeFromUnix(seconds float64) float64 {
	return AgeFromJD(2440587.5 + seconds/86400.0)
}

// NormalizeAge wraps an age in days into [0, SynodicMonth).
func NormalizeAge(age float64) float64 {
	age = math.Mod(age, SynodicMonth)
	if age < 0 {
		age += SynodicMonth
	}
	// tiny negative inputs round up to exactly SynodicMonth
	if age >= SynodicMonth {
		age = 0
	}
	return age
}

// Illumination returns the illuminated fraction for a moon age
func Illumination(age float64) float64 {
	k := (1 - math.Cos(2*math.Pi*age/SynodicMonth)) / 2
	if k < 0 {
		return 0
	}
	if k > 1 {
		return 1
	}
	return k
}

// normalizeAngle wraps an angle to the range [0, 360)
func normalizeAngle(angle float64) float64 {
	angle = math.Mod(angle, 360)
	if angle < 0 {
		angle += 360
	}
	if angle >= 360 {
		angle = 0
	}
	return angle
}

func degToRad(deg float64) float64 {
	return deg * math.Pi / 180.0
}

func radToDeg(rad float64) float64 {
	return rad * 180.0 / math.Pi
}
