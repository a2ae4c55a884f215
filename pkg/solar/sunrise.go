// Package solar computes sunrise and sunset for an observer. The Sun's
// position comes from its mean elements and equation of centre, good to
// about a minute of time away from the poles.
package solar

import (
	"math"
	"time"

	"github.com/soniakeys/meeus/v3/julian"
)

// horizonAltitude is the Sun's centre altitude at apparent rise and set:
// refraction plus semi-diameter
const horizonAltitude = -0.833

// Sun holds the solar events of one calendar day, in UTC. Sunrise and
// Sunset are zero when the Sun does not cross the horizon that day.
type Sun struct {
	Sunrise   time.Time     `json:"sunrise,omitempty" msgpack:"sunrise,omitempty"`
	Sunset    time.Time     `json:"sunset,omitempty" msgpack:"sunset,omitempty"`
	SolarNoon time.Time     `json:"solar_noon" msgpack:"solar_noon"`
	DayLength time.Duration `json:"day_length" msgpack:"day_length"`
}

// SunTimes returns the solar events for the calendar day of date (in
// date's location) at latitude/longitude in degrees, east positive. The
// boolean is false for polar day or polar night, when only SolarNoon and
// DayLength (0 or 24h) are set.
func SunTimes(date time.Time, latitude, longitude float64) (Sun, bool) {
	y, m, d := date.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)

	// local apparent noon, refined once at the first estimate
	noonMin := 720 - 4*longitude - equationOfTime(midnight.Add(12*time.Hour))
	noonMin = 720 - 4*longitude - equationOfTime(midnight.Add(minutes(noonMin)))
	noon := midnight.Add(minutes(noonMin))

	latRad := degToRad(latitude)
	decl := declination(noon)
	cosH := (math.Sin(degToRad(horizonAltitude)) - math.Sin(latRad)*math.Sin(decl)) /
		(math.Cos(latRad) * math.Cos(decl))

	s := Sun{SolarNoon: noon}
	switch {
	case cosH < -1:
		// Sun never sets (midnight sun / polar day)
		s.DayLength = 24 * time.Hour
		return s, false
	case cosH > 1:
		// Sun never rises (polar night)
		return s, false
	case math.IsNaN(cosH):
		return s, false
	}

	// hour angle in degrees; 4 minutes of time per degree
	h := radToDeg(math.Acos(cosH))
	s.Sunrise = midnight.Add(minutes(noonMin - 4*h))
	s.Sunset = midnight.Add(minutes(noonMin + 4*h))
	s.DayLength = s.Sunset.Sub(s.Sunrise)

	return s, true
}

// FormatSunTime renders t as a clock time in loc, or "" for the zero time.
func FormatSunTime(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format("3:04 PM")
}

func minutes(m float64) time.Duration {
	return time.Duration(m * float64(time.Minute))
}

// elements are the solar quantities needed for rise/set, at t.
type elements struct {
	L0, M, e, eps float64 // degrees except e
}

func solarElements(t time.Time) elements {
	T := (julian.TimeToJD(t.UTC()) - 2451545.0) / 36525.0 // Julian centuries since J2000.0

	return elements{
		L0:  fixAngle(280.46646 + T*(36000.76983+T*0.0003032)),            // Mean longitude of the Sun
		M:   fixAngle(357.52911 + T*(35999.05029-T*0.0001537)),            // Mean anomaly of the Sun
		e:   0.016708634 - T*(0.000042037+T*0.0000001267),                 // Eccentricity of Earth's orbit
		eps: 23 + (26+(21.448-T*(46.815+T*(0.00059-T*0.001813)))/60)/60, // Mean obliquity of the ecliptic
	}
}

// declination returns the Sun's apparent declination in radians
func declination(t time.Time) float64 {
	el := solarElements(t)
	T := (julian.TimeToJD(t.UTC()) - 2451545.0) / 36525.0
	M := degToRad(el.M)

	c := (1.914602-T*(0.004817+0.000014*T))*math.Sin(M) +
		(0.019993-0.000101*T)*math.Sin(2*M) +
		0.000289*math.Sin(3*M)
	lambda := degToRad(el.L0 + c - 0.00569)

	return math.Asin(math.Sin(degToRad(el.eps)) * math.Sin(lambda))
}

// equationOfTime returns apparent minus mean solar time in minutes
func equationOfTime(t time.Time) float64 {
	el := solarElements(t)

	// y approximates the effect of Earth's tilt; terms adjust for orbital variations
	y := math.Tan(degToRad(el.eps)/2) * math.Tan(degToRad(el.eps)/2)
	L0, M, e := degToRad(el.L0), degToRad(el.M), el.e

	return radToDeg(y*math.Sin(2*L0)-
		2*e*math.Sin(M)+
		4*e*y*math.Sin(M)*math.Cos(2*L0)-
		0.5*y*y*math.Sin(4*L0)-
		1.25*e*e*math.Sin(2*M)) * 4 // 4 minutes per degree
}

func degToRad(deg float64) float64 {
	return deg * (math.Pi / 180.0)
}

func radToDeg(rad float64) float64 {
	return rad * (180.0 / math.Pi)
}

// fixAngle normalizes an angle to the range [0, 360) degrees
func fixAngle(angle float64) float64 {
	angle = math.Mod(angle, 360)
	if angle < 0 {
		angle += 360
	}
	return angle
}
