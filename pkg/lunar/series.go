package lunar

import (
	"math"

	"github.com/soniakeys/meeus/v3/base"
)

// Polynomial coefficients (degrees, T in Julian centuries from J2000.0)
// for the mean elements, Meeus ch. 25 and 47.
var (
	moonMeanLongitude = [4]float64{218.3164477, 481267.88123421, -0.0015786, 1.0 / 538841}
	moonMeanAnomaly   = [4]float64{134.9633964, 477198.8675055, 0.0087414, 1.0 / 69699}
	moonArgLatitude   = [4]float64{93.2720950, 483202.0175233, -0.0036539, -1.0 / 3526000}
	sunMeanAnomaly    = [4]float64{357.5291092, 35999.0502909, -0.0001536, 1.0 / 24490000}
	sunMeanLongitude  = [4]float64{280.46646, 36000.76983, 0.0003032, 0}
)

// sunAberrationDeg is the annual aberration of the Sun's longitude
const sunAberrationDeg = 0.00569

// periodicTerm is one sine term of a longitude series. The argument is
// D*d + M*m + Mp*mp + F*f where d is the mean elongation Lp-Ls.
type periodicTerm struct {
	Amplitude float64 // degrees
	D, M      float64
	Mp, F     float64
}

// lunarLongitudeTerms are the ten largest periodic terms of the Moon's
// ecliptic longitude (Meeus table 47.A).
var lunarLongitudeTerms = [10]periodicTerm{
	{Amplitude: 6.288774, Mp: 1},
	{Amplitude: 1.274027, D: 2, Mp: -1},
	{Amplitude: 0.658314, D: 2},
	{Amplitude: 0.213618, Mp: 2},
	{Amplitude: -0.185116, M: 1},
	{Amplitude: -0.114332, F: 2},
	{Amplitude: 0.058793, D: 2, Mp: -2},
	{Amplitude: 0.057066, D: 2, M: -1, Mp: -1},
	{Amplitude: 0.053322, D: 2, Mp: 1},
	{Amplitude: 0.045758, D: 2, M: -1},
}

// lunarLatitudeTerms are the dominant terms of the Moon's ecliptic
// latitude (Meeus table 47.B). Only the orientation code needs latitude.
var lunarLatitudeTerms = [4]periodicTerm{
	{Amplitude: 5.128122, F: 1},
	{Amplitude: 0.280602, Mp: 1, F: 1},
	{Amplitude: 0.277693, Mp: 1, F: -1},
	{Amplitude: 0.173237, D: 2, F: -1},
}

// centreTerm is one sine term of the Sun's equation of centre. Its
// amplitude is itself a polynomial in T.
type centreTerm struct {
	Multiple  float64
	Amplitude [3]float64
}

var solarCentreTerms = [3]centreTerm{
	{Multiple: 1, Amplitude: [3]float64{1.914602, -0.004817, -0.000014}},
	{Multiple: 2, Amplitude: [3]float64{0.019993, -0.000101, 0}},
	{Multiple: 3, Amplitude: [3]float64{0.000289, 0, 0}},
}

// elements holds the fundamental arguments at one instant, in degrees
// reduced to [0,360).
type elements struct {
	Lp, M, Mp, F, Ls float64
}

func meanElements(T float64) elements {
	return elements{
		Lp: normalizeAngle(base.Horner(T, moonMeanLongitude[:]...)),
		M:  normalizeAngle(base.Horner(T, sunMeanAnomaly[:]...)),
		Mp: normalizeAngle(base.Horner(T, moonMeanAnomaly[:]...)),
		F:  normalizeAngle(base.Horner(T, moonArgLatitude[:]...)),
		Ls: normalizeAngle(base.Horner(T, sunMeanLongitude[:]...)),
	}
}

// sum evaluates a periodic series against the elements.
func (e elements) sum(terms []periodicTerm) float64 {
	d := e.Lp - e.Ls
	var total float64
	for _, t := range terms {
		arg := t.D*d + t.M*e.M + t.Mp*e.Mp + t.F*e.F
		total += t.Amplitude * math.Sin(degToRad(arg))
	}
	return total
}

// moonLongitude returns the Moon's corrected ecliptic longitude in degrees
func moonLongitude(T float64) float64 {
	e := meanElements(T)
	return normalizeAngle(e.Lp + e.sum(lunarLongitudeTerms[:]))
}

// moonLatitude returns the Moon's ecliptic latitude in degrees
func moonLatitude(T float64) float64 {
	return meanElements(T).sum(lunarLatitudeTerms[:])
}

// sunLongitude returns the Sun's apparent ecliptic longitude in degrees:
// mean longitude plus equation of centre, less annual aberration.
func sunLongitude(T float64) float64 {
	e := meanElements(T)
	var c float64
	for _, t := range solarCentreTerms {
		c += base.Horner(T, t.Amplitude[:]...) * math.Sin(degToRad(t.Multiple*e.M))
	}
	return normalizeAngle(e.Ls + c - sunAberrationDeg)
}

// obliquity computes the mean obliquity of the ecliptic in degrees (IAU formula)
func obliquity(T float64) float64 {
	return base.Horner(T, 23.439291111, -0.013004167, -0.00000164, 0.000000504)
}
