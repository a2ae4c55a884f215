package lunar

import (
	"math"
	"sort"
	"time"
)

// namedPhases maps a whole moon-age day to its traditional name. Only these
// days carry a name; every other day of the cycle is unnamed.
var namedPhases = map[int]string{
	0:  "New Moon",
	2:  "Crescent Moon",
	7:  "First Quarter",
	10: "Waxing Gibbous",
	12: "Thirteenth-Night Moon",
	13: "Near-Full Moon",
	14: "Full Moon",
	15: "Sixteenth-Night Moon",
	16: "Standing Moon",
	17: "Sitting Moon",
	18: "Lying-Down Moon",
	19: "Late-Night Moon",
	22: "Last Quarter",
	26: "Dawn Moon",
}

// NamedPhase is one entry of the phase name table.
type NamedPhase struct {
	Day  int    `json:"day"`
	Name string `json:"name"`
}

// PhaseNames returns the named days in cycle order.
func PhaseNames() []NamedPhase {
	out := make([]NamedPhase, 0, len(namedPhases))
	for day, name := range namedPhases {
		out = append(out, NamedPhase{Day: day, Name: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day < out[j].Day })
	return out
}

// PhaseName returns the traditional name for the calendar day containing
// date, or "" when that day carries none.
//
// age selects the candidate name via round(age), wrapping to 0 near the end
// of the cycle. A name belongs to exactly
// one calendar day: the one whose noon age (in date's location) is closest
// to the candidate among the previous, current and next day. The current
// day must be strictly closer than both neighbours; a tie suppresses it.
func PhaseName(age float64, date time.Time) string {
	if math.IsNaN(age) || math.IsInf(age, 0) {
		return ""
	}

	// rounding is taken around the cycle: within half a day of the
	// synodic month is the next new moon
	target := int(math.Round(age))
	if SynodicMonth-age < 0.5 {
		target = 0
	}

	name, ok := namedPhases[target]
	if !ok {
		return ""
	}

	y, m, d := date.Date()
	noon := time.Date(y, m, d, 12, 0, 0, 0, date.Location())

	if ownsDay(target, MoonAge(noon.AddDate(0, 0, -1)), MoonAge(noon), MoonAge(noon.AddDate(0, 0, 1))) {
		return name
	}
	return ""
}

// ownsDay reports whether the day with noon age cur is strictly closer to
// target than both neighbouring days. Equal distances give false.
func ownsDay(target int, prev, cur, next float64) bool {
	d := targetDistance(cur, target)
	return d < targetDistance(prev, target) && d < targetDistance(next, target)
}

// targetDistance is |age-target|, measured around the cycle for new moon.
func targetDistance(age float64, target int) float64 {
	dist := math.Abs(age - float64(target))
	if target == 0 {
		dist = math.Min(dist, math.Abs(age-SynodicMonth))
	}
	return dist
}
