package lunar

import (
	"math"
	"testing"
	"time"
)

func noonUTC(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

func TestPhaseNameJanuary2000(t *testing.T) {
	tests := []struct {
		date     time.Time
		expected string
	}{
		{noonUTC(2000, 1, 6), "New Moon"},
		{noonUTC(2000, 1, 7), ""},
		{noonUTC(2000, 1, 8), "Crescent Moon"},
		{noonUTC(2000, 1, 10), ""},
		{noonUTC(2000, 1, 12), ""},
		{noonUTC(2000, 1, 14), "First Quarter"},
		{noonUTC(2000, 1, 18), "Thirteenth-Night Moon"},
		{noonUTC(2000, 1, 19), "Near-Full Moon"},
		{noonUTC(2000, 1, 20), "Full Moon"},
		{noonUTC(2000, 1, 21), "Sixteenth-Night Moon"},
		{noonUTC(2000, 1, 22), "Standing Moon"},
		{noonUTC(2000, 1, 23), "Sitting Moon"},
		{noonUTC(2000, 1, 24), "Lying-Down Moon"},
		{noonUTC(2000, 1, 25), "Late-Night Moon"},
		{noonUTC(2000, 1, 28), "Last Quarter"},
		{noonUTC(2000, 2, 1), "Dawn Moon"},
	}

	for _, tt := range tests {
		t.Run(tt.date.Format("2006-01-02"), func(t *testing.T) {
			got := PhaseName(MoonAge(tt.date), tt.date)
			if got != tt.expected {
				t.Errorf("PhaseName = %q, expected %q (age %.3f)", got, tt.expected, MoonAge(tt.date))
			}
		})
	}
}

func TestPhaseNameUnnamedDays(t *testing.T) {
	date := noonUTC(2000, 1, 12)
	for _, age := range []float64{4, 4.4, 5, 5.49, 6, 6.2, 20, 24, 28} {
		if got := PhaseName(age, date); got != "" {
			t.Errorf("PhaseName(%.2f) = %q, expected empty", age, got)
		}
	}
}

func TestOwnsDay(t *testing.T) {
	tests := []struct {
		name            string
		target          int
		prev, cur, next float64
		expected        bool
	}{
		{"closest", 15, 14.2, 15.1, 16.0, true},
		{"neighbour closer", 15, 14.8, 15.6, 16.6, false},
		{"tie with previous", 15, 14.5, 15.5, 16.5, false},
		{"tie with next", 8, 6.9, 7.5, 8.5, false},
		{"tie with both", 15, 14.5, 15.5, 14.5, false},
		{"new moon across the wrap", 0, 29.4, 0.1, 1.1, true},
		{"new moon before the wrap", 0, 28.6, 29.5, 0.6, true},
		{"new moon wrap neighbour closer", 0, 29.5, 0.6, 1.6, false},
		{"new moon tie across the wrap", 0, SynodicMonth - 0.25, 0.25, 1.25, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ownsDay(tt.target, tt.prev, tt.cur, tt.next); got != tt.expected {
				t.Errorf("ownsDay(%d, %.4f, %.4f, %.4f) = %v, expected %v",
					tt.target, tt.prev, tt.cur, tt.next, got, tt.expected)
			}
		})
	}
}

func TestPhaseNameNonFinite(t *testing.T) {
	date := noonUTC(2000, 1, 20)
	if got := PhaseName(math.NaN(), date); got != "" {
		t.Errorf("PhaseName(NaN) = %q, expected empty", got)
	}
}

func TestPhaseNameOncePerCycle(t *testing.T) {
	start := noonUTC(1990, 1, 1)
	lastSeen := map[string]int{}
	prev := ""

	for day := 0; day < 365*12; day++ {
		date := start.AddDate(0, 0, day)
		name := PhaseName(MoonAge(date), date)
		if name == "" {
			prev = ""
			continue
		}

		if name == prev {
			t.Fatalf("%s: %q named on consecutive days", date.Format("2006-01-02"), name)
		}
		if last, ok := lastSeen[name]; ok && day-last < 29 {
			t.Errorf("%s: %q repeated after %d days", date.Format("2006-01-02"), name, day-last)
		}
		lastSeen[name] = day
		prev = name
	}

	for _, p := range PhaseNames() {
		if _, ok := lastSeen[p.Name]; !ok {
			t.Errorf("%q never assigned over 12 years", p.Name)
		}
	}
}

func TestPhaseNames(t *testing.T) {
	names := PhaseNames()
	if len(names) != 14 {
		t.Fatalf("expected 14 named days, got %d", len(names))
	}
	for i := 1; i < len(names); i++ {
		if names[i].Day <= names[i-1].Day {
			t.Errorf("PhaseNames not sorted at %d: %d after %d", i, names[i].Day, names[i-1].Day)
		}
	}
	if names[0].Name != "New Moon" || names[len(names)-1].Name != "Dawn Moon" {
		t.Errorf("unexpected bounds: %+v ... %+v", names[0], names[len(names)-1])
	}
}

func BenchmarkPhaseName(b *testing.B) {
	date := noonUTC(2000, 1, 20)
	age := MoonAge(date)
	for i := 0; i < b.N; i++ {
		PhaseName(age, date)
	}
}
