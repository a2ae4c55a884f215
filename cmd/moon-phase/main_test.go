package main

import (
	"bytes"
	"context"
	"image/gif"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func fixedNow() time.Time {
	return time.Date(2000, 1, 20, 12, 0, 0, 0, time.UTC)
}

func defaults() options {
	return options{size: 64, frames: 3, seed: 1, lat: math.NaN(), lon: math.NaN()}
}

func TestParseTime(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
		ok   bool
	}{
		{"", fixedNow(), true},
		{"2024-01-15", time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC), true},
		{"2024-01-15T03:04:05Z", time.Date(2024, 1, 15, 3, 4, 5, 0, time.UTC), true},
		{"15/01/2024", time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseTime(tt.in, fixedNow)
			if !tt.ok {
				if err == nil {
					t.Fatalf("parseTime(%q) succeeded", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseTime(%q): %v", tt.in, err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("parseTime(%q) = %v, expected %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestRunPrintsPhase(t *testing.T) {
	var out bytes.Buffer
	if err := run(context.Background(), defaults(), &out, fixedNow); err != nil {
		t.Fatal(err)
	}
	s := out.String()
	for _, want := range []string{"2000-01-20T12:00:00Z", "Full Moon", "Illumination:"} {
		if !strings.Contains(s, want) {
			t.Errorf("output missing %q:\n%s", want, s)
		}
	}
}

func TestRunNames(t *testing.T) {
	o := defaults()
	o.names = true
	var out bytes.Buffer
	if err := run(context.Background(), o, &out, fixedNow); err != nil {
		t.Fatal(err)
	}
	if lines := strings.Count(out.String(), "\n"); lines != 14 {
		t.Errorf("got %d names, expected 14", lines)
	}
}

func TestRunLocation(t *testing.T) {
	o := defaults()
	o.lat, o.lon = 51.5, -0.13
	var out bytes.Buffer
	if err := run(context.Background(), o, &out, fixedNow); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "Sunset:") {
		t.Errorf("expected sun times:\n%s", out.String())
	}

	o.lon = math.NaN()
	if err := run(context.Background(), o, &out, fixedNow); err == nil {
		t.Error("expected an error for -lat without -lon")
	}
}

func TestRunWritesImages(t *testing.T) {
	dir := t.TempDir()
	o := defaults()
	o.png = filepath.Join(dir, "moon.png")
	o.gif = filepath.Join(dir, "moon.gif")
	o.to = "2000-01-27"

	var out bytes.Buffer
	if err := run(context.Background(), o, &out, fixedNow); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(o.png)
	if err != nil {
		t.Fatal(err)
	}
	img, err := png.Decode(f)
	f.Close()
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds().Dx() != 64 {
		t.Errorf("png width = %d", img.Bounds().Dx())
	}

	f, err = os.Open(o.gif)
	if err != nil {
		t.Fatal(err)
	}
	anim, err := gif.DecodeAll(f)
	f.Close()
	if err != nil {
		t.Fatal(err)
	}
	if len(anim.Image) != 3 {
		t.Errorf("gif frames = %d, expected 3", len(anim.Image))
	}
}

func TestRunGIFNeedsEnd(t *testing.T) {
	o := defaults()
	o.gif = filepath.Join(t.TempDir(), "moon.gif")
	if err := run(context.Background(), o, &bytes.Buffer{}, fixedNow); err == nil {
		t.Error("expected an error without -to")
	}
}
