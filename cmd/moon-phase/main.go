package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/chrissnell/moonshade/pkg/lunar"
	"github.com/chrissnell/moonshade/pkg/shading"
	"github.com/chrissnell/moonshade/pkg/solar"
)

type options struct {
	time    string
	to      string
	png     string
	gif     string
	size    int
	frames  int
	seed    int64
	lat     float64
	lon     float64
	names   bool
	workers int
}

func main() {
	var o options
	flag.StringVar(&o.time, "time", "", "UTC time to calculate phase for (RFC3339, e.g. 2024-01-15T12:00:00Z, or YYYY-MM-DD for noon UTC)")
	flag.StringVar(&o.to, "to", "", "End time for -gif, same formats as -time")
	flag.StringVar(&o.png, "png", "", "Write a rendered moon to this PNG file")
	flag.StringVar(&o.gif, "gif", "", "Write an animated transition from -time to -to to this GIF file")
	flag.IntVar(&o.size, "size", 400, "Image edge length in pixels")
	flag.IntVar(&o.frames, "frames", 24, "Number of frames for -gif")
	flag.Int64Var(&o.seed, "seed", 1, "Seed for the procedural surface")
	flag.Float64Var(&o.lat, "lat", math.NaN(), "Observer latitude in degrees, north positive")
	flag.Float64Var(&o.lon, "lon", math.NaN(), "Observer longitude in degrees, east positive")
	flag.BoolVar(&o.names, "names", false, "List the named days of the cycle and exit")
	flag.IntVar(&o.workers, "workers", 0, "Shading goroutines, GOMAXPROCS when 0")
	flag.Parse()

	if err := run(context.Background(), o, os.Stdout, time.Now); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, o options, out io.Writer, now func() time.Time) error {
	if o.names {
		for _, n := range lunar.PhaseNames() {
			fmt.Fprintf(out, "%2d  %s\n", n.Day, n.Name)
		}
		return nil
	}

	t, err := parseTime(o.time, now)
	if err != nil {
		return fmt.Errorf("parsing time: %w", err)
	}

	hasLocation := !math.IsNaN(o.lat) || !math.IsNaN(o.lon)
	if hasLocation && (math.IsNaN(o.lat) || math.IsNaN(o.lon)) {
		return errors.New("-lat and -lon must be given together")
	}

	phase := lunar.Calculate(t)
	if !phase.Valid() {
		return fmt.Errorf("unable to compute moon age for %s", t.Format(time.RFC3339))
	}

	fmt.Fprintf(out, "Moon Phase for %s\n", t.Format(time.RFC3339))
	name := phase.Name
	if name == "" {
		name = "(unnamed day)"
	}
	fmt.Fprintf(out, "  Phase Name:   %s\n", name)
	fmt.Fprintf(out, "  Illumination: %.1f%%\n", phase.Illumination*100)
	fmt.Fprintf(out, "  Age:          %.2f days\n", phase.Age)
	fmt.Fprintf(out, "  Elongation:   %.1f°\n", phase.Elongation)
	if phase.IsWaxing {
		fmt.Fprintf(out, "  Direction:    Waxing\n")
	} else {
		fmt.Fprintf(out, "  Direction:    Waning\n")
	}

	var rotation float64
	if hasLocation {
		orient := lunar.OrientationAt(t, o.lat, o.lon)
		rotation = orient.Rotation
		fmt.Fprintf(out, "  Bright Limb:  %.1f° (local %.1f°)\n", orient.BrightLimbAngle, orient.LocalTerminator)
		if sun, ok := solar.SunTimes(t, o.lat, o.lon); ok {
			fmt.Fprintf(out, "  Sunrise:      %s UTC\n", solar.FormatSunTime(sun.Sunrise, time.UTC))
			fmt.Fprintf(out, "  Sunset:       %s UTC\n", solar.FormatSunTime(sun.Sunset, time.UTC))
		} else {
			fmt.Fprintf(out, "  Sun:          does not cross the horizon (day length %s)\n", sun.DayLength)
		}
	}

	if o.png == "" && o.gif == "" {
		return nil
	}

	r := shading.NewRenderer(shading.ProceduralTexture{Seed: o.seed}, o.workers)
	r.Rotation = rotation

	if o.png != "" {
		img, err := r.Render(ctx, phase.Age, o.size)
		if err != nil {
			return err
		}
		if err := writeFile(o.png, func(w io.Writer) error { return shading.EncodePNG(w, img) }); err != nil {
			return err
		}
		fmt.Fprintf(out, "Wrote %s\n", o.png)
	}

	if o.gif != "" {
		if o.to == "" {
			return errors.New("-gif needs -to")
		}
		end, err := parseTime(o.to, now)
		if err != nil {
			return fmt.Errorf("parsing -to: %w", err)
		}
		frames, err := r.Transition(ctx, phase.Age, lunar.MoonAge(end), o.frames, o.size)
		if err != nil {
			return err
		}
		if err := writeFile(o.gif, func(w io.Writer) error { return shading.EncodeGIF(w, frames, 8) }); err != nil {
			return err
		}
		fmt.Fprintf(out, "Wrote %s (%d frames)\n", o.gif, len(frames))
	}

	return nil
}

func parseTime(s string, now func() time.Time) (time.Time, error) {
	if s == "" {
		return now().UTC(), nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t.Add(12 * time.Hour), nil
	}
	return time.Parse(time.RFC3339, s)
}

func writeFile(path string, encode func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := encode(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
