package shading

import (
	"context"
	"image"
	"math"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/spatial/r3"
)

// Disc locates the lunar disc in buffer coordinates.
type Disc struct {
	CX, CY float64 // centre, in pixels
	Radius float64 // in pixels
}

// DiscFor returns a disc centred in a size×size buffer, with diameter
// size*scale.
func DiscFor(size int, scale float64) Disc {
	c := float64(size) / 2
	return Disc{CX: c, CY: c, Radius: float64(size) * scale / 2}
}

// Lighting holds the tunable constants of the light model
type Lighting struct {
	// Terminator band half-width in units of the Lambertian term:
	// PenumbraBase + PenumbraSpread*(1-|dy|), wider at the equator.
	PenumbraBase   float64
	PenumbraSpread float64
	ShadowExponent float64

	// Night side floor as a fraction of the texture, per channel (RGB)
	Earthshine [3]float64

	LitGain     float64
	ChannelGain [3]float64

	LimbDarkening bool
	LimbExponent  float64
}

// DefaultLighting returns the tuned constants used by the renderer.
func DefaultLighting() Lighting {
	return Lighting{
		PenumbraBase:   0.02,
		PenumbraSpread: 0.04,
		ShadowExponent: 1.2,
		Earthshine:     [3]float64{0.15, 0.16, 0.20},
		LitGain:        0.35,
		ChannelGain:    [3]float64{1.1, 1.0, 0.8},
		LimbDarkening:  true,
		LimbExponent:   0.3,
	}
}

// Shade lights every pixel of buf in place. Pixels outside the disc are
// cleared to transparent; pixels inside are shaded from their current
// colour, which is taken to be the unlit texture. A non-finite sun vector
// clears the whole buffer.
func Shade(buf *image.NRGBA, disc Disc, sun r3.Vec, l Lighting) {
	b := buf.Bounds()
	shadeRows(buf, disc, sun, l, b.Min.Y, b.Max.Y)
}

// ShadeParallel is Shade split into disjoint row bands run on up to workers
// goroutines. Bands not yet started when ctx is cancelled are skipped and
// ctx's error is returned; the buffer is then only partly shaded.
func ShadeParallel(ctx context.Context, buf *image.NRGBA, disc Disc, sun r3.Vec, l Lighting, workers int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b := buf.Bounds()
	rows := b.Dy()
	if workers <= 1 || rows < 2 {
		shadeRows(buf, disc, sun, l, b.Min.Y, b.Max.Y)
		return nil
	}

	// a few bands per worker evens out the cost of rows outside the disc
	bands := workers * 4
	if bands > rows {
		bands = rows
	}
	height := (rows + bands - 1) / bands

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for y0 := b.Min.Y; y0 < b.Max.Y; y0 += height {
		y0, y1 := y0, min(y0+height, b.Max.Y)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			shadeRows(buf, disc, sun, l, y0, y1)
			return nil
		})
	}
	return g.Wait()
}

func shadeRows(buf *image.NRGBA, disc Disc, sun r3.Vec, l Lighting, y0, y1 int) {
	b := buf.Bounds()
	ok := finite(sun) && disc.Radius > 0

	for y := y0; y < y1; y++ {
		dy := (float64(y) + 0.5 - disc.CY) / disc.Radius
		w := l.PenumbraBase + l.PenumbraSpread*(1-math.Abs(dy))

		off := buf.PixOffset(b.Min.X, y)
		for x := b.Min.X; x < b.Max.X; x, off = x+1, off+4 {
			px := buf.Pix[off : off+4 : off+4]

			dx := (float64(x) + 0.5 - disc.CX) / disc.Radius
			d2 := dx*dx + dy*dy
			if !ok || !(d2 < 1) {
				px[0], px[1], px[2], px[3] = 0, 0, 0, 0
				continue
			}

			nz := math.Sqrt(math.Max(0, 1-d2))
			dot := r3.Dot(r3.Vec{X: dx, Y: -dy, Z: nz}, sun)

			if dot < 0 {
				s := math.Pow(math.Min(1, -dot/w), l.ShadowExponent)
				for ch := 0; ch < 3; ch++ {
					c := float64(px[ch])
					px[ch] = clampByte(c*(1-s) + c*l.Earthshine[ch]*s)
				}
			} else {
				gain := dot * l.LitGain
				if l.LimbDarkening {
					gain *= math.Pow(nz, l.LimbExponent)
				}
				for ch := 0; ch < 3; ch++ {
					c := float64(px[ch])
					px[ch] = clampByte(c * (1 + gain*l.ChannelGain[ch]))
				}
			}
			px[3] = 255
		}
	}
}

// clampByte rounds v to the nearest byte; NaN maps to 0
func clampByte(v float64) uint8 {
	switch {
	case !(v > 0):
		return 0
	case v >= 255:
		return 255
	}
	return uint8(v + 0.5)
}

// MeanBrightness returns the mean luma over the interior pixels of disc,
// in [0,255]. It returns NaN when the disc covers no pixel.
func MeanBrightness(buf *image.NRGBA, disc Disc) float64 {
	b := buf.Bounds()
	var sum float64
	var n int

	for y := b.Min.Y; y < b.Max.Y; y++ {
		dy := (float64(y) + 0.5 - disc.CY) / disc.Radius
		for x := b.Min.X; x < b.Max.X; x++ {
			dx := (float64(x) + 0.5 - disc.CX) / disc.Radius
			if !(dx*dx+dy*dy < 1) {
				continue
			}
			px := buf.Pix[buf.PixOffset(x, y):]
			sum += 0.299*float64(px[0]) + 0.587*float64(px[1]) + 0.114*float64(px[2])
			n++
		}
	}

	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}
