package shading

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/gif"
	"image/png"
	"io"
	"math"
	"runtime"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/chrissnell/moonshade/pkg/lunar"
)

const (
	// DefaultDiscScale is the disc diameter as a fraction of the image size
	DefaultDiscScale = 0.72

	// MaxSize bounds the edge length of a rendered image
	MaxSize = 2048

	// textureCacheSize is how many texture diameters a Renderer keeps
	textureCacheSize = 4
)

var ErrInvalidSize = errors.New("invalid image size")

// Renderer composes a texture with a shading pass. A Renderer is safe for
// concurrent use; textures for the most recently used sizes are kept and
// copied into a fresh buffer for every render.
type Renderer struct {
	Texture   Texture
	Lighting  Lighting
	Workers   int     // shading goroutines per render, GOMAXPROCS when zero
	Rotation  float64 // image-plane rotation of the lit side, degrees counter-clockwise
	DiscScale float64 // DefaultDiscScale when zero

	once  sync.Once
	cache *lru.Cache[int, *image.NRGBA]
}

// NewRenderer returns a Renderer with default lighting over tex.
func NewRenderer(tex Texture, workers int) *Renderer {
	return &Renderer{
		Texture:  tex,
		Lighting: DefaultLighting(),
		Workers:  workers,
	}
}

func (r *Renderer) discScale() float64 {
	if r.DiscScale > 0 && r.DiscScale <= 1 {
		return r.DiscScale
	}
	return DefaultDiscScale
}

func (r *Renderer) workers() int {
	if r.Workers > 0 {
		return r.Workers
	}
	return runtime.GOMAXPROCS(0)
}

// texture returns the unlit surface sized to the disc, least recently used
// diameters being evicted
func (r *Renderer) texture(diameter int) *image.NRGBA {
	r.once.Do(func() {
		// only fails for a non-positive size
		r.cache, _ = lru.New[int, *image.NRGBA](textureCacheSize)
	})
	if img, ok := r.cache.Get(diameter); ok {
		return img
	}

	tex := r.Texture
	if tex == nil {
		tex = UniformTexture{Gray: 200}
	}
	img := tex.Image(diameter)
	r.cache.Add(diameter, img)
	return img
}

// Render draws the moon at age into a new size×size image. Pixels off the
// disc are transparent.
func (r *Renderer) Render(ctx context.Context, age float64, size int) (*image.NRGBA, error) {
	return r.RenderRotated(ctx, age, size, r.Rotation)
}

// RenderRotated is Render with an explicit image-plane rotation in degrees,
// overriding r.Rotation for this call only.
func (r *Renderer) RenderRotated(ctx context.Context, age float64, size int, rotation float64) (*image.NRGBA, error) {
	if size <= 0 || size > MaxSize {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}

	disc := DiscFor(size, r.discScale())
	diameter := int(math.Ceil(2 * disc.Radius))
	origin := int(math.Floor(disc.CX - disc.Radius))

	buf := image.NewNRGBA(image.Rect(0, 0, size, size))
	tex := r.texture(diameter)
	draw.Draw(buf, image.Rect(origin, origin, origin+diameter, origin+diameter), tex, image.Point{}, draw.Src)

	sun := Rotate(SunDirection(age), rotation)
	if err := ShadeParallel(ctx, buf, disc, sun, r.Lighting, r.workers()); err != nil {
		return nil, err
	}
	return buf, nil
}

// EncodePNG writes img as PNG.
func EncodePNG(w io.Writer, img image.Image) error {
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(w, img); err != nil {
		return fmt.Errorf("encoding png: %w", err)
	}
	return nil
}

// TransitionAges returns frames moon ages eased from one age to another
// along the forward (waxing) path around the cycle.
func TransitionAges(from, to float64, frames int) []float64 {
	if frames <= 0 {
		return nil
	}
	if frames == 1 {
		return []float64{lunar.NormalizeAge(to)}
	}

	span := lunar.NormalizeAge(to - from)
	ages := make([]float64, frames)
	for i := range ages {
		t := float64(i) / float64(frames-1)
		ages[i] = lunar.NormalizeAge(from + span*easeInOutCubic(t))
	}
	return ages
}

func easeInOutCubic(t float64) float64 {
	if t < 0.5 {
		return 4 * t * t * t
	}
	return 1 - math.Pow(-2*t+2, 3)/2
}

// Transition renders each age of TransitionAges as an independent pass.
// Frames render concurrently; a cancelled ctx abandons the whole set.
func (r *Renderer) Transition(ctx context.Context, from, to float64, frames, size int) ([]*image.NRGBA, error) {
	ages := TransitionAges(from, to, frames)
	if len(ages) == 0 {
		return nil, fmt.Errorf("transition needs at least one frame, got %d", frames)
	}

	out := make([]*image.NRGBA, len(ages))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers())
	for i, age := range ages {
		g.Go(func() error {
			img, err := r.Render(gctx, age, size)
			if err != nil {
				return fmt.Errorf("frame %d: %w", i, err)
			}
			out[i] = img
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// moonPalette is a transparent entry followed by a ramp from cool
// earthshine grey to warm sunlit white.
var moonPalette = func() color.Palette {
	p := make(color.Palette, 0, 256)
	p = append(p, color.NRGBA{})
	lo := [3]float64{4, 5, 9}
	hi := [3]float64{255, 250, 236}
	for i := 0; i < 255; i++ {
		t := float64(i) / 254
		p = append(p, color.NRGBA{
			R: uint8(lo[0] + (hi[0]-lo[0])*t),
			G: uint8(lo[1] + (hi[1]-lo[1])*t),
			B: uint8(lo[2] + (hi[2]-lo[2])*t),
			A: 0xff,
		})
	}
	return p
}()

// EncodeGIF writes frames as a looping animation with delay hundredths of
// a second between frames. Colours are reduced with Floyd-Steinberg
// dithering.
func EncodeGIF(w io.Writer, frames []*image.NRGBA, delay int) error {
	if len(frames) == 0 {
		return errors.New("no frames to encode")
	}

	anim := &gif.GIF{LoopCount: 0}
	for _, f := range frames {
		pal := image.NewPaletted(f.Bounds(), moonPalette)
		draw.FloydSteinberg.Draw(pal, f.Bounds(), f, f.Bounds().Min)
		// diffused error must not leak specks into the transparent surround
		b := f.Bounds()
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				if f.Pix[f.PixOffset(x, y)+3] == 0 {
					pal.SetColorIndex(x, y, 0)
				}
			}
		}
		anim.Image = append(anim.Image, pal)
		anim.Delay = append(anim.Delay, delay)
		anim.Disposal = append(anim.Disposal, gif.DisposalBackground)
	}

	if err := gif.EncodeAll(w, anim); err != nil {
		return fmt.Errorf("encoding gif: %w", err)
	}
	return nil
}
