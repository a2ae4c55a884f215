package shading

import (
	"image"
	"image/color"
	"math"

	opensimplex "github.com/ojrac/opensimplex-go"
)

// A Texture supplies the unlit lunar surface for a size×size buffer. The
// returned image belongs to the caller.
type Texture interface {
	Image(size int) *image.NRGBA
}

// baseColor is the warm off-white of the highlands
var baseColor = color.NRGBA{R: 0xf0, G: 0xe6, B: 0xd2, A: 0xff}

// crater is a fixed surface feature in disc coordinates (unit radius, y down)
type crater struct {
	X, Y, R float64
}

var craters = []crater{
	{X: 0.3, Y: -0.2, R: 0.15},
	{X: -0.2, Y: 0.3, R: 0.1},
	{X: 0.1, Y: 0.4, R: 0.08},
	{X: -0.3, Y: -0.3, R: 0.12},
	{X: 0.4, Y: 0.1, R: 0.07},
}

// ProceduralTexture generates maria from layered simplex noise plus a fixed
// crater set. The same seed always yields the same surface.
type ProceduralTexture struct {
	Seed int64
}

func (p ProceduralTexture) Image(size int) *image.NRGBA {
	return Procedural(size, p.Seed)
}

// Procedural renders the procedural surface at size×size, filling the disc
// of DiscFor(size, 1).
func Procedural(size int, seed int64) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	if size <= 0 {
		return img
	}

	maria := opensimplex.NewNormalized(seed)
	grain := opensimplex.NewNormalized(seed + 1)
	r := float64(size) / 2

	for y := 0; y < size; y++ {
		v := (float64(y) + 0.5 - r) / r
		for x := 0; x < size; x++ {
			u := (float64(x) + 0.5 - r) / r

			// dark basins where the low-frequency noise is high
			m := octaveNoise(maria, u, v, 4, 1.6, 0.5)
			shade := 1.0
			if m > 0.55 {
				shade -= math.Min(0.35, (m-0.55)*1.4)
			}
			shade += (octaveNoise(grain, u, v, 3, 12, 0.5) - 0.5) * 0.08

			for _, c := range craters {
				du, dv := u-c.X, v-c.Y
				d := math.Sqrt(du*du+dv*dv) / c.R
				switch {
				case d < 0.85:
					shade -= 0.12
				case d < 1:
					// bright rim
					shade += 0.06
				}
			}

			img.SetNRGBA(x, y, color.NRGBA{
				R: clampByte(float64(baseColor.R) * shade),
				G: clampByte(float64(baseColor.G) * shade),
				B: clampByte(float64(baseColor.B) * shade),
				A: 0xff,
			})
		}
	}
	return img
}

// octaveNoise generates fractal noise by layering multiple frequencies.
// The result stays in [0,1] for normalized noise.
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}

// ImageTexture resamples a photograph or map of the near side.
type ImageTexture struct {
	Src image.Image
}

func (t ImageTexture) Image(size int) *image.NRGBA {
	return FromImage(t.Src, size)
}

// FromImage resamples src to size×size with nearest-neighbour sampling.
// Transparent source pixels become opaque black.
func FromImage(src image.Image, size int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	if size <= 0 || src == nil {
		return img
	}

	sb := src.Bounds()
	if sb.Empty() {
		return img
	}

	for y := 0; y < size; y++ {
		sy := sb.Min.Y + (2*y+1)*sb.Dy()/(2*size)
		for x := 0; x < size; x++ {
			sx := sb.Min.X + (2*x+1)*sb.Dx()/(2*size)
			c := color.NRGBAModel.Convert(src.At(sx, sy)).(color.NRGBA)
			c.A = 0xff
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

// UniformTexture is a flat grey surface, mostly useful for calibration.
type UniformTexture struct {
	Gray uint8
}

func (t UniformTexture) Image(size int) *image.NRGBA {
	return Uniform(size, t.Gray)
}

// Uniform returns an opaque size×size image of a single grey level.
func Uniform(size int, gray uint8) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = gray, gray, gray, 0xff
	}
	return img
}
