// Package overlay renders a Grad-CAM map over the image it explains.
//
// The map is resampled to the original image size with bilinear
// interpolation, false-colored with the jet ramp (blue for low, red for
// high) and alpha-blended over the original pixels.
package overlay

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/nfnt/resize"

	"github.com/born-ml/gradcam/internal/gradcam"
)

// DefaultAlpha is the heatmap weight; the original gets 1 - DefaultAlpha.
const DefaultAlpha = 0.4

// Renderer blends heatmaps over images. It holds no mutable state and is
// safe for concurrent use.
type Renderer struct {
	alpha float64
}

// NewRenderer returns a renderer with the given heatmap weight in (0, 1).
func NewRenderer(alpha float64) (*Renderer, error) {
	if !(alpha > 0 && alpha < 1) {
		return nil, fmt.Errorf("overlay alpha %v must be in (0, 1)", alpha)
	}
	return &Renderer{alpha: alpha}, nil
}

// Alpha returns the heatmap weight.
func (r *Renderer) Alpha() float64 {
	return r.alpha
}

// Render returns original with m blended over it. The result has the
// dimensions of original, with its origin at (0, 0).
func (r *Renderer) Render(m *gradcam.Map, original image.Image) *image.RGBA {
	b := original.Bounds()
	w, h := b.Dx(), b.Dy()
	heat := Resample(m, w, h)

	out := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			src := color.NRGBAModel.Convert(original.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			hc := Jet(heat.At(x, y))

			i := out.PixOffset(x, y)
			out.Pix[i+0] = r.blend(hc.R, src.R)
			out.Pix[i+1] = r.blend(hc.G, src.G)
			out.Pix[i+2] = r.blend(hc.B, src.B)
			out.Pix[i+3] = 0xff
		}
	}
	return out
}

func (r *Renderer) blend(heat, src uint8) uint8 {
	v := r.alpha*float64(heat) + (1-r.alpha)*float64(src)
	return uint8(math.Round(min(max(v, 0), 255)))
}

// Resample resizes m to width x height with bilinear interpolation.
//
// Values are quantized to 16 bits on the way through, which keeps a
// constant map exactly constant.
func Resample(m *gradcam.Map, width, height int) *gradcam.Map {
	src := image.NewGray16(image.Rect(0, 0, m.Width(), m.Height()))
	for y := 0; y < m.Height(); y++ {
		for x := 0; x < m.Width(); x++ {
			v := min(max(m.At(x, y), 0), 1)
			src.SetGray16(x, y, color.Gray16{Y: uint16(math.Round(float64(v) * 0xffff))})
		}
	}

	//nolint:gosec // dimensions come from decoded images and are positive
	dst := resize.Resize(uint(width), uint(height), src, resize.Bilinear)

	db := dst.Bounds()
	values := make([]float32, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			g := color.Gray16Model.Convert(dst.At(db.Min.X+x, db.Min.Y+y)).(color.Gray16)
			values[y*width+x] = float32(g.Y) / 0xffff
		}
	}
	return gradcam.NewMap(width, height, values)
}

// Jet maps v in [0, 1] to the jet color ramp.
func Jet(v float32) color.RGBA {
	x := float64(min(max(v, 0), 1))
	channel := func(center float64) uint8 {
		c := min(max(1.5-math.Abs(4*x-center), 0), 1)
		return uint8(math.Round(c * 255))
	}
	return color.RGBA{R: channel(3), G: channel(2), B: channel(1), A: 0xff}
}
