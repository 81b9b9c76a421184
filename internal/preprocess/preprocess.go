// Package preprocess turns an image file into the classifier's input tensor.
//
// The transform is fixed: decode, resize to S x S with bilinear
// interpolation, scale 8-bit channels to [0, 1], then normalize each
// channel with (v - mean) / std. The result is laid out [1, 3, S, S].
package preprocess

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"io"
	"io/fs"
	"os"

	"github.com/nfnt/resize"
	_ "golang.org/x/image/bmp"  // register BMP decoder
	_ "golang.org/x/image/webp" // register WebP decoder

	"github.com/born-ml/gradcam/internal/errs"
	"github.com/born-ml/gradcam/internal/tensor"
)

// ImageNet channel statistics.
var (
	ImageNetMean = [3]float32{0.485, 0.456, 0.406}
	ImageNetStd  = [3]float32{0.229, 0.224, 0.225}
)

// Options configures the transform.
type Options struct {
	Size int
	Mean [3]float32
	Std  [3]float32
}

// DefaultOptions returns 128x128 with ImageNet statistics.
func DefaultOptions() Options {
	return Options{Size: 128, Mean: ImageNetMean, Std: ImageNetStd}
}

// Validate checks the options.
func (o Options) Validate() error {
	if o.Size <= 0 {
		return fmt.Errorf("size %d must be positive", o.Size)
	}
	for i, s := range o.Std {
		if s <= 0 {
			return fmt.Errorf("std[%d] = %v must be positive", i, s)
		}
	}
	return nil
}

// Preprocessor applies the transform. It holds no mutable state and is
// safe for concurrent use.
type Preprocessor struct {
	opts Options
}

// New creates a Preprocessor.
func New(opts Options) (*Preprocessor, error) {
	if err := opts.Validate(); err != nil {
		return nil, errs.E(errs.Configuration, "preprocess.New", err)
	}
	return &Preprocessor{opts: opts}, nil
}

// Options returns the transform options.
func (p *Preprocessor) Options() Options {
	return p.opts
}

// Result is a decoded image and its input tensor.
type Result struct {
	Original image.Image
	Format   string
	Input    *tensor.RawTensor // [1, 3, S, S]
}

// Load reads and transforms the image at path.
//
// Errors: NotFound if path does not exist, Input if it is not a readable
// regular file, Decode if the content is not a supported image.
func (p *Preprocessor) Load(path string) (*Result, error) {
	const op = "preprocess.Load"

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errs.Errorf(errs.NotFound, op, "image %s: %w", path, err)
		}
		return nil, errs.Errorf(errs.Input, op, "image %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return nil, errs.Errorf(errs.Input, op, "image %s is not a regular file", path)
	}

	//nolint:gosec // G304: reading caller-supplied image paths is the point
	f, err := os.Open(path)
	if err != nil {
		return nil, errs.Errorf(errs.Input, op, "open %s: %w", path, err)
	}
	defer func() {
		_ = f.Close()
	}()

	return p.Decode(f)
}

// Decode reads an image from r and transforms it.
func (p *Preprocessor) Decode(r io.Reader) (*Result, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, errs.Errorf(errs.Decode, "preprocess.Decode", "decode image: %w", err)
	}
	if b := img.Bounds(); b.Empty() {
		return nil, errs.Errorf(errs.Decode, "preprocess.Decode", "image has no pixels (%dx%d)", b.Dx(), b.Dy())
	}
	return &Result{Original: img, Format: format, Input: p.Tensor(img)}, nil
}

// Tensor resizes img and returns the normalized [1, 3, S, S] tensor.
// Alpha is dropped, not composited.
func (p *Preprocessor) Tensor(img image.Image) *tensor.RawTensor {
	size := p.opts.Size
	resized := resize.Resize(uint(size), uint(size), img, resize.Bilinear) //nolint:gosec // size validated positive

	out := tensor.MustRaw(tensor.Shape{1, 3, size, size})
	data := out.Data()
	plane := size * size

	b := resized.Bounds()
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			c := color.NRGBAModel.Convert(resized.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			idx := y*size + x
			data[idx] = (float32(c.R)/255 - p.opts.Mean[0]) / p.opts.Std[0]
			data[plane+idx] = (float32(c.G)/255 - p.opts.Mean[1]) / p.opts.Std[1]
			data[2*plane+idx] = (float32(c.B)/255 - p.opts.Mean[2]) / p.opts.Std[2]
		}
	}
	return out
}
