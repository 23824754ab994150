// Package dataset turns image files into fixed size uint8 tensors for
// machine learning input pipelines.
package dataset

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"math"
	"path/filepath"
	"runtime"

	"github.com/anthonynsimon/bild/transform"
	"github.com/disintegration/imaging"
	"golang.org/x/sync/errgroup"

	"github.com/ironsheep/volume-tools-mcp/internal/volume"
	"github.com/ironsheep/volume-tools-mcp/internal/volumeio"
)

// Options configures FromFilenames.
type Options struct {
	// ImageSize is the output (height, width).
	ImageSize [2]int

	// ImagePath is joined in front of every filename when set.
	ImagePath string

	// Channels of every tensor; 0 means 3.
	Channels int

	// Workers bounds concurrent loads; <= 0 means runtime.NumCPU().
	Workers int
}

// Tensor is an image in height, width, channel order.
type Tensor struct {
	Name  string
	Shape [3]int
	Data  []uint8
}

// At returns the value at row y, column x and channel c.
func (t *Tensor) At(y, x, c int) uint8 {
	return t.Data[(y*t.Shape[1]+x)*t.Shape[2]+c]
}

// FromFilenames loads every file, converts it to a tensor and resizes it to
// opts.ImageSize preserving the aspect ratio with black padding. Results
// keep the order of filenames.
func FromFilenames(ctx context.Context, filenames []string, opts Options) ([]Tensor, error) {
	if opts.ImageSize[0] < 1 || opts.ImageSize[1] < 1 {
		return nil, fmt.Errorf("%w: image size must be positive, got %v", volume.ErrInvalidArgument, opts.ImageSize)
	}
	if opts.Channels == 0 {
		opts.Channels = 3
	}
	if opts.Channels < 0 {
		return nil, fmt.Errorf("%w: channels must be positive, got %d", volume.ErrInvalidArgument, opts.Channels)
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	out := make([]Tensor, len(filenames))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, name := range filenames {
		i, name := i, name
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			path := name
			if opts.ImagePath != "" {
				path = filepath.Join(opts.ImagePath, name)
			}
			t, err := Load(path, opts.Channels)
			if err != nil {
				return fmt.Errorf("failed to load %s: %w", path, err)
			}
			out[i] = ResizeWithPad(t, opts.ImageSize[0], opts.ImageSize[1])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Load reads path as Float32, rescales it to [0,255] and converts it to a
// tensor with the given channel count.
func Load(path string, channels int) (Tensor, error) {
	img, err := volumeio.ReadImageAs(path, volume.Float32)
	if err != nil {
		return Tensor{}, err
	}
	return ToTensor(img, filepath.Base(path), channels)
}

// ToTensor converts an image to UInt8 and lays it out as a tensor. A 3D
// image with a single slice is treated as 2D. Scalar images are repeated
// across channels.
func ToTensor(img *volume.Image, name string, channels int) (Tensor, error) {
	u8, err := img.RescaleIntensity(0, 255).Cast(volume.UInt8)
	if err != nil {
		return Tensor{}, err
	}

	size := u8.Size()
	if len(size) == 3 && size[2] == 1 {
		if u8, err = u8.Extract([]int{0, 0, 0}, []int{size[0], size[1], 0}); err != nil {
			return Tensor{}, err
		}
	}
	if u8.Dimension() != 2 {
		return Tensor{}, fmt.Errorf("%w: unexpected image shape %v", volume.ErrDimensionMismatch, u8.Size())
	}

	switch n := u8.Components(); {
	case n == channels:
	case n == 1:
		copies := make([]*volume.Image, channels)
		for i := range copies {
			copies[i] = u8
		}
		if u8, err = volume.Compose(copies...); err != nil {
			return Tensor{}, err
		}
	default:
		return Tensor{}, fmt.Errorf("%w: image has %d channels, want %d", volume.ErrInvalidArgument, n, channels)
	}

	t := Tensor{Name: name, Shape: [3]int{u8.Height(), u8.Width(), channels}}
	t.Data = make([]uint8, len(u8.Buffer()))
	for i, v := range u8.Buffer() {
		t.Data[i] = uint8(v)
	}
	return t, nil
}

// ResizeWithPad scales t to fit height x width without distortion using
// bilinear filtering and centres it on a black canvas.
func ResizeWithPad(t Tensor, height, width int) Tensor {
	h, w, c := t.Shape[0], t.Shape[1], t.Shape[2]
	ratio := math.Max(float64(w)/float64(width), float64(h)/float64(height))
	rw := max(1, int(math.Floor(float64(w)/ratio)))
	rh := max(1, int(math.Floor(float64(h)/ratio)))

	out := Tensor{Name: t.Name, Shape: [3]int{height, width, c}, Data: make([]uint8, height*width*c)}
	for ch := 0; ch < c; ch++ {
		plane := image.NewGray(image.Rect(0, 0, w, h))
		for p := range plane.Pix {
			plane.Pix[p] = t.Data[p*c+ch]
		}

		var src image.Image = plane
		if rw != w || rh != h {
			src = transform.Resize(plane, rw, rh, transform.Linear)
		}
		canvas := imaging.PasteCenter(imaging.New(width, height, color.Black), src)
		for p := 0; p < width*height; p++ {
			out.Data[p*c+ch] = canvas.Pix[p*4]
		}
	}
	return out
}
