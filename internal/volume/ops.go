package volume

import (
	"fmt"
	"math"
)

// Cast returns a copy of the image converted to pt.
func (img *Image) Cast(pt PixelType) (*Image, error) {
	if !pt.Valid() {
		return nil, fmt.Errorf("%w: %v", ErrPixelType, pt)
	}
	out := img.Clone()
	out.pixelType = pt
	for i, v := range out.buffer {
		out.buffer[i] = pt.Normalize(v)
	}
	return out, nil
}

// RescaleIntensity linearly maps the image's [min, max] onto
// [outMin, outMax]. The result is Float64 so no precision is lost before a
// caller casts it; a constant image maps to outMin. Every component shares
// the same mapping.
func (img *Image) RescaleIntensity(outMin, outMax float64) *Image {
	stats := img.Statistics()
	out := img.Clone()
	out.pixelType = Float64
	scale := 0.0
	if stats.Max != stats.Min {
		scale = (outMax - outMin) / (stats.Max - stats.Min)
	}
	for i, v := range out.buffer {
		out.buffer[i] = outMin + (v-stats.Min)*scale
	}
	return out
}

// Compose stacks scalar images of identical size and pixel type into one
// vector image. Geometry is taken from the first channel.
func Compose(channels ...*Image) (*Image, error) {
	if len(channels) == 0 {
		return nil, fmt.Errorf("%w: compose needs at least one channel", ErrInvalidArgument)
	}
	first := channels[0]
	for i, ch := range channels {
		if ch.components != 1 {
			return nil, fmt.Errorf("%w: channel %d has %d components", ErrInvalidArgument, i, ch.components)
		}
		if ch.pixelType != first.pixelType {
			return nil, fmt.Errorf("%w: channel %d is %s, channel 0 is %s", ErrPixelType, i, ch.pixelType, first.pixelType)
		}
		if len(ch.size) != len(first.size) {
			return nil, fmt.Errorf("%w: channel %d has %d dimensions", ErrDimensionMismatch, i, len(ch.size))
		}
		for d := range ch.size {
			if ch.size[d] != first.size[d] {
				return nil, fmt.Errorf("%w: channel %d size %v differs from %v", ErrDimensionMismatch, i, ch.size, first.size)
			}
		}
	}

	n := len(channels)
	out, err := NewVector(first.size, first.pixelType, n)
	if err != nil {
		return nil, err
	}
	if err := out.CopyInformation(first); err != nil {
		return nil, err
	}
	for p := 0; p < first.NumberOfPixels(); p++ {
		for c, ch := range channels {
			out.buffer[p*n+c] = ch.buffer[p]
		}
	}
	return out, nil
}

// Component returns channel c of a vector image as a scalar image.
func (img *Image) Component(c int) (*Image, error) {
	if c < 0 || c >= img.components {
		return nil, fmt.Errorf("%w: component %d of %d", ErrOutOfBounds, c, img.components)
	}
	out, err := New(img.size, img.pixelType)
	if err != nil {
		return nil, err
	}
	_ = out.CopyInformation(img)
	for p := range out.buffer {
		out.buffer[p] = img.buffer[p*img.components+c]
	}
	return out, nil
}

// Statistics summarises all pixel values of an image.
type Statistics struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Mean  float64 `json:"mean"`
	Sum   float64 `json:"sum"`
	Count int     `json:"count"`
}

// Statistics computes min, max, mean and sum over every component.
func (img *Image) Statistics() Statistics {
	s := Statistics{Min: math.Inf(1), Max: math.Inf(-1), Count: len(img.buffer)}
	for _, v := range img.buffer {
		if v < s.Min {
			s.Min = v
		}
		if v > s.Max {
			s.Max = v
		}
		s.Sum += v
	}
	if s.Count > 0 {
		s.Mean = s.Sum / float64(s.Count)
	}
	return s
}

// Map returns a copy with fn applied to every component value, normalised
// to pt (Unknown keeps the pixel type).
func (img *Image) Map(pt PixelType, fn func(float64) float64) *Image {
	out := img.NewLike(pt)
	for i, v := range img.buffer {
		out.buffer[i] = out.pixelType.Normalize(fn(v))
	}
	return out
}
