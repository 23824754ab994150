package resample

import (
	"context"
	"fmt"
	"math"

	"github.com/ironsheep/volume-tools-mcp/internal/volume"
)

// ResizeOptions configures Resize.
type ResizeOptions struct {
	// Isotropic gives every output axis the largest of the per-axis
	// spacings, so the whole input fits without distortion.
	Isotropic bool

	// Fill keeps the requested size and centres the input in it. Without
	// Fill an isotropic resize shrinks the output to the input's extent.
	Fill bool

	OutsideValue           float64
	Interpolator           Interpolator
	UseNearestExtrapolator bool
	Workers                int
}

// DefaultResizeOptions returns isotropic, filled, linear resizing with an
// outside value of 0.
func DefaultResizeOptions() ResizeOptions {
	return ResizeOptions{
		Isotropic:    true,
		Fill:         true,
		Interpolator: Linear,
	}
}

// Resize resamples img to newSize pixels while keeping its physical extent.
// The input is centred in the output and the direction is preserved.
func Resize(ctx context.Context, img *volume.Image, newSize []int, opts ResizeOptions) (*volume.Image, error) {
	dim := img.Dimension()
	if err := checkSize(newSize, dim, 1); err != nil {
		return nil, err
	}
	size := img.Size()
	spacing := img.Spacing()

	newSpacing := make([]float64, dim)
	for i := range newSpacing {
		newSpacing[i] = float64(size[i]) * spacing[i] / float64(newSize[i])
	}
	if opts.Isotropic {
		fillMax(newSpacing)
	}

	outSize := append([]int(nil), newSize...)
	if !opts.Fill {
		for i := range outSize {
			outSize[i] = int(math.Ceil(float64(size[i]) * spacing[i] / newSpacing[i]))
		}
	}

	originIndex := make([]float64, dim)
	for i := range originIndex {
		center := 0.5 * float64(size[i]-1)
		newCenter := 0.5 * float64(outSize[i]-1)
		originIndex[i] = center - newCenter*(newSpacing[i]/spacing[i])
	}

	return Resample(ctx, img, Options{
		Size:                   outSize,
		Origin:                 img.TransformContinuousIndexToPhysicalPoint(originIndex),
		Spacing:                newSpacing,
		Direction:              img.Direction(),
		Interpolator:           opts.Interpolator,
		DefaultValue:           opts.OutsideValue,
		UseNearestExtrapolator: opts.UseNearestExtrapolator,
		Workers:                opts.Workers,
	})
}

// ScaleOptions configures ResizeAndScale.
type ScaleOptions struct {
	OutsideValue float64
	Workers      int
}

// ResizeAndScale makes a UInt8 thumbnail-style image of newSize pixels.
//
// Scalar images of any other pixel type are first rescaled to [0,255] and
// cast, so padding with OutsideValue is meaningful whatever the original
// range. The spacing is isotropic, large enough for the input to fit, and
// the output has identity direction with the input centred.
func ResizeAndScale(ctx context.Context, img *volume.Image, newSize []int, opts ScaleOptions) (*volume.Image, error) {
	dim := img.Dimension()
	if err := checkSize(newSize, dim, 2); err != nil {
		return nil, err
	}

	src := img
	if img.Components() == 1 && img.PixelType() != volume.UInt8 {
		var err error
		if src, err = img.RescaleIntensity(0, 255).Cast(volume.UInt8); err != nil {
			return nil, err
		}
	}

	size := src.Size()
	spacing := src.Spacing()
	newSpacing := make([]float64, dim)
	for i := range newSpacing {
		newSpacing[i] = float64(size[i]-1) * spacing[i] / float64(newSize[i]-1)
	}
	fillMax(newSpacing)
	if newSpacing[0] <= 0 {
		return nil, fmt.Errorf("%w: image of size %v has no extent to resize", volume.ErrInvalidArgument, size)
	}

	half := make([]float64, dim)
	for i := range half {
		half[i] = float64(size[i]) / 2
	}
	center := src.TransformContinuousIndexToPhysicalPoint(half)
	origin := make([]float64, dim)
	for i := range origin {
		origin[i] = center[i] - float64(newSize[i])/2*newSpacing[i]
	}

	return Resample(ctx, src, Options{
		Size:         newSize,
		Origin:       origin,
		Spacing:      newSpacing,
		Interpolator: Linear,
		DefaultValue: opts.OutsideValue,
		Workers:      opts.Workers,
	})
}

func checkSize(newSize []int, dim, min int) error {
	if len(newSize) != dim {
		return fmt.Errorf("%w: new size has %d entries, image is %dD", volume.ErrDimensionMismatch, len(newSize), dim)
	}
	for i, s := range newSize {
		if s < min {
			return fmt.Errorf("%w: new size[%d] = %d, must be >= %d", volume.ErrInvalidArgument, i, s, min)
		}
	}
	return nil
}

func fillMax(values []float64) {
	m := values[0]
	for _, v := range values[1:] {
		m = math.Max(m, v)
	}
	for i := range values {
		values[i] = m
	}
}
