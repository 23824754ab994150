// Package registration estimates an initial translation between two images
// with FFT based normalized cross correlation.
package registration

import (
	"context"
	"fmt"
	"math"

	"github.com/ironsheep/volume-tools-mcp/internal/filter"
	"github.com/ironsheep/volume-tools-mcp/internal/logging"
	"github.com/ironsheep/volume-tools-mcp/internal/resample"
	"github.com/ironsheep/volume-tools-mcp/internal/volume"
)

// Options configures FFTTranslationInitialization.
type Options struct {
	// RequiredFractionOfOverlappingPixels is the share of the smaller mask
	// that a shift must overlap to be considered, in [0,1].
	RequiredFractionOfOverlappingPixels float64

	// InitialTransform is applied to moving by resampling before the
	// correlation. The result keeps its kind with the translation updated.
	InitialTransform volume.Transform

	// MaskedPixelValue excludes pixels equal to it from the correlation.
	MaskedPixelValue *float64

	// Workers bounds the resampling goroutines; <= 0 uses runtime.NumCPU().
	Workers int
}

// FFTTranslationInitialization finds the translation that maximizes the
// normalized cross correlation of fixed and moving. The returned transform
// maps physical points of fixed onto moving.
func FFTTranslationInitialization(ctx context.Context, fixed, moving *volume.Image, opts Options) (volume.Transform, error) {
	if fixed.Components() != 1 || moving.Components() != 1 {
		return nil, fmt.Errorf("%w: registration requires scalar images", volume.ErrInvalidArgument)
	}
	if fixed.Dimension() != moving.Dimension() {
		return nil, fmt.Errorf("%w: fixed is %dD, moving is %dD", volume.ErrDimensionMismatch, fixed.Dimension(), moving.Dimension())
	}
	frac := opts.RequiredFractionOfOverlappingPixels
	if frac < 0 || frac > 1 || math.IsNaN(frac) {
		return nil, fmt.Errorf("%w: required fraction of overlapping pixels must be in [0, 1], got %v", volume.ErrInvalidArgument, frac)
	}
	dim := fixed.Dimension()
	if opts.InitialTransform != nil && opts.InitialTransform.Dimension() != dim {
		return nil, fmt.Errorf("%w: initial transform is %dD, images are %dD", volume.ErrDimensionMismatch, opts.InitialTransform.Dimension(), dim)
	}

	if opts.InitialTransform != nil || !fixed.SamePhysicalSpace(moving) {
		var tx volume.Transform = volume.IdentityTransform{Dim: dim}
		if opts.InitialTransform != nil {
			tx = opts.InitialTransform
		}
		resampled, err := resample.Resample(ctx, moving, resample.Options{
			Size:      fixed.Size(),
			Origin:    fixed.Origin(),
			Spacing:   fixed.Spacing(),
			Direction: fixed.Direction(),
			Transform: tx,
			PixelType: moving.PixelType(),
			Workers:   opts.Workers,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to resample moving image onto fixed grid: %w", err)
		}
		moving = resampled
	}

	sigma := fixed.Spacing()[0]
	f, err := prepare(fixed, sigma)
	if err != nil {
		return nil, err
	}
	m, err := prepare(moving, sigma)
	if err != nil {
		return nil, err
	}

	fixedIn := nccInput{values: field{shape: f.Size(), data: f.Buffer()}, mask: mask(f, opts.MaskedPixelValue)}
	movingIn := nccInput{values: field{shape: m.Size(), data: m.Buffer()}, mask: mask(m, opts.MaskedPixelValue)}

	minCount := math.Min(sum(fixedIn.mask), sum(movingIn.mask))
	if minCount == 0 {
		return nil, fmt.Errorf("%w: every pixel is masked", volume.ErrInvalidArgument)
	}
	minOverlap := math.Max(1, frac*minCount)

	ncc, err := maskedNCC(ctx, fixedIn, movingIn, minOverlap)
	if err != nil {
		return nil, err
	}

	xcorr, err := volume.New(ncc.shape, volume.Float64)
	if err != nil {
		return nil, err
	}
	copy(xcorr.Buffer(), ncc.data)
	if err := xcorr.SetSpacing(fixed.Spacing()); err != nil {
		return nil, err
	}
	if err := xcorr.SetDirection(fixed.Direction()); err != nil {
		return nil, err
	}
	smoothed, err := filter.SmoothingGaussian(xcorr, sigma)
	if err != nil {
		return nil, fmt.Errorf("failed to smooth correlation: %w", err)
	}

	peak, value := peakCenter(smoothed)
	logging.Debugf("registration: correlation peak %.4f at index %v", value, peak)

	fixedSize := fixed.Size()
	spacing := fixed.Spacing()
	direction := fixed.Direction()
	scaled := make([]float64, dim)
	for i := range scaled {
		scaled[i] = (peak[i] - float64(fixedSize[i]-1)) * spacing[i]
	}
	translation := make([]float64, dim)
	for r := 0; r < dim; r++ {
		for c := 0; c < dim; c++ {
			translation[r] += direction[r*dim+c] * scaled[c]
		}
	}

	if opts.InitialTransform == nil {
		tx, err := volume.NewTranslationTransform(translation)
		if err != nil {
			return nil, err
		}
		return tx, nil
	}
	offset := opts.InitialTransform.TransformVector(translation)
	combined := opts.InitialTransform.Translation()
	for i := range combined {
		combined[i] += offset[i]
	}
	return opts.InitialTransform.WithTranslation(combined)
}

func prepare(img *volume.Image, sigma float64) (*volume.Image, error) {
	smoothed, err := filter.SmoothingGaussian(img, sigma)
	if err != nil {
		return nil, fmt.Errorf("failed to smooth image: %w", err)
	}
	return smoothed.Cast(volume.Float32)
}

func mask(img *volume.Image, masked *float64) []float64 {
	buf := img.Buffer()
	out := make([]float64, len(buf))
	for i, v := range buf {
		if masked == nil || v != *masked {
			out[i] = 1
		}
	}
	return out
}

func sum(values []float64) float64 {
	var s float64
	for _, v := range values {
		s += v
	}
	return s
}

// peakCenter returns the continuous index at the centre of the bounding box
// of all pixels holding the maximum value, and that value.
func peakCenter(img *volume.Image) ([]float64, float64) {
	buf := img.Buffer()
	best := math.Inf(-1)
	for _, v := range buf {
		if v > best {
			best = v
		}
	}

	dim := img.Dimension()
	lo := make([]int, dim)
	hi := make([]int, dim)
	for i := range lo {
		lo[i] = math.MaxInt
		hi[i] = -1
	}
	volume.ForEachIndex(img.Size(), func(index []int) {
		if buf[img.Offset(index)] != best {
			return
		}
		for i, x := range index {
			if x < lo[i] {
				lo[i] = x
			}
			if x > hi[i] {
				hi[i] = x
			}
		}
	})

	center := make([]float64, dim)
	for i := range center {
		center[i] = float64(lo[i]+hi[i]) / 2
	}
	return center, best
}
