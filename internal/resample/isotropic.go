package resample

import (
	"context"
	"fmt"
	"math"

	"github.com/ironsheep/volume-tools-mcp/internal/logging"
	"github.com/ironsheep/volume-tools-mcp/internal/volume"
)

// IsotropicOptions configures MakeIsotropic. The zero value uses linear
// interpolation, the smallest input spacing and a default value of 0.
type IsotropicOptions struct {
	Interpolator Interpolator

	// Spacing is the target spacing for every axis; 0 picks the smallest
	// input spacing.
	Spacing float64

	// DefaultValue fills points outside the input, e.g. -1000 for air in CT.
	DefaultValue float64

	// StandardizeAxes resamples onto identity axes when the input direction
	// is not the identity. The output then covers the bounding box of the
	// input's corners.
	StandardizeAxes bool

	Workers int
}

// MakeIsotropic resamples img so that every axis has the same spacing and
// the output covers the same physical region. An already isotropic image is
// returned as a copy.
func MakeIsotropic(ctx context.Context, img *volume.Image, opts IsotropicOptions) (*volume.Image, error) {
	spacing := img.Spacing()
	if img.IsIsotropic() {
		logging.Debugf("image spacing %v is already isotropic", spacing)
		return img.Clone(), nil
	}

	target := opts.Spacing
	if target == 0 {
		target = spacing[0]
		for _, s := range spacing[1:] {
			target = math.Min(target, s)
		}
	}
	if target <= 0 || math.IsNaN(target) || math.IsInf(target, 0) {
		return nil, fmt.Errorf("%w: isotropic spacing %v", volume.ErrInvalidArgument, target)
	}

	dim := img.Dimension()
	size := img.Size()
	newSpacing := make([]float64, dim)
	newSize := make([]int, dim)
	for i := range size {
		newSpacing[i] = target
		newSize[i] = int(math.RoundToEven(float64(size[i]) * spacing[i] / target))
	}
	origin := img.Origin()
	direction := img.Direction()

	if opts.StandardizeAxes && !img.HasIdentityDirection() {
		direction = nil
		lo, hi := cornerBounds(img)
		origin = lo
		for i := range newSize {
			newSize[i] = int(math.RoundToEven((hi[i] - lo[i]) / target))
		}
	}
	for i, s := range newSize {
		if s < 1 {
			return nil, fmt.Errorf("%w: spacing %v leaves axis %d empty", volume.ErrInvalidArgument, target, i)
		}
	}

	return Resample(ctx, img, Options{
		Size:         newSize,
		Origin:       origin,
		Spacing:      newSpacing,
		Direction:    direction,
		Interpolator: opts.Interpolator,
		DefaultValue: opts.DefaultValue,
		Workers:      opts.Workers,
	})
}

// cornerBounds returns the per-axis minimum and maximum over the physical
// points of the indices whose entries are 0 or size.
func cornerBounds(img *volume.Image) (lo, hi []float64) {
	size := img.Size()
	dim := len(size)
	lo = make([]float64, dim)
	hi = make([]float64, dim)
	for i := range lo {
		lo[i] = math.Inf(1)
		hi[i] = math.Inf(-1)
	}

	corner := make([]int, dim)
	for mask := 0; mask < 1<<dim; mask++ {
		for i := range corner {
			corner[i] = 0
			if mask&(1<<i) != 0 {
				corner[i] = size[i]
			}
		}
		p := img.TransformIndexToPhysicalPoint(corner)
		for i, v := range p {
			lo[i] = math.Min(lo[i], v)
			hi[i] = math.Max(hi[i], v)
		}
	}
	return lo, hi
}
