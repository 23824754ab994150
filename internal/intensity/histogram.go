// Package intensity remaps pixel values by histogram matching.
package intensity

import (
	"fmt"

	"github.com/ironsheep/volume-tools-mcp/internal/volume"
)

// MatchOptions configures HistogramMatch.
type MatchOptions struct {
	// Levels is the number of histogram bins.
	Levels int

	// MatchPoints is the number of quantiles matched between the
	// histograms, in addition to the lower bound and the maximum.
	MatchPoints int

	// ThresholdAtMean excludes values below each image's mean from its
	// histogram, which keeps a large background from dominating.
	ThresholdAtMean bool
}

// DefaultMatchOptions returns 256 levels, 32 match points and no
// thresholding.
func DefaultMatchOptions() MatchOptions {
	return MatchOptions{Levels: 256, MatchPoints: 32}
}

func (o MatchOptions) validate() error {
	if o.Levels < 1 {
		return fmt.Errorf("%w: histogram levels must be >= 1, got %d", volume.ErrInvalidArgument, o.Levels)
	}
	if o.MatchPoints < 1 {
		return fmt.Errorf("%w: match points must be >= 1, got %d", volume.ErrInvalidArgument, o.MatchPoints)
	}
	return nil
}

// HistogramMatch maps the intensities of img so that its histogram matches
// reference's.
//
// Both histograms are sampled at MatchPoints evenly spaced quantiles; with
// the lower bound (minimum, or mean when ThresholdAtMean) and maximum these
// form a piecewise linear mapping. Values below the lower bound follow the
// line from the minima to the lower bounds. The output has img's pixel type
// and geometry.
func HistogramMatch(img, reference *volume.Image, opts MatchOptions) (*volume.Image, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if img.Components() != 1 || reference.Components() != 1 {
		return nil, fmt.Errorf("%w: histogram matching needs scalar images", volume.ErrInvalidArgument)
	}

	src := newHistogram(img.Buffer(), opts)
	ref := newHistogram(reference.Buffer(), opts)
	table := newQuantileTable(src, ref, opts.MatchPoints)

	return img.Map(img.PixelType(), table.apply), nil
}

// HistogramEqualization spreads img's intensities over [0, opts.Levels-1]
// by matching against a flat histogram: a ramp 0..Levels-1 stored in img's
// pixel type.
func HistogramEqualization(img *volume.Image, opts MatchOptions) (*volume.Image, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	ramp, err := volume.New([]int{opts.Levels}, img.PixelType())
	if err != nil {
		return nil, err
	}
	buf := ramp.Buffer()
	for i := range buf {
		buf[i] = img.PixelType().Normalize(float64(i))
	}
	return HistogramMatch(img, ramp, opts)
}

// histogram is an equal-width histogram over [lower, max] of the values at
// or above lower.
type histogram struct {
	min, max, lower float64
	counts          []float64
	total           float64
}

func newHistogram(values []float64, opts MatchOptions) *histogram {
	h := &histogram{counts: make([]float64, opts.Levels)}
	if len(values) == 0 {
		return h
	}

	h.min, h.max = values[0], values[0]
	var sum float64
	for _, v := range values {
		if v < h.min {
			h.min = v
		}
		if v > h.max {
			h.max = v
		}
		sum += v
	}
	h.lower = h.min
	if opts.ThresholdAtMean {
		h.lower = sum / float64(len(values))
	}

	width := h.max - h.lower
	for _, v := range values {
		if v < h.lower {
			continue
		}
		bin := 0
		if width > 0 {
			bin = int((v - h.lower) / width * float64(opts.Levels))
			if bin >= opts.Levels {
				bin = opts.Levels - 1
			}
		}
		h.counts[bin]++
		h.total++
	}
	return h
}

// quantile returns the value below which fraction p of the histogram lies,
// interpolating linearly inside the bin that crosses p.
func (h *histogram) quantile(p float64) float64 {
	if h.total == 0 {
		return h.lower
	}
	width := (h.max - h.lower) / float64(len(h.counts))
	target := p * h.total
	var cum float64
	for i, c := range h.counts {
		if c > 0 && cum+c >= target {
			frac := (target - cum) / c
			return h.lower + (float64(i)+frac)*width
		}
		cum += c
	}
	return h.max
}

// quantileTable is the piecewise linear source-to-reference mapping.
type quantileTable struct {
	src, ref  []float64
	gradients []float64
	lower     float64
}

func newQuantileTable(src, ref *histogram, points int) *quantileTable {
	n := points + 2
	t := &quantileTable{
		src:       make([]float64, n),
		ref:       make([]float64, n),
		gradients: make([]float64, n-1),
	}
	t.src[0], t.ref[0] = src.lower, ref.lower
	t.src[n-1], t.ref[n-1] = src.max, ref.max
	delta := 1 / float64(points+1)
	for j := 1; j < n-1; j++ {
		t.src[j] = src.quantile(float64(j) * delta)
		t.ref[j] = ref.quantile(float64(j) * delta)
	}

	for j := 0; j < n-1; j++ {
		if d := t.src[j+1] - t.src[j]; d != 0 {
			t.gradients[j] = (t.ref[j+1] - t.ref[j]) / d
		}
	}
	if d := t.src[0] - src.min; d != 0 {
		t.lower = (t.ref[0] - ref.min) / d
	}
	return t
}

func (t *quantileTable) apply(v float64) float64 {
	last := len(t.src) - 1
	switch {
	case v < t.src[0]:
		return t.ref[0] + (v-t.src[0])*t.lower
	case v >= t.src[last]:
		return t.ref[last]
	}
	for j := 1; j <= last; j++ {
		if v < t.src[j] {
			return t.ref[j-1] + (v-t.src[j-1])*t.gradients[j-1]
		}
	}
	return t.ref[last]
}
