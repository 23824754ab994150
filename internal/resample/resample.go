// Package resample maps images onto new sampling grids.
//
// Resample is the general operation. MakeIsotropic, Resize and
// ResizeAndScale derive an output grid from the input and call it.
package resample

import (
	"context"
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/ironsheep/volume-tools-mcp/internal/volume"
)

// Interpolator selects how input values between pixel centres are computed.
type Interpolator int

const (
	Linear Interpolator = iota
	NearestNeighbor
)

func (i Interpolator) String() string {
	switch i {
	case Linear:
		return "linear"
	case NearestNeighbor:
		return "nearest"
	}
	return "unknown"
}

// ParseInterpolator accepts "linear" and "nearest" (or "nearest_neighbor").
func ParseInterpolator(name string) (Interpolator, error) {
	switch name {
	case "", "linear":
		return Linear, nil
	case "nearest", "nearest_neighbor", "nearestneighbor":
		return NearestNeighbor, nil
	}
	return 0, fmt.Errorf("%w: unknown interpolator %q", volume.ErrInvalidArgument, name)
}

// snapTolerance is how close a continuous index must be to an integer to be
// treated as that integer.
const snapTolerance = 1e-6

// Options describes the output grid and sampling of Resample.
type Options struct {
	// Size of the output image; required.
	Size []int

	// Origin, Spacing and Direction of the output grid. Nil means zero
	// origin, unit spacing and identity direction.
	Origin    []float64
	Spacing   []float64
	Direction []float64

	// Transform maps output points into the input's physical space; nil is
	// the identity.
	Transform volume.Transform

	Interpolator Interpolator

	// DefaultValue is used for output points that map outside the input.
	DefaultValue float64

	// UseNearestExtrapolator samples the nearest input pixel instead of
	// DefaultValue for points outside the input.
	UseNearestExtrapolator bool

	// PixelType of the output; Unknown keeps the input's.
	PixelType volume.PixelType

	// Workers bounds the goroutines used; <= 0 means runtime.NumCPU().
	Workers int
}

// Resample evaluates img on the grid described by opts.
//
// A mapped point is inside the input when every continuous index
// coordinate lies in [-0.5, size-0.5). Linear interpolation replicates
// border pixels for the half pixel past the outermost centres. Integer
// output types receive rounded values.
func Resample(ctx context.Context, img *volume.Image, opts Options) (*volume.Image, error) {
	dim := img.Dimension()
	if len(opts.Size) != dim {
		return nil, fmt.Errorf("%w: output size has %d entries, image is %dD", volume.ErrDimensionMismatch, len(opts.Size), dim)
	}
	if opts.Transform != nil && opts.Transform.Dimension() != dim {
		return nil, fmt.Errorf("%w: %dD transform for %dD image", volume.ErrDimensionMismatch, opts.Transform.Dimension(), dim)
	}
	if opts.Interpolator != Linear && opts.Interpolator != NearestNeighbor {
		return nil, fmt.Errorf("%w: interpolator %d", volume.ErrInvalidArgument, opts.Interpolator)
	}
	pt := opts.PixelType
	if pt == volume.Unknown {
		pt = img.PixelType()
	}

	out, err := volume.NewVector(opts.Size, pt, img.Components())
	if err != nil {
		return nil, err
	}
	if opts.Spacing != nil {
		if err := out.SetSpacing(opts.Spacing); err != nil {
			return nil, err
		}
	}
	if opts.Origin != nil {
		if err := out.SetOrigin(opts.Origin); err != nil {
			return nil, err
		}
	}
	if opts.Direction != nil {
		if err := out.SetDirection(opts.Direction); err != nil {
			return nil, err
		}
	}

	r := &resampler{
		in:      img,
		out:     out,
		inSize:  img.Size(),
		outSize: out.Size(),
		opts:    opts,
		round:   pt.IsInteger(),
		defval:  pt.Normalize(opts.DefaultValue),
	}
	if err := r.run(ctx); err != nil {
		return nil, err
	}
	return out, nil
}

// ResampleLike resamples img onto reference's grid.
func ResampleLike(ctx context.Context, img, reference *volume.Image, tx volume.Transform, interp Interpolator, defaultValue float64) (*volume.Image, error) {
	return Resample(ctx, img, Options{
		Size:         reference.Size(),
		Origin:       reference.Origin(),
		Spacing:      reference.Spacing(),
		Direction:    reference.Direction(),
		Transform:    tx,
		Interpolator: interp,
		DefaultValue: defaultValue,
	})
}

type resampler struct {
	in      *volume.Image
	out     *volume.Image
	inSize  []int
	outSize []int
	opts    Options
	round   bool
	defval  float64
}

func (r *resampler) run(ctx context.Context) error {
	size := r.outSize
	lines := 1
	for _, s := range size[1:] {
		lines *= s
	}

	workers := r.opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	batch := (lines + workers*4 - 1) / (workers * 4)
	if batch < 1 {
		batch = 1
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for first := 0; first < lines; first += batch {
		first := first
		last := first + batch
		if last > lines {
			last = lines
		}
		g.Go(func() error {
			s := r.newScratch()
			for line := first; line < last; line++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				r.line(line, s)
			}
			return nil
		})
	}
	return g.Wait()
}

type scratch struct {
	index  []int
	point  []float64
	cindex []float64
	values []float64
	corner []int
	base   []int
	frac   []float64
}

func (r *resampler) newScratch() *scratch {
	dim := r.out.Dimension()
	return &scratch{
		index:  make([]int, dim),
		point:  make([]float64, dim),
		cindex: make([]float64, dim),
		values: make([]float64, r.in.Components()),
		corner: make([]int, dim),
		base:   make([]int, dim),
		frac:   make([]float64, dim),
	}
}

// line fills output line number n (all x for one combination of the other
// axes).
func (r *resampler) line(n int, s *scratch) {
	size := r.outSize
	dim := len(size)
	s.index[0] = 0
	for i := 1; i < dim; i++ {
		s.index[i] = n % size[i]
		n /= size[i]
	}

	start := r.out.TransformIndexToPhysicalPoint(s.index)
	spacing := r.out.Spacing()
	direction := r.out.Direction()
	step := make([]float64, dim)
	for row := 0; row < dim; row++ {
		step[row] = direction[row*dim] * spacing[0]
	}

	comps := r.in.Components()
	buf := r.out.Buffer()
	off := r.out.Offset(s.index)
	for x := 0; x < size[0]; x++ {
		for i := range s.point {
			s.point[i] = start[i] + float64(x)*step[i]
		}
		p := s.point
		if r.opts.Transform != nil {
			p = r.opts.Transform.TransformPoint(s.point)
		}
		r.in.PhysicalToIndexInto(p, s.cindex)

		dst := buf[off+x*comps : off+(x+1)*comps]
		if !r.sample(s) {
			for c := range dst {
				dst[c] = r.defval
			}
			continue
		}
		for c, v := range s.values {
			if r.round {
				v = math.Round(v)
			}
			dst[c] = r.out.PixelType().Normalize(v)
		}
	}
}

// sample evaluates the input at s.cindex into s.values. It reports false
// when the point is outside and no extrapolation applies.
func (r *resampler) sample(s *scratch) bool {
	size := r.inSize
	inside := true
	for i, c := range s.cindex {
		if rc := math.Round(c); math.Abs(c-rc) < snapTolerance {
			c = rc
			s.cindex[i] = c
		}
		if c < -0.5 || c >= float64(size[i])-0.5 {
			inside = false
		}
	}
	if !inside {
		if !r.opts.UseNearestExtrapolator {
			return false
		}
		r.nearest(s)
		return true
	}
	if r.opts.Interpolator == NearestNeighbor {
		r.nearest(s)
		return true
	}
	r.linear(s)
	return true
}

func (r *resampler) nearest(s *scratch) {
	size := r.inSize
	for i, c := range s.cindex {
		s.corner[i] = clamp(int(math.Floor(c+0.5)), 0, size[i]-1)
	}
	buf := r.in.Buffer()
	off := r.in.Offset(s.corner)
	copy(s.values, buf[off:off+len(s.values)])
}

// linear interpolates over the 2^dim neighbours of s.cindex, clamping
// neighbours to the image.
func (r *resampler) linear(s *scratch) {
	size := r.inSize
	dim := len(size)
	buf := r.in.Buffer()
	for c := range s.values {
		s.values[c] = 0
	}

	base, frac := s.base, s.frac
	for i, c := range s.cindex {
		f := math.Floor(c)
		base[i] = int(f)
		frac[i] = c - f
	}

	for mask := 0; mask < 1<<dim; mask++ {
		w := 1.0
		for i := 0; i < dim; i++ {
			if mask&(1<<i) != 0 {
				w *= frac[i]
				s.corner[i] = clamp(base[i]+1, 0, size[i]-1)
			} else {
				w *= 1 - frac[i]
				s.corner[i] = clamp(base[i], 0, size[i]-1)
			}
		}
		if w == 0 {
			continue
		}
		off := r.in.Offset(s.corner)
		for c := range s.values {
			s.values[c] += w * buf[off+c]
		}
	}
}

func clamp(val, min, max int) int {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
