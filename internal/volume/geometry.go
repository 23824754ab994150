package volume

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// geometryTolerance is the relative tolerance used when comparing spacing,
// origin and direction between images.
const geometryTolerance = 1e-6

// Spacing returns a copy of the pixel spacing.
func (img *Image) Spacing() []float64 { return append([]float64(nil), img.spacing...) }

// Origin returns a copy of the physical position of index 0.
func (img *Image) Origin() []float64 { return append([]float64(nil), img.origin...) }

// Direction returns a copy of the row-major direction cosine matrix.
func (img *Image) Direction() []float64 { return append([]float64(nil), img.direction...) }

// SetSpacing replaces the spacing. Every entry must be positive.
func (img *Image) SetSpacing(spacing []float64) error {
	if len(spacing) != len(img.size) {
		return fmt.Errorf("%w: spacing has %d entries, image has %d dimensions", ErrDimensionMismatch, len(spacing), len(img.size))
	}
	for i, s := range spacing {
		if !(s > 0) || math.IsInf(s, 0) {
			return fmt.Errorf("%w: spacing[%d] = %v must be positive", ErrInvalidArgument, i, s)
		}
	}
	copy(img.spacing, spacing)
	return nil
}

// SetOrigin replaces the origin.
func (img *Image) SetOrigin(origin []float64) error {
	if len(origin) != len(img.size) {
		return fmt.Errorf("%w: origin has %d entries, image has %d dimensions", ErrDimensionMismatch, len(origin), len(img.size))
	}
	copy(img.origin, origin)
	return nil
}

// SetDirection replaces the direction cosine matrix. The matrix is row-major
// with Dimension()^2 entries and must be invertible.
func (img *Image) SetDirection(direction []float64) error {
	dim := len(img.size)
	if len(direction) != dim*dim {
		return fmt.Errorf("%w: direction has %d entries, want %d", ErrDimensionMismatch, len(direction), dim*dim)
	}
	inv, err := invert(direction, dim)
	if err != nil {
		return err
	}
	copy(img.direction, direction)
	img.inverse = inv
	return nil
}

func invert(m []float64, dim int) ([]float64, error) {
	var inv mat.Dense
	if err := inv.Inverse(mat.NewDense(dim, dim, append([]float64(nil), m...))); err != nil {
		return nil, fmt.Errorf("%w: direction matrix is not invertible: %v", ErrInvalidArgument, err)
	}
	out := make([]float64, dim*dim)
	for r := 0; r < dim; r++ {
		for c := 0; c < dim; c++ {
			out[r*dim+c] = inv.At(r, c)
		}
	}
	return out, nil
}

// CopyInformation copies spacing, origin and direction from src, which must
// have the same dimension.
func (img *Image) CopyInformation(src *Image) error {
	if src.Dimension() != img.Dimension() {
		return fmt.Errorf("%w: cannot copy %dD geometry to %dD image", ErrDimensionMismatch, src.Dimension(), img.Dimension())
	}
	copy(img.spacing, src.spacing)
	copy(img.origin, src.origin)
	copy(img.direction, src.direction)
	copy(img.inverse, src.inverse)
	return nil
}

// TransformIndexToPhysicalPoint maps an integer index to physical space.
func (img *Image) TransformIndexToPhysicalPoint(index []int) []float64 {
	c := make([]float64, len(index))
	for i, v := range index {
		c[i] = float64(v)
	}
	return img.TransformContinuousIndexToPhysicalPoint(c)
}

// TransformContinuousIndexToPhysicalPoint maps a continuous index to
// physical space: p = origin + D * (index .* spacing).
func (img *Image) TransformContinuousIndexToPhysicalPoint(index []float64) []float64 {
	dim := len(img.size)
	p := make([]float64, dim)
	for r := 0; r < dim; r++ {
		sum := img.origin[r]
		for c := 0; c < dim; c++ {
			sum += img.direction[r*dim+c] * index[c] * img.spacing[c]
		}
		p[r] = sum
	}
	return p
}

// TransformPhysicalPointToContinuousIndex is the inverse of
// TransformContinuousIndexToPhysicalPoint.
func (img *Image) TransformPhysicalPointToContinuousIndex(point []float64) []float64 {
	dim := len(img.size)
	idx := make([]float64, dim)
	img.PhysicalToIndexInto(point, idx)
	return idx
}

// PhysicalToIndexInto writes the continuous index of point into dst without
// allocating. It is the resampler's inner-loop form of
// TransformPhysicalPointToContinuousIndex.
func (img *Image) PhysicalToIndexInto(point, dst []float64) {
	dim := len(img.size)
	for r := 0; r < dim; r++ {
		var sum float64
		for c := 0; c < dim; c++ {
			sum += img.inverse[r*dim+c] * (point[c] - img.origin[c])
		}
		dst[r] = sum / img.spacing[r]
	}
}

// IsIsotropic reports whether all spacings are exactly equal.
func (img *Image) IsIsotropic() bool {
	for _, s := range img.spacing {
		if s != img.spacing[0] {
			return false
		}
	}
	return true
}

// HasIdentityDirection reports whether the direction matrix is exactly the identity.
func (img *Image) HasIdentityDirection() bool {
	dim := len(img.size)
	for r := 0; r < dim; r++ {
		for c := 0; c < dim; c++ {
			want := 0.0
			if r == c {
				want = 1
			}
			if img.direction[r*dim+c] != want {
				return false
			}
		}
	}
	return true
}

// SameGeometry reports whether other has the same size, spacing, origin and
// direction within a small tolerance.
func (img *Image) SameGeometry(other *Image) bool {
	if len(img.size) != len(other.size) {
		return false
	}
	for i := range img.size {
		if img.size[i] != other.size[i] {
			return false
		}
	}
	return img.SamePhysicalSpace(other)
}

// SamePhysicalSpace is SameGeometry without the size comparison.
func (img *Image) SamePhysicalSpace(other *Image) bool {
	if len(img.size) != len(other.size) {
		return false
	}
	return closeSlices(img.spacing, other.spacing) &&
		closeSlices(img.origin, other.origin) &&
		closeSlices(img.direction, other.direction)
}

func closeSlices(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		scale := math.Max(1, math.Max(math.Abs(a[i]), math.Abs(b[i])))
		if math.Abs(a[i]-b[i]) > geometryTolerance*scale {
			return false
		}
	}
	return true
}

// PhysicalDistance returns the Euclidean distance in physical units between
// the centres of two pixels.
func (img *Image) PhysicalDistance(a, b []int) (float64, error) {
	if err := img.checkIndex(a); err != nil {
		return 0, err
	}
	if err := img.checkIndex(b); err != nil {
		return 0, err
	}
	pa := img.TransformIndexToPhysicalPoint(a)
	pb := img.TransformIndexToPhysicalPoint(b)
	var sum float64
	for i := range pa {
		d := pa[i] - pb[i]
		sum += d * d
	}
	return math.Sqrt(sum), nil
}
