package volume

import "fmt"

// Transform maps physical points from an output space to an input space.
// Resampling evaluates the input image at TransformPoint(p) for every output
// point p.
type Transform interface {
	// Dimension is the dimension of the points the transform accepts.
	Dimension() int

	// TransformPoint maps a physical point.
	TransformPoint(p []float64) []float64

	// TransformVector maps a displacement; translations do not affect it.
	TransformVector(v []float64) []float64

	// Translation returns the translational part of the transform.
	Translation() []float64

	// WithTranslation returns a copy of the same kind of transform with its
	// translation replaced.
	WithTranslation(t []float64) (Transform, error)
}

// IdentityTransform maps every point to itself.
type IdentityTransform struct {
	Dim int
}

func (t IdentityTransform) Dimension() int { return t.Dim }

func (t IdentityTransform) TransformPoint(p []float64) []float64 {
	return append([]float64(nil), p...)
}

func (t IdentityTransform) TransformVector(v []float64) []float64 {
	return append([]float64(nil), v...)
}

func (t IdentityTransform) Translation() []float64 { return make([]float64, t.Dim) }

// WithTranslation promotes the identity to a TranslationTransform.
func (t IdentityTransform) WithTranslation(offset []float64) (Transform, error) {
	return NewTranslationTransform(offset)
}

// TranslationTransform adds a constant offset: T(p) = p + Offset.
type TranslationTransform struct {
	Offset []float64 `json:"offset"`
}

// NewTranslationTransform creates a translation by offset.
func NewTranslationTransform(offset []float64) (*TranslationTransform, error) {
	if len(offset) == 0 {
		return nil, fmt.Errorf("%w: empty translation", ErrInvalidArgument)
	}
	return &TranslationTransform{Offset: append([]float64(nil), offset...)}, nil
}

func (t *TranslationTransform) Dimension() int { return len(t.Offset) }

func (t *TranslationTransform) TransformPoint(p []float64) []float64 {
	out := make([]float64, len(p))
	for i := range p {
		out[i] = p[i] + t.Offset[i]
	}
	return out
}

func (t *TranslationTransform) TransformVector(v []float64) []float64 {
	return append([]float64(nil), v...)
}

func (t *TranslationTransform) Translation() []float64 {
	return append([]float64(nil), t.Offset...)
}

func (t *TranslationTransform) WithTranslation(offset []float64) (Transform, error) {
	if len(offset) != len(t.Offset) {
		return nil, fmt.Errorf("%w: translation has %d entries, transform is %dD", ErrDimensionMismatch, len(offset), len(t.Offset))
	}
	return NewTranslationTransform(offset)
}

// AffineTransform is T(p) = Matrix*(p - Center) + Center + Offset, with a
// row-major Matrix.
type AffineTransform struct {
	Matrix []float64 `json:"matrix"`
	Center []float64 `json:"center"`
	Offset []float64 `json:"translation"`
}

// NewAffineTransform validates the shapes of matrix, center and offset.
// A nil center or offset means zero.
func NewAffineTransform(matrix, center, offset []float64) (*AffineTransform, error) {
	dim := len(center)
	if dim == 0 {
		dim = len(offset)
	}
	if dim == 0 || len(matrix) != dim*dim {
		return nil, fmt.Errorf("%w: affine matrix has %d entries for a %dD transform", ErrDimensionMismatch, len(matrix), dim)
	}
	if center == nil {
		center = make([]float64, dim)
	}
	if offset == nil {
		offset = make([]float64, dim)
	}
	if len(center) != dim || len(offset) != dim {
		return nil, fmt.Errorf("%w: affine center/translation must have %d entries", ErrDimensionMismatch, dim)
	}
	return &AffineTransform{
		Matrix: append([]float64(nil), matrix...),
		Center: append([]float64(nil), center...),
		Offset: append([]float64(nil), offset...),
	}, nil
}

func (t *AffineTransform) Dimension() int { return len(t.Center) }

func (t *AffineTransform) TransformPoint(p []float64) []float64 {
	dim := len(t.Center)
	out := make([]float64, dim)
	for r := 0; r < dim; r++ {
		sum := t.Center[r] + t.Offset[r]
		for c := 0; c < dim; c++ {
			sum += t.Matrix[r*dim+c] * (p[c] - t.Center[c])
		}
		out[r] = sum
	}
	return out
}

func (t *AffineTransform) TransformVector(v []float64) []float64 {
	dim := len(t.Center)
	out := make([]float64, dim)
	for r := 0; r < dim; r++ {
		var sum float64
		for c := 0; c < dim; c++ {
			sum += t.Matrix[r*dim+c] * v[c]
		}
		out[r] = sum
	}
	return out
}

func (t *AffineTransform) Translation() []float64 {
	return append([]float64(nil), t.Offset...)
}

func (t *AffineTransform) WithTranslation(offset []float64) (Transform, error) {
	return NewAffineTransform(t.Matrix, t.Center, offset)
}
