package volume

import (
	"crypto/sha1"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
)

// Image is an N-dimensional image with physical geometry.
//
// Create images with New or NewVector; the zero value is not usable.
type Image struct {
	size       []int
	strides    []int
	spacing    []float64
	origin     []float64
	direction  []float64
	inverse    []float64
	pixelType  PixelType
	components int
	buffer     []float64
}

// New creates a scalar image of the given size filled with zeros, with unit
// spacing, zero origin and identity direction.
func New(size []int, pt PixelType) (*Image, error) {
	return NewVector(size, pt, 1)
}

// NewVector creates an image with the given number of components per pixel.
//
// # Errors
//
//   - ErrInvalidArgument if size is empty, any extent is < 1 or components < 1
//   - ErrPixelType if pt is not a known pixel type
func NewVector(size []int, pt PixelType, components int) (*Image, error) {
	if len(size) == 0 {
		return nil, fmt.Errorf("%w: image needs at least one dimension", ErrInvalidArgument)
	}
	if !pt.Valid() {
		return nil, fmt.Errorf("%w: %v", ErrPixelType, pt)
	}
	if components < 1 {
		return nil, fmt.Errorf("%w: components must be >= 1, got %d", ErrInvalidArgument, components)
	}
	n := 1
	for i, s := range size {
		if s < 1 {
			return nil, fmt.Errorf("%w: size[%d] = %d", ErrInvalidArgument, i, s)
		}
		n *= s
	}

	dim := len(size)
	img := &Image{
		size:       append([]int(nil), size...),
		strides:    make([]int, dim),
		spacing:    make([]float64, dim),
		origin:     make([]float64, dim),
		direction:  identity(dim),
		inverse:    identity(dim),
		pixelType:  pt,
		components: components,
		buffer:     make([]float64, n*components),
	}
	stride := 1
	for i := range size {
		img.strides[i] = stride
		stride *= size[i]
		img.spacing[i] = 1
	}
	return img, nil
}

func identity(dim int) []float64 {
	m := make([]float64, dim*dim)
	for i := 0; i < dim; i++ {
		m[i*dim+i] = 1
	}
	return m
}

// Dimension returns the number of axes.
func (img *Image) Dimension() int { return len(img.size) }

// Size returns a copy of the image extent along each axis.
func (img *Image) Size() []int { return append([]int(nil), img.size...) }

// Width is the extent along x.
func (img *Image) Width() int { return img.size[0] }

// Height is the extent along y, or 1 for 1-D images.
func (img *Image) Height() int {
	if len(img.size) < 2 {
		return 1
	}
	return img.size[1]
}

// PixelType returns the component storage type.
func (img *Image) PixelType() PixelType { return img.pixelType }

// Components returns the number of components per pixel.
func (img *Image) Components() int { return img.components }

// NumberOfPixels returns the product of the size.
func (img *Image) NumberOfPixels() int { return len(img.buffer) / img.components }

// Buffer exposes the pixel buffer. Writes through it bypass normalisation,
// so callers that write must store values already valid for PixelType.
func (img *Image) Buffer() []float64 { return img.buffer }

// Clone returns a deep copy of the image.
func (img *Image) Clone() *Image {
	out := &Image{
		size:       append([]int(nil), img.size...),
		strides:    append([]int(nil), img.strides...),
		spacing:    append([]float64(nil), img.spacing...),
		origin:     append([]float64(nil), img.origin...),
		direction:  append([]float64(nil), img.direction...),
		inverse:    append([]float64(nil), img.inverse...),
		pixelType:  img.pixelType,
		components: img.components,
		buffer:     append([]float64(nil), img.buffer...),
	}
	return out
}

// NewLike creates a zero image with the same size, geometry and component
// count as img but the given pixel type. Unknown keeps img's pixel type.
func (img *Image) NewLike(pt PixelType) *Image {
	if pt == Unknown {
		pt = img.pixelType
	}
	out := img.Clone()
	out.pixelType = pt
	for i := range out.buffer {
		out.buffer[i] = 0
	}
	return out
}

// Offset returns the buffer position of the first component of index.
// The index is not bounds checked.
func (img *Image) Offset(index []int) int {
	off := 0
	for i, v := range index {
		off += v * img.strides[i]
	}
	return off * img.components
}

// Contains reports whether index lies inside the image.
func (img *Image) Contains(index []int) bool {
	if len(index) != len(img.size) {
		return false
	}
	for i, v := range index {
		if v < 0 || v >= img.size[i] {
			return false
		}
	}
	return true
}

func (img *Image) checkIndex(index []int) error {
	if len(index) != len(img.size) {
		return fmt.Errorf("%w: index has %d dimensions, image has %d", ErrDimensionMismatch, len(index), len(img.size))
	}
	if !img.Contains(index) {
		return fmt.Errorf("%w: index %v outside size %v", ErrOutOfBounds, index, img.size)
	}
	return nil
}

// At returns the first component of the pixel at index.
func (img *Image) At(index ...int) (float64, error) {
	if err := img.checkIndex(index); err != nil {
		return 0, err
	}
	return img.buffer[img.Offset(index)], nil
}

// Set writes v to every component of the pixel at index.
func (img *Image) Set(v float64, index ...int) error {
	if err := img.checkIndex(index); err != nil {
		return err
	}
	off := img.Offset(index)
	v = img.pixelType.Normalize(v)
	for c := 0; c < img.components; c++ {
		img.buffer[off+c] = v
	}
	return nil
}

// Pixel returns a copy of all components of the pixel at index.
func (img *Image) Pixel(index ...int) ([]float64, error) {
	if err := img.checkIndex(index); err != nil {
		return nil, err
	}
	off := img.Offset(index)
	return append([]float64(nil), img.buffer[off:off+img.components]...), nil
}

// SetPixel writes all components of the pixel at index.
func (img *Image) SetPixel(values []float64, index ...int) error {
	if len(values) != img.components {
		return fmt.Errorf("%w: got %d components, image has %d", ErrDimensionMismatch, len(values), img.components)
	}
	if err := img.checkIndex(index); err != nil {
		return err
	}
	off := img.Offset(index)
	for c, v := range values {
		img.buffer[off+c] = img.pixelType.Normalize(v)
	}
	return nil
}

// Fill sets every component of every pixel to v.
func (img *Image) Fill(v float64) {
	v = img.pixelType.Normalize(v)
	for i := range img.buffer {
		img.buffer[i] = v
	}
}

// Hash returns a SHA-1 digest of the pixel type, size, component count and
// pixel values. Geometry is not included, so two images with equal pixels
// but different spacing hash identically.
func (img *Image) Hash() string {
	h := sha1.New()
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(img.pixelType))
	h.Write(b[:])
	binary.LittleEndian.PutUint64(b[:], uint64(img.components))
	h.Write(b[:])
	for _, s := range img.size {
		binary.LittleEndian.PutUint64(b[:], uint64(s))
		h.Write(b[:])
	}
	for _, v := range img.buffer {
		binary.LittleEndian.PutUint64(b[:], math.Float64bits(v))
		h.Write(b[:])
	}
	return hex.EncodeToString(h.Sum(nil))
}

// ForEachIndex calls fn for every index of an image with the given size, x
// fastest. The slice passed to fn is reused between calls.
func ForEachIndex(size []int, fn func(index []int)) {
	for _, s := range size {
		if s <= 0 {
			return
		}
	}
	index := make([]int, len(size))
	for {
		fn(index)
		i := 0
		for ; i < len(size); i++ {
			index[i]++
			if index[i] < size[i] {
				break
			}
			index[i] = 0
		}
		if i == len(size) {
			return
		}
	}
}
