package volume

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

var (
	// ErrDimensionMismatch is returned when two images or an image and an
	// argument disagree on the number of dimensions or the size.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrOutOfBounds is returned when an index or region falls outside an image.
	ErrOutOfBounds = errors.New("out of bounds")

	// ErrPixelType is returned for an unsupported or mismatched pixel type.
	ErrPixelType = errors.New("unsupported pixel type")

	// ErrInvalidArgument is returned for malformed parameters.
	ErrInvalidArgument = errors.New("invalid argument")
)

// PixelType identifies the storage type of each pixel component.
//
// The zero value is Unknown, which option structs use to mean
// "same as the input image".
type PixelType int

const (
	Unknown PixelType = iota
	UInt8
	Int8
	UInt16
	Int16
	UInt32
	Int32
	Float32
	Float64
)

var pixelTypeNames = map[PixelType]string{
	UInt8:   "uint8",
	Int8:    "int8",
	UInt16:  "uint16",
	Int16:   "int16",
	UInt32:  "uint32",
	Int32:   "int32",
	Float32: "float32",
	Float64: "float64",
}

func (p PixelType) String() string {
	if name, ok := pixelTypeNames[p]; ok {
		return name
	}
	return "unknown"
}

// ParsePixelType converts a name such as "uint8" or "float32" to a PixelType.
func ParsePixelType(name string) (PixelType, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for pt, n := range pixelTypeNames {
		if n == name {
			return pt, nil
		}
	}
	return Unknown, fmt.Errorf("%w: %q", ErrPixelType, name)
}

// Valid reports whether p is one of the known pixel types.
func (p PixelType) Valid() bool {
	_, ok := pixelTypeNames[p]
	return ok
}

// IsInteger reports whether p is an integer type.
func (p PixelType) IsInteger() bool {
	return p >= UInt8 && p <= Int32
}

// Size returns the number of bytes one component occupies on disk.
func (p PixelType) Size() int {
	switch p {
	case UInt8, Int8:
		return 1
	case UInt16, Int16:
		return 2
	case UInt32, Int32, Float32:
		return 4
	case Float64:
		return 8
	}
	return 0
}

// Range returns the smallest and largest value representable by p.
func (p PixelType) Range() (float64, float64) {
	switch p {
	case UInt8:
		return 0, math.MaxUint8
	case Int8:
		return math.MinInt8, math.MaxInt8
	case UInt16:
		return 0, math.MaxUint16
	case Int16:
		return math.MinInt16, math.MaxInt16
	case UInt32:
		return 0, math.MaxUint32
	case Int32:
		return math.MinInt32, math.MaxInt32
	case Float32:
		return -math.MaxFloat32, math.MaxFloat32
	}
	return -math.MaxFloat64, math.MaxFloat64
}

// Normalize converts v to the nearest value storable in p.
//
// Integer types truncate toward zero and saturate at their range; NaN becomes
// zero. Float32 rounds to float32 precision. Float64 is returned unchanged.
func (p PixelType) Normalize(v float64) float64 {
	switch p {
	case Float64, Unknown:
		return v
	case Float32:
		return float64(float32(v))
	}
	if math.IsNaN(v) {
		return 0
	}
	lo, hi := p.Range()
	v = math.Trunc(v)
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
