package bridge

import (
	"fmt"

	"github.com/ironsheep/volume-tools-mcp/internal/volume"
)

// VTKImageData mirrors the fields of a VTK image data object.
type VTKImageData struct {
	// Dimensions is the number of points along x, y and z.
	Dimensions [3]int

	// Spacing between points along each axis.
	Spacing [3]float64

	// Origin is the position of point (0,0,0).
	Origin [3]float64

	// Direction is the row-major 3x3 direction matrix.
	Direction [3 * 3]float64

	// ScalarType is the storage type of the point scalars.
	ScalarType volume.PixelType

	// NumberOfComponents per point.
	NumberOfComponents int

	// Scalars holds the point data, x fastest, components interleaved.
	Scalars []float64
}

// NumberOfPoints returns the product of the dimensions.
func (v *VTKImageData) NumberOfPoints() int {
	return v.Dimensions[0] * v.Dimensions[1] * v.Dimensions[2]
}

// Extent returns the VTK whole extent {0, nx-1, 0, ny-1, 0, nz-1}.
func (v *VTKImageData) Extent() [6]int {
	return [6]int{0, v.Dimensions[0] - 1, 0, v.Dimensions[1] - 1, 0, v.Dimensions[2] - 1}
}

// ToVTK converts a 2D or 3D image to VTK image data.
//
// 2D images gain a third axis of size 1 with origin 0 and spacing 1, and
// their 2x2 direction is embedded in the upper-left of a 3x3 identity.
//
// # Errors
//
// Returns an error for images of any other dimension.
func ToVTK(img *volume.Image) (*VTKImageData, error) {
	dim := img.Dimension()
	if dim != 2 && dim != 3 {
		return nil, fmt.Errorf("conversion only supports 2D and 3D images, got %dD image", dim)
	}

	size := img.Size()
	spacing := img.Spacing()
	origin := img.Origin()
	direction := img.Direction()

	v := &VTKImageData{
		ScalarType:         img.PixelType(),
		NumberOfComponents: img.Components(),
		Scalars:            append([]float64(nil), img.Buffer()...),
	}

	if dim == 2 {
		size = append(size, 1)
		spacing = append(spacing, 1)
		origin = append(origin, 0)
		direction = []float64{
			direction[0], direction[1], 0,
			direction[2], direction[3], 0,
			0, 0, 1,
		}
	}
	copy(v.Dimensions[:], size)
	copy(v.Spacing[:], spacing)
	copy(v.Origin[:], origin)
	copy(v.Direction[:], direction)
	return v, nil
}

// FromVTK converts VTK image data to a 3D image. A zero direction matrix is
// treated as the identity.
func FromVTK(v *VTKImageData) (*volume.Image, error) {
	if v.NumberOfComponents < 1 {
		return nil, fmt.Errorf("VTK image has %d components", v.NumberOfComponents)
	}
	if len(v.Scalars) != v.NumberOfPoints()*v.NumberOfComponents {
		return nil, fmt.Errorf("VTK image has %d scalars, expected %d", len(v.Scalars), v.NumberOfPoints()*v.NumberOfComponents)
	}

	pt := v.ScalarType
	if pt == volume.Unknown {
		pt = volume.Float64
	}
	img, err := volume.NewVector(v.Dimensions[:], pt, v.NumberOfComponents)
	if err != nil {
		return nil, fmt.Errorf("failed to create image: %w", err)
	}
	if err := img.SetSpacing(v.Spacing[:]); err != nil {
		return nil, err
	}
	if err := img.SetOrigin(v.Origin[:]); err != nil {
		return nil, err
	}
	if !isZero(v.Direction[:]) {
		if err := img.SetDirection(v.Direction[:]); err != nil {
			return nil, err
		}
	}

	buf := img.Buffer()
	for i, s := range v.Scalars {
		buf[i] = pt.Normalize(s)
	}
	return img, nil
}

func isZero(values []float64) bool {
	for _, v := range values {
		if v != 0 {
			return false
		}
	}
	return true
}
