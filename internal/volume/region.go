package volume

import "fmt"

// Extract copies a region out of the image.
//
// index and size have one entry per axis. A size entry of 0 collapses that
// axis: the pixel row at index[i] is taken and the axis is dropped from the
// output, so extracting {w, h, 0} from a 3D volume yields a 2D slice.
//
// The output keeps the physical placement of the region: its origin is the
// physical point of index, spacing is the kept axes' spacing and direction is
// the sub-matrix of the kept axes (identity when that sub-matrix is singular).
//
// # Errors
//
//   - ErrDimensionMismatch if index or size has the wrong length
//   - ErrOutOfBounds if the region leaves the image
//   - ErrInvalidArgument if every axis is collapsed or a size is negative
func (img *Image) Extract(index, size []int) (*Image, error) {
	dim := len(img.size)
	if len(index) != dim || len(size) != dim {
		return nil, fmt.Errorf("%w: extract index/size need %d entries", ErrDimensionMismatch, dim)
	}

	var kept []int
	outSize := make([]int, 0, dim)
	region := make([]int, dim)
	for i := 0; i < dim; i++ {
		if size[i] < 0 {
			return nil, fmt.Errorf("%w: size[%d] = %d", ErrInvalidArgument, i, size[i])
		}
		region[i] = size[i]
		if size[i] == 0 {
			region[i] = 1
		} else {
			kept = append(kept, i)
			outSize = append(outSize, size[i])
		}
		if index[i] < 0 || index[i]+region[i] > img.size[i] {
			return nil, fmt.Errorf("%w: extract region index %v size %v exceeds image size %v", ErrOutOfBounds, index, size, img.size)
		}
	}
	if len(kept) == 0 {
		return nil, fmt.Errorf("%w: extract collapses every axis", ErrInvalidArgument)
	}

	out, err := NewVector(outSize, img.pixelType, img.components)
	if err != nil {
		return nil, err
	}

	outDim := len(kept)
	spacing := make([]float64, outDim)
	direction := make([]float64, outDim*outDim)
	for r, ar := range kept {
		spacing[r] = img.spacing[ar]
		for c, ac := range kept {
			direction[r*outDim+c] = img.direction[ar*dim+ac]
		}
	}
	if err := out.SetSpacing(spacing); err != nil {
		return nil, err
	}
	if err := out.SetDirection(direction); err != nil {
		_ = out.SetDirection(identity(outDim))
	}
	physical := img.TransformIndexToPhysicalPoint(index)
	origin := make([]float64, outDim)
	for r, ar := range kept {
		origin[r] = physical[ar]
	}
	_ = out.SetOrigin(origin)

	// Copy x-runs of the region.
	src := make([]int, dim)
	runLen := region[0] * img.components
	outer := append([]int(nil), region...)
	outer[0] = 1
	pos := 0
	ForEachIndex(outer, func(rel []int) {
		for i := range src {
			src[i] = index[i] + rel[i]
		}
		off := img.Offset(src)
		copy(out.buffer[pos:pos+runLen], img.buffer[off:off+runLen])
		pos += runLen
	})
	return out, nil
}

// Paste copies src into img in place with src's index 0 placed at destIndex.
//
// src may have fewer dimensions than img; its axes then map onto img's
// leading axes and the trailing entries of destIndex select where along the
// remaining axes the data lands. Pixel type and component count must match.
func (img *Image) Paste(src *Image, destIndex []int) error {
	dim := len(img.size)
	sdim := len(src.size)
	if len(destIndex) != dim || sdim > dim {
		return fmt.Errorf("%w: cannot paste %dD image at %v into %dD image", ErrDimensionMismatch, sdim, destIndex, dim)
	}
	if src.pixelType != img.pixelType || src.components != img.components {
		return fmt.Errorf("%w: paste source is %s x%d, destination is %s x%d",
			ErrPixelType, src.pixelType, src.components, img.pixelType, img.components)
	}
	for i := 0; i < dim; i++ {
		extent := 1
		if i < sdim {
			extent = src.size[i]
		}
		if destIndex[i] < 0 || destIndex[i]+extent > img.size[i] {
			return fmt.Errorf("%w: paste of size %v at %v exceeds image size %v", ErrOutOfBounds, src.size, destIndex, img.size)
		}
	}

	dst := append([]int(nil), destIndex...)
	runLen := src.size[0] * img.components
	outer := append([]int(nil), src.size...)
	outer[0] = 1
	pos := 0
	ForEachIndex(outer, func(rel []int) {
		for i := 0; i < sdim; i++ {
			dst[i] = destIndex[i] + rel[i]
		}
		off := img.Offset(dst)
		copy(img.buffer[off:off+runLen], src.buffer[pos:pos+runLen])
		pos += runLen
	})
	return nil
}
