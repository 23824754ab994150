// Package filter holds image-to-image operations and decorators that lift
// 2D operations to higher dimensional images.
package filter

import (
	"fmt"

	"github.com/ironsheep/volume-tools-mcp/internal/volume"
)

// Func is an image-to-image operation. Extra parameters are bound by
// closure.
type Func func(img *volume.Image) (*volume.Image, error)

const sliceDim = 2

// SliceBySlice lifts f to images of any dimension.
//
// Images of dimension 2 or less are handed to f directly and f's result is
// returned. For higher dimensions f runs on every 2D slice (x and y kept,
// every combination of the trailing indices, last axis fastest) and each
// result is pasted in place into img, which is then returned. f must return
// an image of the slice's size, pixel type and component count.
func SliceBySlice(f Func) Func {
	return func(img *volume.Image) (*volume.Image, error) {
		dim := img.Dimension()
		if dim <= sliceDim {
			return f(img)
		}

		size := img.Size()
		extractSize := append([]int(nil), size...)
		for i := sliceDim; i < dim; i++ {
			extractSize[i] = 0
		}
		index := make([]int, dim)

		for {
			slice, err := img.Extract(index, extractSize)
			if err != nil {
				return nil, fmt.Errorf("failed to extract slice %v: %w", index[sliceDim:], err)
			}
			result, err := f(slice)
			if err != nil {
				return nil, fmt.Errorf("slice %v: %w", index[sliceDim:], err)
			}
			if result.Dimension() != sliceDim || result.Width() != size[0] || result.Height() != size[1] {
				return nil, fmt.Errorf("%w: slice function returned size %v, expected [%d %d]",
					volume.ErrDimensionMismatch, result.Size(), size[0], size[1])
			}
			if err := img.Paste(result, index); err != nil {
				return nil, fmt.Errorf("failed to paste slice %v: %w", index[sliceDim:], err)
			}

			if !nextTrailing(index, size) {
				return img, nil
			}
		}
	}
}

// nextTrailing advances index over the axes from sliceDim on, last axis
// fastest. It reports false after the final combination.
func nextTrailing(index, size []int) bool {
	for i := len(index) - 1; i >= sliceDim; i-- {
		index[i]++
		if index[i] < size[i] {
			return true
		}
		index[i] = 0
	}
	return false
}
