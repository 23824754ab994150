// Package chunked exposes an image file as a grid of blocks that are read
// on demand and can be loaded concurrently.
//
// Axes are in x-first order. A vector image gains a trailing component axis
// which is never split.
package chunked

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/ironsheep/volume-tools-mcp/internal/logging"
	"github.com/ironsheep/volume-tools-mcp/internal/volume"
	"github.com/ironsheep/volume-tools-mcp/internal/volumeio"
)

// Whole requests a single block along an axis.
const Whole = -1

// Array is a lazily read image file split into blocks.
type Array struct {
	// Shape is the image size plus the component count for vector images.
	Shape []int

	// Chunks holds the block lengths along every axis of Shape.
	Chunks [][]int

	// Workers bounds Compute's concurrent reads; <= 0 means runtime.NumCPU().
	Workers int

	info *volumeio.Info
}

// FromFile reads only the header of path and plans its blocks.
//
// chunks holds one block length per spatial axis, Whole for the full axis;
// nil reads the image as one block. For vector images a trailing entry for
// the component axis may be given and must cover all components.
func FromFile(path string, chunks []int) (*Array, error) {
	info, err := volumeio.ReadImageInformation(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image information: %w", err)
	}

	dim := info.Dimension()
	shape := append([]int(nil), info.Size...)
	vector := info.Components != 1
	if vector {
		shape = append(shape, info.Components)
	}

	if chunks == nil {
		chunks = make([]int, dim)
		for i := range chunks {
			chunks[i] = Whole
		}
	}
	if vector && len(chunks) == dim {
		chunks = append(append([]int(nil), chunks...), Whole)
	}
	if len(chunks) != len(shape) {
		return nil, fmt.Errorf("%w: %d chunk sizes for an array of shape %v", volume.ErrDimensionMismatch, len(chunks), shape)
	}

	a := &Array{Shape: shape, Chunks: make([][]int, len(shape)), info: info}
	for axis, c := range chunks {
		if c == Whole {
			c = shape[axis]
		}
		if c < 1 {
			return nil, fmt.Errorf("%w: chunk size %d on axis %d", volume.ErrInvalidArgument, chunks[axis], axis)
		}
		if vector && axis == dim && c < shape[axis] {
			return nil, fmt.Errorf("%w: the component axis cannot be split", volume.ErrInvalidArgument)
		}
		a.Chunks[axis] = blockLengths(shape[axis], c)
	}
	if !info.Streamable && a.blockCount() > 1 {
		logging.Debugf("%s is not streamable, every block reads the whole file", path)
	}
	return a, nil
}

// blockLengths splits n into blocks of c with a short last block.
func blockLengths(n, c int) []int {
	var out []int
	for n > 0 {
		l := c
		if n < c {
			l = n
		}
		out = append(out, l)
		n -= l
	}
	return out
}

// Info returns the header the array was planned from.
func (a *Array) Info() *volumeio.Info { return a.info }

// NumBlocks returns the number of blocks along every axis of Shape.
func (a *Array) NumBlocks() []int {
	n := make([]int, len(a.Chunks))
	for i, c := range a.Chunks {
		n[i] = len(c)
	}
	return n
}

func (a *Array) blockCount() int {
	total := 1
	for _, c := range a.Chunks {
		total *= len(c)
	}
	return total
}

// region returns the spatial index and size of a block.
func (a *Array) region(blockIndex []int) (index, size []int, err error) {
	dim := a.info.Dimension()
	if len(blockIndex) != dim && len(blockIndex) != len(a.Shape) {
		return nil, nil, fmt.Errorf("%w: block index %v for an array with %d axes", volume.ErrDimensionMismatch, blockIndex, len(a.Shape))
	}
	index = make([]int, dim)
	size = make([]int, dim)
	for axis, b := range blockIndex {
		if b < 0 || b >= len(a.Chunks[axis]) {
			return nil, nil, fmt.Errorf("%w: block %d on axis %d, have %d", volume.ErrOutOfBounds, b, axis, len(a.Chunks[axis]))
		}
		if axis >= dim {
			continue
		}
		for _, l := range a.Chunks[axis][:b] {
			index[axis] += l
		}
		size[axis] = a.Chunks[axis][b]
	}
	return index, size, nil
}

// Block reads one block from the file.
func (a *Array) Block(ctx context.Context, blockIndex []int) (*volume.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	index, size, err := a.region(blockIndex)
	if err != nil {
		return nil, err
	}
	img, err := volumeio.ReadRegion(a.info.Path, index, size)
	if err != nil {
		return nil, fmt.Errorf("failed to read block %v: %w", blockIndex, err)
	}
	return img, nil
}

// Compute reads every block concurrently and assembles the full image.
func (a *Array) Compute(ctx context.Context) (*volume.Image, error) {
	out, err := volume.NewVector(a.info.Size, a.info.PixelType, a.info.Components)
	if err != nil {
		return nil, err
	}
	if err := out.SetSpacing(a.info.Spacing); err != nil {
		return nil, err
	}
	if err := out.SetOrigin(a.info.Origin); err != nil {
		return nil, err
	}
	if err := out.SetDirection(a.info.Direction); err != nil {
		return nil, err
	}

	workers := a.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	spatial := a.NumBlocks()[:a.info.Dimension()]
	volume.ForEachIndex(spatial, func(b []int) {
		blockIndex := append([]int(nil), b...)
		g.Go(func() error {
			block, err := a.Block(ctx, blockIndex)
			if err != nil {
				return err
			}
			index, _, err := a.region(blockIndex)
			if err != nil {
				return err
			}
			// blocks cover disjoint regions of out
			return out.Paste(block, index)
		})
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
