// Package volume provides the N-dimensional image model shared by every tool
// in this module.
//
// An Image is a regular grid of pixels placed in physical space. Besides the
// pixel buffer it carries the metadata medical image formats rely on:
//   - Size: number of pixels along each axis
//   - Spacing: physical distance between neighbouring pixel centres
//   - Origin: physical position of the pixel with index 0
//   - Direction: direction cosine matrix (row-major, D x D)
//
// # Index Convention
//
// Indexes are ordered x first: index[0] is the column, index[1] the row,
// index[2] the slice and so on. The pixel buffer stores x fastest and, for
// vector images, the components of one pixel next to each other.
//
// The physical point of an index is
//
//	p = Origin + Direction * (index .* Spacing)
//
// # Pixel Types
//
// Values are held as float64 but are always normalised to the image's
// PixelType when written: integer types truncate toward zero and saturate at
// the type's range, Float32 values are rounded to float32 precision.
//
// # Thread Safety
//
// Image is not safe for concurrent mutation. Concurrent reads are fine, and
// the resampling code relies on disjoint concurrent writes to distinct pixels.
// Cache is safe for concurrent use.
package volume
