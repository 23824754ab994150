// Package volumeio reads and writes volume images.
//
// Supported formats, chosen by file extension:
//
//	.mha            MetaImage, header and pixels in one file
//	.mhd            MetaImage header with pixels in a separate file
//	.vti            VTK XML ImageData (ASCII data arrays)
//	.png .jpg .jpeg .gif .tif .tiff .bmp   2D rasters
//
// MetaImage files are read in little-endian, uncompressed form. They support
// streaming: ReadRegion reads only the bytes of the requested region instead
// of the whole pixel block. Other formats fall back to a full read followed by
// an extract.
package volumeio
