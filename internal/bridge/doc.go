// Package bridge converts volume images to and from the data models of
// visualization and GUI code.
//
// Two families of conversion are provided:
//
//   - VTK image data (ToVTK / FromVTK): the structured-points model used by
//     VTK-based viewers. VTK images are always three dimensional, so 2D
//     images are promoted with a unit-thick third axis.
//   - Go raster images (ToGoImage / FromGoImage): the image.Image model used by
//     GUI toolkits and codecs. Only 2D grayscale or three channel RGB data can
//     be represented; high dynamic range scalar images are linearly rescaled
//     to [0,255].
//
// Raster conversions treat three channel data as RGB. There is no notion of
// colour space in a volume image, so HSV or other encodings will display
// incorrectly.
package bridge
