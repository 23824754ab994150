package volumeio

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ironsheep/volume-tools-mcp/internal/logging"
	"github.com/ironsheep/volume-tools-mcp/internal/volume"
)

// ErrUnsupportedFormat is returned for unknown extensions and for format
// features this package does not implement.
var ErrUnsupportedFormat = errors.New("unsupported image format")

// Format identifies a file format.
type Format string

const (
	FormatMetaImage Format = "metaimage"
	FormatVTI       Format = "vti"
	FormatRaster    Format = "raster"
)

// DetectFormat returns the format implied by path's extension.
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mha", ".mhd":
		return FormatMetaImage, nil
	case ".vti":
		return FormatVTI, nil
	case ".png", ".jpg", ".jpeg", ".gif", ".tif", ".tiff", ".bmp":
		return FormatRaster, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
}

// Info describes an image file without its pixels.
type Info struct {
	Path       string           `json:"path"`
	Format     Format           `json:"format"`
	Size       []int            `json:"size"`
	Spacing    []float64        `json:"spacing"`
	Origin     []float64        `json:"origin"`
	Direction  []float64        `json:"direction"`
	PixelType  volume.PixelType `json:"-"`
	PixelName  string           `json:"pixel_type"`
	Components int              `json:"components"`

	// Streamable is true when ReadRegion can read a region without loading
	// the whole image.
	Streamable bool `json:"streamable"`
}

// Dimension returns the number of axes.
func (i *Info) Dimension() int { return len(i.Size) }

// ReadImageInformation reads only the header of an image file.
//
// For formats without a separate header the whole file is decoded and the
// pixels discarded.
func ReadImageInformation(path string) (*Info, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}
	if format == FormatMetaImage {
		h, err := readMetaHeader(path)
		if err != nil {
			return nil, err
		}
		return h.info(path), nil
	}

	img, err := ReadImage(path)
	if err != nil {
		return nil, err
	}
	return infoFromImage(path, format, img), nil
}

func infoFromImage(path string, format Format, img *volume.Image) *Info {
	return &Info{
		Path:       path,
		Format:     format,
		Size:       img.Size(),
		Spacing:    img.Spacing(),
		Origin:     img.Origin(),
		Direction:  img.Direction(),
		PixelType:  img.PixelType(),
		PixelName:  img.PixelType().String(),
		Components: img.Components(),
	}
}

// ReadImage reads a whole image file.
func ReadImage(path string) (*volume.Image, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}
	switch format {
	case FormatMetaImage:
		return readMetaImage(path)
	case FormatVTI:
		return readVTI(path)
	default:
		return readRaster(path)
	}
}

// ReadImageAs reads an image and casts it to pt.
func ReadImageAs(path string, pt volume.PixelType) (*volume.Image, error) {
	img, err := ReadImage(path)
	if err != nil {
		return nil, err
	}
	if img.PixelType() == pt {
		return img, nil
	}
	return img.Cast(pt)
}

// ReadRegion reads the region [index, index+size) of an image file. Every
// size entry must be at least 1; the output keeps all axes and the
// physical placement of the region.
func ReadRegion(path string, index, size []int) (*volume.Image, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}
	for i, s := range size {
		if s < 1 {
			return nil, fmt.Errorf("%w: region size[%d] = %d", volume.ErrInvalidArgument, i, s)
		}
	}
	if format == FormatMetaImage {
		return readMetaRegion(path, index, size)
	}

	logging.Debugf("%s does not support streaming, reading the whole image for region %v+%v", path, index, size)
	img, err := ReadImage(path)
	if err != nil {
		return nil, err
	}
	return img.Extract(index, size)
}

// WriteImage writes img to path in the format implied by its extension.
func WriteImage(img *volume.Image, path string) error {
	format, err := DetectFormat(path)
	if err != nil {
		return err
	}
	switch format {
	case FormatMetaImage:
		return writeMetaImage(img, path)
	case FormatVTI:
		return writeVTI(img, path)
	default:
		return writeRaster(img, path)
	}
}
