// Package overlay draws annotations onto 2D images.
package overlay

import (
	"fmt"
	"strings"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/ironsheep/volume-tools-mcp/internal/logging"
	"github.com/ironsheep/volume-tools-mcp/internal/volume"
)

// BoxFormat names how the four numbers of a bounding box are read.
type BoxFormat string

const (
	// MinMax is [min_x, min_y, max_x, max_y].
	MinMax BoxFormat = "MINXY_MAXXY"
	// MinWidthHeight is [min_x, min_y, width, height].
	MinWidthHeight BoxFormat = "MINXY_WH"
	// CenterWidthHeight is [center_x, center_y, width, height].
	CenterWidthHeight BoxFormat = "CENT_WH"
	// CenterHalfWidthHeight is [center_x, center_y, width/2, height/2].
	CenterHalfWidthHeight BoxFormat = "CENT_HALFWH"
)

var validFormats = []BoxFormat{MinWidthHeight, MinMax, CenterWidthHeight, CenterHalfWidthHeight}

// Box is a bounding box in the units given by Options.Format.
type Box [4]float64

// Options configures OverlayBoundingBoxes.
type Options struct {
	// Format of the boxes; empty means MinMax.
	Format BoxFormat

	// Normalized boxes hold coordinates in [0,1], scaled by image width and
	// height.
	Normalized bool

	// Colors holds one RGB triplet per box, flattened. Empty draws every box
	// in red. Boxes without a triplet are not drawn.
	Colors []uint8

	// HalfLineWidth thickens lines to 1+2*HalfLineWidth pixels.
	HalfLineWidth int
}

// Red is the default box colour.
var Red = [3]uint8{255, 0, 0}

// OverlayBoundingBoxes draws axis aligned rectangles on a copy of a 2D UInt8
// image with 1 or 3 channels; scalar images become RGB. Boxes are drawn in
// order so later boxes cover earlier ones.
//
// A box whose lines would leave the image is not drawn at all and the
// returned flag is set.
func OverlayBoundingBoxes(img *volume.Image, boxes []Box, opts Options) (*volume.Image, bool, error) {
	if img.Dimension() != 2 {
		return nil, false, fmt.Errorf("%w: expected a 2D image, got %dD", volume.ErrDimensionMismatch, img.Dimension())
	}
	if img.PixelType() != volume.UInt8 {
		return nil, false, fmt.Errorf("%w: image channels expected to have type of 8-bit unsigned integer, got (%s)", volume.ErrPixelType, img.PixelType())
	}
	n := img.Components()
	if n != 1 && n != 3 {
		return nil, false, fmt.Errorf("%w: image expected to have one or three channels, got (%d)", volume.ErrInvalidArgument, n)
	}
	if opts.HalfLineWidth < 0 {
		return nil, false, fmt.Errorf("%w: half line width parameter expected to be non-negative, got (%d)", volume.ErrInvalidArgument, opts.HalfLineWidth)
	}
	if len(opts.Colors)%3 != 0 {
		return nil, false, fmt.Errorf("%w: colors must be RGB triplets, got %d values", volume.ErrInvalidArgument, len(opts.Colors))
	}

	rects, err := toMinMax(boxes, opts, img.Width(), img.Height())
	if err != nil {
		return nil, false, err
	}

	var out *volume.Image
	if n == 3 {
		out = img.Clone()
	} else if out, err = volume.Compose(img, img, img); err != nil {
		return nil, false, err
	}

	colors := make([][3]uint8, 0, len(rects))
	if len(opts.Colors) == 0 {
		for range rects {
			colors = append(colors, Red)
		}
	} else {
		for i := 0; i+2 < len(opts.Colors); i += 3 {
			colors = append(colors, [3]uint8{opts.Colors[i], opts.Colors[i+1], opts.Colors[i+2]})
		}
	}

	c := &canvas{img: out, w: out.Width(), h: out.Height()}
	outOfBounds := false
	for i := 0; i < len(rects) && i < len(colors); i++ {
		if !c.drawBox(rects[i], colors[i], opts.HalfLineWidth) {
			logging.Warnf("bounding box %d %v does not fit in %dx%d image, skipped", i, boxes[i], c.w, c.h)
			outOfBounds = true
		}
	}
	return out, outOfBounds, nil
}

// toMinMax converts boxes to integer [min_x, min_y, max_x, max_y].
func toMinMax(boxes []Box, opts Options, width, height int) ([][4]int, error) {
	format := opts.Format
	if format == "" {
		format = MinMax
	}

	var convert func(b Box) Box
	switch format {
	case MinMax:
		convert = func(b Box) Box { return b }
	case MinWidthHeight:
		convert = func(b Box) Box { return Box{b[0], b[1], b[0] + b[2], b[1] + b[3]} }
	case CenterWidthHeight:
		convert = func(b Box) Box {
			return Box{b[0] - b[2]/2, b[1] - b[3]/2, b[0] + b[2]/2, b[1] + b[3]/2}
		}
	case CenterHalfWidthHeight:
		convert = func(b Box) Box { return Box{b[0] - b[2], b[1] - b[3], b[0] + b[2], b[1] + b[3]} }
	default:
		names := make([]string, len(validFormats))
		for i, f := range validFormats {
			names[i] = string(f)
		}
		return nil, fmt.Errorf("%w: unknown bounding box format (%s), valid values are [%s]",
			volume.ErrInvalidArgument, format, strings.Join(names, ", "))
	}

	out := make([][4]int, len(boxes))
	for i, b := range boxes {
		m := convert(b)
		if opts.Normalized {
			m[0] *= float64(width)
			m[1] *= float64(height)
			m[2] *= float64(width)
			m[3] *= float64(height)
		}
		for j, v := range m {
			out[i][j] = int(v + 0.5)
		}
	}
	return out, nil
}

type canvas struct {
	img  *volume.Image
	w, h int
}

// drawBox draws the four bars of r. It draws nothing and reports false when
// any bar is empty or leaves the image.
func (c *canvas) drawBox(r [4]int, color [3]uint8, half int) bool {
	x1, y1, x2, y2 := r[0], r[1], r[2], r[3]
	bars := [4][4]int{
		{x1 - half, y1 - half, x1 + half + 1, y2 + half + 1},
		{x2 - half, y1 - half, x2 + half + 1, y2 + half + 1},
		{x1, y1 - half, x2, y1 + half + 1},
		{x1, y2 - half, x2, y2 + half + 1},
	}
	for _, b := range bars {
		if b[0] < 0 || b[1] < 0 || b[2] > c.w || b[3] > c.h || b[2] <= b[0] || b[3] <= b[1] {
			return false
		}
	}
	for _, b := range bars {
		c.fill(b, color)
	}
	return true
}

// fill paints the half open rectangle [x0,x1)x[y0,y1).
func (c *canvas) fill(b [4]int, color [3]uint8) {
	buf := c.img.Buffer()
	for y := b[1]; y < b[3]; y++ {
		for x := b[0]; x < b[2]; x++ {
			off := (y*c.w + x) * 3
			buf[off] = float64(color[0])
			buf[off+1] = float64(color[1])
			buf[off+2] = float64(color[2])
		}
	}
}

// ParseColors converts colour strings such as "#ff8800" into the flat
// triplet form of Options.Colors.
func ParseColors(specs []string) ([]uint8, error) {
	flat := make([]uint8, 0, 3*len(specs))
	for _, s := range specs {
		col, err := colorful.Hex(normalizeHex(s))
		if err != nil {
			return nil, fmt.Errorf("%w: invalid color %q: %v", volume.ErrInvalidArgument, s, err)
		}
		r, g, b := col.Clamped().RGB255()
		flat = append(flat, r, g, b)
	}
	return flat, nil
}

// FlatColors converts colours to the flat triplet form of Options.Colors.
func FlatColors(colors ...colorful.Color) []uint8 {
	flat := make([]uint8, 0, 3*len(colors))
	for _, col := range colors {
		r, g, b := col.Clamped().RGB255()
		flat = append(flat, r, g, b)
	}
	return flat
}

// Palette returns n well separated colours for labelling boxes by class.
func Palette(n int) []uint8 {
	if n <= 0 {
		return nil
	}
	colors := make([]colorful.Color, n)
	for i := range colors {
		colors[i] = colorful.Hsv(float64(i)*360/float64(n), 1, 1)
	}
	return FlatColors(colors...)
}

func normalizeHex(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "#") {
		s = "#" + s
	}
	return s
}
