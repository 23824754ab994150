package inspect

import (
	"fmt"
	"math"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/ironsheep/volume-tools-mcp/internal/volume"
)

// RGBColor is an 8-bit RGB triplet.
type RGBColor struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// HSLColor holds hue in degrees and saturation and lightness in percent.
type HSLColor struct {
	H int `json:"h"`
	S int `json:"s"`
	L int `json:"l"`
}

// ColorResult is a voxel of an 8-bit image seen as a colour.
type ColorResult struct {
	Hex string   `json:"hex"`
	RGB RGBColor `json:"rgb"`
	HSL HSLColor `json:"hsl"`
}

// SampleResult is the content of one voxel.
type SampleResult struct {
	Label    string       `json:"label,omitempty"`
	Index    []int        `json:"index"`
	Physical []float64    `json:"physical_point"`
	Values   []float64    `json:"values"`
	Color    *ColorResult `json:"color,omitempty"`
}

// LabeledIndex is a voxel index with an optional name for the result.
type LabeledIndex struct {
	Index []int  `json:"index"`
	Label string `json:"label,omitempty"`
}

// MultiSampleResult holds samples in request order.
type MultiSampleResult struct {
	Samples []SampleResult `json:"samples"`
}

// Sample reads the voxel at index.
func Sample(img *volume.Image, index []int) (*SampleResult, error) {
	values, err := img.Pixel(index...)
	if err != nil {
		return nil, err
	}
	res := &SampleResult{
		Index:    append([]int(nil), index...),
		Physical: img.TransformIndexToPhysicalPoint(index),
		Values:   values,
	}
	if img.PixelType() == volume.UInt8 {
		switch len(values) {
		case 1:
			res.Color = colorOf(values[0], values[0], values[0])
		case 3:
			res.Color = colorOf(values[0], values[1], values[2])
		}
	}
	return res, nil
}

// SampleMulti samples every point; any out of range point fails the call.
func SampleMulti(img *volume.Image, points []LabeledIndex) (*MultiSampleResult, error) {
	results := make([]SampleResult, 0, len(points))
	for _, p := range points {
		s, err := Sample(img, p.Index)
		if err != nil {
			return nil, fmt.Errorf("failed to sample point %v: %w", p.Index, err)
		}
		s.Label = p.Label
		results = append(results, *s)
	}
	return &MultiSampleResult{Samples: results}, nil
}

func colorOf(r, g, b float64) *ColorResult {
	col := colorful.Color{R: r / 255, G: g / 255, B: b / 255}
	h, s, l := col.Hsl()
	if math.IsNaN(h) {
		h = 0
	}
	r8, g8, b8 := col.RGB255()
	return &ColorResult{
		Hex: fmt.Sprintf("#%02X%02X%02X", r8, g8, b8),
		RGB: RGBColor{R: r8, G: g8, B: b8},
		HSL: HSLColor{
			H: int(math.Round(h)) % 360,
			S: int(math.Round(s * 100)),
			L: int(math.Round(l * 100)),
		},
	}
}
