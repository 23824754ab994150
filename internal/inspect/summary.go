package inspect

import (
	"github.com/ironsheep/volume-tools-mcp/internal/volume"
)

// Summary describes a volume and its intensities.
type Summary struct {
	Path       string    `json:"path"`
	Dimension  int       `json:"dimension"`
	Size       []int     `json:"size"`
	Spacing    []float64 `json:"spacing"`
	Origin     []float64 `json:"origin"`
	Direction  []float64 `json:"direction"`
	PixelType  string    `json:"pixel_type"`
	Components int       `json:"components"`
	Isotropic  bool      `json:"isotropic"`
	Min        float64   `json:"min"`
	Max        float64   `json:"max"`
	Mean       float64   `json:"mean"`
	Hash       string    `json:"sha1"`
}

// Summarize collects geometry and intensity statistics of img.
func Summarize(path string, img *volume.Image) *Summary {
	stats := img.Statistics()
	return &Summary{
		Path:       path,
		Dimension:  img.Dimension(),
		Size:       img.Size(),
		Spacing:    img.Spacing(),
		Origin:     img.Origin(),
		Direction:  img.Direction(),
		PixelType:  img.PixelType().String(),
		Components: img.Components(),
		Isotropic:  img.IsIsotropic(),
		Min:        stats.Min,
		Max:        stats.Max,
		Mean:       stats.Mean,
		Hash:       img.Hash(),
	}
}
