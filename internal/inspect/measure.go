package inspect

import (
	"fmt"
	"math"

	"github.com/ironsheep/volume-tools-mcp/internal/volume"
)

// DistanceResult compares two voxels in index and physical space.
type DistanceResult struct {
	DistancePhysical float64   `json:"distance_physical"`
	DistanceIndex    float64   `json:"distance_index"`
	DeltaIndex       []int     `json:"delta_index"`
	DeltaPhysical    []float64 `json:"delta_physical"`

	// AngleDegrees is the in-plane angle of the index delta for 2D images,
	// 0 along +x and 90 along +y.
	AngleDegrees *float64 `json:"angle_degrees,omitempty"`
}

// MeasureDistance measures from voxel a to voxel b.
func MeasureDistance(img *volume.Image, a, b []int) (*DistanceResult, error) {
	d, err := img.PhysicalDistance(a, b)
	if err != nil {
		return nil, fmt.Errorf("failed to measure distance: %w", err)
	}
	pa := img.TransformIndexToPhysicalPoint(a)
	pb := img.TransformIndexToPhysicalPoint(b)

	res := &DistanceResult{
		DistancePhysical: round(d, 4),
		DeltaIndex:       make([]int, len(a)),
		DeltaPhysical:    make([]float64, len(a)),
	}
	var sum float64
	for i := range a {
		res.DeltaIndex[i] = b[i] - a[i]
		res.DeltaPhysical[i] = round(pb[i]-pa[i], 4)
		sum += float64(res.DeltaIndex[i] * res.DeltaIndex[i])
	}
	res.DistanceIndex = round(math.Sqrt(sum), 2)
	if len(a) == 2 {
		angle := round(math.Atan2(float64(res.DeltaIndex[1]), float64(res.DeltaIndex[0]))*180/math.Pi, 1)
		res.AngleDegrees = &angle
	}
	return res, nil
}

func round(v float64, digits int) float64 {
	p := math.Pow(10, float64(digits))
	return math.Round(v*p) / p
}
