package filter

import (
	"fmt"
	"math"

	"github.com/ironsheep/volume-tools-mcp/internal/volume"
)

// SmoothingGaussian blurs img with a separable Gaussian whose standard
// deviation sigma is in physical units. Along axis i the kernel radius is
// ceil(3*sigma/spacing[i]) pixels; axes with radius 0 are left alone. Border
// pixels are replicated. The result is Float64 with img's geometry.
func SmoothingGaussian(img *volume.Image, sigma float64) (*volume.Image, error) {
	if sigma < 0 || math.IsNaN(sigma) {
		return nil, fmt.Errorf("%w: sigma must be >= 0, got %v", volume.ErrInvalidArgument, sigma)
	}
	out, err := img.Cast(volume.Float64)
	if err != nil {
		return nil, err
	}
	if sigma == 0 {
		return out, nil
	}

	spacing := img.Spacing()
	for axis := range spacing {
		kernel := gaussianKernel(sigma / spacing[axis])
		if len(kernel) > 1 {
			convolveAxis(out, axis, kernel)
		}
	}
	return out, nil
}

// gaussianKernel returns a normalised kernel of length 2r+1 for a standard
// deviation of s pixels.
func gaussianKernel(s float64) []float64 {
	radius := int(math.Ceil(3 * s))
	if radius < 1 {
		return []float64{1}
	}
	kernel := make([]float64, 2*radius+1)
	var sum float64
	for i := -radius; i <= radius; i++ {
		w := math.Exp(-float64(i*i) / (2 * s * s))
		kernel[i+radius] = w
		sum += w
	}
	for i := range kernel {
		kernel[i] /= sum
	}
	return kernel
}

// convolveAxis convolves every line along axis with kernel, in place.
func convolveAxis(img *volume.Image, axis int, kernel []float64) {
	size := img.Size()
	comps := img.Components()
	buf := img.Buffer()
	radius := len(kernel) / 2

	stride := comps
	for i := 0; i < axis; i++ {
		stride *= size[i]
	}
	n := size[axis]
	line := make([]float64, n)

	lines := append([]int(nil), size...)
	lines[axis] = 1
	volume.ForEachIndex(lines, func(start []int) {
		base := img.Offset(start)
		for c := 0; c < comps; c++ {
			for i := 0; i < n; i++ {
				line[i] = buf[base+c+i*stride]
			}
			for i := 0; i < n; i++ {
				var sum float64
				for k := -radius; k <= radius; k++ {
					sum += line[clamp(i+k, 0, n-1)] * kernel[k+radius]
				}
				buf[base+c+i*stride] = sum
			}
		}
	})
}

// clamp constrains an integer value to the range [min, max].
func clamp(val, min, max int) int {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
