package volumeio

import (
	"fmt"

	"github.com/disintegration/imaging"

	"github.com/ironsheep/volume-tools-mcp/internal/bridge"
	"github.com/ironsheep/volume-tools-mcp/internal/volume"
)

func readRaster(path string) (*volume.Image, error) {
	src, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	return bridge.FromGoImage(src)
}

// writeRaster encodes a 2D image with the codec matching the extension.
// Scalar images that are not UInt8 are rescaled to [0,255] first.
func writeRaster(img *volume.Image, path string) error {
	raster, err := bridge.ToGoImage(img)
	if err != nil {
		return err
	}
	if err := imaging.Save(raster, path); err != nil {
		return fmt.Errorf("failed to save image: %w", err)
	}
	return nil
}
