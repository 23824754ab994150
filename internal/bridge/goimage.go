package bridge

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"

	"github.com/anthonynsimon/bild/clone"
	"github.com/disintegration/imaging"

	"github.com/ironsheep/volume-tools-mcp/internal/volume"
)

// ToGoImage converts a 2D image to a Go raster image.
//
// Scalar images become *image.Gray; scalar pixel types other than UInt8 are
// first rescaled linearly to [0,255]. Three channel images must be UInt8 and
// become opaque *image.NRGBA.
//
// # Errors
//
//   - the image is not 2D
//   - the image has other than 1 or 3 components
//   - a three channel image is not UInt8
func ToGoImage(img *volume.Image) (image.Image, error) {
	if img.Dimension() != 2 {
		return nil, fmt.Errorf("raster conversion needs a 2D image, got %dD", img.Dimension())
	}
	n := img.Components()
	if n != 1 && n != 3 {
		return nil, fmt.Errorf("image has %d channels, expected 1 or 3 channels", n)
	}
	if n == 3 && img.PixelType() != volume.UInt8 {
		return nil, fmt.Errorf("three channel image has pixel type (%s), expected 8-bit unsigned integer", img.PixelType())
	}

	if n == 1 && img.PixelType() != volume.UInt8 {
		var err error
		img, err = img.RescaleIntensity(0, 255).Cast(volume.UInt8)
		if err != nil {
			return nil, err
		}
	}

	w, h := img.Width(), img.Height()
	buf := img.Buffer()
	if n == 1 {
		out := image.NewGray(image.Rect(0, 0, w, h))
		for i, v := range buf {
			out.Pix[i] = uint8(v)
		}
		return out, nil
	}

	out := image.NewNRGBA(image.Rect(0, 0, w, h))
	for p := 0; p < w*h; p++ {
		out.Pix[p*4+0] = uint8(buf[p*3+0])
		out.Pix[p*4+1] = uint8(buf[p*3+1])
		out.Pix[p*4+2] = uint8(buf[p*3+2])
		out.Pix[p*4+3] = 255
	}
	return out, nil
}

// FromGoImage converts a Go raster image to a 2D UInt8 image.
//
// If every pixel is gray (R == G == B) the result is a scalar image,
// otherwise it has three RGB components. Alpha is dropped. Geometry is left
// at the defaults since raster images carry none.
func FromGoImage(src image.Image) (*volume.Image, error) {
	rgba := clone.AsRGBA(src)
	b := rgba.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("empty raster image")
	}

	gray := true
	for y := 0; y < h && gray; y++ {
		row := rgba.Pix[y*rgba.Stride : y*rgba.Stride+w*4]
		for x := 0; x < w; x++ {
			r, g, bl := row[x*4], row[x*4+1], row[x*4+2]
			if r != g || g != bl {
				gray = false
				break
			}
		}
	}

	components := 3
	if gray {
		components = 1
	}
	img, err := volume.NewVector([]int{w, h}, volume.UInt8, components)
	if err != nil {
		return nil, err
	}
	buf := img.Buffer()
	for y := 0; y < h; y++ {
		row := rgba.Pix[y*rgba.Stride:]
		for x := 0; x < w; x++ {
			p := y*w + x
			if gray {
				buf[p] = float64(row[x*4])
				continue
			}
			buf[p*3+0] = float64(row[x*4+0])
			buf[p*3+1] = float64(row[x*4+1])
			buf[p*3+2] = float64(row[x*4+2])
		}
	}
	return img, nil
}

// PreviewResult contains a rendered 2D image
type PreviewResult struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

// EncodePNG renders a 2D image as PNG bytes.
func EncodePNG(img *volume.Image) ([]byte, error) {
	raster, err := ToGoImage(img)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, raster); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}

// Preview renders a 2D image as base64 PNG, optionally scaled.
//
// Scaling uses Lanczos resampling on the rendered raster and is skipped for
// scale <= 0 or scale == 1. The raster is built with square pixels; callers
// wanting physically correct aspect should make the image isotropic first.
func Preview(img *volume.Image, scale float64) (*PreviewResult, error) {
	raster, err := ToGoImage(img)
	if err != nil {
		return nil, err
	}

	if scale != 1.0 && scale > 0 {
		newWidth := int(float64(raster.Bounds().Dx()) * scale)
		newHeight := int(float64(raster.Bounds().Dy()) * scale)
		if newWidth < 1 {
			newWidth = 1
		}
		if newHeight < 1 {
			newHeight = 1
		}
		raster = imaging.Resize(raster, newWidth, newHeight, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, raster); err != nil {
		return nil, fmt.Errorf("failed to encode preview: %w", err)
	}

	return &PreviewResult{
		Width:       raster.Bounds().Dx(),
		Height:      raster.Bounds().Dy(),
		ImageBase64: base64.StdEncoding.EncodeToString(buf.Bytes()),
		MimeType:    "image/png",
	}, nil
}
