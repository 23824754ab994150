package dataset

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/ironsheep/volume-tools-mcp/internal/volume"
	"github.com/ironsheep/volume-tools-mcp/internal/volumeio"
)

func writeImage(t *testing.T, dir, name string, size []int, components int, fn func(i int) float64) string {
	t.Helper()
	pt := volume.UInt8
	if len(size) == 3 {
		pt = volume.Int16
	}
	img, err := volume.NewVector(size, pt, components)
	if err != nil {
		t.Fatalf("NewVector failed: %v", err)
	}
	for i := range img.Buffer() {
		img.Buffer()[i] = fn(i)
	}
	path := filepath.Join(dir, name)
	if err := volumeio.WriteImage(img, path); err != nil {
		t.Fatalf("WriteImage failed: %v", err)
	}
	return path
}

func TestToTensor(t *testing.T) {
	img, _ := volume.New([]int{3, 2}, volume.Float32)
	copy(img.Buffer(), []float64{0, 1, 2, 3, 4, 5})

	tests := []struct {
		name     string
		channels int
		shape    [3]int
	}{
		{"single channel", 1, [3]int{2, 3, 1}},
		{"three channels", 3, [3]int{2, 3, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tensor, err := ToTensor(img, "x", tt.channels)
			if err != nil {
				t.Fatalf("ToTensor failed: %v", err)
			}
			if tensor.Shape != tt.shape {
				t.Errorf("shape: got %v, want %v", tensor.Shape, tt.shape)
			}
			for c := 0; c < tt.channels; c++ {
				if got := tensor.At(0, 0, c); got != 0 {
					t.Errorf("min pixel channel %d: got %d, want 0", c, got)
				}
				if got := tensor.At(1, 2, c); got != 255 {
					t.Errorf("max pixel channel %d: got %d, want 255", c, got)
				}
			}
		})
	}
}

func TestToTensor_SingleSliceVolume(t *testing.T) {
	img, _ := volume.New([]int{4, 3, 1}, volume.Float32)
	img.Buffer()[5] = 10
	tensor, err := ToTensor(img, "dicom", 3)
	if err != nil {
		t.Fatalf("ToTensor failed: %v", err)
	}
	if tensor.Shape != [3]int{3, 4, 3} {
		t.Errorf("shape: got %v", tensor.Shape)
	}
	if tensor.At(1, 1, 2) != 255 {
		t.Errorf("bright pixel: got %d", tensor.At(1, 1, 2))
	}
}

func TestToTensor_Errors(t *testing.T) {
	vol, _ := volume.New([]int{4, 3, 2}, volume.Float32)
	if _, err := ToTensor(vol, "v", 3); !errors.Is(err, volume.ErrDimensionMismatch) {
		t.Errorf("3D volume: got %v", err)
	}
	rgb, _ := volume.NewVector([]int{4, 3}, volume.Float32, 3)
	if _, err := ToTensor(rgb, "rgb", 1); !errors.Is(err, volume.ErrInvalidArgument) {
		t.Errorf("rgb to one channel: got %v", err)
	}
	if _, err := ToTensor(rgb, "rgb", 3); err != nil {
		t.Errorf("rgb to three channels: %v", err)
	}
}

func TestResizeWithPad(t *testing.T) {
	src := Tensor{Name: "wide", Shape: [3]int{2, 4, 1}, Data: []uint8{
		10, 20, 30, 40,
		50, 60, 70, 80,
	}}

	out := ResizeWithPad(src, 4, 4)
	if out.Shape != [3]int{4, 4, 1} || out.Name != "wide" {
		t.Fatalf("shape: got %v %q", out.Shape, out.Name)
	}
	for x := 0; x < 4; x++ {
		if out.At(0, x, 0) != 0 || out.At(3, x, 0) != 0 {
			t.Errorf("column %d: padding rows should be black", x)
		}
		if out.At(1, x, 0) != src.At(0, x, 0) || out.At(2, x, 0) != src.At(1, x, 0) {
			t.Errorf("column %d: content rows should be copied unchanged", x)
		}
	}
}

func TestResizeWithPad_Scales(t *testing.T) {
	src := Tensor{Shape: [3]int{2, 2, 2}, Data: []uint8{200, 100, 200, 100, 200, 100, 200, 100}}

	up := ResizeWithPad(src, 6, 6)
	for y := 0; y < 6; y++ {
		for x := 0; x < 6; x++ {
			if v := up.At(y, x, 0); v < 195 || v > 205 {
				t.Fatalf("upscaled channel 0 at (%d,%d): got %d", y, x, v)
			}
			if v := up.At(y, x, 1); v < 95 || v > 105 {
				t.Fatalf("upscaled channel 1 at (%d,%d): got %d", y, x, v)
			}
		}
	}

	tall := Tensor{Shape: [3]int{8, 4, 1}, Data: make([]uint8, 32)}
	for i := range tall.Data {
		tall.Data[i] = 255
	}
	down := ResizeWithPad(tall, 4, 4)
	if down.At(0, 0, 0) != 0 || down.At(0, 3, 0) != 0 {
		t.Error("side padding should be black")
	}
	if down.At(2, 1, 0) < 250 || down.At(2, 2, 0) < 250 {
		t.Error("centre columns should hold the image")
	}
}

func TestFromFilenames(t *testing.T) {
	dir := t.TempDir()
	writeImage(t, dir, "a.png", []int{8, 4}, 1, func(i int) float64 { return float64(i * 8) })
	writeImage(t, dir, "b.mha", []int{6, 6, 1}, 1, func(i int) float64 { return float64(i) - 20 })
	writeImage(t, dir, "c.png", []int{4, 4}, 3, func(i int) float64 { return float64(i % 256) })

	tensors, err := FromFilenames(context.Background(), []string{"a.png", "b.mha", "c.png"}, Options{
		ImageSize: [2]int{5, 5},
		ImagePath: dir,
		Workers:   2,
	})
	if err != nil {
		t.Fatalf("FromFilenames failed: %v", err)
	}
	if len(tensors) != 3 {
		t.Fatalf("got %d tensors, want 3", len(tensors))
	}
	for i, want := range []string{"a.png", "b.mha", "c.png"} {
		if tensors[i].Name != want {
			t.Errorf("tensor %d: name %q, want %q", i, tensors[i].Name, want)
		}
		if tensors[i].Shape != [3]int{5, 5, 3} {
			t.Errorf("tensor %d: shape %v", i, tensors[i].Shape)
		}
		if len(tensors[i].Data) != 75 {
			t.Errorf("tensor %d: %d bytes", i, len(tensors[i].Data))
		}
	}
}

func TestFromFilenames_Errors(t *testing.T) {
	dir := t.TempDir()
	writeImage(t, dir, "vol.mha", []int{4, 4, 3}, 1, func(i int) float64 { return float64(i) })

	if _, err := FromFilenames(context.Background(), []string{"vol.mha"}, Options{ImageSize: [2]int{4, 4}, ImagePath: dir}); !errors.Is(err, volume.ErrDimensionMismatch) {
		t.Errorf("3D volume: got %v", err)
	}
	if _, err := FromFilenames(context.Background(), []string{"missing.png"}, Options{ImageSize: [2]int{4, 4}, ImagePath: dir}); err == nil {
		t.Error("missing file should fail")
	}
	if _, err := FromFilenames(context.Background(), nil, Options{ImageSize: [2]int{0, 4}}); !errors.Is(err, volume.ErrInvalidArgument) {
		t.Errorf("zero height: got %v", err)
	}
}
