package inspect

import (
	"errors"
	"math"
	"testing"

	"github.com/ironsheep/volume-tools-mcp/internal/volume"
)

func rgbImage(t *testing.T) *volume.Image {
	t.Helper()
	img, err := volume.NewVector([]int{4, 4}, volume.UInt8, 3)
	if err != nil {
		t.Fatalf("NewVector failed: %v", err)
	}
	if err := img.SetPixel([]float64{255, 128, 64}, 1, 2); err != nil {
		t.Fatalf("SetPixel failed: %v", err)
	}
	return img
}

func TestSample_Color(t *testing.T) {
	img := rgbImage(t)

	result, err := Sample(img, []int{1, 2})
	if err != nil {
		t.Fatalf("Sample failed: %v", err)
	}
	if result.Color == nil {
		t.Fatal("UInt8 RGB sample should carry a colour")
	}
	if result.Color.Hex != "#FF8040" {
		t.Errorf("Hex: got %s, want #FF8040", result.Color.Hex)
	}
	if result.Color.RGB != (RGBColor{R: 255, G: 128, B: 64}) {
		t.Errorf("RGB: got %+v", result.Color.RGB)
	}
	if result.Color.HSL.H != 20 || result.Color.HSL.S != 100 || result.Color.HSL.L != 63 {
		t.Errorf("HSL: got %+v, want {20 100 63}", result.Color.HSL)
	}
}

func TestSample_Gray(t *testing.T) {
	img, _ := volume.New([]int{3, 3}, volume.UInt8)
	img.Fill(128)

	result, err := Sample(img, []int{0, 0})
	if err != nil {
		t.Fatalf("Sample failed: %v", err)
	}
	if result.Color == nil || result.Color.Hex != "#808080" {
		t.Fatalf("gray colour: got %+v", result.Color)
	}
	if result.Color.HSL.S != 0 || result.Color.HSL.L != 50 {
		t.Errorf("HSL: got %+v", result.Color.HSL)
	}
}

func TestSample_VolumeValues(t *testing.T) {
	img, _ := volume.New([]int{4, 3, 2}, volume.Float32)
	_ = img.SetSpacing([]float64{0.5, 1, 3})
	_ = img.SetOrigin([]float64{10, 0, -5})
	_ = img.Set(-12.5, 3, 1, 1)

	result, err := Sample(img, []int{3, 1, 1})
	if err != nil {
		t.Fatalf("Sample failed: %v", err)
	}
	if result.Color != nil {
		t.Error("float images should not report a colour")
	}
	if len(result.Values) != 1 || result.Values[0] != -12.5 {
		t.Errorf("values: got %v", result.Values)
	}
	want := []float64{11.5, 1, -2}
	for i := range want {
		if math.Abs(result.Physical[i]-want[i]) > 1e-12 {
			t.Fatalf("physical point: got %v, want %v", result.Physical, want)
		}
	}
}

func TestSampleMulti(t *testing.T) {
	img := rgbImage(t)
	points := []LabeledIndex{
		{Index: []int{1, 2}, Label: "marker"},
		{Index: []int{0, 0}},
	}

	result, err := SampleMulti(img, points)
	if err != nil {
		t.Fatalf("SampleMulti failed: %v", err)
	}
	if len(result.Samples) != 2 {
		t.Fatalf("samples: got %d, want 2", len(result.Samples))
	}
	if result.Samples[0].Label != "marker" || result.Samples[0].Color.Hex != "#FF8040" {
		t.Errorf("first sample: %+v", result.Samples[0])
	}
	if result.Samples[1].Color.Hex != "#000000" {
		t.Errorf("second sample: %+v", result.Samples[1])
	}

	_, err = SampleMulti(img, []LabeledIndex{{Index: []int{0, 0}}, {Index: []int{9, 9}}})
	if !errors.Is(err, volume.ErrOutOfBounds) {
		t.Errorf("out of range point: got %v", err)
	}
	_, err = SampleMulti(img, []LabeledIndex{{Index: []int{0, 0, 0}}})
	if !errors.Is(err, volume.ErrDimensionMismatch) {
		t.Errorf("wrong index length: got %v", err)
	}
}

func TestMeasureDistance(t *testing.T) {
	tests := []struct {
		name      string
		spacing   []float64
		a, b      []int
		physical  float64
		index     float64
		wantAngle float64
	}{
		{"horizontal", []float64{1, 1}, []int{0, 0}, []int{10, 0}, 10, 10, 0},
		{"vertical", []float64{1, 1}, []int{0, 0}, []int{0, 10}, 10, 10, 90},
		{"diagonal", []float64{1, 1}, []int{0, 0}, []int{3, 4}, 5, 5, 53.1},
		{"anisotropic", []float64{0.5, 2}, []int{2, 1}, []int{8, 3}, 5, 6.32, 18.4},
		{"backwards", []float64{1, 1}, []int{5, 5}, []int{0, 5}, 5, 5, 180},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, _ := volume.New([]int{20, 20}, volume.UInt8)
			_ = img.SetSpacing(tt.spacing)

			result, err := MeasureDistance(img, tt.a, tt.b)
			if err != nil {
				t.Fatalf("MeasureDistance failed: %v", err)
			}
			if math.Abs(result.DistancePhysical-tt.physical) > 1e-9 {
				t.Errorf("physical: got %v, want %v", result.DistancePhysical, tt.physical)
			}
			if math.Abs(result.DistanceIndex-tt.index) > 1e-9 {
				t.Errorf("index: got %v, want %v", result.DistanceIndex, tt.index)
			}
			if result.AngleDegrees == nil || math.Abs(*result.AngleDegrees-tt.wantAngle) > 1e-9 {
				t.Errorf("angle: got %v, want %v", result.AngleDegrees, tt.wantAngle)
			}
		})
	}
}

func TestMeasureDistance_Volume(t *testing.T) {
	img, _ := volume.New([]int{5, 5, 5}, volume.Int16)
	_ = img.SetSpacing([]float64{1, 1, 2})

	result, err := MeasureDistance(img, []int{0, 0, 0}, []int{0, 0, 3})
	if err != nil {
		t.Fatalf("MeasureDistance failed: %v", err)
	}
	if result.DistancePhysical != 6 || result.DistanceIndex != 3 {
		t.Errorf("got physical %v index %v", result.DistancePhysical, result.DistanceIndex)
	}
	if result.AngleDegrees != nil {
		t.Error("3D measurements have no in-plane angle")
	}
	if result.DeltaPhysical[2] != 6 {
		t.Errorf("delta physical: got %v", result.DeltaPhysical)
	}

	if _, err := MeasureDistance(img, []int{0, 0, 0}, []int{0, 0, 5}); !errors.Is(err, volume.ErrOutOfBounds) {
		t.Errorf("out of range: got %v", err)
	}
}

func TestSummarize(t *testing.T) {
	img, _ := volume.New([]int{2, 2}, volume.Int16)
	copy(img.Buffer(), []float64{-4, 0, 2, 6})

	s := Summarize("/data/a.mha", img)
	if s.Path != "/data/a.mha" || s.Dimension != 2 || s.PixelType != volume.Int16.String() {
		t.Errorf("header: %+v", s)
	}
	if s.Min != -4 || s.Max != 6 || s.Mean != 1 {
		t.Errorf("stats: min %v max %v mean %v", s.Min, s.Max, s.Mean)
	}
	if !s.Isotropic || s.Hash != img.Hash() {
		t.Errorf("isotropic %v hash %q", s.Isotropic, s.Hash)
	}
}
