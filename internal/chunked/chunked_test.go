package chunked

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/ironsheep/volume-tools-mcp/internal/volume"
	"github.com/ironsheep/volume-tools-mcp/internal/volumeio"
)

func writeVolume(t *testing.T, name string, components int) (string, *volume.Image) {
	t.Helper()
	img, err := volume.NewVector([]int{7, 5, 4}, volume.Int16, components)
	if err != nil {
		t.Fatalf("NewVector failed: %v", err)
	}
	buf := img.Buffer()
	for i := range buf {
		buf[i] = float64(i%500) - 100
	}
	if err := img.SetSpacing([]float64{0.5, 1, 2.5}); err != nil {
		t.Fatal(err)
	}
	if err := img.SetOrigin([]float64{3, -2, 7}); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), name)
	if err := volumeio.WriteImage(img, path); err != nil {
		t.Fatalf("WriteImage failed: %v", err)
	}
	return path, img
}

func TestFromFile_Chunks(t *testing.T) {
	path, _ := writeVolume(t, "vol.mha", 1)

	tests := []struct {
		name   string
		chunks []int
		want   [][]int
	}{
		{"nil is one block", nil, [][]int{{7}, {5}, {4}}},
		{"even split", []int{7, 5, 2}, [][]int{{7}, {5}, {2, 2}}},
		{"short last block", []int{3, Whole, 3}, [][]int{{3, 3, 1}, {5}, {3, 1}}},
		{"oversized chunk", []int{100, 1, Whole}, [][]int{{7}, {1, 1, 1, 1, 1}, {4}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := FromFile(path, tt.chunks)
			if err != nil {
				t.Fatalf("FromFile failed: %v", err)
			}
			if !reflect.DeepEqual(a.Shape, []int{7, 5, 4}) {
				t.Errorf("shape: got %v", a.Shape)
			}
			if !reflect.DeepEqual(a.Chunks, tt.want) {
				t.Errorf("chunks: got %v, want %v", a.Chunks, tt.want)
			}
		})
	}
}

func TestArray_BlockMatchesExtract(t *testing.T) {
	path, img := writeVolume(t, "vol.mhd", 1)
	a, err := FromFile(path, []int{3, 2, 3})
	if err != nil {
		t.Fatalf("FromFile failed: %v", err)
	}

	block, err := a.Block(context.Background(), []int{2, 1, 1})
	if err != nil {
		t.Fatalf("Block failed: %v", err)
	}
	want, err := img.Extract([]int{6, 2, 3}, []int{1, 2, 1})
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if block.Hash() != want.Hash() {
		t.Errorf("block pixels differ from Extract: size %v vs %v", block.Size(), want.Size())
	}
	wantOrigin := img.TransformIndexToPhysicalPoint([]int{6, 2, 3})
	for i, o := range block.Origin() {
		if math.Abs(o-wantOrigin[i]) > 1e-9 {
			t.Fatalf("block origin: got %v, want %v", block.Origin(), wantOrigin)
		}
	}
}

func TestArray_ComputeMatchesReadImage(t *testing.T) {
	tests := []struct {
		name       string
		file       string
		components int
		chunks     []int
	}{
		{"scalar mha", "vol.mha", 1, []int{2, 2, 2}},
		{"scalar vti", "vol.vti", 1, []int{4, Whole, 1}},
		{"vector mha", "vec.mha", 3, []int{3, 3, 3}},
		{"vector with component axis", "vec.mhd", 2, []int{Whole, 2, 1, Whole}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path, _ := writeVolume(t, tt.file, tt.components)
			want, err := volumeio.ReadImage(path)
			if err != nil {
				t.Fatalf("ReadImage failed: %v", err)
			}

			a, err := FromFile(path, tt.chunks)
			if err != nil {
				t.Fatalf("FromFile failed: %v", err)
			}
			a.Workers = 3
			if tt.components > 1 && a.Shape[len(a.Shape)-1] != tt.components {
				t.Errorf("shape should end with the component count: %v", a.Shape)
			}

			got, err := a.Compute(context.Background())
			if err != nil {
				t.Fatalf("Compute failed: %v", err)
			}
			if got.Hash() != want.Hash() {
				t.Error("computed pixels differ from ReadImage")
			}
			if !got.SameGeometry(want) {
				t.Errorf("geometry: got origin %v spacing %v, want %v %v", got.Origin(), got.Spacing(), want.Origin(), want.Spacing())
			}
		})
	}
}

func TestArray_ComputeCancelled(t *testing.T) {
	path, _ := writeVolume(t, "vol.mha", 1)
	a, err := FromFile(path, []int{1, 1, 1})
	if err != nil {
		t.Fatalf("FromFile failed: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := a.Compute(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", err)
	}
}

func TestFromFile_Errors(t *testing.T) {
	scalar, _ := writeVolume(t, "vol.mha", 1)
	vector, _ := writeVolume(t, "vec.mha", 3)

	tests := []struct {
		name   string
		path   string
		chunks []int
		want   error
	}{
		{"too few chunks", scalar, []int{2, 2}, volume.ErrDimensionMismatch},
		{"zero chunk", scalar, []int{2, 0, 2}, volume.ErrInvalidArgument},
		{"split components", vector, []int{2, 2, 2, 1}, volume.ErrInvalidArgument},
		{"unsupported file", filepath.Join(t.TempDir(), "x.nii"), nil, volumeio.ErrUnsupportedFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := FromFile(tt.path, tt.chunks); !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestArray_BlockIndexErrors(t *testing.T) {
	path, _ := writeVolume(t, "vol.mha", 1)
	a, err := FromFile(path, []int{4, 5, 4})
	if err != nil {
		t.Fatalf("FromFile failed: %v", err)
	}
	if _, err := a.Block(context.Background(), []int{2, 0, 0}); !errors.Is(err, volume.ErrOutOfBounds) {
		t.Errorf("block past the end: got %v", err)
	}
	if _, err := a.Block(context.Background(), []int{0, 0}); !errors.Is(err, volume.ErrDimensionMismatch) {
		t.Errorf("short block index: got %v", err)
	}
	if got := a.NumBlocks(); !reflect.DeepEqual(got, []int{2, 1, 1}) {
		t.Errorf("NumBlocks: got %v", got)
	}
}
