package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ironsheep/volume-tools-mcp/internal/config"
	"github.com/ironsheep/volume-tools-mcp/internal/volume"
	"github.com/ironsheep/volume-tools-mcp/internal/volumeio"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	return NewWithSettings(config.ProcessingSettings{Workers: 2, CacheDir: t.TempDir()})
}

// writeTestVolume writes a volume whose voxel value is x + 10*y + 100*z.
func writeTestVolume(t *testing.T, name string, size []int, spacing []float64) string {
	t.Helper()
	img, err := volume.New(size, volume.Float32)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := img.SetSpacing(spacing); err != nil {
		t.Fatalf("SetSpacing failed: %v", err)
	}
	volume.ForEachIndex(size, func(idx []int) {
		v := 0.0
		for i, f := range []float64{1, 10, 100} {
			if i < len(idx) {
				v += f * float64(idx[i])
			}
		}
		img.Buffer()[img.Offset(idx)] = v
	})
	path := filepath.Join(t.TempDir(), name)
	if err := volumeio.WriteImage(img, path); err != nil {
		t.Fatalf("WriteImage failed: %v", err)
	}
	return path
}

// callTool runs a tool and decodes its text content into out.
func callTool(t *testing.T, s *Server, name string, args map[string]interface{}, out interface{}) *MCPError {
	t.Helper()
	params, _ := json.Marshal(map[string]interface{}{"name": name, "arguments": args})
	resp := s.handleToolsCall(context.Background(), &MCPRequest{JSONRPC: "2.0", ID: 1, Method: "tools/call", Params: params})
	if resp == nil {
		t.Fatal("handleToolsCall returned nil")
	}
	if resp.Error != nil {
		return resp.Error
	}
	result, ok := resp.Result.(map[string]interface{})
	if !ok {
		t.Fatal("Result should be a map")
	}
	content, ok := result["content"].([]map[string]interface{})
	if !ok || len(content) != 1 || content[0]["type"] != "text" {
		t.Fatalf("unexpected content: %v", result["content"])
	}
	if out != nil {
		if err := json.Unmarshal([]byte(content[0]["text"].(string)), out); err != nil {
			t.Fatalf("failed to decode tool result: %v", err)
		}
	}
	return nil
}

func TestHandleToolsCall_Load(t *testing.T) {
	s := newTestServer(t)
	path := writeTestVolume(t, "ct.mha", []int{4, 3, 2}, []float64{1, 1, 2.5})

	var got struct {
		Size      []int     `json:"size"`
		Spacing   []float64 `json:"spacing"`
		PixelType string    `json:"pixel_type"`
		Max       float64   `json:"max"`
		Isotropic bool      `json:"isotropic"`
	}
	if err := callTool(t, s, "volume_load", map[string]interface{}{"path": path}, &got); err != nil {
		t.Fatalf("volume_load failed: %+v", err)
	}
	if len(got.Size) != 3 || got.Size[2] != 2 || got.Spacing[2] != 2.5 {
		t.Errorf("geometry: %+v", got)
	}
	if got.Max != 123 || got.Isotropic {
		t.Errorf("max %v isotropic %v", got.Max, got.Isotropic)
	}
	if s.cache.Len() != 1 {
		t.Errorf("cache should hold the loaded volume, has %d", s.cache.Len())
	}
}

func TestHandleToolsCall_Errors(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name string
		tool string
		args map[string]interface{}
		code int
	}{
		{"unknown tool", "nonexistent_tool", map[string]interface{}{}, -32000},
		{"missing file", "volume_load", map[string]interface{}{"path": "/nonexistent/ct.mha"}, -32000},
		{"missing path", "volume_load", map[string]interface{}{}, -32000},
		{"unsupported format", "volume_load", map[string]interface{}{"path": "/tmp/x.nii"}, -32000},
		{"bad argument type", "volume_load", map[string]interface{}{"path": 42}, -32000},
		{"bad interpolator", "volume_resize", map[string]interface{}{"path": "/x.mha", "size": []int{2, 2}, "interpolator": "cubic"}, -32000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := callTool(t, s, tt.tool, tt.args, nil)
			if err == nil {
				t.Fatal("expected an error")
			}
			if err.Code != tt.code {
				t.Errorf("code: got %d, want %d", err.Code, tt.code)
			}
			if data, _ := err.Data.(string); data == "" {
				t.Error("error data should carry the cause")
			}
		})
	}

	resp := s.handleToolsCall(context.Background(), &MCPRequest{JSONRPC: "2.0", ID: 1, Params: json.RawMessage(`[1,2]`)})
	if resp.Error == nil || resp.Error.Code != -32602 {
		t.Errorf("invalid params: got %+v", resp.Error)
	}
}

func TestHandleToolsCall_SampleAndMeasure(t *testing.T) {
	s := newTestServer(t)
	path := writeTestVolume(t, "ct.mhd", []int{4, 3, 2}, []float64{0.5, 1, 2})

	var samples struct {
		Samples []struct {
			Label  string    `json:"label"`
			Values []float64 `json:"values"`
		} `json:"samples"`
	}
	args := map[string]interface{}{
		"path": path,
		"points": []map[string]interface{}{
			{"index": []int{3, 2, 1}, "label": "corner"},
			{"index": []int{1, 0, 0}},
		},
	}
	if err := callTool(t, s, "volume_sample", args, &samples); err != nil {
		t.Fatalf("volume_sample failed: %+v", err)
	}
	if len(samples.Samples) != 2 || samples.Samples[0].Label != "corner" {
		t.Fatalf("samples: %+v", samples)
	}
	if samples.Samples[0].Values[0] != 123 || samples.Samples[1].Values[0] != 1 {
		t.Errorf("values: %+v", samples.Samples)
	}

	if err := callTool(t, s, "volume_sample", map[string]interface{}{"path": path, "points": []interface{}{}}, nil); err == nil {
		t.Error("empty points should fail")
	}

	var dist struct {
		Physical float64 `json:"distance_physical"`
		Index    float64 `json:"distance_index"`
	}
	args = map[string]interface{}{"path": path, "a": []int{0, 0, 0}, "b": []int{0, 0, 1}}
	if err := callTool(t, s, "volume_measure_distance", args, &dist); err != nil {
		t.Fatalf("volume_measure_distance failed: %+v", err)
	}
	if dist.Physical != 2 || dist.Index != 1 {
		t.Errorf("distance: %+v", dist)
	}
}

func TestHandleToolsCall_SlicePreview(t *testing.T) {
	s := newTestServer(t)
	path := writeTestVolume(t, "ct.mha", []int{6, 5, 4}, []float64{1, 1, 1})

	tests := []struct {
		name          string
		args          map[string]interface{}
		width, height int
		slice         int
	}{
		{"default middle slice", map[string]interface{}{}, 6, 5, 2},
		{"coronal", map[string]interface{}{"axis": 1, "slice": 0}, 6, 4, 0},
		{"scaled", map[string]interface{}{"axis": 0, "scale": 2.0}, 10, 8, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.args["path"] = path
			var got struct {
				Axis   int    `json:"axis"`
				Slice  int    `json:"slice"`
				Width  int    `json:"width"`
				Height int    `json:"height"`
				Data   string `json:"image_base64"`
			}
			if err := callTool(t, s, "volume_slice_preview", tt.args, &got); err != nil {
				t.Fatalf("volume_slice_preview failed: %+v", err)
			}
			if got.Width != tt.width || got.Height != tt.height || got.Slice != tt.slice {
				t.Errorf("got %dx%d slice %d, want %dx%d slice %d", got.Width, got.Height, got.Slice, tt.width, tt.height, tt.slice)
			}
			png, err := base64.StdEncoding.DecodeString(got.Data)
			if err != nil || !strings.HasPrefix(string(png), "\x89PNG") {
				t.Errorf("preview is not a PNG: %v", err)
			}
		})
	}

	if err := callTool(t, s, "volume_slice_preview", map[string]interface{}{"path": path, "slice": 9}, nil); err == nil {
		t.Error("slice outside the volume should fail")
	}
	if err := callTool(t, s, "volume_slice_preview", map[string]interface{}{"path": path, "axis": 3}, nil); err == nil {
		t.Error("axis outside the volume should fail")
	}
}

type outputResult struct {
	OutputPath string `json:"output_path"`
	Image      struct {
		Size      []int     `json:"size"`
		Spacing   []float64 `json:"spacing"`
		PixelType string    `json:"pixel_type"`
		Min       float64   `json:"min"`
		Max       float64   `json:"max"`
	} `json:"image"`
}

func TestHandleToolsCall_MakeIsotropic(t *testing.T) {
	s := newTestServer(t)
	path := writeTestVolume(t, "ct.mha", []int{4, 4, 2}, []float64{1, 1, 2})
	out := filepath.Join(t.TempDir(), "iso.mha")

	var got outputResult
	if err := callTool(t, s, "volume_make_isotropic", map[string]interface{}{"path": path, "output_path": out}, &got); err != nil {
		t.Fatalf("volume_make_isotropic failed: %+v", err)
	}
	if got.OutputPath != out {
		t.Errorf("output path: got %s", got.OutputPath)
	}
	if len(got.Image.Size) != 3 || got.Image.Size[2] != 4 || got.Image.Spacing[2] != 1 {
		t.Errorf("isotropic image: %+v", got.Image)
	}
	written, err := volumeio.ReadImageInformation(out)
	if err != nil {
		t.Fatalf("output not readable: %v", err)
	}
	if written.Size[2] != 4 {
		t.Errorf("written size: %v", written.Size)
	}
}

func TestHandleToolsCall_DefaultOutputPath(t *testing.T) {
	s := newTestServer(t)
	path := writeTestVolume(t, "scan.mha", []int{4, 4}, []float64{1, 2})

	var got outputResult
	if err := callTool(t, s, "volume_resize", map[string]interface{}{"path": path, "size": []int{8, 8}}, &got); err != nil {
		t.Fatalf("volume_resize failed: %+v", err)
	}
	want := filepath.Join(s.settings.CacheDir, "scan_resized.mha")
	if got.OutputPath != want {
		t.Errorf("output path: got %s, want %s", got.OutputPath, want)
	}
	if _, err := os.Stat(want); err != nil {
		t.Errorf("output not written: %v", err)
	}
	if got.Image.Size[0] != 8 || got.Image.Size[1] != 8 {
		t.Errorf("size: %v", got.Image.Size)
	}
	// isotropic: both axes take the larger spacing
	if math.Abs(got.Image.Spacing[0]-got.Image.Spacing[1]) > 1e-9 {
		t.Errorf("spacing should be isotropic: %v", got.Image.Spacing)
	}

	args := map[string]interface{}{"path": path, "size": []int{8, 8}, "isotropic": false, "output_path": filepath.Join(t.TempDir(), "aniso.mha")}
	if err := callTool(t, s, "volume_resize", args, &got); err != nil {
		t.Fatalf("volume_resize failed: %+v", err)
	}
	if math.Abs(got.Image.Spacing[0]-0.5) > 1e-9 || math.Abs(got.Image.Spacing[1]-1) > 1e-9 {
		t.Errorf("anisotropic spacing: %v", got.Image.Spacing)
	}
}

func TestHandleToolsCall_ResizeAndScale(t *testing.T) {
	s := newTestServer(t)
	path := writeTestVolume(t, "ct.mha", []int{5, 5}, []float64{1, 1})

	var got outputResult
	if err := callTool(t, s, "volume_resize_and_scale", map[string]interface{}{"path": path, "size": []int{3, 3}}, &got); err != nil {
		t.Fatalf("volume_resize_and_scale failed: %+v", err)
	}
	if got.Image.PixelType != volume.UInt8.String() {
		t.Errorf("pixel type: got %s", got.Image.PixelType)
	}
	if got.Image.Max > 255 || got.Image.Min < 0 {
		t.Errorf("range: [%v, %v]", got.Image.Min, got.Image.Max)
	}

	if err := callTool(t, s, "volume_resize_and_scale", map[string]interface{}{"path": path, "size": []int{1, 3}}, nil); err == nil {
		t.Error("size below 2 should fail")
	}
}

func TestHandleToolsCall_HistogramEqualization(t *testing.T) {
	s := newTestServer(t)
	path := writeTestVolume(t, "ct.mha", []int{8, 8}, []float64{1, 1})

	var got outputResult
	args := map[string]interface{}{"path": path, "levels": 16}
	if err := callTool(t, s, "volume_histogram_equalization", args, &got); err != nil {
		t.Fatalf("volume_histogram_equalization failed: %+v", err)
	}
	if got.Image.Min != 0 || math.Abs(got.Image.Max-15) > 1e-3 {
		t.Errorf("range: [%v, %v], want [0, 15]", got.Image.Min, got.Image.Max)
	}
}

func TestHandleToolsCall_OverlayBoundingBoxes(t *testing.T) {
	s := newTestServer(t)
	img, _ := volume.New([]int{12, 10}, volume.UInt8)
	img.Fill(20)
	path := filepath.Join(t.TempDir(), "frame.png")
	if err := volumeio.WriteImage(img, path); err != nil {
		t.Fatalf("WriteImage failed: %v", err)
	}

	var got struct {
		OutputPath  string `json:"output_path"`
		OutOfBounds bool   `json:"out_of_bounds"`
	}
	args := map[string]interface{}{
		"path":   path,
		"boxes":  [][]float64{{1, 1, 5, 5}, {8, 8, 20, 20}},
		"colors": []string{"#00ff00", "#0000ff"},
	}
	if err := callTool(t, s, "volume_overlay_bounding_boxes", args, &got); err != nil {
		t.Fatalf("volume_overlay_bounding_boxes failed: %+v", err)
	}
	if !got.OutOfBounds {
		t.Error("second box leaves the image and should be flagged")
	}
	if filepath.Ext(got.OutputPath) != ".png" {
		t.Errorf("overlay output should default to PNG: %s", got.OutputPath)
	}

	out, err := volumeio.ReadImage(got.OutputPath)
	if err != nil {
		t.Fatalf("ReadImage failed: %v", err)
	}
	px, _ := out.Pixel(1, 1)
	if out.Components() != 3 || px[0] != 0 || px[1] != 255 || px[2] != 0 {
		t.Errorf("box corner: got %v", px)
	}

	args["colors"] = []string{"chartreuse?"}
	if err := callTool(t, s, "volume_overlay_bounding_boxes", args, nil); err == nil {
		t.Error("invalid colour should fail")
	}
}

func TestHandleToolsCall_FFTTranslation(t *testing.T) {
	s := newTestServer(t)
	dir := t.TempDir()
	write := func(name string, cx, cy float64) string {
		img, _ := volume.New([]int{24, 24}, volume.Float32)
		volume.ForEachIndex(img.Size(), func(idx []int) {
			dx, dy := float64(idx[0])-cx, float64(idx[1])-cy
			img.Buffer()[img.Offset(idx)] = 5 + 100*math.Exp(-(dx*dx+dy*dy)/12)
		})
		p := filepath.Join(dir, name)
		if err := volumeio.WriteImage(img, p); err != nil {
			t.Fatalf("WriteImage failed: %v", err)
		}
		return p
	}
	fixed := write("fixed.mha", 10, 11)
	moving := write("moving.mha", 12, 10)

	var got TranslationResult
	args := map[string]interface{}{
		"fixed_path":  fixed,
		"moving_path": moving,
		"required_fraction_of_overlapping_pixels": 0.5,
	}
	if err := callTool(t, s, "volume_fft_translation", args, &got); err != nil {
		t.Fatalf("volume_fft_translation failed: %+v", err)
	}
	if len(got.Translation) != 2 || math.Abs(got.Translation[0]-2) > 0.5 || math.Abs(got.Translation[1]+1) > 0.5 {
		t.Errorf("translation: got %v, want about [2 -1]", got.Translation)
	}
	if got.Transform != "translation" {
		t.Errorf("transform kind: got %q, want translation", got.Transform)
	}

	args["initial_translation"] = []float64{1, 0}
	if err := callTool(t, s, "volume_fft_translation", args, &got); err != nil {
		t.Fatalf("volume_fft_translation with initial translation failed: %+v", err)
	}
	if math.Abs(got.Translation[0]-2) > 0.5 || math.Abs(got.Translation[1]+1) > 0.5 {
		t.Errorf("translation: got %v, want about [2 -1]", got.Translation)
	}
}

func TestHandleToolsCall_ExportVTK(t *testing.T) {
	s := newTestServer(t)
	path := writeTestVolume(t, "ct.mha", []int{3, 2, 2}, []float64{1, 1, 1})
	out := filepath.Join(t.TempDir(), "ct.vti")

	var got struct {
		OutputPath string `json:"output_path"`
		Extent     [6]int `json:"whole_extent"`
		Components int    `json:"number_of_components"`
	}
	if err := callTool(t, s, "volume_export_vtk", map[string]interface{}{"path": path, "output_path": out}, &got); err != nil {
		t.Fatalf("volume_export_vtk failed: %+v", err)
	}
	if got.Extent != [6]int{0, 2, 0, 1, 0, 1} || got.Components != 1 {
		t.Errorf("vtk: %+v", got)
	}
	back, err := volumeio.ReadImage(out)
	if err != nil {
		t.Fatalf("ReadImage failed: %v", err)
	}
	orig, _ := volumeio.ReadImage(path)
	if back.Hash() != orig.Hash() {
		t.Error("exported pixels differ from the input")
	}

	if err := callTool(t, s, "volume_export_vtk", map[string]interface{}{"path": path, "output_path": "/tmp/x.mha"}, nil); err == nil {
		t.Error("non-vti output should fail")
	}
}

func TestHandleToolsCall_ChunkInfo(t *testing.T) {
	s := newTestServer(t)
	path := writeTestVolume(t, "ct.mha", []int{5, 4, 3}, []float64{1, 1, 1})

	var got ChunkInfoResult
	if err := callTool(t, s, "volume_chunk_info", map[string]interface{}{"path": path, "chunks": []int{2, -1, 1}}, &got); err != nil {
		t.Fatalf("volume_chunk_info failed: %+v", err)
	}
	if len(got.NumBlocks) != 3 || got.NumBlocks[0] != 3 || got.NumBlocks[1] != 1 || got.NumBlocks[2] != 3 {
		t.Errorf("num blocks: %v", got.NumBlocks)
	}
	if !got.Streamable || got.PixelType != volume.Float32.String() {
		t.Errorf("info: %+v", got)
	}
	if s.cache.Len() != 0 {
		t.Error("chunk info should not load pixels into the cache")
	}
}

func TestNewTranslationResult_Kinds(t *testing.T) {
	translation, _ := volume.NewTranslationTransform([]float64{1, 2})
	affine, err := volume.NewAffineTransform([]float64{1, 0, 0, 1}, []float64{0, 0}, []float64{3, 4})
	if err != nil {
		t.Fatalf("NewAffineTransform failed: %v", err)
	}
	tests := []struct {
		tx   volume.Transform
		want string
	}{
		{volume.IdentityTransform{Dim: 2}, "identity"},
		{translation, "translation"},
		{affine, "affine"},
	}
	for _, tt := range tests {
		if got := NewTranslationResult(tt.tx).Transform; got != tt.want {
			t.Errorf("%T: got %q, want %q", tt.tx, got, tt.want)
		}
	}
}
