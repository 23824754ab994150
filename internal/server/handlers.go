package server

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ironsheep/volume-tools-mcp/internal/bridge"
	"github.com/ironsheep/volume-tools-mcp/internal/chunked"
	"github.com/ironsheep/volume-tools-mcp/internal/inspect"
	"github.com/ironsheep/volume-tools-mcp/internal/intensity"
	"github.com/ironsheep/volume-tools-mcp/internal/logging"
	"github.com/ironsheep/volume-tools-mcp/internal/overlay"
	"github.com/ironsheep/volume-tools-mcp/internal/registration"
	"github.com/ironsheep/volume-tools-mcp/internal/resample"
	"github.com/ironsheep/volume-tools-mcp/internal/volume"
	"github.com/ironsheep/volume-tools-mcp/internal/volumeio"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "volume_load", "volume_resize").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, codeInvalidParams, "Invalid params", err.Error())
	}
	if len(params.Arguments) == 0 {
		params.Arguments = json.RawMessage("{}")
	}

	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	if err != nil {
		logging.Warnf("tool %s failed: %v", params.Name, err)
		return s.errorResponse(req.ID, codeToolFailed, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
//
// Each tool handler:
//  1. Unmarshals arguments from JSON
//  2. Applies default values for optional parameters
//  3. Loads images from cache as needed
//  4. Calls the library function and writes any output image
//  5. Returns the result or error
func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	switch name {
	// Inspection
	case "volume_load":
		return s.handleLoad(args)
	case "volume_sample":
		return s.handleSample(args)
	case "volume_measure_distance":
		return s.handleMeasureDistance(args)
	case "volume_slice_preview":
		return s.handleSlicePreview(args)

	// Resampling
	case "volume_make_isotropic":
		return s.handleMakeIsotropic(ctx, args)
	case "volume_resize":
		return s.handleResize(ctx, args)
	case "volume_resize_and_scale":
		return s.handleResizeAndScale(ctx, args)

	// Intensity and annotation
	case "volume_histogram_equalization":
		return s.handleHistogramEqualization(args)
	case "volume_overlay_bounding_boxes":
		return s.handleOverlayBoundingBoxes(args)

	// Registration
	case "volume_fft_translation":
		return s.handleFFTTranslation(ctx, args)

	// Interoperability
	case "volume_export_vtk":
		return s.handleExportVTK(args)
	case "volume_chunk_info":
		return s.handleChunkInfo(args)

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// Panics are suppressed; on marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// load reads an input image through the cache.
func (s *Server) load(path string) (*volume.Image, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: path is required", volume.ErrInvalidArgument)
	}
	return s.cache.Load(path)
}

// OutputResult describes an image written by a tool.
type OutputResult struct {
	OutputPath string           `json:"output_path"`
	Image      *inspect.Summary `json:"image"`
}

// write stores img at outputPath, or under the cache directory when it is
// empty, and drops any stale cached copy.
func (s *Server) write(img *volume.Image, inputPath, outputPath, suffix, ext string) (*OutputResult, error) {
	if outputPath == "" {
		base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
		dir := s.settings.CacheDir
		if dir == "" {
			dir = os.TempDir()
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
		outputPath = filepath.Join(dir, base+"_"+suffix+ext)
	}
	if err := volumeio.WriteImage(img, outputPath); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", outputPath, err)
	}
	s.cache.Evict(outputPath)
	logging.Infof("wrote %s", outputPath)
	return &OutputResult{OutputPath: outputPath, Image: inspect.Summarize(outputPath, img)}, nil
}

// === Inspection Handlers ===

type pathArgs struct {
	Path string `json:"path"`
}

func (s *Server) handleLoad(args json.RawMessage) (interface{}, error) {
	var a pathArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	img, err := s.load(a.Path)
	if err != nil {
		return nil, err
	}
	return inspect.Summarize(a.Path, img), nil
}

type sampleArgs struct {
	Path   string                 `json:"path"`
	Points []inspect.LabeledIndex `json:"points"`
}

func (s *Server) handleSample(args json.RawMessage) (interface{}, error) {
	var a sampleArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if len(a.Points) == 0 {
		return nil, fmt.Errorf("%w: at least one point is required", volume.ErrInvalidArgument)
	}
	img, err := s.load(a.Path)
	if err != nil {
		return nil, err
	}
	return inspect.SampleMulti(img, a.Points)
}

type measureDistanceArgs struct {
	Path string `json:"path"`
	A    []int  `json:"a"`
	B    []int  `json:"b"`
}

func (s *Server) handleMeasureDistance(args json.RawMessage) (interface{}, error) {
	var a measureDistanceArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	img, err := s.load(a.Path)
	if err != nil {
		return nil, err
	}
	return inspect.MeasureDistance(img, a.A, a.B)
}

type slicePreviewArgs struct {
	Path  string  `json:"path"`
	Axis  *int    `json:"axis"`
	Slice *int    `json:"slice"`
	Scale float64 `json:"scale"`
}

// SlicePreviewResult is a rendered slice with its position.
type SlicePreviewResult struct {
	Axis  int `json:"axis"`
	Slice int `json:"slice"`
	*bridge.PreviewResult
}

func (s *Server) handleSlicePreview(args json.RawMessage) (interface{}, error) {
	var a slicePreviewArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Scale == 0 {
		a.Scale = 1.0
	}
	img, err := s.load(a.Path)
	if err != nil {
		return nil, err
	}

	dim := img.Dimension()
	res := &SlicePreviewResult{Axis: dim - 1}
	if a.Axis != nil {
		res.Axis = *a.Axis
	}
	plane := img
	if dim > 2 {
		slice, err := extractSlice(img, res.Axis, a.Slice)
		if err != nil {
			return nil, err
		}
		plane = slice.image
		res.Slice = slice.index
	}

	if plane.Components() == 3 && plane.PixelType() != volume.UInt8 {
		if plane, err = plane.RescaleIntensity(0, 255).Cast(volume.UInt8); err != nil {
			return nil, err
		}
	}
	preview, err := bridge.Preview(plane, a.Scale)
	if err != nil {
		return nil, err
	}
	res.PreviewResult = preview
	return res, nil
}

type extracted struct {
	image *volume.Image
	index int
}

// extractSlice collapses axis at slice (middle when nil) and keeps the
// first two remaining axes at their first index.
func extractSlice(img *volume.Image, axis int, slice *int) (*extracted, error) {
	size := img.Size()
	if axis < 0 || axis >= len(size) {
		return nil, fmt.Errorf("%w: axis %d for a %dD image", volume.ErrInvalidArgument, axis, len(size))
	}
	pos := size[axis] / 2
	if slice != nil {
		pos = *slice
	}
	if pos < 0 || pos >= size[axis] {
		return nil, fmt.Errorf("%w: slice %d outside [0, %d)", volume.ErrOutOfBounds, pos, size[axis])
	}

	index := make([]int, len(size))
	extract := make([]int, len(size))
	kept := 0
	for i := range size {
		if i == axis || kept == 2 {
			continue
		}
		extract[i] = size[i]
		kept++
	}
	index[axis] = pos
	out, err := img.Extract(index, extract)
	if err != nil {
		return nil, err
	}
	return &extracted{image: out, index: pos}, nil
}

// === Resampling Handlers ===

type makeIsotropicArgs struct {
	Path            string  `json:"path"`
	OutputPath      string  `json:"output_path"`
	Spacing         float64 `json:"spacing"`
	Interpolator    string  `json:"interpolator"`
	DefaultValue    float64 `json:"default_value"`
	StandardizeAxes bool    `json:"standardize_axes"`
}

func (s *Server) handleMakeIsotropic(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a makeIsotropicArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	interp, err := resample.ParseInterpolator(a.Interpolator)
	if err != nil {
		return nil, err
	}
	img, err := s.load(a.Path)
	if err != nil {
		return nil, err
	}
	out, err := resample.MakeIsotropic(ctx, img, resample.IsotropicOptions{
		Interpolator:    interp,
		Spacing:         a.Spacing,
		DefaultValue:    a.DefaultValue,
		StandardizeAxes: a.StandardizeAxes,
		Workers:         s.settings.Workers,
	})
	if err != nil {
		return nil, err
	}
	return s.write(out, a.Path, a.OutputPath, "isotropic", ".mha")
}

type resizeArgs struct {
	Path                   string  `json:"path"`
	OutputPath             string  `json:"output_path"`
	Size                   []int   `json:"size"`
	Isotropic              *bool   `json:"isotropic"`
	Fill                   *bool   `json:"fill"`
	Interpolator           string  `json:"interpolator"`
	OutsideValue           float64 `json:"outside_value"`
	UseNearestExtrapolator bool    `json:"use_nearest_extrapolator"`
}

func (s *Server) handleResize(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a resizeArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	opts := resample.DefaultResizeOptions()
	if a.Isotropic != nil {
		opts.Isotropic = *a.Isotropic
	}
	if a.Fill != nil {
		opts.Fill = *a.Fill
	}
	interp, err := resample.ParseInterpolator(a.Interpolator)
	if err != nil {
		return nil, err
	}
	opts.Interpolator = interp
	opts.OutsideValue = a.OutsideValue
	opts.UseNearestExtrapolator = a.UseNearestExtrapolator
	opts.Workers = s.settings.Workers

	img, err := s.load(a.Path)
	if err != nil {
		return nil, err
	}
	out, err := resample.Resize(ctx, img, a.Size, opts)
	if err != nil {
		return nil, err
	}
	return s.write(out, a.Path, a.OutputPath, "resized", ".mha")
}

type resizeAndScaleArgs struct {
	Path         string  `json:"path"`
	OutputPath   string  `json:"output_path"`
	Size         []int   `json:"size"`
	OutsideValue float64 `json:"outside_value"`
}

func (s *Server) handleResizeAndScale(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a resizeAndScaleArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	img, err := s.load(a.Path)
	if err != nil {
		return nil, err
	}
	out, err := resample.ResizeAndScale(ctx, img, a.Size, resample.ScaleOptions{
		OutsideValue: a.OutsideValue,
		Workers:      s.settings.Workers,
	})
	if err != nil {
		return nil, err
	}
	return s.write(out, a.Path, a.OutputPath, "thumbnail", ".mha")
}

// === Intensity and Annotation Handlers ===

type histogramEqualizationArgs struct {
	Path            string `json:"path"`
	OutputPath      string `json:"output_path"`
	Levels          int    `json:"levels"`
	MatchPoints     int    `json:"match_points"`
	ThresholdAtMean bool   `json:"threshold_at_mean"`
}

func (s *Server) handleHistogramEqualization(args json.RawMessage) (interface{}, error) {
	var a histogramEqualizationArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	opts := intensity.DefaultMatchOptions()
	if a.Levels != 0 {
		opts.Levels = a.Levels
	}
	if a.MatchPoints != 0 {
		opts.MatchPoints = a.MatchPoints
	}
	opts.ThresholdAtMean = a.ThresholdAtMean

	img, err := s.load(a.Path)
	if err != nil {
		return nil, err
	}
	out, err := intensity.HistogramEqualization(img, opts)
	if err != nil {
		return nil, err
	}
	return s.write(out, a.Path, a.OutputPath, "equalized", ".mha")
}

type overlayArgs struct {
	Path          string        `json:"path"`
	OutputPath    string        `json:"output_path"`
	Boxes         []overlay.Box `json:"boxes"`
	Format        string        `json:"format"`
	Normalized    bool          `json:"normalized"`
	Colors        []string      `json:"colors"`
	HalfLineWidth int           `json:"half_line_width"`
}

// OverlayResult is the written overlay and whether any box was skipped.
type OverlayResult struct {
	*OutputResult
	OutOfBounds bool `json:"out_of_bounds"`
}

func (s *Server) handleOverlayBoundingBoxes(args json.RawMessage) (interface{}, error) {
	var a overlayArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	colors, err := overlay.ParseColors(a.Colors)
	if err != nil {
		return nil, err
	}
	img, err := s.load(a.Path)
	if err != nil {
		return nil, err
	}
	out, oob, err := overlay.OverlayBoundingBoxes(img, a.Boxes, overlay.Options{
		Format:        overlay.BoxFormat(a.Format),
		Normalized:    a.Normalized,
		Colors:        colors,
		HalfLineWidth: a.HalfLineWidth,
	})
	if err != nil {
		return nil, err
	}
	written, err := s.write(out, a.Path, a.OutputPath, "boxes", ".png")
	if err != nil {
		return nil, err
	}
	return &OverlayResult{OutputResult: written, OutOfBounds: oob}, nil
}

// === Registration Handlers ===

type fftTranslationArgs struct {
	FixedPath          string    `json:"fixed_path"`
	MovingPath         string    `json:"moving_path"`
	RequiredFraction   float64   `json:"required_fraction_of_overlapping_pixels"`
	MaskedPixelValue   *float64  `json:"masked_pixel_value"`
	InitialTranslation []float64 `json:"initial_translation"`
}

// TranslationResult is an estimated translation.
type TranslationResult struct {
	Translation []float64 `json:"translation"`
	Transform   string    `json:"transform"`
}

func (s *Server) handleFFTTranslation(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a fftTranslationArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	fixed, err := s.load(a.FixedPath)
	if err != nil {
		return nil, err
	}
	moving, err := s.load(a.MovingPath)
	if err != nil {
		return nil, err
	}

	opts := registration.Options{
		RequiredFractionOfOverlappingPixels: a.RequiredFraction,
		MaskedPixelValue:                    a.MaskedPixelValue,
		Workers:                             s.settings.Workers,
	}
	if a.InitialTranslation != nil {
		initial, err := volume.NewTranslationTransform(a.InitialTranslation)
		if err != nil {
			return nil, err
		}
		opts.InitialTransform = initial
	}
	tx, err := registration.FFTTranslationInitialization(ctx, fixed, moving, opts)
	if err != nil {
		return nil, err
	}
	return NewTranslationResult(tx), nil
}

// NewTranslationResult reports tx's translation and its kind: "identity",
// "translation" or "affine".
func NewTranslationResult(tx volume.Transform) *TranslationResult {
	kind := "unknown"
	switch tx.(type) {
	case volume.IdentityTransform, *volume.IdentityTransform:
		kind = "identity"
	case *volume.TranslationTransform:
		kind = "translation"
	case *volume.AffineTransform:
		kind = "affine"
	}
	return &TranslationResult{Translation: tx.Translation(), Transform: kind}
}

// === Interoperability Handlers ===

type exportVTKArgs struct {
	Path       string `json:"path"`
	OutputPath string `json:"output_path"`
}

// ExportVTKResult describes a written VTK file.
type ExportVTKResult struct {
	*OutputResult
	Extent             [6]int `json:"whole_extent"`
	ScalarType         string `json:"scalar_type"`
	NumberOfComponents int    `json:"number_of_components"`
}

func (s *Server) handleExportVTK(args json.RawMessage) (interface{}, error) {
	var a exportVTKArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.OutputPath != "" && !strings.EqualFold(filepath.Ext(a.OutputPath), ".vti") {
		return nil, fmt.Errorf("%w: output_path must end in .vti", volume.ErrInvalidArgument)
	}
	img, err := s.load(a.Path)
	if err != nil {
		return nil, err
	}
	vtk, err := bridge.ToVTK(img)
	if err != nil {
		return nil, err
	}
	written, err := s.write(img, a.Path, a.OutputPath, "vtk", ".vti")
	if err != nil {
		return nil, err
	}
	return &ExportVTKResult{
		OutputResult:       written,
		Extent:             vtk.Extent(),
		ScalarType:         vtk.ScalarType.String(),
		NumberOfComponents: vtk.NumberOfComponents,
	}, nil
}

type chunkInfoArgs struct {
	Path   string `json:"path"`
	Chunks []int  `json:"chunks"`
}

// ChunkInfoResult is the block plan of a chunked read.
type ChunkInfoResult struct {
	Shape      []int   `json:"shape"`
	Chunks     [][]int `json:"chunks"`
	NumBlocks  []int   `json:"num_blocks"`
	PixelType  string  `json:"pixel_type"`
	Streamable bool    `json:"streamable"`
}

func (s *Server) handleChunkInfo(args json.RawMessage) (interface{}, error) {
	var a chunkInfoArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Path == "" {
		return nil, fmt.Errorf("%w: path is required", volume.ErrInvalidArgument)
	}
	arr, err := chunked.FromFile(a.Path, a.Chunks)
	if err != nil {
		return nil, err
	}
	return &ChunkInfoResult{
		Shape:      arr.Shape,
		Chunks:     arr.Chunks,
		NumBlocks:  arr.NumBlocks(),
		PixelType:  arr.Info().PixelName,
		Streamable: arr.Info().Streamable,
	}, nil
}
