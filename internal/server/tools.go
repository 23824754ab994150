package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func pathProperty(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": description,
	}
}

func outputPathProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Where to write the result (.mha, .mhd, .vti or .png). Default: a file in the server's cache directory",
	}
}

func intArrayProperty(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "array",
		"items":       map[string]interface{}{"type": "integer"},
		"description": description,
	}
}

func numberArrayProperty(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "array",
		"items":       map[string]interface{}{"type": "number"},
		"description": description,
	}
}

func interpolatorProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"enum":        []string{"linear", "nearest"},
		"description": "Interpolation method (default linear)",
	}
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Inspection
		{
			Name:        "volume_load",
			Description: "Load an image or volume (.mha, .mhd, .vti, .png, .jpg, .gif) and return its size, spacing, origin, direction, pixel type and intensity range.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty("Absolute path to the image file"),
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "volume_sample",
			Description: "Read voxel values at one or more indices. 8-bit images are also reported as colours.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty("Absolute path to the image file"),
					"points": map[string]interface{}{
						"type": "array",
						"items": map[string]interface{}{
							"type": "object",
							"properties": map[string]interface{}{
								"index": intArrayProperty("Voxel index, x first"),
								"label": map[string]interface{}{"type": "string", "description": "Optional label for this point"},
							},
							"required": []string{"index"},
						},
						"description": "Points to sample",
					},
				},
				"required": []string{"path", "points"},
			},
		},
		{
			Name:        "volume_measure_distance",
			Description: "Measure the distance between two voxels in index units and in physical units.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty("Absolute path to the image file"),
					"a":    intArrayProperty("First voxel index"),
					"b":    intArrayProperty("Second voxel index"),
				},
				"required": []string{"path", "a", "b"},
			},
		},
		{
			Name:        "volume_slice_preview",
			Description: "Render one 2D slice of a volume as a base64-encoded PNG. Intensities are rescaled to [0,255].",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty("Absolute path to the image file"),
					"axis": map[string]interface{}{
						"type":        "integer",
						"description": "Axis the slice is taken across (default: last axis)",
					},
					"slice": map[string]interface{}{
						"type":        "integer",
						"description": "Slice index along axis (default: middle slice)",
					},
					"scale": map[string]interface{}{
						"type":        "number",
						"description": "Optional scale factor. Default 1.0",
						"default":     1.0,
					},
				},
				"required": []string{"path"},
			},
		},

		// Resampling
		{
			Name:        "volume_make_isotropic",
			Description: "Resample a volume so every axis has the same spacing, optionally standardizing the axes to an identity direction.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path":        pathProperty("Absolute path to the image file"),
					"output_path": outputPathProperty(),
					"spacing": map[string]interface{}{
						"type":        "number",
						"description": "Target spacing (default: the smallest input spacing)",
					},
					"interpolator":     interpolatorProperty(),
					"default_value":    map[string]interface{}{"type": "number", "description": "Value for points outside the input (default 0)"},
					"standardize_axes": map[string]interface{}{"type": "boolean", "description": "Resample onto an identity direction grid (default false)"},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "volume_resize",
			Description: "Resize a volume to a new size in voxels, preserving the physical extent and optionally the aspect ratio.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path":          pathProperty("Absolute path to the image file"),
					"output_path":   outputPathProperty(),
					"size":          intArrayProperty("New size, one entry per axis"),
					"isotropic":     map[string]interface{}{"type": "boolean", "description": "Keep the aspect ratio by using one spacing for all axes (default true)"},
					"fill":          map[string]interface{}{"type": "boolean", "description": "Pad to exactly the requested size when isotropic (default true)"},
					"interpolator":  interpolatorProperty(),
					"outside_value": map[string]interface{}{"type": "number", "description": "Value for padding (default 0)"},
					"use_nearest_extrapolator": map[string]interface{}{
						"type":        "boolean",
						"description": "Extend border voxels into the padding instead of outside_value (default false)",
					},
				},
				"required": []string{"path", "size"},
			},
		},
		{
			Name:        "volume_resize_and_scale",
			Description: "Make a UInt8 thumbnail: rescale intensities to [0,255] and resize with a centred isotropic grid.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path":          pathProperty("Absolute path to the image file"),
					"output_path":   outputPathProperty(),
					"size":          intArrayProperty("New size, one entry per axis, each at least 2"),
					"outside_value": map[string]interface{}{"type": "number", "description": "Value for padding (default 0)"},
				},
				"required": []string{"path", "size"},
			},
		},

		// Intensity and annotation
		{
			Name:        "volume_histogram_equalization",
			Description: "Equalize the intensity histogram of a scalar image by matching it against a uniform ramp.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path":              pathProperty("Absolute path to the image file"),
					"output_path":       outputPathProperty(),
					"levels":            map[string]interface{}{"type": "integer", "description": "Histogram levels and output range [0, levels-1] (default 256)"},
					"match_points":      map[string]interface{}{"type": "integer", "description": "Quantiles matched (default 32)"},
					"threshold_at_mean": map[string]interface{}{"type": "boolean", "description": "Only match intensities above the mean (default false)"},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "volume_overlay_bounding_boxes",
			Description: "Draw bounding boxes on a 2D 8-bit image and write the RGB result.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path":        pathProperty("Absolute path to the image file"),
					"output_path": outputPathProperty(),
					"boxes": map[string]interface{}{
						"type":        "array",
						"items":       numberArrayProperty("Four numbers in the chosen format"),
						"description": "Bounding boxes",
					},
					"format": map[string]interface{}{
						"type":        "string",
						"enum":        []string{"MINXY_MAXXY", "MINXY_WH", "CENT_WH", "CENT_HALFWH"},
						"description": "How the four numbers are read (default MINXY_MAXXY)",
					},
					"normalized": map[string]interface{}{"type": "boolean", "description": "Coordinates are fractions of width and height"},
					"colors": map[string]interface{}{
						"type":        "array",
						"items":       map[string]interface{}{"type": "string"},
						"description": "One hex colour per box such as #00ff00 (default red)",
					},
					"half_line_width": map[string]interface{}{"type": "integer", "description": "Line width is 1+2*half_line_width (default 0)"},
				},
				"required": []string{"path", "boxes"},
			},
		},

		// Registration
		{
			Name:        "volume_fft_translation",
			Description: "Estimate the translation between two images by FFT normalized cross correlation. The translation maps fixed points onto moving points.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"fixed_path":  pathProperty("Absolute path to the fixed image"),
					"moving_path": pathProperty("Absolute path to the moving image"),
					"required_fraction_of_overlapping_pixels": map[string]interface{}{
						"type":        "number",
						"description": "Minimum overlap, as a fraction in [0,1] of the smaller image (default 0)",
					},
					"masked_pixel_value":  map[string]interface{}{"type": "number", "description": "Pixels with this value are ignored"},
					"initial_translation": numberArrayProperty("Translation applied to the moving image before correlating"),
				},
				"required": []string{"fixed_path", "moving_path"},
			},
		},

		// Interoperability
		{
			Name:        "volume_export_vtk",
			Description: "Write a 2D or 3D image as a VTK XML ImageData (.vti) file for visualization tools.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path":        pathProperty("Absolute path to the image file"),
					"output_path": pathProperty("Destination .vti file (default: cache directory)"),
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "volume_chunk_info",
			Description: "Plan a chunked, parallel read of an image file and report the block grid. Only the header is read.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path":   pathProperty("Absolute path to the image file"),
					"chunks": intArrayProperty("Block length per axis, -1 for the whole axis (default: one block)"),
				},
				"required": []string{"path"},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
