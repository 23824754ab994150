// Package server implements the MCP (Model Context Protocol) server for the
// volume tools.
//
// The server speaks JSON-RPC 2.0 over stdio, one request per line on stdin
// and one response per line on stdout. Supported methods are initialize,
// notifications/initialized, tools/list, tools/call and ping.
//
// # Available Tools
//
// Inspection:
//   - volume_load: geometry, pixel type and statistics
//   - volume_sample: values (and colour for 8-bit images) at indices
//   - volume_measure_distance: physical and index distance between indices
//   - volume_slice_preview: a 2D slice rendered as base64 PNG
//
// Resampling:
//   - volume_make_isotropic: equal spacing on every axis
//   - volume_resize: new size, same physical extent
//   - volume_resize_and_scale: 8-bit thumbnail
//
// Intensity and annotation:
//   - volume_histogram_equalization
//   - volume_overlay_bounding_boxes
//
// Registration:
//   - volume_fft_translation: initial translation by masked FFT correlation
//
// Interoperability:
//   - volume_export_vtk: write a VTK ImageData (.vti) file
//   - volume_chunk_info: block plan for reading a file in chunks
//
// Tools that produce an image take an optional output_path. Without one the
// image is written under the configured cache directory.
//
// # Image Caching
//
// Loaded images are cached by path for the lifetime of the process. Writing
// a file through a tool evicts any cached copy of that path.
//
// # Error Handling
//
// Tool failures are JSON-RPC errors with code -32000 and the Go error string
// in data. Malformed tools/call params give -32602, unknown methods -32601
// and unparseable lines -32700.
//
// # Usage
//
//	srv := server.NewWithSettings(cfg.Processing)
//	if err := srv.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
package server
