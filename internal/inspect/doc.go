// Package inspect answers point questions about a loaded volume: what it
// is, what a voxel holds, and how far apart two voxels are.
//
// Results are plain structs with JSON tags so the MCP server can return them
// directly.
//
// # Coordinates
//
// Indices are 0-based in x-first order, matching volume.Image. Physical
// points apply the image's origin, spacing and direction.
//
// # Colour
//
// UInt8 images with one or three components are also reported as colours
// (hex, RGB and HSL); other images report raw values only.
package inspect
