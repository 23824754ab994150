package volumeio

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ironsheep/volume-tools-mcp/internal/volume"
)

var metaElementTypes = map[string]volume.PixelType{
	"MET_UCHAR":  volume.UInt8,
	"MET_CHAR":   volume.Int8,
	"MET_USHORT": volume.UInt16,
	"MET_SHORT":  volume.Int16,
	"MET_UINT":   volume.UInt32,
	"MET_INT":    volume.Int32,
	"MET_FLOAT":  volume.Float32,
	"MET_DOUBLE": volume.Float64,
}

func metaElementType(pt volume.PixelType) string {
	for name, t := range metaElementTypes {
		if t == pt {
			return name
		}
	}
	return ""
}

// metaHeader is a parsed MetaImage header.
type metaHeader struct {
	size       []int
	spacing    []float64
	origin     []float64
	direction  []float64
	pixelType  volume.PixelType
	components int

	// dataFile is the path of the pixel data; equal to the header path for
	// LOCAL data.
	dataFile string

	// dataOffset is the byte offset of the first pixel within dataFile.
	dataOffset int64
}

func (h *metaHeader) info(path string) *Info {
	return &Info{
		Path:       path,
		Format:     FormatMetaImage,
		Size:       append([]int(nil), h.size...),
		Spacing:    append([]float64(nil), h.spacing...),
		Origin:     append([]float64(nil), h.origin...),
		Direction:  append([]float64(nil), h.direction...),
		PixelType:  h.pixelType,
		PixelName:  h.pixelType.String(),
		Components: h.components,
		Streamable: true,
	}
}

func (h *metaHeader) numberOfValues() int {
	n := h.components
	for _, s := range h.size {
		n *= s
	}
	return n
}

func (h *metaHeader) newImage(size []int) (*volume.Image, error) {
	img, err := volume.NewVector(size, h.pixelType, h.components)
	if err != nil {
		return nil, fmt.Errorf("failed to create image: %w", err)
	}
	if err := img.SetSpacing(h.spacing); err != nil {
		return nil, err
	}
	if err := img.SetOrigin(h.origin); err != nil {
		return nil, err
	}
	if err := img.SetDirection(h.direction); err != nil {
		return nil, err
	}
	return img, nil
}

// readMetaHeader parses the header of a .mha or .mhd file.
func readMetaHeader(path string) (*metaHeader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	fields := make(map[string]string)
	r := bufio.NewReader(f)
	var offset int64
	for {
		line, err := r.ReadString('\n')
		offset += int64(len(line))
		if err != nil && (err != io.EOF || line == "") {
			return nil, fmt.Errorf("failed to read MetaImage header %s: missing ElementDataFile", path)
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		fields[key] = strings.TrimSpace(value)
		if key == "ElementDataFile" {
			break
		}
	}

	h := &metaHeader{components: 1}

	if strings.EqualFold(fields["CompressedData"], "True") {
		return nil, fmt.Errorf("%w: compressed MetaImage data", ErrUnsupportedFormat)
	}
	if strings.EqualFold(fields["BinaryDataByteOrderMSB"], "True") || strings.EqualFold(fields["ElementByteOrderMSB"], "True") {
		return nil, fmt.Errorf("%w: big-endian MetaImage data", ErrUnsupportedFormat)
	}

	ndims, err := strconv.Atoi(fields["NDims"])
	if err != nil || ndims < 1 {
		return nil, fmt.Errorf("invalid MetaImage NDims %q", fields["NDims"])
	}
	if h.size, err = parseInts(fields["DimSize"], ndims); err != nil {
		return nil, fmt.Errorf("invalid MetaImage DimSize: %w", err)
	}

	h.spacing = ones(ndims)
	for _, key := range []string{"ElementSpacing", "ElementSize"} {
		if v, ok := fields[key]; ok {
			if h.spacing, err = parseFloats(v, ndims); err != nil {
				return nil, fmt.Errorf("invalid MetaImage %s: %w", key, err)
			}
			break
		}
	}

	h.origin = make([]float64, ndims)
	for _, key := range []string{"Offset", "Origin", "Position"} {
		if v, ok := fields[key]; ok {
			if h.origin, err = parseFloats(v, ndims); err != nil {
				return nil, fmt.Errorf("invalid MetaImage %s: %w", key, err)
			}
			break
		}
	}

	h.direction = make([]float64, ndims*ndims)
	for i := 0; i < ndims; i++ {
		h.direction[i*ndims+i] = 1
	}
	for _, key := range []string{"TransformMatrix", "Rotation", "Orientation"} {
		if v, ok := fields[key]; ok {
			m, err := parseFloats(v, ndims*ndims)
			if err != nil {
				return nil, fmt.Errorf("invalid MetaImage %s: %w", key, err)
			}
			h.direction = transpose(m, ndims)
			break
		}
	}

	if v, ok := fields["ElementNumberOfChannels"]; ok {
		if h.components, err = strconv.Atoi(v); err != nil || h.components < 1 {
			return nil, fmt.Errorf("invalid MetaImage ElementNumberOfChannels %q", v)
		}
	}

	pt, ok := metaElementTypes[fields["ElementType"]]
	if !ok {
		return nil, fmt.Errorf("%w: MetaImage ElementType %q", ErrUnsupportedFormat, fields["ElementType"])
	}
	h.pixelType = pt

	dataFile := fields["ElementDataFile"]
	switch {
	case dataFile == "":
		return nil, fmt.Errorf("failed to read MetaImage header %s: missing ElementDataFile", path)
	case strings.EqualFold(dataFile, "LOCAL"):
		h.dataFile = path
		h.dataOffset = offset
	case strings.EqualFold(dataFile, "LIST") || strings.Contains(dataFile, "%"):
		return nil, fmt.Errorf("%w: multi-file MetaImage data", ErrUnsupportedFormat)
	default:
		if !filepath.IsAbs(dataFile) {
			dataFile = filepath.Join(filepath.Dir(path), dataFile)
		}
		h.dataFile = dataFile
		if v, ok := fields["HeaderSize"]; ok {
			if h.dataOffset, err = strconv.ParseInt(v, 10, 64); err != nil || h.dataOffset < 0 {
				return nil, fmt.Errorf("invalid MetaImage HeaderSize %q", v)
			}
		}
	}
	return h, nil
}

func readMetaImage(path string) (*volume.Image, error) {
	h, err := readMetaHeader(path)
	if err != nil {
		return nil, err
	}
	img, err := h.newImage(h.size)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(h.dataFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open image data: %w", err)
	}
	defer f.Close()
	if _, err := f.Seek(h.dataOffset, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to seek image data: %w", err)
	}

	raw := make([]byte, h.numberOfValues()*h.pixelType.Size())
	if _, err := io.ReadFull(bufio.NewReader(f), raw); err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}
	decodeValues(h.pixelType, raw, img.Buffer())
	return img, nil
}

// readMetaRegion reads a region by seeking to each contiguous x-run.
func readMetaRegion(path string, index, size []int) (*volume.Image, error) {
	h, err := readMetaHeader(path)
	if err != nil {
		return nil, err
	}
	dim := len(h.size)
	if len(index) != dim || len(size) != dim {
		return nil, fmt.Errorf("%w: region needs %d entries", volume.ErrDimensionMismatch, dim)
	}
	for i := range index {
		if index[i] < 0 || index[i]+size[i] > h.size[i] {
			return nil, fmt.Errorf("%w: region [%v, %v) outside size %v", volume.ErrOutOfBounds, index, size, h.size)
		}
	}

	full, err := h.newImage(h.size)
	if err != nil {
		return nil, err
	}
	start := full.TransformIndexToPhysicalPoint(index)

	img, err := h.newImage(size)
	if err != nil {
		return nil, err
	}
	if err := img.SetOrigin(start); err != nil {
		return nil, err
	}

	f, err := os.Open(h.dataFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open image data: %w", err)
	}
	defer f.Close()

	elem := h.pixelType.Size() * h.components
	runValues := size[0] * h.components
	raw := make([]byte, runValues*h.pixelType.Size())
	buf := img.Buffer()

	strides := make([]int, dim)
	stride := 1
	for i := range h.size {
		strides[i] = stride
		stride *= h.size[i]
	}

	rows := make([]int, dim)
	copy(rows, size)
	rows[0] = 1
	pos := make([]int, dim)
	out := 0
	var readErr error
	volume.ForEachIndex(rows, func(rel []int) {
		if readErr != nil {
			return
		}
		linear := 0
		for i := range rel {
			pos[i] = index[i] + rel[i]
			linear += pos[i] * strides[i]
		}
		off := h.dataOffset + int64(linear)*int64(elem)
		if _, err := f.ReadAt(raw, off); err != nil {
			readErr = fmt.Errorf("failed to read image data at offset %d: %w", off, err)
			return
		}
		decodeValues(h.pixelType, raw, buf[out:out+runValues])
		out += runValues
	})
	if readErr != nil {
		return nil, readErr
	}
	return img, nil
}

// writeMetaImage writes .mha with LOCAL data, or .mhd with a sibling .raw.
func writeMetaImage(img *volume.Image, path string) error {
	elementType := metaElementType(img.PixelType())
	if elementType == "" {
		return fmt.Errorf("%w: %v", volume.ErrPixelType, img.PixelType())
	}

	detached := strings.EqualFold(filepath.Ext(path), ".mhd")
	dataName := "LOCAL"
	if detached {
		dataName = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)) + ".raw"
	}

	var hdr strings.Builder
	dim := img.Dimension()
	fmt.Fprintf(&hdr, "ObjectType = Image\n")
	fmt.Fprintf(&hdr, "NDims = %d\n", dim)
	fmt.Fprintf(&hdr, "BinaryData = True\n")
	fmt.Fprintf(&hdr, "BinaryDataByteOrderMSB = False\n")
	fmt.Fprintf(&hdr, "CompressedData = False\n")
	fmt.Fprintf(&hdr, "TransformMatrix = %s\n", joinFloats(transpose(img.Direction(), dim)))
	fmt.Fprintf(&hdr, "Offset = %s\n", joinFloats(img.Origin()))
	fmt.Fprintf(&hdr, "CenterOfRotation = %s\n", joinFloats(make([]float64, dim)))
	fmt.Fprintf(&hdr, "ElementSpacing = %s\n", joinFloats(img.Spacing()))
	fmt.Fprintf(&hdr, "DimSize = %s\n", joinInts(img.Size()))
	if img.Components() > 1 {
		fmt.Fprintf(&hdr, "ElementNumberOfChannels = %d\n", img.Components())
	}
	fmt.Fprintf(&hdr, "ElementType = %s\n", elementType)
	fmt.Fprintf(&hdr, "ElementDataFile = %s\n", dataName)

	raw := encodeValues(img.PixelType(), img.Buffer())

	if detached {
		if err := os.WriteFile(filepath.Join(filepath.Dir(path), dataName), raw, 0o644); err != nil {
			return fmt.Errorf("failed to write image data: %w", err)
		}
		if err := os.WriteFile(path, []byte(hdr.String()), 0o644); err != nil {
			return fmt.Errorf("failed to write image header: %w", err)
		}
		return nil
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create image file: %w", err)
	}
	w := bufio.NewWriter(f)
	if _, err := w.WriteString(hdr.String()); err != nil {
		f.Close()
		return fmt.Errorf("failed to write image header: %w", err)
	}
	if _, err := w.Write(raw); err != nil {
		f.Close()
		return fmt.Errorf("failed to write image data: %w", err)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("failed to write image data: %w", err)
	}
	return f.Close()
}

func decodeValues(pt volume.PixelType, raw []byte, dst []float64) {
	le := binary.LittleEndian
	for i := range dst {
		switch pt {
		case volume.UInt8:
			dst[i] = float64(raw[i])
		case volume.Int8:
			dst[i] = float64(int8(raw[i]))
		case volume.UInt16:
			dst[i] = float64(le.Uint16(raw[i*2:]))
		case volume.Int16:
			dst[i] = float64(int16(le.Uint16(raw[i*2:])))
		case volume.UInt32:
			dst[i] = float64(le.Uint32(raw[i*4:]))
		case volume.Int32:
			dst[i] = float64(int32(le.Uint32(raw[i*4:])))
		case volume.Float32:
			dst[i] = float64(math.Float32frombits(le.Uint32(raw[i*4:])))
		case volume.Float64:
			dst[i] = math.Float64frombits(le.Uint64(raw[i*8:]))
		}
	}
}

func encodeValues(pt volume.PixelType, values []float64) []byte {
	le := binary.LittleEndian
	size := pt.Size()
	raw := make([]byte, len(values)*size)
	for i, v := range values {
		b := raw[i*size:]
		switch pt {
		case volume.UInt8:
			b[0] = uint8(v)
		case volume.Int8:
			b[0] = uint8(int8(v))
		case volume.UInt16:
			le.PutUint16(b, uint16(v))
		case volume.Int16:
			le.PutUint16(b, uint16(int16(v)))
		case volume.UInt32:
			le.PutUint32(b, uint32(v))
		case volume.Int32:
			le.PutUint32(b, uint32(int32(v)))
		case volume.Float32:
			le.PutUint32(b, math.Float32bits(float32(v)))
		case volume.Float64:
			le.PutUint64(b, math.Float64bits(v))
		}
	}
	return raw
}

func parseInts(s string, n int) ([]int, error) {
	parts := strings.Fields(s)
	if len(parts) != n {
		return nil, fmt.Errorf("expected %d values, got %d", n, len(parts))
	}
	out := make([]int, n)
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func parseFloats(s string, n int) ([]float64, error) {
	parts := strings.Fields(s)
	if len(parts) != n {
		return nil, fmt.Errorf("expected %d values, got %d", n, len(parts))
	}
	out := make([]float64, n)
	for i, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, " ")
}

func joinFloats(values []float64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return strings.Join(parts, " ")
}

// transpose converts between the row-major direction matrix and the
// TransformMatrix layout, which stores each axis direction consecutively.
func transpose(m []float64, n int) []float64 {
	out := make([]float64, n*n)
	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			out[c*n+r] = m[r*n+c]
		}
	}
	return out
}

func ones(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 1
	}
	return out
}
