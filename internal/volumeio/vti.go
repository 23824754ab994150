package volumeio

import (
	"bufio"
	"encoding/xml"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/ironsheep/volume-tools-mcp/internal/bridge"
	"github.com/ironsheep/volume-tools-mcp/internal/volume"
)

var vtkTypeNames = map[volume.PixelType]string{
	volume.UInt8:   "UInt8",
	volume.Int8:    "Int8",
	volume.UInt16:  "UInt16",
	volume.Int16:   "Int16",
	volume.UInt32:  "UInt32",
	volume.Int32:   "Int32",
	volume.Float32: "Float32",
	volume.Float64: "Float64",
}

type vtkFile struct {
	XMLName   xml.Name     `xml:"VTKFile"`
	Type      string       `xml:"type,attr"`
	Version   string       `xml:"version,attr"`
	ByteOrder string       `xml:"byte_order,attr"`
	ImageData vtkImageData `xml:"ImageData"`
}

type vtkImageData struct {
	WholeExtent string   `xml:"WholeExtent,attr"`
	Origin      string   `xml:"Origin,attr"`
	Spacing     string   `xml:"Spacing,attr"`
	Direction   string   `xml:"Direction,attr,omitempty"`
	Piece       vtkPiece `xml:"Piece"`
}

type vtkPiece struct {
	Extent    string       `xml:"Extent,attr"`
	PointData vtkPointData `xml:"PointData"`
}

type vtkPointData struct {
	Scalars string         `xml:"Scalars,attr,omitempty"`
	Arrays  []vtkDataArray `xml:"DataArray"`
}

type vtkDataArray struct {
	Type               string `xml:"type,attr"`
	Name               string `xml:"Name,attr"`
	NumberOfComponents int    `xml:"NumberOfComponents,attr,omitempty"`
	Format             string `xml:"format,attr"`
	Data               string `xml:",chardata"`
}

func writeVTI(img *volume.Image, path string) error {
	v, err := bridge.ToVTK(img)
	if err != nil {
		return err
	}
	typeName, ok := vtkTypeNames[v.ScalarType]
	if !ok {
		return fmt.Errorf("%w: %v", volume.ErrPixelType, v.ScalarType)
	}

	ext := v.Extent()
	extent := joinInts(ext[:])

	var data strings.Builder
	data.WriteString("\n")
	for i, s := range v.Scalars {
		if i > 0 {
			if i%(6*v.NumberOfComponents) == 0 {
				data.WriteString("\n")
			} else {
				data.WriteString(" ")
			}
		}
		data.WriteString(strconv.FormatFloat(s, 'g', -1, 64))
	}
	data.WriteString("\n")

	doc := vtkFile{
		Type:      "ImageData",
		Version:   "1.0",
		ByteOrder: "LittleEndian",
		ImageData: vtkImageData{
			WholeExtent: extent,
			Origin:      joinFloats(v.Origin[:]),
			Spacing:     joinFloats(v.Spacing[:]),
			Direction:   joinFloats(v.Direction[:]),
			Piece: vtkPiece{
				Extent: extent,
				PointData: vtkPointData{
					Scalars: "scalars",
					Arrays: []vtkDataArray{{
						Type:               typeName,
						Name:               "scalars",
						NumberOfComponents: v.NumberOfComponents,
						Format:             "ascii",
						Data:               data.String(),
					}},
				},
			},
		},
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create image file: %w", err)
	}
	w := bufio.NewWriter(f)
	w.WriteString(xml.Header)
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode VTK image data: %w", err)
	}
	w.WriteString("\n")
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("failed to write VTK image data: %w", err)
	}
	return f.Close()
}

func readVTI(path string) (*volume.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	var doc vtkFile
	if err := xml.NewDecoder(bufio.NewReader(f)).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode VTK image data: %w", err)
	}
	if doc.Type != "ImageData" {
		return nil, fmt.Errorf("%w: VTK file type %q", ErrUnsupportedFormat, doc.Type)
	}

	extent, err := parseInts(doc.ImageData.WholeExtent, 6)
	if err != nil {
		return nil, fmt.Errorf("invalid VTK WholeExtent: %w", err)
	}
	v := &bridge.VTKImageData{}
	for i := 0; i < 3; i++ {
		v.Dimensions[i] = extent[2*i+1] - extent[2*i] + 1
	}

	spacing, err := parseFloats(doc.ImageData.Spacing, 3)
	if err != nil {
		return nil, fmt.Errorf("invalid VTK Spacing: %w", err)
	}
	copy(v.Spacing[:], spacing)
	origin, err := parseFloats(doc.ImageData.Origin, 3)
	if err != nil {
		return nil, fmt.Errorf("invalid VTK Origin: %w", err)
	}
	copy(v.Origin[:], origin)
	if doc.ImageData.Direction != "" {
		direction, err := parseFloats(doc.ImageData.Direction, 9)
		if err != nil {
			return nil, fmt.Errorf("invalid VTK Direction: %w", err)
		}
		copy(v.Direction[:], direction)
	}

	arrays := doc.ImageData.Piece.PointData.Arrays
	if len(arrays) == 0 {
		return nil, fmt.Errorf("VTK image %s has no point data", path)
	}
	array := arrays[0]
	for _, a := range arrays {
		if a.Name == doc.ImageData.Piece.PointData.Scalars {
			array = a
			break
		}
	}
	if array.Format != "ascii" {
		return nil, fmt.Errorf("%w: VTK %s data arrays", ErrUnsupportedFormat, array.Format)
	}
	for pt, name := range vtkTypeNames {
		if name == array.Type {
			v.ScalarType = pt
		}
	}
	if v.ScalarType == volume.Unknown {
		return nil, fmt.Errorf("%w: VTK data type %q", ErrUnsupportedFormat, array.Type)
	}
	v.NumberOfComponents = array.NumberOfComponents
	if v.NumberOfComponents == 0 {
		v.NumberOfComponents = 1
	}

	fields := strings.Fields(array.Data)
	v.Scalars = make([]float64, len(fields))
	for i, s := range fields {
		if v.Scalars[i], err = strconv.ParseFloat(s, 64); err != nil {
			return nil, fmt.Errorf("invalid VTK scalar %q: %w", s, err)
		}
	}
	return bridge.FromVTK(v)
}
