package imageio

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/frame"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// decodeDICOM extracts the native frames and pixel spacing of a DICOM file.
func decodeDICOM(path string) (*Decoded, error) {
	ds, err := dicom.ParseFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: parse dicom: %v", ErrUnsupportedFormat, err)
	}
	return DecodeDataset(ds)
}

// DecodeDataset extracts the native frames and pixel spacing of a parsed
// DICOM dataset. Encapsulated pixel data is not supported.
func DecodeDataset(ds dicom.Dataset) (*Decoded, error) {
	elem, err := ds.FindElementByTag(tag.PixelData)
	if err != nil {
		return nil, fmt.Errorf("%w: dicom file has no pixel data", ErrUnsupportedFormat)
	}
	info := dicom.MustGetPixelDataInfo(elem.Value)
	if info.IsEncapsulated {
		return nil, fmt.Errorf("%w: encapsulated (compressed) pixel data", ErrUnsupportedFormat)
	}

	out := &Decoded{
		RowSpacing:    defaultSpacing,
		ColumnSpacing: defaultSpacing,
		Format:        "dicom",
	}
	if row, col, ok := pixelSpacing(ds); ok {
		out.RowSpacing, out.ColumnSpacing = row, col
	}

	rows, cols, spp, err := frameLayout(ds)
	if err != nil {
		return nil, err
	}
	for i, fr := range info.Frames {
		if fr == nil || fr.Encapsulated || fr.NativeData == nil {
			return nil, fmt.Errorf("%w: frame %d is not native", ErrUnsupportedFormat, i)
		}
		buf := PixelBuffer{Width: cols, Height: rows, SamplesPerPixel: spp}
		switch nf := fr.NativeData.(type) {
		case *frame.NativeFrame[uint8]:
			buf.BitsAllocated = 8
			buf.Data = make([]uint16, len(nf.RawData))
			for j, v := range nf.RawData {
				buf.Data[j] = uint16(v)
			}
		case *frame.NativeFrame[uint16]:
			buf.BitsAllocated = 16
			buf.Data = append([]uint16(nil), nf.RawData...)
		default:
			return nil, fmt.Errorf("%w: frame %d has %T samples", ErrUnsupportedFormat, i, fr.NativeData)
		}
		if err := buf.Validate(); err != nil {
			return nil, fmt.Errorf("frame %d: %w", i, err)
		}
		out.Frames = append(out.Frames, buf)
	}
	if len(out.Frames) == 0 {
		return nil, fmt.Errorf("%w: dicom file has no frames", ErrUnsupportedFormat)
	}
	return out, nil
}

func pixelSpacing(ds dicom.Dataset) (row, col float64, ok bool) {
	elem, err := ds.FindElementByTag(tag.PixelSpacing)
	if err != nil {
		return 0, 0, false
	}
	values, ok := elem.Value.GetValue().([]string)
	if !ok || len(values) != 2 {
		return 0, 0, false
	}
	row, err1 := strconv.ParseFloat(strings.TrimSpace(values[0]), 64)
	col, err2 := strconv.ParseFloat(strings.TrimSpace(values[1]), 64)
	if err1 != nil || err2 != nil || row <= 0 || col <= 0 {
		return 0, 0, false
	}
	return row, col, true
}

func frameLayout(ds dicom.Dataset) (rows, cols, spp int, err error) {
	rows, err = intValue(ds, tag.Rows)
	if err != nil {
		return 0, 0, 0, err
	}
	cols, err = intValue(ds, tag.Columns)
	if err != nil {
		return 0, 0, 0, err
	}
	spp, err = intValue(ds, tag.SamplesPerPixel)
	if err != nil {
		spp = 1
	}
	return rows, cols, spp, nil
}

func intValue(ds dicom.Dataset, t tag.Tag) (int, error) {
	elem, err := ds.FindElementByTag(t)
	if err != nil {
		return 0, fmt.Errorf("%w: missing %v", ErrUnsupportedFormat, t)
	}
	values, ok := elem.Value.GetValue().([]int)
	if !ok || len(values) == 0 {
		return 0, fmt.Errorf("%w: malformed %v", ErrUnsupportedFormat, t)
	}
	return values[0], nil
}
