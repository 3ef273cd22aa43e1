package dicom

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/frame"
	"github.com/suyashkumar/dicom/pkg/tag"

	"github.com/mrsinham/slices2dicom/internal/attrs"
	"github.com/mrsinham/slices2dicom/internal/imageio"
	"github.com/mrsinham/slices2dicom/internal/util"
)

var (
	ErrNoFrames               = errors.New("dicom: no frames to encode")
	ErrFrameMismatch          = errors.New("dicom: frames of one instance differ in layout")
	ErrUnsupportedPixelFormat = errors.New("dicom: unsupported pixel format")
	ErrMissingAttribute       = errors.New("dicom: required attribute missing")
)

// Encoder writes one instance per call as an Explicit VR Little Endian
// Secondary Capture file.
type Encoder struct {
	// CharacterSet is written as SpecificCharacterSet. Defaults to UTF-8.
	CharacterSet string
}

// NewEncoder returns an encoder declaring UTF-8 text.
func NewEncoder() *Encoder {
	return &Encoder{CharacterSet: "ISO_IR 192"}
}

// Encode writes inst with frames as its pixel data to dest. The file is
// written to a temporary name in the destination directory and renamed on
// success, so dest never holds a partial file.
func (e *Encoder) Encode(inst attrs.Instance, frames []imageio.PixelBuffer, dest string) error {
	ds, err := e.Dataset(inst, frames)
	if err != nil {
		return err
	}

	f, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temporary file: %w", err)
	}
	tmp := f.Name()
	defer func() { _ = os.Remove(tmp) }()

	if err := dicom.Write(f, ds); err != nil {
		_ = f.Close()
		return fmt.Errorf("write dataset: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		return fmt.Errorf("rename to %s: %w", dest, err)
	}
	return nil
}

// Dataset builds the complete dataset, file meta information included.
func (e *Encoder) Dataset(inst attrs.Instance, frames []imageio.PixelBuffer) (dicom.Dataset, error) {
	if len(frames) == 0 {
		return dicom.Dataset{}, ErrNoFrames
	}
	first := frames[0]
	for i, fr := range frames {
		if err := fr.Validate(); err != nil {
			return dicom.Dataset{}, fmt.Errorf("%w: frame %d: %v", ErrUnsupportedPixelFormat, i, err)
		}
		if fr.Width != first.Width || fr.Height != first.Height ||
			fr.SamplesPerPixel != first.SamplesPerPixel || fr.BitsAllocated != first.BitsAllocated {
			return dicom.Dataset{}, fmt.Errorf("%w: frame %d is %dx%dx%d/%d, frame 0 is %dx%dx%d/%d",
				ErrFrameMismatch, i,
				fr.Width, fr.Height, fr.SamplesPerPixel, fr.BitsAllocated,
				first.Width, first.Height, first.SamplesPerPixel, first.BitsAllocated)
		}
	}

	sop, ok := inst.Get(attrs.SOPInstanceUID)
	if !ok || !util.ValidUID(sop.Text()) {
		return dicom.Dataset{}, fmt.Errorf("%w: %s", ErrMissingAttribute, attrs.SOPInstanceUID)
	}
	sopClass := sopClassFor(first, len(frames))

	elems := []*dicom.Element{
		mustNewElement(tag.MediaStorageSOPClassUID, []string{sopClass}),
		mustNewElement(tag.MediaStorageSOPInstanceUID, []string{sop.Text()}),
		mustNewElement(tag.TransferSyntaxUID, []string{ExplicitVRLittleEndian}),
		mustNewElement(tag.ImplementationClassUID, []string{ImplementationClassUID}),
		mustNewElement(tag.ImplementationVersionName, []string{ImplementationVersionName}),
		mustNewElement(tag.SOPClassUID, []string{sopClass}),
	}
	if e.CharacterSet != "" {
		elems = append(elems, mustNewElement(tag.SpecificCharacterSet, []string{e.CharacterSet}))
	}

	for _, t := range inst.Tags() {
		v, _ := inst.Get(t)
		elem, err := attributeElement(t, v)
		if err != nil {
			return dicom.Dataset{}, err
		}
		if elem != nil {
			elems = append(elems, elem)
		}
	}

	elems = append(elems, pixelModule(first, len(frames))...)
	pixels, err := pixelData(frames)
	if err != nil {
		return dicom.Dataset{}, err
	}
	elems = append(elems, pixels)

	sortElements(elems)
	return dicom.Dataset{Elements: elems}, nil
}

func sopClassFor(fr imageio.PixelBuffer, n int) string {
	switch {
	case n == 1:
		return SecondaryCaptureImageStorage
	case !fr.Monochrome():
		return MultiFrameTrueColorSecondaryCaptureStorage
	case fr.BitsAllocated == 16:
		return MultiFrameGrayscaleWordSecondaryCapture
	default:
		return MultiFrameGrayscaleByteSecondaryCapture
	}
}

// pixelModule returns the Image Pixel module describing frames shaped like fr.
func pixelModule(fr imageio.PixelBuffer, n int) []*dicom.Element {
	photometric := "MONOCHROME2"
	if !fr.Monochrome() {
		photometric = "RGB"
	}
	elems := []*dicom.Element{
		mustNewElement(tag.SamplesPerPixel, []int{fr.SamplesPerPixel}),
		mustNewElement(tag.PhotometricInterpretation, []string{photometric}),
		mustNewElement(tag.Rows, []int{fr.Height}),
		mustNewElement(tag.Columns, []int{fr.Width}),
		mustNewElement(tag.BitsAllocated, []int{fr.BitsAllocated}),
		mustNewElement(tag.BitsStored, []int{fr.BitsAllocated}),
		mustNewElement(tag.HighBit, []int{fr.BitsAllocated - 1}),
		mustNewElement(tag.PixelRepresentation, []int{0}),
	}
	if !fr.Monochrome() {
		elems = append(elems, mustNewElement(tag.PlanarConfiguration, []int{0}))
	}
	if n > 1 {
		elems = append(elems, mustNewElement(tag.NumberOfFrames, []string{util.FormatIS(n)}))
	}
	return elems
}

func pixelData(frames []imageio.PixelBuffer) (*dicom.Element, error) {
	info := dicom.PixelDataInfo{Frames: make([]*frame.Frame, 0, len(frames))}
	for _, fr := range frames {
		pixels := fr.Width * fr.Height
		f := &frame.Frame{Encapsulated: false}
		switch fr.BitsAllocated {
		case 8:
			nf := frame.NewNativeFrame[uint8](8, fr.Height, fr.Width, pixels, fr.SamplesPerPixel)
			nf.RawData = make([]uint8, len(fr.Data))
			for i, v := range fr.Data {
				if v > 0xFF {
					return nil, fmt.Errorf("%w: sample %d exceeds 8 bits", ErrUnsupportedPixelFormat, v)
				}
				nf.RawData[i] = uint8(v)
			}
			f.NativeData = nf
		case 16:
			nf := frame.NewNativeFrame[uint16](16, fr.Height, fr.Width, pixels, fr.SamplesPerPixel)
			nf.RawData = append([]uint16(nil), fr.Data...)
			f.NativeData = nf
		default:
			return nil, fmt.Errorf("%w: %d bits allocated", ErrUnsupportedPixelFormat, fr.BitsAllocated)
		}
		info.Frames = append(info.Frames, f)
	}
	return dicom.NewElement(tag.PixelData, info)
}
