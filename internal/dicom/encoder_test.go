package dicom

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mrsinham/slices2dicom/internal/attrs"
	"github.com/mrsinham/slices2dicom/internal/imageio"
	"github.com/mrsinham/slices2dicom/internal/util"
)

func testInstance(t *testing.T, seriesUID string, number int) attrs.Instance {
	t.Helper()
	inst := attrs.Instance{}
	set := func(tag attrs.Tag, v attrs.Value) {
		if err := inst.Set(tag, v); err != nil {
			t.Fatalf("Set(%s) error = %v", tag, err)
		}
	}
	set(attrs.PatientName, attrs.Str("DOE^Jane"))
	set(attrs.PatientID, attrs.Str("P1"))
	set(attrs.PatientBirthDate, attrs.Date(time.Date(1980, 2, 3, 0, 0, 0, 0, time.UTC)))
	set(attrs.PatientSex, attrs.Str("F"))
	set(attrs.StudyInstanceUID, attrs.Str("1.2.3.4"))
	set(attrs.StudyDate, attrs.Date(time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC)))
	set(attrs.StudyTime, attrs.Time(time.Date(0, 1, 1, 10, 11, 12, 0, time.UTC)))
	set(attrs.StudyID, attrs.Str("7"))
	set(attrs.Modality, attrs.Str("OT"))
	set(attrs.SeriesInstanceUID, attrs.Str(seriesUID))
	set(attrs.SeriesNumber, attrs.Int(3))
	set(attrs.SeriesTimeIncrement, attrs.Float(1))
	set(attrs.ImageType, attrs.Str(`ORIGINAL\PRIMARY`))
	set(attrs.SOPInstanceUID, attrs.Str(util.DeriveUID(seriesUID, number)))
	set(attrs.InstanceNumber, attrs.Int(number))
	set(attrs.ImagePositionPatient, attrs.Vector(0, 0, 2*float64(number-1)))
	set(attrs.ImageOrientationPatient, attrs.Vector(1, 0, 0, 0, 1, 0))
	set(attrs.SliceLocation, attrs.Float(2*float64(number-1)))
	set(attrs.PixelSpacing, attrs.Vector(0.5, 0.75))
	return inst
}

func gray16(w, h int, seed uint16) imageio.PixelBuffer {
	buf := imageio.PixelBuffer{Width: w, Height: h, SamplesPerPixel: 1, BitsAllocated: 16, Data: make([]uint16, w*h)}
	for i := range buf.Data {
		buf.Data[i] = seed + uint16(i*257)
	}
	return buf
}

func TestEncode_RoundTrip(t *testing.T) {
	rgb := imageio.PixelBuffer{Width: 2, Height: 2, SamplesPerPixel: 3, BitsAllocated: 8,
		Data: []uint16{255, 0, 0, 0, 255, 0, 0, 0, 255, 10, 20, 30}}
	gray8 := imageio.PixelBuffer{Width: 3, Height: 1, SamplesPerPixel: 1, BitsAllocated: 8, Data: []uint16{0, 128, 255}}

	tests := []struct {
		name      string
		frames    []imageio.PixelBuffer
		wantClass string
	}{
		{"gray16", []imageio.PixelBuffer{gray16(4, 3, 1)}, SecondaryCaptureImageStorage},
		{"gray8", []imageio.PixelBuffer{gray8}, SecondaryCaptureImageStorage},
		{"rgb", []imageio.PixelBuffer{rgb}, SecondaryCaptureImageStorage},
		{"multi-frame word", []imageio.PixelBuffer{gray16(4, 3, 1), gray16(4, 3, 9)}, MultiFrameGrayscaleWordSecondaryCapture},
		{"multi-frame byte", []imageio.PixelBuffer{gray8, gray8, gray8}, MultiFrameGrayscaleByteSecondaryCapture},
		{"multi-frame rgb", []imageio.PixelBuffer{rgb, rgb}, MultiFrameTrueColorSecondaryCaptureStorage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dest := filepath.Join(t.TempDir(), "IM-0003-0001.dcm")
			inst := testInstance(t, "1.2.3.4.5", 1)
			if err := NewEncoder().Encode(inst, tt.frames, dest); err != nil {
				t.Fatalf("Encode() error = %v", err)
			}

			got, err := ReadInstance(dest)
			if err != nil {
				t.Fatalf("ReadInstance() error = %v", err)
			}
			if got.SOPClassUID != tt.wantClass {
				t.Errorf("SOPClassUID = %q, want %q", got.SOPClassUID, tt.wantClass)
			}
			if got.TransferSyntaxUID != ExplicitVRLittleEndian {
				t.Errorf("TransferSyntaxUID = %q", got.TransferSyntaxUID)
			}
			if len(got.Frames) != len(tt.frames) {
				t.Fatalf("frames = %d, want %d", len(got.Frames), len(tt.frames))
			}
			for i := range tt.frames {
				want, have := tt.frames[i], got.Frames[i]
				if have.Width != want.Width || have.Height != want.Height ||
					have.SamplesPerPixel != want.SamplesPerPixel || have.BitsAllocated != want.BitsAllocated {
					t.Fatalf("frame %d layout = %+v", i, have)
				}
				for j := range want.Data {
					if have.Data[j] != want.Data[j] {
						t.Fatalf("frame %d sample %d = %d, want %d", i, j, have.Data[j], want.Data[j])
					}
				}
			}

			for _, tag := range inst.Tags() {
				if tag.Info().Internal {
					if _, ok := got.Attributes.Get(tag); ok {
						t.Errorf("internal attribute %s was encoded", tag)
					}
					continue
				}
				want, _ := inst.Get(tag)
				have, ok := got.Attributes.Get(tag)
				if !ok || !have.Equal(want) {
					t.Errorf("%s = %v, want %v", tag, have, want)
				}
			}
		})
	}
}

func TestEncode_DecodableAsInput(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "in.dcm")
	frames := []imageio.PixelBuffer{gray16(5, 4, 3), gray16(5, 4, 4), gray16(5, 4, 5)}
	if err := NewEncoder().Encode(testInstance(t, "1.2.3.4.5", 1), frames, dest); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	dec, err := imageio.NewDecoder().Decode(dest)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if dec.Format != "dicom" || len(dec.Frames) != 3 {
		t.Errorf("Decode() = %s with %d frames", dec.Format, len(dec.Frames))
	}
	if dec.RowSpacing != 0.5 || dec.ColumnSpacing != 0.75 {
		t.Errorf("spacing = %v,%v, want 0.5,0.75", dec.RowSpacing, dec.ColumnSpacing)
	}
}

func TestEncode_Errors(t *testing.T) {
	ok := gray16(2, 2, 0)
	tests := []struct {
		name    string
		inst    func(t *testing.T) attrs.Instance
		frames  []imageio.PixelBuffer
		wantErr error
	}{
		{"no frames", func(t *testing.T) attrs.Instance { return testInstance(t, "1.2.3", 1) }, nil, ErrNoFrames},
		{"mismatch", func(t *testing.T) attrs.Instance { return testInstance(t, "1.2.3", 1) },
			[]imageio.PixelBuffer{ok, gray16(3, 2, 0)}, ErrFrameMismatch},
		{"bad buffer", func(t *testing.T) attrs.Instance { return testInstance(t, "1.2.3", 1) },
			[]imageio.PixelBuffer{{Width: 2, Height: 2, SamplesPerPixel: 1, BitsAllocated: 12, Data: make([]uint16, 4)}}, ErrUnsupportedPixelFormat},
		{"8 bit overflow", func(t *testing.T) attrs.Instance { return testInstance(t, "1.2.3", 1) },
			[]imageio.PixelBuffer{{Width: 1, Height: 1, SamplesPerPixel: 1, BitsAllocated: 8, Data: []uint16{300}}}, ErrUnsupportedPixelFormat},
		{"missing sop uid", func(t *testing.T) attrs.Instance {
			inst := testInstance(t, "1.2.3", 1)
			delete(inst, attrs.SOPInstanceUID)
			return inst
		}, []imageio.PixelBuffer{ok}, ErrMissingAttribute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			dest := filepath.Join(dir, "out.dcm")
			err := NewEncoder().Encode(tt.inst(t), tt.frames, dest)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Encode() error = %v, want %v", err, tt.wantErr)
			}
			entries, _ := os.ReadDir(dir)
			if len(entries) != 0 {
				t.Errorf("failed encode left %d files behind", len(entries))
			}
		})
	}
}

func TestEncode_MissingDirectory(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "missing", "out.dcm")
	if err := NewEncoder().Encode(testInstance(t, "1.2.3", 1), []imageio.PixelBuffer{gray16(2, 2, 0)}, dest); err == nil {
		t.Error("Encode() into a missing directory should fail")
	}
}

func TestReadAttributes(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "a.dcm")
	if err := NewEncoder().Encode(testInstance(t, "1.2.3.9", 4), []imageio.PixelBuffer{gray16(2, 2, 0)}, dest); err != nil {
		t.Fatal(err)
	}
	got, err := ReadAttributes(dest)
	if err != nil {
		t.Fatalf("ReadAttributes() error = %v", err)
	}
	if v, _ := got.Get(attrs.InstanceNumber); v.Integer() != 4 {
		t.Errorf("InstanceNumber = %v, want 4", v)
	}
	if v, _ := got.Get(attrs.SOPInstanceUID); v.Text() != "1.2.3.9.4" {
		t.Errorf("SOPInstanceUID = %v, want 1.2.3.9.4", v)
	}
}
