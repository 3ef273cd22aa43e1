package imageio

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// defaultSpacing is the pixel spacing, in millimetres, assumed for formats
// that carry no physical size.
const defaultSpacing = 1.0

// Decoded is the content of one input file. Multi-frame inputs yield one
// buffer per frame.
type Decoded struct {
	Frames        []PixelBuffer
	RowSpacing    float64
	ColumnSpacing float64
	Format        string
}

// Decoder turns input files into pixel buffers.
type Decoder struct {
	// AutoOrient applies the EXIF orientation of JPEG and TIFF inputs.
	AutoOrient bool
}

// NewDecoder returns a decoder with EXIF auto-orientation enabled.
func NewDecoder() *Decoder {
	return &Decoder{AutoOrient: true}
}

// Decode reads path. DICOM files are recognized by their preamble, every
// other file goes through the registered raster decoders.
func (d *Decoder) Decode(path string) (*Decoded, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	if isDICOM(f) {
		return decodeDICOM(path)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	_, format, err := image.DecodeConfig(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	img, err := imaging.Decode(f, imaging.AutoOrientation(d.AutoOrient))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", format, err)
	}

	return &Decoded{
		Frames:        []PixelBuffer{FromImage(img)},
		RowSpacing:    defaultSpacing,
		ColumnSpacing: defaultSpacing,
		Format:        format,
	}, nil
}

// IsCandidate reports whether a directory entry should be offered to the
// decoder. Hidden files and DICOMDIR indexes are ignored.
func IsCandidate(name string) bool {
	base := filepath.Base(name)
	return !strings.HasPrefix(base, ".") && !strings.EqualFold(base, "DICOMDIR")
}

func isDICOM(r io.Reader) bool {
	var header [132]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return false
	}
	return bytes.Equal(header[128:], []byte("DICM"))
}
