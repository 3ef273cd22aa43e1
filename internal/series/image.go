// Package series models the slices of one conversion run and the series they
// are written to.
package series

import (
	"github.com/mrsinham/slices2dicom/internal/imageio"
)

// ImageInfo is one decoded input slice.
type ImageInfo struct {
	SourceFile string
	// Frame is the frame index within SourceFile for multi-frame inputs.
	Frame int
	// FileFrames is the number of frames SourceFile holds.
	FileFrames int
	// TimePoint is the volume of a time series the slice belongs to.
	TimePoint     int
	Width         int
	Height        int
	RowSpacing    float64
	ColumnSpacing float64
	// Pixels references the decoded buffer until Release is called.
	Pixels *imageio.PixelBuffer
	// Err holds the decode failure of an unreadable slice.
	Err error
}

// Readable reports whether the slice was decoded successfully.
func (ii *ImageInfo) Readable() bool {
	return ii.Err == nil && ii.Pixels != nil
}

// Release drops the reference to the pixel buffer once the slice is written.
func (ii *ImageInfo) Release() {
	ii.Pixels = nil
}

// FromDecoded builds one ImageInfo per frame of a decoded file.
func FromDecoded(path string, d *imageio.Decoded) []*ImageInfo {
	infos := make([]*ImageInfo, len(d.Frames))
	for i := range d.Frames {
		buf := d.Frames[i]
		infos[i] = &ImageInfo{
			SourceFile:    path,
			Frame:         i,
			FileFrames:    len(d.Frames),
			Width:         buf.Width,
			Height:        buf.Height,
			RowSpacing:    d.RowSpacing,
			ColumnSpacing: d.ColumnSpacing,
			Pixels:        &buf,
		}
	}
	return infos
}

// AssignTimePoints numbers the volumes of a time series and returns how many
// there are. Each multi-frame input file is one volume, a run of single-frame
// files is one volume.
func AssignTimePoints(images []*ImageInfo) int {
	if len(images) == 0 {
		return 0
	}
	tp := 0
	for i, img := range images {
		if i > 0 {
			prev := images[i-1]
			if img.SourceFile != prev.SourceFile && (img.FileFrames > 1 || prev.FileFrames > 1) {
				tp++
			}
		}
		img.TimePoint = tp
	}
	return tp + 1
}

// Failed builds the ImageInfo of a file that could not be decoded.
func Failed(path string, err error) *ImageInfo {
	return &ImageInfo{SourceFile: path, Err: err}
}
