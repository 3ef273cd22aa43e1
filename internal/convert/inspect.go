package convert

import (
	"sort"

	"github.com/mrsinham/slices2dicom/internal/imageio"
)

// FilePreview describes one input file.
type FilePreview struct {
	Path          string
	Format        string
	Frames        int
	Width         int
	Height        int
	RowSpacing    float64
	ColumnSpacing float64
	Err           error
}

// Preview summarizes an input directory without converting it.
type Preview struct {
	Dir    string
	Files  []FilePreview
	Slices int
	// Formats counts readable files per decoder format.
	Formats map[string]int
	// Uniform is false when readable slices differ in size.
	Uniform bool
}

// Readable returns the number of files that decoded.
func (p *Preview) Readable() int {
	n := 0
	for _, f := range p.Files {
		if f.Err == nil {
			n++
		}
	}
	return n
}

// FormatNames returns the formats found, sorted.
func (p *Preview) FormatNames() []string {
	names := make([]string, 0, len(p.Formats))
	for name := range p.Formats {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Inspect decodes every candidate file of dir and reports what a conversion
// would see. The errors are those of Convert's reading phase.
func Inspect(dir string, dec Decoder, workers int) (*Preview, error) {
	if dec == nil {
		dec = imageio.NewDecoder()
	}
	files, err := discover(dir)
	if err != nil {
		return nil, &InputError{Dir: dir, Err: err}
	}
	if len(files) == 0 {
		return nil, &InputError{Dir: dir, Err: ErrEmptyInput}
	}

	p := &Preview{Dir: dir, Files: make([]FilePreview, len(files)), Formats: map[string]int{}, Uniform: true}
	runPool(len(files), workers, func(i int) FilePreview {
		fp := FilePreview{Path: files[i]}
		d, err := dec.Decode(files[i])
		if err == nil && len(d.Frames) == 0 {
			err = imageio.ErrUnsupportedFormat
		}
		if err != nil {
			fp.Err = &DecodeError{File: files[i], Err: err}
			return fp
		}
		fp.Format = d.Format
		fp.Frames = len(d.Frames)
		fp.Width, fp.Height = d.Frames[0].Width, d.Frames[0].Height
		fp.RowSpacing, fp.ColumnSpacing = d.RowSpacing, d.ColumnSpacing
		return fp
	}, func(i int, fp FilePreview) {
		p.Files[i] = fp
	})

	first := -1
	for i, f := range p.Files {
		if f.Err != nil {
			continue
		}
		p.Slices += f.Frames
		p.Formats[f.Format]++
		if first < 0 {
			first = i
		} else if f.Width != p.Files[first].Width || f.Height != p.Files[first].Height {
			p.Uniform = false
		}
	}
	if first < 0 {
		return p, &InputError{Dir: dir, Err: ErrNoReadableImages}
	}
	return p, nil
}
