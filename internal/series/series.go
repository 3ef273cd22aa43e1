package series

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"unicode"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/mrsinham/slices2dicom/internal/attrs"
	"github.com/mrsinham/slices2dicom/internal/geometry"
)

// Layout selects how the output directory is organised.
type Layout int

const (
	// LayoutTree writes into <patient>/<study>/<series> below the output directory.
	LayoutTree Layout = iota
	// LayoutFlat writes straight into the output directory.
	LayoutFlat
)

func (l Layout) String() string {
	if l == LayoutFlat {
		return "flat"
	}
	return "tree"
}

// ParseLayout parses "tree" or "flat".
func ParseLayout(s string) (Layout, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "tree":
		return LayoutTree, nil
	case "flat":
		return LayoutFlat, nil
	}
	return 0, fmt.Errorf("invalid layout %q (expected tree|flat)", s)
}

// SeriesInfo aggregates everything needed to write one output series.
type SeriesInfo struct {
	InputDir   string
	OutputDir  string
	OutputPath string
	Overwrite  bool

	// Images holds the readable slices in slice-index order.
	Images     []*ImageInfo
	Attributes *attrs.Dictionary

	Orientation    geometry.Orientation
	Origin         r3.Vec
	Spacing        float64
	SlicesPerImage int
	NumberOfImages int

	// Instance layout, computed on first use from Images.
	planOnce    sync.Once
	bounds      [][2]int
	volumeStart []int
}

// NumberOfSlices returns the number of readable slices.
func (s *SeriesInfo) NumberOfSlices() int { return len(s.Images) }

// NumberOfInstances returns the number of output instances: the slices of
// each volume grouped by SlicesPerImage.
func (s *SeriesInfo) NumberOfInstances() int {
	return len(s.plan().bounds)
}

// NumberOfTimePoints returns the number of volumes of a time series, one for
// a plain series.
func (s *SeriesInfo) NumberOfTimePoints() int {
	if len(s.Images) == 0 {
		return 0
	}
	return s.Images[len(s.Images)-1].TimePoint + 1
}

// InstanceSlices returns the half-open slice index range [start, end) packed
// into instance j. An instance never spans two volumes.
func (s *SeriesInfo) InstanceSlices(j int) (start, end int) {
	p := s.plan()
	if j < 0 || j >= len(p.bounds) {
		return len(s.Images), len(s.Images)
	}
	return p.bounds[j][0], p.bounds[j][1]
}

// InstanceOf returns the instance slice i is packed into.
func (s *SeriesInfo) InstanceOf(i int) int {
	b := s.plan().bounds
	return sort.Search(len(b), func(j int) bool { return b[j][1] > i })
}

// TimePoint returns the volume instance j belongs to.
func (s *SeriesInfo) TimePoint(j int) int {
	start, end := s.InstanceSlices(j)
	if start == end {
		return 0
	}
	return s.Images[start].TimePoint
}

func (s *SeriesInfo) plan() *SeriesInfo {
	s.planOnce.Do(func() {
		k := s.slicesPerImage()
		s.volumeStart = make([]int, len(s.Images))
		for start := 0; start < len(s.Images); {
			end := start + 1
			for end < len(s.Images) && s.Images[end].TimePoint == s.Images[start].TimePoint {
				end++
			}
			for i := start; i < end; i++ {
				s.volumeStart[i] = start
			}
			for first := start; first < end; first += k {
				s.bounds = append(s.bounds, [2]int{first, min(first+k, end)})
			}
			start = end
		}
	})
	return s
}

// InstancePath returns the destination file of instance j.
func (s *SeriesInfo) InstancePath(j int) string {
	seriesNumber := 1
	if v, ok := s.Attributes.Get(attrs.SeriesNumber); ok {
		seriesNumber = v.Integer()
	}
	return filepath.Join(s.OutputPath, fmt.Sprintf("IM-%04d-%04d.dcm", seriesNumber, j+1))
}

// Calculator returns the geometry calculator of the series.
func (s *SeriesInfo) Calculator() geometry.Calculator {
	return geometry.Calculator{
		Orientation: s.Orientation,
		Origin:      s.Origin,
		Spacing:     s.Spacing,
	}
}

// SliceGeometry computes the geometry of slice i. Positions restart at the
// origin with every volume of a time series.
func (s *SeriesInfo) SliceGeometry(i int) (geometry.Slice, error) {
	if i < 0 || i >= len(s.Images) {
		return geometry.Slice{}, fmt.Errorf("%w: slice %d of %d", attrs.ErrSliceIndex, i, len(s.Images))
	}
	g := s.Calculator().Slice(i - s.plan().volumeStart[i])
	g.Index = i
	return g, nil
}

// Validate checks the structural invariants of the series.
func (s *SeriesInfo) Validate() error {
	var errs []error
	if s.OutputPath == "" {
		errs = append(errs, errors.New("output path is empty"))
	}
	if s.Attributes == nil {
		errs = append(errs, errors.New("attributes are missing"))
	} else if n := s.Attributes.SliceCount(); n != len(s.Images) {
		errs = append(errs, fmt.Errorf("attributes track %d slices, series has %d", n, len(s.Images)))
	}
	for i, img := range s.Images {
		if !img.Readable() {
			errs = append(errs, fmt.Errorf("slice %d (%s) is not readable", i, img.SourceFile))
		}
	}
	if s.SlicesPerImage < 0 {
		errs = append(errs, fmt.Errorf("slices per image is %d", s.SlicesPerImage))
	}
	return errors.Join(errs...)
}

func (s *SeriesInfo) slicesPerImage() int {
	if s.SlicesPerImage < 1 {
		return 1
	}
	return s.SlicesPerImage
}

// OutputPathFor returns the directory a series is written to. The tree
// layout is <out>/<PatientName>/<StudyDescription> - <StudyID>/<SeriesDescription> - <SeriesNumber>.
func OutputPathFor(outputDir string, d *attrs.Dictionary, layout Layout) string {
	if layout == LayoutFlat {
		return outputDir
	}
	text := func(t attrs.Tag, fallback string) string {
		if v, ok := d.Get(t); ok && v.String() != "" {
			return v.String()
		}
		return fallback
	}
	patient := sanitize(text(attrs.PatientName, "Anonymous"))
	study := sanitize(text(attrs.StudyDescription, "Study") + " - " + text(attrs.StudyID, "0"))
	series := sanitize(text(attrs.SeriesDescription, "Series") + " - " + text(attrs.SeriesNumber, "1"))
	return filepath.Join(outputDir, patient, study, series)
}

// sanitize makes s usable as a single path component.
func sanitize(s string) string {
	s = strings.Map(func(r rune) rune {
		switch {
		case r == '^':
			return ' '
		case strings.ContainsRune(`/\:*?"<>|`, r), unicode.IsControl(r):
			return '_'
		}
		return r
	}, s)
	s = strings.Trim(strings.TrimSpace(s), ".")
	if s == "" {
		return "_"
	}
	return s
}
