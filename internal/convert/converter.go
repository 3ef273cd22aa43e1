// Package convert turns a directory of 2D slices into one DICOM series.
//
// A run goes through Reading (discover and decode the input files),
// Geometry (fix the series identifiers and validate the slice geometry) and
// Writing (compute each slice's position and write its instance), ending in
// Completed, or in StateFailed when no input slice is usable.
package convert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/mrsinham/slices2dicom/internal/attrs"
	"github.com/mrsinham/slices2dicom/internal/dicom"
	"github.com/mrsinham/slices2dicom/internal/dicom/modalities"
	"github.com/mrsinham/slices2dicom/internal/geometry"
	"github.com/mrsinham/slices2dicom/internal/imageio"
	"github.com/mrsinham/slices2dicom/internal/series"
	"github.com/mrsinham/slices2dicom/internal/util"
)

// Decoder reads one input file.
type Decoder interface {
	Decode(path string) (*imageio.Decoded, error)
}

// ProgressFunc is called after every output instance is settled.
type ProgressFunc func(completed, total int)

// Request describes one conversion run.
type Request struct {
	InputDir  string
	OutputDir string
	Overwrite bool
	// Attributes are the resolved series attributes. They are copied, the
	// caller's dictionary is never modified.
	Attributes *attrs.Dictionary

	Orientation    geometry.Orientation
	Origin         r3.Vec
	Spacing        float64
	SlicesPerImage int
	// NumberOfImages is the expected instance count, zero when unknown.
	NumberOfImages int

	// GenerateStudyUID creates a StudyInstanceUID when none is supplied.
	GenerateStudyUID bool
	Layout           series.Layout
}

// Converter runs conversions. Configure it with options.
type Converter struct {
	decoder  Decoder
	encoder  Encoder
	newUID   func() string
	sopUIDs  SOPUIDMode
	workers  int
	failFast bool
	dicomdir bool
	progress ProgressFunc
	log      *slog.Logger

	mu    sync.Mutex
	state State
}

// Option configures a Converter.
type Option func(*Converter)

// WithDecoder replaces the input decoder.
func WithDecoder(d Decoder) Option { return func(c *Converter) { c.decoder = d } }

// WithEncoder replaces the DICOM encoder.
func WithEncoder(e Encoder) Option { return func(c *Converter) { c.encoder = e } }

// WithUIDGenerator replaces the generator of fresh UIDs.
func WithUIDGenerator(f func() string) Option { return func(c *Converter) { c.newUID = f } }

// WithSOPUIDMode selects how SOP Instance UIDs are made.
func WithSOPUIDMode(m SOPUIDMode) Option { return func(c *Converter) { c.sopUIDs = m } }

// WithWorkers sets the number of parallel decode and write workers. Zero or
// less means one per CPU.
func WithWorkers(n int) Option { return func(c *Converter) { c.workers = n } }

// WithFailFast stops starting new instances after the first failure.
func WithFailFast(on bool) Option { return func(c *Converter) { c.failFast = on } }

// WithDICOMDIR writes a DICOMDIR at the output root after the run.
func WithDICOMDIR(on bool) Option { return func(c *Converter) { c.dicomdir = on } }

// WithProgress registers a progress callback.
func WithProgress(f ProgressFunc) Option { return func(c *Converter) { c.progress = f } }

// WithLogger sets the logger used by the converter.
func WithLogger(l *slog.Logger) Option { return func(c *Converter) { c.log = l } }

// New returns a converter using the image decoder and DICOM encoder of this
// module unless replaced by options.
func New(opts ...Option) *Converter {
	c := &Converter{
		decoder: imageio.NewDecoder(),
		encoder: dicom.NewEncoder(),
		newUID:  util.NewUID,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Converter) logger() *slog.Logger {
	if c.log != nil {
		return c.log
	}
	return slog.Default()
}

// State returns the phase of the current or last run.
func (c *Converter) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Converter) setState(res *Result, s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
	res.State = s
	c.logger().Debug("conversion state", "state", s)
}

// Convert runs one conversion. Only input errors are returned as errors,
// every per-slice failure is reported in the result. The result is non-nil
// even when an error is returned.
func (c *Converter) Convert(ctx context.Context, req Request) (*Result, error) {
	log := c.logger()
	res := &Result{}

	if req.OutputDir == "" {
		return c.fail(res, errors.New("output directory is required"))
	}

	c.setState(res, Reading)
	files, err := discover(req.InputDir)
	if err != nil {
		return c.fail(res, &InputError{Dir: req.InputDir, Err: err})
	}
	if len(files) == 0 {
		return c.fail(res, &InputError{Dir: req.InputDir, Err: ErrEmptyInput})
	}

	images := c.read(files)
	var readable []*series.ImageInfo
	positions := make([]int, 0, len(images))
	for _, img := range images {
		sr := SliceResult{Index: -1, SourceFile: img.SourceFile, Frame: img.Frame, Instance: -1}
		if img.Readable() && len(readable) > 0 {
			if err := sameLayout(readable[0], img); err != nil {
				img.Err = &DecodeError{File: img.SourceFile, Err: err}
				img.Release()
			}
		}
		if !img.Readable() {
			sr.Outcome = Failed
			sr.Err = img.Err
			sr.Detail = img.Err.Error()
			log.Warn("slice unreadable", "file", img.SourceFile, "frame", img.Frame, "error", img.Err)
		} else {
			sr.Index = len(readable)
			positions = append(positions, len(res.Slices))
			readable = append(readable, img)
		}
		res.Slices = append(res.Slices, sr)
	}
	if len(readable) == 0 {
		return c.fail(res, &InputError{Dir: req.InputDir, Err: ErrNoReadableImages})
	}
	timePoints := series.AssignTimePoints(readable)

	c.setState(res, Geometry)
	d := attrs.New()
	if req.Attributes != nil {
		d = req.Attributes.Clone()
	}
	d.SetSliceCount(len(readable))

	si := &series.SeriesInfo{
		InputDir:       req.InputDir,
		OutputDir:      req.OutputDir,
		OutputPath:     series.OutputPathFor(req.OutputDir, d, req.Layout),
		Overwrite:      req.Overwrite,
		Images:         readable,
		Attributes:     d,
		Orientation:    req.Orientation,
		Origin:         req.Origin,
		Spacing:        req.Spacing,
		SlicesPerImage: req.SlicesPerImage,
		NumberOfImages: req.NumberOfImages,
	}
	if !req.Overwrite {
		c.reuseIdentifiers(si)
	}
	if err := c.assignIdentifiers(d, req); err != nil {
		return c.fail(res, err)
	}
	if err := si.Validate(); err != nil {
		return c.fail(res, err)
	}
	res.OutputPath = si.OutputPath
	res.StudyInstanceUID = text(d, attrs.StudyInstanceUID)
	res.SeriesInstanceUID = text(d, attrs.SeriesInstanceUID)
	res.FrameOfReferenceUID = text(d, attrs.FrameOfReferenceUID)

	res.Warnings = append(res.Warnings, si.Calculator().Validate()...)
	if v, ok := d.Get(attrs.Modality); ok && !modalities.IsValid(v.Text()) {
		res.Warnings = append(res.Warnings, fmt.Sprintf("modality %q is not a known DICOM modality", v.Text()))
	}
	if timePoints > 1 {
		log.Info("time series detected", "time_points", timePoints, "slices", len(readable))
	}
	if req.NumberOfImages > 0 && req.NumberOfImages != si.NumberOfInstances() {
		res.Warnings = append(res.Warnings, fmt.Sprintf("expected %d images, found %d", req.NumberOfImages, si.NumberOfInstances()))
	}
	if err := os.MkdirAll(si.OutputPath, 0o755); err != nil {
		res.Warnings = append(res.Warnings, fmt.Sprintf("create output directory: %v", err))
	}
	for _, w := range res.Warnings {
		log.Warn(w)
	}

	c.setState(res, Writing)
	c.write(ctx, si, res, positions)

	if c.dicomdir && res.Totals.Written+res.Totals.Skipped > 0 {
		if _, err := dicom.WriteDICOMDIR(req.OutputDir); err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("DICOMDIR: %v", err))
			log.Warn("DICOMDIR not written", "error", err)
		} else {
			res.DICOMDIR = filepath.Join(req.OutputDir, dicom.DICOMDIRName)
		}
	}

	c.setState(res, Completed)
	log.Info("conversion completed",
		"output", res.OutputPath,
		"written", res.Totals.Written,
		"skipped", res.Totals.Skipped,
		"failed", res.Totals.Failed)
	return res, nil
}

// read decodes every file. Unreadable files yield one failed ImageInfo.
func (c *Converter) read(files []string) []*series.ImageInfo {
	perFile := make([][]*series.ImageInfo, len(files))
	runPool(len(files), c.workers, func(i int) []*series.ImageInfo {
		decoded, err := c.decoder.Decode(files[i])
		if err == nil && len(decoded.Frames) == 0 {
			err = imageio.ErrUnsupportedFormat
		}
		if err != nil {
			return []*series.ImageInfo{series.Failed(files[i], &DecodeError{File: files[i], Err: err})}
		}
		return series.FromDecoded(files[i], decoded)
	}, func(i int, infos []*series.ImageInfo) {
		perFile[i] = infos
	})

	var images []*series.ImageInfo
	for _, infos := range perFile {
		images = append(images, infos...)
	}
	return images
}

// sameLayout reports a slice whose pixel layout differs from the first
// readable slice of the series.
func sameLayout(first, img *series.ImageInfo) error {
	a, b := first.Pixels, img.Pixels
	if a.Width != b.Width || a.Height != b.Height || a.SamplesPerPixel != b.SamplesPerPixel || a.BitsAllocated != b.BitsAllocated {
		return fmt.Errorf("%w: %s, series is %s", ErrInconsistentSlice, b.Layout(), a.Layout())
	}
	return nil
}

// reuseIdentifiers takes the study, series and frame of reference UIDs of an
// instance a previous run left in the output directory, so that a resumed
// run completes the same series. Explicitly supplied UIDs win.
func (c *Converter) reuseIdentifiers(si *series.SeriesInfo) {
	d := si.Attributes
	for j := 0; j < si.NumberOfInstances(); j++ {
		path := si.InstancePath(j)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		inst, err := dicom.ReadAttributes(path)
		if err != nil {
			c.logger().Debug("existing instance unreadable", "file", path, "error", err)
			continue
		}
		var reused []any
		for _, t := range []attrs.Tag{attrs.StudyInstanceUID, attrs.SeriesInstanceUID, attrs.FrameOfReferenceUID} {
			v, ok := inst.Get(t)
			if d.IsSet(t) || !ok || !util.ValidUID(v.Text()) {
				continue
			}
			if err := d.Set(t, v); err != nil {
				continue
			}
			reused = append(reused, t.String(), v.Text())
		}
		if len(reused) > 0 {
			c.logger().Info("reusing identifiers of existing output", append([]any{"file", path}, reused...)...)
		}
		return
	}
}

// assignIdentifiers fixes the series level UIDs once, before any write.
func (c *Converter) assignIdentifiers(d *attrs.Dictionary, req Request) error {
	if !d.IsSet(attrs.StudyInstanceUID) && req.GenerateStudyUID {
		if err := d.Set(attrs.StudyInstanceUID, attrs.Str(c.newUID())); err != nil {
			return err
		}
	}
	for _, t := range []attrs.Tag{attrs.SeriesInstanceUID, attrs.FrameOfReferenceUID} {
		if d.IsSet(t) {
			continue
		}
		if err := d.Set(t, attrs.Str(c.newUID())); err != nil {
			return err
		}
	}
	return d.Set(attrs.SpacingBetweenSlices, attrs.Float(req.Spacing))
}

// write runs the writer over every instance and records the outcomes of
// the slices packed into it.
func (c *Converter) write(ctx context.Context, si *series.SeriesInfo, res *Result, positions []int) {
	log := c.logger()
	w := NewWriter(c.encoder, c.sopUIDs, c.newUID, log)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	total := si.NumberOfInstances()
	completed := 0
	runPool(total, c.workers, func(j int) WriteResult {
		r := w.WriteInstance(runCtx, si, j)
		if r.Outcome == Failed && c.failFast {
			cancel()
		}
		return r
	}, func(j int, r WriteResult) {
		start, end := si.InstanceSlices(j)
		for i := start; i < end; i++ {
			sr := &res.Slices[positions[i]]
			sr.Instance = j
			sr.Outcome = r.Outcome
			sr.Detail = r.Detail
			sr.Err = r.Err
			sr.OutputFile = r.OutputFile
			sr.SOPInstanceUID = r.SOPInstanceUID
		}
		if r.Outcome == Failed && !errors.Is(r.Err, ErrAborted) {
			log.Warn("instance failed", "instance", j+1, "error", r.Err)
		}
		completed++
		if c.progress != nil {
			c.progress(completed, total)
		}
	})
	res.count()
}

func (c *Converter) fail(res *Result, err error) (*Result, error) {
	c.setState(res, StateFailed)
	res.count()
	c.logger().Error("conversion failed", "error", err)
	return res, err
}

func text(d *attrs.Dictionary, t attrs.Tag) string {
	v, _ := d.Get(t)
	return v.Text()
}
