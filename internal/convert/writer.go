package convert

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/mrsinham/slices2dicom/internal/attrs"
	"github.com/mrsinham/slices2dicom/internal/geometry"
	"github.com/mrsinham/slices2dicom/internal/imageio"
	"github.com/mrsinham/slices2dicom/internal/series"
	"github.com/mrsinham/slices2dicom/internal/util"
)

// Encoder serializes one instance to dest.
type Encoder interface {
	Encode(inst attrs.Instance, frames []imageio.PixelBuffer, dest string) error
}

// SOPUIDMode selects how SOP Instance UIDs are made.
type SOPUIDMode int

const (
	// SOPUIDDerived appends the instance number to the series UID.
	SOPUIDDerived SOPUIDMode = iota
	// SOPUIDRandom generates a fresh UID per instance.
	SOPUIDRandom
)

// ParseSOPUIDMode parses "derived" or "random".
func ParseSOPUIDMode(s string) (SOPUIDMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "derived":
		return SOPUIDDerived, nil
	case "random":
		return SOPUIDRandom, nil
	}
	return 0, fmt.Errorf("invalid SOP instance UID mode %q (expected derived|random)", s)
}

// WriteResult is the outcome of one output instance.
type WriteResult struct {
	Instance       int
	Outcome        Outcome
	OutputFile     string
	SOPInstanceUID string
	Detail         string
	Err            error
}

// Default values of the derived attributes.
const (
	defaultImageType      = `ORIGINAL\PRIMARY`
	defaultConversionType = "WSD"
)

// requiredUIDs must hold valid UIDs in every written instance.
var requiredUIDs = []attrs.Tag{attrs.StudyInstanceUID, attrs.SeriesInstanceUID, attrs.SOPInstanceUID}

// Writer writes the instances of a series. It is safe for concurrent use;
// the existence check and write of a destination are serialized per path.
type Writer struct {
	encoder Encoder
	sopUIDs SOPUIDMode
	newUID  func() string
	log     *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewWriter returns a writer handing instances to enc.
func NewWriter(enc Encoder, mode SOPUIDMode, newUID func() string, log *slog.Logger) *Writer {
	if newUID == nil {
		newUID = util.NewUID
	}
	if log == nil {
		log = slog.Default()
	}
	return &Writer{
		encoder: enc,
		sopUIDs: mode,
		newUID:  newUID,
		log:     log,
		locks:   make(map[string]*sync.Mutex),
	}
}

// WriteInstance computes the geometry of the slices packed into instance j,
// merges their attributes and writes the instance. The slices' pixel
// buffers are released once the instance is settled, whatever the outcome.
func (w *Writer) WriteInstance(ctx context.Context, si *series.SeriesInfo, j int) WriteResult {
	start, end := si.InstanceSlices(j)
	dest := si.InstancePath(j)
	res := WriteResult{Instance: j, OutputFile: dest}
	defer func() {
		for i := start; i < end; i++ {
			si.Images[i].Release()
		}
	}()

	if err := ctx.Err(); err != nil {
		return failed(res, fmt.Errorf("%w: %v", ErrAborted, err))
	}

	unlock := w.lock(dest)
	defer unlock()

	if !si.Overwrite {
		if _, err := os.Stat(dest); err == nil {
			res.Outcome = Skipped
			res.Detail = "destination exists"
			w.log.Debug("instance skipped", "instance", j+1, "file", dest)
			return res
		}
	}

	inst, frames, err := w.prepare(si, j, start, end)
	if err != nil {
		return failed(res, err)
	}
	if v, ok := inst.Get(attrs.SOPInstanceUID); ok {
		res.SOPInstanceUID = v.Text()
	}

	if err := w.encoder.Encode(inst, frames, dest); err != nil {
		return failed(res, &EncodeError{File: dest, Err: err})
	}
	res.Outcome = Written
	w.log.Debug("instance written", "instance", j+1, "file", dest, "frames", len(frames))
	return res
}

// prepare builds the attribute set and frames of instance j.
func (w *Writer) prepare(si *series.SeriesInfo, j, start, end int) (attrs.Instance, []imageio.PixelBuffer, error) {
	d := si.Attributes
	frames := make([]imageio.PixelBuffer, 0, end-start)
	for i := start; i < end; i++ {
		img := si.Images[i]
		if !img.Readable() {
			return nil, nil, fmt.Errorf("slice %d (%s) has no pixel data", i, img.SourceFile)
		}
		g, err := si.SliceGeometry(i)
		if err != nil {
			return nil, nil, &AttributeError{Tags: []attrs.Tag{attrs.ImagePositionPatient}, Err: err}
		}
		if err := geometry.Apply(d, g); err != nil {
			return nil, nil, &AttributeError{Tags: []attrs.Tag{attrs.ImagePositionPatient}, Err: err}
		}
		if !d.IsSet(attrs.PixelSpacing) {
			if err := d.SetSlice(attrs.PixelSpacing, i, attrs.Vector(img.RowSpacing, img.ColumnSpacing)); err != nil {
				return nil, nil, &AttributeError{Tags: []attrs.Tag{attrs.PixelSpacing}, Err: err}
			}
		}
		frames = append(frames, *img.Pixels)
	}

	inst := d.Instance(start)
	if err := w.derive(inst, si, j, start, end); err != nil {
		return nil, nil, err
	}
	if err := validate(inst); err != nil {
		return nil, nil, err
	}
	return inst, frames, nil
}

// derive fills the per-instance attributes computed from the series.
func (w *Writer) derive(inst attrs.Instance, si *series.SeriesInfo, j, start, end int) error {
	set := func(t attrs.Tag, v attrs.Value) error {
		if err := inst.Set(t, v); err != nil {
			return &AttributeError{Tags: []attrs.Tag{t}, Err: err}
		}
		return nil
	}
	setDefault := func(t attrs.Tag, v attrs.Value) error {
		if _, ok := inst.Get(t); ok {
			return nil
		}
		return set(t, v)
	}

	if err := set(attrs.InstanceNumber, attrs.Int(j+1)); err != nil {
		return err
	}
	if seriesUID, ok := inst.Get(attrs.SeriesInstanceUID); ok {
		var sop string
		switch w.sopUIDs {
		case SOPUIDRandom:
			sop = w.newUID()
		default:
			sop = util.DeriveUID(seriesUID.Text(), j+1)
		}
		if err := set(attrs.SOPInstanceUID, attrs.Str(sop)); err != nil {
			return err
		}
	}

	if date, ok := inst.Get(attrs.StudyDate); ok {
		if err := setDefault(attrs.SeriesDate, date); err != nil {
			return err
		}
	}
	increment := 1.0
	if v, ok := inst.Get(attrs.SeriesTimeIncrement); ok {
		increment = v.Number()
	}
	timePoint := si.TimePoint(j)
	if clock, ok := inst.Get(attrs.StudyTime); ok {
		if err := setDefault(attrs.SeriesTime, attrs.Time(clock.Clock())); err != nil {
			return err
		}
		offset := time.Duration(float64(timePoint) * increment * float64(time.Second))
		if err := setDefault(attrs.AcquisitionTime, attrs.Time(clock.Clock().Add(offset))); err != nil {
			return err
		}
	}
	if n := si.NumberOfTimePoints(); increment > 0 && n > 1 {
		if err := set(attrs.NumberOfTemporalPositions, attrs.Int(n)); err != nil {
			return err
		}
		if err := set(attrs.TemporalPositionIdentifier, attrs.Int(timePoint+1)); err != nil {
			return err
		}
	}

	if err := setDefault(attrs.ImageType, attrs.Str(defaultImageType)); err != nil {
		return err
	}
	if err := setDefault(attrs.ConversionType, attrs.Str(defaultConversionType)); err != nil {
		return err
	}
	sources := make([]string, 0, end-start)
	for i := start; i < end; i++ {
		img := si.Images[i]
		name := filepath.Base(img.SourceFile)
		if img.Frame > 0 {
			name = fmt.Sprintf("%s[%d]", name, img.Frame)
		}
		sources = append(sources, name)
	}
	return setDefault(attrs.DerivationDescription, attrs.Str("Converted from "+strings.Join(sources, ", ")))
}

// validate checks the attributes every written instance needs.
func validate(inst attrs.Instance) error {
	var missing []attrs.Tag
	for _, t := range requiredUIDs {
		v, ok := inst.Get(t)
		if !ok || !util.ValidUID(v.Text()) {
			missing = append(missing, t)
		}
	}
	if v, ok := inst.Get(attrs.FrameOfReferenceUID); ok && !util.ValidUID(v.Text()) {
		missing = append(missing, attrs.FrameOfReferenceUID)
	}
	if v, ok := inst.Get(attrs.Modality); !ok || v.Text() == "" {
		missing = append(missing, attrs.Modality)
	}
	if len(missing) > 0 {
		return &AttributeError{Tags: missing}
	}
	return nil
}

// lock serializes work on one destination path.
func (w *Writer) lock(path string) func() {
	w.mu.Lock()
	l, ok := w.locks[path]
	if !ok {
		l = &sync.Mutex{}
		w.locks[path] = l
	}
	w.mu.Unlock()
	l.Lock()
	return l.Unlock
}

func failed(res WriteResult, err error) WriteResult {
	res.Outcome = Failed
	res.Err = err
	res.Detail = err.Error()
	res.OutputFile = ""
	return res
}
