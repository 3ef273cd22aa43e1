package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/mrsinham/slices2dicom/internal/attrs"
	"github.com/mrsinham/slices2dicom/internal/convert"
	"github.com/mrsinham/slices2dicom/internal/geometry"
	"github.com/mrsinham/slices2dicom/internal/params"
	"github.com/mrsinham/slices2dicom/internal/series"
	"github.com/mrsinham/slices2dicom/internal/settings"
)

type convertOptions struct {
	input          string
	output         string
	overwrite      bool
	orientation    string
	spacing        float64
	slicesPerImage int
	numberOfImages int
	origin         string
	tags           []string
	generateUID    bool
	now            string
	interactive    bool
	noSave         bool
}

func newConvertCmd(a *app) *cobra.Command {
	o := &convertOptions{}
	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Convert the slices of a directory into a DICOM series",
		Long: `Convert every image of the input directory, in natural name order, into one
DICOM series. Directories, geometry and attribute values not given on the
command line are taken from the last run.`,
		Example: `  slices2dicom convert --input ./slices --output ./dicom --spacing 2
  slices2dicom convert --input ./slices --output ./dicom --tag PatientName=DOE^Jane --tag Modality=CT
  slices2dicom convert --input ./slices --output ./dicom --slices-per-image 10 --dicomdir`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runConvert(cmd, o)
		},
	}

	f := cmd.Flags()
	f.StringVar(&o.input, "input", "", "directory holding the input slices")
	f.StringVarP(&o.output, "output", "o", "", "output directory")
	f.BoolVar(&o.overwrite, "overwrite", false, "replace existing output files")
	f.StringVar(&o.orientation, "orientation", geometry.Axial.String(), "slice orientation: axial|sagittal|coronal")
	f.Float64Var(&o.spacing, "spacing", 1, "distance between consecutive slices in mm")
	f.IntVar(&o.slicesPerImage, "slices-per-image", 1, "slices packed as frames into each output instance")
	f.IntVar(&o.numberOfImages, "number-of-images", 0, "expected number of output instances, checked after reading")
	f.StringVar(&o.origin, "origin", "0,0,0", "position of the first slice in mm: x,y,z")
	f.StringArrayVarP(&o.tags, "tag", "t", nil, "set an attribute: Name=Value (repeatable)")
	f.BoolVar(&o.generateUID, "generate-study-uid", true, "generate a StudyInstanceUID when none is set")
	f.StringVar(&o.now, "now", "", "study date and time (RFC 3339) used when no StudyDate is set")
	f.BoolVar(&o.interactive, "interactive", false, "edit the attributes in a form before converting")
	f.BoolVar(&o.noSave, "no-save", false, "do not remember this run in the settings file")

	f.Int("workers", runtime.NumCPU(), "number of parallel workers")
	f.Bool("fail-fast", false, "stop starting new instances after the first failure")
	f.String("layout", series.LayoutTree.String(), "output layout: tree|flat")
	f.Bool("dicomdir", false, "write a DICOMDIR at the output root")
	f.String("sop-uid", "derived", "SOP Instance UID scheme: derived|random")
	return cmd
}

// applySettings fills the options not given on the command line from the
// last run.
func (o *convertOptions) applySettings(flags *pflag.FlagSet, s *settings.Settings) {
	if !flags.Changed("input") && s.InputDir != "" {
		o.input = s.InputDir
	}
	if !flags.Changed("output") && s.OutputDir != "" {
		o.output = s.OutputDir
	}
	if !flags.Changed("overwrite") {
		o.overwrite = s.Overwrite
	}
	if !flags.Changed("orientation") && s.Orientation != "" {
		o.orientation = s.Orientation
	}
	if !flags.Changed("spacing") && s.Spacing != 0 {
		o.spacing = s.Spacing
	}
	if !flags.Changed("slices-per-image") && s.SlicesPerImage > 0 {
		o.slicesPerImage = s.SlicesPerImage
	}
}

// remember stores the options of a completed run.
func (o *convertOptions) remember(s *settings.Settings, d *attrs.Dictionary) {
	s.InputDir = absPath(o.input)
	s.OutputDir = absPath(o.output)
	s.Overwrite = o.overwrite
	s.Orientation = o.orientation
	s.Spacing = o.spacing
	s.SlicesPerImage = o.slicesPerImage
	s.Remember(d)
}

func (a *app) runConvert(cmd *cobra.Command, o *convertOptions) error {
	out := cmd.OutOrStdout()

	path, err := a.settingsPath()
	if err != nil {
		return err
	}
	st, err := settings.Load(path)
	if err != nil {
		a.log.Warn("settings ignored", "path", path, "error", err)
		st = &settings.Settings{}
	}
	o.applySettings(cmd.Flags(), st)

	if o.input == "" {
		return errors.New("--input is required")
	}
	if o.output == "" {
		return errors.New("--output is required")
	}
	orientation, err := geometry.ParseOrientation(o.orientation)
	if err != nil {
		return err
	}
	o.orientation = orientation.String()
	origin, err := parseOrigin(o.origin)
	if err != nil {
		return err
	}
	layout, err := series.ParseLayout(a.cfg.Layout)
	if err != nil {
		return err
	}
	sopMode, err := convert.ParseSOPUIDMode(a.cfg.SOPUID)
	if err != nil {
		return err
	}

	resolved, err := o.resolve(a, st)
	if err != nil {
		return err
	}
	if o.interactive {
		if err := editAttributes(resolved); err != nil {
			return err
		}
	}

	req := convert.Request{
		InputDir:         o.input,
		OutputDir:        o.output,
		Overwrite:        o.overwrite,
		Attributes:       resolved,
		Orientation:      orientation,
		Origin:           origin,
		Spacing:          o.spacing,
		SlicesPerImage:   o.slicesPerImage,
		NumberOfImages:   o.numberOfImages,
		GenerateStudyUID: o.generateUID,
		Layout:           layout,
	}

	p := &progress{w: out, quiet: a.quiet()}
	c := convert.New(
		convert.WithLogger(a.log),
		convert.WithWorkers(a.cfg.Workers),
		convert.WithFailFast(a.cfg.FailFast),
		convert.WithDICOMDIR(a.cfg.DICOMDIR),
		convert.WithSOPUIDMode(sopMode),
		convert.WithProgress(p.update),
	)

	if !a.quiet() {
		printRequest(out, req)
	}
	res, err := c.Convert(cmd.Context(), req)
	p.finish()
	if err != nil {
		return err
	}
	if !a.quiet() {
		printResult(out, res)
	}

	if !o.noSave {
		o.remember(st, resolved)
		if err := st.Save(path); err != nil {
			a.log.Warn("settings not saved", "path", path, "error", err)
		}
	}

	if res.HasFailures() {
		return &exitError{code: 2, err: fmt.Errorf("%d of %d slices failed", res.Totals.Failed, len(res.Slices))}
	}
	return nil
}

// resolve merges the compiled-in defaults, the remembered attributes and the
// --tag overrides. "--tag Name=" forgets the remembered value of Name.
func (o *convertOptions) resolve(a *app, st *settings.Settings) (*attrs.Dictionary, error) {
	persisted, problems := st.Dictionary()
	for _, p := range problems {
		a.log.Warn("remembered attribute ignored", "error", p)
	}
	overrides, err := attrs.ParseAssignments(o.tags)
	if err != nil {
		return nil, err
	}

	opts := params.Options{GenerateTimestamp: true, Clear: attrs.ClearedTags(o.tags)}
	for _, t := range opts.Clear {
		a.log.Debug("remembered attribute cleared", "tag", t.String())
	}
	if o.now != "" {
		t, err := time.Parse(time.RFC3339, o.now)
		if err != nil {
			return nil, fmt.Errorf("invalid --now %q (expected RFC 3339)", o.now)
		}
		opts.Now = func() time.Time { return t }
	}
	return params.Resolve(params.Defaults(), persisted, overrides, opts), nil
}

// parseOrigin parses "x,y,z" (or backslash separated) coordinates.
func parseOrigin(s string) (r3.Vec, error) {
	v, err := attrs.ParseValue(attrs.ImagePositionPatient, s)
	if err != nil {
		return r3.Vec{}, fmt.Errorf("invalid --origin %q: %w", s, err)
	}
	if !v.IsSet() {
		return r3.Vec{}, nil
	}
	c := v.Components()
	return r3.Vec{X: c[0], Y: c[1], Z: c[2]}, nil
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}
