// Package params merges default, persisted and user supplied attribute
// values into the effective attributes of a conversion run.
package params

import (
	"strings"
	"time"

	"github.com/mrsinham/slices2dicom/internal/attrs"
	"github.com/mrsinham/slices2dicom/internal/dicom/modalities"
)

// Options tunes Resolve.
type Options struct {
	// GenerateTimestamp fills StudyDate and StudyTime with the current time
	// when neither the defaults nor the persisted layer set them.
	GenerateTimestamp bool
	// Now defaults to time.Now.
	Now func() time.Time
	// Clear drops the persisted value of these tags. They fall back to their
	// compiled-in default, or stay unset.
	Clear []attrs.Tag
}

// Defaults returns the compiled-in attribute values.
func Defaults() *attrs.Dictionary {
	d := attrs.New()
	must(d.Set(attrs.PatientID, attrs.Str("0")))
	must(d.Set(attrs.PatientSex, attrs.Str("O")))
	must(d.Set(attrs.StudyID, attrs.Str("0")))
	must(d.Set(attrs.Modality, attrs.Str(string(modalities.OT))))
	must(d.Set(attrs.SeriesNumber, attrs.Int(1)))
	must(d.Set(attrs.SeriesTimeIncrement, attrs.Float(1)))
	must(d.Set(attrs.PatientPosition, attrs.Str("FFS")))
	must(d.Set(attrs.SliceThickness, attrs.Float(1)))
	must(d.Set(attrs.SpacingBetweenSlices, attrs.Float(1)))
	return d
}

// Resolve merges the layers: defaults < persisted < overrides, later layers
// winning per tag. Any layer may be nil. Resolution never fails.
func Resolve(defaults, persisted, overrides *attrs.Dictionary, opts Options) *attrs.Dictionary {
	out := attrs.New()
	out.Merge(defaults)
	out.Merge(persisted)
	for _, t := range opts.Clear {
		out.Unset(t)
		if defaults == nil {
			continue
		}
		if v, ok := defaults.Get(t); ok {
			must(out.Set(t, v))
		}
	}

	if opts.GenerateTimestamp && !out.IsSet(attrs.StudyDate) && !out.IsSet(attrs.StudyTime) {
		now := time.Now
		if opts.Now != nil {
			now = opts.Now
		}
		t := now()
		must(out.Set(attrs.StudyDate, attrs.Date(t)))
		must(out.Set(attrs.StudyTime, attrs.Time(t)))
	}

	out.Merge(overrides)
	normalize(out)
	return out
}

// NormalizeSex maps the labels offered to users onto the DICOM M, F and O
// codes. Unknown values are returned upper-cased.
func NormalizeSex(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "m", "male":
		return "M"
	case "f", "female":
		return "F"
	case "o", "other", "unspecified", "unknown":
		return "O"
	}
	return strings.ToUpper(strings.TrimSpace(s))
}

func normalize(d *attrs.Dictionary) {
	if v, ok := d.Get(attrs.PatientSex); ok {
		must(d.Set(attrs.PatientSex, attrs.Str(NormalizeSex(v.Text()))))
	}
	if v, ok := d.Get(attrs.Modality); ok {
		must(d.Set(attrs.Modality, attrs.Str(modalities.Normalize(v.Text()))))
	}
	if v, ok := d.Get(attrs.PatientPosition); ok {
		must(d.Set(attrs.PatientPosition, attrs.Str(strings.ToUpper(strings.TrimSpace(v.Text())))))
	}
}

// must panics on errors that can only come from a programming mistake in
// the compiled-in tables.
func must(err error) {
	if err != nil {
		panic(err)
	}
}
