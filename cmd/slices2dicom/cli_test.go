package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/spf13/pflag"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/mrsinham/slices2dicom/internal/attrs"
	"github.com/mrsinham/slices2dicom/internal/settings"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, 0},
		{"cancelled", fmt.Errorf("form: %w", errCancelled), 0},
		{"partial failure", &exitError{code: 2, err: errors.New("1 of 3 slices failed")}, 2},
		{"fatal", errors.New("boom"), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCode(tt.err); got != tt.want {
				t.Errorf("exitCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestParseOrigin(t *testing.T) {
	tests := []struct {
		in      string
		want    r3.Vec
		wantErr bool
	}{
		{"0,0,0", r3.Vec{}, false},
		{"", r3.Vec{}, false},
		{"1.5, -2, 30", r3.Vec{X: 1.5, Y: -2, Z: 30}, false},
		{`4\5\6`, r3.Vec{X: 4, Y: 5, Z: 6}, false},
		{"1,2", r3.Vec{}, true},
		{"a,b,c", r3.Vec{}, true},
	}
	for _, tt := range tests {
		got, err := parseOrigin(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseOrigin(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("parseOrigin(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestApplySettings(t *testing.T) {
	s := &settings.Settings{
		InputDir:       "/data/in",
		OutputDir:      "/data/out",
		Overwrite:      true,
		Orientation:    "coronal",
		Spacing:        3,
		SlicesPerImage: 4,
	}

	cmd := newConvertCmd(&app{})
	if err := cmd.Flags().Parse([]string{"--output", "/tmp/x", "--spacing", "0.5"}); err != nil {
		t.Fatal(err)
	}
	o := optionsOf(t, cmd.Flags())
	o.applySettings(cmd.Flags(), s)

	if o.input != "/data/in" || o.output != "/tmp/x" {
		t.Errorf("directories = %q, %q", o.input, o.output)
	}
	if !o.overwrite || o.orientation != "coronal" || o.slicesPerImage != 4 {
		t.Errorf("options = %+v, want the remembered values", o)
	}
	if o.spacing != 0.5 {
		t.Errorf("spacing = %g, the command line must win", o.spacing)
	}
}

// optionsOf reads back the option values bound to flags.
func optionsOf(t *testing.T, f *pflag.FlagSet) *convertOptions {
	t.Helper()
	o := &convertOptions{}
	o.input, _ = f.GetString("input")
	o.output, _ = f.GetString("output")
	o.overwrite, _ = f.GetBool("overwrite")
	o.orientation, _ = f.GetString("orientation")
	o.spacing, _ = f.GetFloat64("spacing")
	o.slicesPerImage, _ = f.GetInt("slices-per-image")
	return o
}

func TestFormValues(t *testing.T) {
	d := attrs.New()
	if err := d.Set(attrs.PatientName, attrs.Str("DOE^Jane")); err != nil {
		t.Fatal(err)
	}
	if err := d.Set(attrs.SeriesNumber, attrs.Int(3)); err != nil {
		t.Fatal(err)
	}

	values := formValues(d)
	if *values[attrs.PatientName] != "DOE^Jane" || *values[attrs.SeriesNumber] != "3" {
		t.Fatalf("form values = %q, %q", *values[attrs.PatientName], *values[attrs.SeriesNumber])
	}

	*values[attrs.PatientName] = ""
	*values[attrs.SeriesNumber] = "8"
	*values[attrs.PatientBirthDate] = "1970-03-04"
	if err := applyFormValues(d, values); err != nil {
		t.Fatalf("applyFormValues() error = %v", err)
	}
	if d.IsSet(attrs.PatientName) {
		t.Error("an emptied field must unset the attribute")
	}
	if v, _ := d.Get(attrs.SeriesNumber); v.Integer() != 8 {
		t.Errorf("SeriesNumber = %v, want 8", v)
	}
	if v, _ := d.Get(attrs.PatientBirthDate); v.String() != "1970-03-04" {
		t.Errorf("PatientBirthDate = %v", v)
	}

	*values[attrs.SeriesNumber] = "eight"
	if err := applyFormValues(d, values); err == nil {
		t.Error("applyFormValues() accepted a non-numeric SeriesNumber")
	}
}
