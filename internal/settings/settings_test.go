package settings

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mrsinham/slices2dicom/internal/attrs"
)

func TestLoad_MissingFile(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if s.InputDir != "" || len(s.Attributes) != 0 {
		t.Errorf("Load() = %+v, want empty settings", s)
	}
}

func TestLoad_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	if err := os.WriteFile(path, []byte("overwrite: [not a bool"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Load() should fail on malformed YAML")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "settings.yaml")
	want := &Settings{
		InputDir:       "/data/in",
		OutputDir:      "/data/out",
		Overwrite:      true,
		Orientation:    "sagittal",
		Spacing:        2.5,
		SlicesPerImage: 1,
		Attributes:     map[string]string{"PatientName": "DOE^John"},
	}
	if err := want.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.InputDir != want.InputDir || got.OutputDir != want.OutputDir || got.Overwrite != want.Overwrite ||
		got.Orientation != want.Orientation || got.Spacing != want.Spacing || got.SlicesPerImage != want.SlicesPerImage {
		t.Errorf("round trip = %+v, want %+v", got, want)
	}
	if got.Attributes["PatientName"] != "DOE^John" {
		t.Errorf("PatientName = %q", got.Attributes["PatientName"])
	}
}

func TestRememberAndDictionary(t *testing.T) {
	d := attrs.New()
	_ = d.Set(attrs.PatientName, attrs.Str("DOE^Jane"))
	_ = d.Set(attrs.PatientBirthDate, attrs.Date(time.Date(1970, 6, 1, 0, 0, 0, 0, time.UTC)))
	_ = d.Set(attrs.SeriesNumber, attrs.Int(5))
	_ = d.Set(attrs.SeriesTimeIncrement, attrs.Float(0.5))
	_ = d.Set(attrs.StudyInstanceUID, attrs.Str("1.2.3"))
	_ = d.Set(attrs.StudyDate, attrs.Date(time.Now()))

	s := &Settings{}
	s.Remember(d)

	if _, ok := s.Attributes["StudyInstanceUID"]; ok {
		t.Error("UIDs must not be persisted")
	}
	if _, ok := s.Attributes["StudyDate"]; ok {
		t.Error("StudyDate must not be persisted")
	}

	back, problems := s.Dictionary()
	if len(problems) != 0 {
		t.Fatalf("Dictionary() problems = %v", problems)
	}
	for _, tag := range []attrs.Tag{attrs.PatientName, attrs.PatientBirthDate, attrs.SeriesNumber, attrs.SeriesTimeIncrement} {
		want, _ := d.Get(tag)
		got, ok := back.Get(tag)
		if !ok || !got.Equal(want) {
			t.Errorf("%s = %v, want %v", tag, got, want)
		}
	}
}

func TestDictionary_SkipsBadEntries(t *testing.T) {
	s := &Settings{Attributes: map[string]string{
		"PatientName":      "OK",
		"PatientBirthDay":  "1970-01-01",
		"SeriesNumber":     "not a number",
		"StudyInstanceUID": "1.2.3",
	}}
	d, problems := s.Dictionary()
	if len(problems) != 3 {
		t.Errorf("problems = %d (%v), want 3", len(problems), problems)
	}
	if v, _ := d.Get(attrs.PatientName); v.Text() != "OK" {
		t.Errorf("PatientName = %v, want OK", v)
	}
	if d.IsSet(attrs.StudyInstanceUID) {
		t.Error("non persisted attribute loaded")
	}
	if len(problems) > 0 && !strings.Contains(problems[0].Error(), "PatientBirthDay") {
		t.Errorf("first problem = %v, want the unknown name first", problems[0])
	}
}

func TestDefaultPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())
	p, err := DefaultPath()
	if err != nil {
		t.Skipf("no user config dir: %v", err)
	}
	if filepath.Base(p) != "settings.yaml" || filepath.Base(filepath.Dir(p)) != "slices2dicom" {
		t.Errorf("DefaultPath() = %q", p)
	}
}
