// Package settings persists the last used directories, geometry choices and
// attribute values between runs.
package settings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/mrsinham/slices2dicom/internal/attrs"
)

// Settings is the persisted state of the application.
type Settings struct {
	InputDir       string            `yaml:"inputDir,omitempty"`
	OutputDir      string            `yaml:"outputDir,omitempty"`
	Overwrite      bool              `yaml:"overwrite"`
	Orientation    string            `yaml:"orientation,omitempty"`
	Spacing        float64           `yaml:"spacing,omitempty"`
	SlicesPerImage int               `yaml:"slicesPerImage,omitempty"`
	Attributes     map[string]string `yaml:"attributes,omitempty"`
}

// DefaultPath returns the settings file location in the user config directory.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate user config dir: %w", err)
	}
	return filepath.Join(dir, "slices2dicom", "settings.yaml"), nil
}

// Load reads the settings at path. A missing file yields empty settings.
func Load(path string) (*Settings, error) {
	s := &Settings{}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error reading settings file: %w", err)
	}
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("error parsing settings file: %w", err)
	}
	return s, nil
}

// Save writes the settings to path, creating parent directories.
func (s *Settings) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("error creating settings directory: %w", err)
	}
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("error marshaling settings: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("error writing settings file: %w", err)
	}
	return nil
}

// Dictionary converts the persisted attributes into the persisted layer of
// the parameter resolution. Unknown names, values that no longer parse and
// attributes that are not persistable are skipped and reported.
func (s *Settings) Dictionary() (*attrs.Dictionary, []error) {
	d := attrs.New()
	var problems []error

	names := make([]string, 0, len(s.Attributes))
	for name := range s.Attributes {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		t, err := attrs.Lookup(name)
		if err != nil {
			problems = append(problems, err)
			continue
		}
		if !t.Info().Persist {
			problems = append(problems, fmt.Errorf("%s is not a persisted attribute", t))
			continue
		}
		v, err := attrs.ParseValue(t, s.Attributes[name])
		if err != nil {
			problems = append(problems, err)
			continue
		}
		if err := d.Set(t, v); err != nil {
			problems = append(problems, err)
		}
	}
	return d, problems
}

// Remember stores the persistable attributes of d, replacing the previous
// attribute values.
func (s *Settings) Remember(d *attrs.Dictionary) {
	s.Attributes = make(map[string]string)
	for _, t := range d.Tags() {
		if !t.Info().Persist {
			continue
		}
		v, _ := d.Get(t)
		s.Attributes[t.String()] = v.String()
	}
}
