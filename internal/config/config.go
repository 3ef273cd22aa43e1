// Package config loads the application configuration from an optional YAML
// file, SLICES2DICOM_* environment variables and bound command line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "SLICES2DICOM"

// Config is the effective application configuration.
type Config struct {
	Workers  int  `mapstructure:"workers"`
	FailFast bool `mapstructure:"fail_fast"`
	Log      struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"log"`
	Settings struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"settings"`
	// Layout is "tree" or "flat".
	Layout   string `mapstructure:"layout"`
	DICOMDIR bool   `mapstructure:"dicomdir"`
	// SOPUID is "derived" or "random".
	SOPUID string `mapstructure:"sop_uid"`
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("workers", runtime.NumCPU())
	v.SetDefault("fail_fast", false)
	v.SetDefault("log.level", "standard")
	v.SetDefault("log.format", "text")
	v.SetDefault("settings.path", "")
	v.SetDefault("layout", "tree")
	v.SetDefault("dicomdir", false)
	v.SetDefault("sop_uid", "derived")
}

// Load reads the configuration into v and decodes it. When file is empty,
// .slices2dicom.yaml is looked up in the home directory; a missing file is
// not an error. It returns the config file used, if any.
func Load(v *viper.Viper, file string) (Config, string, error) {
	SetDefaults(v)

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigType("yaml")
		v.SetConfigName(".slices2dicom")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	used := ""
	err := v.ReadInConfig()
	notFound := viper.ConfigFileNotFoundError{}
	switch {
	case err != nil && !errors.As(err, &notFound):
		return Config{}, "", fmt.Errorf("error reading config file: %w", err)
	case err == nil:
		used = v.ConfigFileUsed()
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, used, fmt.Errorf("error decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, used, err
	}
	return cfg, used, nil
}

// Validate checks the enumerated keys.
func (c Config) Validate() error {
	var errs []error
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers must not be negative, got %d", c.Workers))
	}
	switch strings.ToLower(c.Layout) {
	case "tree", "flat":
	default:
		errs = append(errs, fmt.Errorf("invalid layout %q (expected tree|flat)", c.Layout))
	}
	switch strings.ToLower(c.SOPUID) {
	case "derived", "random":
	default:
		errs = append(errs, fmt.Errorf("invalid sop_uid %q (expected derived|random)", c.SOPUID))
	}
	return errors.Join(errs...)
}
