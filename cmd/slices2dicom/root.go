package main

import (
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mrsinham/slices2dicom/internal/config"
	"github.com/mrsinham/slices2dicom/internal/logging"
	"github.com/mrsinham/slices2dicom/internal/settings"
)

const longDescription = `Convert a directory of 2D image slices (PNG, JPEG, TIFF, BMP, WebP or DICOM)
into one DICOM series. Every slice becomes an instance of the series with
consistent patient, study and series identifiers and a computed position
along the chosen orientation.`

// flagKeys maps command line flags onto configuration keys.
var flagKeys = map[string]string{
	"log-level":     "log.level",
	"log-format":    "log.format",
	"settings-file": "settings.path",
	"workers":       "workers",
	"fail-fast":     "fail_fast",
	"layout":        "layout",
	"dicomdir":      "dicomdir",
	"sop-uid":       "sop_uid",
}

// app holds the state shared by the commands of one invocation.
type app struct {
	v       *viper.Viper
	cfgFile string
	cfg     config.Config
	log     *slog.Logger
}

func newRootCmd(version string) *cobra.Command {
	a := &app{v: viper.New(), log: logging.Discard()}

	root := &cobra.Command{
		Use:               "slices2dicom",
		Short:             "Convert a directory of 2D slices into a DICOM series",
		Long:              longDescription,
		Version:           version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.init,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default is $HOME/.slices2dicom.yaml)")
	pf.String("log-level", logging.LevelStandard, "log level: quiet|standard|debug")
	pf.String("log-format", "text", "log format: text|json")
	pf.String("settings-file", "", "settings file remembering the last run (default is in the user config dir)")

	root.AddCommand(newConvertCmd(a), newInspectCmd(a), newSettingsCmd(a))
	return root
}

// init loads the configuration and builds the logger before any command runs.
func (a *app) init(cmd *cobra.Command, _ []string) error {
	for name, key := range flagKeys {
		if f := cmd.Flags().Lookup(name); f != nil {
			if err := a.v.BindPFlag(key, f); err != nil {
				return err
			}
		}
	}

	cfg, used, err := config.Load(a.v, a.cfgFile)
	if err != nil {
		return err
	}
	a.cfg = cfg

	log, err := logging.New(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	a.log = log
	if used != "" {
		log.Debug("using config file", "path", used)
	}
	return nil
}

func (a *app) quiet() bool {
	return strings.EqualFold(strings.TrimSpace(a.cfg.Log.Level), logging.LevelQuiet)
}

func (a *app) settingsPath() (string, error) {
	if a.cfg.Settings.Path != "" {
		return a.cfg.Settings.Path, nil
	}
	return settings.DefaultPath()
}
