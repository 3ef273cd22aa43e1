// Command slices2dicom converts a directory of 2D image slices into a DICOM
// series.
package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/charmbracelet/fang"
)

// version is set at build time via -ldflags
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := fang.Execute(ctx, newRootCmd(version), fang.WithColorSchemeFunc(fangColorScheme))
	stop()
	os.Exit(exitCode(err))
}
