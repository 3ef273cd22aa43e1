package main

import (
	"github.com/spf13/cobra"

	"github.com/mrsinham/slices2dicom/internal/convert"
)

func newInspectCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <dir>",
		Short: "Report what a conversion of a directory would read",
		Long: `Decode every candidate file of the directory and report the number of
slices, their size, pixel spacing and formats, and the files that cannot be
read. Nothing is written.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := convert.Inspect(args[0], nil, a.cfg.Workers)
			if p != nil {
				printPreview(cmd.OutOrStdout(), p)
			}
			return err
		},
	}
}
