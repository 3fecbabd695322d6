package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ZebulonRouseFrantzich/envprep/internal/patch"
)

func newPatchCommand(a *app) *cobra.Command {
	var (
		base  string
		strip int
	)
	cmd := &cobra.Command{
		Use:   "patch PATCHFILE|-",
		Short: "Apply a unified diff, all hunks or none",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := patch.Options{BasePath: base, Strip: strip}
			if args[0] == "-" {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read patch: %w", err)
				}
				opts.Content = string(data)
			} else {
				opts.File = args[0]
			}
			if err := patch.Apply(opts, a.log); err != nil {
				return err
			}
			a.printf("patch applied\n")
			return nil
		},
	}
	cmd.Flags().StringVarP(&base, "directory", "d", ".", "directory the patch paths are relative to")
	cmd.Flags().IntVarP(&strip, "strip", "p", 0, "leading path components to remove")
	return cmd
}
