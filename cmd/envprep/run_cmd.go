package main

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ZebulonRouseFrantzich/envprep/internal/acquire"
	"github.com/ZebulonRouseFrantzich/envprep/internal/lock"
	"github.com/ZebulonRouseFrantzich/envprep/internal/platform"
	"github.com/ZebulonRouseFrantzich/envprep/internal/recipe"
)

func newRunCommand(a *app) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "run RECIPE.lua",
		Short: "Run a Lua build-preparation recipe",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tool, err := a.packageTool()
			if err != nil {
				return err
			}
			if dir == "" {
				dir = filepath.Dir(args[0])
			}

			l, err := lock.Acquire(cmd.Context(), a.settings.CacheDir, "recipe", lockWait)
			if err != nil {
				return err
			}
			defer l.Release()

			fetcher := a.fetcher()
			extractor := a.extractor()
			env := recipe.Env{
				Fingerprint: platform.Current(),
				Getter:      acquire.New(fetcher, extractor, a.log),
				Downloader:  fetcher,
				Unpacker:    extractor,
				Installer:   tool,
				Fetch:       a.fetchOptions(),
				Dir:         dir,
				Log:         a.log,
			}
			return recipe.RunFile(cmd.Context(), args[0], env)
		},
	}
	cmd.Flags().StringVarP(&dir, "directory", "C", "", "directory relative recipe paths resolve against (default: the recipe's directory)")
	return cmd
}
