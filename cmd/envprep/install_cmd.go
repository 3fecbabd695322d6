package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/ZebulonRouseFrantzich/envprep/internal/lock"
	"github.com/ZebulonRouseFrantzich/envprep/internal/sysreq"
)

// lockWait is how often a blocked install or recipe run polls the lock.
const lockWait = 500 * time.Millisecond

func newInstallCommand(a *app) *cobra.Command {
	var (
		noUpdate bool
		force    bool
	)
	cmd := &cobra.Command{
		Use:   "install NAME [NAME...]",
		Short: "Install the first available of several native packages",
		Long: `Candidates are tried in order. Nothing is installed when one of them is
already present, unless --force is given.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tool, err := a.packageTool()
			if err != nil {
				return err
			}

			l, err := lock.Acquire(cmd.Context(), a.settings.CacheDir, "sysrequires", lockWait)
			if err != nil {
				return err
			}
			defer l.Release()

			opts := sysreq.InstallOptions{Update: !noUpdate, Force: force}
			if err := tool.Install(cmd.Context(), args, opts); err != nil {
				return err
			}
			a.log.Debug("system requirements satisfied", "tool", tool.Tool().Name())
			return nil
		},
	}
	cmd.Flags().BoolVar(&noUpdate, "no-update", false, "do not refresh the package index first")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "install even if a candidate is present")
	return cmd
}
