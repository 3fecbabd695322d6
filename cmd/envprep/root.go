package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/ZebulonRouseFrantzich/envprep/internal/acquire"
	"github.com/ZebulonRouseFrantzich/envprep/internal/archive"
	"github.com/ZebulonRouseFrantzich/envprep/internal/config"
	"github.com/ZebulonRouseFrantzich/envprep/internal/fetch"
	"github.com/ZebulonRouseFrantzich/envprep/internal/output"
	"github.com/ZebulonRouseFrantzich/envprep/internal/platform"
	"github.com/ZebulonRouseFrantzich/envprep/internal/runner"
	"github.com/ZebulonRouseFrantzich/envprep/internal/sysreq"
)

// app carries what every subcommand needs. It is filled in by the root
// command's PersistentPreRunE.
type app struct {
	configPath string
	logLevel   string
	verbose    bool

	settings *config.Settings
	log      output.Logger
	console  *output.Console
	stdout   io.Writer
}

func createRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "envprep",
		Short:         "Prepare build environments",
		Long:          "envprep downloads, verifies, unpacks and patches third-party sources\nand installs the native packages a build needs.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "config file (default "+config.DefaultPath()+")")
	flags.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn or error")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "shorthand for --log-level debug")

	root.AddCommand(
		newDetectCommand(a),
		newDownloadCommand(a),
		newUnpackCommand(a),
		newGetCommand(a),
		newChecksumCommand(a),
		newPatchCommand(a),
		newInstallCommand(a),
		newRunCommand(a),
		newConfigCommand(a),
		newVersionCommand(),
	)
	return root
}

// resolveLogLevel prefers --log-level, then --verbose, then the config.
func (a *app) resolveLogLevel() string {
	switch {
	case a.logLevel != "":
		return a.logLevel
	case a.verbose:
		return "debug"
	case a.settings != nil:
		return a.settings.LogLevel
	default:
		return "info"
	}
}

func (a *app) setup(cmd *cobra.Command) error {
	settings, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.settings = settings

	z, err := output.NewZap(a.resolveLogLevel(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	a.log = output.FromZap(z)
	output.Init(a.log)

	a.console = output.NewConsole(cmd.ErrOrStderr(), a.log)
	a.stdout = cmd.OutOrStdout()
	return nil
}

func (a *app) fetchOptions() fetch.Options {
	d := a.settings.Download
	return fetch.Options{Verify: d.Verify, Retry: d.Retry, RetryWait: d.RetryWait}
}

func (a *app) fetcher() *fetch.Fetcher {
	return fetch.New(fetch.WithConsole(a.console))
}

func (a *app) extractor() *archive.Extractor {
	return archive.NewExtractor(platform.Current().Family, a.console)
}

func (a *app) pipeline() *acquire.Pipeline {
	return acquire.New(a.fetcher(), a.extractor(), a.log)
}

func (a *app) packageTool() (*sysreq.PackageTool, error) {
	sys := a.settings.SysRequires
	opts := []sysreq.Option{
		sysreq.WithLogger(a.log),
		sysreq.WithMode(sys.Mode),
		sysreq.WithSudo(sys.Sudo),
	}
	if sys.Tool != "" {
		tool, err := sysreq.ToolByName(sys.Tool, sys.Sudo, runner.NewShell(a.log), a.log)
		if err != nil {
			return nil, err
		}
		opts = append(opts, sysreq.WithTool(tool))
	}
	return sysreq.NewPackageTool(opts...)
}

// addFetchFlags registers the flags that override the download settings.
func addFetchFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("no-verify", false, "skip TLS certificate verification")
	cmd.Flags().Int("retry", -1, "additional attempts after a failed download (default from config)")
	cmd.Flags().Duration("retry-wait", -1, "wait between attempts (default from config)")
}

func (a *app) fetchOptionsFromFlags(cmd *cobra.Command) fetch.Options {
	opts := a.fetchOptions()
	if v, _ := cmd.Flags().GetBool("no-verify"); v {
		opts.Verify = false
	}
	if v, _ := cmd.Flags().GetInt("retry"); v >= 0 {
		opts.Retry = v
	}
	if v, _ := cmd.Flags().GetDuration("retry-wait"); v >= 0 {
		opts.RetryWait = v
	}
	return opts
}

func (a *app) printf(format string, args ...interface{}) {
	fmt.Fprintf(a.stdout, format, args...)
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return strconv.FormatInt(d.Milliseconds(), 10) + "ms"
	}
	return d.Round(100 * time.Millisecond).String()
}
