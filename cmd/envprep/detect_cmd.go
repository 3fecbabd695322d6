package main

import (
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ZebulonRouseFrantzich/envprep/internal/platform"
	"github.com/ZebulonRouseFrantzich/envprep/internal/runner"
	"github.com/ZebulonRouseFrantzich/envprep/internal/sysreq"
)

// detectReport is the YAML shape printed by `envprep detect`.
type detectReport struct {
	OS          string `yaml:"os"`
	Arch        string `yaml:"arch"`
	Distro      string `yaml:"distro,omitempty"`
	Version     string `yaml:"version,omitempty"`
	VersionName string `yaml:"version_name,omitempty"`
	PackageTool string `yaml:"package_tool"`
}

func newDetectCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "detect",
		Short: "Print the detected platform and package manager",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fp := platform.DetectPlatform(cmd.Context())
			toolName := a.settings.SysRequires.Tool
			if toolName == "" {
				toolName = sysreq.SelectTool(fp, false, runner.NewShell(a.log), a.log).Name()
			}

			report := detectReport{
				OS:          string(fp.Family),
				Arch:        fp.Arch,
				Distro:      fp.DistroID,
				VersionName: fp.VersionName,
				PackageTool: toolName,
			}
			if !fp.Version.IsZero() {
				report.Version = fp.Version.String()
			}

			enc := yaml.NewEncoder(a.stdout)
			defer enc.Close()
			return enc.Encode(report)
		},
	}
}
