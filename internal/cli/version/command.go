package version

import (
	"fmt"
	"io"
	"runtime"
	"runtime/debug"

	"github.com/crmarques/declagate/internal/cli/common"
	"github.com/spf13/cobra"
)

// Set through -ldflags at release time.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

type info struct {
	Version   string `json:"version" yaml:"version"`
	Commit    string `json:"commit" yaml:"commit"`
	BuildDate string `json:"buildDate" yaml:"buildDate"`
	GoVersion string `json:"goVersion" yaml:"goVersion"`
}

func NewCommand(globalFlags *common.GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print CLI version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			value := current(debug.ReadBuildInfo)
			return common.WriteOutput(cmd, globalFlags, value, func(w io.Writer, item info) error {
				_, err := fmt.Fprintf(w, "declagate %s (%s, built %s, %s)\n", item.Version, item.Commit, item.BuildDate, item.GoVersion)
				return err
			})
		},
	}
}

// current fills fields left at their defaults from the embedded build
// information, which covers binaries built with go install.
func current(readBuildInfo func() (*debug.BuildInfo, bool)) info {
	value := info{Version: Version, Commit: Commit, BuildDate: BuildDate, GoVersion: runtime.Version()}

	buildInfo, ok := readBuildInfo()
	if !ok || buildInfo == nil {
		return value
	}
	if value.Version == "dev" && buildInfo.Main.Version != "" && buildInfo.Main.Version != "(devel)" {
		value.Version = buildInfo.Main.Version
	}
	for _, setting := range buildInfo.Settings {
		switch {
		case setting.Key == "vcs.revision" && value.Commit == "unknown":
			value.Commit = setting.Value
		case setting.Key == "vcs.time" && value.BuildDate == "unknown":
			value.BuildDate = setting.Value
		}
	}
	return value
}
