package gateway

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/crmarques/declagate/internal/cli/common"
	"github.com/crmarques/declagate/resource"
	"github.com/crmarques/declagate/yamlutil"
	"github.com/spf13/cobra"
)

func NewDumpCommand(deps common.CommandDependencies, globalFlags *common.GlobalFlags) *cobra.Command {
	var outputPath string

	command := &cobra.Command{
		Use:   "dump",
		Short: "Export the gateway configuration",
		Example: strings.Join([]string{
			"  declagate dump",
			"  declagate dump -f gateway.yaml",
			"  declagate dump --jq '.services[].name'",
		}, "\n"),
		Args: cobra.NoArgs,
		RunE: func(command *cobra.Command, _ []string) error {
			gateway, err := common.RequireOrchestrator(command.Context(), deps, globalFlags, common.BootstrapOptions{})
			if err != nil {
				return err
			}

			current, err := gateway.Dump(command.Context())
			if err != nil {
				return err
			}
			if current == nil {
				current = resource.Configuration{}
			}

			if strings.TrimSpace(outputPath) != "" {
				if err := writeDumpFile(outputPath, current); err != nil {
					return err
				}
				common.Logger(command.Context()).Info("configuration written", "path", outputPath)
				return nil
			}

			return common.WriteOutput(command, yamlByDefault(globalFlags), current, nil)
		},
	}
	command.Flags().StringVarP(&outputPath, "file", "f", "", "write the configuration to this YAML file instead of stdout")
	_ = command.MarkFlagFilename("file", "yaml", "yml")

	return command
}

// yamlByDefault renders auto and text output as YAML, the format the
// configuration files use.
func yamlByDefault(globalFlags *common.GlobalFlags) *common.GlobalFlags {
	flags := common.GlobalFlags{Output: common.OutputYAML}
	if globalFlags == nil {
		return &flags
	}
	flags = *globalFlags
	if flags.Output == "" || flags.Output == common.OutputAuto || flags.Output == common.OutputText {
		flags.Output = common.OutputYAML
	}
	return &flags
}

func writeDumpFile(path string, cfg resource.Configuration) error {
	encoded, err := yamlutil.MarshalWithIndent(cfg, 2)
	if err != nil {
		return fmt.Errorf("encode configuration: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, encoded, 0o644)
}
