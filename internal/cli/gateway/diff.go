package gateway

import (
	"io"
	"strings"

	"github.com/crmarques/declagate/internal/cli/common"
	"github.com/crmarques/declagate/orchestrator"
	"github.com/spf13/cobra"
)

func NewDiffCommand(deps common.CommandDependencies, globalFlags *common.GlobalFlags) *cobra.Command {
	var files common.FileFlags

	command := &cobra.Command{
		Use:   "diff",
		Short: "Show the changes a sync would apply",
		Example: strings.Join([]string{
			"  declagate diff -f gateway.yaml",
			"  declagate diff -f services/ -f consumers.yaml -o json",
			"  declagate diff -f gateway.yaml --jq '.summary.total'",
		}, "\n"),
		Args: cobra.NoArgs,
		RunE: func(command *cobra.Command, _ []string) error {
			paths, err := common.RequireFiles(files)
			if err != nil {
				return err
			}
			gateway, err := common.RequireOrchestrator(command.Context(), deps, globalFlags, common.BootstrapOptions{})
			if err != nil {
				return err
			}

			plan, err := gateway.Diff(command.Context(), paths)
			if err != nil {
				return err
			}

			verbose := common.IsVerbose(globalFlags)
			return common.WriteOutput(command, globalFlags, plan, func(w io.Writer, value orchestrator.Plan) error {
				return renderPlan(w, value, verbose)
			})
		},
	}
	common.BindFileFlags(command, &files)

	return command
}
