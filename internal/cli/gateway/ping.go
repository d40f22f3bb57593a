package gateway

import (
	"github.com/crmarques/declagate/internal/cli/common"
	"github.com/spf13/cobra"
)

func NewPingCommand(deps common.CommandDependencies, globalFlags *common.GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check connectivity and credentials against the backend",
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, _ []string) error {
			gateway, err := common.RequireOrchestrator(command.Context(), deps, globalFlags, common.BootstrapOptions{})
			if err != nil {
				return err
			}
			if err := gateway.Ping(command.Context()); err != nil {
				return err
			}
			if common.IsVerbose(globalFlags) {
				return common.WriteText(command, "backend is reachable")
			}
			return nil
		},
	}
}
