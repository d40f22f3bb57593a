package cli

import (
	"strings"

	"github.com/crmarques/declagate/internal/cli/common"
	"github.com/crmarques/declagate/internal/cli/config"
	"github.com/crmarques/declagate/internal/cli/gateway"
	"github.com/crmarques/declagate/internal/cli/version"
	"github.com/spf13/cobra"
)

const rootExample = `  # preview the changes needed to match gateway.yaml
  declagate diff -f gateway.yaml

  # apply them against the staging context without prompting
  declagate sync -f gateway.yaml --context staging --yes

  # export the live configuration
  declagate dump -f live.yaml`

func NewRootCommand(deps Dependencies) *cobra.Command {
	commandDeps := deps.commandDependencies()
	var globalFlags common.GlobalFlags

	root := &cobra.Command{
		Use:   "declagate",
		Short: "Plan and apply declarative API gateway configuration",
		Long: strings.Join([]string{
			"declagate compares a declarative gateway configuration with the live state",
			"of an APISIX-style admin API (or a local state file) and applies the",
			"minimal ordered set of changes that makes them match.",
		}, "\n"),
		RunE: func(command *cobra.Command, _ []string) error {
			return command.Help()
		},
		Example: rootExample,
		Args:    cobra.NoArgs,
		PersistentPreRunE: func(command *cobra.Command, _ []string) error {
			if err := common.ValidateOutputFormat(globalFlags.Output); err != nil {
				return err
			}
			if err := common.ValidateOutputFormatForCommandPath(command.CommandPath(), globalFlags.Output); err != nil {
				return err
			}
			if err := common.ValidateJQ(globalFlags.JQ); err != nil {
				return err
			}

			commandContext := common.WithLogger(command.Context(), command.ErrOrStderr(), globalFlags.Debug)
			command.SetContext(commandContext)

			common.Logger(commandContext).V(1).Info(
				"root flags",
				"context", globalFlags.Context,
				"output", globalFlags.Output,
				"verbose", globalFlags.Verbose,
				"noStatus", globalFlags.NoStatus,
				"noColor", globalFlags.NoColor,
				"command", command.CommandPath(),
			)

			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	common.BindGlobalFlags(root, &globalFlags)
	root.PersistentFlags().BoolP("help", "h", false, "help for command")

	root.AddGroup(
		&cobra.Group{ID: "gateway", Title: "Gateway Commands:"},
		&cobra.Group{ID: "other", Title: "Other Commands:"},
	)

	gatewayCommands := []*cobra.Command{
		gateway.NewDiffCommand(commandDeps, &globalFlags),
		gateway.NewSyncCommand(commandDeps, &globalFlags),
		gateway.NewDumpCommand(commandDeps, &globalFlags),
		gateway.NewPingCommand(commandDeps, &globalFlags),
	}
	for _, command := range gatewayCommands {
		command.GroupID = "gateway"
		root.AddCommand(command)
	}

	otherCommands := []*cobra.Command{
		config.NewCommand(commandDeps, &globalFlags),
		version.NewCommand(&globalFlags),
	}
	for _, command := range otherCommands {
		command.GroupID = "other"
		root.AddCommand(command)
	}
	root.SetCompletionCommandGroupID("other")

	return root
}
