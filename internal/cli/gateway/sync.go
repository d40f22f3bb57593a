package gateway

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/crmarques/declagate/backend"
	"github.com/crmarques/declagate/internal/cli/common"
	"github.com/crmarques/declagate/orchestrator"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

type syncFlags struct {
	files       common.FileFlags
	yes         bool
	concurrency int
	metricsFile string
}

func NewSyncCommand(deps common.CommandDependencies, globalFlags *common.GlobalFlags) *cobra.Command {
	return newSyncCommandWithConfirm(deps, globalFlags, promptSync)
}

// confirmFunc decides whether a computed plan gets applied.
type confirmFunc func(command *cobra.Command, plan orchestrator.Plan) (bool, error)

func newSyncCommandWithConfirm(deps common.CommandDependencies, globalFlags *common.GlobalFlags, confirm confirmFunc) *cobra.Command {
	var flags syncFlags

	command := &cobra.Command{
		Use:   "sync",
		Short: "Apply the configuration to the gateway",
		Example: strings.Join([]string{
			"  declagate sync -f gateway.yaml",
			"  declagate sync -f services/ --yes --concurrency 4",
			"  declagate sync -f gateway.yaml --yes --metrics-file /var/lib/node_exporter/declagate.prom",
		}, "\n"),
		Args: cobra.NoArgs,
		RunE: func(command *cobra.Command, _ []string) error {
			paths, err := common.RequireFiles(flags.files)
			if err != nil {
				return err
			}
			if flags.concurrency < 0 {
				return common.ValidationError("flag --concurrency must not be negative", nil)
			}

			registry := prometheus.NewRegistry()
			opts := common.BootstrapOptions{
				Concurrency: flags.concurrency,
				Registerer:  registry,
			}
			if common.IsVerbose(globalFlags) {
				opts.Progress = progressPrinter(command.ErrOrStderr())
			}

			gateway, err := common.RequireOrchestrator(command.Context(), deps, globalFlags, opts)
			if err != nil {
				return err
			}

			syncOpts := orchestrator.SyncOptions{}
			if !flags.yes && confirm != nil {
				syncOpts.Confirm = func(plan orchestrator.Plan) (bool, error) {
					return confirm(command, plan)
				}
			}

			report, syncErr := gateway.Sync(command.Context(), paths, syncOpts)
			if syncErr != nil && report.Plan.TransactionID == "" {
				return syncErr
			}

			if strings.TrimSpace(flags.metricsFile) != "" {
				if err := prometheus.WriteToTextfile(flags.metricsFile, registry); err != nil {
					return fmt.Errorf("write metrics file: %w", err)
				}
			}

			if err := common.WriteOutput(command, globalFlags, report, renderReport); err != nil {
				return err
			}
			return syncErr
		},
	}

	common.BindFileFlags(command, &flags.files)
	command.Flags().BoolVarP(&flags.yes, "yes", "y", false, "apply without asking for confirmation")
	command.Flags().IntVar(&flags.concurrency, "concurrency", 0, "events applied in parallel within one batch (default from context, else 1)")
	command.Flags().StringVar(&flags.metricsFile, "metrics-file", "", "write sync metrics in Prometheus text format to this file")

	return command
}

// promptSync asks for confirmation only on an interactive terminal; scripted
// runs apply directly.
func promptSync(command *cobra.Command, plan orchestrator.Plan) (bool, error) {
	if !common.IsInteractiveTerminal(command) {
		return true, nil
	}

	description := &strings.Builder{}
	if err := renderPlan(description, plan, false); err != nil {
		return false, err
	}
	return common.PromptConfirm(command, "Apply these changes?", description.String())
}

func progressPrinter(w io.Writer) func(backend.SyncResult) {
	var mu sync.Mutex
	return func(result backend.SyncResult) {
		mu.Lock()
		defer mu.Unlock()
		_, _ = fmt.Fprintln(w, describeResult(result))
	}
}
