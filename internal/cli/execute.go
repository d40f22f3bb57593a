package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/crmarques/declagate/config"
	"github.com/crmarques/declagate/faults"
	"github.com/crmarques/declagate/internal/cli/commandmeta"
	"github.com/crmarques/declagate/internal/cli/common"
	"github.com/spf13/cobra"
)

type Dependencies struct {
	Contexts  config.ContextService
	Bootstrap common.Bootstrapper
}

func (d Dependencies) commandDependencies() common.CommandDependencies {
	return common.CommandDependencies{
		Contexts:  d.Contexts,
		Bootstrap: d.Bootstrap,
	}
}

// Execute runs the command line in os.Args. An interrupt cancels the
// running command through its context.
func Execute(deps Dependencies) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := setupTracing(ctx)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "tracing disabled: %v\n", err)
		shutdownTracing = func() {}
	}
	defer shutdownTracing()

	return execute(ctx, NewRootCommand(deps), os.Args[1:])
}

func execute(ctx context.Context, root *cobra.Command, args []string) error {
	root.SetArgs(args)
	command, err := root.ExecuteContextC(ctx)
	reporter := newStatusReporter(root.ErrOrStderr(), command)

	if err != nil {
		if reporter.enabled {
			reporter.failure(err)
		} else {
			_, _ = fmt.Fprintln(root.ErrOrStderr(), strings.TrimSpace(err.Error()))
		}
		return err
	}
	reporter.success()
	return nil
}

var exitCodes = map[faults.ErrorCategory]int{
	faults.ValidationError: 2,
	faults.NotFoundError:   3,
	faults.AuthError:       4,
	faults.ConflictError:   5,
	faults.TransportError:  6,
}

// ExitCodeForError maps an error to the process exit code: the typed
// category when one is present, 130 for an interrupted run and 1 otherwise.
func ExitCodeForError(err error) int {
	if err == nil {
		return 0
	}

	var typedErr *faults.TypedError
	if errors.As(err, &typedErr) {
		if code, found := exitCodes[typedErr.Category]; found {
			return code
		}
	}
	if errors.Is(err, context.Canceled) {
		return 130
	}
	return 1
}

// statusReporter writes the closing [OK] or [ERROR] line for commands that
// report one. It reads --no-status and --no-color from the executed command
// so it sees the same values cobra parsed.
type statusReporter struct {
	w       io.Writer
	enabled bool
	color   bool
}

func newStatusReporter(w io.Writer, command *cobra.Command) statusReporter {
	if command == nil || isHelpOrCompletion(command) {
		return statusReporter{w: w}
	}

	return statusReporter{
		w:       w,
		enabled: commandmeta.EmitsExecutionStatusPath(command.CommandPath()) && !boolFlag(command, "no-status"),
		color:   colorEnabled(w, boolFlag(command, "no-color")),
	}
}

func (r statusReporter) success() {
	if !r.enabled {
		return
	}
	_, _ = fmt.Fprintf(r.w, "%s command executed successfully.\n", r.label("OK", "32"))
}

func (r statusReporter) failure(err error) {
	if !r.enabled {
		return
	}
	_, _ = fmt.Fprintf(r.w, "%s command execution failed: %s.\n", r.label("ERROR", "31"), strings.TrimSpace(err.Error()))
}

func (r statusReporter) label(status string, colorCode string) string {
	if !r.color {
		return "[" + status + "]"
	}
	return "\x1b[1;" + colorCode + "m[" + status + "]\x1b[0m"
}

func isHelpOrCompletion(command *cobra.Command) bool {
	switch command.Name() {
	case "help", cobra.ShellCompRequestCmd, cobra.ShellCompNoDescRequestCmd:
		return true
	}
	for current := command; current != nil; current = current.Parent() {
		if current.Name() == "completion" && current.Parent() != nil && !current.Parent().HasParent() {
			return true
		}
	}
	return boolFlag(command, "help")
}

func boolFlag(command *cobra.Command, name string) bool {
	flag := command.Flags().Lookup(name)
	if flag == nil {
		return false
	}
	value, err := strconv.ParseBool(flag.Value.String())
	return err == nil && value
}

// colorEnabled honours NO_COLOR and dumb terminals.
func colorEnabled(w io.Writer, noColorFlag bool) bool {
	if noColorFlag || strings.TrimSpace(os.Getenv("NO_COLOR")) != "" {
		return false
	}
	if !common.IsTerminalWriter(w) {
		return false
	}
	term := strings.ToLower(strings.TrimSpace(os.Getenv("TERM")))
	return term != "" && term != "dumb"
}
