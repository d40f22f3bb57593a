package cli

import (
	"bytes"
	"errors"
	"testing"

	"github.com/spf13/cobra"
)

func TestStatusReporterFollowsParsedFlags(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		args []string
		want bool
	}{
		{name: "sync", args: []string{"sync", "-f", "gateway.yaml"}, want: true},
		{name: "no status long", args: []string{"--no-status", "sync", "-f", "gateway.yaml"}, want: false},
		{name: "no status short", args: []string{"ping", "-n"}, want: false},
		{name: "explicit false", args: []string{"ping", "--no-status=false"}, want: true},
		{name: "help flag", args: []string{"sync", "--help"}, want: false},
		{name: "help command", args: []string{"help", "sync"}, want: false},
		{name: "completion", args: []string{"completion", "bash"}, want: false},
		{name: "diff", args: []string{"diff", "-f", "gateway.yaml"}, want: false},
		{name: "version", args: []string{"version"}, want: false},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			root, _, _ := newTestRoot(&stubOrchestrator{})
			root.SetArgs(testCase.args)
			command, _ := root.ExecuteC()

			reporter := newStatusReporter(&bytes.Buffer{}, command)
			if reporter.enabled != testCase.want {
				t.Fatalf("status enabled for %v = %t, want %t", testCase.args, reporter.enabled, testCase.want)
			}
		})
	}
}

func TestStatusReporterWithoutCommand(t *testing.T) {
	t.Parallel()

	reporter := newStatusReporter(&bytes.Buffer{}, nil)
	if reporter.enabled {
		t.Fatal("status must be disabled when no command resolved")
	}
}

func TestStatusReporterLines(t *testing.T) {
	t.Parallel()

	buffer := &bytes.Buffer{}
	reporter := statusReporter{w: buffer, enabled: true}
	reporter.failure(errors.New("consumer jack: unauthorized"))
	reporter.success()

	want := "[ERROR] command execution failed: consumer jack: unauthorized.\n[OK] command executed successfully.\n"
	if got := buffer.String(); got != want {
		t.Fatalf("status lines = %q, want %q", got, want)
	}

	colored := statusReporter{enabled: true, color: true}
	if got := colored.label("OK", "32"); got != "\x1b[1;32m[OK]\x1b[0m" {
		t.Fatalf("colored label = %q", got)
	}
}

func TestColorEnabled(t *testing.T) {
	t.Run("no color env", func(t *testing.T) {
		t.Setenv("NO_COLOR", "1")
		if colorEnabled(&bytes.Buffer{}, false) {
			t.Fatal("expected color disabled when NO_COLOR is set")
		}
	})

	t.Run("non terminal writer", func(t *testing.T) {
		t.Setenv("NO_COLOR", "")
		t.Setenv("TERM", "xterm-256color")
		if colorEnabled(&bytes.Buffer{}, false) {
			t.Fatal("expected color disabled for a buffer")
		}
	})
}

func TestBoolFlag(t *testing.T) {
	t.Parallel()

	command := &cobra.Command{Use: "probe"}
	command.Flags().Bool("yes", false, "")
	if err := command.Flags().Parse([]string{"--yes"}); err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if !boolFlag(command, "yes") {
		t.Fatal("expected --yes to be set")
	}
	if boolFlag(command, "missing") {
		t.Fatal("missing flags read as false")
	}
}
