package gateway

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/crmarques/declagate/backend"
	"github.com/crmarques/declagate/config"
	"github.com/crmarques/declagate/faults"
	"github.com/crmarques/declagate/internal/cli/common"
	"github.com/crmarques/declagate/orchestrator"
	"github.com/crmarques/declagate/resource"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"
)

func samplePlan() orchestrator.Plan {
	events := []resource.Event{
		{Operation: resource.OperationCreate, Category: resource.CategoryService, ResourceID: "httpbin", ResourceName: "httpbin"},
		{Operation: resource.OperationUpdate, Category: resource.CategoryRoute, ResourceID: "6f1ad3c0", ResourceName: "uuid", ParentID: "httpbin"},
		{Operation: resource.OperationDelete, Category: resource.CategoryConsumer, ResourceID: "jack", ResourceName: "jack"},
	}
	return orchestrator.Plan{
		TransactionID: "tx-1",
		Events:        events,
		Summary:       orchestrator.Summarize(events, resource.DefaultSchema()),
	}
}

func TestDiffRendersPlan(t *testing.T) {
	t.Parallel()

	fake := &fakeOrchestrator{plan: samplePlan()}
	output, err := executeCommand(t, NewDiffCommand, fake, &common.GlobalFlags{Output: common.OutputText}, "-f", "gateway.yaml", "-f", "extra/")
	if err != nil {
		t.Fatalf("diff returned error: %v", err)
	}

	if !reflect.DeepEqual(fake.files, []string{"gateway.yaml", "extra/"}) {
		t.Fatalf("unexpected files %#v", fake.files)
	}
	for _, want := range []string{
		`+ create service "httpbin"`,
		`~ update route "uuid" (id 6f1ad3c0) in httpbin`,
		`- delete consumer "jack"`,
		"Plan: 1 to create, 1 to update, 1 to delete.",
	} {
		if !strings.Contains(output, want) {
			t.Fatalf("expected %q in output:\n%s", want, output)
		}
	}
}

func TestDiffStructuredOutput(t *testing.T) {
	t.Parallel()

	fake := &fakeOrchestrator{plan: samplePlan()}

	output, err := executeCommand(t, NewDiffCommand, fake, &common.GlobalFlags{Output: common.OutputJSON, JQ: ".summary.total"}, "-f", "gateway.yaml")
	if err != nil {
		t.Fatalf("diff returned error: %v", err)
	}
	want := "{\n  \"create\": 1,\n  \"delete\": 1,\n  \"update\": 1\n}\n"
	if output != want {
		t.Fatalf("jq output = %q, want %q", output, want)
	}
}

func TestDiffEmptyPlan(t *testing.T) {
	t.Parallel()

	fake := &fakeOrchestrator{plan: orchestrator.Plan{TransactionID: "tx"}}
	output, err := executeCommand(t, NewDiffCommand, fake, &common.GlobalFlags{}, "-f", "gateway.yaml")
	if err != nil {
		t.Fatalf("diff returned error: %v", err)
	}
	if !strings.HasPrefix(output, "No changes.") {
		t.Fatalf("unexpected output %q", output)
	}
}

func TestDiffRequiresFiles(t *testing.T) {
	t.Parallel()

	_, err := executeCommand(t, NewDiffCommand, &fakeOrchestrator{}, &common.GlobalFlags{})
	if !faults.IsCategory(err, faults.ValidationError) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSyncPassesOptionsAndWritesMetrics(t *testing.T) {
	t.Parallel()

	metricsFile := filepath.Join(t.TempDir(), "declagate.prom")
	plan := samplePlan()
	fake := &fakeOrchestrator{
		report: orchestrator.Report{
			Plan: plan,
			Results: []backend.SyncResult{
				{Event: plan.Events[0]},
				{Event: plan.Events[1], Err: errors.New("boom")},
				{Event: plan.Events[2], Skipped: true},
			},
			Succeeded: 1,
			Failed:    1,
			Skipped:   1,
		},
		syncErr: faults.NewTypedError(faults.TransportError, "apply failed", nil),
		counter: prometheus.NewCounter(prometheus.CounterOpts{Name: "declagate_test_events_total", Help: "test"}),
	}

	var bootstrap common.BootstrapOptions
	deps := common.CommandDependencies{
		Bootstrap: func(_ context.Context, opts common.BootstrapOptions, _ config.ContextSelection) (orchestrator.Orchestrator, error) {
			bootstrap = opts
			if opts.Registerer != nil {
				opts.Registerer.MustRegister(fake.counter)
			}
			return fake, nil
		},
	}

	command := newSyncCommandWithConfirm(deps, &common.GlobalFlags{Output: common.OutputText}, nil)
	output := &bytes.Buffer{}
	command.SetOut(output)
	command.SetErr(&bytes.Buffer{})
	command.SetArgs([]string{"-f", "gateway.yaml", "--yes", "--concurrency", "4", "--metrics-file", metricsFile})

	err := command.Execute()
	if !faults.IsCategory(err, faults.TransportError) {
		t.Fatalf("expected the sync error to be returned, got %v", err)
	}
	if bootstrap.Concurrency != 4 {
		t.Fatalf("expected concurrency 4, got %d", bootstrap.Concurrency)
	}
	if fake.syncOpts.Confirm != nil {
		t.Fatal("--yes must not install a confirmation")
	}

	for _, want := range []string{
		`[DONE] + create service "httpbin"`,
		`[FAILED] ~ update route "uuid" (id 6f1ad3c0) in httpbin: boom`,
		`[SKIPPED] - delete consumer "jack"`,
		"1 succeeded, 1 failed, 1 skipped (transaction tx-1)",
	} {
		if !strings.Contains(output.String(), want) {
			t.Fatalf("expected %q in output:\n%s", want, output.String())
		}
	}

	metrics, readErr := os.ReadFile(metricsFile)
	if readErr != nil {
		t.Fatalf("read metrics file: %v", readErr)
	}
	if !strings.Contains(string(metrics), "declagate_test_events_total 1") {
		t.Fatalf("unexpected metrics file:\n%s", metrics)
	}
}

func TestSyncAsksForConfirmation(t *testing.T) {
	t.Parallel()

	plan := samplePlan()
	fake := &fakeOrchestrator{report: orchestrator.Report{Plan: plan, Aborted: true}, confirmPlan: plan}

	var asked orchestrator.Plan
	confirm := func(_ *cobra.Command, plan orchestrator.Plan) (bool, error) {
		asked = plan
		return false, nil
	}

	deps := common.CommandDependencies{
		Bootstrap: func(context.Context, common.BootstrapOptions, config.ContextSelection) (orchestrator.Orchestrator, error) {
			return fake, nil
		},
	}
	command := newSyncCommandWithConfirm(deps, &common.GlobalFlags{}, confirm)
	output := &bytes.Buffer{}
	command.SetOut(output)
	command.SetArgs([]string{"-f", "gateway.yaml"})

	if err := command.Execute(); err != nil {
		t.Fatalf("sync returned error: %v", err)
	}
	if asked.TransactionID != "tx-1" {
		t.Fatalf("confirmation did not receive the plan, got %#v", asked)
	}
	if !strings.Contains(output.String(), "Sync cancelled.") {
		t.Fatalf("unexpected output %q", output.String())
	}
}

func TestSyncRejectsNegativeConcurrency(t *testing.T) {
	t.Parallel()

	_, err := executeCommand(t, NewSyncCommand, &fakeOrchestrator{}, &common.GlobalFlags{}, "-f", "gateway.yaml", "--concurrency", "-1")
	if !faults.IsCategory(err, faults.ValidationError) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDumpWritesYAML(t *testing.T) {
	t.Parallel()

	current := resource.Configuration{
		"services": []any{map[string]any{"name": "httpbin", "hosts": []any{"httpbin.org"}}},
	}

	t.Run("stdout", func(t *testing.T) {
		t.Parallel()

		output, err := executeCommand(t, NewDumpCommand, &fakeOrchestrator{dump: current}, &common.GlobalFlags{Output: common.OutputAuto})
		if err != nil {
			t.Fatalf("dump returned error: %v", err)
		}
		var decoded map[string]any
		if err := yaml.Unmarshal([]byte(output), &decoded); err != nil {
			t.Fatalf("dump output is not YAML: %v\n%s", err, output)
		}
		if !reflect.DeepEqual(decoded, map[string]any(current)) {
			t.Fatalf("dump output = %#v, want %#v", decoded, current)
		}
	})

	t.Run("file", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "out", "gateway.yaml")
		output, err := executeCommand(t, NewDumpCommand, &fakeOrchestrator{dump: current}, &common.GlobalFlags{}, "-f", path)
		if err != nil {
			t.Fatalf("dump returned error: %v", err)
		}
		if output != "" {
			t.Fatalf("expected no stdout output, got %q", output)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("read dump file: %v", err)
		}
		var decoded map[string]any
		if err := yaml.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("decode dump file: %v", err)
		}
		if !reflect.DeepEqual(decoded, map[string]any(current)) {
			t.Fatalf("dump file = %#v, want %#v", decoded, current)
		}
	})
}

func TestPingReportsBackendErrors(t *testing.T) {
	t.Parallel()

	fake := &fakeOrchestrator{pingErr: faults.NewTypedError(faults.AuthError, "unauthorized", nil)}
	_, err := executeCommand(t, NewPingCommand, fake, &common.GlobalFlags{})
	if !faults.IsCategory(err, faults.AuthError) {
		t.Fatalf("expected auth error, got %v", err)
	}

	output, err := executeCommand(t, NewPingCommand, &fakeOrchestrator{}, &common.GlobalFlags{Verbose: true})
	if err != nil {
		t.Fatalf("ping returned error: %v", err)
	}
	if output != "backend is reachable\n" {
		t.Fatalf("unexpected output %q", output)
	}
}

func TestCommandsRequireBootstrap(t *testing.T) {
	t.Parallel()

	command := NewPingCommand(common.CommandDependencies{}, &common.GlobalFlags{})
	command.SetOut(&bytes.Buffer{})
	command.SetArgs([]string{})
	if err := command.Execute(); !faults.IsCategory(err, faults.ValidationError) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func executeCommand(
	t *testing.T,
	build func(common.CommandDependencies, *common.GlobalFlags) *cobra.Command,
	fake *fakeOrchestrator,
	globalFlags *common.GlobalFlags,
	args ...string,
) (string, error) {
	t.Helper()

	deps := common.CommandDependencies{
		Bootstrap: func(_ context.Context, _ common.BootstrapOptions, selection config.ContextSelection) (orchestrator.Orchestrator, error) {
			fake.selection = selection
			return fake, nil
		},
	}

	command := build(deps, globalFlags)
	output := &bytes.Buffer{}
	command.SetOut(output)
	command.SetErr(&bytes.Buffer{})
	if args == nil {
		args = []string{}
	}
	command.SetArgs(args)

	err := command.Execute()
	return output.String(), err
}

type fakeOrchestrator struct {
	plan        orchestrator.Plan
	report      orchestrator.Report
	confirmPlan orchestrator.Plan
	syncErr     error
	dump        resource.Configuration
	pingErr     error
	counter     prometheus.Counter

	files     []string
	syncOpts  orchestrator.SyncOptions
	selection config.ContextSelection
}

func (f *fakeOrchestrator) Diff(_ context.Context, files []string) (orchestrator.Plan, error) {
	f.files = files
	return f.plan, nil
}

func (f *fakeOrchestrator) Sync(_ context.Context, files []string, opts orchestrator.SyncOptions) (orchestrator.Report, error) {
	f.files = files
	f.syncOpts = opts
	if opts.Confirm != nil {
		confirmed, err := opts.Confirm(f.confirmPlan)
		if err != nil {
			return orchestrator.Report{}, err
		}
		if !confirmed {
			return f.report, nil
		}
	}
	if f.counter != nil {
		f.counter.Inc()
	}
	return f.report, f.syncErr
}

func (f *fakeOrchestrator) Dump(context.Context) (resource.Configuration, error) {
	return f.dump, nil
}

func (f *fakeOrchestrator) Ping(context.Context) error {
	return f.pingErr
}
