package config

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	configdomain "github.com/crmarques/declagate/config"
	"github.com/crmarques/declagate/faults"
	"github.com/crmarques/declagate/internal/cli/common"
)

func TestListMarksCurrentContext(t *testing.T) {
	t.Parallel()

	service := &testContextService{
		listValue: []configdomain.Context{
			{Name: "dev", Backend: configdomain.Backend{File: &configdomain.FileBackend{Path: "/tmp/state.yaml"}}},
			{Name: "prod", Backend: configdomain.Backend{HTTP: &configdomain.HTTPBackend{Server: "https://gw.example.com:9180"}}},
		},
		currentValue: configdomain.Context{Name: "prod"},
	}

	output, err := executeConfigCommand(t, service, &common.GlobalFlags{Output: common.OutputText}, "list")
	if err != nil {
		t.Fatalf("list returned error: %v", err)
	}
	want := "  dev\tfile\t/tmp/state.yaml\n* prod\thttp\thttps://gw.example.com:9180\n"
	if output != want {
		t.Fatalf("list output = %q, want %q", output, want)
	}
}

func TestListWithoutCurrentContext(t *testing.T) {
	t.Parallel()

	service := &testContextService{
		listValue:  []configdomain.Context{{Name: "dev"}},
		currentErr: faults.NewTypedError(faults.NotFoundError, "current context not set", nil),
	}

	output, err := executeConfigCommand(t, service, &common.GlobalFlags{Output: common.OutputJSON}, "list")
	if err != nil {
		t.Fatalf("list returned error: %v", err)
	}
	if !strings.Contains(output, `"current": false`) {
		t.Fatalf("expected no current context in %q", output)
	}
}

func TestUseSetsCurrentContext(t *testing.T) {
	t.Parallel()

	service := &testContextService{}
	if _, err := executeConfigCommand(t, service, &common.GlobalFlags{}, "use", "prod"); err != nil {
		t.Fatalf("use returned error: %v", err)
	}
	if service.setCurrentName != "prod" {
		t.Fatalf("expected current context prod, got %q", service.setCurrentName)
	}

	if _, err := executeConfigCommand(t, service, &common.GlobalFlags{}, "use"); err == nil {
		t.Fatal("expected error when the context name is missing")
	}
}

func TestShowRedactsCredentials(t *testing.T) {
	t.Parallel()

	resolved := configdomain.Context{
		Name: "prod",
		Backend: configdomain.Backend{HTTP: &configdomain.HTTPBackend{
			Server:         "https://gw.example.com:9180",
			DefaultHeaders: map[string]string{"X-Tenant": "acme"},
			Auth: &configdomain.HTTPAuth{
				APIKey: &configdomain.APIKeyAuth{Key: "edd1c9f034335f136f87ad84b625c8f1"},
			},
		}},
	}

	t.Run("masked", func(t *testing.T) {
		t.Parallel()

		service := &testContextService{resolveValue: resolved}
		output, err := executeConfigCommand(t, service, &common.GlobalFlags{Context: "prod"}, "show")
		if err != nil {
			t.Fatalf("show returned error: %v", err)
		}
		if service.resolveSelection.Name != "prod" {
			t.Fatalf("expected selection prod, got %q", service.resolveSelection.Name)
		}
		if strings.Contains(output, "edd1c9f0") || strings.Contains(output, "acme") {
			t.Fatalf("credentials leaked in %q", output)
		}
		if !strings.Contains(output, "key: <redacted>") {
			t.Fatalf("expected masked key in %q", output)
		}
		if resolved.Backend.HTTP.Auth.APIKey.Key != "edd1c9f034335f136f87ad84b625c8f1" {
			t.Fatal("redaction must not modify the resolved context")
		}
	})

	t.Run("revealed", func(t *testing.T) {
		t.Parallel()

		service := &testContextService{resolveValue: resolved}
		output, err := executeConfigCommand(t, service, &common.GlobalFlags{}, "show", "--reveal")
		if err != nil {
			t.Fatalf("show returned error: %v", err)
		}
		if !strings.Contains(output, "edd1c9f034335f136f87ad84b625c8f1") {
			t.Fatalf("expected key in %q", output)
		}
	})
}

func TestCurrentPrintsName(t *testing.T) {
	t.Parallel()

	service := &testContextService{currentValue: configdomain.Context{Name: "staging"}}
	output, err := executeConfigCommand(t, service, &common.GlobalFlags{Output: common.OutputAuto}, "current")
	if err != nil {
		t.Fatalf("current returned error: %v", err)
	}
	if output != "staging\n" {
		t.Fatalf("current output = %q", output)
	}
}

func TestCommandsRequireContextService(t *testing.T) {
	t.Parallel()

	_, err := executeConfigCommand(t, nil, &common.GlobalFlags{}, "list")
	if !faults.IsCategory(err, faults.ValidationError) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func executeConfigCommand(
	t *testing.T,
	contexts configdomain.ContextService,
	globalFlags *common.GlobalFlags,
	args ...string,
) (string, error) {
	t.Helper()

	command := NewCommand(common.CommandDependencies{Contexts: contexts}, globalFlags)
	output := &bytes.Buffer{}
	command.SetOut(output)
	command.SetErr(io.Discard)
	command.SetArgs(args)

	err := command.Execute()
	return output.String(), err
}

type testContextService struct {
	listValue        []configdomain.Context
	currentValue     configdomain.Context
	currentErr       error
	resolveValue     configdomain.Context
	resolveSelection configdomain.ContextSelection
	setCurrentName   string
}

func (s *testContextService) Create(context.Context, configdomain.Context) error { return nil }
func (s *testContextService) Update(context.Context, configdomain.Context) error { return nil }
func (s *testContextService) Delete(context.Context, string) error               { return nil }

func (s *testContextService) SetCurrent(_ context.Context, name string) error {
	s.setCurrentName = name
	return nil
}

func (s *testContextService) List(context.Context) ([]configdomain.Context, error) {
	return s.listValue, nil
}

func (s *testContextService) GetCurrent(context.Context) (configdomain.Context, error) {
	if s.currentErr != nil {
		return configdomain.Context{}, s.currentErr
	}
	return s.currentValue, nil
}

func (s *testContextService) ResolveContext(_ context.Context, selection configdomain.ContextSelection) (configdomain.Context, error) {
	s.resolveSelection = selection
	return s.resolveValue, nil
}

func (s *testContextService) Validate(context.Context, configdomain.Context) error { return nil }
