package core

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/crmarques/declagate/backend"
	"github.com/crmarques/declagate/config"
	"github.com/crmarques/declagate/faults"
	filebackend "github.com/crmarques/declagate/internal/providers/backend/file"
	httpbackend "github.com/crmarques/declagate/internal/providers/backend/http"
	configfile "github.com/crmarques/declagate/internal/providers/config/file"
	"github.com/crmarques/declagate/orchestrator"
	"github.com/prometheus/client_golang/prometheus"
)

func TestNewDeclagateContextSyncsFileBackend(t *testing.T) {
	t.Parallel()

	tempDir := t.TempDir()
	statePath := filepath.Join(tempDir, "state.yaml")
	catalogPath := filepath.Join(tempDir, "contexts.yaml")
	writeFile(t, catalogPath, `
contexts:
  - name: local
    backend:
      file:
        path: `+statePath+`
    sync:
      concurrency: 2
current-ctx: local
`)
	desiredPath := filepath.Join(tempDir, "gateway.yaml")
	writeFile(t, desiredPath, `
services:
  - name: httpbin
    routes:
      - name: get
        uris: ["/get"]
consumers:
  - username: jack
`)

	var progress atomic.Int32
	registry := prometheus.NewRegistry()
	declagateContext, err := NewDeclagateContext(
		context.Background(),
		BootstrapConfig{ContextCatalogPath: catalogPath, Registerer: registry, Progress: func(backend.SyncResult) { progress.Add(1) }},
		config.ContextSelection{},
	)
	if err != nil {
		t.Fatalf("NewDeclagateContext returned error: %v", err)
	}
	if _, ok := declagateContext.Contexts.(*configfile.Catalog); !ok {
		t.Fatalf("expected file catalog, got %T", declagateContext.Contexts)
	}
	if _, ok := declagateContext.Backend.(*filebackend.StateStore); !ok {
		t.Fatalf("expected StateStore, got %T", declagateContext.Backend)
	}
	if _, ok := declagateContext.Orchestrator.(*orchestrator.DefaultOrchestrator); !ok {
		t.Fatalf("expected DefaultOrchestrator, got %T", declagateContext.Orchestrator)
	}

	report, err := declagateContext.Orchestrator.Sync(context.Background(), []string{desiredPath}, orchestrator.SyncOptions{})
	if err != nil {
		t.Fatalf("Sync returned error: %v", err)
	}
	if report.Succeeded != 3 || progress.Load() != 3 {
		t.Fatalf("expected three applied events, got report %#v and %d progress calls", report, progress.Load())
	}

	again, err := NewDeclagateContext(context.Background(), BootstrapConfig{ContextCatalogPath: catalogPath}, config.ContextSelection{Name: "local"})
	if err != nil {
		t.Fatalf("NewDeclagateContext returned error: %v", err)
	}
	plan, err := again.Orchestrator.Diff(context.Background(), []string{desiredPath})
	if err != nil {
		t.Fatalf("Diff returned error: %v", err)
	}
	if !plan.Empty() {
		t.Fatalf("expected converged state, got %#v", plan.Events)
	}

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("Gather returned error: %v", err)
	}
	if len(families) == 0 {
		t.Fatal("expected sync metrics to be registered")
	}
}

func TestBuildDeclagateContextWiring(t *testing.T) {
	t.Parallel()

	t.Run("http_backend", func(t *testing.T) {
		t.Parallel()

		contextService := &fakeContextService{resolvedContext: config.Context{
			Name: "gw",
			Backend: config.Backend{HTTP: &config.HTTPBackend{
				Server: "http://127.0.0.1:9180",
				Auth:   &config.HTTPAuth{APIKey: &config.APIKeyAuth{Key: "key"}},
			}},
		}}

		declagateContext, err := buildDeclagateContext(context.Background(), contextService, BootstrapConfig{}, config.ContextSelection{Name: "gw"})
		if err != nil {
			t.Fatalf("buildDeclagateContext returned error: %v", err)
		}
		if _, ok := declagateContext.Backend.(*httpbackend.AdminGateway); !ok {
			t.Fatalf("expected AdminGateway, got %T", declagateContext.Backend)
		}
		if contextService.selection.Name != "gw" {
			t.Fatalf("selection must be passed through, got %#v", contextService.selection)
		}
	})

	t.Run("missing_backend", func(t *testing.T) {
		t.Parallel()

		contextService := &fakeContextService{resolvedContext: config.Context{Name: "empty"}}
		_, err := buildDeclagateContext(context.Background(), contextService, BootstrapConfig{}, config.ContextSelection{})
		if !faults.IsCategory(err, faults.ValidationError) {
			t.Fatalf("expected validation error, got %v", err)
		}
	})

	t.Run("resolve_error", func(t *testing.T) {
		t.Parallel()

		expected := faults.NewTypedError(faults.NotFoundError, "context \"nope\" not found", nil)
		contextService := &fakeContextService{resolveErr: expected}
		_, err := buildDeclagateContext(context.Background(), contextService, BootstrapConfig{}, config.ContextSelection{Name: "nope"})
		if !errors.Is(err, expected) {
			t.Fatalf("expected resolve error, got %v", err)
		}
	})

	t.Run("nil_context_service", func(t *testing.T) {
		t.Parallel()

		_, err := buildDeclagateContext(context.Background(), nil, BootstrapConfig{}, config.ContextSelection{})
		if !faults.IsCategory(err, faults.ValidationError) {
			t.Fatalf("expected validation error, got %v", err)
		}
	})
}

type fakeContextService struct {
	resolvedContext config.Context
	resolveErr      error
	selection       config.ContextSelection
}

func (s *fakeContextService) Create(context.Context, config.Context) error { return nil }
func (s *fakeContextService) Update(context.Context, config.Context) error { return nil }
func (s *fakeContextService) Delete(context.Context, string) error         { return nil }
func (s *fakeContextService) SetCurrent(context.Context, string) error     { return nil }

func (s *fakeContextService) List(context.Context) ([]config.Context, error) {
	return []config.Context{s.resolvedContext}, nil
}

func (s *fakeContextService) GetCurrent(context.Context) (config.Context, error) {
	return s.resolvedContext, nil
}

func (s *fakeContextService) ResolveContext(_ context.Context, selection config.ContextSelection) (config.Context, error) {
	s.selection = selection
	if s.resolveErr != nil {
		return config.Context{}, s.resolveErr
	}
	return s.resolvedContext, nil
}

func (s *fakeContextService) Validate(context.Context, config.Context) error { return nil }

func writeFile(t *testing.T, path string, content string) {
	t.Helper()

	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}
