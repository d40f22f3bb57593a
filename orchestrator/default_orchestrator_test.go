package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/Masterminds/semver/v3"
	"github.com/crmarques/declagate/backend"
	"github.com/crmarques/declagate/faults"
	"github.com/crmarques/declagate/resource"
)

type memoryBackend struct {
	mu      sync.Mutex
	current resource.Configuration
	applied []resource.Event
	failing map[string]bool
	flushes int
}

var _ backend.Flusher = (*memoryBackend)(nil)

func (m *memoryBackend) Ping(context.Context) error { return nil }

func (m *memoryBackend) Version(context.Context) (*semver.Version, error) {
	return semver.MustParse("3.11.0"), nil
}

func (m *memoryBackend) Dump(context.Context) (resource.Configuration, error) {
	return m.current, nil
}

func (m *memoryBackend) Apply(_ context.Context, event resource.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing[event.ResourceID] {
		return faults.NewTypedError(faults.TransportError, "connection reset", nil)
	}
	m.applied = append(m.applied, event)
	return nil
}

func (m *memoryBackend) DefaultValues(context.Context) (*resource.Defaults, error) {
	return &resource.Defaults{Core: map[resource.Category]map[string]any{
		resource.CategoryRoute: {"status": int64(1)},
	}}, nil
}

func (m *memoryBackend) Flush(context.Context) error {
	m.flushes++
	return nil
}

type staticLoader resource.Configuration

func (l staticLoader) Load(context.Context, ...string) (resource.Configuration, error) {
	return resource.Configuration(l), nil
}

// sequentialRunner applies every event in order and reports each outcome.
type sequentialRunner struct {
	backend backend.Backend
}

func (r sequentialRunner) Run(ctx context.Context, events []resource.Event) ([]backend.SyncResult, error) {
	results := make([]backend.SyncResult, 0, len(events))
	var errs []error
	for _, event := range events {
		err := r.backend.Apply(ctx, event)
		results = append(results, backend.SyncResult{Event: event, Err: err})
		if err != nil {
			errs = append(errs, err)
		}
	}
	return results, errors.Join(errs...)
}

type keepNamed struct{ name string }

func (k keepNamed) Desired(cfg resource.Configuration) resource.Configuration { return cfg }

func (k keepNamed) Current(cfg resource.Configuration) resource.Configuration {
	filtered := resource.Configuration{}
	for _, item := range cfg["services"].([]any) {
		if item.(map[string]any)["name"] == k.name {
			filtered["services"] = append(asList(filtered["services"]), item)
		}
	}
	return filtered
}

func asList(value any) []any {
	list, _ := value.([]any)
	return list
}

func desiredConfiguration() resource.Configuration {
	return resource.Configuration{
		"services": []any{map[string]any{
			"name":   "httpbin",
			"routes": []any{map[string]any{"name": "get", "uris": []any{"/get"}}},
		}},
		"consumers": []any{map[string]any{"username": "jack"}},
	}
}

func TestDiffPlansAgainstBackend(t *testing.T) {
	t.Parallel()

	gateway := &memoryBackend{current: resource.Configuration{
		"services": []any{map[string]any{
			"name":   "httpbin",
			"routes": []any{map[string]any{"name": "get", "uris": []any{"/get"}, "status": int64(1)}},
		}},
		"ssls": []any{map[string]any{"snis": []any{"old.example.com"}}},
	}}
	orchestrator := &DefaultOrchestrator{Backend: gateway, Loader: staticLoader(desiredConfiguration())}

	plan, err := orchestrator.Diff(context.Background(), []string{"gateway.yaml"})
	if err != nil {
		t.Fatalf("Diff returned error: %v", err)
	}
	if plan.TransactionID == "" {
		t.Fatal("expected transaction id")
	}
	if len(plan.Events) != 2 {
		t.Fatalf("expected ssl delete and consumer create, got %#v", plan.Events)
	}
	if plan.Events[0].Category != resource.CategorySSL || plan.Events[0].Operation != resource.OperationDelete {
		t.Fatalf("unexpected first event %#v", plan.Events[0])
	}
	if plan.Summary.Total != (Counts{Create: 1, Delete: 1}) {
		t.Fatalf("unexpected summary %#v", plan.Summary)
	}
	if len(plan.Summary.Categories) != 2 || plan.Summary.Categories[0].Category != resource.CategorySSL {
		t.Fatalf("categories must follow the apply order, got %#v", plan.Summary.Categories)
	}
}

func TestDiffAppliesFilterToCurrent(t *testing.T) {
	t.Parallel()

	gateway := &memoryBackend{current: resource.Configuration{
		"services": []any{
			map[string]any{"name": "httpbin"},
			map[string]any{"name": "other-team"},
		},
	}}
	orchestrator := &DefaultOrchestrator{
		Backend: gateway,
		Loader:  staticLoader(resource.Configuration{"services": []any{map[string]any{"name": "httpbin"}}}),
		Filter:  keepNamed{name: "httpbin"},
	}

	plan, err := orchestrator.Diff(context.Background(), nil)
	if err != nil {
		t.Fatalf("Diff returned error: %v", err)
	}
	if !plan.Empty() {
		t.Fatalf("filtered resources must not be deleted, got %#v", plan.Events)
	}
}

func TestSyncAppliesAndFlushes(t *testing.T) {
	t.Parallel()

	gateway := &memoryBackend{current: resource.Configuration{}}
	orchestrator := &DefaultOrchestrator{
		Backend: gateway,
		Loader:  staticLoader(desiredConfiguration()),
		Runner:  sequentialRunner{backend: gateway},
	}

	report, err := orchestrator.Sync(context.Background(), nil, SyncOptions{})
	if err != nil {
		t.Fatalf("Sync returned error: %v", err)
	}
	if report.Succeeded != 3 || report.Failed != 0 {
		t.Fatalf("unexpected report %#v", report)
	}
	if gateway.flushes != 1 {
		t.Fatalf("expected one flush, got %d", gateway.flushes)
	}
	if gateway.applied[0].Category != resource.CategoryService {
		t.Fatalf("service must be applied first, got %#v", gateway.applied[0])
	}
}

func TestSyncConfirmation(t *testing.T) {
	t.Parallel()

	gateway := &memoryBackend{current: resource.Configuration{}}
	orchestrator := &DefaultOrchestrator{
		Backend: gateway,
		Loader:  staticLoader(desiredConfiguration()),
		Runner:  sequentialRunner{backend: gateway},
	}

	report, err := orchestrator.Sync(context.Background(), nil, SyncOptions{
		Confirm: func(plan Plan) (bool, error) { return false, nil },
	})
	if err != nil {
		t.Fatalf("Sync returned error: %v", err)
	}
	if !report.Aborted || len(gateway.applied) != 0 || gateway.flushes != 0 {
		t.Fatalf("declined sync must not apply anything, got %#v", report)
	}
}

func TestSyncReportsFailures(t *testing.T) {
	t.Parallel()

	gateway := &memoryBackend{current: resource.Configuration{}, failing: map[string]bool{"jack": true}}
	orchestrator := &DefaultOrchestrator{
		Backend: gateway,
		Loader:  staticLoader(desiredConfiguration()),
		Runner:  sequentialRunner{backend: gateway},
	}

	report, err := orchestrator.Sync(context.Background(), nil, SyncOptions{})
	if !faults.IsCategory(err, faults.TransportError) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if report.Failed != 1 || report.Succeeded != 2 {
		t.Fatalf("unexpected report %#v", report)
	}
	if gateway.flushes != 1 {
		t.Fatal("partial success must still be flushed")
	}
}

func TestMissingCollaborators(t *testing.T) {
	t.Parallel()

	var empty DefaultOrchestrator
	if err := empty.Ping(context.Background()); !faults.IsCategory(err, faults.ValidationError) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := empty.Sync(context.Background(), nil, SyncOptions{}); !faults.IsCategory(err, faults.ValidationError) {
		t.Fatalf("expected validation error, got %v", err)
	}
	withBackend := DefaultOrchestrator{Backend: &memoryBackend{}}
	if _, err := withBackend.Diff(context.Background(), nil); !faults.IsCategory(err, faults.ValidationError) {
		t.Fatalf("expected validation error for missing loader, got %v", err)
	}
}
