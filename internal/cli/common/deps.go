package common

import (
	"context"

	"github.com/crmarques/declagate/backend"
	"github.com/crmarques/declagate/config"
	"github.com/crmarques/declagate/orchestrator"
	"github.com/prometheus/client_golang/prometheus"
)

// BootstrapOptions carries the per-invocation settings a command passes when
// it asks for an orchestrator.
type BootstrapOptions struct {
	Concurrency int
	Registerer  prometheus.Registerer
	Progress    func(backend.SyncResult)
}

// Bootstrapper resolves a context and wires the orchestrator serving it.
type Bootstrapper func(ctx context.Context, opts BootstrapOptions, selection config.ContextSelection) (orchestrator.Orchestrator, error)

type CommandDependencies struct {
	Contexts  config.ContextService
	Bootstrap Bootstrapper
}

func RequireContexts(deps CommandDependencies) (config.ContextService, error) {
	if deps.Contexts == nil {
		return nil, ValidationError("context service is not configured", nil)
	}
	return deps.Contexts, nil
}

func RequireOrchestrator(
	ctx context.Context,
	deps CommandDependencies,
	globalFlags *GlobalFlags,
	opts BootstrapOptions,
) (orchestrator.Orchestrator, error) {
	if deps.Bootstrap == nil {
		return nil, ValidationError("orchestrator is not configured", nil)
	}
	return deps.Bootstrap(ctx, opts, config.ContextSelection{Name: selectedContext(globalFlags)})
}

func selectedContext(globalFlags *GlobalFlags) string {
	if globalFlags == nil {
		return ""
	}
	return globalFlags.Context
}
