package core

import (
	"context"

	"github.com/crmarques/declagate/config"
	"github.com/crmarques/declagate/faults"
	"github.com/crmarques/declagate/internal/filter"
	"github.com/crmarques/declagate/internal/loader"
	configfile "github.com/crmarques/declagate/internal/providers/config/file"
	"github.com/crmarques/declagate/internal/syncer"
	"github.com/crmarques/declagate/orchestrator"
)

func NewContextService(opts BootstrapConfig) config.ContextService {
	return configfile.NewCatalog(opts.ContextCatalogPath)
}

// NewDeclagateContext resolves the selected context and wires its backend,
// filter, loader and sync executor into an orchestrator.
func NewDeclagateContext(ctx context.Context, opts BootstrapConfig, selection config.ContextSelection) (DeclagateContext, error) {
	contextService := NewContextService(opts)
	return buildDeclagateContext(ctx, contextService, opts, selection)
}

func buildDeclagateContext(
	ctx context.Context,
	contextService config.ContextService,
	opts BootstrapConfig,
	selection config.ContextSelection,
) (DeclagateContext, error) {
	if contextService == nil {
		return DeclagateContext{}, faults.NewTypedError(faults.ValidationError, "context service must not be nil", nil)
	}

	resolvedContext, err := contextService.ResolveContext(ctx, selection)
	if err != nil {
		return DeclagateContext{}, err
	}

	gateway, err := buildBackend(resolvedContext)
	if err != nil {
		return DeclagateContext{}, err
	}

	metrics, err := syncer.NewMetrics(opts.Registerer)
	if err != nil {
		return DeclagateContext{}, faults.NewTypedError(faults.InternalError, "failed to register sync metrics", err)
	}

	concurrency := resolvedContext.Sync.EffectiveConcurrency()
	if opts.Concurrency > 0 {
		concurrency = opts.Concurrency
	}

	executor := syncer.NewExecutor(
		gateway,
		syncer.WithConcurrency(concurrency),
		syncer.WithMetrics(metrics),
		syncer.WithProgress(opts.Progress),
	)

	return DeclagateContext{
		Contexts: contextService,
		Context:  resolvedContext,
		Backend:  gateway,
		Orchestrator: &orchestrator.DefaultOrchestrator{
			Backend: gateway,
			Loader:  loader.New(),
			Filter:  filter.FromContext(resolvedContext),
			Runner:  executor,
		},
	}, nil
}
