package core

import (
	"github.com/crmarques/declagate/backend"
	"github.com/crmarques/declagate/config"
	"github.com/crmarques/declagate/orchestrator"
	"github.com/prometheus/client_golang/prometheus"
)

type DeclagateContext struct {
	Contexts     config.ContextService
	Context      config.Context
	Backend      backend.Backend
	Orchestrator orchestrator.Orchestrator
}

type BootstrapConfig struct {
	ContextCatalogPath string
	// Concurrency overrides the context's sync.concurrency when positive.
	Concurrency int
	// Registerer receives the sync metrics. Nil disables registration.
	Registerer prometheus.Registerer
	// Progress is called after every applied or skipped event.
	Progress func(backend.SyncResult)
}
