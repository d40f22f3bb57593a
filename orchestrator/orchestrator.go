package orchestrator

import (
	"context"

	"github.com/crmarques/declagate/backend"
	"github.com/crmarques/declagate/resource"
)

type ConfigLoader interface {
	Load(ctx context.Context, paths ...string) (resource.Configuration, error)
}

// ScopeFilter narrows both sides of a comparison to the managed resources.
type ScopeFilter interface {
	Desired(cfg resource.Configuration) resource.Configuration
	Current(cfg resource.Configuration) resource.Configuration
}

type EventRunner interface {
	Run(ctx context.Context, events []resource.Event) ([]backend.SyncResult, error)
}

type Planner interface {
	Diff(ctx context.Context, files []string) (Plan, error)
}

type Syncer interface {
	Sync(ctx context.Context, files []string, opts SyncOptions) (Report, error)
}

type Dumper interface {
	Dump(ctx context.Context) (resource.Configuration, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Orchestrator interface {
	Planner
	Syncer
	Dumper
	Pinger
}
