// Package backend defines the contract between the planner and a gateway
// that holds the live configuration.
package backend

import (
	"context"

	"github.com/Masterminds/semver/v3"
	"github.com/crmarques/declagate/resource"
)

type Backend interface {
	Ping(ctx context.Context) error
	Version(ctx context.Context) (*semver.Version, error)
	// Dump returns the live configuration in the same nested shape the
	// desired configuration uses.
	Dump(ctx context.Context) (resource.Configuration, error)
	Apply(ctx context.Context, event resource.Event) error
	DefaultValues(ctx context.Context) (*resource.Defaults, error)
}

// Flusher is implemented by backends that buffer applied events and persist
// them in one step once a sync run ends.
type Flusher interface {
	Flush(ctx context.Context) error
}

// SyncResult is the outcome of applying one event.
type SyncResult struct {
	Event   resource.Event `json:"event" yaml:"event"`
	Err     error          `json:"-" yaml:"-"`
	Skipped bool           `json:"skipped,omitempty" yaml:"skipped,omitempty"`
}

func (r SyncResult) Succeeded() bool {
	return r.Err == nil && !r.Skipped
}
