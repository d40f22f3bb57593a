package config

import "context"

// ContextService manages the context catalog and resolves the context a
// command runs against.
type ContextService interface {
	List(ctx context.Context) ([]Context, error)
	GetCurrent(ctx context.Context) (Context, error)
	SetCurrent(ctx context.Context, name string) error

	Create(ctx context.Context, cfg Context) error
	Update(ctx context.Context, cfg Context) error
	Delete(ctx context.Context, name string) error

	// ResolveContext applies environment placeholders and selection
	// overrides to the chosen context. An empty selection name picks the
	// current context.
	ResolveContext(ctx context.Context, selection ContextSelection) (Context, error)
	Validate(ctx context.Context, cfg Context) error
}
