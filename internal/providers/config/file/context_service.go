package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"sync"

	"github.com/crmarques/declagate/config"
	"github.com/crmarques/declagate/faults"
	"github.com/crmarques/declagate/internal/providers/shared/fsutil"
	"github.com/go-logr/logr"
)

const catalogFileMode os.FileMode = 0o600

var _ config.ContextService = (*Catalog)(nil)

// Catalog stores named contexts in a single YAML file. A missing file reads
// as an empty catalog.
type Catalog struct {
	path string
	mu   sync.Mutex
}

func NewCatalog(path string) *Catalog {
	return &Catalog{path: path}
}

func (c *Catalog) Create(ctx context.Context, cfg config.Context) error {
	cfg = normalizeConfig(cfg)
	if err := validateConfig(cfg); err != nil {
		return err
	}

	return c.modify(ctx, func(catalog *config.ContextCatalog) error {
		if indexOfContext(catalog.Contexts, cfg.Name) >= 0 {
			return validationError(fmt.Sprintf("context %q already exists", cfg.Name), nil)
		}
		catalog.Contexts = append(catalog.Contexts, cfg)
		if catalog.CurrentCtx == "" {
			catalog.CurrentCtx = cfg.Name
		}
		return nil
	})
}

func (c *Catalog) Update(ctx context.Context, cfg config.Context) error {
	cfg = normalizeConfig(cfg)
	if err := validateConfig(cfg); err != nil {
		return err
	}

	return c.modify(ctx, func(catalog *config.ContextCatalog) error {
		idx := indexOfContext(catalog.Contexts, cfg.Name)
		if idx < 0 {
			return contextNotFound(cfg.Name)
		}
		catalog.Contexts[idx] = cfg
		return nil
	})
}

// Delete removes a context. Deleting the current context moves the current
// marker to the first remaining one.
func (c *Catalog) Delete(ctx context.Context, name string) error {
	return c.modify(ctx, func(catalog *config.ContextCatalog) error {
		if indexOfContext(catalog.Contexts, name) < 0 {
			return contextNotFound(name)
		}
		catalog.Contexts = slices.DeleteFunc(catalog.Contexts, func(item config.Context) bool {
			return item.Name == name
		})
		if catalog.CurrentCtx != name {
			return nil
		}
		catalog.CurrentCtx = ""
		if len(catalog.Contexts) > 0 {
			catalog.CurrentCtx = catalog.Contexts[0].Name
		}
		return nil
	})
}

func (c *Catalog) SetCurrent(ctx context.Context, name string) error {
	return c.modify(ctx, func(catalog *config.ContextCatalog) error {
		if indexOfContext(catalog.Contexts, name) < 0 {
			return contextNotFound(name)
		}
		catalog.CurrentCtx = name
		return nil
	})
}

func (c *Catalog) List(context.Context) ([]config.Context, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	catalog, _, err := c.read()
	if err != nil {
		return nil, err
	}
	return slices.Clone(catalog.Contexts), nil
}

func (c *Catalog) GetCurrent(context.Context) (config.Context, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	catalog, _, err := c.read()
	if err != nil {
		return config.Context{}, err
	}
	return pickContext(catalog, "")
}

// ResolveContext selects a context by name, or the current one when the
// name is empty, then expands ${NAME} placeholders and applies overrides.
func (c *Catalog) ResolveContext(ctx context.Context, selection config.ContextSelection) (config.Context, error) {
	c.mu.Lock()
	catalog, _, err := c.read()
	c.mu.Unlock()
	if err != nil {
		return config.Context{}, err
	}

	selected, err := pickContext(catalog, selection.Name)
	if err != nil {
		return config.Context{}, err
	}

	resolved, err := resolveEnvPlaceholders(selected)
	if err != nil {
		return config.Context{}, err
	}
	resolved, err = applyOverrides(normalizeConfig(resolved), selection.Overrides)
	if err != nil {
		return config.Context{}, err
	}
	if err := validateConfig(resolved); err != nil {
		return config.Context{}, err
	}

	logr.FromContextOrDiscard(ctx).V(1).Info("context resolved", "context", resolved.Name, "overrides", len(selection.Overrides))
	return resolved, nil
}

func (c *Catalog) Validate(_ context.Context, cfg config.Context) error {
	return validateConfig(normalizeConfig(cfg))
}

// modify runs mutate against the stored catalog and writes the result back
// only when mutate succeeds and the catalog stays valid.
func (c *Catalog) modify(ctx context.Context, mutate func(*config.ContextCatalog) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	catalog, path, err := c.read()
	if err != nil {
		return err
	}
	if err := mutate(&catalog); err != nil {
		return err
	}
	if err := validateCatalog(catalog); err != nil {
		return err
	}

	encoded, err := encodeCatalog(catalog)
	if err != nil {
		return internalError("failed to encode context catalog", err)
	}
	if err := fsutil.WriteFileAtomic(path, encoded, catalogFileMode); err != nil {
		return internalError("failed to write context catalog", err)
	}

	logr.FromContextOrDiscard(ctx).V(1).Info("context catalog written", "path", path, "contexts", len(catalog.Contexts), "current", catalog.CurrentCtx)
	return nil
}

// read loads and validates the catalog, tightening the file mode when the
// file is readable by other users.
func (c *Catalog) read() (config.ContextCatalog, string, error) {
	path, err := resolveCatalogPath(c.path)
	if err != nil {
		return config.ContextCatalog{}, "", err
	}

	catalog, err := decodeCatalogFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return config.ContextCatalog{}, path, nil
	case err != nil:
		return config.ContextCatalog{}, "", err
	}

	if err := restrictMode(path); err != nil {
		return config.ContextCatalog{}, "", err
	}
	if err := validateCatalog(catalog); err != nil {
		return config.ContextCatalog{}, "", err
	}
	return catalog, path, nil
}

func pickContext(catalog config.ContextCatalog, name string) (config.Context, error) {
	if name == "" {
		name = catalog.CurrentCtx
	}
	if name == "" {
		return config.Context{}, faults.NewTypedError(faults.NotFoundError, "current context not set", nil)
	}

	idx := indexOfContext(catalog.Contexts, name)
	if idx < 0 {
		return config.Context{}, contextNotFound(name)
	}
	return catalog.Contexts[idx], nil
}

func indexOfContext(contexts []config.Context, name string) int {
	return slices.IndexFunc(contexts, func(item config.Context) bool {
		return item.Name == name
	})
}

func restrictMode(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return internalError("failed to inspect context catalog", err)
	}
	if info.Mode().Perm() == catalogFileMode {
		return nil
	}
	if err := os.Chmod(path, catalogFileMode); err != nil {
		return internalError("failed to restrict context catalog permissions", err)
	}
	return nil
}

func contextNotFound(name string) error {
	return faults.NewTypedError(faults.NotFoundError, fmt.Sprintf("context %q not found", name), nil)
}

func validationError(message string, cause error) error {
	return faults.NewTypedError(faults.ValidationError, message, cause)
}

func internalError(message string, cause error) error {
	return faults.NewTypedError(faults.InternalError, message, cause)
}
