// Package loader reads desired gateway configuration from YAML and JSON
// files.
package loader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/crmarques/declagate/faults"
	"github.com/crmarques/declagate/resource"
	"github.com/crmarques/declagate/yamlutil"
	"github.com/go-logr/logr"
)

var configExtensions = map[string]bool{".yaml": true, ".yml": true, ".json": true}

type Loader struct {
	lookup yamlutil.LookupFunc
	schema resource.Schema
}

type Option func(*Loader)

// WithLookup replaces the environment lookup used for ${NAME} placeholders.
func WithLookup(lookup yamlutil.LookupFunc) Option {
	return func(l *Loader) {
		if lookup != nil {
			l.lookup = lookup
		}
	}
}

func WithSchema(schema resource.Schema) Option {
	return func(l *Loader) {
		l.schema = schema
	}
}

func New(opts ...Option) *Loader {
	loader := &Loader{lookup: os.LookupEnv, schema: resource.DefaultSchema()}
	for _, opt := range opts {
		if opt != nil {
			opt(loader)
		}
	}
	return loader
}

// Load reads and merges paths with the default loader.
func Load(ctx context.Context, paths ...string) (resource.Configuration, error) {
	return New().Load(ctx, paths...)
}

// Load reads every file (directories expand to their configuration files in
// lexical order) and merges them. Lists are concatenated; keyed collections
// are merged by key and a key declared twice is a validation error.
func (l *Loader) Load(ctx context.Context, paths ...string) (resource.Configuration, error) {
	if len(paths) == 0 {
		return nil, faults.NewTypedError(faults.ValidationError, "at least one configuration file is required", nil)
	}

	files, err := expandPaths(paths)
	if err != nil {
		return nil, err
	}

	merged := resource.Configuration{}
	for _, file := range files {
		cfg, err := l.loadFile(file)
		if err != nil {
			return nil, err
		}
		if err := l.merge(merged, cfg, file); err != nil {
			return nil, err
		}
		logr.FromContextOrDiscard(ctx).V(1).Info("loaded configuration file", "path", file, "collections", len(cfg))
	}
	return merged, nil
}

func expandPaths(paths []string) ([]string, error) {
	files := []string{}
	for _, candidate := range paths {
		info, err := os.Stat(candidate)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, faults.NewTypedError(faults.NotFoundError, fmt.Sprintf("configuration file %q not found", candidate), err)
			}
			return nil, faults.NewTypedError(faults.InternalError, fmt.Sprintf("failed to stat %q", candidate), err)
		}
		if !info.IsDir() {
			files = append(files, candidate)
			continue
		}

		entries, err := os.ReadDir(candidate)
		if err != nil {
			return nil, faults.NewTypedError(faults.InternalError, fmt.Sprintf("failed to read directory %q", candidate), err)
		}
		names := []string{}
		for _, entry := range entries {
			if entry.IsDir() || !configExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
				continue
			}
			names = append(names, entry.Name())
		}
		sort.Strings(names)
		for _, name := range names {
			files = append(files, filepath.Join(candidate, name))
		}
	}
	return files, nil
}

func (l *Loader) loadFile(file string) (resource.Configuration, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, faults.NewTypedError(faults.InternalError, fmt.Sprintf("failed to read %q", file), err)
	}

	decoded, err := yamlutil.Decode(data, l.lookup)
	if err != nil {
		return nil, faults.NewTypedError(faults.ValidationError, fmt.Sprintf("%s: invalid configuration", file), err)
	}
	if decoded == nil {
		return resource.Configuration{}, nil
	}

	normalized, err := resource.Normalize(decoded)
	if err != nil {
		return nil, faults.NewTypedError(faults.ValidationError, fmt.Sprintf("%s: invalid configuration", file), err)
	}
	root, ok := normalized.(map[string]any)
	if !ok {
		return nil, faults.NewTypedError(faults.ValidationError, fmt.Sprintf("%s: configuration must be an object", file), nil)
	}
	return resource.Configuration(root), nil
}

func (l *Loader) merge(target resource.Configuration, source resource.Configuration, file string) error {
	fields := make([]string, 0, len(source))
	for field := range source {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	for _, field := range fields {
		kind, found := l.rootKind(field)
		if !found {
			return faults.NewPathError(faults.ValidationError, field, fmt.Sprintf("unknown collection in %s", file))
		}
		value := source[field]
		if value == nil {
			continue
		}

		if !kind.Keyed {
			items, isList := value.([]any)
			if !isList {
				return faults.NewPathError(faults.ValidationError, field, fmt.Sprintf("expected a list in %s", file))
			}
			existing, _ := target[field].([]any)
			target[field] = append(existing, items...)
			continue
		}

		entries, isMap := value.(map[string]any)
		if !isMap {
			return faults.NewPathError(faults.ValidationError, field, fmt.Sprintf("expected an object in %s", file))
		}
		existing, _ := target[field].(map[string]any)
		if existing == nil {
			existing = map[string]any{}
		}
		for key, entry := range entries {
			if _, duplicate := existing[key]; duplicate {
				return faults.NewPathError(faults.ValidationError, field+"."+key, fmt.Sprintf("declared more than once (again in %s)", file))
			}
			existing[key] = entry
		}
		target[field] = existing
	}
	return nil
}

func (l *Loader) rootKind(field string) (resource.Kind, bool) {
	for _, kind := range l.schema.Kinds {
		if kind.Field == field {
			return kind, true
		}
	}
	return resource.Kind{}, false
}
