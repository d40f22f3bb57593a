package file

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/crmarques/declagate/config"
	"github.com/crmarques/declagate/yamlutil"
	"go.yaml.in/yaml/v3"
)

func decodeCatalogFile(path string) (config.ContextCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return config.ContextCatalog{}, err
	}
	catalog, err := decodeCatalog(data)
	if err != nil {
		return config.ContextCatalog{}, validationError(fmt.Sprintf("context catalog %s", path), err)
	}
	return catalog, nil
}

// decodeCatalog rejects unknown keys so typos in the catalog surface early.
func decodeCatalog(data []byte) (config.ContextCatalog, error) {
	var catalog config.ContextCatalog
	if len(bytes.TrimSpace(data)) == 0 {
		return catalog, nil
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&catalog); err != nil {
		return config.ContextCatalog{}, validationError("invalid yaml", err)
	}
	return catalog, nil
}

func encodeCatalog(catalog config.ContextCatalog) ([]byte, error) {
	return yamlutil.MarshalWithIndent(catalog, 2)
}

// resolveEnvPlaceholders expands ${NAME} references in the string fields of
// a context by round-tripping it through a YAML node tree.
func resolveEnvPlaceholders(cfg config.Context) (config.Context, error) {
	var root yaml.Node
	if err := root.Encode(cfg); err != nil {
		return config.Context{}, internalError("failed to encode context", err)
	}
	if err := yamlutil.ResolveEnvPlaceholders(&root, os.LookupEnv); err != nil {
		return config.Context{}, validationError(fmt.Sprintf("context %q", cfg.Name), err)
	}

	var resolved config.Context
	if err := root.Decode(&resolved); err != nil {
		return config.Context{}, validationError(fmt.Sprintf("context %q is invalid after placeholder resolution", cfg.Name), err)
	}
	return resolved, nil
}

// resolveCatalogPath picks the catalog location from the explicit path, then
// the environment, then the default under the home directory. Relative
// paths are anchored at the home directory.
func resolveCatalogPath(explicitPath string) (string, error) {
	candidates := []string{explicitPath, os.Getenv(config.ContextFileEnvVar), config.DefaultContextCatalogPath}
	var path string
	for _, candidate := range candidates {
		if candidate = strings.TrimSpace(candidate); candidate != "" {
			path = candidate
			break
		}
	}

	if filepath.IsAbs(path) {
		return filepath.Clean(path), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", internalError("failed to resolve user home directory", err)
	}
	switch {
	case path == "~":
		return "", validationError("context catalog path must name a file, got ~", nil)
	case strings.HasPrefix(path, "~/"):
		path = strings.TrimPrefix(path, "~/")
	}

	resolved := filepath.Join(home, path)
	if resolved == filepath.Clean(home) {
		return "", validationError(fmt.Sprintf("context catalog path %q resolves to the home directory", path), nil)
	}
	return resolved, nil
}

func unknownOverrideError(key string) error {
	return validationError(fmt.Sprintf("unknown override key %q", key), nil)
}
