package yamlutil

import (
	"fmt"
	"os"
	"strings"

	"go.yaml.in/yaml/v3"
)

// LookupFunc resolves an environment variable name.
type LookupFunc func(name string) (string, bool)

// ResolveEnvPlaceholders replaces ${NAME} references in every string scalar
// below node. Keys are resolved too. Unset variables are errors.
func ResolveEnvPlaceholders(node *yaml.Node, lookup LookupFunc) error {
	if node == nil {
		return nil
	}
	if lookup == nil {
		lookup = os.LookupEnv
	}

	switch node.Kind {
	case yaml.DocumentNode, yaml.MappingNode, yaml.SequenceNode:
		for _, child := range node.Content {
			if err := ResolveEnvPlaceholders(child, lookup); err != nil {
				return err
			}
		}
	case yaml.ScalarNode:
		if isStringScalar(node) && strings.Contains(node.Value, "${") {
			resolved, err := SubstituteEnvPlaceholders(node.Value, lookup)
			if err != nil {
				return fmt.Errorf("line %d: %w", node.Line, err)
			}
			node.Value = resolved
		}
	}
	return nil
}

func isStringScalar(node *yaml.Node) bool {
	return node.Tag == "!!str" || node.Tag == ""
}

// SubstituteEnvPlaceholders expands ${NAME} references in value.
func SubstituteEnvPlaceholders(value string, lookup LookupFunc) (string, error) {
	if !strings.Contains(value, "${") {
		return value, nil
	}
	if lookup == nil {
		lookup = os.LookupEnv
	}

	var builder strings.Builder
	for i := 0; i < len(value); {
		if value[i] == '$' && i+1 < len(value) && value[i+1] == '{' {
			start := i + 2
			end := strings.IndexByte(value[start:], '}')
			if end < 0 {
				return "", fmt.Errorf("missing closing brace in %q", value)
			}
			name := strings.TrimSpace(value[start : start+end])
			if name == "" {
				return "", fmt.Errorf("empty environment variable reference in %q", value)
			}
			envValue, ok := lookup(name)
			if !ok {
				return "", fmt.Errorf("environment variable %q is not set", name)
			}
			builder.WriteString(envValue)
			i = start + end + 1
			continue
		}
		builder.WriteByte(value[i])
		i++
	}
	return builder.String(), nil
}
