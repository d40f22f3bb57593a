package yamlutil

import (
	"errors"
	"io"

	"go.yaml.in/yaml/v3"
)

// Decode parses a single YAML (or JSON) document into generic values. When
// lookup is set, ${NAME} placeholders in string scalars are expanded first.
// An empty document decodes to nil.
func Decode(data []byte, lookup LookupFunc) (any, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, err
	}
	if root.Kind == 0 {
		return nil, nil
	}

	if lookup != nil {
		if err := ResolveEnvPlaceholders(&root, lookup); err != nil {
			return nil, err
		}
	}

	var value any
	if err := root.Decode(&value); err != nil {
		return nil, err
	}
	return value, nil
}
