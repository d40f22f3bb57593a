package yamlutil

import (
	"bytes"

	"go.yaml.in/yaml/v3"
)

// MarshalWithIndent encodes v as a single YAML document indented by indent
// spaces.
func MarshalWithIndent(v any, indent int) ([]byte, error) {
	var out bytes.Buffer
	encoder := yaml.NewEncoder(&out)
	encoder.SetIndent(indent)

	encodeErr := encoder.Encode(v)
	closeErr := encoder.Close()
	if encodeErr != nil {
		return nil, encodeErr
	}
	if closeErr != nil {
		return nil, closeErr
	}
	return out.Bytes(), nil
}
