package common

import (
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/crmarques/declagate/internal/cli/commandmeta"
	"github.com/itchyny/gojq"
	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"
)

const (
	OutputAuto = "auto"
	OutputText = "text"
	OutputJSON = "json"
	OutputYAML = "yaml"
)

func ValidateOutputFormat(format string) error {
	switch format {
	case OutputAuto, OutputText, OutputJSON, OutputYAML:
		return nil
	default:
		return ValidationError("invalid output format: use auto, text, json, or yaml", nil)
	}
}

func ValidateOutputFormatForCommandPath(commandPath string, format string) error {
	switch strings.TrimSpace(format) {
	case "", OutputAuto, OutputText:
		return nil
	}

	switch commandmeta.OutputPolicyForPath(commandPath) {
	case commandmeta.OutputPolicyTextOnly:
		return ValidationError("command supports only text output; use --output text or --output auto", nil)
	case commandmeta.OutputPolicyYAMLDefaultTextOrYAML:
		if strings.TrimSpace(format) == OutputYAML {
			return nil
		}
		return ValidationError("command supports only yaml or text output; use --output yaml, text, or auto", nil)
	default:
		return nil
	}
}

// ValidateJQ parses the expression so a bad filter fails before any backend
// call is made.
func ValidateJQ(expression string) error {
	if strings.TrimSpace(expression) == "" {
		return nil
	}
	if _, err := gojq.Parse(expression); err != nil {
		return ValidationError("invalid --jq expression", err)
	}
	return nil
}

// WriteOutput renders value in the selected format. A --jq expression turns
// the value into its JSON form, runs the query and prints every result; text
// rendering is skipped in that case.
func WriteOutput[T any](command *cobra.Command, globalFlags *GlobalFlags, value T, renderText func(io.Writer, T) error) error {
	if isNilOutputValue(value) {
		return nil
	}

	format := OutputAuto
	expression := ""
	if globalFlags != nil {
		if globalFlags.Output != "" {
			format = globalFlags.Output
		}
		expression = strings.TrimSpace(globalFlags.JQ)
	}

	if expression != "" {
		results, err := runJQ(expression, value)
		if err != nil {
			return err
		}
		if format == OutputAuto || format == OutputText {
			format = OutputJSON
		}
		for _, result := range results {
			if err := writeEncoded(command.OutOrStdout(), format, result); err != nil {
				return err
			}
		}
		return nil
	}

	switch format {
	case OutputAuto, OutputText:
		if renderText != nil {
			return renderText(command.OutOrStdout(), value)
		}
		_, err := fmt.Fprintln(command.OutOrStdout(), value)
		return err
	default:
		return writeEncoded(command.OutOrStdout(), format, value)
	}
}

func WriteText(command *cobra.Command, text string) error {
	_, err := fmt.Fprintln(command.OutOrStdout(), text)
	return err
}

func writeEncoded(w io.Writer, format string, value any) error {
	switch format {
	case OutputJSON:
		encoded, err := json.MarshalIndent(value, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(encoded))
		return err
	case OutputYAML:
		encoded, err := yaml.Marshal(value)
		if err != nil {
			return err
		}
		_, err = fmt.Fprint(w, string(encoded))
		return err
	default:
		return ValidationError("invalid output format: use auto, text, json, or yaml", nil)
	}
}

func runJQ(expression string, value any) ([]any, error) {
	query, err := gojq.Parse(expression)
	if err != nil {
		return nil, ValidationError("invalid --jq expression", err)
	}

	input, err := jsonValue(value)
	if err != nil {
		return nil, err
	}

	var results []any
	iter := query.Run(input)
	for {
		result, ok := iter.Next()
		if !ok {
			break
		}
		if err, ok := result.(error); ok {
			return nil, ValidationError("--jq evaluation failed", err)
		}
		results = append(results, result)
	}
	return results, nil
}

// jsonValue converts value into the plain map/slice/float64 form gojq
// accepts.
func jsonValue(value any) (any, error) {
	encoded, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	var decoded any
	if err := json.Unmarshal(encoded, &decoded); err != nil {
		return nil, err
	}
	return decoded, nil
}

func isNilOutputValue[T any](value T) bool {
	anyValue := any(value)
	if anyValue == nil {
		return true
	}

	reflected := reflect.ValueOf(anyValue)
	switch reflected.Kind() {
	case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map, reflect.Pointer, reflect.Slice:
		return reflected.IsNil()
	default:
		return false
	}
}
