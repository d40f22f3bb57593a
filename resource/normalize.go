package resource

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"slices"
	"strconv"

	"github.com/crmarques/declagate/faults"
)

// Normalize converts a decoded value into the canonical form compared by the
// planner: integers and integral floats become int64, maps lose keys holding
// null and every map key must be a string. Errors name the offending field.
func Normalize(value Value) (Value, error) {
	return normalizeAt("", value)
}

// NormalizeObject normalizes a resource body.
func NormalizeObject(object Object) (Object, error) {
	return normalizeObjectAt("", object)
}

func normalizeAt(path string, value any) (any, error) {
	switch typed := value.(type) {
	case nil, bool, string, int64:
		return typed, nil
	case float64:
		return collapseFloat(path, typed)
	case json.Number:
		return parseNumber(path, typed)
	case map[string]any:
		return normalizeObjectAt(path, typed)
	case []any:
		out := make([]any, len(typed))
		for idx, item := range typed {
			normalized, err := normalizeAt(indexPath(path, idx), item)
			if err != nil {
				return nil, err
			}
			out[idx] = normalized
		}
		return out, nil
	}

	reflected := reflect.ValueOf(value)
	switch reflected.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return reflected.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		unsigned := reflected.Uint()
		if unsigned > math.MaxInt64 {
			return nil, invalidValue(path, "integer out of range", nil)
		}
		return int64(unsigned), nil
	case reflect.Float32, reflect.Float64:
		return collapseFloat(path, reflected.Float())
	case reflect.Map:
		return normalizeMap(path, reflected)
	case reflect.Slice, reflect.Array:
		out := make([]any, reflected.Len())
		for idx := range out {
			normalized, err := normalizeAt(indexPath(path, idx), reflected.Index(idx).Interface())
			if err != nil {
				return nil, err
			}
			out[idx] = normalized
		}
		return out, nil
	}
	return nil, invalidValue(path, fmt.Sprintf("unsupported type %T", value), nil)
}

func normalizeObjectAt(path string, object map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(object))
	for key, item := range object {
		if item == nil {
			continue
		}
		normalized, err := normalizeAt(fieldPath(path, key), item)
		if err != nil {
			return nil, err
		}
		out[key] = normalized
	}
	return out, nil
}

// normalizeMap handles typed maps such as map[string]string. Keys are
// visited in sorted order so the first reported error is stable.
func normalizeMap(path string, reflected reflect.Value) (map[string]any, error) {
	if reflected.Type().Key().Kind() != reflect.String {
		return nil, invalidValue(path, "map keys must be strings", nil)
	}

	keys := reflected.MapKeys()
	slices.SortFunc(keys, func(a, b reflect.Value) int {
		switch {
		case a.String() < b.String():
			return -1
		case a.String() > b.String():
			return 1
		}
		return 0
	})

	out := make(map[string]any, len(keys))
	for _, key := range keys {
		item := reflected.MapIndex(key)
		if (item.Kind() == reflect.Interface || item.Kind() == reflect.Pointer) && item.IsNil() {
			continue
		}
		normalized, err := normalizeAt(fieldPath(path, key.String()), item.Interface())
		if err != nil {
			return nil, err
		}
		out[key.String()] = normalized
	}
	return out, nil
}

func collapseFloat(path string, value float64) (any, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return nil, invalidValue(path, "non-finite number", nil)
	}
	if value == math.Trunc(value) && value >= math.MinInt64 && value < math.MaxInt64 {
		return int64(value), nil
	}
	return value, nil
}

func parseNumber(path string, number json.Number) (any, error) {
	if asInt, err := strconv.ParseInt(number.String(), 10, 64); err == nil {
		return asInt, nil
	} else if errors.Is(err, strconv.ErrRange) {
		return nil, invalidValue(path, "integer out of range", err)
	}

	asFloat, err := number.Float64()
	if err != nil {
		return nil, invalidValue(path, "invalid number "+number.String(), err)
	}
	return collapseFloat(path, asFloat)
}

func fieldPath(parent string, key string) string {
	if parent == "" {
		return key
	}
	return parent + "." + key
}

func indexPath(parent string, idx int) string {
	return parent + "[" + strconv.Itoa(idx) + "]"
}

func invalidValue(path string, reason string, cause error) error {
	if path == "" {
		path = "value"
	}
	return &faults.TypedError{Category: faults.ValidationError, Path: path, Message: reason, Cause: cause}
}
