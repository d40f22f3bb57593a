// Package diff computes field-level differences between two decoded resource
// values (maps, slices and scalars as produced by YAML or JSON decoding).
package diff

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

type Kind string

const (
	KindEdit    Kind = "edit"
	KindAdded   Kind = "added"
	KindRemoved Kind = "removed"
	KindArray   Kind = "arrayChange"
)

// Entry is a single difference. Path holds field names (string) and array
// indices (int) from the compared root. Array entries describe an element
// that only exists on one side: Index is its position and Item is a nested
// added or removed entry with an empty path.
type Entry struct {
	Kind     Kind
	Path     []any
	OldValue any
	NewValue any
	Index    int
	Item     *Entry
}

// Compare returns the differences turning oldValue into newValue. The result
// is empty when both values are deeply equal.
func Compare(oldValue, newValue any) []Entry {
	var entries []Entry
	collect(&entries, nil, oldValue, newValue)
	return entries
}

func collect(entries *[]Entry, path []any, oldValue, newValue any) {
	if Equal(oldValue, newValue) {
		return
	}

	oldObject, oldIsObject := oldValue.(map[string]any)
	newObject, newIsObject := newValue.(map[string]any)
	if oldIsObject && newIsObject {
		for _, key := range unionKeys(oldObject, newObject) {
			nextPath := appendPath(path, key)
			oldItem, oldFound := oldObject[key]
			newItem, newFound := newObject[key]

			switch {
			case !oldFound:
				*entries = append(*entries, Entry{Kind: KindAdded, Path: nextPath, NewValue: newItem})
			case !newFound:
				*entries = append(*entries, Entry{Kind: KindRemoved, Path: nextPath, OldValue: oldItem})
			default:
				collect(entries, nextPath, oldItem, newItem)
			}
		}
		return
	}

	oldArray, oldIsArray := oldValue.([]any)
	newArray, newIsArray := newValue.([]any)
	if oldIsArray && newIsArray {
		maxLength := max(len(oldArray), len(newArray))
		for idx := range maxLength {
			switch {
			case idx >= len(oldArray):
				*entries = append(*entries, Entry{
					Kind:  KindArray,
					Path:  clonePath(path),
					Index: idx,
					Item:  &Entry{Kind: KindAdded, NewValue: newArray[idx]},
				})
			case idx >= len(newArray):
				*entries = append(*entries, Entry{
					Kind:  KindArray,
					Path:  clonePath(path),
					Index: idx,
					Item:  &Entry{Kind: KindRemoved, OldValue: oldArray[idx]},
				})
			default:
				collect(entries, appendPath(path, idx), oldArray[idx], newArray[idx])
			}
		}
		return
	}

	switch {
	case oldValue == nil:
		*entries = append(*entries, Entry{Kind: KindAdded, Path: clonePath(path), NewValue: newValue})
	case newValue == nil:
		*entries = append(*entries, Entry{Kind: KindRemoved, Path: clonePath(path), OldValue: oldValue})
	default:
		*entries = append(*entries, Entry{Kind: KindEdit, Path: clonePath(path), OldValue: oldValue, NewValue: newValue})
	}
}

// Equal reports deep equality. Numbers compare by value regardless of their
// decoded Go type, so 80 from YAML equals 80.0 from JSON.
func Equal(a, b any) bool {
	switch typedA := a.(type) {
	case map[string]any:
		typedB, ok := b.(map[string]any)
		if !ok || len(typedA) != len(typedB) {
			return false
		}
		for key, valueA := range typedA {
			valueB, found := typedB[key]
			if !found || !Equal(valueA, valueB) {
				return false
			}
		}
		return true
	case []any:
		typedB, ok := b.([]any)
		if !ok || len(typedA) != len(typedB) {
			return false
		}
		for idx := range typedA {
			if !Equal(typedA[idx], typedB[idx]) {
				return false
			}
		}
		return true
	}

	numberA, okA := asFloat(a)
	numberB, okB := asFloat(b)
	if okA && okB {
		return numberA == numberB
	}
	if okA != okB {
		return false
	}

	return reflect.DeepEqual(a, b)
}

func asFloat(value any) (float64, bool) {
	switch typed := value.(type) {
	case int:
		return float64(typed), true
	case int8:
		return float64(typed), true
	case int16:
		return float64(typed), true
	case int32:
		return float64(typed), true
	case int64:
		return float64(typed), true
	case uint:
		return float64(typed), true
	case uint8:
		return float64(typed), true
	case uint16:
		return float64(typed), true
	case uint32:
		return float64(typed), true
	case uint64:
		return float64(typed), true
	case float32:
		return float64(typed), true
	case float64:
		return typed, true
	case json.Number:
		parsed, err := typed.Float64()
		return parsed, err == nil
	default:
		return 0, false
	}
}

func unionKeys(a, b map[string]any) []string {
	keys := make([]string, 0, len(a)+len(b))
	seen := make(map[string]struct{}, len(a)+len(b))
	for key := range a {
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	for key := range b {
		if _, found := seen[key]; found {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func appendPath(path []any, segment any) []any {
	next := make([]any, len(path), len(path)+1)
	copy(next, path)
	return append(next, segment)
}

func clonePath(path []any) []any {
	if len(path) == 0 {
		return nil
	}
	return append([]any(nil), path...)
}

// HasPrefix reports whether the entry path starts with the given field.
func (e Entry) HasPrefix(field string) bool {
	if len(e.Path) == 0 {
		return false
	}
	head, ok := e.Path[0].(string)
	return ok && head == field
}

// PathString renders the path in dotted form with bracketed indices, e.g.
// "upstream.nodes[0].host".
func (e Entry) PathString() string {
	var builder strings.Builder
	for _, segment := range e.Path {
		switch typed := segment.(type) {
		case int:
			builder.WriteString("[" + strconv.Itoa(typed) + "]")
		default:
			if builder.Len() > 0 {
				builder.WriteByte('.')
			}
			builder.WriteString(fmt.Sprint(typed))
		}
	}
	if e.Kind == KindArray {
		builder.WriteString("[" + strconv.Itoa(e.Index) + "]")
	}
	return builder.String()
}

func (e Entry) fields() map[string]any {
	fields := map[string]any{"kind": e.Kind}
	path := e.Path
	if path == nil {
		path = []any{}
	}
	fields["path"] = path

	switch e.Kind {
	case KindEdit:
		fields["oldValue"] = e.OldValue
		fields["newValue"] = e.NewValue
	case KindAdded:
		fields["newValue"] = e.NewValue
	case KindRemoved:
		fields["oldValue"] = e.OldValue
	case KindArray:
		fields["index"] = e.Index
		if e.Item != nil {
			fields["item"] = e.Item.fields()
		}
	}
	return fields
}

// MarshalJSON emits only the fields meaningful for the entry kind, so a
// removed false value still shows up as "oldValue": false.
func (e Entry) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.fields())
}

func (e Entry) MarshalYAML() (any, error) {
	return e.fields(), nil
}
