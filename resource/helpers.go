package resource

import (
	"fmt"
	"strings"
)

// CloneValue deep-copies decoded maps and slices. Scalars are returned as is.
func CloneValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		return CloneObject(typed)
	case []any:
		cloned := make([]any, len(typed))
		for idx, item := range typed {
			cloned[idx] = CloneValue(item)
		}
		return cloned
	default:
		return typed
	}
}

func CloneObject(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	dst := make(map[string]any, len(src))
	for key, value := range src {
		dst[key] = CloneValue(value)
	}
	return dst
}

// LookupPath resolves a dotted path such as "tls.client_cert_id" inside an
// object and returns the scalar found there rendered as a string.
func LookupPath(object Object, path string) (string, bool) {
	var current any = object
	for _, segment := range strings.Split(path, ".") {
		mapValue, ok := current.(map[string]any)
		if !ok {
			return "", false
		}
		current, ok = mapValue[segment]
		if !ok {
			return "", false
		}
	}

	switch typed := current.(type) {
	case nil:
		return "", false
	case string:
		return typed, typed != ""
	case map[string]any, []any:
		return "", false
	default:
		return fmt.Sprint(typed), true
	}
}

// RemovePath deletes the value addressed by a dotted path in place. A "*"
// segment fans out over every list element or map value.
func RemovePath(value any, path string) {
	removeSegments(value, strings.Split(path, "."))
}

func removeSegments(value any, segments []string) {
	if len(segments) == 0 {
		return
	}
	head, rest := segments[0], segments[1:]

	switch typed := value.(type) {
	case map[string]any:
		if head == "*" {
			for _, item := range typed {
				removeSegments(item, rest)
			}
			return
		}
		if len(rest) == 0 {
			delete(typed, head)
			return
		}
		removeSegments(typed[head], rest)
	case []any:
		if head != "*" {
			return
		}
		for _, item := range typed {
			removeSegments(item, rest)
		}
	}
}
