package resource

import (
	"reflect"
	"testing"
)

func TestRemovePathWildcard(t *testing.T) {
	t.Parallel()

	value := map[string]any{
		"snis": []any{"a.example.com"},
		"certificates": []any{
			map[string]any{"certificate": "cert-a", "key": "key-a"},
			map[string]any{"certificate": "cert-b", "key": "key-b"},
		},
	}

	RemovePath(value, "certificates.*.key")

	want := map[string]any{
		"snis": []any{"a.example.com"},
		"certificates": []any{
			map[string]any{"certificate": "cert-a"},
			map[string]any{"certificate": "cert-b"},
		},
	}
	if !reflect.DeepEqual(value, want) {
		t.Fatalf("RemovePath() = %#v, want %#v", value, want)
	}

	RemovePath(value, "missing.*.field")
	if !reflect.DeepEqual(value, want) {
		t.Fatalf("missing path must be a no-op, got %#v", value)
	}
}

func TestLookupPath(t *testing.T) {
	t.Parallel()

	object := Object{
		"tls":   map[string]any{"client_cert_id": "ssl-1"},
		"port":  int64(80),
		"nodes": []any{},
	}

	if got, ok := LookupPath(object, "tls.client_cert_id"); !ok || got != "ssl-1" {
		t.Fatalf("LookupPath() = %q, %t", got, ok)
	}
	if got, ok := LookupPath(object, "port"); !ok || got != "80" {
		t.Fatalf("LookupPath(port) = %q, %t", got, ok)
	}
	if _, ok := LookupPath(object, "nodes"); ok {
		t.Fatal("non-scalar values must not resolve")
	}
	if _, ok := LookupPath(object, "tls.missing"); ok {
		t.Fatal("missing path must not resolve")
	}
}

func TestCloneValueIsDeep(t *testing.T) {
	t.Parallel()

	original := map[string]any{"nested": map[string]any{"list": []any{"a"}}}
	cloned := CloneValue(original).(map[string]any)
	cloned["nested"].(map[string]any)["list"].([]any)[0] = "b"

	if original["nested"].(map[string]any)["list"].([]any)[0] != "a" {
		t.Fatal("clone must not share nested slices")
	}
}
