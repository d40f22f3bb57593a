package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/crmarques/declagate/config"
)

const fakeAPIKey = "edd1c9f034335f136f87ad84b625c8f1"

var fakeCollections = map[string]bool{
	"services":        true,
	"routes":          true,
	"stream_routes":   true,
	"upstreams":       true,
	"ssls":            true,
	"consumers":       true,
	"plugin_configs":  true,
	"global_rules":    true,
	"plugin_metadata": true,
}

// fakeAdmin is an in-memory admin API keyed by path below the admin prefix.
type fakeAdmin struct {
	mu             sync.Mutex
	version        string
	streamDisabled bool
	objects        map[string]map[string]any
	requests       []string
}

func newFakeAdmin(t *testing.T, version string) (*fakeAdmin, *httptest.Server) {
	t.Helper()

	fake := &fakeAdmin{version: version, objects: map[string]map[string]any{}}
	server := httptest.NewServer(http.HandlerFunc(fake.serveHTTP))
	t.Cleanup(server.Close)
	return fake, server
}

func (f *fakeAdmin) seed(relativePath string, value map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[relativePath] = value
}

func (f *fakeAdmin) object(relativePath string) (map[string]any, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	value, found := f.objects[relativePath]
	return value, found
}

func (f *fakeAdmin) objectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.objects)
}

func (f *fakeAdmin) requestLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requests...)
}

func (f *fakeAdmin) writes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	writes := []string{}
	for _, request := range f.requests {
		if !strings.HasPrefix(request, http.MethodGet) {
			writes = append(writes, request)
		}
	}
	return writes
}

func (f *fakeAdmin) serveHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	w.Header().Set("Server", "APISIX/"+f.version)
	if r.Header.Get("X-API-KEY") != fakeAPIKey {
		writeFakeJSON(w, http.StatusUnauthorized, map[string]any{"message": "failed to check token"})
		return
	}

	relativePath := strings.TrimPrefix(r.URL.Path, "/apisix/admin/")
	f.requests = append(f.requests, r.Method+" "+relativePath)

	switch r.Method {
	case http.MethodGet:
		if value, found := f.objects[relativePath]; found {
			writeFakeJSON(w, http.StatusOK, map[string]any{"key": "/apisix/" + relativePath, "value": value})
			return
		}
		if relativePath == "stream_routes" && f.streamDisabled {
			writeFakeJSON(w, http.StatusBadRequest, map[string]any{"error_msg": "stream mode is disabled"})
			return
		}
		if !fakeCollections[relativePath] && !strings.HasSuffix(relativePath, "/credentials") {
			writeFakeJSON(w, http.StatusNotFound, map[string]any{"message": "Key not found"})
			return
		}
		writeFakeJSON(w, http.StatusOK, f.list(relativePath))
	case http.MethodPut:
		var value map[string]any
		if err := json.NewDecoder(r.Body).Decode(&value); err != nil {
			writeFakeJSON(w, http.StatusBadRequest, map[string]any{"error_msg": err.Error()})
			return
		}
		f.objects[relativePath] = value
		writeFakeJSON(w, http.StatusOK, map[string]any{"key": "/apisix/" + relativePath, "value": value})
	case http.MethodDelete:
		if _, found := f.objects[relativePath]; !found {
			writeFakeJSON(w, http.StatusNotFound, map[string]any{"message": "Key not found"})
			return
		}
		delete(f.objects, relativePath)
		writeFakeJSON(w, http.StatusOK, map[string]any{"deleted": "1"})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (f *fakeAdmin) list(collection string) map[string]any {
	prefix := collection + "/"
	keys := []string{}
	for key := range f.objects {
		rest, found := strings.CutPrefix(key, prefix)
		if found && !strings.Contains(rest, "/") {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	if len(keys) == 0 {
		return map[string]any{"list": map[string]any{}, "total": 0}
	}
	entries := make([]any, 0, len(keys))
	for _, key := range keys {
		entries = append(entries, map[string]any{"key": "/apisix/" + key, "value": f.objects[key]})
	}
	return map[string]any{"list": entries, "total": len(entries)}
}

func writeFakeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func mustFakeGateway(t *testing.T, server *httptest.Server) *AdminGateway {
	t.Helper()

	gateway, err := NewAdminGateway(config.HTTPBackend{
		Server: server.URL,
		Auth:   &config.HTTPAuth{APIKey: &config.APIKeyAuth{Key: fakeAPIKey}},
	})
	if err != nil {
		t.Fatalf("NewAdminGateway returned error: %v", err)
	}
	return gateway
}
