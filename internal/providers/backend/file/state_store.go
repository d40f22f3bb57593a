package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Masterminds/semver/v3"
	"github.com/crmarques/declagate/backend"
	"github.com/crmarques/declagate/config"
	"github.com/crmarques/declagate/faults"
	"github.com/crmarques/declagate/resource"
	"github.com/crmarques/declagate/yamlutil"
	"github.com/opencontainers/go-digest"
)

// emulatedVersion is reported as the gateway version so that every category
// passes version gating.
var emulatedVersion = semver.MustParse("3.13.0")

var (
	_ backend.Backend = (*StateStore)(nil)
	_ backend.Flusher = (*StateStore)(nil)
)

// StateStore keeps the current gateway configuration in a YAML file. Applied
// events change an in-memory copy; Flush writes it back.
type StateStore struct {
	path   string
	git    bool
	schema resource.Schema

	mu     sync.Mutex
	loaded bool
	state  resource.Configuration
	digest digest.Digest
	dirty  bool
}

func NewStateStore(cfg config.FileBackend) (*StateStore, error) {
	statePath := strings.TrimSpace(cfg.Path)
	if statePath == "" {
		return nil, validationError("backend.file.path is required", nil)
	}
	absolute, err := filepath.Abs(statePath)
	if err != nil {
		return nil, validationError("backend.file.path is invalid", err)
	}
	return &StateStore{
		path:   absolute,
		git:    cfg.Git,
		schema: resource.DefaultSchema(),
	}, nil
}

// Ping checks that the state directory exists.
func (s *StateStore) Ping(context.Context) error {
	info, err := os.Stat(filepath.Dir(s.path))
	if err != nil {
		return notFoundError(fmt.Sprintf("state directory %q is not accessible", filepath.Dir(s.path)), err)
	}
	if !info.IsDir() {
		return validationError(fmt.Sprintf("%q is not a directory", filepath.Dir(s.path)), nil)
	}
	return nil
}

func (s *StateStore) Version(context.Context) (*semver.Version, error) {
	return emulatedVersion, nil
}

// DefaultValues returns nil: the file keeps exactly what was written.
func (s *StateStore) DefaultValues(context.Context) (*resource.Defaults, error) {
	return nil, nil
}

// Dump returns a copy of the stored configuration. A missing file is an empty
// configuration.
func (s *StateStore) Dump(context.Context) (resource.Configuration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(); err != nil {
		return nil, err
	}
	return cloneConfiguration(s.state), nil
}

func (s *StateStore) ensureLoaded() error {
	if s.loaded {
		return nil
	}

	data, fileDigest, err := readState(s.path)
	if err != nil {
		return err
	}
	state, err := decodeState(s.path, data)
	if err != nil {
		return err
	}

	s.state = state
	s.digest = fileDigest
	s.loaded = true
	return nil
}

// readState returns the file content and its digest. A missing file yields
// no content and an empty digest.
func readState(statePath string) ([]byte, digest.Digest, error) {
	data, err := os.ReadFile(statePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, "", nil
		}
		return nil, "", internalError(fmt.Sprintf("failed to read state file %q", statePath), err)
	}
	return data, digest.FromBytes(data), nil
}

func decodeState(statePath string, data []byte) (resource.Configuration, error) {
	decoded, err := yamlutil.Decode(data, nil)
	if err != nil {
		return nil, validationError(fmt.Sprintf("state file %q is not valid YAML", statePath), err)
	}
	if decoded == nil {
		return resource.Configuration{}, nil
	}

	normalized, err := resource.Normalize(decoded)
	if err != nil {
		return nil, err
	}
	root, ok := normalized.(map[string]any)
	if !ok {
		return nil, validationError(fmt.Sprintf("state file %q must contain an object", statePath), nil)
	}
	return resource.Configuration(root), nil
}

func cloneConfiguration(cfg resource.Configuration) resource.Configuration {
	cloned := resource.Configuration{}
	for field, value := range cfg {
		cloned[field] = resource.CloneValue(value)
	}
	return cloned
}

func validationError(message string, cause error) error {
	return faults.NewTypedError(faults.ValidationError, message, cause)
}

func notFoundError(message string, cause error) error {
	return faults.NewTypedError(faults.NotFoundError, message, cause)
}

func conflictError(message string, cause error) error {
	return faults.NewTypedError(faults.ConflictError, message, cause)
}

func internalError(message string, cause error) error {
	return faults.NewTypedError(faults.InternalError, message, cause)
}
