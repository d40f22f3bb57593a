package config

import "time"

type ContextSelection struct {
	Name      string
	Overrides map[string]string
}

const (
	ContextFileEnvVar         = "DECLAGATE_CONTEXTS_FILE"
	DefaultContextCatalogPath = "~/.declagate/contexts.yaml"
	DefaultAdminPrefix        = "/apisix/admin"
	DefaultAPIKeyHeader       = "X-API-KEY"
	DefaultTimeout            = 10 * time.Second
)

type ContextCatalog struct {
	Contexts   []Context `yaml:"contexts"`
	CurrentCtx string    `yaml:"current-ctx"`
}

type Context struct {
	Name                 string            `yaml:"name"`
	Backend              Backend           `yaml:"backend"`
	LabelSelector        map[string]string `yaml:"label-selector,omitempty"`
	IncludeResourceTypes []string          `yaml:"include-resource-types,omitempty"`
	ExcludeResourceTypes []string          `yaml:"exclude-resource-types,omitempty"`
	Sync                 Sync              `yaml:"sync,omitempty"`
}

// Backend holds exactly one backend definition.
type Backend struct {
	HTTP *HTTPBackend `yaml:"http,omitempty"`
	File *FileBackend `yaml:"file,omitempty"`
}

type HTTPBackend struct {
	Server         string            `yaml:"server"`
	AdminPrefix    string            `yaml:"admin-prefix,omitempty"`
	Timeout        time.Duration     `yaml:"timeout,omitempty"`
	DefaultHeaders map[string]string `yaml:"default-headers,omitempty"`
	Auth           *HTTPAuth         `yaml:"auth,omitempty"`
	TLS            *TLS              `yaml:"tls,omitempty"`
}

func (h HTTPBackend) EffectiveAdminPrefix() string {
	if h.AdminPrefix == "" {
		return DefaultAdminPrefix
	}
	return h.AdminPrefix
}

func (h HTTPBackend) EffectiveTimeout() time.Duration {
	if h.Timeout <= 0 {
		return DefaultTimeout
	}
	return h.Timeout
}

type HTTPAuth struct {
	APIKey       *APIKeyAuth      `yaml:"api-key,omitempty"`
	BasicAuth    *BasicAuth       `yaml:"basic-auth,omitempty"`
	BearerToken  *BearerTokenAuth `yaml:"bearer-token,omitempty"`
	CustomHeader *HeaderTokenAuth `yaml:"custom-header,omitempty"`
}

type APIKeyAuth struct {
	Key string `yaml:"key"`
}

type BasicAuth struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type BearerTokenAuth struct {
	Token string `yaml:"token"`
}

type HeaderTokenAuth struct {
	Header string `yaml:"header"`
	Token  string `yaml:"token"`
}

type TLS struct {
	CACertFile         string `yaml:"ca-cert-file,omitempty"`
	ClientCertFile     string `yaml:"client-cert-file,omitempty"`
	ClientKeyFile      string `yaml:"client-key-file,omitempty"`
	InsecureSkipVerify bool   `yaml:"insecure-skip-verify,omitempty"`
}

type FileBackend struct {
	Path string `yaml:"path"`
	// Git commits the state file after every flush when the file lives in a
	// git worktree.
	Git bool `yaml:"git,omitempty"`
}

type Sync struct {
	Concurrency int     `yaml:"concurrency,omitempty"`
	RateLimit   float64 `yaml:"rate-limit,omitempty"`
}

func (s Sync) EffectiveConcurrency() int {
	if s.Concurrency <= 0 {
		return 1
	}
	return s.Concurrency
}
