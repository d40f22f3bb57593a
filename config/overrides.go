package config

import "sort"

// Override keys accepted by ContextSelection.Overrides.
const (
	OverrideServer             = "backend.http.server"
	OverrideAdminPrefix        = "backend.http.admin-prefix"
	OverrideTimeout            = "backend.http.timeout"
	OverrideAPIKey             = "backend.http.auth.api-key.key"
	OverrideBearerToken        = "backend.http.auth.bearer-token.token"
	OverrideCACertFile         = "backend.http.tls.ca-cert-file"
	OverrideClientCertFile     = "backend.http.tls.client-cert-file"
	OverrideClientKeyFile      = "backend.http.tls.client-key-file"
	OverrideInsecureSkipVerify = "backend.http.tls.insecure-skip-verify"
	OverrideFilePath           = "backend.file.path"
	OverrideLabelSelector      = "label-selector"
	OverrideIncludeTypes       = "include-resource-types"
	OverrideExcludeTypes       = "exclude-resource-types"
	OverrideSyncConcurrency    = "sync.concurrency"
	OverrideSyncRateLimit      = "sync.rate-limit"
)

var envOverrideKeys = map[string]string{
	"DECLAGATE_SERVER":                 OverrideServer,
	"DECLAGATE_ADMIN_PREFIX":           OverrideAdminPrefix,
	"DECLAGATE_TIMEOUT":                OverrideTimeout,
	"DECLAGATE_TOKEN":                  OverrideAPIKey,
	"DECLAGATE_BEARER_TOKEN":           OverrideBearerToken,
	"DECLAGATE_CA_CERT_FILE":           OverrideCACertFile,
	"DECLAGATE_TLS_CLIENT_CERT_FILE":   OverrideClientCertFile,
	"DECLAGATE_TLS_CLIENT_KEY_FILE":    OverrideClientKeyFile,
	"DECLAGATE_TLS_SKIP_VERIFY":        OverrideInsecureSkipVerify,
	"DECLAGATE_STATE_FILE":             OverrideFilePath,
	"DECLAGATE_LABEL_SELECTOR":         OverrideLabelSelector,
	"DECLAGATE_INCLUDE_RESOURCE_TYPES": OverrideIncludeTypes,
	"DECLAGATE_EXCLUDE_RESOURCE_TYPES": OverrideExcludeTypes,
	"DECLAGATE_SYNC_CONCURRENCY":       OverrideSyncConcurrency,
	"DECLAGATE_SYNC_RATE_LIMIT":        OverrideSyncRateLimit,
}

// EnvOverrides collects context overrides from DECLAGATE_* variables.
// Empty values are ignored.
func EnvOverrides(lookup func(string) (string, bool)) map[string]string {
	overrides := map[string]string{}
	for _, name := range EnvOverrideNames() {
		value, found := lookup(name)
		if !found || value == "" {
			continue
		}
		overrides[envOverrideKeys[name]] = value
	}
	return overrides
}

// EnvOverrideNames lists the recognised environment variables in sorted order.
func EnvOverrideNames() []string {
	names := make([]string, 0, len(envOverrideKeys))
	for name := range envOverrideKeys {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
