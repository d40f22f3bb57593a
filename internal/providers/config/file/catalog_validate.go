package file

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/crmarques/declagate/config"
	"github.com/crmarques/declagate/resource"
)

func validateCatalog(contextCatalog config.ContextCatalog) error {
	if len(contextCatalog.Contexts) == 0 {
		if contextCatalog.CurrentCtx != "" {
			return validationError("current-ctx must be empty when contexts list is empty", nil)
		}
		return nil
	}

	seen := map[string]struct{}{}
	for _, item := range contextCatalog.Contexts {
		if item.Name == "" {
			return validationError("context name must not be empty", nil)
		}
		if _, exists := seen[item.Name]; exists {
			return validationError(fmt.Sprintf("duplicate context name %q", item.Name), nil)
		}
		seen[item.Name] = struct{}{}

		if err := validateConfig(item); err != nil {
			return err
		}
	}

	if contextCatalog.CurrentCtx == "" {
		return validationError("current-ctx must be set when contexts are defined", nil)
	}

	if _, exists := seen[contextCatalog.CurrentCtx]; !exists {
		return validationError(fmt.Sprintf("current-ctx %q does not match any context", contextCatalog.CurrentCtx), nil)
	}

	return nil
}

func validateConfig(cfg config.Context) error {
	cfg = normalizeConfig(cfg)

	if cfg.Name == "" {
		return validationError("context name must not be empty", nil)
	}

	if err := validateBackend(cfg.Backend); err != nil {
		return err
	}

	if err := validateResourceTypes("include-resource-types", cfg.IncludeResourceTypes); err != nil {
		return err
	}
	if err := validateResourceTypes("exclude-resource-types", cfg.ExcludeResourceTypes); err != nil {
		return err
	}
	if len(cfg.IncludeResourceTypes) > 0 && len(cfg.ExcludeResourceTypes) > 0 {
		return validationError("include-resource-types and exclude-resource-types are mutually exclusive", nil)
	}

	for key := range cfg.LabelSelector {
		if key == "" {
			return validationError("label-selector keys must not be empty", nil)
		}
	}

	if cfg.Sync.Concurrency < 0 {
		return validationError("sync.concurrency must not be negative", nil)
	}
	if cfg.Sync.RateLimit < 0 {
		return validationError("sync.rate-limit must not be negative", nil)
	}

	return nil
}

func normalizeConfig(cfg config.Context) config.Context {
	cfg.Name = strings.TrimSpace(cfg.Name)
	if cfg.Backend.HTTP != nil {
		httpBackend := *cfg.Backend.HTTP
		httpBackend.Server = strings.TrimRight(strings.TrimSpace(httpBackend.Server), "/")
		cfg.Backend.HTTP = &httpBackend
	}
	return cfg
}

func validateBackend(backend config.Backend) error {
	if countSet(backend.HTTP != nil, backend.File != nil) != 1 {
		return validationError("backend must define exactly one of http or file", nil)
	}

	if backend.File != nil && strings.TrimSpace(backend.File.Path) == "" {
		return validationError("backend.file.path is required", nil)
	}

	if backend.HTTP == nil {
		return nil
	}

	httpBackend := backend.HTTP
	if httpBackend.Server == "" {
		return validationError("backend.http.server is required", nil)
	}
	parsed, err := url.Parse(httpBackend.Server)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return validationError("backend.http.server must be an absolute http(s) url", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return validationError("backend.http.server must use http or https", nil)
	}
	if httpBackend.AdminPrefix != "" && !strings.HasPrefix(httpBackend.AdminPrefix, "/") {
		return validationError("backend.http.admin-prefix must start with /", nil)
	}
	if httpBackend.Timeout < 0 {
		return validationError("backend.http.timeout must not be negative", nil)
	}

	if httpBackend.Auth == nil {
		return nil
	}
	auth := httpBackend.Auth
	if countSet(auth.APIKey != nil, auth.BasicAuth != nil, auth.BearerToken != nil, auth.CustomHeader != nil) != 1 {
		return validationError("backend.http.auth must define exactly one of api-key, basic-auth, bearer-token, custom-header", nil)
	}
	if auth.APIKey != nil && auth.APIKey.Key == "" {
		return validationError("backend.http.auth.api-key.key is required", nil)
	}
	if auth.BasicAuth != nil && (auth.BasicAuth.Username == "" || auth.BasicAuth.Password == "") {
		return validationError("backend.http.auth.basic-auth requires username and password", nil)
	}
	if auth.BearerToken != nil && auth.BearerToken.Token == "" {
		return validationError("backend.http.auth.bearer-token.token is required", nil)
	}
	if auth.CustomHeader != nil && (auth.CustomHeader.Header == "" || auth.CustomHeader.Token == "") {
		return validationError("backend.http.auth.custom-header requires header and token", nil)
	}

	return nil
}

func validateResourceTypes(field string, values []string) error {
	schema := resource.DefaultSchema()
	for _, value := range values {
		if _, found := schema.Lookup(resource.Category(value)); !found {
			return validationError(fmt.Sprintf("%s: unknown resource type %q", field, value), nil)
		}
	}
	return nil
}

func applyOverrides(cfg config.Context, overrides map[string]string) (config.Context, error) {
	for _, key := range sortedOverrideKeys(overrides) {
		value := overrides[key]
		switch key {
		case config.OverrideServer:
			httpBackend(&cfg).Server = strings.TrimRight(value, "/")
		case config.OverrideAdminPrefix:
			httpBackend(&cfg).AdminPrefix = value
		case config.OverrideTimeout:
			timeout, err := time.ParseDuration(value)
			if err != nil {
				return config.Context{}, validationError(fmt.Sprintf("override %s must be a duration", key), err)
			}
			httpBackend(&cfg).Timeout = timeout
		case config.OverrideAPIKey:
			httpBackend(&cfg).Auth = &config.HTTPAuth{APIKey: &config.APIKeyAuth{Key: value}}
		case config.OverrideBearerToken:
			httpBackend(&cfg).Auth = &config.HTTPAuth{BearerToken: &config.BearerTokenAuth{Token: value}}
		case config.OverrideCACertFile:
			httpTLS(&cfg).CACertFile = value
		case config.OverrideClientCertFile:
			httpTLS(&cfg).ClientCertFile = value
		case config.OverrideClientKeyFile:
			httpTLS(&cfg).ClientKeyFile = value
		case config.OverrideInsecureSkipVerify:
			skip, err := strconv.ParseBool(value)
			if err != nil {
				return config.Context{}, validationError(fmt.Sprintf("override %s must be a boolean", key), err)
			}
			httpTLS(&cfg).InsecureSkipVerify = skip
		case config.OverrideFilePath:
			if cfg.Backend.File == nil {
				cfg.Backend.File = &config.FileBackend{}
			}
			cfg.Backend.File.Path = value
		case config.OverrideLabelSelector:
			selector, err := parseLabelSelector(value)
			if err != nil {
				return config.Context{}, err
			}
			cfg.LabelSelector = selector
		case config.OverrideIncludeTypes:
			cfg.IncludeResourceTypes = splitList(value)
		case config.OverrideExcludeTypes:
			cfg.ExcludeResourceTypes = splitList(value)
		case config.OverrideSyncConcurrency:
			concurrency, err := strconv.Atoi(value)
			if err != nil {
				return config.Context{}, validationError(fmt.Sprintf("override %s must be an integer", key), err)
			}
			cfg.Sync.Concurrency = concurrency
		case config.OverrideSyncRateLimit:
			limit, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return config.Context{}, validationError(fmt.Sprintf("override %s must be a number", key), err)
			}
			cfg.Sync.RateLimit = limit
		default:
			return config.Context{}, unknownOverrideError(key)
		}
	}

	return cfg, nil
}

// httpBackend returns the context's http backend, creating it when the
// context has none.
func httpBackend(cfg *config.Context) *config.HTTPBackend {
	if cfg.Backend.HTTP == nil {
		cfg.Backend.HTTP = &config.HTTPBackend{}
	}
	return cfg.Backend.HTTP
}

func httpTLS(cfg *config.Context) *config.TLS {
	backend := httpBackend(cfg)
	if backend.TLS == nil {
		backend.TLS = &config.TLS{}
	}
	return backend.TLS
}

// parseLabelSelector reads "key=value,key=value".
func parseLabelSelector(value string) (map[string]string, error) {
	selector := map[string]string{}
	for _, pair := range splitList(value) {
		key, labelValue, found := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !found || key == "" {
			return nil, validationError(fmt.Sprintf("label selector entry %q must be key=value", pair), nil)
		}
		selector[key] = strings.TrimSpace(labelValue)
	}
	return selector, nil
}

func splitList(value string) []string {
	items := []string{}
	for _, item := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

func sortedOverrideKeys(overrides map[string]string) []string {
	keys := make([]string, 0, len(overrides))
	for key := range overrides {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func countSet(values ...bool) int {
	count := 0
	for _, value := range values {
		if value {
			count++
		}
	}
	return count
}
