package http

import (
	"net/http"

	"github.com/crmarques/declagate/config"
)

// authenticator decorates an outgoing admin request with credentials.
type authenticator func(request *http.Request)

func anonymous(*http.Request) {}

// newAuthenticator accepts a nil auth block; such gateways send no
// credentials, which suits admin APIs bound to localhost.
func newAuthenticator(cfg *config.HTTPAuth) (authenticator, error) {
	if cfg == nil {
		return anonymous, nil
	}

	var candidates []authenticator
	var problems []string

	if key := cfg.APIKey; key != nil {
		if key.Key == "" {
			problems = append(problems, "api-key.key is required")
		}
		candidates = append(candidates, func(request *http.Request) {
			request.Header.Set(config.DefaultAPIKeyHeader, key.Key)
		})
	}
	if basic := cfg.BasicAuth; basic != nil {
		if basic.Username == "" || basic.Password == "" {
			problems = append(problems, "basic-auth requires username and password")
		}
		candidates = append(candidates, func(request *http.Request) {
			request.SetBasicAuth(basic.Username, basic.Password)
		})
	}
	if bearer := cfg.BearerToken; bearer != nil {
		if bearer.Token == "" {
			problems = append(problems, "bearer-token.token is required")
		}
		candidates = append(candidates, func(request *http.Request) {
			request.Header.Set("Authorization", "Bearer "+bearer.Token)
		})
	}
	if custom := cfg.CustomHeader; custom != nil {
		if custom.Header == "" || custom.Token == "" {
			problems = append(problems, "custom-header requires header and token")
		}
		candidates = append(candidates, func(request *http.Request) {
			request.Header.Set(custom.Header, custom.Token)
		})
	}

	switch {
	case len(candidates) != 1:
		return nil, validationError("backend.http.auth must define exactly one auth mode", nil)
	case len(problems) > 0:
		return nil, validationError("backend.http.auth."+problems[0], nil)
	}
	return candidates[0], nil
}
