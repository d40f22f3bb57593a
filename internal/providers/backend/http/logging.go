package http

import (
	"net/http"
	"net/url"
	"time"

	"github.com/crmarques/declagate/config"
	"github.com/go-logr/logr"
)

// loggingTransport logs every admin round trip at V(1) using the logger
// carried by the request context. Query values and userinfo are never
// logged.
type loggingTransport struct {
	next      http.RoundTripper
	tlsPolicy string
}

func newLoggingTransport(next http.RoundTripper, settings *config.TLS) *loggingTransport {
	return &loggingTransport{next: next, tlsPolicy: describeTLS(settings)}
}

func (t *loggingTransport) RoundTrip(request *http.Request) (*http.Response, error) {
	logger := logr.FromContextOrDiscard(request.Context()).WithValues(
		"method", request.Method,
		"url", redactURL(request.URL),
	)
	if request.URL != nil && request.URL.Scheme == "https" {
		logger = logger.WithValues("tls", t.tlsPolicy)
	}

	started := time.Now()
	response, err := t.next.RoundTrip(request)
	elapsed := time.Since(started)
	if err != nil {
		logger.V(1).Info("admin request failed", "elapsed", elapsed, "error", err.Error())
		return nil, err
	}

	logger.V(1).Info("admin request", "status", response.StatusCode, "elapsed", elapsed)
	return response, nil
}

func describeTLS(settings *config.TLS) string {
	switch {
	case settings == nil:
		return "system-roots"
	case settings.InsecureSkipVerify:
		return "insecure-skip-verify"
	case settings.ClientCertFile != "":
		return "mtls"
	case settings.CACertFile != "":
		return "custom-ca"
	}
	return "system-roots"
}

func redactURL(value *url.URL) string {
	if value == nil {
		return ""
	}

	cloned := *value
	cloned.User = nil
	if cloned.RawQuery != "" {
		query := cloned.Query()
		for key := range query {
			query[key] = []string{"<redacted>"}
		}
		cloned.RawQuery = query.Encode()
	}
	return cloned.String()
}
