package http

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/Masterminds/semver/v3"
	"github.com/crmarques/declagate/backend"
	"github.com/crmarques/declagate/config"
	"github.com/crmarques/declagate/resource"
	"golang.org/x/time/rate"
)

const defaultMediaType = "application/json"

var _ backend.Backend = (*AdminGateway)(nil)

// AdminGateway talks to an APISIX-compatible admin API.
type AdminGateway struct {
	baseURL        *url.URL
	adminPrefix    string
	defaultHeaders map[string]string
	authenticate   authenticator
	client         *http.Client
	limiter        *rate.Limiter

	versionMu sync.Mutex
	version   *semver.Version
}

type GatewayOption func(*AdminGateway)

// WithHTTPClient replaces the transport-level client. The configured timeout
// is kept.
func WithHTTPClient(client *http.Client) GatewayOption {
	return func(g *AdminGateway) {
		if client == nil {
			return
		}
		timeout := g.client.Timeout
		g.client = client
		if g.client.Timeout == 0 {
			g.client.Timeout = timeout
		}
	}
}

// WithRateLimit caps outgoing requests per second. Zero disables limiting.
func WithRateLimit(perSecond float64) GatewayOption {
	return func(g *AdminGateway) {
		if perSecond <= 0 {
			g.limiter = nil
			return
		}
		burst := int(perSecond)
		if burst < 1 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

func NewAdminGateway(cfg config.HTTPBackend, opts ...GatewayOption) (*AdminGateway, error) {
	baseURL, err := parseBaseURL(cfg.Server)
	if err != nil {
		return nil, err
	}

	authenticate, err := newAuthenticator(cfg.Auth)
	if err != nil {
		return nil, err
	}

	transport, err := newTransport(cfg.TLS)
	if err != nil {
		return nil, err
	}

	gateway := &AdminGateway{
		baseURL:        baseURL,
		adminPrefix:    strings.TrimRight(cfg.EffectiveAdminPrefix(), "/"),
		defaultHeaders: cloneStringMap(cfg.DefaultHeaders),
		authenticate:   authenticate,
		client: &http.Client{
			Timeout:   cfg.EffectiveTimeout(),
			Transport: newLoggingTransport(transport, cfg.TLS),
		},
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(gateway)
	}
	return gateway, nil
}

func (g *AdminGateway) Ping(ctx context.Context) error {
	_, _, err := g.execute(ctx, http.MethodGet, "routes", nil)
	return err
}

// Version reads the gateway version from the Server response header and
// caches it. A missing header yields 0.0.0.
func (g *AdminGateway) Version(ctx context.Context) (*semver.Version, error) {
	g.versionMu.Lock()
	defer g.versionMu.Unlock()

	if g.version != nil {
		return g.version, nil
	}

	_, header, err := g.execute(ctx, http.MethodGet, "routes", nil)
	if err != nil {
		return nil, err
	}
	g.version = parseServerVersion(header.Get("Server"))
	return g.version, nil
}

// DefaultValues returns the field defaults the admin API fills in on write,
// so that desired resources compare equal to what the gateway echoes back.
func (g *AdminGateway) DefaultValues(context.Context) (*resource.Defaults, error) {
	return apisixDefaults(), nil
}

func parseServerVersion(serverHeader string) *semver.Version {
	zero := semver.MustParse("0.0.0")
	_, raw, found := strings.Cut(serverHeader, "APISIX/")
	if !found {
		return zero
	}
	raw = strings.TrimSpace(raw)
	if idx := strings.IndexAny(raw, " ;("); idx >= 0 {
		raw = raw[:idx]
	}
	version, err := semver.NewVersion(raw)
	if err != nil {
		return zero
	}
	return version
}

func parseBaseURL(raw string) (*url.URL, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, validationError("backend.http.server is required", nil)
	}

	parsed, err := url.Parse(value)
	if err != nil {
		return nil, validationError("backend.http.server is invalid", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, validationError("backend.http.server must use http or https", nil)
	}
	if parsed.Host == "" {
		return nil, validationError("backend.http.server host is required", nil)
	}
	parsed.Path = strings.TrimRight(parsed.Path, "/")

	return parsed, nil
}

func cloneStringMap(values map[string]string) map[string]string {
	if len(values) == 0 {
		return nil
	}

	cloned := make(map[string]string, len(values))
	for key, value := range values {
		cloned[key] = value
	}
	return cloned
}
