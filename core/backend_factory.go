package core

import (
	"github.com/crmarques/declagate/backend"
	"github.com/crmarques/declagate/config"
	"github.com/crmarques/declagate/faults"
	filebackend "github.com/crmarques/declagate/internal/providers/backend/file"
	httpbackend "github.com/crmarques/declagate/internal/providers/backend/http"
)

func buildBackend(cfg config.Context) (backend.Backend, error) {
	switch {
	case cfg.Backend.HTTP != nil:
		return httpbackend.NewAdminGateway(*cfg.Backend.HTTP, httpbackend.WithRateLimit(cfg.Sync.RateLimit))
	case cfg.Backend.File != nil:
		return filebackend.NewStateStore(*cfg.Backend.File)
	default:
		return nil, faults.NewTypedError(faults.ValidationError, "context backend is not configured", nil)
	}
}
