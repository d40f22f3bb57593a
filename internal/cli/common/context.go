package common

import (
	"context"
	"io"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
)

// WithLogger attaches a funcr logger writing to w. Debug raises the
// verbosity so engine traces become visible.
func WithLogger(ctx context.Context, w io.Writer, debug bool) context.Context {
	verbosity := 0
	if debug {
		verbosity = 1
	}
	logger := funcr.New(func(prefix, args string) {
		if prefix != "" {
			_, _ = io.WriteString(w, prefix+": "+args+"\n")
			return
		}
		_, _ = io.WriteString(w, args+"\n")
	}, funcr.Options{Verbosity: verbosity})
	return logr.NewContext(ctx, logger.WithName("declagate"))
}

func Logger(ctx context.Context) logr.Logger {
	return logr.FromContextOrDiscard(ctx)
}
