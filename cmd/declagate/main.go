package main

import (
	"context"
	"os"

	"github.com/crmarques/declagate/config"
	"github.com/crmarques/declagate/core"
	"github.com/crmarques/declagate/internal/cli"
	"github.com/crmarques/declagate/internal/cli/common"
	"github.com/crmarques/declagate/orchestrator"
)

func main() {
	if err := cli.Execute(newDependencies(core.BootstrapConfig{})); err != nil {
		os.Exit(cli.ExitCodeForError(err))
	}
}

// newDependencies defers context resolution until a command needs the
// gateway, so config commands work before any context exists.
func newDependencies(base core.BootstrapConfig) cli.Dependencies {
	return cli.Dependencies{
		Contexts: core.NewContextService(base),
		Bootstrap: func(ctx context.Context, opts common.BootstrapOptions, selection config.ContextSelection) (orchestrator.Orchestrator, error) {
			bootstrap := base
			bootstrap.Concurrency = opts.Concurrency
			bootstrap.Registerer = opts.Registerer
			bootstrap.Progress = opts.Progress

			declagateContext, err := core.NewDeclagateContext(ctx, bootstrap, selection)
			if err != nil {
				return nil, err
			}
			return declagateContext.Orchestrator, nil
		},
	}
}
