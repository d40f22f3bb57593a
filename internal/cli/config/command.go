package config

import (
	"fmt"
	"io"
	"strings"

	configdomain "github.com/crmarques/declagate/config"
	"github.com/crmarques/declagate/faults"
	"github.com/crmarques/declagate/internal/cli/common"
	"github.com/spf13/cobra"
)

const redacted = "<redacted>"

func NewCommand(deps common.CommandDependencies, globalFlags *common.GlobalFlags) *cobra.Command {
	command := &cobra.Command{
		Use:   "config",
		Short: "Manage contexts",
		Args:  cobra.NoArgs,
	}

	command.AddCommand(
		newListCommand(deps, globalFlags),
		newUseCommand(deps),
		newShowCommand(deps, globalFlags),
		newCurrentCommand(deps, globalFlags),
	)

	return command
}

type contextListItem struct {
	Name    string `json:"name" yaml:"name"`
	Backend string `json:"backend" yaml:"backend"`
	Target  string `json:"target" yaml:"target"`
	Current bool   `json:"current" yaml:"current"`
}

func newListCommand(deps common.CommandDependencies, globalFlags *common.GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List contexts",
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, _ []string) error {
			contexts, err := common.RequireContexts(deps)
			if err != nil {
				return err
			}
			items, err := contexts.List(command.Context())
			if err != nil {
				return err
			}

			currentName := ""
			if len(items) > 0 {
				current, err := contexts.GetCurrent(command.Context())
				switch {
				case err == nil:
					currentName = current.Name
				case !faults.IsCategory(err, faults.NotFoundError):
					return err
				}
			}

			listed := make([]contextListItem, 0, len(items))
			for _, item := range items {
				backendType, target := describeBackend(item.Backend)
				listed = append(listed, contextListItem{
					Name:    item.Name,
					Backend: backendType,
					Target:  target,
					Current: item.Name == currentName,
				})
			}

			return common.WriteOutput(command, globalFlags, listed, func(w io.Writer, value []contextListItem) error {
				for _, item := range value {
					marker := " "
					if item.Current {
						marker = "*"
					}
					if _, writeErr := fmt.Fprintf(w, "%s %s\t%s\t%s\n", marker, item.Name, item.Backend, item.Target); writeErr != nil {
						return writeErr
					}
				}
				return nil
			})
		},
	}
}

func newUseCommand(deps common.CommandDependencies) *cobra.Command {
	command := &cobra.Command{
		Use:   "use <name>",
		Short: "Set the current context",
		Args:  cobra.ExactArgs(1),
		RunE: func(command *cobra.Command, args []string) error {
			contexts, err := common.RequireContexts(deps)
			if err != nil {
				return err
			}
			name := strings.TrimSpace(args[0])
			if name == "" {
				return common.ValidationError("context name is required", nil)
			}
			return contexts.SetCurrent(command.Context(), name)
		},
	}
	command.ValidArgsFunction = func(command *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
		if len(args) > 0 || deps.Contexts == nil {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		items, err := deps.Contexts.List(command.Context())
		if err != nil {
			return nil, cobra.ShellCompDirectiveError
		}
		names := make([]string, 0, len(items))
		for _, item := range items {
			names = append(names, item.Name)
		}
		return names, cobra.ShellCompDirectiveNoFileComp
	}
	return command
}

func newShowCommand(deps common.CommandDependencies, globalFlags *common.GlobalFlags) *cobra.Command {
	var reveal bool

	command := &cobra.Command{
		Use:   "show",
		Short: "Show the selected context with environment overrides applied",
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, _ []string) error {
			contexts, err := common.RequireContexts(deps)
			if err != nil {
				return err
			}

			name := ""
			if globalFlags != nil {
				name = strings.TrimSpace(globalFlags.Context)
			}
			shown, err := contexts.ResolveContext(command.Context(), configdomain.ContextSelection{Name: name})
			if err != nil {
				return err
			}
			if !reveal {
				shown = redactContext(shown)
			}

			return common.WriteOutput(command, &common.GlobalFlags{Output: common.OutputYAML}, shown, nil)
		},
	}
	command.Flags().BoolVar(&reveal, "reveal", false, "print credentials instead of masking them")
	return command
}

func newCurrentCommand(deps common.CommandDependencies, globalFlags *common.GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "current",
		Short: "Print the current context name",
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, _ []string) error {
			contexts, err := common.RequireContexts(deps)
			if err != nil {
				return err
			}
			current, err := contexts.GetCurrent(command.Context())
			if err != nil {
				return err
			}
			return common.WriteOutput(command, globalFlags, contextListItem{Name: current.Name, Current: true}, func(w io.Writer, value contextListItem) error {
				_, writeErr := fmt.Fprintln(w, value.Name)
				return writeErr
			})
		},
	}
}

func describeBackend(backend configdomain.Backend) (string, string) {
	switch {
	case backend.HTTP != nil:
		return "http", backend.HTTP.Server
	case backend.File != nil:
		return "file", backend.File.Path
	default:
		return "", ""
	}
}

// redactContext masks credentials. The input is not modified.
func redactContext(cfg configdomain.Context) configdomain.Context {
	if cfg.Backend.HTTP == nil {
		return cfg
	}

	httpBackend := *cfg.Backend.HTTP
	if len(httpBackend.DefaultHeaders) > 0 {
		headers := make(map[string]string, len(httpBackend.DefaultHeaders))
		for key := range httpBackend.DefaultHeaders {
			headers[key] = redacted
		}
		httpBackend.DefaultHeaders = headers
	}
	if httpBackend.Auth != nil {
		auth := configdomain.HTTPAuth{}
		if httpBackend.Auth.APIKey != nil {
			auth.APIKey = &configdomain.APIKeyAuth{Key: redacted}
		}
		if httpBackend.Auth.BasicAuth != nil {
			auth.BasicAuth = &configdomain.BasicAuth{Username: httpBackend.Auth.BasicAuth.Username, Password: redacted}
		}
		if httpBackend.Auth.BearerToken != nil {
			auth.BearerToken = &configdomain.BearerTokenAuth{Token: redacted}
		}
		if httpBackend.Auth.CustomHeader != nil {
			auth.CustomHeader = &configdomain.HeaderTokenAuth{Header: httpBackend.Auth.CustomHeader.Header, Token: redacted}
		}
		httpBackend.Auth = &auth
	}
	cfg.Backend.HTTP = &httpBackend
	return cfg
}
