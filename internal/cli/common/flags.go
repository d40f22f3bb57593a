package common

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type GlobalFlags struct {
	Context  string
	Debug    bool
	Verbose  bool
	NoStatus bool
	NoColor  bool
	Output   string
	JQ       string
}

type FileFlags struct {
	Files []string
}

func BindGlobalFlags(command *cobra.Command, flags *GlobalFlags) {
	bindGlobalFlagSet(command.PersistentFlags(), flags)
	_ = command.RegisterFlagCompletionFunc("output", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return []string{OutputAuto, OutputText, OutputJSON, OutputYAML}, cobra.ShellCompDirectiveNoFileComp
	})
}

func bindGlobalFlagSet(set *pflag.FlagSet, flags *GlobalFlags) {
	set.StringVarP(&flags.Context, "context", "c", "", "context name from the context catalog")
	set.BoolVarP(&flags.Debug, "debug", "d", false, "write debug logs to stderr")
	set.BoolVarP(&flags.Verbose, "verbose", "v", false, "show complementary command output")
	set.BoolVarP(&flags.NoStatus, "no-status", "n", false, "hide the closing status line")
	set.BoolVar(&flags.NoColor, "no-color", false, "disable color output")
	set.StringVarP(&flags.Output, "output", "o", OutputAuto, "output format: auto|text|json|yaml")
	set.StringVar(&flags.JQ, "jq", "", "jq expression applied to structured output")
}

func IsVerbose(flags *GlobalFlags) bool {
	return flags != nil && flags.Verbose
}

func BindFileFlags(command *cobra.Command, flags *FileFlags) {
	command.Flags().StringSliceVarP(&flags.Files, "file", "f", nil, "configuration file or directory (repeatable)")
	_ = command.MarkFlagFilename("file", "yaml", "yml", "json")
}

func RequireFiles(flags FileFlags) ([]string, error) {
	if len(flags.Files) == 0 {
		return nil, ValidationError("flag --file is required", nil)
	}
	return flags.Files, nil
}
