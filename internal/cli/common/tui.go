package common

import (
	"errors"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
)

// PromptConfirm asks a yes/no question on the terminal. It fails with a
// validation error when stdin or stdout is not a terminal.
func PromptConfirm(command *cobra.Command, title string, description string) (bool, error) {
	if !isTerminalReader(command.InOrStdin()) || !isTerminalWriter(command.ErrOrStderr()) {
		return false, ValidationError("interactive terminal is required; pass --yes to skip confirmation", nil)
	}

	confirmed := false
	field := huh.NewConfirm().
		Title(promptTitle(title)).
		Description(strings.TrimSpace(description)).
		Affirmative("Apply").
		Negative("Cancel").
		Value(&confirmed)

	form := huh.NewForm(huh.NewGroup(field)).
		WithInput(command.InOrStdin()).
		WithOutput(command.ErrOrStderr()).
		WithShowHelp(false)

	err := form.Run()
	if errors.Is(err, huh.ErrUserAborted) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return confirmed, nil
}

func promptTitle(title string) string {
	trimmed := strings.TrimSuffix(strings.TrimSpace(title), ":")
	if trimmed == "" {
		return "Continue?"
	}
	return trimmed
}
