// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jeranaias/chatterm/internal/theme"
)

func newThemeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:       "theme [show|toggle|dark|light]",
		Short:     "Show or change the saved colour theme",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"show", "toggle", "dark", "light"},
		RunE: func(cmd *cobra.Command, args []string) error {
			action := "show"
			if len(args) == 1 {
				action = args[0]
			}

			ctx := cmd.Context()
			ctl, closePrefs := a.openTheme(ctx)
			defer closePrefs()

			switch action {
			case "show":
			case "toggle":
				if _, err := ctl.Toggle(ctx); err != nil {
					return NewCommandError("theme", "toggle", "cannot save preference", err)
				}
			case string(theme.Dark), string(theme.Light):
				if err := ctl.Set(ctx, theme.Theme(action)); err != nil {
					return NewCommandError("theme", "set", "cannot save preference", err)
				}
			default:
				return NewValidationError("theme action", action, "must be show, toggle, dark or light", "chatterm theme dark")
			}

			fmt.Fprintf(a.out, "%s %s\n", RenderLabel("Theme"), ctl.Current())
			return nil
		},
	}
}
