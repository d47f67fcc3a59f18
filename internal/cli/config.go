// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config.go - config command: show, path, init.
//
// Examples:
//   chatterm config show          Effective configuration as TOML
//   chatterm config show --json   Same, as JSON (API key masked)
//   chatterm config path          Config file location
//   chatterm config init          Write the defaults to config.toml

package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jeranaias/chatterm/internal/config"
	"github.com/jeranaias/chatterm/internal/util"
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or initialise the configuration",
	}

	var asJSON bool
	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if asJSON {
				masked := *a.cfg
				masked.Gemini.APIKey = util.MaskSecret(masked.Gemini.APIKey)
				return outputJSON(a.out, masked)
			}
			fmt.Fprint(a.out, a.cfg.String())
			return nil
		},
	}
	show.Flags().BoolVar(&asJSON, "json", false, "output JSON")

	path := &cobra.Command{
		Use:   "path",
		Short: "Print the config file location",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := config.ConfigPathTOML()
			if err != nil {
				return NewCommandError("config", "path", "cannot locate config directory", err)
			}
			fmt.Fprintln(a.out, p)
			return nil
		},
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration to config.toml",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := config.ConfigPathTOML()
			if err != nil {
				return NewCommandError("config", "init", "cannot locate config directory", err)
			}
			if _, err := os.Stat(p); err == nil && !force {
				return NewCommandError("config", "init", p+" already exists (use --force to overwrite)", nil)
			}
			if err := config.SaveTOML(config.Default(), p); err != nil {
				return NewCommandError("config", "init", "cannot write config", err)
			}
			fmt.Fprintf(a.out, "%s wrote %s\n", SuccessStyle.Render("✓"), p)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	cmd.AddCommand(show, path, initCmd)
	return cmd
}
