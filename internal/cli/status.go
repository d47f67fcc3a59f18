// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// status.go - status command: is the backend reachable, and what is
// serving it.
//
// Examples:
//   chatterm status          Backend health and client settings
//   chatterm status --json   Same, as JSON

package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeranaias/chatterm/internal/backend"
)

// StatusInfo is the status command's JSON output.
type StatusInfo struct {
	BaseURL   string `json:"base_url"`
	Reachable bool   `json:"reachable"`
	Provider  string `json:"provider,omitempty"`
	Version   string `json:"version,omitempty"`
	Latency   string `json:"latency,omitempty"`
	Error     string `json:"error,omitempty"`
}

func newStatusCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:     "status",
		Aliases: []string{"s"},
		Short:   "Check that the backend is reachable",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := collectStatus(cmd.Context(), a.newBackendClient())
			if asJSON {
				return outputJSON(a.out, info)
			}
			printStatus(a, info)
			if !info.Reachable {
				return NewCommandError("status", "check", "backend unreachable", nil)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output JSON")
	return cmd
}

func collectStatus(ctx context.Context, c *backend.Client) StatusInfo {
	info := StatusInfo{BaseURL: c.BaseURL()}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	start := time.Now()
	health, err := c.Health(ctx)
	if err != nil {
		info.Error = err.Error()
		return info
	}
	info.Reachable = true
	info.Provider = health.Provider
	info.Version = health.Version
	info.Latency = formatDurationShort(time.Since(start))
	return info
}

func printStatus(a *app, info StatusInfo) {
	fmt.Fprintln(a.out, TitleStyle.Render("chatterm status"))
	fmt.Fprintf(a.out, "%s %s\n", RenderLabel("Backend"), info.BaseURL)
	if !info.Reachable {
		fmt.Fprintf(a.out, "%s %s\n", RenderLabel("Health"), ErrorStyle.Render("unreachable"))
		fmt.Fprintf(a.out, "%s %s\n", RenderLabel("Error"), DimStyle.Render(info.Error))
		return
	}
	fmt.Fprintf(a.out, "%s %s (%s)\n", RenderLabel("Health"), SuccessStyle.Render("ok"), info.Latency)
	fmt.Fprintf(a.out, "%s %s\n", RenderLabel("Provider"), info.Provider)
	if info.Version != "" {
		fmt.Fprintf(a.out, "%s %s\n", RenderLabel("Version"), info.Version)
	}
	fmt.Fprintf(a.out, "%s %s\n", RenderLabel("Typewriter"), typewriterSummary(a))
}

func typewriterSummary(a *app) string {
	p := a.pacing()
	if p.Instant {
		return "off"
	}
	return fmt.Sprintf("%s/char, +%s jitter", formatDurationShort(p.Base), formatDurationShort(p.Jitter))
}
