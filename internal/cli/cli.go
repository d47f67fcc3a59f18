// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the chatterm command tree.
//
// With no subcommand chatterm opens the chat: the full-screen TUI when
// stdin and stdout are terminals, the line-oriented REPL otherwise.
package cli

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/jeranaias/chatterm/internal/config"
)

// Version information (set by main at startup)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// app carries state shared by every command.
type app struct {
	cfg     *config.Config
	debug   bool
	baseURL string
	out     io.Writer
	errOut  io.Writer
	logFile *os.File
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	root := NewRootCmd()
	if err := root.Execute(); err != nil {
		DisplayError(os.Stderr, err)
		os.Exit(GetExitCode(err))
	}
}

// NewRootCmd builds the command tree writing to stdout and stderr.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&app{out: os.Stdout, errOut: os.Stderr})
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "chatterm",
		Short: "Terminal chat client with typed-out replies and web search",
		Long: `chatterm talks to a chat backend over POST /chat and POST /search.

Run without a subcommand to open the chat. In the TUI:
  enter       send              alt+enter   newline
  ctrl+o      attach a file     ctrl+x      clear attachments
  ctrl+s      toggle search     ctrl+t      toggle theme
  ctrl+c      quit

Examples:
  chatterm                          open the chat
  chatterm ask "what's up?"         one question, answer on stdout
  chatterm ask --file cat.png       analyse an image
  chatterm search "go generics"     web search
  chatterm serve --provider gemini  run the backend`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.loadConfig()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.closeLog()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runChat(cmd.Context(), !(IsTTY() && IsStdoutTTY()))
		},
	}
	root.SetOut(a.out)
	root.SetErr(a.errOut)

	root.PersistentFlags().BoolVar(&a.debug, "debug", false, "write client logs to ~/.chatterm/chatterm.log")
	root.PersistentFlags().StringVar(&a.baseURL, "base-url", "", "backend origin (overrides client.base_url)")

	root.AddCommand(
		newChatCmd(a),
		newAskCmd(a),
		newSearchCmd(a),
		newServeCmd(a),
		newThemeCmd(a),
		newConfigCmd(a),
		newStatusCmd(a),
		newVersionCmd(a),
	)
	return root
}

// loadConfig reads the config file and applies env and flag overrides.
func (a *app) loadConfig() error {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(a.errOut, "%s %v (using defaults)\n", WarningStyle.Render("Warning:"), err)
	}
	if cfg == nil {
		cfg = config.Default()
	}
	if a.baseURL != "" {
		cfg.Client.BaseURL = a.baseURL
	}
	if a.debug {
		cfg.Debug = true
	}
	if err := cfg.Validate(); err != nil {
		return NewCommandError("config", "validate", "invalid configuration", err)
	}
	a.cfg = cfg
	return nil
}

// setupClientLogging sends client logs to the log file in debug mode and
// discards them otherwise, since the chat owns the terminal.
func (a *app) setupClientLogging() {
	if !a.cfg.Debug {
		log.SetOutput(io.Discard)
		return
	}
	path, err := config.LogPath()
	if err == nil {
		err = config.EnsureConfigDir()
	}
	if err == nil {
		a.logFile, err = os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	}
	if err != nil {
		fmt.Fprintf(a.errOut, "%s cannot open log file: %v\n", WarningStyle.Render("Warning:"), err)
		log.SetOutput(io.Discard)
		return
	}
	log.SetOutput(a.logFile)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	log.Printf("SESSION_START | version=%s base_url=%s", Version, a.cfg.Client.BaseURL)
}

func (a *app) closeLog() {
	if a.logFile != nil {
		_ = a.logFile.Close()
		a.logFile = nil
	}
}

// ===== VERSION =====

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(a.out, "chatterm %s (commit %s, built %s)\n", Version, GitCommit, BuildDate)
			return nil
		},
	}
}
