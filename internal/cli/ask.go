// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// ask.go - one-shot chat and search round trips for scripts and pipes.

package cli

import (
	"context"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/jeranaias/chatterm/internal/attach"
	"github.com/jeranaias/chatterm/internal/backend"
	"github.com/jeranaias/chatterm/internal/dispatch"
	"github.com/jeranaias/chatterm/internal/render"
	"github.com/jeranaias/chatterm/internal/util"
)

// maxStdinPrompt bounds a prompt read from stdin.
const maxStdinPrompt = 1 << 20

func newAskCmd(a *app) *cobra.Command {
	var files []string
	cmd := &cobra.Command{
		Use:   "ask [prompt]",
		Short: "Send one chat message and print the reply",
		Long: `Send one chat message and print the reply.

The prompt is read from stdin when no argument is given and stdin is not
a terminal.

Examples:
  chatterm ask "explain goroutines like I'm five"
  chatterm ask --file receipt.png "what did I spend?"
  git diff | chatterm ask`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt := strings.Join(args, " ")
			if prompt == "" && !IsTTY() {
				data, err := io.ReadAll(io.LimitReader(os.Stdin, maxStdinPrompt))
				if err != nil {
					return NewCommandError("ask", "read", "cannot read stdin", err)
				}
				prompt = string(data)
			}
			return a.ask(cmd.Context(), a.newBackendClient(), prompt, files)
		},
	}
	cmd.Flags().StringArrayVarP(&files, "file", "f", nil, "attach a file (repeatable)")
	return cmd
}

func newSearchCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Run one web search and print the results",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			client := a.newBackendClient()
			if asJSON {
				resp, err := client.Search(cmd.Context(), query)
				if err != nil {
					return NewCommandError("search", "send", "backend request failed", err)
				}
				return outputJSON(a.out, resp)
			}
			return a.search(cmd.Context(), client, query)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw JSON response")
	return cmd
}

// ask sends prompt with files through the dispatcher and prints the reply.
func (a *app) ask(ctx context.Context, b dispatch.Backend, prompt string, files []string) error {
	if strings.TrimSpace(prompt) == "" && len(files) == 0 {
		return NewValidationError("prompt", prompt, "nothing to send", `chatterm ask "hello"`)
	}
	a.setupClientLogging()

	tb := &trackingBackend{Backend: b}
	d := dispatch.New(tb, a.oneShotSurface(), nil)

	for _, path := range files {
		if _, err := d.Attach(ctx, util.ExpandHome(path)); err != nil {
			return NewCommandError("ask", "attach", "cannot read "+path, err)
		}
	}
	if err := d.SendChat(ctx, prompt); err != nil {
		return err
	}
	if err := tb.Err(); err != nil {
		return NewCommandError("ask", "send", "backend request failed", err)
	}
	return nil
}

// search runs one search and prints each result.
func (a *app) search(ctx context.Context, b dispatch.Backend, query string) error {
	if strings.TrimSpace(query) == "" {
		return NewValidationError("query", query, "nothing to search for", `chatterm search "go generics"`)
	}
	a.setupClientLogging()

	tb := &trackingBackend{Backend: b}
	d := dispatch.New(tb, a.oneShotSurface(), nil)
	if err := d.PerformSearch(ctx, query); err != nil {
		return err
	}
	if err := tb.Err(); err != nil {
		return NewCommandError("search", "send", "backend request failed", err)
	}
	return nil
}

// oneShotSurface types replies out on a terminal and prints them whole
// when piped.
func (a *app) oneShotSurface() *PlainSurface {
	tty := IsStdoutTTY() && a.out == os.Stdout
	pacing := a.pacing()
	if !tty {
		pacing.Instant = true
	}
	graphics := render.GraphicsNone
	if tty && a.cfg.UI.ShowImages {
		graphics = render.DetectGraphics()
	}
	return NewPlainSurface(a.out, PlainOptions{
		Pacing:   pacing,
		Graphics: graphics,
		Width:    GetTerminalWidth(),
	})
}

// trackingBackend remembers the last transport error, which the
// dispatcher only reports in the transcript.
type trackingBackend struct {
	dispatch.Backend
	mu  sync.Mutex
	err error
}

func (t *trackingBackend) Chat(ctx context.Context, prompt string, files []attach.Attachment) (*backend.ChatResponse, error) {
	resp, err := t.Backend.Chat(ctx, prompt, files)
	t.record(err)
	return resp, err
}

func (t *trackingBackend) Search(ctx context.Context, query string) (*backend.SearchResponse, error) {
	resp, err := t.Backend.Search(ctx, query)
	t.record(err)
	return resp, err
}

func (t *trackingBackend) record(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.err = err
}

// Err returns the error of the last request, if any.
func (t *trackingBackend) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}
