// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - interactive chat: the Bubble Tea TUI, or a liner REPL when
// the terminal cannot host it.

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/jeranaias/chatterm/internal/backend"
	"github.com/jeranaias/chatterm/internal/config"
	"github.com/jeranaias/chatterm/internal/dispatch"
	"github.com/jeranaias/chatterm/internal/mode"
	"github.com/jeranaias/chatterm/internal/prefs"
	"github.com/jeranaias/chatterm/internal/render"
	"github.com/jeranaias/chatterm/internal/theme"
	"github.com/jeranaias/chatterm/internal/ui/chat"
	"github.com/jeranaias/chatterm/internal/util"
)

func newChatCmd(a *app) *cobra.Command {
	var plain bool
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Open the interactive chat",
		Long: `Open the interactive chat.

The full-screen TUI is used when stdin and stdout are terminals. With
--plain, or when either is redirected, a line-oriented REPL is used
instead. REPL commands:
  /search [query]  search now, or switch to search mode
  /chat            switch back to chat mode
  /attach [path]   attach a file, or list pending attachments
  /clear           drop pending attachments
  /theme           toggle light/dark
  /help            show commands
  /quit            leave`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runChat(cmd.Context(), plain || !(IsTTY() && IsStdoutTTY()))
		},
	}
	cmd.Flags().BoolVar(&plain, "plain", false, "use the line-oriented REPL instead of the TUI")
	return cmd
}

// runChat opens the TUI or the REPL.
func (a *app) runChat(ctx context.Context, plain bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	a.setupClientLogging()

	themeCtl, closePrefs := a.openTheme(ctx)
	defer closePrefs()

	client := a.newBackendClient()
	if plain {
		ln := liner.NewLiner()
		ln.SetCtrlCAborts(true)
		loadHistory(ln)
		defer func() {
			saveHistory(ln)
			ln.Close()
		}()

		r := a.newREPL(client, themeCtl, ln, IsStdoutTTY())
		return r.run(ctx)
	}
	return a.runTUI(client, themeCtl)
}

func (a *app) runTUI(client *backend.Client, themeCtl *theme.Controller) error {
	surface := chat.NewSurface()
	d := dispatch.New(client, surface, nil)

	m := chat.New(chat.Options{
		Dispatcher: d,
		Surface:    surface,
		Theme:      themeCtl,
		Pacing:     a.pacing(),
		Endpoint:   client.BaseURL(),
	})
	defer m.Close()

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())
	if _, err := p.Run(); err != nil {
		return NewCommandError("chat", "run", "TUI exited with an error", err)
	}
	return nil
}

// ===== SHARED SETUP =====

func (a *app) newBackendClient() *backend.Client {
	return backend.NewClient(&backend.ClientConfig{
		BaseURL:    a.cfg.Client.BaseURL,
		ChatPath:   a.cfg.Client.ChatPath,
		SearchPath: a.cfg.Client.SearchPath,
		Timeout:    a.cfg.Client.RequestTimeout(),
	})
}

func (a *app) pacing() render.Pacing {
	return pacingFromConfig(a.cfg.Typewriter)
}

func pacingFromConfig(tc config.TypewriterConfig) render.Pacing {
	p := render.DefaultPacing()
	if tc.SpeedMs > 0 {
		p.Base = msDuration(tc.SpeedMs)
	}
	if tc.JitterMs >= 0 {
		p.Jitter = msDuration(tc.JitterMs)
	}
	if tc.PunctuationFactor > 0 {
		p.PunctuationFactor = tc.PunctuationFactor
	}
	p.Instant = tc.Disabled
	return p
}

// openTheme loads the theme preference. When the preference database
// cannot be opened the theme still toggles, but only for this session.
func (a *app) openTheme(ctx context.Context) (*theme.Controller, func()) {
	var store prefs.Store = prefs.NewMemory()
	closeFn := func() {}

	path, err := a.cfg.PrefsPath()
	if err == nil {
		var db *prefs.SQLite
		if db, err = prefs.Open(path); err == nil {
			store = db
			closeFn = func() { _ = db.Close() }
		}
	}
	if err != nil {
		log.Printf("PREFS_OPEN_FAILED | err=%v", err)
	}

	ctl := theme.NewController(store)
	if err := ctl.Initialize(ctx); err != nil {
		log.Printf("THEME_LOAD_FAILED | err=%v", err)
	}
	return ctl, closeFn
}

// ===== PLAIN REPL =====

// lineReader is the part of liner.State the REPL uses.
type lineReader interface {
	Prompt(prompt string) (string, error)
	AppendHistory(item string)
}

type repl struct {
	out        io.Writer
	input      lineReader
	surface    *PlainSurface
	dispatcher *dispatch.Dispatcher
	theme      *theme.Controller
	styles     chatStyles
}

func (a *app) newREPL(b dispatch.Backend, themeCtl *theme.Controller, in lineReader, interactive bool) *repl {
	pacing := a.pacing()
	if !interactive {
		pacing.Instant = true
	}
	graphics := render.GraphicsNone
	if interactive && a.cfg.UI.ShowImages {
		graphics = render.DetectGraphics()
	}

	surface := NewPlainSurface(a.out, PlainOptions{
		Pacing:      pacing,
		Graphics:    graphics,
		Dark:        themeCtl.IsDark(),
		Width:       GetTerminalWidth(),
		Interactive: interactive,
		EchoUser:    !interactive,
	})
	return &repl{
		out:        a.out,
		input:      in,
		surface:    surface,
		dispatcher: dispatch.New(b, surface, nil),
		theme:      themeCtl,
		styles:     newChatStyles(themeCtl.IsDark()),
	}
}

func (r *repl) run(ctx context.Context) error {
	fmt.Fprintf(r.out, "%s %s\n", TitleStyle.Render("chatterm"), DimStyle.Render("type /help for commands, /quit to leave"))

	for {
		line, err := r.input.Prompt(r.prompt())
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Fprintln(r.out)
				return nil
			}
			return NewCommandError("chat", "read", "cannot read input", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		r.input.AppendHistory(line)

		if strings.HasPrefix(line, "/") {
			if !r.command(ctx, line) {
				return nil
			}
			continue
		}

		if err := r.dispatcher.Submit(ctx, line); err != nil {
			fmt.Fprintf(r.out, "%s %v\n", WarningStyle.Render("!"), err)
		}
	}
}

func (r *repl) prompt() string {
	p := "you"
	if r.dispatcher.Session().Mode.Current() == mode.Search {
		p = "search"
	}
	if badge := r.dispatcher.Session().Attachments.Badge(); badge != "" {
		p += " [📎" + badge + "]"
	}
	return p + " › "
}

// command runs a slash command and reports whether the REPL continues.
func (r *repl) command(ctx context.Context, line string) bool {
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch strings.ToLower(name) {
	case "/quit", "/exit", "/q":
		return false

	case "/help", "/?":
		r.printHelp()

	case "/search":
		if arg != "" {
			if err := r.dispatcher.PerformSearch(ctx, arg); err != nil {
				fmt.Fprintf(r.out, "%s %v\n", WarningStyle.Render("!"), err)
			}
			return true
		}
		if r.dispatcher.Session().Mode.Current() != mode.Search {
			r.dispatcher.ToggleMode()
		}
		fmt.Fprintln(r.out, DimStyle.Render(mode.SearchPlaceholder))

	case "/chat":
		if r.dispatcher.Session().Mode.Current() != mode.Chat {
			r.dispatcher.ToggleMode()
		}
		fmt.Fprintln(r.out, DimStyle.Render(mode.ChatPlaceholder))

	case "/attach":
		if arg == "" {
			r.printAttachments()
			return true
		}
		_, _ = r.dispatcher.Attach(ctx, util.ExpandHome(arg))

	case "/clear":
		r.dispatcher.ClearAttachments()
		fmt.Fprintln(r.out, DimStyle.Render("Attachments cleared."))

	case "/theme":
		t, err := r.theme.Toggle(ctx)
		if err != nil {
			log.Printf("THEME_SAVE_FAILED | err=%v", err)
		}
		r.surface.SetDark(t == theme.Dark)
		r.styles = newChatStyles(t == theme.Dark)
		fmt.Fprintf(r.out, "%s %s theme\n", r.theme.Glyph(), t)

	default:
		fmt.Fprintf(r.out, "%s unknown command %s (try /help)\n", WarningStyle.Render("!"), name)
	}
	return true
}

func (r *repl) printAttachments() {
	pending := r.dispatcher.Session().Attachments.List()
	if len(pending) == 0 {
		fmt.Fprintln(r.out, DimStyle.Render("No attachments. Usage: /attach <path>"))
		return
	}
	for i, a := range pending {
		fmt.Fprintf(r.out, "  %d. %s %s\n", i+1, a.Name, DimStyle.Render("("+a.MimeType+")"))
	}
}

func (r *repl) printHelp() {
	rows := [][2]string{
		{"/search [q]", "search now, or switch to search mode"},
		{"/chat", "switch to chat mode"},
		{"/attach [path]", "attach a file, or list pending attachments"},
		{"/clear", "drop pending attachments"},
		{"/theme", "toggle light/dark"},
		{"/quit", "leave"},
	}
	for _, row := range rows {
		fmt.Fprintf(r.out, "  %s %s\n", r.styles.Prompt.Render(fmt.Sprintf("%-15s", row[0])), row[1])
	}
}

// ===== INPUT HISTORY =====

// historyPath is where the REPL keeps its input history.
func historyPath() string {
	dir, err := config.ConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "chat_history")
}

func loadHistory(ln *liner.State) {
	if f, err := os.Open(historyPath()); err == nil {
		_, _ = ln.ReadHistory(f)
		f.Close()
	}
}

// saveHistory persists input history owner-readable only.
func saveHistory(ln *liner.State) {
	if err := config.EnsureConfigDir(); err != nil {
		return
	}
	f, err := os.OpenFile(historyPath(), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return
	}
	defer f.Close()
	_, _ = ln.WriteHistory(f)
}
