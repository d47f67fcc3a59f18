// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the Bubble Tea chat view.
//
// The model owns the transcript, the input area and the typewriter
// animation. Requests run in dispatcher goroutines that talk back through a
// Surface, so the event loop never blocks on the network.
package chat

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/chatterm/internal/dispatch"
	"github.com/jeranaias/chatterm/internal/mode"
	"github.com/jeranaias/chatterm/internal/render"
	"github.com/jeranaias/chatterm/internal/theme"
	"github.com/jeranaias/chatterm/internal/ui/styles"
	"github.com/jeranaias/chatterm/internal/util"
)

// Layout rows outside the viewport: header, typing line, input box, status bar.
const (
	headerHeight = 1
	typingHeight = 1
	inputHeight  = 3
	inputChrome  = 2
	statusHeight = 1
)

// entry is one transcript message plus its animation state.
type entry struct {
	msg  render.Message
	tw   *render.Typewriter
	done chan struct{}
}

func (e *entry) text() string {
	if e.tw != nil {
		return e.tw.Visible()
	}
	return e.msg.DisplayText()
}

func (e *entry) animating() bool {
	return e.tw != nil && !e.tw.Done()
}

// Options configures the chat model.
type Options struct {
	Dispatcher *dispatch.Dispatcher
	Surface    *Surface
	Theme      *theme.Controller
	Pacing     render.Pacing
	// Endpoint is shown in the header.
	Endpoint string
}

// Model is the chat view.
type Model struct {
	ctx    context.Context
	cancel context.CancelFunc

	dispatcher *dispatch.Dispatcher
	surface    *Surface
	themeCtl   *theme.Controller
	pacing     render.Pacing
	endpoint   string

	theme    *styles.Theme
	markdown *glamour.TermRenderer
	keys     KeyMap

	input     textarea.Model
	pathInput textinput.Model
	attaching bool
	viewport  viewport.Model
	spinner   spinner.Model

	entries []*entry
	typing  bool
	busy    bool
	// submitted is the input text of the request in flight.
	submitted string
	status    string

	width  int
	height int
	ready  bool
}

// New creates a chat model.
func New(opts Options) Model {
	ctx, cancel := context.WithCancel(context.Background())

	ta := textarea.New()
	ta.Placeholder = mode.ChatPlaceholder
	ta.ShowLineNumbers = false
	ta.Prompt = "> "
	ta.CharLimit = 8000
	ta.SetHeight(inputHeight)
	ta.KeyMap.InsertNewline = DefaultKeyMap().Newline
	ta.Focus()

	pi := textinput.New()
	pi.Prompt = "📎 File path: "
	pi.Placeholder = "~/Pictures/cat.png"
	pi.CharLimit = 1024

	sp := spinner.New()
	sp.Spinner = styles.DotsSpinner.Spinner()

	m := Model{
		ctx:        ctx,
		cancel:     cancel,
		dispatcher: opts.Dispatcher,
		surface:    opts.Surface,
		themeCtl:   opts.Theme,
		pacing:     opts.Pacing,
		endpoint:   opts.Endpoint,
		keys:       DefaultKeyMap(),
		input:      ta,
		pathInput:  pi,
		spinner:    sp,
		viewport:   viewport.New(80, 20),
		width:      80,
	}
	m.applyTheme()
	m.syncPlaceholder()
	return m
}

// Init starts listening for dispatcher output.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.surface.listen())
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case RenderMsg:
		return m.handleRender(msg)

	case TypingMsg:
		m.typing = msg.On
		m.refresh()
		cmds := []tea.Cmd{m.surface.listen()}
		if msg.On {
			cmds = append(cmds, m.spinner.Tick)
		}
		return m, tea.Batch(cmds...)

	case ClearInputMsg:
		if m.input.Value() == m.submitted {
			m.input.Reset()
		}
		return m, m.surface.listen()

	case typeTickMsg:
		return m.handleTypeTick(msg)

	case dispatchDoneMsg:
		m.busy = false
		m.submitted = ""
		if msg.Err != nil && !errors.Is(msg.Err, dispatch.ErrBusy) {
			m.status = msg.Err.Error()
		}
		return m, nil

	case attachDoneMsg:
		if msg.Err == nil {
			m.status = "Attached " + msg.Name
		}
		return m, nil

	case themeChangedMsg:
		if msg.Err != nil {
			log.Printf("THEME_SAVE_FAILED | err=%v", msg.Err)
			m.status = "Theme not saved: " + msg.Err.Error()
		}
		m.applyTheme()
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		if !m.typing {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m.updateInputs(msg)
}

// =============================================================================
// HANDLERS
// =============================================================================

func (m Model) handleResize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width, m.height = msg.Width, msg.Height
	m.input.SetWidth(max(10, msg.Width-4))
	m.pathInput.Width = max(10, msg.Width-20)

	vpHeight := msg.Height - headerHeight - typingHeight - inputHeight - inputChrome - statusHeight
	m.viewport.Width = msg.Width
	m.viewport.Height = max(3, vpHeight)
	m.ready = true

	m.buildMarkdown()
	m.refresh()
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		m.cancel()
		m.surface.Close()
		return m, tea.Quit
	}

	if m.attaching {
		return m.handleAttachKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Submit):
		return m.submit()

	case key.Matches(msg, m.keys.Attach):
		m.attaching = true
		m.input.Blur()
		m.pathInput.Reset()
		return m, m.pathInput.Focus()

	case key.Matches(msg, m.keys.ClearAttachments):
		m.dispatcher.ClearAttachments()
		m.status = "Attachments cleared"
		return m, nil

	case key.Matches(msg, m.keys.ToggleSearch):
		m.dispatcher.ToggleMode()
		m.syncPlaceholder()
		return m, nil

	case key.Matches(msg, m.keys.ToggleTheme):
		ctl := m.themeCtl
		ctx := m.ctx
		return m, func() tea.Msg {
			t, err := ctl.Toggle(ctx)
			return themeChangedMsg{Theme: t, Err: err}
		}

	case key.Matches(msg, m.keys.PageUp):
		m.viewport.HalfViewUp()
		return m, nil

	case key.Matches(msg, m.keys.PageDown):
		m.viewport.HalfViewDown()
		return m, nil

	case key.Matches(msg, m.keys.Cancel):
		m.status = ""
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleAttachKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Cancel):
		m.attaching = false
		m.pathInput.Blur()
		return m, m.input.Focus()

	case key.Matches(msg, m.keys.Submit):
		path := util.ExpandHome(strings.TrimSpace(m.pathInput.Value()))
		m.attaching = false
		m.pathInput.Blur()
		if path == "" {
			return m, m.input.Focus()
		}
		d := m.dispatcher
		ctx := m.ctx
		return m, tea.Batch(m.input.Focus(), func() tea.Msg {
			a, err := d.Attach(ctx, path)
			return attachDoneMsg{Name: a.Name, Err: err}
		})
	}

	var cmd tea.Cmd
	m.pathInput, cmd = m.pathInput.Update(msg)
	return m, cmd
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	text := m.input.Value()
	if m.busy {
		m.status = "Still waiting for the last reply..."
		return m, nil
	}
	if strings.TrimSpace(text) == "" && m.dispatcher.Session().Attachments.Len() == 0 {
		return m, nil
	}

	m.busy = true
	m.submitted = text
	m.status = ""
	d := m.dispatcher
	ctx := m.ctx
	return m, func() tea.Msg {
		return dispatchDoneMsg{Err: d.Submit(ctx, text)}
	}
}

func (m Model) handleRender(msg RenderMsg) (tea.Model, tea.Cmd) {
	e := &entry{msg: msg.Message, done: msg.Done}
	m.entries = append(m.entries, e)
	cmds := []tea.Cmd{m.surface.listen()}

	if msg.Message.Animated() {
		e.tw = render.NewTypewriter(msg.Message.Text, m.pacing)
		if cmd := m.advance(e); cmd != nil {
			cmds = append(cmds, cmd)
		}
	} else {
		closeDone(e)
	}

	m.refresh()
	return m, tea.Batch(cmds...)
}

func (m Model) handleTypeTick(msg typeTickMsg) (tea.Model, tea.Cmd) {
	for i := len(m.entries) - 1; i >= 0; i-- {
		e := m.entries[i]
		if e.msg.ID != msg.ID {
			continue
		}
		cmd := m.advance(e)
		m.refresh()
		return m, cmd
	}
	return m, nil
}

// advance reveals the next character of e and schedules the one after.
func (m Model) advance(e *entry) tea.Cmd {
	delay, ok := e.tw.Next()
	if !ok || e.tw.Done() {
		closeDone(e)
		return nil
	}
	id := e.msg.ID
	return tea.Tick(delay, func(t time.Time) tea.Msg {
		return typeTickMsg{ID: id, Time: t}
	})
}

func (m Model) updateInputs(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	if m.attaching {
		m.pathInput, cmd = m.pathInput.Update(msg)
	} else {
		m.input, cmd = m.input.Update(msg)
	}
	return m, cmd
}

// =============================================================================
// HELPERS
// =============================================================================

func closeDone(e *entry) {
	if e.done != nil {
		close(e.done)
		e.done = nil
	}
}

func (m *Model) syncPlaceholder() {
	m.input.Placeholder = m.dispatcher.Session().Mode.Placeholder()
}

func (m *Model) applyTheme() {
	m.theme = styles.NewTheme(m.themeCtl.IsDark())
	m.spinner.Style = m.theme.Typing
	m.input.FocusedStyle.Placeholder = m.theme.Placeholder
	m.input.BlurredStyle.Placeholder = m.theme.Placeholder
	m.buildMarkdown()
}

func (m *Model) buildMarkdown() {
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(m.theme.GlamourStyle()),
		glamour.WithWordWrap(max(20, m.bubbleWidth()-4)),
	)
	if err != nil {
		log.Printf("MARKDOWN_INIT_FAILED | err=%v", err)
		m.markdown = nil
		return
	}
	m.markdown = r
}

// refresh redraws the transcript and keeps it scrolled to the latest message.
func (m *Model) refresh() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

// Typing reports whether the typing indicator is visible.
func (m Model) Typing() bool {
	return m.typing
}

// Close cancels in-flight work. Call after the program exits.
func (m Model) Close() {
	m.cancel()
	m.surface.Close()
}
