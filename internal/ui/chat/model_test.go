// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/chatterm/internal/attach"
	"github.com/jeranaias/chatterm/internal/backend"
	"github.com/jeranaias/chatterm/internal/dispatch"
	"github.com/jeranaias/chatterm/internal/mode"
	"github.com/jeranaias/chatterm/internal/prefs"
	"github.com/jeranaias/chatterm/internal/render"
	"github.com/jeranaias/chatterm/internal/theme"
)

type stubBackend struct {
	reply   string
	results []string
}

func (b *stubBackend) Chat(_ context.Context, _ string, _ []attach.Attachment) (*backend.ChatResponse, error) {
	return &backend.ChatResponse{Response: b.reply}, nil
}

func (b *stubBackend) Search(_ context.Context, _ string) (*backend.SearchResponse, error) {
	return &backend.SearchResponse{Results: b.results}, nil
}

func newTestModel(t *testing.T, b dispatch.Backend, pacing render.Pacing) (Model, *Surface) {
	t.Helper()
	s := NewSurface()
	m := New(Options{
		Dispatcher: dispatch.New(b, s, nil),
		Surface:    s,
		Theme:      theme.NewController(prefs.NewMemory()),
		Pacing:     pacing,
		Endpoint:   "http://127.0.0.1:5000",
	})
	t.Cleanup(m.Close)
	m = step(t, m, tea.WindowSizeMsg{Width: 100, Height: 40})
	return m, s
}

func step(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	out, ok := next.(Model)
	require.True(t, ok)
	return out
}

func stepCmd(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	out, ok := next.(Model)
	require.True(t, ok)
	return out, cmd
}

func slowPacing() render.Pacing {
	return render.Pacing{
		Base:              30 * time.Millisecond,
		PunctuationFactor: 3,
		Rand:              func() float64 { return 0 },
	}
}

func isClosed(ch chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

func TestModel_ViewAfterResize(t *testing.T) {
	m, _ := newTestModel(t, &stubBackend{}, render.Pacing{Instant: true})

	view := m.View()
	assert.Contains(t, view, "chatterm")
	assert.Contains(t, view, "CHAT")
	assert.Contains(t, view, theme.GlyphDarkMode)
}

func TestModel_TypewriterTicks(t *testing.T) {
	m, _ := newTestModel(t, &stubBackend{}, slowPacing())

	msg := render.Bot("Hey", render.Options{})
	done := make(chan struct{})
	m, cmd := stepCmd(t, m, RenderMsg{Message: msg, Done: done})
	require.NotNil(t, cmd)
	require.Len(t, m.entries, 1)
	assert.Equal(t, "H", m.entries[0].text())
	assert.False(t, isClosed(done))

	m = step(t, m, typeTickMsg{ID: msg.ID})
	assert.Equal(t, "He", m.entries[0].text())
	assert.Contains(t, m.viewport.View(), cursorGlyph)

	m = step(t, m, typeTickMsg{ID: msg.ID})
	assert.Equal(t, "Hey", m.entries[0].text())
	assert.True(t, isClosed(done))
	assert.NotContains(t, m.viewport.View(), cursorGlyph)
}

func TestModel_UserMessageShownAtOnce(t *testing.T) {
	m, _ := newTestModel(t, &stubBackend{}, slowPacing())

	done := make(chan struct{})
	m = step(t, m, RenderMsg{Message: render.User("Attached: a.txt", render.Options{IsFile: true}), Done: done})
	assert.True(t, isClosed(done))
	assert.Contains(t, m.viewport.View(), "Attached: a.txt")
}

func TestModel_ImageAnalysisNotAnimated(t *testing.T) {
	m, _ := newTestModel(t, &stubBackend{}, slowPacing())

	done := make(chan struct{})
	m = step(t, m, RenderMsg{Message: render.Bot("Color: Blue", render.Options{IsImageAnalysis: true}), Done: done})
	assert.True(t, isClosed(done))
	assert.Contains(t, m.viewport.View(), "Blue")
}

func TestModel_ToggleSearchMode(t *testing.T) {
	m, _ := newTestModel(t, &stubBackend{}, render.Pacing{Instant: true})

	m = step(t, m, tea.KeyMsg{Type: tea.KeyCtrlS})
	assert.Equal(t, mode.Search, m.dispatcher.Session().Mode.Current())
	assert.Equal(t, mode.SearchPlaceholder, m.input.Placeholder)
	assert.Contains(t, m.View(), "SEARCH")

	m = step(t, m, tea.KeyMsg{Type: tea.KeyCtrlS})
	assert.Equal(t, mode.ChatPlaceholder, m.input.Placeholder)
}

func TestModel_ToggleTheme(t *testing.T) {
	m, _ := newTestModel(t, &stubBackend{}, render.Pacing{Instant: true})
	require.False(t, m.theme.IsDark)

	m, cmd := stepCmd(t, m, tea.KeyMsg{Type: tea.KeyCtrlT})
	require.NotNil(t, cmd)
	m = step(t, m, cmd())

	assert.True(t, m.theme.IsDark)
	assert.Equal(t, theme.Dark, m.themeCtl.Current())
	assert.Contains(t, m.View(), theme.GlyphLightMode)
}

func TestModel_ClearInputKeepsNewerText(t *testing.T) {
	m, _ := newTestModel(t, &stubBackend{}, render.Pacing{Instant: true})

	m.submitted = "first"
	m.input.SetValue("second draft")
	m = step(t, m, ClearInputMsg{})
	assert.Equal(t, "second draft", m.input.Value())

	m.input.SetValue("first")
	m = step(t, m, ClearInputMsg{})
	assert.Equal(t, "", m.input.Value())
}

func TestModel_EmptySubmitIsIgnored(t *testing.T) {
	m, _ := newTestModel(t, &stubBackend{}, render.Pacing{Instant: true})

	m.input.SetValue("   ")
	m, cmd := stepCmd(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
	assert.False(t, m.busy)
}

func TestModel_BusySubmitShowsStatus(t *testing.T) {
	m, _ := newTestModel(t, &stubBackend{}, render.Pacing{Instant: true})

	m.busy = true
	m.input.SetValue("again")
	m, cmd := stepCmd(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
	assert.NotEmpty(t, m.status)
}

// runSubmit presses enter and pumps surface events into the model until the
// dispatcher returns.
func runSubmit(t *testing.T, m Model, s *Surface, text string) Model {
	t.Helper()
	m.input.SetValue(text)
	m, cmd := stepCmd(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	require.True(t, m.busy)

	result := make(chan tea.Msg, 1)
	go func() { result <- cmd() }()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-s.events:
			m = step(t, m, ev)
		case msg := <-result:
			return step(t, m, msg)
		case <-deadline:
			t.Fatal("submit did not finish")
		}
	}
}

func TestModel_SubmitChatEndToEnd(t *testing.T) {
	m, s := newTestModel(t, &stubBackend{reply: "Hi there"}, render.Pacing{Instant: true})

	m = runSubmit(t, m, s, "hello")

	entries := transcript(m)
	require.Len(t, entries, 2)
	assert.Equal(t, render.RoleUser, entries[0].Role)
	assert.Equal(t, "hello", entries[0].Text)
	assert.Equal(t, render.RoleBot, entries[1].Role)
	assert.Equal(t, "Hi there", entries[1].Text)

	assert.False(t, m.busy)
	assert.False(t, m.Typing())
	assert.Equal(t, "", m.input.Value())
	assert.True(t, strings.Contains(m.viewport.View(), "Hi there"))
}

func TestModel_SubmitSearchEndToEnd(t *testing.T) {
	m, s := newTestModel(t, &stubBackend{results: []string{"🌍 First", "📈 Second"}}, render.Pacing{Instant: true})
	m = step(t, m, tea.KeyMsg{Type: tea.KeyCtrlS})

	m = runSubmit(t, m, s, "golang")

	entries := transcript(m)
	require.Len(t, entries, 3)
	assert.Equal(t, "golang", entries[0].Text)
	assert.Equal(t, "🌍 First", entries[1].Text)
	assert.Equal(t, "📈 Second", entries[2].Text)
	for _, e := range entries {
		assert.True(t, e.Options.IsSearch)
	}
}

func TestModel_AttachPromptCancel(t *testing.T) {
	m, _ := newTestModel(t, &stubBackend{}, render.Pacing{Instant: true})

	m = step(t, m, tea.KeyMsg{Type: tea.KeyCtrlO})
	require.True(t, m.attaching)
	assert.Contains(t, m.View(), "esc to cancel")

	m = step(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.False(t, m.attaching)
}

func TestModel_Quit(t *testing.T) {
	m, s := newTestModel(t, &stubBackend{}, render.Pacing{Instant: true})

	_, cmd := stepCmd(t, m, tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())

	// The surface no longer blocks renders after quit.
	s.Render(context.Background(), render.User("late", render.Options{}))
}

func TestModel_LongStatusStaysOnOneLine(t *testing.T) {
	m, _ := newTestModel(t, &stubBackend{}, render.Pacing{Instant: true})

	m.status = strings.Repeat("connection refused ", 30)
	out := m.renderStatus()
	assert.NotContains(t, out, "\n")
	assert.Contains(t, out, "...")
}

func transcript(m Model) []render.Message {
	out := make([]render.Message, len(m.entries))
	for i, e := range m.entries {
		out[i] = e.msg
	}
	return out
}
