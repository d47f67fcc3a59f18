// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/chatterm/internal/render"
)

// Surface forwards dispatcher output into the Bubble Tea event loop.
// It implements dispatch.Surface.
type Surface struct {
	events    chan tea.Msg
	closed    chan struct{}
	closeOnce sync.Once
}

// NewSurface creates a surface. Pass it to both the dispatcher and New.
func NewSurface() *Surface {
	return &Surface{
		events: make(chan tea.Msg, 16),
		closed: make(chan struct{}),
	}
}

// Render implements dispatch.Surface. It blocks until the model has shown
// the whole message.
func (s *Surface) Render(ctx context.Context, m render.Message) {
	done := make(chan struct{})
	if !s.send(ctx, RenderMsg{Message: m, Done: done}) {
		return
	}
	select {
	case <-done:
	case <-ctx.Done():
	case <-s.closed:
	}
}

// SetTyping implements dispatch.Surface.
func (s *Surface) SetTyping(on bool) {
	s.send(context.Background(), TypingMsg{On: on})
}

// ClearInput implements dispatch.Surface.
func (s *Surface) ClearInput() {
	s.send(context.Background(), ClearInputMsg{})
}

// Close releases any dispatcher goroutine blocked on the surface.
func (s *Surface) Close() {
	s.closeOnce.Do(func() { close(s.closed) })
}

func (s *Surface) send(ctx context.Context, msg tea.Msg) bool {
	select {
	case s.events <- msg:
		return true
	case <-ctx.Done():
	case <-s.closed:
	}
	return false
}

// listen waits for the next surface event.
func (s *Surface) listen() tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-s.events:
			return msg
		case <-s.closed:
			return nil
		}
	}
}
