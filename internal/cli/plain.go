// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/jeranaias/chatterm/internal/render"
	"github.com/jeranaias/chatterm/internal/util"
)

// PlainSurface writes the transcript to a stream, one message per block.
// Bot replies are typed out character by character. It implements
// dispatch.Surface for the REPL and the one-shot commands.
type PlainSurface struct {
	mu        sync.Mutex
	out       io.Writer
	pacing    render.Pacing
	scheduler render.Scheduler
	graphics  render.Graphics
	styles    chatStyles
	width     int
	// interactive enables the transient typing line.
	interactive bool
	// echoUser prints user text messages. File confirmations always print.
	echoUser bool
	typing   bool
}

// PlainOptions configures a PlainSurface.
type PlainOptions struct {
	Pacing      render.Pacing
	Scheduler   render.Scheduler
	Graphics    render.Graphics
	Dark        bool
	Width       int
	Interactive bool
	EchoUser    bool
}

// NewPlainSurface creates a surface writing to out.
func NewPlainSurface(out io.Writer, opts PlainOptions) *PlainSurface {
	if opts.Scheduler == nil {
		opts.Scheduler = render.RealTime{}
	}
	if opts.Width <= 0 {
		opts.Width = DefaultTerminalWidth
	}
	return &PlainSurface{
		out:         out,
		pacing:      opts.Pacing,
		scheduler:   opts.Scheduler,
		graphics:    opts.Graphics,
		styles:      newChatStyles(opts.Dark),
		width:       opts.Width,
		interactive: opts.Interactive,
		echoUser:    opts.EchoUser,
	}
}

// SetDark switches the label colours.
func (s *PlainSurface) SetDark(dark bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.styles = newChatStyles(dark)
}

// Render implements dispatch.Surface. It returns once the message is
// fully written.
func (s *PlainSurface) Render(ctx context.Context, m render.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m.Role == render.RoleUser && !s.echoUser && !m.Options.IsFile {
		return
	}
	s.hideTyping()

	fmt.Fprint(s.out, s.label(m)+" ")

	if m.Image != nil {
		s.writeImage(*m.Image)
	}

	if !m.Animated() {
		fmt.Fprintln(s.out, s.indent(util.WrapWidth(m.DisplayText(), s.textWidth())))
		return
	}

	// Frames only ever extend the visible text, so each one writes the
	// new suffix.
	written := 0
	tw := render.NewTypewriter(util.WrapWidth(m.Text, s.textWidth()), s.pacing)
	done := render.Play(ctx, tw, s.scheduler, func(visible string) {
		if len(visible) > written {
			fmt.Fprint(s.out, s.indent(visible[written:]))
			written = len(visible)
		}
	})
	select {
	case <-done:
	case <-ctx.Done():
		<-done
	}
	fmt.Fprintln(s.out)
}

// SetTyping implements dispatch.Surface.
func (s *PlainSurface) SetTyping(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.interactive {
		return
	}
	if on && !s.typing {
		fmt.Fprint(s.out, DimStyle.Render("Bot is typing..."))
		s.typing = true
		return
	}
	if !on {
		s.hideTyping()
	}
}

// ClearInput implements dispatch.Surface. The REPL has already consumed
// the line, so there is nothing to clear.
func (s *PlainSurface) ClearInput() {}

// hideTyping erases the typing line. Caller holds mu.
func (s *PlainSurface) hideTyping() {
	if s.typing {
		fmt.Fprint(s.out, clearLine)
		s.typing = false
	}
}

func (s *PlainSurface) label(m render.Message) string {
	switch {
	case m.Role == render.RoleUser && m.Options.IsFile:
		return s.styles.File.Render("you ›")
	case m.Role == render.RoleUser:
		return s.styles.User.Render("you ›")
	case m.Options.IsSearch:
		return s.styles.Search.Render("🔍 ›")
	default:
		return s.styles.Bot.Render("bot ›")
	}
}

func (s *PlainSurface) writeImage(info render.ImageInfo) {
	if s.graphics != render.GraphicsNone {
		fmt.Fprintln(s.out)
		if err := render.WriteInline(s.out, info, s.graphics); err == nil {
			fmt.Fprintln(s.out)
			fmt.Fprint(s.out, "      ")
			return
		}
	}
	fmt.Fprint(s.out, DimStyle.Render(info.Summary())+"\n      ")
}

// textWidth leaves room for the "bot › " label.
func (s *PlainSurface) textWidth() int {
	return max(20, s.width-6)
}

// indent aligns continuation lines under the message text.
func (s *PlainSurface) indent(text string) string {
	return strings.ReplaceAll(text, "\n", "\n      ")
}
