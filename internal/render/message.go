// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package render builds the transcript entries shown by chat surfaces.
//
// A Message is a pure description: who said it, what it says and how it
// should be presented. Surfaces (the TUI and the plain REPL) decide how to
// draw it. Bot replies are revealed with a Typewriter unless they carry
// structured image-analysis content.
package render

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser Role = "user"
	RoleBot  Role = "bot"
)

// FileIcon prefixes user messages that describe an attached file.
const FileIcon = "📎"

// Options tag a message for presentation.
type Options struct {
	IsFile          bool
	IsSearch        bool
	IsImageAnalysis bool
	// Image is a data: URL shown above the text.
	Image string
}

// Message is one transcript entry. It is never mutated after it is shown.
type Message struct {
	ID        string
	Role      Role
	Text      string
	Options   Options
	CreatedAt time.Time

	// Sections is set for image-analysis replies.
	Sections []Section
	// Image is the decoded image block, when Options.Image parsed.
	Image *ImageInfo
}

// User builds a user message.
func User(text string, opts Options) Message {
	return newMessage(RoleUser, text, opts)
}

// Bot builds a bot message.
func Bot(text string, opts Options) Message {
	m := newMessage(RoleBot, text, opts)
	if opts.IsImageAnalysis {
		m.Sections = FormatImageAnalysis(text)
	}
	return m
}

func newMessage(role Role, text string, opts Options) Message {
	m := Message{
		ID:        uuid.NewString(),
		Role:      role,
		Text:      text,
		Options:   opts,
		CreatedAt: time.Now(),
	}
	if opts.Image != "" {
		if info, err := ParseDataURL(opts.Image); err == nil {
			m.Image = &info
		}
	}
	return m
}

// Animated reports whether the message is revealed with a typewriter.
func (m Message) Animated() bool {
	return m.Role == RoleBot && !m.Options.IsImageAnalysis
}

// DisplayText is the text a surface shows once any animation has finished.
func (m Message) DisplayText() string {
	switch {
	case m.Role == RoleUser && m.Options.IsFile:
		return FileIcon + " " + m.Text
	case m.Role == RoleBot && m.Options.IsImageAnalysis:
		return AnalysisText(m.Sections)
	default:
		return m.Text
	}
}
