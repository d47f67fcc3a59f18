// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"time"

	"github.com/jeranaias/chatterm/internal/render"
	"github.com/jeranaias/chatterm/internal/theme"
)

// =============================================================================
// SURFACE EVENTS
// =============================================================================

// RenderMsg asks the model to append a message. Done is closed once the
// message is fully shown.
type RenderMsg struct {
	Message render.Message
	Done    chan struct{}
}

// TypingMsg shows or hides the typing indicator.
type TypingMsg struct {
	On bool
}

// ClearInputMsg empties the input field.
type ClearInputMsg struct{}

// =============================================================================
// INTERNAL MESSAGES
// =============================================================================

// typeTickMsg advances the typewriter of message ID.
type typeTickMsg struct {
	ID   string
	Time time.Time
}

// dispatchDoneMsg reports the end of a submit.
type dispatchDoneMsg struct {
	Err error
}

// attachDoneMsg reports the end of an attach.
type attachDoneMsg struct {
	Name string
	Err  error
}

// themeChangedMsg reports a theme toggle.
type themeChangedMsg struct {
	Theme theme.Theme
	Err   error
}
