// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package mode tracks whether submitted input is a chat message or a web search.
package mode

import "sync"

// Mode is the input mode.
type Mode int

const (
	// Chat sends input to the chat endpoint.
	Chat Mode = iota
	// Search sends input to the search endpoint.
	Search
)

// Placeholder texts shown in the empty input field.
const (
	ChatPlaceholder   = "Type your message..."
	SearchPlaceholder = "🔍 Search the web..."
)

// String returns the mode name.
func (m Mode) String() string {
	if m == Search {
		return "search"
	}
	return "chat"
}

// Placeholder returns the input hint for the mode.
func (m Mode) Placeholder() string {
	if m == Search {
		return SearchPlaceholder
	}
	return ChatPlaceholder
}

// Controller holds the current mode. The zero value is in chat mode.
type Controller struct {
	mu   sync.RWMutex
	mode Mode
}

// NewController returns a controller in chat mode.
func NewController() *Controller {
	return &Controller{}
}

// Toggle flips between chat and search and returns the new mode.
func (c *Controller) Toggle() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mode == Search {
		c.mode = Chat
	} else {
		c.mode = Search
	}
	return c.mode
}

// Current returns the active mode.
func (c *Controller) Current() Mode {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mode
}

// Active reports whether search mode is on (drives the mode indicator).
func (c *Controller) Active() bool {
	return c.Current() == Search
}

// Placeholder returns the input hint for the active mode.
func (c *Controller) Placeholder() string {
	return c.Current().Placeholder()
}
