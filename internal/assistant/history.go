// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package assistant

import (
	"sync"
	"time"
)

// History keeps the recent turns of each conversation, keyed by client.
type History struct {
	mu          sync.Mutex
	maxTurns    int
	maxSessions int
	sessions    map[string]*conversation
}

type conversation struct {
	turns    []Turn
	lastUsed time.Time
}

// NewHistory keeps up to maxTurns turns for at most maxSessions clients.
func NewHistory(maxTurns, maxSessions int) *History {
	if maxTurns <= 0 {
		maxTurns = 10
	}
	if maxSessions <= 0 {
		maxSessions = 1000
	}
	return &History{
		maxTurns:    maxTurns,
		maxSessions: maxSessions,
		sessions:    make(map[string]*conversation),
	}
}

// Turns returns a copy of the stored turns for key.
func (h *History) Turns(key string) []Turn {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.sessions[key]
	if !ok {
		return nil
	}
	return append([]Turn(nil), c.turns...)
}

// Append records one exchange for key, dropping the oldest turns past the limit.
func (h *History) Append(key, user, reply string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.sessions[key]
	if !ok {
		if len(h.sessions) >= h.maxSessions {
			h.evictOldest()
		}
		c = &conversation{}
		h.sessions[key] = c
	}
	c.turns = append(c.turns, Turn{Text: user}, Turn{FromModel: true, Text: reply})
	if over := len(c.turns) - h.maxTurns; over > 0 {
		c.turns = append([]Turn(nil), c.turns[over:]...)
	}
	c.lastUsed = time.Now()
}

// Len returns the number of tracked conversations.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

func (h *History) evictOldest() {
	var oldestKey string
	var oldest time.Time
	for k, c := range h.sessions {
		if oldestKey == "" || c.lastUsed.Before(oldest) {
			oldestKey, oldest = k, c.lastUsed
		}
	}
	delete(h.sessions, oldestKey)
}
