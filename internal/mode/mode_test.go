// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package mode

import "testing"

func TestController_DefaultsToChat(t *testing.T) {
	c := NewController()
	if c.Current() != Chat {
		t.Errorf("expected chat mode, got %s", c.Current())
	}
	if c.Active() {
		t.Error("search indicator should be off")
	}
	if c.Placeholder() != "Type your message..." {
		t.Errorf("unexpected placeholder %q", c.Placeholder())
	}
}

func TestController_Toggle(t *testing.T) {
	c := NewController()

	if got := c.Toggle(); got != Search {
		t.Fatalf("first toggle: got %s, want search", got)
	}
	if !c.Active() {
		t.Error("search indicator should be on")
	}
	if c.Placeholder() != "🔍 Search the web..." {
		t.Errorf("unexpected placeholder %q", c.Placeholder())
	}

	if got := c.Toggle(); got != Chat {
		t.Fatalf("second toggle: got %s, want chat", got)
	}
	if c.Active() {
		t.Error("search indicator should be off after toggling back")
	}
}

func TestController_ToggleIsInvolution(t *testing.T) {
	c := NewController()
	for i := 0; i < 10; i++ {
		before := c.Current()
		c.Toggle()
		c.Toggle()
		if c.Current() != before {
			t.Fatalf("iteration %d: toggle twice changed mode from %s to %s", i, before, c.Current())
		}
		c.Toggle()
	}
}

func TestMode_String(t *testing.T) {
	if Chat.String() != "chat" || Search.String() != "search" {
		t.Errorf("unexpected names %q %q", Chat, Search)
	}
}
