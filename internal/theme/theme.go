// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package theme tracks the light/dark preference and persists it.
package theme

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/jeranaias/chatterm/internal/prefs"
)

// Key is the preference key holding "dark" or "light".
const Key = "theme"

// Theme is the colour scheme.
type Theme string

const (
	Light Theme = "light"
	Dark  Theme = "dark"
)

// Toggle glyphs: the icon shows the theme a toggle would switch to.
const (
	GlyphLightMode = "☀"
	GlyphDarkMode  = "☾"
)

// Parse maps a stored value to a Theme. Anything but "dark" is light.
func Parse(s string) Theme {
	if strings.EqualFold(strings.TrimSpace(s), string(Dark)) {
		return Dark
	}
	return Light
}

// Controller holds the active theme. It starts in light mode.
type Controller struct {
	store prefs.Store

	mu      sync.RWMutex
	current Theme
}

// NewController creates a controller backed by store.
func NewController(store prefs.Store) *Controller {
	return &Controller{store: store, current: Light}
}

// Initialize loads the saved preference. A missing or unreadable value
// leaves the light theme in place.
func (c *Controller) Initialize(ctx context.Context) error {
	v, ok, err := c.store.Get(ctx, Key)
	if err != nil {
		return fmt.Errorf("load theme: %w", err)
	}
	if ok {
		c.mu.Lock()
		c.current = Parse(v)
		c.mu.Unlock()
	}
	return nil
}

// Toggle flips the theme and saves it. The new theme stays active even if
// saving fails.
func (c *Controller) Toggle(ctx context.Context) (Theme, error) {
	c.mu.Lock()
	if c.current == Dark {
		c.current = Light
	} else {
		c.current = Dark
	}
	next := c.current
	c.mu.Unlock()

	if err := c.store.Set(ctx, Key, string(next)); err != nil {
		return next, fmt.Errorf("save theme: %w", err)
	}
	return next, nil
}

// Set applies and saves t.
func (c *Controller) Set(ctx context.Context, t Theme) error {
	c.mu.Lock()
	c.current = t
	c.mu.Unlock()
	if err := c.store.Set(ctx, Key, string(t)); err != nil {
		return fmt.Errorf("save theme: %w", err)
	}
	return nil
}

// Current returns the active theme.
func (c *Controller) Current() Theme {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// IsDark reports whether the dark theme is active.
func (c *Controller) IsDark() bool {
	return c.Current() == Dark
}

// Glyph is the toggle icon: a sun while dark, a moon while light.
func (c *Controller) Glyph() string {
	if c.IsDark() {
		return GlyphLightMode
	}
	return GlyphDarkMode
}
