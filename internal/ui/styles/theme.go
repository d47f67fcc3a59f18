// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package styles provides the visual styling system for the chatterm TUI.
package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme holds all the styled components for one colour scheme.
type Theme struct {
	IsDark       bool
	HasTrueColor bool
	ColorProfile termenv.Profile

	// ==========================================================================
	// HEADER
	// ==========================================================================

	Header      lipgloss.Style
	HeaderBrand lipgloss.Style
	HeaderHint  lipgloss.Style

	// ==========================================================================
	// MESSAGES
	// ==========================================================================

	UserBubble     lipgloss.Style
	BotBubble      lipgloss.Style
	FileBubble     lipgloss.Style
	SearchBubble   lipgloss.Style
	AnalysisBubble lipgloss.Style
	ImageBlock     lipgloss.Style
	RoleLabel      lipgloss.Style
	Cursor         lipgloss.Style

	// ==========================================================================
	// INPUT AREA
	// ==========================================================================

	InputBorder       lipgloss.Style
	InputBorderSearch lipgloss.Style
	Placeholder       lipgloss.Style
	PromptPath        lipgloss.Style
	Typing            lipgloss.Style

	// ==========================================================================
	// STATUS BAR
	// ==========================================================================

	StatusBar   lipgloss.Style
	ModeChat    lipgloss.Style
	ModeSearch  lipgloss.Style
	AttachBadge lipgloss.Style
	KeyHint     lipgloss.Style
	Error       lipgloss.Style
	Muted       lipgloss.Style
}

// NewTheme builds the light or dark theme for the current terminal.
func NewTheme(dark bool) *Theme {
	profile := termenv.ColorProfile()
	t := &Theme{
		IsDark:       dark,
		HasTrueColor: profile == termenv.TrueColor,
		ColorProfile: profile,
	}
	t.initStyles()
	return t
}

// GlamourStyle is the glamour standard style matching the theme.
func (t *Theme) GlamourStyle() string {
	if t.IsDark {
		return "dark"
	}
	return "light"
}

func (t *Theme) c(a lipgloss.AdaptiveColor) lipgloss.Color {
	return Pick(a, t.IsDark)
}

func (t *Theme) initStyles() {
	t.Header = lipgloss.NewStyle().
		Background(t.c(SurfaceDim)).
		Foreground(t.c(TextPrimary)).
		Padding(0, 1)

	t.HeaderBrand = lipgloss.NewStyle().
		Bold(true).
		Foreground(t.c(Cyan))

	t.HeaderHint = lipgloss.NewStyle().
		Foreground(t.c(TextSecondary)).
		Italic(true)

	t.UserBubble = lipgloss.NewStyle().
		Foreground(t.c(UserBubbleFg)).
		Background(t.c(UserBubbleBg)).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(t.c(UserBubbleBorder)).
		Padding(0, 2)

	t.BotBubble = lipgloss.NewStyle().
		Foreground(t.c(BotBubbleFg)).
		Background(t.c(BotBubbleBg)).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(t.c(BotBubbleBorder)).
		Padding(0, 2)

	t.FileBubble = lipgloss.NewStyle().
		Foreground(t.c(FileBubbleFg)).
		Background(t.c(FileBubbleBg)).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(t.c(Emerald)).
		Padding(0, 2)

	t.SearchBubble = lipgloss.NewStyle().
		Foreground(t.c(SearchBubbleFg)).
		Background(t.c(SearchBubbleBg)).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(t.c(Amber)).
		BorderLeft(true).
		PaddingLeft(2).
		PaddingRight(1)

	t.AnalysisBubble = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(t.c(Purple)).
		Padding(0, 1)

	t.ImageBlock = lipgloss.NewStyle().
		Foreground(t.c(TextSecondary)).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(t.c(Overlay)).
		Padding(0, 1)

	t.RoleLabel = lipgloss.NewStyle().
		Foreground(t.c(TextMuted)).
		Bold(true)

	t.Cursor = lipgloss.NewStyle().
		Foreground(t.c(Purple))

	t.InputBorder = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(t.c(Overlay)).
		Padding(0, 1)

	t.InputBorderSearch = t.InputBorder.
		BorderForeground(t.c(Amber))

	t.Placeholder = lipgloss.NewStyle().
		Foreground(t.c(TextMuted)).
		Italic(true)

	t.PromptPath = lipgloss.NewStyle().
		Foreground(t.c(Emerald)).
		Bold(true)

	t.Typing = lipgloss.NewStyle().
		Foreground(t.c(Purple)).
		Italic(true)

	t.StatusBar = lipgloss.NewStyle().
		Background(t.c(SurfaceDim)).
		Foreground(t.c(TextSecondary)).
		Padding(0, 1)

	t.ModeChat = lipgloss.NewStyle().
		Foreground(t.c(Cyan)).
		Bold(true)

	t.ModeSearch = lipgloss.NewStyle().
		Foreground(t.c(Surface)).
		Background(t.c(Amber)).
		Bold(true).
		Padding(0, 1)

	t.AttachBadge = lipgloss.NewStyle().
		Foreground(t.c(Surface)).
		Background(t.c(Emerald)).
		Bold(true).
		Padding(0, 1)

	t.KeyHint = lipgloss.NewStyle().
		Foreground(t.c(TextMuted))

	t.Error = lipgloss.NewStyle().
		Foreground(t.c(Rose))

	t.Muted = lipgloss.NewStyle().
		Foreground(t.c(TextMuted))
}
