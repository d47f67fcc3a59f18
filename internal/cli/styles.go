// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// styles.go - shared styles for command output and the plain chat.
//
// Colors are disabled for non-TTY output and when NO_COLOR is set.

package cli

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/chatterm/internal/ui/styles"
)

func init() {
	lipgloss.SetColorProfile(GetColorProfile())
}

// =============================================================================
// SHARED STYLES
// =============================================================================

var (
	// TitleStyle is used for command titles and headers
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")) // Cyan

	// LabelStyle is used for field labels
	LabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Width(14)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	WarningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	// DimStyle is used for hints and the typing line
	DimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("242"))
)

// chatStyles colour the speaker labels of the plain chat.
type chatStyles struct {
	User   lipgloss.Style
	Bot    lipgloss.Style
	Search lipgloss.Style
	File   lipgloss.Style
	Prompt lipgloss.Style
}

func newChatStyles(dark bool) chatStyles {
	label := func(c lipgloss.AdaptiveColor) lipgloss.Style {
		return lipgloss.NewStyle().Bold(true).Foreground(styles.Pick(c, dark))
	}
	return chatStyles{
		User:   label(styles.UserBubbleBorder),
		Bot:    label(styles.BotBubbleBorder),
		Search: label(styles.Amber),
		File:   label(styles.Emerald),
		Prompt: label(styles.Cyan),
	}
}

// RenderLabel renders a fixed-width field label.
func RenderLabel(label string) string {
	return LabelStyle.Render(label)
}
