// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/chatterm/internal/mode"
	"github.com/jeranaias/chatterm/internal/render"
	"github.com/jeranaias/chatterm/internal/util"
)

const cursorGlyph = "▌"

// View renders the chat screen.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(m.renderTyping())
	b.WriteString("\n")
	b.WriteString(m.renderInput())
	b.WriteString("\n")
	b.WriteString(m.renderStatus())
	return b.String()
}

// =============================================================================
// CHROME
// =============================================================================

func (m Model) renderHeader() string {
	brand := m.theme.HeaderBrand.Render("chatterm")
	hint := m.theme.HeaderHint.Render(m.endpoint)
	glyph := m.themeCtl.Glyph()

	gap := m.width - lipgloss.Width(brand) - lipgloss.Width(hint) - lipgloss.Width(glyph) - 4
	if gap < 1 {
		gap = 1
	}
	line := brand + " " + hint + strings.Repeat(" ", gap) + glyph
	return m.theme.Header.Width(m.width).Render(line)
}

func (m Model) renderTyping() string {
	if !m.typing {
		return ""
	}
	return m.theme.Typing.Render("Bot is typing " + m.spinner.View())
}

func (m Model) renderInput() string {
	border := m.theme.InputBorder
	if m.dispatcher.Session().Mode.Active() {
		border = m.theme.InputBorderSearch
	}
	border = border.Width(max(10, m.width-2))

	if m.attaching {
		return border.Render(m.theme.PromptPath.Render(m.pathInput.View()) + "\n" +
			m.theme.Muted.Render("enter to attach, esc to cancel"))
	}
	return border.Render(m.input.View())
}

func (m Model) renderStatus() string {
	session := m.dispatcher.Session()

	var parts []string
	if session.Mode.Current() == mode.Search {
		parts = append(parts, m.theme.ModeSearch.Render("SEARCH"))
	} else {
		parts = append(parts, m.theme.ModeChat.Render("CHAT"))
	}
	if badge := session.Attachments.Badge(); badge != "" {
		parts = append(parts, m.theme.AttachBadge.Render("📎 "+badge))
	}
	if m.status != "" {
		parts = append(parts, m.theme.Error.Render(util.TruncateWidth(m.status, max(10, m.width/2))))
	}

	var hints []string
	for _, k := range m.keys.ShortHelp() {
		h := k.Help()
		hints = append(hints, h.Key+" "+h.Desc)
	}
	left := strings.Join(parts, " ")
	right := m.theme.KeyHint.Render(strings.Join(hints, " · "))

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if gap < 1 {
		return m.theme.StatusBar.Width(m.width).Render(left)
	}
	return m.theme.StatusBar.Width(m.width).Render(left + strings.Repeat(" ", gap) + right)
}

// =============================================================================
// TRANSCRIPT
// =============================================================================

// bubbleWidth is the widest a message bubble may be.
func (m Model) bubbleWidth() int {
	w := m.width * 3 / 4
	if w < 20 {
		w = 20
	}
	return w
}

func (m Model) renderTranscript() string {
	if len(m.entries) == 0 {
		return m.theme.Muted.Render("Say hello, attach a file with ctrl+o, or press ctrl+s to search the web.")
	}
	blocks := make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		blocks = append(blocks, m.renderEntry(e))
	}
	return strings.Join(blocks, "\n\n")
}

func (m Model) renderEntry(e *entry) string {
	msg := e.msg
	inner := m.bubbleWidth() - 6

	var body string
	switch {
	case len(msg.Sections) > 0:
		body = m.renderAnalysis(msg.Sections)
	default:
		body = util.WrapWidth(e.text(), inner)
		if e.animating() {
			body += m.theme.Cursor.Render(cursorGlyph)
		}
	}
	if msg.Image != nil {
		body = m.theme.ImageBlock.Render("🖼 "+msg.Image.Summary()) + "\n" + body
	}

	var bubble string
	switch {
	case msg.Options.IsFile:
		bubble = m.theme.FileBubble.Render(body)
	case msg.Options.IsSearch && msg.Role == render.RoleBot:
		bubble = m.theme.SearchBubble.Render(body)
	case len(msg.Sections) > 0:
		bubble = m.theme.AnalysisBubble.Render(body)
	case msg.Role == render.RoleUser:
		bubble = m.theme.UserBubble.Render(body)
	default:
		bubble = m.theme.BotBubble.Render(body)
	}

	label := "Bot"
	pos := lipgloss.Left
	if msg.Role == render.RoleUser {
		label = "You"
		pos = lipgloss.Right
	}
	block := lipgloss.JoinVertical(pos, m.theme.RoleLabel.Render(label), bubble)
	return lipgloss.PlaceHorizontal(m.width, pos, block)
}

func (m Model) renderAnalysis(sections []render.Section) string {
	md := render.Markdown(sections)
	if m.markdown == nil {
		return render.AnalysisText(sections)
	}
	out, err := m.markdown.Render(md)
	if err != nil {
		return render.AnalysisText(sections)
	}
	return strings.Trim(out, "\n")
}
