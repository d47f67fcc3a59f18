// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import "strings"

// Section is one line of an image analysis: "Label: description".
// Lines without a colon have an empty Label.
type Section struct {
	Label string
	Desc  string
}

// FormatImageAnalysis splits analysis text into sections. Blank lines are
// dropped; lines containing a colon are split at the first colon.
func FormatImageAnalysis(content string) []Section {
	var sections []Section
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		label, desc, ok := strings.Cut(line, ":")
		if !ok {
			sections = append(sections, Section{Desc: line})
			continue
		}
		sections = append(sections, Section{
			Label: strings.TrimSpace(label),
			Desc:  strings.TrimSpace(desc),
		})
	}
	return sections
}

// Markdown renders sections as markdown with bold labels, one per line.
func Markdown(sections []Section) string {
	lines := make([]string, 0, len(sections))
	for _, s := range sections {
		if s.Label == "" {
			lines = append(lines, s.Desc)
			continue
		}
		lines = append(lines, "**"+s.Label+":** "+s.Desc)
	}
	// Two trailing spaces force a hard line break in markdown.
	return strings.Join(lines, "  \n")
}

// AnalysisText renders sections as plain "Label: desc" lines.
func AnalysisText(sections []Section) string {
	lines := make([]string, 0, len(sections))
	for _, s := range sections {
		if s.Label == "" {
			lines = append(lines, s.Desc)
			continue
		}
		lines = append(lines, s.Label+": "+s.Desc)
	}
	return strings.Join(lines, "\n")
}
