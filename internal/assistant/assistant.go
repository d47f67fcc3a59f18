// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package assistant is the chatbot behind the /chat and /search endpoints.
//
// Replies never fail: provider errors are turned into short, friendly
// messages and logged. Images go to the provider's vision model, other
// attachments are folded into the prompt as text.
package assistant

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/jeranaias/chatterm/internal/attach"
	"github.com/jeranaias/chatterm/internal/websearch"
)

// Canned replies.
const (
	MsgGreeting     = "Hey, what's on your mind? 🤔"
	MsgSlowDown     = "Whoa, slow down! Let me catch my breath. Try again in a sec! 😅"
	MsgQuota        = "Taking a quick break! Be back in a minute. ⏳"
	MsgNoSearchHits = "🔍 No specific results found for your query. Try rephrasing it!"
	MsgSearchFailed = "🚫 Search failed: Please try again in a moment"

	// DocumentOnlyPrompt is used when files arrive without a message.
	DocumentOnlyPrompt = "Summarize the attached file(s)."
)

// SystemPrompt sets the chat persona.
const SystemPrompt = `You are a friendly, Gen-Z style AI assistant. Keep responses concise and casual.
Use emojis naturally but don't overdo it. Be helpful while maintaining a cool vibe.`

// visionPrompt asks for "Label: description" lines, which the client
// renders as a labelled list.
const visionPrompt = `Analyze this image in detail. If there's text, extract and read it.
If there are visual elements, describe them in detail.
Answer with one finding per line in the form "Label: description", covering:
1. Any text content present
2. Visual elements and their arrangement
3. Colors, patterns, and notable features
4. Context and potential meaning`

// Searcher finds web pages for a query.
type Searcher interface {
	Search(ctx context.Context, query string) ([]websearch.Result, error)
}

// Options configures an Assistant.
type Options struct {
	// Searcher grounds search answers in live results. Nil answers from
	// the model alone.
	Searcher Searcher
	// MaxSearchResults caps the number of result lines (default 4).
	MaxSearchResults int
	// History stores per-client conversation turns. Nil disables memory.
	History *History
}

// Assistant answers chat and search requests with a Provider.
type Assistant struct {
	provider   Provider
	searcher   Searcher
	history    *History
	maxResults int
}

// New creates an assistant.
func New(p Provider, opts Options) *Assistant {
	if opts.MaxSearchResults <= 0 {
		opts.MaxSearchResults = 4
	}
	return &Assistant{
		provider:   p,
		searcher:   opts.Searcher,
		history:    opts.History,
		maxResults: opts.MaxSearchResults,
	}
}

// ProviderName names the configured model provider.
func (a *Assistant) ProviderName() string {
	return a.provider.Name()
}

// =============================================================================
// CHAT
// =============================================================================

// Reply answers prompt with the given attachments for the client
// identified by session.
func (a *Assistant) Reply(ctx context.Context, session, prompt string, files []attach.Attachment) string {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" && len(files) == 0 {
		return MsgGreeting
	}

	if len(files) > 0 && files[0].IsImage() {
		return a.analyzeImage(ctx, prompt, files[0])
	}

	text := prompt
	if len(files) > 0 {
		if text == "" {
			text = DocumentOnlyPrompt
		}
		text = documentContext(files) + text
	}

	var history []Turn
	if a.history != nil {
		history = a.history.Turns(session)
	}

	reply, err := a.provider.Generate(ctx, Prompt{System: SystemPrompt, History: history, Text: text})
	if err != nil {
		log.Printf("CHAT_PROVIDER_FAILED | provider=%s err=%v", a.provider.Name(), err)
		return FriendlyError(err)
	}

	if a.history != nil {
		a.history.Append(session, text, reply)
	}
	return reply
}

func (a *Assistant) analyzeImage(ctx context.Context, prompt string, file attach.Attachment) string {
	data, err := file.Bytes()
	if err != nil {
		log.Printf("IMAGE_DECODE_FAILED | name=%s err=%v", file.Name, err)
		return fmt.Sprintf("I had trouble processing that image. Error: %v", err)
	}

	text := visionPrompt
	if prompt != "" {
		text += "\n\nAdditional context if provided: " + prompt
	}

	reply, err := a.provider.Generate(ctx, Prompt{
		Text:   text,
		Images: []Image{{MimeType: file.MimeType, Data: data}},
	})
	if err != nil {
		log.Printf("VISION_PROVIDER_FAILED | provider=%s name=%s err=%v", a.provider.Name(), file.Name, err)
		return fmt.Sprintf("I had trouble processing that image. Error: %v", err)
	}
	return reply
}

// FriendlyError maps a provider error to the reply shown to the user.
func FriendlyError(err error) string {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "429"):
		return MsgSlowDown
	case strings.Contains(strings.ToLower(msg), "quota"):
		return MsgQuota
	default:
		return fmt.Sprintf("Oops! Something's not right. Let's try that again! 🔄 (%s)", msg)
	}
}

// =============================================================================
// SEARCH
// =============================================================================

// Search answers query with 3-4 short key points, one per result line.
// With a Searcher the points are drawn from live results; if the search
// fails or finds nothing the model answers alone.
func (a *Assistant) Search(ctx context.Context, query string) []string {
	query = strings.TrimSpace(query)

	prompt := fmt.Sprintf(`Act as a web search assistant. Provide comprehensive but concise information about: %s
Format your response as a list of 3-4 key points, each starting with an emoji.
Make sure the information is factual and relevant.`, query)

	if a.searcher != nil {
		hits, err := a.searcher.Search(ctx, query)
		switch {
		case err != nil:
			log.Printf("WEB_SEARCH_FAILED | query=%q err=%v", query, err)
		case len(hits) > 0:
			prompt += "\nBase the points on these search results and mention sources where useful:\n" +
				websearch.Digest(hits)
		}
	}

	reply, err := a.provider.Generate(ctx, Prompt{Text: prompt})
	if err != nil {
		log.Printf("SEARCH_PROVIDER_FAILED | provider=%s err=%v", a.provider.Name(), err)
		return []string{MsgSearchFailed}
	}

	results := SplitResults(reply, a.maxResults)
	if len(results) == 0 {
		return []string{MsgNoSearchHits}
	}
	return results
}

// SplitResults turns a model reply into result lines: blank lines are
// dropped, list markers stripped, and at most limit lines kept.
func SplitResults(reply string, limit int) []string {
	var out []string
	for _, line := range strings.Split(reply, "\n") {
		line = strings.TrimSpace(line)
		for _, marker := range []string{"- ", "* ", "• "} {
			if strings.HasPrefix(line, marker) {
				line = strings.TrimSpace(line[len(marker):])
				break
			}
		}
		if line == "" {
			continue
		}
		out = append(out, line)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}
