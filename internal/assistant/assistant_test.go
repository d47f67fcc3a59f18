// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package assistant

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/chatterm/internal/attach"
	"github.com/jeranaias/chatterm/internal/websearch"
)

type fakeProvider struct {
	mu      sync.Mutex
	reply   string
	err     error
	prompts []Prompt
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Generate(_ context.Context, p Prompt) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, p)
	return f.reply, f.err
}

func (f *fakeProvider) last(t *testing.T) Prompt {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.prompts)
	return f.prompts[len(f.prompts)-1]
}

type fakeSearcher struct {
	results []websearch.Result
	err     error
}

func (f *fakeSearcher) Search(context.Context, string) ([]websearch.Result, error) {
	return f.results, f.err
}

func file(name, mime, content string) attach.Attachment {
	return attach.Attachment{Name: name, MimeType: mime, Data: base64.StdEncoding.EncodeToString([]byte(content))}
}

// =============================================================================
// CHAT
// =============================================================================

func TestReply_EmptyPromptGreets(t *testing.T) {
	p := &fakeProvider{reply: "unused"}
	a := New(p, Options{})

	assert.Equal(t, MsgGreeting, a.Reply(context.Background(), "ip", "   ", nil))
	assert.Empty(t, p.prompts)
}

func TestReply_Text(t *testing.T) {
	p := &fakeProvider{reply: "yo! 👋"}
	a := New(p, Options{})

	assert.Equal(t, "yo! 👋", a.Reply(context.Background(), "ip", " hi ", nil))
	got := p.last(t)
	assert.Equal(t, "hi", got.Text)
	assert.Equal(t, SystemPrompt, got.System)
	assert.Empty(t, got.Images)
}

func TestReply_ImageFirstUsesVision(t *testing.T) {
	p := &fakeProvider{reply: "Color: Blue"}
	a := New(p, Options{})

	files := []attach.Attachment{file("cat.png", "image/png", "PNGDATA"), file("notes.txt", "text/plain", "ignored")}
	assert.Equal(t, "Color: Blue", a.Reply(context.Background(), "ip", "what breed?", files))

	got := p.last(t)
	require.Len(t, got.Images, 1)
	assert.Equal(t, "image/png", got.Images[0].MimeType)
	assert.Equal(t, []byte("PNGDATA"), got.Images[0].Data)
	assert.Contains(t, got.Text, "Label: description")
	assert.Contains(t, got.Text, "what breed?")
	assert.NotContains(t, got.Text, "ignored")
}

func TestReply_ImageNotFirstIsDocumentContext(t *testing.T) {
	p := &fakeProvider{reply: "ok"}
	a := New(p, Options{})

	files := []attach.Attachment{file("notes.txt", "text/plain", "meeting at noon"), file("cat.png", "image/png", "PNG")}
	a.Reply(context.Background(), "ip", "", files)

	got := p.last(t)
	assert.Empty(t, got.Images)
	assert.Contains(t, got.Text, "meeting at noon")
	assert.Contains(t, got.Text, `"cat.png"`)
	assert.True(t, strings.HasSuffix(got.Text, DocumentOnlyPrompt))
}

func TestReply_BadImageData(t *testing.T) {
	p := &fakeProvider{reply: "unused"}
	a := New(p, Options{})

	bad := attach.Attachment{Name: "x.png", MimeType: "image/png", Data: "%%%"}
	out := a.Reply(context.Background(), "ip", "", []attach.Attachment{bad})
	assert.True(t, strings.HasPrefix(out, "I had trouble processing that image."))
	assert.Empty(t, p.prompts)
}

func TestReply_ProviderErrorsAreFriendly(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{errors.New("gemini API error: Error 429, RESOURCE_EXHAUSTED"), MsgSlowDown},
		{errors.New("you exceeded your current Quota"), MsgQuota},
		{errors.New("boom"), "Oops! Something's not right. Let's try that again! 🔄 (boom)"},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			a := New(&fakeProvider{err: tt.err}, Options{})
			assert.Equal(t, tt.want, a.Reply(context.Background(), "ip", "hi", nil))
		})
	}
}

func TestReply_RemembersHistoryPerSession(t *testing.T) {
	p := &fakeProvider{reply: "first answer"}
	a := New(p, Options{History: NewHistory(10, 10)})

	a.Reply(context.Background(), "alice", "one", nil)
	a.Reply(context.Background(), "alice", "two", nil)
	got := p.last(t)
	require.Len(t, got.History, 2)
	assert.Equal(t, Turn{Text: "one"}, got.History[0])
	assert.Equal(t, Turn{FromModel: true, Text: "first answer"}, got.History[1])

	a.Reply(context.Background(), "bob", "hello", nil)
	assert.Empty(t, p.last(t).History)
}

func TestReply_FailedTurnNotRemembered(t *testing.T) {
	h := NewHistory(10, 10)
	a := New(&fakeProvider{err: errors.New("down")}, Options{History: h})
	a.Reply(context.Background(), "alice", "one", nil)
	assert.Empty(t, h.Turns("alice"))
}

// =============================================================================
// SEARCH
// =============================================================================

func TestSearch_SplitsLines(t *testing.T) {
	p := &fakeProvider{reply: "🌍 Go is fast\n\n- 📦 Great tooling\n  ⚡ Goroutines\n🧪 Testing built in\n🎉 Extra"}
	a := New(p, Options{MaxSearchResults: 4})

	out := a.Search(context.Background(), "golang")
	assert.Equal(t, []string{"🌍 Go is fast", "📦 Great tooling", "⚡ Goroutines", "🧪 Testing built in"}, out)
	assert.Contains(t, p.last(t).Text, "golang")
}

func TestSearch_UsesWebResults(t *testing.T) {
	p := &fakeProvider{reply: "🌍 point"}
	s := &fakeSearcher{results: []websearch.Result{{Title: "Go", URL: "https://go.dev", Snippet: "The Go site"}}}
	a := New(p, Options{Searcher: s})

	a.Search(context.Background(), "golang")
	assert.Contains(t, p.last(t).Text, "https://go.dev")
}

func TestSearch_WebFailureFallsBackToModel(t *testing.T) {
	p := &fakeProvider{reply: "🌍 point"}
	a := New(p, Options{Searcher: &fakeSearcher{err: errors.New("offline")}})

	assert.Equal(t, []string{"🌍 point"}, a.Search(context.Background(), "golang"))
	assert.NotContains(t, p.last(t).Text, "search results")
}

func TestSearch_EmptyReply(t *testing.T) {
	a := New(&fakeProvider{reply: "\n  \n"}, Options{})
	assert.Equal(t, []string{MsgNoSearchHits}, a.Search(context.Background(), "x"))
}

func TestSearch_ProviderError(t *testing.T) {
	a := New(&fakeProvider{err: errors.New("down")}, Options{})
	assert.Equal(t, []string{MsgSearchFailed}, a.Search(context.Background(), "x"))
}

// =============================================================================
// DOCUMENTS AND HISTORY
// =============================================================================

func TestExtractText(t *testing.T) {
	text, err := ExtractText(file("a.json", "application/json", `{"a":1}`))
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, text)

	text, err = ExtractText(file("README", "application/octet-stream", "plain words"))
	require.NoError(t, err)
	assert.Equal(t, "plain words", text)

	_, err = ExtractText(file("blob.bin", "application/octet-stream", "\x00\x01\x02"))
	assert.Error(t, err)

	_, err = ExtractText(file("broken.pdf", "application/pdf", "not a pdf"))
	assert.Error(t, err)
}

func TestHistory_Bounds(t *testing.T) {
	h := NewHistory(4, 2)
	for i := 0; i < 5; i++ {
		h.Append("a", "q", "r")
	}
	assert.Len(t, h.Turns("a"), 4)

	h.Append("b", "q", "r")
	h.Append("c", "q", "r")
	assert.Equal(t, 2, h.Len())
	assert.Empty(t, h.Turns("a"), "oldest session is evicted")
}
