// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/chatterm/internal/ollama"
)

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })
	return &buf
}

func TestOllamaProvider_GenerateLogsSpeed(t *testing.T) {
	var got ollama.ChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chat", r.URL.Path)
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(ollama.ChatResponse{
			Message:       ollama.Message{Role: "assistant", Content: "Hi there!"},
			Done:          true,
			EvalCount:     50,
			EvalDuration:  2_000_000_000,
			TotalDuration: 2_500_000_000,
		})
	}))
	defer srv.Close()

	buf := captureLog(t)
	client := ollama.NewClientWithConfig(&ollama.ClientConfig{BaseURL: srv.URL, DefaultModel: "llama3.2"})
	p := NewOllamaProvider(client, "", "llava")

	reply, err := p.Generate(context.Background(), Prompt{System: "be nice", Text: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "Hi there!", reply)

	assert.Equal(t, "llama3.2", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)

	assert.Contains(t, buf.String(), "OLLAMA_CHAT | model=llama3.2 tokens=50 tok_per_sec=25.0 total=2.5s")
}

func TestOllamaProvider_ImagesUseVisionModel(t *testing.T) {
	var got ollama.ChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(ollama.ChatResponse{Message: ollama.Message{Content: "Subject: a cat"}})
	}))
	defer srv.Close()

	captureLog(t)
	client := ollama.NewClientWithConfig(&ollama.ClientConfig{BaseURL: srv.URL})
	p := NewOllamaProvider(client, "llama3.2", "llava")

	_, err := p.Generate(context.Background(), Prompt{Text: "what is it?", Images: []Image{{MimeType: "image/png", Data: []byte("png")}}})
	require.NoError(t, err)
	assert.Equal(t, "llava", got.Model)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, []string{"cG5n"}, got.Messages[0].Images)
}

func TestOllamaProvider_GenerateLogsFailureKind(t *testing.T) {
	missing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer missing.Close()

	stalled := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer stalled.Close()

	down := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	downURL := down.URL
	down.Close()

	tests := []struct {
		name    string
		baseURL string
		timeout time.Duration
		want    string
		check   func(error) bool
	}{
		{"model missing", missing.URL, 0, "OLLAMA_MODEL_NOT_FOUND | model=llama3.2", ollama.IsModelNotFound},
		{"server down", downURL, 0, "OLLAMA_NOT_RUNNING | model=llama3.2", ollama.IsNotRunning},
		{"request timeout", stalled.URL, 50 * time.Millisecond, "OLLAMA_TIMEOUT | model=llama3.2", ollama.IsTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := captureLog(t)
			client := ollama.NewClientWithConfig(&ollama.ClientConfig{BaseURL: tt.baseURL, DefaultModel: "llama3.2"})
			p := NewOllamaProvider(client, "", "")

			ctx := context.Background()
			if tt.timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, tt.timeout)
				defer cancel()
			}

			_, err := p.Generate(ctx, Prompt{Text: "hello"})
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected error kind: %v", err)
			assert.Contains(t, buf.String(), tt.want)
		})
	}
}
