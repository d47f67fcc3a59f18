// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package assistant

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"time"

	"github.com/jeranaias/chatterm/internal/gemini"
	"github.com/jeranaias/chatterm/internal/ollama"
)

// Image is decoded image data sent to a vision model.
type Image struct {
	MimeType string
	Data     []byte
}

// Turn is one earlier message in a conversation.
type Turn struct {
	FromModel bool
	Text      string
}

// Prompt is one generation request.
type Prompt struct {
	System  string
	History []Turn
	Text    string
	// Images switch the request to the provider's vision model.
	Images []Image
}

// Provider generates replies from a language model.
type Provider interface {
	Name() string
	Generate(ctx context.Context, p Prompt) (string, error)
}

// =============================================================================
// OLLAMA
// =============================================================================

// OllamaProvider generates replies with a local Ollama server.
type OllamaProvider struct {
	client      *ollama.Client
	model       string
	visionModel string
}

// NewOllamaProvider wraps client. An empty model uses the client default.
func NewOllamaProvider(client *ollama.Client, model, visionModel string) *OllamaProvider {
	if model == "" {
		model = client.DefaultModel()
	}
	if visionModel == "" {
		visionModel = model
	}
	return &OllamaProvider{client: client, model: model, visionModel: visionModel}
}

// Name implements Provider.
func (p *OllamaProvider) Name() string { return "ollama" }

// Generate implements Provider.
func (p *OllamaProvider) Generate(ctx context.Context, pr Prompt) (string, error) {
	messages := make([]ollama.Message, 0, len(pr.History)+2)
	if pr.System != "" {
		messages = append(messages, ollama.NewSystemMessage(pr.System))
	}
	for _, t := range pr.History {
		role := "user"
		if t.FromModel {
			role = "assistant"
		}
		messages = append(messages, ollama.Message{Role: role, Content: t.Text})
	}

	model := p.model
	if len(pr.Images) > 0 {
		model = p.visionModel
		images := make([]string, len(pr.Images))
		for i, img := range pr.Images {
			images[i] = base64.StdEncoding.EncodeToString(img.Data)
		}
		messages = append(messages, ollama.NewImageMessage(pr.Text, images...))
	} else {
		messages = append(messages, ollama.NewUserMessage(pr.Text))
	}

	resp, err := p.client.Chat(ctx, model, messages)
	if err != nil {
		switch {
		case ollama.IsModelNotFound(err):
			log.Printf("OLLAMA_MODEL_NOT_FOUND | model=%s", model)
		case ollama.IsNotRunning(err):
			log.Printf("OLLAMA_NOT_RUNNING | model=%s error=%v", model, err)
		case ollama.IsTimeout(err):
			log.Printf("OLLAMA_TIMEOUT | model=%s error=%v", model, err)
		default:
			log.Printf("OLLAMA_CHAT_ERROR | model=%s error=%v", model, err)
		}
		return "", fmt.Errorf("ollama chat (%s): %w", model, err)
	}
	log.Printf("OLLAMA_CHAT | model=%s tokens=%d tok_per_sec=%.1f total=%s",
		model, resp.EvalCount, resp.TokensPerSecond(), resp.TotalTime().Round(time.Millisecond))
	return resp.Message.Content, nil
}

// =============================================================================
// GEMINI
// =============================================================================

// GeminiProvider generates replies with Google Gemini.
type GeminiProvider struct {
	client *gemini.Client
}

// NewGeminiProvider wraps client.
func NewGeminiProvider(client *gemini.Client) *GeminiProvider {
	return &GeminiProvider{client: client}
}

// Name implements Provider.
func (p *GeminiProvider) Name() string { return "gemini" }

// Generate implements Provider.
func (p *GeminiProvider) Generate(ctx context.Context, pr Prompt) (string, error) {
	req := gemini.Request{System: pr.System, Prompt: pr.Text}
	for _, t := range pr.History {
		req.History = append(req.History, gemini.Turn{FromModel: t.FromModel, Text: t.Text})
	}
	for _, img := range pr.Images {
		req.Images = append(req.Images, gemini.Image{MimeType: img.MimeType, Data: img.Data})
	}
	return p.client.Generate(ctx, req)
}
