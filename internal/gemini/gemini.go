// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package gemini wraps the Google Gemini API for one-shot text and image
// prompts.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// ErrMissingAPIKey is returned when no API key is configured.
var ErrMissingAPIKey = errors.New("gemini: API key is required (set GEMINI_API_KEY)")

// Config holds the Gemini settings.
type Config struct {
	APIKey      string
	Model       string
	VisionModel string
	// BaseURL overrides the API endpoint. Empty uses the public API.
	BaseURL string
}

// Image is inline image data sent with a prompt.
type Image struct {
	MimeType string
	Data     []byte
}

// Client generates content with Gemini models.
type Client struct {
	client      *genai.Client
	model       string
	visionModel string
}

// NewClient creates a Gemini client.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-1.5-flash"
	}
	if cfg.VisionModel == "" {
		cfg.VisionModel = cfg.Model
	}

	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &Client{client: client, model: cfg.Model, visionModel: cfg.VisionModel}, nil
}

// Model returns the text model name.
func (c *Client) Model() string {
	return c.model
}

// Turn is one earlier exchange in the conversation.
type Turn struct {
	// FromModel marks a model reply; otherwise the turn is the user's.
	FromModel bool
	Text      string
}

// Request is one generation call.
type Request struct {
	System  string
	History []Turn
	Prompt  string
	Images  []Image
}

// Generate sends the request and returns the reply text. Requests with
// images go to the vision model.
func (c *Client) Generate(ctx context.Context, req Request) (string, error) {
	contents := make([]*genai.Content, 0, len(req.History)+1)
	for _, t := range req.History {
		if t.FromModel {
			contents = append(contents, genai.NewContentFromText(t.Text, genai.RoleModel))
		} else {
			contents = append(contents, genai.NewContentFromText(t.Text, genai.RoleUser))
		}
	}

	parts := make([]*genai.Part, 0, len(req.Images)+1)
	for _, img := range req.Images {
		parts = append(parts, &genai.Part{
			InlineData: &genai.Blob{MIMEType: img.MimeType, Data: img.Data},
		})
	}
	parts = append(parts, &genai.Part{Text: req.Prompt})
	contents = append(contents, &genai.Content{Role: genai.RoleUser, Parts: parts})

	var config *genai.GenerateContentConfig
	if req.System != "" {
		config = &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(req.System, genai.RoleUser),
		}
	}

	model := c.model
	if len(req.Images) > 0 {
		model = c.visionModel
	}

	resp, err := c.client.Models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return "", fmt.Errorf("gemini API error: %w", err)
	}
	return resp.Text(), nil
}
