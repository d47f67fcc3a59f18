// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import "github.com/jeranaias/chatterm/internal/attach"

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	Prompt string              `json:"prompt"`
	File   []attach.Attachment `json:"file"`
}

// ChatResponse is the body returned by POST /chat.
type ChatResponse struct {
	Response string `json:"response,omitempty"`
}

// SearchRequest is the body of POST /search.
type SearchRequest struct {
	Query string `json:"query"`
}

// SearchResponse is the body returned by POST /search.
type SearchResponse struct {
	Results []string `json:"results"`
	Error   string   `json:"error,omitempty"`
}

// HealthResponse is the body returned by GET /health.
type HealthResponse struct {
	Status   string `json:"status"`
	Provider string `json:"provider"`
	Version  string `json:"version"`
}
