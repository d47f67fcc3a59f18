// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server provides the chat backend HTTP API.
//
// Endpoints:
//   - POST /chat   - chat reply, optionally about attached files
//   - POST /search - web search summarised as short result lines
//   - GET  /health - health check
//   - GET  /stats  - request counters
//
// CORS is open by default and /chat is rate limited per client IP.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jeranaias/chatterm/internal/attach"
	"github.com/jeranaias/chatterm/internal/backend"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// DefaultPort is the default port for the HTTP server.
	DefaultPort = 5000

	// MaxRequestBodySize bounds request bodies. Attachments are base64, so
	// this leaves room for a few files at the attachment size limit.
	MaxRequestBodySize = 64 << 20
)

// Fixed response texts.
const (
	MsgRateLimited   = "Hold up! You're sending messages too fast. Take a breather! 😅"
	MsgChatFailed    = "Oops! Something went wrong. Let's try again! 🔄"
	MsgNoSearchQuery = "No search query provided"
)

// Assistant produces the replies served by the API.
type Assistant interface {
	Reply(ctx context.Context, session, prompt string, files []attach.Attachment) string
	Search(ctx context.Context, query string) []string
	ProviderName() string
}

// ============================================================================
// STATS
// ============================================================================

// ServerStats tracks request counts since start.
type ServerStats struct {
	ChatRequests   atomic.Int64
	SearchRequests atomic.Int64
	RateLimited    atomic.Int64
	StartTime      time.Time
}

// NewServerStats creates a new stats tracker.
func NewServerStats() *ServerStats {
	return &ServerStats{StartTime: time.Now()}
}

// Uptime returns how long the server has been running.
func (s *ServerStats) Uptime() time.Duration {
	return time.Since(s.StartTime)
}

// StatsResponse is the body returned by GET /stats.
type StatsResponse struct {
	ChatRequests   int64  `json:"chat_requests"`
	SearchRequests int64  `json:"search_requests"`
	RateLimited    int64  `json:"rate_limited"`
	TrackedClients int    `json:"tracked_clients"`
	Uptime         string `json:"uptime"`
}

// ============================================================================
// SERVER
// ============================================================================

// Config configures a Server.
type Config struct {
	// Addr is the listen address (default 127.0.0.1:5000).
	Addr string
	// RateLimitPerMinute caps /chat requests per client IP (default 30).
	RateLimitPerMinute int
	// CORSOrigins lists allowed origins (default "*").
	CORSOrigins []string
	// Version is reported by /health.
	Version string
	// Logger receives request logs (default log.Default()).
	Logger *log.Logger
}

// Server is the chat backend HTTP server.
type Server struct {
	cfg       Config
	assistant Assistant
	router    chi.Router
	server    *http.Server
	limiter   *RateLimiter
	stats     *ServerStats
}

// New creates a server backed by a.
func New(cfg Config, a Assistant) *Server {
	if cfg.Addr == "" {
		cfg.Addr = fmt.Sprintf("127.0.0.1:%d", DefaultPort)
	}
	if cfg.RateLimitPerMinute <= 0 {
		cfg.RateLimitPerMinute = 30
	}
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = []string{"*"}
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}

	s := &Server{
		cfg:       cfg,
		assistant: a,
		limiter:   NewRateLimiter(cfg.RateLimitPerMinute, 1),
		stats:     NewServerStats(),
	}
	s.setupRoutes()
	s.server = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      180 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Handler returns the HTTP handler with all middleware applied.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ============================================================================
// ROUTES
// ============================================================================

func (s *Server) setupRoutes() {
	cors := DefaultCORSConfig()
	cors.AllowedOrigins = s.cfg.CORSOrigins

	r := chi.NewRouter()
	r.Use(Chain(
		RecoveryMiddleware(),
		RequestIDMiddleware(),
		LoggingMiddleware(s.cfg.Logger),
		SecurityHeadersMiddleware(),
		CORSMiddleware(cors),
	))

	limited := RateLimitMiddleware(s.limiter,
		backend.ChatResponse{Response: MsgRateLimited},
		func() { s.stats.RateLimited.Add(1) })

	r.With(limited).Post("/chat", s.handleChat)
	r.Post("/search", s.handleSearch)
	r.Get("/health", s.handleHealth)
	r.Get("/stats", s.handleStats)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	})

	s.router = r
}

// ============================================================================
// CHAT
// ============================================================================

// chatPayload accepts "file" as a list or a single object.
type chatPayload struct {
	Prompt string          `json:"prompt"`
	File   json.RawMessage `json:"file"`
}

func (p chatPayload) files() ([]attach.Attachment, error) {
	raw := bytes.TrimSpace(p.File)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	if raw[0] == '{' {
		var one attach.Attachment
		if err := json.Unmarshal(raw, &one); err != nil {
			return nil, err
		}
		return []attach.Attachment{one}, nil
	}
	var many []attach.Attachment
	if err := json.Unmarshal(raw, &many); err != nil {
		return nil, err
	}
	return many, nil
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	s.stats.ChatRequests.Add(1)

	var req chatPayload
	if err := decodeBody(w, r, &req); err != nil {
		log.Printf("CHAT_BAD_REQUEST | id=%s err=%v", RequestID(r.Context()), err)
		writeJSON(w, http.StatusBadRequest, backend.ChatResponse{Response: MsgChatFailed})
		return
	}
	files, err := req.files()
	if err != nil {
		log.Printf("CHAT_BAD_FILE | id=%s err=%v", RequestID(r.Context()), err)
		writeJSON(w, http.StatusBadRequest, backend.ChatResponse{Response: MsgChatFailed})
		return
	}

	log.Printf("CHAT_REQUEST | id=%s prompt_len=%d files=%d", RequestID(r.Context()), len(req.Prompt), len(files))
	reply := s.assistant.Reply(r.Context(), GetClientIP(r), req.Prompt, files)
	writeJSON(w, http.StatusOK, backend.ChatResponse{Response: reply})
}

// ============================================================================
// SEARCH
// ============================================================================

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	s.stats.SearchRequests.Add(1)

	var req backend.SearchRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, backend.SearchResponse{Error: err.Error()})
		return
	}

	query := strings.TrimSpace(req.Query)
	if query == "" {
		log.Printf("SEARCH_EMPTY_QUERY | id=%s", RequestID(r.Context()))
		writeJSON(w, http.StatusBadRequest, backend.SearchResponse{Error: MsgNoSearchQuery})
		return
	}

	results := s.assistant.Search(r.Context(), query)
	log.Printf("SEARCH_RESULTS | id=%s query=%q count=%d", RequestID(r.Context()), query, len(results))
	writeJSON(w, http.StatusOK, backend.SearchResponse{Results: results})
}

// ============================================================================
// HEALTH AND STATS
// ============================================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, backend.HealthResponse{
		Status:   "ok",
		Provider: s.assistant.ProviderName(),
		Version:  s.cfg.Version,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatsResponse{
		ChatRequests:   s.stats.ChatRequests.Load(),
		SearchRequests: s.stats.SearchRequests.Load(),
		RateLimited:    s.stats.RateLimited.Load(),
		TrackedClients: s.limiter.Visitors(),
		Uptime:         s.stats.Uptime().Round(time.Second).String(),
	})
}

// ============================================================================
// SERVER LIFECYCLE
// ============================================================================

// ListenAndServe starts the HTTP server on the configured address.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Shutdown. It returns nil after a
// graceful shutdown.
func (s *Server) Serve(ln net.Listener) error {
	log.Printf("SERVER_START | addr=%s provider=%s version=%s", ln.Addr(), s.assistant.ProviderName(), s.cfg.Version)
	if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Printf("SERVER_SHUTDOWN | chat=%d search=%d rate_limited=%d",
		s.stats.ChatRequests.Load(), s.stats.SearchRequests.Load(), s.stats.RateLimited.Load())
	return s.server.Shutdown(ctx)
}

// ============================================================================
// HELPERS
// ============================================================================

// decodeBody decodes a JSON request body of bounded size.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("empty request body")
		}
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}
