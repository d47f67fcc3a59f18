// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jeranaias/chatterm/internal/attach"
	"github.com/jeranaias/chatterm/internal/backend"
)

// fakeAssistant records what the handlers pass through.
type fakeAssistant struct {
	mu       sync.Mutex
	reply    string
	results  []string
	sessions []string
	prompts  []string
	files    [][]attach.Attachment
	queries  []string
	panicky  bool
}

func (f *fakeAssistant) Reply(_ context.Context, session, prompt string, files []attach.Attachment) string {
	if f.panicky {
		panic("provider exploded")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions = append(f.sessions, session)
	f.prompts = append(f.prompts, prompt)
	f.files = append(f.files, files)
	return f.reply
}

func (f *fakeAssistant) Search(_ context.Context, query string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	return f.results
}

func (f *fakeAssistant) ProviderName() string { return "fake" }

func newTestServer(a *fakeAssistant) *Server {
	return New(Config{Version: "test", Logger: log.New(io.Discard, "", 0)}, a)
}

func post(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// =============================================================================
// CHAT TESTS
// =============================================================================

func TestChat_Reply(t *testing.T) {
	a := &fakeAssistant{reply: "yo 👋"}
	s := newTestServer(a)

	rec := post(t, s.Handler(), "/chat", `{"prompt":"hi"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp backend.ChatResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Response != "yo 👋" {
		t.Errorf("Response = %q", resp.Response)
	}
	if a.prompts[0] != "hi" {
		t.Errorf("prompt = %q", a.prompts[0])
	}
	if a.sessions[0] != "192.0.2.1" {
		t.Errorf("session = %q, want client IP", a.sessions[0])
	}
	if got := s.stats.ChatRequests.Load(); got != 1 {
		t.Errorf("ChatRequests = %d, want 1", got)
	}
}

func TestChat_FileAsSingleObject(t *testing.T) {
	a := &fakeAssistant{reply: "ok"}
	s := newTestServer(a)

	rec := post(t, s.Handler(), "/chat",
		`{"prompt":"","file":{"name":"a.txt","type":"text/plain","data":"aGk="}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(a.files[0]) != 1 || a.files[0][0].Name != "a.txt" || a.files[0][0].MimeType != "text/plain" {
		t.Errorf("files = %+v", a.files[0])
	}
}

func TestChat_FileAsList(t *testing.T) {
	a := &fakeAssistant{reply: "ok"}
	s := newTestServer(a)

	rec := post(t, s.Handler(), "/chat",
		`{"prompt":"x","file":[{"name":"a.png","type":"image/png","data":"AA=="},{"name":"b.txt","type":"text/plain","data":"AA=="}]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(a.files[0]) != 2 || a.files[0][1].Name != "b.txt" {
		t.Errorf("files = %+v", a.files[0])
	}
}

func TestChat_NullFile(t *testing.T) {
	a := &fakeAssistant{reply: "ok"}
	s := newTestServer(a)

	post(t, s.Handler(), "/chat", `{"prompt":"x","file":null}`)
	if len(a.files) != 1 || a.files[0] != nil {
		t.Errorf("files = %+v, want nil", a.files)
	}
}

func TestChat_BadJSON(t *testing.T) {
	s := newTestServer(&fakeAssistant{})

	rec := post(t, s.Handler(), "/chat", `{not json`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var resp backend.ChatResponse
	_ = json.NewDecoder(rec.Body).Decode(&resp)
	if resp.Response != MsgChatFailed {
		t.Errorf("Response = %q", resp.Response)
	}
}

func TestChat_RateLimited(t *testing.T) {
	s := newTestServer(&fakeAssistant{reply: "ok"})
	h := s.Handler()

	if rec := post(t, h, "/chat", `{"prompt":"one"}`); rec.Code != http.StatusOK {
		t.Fatalf("first status = %d", rec.Code)
	}

	rec := post(t, h, "/chat", `{"prompt":"two"}`)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second status = %d, want 429", rec.Code)
	}
	var resp backend.ChatResponse
	_ = json.NewDecoder(rec.Body).Decode(&resp)
	if resp.Response != MsgRateLimited {
		t.Errorf("Response = %q", resp.Response)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("Retry-After header missing")
	}
	if got := s.stats.RateLimited.Load(); got != 1 {
		t.Errorf("RateLimited = %d, want 1", got)
	}
}

func TestChat_RateLimitIsPerIP(t *testing.T) {
	s := newTestServer(&fakeAssistant{reply: "ok"})
	h := s.Handler()

	for _, addr := range []string{"203.0.113.1:1000", "203.0.113.2:1000"} {
		req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"prompt":"hi"}`))
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("%s: status = %d", addr, rec.Code)
		}
	}
}

func TestChat_PanicRecovered(t *testing.T) {
	s := newTestServer(&fakeAssistant{panicky: true})

	rec := post(t, s.Handler(), "/chat", `{"prompt":"hi"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Something went wrong") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

// =============================================================================
// SEARCH TESTS
// =============================================================================

func TestSearch_Results(t *testing.T) {
	a := &fakeAssistant{results: []string{"🌍 one", "📦 two"}}
	s := newTestServer(a)

	rec := post(t, s.Handler(), "/search", `{"query":"  golang "}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp backend.SearchResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Results) != 2 || resp.Results[0] != "🌍 one" {
		t.Errorf("Results = %v", resp.Results)
	}
	if a.queries[0] != "golang" {
		t.Errorf("query = %q, want trimmed", a.queries[0])
	}
}

func TestSearch_EmptyQuery(t *testing.T) {
	a := &fakeAssistant{}
	s := newTestServer(a)

	rec := post(t, s.Handler(), "/search", `{"query":"   "}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var resp backend.SearchResponse
	_ = json.NewDecoder(rec.Body).Decode(&resp)
	if resp.Error != MsgNoSearchQuery {
		t.Errorf("Error = %q", resp.Error)
	}
	if len(a.queries) != 0 {
		t.Error("assistant should not be asked")
	}
}

func TestSearch_NotRateLimited(t *testing.T) {
	s := newTestServer(&fakeAssistant{results: []string{"x"}})
	for i := 0; i < 3; i++ {
		if rec := post(t, s.Handler(), "/search", `{"query":"q"}`); rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d", i, rec.Code)
		}
	}
}

// =============================================================================
// MIDDLEWARE TESTS
// =============================================================================

func TestCORS_Preflight(t *testing.T) {
	s := newTestServer(&fakeAssistant{})

	req := httptest.NewRequest(http.MethodOptions, "/chat", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got == "" {
		t.Error("Access-Control-Allow-Origin missing")
	}
}

func TestCORS_RestrictedOrigins(t *testing.T) {
	s := New(Config{CORSOrigins: []string{"https://app.example"}, Logger: log.New(io.Discard, "", 0)}, &fakeAssistant{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Access-Control-Allow-Origin = %q, want empty", got)
	}
}

func TestRequestID(t *testing.T) {
	s := newTestServer(&fakeAssistant{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Header().Get("X-Request-Id") == "" {
		t.Error("X-Request-Id missing")
	}

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-Id", "abc-123")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-Id"); got != "abc-123" {
		t.Errorf("X-Request-Id = %q, want abc-123", got)
	}
}

func TestSecurityHeaders(t *testing.T) {
	s := newTestServer(&fakeAssistant{})
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("X-Content-Type-Options missing")
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name   string
		remote string
		xff    string
		want   string
	}{
		{"direct", "203.0.113.9:555", "", "203.0.113.9"},
		{"untrusted proxy ignored", "203.0.113.9:555", "1.2.3.4", "203.0.113.9"},
		{"trusted proxy", "127.0.0.1:555", "1.2.3.4, 10.0.0.1", "1.2.3.4"},
		{"trusted proxy bad header", "127.0.0.1:555", "garbage", "127.0.0.1"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tc.remote
			if tc.xff != "" {
				req.Header.Set("X-Forwarded-For", tc.xff)
			}
			if got := GetClientIP(req); got != tc.want {
				t.Errorf("GetClientIP() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestRateLimiter_Refills(t *testing.T) {
	rl := NewRateLimiter(30, 1)
	now := time.Unix(1_700_000_000, 0)
	rl.now = func() time.Time { return now }

	if !rl.Allow("a") {
		t.Fatal("first request should pass")
	}
	if rl.Allow("a") {
		t.Fatal("second request should be limited")
	}
	if wait := rl.RetryAfter("a"); wait <= 0 || wait > 2*time.Second {
		t.Errorf("RetryAfter = %v, want (0, 2s]", wait)
	}

	now = now.Add(2 * time.Second)
	if !rl.Allow("a") {
		t.Error("request after interval should pass")
	}
}

func TestRateLimiter_SweepsIdleVisitors(t *testing.T) {
	rl := NewRateLimiter(30, 1)
	now := time.Unix(1_700_000_000, 0)
	rl.now = func() time.Time { return now }

	rl.Allow("a")
	rl.Allow("b")
	if rl.Visitors() != 2 {
		t.Fatalf("Visitors = %d, want 2", rl.Visitors())
	}

	now = now.Add(time.Hour)
	rl.Allow("c")
	if rl.Visitors() != 1 {
		t.Errorf("Visitors = %d, want 1 after sweep", rl.Visitors())
	}
}

// =============================================================================
// HEALTH, STATS AND LIFECYCLE
// =============================================================================

func TestHealth(t *testing.T) {
	s := newTestServer(&fakeAssistant{})
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	var resp backend.HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "ok" || resp.Provider != "fake" || resp.Version != "test" {
		t.Errorf("health = %+v", resp)
	}
}

func TestStats(t *testing.T) {
	s := newTestServer(&fakeAssistant{reply: "ok", results: []string{"x"}})
	post(t, s.Handler(), "/chat", `{"prompt":"a"}`)
	post(t, s.Handler(), "/search", `{"query":"b"}`)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))

	var resp StatsResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.ChatRequests != 1 || resp.SearchRequests != 1 || resp.TrackedClients != 1 {
		t.Errorf("stats = %+v", resp)
	}
}

func TestNotFoundAndMethod(t *testing.T) {
	s := newTestServer(&fakeAssistant{})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/chat", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestServeAndShutdown(t *testing.T) {
	s := newTestServer(&fakeAssistant{reply: "live"})
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() { done <- s.Serve(ln) }()

	var resp *http.Response
	deadline := time.Now().Add(2 * time.Second)
	for {
		resp, err = http.Post("http://"+ln.Addr().String()+"/chat", "application/json",
			bytes.NewBufferString(`{"prompt":"hi"}`))
		if err == nil || time.Now().After(deadline) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
	if err := <-done; err != nil {
		t.Errorf("Serve returned %v", err)
	}
}
