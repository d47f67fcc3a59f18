// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package websearch queries DuckDuckGo's HTML endpoint. No API key is needed.
package websearch

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/jeranaias/chatterm/internal/util"
)

// =============================================================================
// PERFORMANCE: Pre-compiled regex (compiled once at startup)
// =============================================================================

var (
	ddgTitleRegex   = regexp.MustCompile(`(?s)<a[^>]+class="result__a"[^>]+href="([^"]+)"[^>]*>(.+?)</a>`)
	ddgSnippetRegex = regexp.MustCompile(`(?s)<a[^>]+class="result__snippet"[^>]*>(.+?)</a>`)

	ddgTagRegex        = regexp.MustCompile(`<[^>]*>`)
	ddgWhitespaceRegex = regexp.MustCompile(`\s+`)
)

// DefaultBaseURL is the DuckDuckGo HTML search endpoint.
const DefaultBaseURL = "https://html.duckduckgo.com/html/"

// ErrEmptyQuery is returned for a blank query.
var ErrEmptyQuery = errors.New("query is required")

// Result represents a single search result.
type Result struct {
	Title   string
	URL     string
	Snippet string
}

// DuckDuckGo searches the web through DuckDuckGo HTML.
type DuckDuckGo struct {
	// BaseURL is the DuckDuckGo HTML search endpoint
	BaseURL string

	// MaxResults is the maximum number of results to return (default: 5, max: 10)
	MaxResults int

	// Timeout is the maximum time for the request (default: 15s)
	Timeout time.Duration

	// UserAgent is the User-Agent header to send
	UserAgent string

	client *http.Client
}

// NewDuckDuckGo returns a searcher with default settings.
func NewDuckDuckGo() *DuckDuckGo {
	d := DuckDuckGo{}.withDefaults()
	return &d
}

// withDefaults returns a copy of d with unset fields filled in. The
// receiver is never written.
func (d DuckDuckGo) withDefaults() DuckDuckGo {
	if d.BaseURL == "" {
		d.BaseURL = DefaultBaseURL
	}
	if d.MaxResults <= 0 {
		d.MaxResults = 5
	}
	if d.MaxResults > 10 {
		d.MaxResults = 10
	}
	if d.Timeout == 0 {
		d.Timeout = 15 * time.Second
	}
	if d.UserAgent == "" {
		d.UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	}
	if d.client == nil {
		d.client = &http.Client{
			Timeout: d.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return errors.New("too many redirects")
				}
				return nil
			},
		}
	}
	return d
}

// Search returns up to MaxResults results for query.
func (d *DuckDuckGo) Search(ctx context.Context, query string) ([]Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	s := d.withDefaults()

	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	searchURL := s.BaseURL + "?q=" + url.QueryEscape(query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, err
	}

	// Go's transport negotiates gzip itself; setting Accept-Encoding disables that.
	req.Header.Set("User-Agent", s.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("DNT", "1")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 5*1024*1024))
	if err != nil {
		return nil, fmt.Errorf("read search response: %w", err)
	}

	results := ParseHTML(string(body))
	if len(results) > s.MaxResults {
		results = results[:s.MaxResults]
	}
	return results, nil
}

// ParseHTML extracts search results from DuckDuckGo HTML.
//
//	<a rel="nofollow" class="result__a" href="//duckduckgo.com/l/?uddg=URL">Title</a>
//	<a class="result__snippet" href="...">Snippet text</a>
func ParseHTML(page string) []Result {
	var results []Result

	titleMatches := ddgTitleRegex.FindAllStringSubmatch(page, 30)
	snippetMatches := ddgSnippetRegex.FindAllStringSubmatch(page, 30)

	for i, match := range titleMatches {
		if len(match) < 3 {
			continue
		}

		actualURL := extractActualURL(strings.ReplaceAll(match[1], "&amp;", "&"))
		title := cleanHTML(match[2])
		if title == "" || actualURL == "" {
			continue
		}

		snippet := ""
		if i < len(snippetMatches) && len(snippetMatches[i]) >= 2 {
			snippet = cleanHTML(snippetMatches[i][1])
		}

		results = append(results, Result{
			Title:   title,
			URL:     actualURL,
			Snippet: snippet,
		})
		if len(results) >= 20 {
			break
		}
	}

	return results
}

// Digest formats results as numbered lines for an LLM prompt.
func Digest(results []Result) string {
	var b strings.Builder
	for i, r := range results {
		fmt.Fprintf(&b, "[%d] %s (%s)\n", i+1, r.Title, r.URL)
		if r.Snippet != "" {
			fmt.Fprintf(&b, "    %s\n", util.TruncateRunes(r.Snippet, 300))
		}
	}
	return b.String()
}

// extractActualURL extracts the real URL from DuckDuckGo's redirect wrapper.
func extractActualURL(ddgURL string) string {
	if strings.Contains(ddgURL, "uddg=") {
		if strings.HasPrefix(ddgURL, "//") {
			ddgURL = "https:" + ddgURL
		}
		parsed, err := url.Parse(ddgURL)
		if err != nil {
			return ""
		}
		if target := parsed.Query().Get("uddg"); target != "" {
			return target
		}
	}

	if strings.HasPrefix(ddgURL, "http://") || strings.HasPrefix(ddgURL, "https://") {
		return ddgURL
	}
	return ""
}

// cleanHTML removes tags, decodes entities and collapses whitespace.
func cleanHTML(s string) string {
	text := ddgTagRegex.ReplaceAllString(s, "")
	text = html.UnescapeString(text)
	text = ddgWhitespaceRegex.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
