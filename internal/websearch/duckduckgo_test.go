// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package websearch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePage = `
<div class="result results_links web-result">
  <h2 class="result__title">
    <a rel="nofollow" class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fgo.dev%2F&amp;rut=abc">The <b>Go</b> Programming Language</a>
  </h2>
  <a class="result__snippet" href="//duckduckgo.com/l/?uddg=x">Go is an open source   programming language &amp; toolchain.</a>
</div>
<div class="result results_links web-result">
  <h2 class="result__title">
    <a rel="nofollow" class="result__a" href="https://pkg.go.dev/">Go Packages</a>
  </h2>
  <a class="result__snippet" href="https://pkg.go.dev/">Discover packages.</a>
</div>
<div class="result">
  <a rel="nofollow" class="result__a" href="/relative">Dropped</a>
</div>
`

func TestParseHTML(t *testing.T) {
	results := ParseHTML(samplePage)
	require.Len(t, results, 2)

	assert.Equal(t, Result{
		Title:   "The Go Programming Language",
		URL:     "https://go.dev/",
		Snippet: "Go is an open source programming language & toolchain.",
	}, results[0])
	assert.Equal(t, "https://pkg.go.dev/", results[1].URL)
	assert.Equal(t, "Discover packages.", results[1].Snippet)
}

func TestParseHTML_NoResults(t *testing.T) {
	assert.Empty(t, ParseHTML("<html><body>No results.</body></html>"))
}

func TestSearch(t *testing.T) {
	var gotQuery, gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		gotUA = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte(samplePage))
	}))
	defer srv.Close()

	d := &DuckDuckGo{BaseURL: srv.URL + "/", MaxResults: 1}
	results, err := d.Search(context.Background(), "  golang tips ")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "golang tips", gotQuery)
	assert.NotEmpty(t, gotUA)
}

func TestSearch_ConcurrentLeavesSettingsUntouched(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(samplePage))
	}))
	defer srv.Close()

	d := &DuckDuckGo{BaseURL: srv.URL, MaxResults: 20}

	var wg sync.WaitGroup
	errs := make([]error, 8)
	counts := make([]int, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results, err := d.Search(context.Background(), "go")
			errs[i] = err
			counts[i] = len(results)
		}(i)
	}
	wg.Wait()

	for i := range errs {
		require.NoError(t, errs[i])
		assert.Equal(t, 2, counts[i])
	}
	assert.Equal(t, 20, d.MaxResults)
	assert.Nil(t, d.client)
}

func TestNewDuckDuckGo_Defaults(t *testing.T) {
	d := NewDuckDuckGo()
	assert.Equal(t, DefaultBaseURL, d.BaseURL)
	assert.Equal(t, 5, d.MaxResults)
	assert.NotNil(t, d.client)
}

func TestSearch_EmptyQuery(t *testing.T) {
	_, err := NewDuckDuckGo().Search(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestSearch_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	d := &DuckDuckGo{BaseURL: srv.URL}
	_, err := d.Search(context.Background(), "x")
	assert.Error(t, err)
}

func TestDigest(t *testing.T) {
	out := Digest([]Result{{Title: "A", URL: "https://a", Snippet: "alpha"}, {Title: "B", URL: "https://b"}})
	assert.Equal(t, "[1] A (https://a)\n    alpha\n[2] B (https://b)\n", out)
}
