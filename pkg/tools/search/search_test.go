package search

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDuckDuckGo_Search(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "golang", r.URL.Query().Get("q"))
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"Abstract": "Go is a programming language.",
			"Answer": "",
			"RelatedTopics": [
				{"Text": "Go spec", "FirstURL": "https://go.dev/ref/spec"},
				{"Name": "Tools", "Topics": [{"Text": "gofmt", "FirstURL": "https://go.dev/gofmt"}]},
				{"Text": "Go tour", "FirstURL": "https://go.dev/tour"}
			]
		}`))
	}))
	defer srv.Close()

	p := NewDuckDuckGo(srv.URL, srv.Client())
	resp, err := p.Search(context.Background(), "golang", 2)
	require.NoError(t, err)
	require.Equal(t, "Go is a programming language.", resp.Summary)
	require.Len(t, resp.Results, 2)
	require.Equal(t, "Go spec", resp.Results[0].Snippet)
	require.Equal(t, "gofmt", resp.Results[1].Snippet)

	out := Format("golang", resp)
	require.Contains(t, out, "Summary: Go is a programming language.")
	require.Contains(t, out, "Related information:")
	require.Contains(t, out, "- Go spec (https://go.dev/ref/spec)")
	require.NotContains(t, out, "Direct answer")
}

func TestDuckDuckGo_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewDuckDuckGo(srv.URL, srv.Client()).Search(context.Background(), "q", 5)
	require.Error(t, err)
	require.Contains(t, err.Error(), "HTTP 429")
}

func TestSearXNG_Search(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		_, _ = w.Write([]byte(`{
			"answers": ["42"],
			"results": [
				{"title": "A", "url": "https://a.example", "content": "first"},
				{"title": "B", "url": "https://b.example", "content": ""}
			]
		}`))
	}))
	defer srv.Close()

	p := NewSearXNG(srv.URL+"/", srv.Client())
	resp, err := p.Search(context.Background(), "meaning", 5)
	require.NoError(t, err)
	require.Equal(t, "42", resp.Answer)
	require.Len(t, resp.Results, 2)

	out := Format("meaning", resp)
	require.Contains(t, out, "- first (https://a.example)")
	require.Contains(t, out, "- B (https://b.example)")
	require.Contains(t, out, "Direct answer: 42")
}

func TestSearXNG_AnswerObjects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"answers": [{"answer": "", "url": null}, {"answer": "1 EUR = 1.08 USD", "url": "https://ecb.example"}],
			"results": [{"title": "Rates", "url": "https://rates.example", "content": "daily rates"}]
		}`))
	}))
	defer srv.Close()

	resp, err := NewSearXNG(srv.URL, srv.Client()).Search(context.Background(), "eur to usd", 5)
	require.NoError(t, err)
	require.Equal(t, "1 EUR = 1.08 USD", resp.Answer)
	require.Len(t, resp.Results, 1)
}

func TestFormat_Empty(t *testing.T) {
	require.Equal(t,
		"No specific results found for 'nothing'. Consider refining your search.",
		Format("nothing", Response{}))
}

func TestNew(t *testing.T) {
	p, err := New("", "", time.Second)
	require.NoError(t, err)
	require.Equal(t, "duckduckgo", p.Name())

	_, err = New("searxng", "", time.Second)
	require.Error(t, err)

	p, err = New("searxng", "http://localhost:8888", time.Second)
	require.NoError(t, err)
	require.Equal(t, "searxng", p.Name())

	_, err = New("altavista", "", time.Second)
	require.Error(t, err)
}
