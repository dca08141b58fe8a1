package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// SearXNG implements the Provider interface for a SearXNG instance.
type SearXNG struct {
	baseURL    string
	httpClient *http.Client
}

// NewSearXNG creates a SearXNG provider. The baseURL should be the root
// URL of the SearXNG instance (e.g., "http://localhost:8080").
func NewSearXNG(baseURL string, client *http.Client) *SearXNG {
	return &SearXNG{baseURL: strings.TrimRight(baseURL, "/"), httpClient: client}
}

func (s *SearXNG) Name() string { return "searxng" }

type searxngResponse struct {
	// Older instances send plain strings, newer ones {"answer": ..., "url": ...}.
	Answers []json.RawMessage `json:"answers"`
	Results []searxngResult   `json:"results"`
}

type searxngResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

func (s *SearXNG) Search(ctx context.Context, query string, maxResults int) (Response, error) {
	params := url.Values{
		"q":      {query},
		"format": {"json"},
	}
	reqURL := fmt.Sprintf("%s/search?%s", s.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return Response{}, fmt.Errorf("searxng: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("searxng: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Response{}, fmt.Errorf("searxng: HTTP %d: %s", resp.StatusCode, readErrorBody(resp.Body, 512))
	}

	var sr searxngResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return Response{}, fmt.Errorf("searxng: decode response: %w", err)
	}

	var out Response
	for _, raw := range sr.Answers {
		if a := answerText(raw); a != "" {
			out.Answer = a
			break
		}
	}
	for _, r := range sr.Results {
		if maxResults > 0 && len(out.Results) >= maxResults {
			break
		}
		out.Results = append(out.Results, Result{Title: r.Title, URL: r.URL, Snippet: r.Content})
	}
	return out, nil
}

func answerText(raw json.RawMessage) string {
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text
	}
	var obj struct {
		Answer string `json:"answer"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.Answer
	}
	return ""
}
