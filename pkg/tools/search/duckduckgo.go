package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// DuckDuckGoURL is the instant answer API endpoint.
const DuckDuckGoURL = "https://api.duckduckgo.com/"

// DuckDuckGo queries the keyless instant answer API.
type DuckDuckGo struct {
	endpoint   string
	httpClient *http.Client
}

// NewDuckDuckGo creates a provider against endpoint.
func NewDuckDuckGo(endpoint string, client *http.Client) *DuckDuckGo {
	return &DuckDuckGo{endpoint: endpoint, httpClient: client}
}

func (d *DuckDuckGo) Name() string { return "duckduckgo" }

type ddgResponse struct {
	Abstract      string     `json:"Abstract"`
	Answer        string     `json:"Answer"`
	RelatedTopics []ddgTopic `json:"RelatedTopics"`
}

// Grouped topics carry a Name and nested Topics instead of Text.
type ddgTopic struct {
	Text     string     `json:"Text"`
	FirstURL string     `json:"FirstURL"`
	Topics   []ddgTopic `json:"Topics"`
}

func (d *DuckDuckGo) Search(ctx context.Context, query string, maxResults int) (Response, error) {
	params := url.Values{
		"q":             {query},
		"format":        {"json"},
		"no_html":       {"1"},
		"skip_disambig": {"1"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return Response{}, fmt.Errorf("duckduckgo: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("duckduckgo: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Response{}, fmt.Errorf("duckduckgo: HTTP %d: %s", resp.StatusCode, readErrorBody(resp.Body, 512))
	}

	var dr ddgResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return Response{}, fmt.Errorf("duckduckgo: decode response: %w", err)
	}

	out := Response{Summary: dr.Abstract, Answer: dr.Answer}
	for _, t := range flattenTopics(dr.RelatedTopics) {
		if maxResults > 0 && len(out.Results) >= maxResults {
			break
		}
		out.Results = append(out.Results, Result{Snippet: t.Text, URL: t.FirstURL})
	}
	return out, nil
}

func flattenTopics(topics []ddgTopic) []ddgTopic {
	var out []ddgTopic
	for _, t := range topics {
		if t.Text != "" {
			out = append(out, t)
		}
		out = append(out, flattenTopics(t.Topics)...)
	}
	return out
}
