// Package search provides the web search backends used by the web_search tool.
//
// Each backend implements [Provider]; [New] selects one by name.
package search

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Result is a single related item of a search.
type Result struct {
	Title   string `json:"title,omitempty"`
	URL     string `json:"url,omitempty"`
	Snippet string `json:"snippet"`
}

// Response is what a provider found for a query.
type Response struct {
	// Summary is an abstract of the topic, when the backend offers one.
	Summary string
	// Answer is a direct answer, when the backend offers one.
	Answer  string
	Results []Result
}

// Empty reports whether nothing at all was found.
func (r Response) Empty() bool {
	return r.Summary == "" && r.Answer == "" && len(r.Results) == 0
}

// Provider is the interface that search backends implement.
type Provider interface {
	// Name returns the provider identifier (e.g., "duckduckgo", "searxng").
	Name() string

	// Search executes a query returning at most maxResults related items.
	Search(ctx context.Context, query string, maxResults int) (Response, error)
}

// New builds the named provider. searxngURL is only used by "searxng".
func New(name, searxngURL string, timeout time.Duration) (Provider, error) {
	client := &http.Client{Timeout: timeout}
	switch name {
	case "", "duckduckgo":
		return NewDuckDuckGo(DuckDuckGoURL, client), nil
	case "searxng":
		if searxngURL == "" {
			return nil, fmt.Errorf("searxng provider needs a base URL")
		}
		return NewSearXNG(searxngURL, client), nil
	default:
		return nil, fmt.Errorf("search provider %q not supported", name)
	}
}

// Format renders a response the way the agent reads it.
func Format(query string, resp Response) string {
	if resp.Empty() {
		return fmt.Sprintf("No specific results found for '%s'. Consider refining your search.", query)
	}

	var lines []string
	if resp.Summary != "" {
		lines = append(lines, "Summary: "+resp.Summary)
	}
	if len(resp.Results) > 0 {
		lines = append(lines, "Related information:")
		for _, r := range resp.Results {
			line := "- " + r.Snippet
			if r.Snippet == "" {
				line = "- " + r.Title
			}
			if r.URL != "" {
				line += " (" + r.URL + ")"
			}
			lines = append(lines, line)
		}
	}
	if resp.Answer != "" {
		lines = append(lines, "Direct answer: "+resp.Answer)
	}
	return strings.Join(lines, "\n")
}

func readErrorBody(r io.Reader, limit int64) string {
	b, _ := io.ReadAll(io.LimitReader(r, limit))
	return strings.TrimSpace(string(b))
}
