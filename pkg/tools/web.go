package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/comigor/cidion/internal/logger"
	"github.com/comigor/cidion/pkg/tools/search"
)

// Web tool names.
const (
	WebSearchName = "web_search"
	ScrapeName    = "scrape_webpage"
)

const (
	scrapeUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
	maxPageSize     = 5 * 1024 * 1024
)

// WebSearchInput is the argument bundle of web_search.
type WebSearchInput struct {
	Query      string `json:"query" required:"true" validate:"required" description:"Search query"`
	MaxResults int    `json:"max_results,omitempty" default:"5" validate:"gte=0" description:"Maximum number of results to return"`
}

// ScrapeInput is the argument bundle of scrape_webpage.
type ScrapeInput struct {
	URL       string `json:"url" required:"true" validate:"required,url" description:"URL of the webpage to scrape"`
	MaxLength int    `json:"max_length,omitempty" default:"2000" validate:"gte=0" description:"Maximum length of content to return"`
	Format    string `json:"format,omitempty" enum:"text,markdown" validate:"omitempty,oneof=text markdown" description:"Return plain text (default) or markdown"`
}

// NewWebSearchTool searches with provider, returning defaultMax results unless asked otherwise.
func NewWebSearchTool(provider search.Provider, defaultMax int) Tool {
	return MustNewTypedTool(WebSearchName, "Search the web for information",
		func(ctx context.Context, in WebSearchInput) (string, error) {
			limit := in.MaxResults
			if limit <= 0 {
				limit = defaultMax
			}
			resp, err := provider.Search(ctx, in.Query, limit)
			if err != nil {
				return "", fmt.Errorf("searching web: %w", err)
			}
			logger.L.Info("web search", "provider", provider.Name(), "query", in.Query, "results", len(resp.Results))
			return search.Format(in.Query, resp), nil
		})
}

// NewScrapeTool fetches pages with client and extracts their readable content.
func NewScrapeTool(client *http.Client, defaultMax int) Tool {
	return MustNewTypedTool(ScrapeName, "Scrape content from a webpage",
		func(ctx context.Context, in ScrapeInput) (string, error) {
			limit := in.MaxLength
			if limit <= 0 {
				limit = defaultMax
			}
			if !strings.HasPrefix(in.URL, "http://") && !strings.HasPrefix(in.URL, "https://") {
				return "", fmt.Errorf("scraping webpage: URL must start with http:// or https://")
			}

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, in.URL, nil)
			if err != nil {
				return "", fmt.Errorf("scraping webpage: %w", err)
			}
			req.Header.Set("User-Agent", scrapeUserAgent)
			req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

			resp, err := client.Do(req)
			if err != nil {
				return "", fmt.Errorf("scraping webpage: %w", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode < 200 || resp.StatusCode > 299 {
				return "", fmt.Errorf("scraping webpage: request failed with status code %d", resp.StatusCode)
			}

			body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageSize))
			if err != nil {
				return "", fmt.Errorf("scraping webpage: %w", err)
			}

			var text string
			if in.Format == "markdown" {
				text, err = htmlToMarkdown(string(body))
			} else {
				text, err = extractText(string(body))
			}
			if err != nil {
				return "", fmt.Errorf("scraping webpage: %w", err)
			}

			logger.L.Info("scraped webpage", "url", in.URL, "status", resp.StatusCode, "size", len(body))
			return fmt.Sprintf("Content from %s:\n\n%s", in.URL, truncate(text, limit)), nil
		})
}

// NewHTTPClient returns the client shared by the web tools.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("too many redirects")
			}
			return nil
		},
	}
}

var whitespace = regexp.MustCompile(`\s+`)

// extractText drops script and style elements and collapses whitespace.
func extractText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}
	doc.Find("script, style, noscript").Remove()
	return strings.TrimSpace(whitespace.ReplaceAllString(doc.Text(), " ")), nil
}

func htmlToMarkdown(html string) (string, error) {
	converter := md.NewConverter("", true, nil)
	converter.Remove("script", "style", "noscript")
	markdown, err := converter.ConvertString(html)
	if err != nil {
		return "", fmt.Errorf("failed to convert HTML to Markdown: %w", err)
	}
	markdown = strings.TrimSpace(markdown)
	for strings.Contains(markdown, "\n\n\n") {
		markdown = strings.ReplaceAll(markdown, "\n\n\n", "\n\n")
	}
	return markdown, nil
}
