// Package scrape fetches company website content for analysis, falling back
// across providers until one succeeds.
package scrape

import (
	"context"
	"strings"
)

// Result is one fetched page. Source names the scraper that produced it.
type Result struct {
	URL        string
	Title      string
	Markdown   string
	StatusCode int
	Source     string
}

// Scraper fetches a single URL as markdown.
type Scraper interface {
	Name() string
	Scrape(ctx context.Context, targetURL string) (*Result, error)
}

// NormalizeURL makes a best-effort canonical form of a user-supplied website
// value. Empty input stays empty; the caller decides whether that matters.
func NormalizeURL(raw string) string {
	u := strings.TrimSpace(raw)
	if u == "" {
		return ""
	}
	if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
		u = "https://" + u
	}
	return strings.TrimRight(u, "/")
}
