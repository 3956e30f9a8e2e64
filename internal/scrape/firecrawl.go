package scrape

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/brandscope/overview-service/pkg/firecrawl"
)

type firecrawlScraper struct {
	client  firecrawl.Client
	timeout int
}

// NewFirecrawlScraper adapts the Firecrawl API into a Scraper.
// timeoutMS is passed through to the Firecrawl scrape request.
func NewFirecrawlScraper(client firecrawl.Client, timeoutMS int) Scraper {
	return &firecrawlScraper{client: client, timeout: timeoutMS}
}

func (s *firecrawlScraper) Name() string { return "firecrawl" }

func (s *firecrawlScraper) Scrape(ctx context.Context, targetURL string) (*Result, error) {
	resp, err := s.client.Scrape(ctx, firecrawl.ScrapeRequest{
		URL:     targetURL,
		Formats: []string{"markdown"},
		Timeout: s.timeout,
	})
	if err != nil {
		return nil, eris.Wrapf(err, "scrape: firecrawl %s", targetURL)
	}
	if !resp.Success || resp.Data.Markdown == "" {
		return nil, eris.Errorf("scrape: firecrawl returned empty content for %s", targetURL)
	}
	return &Result{
		URL:        targetURL,
		Title:      resp.Data.Metadata.Title,
		Markdown:   resp.Data.Markdown,
		StatusCode: resp.Data.Metadata.StatusCode,
	}, nil
}
