package scrape

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/brandscope/overview-service/internal/model"
)

// Chain tries scrapers in priority order, returning the first success.
type Chain struct {
	scrapers []Scraper
}

// NewChain creates a Chain. Scrapers are tried in order; the first
// successful result wins.
func NewChain(scrapers ...Scraper) *Chain {
	return &Chain{scrapers: scrapers}
}

// Scrape tries each scraper in order for a single URL.
// Returns the first successful result, or an error if all fail.
func (c *Chain) Scrape(ctx context.Context, targetURL string) (*Result, error) {
	if len(c.scrapers) == 0 {
		return nil, eris.New("scrape: no scrapers configured")
	}

	var lastErr error
	for _, s := range c.scrapers {
		result, err := s.Scrape(ctx, targetURL)
		if err == nil && result != nil {
			result.Source = s.Name()
			return result, nil
		}
		if err != nil {
			zap.L().Debug("scrape: scraper failed, trying next",
				zap.String("scraper", s.Name()),
				zap.String("url", targetURL),
				zap.Error(err),
			)
			lastErr = err
		}
	}
	return nil, eris.Wrap(lastErr, "scrape: all scrapers failed")
}

// Fetch scrapes a company website and converts the outcome into a
// model.ScrapeResult. Failures never propagate: the pipeline continues with
// an unavailable placeholder so the analysis can still run from the company
// name alone.
func (c *Chain) Fetch(ctx context.Context, website string) model.ScrapeResult {
	normalized := NormalizeURL(website)
	if normalized == "" {
		return model.ScrapeResult{Available: false, FetchedAt: time.Now().UTC()}
	}

	result, err := c.Scrape(ctx, normalized)
	if err != nil {
		zap.L().Warn("scrape: website unavailable",
			zap.String("url", normalized),
			zap.Error(err),
		)
		return model.ScrapeResult{
			URL:       normalized,
			Available: false,
			FetchedAt: time.Now().UTC(),
		}
	}

	return model.ScrapeResult{
		URL:       normalized,
		Title:     result.Title,
		Content:   result.Markdown,
		Available: true,
		Source:    result.Source,
		FetchedAt: time.Now().UTC(),
	}
}
