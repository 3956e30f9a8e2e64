package scrape

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/brandscope/overview-service/pkg/jina"
)

type jinaScraper struct {
	client jina.Client
}

// NewJinaScraper adapts the Jina Reader API into a Scraper.
func NewJinaScraper(client jina.Client) Scraper {
	return &jinaScraper{client: client}
}

func (s *jinaScraper) Name() string { return "jina" }

func (s *jinaScraper) Scrape(ctx context.Context, targetURL string) (*Result, error) {
	resp, err := s.client.Read(ctx, targetURL)
	if err != nil {
		return nil, eris.Wrapf(err, "scrape: jina read %s", targetURL)
	}
	if resp == nil || resp.Data.Content == "" {
		return nil, eris.Errorf("scrape: jina returned empty content for %s", targetURL)
	}
	return &Result{
		URL:        targetURL,
		Title:      resp.Data.Title,
		Markdown:   resp.Data.Content,
		StatusCode: resp.Code,
	}, nil
}
