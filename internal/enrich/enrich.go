// Package enrich collects supplementary company signals from public web
// sources. Each source is best-effort: a failed source degrades to an
// unavailable result instead of failing the run.
package enrich

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/brandscope/overview-service/internal/model"
	"github.com/brandscope/overview-service/pkg/jina"
)

// Source collects one category of signals for a company.
type Source interface {
	Name() string
	Collect(ctx context.Context, company model.Company) (map[string]any, error)
}

// SourceResult is the outcome of one source for one company.
type SourceResult struct {
	Source    string         `json:"source"`
	Available bool           `json:"available"`
	Data      map[string]any `json:"data,omitempty"`
}

// Gatherer runs sources in parallel with bounded concurrency.
type Gatherer struct {
	sources       []Source
	maxConcurrent int
	timeout       time.Duration
}

// NewGatherer creates a Gatherer over the given sources.
func NewGatherer(sources []Source, maxConcurrent int, timeout time.Duration) *Gatherer {
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Gatherer{sources: sources, maxConcurrent: maxConcurrent, timeout: timeout}
}

// Gather runs every source and returns results keyed by source name. It
// never returns an error: sources that fail or time out appear with
// Available=false.
func (g *Gatherer) Gather(ctx context.Context, company model.Company) map[string]SourceResult {
	var mu sync.Mutex
	results := make(map[string]SourceResult, len(g.sources))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.maxConcurrent)

	for _, src := range g.sources {
		eg.Go(func() error {
			callCtx, cancel := context.WithTimeout(egCtx, g.timeout)
			defer cancel()

			data, err := src.Collect(callCtx, company)
			res := SourceResult{Source: src.Name(), Available: err == nil && len(data) > 0, Data: data}
			if err != nil {
				zap.L().Debug("enrich: source failed",
					zap.String("source", src.Name()),
					zap.String("company", company.Name),
					zap.Error(err),
				)
				res.Data = nil
			}

			mu.Lock()
			results[src.Name()] = res
			mu.Unlock()
			return nil
		})
	}

	_ = eg.Wait()
	return results
}

// DefaultSources returns the standard source set, all backed by web search.
func DefaultSources(client jina.Client, maxResults int) []Source {
	if maxResults <= 0 {
		maxResults = 5
	}
	specs := []struct {
		name  string
		query string
	}{
		{"social", `"%s" official LinkedIn Twitter Instagram profiles`},
		{"directories", `"%s" company profile Crunchbase Bloomberg business directory`},
		{"news", `"%s" company news announcements press release`},
		{"financial", `"%s" revenue funding financial results annual report`},
		{"legal", `"%s" registration incorporation legal entity filings`},
		{"reviews", `"%s" customer reviews ratings Trustpilot G2`},
		{"techstack", `"%s" technology stack built with software tools`},
		{"traffic", `"%s" website traffic monthly visitors statistics`},
	}

	sources := make([]Source, 0, len(specs))
	for _, s := range specs {
		sources = append(sources, &searchSource{
			name:       s.name,
			queryTmpl:  s.query,
			client:     client,
			maxResults: maxResults,
		})
	}
	return sources
}

// searchSource runs a templated web search and records the top hits.
type searchSource struct {
	name       string
	queryTmpl  string
	client     jina.Client
	maxResults int
}

func (s *searchSource) Name() string { return s.name }

func (s *searchSource) Collect(ctx context.Context, company model.Company) (map[string]any, error) {
	query := fmt.Sprintf(s.queryTmpl, company.Name)

	resp, err := s.client.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	if resp == nil || len(resp.Data) == 0 {
		return nil, nil
	}

	hits := resp.Data
	if len(hits) > s.maxResults {
		hits = hits[:s.maxResults]
	}

	items := make([]map[string]any, 0, len(hits))
	for _, h := range hits {
		items = append(items, map[string]any{
			"title":   h.Title,
			"url":     h.URL,
			"snippet": snippet(h),
		})
	}
	return map[string]any{"query": query, "results": items}, nil
}

func snippet(r jina.SearchResult) string {
	if r.Description != "" {
		return r.Description
	}
	const maxLen = 300
	if len(r.Content) > maxLen {
		return r.Content[:maxLen]
	}
	return r.Content
}
