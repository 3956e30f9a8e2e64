package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/brandscope/overview-service/internal/enrich"
	"github.com/brandscope/overview-service/internal/model"
	"github.com/brandscope/overview-service/internal/resilience"
	"github.com/brandscope/overview-service/pkg/anthropic"
)

// maxScrapeContext bounds how much scraped page text is sent to the model.
const maxScrapeContext = 12000

const analysisSystemText = `You are a brand research analyst. Given everything known about a company, produce a structured brand analysis as a single JSON object with exactly these keys:

overview, mission, products (array), targetMarket, differentiators (array), brandPositioning, companySize, revenue, annualRevenue, onlineRevenue, aov, orderVolume, salesChannels (array), geographicPresence (array), decisionMakers (array), recentNews (array), marketingIndicators, techStack (array), marketingBudget, websiteTraffic

Use "Not available" for facts you cannot determine and "Not publicly available" for financial figures you cannot determine. Return only the JSON object, no commentary.

If you cannot identify the company at all - the name is generic like "Tech Corp" or "Test Company", clearly misspelled, or no information about it exists - instead return {"insufficientData": true, "reason": "<why>", "suggestions": ["<how to fix>"]}. A missing website is NOT by itself a reason to report insufficient data: if the company name is specific enough to identify the business, analyze it from public knowledge.`

const geolocationSystemText = `You are a research analyst mapping a company's geographic footprint. Return a single JSON object with exactly these keys:

headquarters (string), offices (array), serviceAreas (array), markets (array), regions (array)

Use "Not specified" for an unknown headquarters and empty arrays for unknown lists. Return only the JSON object.`

// Analyzer runs LLM analysis with ordered model fallback and bounded retry.
type Analyzer struct {
	client    anthropic.Client
	models    []string
	maxTokens int64
	retry     resilience.Policy
}

// NewAnalyzer creates an Analyzer. models lists the primary model first,
// then fallbacks tried in order when a call fails all retries.
func NewAnalyzer(client anthropic.Client, models []string, maxTokens int64, maxAttempts int) *Analyzer {
	policy := resilience.DefaultPolicy()
	if maxAttempts > 0 {
		policy.MaxAttempts = maxAttempts
	}
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &Analyzer{
		client:    client,
		models:    models,
		maxTokens: maxTokens,
		retry:     policy,
	}
}

// Analyze produces a normalized analysis record for a company. The response
// text goes through the extraction ladder, so a malformed model response
// degrades rather than failing.
func (a *Analyzer) Analyze(ctx context.Context, company model.Company, scrape model.ScrapeResult, enrichment map[string]enrich.SourceResult) (*model.AnalysisRecord, error) {
	prompt := buildAnalysisPrompt(company, scrape, enrichment)

	text, usedModel, err := a.complete(ctx, analysisSystemText, prompt, "analyze")
	if err != nil {
		return nil, eris.Wrapf(err, "analyze: all models failed for %s", company.Name)
	}

	record, err := DecodeAnalysis(ExtractAnalysis(text))
	if err != nil {
		return nil, eris.Wrap(err, "analyze: decode analysis")
	}

	zap.L().Info("analyze: analysis complete",
		zap.String("company", company.Name),
		zap.String("model", usedModel),
		zap.Bool("insufficient", record.InsufficientData),
		zap.Bool("parsing_error", record.ParsingError),
	)
	return record, nil
}

// Geolocate looks up the company's geographic footprint. Failures degrade to
// an empty normalized record: geography is enrichment, not a gate.
func (a *Analyzer) Geolocate(ctx context.Context, company model.Company, analysis *model.AnalysisRecord) *model.Geolocation {
	prompt := buildGeolocationPrompt(company, analysis)

	text, _, err := a.complete(ctx, geolocationSystemText, prompt, "geolocate")
	if err != nil {
		zap.L().Warn("analyze: geolocation failed, using defaults",
			zap.String("company", company.Name),
			zap.Error(err),
		)
		geo := &model.Geolocation{}
		NormalizeGeolocation(geo)
		return geo
	}

	obj, ok := ExtractJSON(text)
	if !ok {
		zap.L().Warn("analyze: geolocation response unparseable, using defaults",
			zap.String("company", company.Name),
		)
		obj = map[string]any{}
	}

	geo, err := DecodeGeolocation(obj)
	if err != nil {
		geo = &model.Geolocation{}
		NormalizeGeolocation(geo)
	}
	return geo
}

// complete calls the model with retry, falling back across the configured
// model list. Retries within one model are sequential with backoff; only
// after a model exhausts its attempts does the next one get tried.
func (a *Analyzer) complete(ctx context.Context, system, prompt, phase string) (string, string, error) {
	if len(a.models) == 0 {
		return "", "", eris.New("analyze: no models configured")
	}

	var lastErr error
	for _, m := range a.models {
		resp, err := resilience.DoVal(ctx, a.retry, func(ctx context.Context) (*anthropic.MessageResponse, error) {
			return a.client.CreateMessage(ctx, anthropic.MessageRequest{
				Model:     m,
				MaxTokens: a.maxTokens,
				System:    anthropic.BuildCachedSystemBlocks(system),
				Messages:  []anthropic.Message{{Role: "user", Content: prompt}},
			})
		})
		if err == nil {
			resp.Usage.LogCost(m, phase)
			return resp.Text(), m, nil
		}

		lastErr = err
		zap.L().Warn("analyze: model failed, trying fallback",
			zap.String("model", m),
			zap.String("phase", phase),
			zap.Error(err),
		)
		if ctx.Err() != nil {
			break
		}
	}
	return "", "", lastErr
}

func buildAnalysisPrompt(company model.Company, scrape model.ScrapeResult, enrichment map[string]enrich.SourceResult) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Company: %s\n", company.Name)
	if company.Website != "" {
		fmt.Fprintf(&b, "Website: %s\n", company.Website)
	}
	if company.Industry != "" {
		fmt.Fprintf(&b, "Industry: %s\n", company.Industry)
	}
	if company.Description != "" {
		fmt.Fprintf(&b, "CRM description: %s\n", company.Description)
	}

	if scrape.Available && scrape.Content != "" {
		content := scrape.Content
		if len(content) > maxScrapeContext {
			content = content[:maxScrapeContext]
		}
		fmt.Fprintf(&b, "\nWebsite content (%s):\n%s\n", scrape.URL, content)
	} else {
		b.WriteString("\nThe company website could not be fetched. Analyze from the signals below and public knowledge.\n")
	}

	if len(enrichment) > 0 {
		b.WriteString("\nWeb research signals:\n")
		for name, res := range enrichment {
			if !res.Available {
				continue
			}
			fmt.Fprintf(&b, "- %s: %s\n", name, summarizeSource(res))
		}
	}

	b.WriteString("\nProduce the brand analysis JSON now.")
	return b.String()
}

func buildGeolocationPrompt(company model.Company, analysis *model.AnalysisRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Company: %s\n", company.Name)
	if company.Website != "" {
		fmt.Fprintf(&b, "Website: %s\n", company.Website)
	}
	if analysis != nil {
		if analysis.Overview != "" && analysis.Overview != model.SentinelNotAvailable {
			fmt.Fprintf(&b, "Overview: %s\n", analysis.Overview)
		}
		if len(analysis.GeographicPresence) > 0 {
			fmt.Fprintf(&b, "Known presence: %s\n", strings.Join(analysis.GeographicPresence, ", "))
		}
	}
	b.WriteString("\nProduce the geographic footprint JSON now.")
	return b.String()
}

// summarizeSource flattens a source result into a short prompt line.
func summarizeSource(res enrich.SourceResult) string {
	items, ok := res.Data["results"].([]map[string]any)
	if !ok || len(items) == 0 {
		return "no results"
	}

	var parts []string
	for _, item := range items {
		title, _ := item["title"].(string)
		snippet, _ := item["snippet"].(string)
		switch {
		case title != "" && snippet != "":
			parts = append(parts, title+": "+snippet)
		case title != "":
			parts = append(parts, title)
		case snippet != "":
			parts = append(parts, snippet)
		}
		if len(parts) == 3 {
			break
		}
	}
	return strings.Join(parts, " | ")
}
