package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/brandscope/overview-service/internal/config"
	"github.com/brandscope/overview-service/internal/enrich"
	"github.com/brandscope/overview-service/internal/model"
	"github.com/brandscope/overview-service/internal/store"
	"github.com/brandscope/overview-service/pkg/notify"
	"github.com/brandscope/overview-service/pkg/zoho"
)

// Scraper fetches a company website; failures degrade to an unavailable
// placeholder.
type Scraper interface {
	Fetch(ctx context.Context, website string) model.ScrapeResult
}

// Enricher collects best-effort web signals per source.
type Enricher interface {
	Gather(ctx context.Context, company model.Company) map[string]enrich.SourceResult
}

// AnalysisEngine produces the LLM analysis and geolocation.
type AnalysisEngine interface {
	Analyze(ctx context.Context, company model.Company, scrape model.ScrapeResult, enrichment map[string]enrich.SourceResult) (*model.AnalysisRecord, error)
	Geolocate(ctx context.Context, company model.Company, analysis *model.AnalysisRecord) *model.Geolocation
}

// Orchestrator sequences the overview pipeline for one company:
// scrape, enrich, analyze, sufficiency gate, geolocate, map, CRM write.
type Orchestrator struct {
	cfg      *config.Config
	store    store.Store
	scraper  Scraper
	enricher Enricher
	engine   AnalysisEngine
	crm      zoho.Client
	mapper   *Mapper
	notifier notify.Sink
}

// NewOrchestrator wires the pipeline. crm may be nil when running without
// write-back.
func NewOrchestrator(
	cfg *config.Config,
	st store.Store,
	scraper Scraper,
	enricher Enricher,
	engine AnalysisEngine,
	crm zoho.Client,
	notifier notify.Sink,
) *Orchestrator {
	if notifier == nil {
		notifier = notify.NopSink{}
	}
	return &Orchestrator{
		cfg:      cfg,
		store:    st,
		scraper:  scraper,
		enricher: enricher,
		engine:   engine,
		crm:      crm,
		mapper:   NewMapper(notifier),
		notifier: notifier,
	}
}

// Run generates a brand overview for a company and, when the data clears the
// sufficiency gate and a CRM record ID is present, writes the mapped fields
// back to the CRM.
func (o *Orchestrator) Run(ctx context.Context, company model.Company) (*model.OverviewResult, error) {
	log := zap.L().With(zap.String("company", company.Name), zap.String("website", company.Website))
	log.Info("orchestrator: starting overview generation")

	run, err := o.store.CreateRun(ctx, company)
	if err != nil {
		return nil, eris.Wrap(err, "orchestrator: create run")
	}

	result := &model.OverviewResult{
		RunID:   run.ID,
		Company: company,
	}

	setStatus := func(status model.RunStatus) {
		if statusErr := o.store.SetRunStatus(ctx, run.ID, status); statusErr != nil {
			log.Warn("orchestrator: failed to update status", zap.Error(statusErr))
		}
	}

	var phases []model.PhaseResult
	trackPhase := func(name string, fn func() (*model.PhaseResult, error)) error {
		phase, phaseErr := o.store.CreatePhase(ctx, run.ID, name)
		if phaseErr != nil {
			log.Warn("orchestrator: failed to create phase", zap.String("phase", name), zap.Error(phaseErr))
		}

		start := time.Now()
		phaseResult, fnErr := fn()
		duration := time.Since(start).Milliseconds()

		if phaseResult == nil {
			phaseResult = &model.PhaseResult{}
		}
		phaseResult.Name = name
		phaseResult.Duration = duration

		if fnErr != nil {
			phaseResult.Status = model.PhaseStatusFailed
			phaseResult.Error = fnErr.Error()
			log.Error("orchestrator: phase failed",
				zap.String("phase", name),
				zap.Int64("duration_ms", duration),
				zap.Error(fnErr),
			)
		} else if phaseResult.Status == "" {
			phaseResult.Status = model.PhaseStatusComplete
			log.Info("orchestrator: phase complete",
				zap.String("phase", name),
				zap.Int64("duration_ms", duration),
			)
		}

		if phase != nil {
			_ = o.store.CompletePhase(ctx, phase.ID, phaseResult)
		}
		phases = append(phases, *phaseResult)
		return fnErr
	}

	fail := func(err error) (*model.OverviewResult, error) {
		o.finishRun(ctx, run.ID, model.RunStatusFailed, result, phases, err)
		return nil, err
	}

	// Pre-flight gate: reject placeholder names before any network work.
	if verdict := EvaluateCompany(company); !verdict.Sufficient {
		o.applyInsufficiency(result, verdict)
		o.finishRun(ctx, run.ID, model.RunStatusInsufficient, result, phases, nil)
		return result, nil
	}

	// Scrape. Failures are absorbed into an unavailable placeholder.
	setStatus(model.RunStatusScraping)
	var scrape model.ScrapeResult
	_ = trackPhase("scrape", func() (*model.PhaseResult, error) {
		scrape = o.scraper.Fetch(ctx, company.Website)
		return &model.PhaseResult{
			Metadata: map[string]any{
				"available": scrape.Available,
				"source":    scrape.Source,
			},
		}, nil
	})
	result.Scrape = &scrape

	// Enrich. Each source is independently best-effort.
	setStatus(model.RunStatusEnriching)
	var enrichment map[string]enrich.SourceResult
	_ = trackPhase("enrich", func() (*model.PhaseResult, error) {
		enrichment = o.enricher.Gather(ctx, company)
		available := 0
		for _, res := range enrichment {
			if res.Available {
				available++
			}
		}
		return &model.PhaseResult{
			Metadata: map[string]any{
				"sources":   len(enrichment),
				"available": available,
			},
		}, nil
	})
	result.Enrichment = flattenEnrichment(enrichment)

	// Analyze. This is the only phase whose failure aborts the run.
	setStatus(model.RunStatusAnalyzing)
	var analysis *model.AnalysisRecord
	if err := trackPhase("analyze", func() (*model.PhaseResult, error) {
		var analyzeErr error
		analysis, analyzeErr = o.engine.Analyze(ctx, company, scrape, enrichment)
		return nil, analyzeErr
	}); err != nil {
		return fail(eris.Wrap(err, "orchestrator: analysis failed"))
	}

	// Sufficiency gate. An insufficient verdict short-circuits: no
	// geolocation, no CRM write.
	if verdict := EvaluateAnalysis(analysis); !verdict.Sufficient {
		o.applyInsufficiency(result, verdict)
		o.finishRun(ctx, run.ID, model.RunStatusInsufficient, result, phases, nil)
		log.Info("orchestrator: insufficient data, skipping geolocation and CRM write",
			zap.String("reason", verdict.Reason),
		)
		return result, nil
	}
	result.Analysis = analysis

	// Geolocate. Failures degrade to defaults inside the engine.
	setStatus(model.RunStatusGeolocating)
	var geo *model.Geolocation
	_ = trackPhase("geolocate", func() (*model.PhaseResult, error) {
		geo = o.engine.Geolocate(ctx, company, analysis)
		return nil, nil
	})
	result.Geolocation = geo

	// Map to CRM fields.
	setStatus(model.RunStatusMapping)
	_ = trackPhase("map_fields", func() (*model.PhaseResult, error) {
		result.Fields = o.mapper.MapToCRMFields(ctx, company, analysis, geo)
		if err := ValidateMapping(result.Fields); err != nil {
			return nil, err
		}
		return &model.PhaseResult{
			Metadata: map[string]any{"fields": len(result.Fields)},
		}, nil
	})

	// CRM write-back, when wired and the company came from a CRM record.
	if o.crm != nil && company.ID != "" {
		setStatus(model.RunStatusWritingCRM)
		writeErr := trackPhase("write_crm", func() (*model.PhaseResult, error) {
			return nil, o.crm.UpdateRecord(ctx, company.ID, result.Fields)
		})
		if writeErr != nil {
			o.notifyWriteFailure(ctx, company, writeErr)
		} else {
			result.CRMUpdated = true
		}
	}

	result.GeneratedAt = time.Now().UTC()
	o.finishRun(ctx, run.ID, model.RunStatusComplete, result, phases, nil)

	log.Info("orchestrator: overview complete",
		zap.Bool("crm_updated", result.CRMUpdated),
		zap.Int("fields", len(result.Fields)),
	)
	return result, nil
}

func (o *Orchestrator) applyInsufficiency(result *model.OverviewResult, verdict model.Verdict) {
	result.InsufficientData = true
	result.Reason = verdict.Reason
	result.Suggestions = verdict.Suggestions
	result.Message = "Unable to generate a brand overview from the available data"
	result.GeneratedAt = time.Now().UTC()
}

func (o *Orchestrator) finishRun(ctx context.Context, runID string, status model.RunStatus, result *model.OverviewResult, phases []model.PhaseResult, runErr error) {
	runResult := &model.RunResult{
		InsufficientData: result.InsufficientData,
		Reason:           result.Reason,
		Suggestions:      result.Suggestions,
		Fields:           result.Fields,
		CRMUpdated:       result.CRMUpdated,
		Phases:           phases,
		GeneratedAt:      time.Now().UTC(),
	}
	if runErr != nil {
		runResult.Error = runErr.Error()
	}
	if err := o.store.FinishRun(ctx, runID, status, runResult); err != nil {
		zap.L().Warn("orchestrator: failed to finish run",
			zap.String("run_id", runID),
			zap.Error(err),
		)
	}
}

func (o *Orchestrator) notifyWriteFailure(ctx context.Context, company model.Company, err error) {
	if notifyErr := o.notifier.Notify(ctx, notify.Event{
		Level:   notify.LevelError,
		Title:   "CRM write failed",
		Message: err.Error(),
		Fields:  map[string]string{"company": company.Name, "record_id": company.ID},
	}); notifyErr != nil {
		zap.L().Warn("orchestrator: notify failed", zap.Error(notifyErr))
	}
}

func flattenEnrichment(enrichment map[string]enrich.SourceResult) map[string]any {
	if enrichment == nil {
		return nil
	}
	out := make(map[string]any, len(enrichment))
	for name, res := range enrichment {
		out[name] = res
	}
	return out
}
