package pipeline

import (
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/brandscope/overview-service/internal/model"
)

// DecodeAnalysis converts an extracted JSON object into a normalized
// AnalysisRecord. Unknown keys are dropped; missing fields get defaults.
func DecodeAnalysis(obj map[string]any) (*model.AnalysisRecord, error) {
	raw, err := json.Marshal(obj)
	if err != nil {
		return nil, eris.Wrap(err, "normalize: marshal analysis object")
	}
	var record model.AnalysisRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, eris.Wrap(err, "normalize: decode analysis object")
	}
	NormalizeAnalysis(&record)
	return &record, nil
}

// NormalizeAnalysis fills missing fields with typed defaults so downstream
// consumers never branch on absence. Revenue-like fields default to the
// not-publicly-available sentinel, other scalars to the not-available
// sentinel, and sequences to empty slices. Normalizing a complete record is
// a no-op.
func NormalizeAnalysis(a *model.AnalysisRecord) {
	defaultStr(&a.Overview, model.SentinelNotAvailable)
	defaultStr(&a.Mission, model.SentinelNotAvailable)
	defaultStr(&a.TargetMarket, model.SentinelNotAvailable)
	defaultStr(&a.BrandPositioning, model.SentinelNotAvailable)
	defaultStr(&a.CompanySize, model.SentinelNotAvailable)
	defaultStr(&a.AnnualRevenue, model.SentinelNotPublic)
	defaultStr(&a.OnlineRevenue, model.SentinelNotPublic)
	defaultStr(&a.AOV, model.SentinelNotAvailable)
	defaultStr(&a.OrderVolume, model.SentinelNotAvailable)
	defaultStr(&a.MarketingIndicators, model.SentinelNotAvailable)
	defaultStr(&a.MarketingBudget, model.SentinelNotPublic)
	defaultStr(&a.WebsiteTraffic, model.SentinelNotAvailable)

	defaultSeq(&a.Products)
	defaultSeq(&a.Differentiators)
	defaultSeq(&a.SalesChannels)
	defaultSeq(&a.GeographicPresence)
	defaultSeq(&a.DecisionMakers)
	defaultSeq(&a.RecentNews)
	defaultSeq(&a.TechStack)
}

// DecodeGeolocation converts an extracted JSON object into a normalized
// Geolocation.
func DecodeGeolocation(obj map[string]any) (*model.Geolocation, error) {
	raw, err := json.Marshal(obj)
	if err != nil {
		return nil, eris.Wrap(err, "normalize: marshal geolocation object")
	}
	var geo model.Geolocation
	if err := json.Unmarshal(raw, &geo); err != nil {
		return nil, eris.Wrap(err, "normalize: decode geolocation object")
	}
	NormalizeGeolocation(&geo)
	return &geo, nil
}

// NormalizeGeolocation fills missing geolocation fields with defaults.
func NormalizeGeolocation(g *model.Geolocation) {
	defaultStr(&g.Headquarters, model.SentinelNotSpecified)
	defaultSeq(&g.Offices)
	defaultSeq(&g.ServiceAreas)
	defaultSeq(&g.Markets)
	defaultSeq(&g.Regions)
}

func defaultStr(s *string, def string) {
	if *s == "" {
		*s = def
	}
}

func defaultSeq(s *[]string) {
	if *s == nil {
		*s = []string{}
	}
}
