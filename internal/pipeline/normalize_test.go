package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brandscope/overview-service/internal/model"
)

func TestNormalizeAnalysis_Defaults(t *testing.T) {
	t.Parallel()

	var a model.AnalysisRecord
	NormalizeAnalysis(&a)

	assert.Equal(t, model.SentinelNotAvailable, a.Overview)
	assert.Equal(t, model.SentinelNotAvailable, a.Mission)
	assert.Equal(t, model.SentinelNotAvailable, a.CompanySize)
	assert.Equal(t, model.SentinelNotPublic, a.AnnualRevenue)
	assert.Equal(t, model.SentinelNotPublic, a.OnlineRevenue)
	assert.Equal(t, model.SentinelNotPublic, a.MarketingBudget)

	assert.NotNil(t, a.Products)
	assert.Empty(t, a.Products)
	assert.NotNil(t, a.SalesChannels)
	assert.NotNil(t, a.GeographicPresence)
	assert.NotNil(t, a.DecisionMakers)
	assert.NotNil(t, a.RecentNews)
	assert.NotNil(t, a.TechStack)
	assert.NotNil(t, a.Differentiators)
}

func TestNormalizeAnalysis_Idempotent(t *testing.T) {
	t.Parallel()

	a := model.AnalysisRecord{
		Overview:      "A real overview of a real company.",
		Products:      []string{"Widgets"},
		AnnualRevenue: "$10 million",
	}
	NormalizeAnalysis(&a)
	first := a
	NormalizeAnalysis(&a)
	assert.Equal(t, first, a)
}

func TestNormalizeAnalysis_PreservesExisting(t *testing.T) {
	t.Parallel()

	a := model.AnalysisRecord{Overview: "keep me", TechStack: []string{"Shopify"}}
	NormalizeAnalysis(&a)
	assert.Equal(t, "keep me", a.Overview)
	assert.Equal(t, []string{"Shopify"}, a.TechStack)
}

func TestDecodeAnalysis(t *testing.T) {
	t.Parallel()

	record, err := DecodeAnalysis(map[string]any{
		"overview":    "Acme builds robots.",
		"products":    []any{"Picking arm", "Conveyor"},
		"companySize": "250 employees",
		"unknownKey":  "dropped",
	})
	require.NoError(t, err)
	assert.Equal(t, "Acme builds robots.", record.Overview)
	assert.Equal(t, []string{"Picking arm", "Conveyor"}, record.Products)
	assert.Equal(t, "250 employees", record.CompanySize)
	// Missing fields are defaulted.
	assert.Equal(t, model.SentinelNotPublic, record.AnnualRevenue)
	assert.Equal(t, model.SentinelNotAvailable, record.TargetMarket)
}

func TestDecodeAnalysis_InsufficiencyMarkers(t *testing.T) {
	t.Parallel()

	record, err := DecodeAnalysis(map[string]any{
		"insufficientData": true,
		"reason":           "generic name",
		"suggestions":      []any{"a", "b"},
	})
	require.NoError(t, err)
	assert.True(t, record.InsufficientData)
	assert.Equal(t, "generic name", record.Reason)
	assert.Equal(t, []string{"a", "b"}, record.Suggestions)
}

func TestNormalizeGeolocation(t *testing.T) {
	t.Parallel()

	var g model.Geolocation
	NormalizeGeolocation(&g)
	assert.Equal(t, model.SentinelNotSpecified, g.Headquarters)
	assert.NotNil(t, g.Offices)
	assert.NotNil(t, g.ServiceAreas)
	assert.NotNil(t, g.Markets)
	assert.NotNil(t, g.Regions)
}

func TestDecodeGeolocation(t *testing.T) {
	t.Parallel()

	geo, err := DecodeGeolocation(map[string]any{
		"headquarters": "Austin, TX",
		"markets":      []any{"North America"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Austin, TX", geo.Headquarters)
	assert.Equal(t, []string{"North America"}, geo.Markets)
	assert.Empty(t, geo.ServiceAreas)
}
