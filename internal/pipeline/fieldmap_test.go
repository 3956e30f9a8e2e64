package pipeline

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brandscope/overview-service/internal/model"
	"github.com/brandscope/overview-service/pkg/notify"
)

type recordingSink struct {
	mu     sync.Mutex
	events []notify.Event
}

func (s *recordingSink) Notify(_ context.Context, ev notify.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func fullAnalysis() *model.AnalysisRecord {
	a := &model.AnalysisRecord{
		Overview:            "Acme Dynamics builds warehouse automation robotics for logistics providers.",
		Mission:             "Automate every warehouse",
		Products:            []string{"Picking arm", "Conveyor system"},
		TargetMarket:        "Mid-size logistics providers",
		BrandPositioning:    "Premium automation partner",
		CompanySize:         "450 employees",
		AnnualRevenue:       "$25 billion",
		OnlineRevenue:       "$2 million",
		AOV:                 "$150,000",
		OrderVolume:         "300 units/year",
		SalesChannels:       []string{"Direct sales", "Partners"},
		DecisionMakers:      []string{"CTO", "VP Operations"},
		MarketingIndicators: "Active LinkedIn presence",
		TechStack:           []string{"AWS", "ROS"},
		RecentNews:          []string{"Series C raised", "New Austin facility"},
		WebsiteTraffic:      "120K monthly visits (SimilarWeb estimate)",
	}
	NormalizeAnalysis(a)
	return a
}

func fullGeolocation() *model.Geolocation {
	return &model.Geolocation{
		Headquarters: "Austin, TX",
		ServiceAreas: []string{"United States", "Canada"},
		Markets:      []string{"North America"},
	}
}

func TestMapToCRMFields_AllKeysPopulated(t *testing.T) {
	t.Parallel()

	mapper := NewMapper(nil)
	fields := mapper.MapToCRMFields(context.Background(), model.Company{Name: "Acme Dynamics"}, fullAnalysis(), fullGeolocation())

	for _, name := range model.CRMFieldNames {
		assert.Contains(t, fields, name, name)
		assert.NotEmpty(t, fields[name], name)
	}
	assert.NotEqual(t, model.SentinelDataNotFound, fields[model.FieldOverview])
	assert.Equal(t, "• Picking arm\n• Conveyor system", fields[model.FieldProductServices])
	assert.Equal(t, "Direct sales, Partners", fields[model.FieldSalesChannels])
	assert.Equal(t, "• Series C raised\n• New Austin facility", fields[model.FieldRecentNews])
	assert.Equal(t, "Large", fields[model.FieldBrandSizeScale])
}

func TestMapToCRMFields_BillionRevenueBudget(t *testing.T) {
	t.Parallel()

	mapper := NewMapper(nil)
	fields := mapper.MapToCRMFields(context.Background(), model.Company{Name: "Acme"}, fullAnalysis(), fullGeolocation())

	assert.Equal(t, "$25 billion", fields[model.FieldBrandRevenue])
	assert.Equal(t, "$1,250,000,000 (calculated from $25 billion revenue)", fields[model.FieldMarketingBudget])
}

func TestMapToCRMFields_CroreRevenueBudget(t *testing.T) {
	t.Parallel()

	analysis := fullAnalysis()
	analysis.AnnualRevenue = "₹50 crore"

	mapper := NewMapper(nil)
	fields := mapper.MapToCRMFields(context.Background(), model.Company{Name: "Acme"}, analysis, fullGeolocation())

	assert.Equal(t, "$25,000,000 (calculated from ₹50 crore revenue)", fields[model.FieldMarketingBudget])
}

func TestMapToCRMFields_ExplicitBudgetWins(t *testing.T) {
	t.Parallel()

	analysis := fullAnalysis()
	analysis.MarketingBudget = "$3 million annually"

	mapper := NewMapper(nil)
	fields := mapper.MapToCRMFields(context.Background(), model.Company{Name: "Acme"}, analysis, fullGeolocation())
	assert.Equal(t, "$3 million annually", fields[model.FieldMarketingBudget])
}

func TestMapToCRMFields_RevenueFieldPreferred(t *testing.T) {
	t.Parallel()

	analysis := fullAnalysis()
	analysis.Revenue = "$10 million"
	analysis.AnnualRevenue = "$99 billion"

	mapper := NewMapper(nil)
	fields := mapper.MapToCRMFields(context.Background(), model.Company{Name: "Acme"}, analysis, fullGeolocation())
	assert.Equal(t, "$10 million", fields[model.FieldBrandRevenue])
	assert.Equal(t, "$500,000 (calculated from $10 million revenue)", fields[model.FieldMarketingBudget])
}

func TestMapToCRMFields_NoParseableRevenue(t *testing.T) {
	t.Parallel()

	analysis := fullAnalysis()
	analysis.AnnualRevenue = model.SentinelNotPublic

	mapper := NewMapper(nil)
	fields := mapper.MapToCRMFields(context.Background(), model.Company{Name: "Acme"}, analysis, fullGeolocation())
	_, present := fields[model.FieldMarketingBudget]
	assert.False(t, present, "budget omitted when revenue cannot be parsed")
}

func TestMapToCRMFields_InsufficientTemplate(t *testing.T) {
	t.Parallel()

	mapper := NewMapper(nil)
	fields := mapper.MapToCRMFields(context.Background(), model.Company{Name: "Tech Corp"},
		&model.AnalysisRecord{InsufficientData: true}, nil)

	assert.Equal(t, model.SentinelDataNotFound, fields[model.FieldOverview])
	for _, name := range model.CRMFieldNames {
		assert.Contains(t, fields, name)
	}
	assert.Equal(t, insufficientFieldValue, fields[model.FieldBrandRevenue])
}

func TestMapToCRMFields_WebsiteTrafficSanitized(t *testing.T) {
	t.Parallel()

	mapper := NewMapper(nil)
	fields := mapper.MapToCRMFields(context.Background(), model.Company{Name: "Acme"}, fullAnalysis(), fullGeolocation())
	assert.Equal(t, "120K monthly visits", fields[model.FieldWebsiteTraffic])
}

func TestGeographicPresence_Full(t *testing.T) {
	t.Parallel()

	got := geographicPresence(fullGeolocation())
	assert.Equal(t, "Headquarters: Austin, TX; Service Areas: United States, Canada; Markets: North America", got)
}

func TestGeographicPresence_AllPlaceholders(t *testing.T) {
	t.Parallel()

	geo := &model.Geolocation{
		Headquarters: model.SentinelNotSpecified,
		ServiceAreas: []string{},
		Markets:      []string{},
	}
	assert.Equal(t, model.SentinelNoGeography, geographicPresence(geo))
}

func TestGeographicPresence_PlaceholderVariants(t *testing.T) {
	t.Parallel()

	for _, hq := range []string{"Unknown", "N/A", "", "  "} {
		geo := &model.Geolocation{Headquarters: hq}
		assert.Equal(t, model.SentinelNoGeography, geographicPresence(geo), "hq=%q", hq)
	}
}

func TestParseRevenue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in     string
		value  float64
		figure string
		ok     bool
	}{
		{"$25 billion", 25e9, "$25 billion", true},
		{"₹50 crore", 50e7, "₹50 crore", true},
		{"3.5 million", 3.5e6, "3.5 million", true},
		{"₹20 lakh", 2e6, "₹20 lakh", true},
		{"Approximately $1,200,000 in 2024", 1200000, "$1,200,000", true},
		{"Not publicly available", 0, "", false},
		{"", 0, "", false},
		{"no numbers here", 0, "", false},
	}
	for _, tc := range tests {
		value, figure, ok := parseRevenue(tc.in)
		assert.Equal(t, tc.ok, ok, tc.in)
		if tc.ok {
			assert.InDelta(t, tc.value, value, 0.01, tc.in)
			assert.Equal(t, tc.figure, figure, tc.in)
		}
	}
}

func TestFormatUSD(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "$1,250,000,000", formatUSD(1.25e9))
	assert.Equal(t, "$25,000,000", formatUSD(25e6))
	assert.Equal(t, "$500", formatUSD(500))
	assert.Equal(t, "$0", formatUSD(0))
}

func TestBrandSizeScale(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"10 employees", "Small"},
		{"120 employees", "Medium"},
		{"450 employees", "Large"},
		{"5,000 employees", "Enterprise"},
		{"Small business", "Small"},
		{"Enterprise", "Enterprise"},
		{"Large multinational", "Large"},
		{model.SentinelNotAvailable, model.SentinelNotAvailable},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, brandSizeScale(tc.in), tc.in)
	}
}

func TestValidateMapping(t *testing.T) {
	t.Parallel()

	assert.Error(t, ValidateMapping(model.FieldMapping{}))
	// Missing critical fields warn but do not error.
	assert.NoError(t, ValidateMapping(model.FieldMapping{model.FieldTechStack: "AWS"}))
	assert.NoError(t, ValidateMapping(InsufficientMapping()))
}

func TestMapToCRMFields_NilAnalysisUsesTemplate(t *testing.T) {
	t.Parallel()

	mapper := NewMapper(&recordingSink{})
	fields := mapper.MapToCRMFields(context.Background(), model.Company{Name: "Acme"}, nil, nil)
	require.NotNil(t, fields)
	assert.Equal(t, model.SentinelDataNotFound, fields[model.FieldOverview])
}

func TestFallbackMapping(t *testing.T) {
	t.Parallel()

	fallback := fallbackMapping(fullAnalysis(), fullGeolocation())
	assert.Len(t, fallback, 2)
	assert.Contains(t, fallback[model.FieldOverview], "Brand overview generated at")
	assert.Contains(t, fallback["Raw_Analysis_Data"], "Acme Dynamics builds")
}
