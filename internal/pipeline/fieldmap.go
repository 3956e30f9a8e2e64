package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/brandscope/overview-service/internal/model"
	"github.com/brandscope/overview-service/pkg/notify"
)

const (
	// marketingBudgetRate is the share of revenue assumed for marketing
	// spend when no explicit budget is reported.
	marketingBudgetRate = 0.05

	insufficientFieldValue = "Data not available - please provide correct company details"
)

// revenuePattern matches a currency figure with an optional magnitude unit,
// e.g. "$25 billion", "₹50 crore", "3.2 million", "1,200,000".
var revenuePattern = regexp.MustCompile(`(?i)([$₹€£]?)\s*([\d,]+(?:\.\d+)?)\s*(billion|million|crore|lakh)?`)

// parentheticalPattern strips confidence/source annotations like
// "(estimated)" or "(per SimilarWeb)".
var parentheticalPattern = regexp.MustCompile(`\s*\([^)]*\)`)

var employeeCountPattern = regexp.MustCompile(`[\d,]+`)

var magnitudeMultipliers = map[string]float64{
	"billion": 1e9,
	"million": 1e6,
	"crore":   1e7,
	"lakh":    1e5,
}

// geoPlaceholders are headquarters values that carry no information.
var geoPlaceholders = map[string]struct{}{
	model.SentinelNotSpecified: {},
	"Unknown":                  {},
	"N/A":                      {},
	"":                         {},
}

// Mapper translates a normalized analysis and geolocation into the external
// CRM field schema.
type Mapper struct {
	notifier notify.Sink
}

// NewMapper creates a Mapper. Mapping failures are reported to the sink.
func NewMapper(notifier notify.Sink) *Mapper {
	if notifier == nil {
		notifier = notify.NopSink{}
	}
	return &Mapper{notifier: notifier}
}

// MapToCRMFields builds the full CRM field mapping. It never panics past
// this boundary: an internal failure degrades to a minimal mapping carrying
// the raw analysis, and the failure is reported to the notification sink.
func (m *Mapper) MapToCRMFields(ctx context.Context, company model.Company, analysis *model.AnalysisRecord, geo *model.Geolocation) (fields model.FieldMapping) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("fieldmap: mapping panicked, using fallback",
				zap.String("company", company.Name),
				zap.Any("panic", r),
			)
			fields = fallbackMapping(analysis, geo)
			if err := m.notifier.Notify(ctx, notify.Event{
				Level:   notify.LevelError,
				Title:   "Field mapping degraded",
				Message: fmt.Sprintf("mapping panicked: %v", r),
				Fields:  map[string]string{"company": company.Name},
			}); err != nil {
				zap.L().Warn("fieldmap: notify failed", zap.Error(err))
			}
		}
	}()

	if analysis == nil || analysis.InsufficientData {
		return InsufficientMapping()
	}

	fields = model.FieldMapping{
		model.FieldOverview:         analysis.Overview,
		model.FieldProductServices:  bulletJoin(analysis.Products),
		model.FieldTargetMarket:     analysis.TargetMarket,
		model.FieldBrandPositioning: analysis.BrandPositioning,
		model.FieldCompanySize:      analysis.CompanySize,
		model.FieldBrandSizeScale:   brandSizeScale(analysis.CompanySize),
		model.FieldAOV:              analysis.AOV,
		model.FieldOrderVolume:      analysis.OrderVolume,
		model.FieldSalesChannels:    commaJoin(analysis.SalesChannels),
		model.FieldDecisionMakers:   commaJoin(analysis.DecisionMakers),
		model.FieldMarketingInd:     analysis.MarketingIndicators,
		model.FieldTechStack:        commaJoin(analysis.TechStack),
		model.FieldRecentNews:       bulletJoin(analysis.RecentNews),
		model.FieldWebsiteTraffic:   sanitizeTraffic(analysis.WebsiteTraffic),
		model.FieldGeographic:       geographicPresence(geo),
	}

	revenue := analysis.Revenue
	if revenue == "" {
		revenue = analysis.AnnualRevenue
	}
	fields[model.FieldBrandRevenue] = revenue
	fields[model.FieldOnlineRevenue] = analysis.OnlineRevenue

	if budget, ok := marketingBudget(analysis, revenue); ok {
		fields[model.FieldMarketingBudget] = budget
	}

	return fields
}

// InsufficientMapping returns the fixed template written when the analysis
// carries the insufficient-data marker. Overview holds the wire sentinel the
// CRM integration keys on.
func InsufficientMapping() model.FieldMapping {
	fields := make(model.FieldMapping, len(model.CRMFieldNames))
	for _, name := range model.CRMFieldNames {
		fields[name] = insufficientFieldValue
	}
	fields[model.FieldOverview] = model.SentinelDataNotFound
	return fields
}

// ValidateMapping checks a mapping before it is handed to the CRM writer.
// Missing critical fields are logged but tolerated; an empty mapping is not.
func ValidateMapping(fields model.FieldMapping) error {
	if len(fields) == 0 {
		return eris.New("fieldmap: mapping is empty")
	}
	for _, critical := range []string{model.FieldOverview, model.FieldGeographic} {
		if strings.TrimSpace(fields[critical]) == "" {
			zap.L().Warn("fieldmap: critical field missing", zap.String("field", critical))
		}
	}
	return nil
}

// marketingBudget returns the explicit budget when the model reported one,
// otherwise derives it as a share of parsed revenue. Returns false when no
// numeric revenue can be extracted.
func marketingBudget(analysis *model.AnalysisRecord, revenue string) (string, bool) {
	if b := strings.TrimSpace(analysis.MarketingBudget); b != "" && b != model.SentinelNotPublic && b != model.SentinelNotAvailable {
		return b, true
	}

	value, figure, ok := parseRevenue(revenue)
	if !ok {
		return "", false
	}
	budget := value * marketingBudgetRate
	return fmt.Sprintf("%s (calculated from %s revenue)", formatUSD(budget), figure), true
}

// parseRevenue extracts a numeric value from a revenue string. It returns
// the computed base value and the matched figure text for provenance.
func parseRevenue(revenue string) (float64, string, bool) {
	revenue = strings.TrimSpace(revenue)
	if revenue == "" || revenue == model.SentinelNotPublic || revenue == model.SentinelNotAvailable {
		return 0, "", false
	}

	m := revenuePattern.FindStringSubmatch(revenue)
	if m == nil {
		return 0, "", false
	}

	numeric := strings.ReplaceAll(m[2], ",", "")
	value, err := strconv.ParseFloat(numeric, 64)
	if err != nil || value == 0 {
		return 0, "", false
	}

	if unit := strings.ToLower(m[3]); unit != "" {
		value *= magnitudeMultipliers[unit]
	}
	return value, strings.TrimSpace(m[0]), true
}

// formatUSD renders a dollar amount with thousands separators, dropping the
// fractional part.
func formatUSD(v float64) string {
	whole := strconv.FormatInt(int64(v), 10)

	neg := strings.HasPrefix(whole, "-")
	digits := strings.TrimPrefix(whole, "-")

	var b strings.Builder
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(d)
	}
	if neg {
		return "-$" + b.String()
	}
	return "$" + b.String()
}

// geographicPresence assembles the Geographic_Presence value from the
// geolocation record. It is never empty: when nothing qualifies it falls
// back to the fixed unavailability string.
func geographicPresence(geo *model.Geolocation) string {
	if geo == nil {
		return model.SentinelNoGeography
	}

	var parts []string
	hq := strings.TrimSpace(geo.Headquarters)
	if _, placeholder := geoPlaceholders[hq]; !placeholder {
		parts = append(parts, "Headquarters: "+hq)
	}
	if len(geo.ServiceAreas) > 0 {
		parts = append(parts, "Service Areas: "+strings.Join(geo.ServiceAreas, ", "))
	}
	if len(geo.Markets) > 0 {
		parts = append(parts, "Markets: "+strings.Join(geo.Markets, ", "))
	}

	if len(parts) == 0 {
		return model.SentinelNoGeography
	}
	return strings.Join(parts, "; ")
}

// brandSizeScale classifies the company into a coarse size tier from its
// free-text companySize value.
func brandSizeScale(companySize string) string {
	size := strings.ToLower(companySize)
	switch {
	case strings.Contains(size, "enterprise"):
		return "Enterprise"
	case strings.Contains(size, "small"):
		return "Small"
	case strings.Contains(size, "medium") || strings.Contains(size, "mid-size"):
		return "Medium"
	}

	if m := employeeCountPattern.FindString(size); m != "" {
		if n, err := strconv.Atoi(strings.ReplaceAll(m, ",", "")); err == nil {
			switch {
			case n < 50:
				return "Small"
			case n < 250:
				return "Medium"
			case n < 1000:
				return "Large"
			default:
				return "Enterprise"
			}
		}
	}
	if strings.Contains(size, "large") {
		return "Large"
	}
	return model.SentinelNotAvailable
}

// sanitizeTraffic strips parenthetical annotations from traffic text.
func sanitizeTraffic(traffic string) string {
	return strings.TrimSpace(parentheticalPattern.ReplaceAllString(traffic, ""))
}

func bulletJoin(items []string) string {
	if len(items) == 0 {
		return model.SentinelNotAvailable
	}
	return "• " + strings.Join(items, "\n• ")
}

func commaJoin(items []string) string {
	if len(items) == 0 {
		return model.SentinelNotAvailable
	}
	return strings.Join(items, ", ")
}

// fallbackMapping is the last-resort mapping used when derivation fails. The
// raw analysis is preserved so nothing is silently lost.
func fallbackMapping(analysis *model.AnalysisRecord, geo *model.Geolocation) model.FieldMapping {
	dump, err := json.Marshal(map[string]any{"analysis": analysis, "geolocation": geo})
	if err != nil {
		dump = []byte("{}")
	}
	return model.FieldMapping{
		model.FieldOverview: fmt.Sprintf("Brand overview generated at %s", time.Now().UTC().Format(time.RFC3339)),
		"Raw_Analysis_Data": string(dump),
	}
}
