package pipeline

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/brandscope/overview-service/internal/model"
)

// genericNamePatterns deny obviously placeholder company names. Matching is
// case-insensitive, exact or prefix.
var genericNamePatterns = []string{
	"tech corp",
	"abc company",
	"test company",
	"my company",
	"sample company",
	"example corp",
	"company name",
	"business name",
	"xyz corp",
}

// meaningfulSentinels are values that look like data but carry none.
var meaningfulSentinels = map[string]struct{}{
	model.SentinelNotAvailable:   {},
	"Unknown":                    {},
	model.SentinelAnalysisDone:   {},
	model.SentinelAnalysisParsed: {},
}

const minOverviewLength = 20

// StandardSuggestions is the fixed remediation list returned with every
// insufficient-data verdict.
func StandardSuggestions() []string {
	return []string{
		"Please verify the company name is correct and complete",
		"Provide a valid website URL for the company",
		"Avoid overly generic company names",
		"Check the spelling of the company name",
	}
}

// EvaluateCompany gates a company before any expensive work. A missing
// website alone does not fail the check: a specific company name is enough
// to attempt an analysis.
func EvaluateCompany(company model.Company) model.Verdict {
	name := strings.ToLower(strings.TrimSpace(company.Name))
	if name == "" {
		return model.InsufficientVerdict("Company name is empty", StandardSuggestions())
	}
	for _, pattern := range genericNamePatterns {
		if name == pattern || strings.HasPrefix(name, pattern) {
			zap.L().Info("sufficiency: generic company name rejected",
				zap.String("company", company.Name),
			)
			return model.InsufficientVerdict(
				fmt.Sprintf("Company name %q appears to be generic or a placeholder", company.Name),
				StandardSuggestions(),
			)
		}
	}
	return model.SufficientVerdict()
}

// EvaluateAnalysis is the backstop applied before any CRM write. It accepts
// an analysis only when at least one core field carries real data.
func EvaluateAnalysis(analysis *model.AnalysisRecord) model.Verdict {
	if analysis == nil {
		return model.InsufficientVerdict("No analysis was produced", StandardSuggestions())
	}
	if analysis.InsufficientData {
		reason := analysis.Reason
		if reason == "" {
			reason = "The model reported insufficient data about this company"
		}
		suggestions := analysis.Suggestions
		if len(suggestions) == 0 {
			suggestions = StandardSuggestions()
		}
		return model.InsufficientVerdict(reason, suggestions)
	}

	if overview := strings.TrimSpace(analysis.Overview); overview != "" {
		if _, sentinel := meaningfulSentinels[overview]; !sentinel && len(overview) < minOverviewLength {
			return model.InsufficientVerdict(
				"The generated overview is too short to be meaningful",
				StandardSuggestions(),
			)
		}
	}

	if !hasMeaningfulData(analysis) {
		return model.InsufficientVerdict(
			"The analysis contains no meaningful data about this company",
			StandardSuggestions(),
		)
	}
	return model.SufficientVerdict()
}

// hasMeaningfulData checks the core fields for any real content. String
// fields count only when non-empty after trimming and not a sentinel;
// sequence fields count only when non-empty.
func hasMeaningfulData(analysis *model.AnalysisRecord) bool {
	for _, v := range []string{
		analysis.Overview,
		analysis.Mission,
		analysis.TargetMarket,
		analysis.BrandPositioning,
	} {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, sentinel := meaningfulSentinels[v]; !sentinel {
			return true
		}
	}
	return len(analysis.Products) > 0
}
