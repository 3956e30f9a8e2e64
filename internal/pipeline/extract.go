// Package pipeline implements the overview generation pipeline: response
// extraction, sufficiency gating, normalization, CRM field mapping, and the
// orchestrator that sequences them.
package pipeline

import (
	"encoding/json"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// extractPatterns are tried in order against the raw model output, most
// specific first.
var extractPatterns = []*regexp.Regexp{
	regexp.MustCompile("(?s)```json\\s*(\\{.*?\\})\\s*```"),
	regexp.MustCompile("(?s)```\\s*(\\{.*?\\})\\s*```"),
	regexp.MustCompile(`(?s)(\{.*\})`),
	regexp.MustCompile(`(?s)(\[.*\])`),
}

// insufficiencyIndicators are phrases a model emits instead of JSON when it
// cannot produce an analysis. Matching is case-insensitive.
var insufficiencyIndicators = []string{
	"insufficient data",
	"company not found",
	"generic company name",
	"misspelled",
	"not enough information",
	"unable to find",
}

const (
	degradedOverviewMax = 500
	degradedLineCount   = 5
	longTextThreshold   = 200
)

// ExtractJSON recovers a JSON object from raw model output. It strips
// markdown fences and falls back through progressively looser regex patterns.
// Returns the decoded object, or false when no parseable JSON exists.
func ExtractJSON(raw string) (map[string]any, bool) {
	cleaned := stripFences(raw)

	var obj map[string]any
	if err := json.Unmarshal([]byte(cleaned), &obj); err == nil {
		return obj, true
	}

	for _, pat := range extractPatterns {
		m := pat.FindStringSubmatch(raw)
		if m == nil {
			continue
		}
		if err := json.Unmarshal([]byte(m[1]), &obj); err == nil {
			return obj, true
		}
		// A matched array decodes to a single-element wrapper when its first
		// element is the analysis object.
		var arr []map[string]any
		if err := json.Unmarshal([]byte(m[1]), &arr); err == nil && len(arr) > 0 {
			return arr[0], true
		}
	}
	return nil, false
}

// ExtractAnalysis converts raw model output into a decoded analysis object.
// It never fails: when no JSON can be recovered it synthesizes a degraded
// object so the caller always has an analysis-shaped value to work with.
func ExtractAnalysis(raw string) map[string]any {
	if obj, ok := ExtractJSON(raw); ok {
		return obj
	}

	lower := strings.ToLower(raw)
	for _, indicator := range insufficiencyIndicators {
		if strings.Contains(lower, indicator) {
			zap.L().Info("extract: insufficiency indicator found in unparseable response",
				zap.String("indicator", indicator),
			)
			return map[string]any{
				"insufficientData": true,
				"reason":           "The model reported insufficient data about this company",
				"suggestions":      toAnySlice(StandardSuggestions()),
			}
		}
	}

	zap.L().Warn("extract: no JSON or indicators in response, synthesizing degraded analysis",
		zap.Int("length", len(raw)),
	)

	if len(raw) > longTextThreshold {
		return map[string]any{
			"overview":     truncate(joinLeadingLines(raw, degradedLineCount), degradedOverviewMax),
			"parsingError": true,
			"rawResponse":  raw,
		}
	}
	return map[string]any{
		"overview":     truncate(strings.TrimSpace(raw), degradedOverviewMax),
		"parsingError": true,
		"rawResponse":  raw,
	}
}

// stripFences removes a leading ```json or ``` fence and the trailing fence.
func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}
	return strings.TrimSpace(text)
}

// joinLeadingLines joins the first n non-trivial lines of text. Lines shorter
// than a few characters after trimming are skipped.
func joinLeadingLines(text string, n int) string {
	var picked []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if len(line) < 3 {
			continue
		}
		picked = append(picked, line)
		if len(picked) == n {
			break
		}
	}
	return strings.Join(picked, " ")
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}

func toAnySlice(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}
