// Package affordance derives suggested next actions from ranked evidence by
// scanning aggregated textual content for known vocabulary families. At most
// one affordance is emitted per type; output is sorted by confidence
// descending and capped at five entries.
package affordance

import (
	"fmt"
	"sort"
	"strings"

	"github.com/davidahmann/loom/core/schema/v1/evidence"
	schemapack "github.com/davidahmann/loom/core/schema/v1/pack"
)

// MaxAffordances bounds the suggestion list delivered to a specialist.
const MaxAffordances = 5

var (
	failureVocabulary   = []string{"failed", "failure", "error", "timeout", "timed out", "exception", "assertion"}
	selectorVocabulary  = []string{"selector", "locator", "xpath", "css selector", "element not found"}
	flakinessVocabulary = []string{"flaky", "intermittent", "race condition", "timing issue"}
	criticalVocabulary  = []string{"critical", "security", "data loss", "data-loss", "corruption"}
)

// Generate scans evidence for actionable signals. Ordering of the input
// does not matter; only the aggregated text and scores do.
func Generate(ranked []evidence.Item) []schemapack.Affordance {
	texts := make([]string, len(ranked))
	for i, item := range ranked {
		texts[i] = strings.ToLower(itemText(item))
	}

	var out []schemapack.Affordance

	if count := matchingItems(texts, failureVocabulary); count >= 2 {
		out = append(out, schemapack.Affordance{
			Type:        schemapack.AffordanceRetryWithHealing,
			Description: fmt.Sprintf("Retry the failed steps with selector healing enabled (%d failure signals)", count),
			Confidence:  clamp(0.5 + 0.1*float64(count)),
			Parameters:  map[string]any{"failureCount": count},
		})
	}

	if count := matchingItems(texts, selectorVocabulary); count > 0 {
		out = append(out, schemapack.Affordance{
			Type:        schemapack.AffordanceSuggestFix,
			Description: "Replace brittle selectors with stable data-testid attributes",
			Confidence:  0.85,
			Parameters:  map[string]any{"suggestedStrategy": "data-testid", "affectedTests": count},
		})
	}

	if matchingItems(texts, flakinessVocabulary) > 0 {
		out = append(out, schemapack.Affordance{
			Type:        schemapack.AffordanceRerunTests,
			Description: "Re-run the affected tests to confirm flakiness",
			Confidence:  0.75,
			Parameters:  map[string]any{"suggestedRuns": 5},
		})
	}

	if avg, sparse := lowRelevance(ranked); sparse {
		out = append(out, schemapack.Affordance{
			Type:        schemapack.AffordanceRequestMoreContext,
			Description: "Available evidence is sparse and weakly relevant; request more context",
			Confidence:  0.6,
			Parameters:  map[string]any{"currentResults": len(ranked), "avgRelevance": avg},
		})
	}

	if matchingItems(texts, criticalVocabulary) > 0 {
		out = append(out, schemapack.Affordance{
			Type:        schemapack.AffordanceEscalateToHuman,
			Description: "Critical signals detected; escalate to a human operator",
			Confidence:  0.95,
			Parameters:  map[string]any{"severity": "high"},
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Confidence > out[j].Confidence
	})
	if len(out) > MaxAffordances {
		out = out[:MaxAffordances]
	}
	return out
}

// Custom builds a caller-defined affordance with confidence clamped into
// [0,1].
func Custom(affordanceType, description string, confidence float64, parameters map[string]any) schemapack.Affordance {
	return schemapack.Affordance{
		Type:        affordanceType,
		Description: description,
		Confidence:  clamp(confidence),
		Parameters:  parameters,
	}
}

// matchingItems counts items whose text contains any term of the family.
// Each item counts once however many terms it matches.
func matchingItems(texts []string, family []string) int {
	count := 0
	for _, text := range texts {
		for _, term := range family {
			if strings.Contains(text, term) {
				count++
				break
			}
		}
	}
	return count
}

// lowRelevance reports whether the evidence set is both small and weakly
// scored. Plentiful or high-quality evidence must never trigger a
// request_more_context suggestion.
func lowRelevance(ranked []evidence.Item) (float64, bool) {
	if len(ranked) > 3 {
		return 0, false
	}
	if len(ranked) == 0 {
		return 0, true
	}
	total := 0.0
	for _, item := range ranked {
		total += item.Score
	}
	avg := total / float64(len(ranked))
	return avg, avg <= 0.5
}

func clamp(confidence float64) float64 {
	if confidence < 0 {
		return 0
	}
	if confidence > 1 {
		return 1
	}
	return confidence
}

func itemText(item evidence.Item) string {
	var parts []string
	for _, key := range []string{"text", "summary", "message", "description", "error"} {
		if value, ok := item.Content[key].(string); ok {
			parts = append(parts, value)
		}
	}
	if item.Reason != "" {
		parts = append(parts, item.Reason)
	}
	return strings.Join(parts, " ")
}
