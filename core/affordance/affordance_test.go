package affordance

import (
	"sort"
	"testing"

	"github.com/davidahmann/loom/core/schema/v1/evidence"
	schemapack "github.com/davidahmann/loom/core/schema/v1/pack"
)

func textItem(id string, score float64, text string) evidence.Item {
	return evidence.Item{ID: id, Score: score, Content: map[string]any{"text": text}}
}

func byType(affordances []schemapack.Affordance) map[string]schemapack.Affordance {
	out := make(map[string]schemapack.Affordance, len(affordances))
	for _, a := range affordances {
		out[a.Type] = a
	}
	return out
}

func TestSingleFailureDoesNotTriggerRetry(t *testing.T) {
	items := []evidence.Item{
		textItem("a", 0.9, "Checkout test failed on submit"),
		textItem("b", 0.8, "All other suites passed"),
	}
	if _, present := byType(Generate(items))[schemapack.AffordanceRetryWithHealing]; present {
		t.Fatal("retry_with_healing fired on a single failure signal")
	}
}

func TestRetryConfidenceGrowsWithFailureCount(t *testing.T) {
	two := []evidence.Item{
		textItem("a", 0.9, "Login test failed"),
		textItem("b", 0.8, "Timeout waiting for dashboard"),
	}
	four := append(two,
		textItem("c", 0.7, "Assertion mismatch in totals"),
		textItem("d", 0.6, "Unhandled exception in teardown"),
	)

	retryTwo, ok := byType(Generate(two))[schemapack.AffordanceRetryWithHealing]
	if !ok {
		t.Fatal("retry_with_healing missing for two failures")
	}
	if got := retryTwo.Parameters["failureCount"]; got != 2 {
		t.Fatalf("failureCount=%v want 2", got)
	}

	retryFour, ok := byType(Generate(four))[schemapack.AffordanceRetryWithHealing]
	if !ok {
		t.Fatal("retry_with_healing missing for four failures")
	}
	if retryFour.Confidence <= retryTwo.Confidence {
		t.Fatalf("confidence must grow with count: %v vs %v", retryFour.Confidence, retryTwo.Confidence)
	}
	if retryFour.Confidence > 1 {
		t.Fatalf("confidence %v exceeds 1", retryFour.Confidence)
	}
}

func TestSelectorVocabularySuggestsFix(t *testing.T) {
	items := []evidence.Item{
		textItem("a", 0.9, "Element not found: #submit-button"),
		textItem("b", 0.8, "xpath //div[3] no longer resolves"),
	}
	fix, ok := byType(Generate(items))[schemapack.AffordanceSuggestFix]
	if !ok {
		t.Fatal("suggest_fix missing")
	}
	if fix.Confidence != 0.85 {
		t.Fatalf("confidence=%v want 0.85", fix.Confidence)
	}
	if fix.Parameters["suggestedStrategy"] != "data-testid" {
		t.Fatalf("suggestedStrategy=%v", fix.Parameters["suggestedStrategy"])
	}
	if fix.Parameters["affectedTests"] != 2 {
		t.Fatalf("affectedTests=%v want 2", fix.Parameters["affectedTests"])
	}
}

func TestFlakinessSuggestsRerun(t *testing.T) {
	items := []evidence.Item{textItem("a", 0.9, "This spec is flaky under load")}
	rerun, ok := byType(Generate(items))[schemapack.AffordanceRerunTests]
	if !ok {
		t.Fatal("rerun_tests missing")
	}
	if rerun.Confidence != 0.75 || rerun.Parameters["suggestedRuns"] != 5 {
		t.Fatalf("unexpected rerun affordance: %+v", rerun)
	}
}

func TestSparseLowScoreEvidenceRequestsMoreContext(t *testing.T) {
	items := []evidence.Item{
		textItem("a", 0.3, "Minor note"),
		textItem("b", 0.4, "Another minor note"),
	}
	more, ok := byType(Generate(items))[schemapack.AffordanceRequestMoreContext]
	if !ok {
		t.Fatal("request_more_context missing")
	}
	if more.Confidence != 0.6 || more.Parameters["currentResults"] != 2 {
		t.Fatalf("unexpected affordance: %+v", more)
	}
}

func TestHighQualityEvidenceDoesNotRequestMoreContext(t *testing.T) {
	items := []evidence.Item{
		textItem("a", 0.9, "Strong signal"),
		textItem("b", 0.8, "Strong signal"),
	}
	if _, present := byType(Generate(items))[schemapack.AffordanceRequestMoreContext]; present {
		t.Fatal("request_more_context fired despite high-quality evidence")
	}

	many := make([]evidence.Item, 6)
	for i := range many {
		many[i] = textItem("m", 0.1, "weak")
	}
	if _, present := byType(Generate(many))[schemapack.AffordanceRequestMoreContext]; present {
		t.Fatal("request_more_context fired despite plentiful evidence")
	}
}

func TestCriticalVocabularyEscalates(t *testing.T) {
	items := []evidence.Item{textItem("a", 0.9, "Possible data loss in order table")}
	escalate, ok := byType(Generate(items))[schemapack.AffordanceEscalateToHuman]
	if !ok {
		t.Fatal("escalate_to_human missing")
	}
	if escalate.Confidence != 0.95 || escalate.Parameters["severity"] != "high" {
		t.Fatalf("unexpected affordance: %+v", escalate)
	}
}

func TestOutputSortedCappedAndDeduplicated(t *testing.T) {
	// Trips every family at once.
	items := []evidence.Item{
		textItem("a", 0.2, "Security check failed for flaky selector"),
		textItem("b", 0.3, "Timeout on xpath lookup, intermittent"),
	}
	out := Generate(items)
	if len(out) > MaxAffordances {
		t.Fatalf("len=%d exceeds cap", len(out))
	}
	if !sort.SliceIsSorted(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence }) {
		t.Fatalf("not sorted by confidence desc: %+v", out)
	}
	seen := map[string]bool{}
	for _, a := range out {
		if seen[a.Type] {
			t.Fatalf("duplicate type %s", a.Type)
		}
		seen[a.Type] = true
	}
}

func TestCustomClampsConfidence(t *testing.T) {
	if got := Custom(schemapack.AffordanceCustom, "manual", 1.7, nil).Confidence; got != 1 {
		t.Fatalf("confidence=%v want 1", got)
	}
	if got := Custom(schemapack.AffordanceCustom, "manual", -0.3, nil).Confidence; got != 0 {
		t.Fatalf("confidence=%v want 0", got)
	}
	if got := Custom(schemapack.AffordanceCustom, "manual", 0.42, nil).Confidence; got != 0.42 {
		t.Fatalf("confidence=%v want 0.42", got)
	}
}

func TestNoSignalsNoSuggestions(t *testing.T) {
	items := []evidence.Item{
		textItem("a", 0.9, "All suites green"),
		textItem("b", 0.85, "Deployment completed"),
	}
	if out := Generate(items); len(out) != 0 {
		t.Fatalf("expected no affordances, got %+v", out)
	}
}
