package slicer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/davidahmann/loom/core/policy"
	"github.com/davidahmann/loom/core/schema/v1/evidence"
	schemapolicy "github.com/davidahmann/loom/core/schema/v1/policy"
	schemaslice "github.com/davidahmann/loom/core/schema/v1/slice"
)

func confidentialSpecialist() evidence.SpecialistMetadata {
	return evidence.SpecialistMetadata{ID: "analyzer", SecurityLevel: evidence.SecurityConfidential}
}

// itemOfBytes builds an item whose serialized content is exactly size bytes.
func itemOfBytes(id string, size int) evidence.Item {
	// {"t":"..."} costs 8 bytes of framing around the payload.
	padding := size - 8
	if padding < 0 {
		panic("size too small")
	}
	item := evidence.Item{
		ID:      id,
		Content: map[string]any{"t": strings.Repeat("a", padding)},
	}
	serialized, err := json.Marshal(item.Content)
	if err != nil {
		panic(err)
	}
	if len(serialized) != size {
		panic(fmt.Sprintf("item %s serialized to %d bytes, want %d", id, len(serialized), size))
	}
	return item
}

func localConfig(budget schemaslice.Budget) Config {
	return Config{Budget: budget, FallbackToLocal: true}
}

func TestMaxBytesAdmitsFirstFiveOfTen(t *testing.T) {
	items := make([]evidence.Item, 0, 10)
	for i := 0; i < 10; i++ {
		items = append(items, itemOfBytes(fmt.Sprintf("item-%d", i), 100))
	}

	out, err := Slice(context.Background(), confidentialSpecialist(), items, localConfig(schemaslice.Budget{MaxBytes: 500}))
	if err != nil {
		t.Fatalf("slice: %v", err)
	}
	if out.TotalIncluded != 5 {
		t.Fatalf("totalIncluded=%d want 5", out.TotalIncluded)
	}
	if out.TotalDroppedBudget != 5 {
		t.Fatalf("totalDroppedBudget=%d want 5", out.TotalDroppedBudget)
	}
	if out.BudgetUsed.Bytes != 500 {
		t.Fatalf("budgetUsed.bytes=%d want 500", out.BudgetUsed.Bytes)
	}
	if out.BudgetUsed.Tokens != 125 {
		t.Fatalf("budgetUsed.tokens=%d want 125", out.BudgetUsed.Tokens)
	}
	if len(out.Warnings) != 1 || !strings.Contains(out.Warnings[0], "Budget exhausted") {
		t.Fatalf("expected a single budget warning, got %v", out.Warnings)
	}
	for i, item := range out.Items {
		if want := fmt.Sprintf("item-%d", i); item.Evidence.ID != want {
			t.Fatalf("rank order broken at %d: got %s", i, item.Evidence.ID)
		}
	}
}

func TestMaxItemsStopsAdmission(t *testing.T) {
	items := []evidence.Item{itemOfBytes("a", 50), itemOfBytes("b", 50), itemOfBytes("c", 50)}
	out, err := Slice(context.Background(), confidentialSpecialist(), items, localConfig(schemaslice.Budget{MaxItems: 2}))
	if err != nil {
		t.Fatalf("slice: %v", err)
	}
	if out.TotalIncluded != 2 || out.TotalDroppedBudget != 1 {
		t.Fatalf("included=%d dropped=%d want 2/1", out.TotalIncluded, out.TotalDroppedBudget)
	}
}

func TestMaxTokensUsesCeilOfBytesOverFour(t *testing.T) {
	// Two 100-byte items: 25 tokens each. A 49-token cap admits only one.
	items := []evidence.Item{itemOfBytes("a", 100), itemOfBytes("b", 100)}
	out, err := Slice(context.Background(), confidentialSpecialist(), items, localConfig(schemaslice.Budget{MaxTokens: 49}))
	if err != nil {
		t.Fatalf("slice: %v", err)
	}
	if out.TotalIncluded != 1 {
		t.Fatalf("totalIncluded=%d want 1", out.TotalIncluded)
	}
	if out.BudgetUsed.Tokens != 25 {
		t.Fatalf("budgetUsed.tokens=%d want 25", out.BudgetUsed.Tokens)
	}
}

func TestUnboundedBudgetAdmitsEverything(t *testing.T) {
	items := []evidence.Item{itemOfBytes("a", 200), itemOfBytes("b", 200)}
	out, err := Slice(context.Background(), confidentialSpecialist(), items, localConfig(schemaslice.Budget{}))
	if err != nil {
		t.Fatalf("slice: %v", err)
	}
	if out.TotalIncluded != 2 || out.TotalDroppedBudget != 0 || len(out.Warnings) != 0 {
		t.Fatalf("unexpected slice: %+v", out)
	}
}

func TestDeniedItemsNeverCountAgainstBudget(t *testing.T) {
	items := []evidence.Item{
		{ID: "secret", Content: map[string]any{"key": "AKIA..."}, Metadata: evidence.Metadata{HasCredentials: true}},
		itemOfBytes("clean", 100),
	}
	out, err := Slice(context.Background(), confidentialSpecialist(), items, localConfig(schemaslice.Budget{MaxBytes: 100}))
	if err != nil {
		t.Fatalf("slice: %v", err)
	}
	if out.TotalRedacted != 1 {
		t.Fatalf("totalRedacted=%d want 1", out.TotalRedacted)
	}
	if out.TotalIncluded != 1 || out.Items[0].Evidence.ID != "clean" {
		t.Fatalf("clean item not admitted: %+v", out)
	}
	if out.TotalIncluded+out.TotalDroppedBudget+out.TotalRedacted != out.TotalAvailable {
		t.Fatalf("counters do not partition available items: %+v", out)
	}
}

func TestRedactionCopiesContentAndTagsFields(t *testing.T) {
	original := map[string]any{
		"text":         "login failed for user",
		"personalData": map[string]any{"email": "user@example.com"},
	}
	items := []evidence.Item{{
		ID:       "pii-item",
		Content:  original,
		Metadata: evidence.Metadata{ContainsPII: true},
	}}

	out, err := Slice(context.Background(), confidentialSpecialist(), items, localConfig(schemaslice.Budget{}))
	if err != nil {
		t.Fatalf("slice: %v", err)
	}
	if out.TotalIncluded != 1 || out.TotalRedacted != 1 {
		t.Fatalf("expected redacted-but-included item: %+v", out)
	}

	sliced := out.Items[0]
	if sliced.RedactedContent == nil {
		t.Fatal("redacted content missing")
	}
	if _, present := sliced.RedactedContent["personalData"]; present {
		t.Fatal("personalData survived redaction")
	}
	if sliced.RedactedContent["_redacted"] != true {
		t.Fatal("redaction tag missing")
	}
	fields, ok := sliced.RedactedContent["_redactedFields"].([]string)
	if !ok || len(fields) != 1 || fields[0] != policy.RedactedPersonalDataField {
		t.Fatalf("unexpected _redactedFields: %v", sliced.RedactedContent["_redactedFields"])
	}
	if _, present := original["_redacted"]; present {
		t.Fatal("original content mutated")
	}
	if _, present := original["personalData"]; !present {
		t.Fatal("original content lost personalData")
	}
	if sliced.EffectiveContent()["text"] != "login failed for user" {
		t.Fatal("non-redacted fields must survive")
	}
}

func TestBudgetSizesUseRedactedContent(t *testing.T) {
	content := map[string]any{
		"t":            "x",
		"personalData": map[string]any{"blob": strings.Repeat("p", 4096)},
	}
	items := []evidence.Item{{ID: "pii", Content: content, Metadata: evidence.Metadata{ContainsPII: true}}}

	out, err := Slice(context.Background(), confidentialSpecialist(), items, localConfig(schemaslice.Budget{MaxBytes: 256}))
	if err != nil {
		t.Fatalf("slice: %v", err)
	}
	if out.TotalIncluded != 1 {
		t.Fatalf("redacted item should fit after personalData removal: %+v", out)
	}
	if out.Items[0].Bytes > 256 {
		t.Fatalf("recorded size %d exceeds budget", out.Items[0].Bytes)
	}
}

type errorBackend struct{}

func (errorBackend) EvaluateItem(context.Context, policy.ItemInput) (schemapolicy.ItemDecision, error) {
	return schemapolicy.ItemDecision{}, fmt.Errorf("connection refused")
}

func TestBackendFailureFallsBackToLocalRules(t *testing.T) {
	items := []evidence.Item{
		itemOfBytes("clean", 50),
		{ID: "secret", Content: map[string]any{"k": "v"}, Metadata: evidence.Metadata{HasCredentials: true}},
	}
	out, err := Slice(context.Background(), confidentialSpecialist(), items, Config{
		Backend:         errorBackend{},
		FallbackToLocal: true,
	})
	if err != nil {
		t.Fatalf("slice: %v", err)
	}
	if out.TotalIncluded != 1 || out.TotalRedacted != 1 {
		t.Fatalf("local fallback rules not applied: %+v", out)
	}
	if len(out.Warnings) != 1 || !strings.Contains(out.Warnings[0], "local fallback") {
		t.Fatalf("expected one fallback warning, got %v", out.Warnings)
	}
}

func TestBackendFailureWithoutFallbackDeniesByDefault(t *testing.T) {
	items := []evidence.Item{itemOfBytes("a", 50), itemOfBytes("b", 50)}
	out, err := Slice(context.Background(), confidentialSpecialist(), items, Config{
		Backend:         errorBackend{},
		FallbackToLocal: false,
	})
	if err != nil {
		t.Fatalf("slice: %v", err)
	}
	if out.TotalIncluded != 0 {
		t.Fatalf("deny-by-default violated: %d items included", out.TotalIncluded)
	}
	if out.TotalRedacted != 2 {
		t.Fatalf("undecidable items must be counted as denied, got %d", out.TotalRedacted)
	}
	if len(out.Warnings) != 1 || out.Warnings[0] != WarnBackendUnavailable {
		t.Fatalf("expected single unavailable warning, got %v", out.Warnings)
	}
}

type allowAllBackend struct{ calls int }

func (b *allowAllBackend) EvaluateItem(context.Context, policy.ItemInput) (schemapolicy.ItemDecision, error) {
	b.calls++
	return schemapolicy.ItemDecision{Allow: true, Reason: "compiled allow"}, nil
}

func TestBackendDecisionPreferredOverLocal(t *testing.T) {
	backend := &allowAllBackend{}
	// Local rules would deny this credential-bearing item.
	items := []evidence.Item{{ID: "secret", Content: map[string]any{"k": "v"}, Metadata: evidence.Metadata{HasCredentials: true}}}

	out, err := Slice(context.Background(), confidentialSpecialist(), items, Config{
		Backend:         backend,
		FallbackToLocal: true,
	})
	if err != nil {
		t.Fatalf("slice: %v", err)
	}
	if out.TotalIncluded != 1 {
		t.Fatalf("backend allow ignored: %+v", out)
	}
	if backend.calls != 1 {
		t.Fatalf("backend calls=%d want 1", backend.calls)
	}
	if len(out.Warnings) != 0 {
		t.Fatalf("no warnings expected, got %v", out.Warnings)
	}
}

func TestCanceledContextAborts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Slice(ctx, confidentialSpecialist(), []evidence.Item{itemOfBytes("a", 50)}, localConfig(schemaslice.Budget{})); err == nil {
		t.Fatal("expected context error")
	}
}
