// Package slicer applies per-item policy decisions and budget accounting to
// a ranked evidence list, producing the bounded, audited slice delivered to
// one specialist. Enforcement never aborts a request: denials, redactions,
// and budget drops degrade item by item with auditable reasons and warnings.
package slicer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/davidahmann/loom/core/logging"
	"github.com/davidahmann/loom/core/policy"
	"github.com/davidahmann/loom/core/schema/v1/evidence"
	schemapolicy "github.com/davidahmann/loom/core/schema/v1/policy"
	schemaslice "github.com/davidahmann/loom/core/schema/v1/slice"
)

// WarnBackendUnavailable is recorded when no policy source can decide items.
// With fallback disabled the slicer denies by default: clearance cannot be
// assumed, so an undecidable item is never delivered.
const WarnBackendUnavailable = "OPA unavailable and fallback disabled"

// Config controls one slicing request.
type Config struct {
	Budget schemaslice.Budget

	// Backend is the compiled policy module, when configured. A nil backend
	// or a backend error falls through to the local rules if
	// FallbackToLocal is set.
	Backend         policy.ItemBackend
	FallbackToLocal bool

	Logger *zap.Logger
}

// Slice runs the per-item pipeline over ranked evidence in its given order.
func Slice(ctx context.Context, specialist evidence.SpecialistMetadata, ranked []evidence.Item, config Config) (schemaslice.Slice, error) {
	logger := logging.OrNop(config.Logger)

	out := schemaslice.Slice{
		SpecialistID:   specialist.ID,
		TotalAvailable: len(ranked),
		Items:          make([]schemaslice.Item, 0, len(ranked)),
		BudgetLimits:   config.Budget,
		Warnings:       []string{},
	}

	var (
		budgetExhausted   bool
		warnedFallback    bool
		warnedUnavailable bool
	)

	for _, item := range ranked {
		if err := ctx.Err(); err != nil {
			return schemaslice.Slice{}, err
		}

		decision, source := decide(ctx, specialist, item, config)
		switch source {
		case sourceFallback:
			if !warnedFallback {
				out.Warnings = append(out.Warnings, "policy backend unavailable; using local fallback rules")
				warnedFallback = true
			}
		case sourceUnavailable:
			if !warnedUnavailable {
				out.Warnings = append(out.Warnings, WarnBackendUnavailable)
				warnedUnavailable = true
			}
		}

		if !decision.Allow {
			out.TotalRedacted++
			logger.Debug("evidence item denied",
				zap.String("specialist", specialist.ID),
				zap.String("item", item.ID),
				zap.String("reason", decision.Reason))
			continue
		}

		content := item.Content
		var redacted map[string]any
		if decision.Redact {
			redacted = redactContent(item.Content, decision.RedactedFields)
			content = redacted
		}

		serialized, err := json.Marshal(content)
		if err != nil {
			return schemaslice.Slice{}, fmt.Errorf("serialize content for item %s: %w", item.ID, err)
		}
		size := len(serialized)

		if budgetExhausted || exceedsBudget(config.Budget, out.BudgetUsed, size) {
			if !budgetExhausted {
				budgetExhausted = true
				out.Warnings = append(out.Warnings, fmt.Sprintf(
					"Budget exhausted after %d items (%d bytes used); remaining evidence dropped",
					out.TotalIncluded, out.BudgetUsed.Bytes))
			}
			out.TotalDroppedBudget++
			continue
		}

		out.BudgetUsed.Bytes += size
		out.BudgetUsed.Items++
		out.BudgetUsed.Tokens = estimateTokens(out.BudgetUsed.Bytes)
		out.TotalIncluded++
		if decision.Redact {
			out.TotalRedacted++
		}
		out.Items = append(out.Items, schemaslice.Item{
			Evidence:        item,
			RedactedContent: redacted,
			Bytes:           size,
			Decision:        decision,
		})
	}

	logger.Info("slice assembled",
		zap.String("specialist", specialist.ID),
		zap.Int("available", out.TotalAvailable),
		zap.Int("included", out.TotalIncluded),
		zap.Int("redacted", out.TotalRedacted),
		zap.Int("droppedBudget", out.TotalDroppedBudget))
	return out, nil
}

type decisionSource int

const (
	sourceBackend decisionSource = iota
	sourceFallback
	sourceUnavailable
)

func decide(ctx context.Context, specialist evidence.SpecialistMetadata, item evidence.Item, config Config) (schemapolicy.ItemDecision, decisionSource) {
	input := policy.ItemInput{Specialist: specialist, Item: item}
	if config.Backend != nil {
		decision, err := config.Backend.EvaluateItem(ctx, input)
		if err == nil {
			return decision, sourceBackend
		}
	}
	if config.FallbackToLocal {
		return policy.EvaluateItemLocal(specialist, item), sourceFallback
	}
	return schemapolicy.ItemDecision{
		Allow:  false,
		Reason: "policy_backend_unavailable: no decision source, denying by default",
	}, sourceUnavailable
}

// exceedsBudget reports whether admitting size more bytes would cross any
// configured limit. Tokens are estimated as ceil(bytes/4).
func exceedsBudget(budget schemaslice.Budget, used schemaslice.BudgetUsage, size int) bool {
	if budget.MaxBytes > 0 && used.Bytes+size > budget.MaxBytes {
		return true
	}
	if budget.MaxTokens > 0 && estimateTokens(used.Bytes+size) > budget.MaxTokens {
		return true
	}
	if budget.MaxItems > 0 && used.Items+1 > budget.MaxItems {
		return true
	}
	return false
}

func estimateTokens(bytes int) int {
	return (bytes + 3) / 4
}

// redactContent deep-copies content with the given field paths removed and
// tags the copy so downstream consumers can see what was withheld.
func redactContent(content map[string]any, fieldPaths []string) map[string]any {
	out := deepCopyMap(content)
	for _, path := range fieldPaths {
		removeFieldPath(out, path)
	}
	out["_redacted"] = true
	out["_redactedFields"] = append([]string(nil), fieldPaths...)
	return out
}

// removeFieldPath deletes a "$.content.x.y" style path from the content
// map. The leading "$.content." names the item content root.
func removeFieldPath(content map[string]any, path string) {
	trimmed := strings.TrimPrefix(path, "$.content.")
	trimmed = strings.TrimPrefix(trimmed, "$.")
	if trimmed == "" || strings.HasPrefix(trimmed, "$") {
		return
	}
	segments := strings.Split(trimmed, ".")
	current := content
	for i, segment := range segments {
		if i == len(segments)-1 {
			delete(current, segment)
			return
		}
		next, ok := current[segment].(map[string]any)
		if !ok {
			return
		}
		current = next
	}
}

func deepCopyMap(input map[string]any) map[string]any {
	out := make(map[string]any, len(input))
	for key, value := range input {
		out[key] = deepCopyValue(value)
	}
	return out
}

func deepCopyValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		return deepCopyMap(typed)
	case []any:
		copied := make([]any, len(typed))
		for i, element := range typed {
			copied[i] = deepCopyValue(element)
		}
		return copied
	default:
		return value
	}
}
