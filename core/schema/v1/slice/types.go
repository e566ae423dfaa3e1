// Package slice defines the bounded, policy-compliant evidence subset
// delivered to a specialist, plus its budget accounting.
package slice

import (
	"github.com/davidahmann/loom/core/schema/v1/evidence"
	"github.com/davidahmann/loom/core/schema/v1/policy"
)

// Budget bounds a slice. A zero limit leaves that dimension unconstrained.
type Budget struct {
	MaxBytes  int `json:"maxBytes,omitempty"`
	MaxTokens int `json:"maxTokens,omitempty"`
	MaxItems  int `json:"maxItems,omitempty"`
}

// Unbounded reports whether no limit is configured.
func (b Budget) Unbounded() bool {
	return b.MaxBytes <= 0 && b.MaxTokens <= 0 && b.MaxItems <= 0
}

// BudgetUsage records what an assembled slice consumed. Tokens are
// estimated as ceil(bytes/4).
type BudgetUsage struct {
	Bytes  int `json:"bytes"`
	Tokens int `json:"tokens"`
	Items  int `json:"items"`
}

// Item is one admitted evidence item. RedactedContent is set only when the
// policy decision redacted fields; callers must prefer it over the original
// content when present.
type Item struct {
	Evidence        evidence.Item       `json:"evidence"`
	RedactedContent map[string]any      `json:"redactedContent,omitempty"`
	Bytes           int                 `json:"bytes"`
	Decision        policy.ItemDecision `json:"decision"`
}

// EffectiveContent returns the content a specialist is entitled to see.
func (i Item) EffectiveContent() map[string]any {
	if i.RedactedContent != nil {
		return i.RedactedContent
	}
	return i.Evidence.Content
}

// Slice is the audited result of slicing ranked evidence for one specialist.
//
// Invariant: TotalIncluded + TotalDroppedBudget + denied items ==
// TotalAvailable, where denied items are counted inside TotalRedacted
// alongside redacted-but-included ones.
type Slice struct {
	SpecialistID       string      `json:"specialistId"`
	TotalAvailable     int         `json:"totalAvailable"`
	TotalIncluded      int         `json:"totalIncluded"`
	TotalRedacted      int         `json:"totalRedacted"`
	TotalDroppedBudget int         `json:"totalDroppedBudget"`
	Items              []Item      `json:"items"`
	BudgetUsed         BudgetUsage `json:"budgetUsed"`
	BudgetLimits       Budget      `json:"budgetLimits"`
	Warnings           []string    `json:"warnings,omitempty"`
}
