// Package pack defines the context pack artifact delivered to a specialist:
// the slice plus its extractive summary and suggested next actions.
package pack

import (
	"time"

	"github.com/davidahmann/loom/core/schema/v1/slice"
)

const (
	SchemaID      = "loom.pack.context"
	SchemaVersion = "1.0.0"
)

// Affordance types form a closed set plus "custom".
const (
	AffordanceRetryWithHealing   = "retry_with_healing"
	AffordanceSuggestFix         = "suggest_fix"
	AffordanceRerunTests         = "rerun_tests"
	AffordanceRequestMoreContext = "request_more_context"
	AffordanceEscalateToHuman    = "escalate_to_human"
	AffordanceCustom             = "custom"
)

// Affordance is a suggested next action derived from evidence patterns.
// Confidence is always clamped into [0,1] at construction.
type Affordance struct {
	Type        string         `json:"type"`
	Description string         `json:"description"`
	Confidence  float64        `json:"confidence"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// Summary is the extractive summary over a slice's included items.
type Summary struct {
	Text      string   `json:"text"`
	Citations []string `json:"citations"`
}

// Pack is the assembled artifact. PackDigest is the sha256 of the JCS
// canonical pack JSON with the digest field cleared.
type Pack struct {
	SchemaID        string       `json:"schema_id"`
	SchemaVersion   string       `json:"schema_version"`
	CreatedAt       time.Time    `json:"created_at"`
	ProducerVersion string       `json:"producer_version"`
	PackID          string       `json:"pack_id"`
	SpecialistID    string       `json:"specialist_id"`
	TraceID         string       `json:"trace_id,omitempty"`
	Slice           slice.Slice  `json:"slice"`
	Summary         Summary      `json:"summary"`
	Affordances     []Affordance `json:"affordances"`
	PackDigest      string       `json:"pack_digest,omitempty"`
}
