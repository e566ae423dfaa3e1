// Package policy defines the structured context submitted to the policy
// evaluator and the decisions it returns. The JSON layout mirrors the input
// contract of the compiled policy module, so field names are load-bearing.
package policy

// Evaluation phases.
const (
	PhasePre  = "pre"
	PhasePost = "post"
)

// GraphIdentity names the workflow graph a decision applies to.
type GraphIdentity struct {
	ID      string `json:"id"`
	Version string `json:"version,omitempty"`
}

// ExecutionIdentity pins a decision to one point in one trace.
type ExecutionIdentity struct {
	TraceID   string `json:"traceId"`
	StepIndex int    `json:"stepIndex"`
	NodeID    string `json:"nodeId,omitempty"`
}

// PreMeta carries pre-phase routing metadata.
type PreMeta struct {
	TargetSpecialist string `json:"targetSpecialist"`
}

// PrePayload describes what a pre-phase dispatch intends to deliver.
type PrePayload struct {
	SliceFields []string `json:"sliceFields,omitempty"`
	WriteScope  string   `json:"writeScope,omitempty"`
	Size        int64    `json:"size,omitempty"`
}

// PostResult describes the outcome a post-phase gate inspects.
type PostResult struct {
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"durationMs"`
}

// ContextData is the phase-specific payload: meta/payload are set for pre,
// result for post.
type ContextData struct {
	Meta    *PreMeta    `json:"meta,omitempty"`
	Payload *PrePayload `json:"payload,omitempty"`
	Result  *PostResult `json:"result,omitempty"`
}

// Context is the full input to one policy evaluation.
type Context struct {
	Phase     string            `json:"phase"`
	Graph     GraphIdentity     `json:"graph"`
	Execution ExecutionIdentity `json:"execution"`
	Data      ContextData       `json:"data"`
}

// Decision is the evaluator verdict for a whole execution phase.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// ItemDecision is the per-evidence-item verdict used by the slicer.
type ItemDecision struct {
	Allow          bool     `json:"allow"`
	Redact         bool     `json:"redact,omitempty"`
	RedactedFields []string `json:"redactedFields,omitempty"`
	Reason         string   `json:"reason,omitempty"`
}
