// Package activity defines the persisted record of one non-deterministic
// operation and the request/response shapes the activity client wraps.
package activity

import (
	"encoding/json"
	"time"
)

// Activity types. Every recorded operation is exactly one of these.
const (
	TypeTime   = "time"
	TypeRandom = "random"
	TypeHTTP   = "http"
	TypeA2A    = "a2a"
)

// Record is one persisted activity. Created once during recording; read-only
// during replay. Owned by the Checkpointer store, not by this core.
type Record struct {
	TraceID         string          `json:"traceId"`
	StepIndex       int             `json:"stepIndex"`
	ActivityType    string          `json:"activityType"`
	RequestHash     string          `json:"requestHash"`
	RequestData     json.RawMessage `json:"requestData,omitempty"`
	ResponseData    json.RawMessage `json:"responseData,omitempty"`
	ResponseBlobRef string          `json:"responseBlobRef,omitempty"`
	Timestamp       time.Time       `json:"timestamp"`
	DurationMs      int64           `json:"durationMs"`
	Error           string          `json:"error,omitempty"`
}

// HTTPRequestOptions is the normalized shape hashed and persisted for an
// outbound HTTP call.
type HTTPRequestOptions struct {
	Method  string            `json:"method,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    string            `json:"body,omitempty"`
}

// HTTPResponse is the persisted outcome of an outbound HTTP call.
type HTTPResponse struct {
	Status  int               `json:"status"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    string            `json:"body,omitempty"`
}

// A2AEnvelope is the agent-to-agent message shape accepted by the transport.
type A2AEnvelope struct {
	Meta    map[string]any `json:"meta"`
	Payload map[string]any `json:"payload"`
}

// A2AAck is the transport acknowledgement for a dispatched envelope.
type A2AAck struct {
	Status        string `json:"status"`
	CorrelationID string `json:"correlationId,omitempty"`
}
