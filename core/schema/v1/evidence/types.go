// Package evidence defines the wire contract consumed from the upstream
// ranking engine (H4R) and the specialist identity supplied per request.
// Field names follow the upstream JSON contract and must not be renamed.
package evidence

import "time"

// DefaultTrust is the effective trust applied when metadata.trust is absent.
const DefaultTrust = 0.7

// Security levels for SpecialistMetadata. An absent level behaves as public.
const (
	SecurityPublic       = "public"
	SecurityInternal     = "internal"
	SecurityConfidential = "confidential"
)

// Signals carries the named ranking signals, each in [0,1].
type Signals struct {
	Recency            float64 `json:"recency"`
	Frequency          float64 `json:"frequency"`
	Importance         float64 `json:"importance"`
	Causality          float64 `json:"causality"`
	NoveltyInverse     float64 `json:"noveltyInverse"`
	Trust              float64 `json:"trust"`
	SensitivityInverse float64 `json:"sensitivityInverse"`
}

// Metadata holds provenance and enforcement inputs for one evidence item.
type Metadata struct {
	Source             string    `json:"source,omitempty"`
	CreatedAt          time.Time `json:"createdAt,omitempty"`
	AccessCount        int       `json:"accessCount,omitempty"`
	Importance         float64   `json:"importance,omitempty"`
	Trust              *float64  `json:"trust,omitempty"`
	Sensitivity        float64   `json:"sensitivity,omitempty"`
	ContainsPII        bool      `json:"containsPII,omitempty"`
	HasPersonalData    bool      `json:"hasPersonalData,omitempty"`
	HasCredentials     bool      `json:"hasCredentials,omitempty"`
	ContainsSecrets    bool      `json:"containsSecrets,omitempty"`
	RestrictedToGroups []string  `json:"restrictedToGroups,omitempty"`
}

// EffectiveTrust returns metadata.trust, or DefaultTrust when absent.
func (m Metadata) EffectiveTrust() float64 {
	if m.Trust == nil {
		return DefaultTrust
	}
	return *m.Trust
}

// Item is one ranked evidence item. Immutable once produced upstream.
type Item struct {
	ID          string         `json:"id"`
	Content     map[string]any `json:"content"`
	Score       float64        `json:"score"`
	Signals     Signals        `json:"signals"`
	Reason      string         `json:"reason,omitempty"`
	Explanation string         `json:"explanation,omitempty"`
	Metadata    Metadata       `json:"metadata"`
}

// SpecialistMetadata is the clearance of the agent receiving a slice.
// Provided per request, never persisted by this core.
type SpecialistMetadata struct {
	ID               string   `json:"id"`
	SecurityLevel    string   `json:"securityLevel,omitempty"`
	AuthorizedGroups []string `json:"authorizedGroups,omitempty"`
}

// EffectiveSecurityLevel normalizes an absent level to public.
func (s SpecialistMetadata) EffectiveSecurityLevel() string {
	switch s.SecurityLevel {
	case SecurityInternal, SecurityConfidential:
		return s.SecurityLevel
	default:
		return SecurityPublic
	}
}
