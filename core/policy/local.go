package policy

import (
	"context"
	"fmt"
	"strings"

	"github.com/davidahmann/loom/core/schema/v1/evidence"
	schemapolicy "github.com/davidahmann/loom/core/schema/v1/policy"
)

// Sensitivity ceilings per specialist security level. Confidential clearance
// is never denied on sensitivity alone.
const (
	sensitivityCeilingPublic   = 0.3
	sensitivityCeilingInternal = 0.8
	minimumTrust               = 0.3
)

// RedactedPersonalDataField is the field path removed for PII-bearing items.
const RedactedPersonalDataField = "$.content.personalData"

// ItemInput is the per-item payload submitted to a policy backend. The JSON
// layout matches the compiled module's input document.
type ItemInput struct {
	Specialist evidence.SpecialistMetadata `json:"specialist"`
	Item       evidence.Item               `json:"item"`
}

// ItemBackend produces per-item decisions for the slicer.
type ItemBackend interface {
	EvaluateItem(ctx context.Context, input ItemInput) (schemapolicy.ItemDecision, error)
}

// LocalRules is the bundled fallback rule table, kept behaviorally
// equivalent to the compiled policy module.
type LocalRules struct{}

func (LocalRules) EvaluateItem(_ context.Context, input ItemInput) (schemapolicy.ItemDecision, error) {
	return EvaluateItemLocal(input.Specialist, input.Item), nil
}

// EvaluateItemLocal runs the fallback gates against one evidence item.
// Every decision carries a reason naming the violated gate for audit.
func EvaluateItemLocal(specialist evidence.SpecialistMetadata, item evidence.Item) schemapolicy.ItemDecision {
	meta := item.Metadata

	if meta.HasCredentials || meta.ContainsSecrets {
		return schemapolicy.ItemDecision{
			Allow:  false,
			Reason: "credential_gate: item carries credentials or secrets",
		}
	}

	if len(meta.RestrictedToGroups) > 0 && !groupsIntersect(meta.RestrictedToGroups, specialist.AuthorizedGroups) {
		return schemapolicy.ItemDecision{
			Allow: false,
			Reason: fmt.Sprintf("group_gate: item restricted to [%s], specialist authorized for [%s]",
				strings.Join(meta.RestrictedToGroups, ", "), strings.Join(specialist.AuthorizedGroups, ", ")),
		}
	}

	if trust := meta.EffectiveTrust(); trust < minimumTrust {
		return schemapolicy.ItemDecision{
			Allow:  false,
			Reason: fmt.Sprintf("trust_gate: effective trust %.2f below minimum %.2f", trust, minimumTrust),
		}
	}

	if ceiling, bounded := sensitivityCeiling(specialist.EffectiveSecurityLevel()); bounded && meta.Sensitivity > ceiling {
		return schemapolicy.ItemDecision{
			Allow: false,
			Reason: fmt.Sprintf("sensitivity_gate: sensitivity %.2f exceeds ceiling %.2f for %s clearance",
				meta.Sensitivity, ceiling, specialist.EffectiveSecurityLevel()),
		}
	}

	if meta.ContainsPII || meta.HasPersonalData {
		return schemapolicy.ItemDecision{
			Allow:          true,
			Redact:         true,
			RedactedFields: []string{RedactedPersonalDataField},
			Reason:         "pii_gate: personal data redacted before delivery",
		}
	}

	return schemapolicy.ItemDecision{Allow: true, Reason: "allowed"}
}

func sensitivityCeiling(securityLevel string) (float64, bool) {
	switch securityLevel {
	case evidence.SecurityInternal:
		return sensitivityCeilingInternal, true
	case evidence.SecurityConfidential:
		return 0, false
	default:
		return sensitivityCeilingPublic, true
	}
}

func groupsIntersect(restricted, authorized []string) bool {
	if len(authorized) == 0 {
		return false
	}
	allowed := make(map[string]struct{}, len(authorized))
	for _, group := range authorized {
		allowed[group] = struct{}{}
	}
	for _, group := range restricted {
		if _, ok := allowed[group]; ok {
			return true
		}
	}
	return false
}
