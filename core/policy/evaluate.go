// Package policy implements the pre/post execution gate and the per-item
// decision backends used by the slicer. The local rule table mirrors the
// compiled policy module rule for rule; divergence between the two is a
// correctness bug, not a style choice.
package policy

import (
	"context"
	"fmt"
	"strings"

	coreerrors "github.com/davidahmann/loom/core/errors"
	schemapolicy "github.com/davidahmann/loom/core/schema/v1/policy"
)

// DeniedPrefix starts every error raised by EvaluateOrThrow so callers can
// pattern-match denials.
const DeniedPrefix = "Policy denied: "

const (
	maxPayloadBytes = 10 * 1024 * 1024
	maxDurationMs   = 30000
)

// registeredSpecialists is the closed set of dispatch targets.
var registeredSpecialists = map[string]struct{}{
	"healer":    {},
	"analyzer":  {},
	"optimizer": {},
	"validator": {},
	"executor":  {},
}

// Evaluate applies the local rule table to a policy context. It is a pure
// function: every rule is evaluated independently and violations concatenate
// into one semicolon-joined reason.
func Evaluate(input schemapolicy.Context) schemapolicy.Decision {
	var violations []string
	switch input.Phase {
	case schemapolicy.PhasePre:
		violations = evaluatePre(input.Data)
	case schemapolicy.PhasePost:
		violations = evaluatePost(input.Data)
	default:
		violations = []string{fmt.Sprintf("unknown_phase: %q is not a recognized policy phase", input.Phase)}
	}
	if len(violations) > 0 {
		return schemapolicy.Decision{Allowed: false, Reason: strings.Join(violations, "; ")}
	}
	return schemapolicy.Decision{Allowed: true}
}

// EvaluateOrThrow converts a denial into an error prefixed with
// DeniedPrefix; an allowed context returns nil.
func EvaluateOrThrow(input schemapolicy.Context) error {
	decision := Evaluate(input)
	if decision.Allowed {
		return nil
	}
	return coreerrors.Wrap(
		fmt.Errorf("%s%s", DeniedPrefix, decision.Reason),
		coreerrors.CategoryPolicyBlocked,
		"policy_denied",
		"",
		false,
	)
}

func evaluatePre(data schemapolicy.ContextData) []string {
	target := ""
	if data.Meta != nil {
		target = strings.TrimSpace(data.Meta.TargetSpecialist)
	}

	violations := make([]string, 0, 4)
	if data.Payload != nil {
		if containsField(data.Payload.SliceFields, "selectorHistory") && target != "healer" {
			violations = append(violations, "selector_history_leak: selectorHistory may only be sliced for the healer specialist")
		}
		if scope := data.Payload.WriteScope; scope != "" && !strings.HasPrefix(scope, "healing/") {
			violations = append(violations, fmt.Sprintf("invalid_write_scope: write scope %q must start with healing/", scope))
		}
		if data.Payload.Size > maxPayloadBytes {
			violations = append(violations, fmt.Sprintf("payload_too_large: payload size %d exceeds %d bytes", data.Payload.Size, maxPayloadBytes))
		}
	}
	if _, ok := registeredSpecialists[target]; !ok {
		violations = append(violations, fmt.Sprintf("unregistered_specialist: %q is not a registered specialist", target))
	}
	return violations
}

func evaluatePost(data schemapolicy.ContextData) []string {
	if data.Result == nil {
		return []string{"missing_result: post-phase context carries no result"}
	}
	violations := make([]string, 0, 2)
	if data.Result.Status == "success" && data.Result.Error != "" {
		violations = append(violations, "inconsistent_result: status is success but an error is present")
	}
	if data.Result.DurationMs > maxDurationMs {
		violations = append(violations, fmt.Sprintf("execution_timeout: duration %dms exceeds %dms", data.Result.DurationMs, maxDurationMs))
	}
	return violations
}

func containsField(fields []string, wanted string) bool {
	for _, field := range fields {
		if field == wanted {
			return true
		}
	}
	return false
}

// PhaseBackend is the compiled policy module boundary for whole-phase
// decisions.
type PhaseBackend interface {
	EvaluatePhase(ctx context.Context, input schemapolicy.Context) (schemapolicy.Decision, error)
}

// Evaluator gates execution phases. With a compiled backend configured it
// defers to it and falls back to the local table when the backend is
// unreachable; disabled mode always allows.
type Evaluator struct {
	Disabled bool
	Backend  PhaseBackend
}

func (e Evaluator) Evaluate(ctx context.Context, input schemapolicy.Context) schemapolicy.Decision {
	if e.Disabled {
		return schemapolicy.Decision{Allowed: true, Reason: "policy evaluation disabled"}
	}
	if e.Backend != nil {
		decision, err := e.Backend.EvaluatePhase(ctx, input)
		if err == nil {
			return decision
		}
	}
	return Evaluate(input)
}

func (e Evaluator) EvaluateOrThrow(ctx context.Context, input schemapolicy.Context) error {
	decision := e.Evaluate(ctx, input)
	if decision.Allowed {
		return nil
	}
	return coreerrors.Wrap(
		fmt.Errorf("%s%s", DeniedPrefix, decision.Reason),
		coreerrors.CategoryPolicyBlocked,
		"policy_denied",
		"",
		false,
	)
}
