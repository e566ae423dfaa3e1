package policy

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/davidahmann/loom/core/activity"
	schemaactivity "github.com/davidahmann/loom/core/schema/v1/activity"
	schemapolicy "github.com/davidahmann/loom/core/schema/v1/policy"
)

// HTTPBackend submits policy inputs to a compiled-policy endpoint (an
// OPA-style decision service). All calls go through the activity client so
// remote decisions are recorded and replayed like any other I/O.
type HTTPBackend struct {
	Client   *activity.Client
	Endpoint string
}

func (b *HTTPBackend) EvaluateItem(ctx context.Context, input ItemInput) (schemapolicy.ItemDecision, error) {
	var decision schemapolicy.ItemDecision
	if err := b.post(ctx, input, &decision); err != nil {
		return schemapolicy.ItemDecision{}, err
	}
	return decision, nil
}

func (b *HTTPBackend) EvaluatePhase(ctx context.Context, input schemapolicy.Context) (schemapolicy.Decision, error) {
	var decision schemapolicy.Decision
	if err := b.post(ctx, input, &decision); err != nil {
		return schemapolicy.Decision{}, err
	}
	return decision, nil
}

func (b *HTTPBackend) post(ctx context.Context, input, out any) error {
	if b.Client == nil {
		return fmt.Errorf("policy backend requires an activity client")
	}
	if b.Endpoint == "" {
		return fmt.Errorf("policy backend endpoint is required")
	}
	body, err := json.Marshal(input)
	if err != nil {
		return fmt.Errorf("encode policy input: %w", err)
	}
	response, err := b.Client.HTTPRequest(ctx, b.Endpoint, schemaactivity.HTTPRequestOptions{
		Method:  "POST",
		Headers: map[string]string{"content-type": "application/json"},
		Body:    string(body),
	})
	if err != nil {
		return fmt.Errorf("policy backend request: %w", err)
	}
	if response.Status != 200 {
		return fmt.Errorf("policy backend returned status %d", response.Status)
	}
	if err := json.Unmarshal([]byte(response.Body), out); err != nil {
		return fmt.Errorf("decode policy decision: %w", err)
	}
	return nil
}
