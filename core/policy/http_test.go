package policy

import (
	"context"
	"testing"
	"time"

	"github.com/davidahmann/loom/core/activity"
	"github.com/davidahmann/loom/core/checkpoint"
	schemaactivity "github.com/davidahmann/loom/core/schema/v1/activity"
	"github.com/davidahmann/loom/core/schema/v1/evidence"
	schemapolicy "github.com/davidahmann/loom/core/schema/v1/policy"
)

type decisionServer struct {
	calls int
	body  string
}

func (d *decisionServer) Do(context.Context, string, schemaactivity.HTTPRequestOptions) (schemaactivity.HTTPResponse, error) {
	d.calls++
	return schemaactivity.HTTPResponse{Status: 200, Body: d.body}, nil
}

func TestHTTPBackendRecordsAndReplaysDecisions(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	server := &decisionServer{body: `{"allow":true,"redact":true,"redactedFields":["$.content.personalData"],"reason":"compiled pii rule"}`}

	recordClient, err := activity.NewClient(activity.Options{
		Mode:         activity.ModeRecord,
		TraceID:      "trace-policy",
		Checkpointer: store,
		BaseTime:     time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC),
		Seed:         1,
		HTTP:         server,
	})
	if err != nil {
		t.Fatalf("new record client: %v", err)
	}

	input := ItemInput{
		Specialist: evidence.SpecialistMetadata{ID: "healer", SecurityLevel: evidence.SecurityInternal},
		Item:       itemWithMetadata(evidence.Metadata{ContainsPII: true}),
	}

	backend := &HTTPBackend{Client: recordClient, Endpoint: "https://policy.internal/v1/data/loom/slice"}
	recorded, err := backend.EvaluateItem(context.Background(), input)
	if err != nil {
		t.Fatalf("record-mode item decision: %v", err)
	}
	if !recorded.Allow || !recorded.Redact || recorded.Reason != "compiled pii rule" {
		t.Fatalf("unexpected decision: %+v", recorded)
	}

	replayClient, err := activity.NewClient(activity.Options{
		Mode:         activity.ModeReplay,
		TraceID:      "trace-policy",
		Checkpointer: store,
	})
	if err != nil {
		t.Fatalf("new replay client: %v", err)
	}
	replayBackend := &HTTPBackend{Client: replayClient, Endpoint: "https://policy.internal/v1/data/loom/slice"}
	replayed, err := replayBackend.EvaluateItem(context.Background(), input)
	if err != nil {
		t.Fatalf("replay-mode item decision: %v", err)
	}
	if replayed.Allow != recorded.Allow || replayed.Reason != recorded.Reason {
		t.Fatalf("replayed decision differs: %+v vs %+v", replayed, recorded)
	}
	if server.calls != 1 {
		t.Fatalf("replay must not call the decision service, calls=%d", server.calls)
	}
}

func TestHTTPBackendRejectsNonOKStatus(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	client, err := activity.NewClient(activity.Options{
		Mode:         activity.ModeRecord,
		TraceID:      "trace-policy-bad",
		Checkpointer: store,
		BaseTime:     time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC),
		HTTP:         &statusDoer{status: 503},
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	backend := &HTTPBackend{Client: client, Endpoint: "https://policy.internal/v1/data/loom/slice"}
	if _, err := backend.EvaluatePhase(context.Background(), schemapolicy.Context{Phase: schemapolicy.PhasePre}); err == nil {
		t.Fatal("expected error for 503 decision response")
	}
}

type statusDoer struct {
	status int
}

func (s *statusDoer) Do(context.Context, string, schemaactivity.HTTPRequestOptions) (schemaactivity.HTTPResponse, error) {
	return schemaactivity.HTTPResponse{Status: s.status, Body: "unavailable"}, nil
}
