// Package checkpoint defines the durable activity store the activity client
// records into and replays from, plus reference implementations: an
// in-process store for tests and embedding, and a SQLite store for durable
// single-node deployments.
package checkpoint

import (
	"context"

	"github.com/davidahmann/loom/core/schema/v1/activity"
)

// Checkpointer persists and looks up activity records. Implementations must
// preserve per-(trace, step) insertion order for ActivitiesForStep.
type Checkpointer interface {
	SaveActivity(ctx context.Context, record activity.Record) error
	ActivitiesForStep(ctx context.Context, traceID string, stepIndex int) ([]activity.Record, error)
	// ActivityByTypeAndHash returns the matching record, or ok=false when the
	// (trace, step, type, hash) key was never recorded.
	ActivityByTypeAndHash(ctx context.Context, traceID string, stepIndex int, activityType, requestHash string) (activity.Record, bool, error)
}
