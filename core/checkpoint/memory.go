package checkpoint

import (
	"context"
	"sync"

	"github.com/davidahmann/loom/core/schema/v1/activity"
)

type stepKey struct {
	traceID   string
	stepIndex int
}

// MemoryStore is an in-process Checkpointer. Safe for concurrent use across
// traces; records are kept in insertion order per (trace, step).
type MemoryStore struct {
	mu    sync.RWMutex
	steps map[stepKey][]activity.Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{steps: make(map[stepKey][]activity.Record)}
}

func (s *MemoryStore) SaveActivity(_ context.Context, record activity.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := stepKey{traceID: record.TraceID, stepIndex: record.StepIndex}
	s.steps[key] = append(s.steps[key], record)
	return nil
}

func (s *MemoryStore) ActivitiesForStep(_ context.Context, traceID string, stepIndex int) ([]activity.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	records := s.steps[stepKey{traceID: traceID, stepIndex: stepIndex}]
	out := make([]activity.Record, len(records))
	copy(out, records)
	return out, nil
}

func (s *MemoryStore) ActivityByTypeAndHash(_ context.Context, traceID string, stepIndex int, activityType, requestHash string) (activity.Record, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, record := range s.steps[stepKey{traceID: traceID, stepIndex: stepIndex}] {
		if record.ActivityType == activityType && record.RequestHash == requestHash {
			return record, true, nil
		}
	}
	return activity.Record{}, false, nil
}
