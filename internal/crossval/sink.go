package crossval

import (
	"context"
	"sync"

	"hypermlp/internal/model"
)

// Sink receives one record per fold run. Append must make the record durable
// before it returns and must be safe for concurrent use.
type Sink interface {
	Append(ctx context.Context, record model.EvaluationRecord) error
}

// MultiSink appends to every sink in order and stops at the first error.
type MultiSink []Sink

func (m MultiSink) Append(ctx context.Context, record model.EvaluationRecord) error {
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.Append(ctx, record); err != nil {
			return err
		}
	}
	return nil
}

// MemorySink keeps records in memory.
type MemorySink struct {
	mu      sync.Mutex
	records []model.EvaluationRecord
}

func (s *MemorySink) Append(_ context.Context, record model.EvaluationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append(s.records, record)
	return nil
}

func (s *MemorySink) Records() []model.EvaluationRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]model.EvaluationRecord(nil), s.records...)
}
