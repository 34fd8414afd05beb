package storage

import (
	"context"
	"errors"
	"fmt"

	"hypermlp/internal/model"
)

// EvaluationSink appends fold records to a Store under one run id.
type EvaluationSink struct {
	Store Store
	RunID string
}

func (s EvaluationSink) Append(ctx context.Context, record model.EvaluationRecord) error {
	if s.Store == nil {
		return errors.New("store is required")
	}
	record.VersionedRecord = CurrentVersion()
	if err := s.Store.AppendEvaluation(ctx, s.RunID, record); err != nil {
		return fmt.Errorf("append evaluation for run %s: %w", s.RunID, err)
	}
	return nil
}
