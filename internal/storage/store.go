package storage

import (
	"context"

	"hypermlp/internal/model"
)

// Store persists search runs together with their per-fold evaluation records,
// generation diagnostics and lineage.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run model.RunRecord) error
	GetRun(ctx context.Context, id string) (model.RunRecord, bool, error)
	// ListRuns returns runs newest first.
	ListRuns(ctx context.Context) ([]model.RunRecord, error)
	AppendEvaluation(ctx context.Context, runID string, record model.EvaluationRecord) error
	// ListEvaluations returns a run's records in append order.
	ListEvaluations(ctx context.Context, runID string) ([]model.EvaluationRecord, error)
	SaveGenerationDiagnostics(ctx context.Context, runID string, diagnostics []model.GenerationDiagnostics) error
	GetGenerationDiagnostics(ctx context.Context, runID string) ([]model.GenerationDiagnostics, bool, error)
	SaveLineage(ctx context.Context, runID string, lineage []model.LineageRecord) error
	GetLineage(ctx context.Context, runID string) ([]model.LineageRecord, bool, error)
}
