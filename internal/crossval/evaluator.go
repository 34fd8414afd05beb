package crossval

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"hypermlp/internal/model"
	"hypermlp/internal/training"
)

// Evaluator scores a configuration by two-fold cross-validation: train on
// fold A and test on fold B, then swap. Fitness is the sum of both test
// accuracies, so it lies in [0, 2].
type Evaluator struct {
	Folds [2]model.Fold
	// Base supplies the training controls that are not genetically encoded.
	// The zero value means training.DefaultParams.
	Base training.Params
	Sink Sink
	// Now defaults to time.Now.
	Now func() time.Time
}

// Report holds the fold runs behind one fitness value.
type Report struct {
	Fitness float64                  `json:"fitness"`
	Runs    []model.EvaluationRecord `json:"runs"`
}

func (e *Evaluator) Evaluate(ctx context.Context, candidateID string, cfg model.HyperConfig, rng *rand.Rand) (float64, error) {
	report, err := e.EvaluateReport(ctx, candidateID, cfg, rng)
	if err != nil {
		return 0, err
	}
	return report.Fitness, nil
}

func (e *Evaluator) EvaluateReport(ctx context.Context, candidateID string, cfg model.HyperConfig, rng *rand.Rand) (Report, error) {
	if e == nil {
		return Report{}, errors.New("evaluator is required")
	}
	if rng == nil {
		return Report{}, errors.New("random source is required")
	}
	if e.Folds[0].Len() == 0 || e.Folds[1].Len() == 0 {
		return Report{}, errors.New("both folds must contain samples")
	}
	now := e.Now
	if now == nil {
		now = time.Now
	}

	base := e.Base
	if base == (training.Params{}) {
		base = training.DefaultParams()
	}
	params := base.WithConfig(cfg)
	report := Report{Runs: make([]model.EvaluationRecord, 0, len(e.Folds))}
	for fold := range e.Folds {
		train, test := e.Folds[fold], e.Folds[1-fold]
		trainer := &training.Trainer{Params: params, Rand: rng, Now: e.Now}

		trainStart := now()
		network, result, err := trainer.Fit(ctx, cfg.Topology(), train)
		if err != nil {
			return Report{}, fmt.Errorf("fold %d train on %s: %w", fold+1, train.Name, err)
		}
		trainTime := now().Sub(trainStart)

		testStart := now()
		accuracy := training.Test(network, test)
		testTime := now().Sub(testStart)

		record := model.EvaluationRecord{
			CandidateID:   candidateID,
			Fold:          fold + 1,
			Config:        cfg.Clone(),
			TrainAccuracy: result.Accuracy,
			TrainTime:     trainTime,
			TestTime:      testTime,
			TestAccuracy:  accuracy,
			Iterations:    result.Iterations,
			Mutations:     result.Mutations,
		}
		if e.Sink != nil {
			if err := e.Sink.Append(ctx, record); err != nil {
				return Report{}, fmt.Errorf("record fold %d: %w", fold+1, err)
			}
		}
		report.Runs = append(report.Runs, record)
		report.Fitness += accuracy
	}
	return report, nil
}
