package evo

import (
	"context"
	"math/rand"
	"sync"

	"hypermlp/internal/model"
)

// countingEvaluator scores a configuration deterministically and counts calls.
type countingEvaluator struct {
	mu    sync.Mutex
	calls map[string]int
	total int
	err   error
}

func (e *countingEvaluator) Evaluate(ctx context.Context, candidateID string, cfg model.HyperConfig, _ *rand.Rand) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.calls == nil {
		e.calls = map[string]int{}
	}
	e.calls[candidateID]++
	e.total++
	if e.err != nil {
		return 0, e.err
	}
	return configScore(cfg), nil
}

func (e *countingEvaluator) Total() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.total
}

func configScore(cfg model.HyperConfig) float64 {
	neurons := 0
	for _, w := range cfg.HiddenLayers {
		neurons += w
	}
	return float64(neurons)/100 + cfg.Gain
}

func testConfig(layers ...int) model.HyperConfig {
	return model.HyperConfig{
		HiddenLayers:      layers,
		Gain:              1,
		TargetAccuracy:    0.99,
		StagnationWindow:  100,
		MutationIntensity: 10,
	}
}

func evaluatedCandidate(id string, score float64) *Candidate {
	return &Candidate{ID: id, config: testConfig(3), fitness: Evaluated(score)}
}
