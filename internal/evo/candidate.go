package evo

import (
	"context"
	"errors"
	"math/rand"

	"hypermlp/internal/model"
)

var ErrNotEvaluated = errors.New("candidate not evaluated")

// Fitness is either not evaluated or an evaluated score.
type Fitness struct {
	score     float64
	evaluated bool
}

func Evaluated(score float64) Fitness {
	return Fitness{score: score, evaluated: true}
}

func (f Fitness) Evaluated() bool {
	return f.evaluated
}

// Score returns the fitness value and whether it has been computed.
func (f Fitness) Score() (float64, bool) {
	return f.score, f.evaluated
}

// FitnessEvaluator turns a configuration into a fitness score. It is called
// concurrently for distinct candidates.
type FitnessEvaluator interface {
	Evaluate(ctx context.Context, candidateID string, cfg model.HyperConfig, rng *rand.Rand) (float64, error)
}

// Candidate is one configuration with its memoized fitness. Only the goroutine
// that owns a candidate may evaluate or change it.
type Candidate struct {
	ID      string
	config  model.HyperConfig
	fitness Fitness
}

func NewCandidate(id string, cfg model.HyperConfig) (*Candidate, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return &Candidate{ID: id, config: cfg.Clone()}, nil
}

func (c *Candidate) Config() model.HyperConfig {
	return c.config.Clone()
}

func (c *Candidate) Fitness() Fitness {
	return c.fitness
}

// Evaluate returns the cached fitness, computing it first if needed.
func (c *Candidate) Evaluate(ctx context.Context, evaluator FitnessEvaluator, rng *rand.Rand) (float64, error) {
	if c.fitness.evaluated {
		return c.fitness.score, nil
	}
	score, err := evaluator.Evaluate(ctx, c.ID, c.config.Clone(), rng)
	if err != nil {
		return 0, err
	}
	c.fitness = Evaluated(score)
	return score, nil
}

// SetConfig replaces the configuration and invalidates the cached fitness.
func (c *Candidate) SetConfig(cfg model.HyperConfig) error {
	if err := ValidateConfig(cfg); err != nil {
		return err
	}
	c.config = cfg.Clone()
	c.fitness = Fitness{}
	return nil
}

// Reroll replaces every gene with a fresh draw from bounds.
func (c *Candidate) Reroll(bounds Bounds, rng *rand.Rand) {
	c.config = bounds.Random(rng)
	c.fitness = Fitness{}
}

// Clone returns an independent copy under a new id, keeping the cached fitness.
func (c *Candidate) Clone(id string) *Candidate {
	return &Candidate{ID: id, config: c.config.Clone(), fitness: c.fitness}
}
