package evo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"hypermlp/internal/model"
)

// DefaultMutationsPerGeneration is the number of re-rolls applied after each
// generational replacement.
const DefaultMutationsPerGeneration = 10

type RunResult struct {
	BestByGeneration      []float64                     `json:"best_by_generation"`
	GenerationDiagnostics []model.GenerationDiagnostics `json:"generation_diagnostics"`
	Best                  *Candidate                    `json:"-"`
	FinalPopulation       []*Candidate                  `json:"-"`
	Lineage               []LineageRecord               `json:"lineage"`
}

// PopulationMonitor drives a Population through a fixed generation budget.
type PopulationMonitor struct {
	Population *Population
	// MutationsPerGeneration defaults to DefaultMutationsPerGeneration; a
	// negative value disables mutation.
	MutationsPerGeneration int
	// Identifier groups members for diagnostics. Defaults to topology.
	Identifier SpecieIdentifier
	Logger     *slog.Logger
	// Observer, when set, receives each generation's diagnostics.
	Observer func(model.GenerationDiagnostics)
}

// Run advances the population generations times. Each generation replaces the
// population, applies mutation, then evaluates the new members so the
// best-ever candidate and diagnostics reflect them. The context is checked
// between generations and inside evaluation.
func (m *PopulationMonitor) Run(ctx context.Context, generations int) (RunResult, error) {
	if m.Population == nil {
		return RunResult{}, errors.New("population is required")
	}
	if generations <= 0 {
		return RunResult{}, fmt.Errorf("generations must be > 0")
	}
	mutations := m.MutationsPerGeneration
	if mutations == 0 {
		mutations = DefaultMutationsPerGeneration
	}
	if mutations < 0 {
		mutations = 0
	}
	identifier := m.Identifier
	if identifier == nil {
		identifier = TopologySpecieIdentifier{}
	}
	logger := m.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	p := m.Population
	bestHistory := make([]float64, 0, generations)
	diagnostics := make([]model.GenerationDiagnostics, 0, generations)
	var ranked []*Candidate
	for gen := 0; gen < generations; gen++ {
		if err := ctx.Err(); err != nil {
			return RunResult{}, err
		}
		if err := p.NextGeneration(ctx); err != nil {
			return RunResult{}, fmt.Errorf("generation %d: %w", p.Generation()+1, err)
		}
		rerolled := p.Mutate(mutations)

		var err error
		ranked, err = p.Refresh(ctx)
		if err != nil {
			return RunResult{}, fmt.Errorf("generation %d: %w", p.Generation(), err)
		}
		diag := summarizeGeneration(p.Generation(), ranked, p.best, identifier)
		bestHistory = append(bestHistory, diag.BestEverFitness)
		diagnostics = append(diagnostics, diag)

		logger.Info("generation complete",
			"generation", diag.Generation,
			"elite_fitness", diag.EliteFitness,
			"best_ever_fitness", diag.BestEverFitness,
			"mean_fitness", diag.MeanFitness,
			"species", diag.TopologyVariants,
			"rerolled", len(rerolled),
		)
		if m.Observer != nil {
			m.Observer(diag)
		}
	}

	return RunResult{
		BestByGeneration:      bestHistory,
		GenerationDiagnostics: diagnostics,
		Best:                  p.Best(),
		FinalPopulation:       ranked,
		Lineage:               p.Lineage(),
	}, nil
}

func summarizeGeneration(generation int, ranked []*Candidate, best *Candidate, identifier SpecieIdentifier) model.GenerationDiagnostics {
	diag := model.GenerationDiagnostics{Generation: generation}
	if len(ranked) == 0 {
		return diag
	}
	total := 0.0
	for _, c := range ranked {
		score, _ := c.fitness.Score()
		total += score
	}
	diag.EliteFitness, _ = ranked[0].fitness.Score()
	diag.BestEverFitness, _ = best.fitness.Score()
	diag.MeanFitness = total / float64(len(ranked))
	diag.EvaluatedCount = len(ranked)
	diag.TopologyVariants = CountSpecies(identifier, ranked)
	return diag
}
