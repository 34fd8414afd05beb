package evo

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"github.com/sourcegraph/conc/pool"

	"hypermlp/internal/model"
)

type PopulationConfig struct {
	// Size must be even and at least 4. Zero means DefaultPopulationSize.
	Size   int
	Bounds Bounds
	// Workers bounds concurrent fitness evaluations. Zero means 1.
	Workers   int
	Evaluator FitnessEvaluator
	// Postprocessor, when set, adjusts the scores used to pick survivors and
	// crossover parents.
	Postprocessor FitnessPostprocessor
	Rand          *rand.Rand
}

type LineageRecord = model.LineageRecord

// Population runs the generational genetic search. It is not safe for
// concurrent use; parallelism happens inside Evaluate.
type Population struct {
	cfg        PopulationConfig
	rng        *rand.Rand
	members    []*Candidate
	best       *Candidate
	generation int
	rerolls    int
	lineage    []LineageRecord
}

func NewPopulation(cfg PopulationConfig) (*Population, error) {
	if cfg.Evaluator == nil {
		return nil, errors.New("fitness evaluator is required")
	}
	if cfg.Rand == nil {
		return nil, errors.New("random source is required")
	}
	if cfg.Size == 0 {
		cfg.Size = DefaultPopulationSize
	}
	if cfg.Size < 4 || cfg.Size%2 != 0 {
		return nil, fmt.Errorf("population size must be even and >= 4: %d", cfg.Size)
	}
	if cfg.Bounds == (Bounds{}) {
		cfg.Bounds = DefaultBounds()
	}
	if err := cfg.Bounds.Validate(); err != nil {
		return nil, err
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}

	p := &Population{cfg: cfg, rng: cfg.Rand, members: make([]*Candidate, 0, cfg.Size)}
	for i := 0; i < cfg.Size; i++ {
		c := &Candidate{ID: p.nextID(i), config: cfg.Bounds.Random(p.rng)}
		p.members = append(p.members, c)
		p.lineage = append(p.lineage, LineageRecord{CandidateID: c.ID, Operation: "seed"})
	}
	p.best = p.members[0].Clone(p.members[0].ID)
	return p, nil
}

func (p *Population) nextID(index int) string {
	return fmt.Sprintf("g%d-i%d", p.generation, index)
}

func (p *Population) Generation() int {
	return p.generation
}

func (p *Population) Size() int {
	return p.cfg.Size
}

func (p *Population) Bounds() Bounds {
	return p.cfg.Bounds
}

// Members returns the current generation in its stored order.
func (p *Population) Members() []*Candidate {
	return append([]*Candidate(nil), p.members...)
}

// Best returns a copy of the best candidate seen so far. Before the first
// ranking it is an unevaluated copy of the first member.
func (p *Population) Best() *Candidate {
	return p.best.Clone(p.best.ID)
}

func (p *Population) Lineage() []LineageRecord {
	return append([]LineageRecord(nil), p.lineage...)
}

// Evaluate computes the fitness of every member without a cached score, up to
// Workers at a time. Each evaluation gets its own random source seeded from
// the population source in member order, so results do not depend on
// scheduling.
func (p *Population) Evaluate(ctx context.Context) error {
	type job struct {
		candidate *Candidate
		seed      int64
	}
	seen := make(map[*Candidate]struct{}, len(p.members))
	jobs := make([]job, 0, len(p.members))
	for _, c := range p.members {
		if _, ok := seen[c]; ok || c.fitness.evaluated {
			continue
		}
		seen[c] = struct{}{}
		jobs = append(jobs, job{candidate: c, seed: p.rng.Int63()})
	}
	if len(jobs) == 0 {
		return ctx.Err()
	}

	workers := p.cfg.Workers
	if workers > len(jobs) {
		workers = len(jobs)
	}
	wp := pool.New().WithContext(ctx).WithMaxGoroutines(workers).WithCancelOnError()
	for _, j := range jobs {
		wp.Go(func(ctx context.Context) error {
			if _, err := j.candidate.Evaluate(ctx, p.cfg.Evaluator, rand.New(rand.NewSource(j.seed))); err != nil {
				return fmt.Errorf("evaluate candidate %s: %w", j.candidate.ID, err)
			}
			return nil
		})
	}
	return wp.Wait()
}

// Refresh evaluates the current generation, ranks it and records a new best
// when the top member is strictly fitter than the best seen so far.
func (p *Population) Refresh(ctx context.Context) ([]*Candidate, error) {
	if err := p.Evaluate(ctx); err != nil {
		return nil, err
	}
	ranked, err := Rank(p.members)
	if err != nil {
		return nil, err
	}
	top := ranked[0].fitness.score
	if best, ok := p.best.fitness.Score(); !ok || top > best {
		p.best = ranked[0].Clone(ranked[0].ID)
	}
	return ranked, nil
}

// NextGeneration replaces the population. The two fittest members carry over
// unchanged; then the fittest remaining member is crossed with a uniformly
// random other one, both parents leave the pool and both children join the
// next generation, until size/2-1 pairings have been made.
func (p *Population) NextGeneration(ctx context.Context) error {
	ranked, err := p.Refresh(ctx)
	if err != nil {
		return err
	}
	if p.cfg.Postprocessor != nil {
		if ranked, err = RankBy(ranked, p.cfg.Postprocessor); err != nil {
			return err
		}
	}

	p.generation++
	next := make([]*Candidate, 0, p.cfg.Size)
	next = append(next, ranked[0], ranked[1])
	p.lineage = append(p.lineage,
		LineageRecord{CandidateID: ranked[0].ID, ParentIDs: []string{ranked[0].ID}, Generation: p.generation, Operation: "elite"},
		LineageRecord{CandidateID: ranked[1].ID, ParentIDs: []string{ranked[1].ID}, Generation: p.generation, Operation: "elite"},
	)

	remaining := ranked
	pairings := p.cfg.Size/2 - 1
	for i := 0; i < pairings; i++ {
		anchor := remaining[0]
		mate := 1 + p.rng.Intn(len(remaining)-1)
		partner := remaining[mate]

		averaged, copied := Crossover(anchor, partner, p.nextID(len(next)), p.nextID(len(next)+1))
		next = append(next, averaged, copied)
		parents := []string{anchor.ID, partner.ID}
		p.lineage = append(p.lineage,
			LineageRecord{CandidateID: averaged.ID, ParentIDs: parents, Generation: p.generation, Operation: "crossover_average"},
			LineageRecord{CandidateID: copied.ID, ParentIDs: []string{anchor.ID}, Generation: p.generation, Operation: "crossover_copy"},
		)

		remaining = append(remaining[:mate:mate], remaining[mate+1:]...)
		remaining = remaining[1:]
	}
	p.members = next
	return nil
}

// Mutate applies events full re-rolls, each to a uniformly chosen member.
// A re-rolled member takes a fresh id so records of its old configuration
// stay distinct. It returns the new ids.
func (p *Population) Mutate(events int) []string {
	ids := make([]string, 0, events)
	for i := 0; i < events; i++ {
		c := p.members[p.rng.Intn(len(p.members))]
		parent := c.ID
		c.Reroll(p.cfg.Bounds, p.rng)
		c.ID = fmt.Sprintf("g%d-r%d", p.generation, p.rerolls)
		p.rerolls++
		ids = append(ids, c.ID)
		p.lineage = append(p.lineage, LineageRecord{CandidateID: c.ID, ParentIDs: []string{parent}, Generation: p.generation, Operation: "reroll"})
	}
	return ids
}
