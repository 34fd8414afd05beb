package evo

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"hypermlp/internal/model"
)

func newTestPopulation(t *testing.T, size, workers int, ev FitnessEvaluator, seed int64) *Population {
	t.Helper()
	p, err := NewPopulation(PopulationConfig{
		Size:      size,
		Workers:   workers,
		Evaluator: ev,
		Rand:      rand.New(rand.NewSource(seed)),
	})
	if err != nil {
		t.Fatalf("new population: %v", err)
	}
	return p
}

func TestNewPopulationValidatesConfig(t *testing.T) {
	ev := &countingEvaluator{}
	rng := rand.New(rand.NewSource(1))
	bad := DefaultBounds()
	bad.Neurons.Min = 0
	tests := []struct {
		name string
		cfg  PopulationConfig
	}{
		{name: "missing evaluator", cfg: PopulationConfig{Size: 4, Rand: rng}},
		{name: "missing rand", cfg: PopulationConfig{Size: 4, Evaluator: ev}},
		{name: "odd size", cfg: PopulationConfig{Size: 7, Evaluator: ev, Rand: rng}},
		{name: "too small", cfg: PopulationConfig{Size: 2, Evaluator: ev, Rand: rng}},
		{name: "bad bounds", cfg: PopulationConfig{Size: 4, Bounds: bad, Evaluator: ev, Rand: rng}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewPopulation(tc.cfg); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}

	p, err := NewPopulation(PopulationConfig{Evaluator: ev, Rand: rng})
	if err != nil {
		t.Fatalf("default population: %v", err)
	}
	if len(p.Members()) != DefaultPopulationSize {
		t.Fatalf("expected default size %d, got %d", DefaultPopulationSize, len(p.Members()))
	}
	if p.Best().ID != p.Members()[0].ID || p.Best().Fitness().Evaluated() {
		t.Fatal("initial best must be an unevaluated copy of the first member")
	}
	if ev.Total() != 0 {
		t.Fatal("construction must not evaluate")
	}
}

func TestEvaluateParallelMatchesSequential(t *testing.T) {
	seq := newTestPopulation(t, 12, 1, &countingEvaluator{}, 3)
	ev := &countingEvaluator{}
	par := newTestPopulation(t, 12, 4, ev, 3)

	if err := seq.Evaluate(context.Background()); err != nil {
		t.Fatalf("sequential evaluate: %v", err)
	}
	if err := par.Evaluate(context.Background()); err != nil {
		t.Fatalf("parallel evaluate: %v", err)
	}
	for i, c := range par.Members() {
		want, _ := seq.Members()[i].Fitness().Score()
		got, ok := c.Fitness().Score()
		if !ok || got != want {
			t.Fatalf("member %d fitness=%f want=%f", i, got, want)
		}
	}
	if ev.Total() != 12 {
		t.Fatalf("expected one evaluation per member, got %d", ev.Total())
	}
	if err := par.Evaluate(context.Background()); err != nil {
		t.Fatalf("re-evaluate: %v", err)
	}
	if ev.Total() != 12 {
		t.Fatalf("cached members were evaluated again: %d", ev.Total())
	}
}

func TestEvaluatePropagatesErrors(t *testing.T) {
	p := newTestPopulation(t, 4, 2, &countingEvaluator{err: errors.New("train failed")}, 4)
	if err := p.Evaluate(context.Background()); err == nil {
		t.Fatal("expected evaluation error")
	}
	if _, err := p.Refresh(context.Background()); err == nil {
		t.Fatal("expected refresh error")
	}
}

func TestNextGenerationKeepsSizeAndElites(t *testing.T) {
	ev := &countingEvaluator{}
	p := newTestPopulation(t, 10, 2, ev, 5)

	ranked, err := p.Refresh(context.Background())
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	callsBefore := ev.Total()
	if err := p.NextGeneration(context.Background()); err != nil {
		t.Fatalf("next generation: %v", err)
	}
	members := p.Members()
	if len(members) != 10 {
		t.Fatalf("expected size 10, got %d", len(members))
	}
	if p.Generation() != 1 {
		t.Fatalf("expected generation 1, got %d", p.Generation())
	}
	if members[0] != ranked[0] || members[1] != ranked[1] {
		t.Fatal("two fittest members must carry over unchanged")
	}

	if _, err := p.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if got := ev.Total() - callsBefore; got != 10/2-1 {
		t.Fatalf("expected only averaged children to be evaluated, got %d calls", got)
	}

	ops := map[string]int{}
	for _, rec := range p.Lineage() {
		if rec.Generation == 1 {
			ops[rec.Operation]++
		}
	}
	if ops["elite"] != 2 || ops["crossover_average"] != 4 || ops["crossover_copy"] != 4 {
		t.Fatalf("unexpected lineage operations: %v", ops)
	}
}

func TestMutateInvalidatesFitness(t *testing.T) {
	ev := &countingEvaluator{}
	p := newTestPopulation(t, 6, 1, ev, 6)
	if err := p.Evaluate(context.Background()); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	before := map[string]bool{}
	for _, c := range p.Members() {
		before[c.ID] = true
	}
	rerolled := p.Mutate(3)
	if len(rerolled) != 3 {
		t.Fatalf("expected three re-rolls, got %d", len(rerolled))
	}
	ids := map[string]bool{}
	for _, id := range rerolled {
		if before[id] || ids[id] {
			t.Fatalf("re-rolled member reused id %s", id)
		}
		ids[id] = true
	}
	unevaluated := 0
	for _, c := range p.Members() {
		if !c.Fitness().Evaluated() {
			unevaluated++
			if !ids[c.ID] {
				t.Fatalf("member %s lost its fitness without a re-roll", c.ID)
			}
		} else if !before[c.ID] {
			t.Fatalf("evaluated member %s changed id", c.ID)
		}
	}
	if unevaluated == 0 {
		t.Fatal("expected re-rolled members to be unevaluated")
	}

	lineage := p.Lineage()
	rerolls := lineage[len(lineage)-3:]
	for i, rec := range rerolls {
		if rec.Operation != "reroll" || rec.CandidateID != rerolled[i] {
			t.Fatalf("unexpected reroll lineage %+v", rec)
		}
		if len(rec.ParentIDs) != 1 || rec.ParentIDs[0] == rec.CandidateID {
			t.Fatalf("expected reroll to name its previous id, got %+v", rec)
		}
	}

	evaluated := ev.Total()
	if err := p.Evaluate(context.Background()); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if ev.Total()-evaluated != unevaluated {
		t.Fatalf("expected %d re-evaluations, got %d", unevaluated, ev.Total()-evaluated)
	}
}

func TestMonitorBestEverIsNonDecreasing(t *testing.T) {
	ev := &countingEvaluator{}
	p := newTestPopulation(t, 8, 3, ev, 7)
	var observed []model.GenerationDiagnostics
	monitor := &PopulationMonitor{
		Population:             p,
		MutationsPerGeneration: 3,
		Observer:               func(d model.GenerationDiagnostics) { observed = append(observed, d) },
	}

	result, err := monitor.Run(context.Background(), 6)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(result.BestByGeneration) != 6 || len(observed) != 6 {
		t.Fatalf("expected six generations, got %d history and %d observations", len(result.BestByGeneration), len(observed))
	}
	for i := 1; i < len(result.BestByGeneration); i++ {
		if result.BestByGeneration[i] < result.BestByGeneration[i-1] {
			t.Fatalf("best-ever decreased at %d: %v", i, result.BestByGeneration)
		}
	}
	for i, d := range result.GenerationDiagnostics {
		if d.Generation != i+1 {
			t.Fatalf("diagnostic %d has generation %d", i, d.Generation)
		}
		if d.EliteFitness > d.BestEverFitness || d.MeanFitness > d.EliteFitness+1e-9 {
			t.Fatalf("inconsistent diagnostics: %+v", d)
		}
		if d.EvaluatedCount != 8 || d.TopologyVariants < 1 {
			t.Fatalf("unexpected counts: %+v", d)
		}
	}
	best, ok := result.Best.Fitness().Score()
	if !ok || best != result.BestByGeneration[5] {
		t.Fatalf("best candidate fitness=%f history=%v", best, result.BestByGeneration)
	}
	if got := configScore(result.Best.Config()); got != best {
		t.Fatalf("best candidate config no longer matches its fitness: %f != %f", got, best)
	}
	if len(result.FinalPopulation) != 8 {
		t.Fatalf("unexpected final population size %d", len(result.FinalPopulation))
	}
}

func TestMonitorStopsOnCanceledContext(t *testing.T) {
	p := newTestPopulation(t, 4, 1, &countingEvaluator{}, 8)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := (&PopulationMonitor{Population: p}).Run(ctx, 3); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled context, got %v", err)
	}
	if _, err := (&PopulationMonitor{Population: p}).Run(context.Background(), 0); err == nil {
		t.Fatal("expected generations validation error")
	}
	if _, err := (&PopulationMonitor{}).Run(context.Background(), 1); err == nil {
		t.Fatal("expected missing population error")
	}
}

func TestSpecieIdentifiers(t *testing.T) {
	a := &Candidate{config: testConfig(3, 4)}
	b := &Candidate{config: testConfig(4, 3)}
	c := &Candidate{config: testConfig(3, 4)}
	if got := CountSpecies(TopologySpecieIdentifier{}, []*Candidate{a, b, c}); got != 2 {
		t.Fatalf("topology species=%d want=2", got)
	}
	if got := CountSpecies(TotNSpecieIdentifier{}, []*Candidate{a, b, c}); got != 1 {
		t.Fatalf("tot_n species=%d want=1", got)
	}
	if _, err := SpecieIdentifierFromName("tot_n"); err != nil {
		t.Fatalf("tot_n identifier should resolve: %v", err)
	}
	if _, err := SpecieIdentifierFromName("unknown"); err == nil {
		t.Fatal("expected unknown identifier error")
	}
}
