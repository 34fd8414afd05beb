package evo

import (
	"math/rand"
	"testing"
)

func TestCrossoverAveragedChildInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	bounds := DefaultBounds()
	for i := 0; i < 500; i++ {
		a := &Candidate{ID: "a", config: bounds.Random(rng), fitness: Evaluated(1.2)}
		b := &Candidate{ID: "b", config: bounds.Random(rng), fitness: Evaluated(0.7)}

		child, copied := Crossover(a, b, "avg", "copy")
		ha, hb := len(a.config.HiddenLayers), len(b.config.HiddenLayers)
		layers := child.config.HiddenLayers
		if len(layers) != (ha+hb)/2 {
			t.Fatalf("layers=%d want floor((%d+%d)/2)", len(layers), ha, hb)
		}
		for l, w := range layers {
			switch {
			case l < ha && l < hb:
				lo, hi := a.config.HiddenLayers[l], b.config.HiddenLayers[l]
				if lo > hi {
					lo, hi = hi, lo
				}
				if w < lo || w > hi {
					t.Fatalf("layer %d width %d outside [%d, %d]", l, w, lo, hi)
				}
			case l < ha:
				if w != a.config.HiddenLayers[l] {
					t.Fatalf("layer %d must come from a", l)
				}
			default:
				if w != b.config.HiddenLayers[l] {
					t.Fatalf("layer %d must come from b", l)
				}
			}
		}
		if child.Fitness().Evaluated() {
			t.Fatal("averaged child must be unevaluated")
		}
		if copied.ID != "copy" || len(copied.config.HiddenLayers) != ha {
			t.Fatalf("copy child differs from first parent: %+v", copied.config)
		}
		if score, ok := copied.Fitness().Score(); !ok || score != 1.2 {
			t.Fatalf("copy child must keep first parent's fitness")
		}
	}
}

func TestCrossoverAveragesScalars(t *testing.T) {
	a := &Candidate{ID: "a", config: testConfig(4, 8, 2)}
	b := &Candidate{ID: "b", config: testConfig(7)}
	a.config.Gain, b.config.Gain = 0.9, 1.1
	a.config.StagnationWindow, b.config.StagnationWindow = 100, 301
	a.config.MutationIntensity, b.config.MutationIntensity = 5, 10

	child, _ := Crossover(a, b, "avg", "copy")
	cfg := child.Config()
	if len(cfg.HiddenLayers) != 2 || cfg.HiddenLayers[0] != 5 || cfg.HiddenLayers[1] != 8 {
		t.Fatalf("unexpected layers %v", cfg.HiddenLayers)
	}
	if cfg.Gain < 0.999999 || cfg.Gain > 1.000001 {
		t.Fatalf("unexpected gain %f", cfg.Gain)
	}
	if cfg.StagnationWindow != 200 || cfg.MutationIntensity != 7 {
		t.Fatalf("unexpected integer averages: %+v", cfg)
	}
}
