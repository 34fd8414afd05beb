package evo

import (
	"errors"
	"math/rand"
	"testing"

	"hypermlp/internal/model"
	"hypermlp/internal/nn"
)

func TestDefaultBoundsRandomStaysInside(t *testing.T) {
	b := DefaultBounds()
	if err := b.Validate(); err != nil {
		t.Fatalf("default bounds invalid: %v", err)
	}
	rng := rand.New(rand.NewSource(1))
	seenLayers := map[int]bool{}
	for i := 0; i < 2000; i++ {
		cfg := b.Random(rng)
		if err := ValidateConfig(cfg); err != nil {
			t.Fatalf("random config invalid: %v", err)
		}
		layers := len(cfg.HiddenLayers)
		seenLayers[layers] = true
		if layers < b.HiddenLayers.Min || layers > b.HiddenLayers.Max {
			t.Fatalf("layer count %d outside %+v", layers, b.HiddenLayers)
		}
		for _, w := range cfg.HiddenLayers {
			if w < b.Neurons.Min || w > b.Neurons.Max {
				t.Fatalf("width %d outside %+v", w, b.Neurons)
			}
		}
		if cfg.Gain < b.Gain.Min || cfg.Gain > b.Gain.Max {
			t.Fatalf("gain %f outside %+v", cfg.Gain, b.Gain)
		}
		if cfg.TargetAccuracy < b.TargetAccuracy.Min || cfg.TargetAccuracy > b.TargetAccuracy.Max {
			t.Fatalf("target %f outside %+v", cfg.TargetAccuracy, b.TargetAccuracy)
		}
		if cfg.StagnationWindow < b.StagnationWindow.Min || cfg.StagnationWindow > b.StagnationWindow.Max {
			t.Fatalf("window %d outside %+v", cfg.StagnationWindow, b.StagnationWindow)
		}
		if cfg.MutationIntensity < b.MutationIntensity.Min || cfg.MutationIntensity > b.MutationIntensity.Max {
			t.Fatalf("intensity %d outside %+v", cfg.MutationIntensity, b.MutationIntensity)
		}
	}
	for layers := b.HiddenLayers.Min; layers <= b.HiddenLayers.Max; layers++ {
		if !seenLayers[layers] {
			t.Fatalf("inclusive range never produced %d layers", layers)
		}
	}
}

func TestBoundsValidateRejectsInvalidRanges(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Bounds)
	}{
		{name: "zero layers", mutate: func(b *Bounds) { b.HiddenLayers = IntRange{Min: 0, Max: 2} }},
		{name: "zero neurons", mutate: func(b *Bounds) { b.Neurons = IntRange{Min: 0, Max: 5} }},
		{name: "inverted neurons", mutate: func(b *Bounds) { b.Neurons = IntRange{Min: 8, Max: 2} }},
		{name: "non-positive gain", mutate: func(b *Bounds) { b.Gain = FloatRange{Min: 0, Max: 1} }},
		{name: "inverted target", mutate: func(b *Bounds) { b.TargetAccuracy = FloatRange{Min: 1, Max: 0.5} }},
		{name: "zero window", mutate: func(b *Bounds) { b.StagnationWindow = IntRange{Min: 0, Max: 10} }},
		{name: "negative intensity", mutate: func(b *Bounds) { b.MutationIntensity = IntRange{Min: -1, Max: 10} }},
		{name: "zero intensity", mutate: func(b *Bounds) { b.MutationIntensity = IntRange{Min: 0, Max: 10} }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			b := DefaultBounds()
			tc.mutate(&b)
			if err := b.Validate(); !errors.Is(err, ErrInvalidBounds) {
				t.Fatalf("expected invalid bounds, got %v", err)
			}
		})
	}
}

func TestNewCandidateRejectsInvalidTopology(t *testing.T) {
	for _, cfg := range []model.HyperConfig{testConfig(), testConfig(4, 0), testConfig(-3)} {
		_, err := NewCandidate("bad", cfg)
		if !errors.Is(err, ErrInvalidConfig) || !errors.Is(err, nn.ErrInvalidTopology) {
			t.Fatalf("expected invalid topology for %v, got %v", cfg.HiddenLayers, err)
		}
	}
	cfg := testConfig(3)
	cfg.StagnationWindow = 0
	if _, err := NewCandidate("bad", cfg); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected invalid config, got %v", err)
	}
	cfg = testConfig(3)
	cfg.MutationIntensity = 0
	if _, err := NewCandidate("still", cfg); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected zero intensity to be rejected, got %v", err)
	}
}
