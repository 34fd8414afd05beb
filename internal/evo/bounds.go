package evo

import (
	"errors"
	"fmt"
	"math/rand"

	"hypermlp/internal/model"
	"hypermlp/internal/nn"
)

const DefaultPopulationSize = 50

var (
	ErrInvalidBounds = errors.New("invalid search bounds")
	ErrInvalidConfig = errors.New("invalid candidate configuration")
)

// IntRange is an inclusive integer interval.
type IntRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

func (r IntRange) Draw(rng *rand.Rand) int {
	return r.Min + rng.Intn(r.Max-r.Min+1)
}

func (r IntRange) valid() bool {
	return r.Min <= r.Max
}

// FloatRange is a closed interval sampled uniformly.
type FloatRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

func (r FloatRange) Draw(rng *rand.Rand) float64 {
	return r.Min + rng.Float64()*(r.Max-r.Min)
}

func (r FloatRange) valid() bool {
	return r.Min <= r.Max
}

// Bounds limits every gene of a HyperConfig.
type Bounds struct {
	HiddenLayers      IntRange   `json:"hidden_layers"`
	Neurons           IntRange   `json:"neurons"`
	Gain              FloatRange `json:"gain"`
	TargetAccuracy    FloatRange `json:"target_accuracy"`
	StagnationWindow  IntRange   `json:"stagnation_window"`
	MutationIntensity IntRange   `json:"mutation_intensity"`
}

func DefaultBounds() Bounds {
	return Bounds{
		HiddenLayers:      IntRange{Min: 1, Max: 4},
		Neurons:           IntRange{Min: 1, Max: 20},
		Gain:              FloatRange{Min: 0.9, Max: 1.1},
		TargetAccuracy:    FloatRange{Min: 0.988, Max: 1.0},
		StagnationWindow:  IntRange{Min: 100, Max: 600},
		MutationIntensity: IntRange{Min: 5, Max: 1000},
	}
}

func (b Bounds) Validate() error {
	switch {
	case !b.HiddenLayers.valid() || b.HiddenLayers.Min < 1:
		return fmt.Errorf("%w: hidden layers %+v", ErrInvalidBounds, b.HiddenLayers)
	case !b.Neurons.valid() || b.Neurons.Min < 1:
		return fmt.Errorf("%w: neurons %+v", ErrInvalidBounds, b.Neurons)
	case !b.Gain.valid() || b.Gain.Min <= 0:
		return fmt.Errorf("%w: gain %+v", ErrInvalidBounds, b.Gain)
	case !b.TargetAccuracy.valid() || b.TargetAccuracy.Min <= 0:
		return fmt.Errorf("%w: target accuracy %+v", ErrInvalidBounds, b.TargetAccuracy)
	case !b.StagnationWindow.valid() || b.StagnationWindow.Min < 1:
		return fmt.Errorf("%w: stagnation window %+v", ErrInvalidBounds, b.StagnationWindow)
	case !b.MutationIntensity.valid() || b.MutationIntensity.Min < 1:
		return fmt.Errorf("%w: mutation intensity %+v", ErrInvalidBounds, b.MutationIntensity)
	}
	return nil
}

// Random draws a configuration uniformly within the bounds.
func (b Bounds) Random(rng *rand.Rand) model.HyperConfig {
	layers := make([]int, b.HiddenLayers.Draw(rng))
	for i := range layers {
		layers[i] = b.Neurons.Draw(rng)
	}
	return model.HyperConfig{
		HiddenLayers:      layers,
		Gain:              b.Gain.Draw(rng),
		TargetAccuracy:    b.TargetAccuracy.Draw(rng),
		StagnationWindow:  b.StagnationWindow.Draw(rng),
		MutationIntensity: b.MutationIntensity.Draw(rng),
	}
}

// ValidateConfig rejects configurations that cannot build or train a network.
func ValidateConfig(cfg model.HyperConfig) error {
	if err := nn.ValidateTopology(cfg.Topology()); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	switch {
	case cfg.Gain <= 0:
		return fmt.Errorf("%w: gain must be > 0", ErrInvalidConfig)
	case cfg.TargetAccuracy <= 0:
		return fmt.Errorf("%w: target accuracy must be > 0", ErrInvalidConfig)
	case cfg.StagnationWindow < 1:
		return fmt.Errorf("%w: stagnation window must be >= 1", ErrInvalidConfig)
	case cfg.MutationIntensity < 1:
		return fmt.Errorf("%w: mutation intensity must be >= 1", ErrInvalidConfig)
	}
	return nil
}
