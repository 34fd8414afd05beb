package evo

import (
	"fmt"
	"math"
	"strings"

	"hypermlp/internal/model"
)

const sizeProportionalEfficiency = 0.05

// FitnessPostprocessor adjusts the score used to pick parents. Best-ever
// tracking and diagnostics always see the raw fitness.
type FitnessPostprocessor interface {
	Name() string
	Adjust(cfg model.HyperConfig, fitness float64) float64
}

type NoopFitnessPostprocessor struct{}

func (NoopFitnessPostprocessor) Name() string {
	return "none"
}

func (NoopFitnessPostprocessor) Adjust(_ model.HyperConfig, fitness float64) float64 {
	return fitness
}

// SizeProportionalPostprocessor penalizes larger networks by their neuron
// plus weight count.
type SizeProportionalPostprocessor struct{}

func (SizeProportionalPostprocessor) Name() string {
	return "size_proportional"
}

func (SizeProportionalPostprocessor) Adjust(cfg model.HyperConfig, fitness float64) float64 {
	complexity := float64(NetworkSize(cfg))
	if complexity < 1 {
		complexity = 1
	}
	return fitness / math.Pow(complexity, sizeProportionalEfficiency)
}

// NetworkSize counts the neurons and weights, bias weights included, of the
// network cfg describes.
func NetworkSize(cfg model.HyperConfig) int {
	widths := make([]int, 0, len(cfg.HiddenLayers)+2)
	widths = append(widths, model.FeatureCount)
	widths = append(widths, cfg.HiddenLayers...)
	widths = append(widths, model.ClassCount)

	size := 0
	for i, w := range widths {
		size += w
		if i > 0 {
			size += (widths[i-1] + 1) * w
		}
	}
	return size
}

func PostprocessorFromName(name string) (FitnessPostprocessor, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "none":
		return NoopFitnessPostprocessor{}, nil
	case "size_proportional":
		return SizeProportionalPostprocessor{}, nil
	default:
		return nil, fmt.Errorf("unsupported fitness postprocessor: %s", name)
	}
}
