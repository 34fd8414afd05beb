package evo

import (
	"golang.org/x/exp/constraints"

	"hypermlp/internal/model"
)

func average[T constraints.Integer | constraints.Float](a, b T) T {
	return (a + b) / 2
}

// Crossover returns the averaged child of a and b and an unchanged copy of a.
// The averaged child has floor((ha+hb)/2) hidden layers; a layer defined by
// both parents takes the average width, otherwise the defining parent's width.
func Crossover(a, b *Candidate, averagedID, copyID string) (*Candidate, *Candidate) {
	return &Candidate{ID: averagedID, config: blend(a.config, b.config)}, a.Clone(copyID)
}

func blend(a, b model.HyperConfig) model.HyperConfig {
	layers := make([]int, average(len(a.HiddenLayers), len(b.HiddenLayers)))
	for i := range layers {
		switch {
		case i < len(a.HiddenLayers) && i < len(b.HiddenLayers):
			layers[i] = average(a.HiddenLayers[i], b.HiddenLayers[i])
		case i < len(a.HiddenLayers):
			layers[i] = a.HiddenLayers[i]
		default:
			layers[i] = b.HiddenLayers[i]
		}
	}
	return model.HyperConfig{
		HiddenLayers:      layers,
		Gain:              average(a.Gain, b.Gain),
		TargetAccuracy:    average(a.TargetAccuracy, b.TargetAccuracy),
		StagnationWindow:  average(a.StagnationWindow, b.StagnationWindow),
		MutationIntensity: average(a.MutationIntensity, b.MutationIntensity),
	}
}
