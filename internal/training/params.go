package training

import (
	"fmt"
	"time"

	"hypermlp/internal/model"
)

const (
	DefaultLearningRate      = 0.05
	DefaultGain              = 1.0
	DefaultTargetAccuracy    = 0.9989
	DefaultMaxIterations     = 2000
	DefaultMaxDuration       = 2 * time.Minute
	DefaultStagnationWindow  = 100
	DefaultMutationIntensity = 100
	DefaultMomentum          = 1.0
	DefaultThreshold         = 1.0
)

// Params controls one training run.
type Params struct {
	LearningRate float64
	Gain         float64
	// TargetAccuracy stops training once the training accuracy reaches it.
	TargetAccuracy float64
	MaxIterations  int
	MaxDuration    time.Duration
	// StagnationWindow is the number of non-improving passes tolerated before
	// a mutation event.
	StagnationWindow int
	// MutationIntensity is the number of weights reassigned per layer group
	// in a mutation event.
	MutationIntensity int
	// Momentum scales the previous update carried into every weight change.
	Momentum    float64
	Threshold   float64
	WeightRange model.WeightRange
}

func DefaultParams() Params {
	return Params{
		LearningRate:      DefaultLearningRate,
		Gain:              DefaultGain,
		TargetAccuracy:    DefaultTargetAccuracy,
		MaxIterations:     DefaultMaxIterations,
		MaxDuration:       DefaultMaxDuration,
		StagnationWindow:  DefaultStagnationWindow,
		MutationIntensity: DefaultMutationIntensity,
		Momentum:          DefaultMomentum,
		Threshold:         DefaultThreshold,
		WeightRange:       model.DefaultWeightRange(),
	}
}

// WithConfig overlays the genetically encoded fields of cfg onto p.
func (p Params) WithConfig(cfg model.HyperConfig) Params {
	p.Gain = cfg.Gain
	p.TargetAccuracy = cfg.TargetAccuracy
	p.StagnationWindow = cfg.StagnationWindow
	p.MutationIntensity = cfg.MutationIntensity
	return p
}

func (p Params) Validate() error {
	if p.LearningRate <= 0 {
		return fmt.Errorf("learning rate must be > 0")
	}
	if p.Gain <= 0 {
		return fmt.Errorf("gain must be > 0")
	}
	if p.MaxIterations <= 0 {
		return fmt.Errorf("max iterations must be > 0")
	}
	if p.MaxDuration <= 0 {
		return fmt.Errorf("max duration must be > 0")
	}
	if p.StagnationWindow <= 0 {
		return fmt.Errorf("stagnation window must be > 0")
	}
	if p.MutationIntensity < 1 {
		return fmt.Errorf("mutation intensity must be >= 1")
	}
	if p.Momentum < 0 {
		return fmt.Errorf("momentum must be >= 0")
	}
	if p.WeightRange.Min > p.WeightRange.Max {
		return fmt.Errorf("weight range min %f exceeds max %f", p.WeightRange.Min, p.WeightRange.Max)
	}
	return nil
}
