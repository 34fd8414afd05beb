package training

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"hypermlp/internal/model"
	"hypermlp/internal/nn"
)

var ErrNumericFault = errors.New("non-finite network output")

type StopReason string

const (
	StopTargetReached StopReason = "target_reached"
	StopIterationCap  StopReason = "iteration_cap"
	StopTimeBudget    StopReason = "time_budget"
)

type Result struct {
	Accuracy   float64       `json:"accuracy"`
	Iterations int           `json:"iterations"`
	Mutations  int           `json:"mutations"`
	Elapsed    time.Duration `json:"elapsed_ns"`
	Stop       StopReason    `json:"stop"`
}

// Trainer fits networks by online backpropagation, forcing a weight mutation
// whenever training accuracy plateaus for a full stagnation window.
type Trainer struct {
	Params Params
	Rand   *rand.Rand
	// Now is the clock used for the training time budget. Defaults to time.Now.
	Now func() time.Time
}

type trainingSet struct {
	inputs  [][]float64
	targets [][]float64
	labels  []int
}

func prepare(fold model.Fold) trainingSet {
	set := trainingSet{
		inputs:  make([][]float64, len(fold.Samples)),
		targets: make([][]float64, len(fold.Samples)),
		labels:  make([]int, len(fold.Samples)),
	}
	for i, sample := range fold.Samples {
		set.inputs[i] = sample.Features
		set.targets[i] = nn.OneHot(sample.Label, model.ClassCount)
		set.labels[i] = sample.Label
	}
	return set
}

// Fit builds a fresh network for topology and trains it on fold.
func (t *Trainer) Fit(ctx context.Context, topology model.Topology, fold model.Fold) (*nn.Network, Result, error) {
	if t == nil || t.Rand == nil {
		return nil, Result{}, errors.New("random source is required")
	}
	if err := t.Params.Validate(); err != nil {
		return nil, Result{}, err
	}
	network, err := nn.New(topology, nn.Options{
		Gain:        t.Params.Gain,
		Threshold:   t.Params.Threshold,
		WeightRange: t.Params.WeightRange,
	}, t.Rand)
	if err != nil {
		return nil, Result{}, err
	}
	result, err := t.Train(ctx, network, fold)
	if err != nil {
		return nil, result, err
	}
	return network, result, nil
}

// Train runs training passes over fold until the target accuracy is reached,
// the iteration cap is hit, or the time budget runs out, whichever comes first.
func (t *Trainer) Train(ctx context.Context, network *nn.Network, fold model.Fold) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if t == nil || t.Rand == nil {
		return Result{}, errors.New("random source is required")
	}
	if network == nil {
		return Result{}, errors.New("network is required")
	}
	if err := t.Params.Validate(); err != nil {
		return Result{}, err
	}
	if fold.Len() == 0 {
		return Result{}, fmt.Errorf("training fold %q is empty", fold.Name)
	}

	now := t.Now
	if now == nil {
		now = time.Now
	}
	set := prepare(fold)
	policy := NewStagnationPolicy(t.Params.StagnationWindow)
	start := now()

	var result Result
	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Iterations++
		misses, err := t.pass(network, set)
		if err != nil {
			return result, fmt.Errorf("iteration %d: %w", result.Iterations, err)
		}
		result.Accuracy = float64(len(set.inputs)-misses) / float64(len(set.inputs))

		if policy.Observe(result.Accuracy) {
			if network.Mutate(t.Rand, t.Params.MutationIntensity) > 0 {
				result.Mutations++
			}
		}

		result.Elapsed = now().Sub(start)
		switch {
		case result.Elapsed > t.Params.MaxDuration:
			result.Stop = StopTimeBudget
			return result, nil
		case result.Accuracy >= t.Params.TargetAccuracy:
			result.Stop = StopTargetReached
			return result, nil
		case result.Iterations >= t.Params.MaxIterations:
			result.Stop = StopIterationCap
			return result, nil
		}
	}
}

// pass trains on every sample once and returns the number of samples whose
// pre-update prediction missed.
func (t *Trainer) pass(network *nn.Network, set trainingSet) (int, error) {
	misses := 0
	for i, input := range set.inputs {
		output := network.Forward(input)
		if !nn.Finite(output) {
			return 0, fmt.Errorf("sample %d: %w", i, ErrNumericFault)
		}
		network.Backpropagate(set.targets[i], t.Params.LearningRate, t.Params.Momentum)
		if nn.Argmax(output) != set.labels[i] {
			misses++
		}
	}
	return misses, nil
}

// Test returns the fraction of fold samples the network classifies correctly.
// It never updates weights.
func Test(network *nn.Network, fold model.Fold) float64 {
	if fold.Len() == 0 {
		return 0
	}
	correct := 0
	for _, sample := range fold.Samples {
		if network.Classify(sample.Features) == sample.Label {
			correct++
		}
	}
	return float64(correct) / float64(fold.Len())
}
