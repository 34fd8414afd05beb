package nn

import (
	"errors"
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"hypermlp/internal/model"
)

// DefaultThreshold is the constant fed through every bias weight.
const DefaultThreshold = 1.0

var ErrInvalidTopology = errors.New("invalid topology")

type Options struct {
	// Gain scales each pre-activation sum before the sigmoid. Zero means 1.
	Gain float64
	// Threshold is the synthetic bias input. Zero means DefaultThreshold.
	Threshold float64
	// WeightRange bounds initial and mutated weights. The zero value means [-1, 1].
	WeightRange model.WeightRange
}

// Network is a fully connected sigmoid MLP with fixed input and output widths.
// Weight layer l maps layer l to layer l+1; its last column holds the bias
// weights. A Network owns all of its buffers and is not safe for concurrent use.
type Network struct {
	topology    model.Topology
	widths      []int
	gain        float64
	threshold   float64
	weightRange model.WeightRange

	weights []*mat.Dense
	changes []*mat.Dense

	// layers[0] is the bias-augmented input, the last entry the output layer.
	layers    [][]float64
	deltas    [][]float64
	deltaVecs []*mat.VecDense
	backSums  []*mat.VecDense
}

func New(topology model.Topology, opts Options, rng *rand.Rand) (*Network, error) {
	if rng == nil {
		return nil, fmt.Errorf("random source is required")
	}
	if err := ValidateTopology(topology); err != nil {
		return nil, err
	}
	if opts.Gain == 0 {
		opts.Gain = 1
	}
	if opts.Threshold == 0 {
		opts.Threshold = DefaultThreshold
	}
	if opts.WeightRange == (model.WeightRange{}) {
		opts.WeightRange = model.DefaultWeightRange()
	}
	if opts.WeightRange.Min > opts.WeightRange.Max {
		return nil, fmt.Errorf("weight range min %f exceeds max %f", opts.WeightRange.Min, opts.WeightRange.Max)
	}

	widths := make([]int, 0, len(topology)+2)
	widths = append(widths, model.FeatureCount)
	widths = append(widths, topology...)
	widths = append(widths, model.ClassCount)

	n := &Network{
		topology:    append(model.Topology(nil), topology...),
		widths:      widths,
		gain:        opts.Gain,
		threshold:   opts.Threshold,
		weightRange: opts.WeightRange,
	}

	transitions := len(widths) - 1
	n.weights = make([]*mat.Dense, transitions)
	n.changes = make([]*mat.Dense, transitions)
	n.deltas = make([][]float64, transitions)
	n.deltaVecs = make([]*mat.VecDense, transitions)
	n.backSums = make([]*mat.VecDense, transitions)
	for l := 0; l < transitions; l++ {
		rows, cols := widths[l+1], widths[l]+1
		n.weights[l] = mat.NewDense(rows, cols, nil)
		n.changes[l] = mat.NewDense(rows, cols, nil)
		n.deltas[l] = make([]float64, rows)
		n.deltaVecs[l] = mat.NewVecDense(rows, n.deltas[l])
		n.backSums[l] = mat.NewVecDense(cols, nil)
	}

	n.layers = make([][]float64, len(widths))
	for l, width := range widths {
		if l == len(widths)-1 {
			n.layers[l] = make([]float64, width)
			continue
		}
		n.layers[l] = make([]float64, width+1)
		n.layers[l][width] = n.threshold
	}

	n.Randomize(rng)
	return n, nil
}

// ValidateTopology rejects empty topologies and non-positive layer widths.
func ValidateTopology(topology model.Topology) error {
	if len(topology) == 0 {
		return fmt.Errorf("%w: at least one hidden layer is required", ErrInvalidTopology)
	}
	for i, width := range topology {
		if width <= 0 {
			return fmt.Errorf("%w: hidden layer %d has width %d", ErrInvalidTopology, i, width)
		}
	}
	return nil
}

// Randomize redraws every weight and clears the carried updates.
func (n *Network) Randomize(rng *rand.Rand) {
	for l := range n.weights {
		raw := n.weights[l].RawMatrix().Data
		for i := range raw {
			raw[i] = n.randomWeight(rng)
		}
		n.changes[l].Zero()
	}
}

func (n *Network) randomWeight(rng *rand.Rand) float64 {
	return n.weightRange.Min + rng.Float64()*(n.weightRange.Max-n.weightRange.Min)
}

func (n *Network) Topology() model.Topology {
	return append(model.Topology(nil), n.topology...)
}

func (n *Network) Gain() float64 {
	return n.gain
}

// Transitions returns the number of weight layers.
func (n *Network) Transitions() int {
	return len(n.weights)
}

// Weights returns a copy of weight layer l.
func (n *Network) Weights(l int) *mat.Dense {
	return mat.DenseCopyOf(n.weights[l])
}

func (n *Network) Weight(l, to, from int) float64 {
	return n.weights[l].At(to, from)
}

func (n *Network) SetWeight(l, to, from int, value float64) {
	n.weights[l].Set(to, from, value)
}

// Activations returns a copy of layer l's activations from the last forward
// pass, without the bias slot.
func (n *Network) Activations(l int) []float64 {
	return append([]float64(nil), n.layers[l][:n.widths[l]]...)
}

// Forward runs one forward pass and returns a copy of the output activations.
func (n *Network) Forward(features []float64) []float64 {
	return append([]float64(nil), n.forward(features)...)
}

// Classify returns the predicted class for features.
func (n *Network) Classify(features []float64) int {
	return Argmax(n.forward(features))
}

func (n *Network) forward(features []float64) []float64 {
	input := n.layers[0]
	copy(input[:model.FeatureCount], features)

	for l, w := range n.weights {
		in, out := n.layers[l], n.layers[l+1]
		rows, _ := w.Dims()
		for j := 0; j < rows; j++ {
			out[j] = Sigmoid(n.gain * floats.Dot(w.RawRowView(j), in))
		}
	}
	return n.layers[len(n.layers)-1]
}

// Backpropagate applies one update step towards target using the activations
// recorded by the preceding Forward call. Each weight moves by
// learningRate*delta*activation plus momentum times its previous update.
func (n *Network) Backpropagate(target []float64, learningRate, momentum float64) {
	last := len(n.weights) - 1
	output := n.layers[last+1]
	outDelta := n.deltas[last]
	for j := range outDelta {
		outDelta[j] = n.gain * SigmoidSlope(output[j]) * (target[j] - output[j])
	}

	for l := last; l >= 1; l-- {
		back := n.backSums[l]
		back.MulVec(n.weights[l].T(), n.deltaVecs[l])
		hidden := n.layers[l]
		delta := n.deltas[l-1]
		for i := range delta {
			delta[i] = n.gain * SigmoidSlope(hidden[i]) * back.AtVec(i)
		}
	}

	for l, w := range n.weights {
		in := n.layers[l]
		delta := n.deltas[l]
		for j := range delta {
			row := w.RawRowView(j)
			prev := n.changes[l].RawRowView(j)
			step := learningRate * delta[j]
			for i := range row {
				change := step * in[i]
				row[i] += change + momentum*prev[i]
				prev[i] = change
			}
		}
	}
}

// Mutate reassigns intensity random output-layer weights and intensity random
// hidden-layer weights to fresh values from the weight range. It returns the
// number of reassignments.
func (n *Network) Mutate(rng *rand.Rand, intensity int) int {
	if intensity <= 0 {
		return 0
	}
	last := len(n.weights) - 1
	changed := 0
	for i := 0; i < intensity; i++ {
		n.reassignRandom(rng, last)
		n.reassignRandom(rng, rng.Intn(last))
		changed += 2
	}
	return changed
}

func (n *Network) reassignRandom(rng *rand.Rand, l int) {
	rows, cols := n.weights[l].Dims()
	n.weights[l].Set(rng.Intn(rows), rng.Intn(cols), n.randomWeight(rng))
}
