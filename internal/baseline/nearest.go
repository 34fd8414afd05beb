// Package baseline holds the nearest-neighbour classifier the MLP results are
// compared against.
package baseline

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"hypermlp/internal/model"
)

type NearestNeighbor struct {
	Reference model.Fold
}

// Classify returns the label of the closest reference sample by Euclidean
// distance. The earliest sample wins ties. An empty reference yields -1.
func (n NearestNeighbor) Classify(features []float64) int {
	label := -1
	best := math.Inf(1)
	for _, sample := range n.Reference.Samples {
		d := floats.Distance(features, sample.Features, 2)
		if d < best {
			best = d
			label = sample.Label
		}
	}
	return label
}

// Accuracy classifies every test sample against train and returns the
// fraction labelled correctly.
func Accuracy(train, test model.Fold) float64 {
	if test.Len() == 0 {
		return 0
	}
	classifier := NearestNeighbor{Reference: train}
	correct := 0
	for _, sample := range test.Samples {
		if classifier.Classify(sample.Features) == sample.Label {
			correct++
		}
	}
	return float64(correct) / float64(test.Len())
}

// TwoFold trains on a and tests on b, then the reverse.
func TwoFold(a, b model.Fold) (float64, float64) {
	return Accuracy(a, b), Accuracy(b, a)
}
