package nn

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

var (
	sigmoidFloor = math.Nextafter(0, 1)
	sigmoidCeil  = math.Nextafter(1, 0)
)

// Sigmoid is the logistic function 1 / (1 + e^-x). Results stay strictly
// inside (0, 1) so a saturated unit keeps a non-zero slope.
func Sigmoid(x float64) float64 {
	var s float64
	if x >= 0 {
		s = 1 / (1 + math.Exp(-x))
	} else {
		e := math.Exp(x)
		s = e / (1 + e)
	}
	return math.Min(math.Max(s, sigmoidFloor), sigmoidCeil)
}

// SigmoidSlope returns the logistic derivative expressed through its output.
func SigmoidSlope(activation float64) float64 {
	return activation * (1 - activation)
}

// Argmax returns the index of the largest value, the earliest one on ties.
// It returns -1 for an empty slice.
func Argmax(values []float64) int {
	if len(values) == 0 {
		return -1
	}
	return floats.MaxIdx(values)
}

// OneHot encodes label as a width-sized target vector.
func OneHot(label, width int) []float64 {
	out := make([]float64, width)
	if label >= 0 && label < width {
		out[label] = 1
	}
	return out
}

// Finite reports whether every value is neither NaN nor infinite.
func Finite(values []float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
