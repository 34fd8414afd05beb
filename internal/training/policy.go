package training

// StagnationPolicy decides when a plateaued training run needs a mutation
// event. A pass counts as improved only when its accuracy is strictly greater
// than the tracked accuracy of the previous pass.
type StagnationPolicy struct {
	Window int

	stuck   int
	tracked float64
}

func NewStagnationPolicy(window int) *StagnationPolicy {
	return &StagnationPolicy{Window: window}
}

// Observe records one pass accuracy and reports whether a mutation event is
// due. When it is, the counter and the tracked accuracy are both reset to
// zero, so the pass after a mutation always registers as improved.
func (p *StagnationPolicy) Observe(accuracy float64) bool {
	if accuracy > p.tracked {
		p.stuck = 0
		p.tracked = accuracy
		return false
	}
	p.stuck++
	if p.stuck >= p.Window {
		p.stuck = 0
		p.tracked = 0
		return true
	}
	p.tracked = accuracy
	return false
}

// Stuck returns the current count of consecutive non-improving passes.
func (p *StagnationPolicy) Stuck() int {
	return p.stuck
}
