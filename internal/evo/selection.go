package evo

import (
	"fmt"
	"sort"
)

// FitnessTolerance is the score difference below which two candidates tie.
const FitnessTolerance = 1e-9

// CompareFitness orders two scores descending, treating near-equal values as
// a tie. It returns -1 when a ranks first, 1 when b does, and 0 on a tie.
func CompareFitness(a, b float64) int {
	switch {
	case a-b >= FitnessTolerance:
		return -1
	case b-a >= FitnessTolerance:
		return 1
	default:
		return 0
	}
}

// Rank returns members sorted by descending fitness. Ties keep their input
// order. Ranking never evaluates; every member must already carry a score.
func Rank(members []*Candidate) ([]*Candidate, error) {
	return RankBy(members, nil)
}

// RankBy ranks members by their fitness as adjusted by post. A nil post ranks
// by raw fitness.
func RankBy(members []*Candidate, post FitnessPostprocessor) ([]*Candidate, error) {
	ranked := make([]*Candidate, len(members))
	copy(ranked, members)
	scores := make(map[*Candidate]float64, len(ranked))
	for _, c := range ranked {
		if !c.fitness.evaluated {
			return nil, fmt.Errorf("rank candidate %s: %w", c.ID, ErrNotEvaluated)
		}
		score := c.fitness.score
		if post != nil {
			score = post.Adjust(c.config, score)
		}
		scores[c] = score
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return CompareFitness(scores[ranked[i]], scores[ranked[j]]) < 0
	})
	return ranked, nil
}
