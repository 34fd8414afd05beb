package stats

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"hypermlp/internal/model"
)

type RunSummary struct {
	RunID          string
	PopulationSize int
	Generations    int
	Evaluations    int64
	BestFitness    float64
	BestConfig     model.HyperConfig
	Elapsed        time.Duration
	CreatedAt      time.Time
}

// FormatSummary renders a run as one key=value line. Fitness is the sum of
// two fold accuracies, so mean_accuracy is half of it.
func FormatSummary(s RunSummary, now time.Time) string {
	parts := []string{
		"run_id=" + s.RunID,
		"population=" + humanize.Comma(int64(s.PopulationSize)),
		"generations=" + humanize.Comma(int64(s.Generations)),
		"fold_runs=" + humanize.Comma(s.Evaluations),
		"best_fitness=" + humanize.FormatFloat("#.####", s.BestFitness),
		"mean_accuracy=" + humanize.FormatFloat("#.##", 50*s.BestFitness) + "%",
		fmt.Sprintf("hidden_layers=%v", s.BestConfig.HiddenLayers),
		"gain=" + humanize.FormatFloat("#.####", s.BestConfig.Gain),
		"target=" + humanize.FormatFloat("#.####", s.BestConfig.TargetAccuracy),
		fmt.Sprintf("window=%d", s.BestConfig.StagnationWindow),
		fmt.Sprintf("intensity=%d", s.BestConfig.MutationIntensity),
		"elapsed=" + s.Elapsed.Round(time.Millisecond).String(),
	}
	if !s.CreatedAt.IsZero() {
		parts = append(parts, fmt.Sprintf("created=%q", humanize.RelTime(s.CreatedAt, now, "ago", "from now")))
	}
	return strings.Join(parts, " ")
}
