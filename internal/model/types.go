package model

import "time"

const (
	FeatureCount = 64
	ClassCount   = 10
)

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// Sample is one feature vector with its class label.
type Sample struct {
	Features []float64 `json:"features"`
	Label    int       `json:"label"`
}

// Fold is one of the two fixed dataset partitions.
type Fold struct {
	Name    string   `json:"name"`
	Samples []Sample `json:"samples"`
}

func (f Fold) Len() int {
	return len(f.Samples)
}

// Topology lists hidden layer widths. Input and output widths are fixed.
type Topology []int

type WeightRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

func DefaultWeightRange() WeightRange {
	return WeightRange{Min: -1, Max: 1}
}

// HyperConfig is the genetic encoding of one MLP configuration.
type HyperConfig struct {
	HiddenLayers      []int   `json:"hidden_layers"`
	Gain              float64 `json:"gain"`
	TargetAccuracy    float64 `json:"target_accuracy"`
	StagnationWindow  int     `json:"stagnation_window"`
	MutationIntensity int     `json:"mutation_intensity"`
}

func (c HyperConfig) Topology() Topology {
	return append(Topology(nil), c.HiddenLayers...)
}

func (c HyperConfig) Clone() HyperConfig {
	out := c
	out.HiddenLayers = append([]int(nil), c.HiddenLayers...)
	return out
}

// EvaluationRecord is one fold run of a two-fold evaluation.
type EvaluationRecord struct {
	VersionedRecord
	CandidateID   string        `json:"candidate_id,omitempty"`
	Fold          int           `json:"fold"`
	Config        HyperConfig   `json:"config"`
	TrainAccuracy float64       `json:"train_accuracy"`
	TrainTime     time.Duration `json:"train_time_ns"`
	TestTime      time.Duration `json:"test_time_ns"`
	TestAccuracy  float64       `json:"test_accuracy"`
	Iterations    int           `json:"iterations"`
	Mutations     int           `json:"mutations"`
}

type GenerationDiagnostics struct {
	Generation       int     `json:"generation"`
	EliteFitness     float64 `json:"elite_fitness"`
	BestEverFitness  float64 `json:"best_ever_fitness"`
	MeanFitness      float64 `json:"mean_fitness"`
	EvaluatedCount   int     `json:"evaluated_count"`
	TopologyVariants int     `json:"topology_variants"`
}

// LineageRecord explains where a member of a generation came from.
type LineageRecord struct {
	CandidateID string   `json:"candidate_id"`
	ParentIDs   []string `json:"parent_ids,omitempty"`
	Generation  int      `json:"generation"`
	Operation   string   `json:"operation"`
}

type RunRecord struct {
	VersionedRecord
	ID               string      `json:"id"`
	CreatedAtUTC     string      `json:"created_at_utc"`
	Seed             int64       `json:"seed"`
	PopulationSize   int         `json:"population_size"`
	Generations      int         `json:"generations"`
	BestFitness      float64     `json:"best_fitness"`
	BestConfig       HyperConfig `json:"best_config"`
	BestByGeneration []float64   `json:"best_by_generation"`
}
