package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"hypermlp/internal/evo"
	"hypermlp/internal/model"
	"hypermlp/pkg/hypermlp"
)

// loadSearchRequestFromConfig reads a search request from JSON. Bounds are
// given as [min, max] pairs; missing bounds keep their defaults.
func loadSearchRequestFromConfig(path string) (hypermlp.SearchRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return hypermlp.SearchRequest{}, err
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return hypermlp.SearchRequest{}, err
	}

	var req hypermlp.SearchRequest
	if v, ok := asString(raw["data_a"]); ok {
		req.Data.DataA = v
	}
	if v, ok := asString(raw["data_b"]); ok {
		req.Data.DataB = v
	}
	if v, ok := asInt(raw["population"]); ok {
		req.Population = v
	}
	if v, ok := asInt(raw["generations"]); ok {
		req.Generations = v
	}
	if v, ok := asInt(raw["mutations_per_generation"]); ok {
		req.MutationsPerGeneration = v
	}
	if v, ok := asInt64(raw["seed"]); ok {
		req.Seed = v
	}
	if v, ok := asInt(raw["workers"]); ok {
		req.Workers = v
	}
	if v, ok := asString(raw["specie_identifier"]); ok {
		req.SpecieIdentifier = v
	}
	if v, ok := asString(raw["fitness_postprocessor"]); ok {
		req.FitnessPostprocessor = v
	}
	if v, ok := asBool(raw["retrain_best"]); ok {
		req.RetrainBest = v
	}
	if v, ok := asFloat64(raw["learning_rate"]); ok {
		req.Training.LearningRate = v
	}
	if v, ok := asFloat64(raw["momentum"]); ok {
		req.Training.Momentum = &v
	}
	if v, ok := asInt(raw["max_iterations"]); ok {
		req.Training.MaxIterations = v
	}
	if v, ok := asInt(raw["max_duration_ms"]); ok {
		req.Training.MaxDuration = time.Duration(v) * time.Millisecond
	}

	if rawBounds, ok := raw["bounds"].(map[string]any); ok {
		bounds, err := boundsFromMap(rawBounds)
		if err != nil {
			return hypermlp.SearchRequest{}, err
		}
		req.Bounds = bounds
	}
	return req, nil
}

func boundsFromMap(raw map[string]any) (evo.Bounds, error) {
	bounds := evo.DefaultBounds()
	intRanges := map[string]*evo.IntRange{
		"hidden_layers":      &bounds.HiddenLayers,
		"neurons":            &bounds.Neurons,
		"stagnation_window":  &bounds.StagnationWindow,
		"mutation_intensity": &bounds.MutationIntensity,
	}
	for key, target := range intRanges {
		v, ok := raw[key]
		if !ok {
			continue
		}
		lo, hi, err := asPair(key, v)
		if err != nil {
			return evo.Bounds{}, err
		}
		*target = evo.IntRange{Min: int(lo), Max: int(hi)}
	}
	floatRanges := map[string]*evo.FloatRange{
		"gain":            &bounds.Gain,
		"target_accuracy": &bounds.TargetAccuracy,
	}
	for key, target := range floatRanges {
		v, ok := raw[key]
		if !ok {
			continue
		}
		lo, hi, err := asPair(key, v)
		if err != nil {
			return evo.Bounds{}, err
		}
		*target = evo.FloatRange{Min: lo, Max: hi}
	}
	if err := bounds.Validate(); err != nil {
		return evo.Bounds{}, err
	}
	return bounds, nil
}

func asPair(key string, v any) (float64, float64, error) {
	items, ok := v.([]any)
	if !ok || len(items) != 2 {
		return 0, 0, fmt.Errorf("bounds.%s must be a [min, max] pair", key)
	}
	lo, okLo := asFloat64(items[0])
	hi, okHi := asFloat64(items[1])
	if !okLo || !okHi {
		return 0, 0, fmt.Errorf("bounds.%s must contain numbers", key)
	}
	return lo, hi, nil
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asBool(v any) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

func asInt(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case float64:
		return int(x), true
	default:
		return 0, false
	}
}

func asInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case float64:
		return int64(x), true
	default:
		return 0, false
	}
}

func asFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	default:
		return 0, false
	}
}

// overrideFromFlags applies explicitly set flags on top of a loaded config.
func overrideFromFlags(req *hypermlp.SearchRequest, set map[string]bool, flagValue map[string]any) error {
	for name := range set {
		v, ok := flagValue[name]
		if !ok {
			continue
		}
		switch name {
		case "data-a":
			req.Data.DataA = v.(string)
		case "data-b":
			req.Data.DataB = v.(string)
		case "pop":
			req.Population = v.(int)
		case "gens":
			req.Generations = v.(int)
		case "mutations":
			req.MutationsPerGeneration = v.(int)
		case "seed":
			req.Seed = v.(int64)
		case "workers":
			req.Workers = v.(int)
		case "specie-identifier":
			req.SpecieIdentifier = v.(string)
		case "fitness-postprocessor":
			req.FitnessPostprocessor = v.(string)
		case "retrain-best":
			req.RetrainBest = v.(bool)
		case "learning-rate":
			req.Training.LearningRate = v.(float64)
		case "momentum":
			momentum := v.(float64)
			req.Training.Momentum = &momentum
		case "max-iterations":
			req.Training.MaxIterations = v.(int)
		case "max-duration":
			req.Training.MaxDuration = v.(time.Duration)
		default:
			return fmt.Errorf("unsupported override flag: %s", name)
		}
	}
	return nil
}

func parseLayers(s string) ([]int, error) {
	s = strings.Trim(strings.TrimSpace(s), "[]")
	if s == "" {
		return nil, fmt.Errorf("at least one hidden layer is required")
	}
	parts := strings.Split(s, ",")
	layers := make([]int, 0, len(parts))
	for _, part := range parts {
		width, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("invalid layer width %q: %w", part, err)
		}
		layers = append(layers, width)
	}
	return layers, nil
}

func formatLayers(layers []int) string {
	parts := make([]string, len(layers))
	for i, w := range layers {
		parts[i] = strconv.Itoa(w)
	}
	return strings.Join(parts, ",")
}

func manualConfig(layers []int, gain, target float64, window, intensity int) model.HyperConfig {
	return model.HyperConfig{
		HiddenLayers:      layers,
		Gain:              gain,
		TargetAccuracy:    target,
		StagnationWindow:  window,
		MutationIntensity: intensity,
	}
}
