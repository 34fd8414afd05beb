package evo

import (
	"fmt"
	"strings"

	"hypermlp/internal/model"
)

// SpecieIdentifier assigns a stable species key to a configuration.
type SpecieIdentifier interface {
	Name() string
	Identify(cfg model.HyperConfig) string
}

// TopologySpecieIdentifier groups configurations by exact hidden layer widths.
type TopologySpecieIdentifier struct{}

func (TopologySpecieIdentifier) Name() string {
	return "topology"
}

func (TopologySpecieIdentifier) Identify(cfg model.HyperConfig) string {
	widths := make([]string, len(cfg.HiddenLayers))
	for i, w := range cfg.HiddenLayers {
		widths[i] = fmt.Sprint(w)
	}
	return fmt.Sprintf("l:%d-n:%s", len(cfg.HiddenLayers), strings.Join(widths, "x"))
}

// TotNSpecieIdentifier groups configurations by layer count and total hidden
// neuron count.
type TotNSpecieIdentifier struct{}

func (TotNSpecieIdentifier) Name() string {
	return "tot_n"
}

func (TotNSpecieIdentifier) Identify(cfg model.HyperConfig) string {
	total := 0
	for _, w := range cfg.HiddenLayers {
		total += w
	}
	return fmt.Sprintf("l:%d-tot_n:%d", len(cfg.HiddenLayers), total)
}

func SpecieIdentifierFromName(name string) (SpecieIdentifier, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "topology":
		return TopologySpecieIdentifier{}, nil
	case "tot_n":
		return TotNSpecieIdentifier{}, nil
	default:
		return nil, fmt.Errorf("unsupported specie identifier: %s", name)
	}
}

// CountSpecies returns the number of distinct species keys among members.
func CountSpecies(identifier SpecieIdentifier, members []*Candidate) int {
	keys := make(map[string]struct{}, len(members))
	for _, c := range members {
		keys[identifier.Identify(c.config)] = struct{}{}
	}
	return len(keys)
}
