package qlearn

import (
	"fmt"
	"math"
	"strings"

	"animat/internal/model"
)

// Aggregator orders per-objective exploration values so that one action can
// be chosen. Compare returns a positive number when a is preferred to b,
// negative when b is preferred and zero on a tie. Vectors are in objective
// order.
type Aggregator interface {
	Name() string
	Compare(a, b []float64) int
}

type SumAggregator struct{}

func (SumAggregator) Name() string { return "sum" }

func (SumAggregator) Compare(a, b []float64) int {
	return compareScalar(sum(a, nil), sum(b, nil))
}

// WeightedAggregator scales each objective before summing. Missing weights
// count as 1.
type WeightedAggregator struct {
	Weights []float64
}

func (WeightedAggregator) Name() string { return "weighted" }

func (w WeightedAggregator) Compare(a, b []float64) int {
	return compareScalar(sum(a, w.Weights), sum(b, w.Weights))
}

// LexicographicAggregator compares objectives in priority order; later
// objectives only break ties of earlier ones.
type LexicographicAggregator struct{}

func (LexicographicAggregator) Name() string { return "lexicographic" }

func (LexicographicAggregator) Compare(a, b []float64) int {
	for i := range a {
		if i >= len(b) {
			break
		}
		if c := compareScalar(a[i], b[i]); c != 0 {
			return c
		}
	}
	return 0
}

func sum(values, weights []float64) float64 {
	total := 0.0
	for i, v := range values {
		w := 1.0
		if i < len(weights) {
			w = weights[i]
		}
		total += w * v
	}
	return total
}

func compareScalar(a, b float64) int {
	switch {
	case a > b:
		return 1
	case a < b:
		return -1
	default:
		return 0
	}
}

// AggregatorFromConfig resolves a configured aggregator. weights is keyed by
// objective and only used by "weighted".
func AggregatorFromConfig(name string, objectives []string, weights map[string]float64) (Aggregator, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "sum":
		return SumAggregator{}, nil
	case "weighted":
		ordered := make([]float64, len(objectives))
		for i, objective := range objectives {
			w, ok := weights[objective]
			if !ok {
				w = 1
			}
			if math.IsNaN(w) || math.IsInf(w, 0) {
				return nil, fmt.Errorf("%w: weight for %s is not finite", model.ErrConfiguration, objective)
			}
			ordered[i] = w
		}
		for objective := range weights {
			if !contains(objectives, objective) {
				return nil, fmt.Errorf("%w: weight for unknown objective %s", model.ErrConfiguration, objective)
			}
		}
		return WeightedAggregator{Weights: ordered}, nil
	case "lexicographic", "lex":
		return LexicographicAggregator{}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported aggregator: %s", model.ErrConfiguration, name)
	}
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
