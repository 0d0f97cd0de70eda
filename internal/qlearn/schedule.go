package qlearn

import (
	"fmt"
	"strings"

	"animat/internal/model"
)

// AlphaSchedule gives the learning rate for the n-th visit (n >= 1) of a
// (state, action) pair.
type AlphaSchedule interface {
	Name() string
	Alpha(n int) float64
}

// HyperbolicAlpha is A/(B+n). The 60/59 default starts at 1 and decays
// slowly enough for the tables to keep moving over long runs.
type HyperbolicAlpha struct {
	A float64
	B float64
}

func (HyperbolicAlpha) Name() string { return "hyperbolic" }

func (s HyperbolicAlpha) Alpha(n int) float64 {
	return s.A / (s.B + float64(n))
}

type InverseAlpha struct{}

func (InverseAlpha) Name() string { return "inverse" }

func (InverseAlpha) Alpha(n int) float64 {
	if n < 1 {
		n = 1
	}
	return 1 / float64(n)
}

type ConstantAlpha struct {
	Rate float64
}

func (ConstantAlpha) Name() string { return "constant" }

func (s ConstantAlpha) Alpha(int) float64 { return s.Rate }

func DefaultAlpha() AlphaSchedule {
	return HyperbolicAlpha{A: 60, B: 59}
}

func NormalizeAlphaScheduleName(name string) string {
	return strings.ToLower(strings.TrimSpace(strings.ReplaceAll(name, "-", "_")))
}

// AlphaScheduleFromConfig maps a configured name and its parameters onto a
// schedule. Zero parameters fall back to the defaults for that schedule.
func AlphaScheduleFromConfig(name string, a, b float64) (AlphaSchedule, error) {
	switch NormalizeAlphaScheduleName(name) {
	case "", "hyperbolic":
		if a == 0 && b == 0 {
			return DefaultAlpha(), nil
		}
		if a <= 0 || b+1 <= 0 {
			return nil, fmt.Errorf("%w: hyperbolic alpha needs a > 0 and b > -1, got %v/%v", model.ErrConfiguration, a, b)
		}
		return HyperbolicAlpha{A: a, B: b}, nil
	case "inverse", "one_over_n":
		return InverseAlpha{}, nil
	case "constant", "fixed":
		rate := a
		if rate == 0 {
			rate = 0.1
		}
		if rate < 0 || rate > 1 {
			return nil, fmt.Errorf("%w: constant alpha %v outside (0, 1]", model.ErrConfiguration, rate)
		}
		return ConstantAlpha{Rate: rate}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported alpha schedule: %s", model.ErrConfiguration, name)
	}
}
