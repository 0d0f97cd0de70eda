package reward

import (
	"fmt"
	"math"
	"sort"

	"animat/internal/model"
)

type Objective struct {
	Name     string
	Baseline float64
	// Floor is the value at or below which the agent dies.
	Floor float64
}

// Status holds an agent's objective accumulators. Once the agent is
// non-viable it stays that way.
type Status struct {
	order  []string
	values map[string]float64
	floors map[string]float64
	viable bool
}

func NewStatus(objectives ...Objective) (*Status, error) {
	if len(objectives) == 0 {
		return nil, fmt.Errorf("%w: status needs at least one objective", model.ErrConfiguration)
	}
	s := &Status{
		order:  make([]string, 0, len(objectives)),
		values: make(map[string]float64, len(objectives)),
		floors: make(map[string]float64, len(objectives)),
	}
	for _, o := range objectives {
		if o.Name == "" {
			return nil, fmt.Errorf("%w: objective has no name", model.ErrConfiguration)
		}
		if _, dup := s.values[o.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate objective %s", model.ErrConfiguration, o.Name)
		}
		if math.IsNaN(o.Baseline) || math.IsNaN(o.Floor) {
			return nil, fmt.Errorf("%w: objective %s has NaN baseline or floor", model.ErrConfiguration, o.Name)
		}
		s.order = append(s.order, o.Name)
		s.values[o.Name] = o.Baseline
		s.floors[o.Name] = o.Floor
	}
	s.viable = true
	s.recompute()
	return s, nil
}

// Objectives returns the tracked objective names in declaration order.
func (s *Status) Objectives() []string {
	return append([]string(nil), s.order...)
}

func (s *Status) Value(name string) (float64, bool) {
	v, ok := s.values[name]
	return v, ok
}

func (s *Status) Values() map[string]float64 {
	out := make(map[string]float64, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

func (s *Status) Viable() bool {
	return s.viable
}

func (s *Status) tracks(name string) bool {
	_, ok := s.values[name]
	return ok
}

func (s *Status) add(name string, delta float64) {
	s.values[name] += delta
}

func (s *Status) recompute() {
	if !s.viable {
		return
	}
	for _, name := range s.order {
		if s.values[name] <= s.floors[name] {
			s.viable = false
			return
		}
	}
}

func (s *Status) String() string {
	names := append([]string(nil), s.order...)
	sort.Strings(names)
	out := "{"
	for i, name := range names {
		if i > 0 {
			out += " "
		}
		out += fmt.Sprintf("%s:%.4g", name, s.values[name])
	}
	return out + "}"
}
