// Package qlearn implements a tabular, multi-objective Q-learning policy
// with optimistic exploration.
//
// One table is kept per objective over (state key, motor) pairs. Selection
// replaces the value of every pair visited fewer than Ne times with Rplus,
// aggregates the per-objective values and picks the best action; ties go to
// the earlier action in Config.Actions.
package qlearn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"animat/internal/entropy"
	protoio "animat/internal/io"
	"animat/internal/logging"
	"animat/internal/model"
	"animat/internal/reward"
)

var (
	ErrUnknownAction    = errors.New("unknown action")
	ErrUnknownObjective = errors.New("unknown objective")
)

type Config struct {
	Actions    []protoio.Motor
	Objectives []string
	Gamma      float64
	Ne         int
	Rplus      float64
	// Alpha defaults to 60/(59+n).
	Alpha   AlphaSchedule
	Epsilon float64
	// Aggregator defaults to SumAggregator.
	Aggregator Aggregator
	// Source is required when Epsilon > 0.
	Source entropy.Source
	Logger *slog.Logger
}

func (c Config) validate() error {
	if len(c.Actions) == 0 {
		return fmt.Errorf("%w: policy needs at least one action", model.ErrConfiguration)
	}
	seen := make(map[protoio.Motor]struct{}, len(c.Actions))
	for _, a := range c.Actions {
		if a == "" {
			return fmt.Errorf("%w: policy has an empty action", model.ErrConfiguration)
		}
		if _, dup := seen[a]; dup {
			return fmt.Errorf("%w: duplicate action %s", model.ErrConfiguration, a)
		}
		seen[a] = struct{}{}
	}
	if len(c.Objectives) == 0 {
		return fmt.Errorf("%w: policy needs at least one objective", model.ErrConfiguration)
	}
	objectives := make(map[string]struct{}, len(c.Objectives))
	for _, o := range c.Objectives {
		if _, dup := objectives[o]; dup || o == "" {
			return fmt.Errorf("%w: bad or duplicate objective %q", model.ErrConfiguration, o)
		}
		objectives[o] = struct{}{}
	}
	if !(c.Gamma > 0 && c.Gamma <= 1) {
		return fmt.Errorf("%w: gamma %v outside (0, 1]", model.ErrConfiguration, c.Gamma)
	}
	if c.Ne < 0 {
		return fmt.Errorf("%w: Ne %d is negative", model.ErrConfiguration, c.Ne)
	}
	if math.IsNaN(c.Rplus) || math.IsInf(c.Rplus, 0) {
		return fmt.Errorf("%w: Rplus is not finite", model.ErrConfiguration)
	}
	if !(c.Epsilon >= 0 && c.Epsilon <= 1) {
		return fmt.Errorf("%w: epsilon %v outside [0, 1]", model.ErrConfiguration, c.Epsilon)
	}
	if c.Epsilon > 0 && c.Source == nil {
		return fmt.Errorf("%w: epsilon exploration needs a random source", model.ErrConfiguration)
	}
	return nil
}

type cell struct {
	value  float64
	visits int
}

// table is one objective's Q and N, keyed by state then action.
type table map[string]map[protoio.Motor]*cell

func (t table) get(state string, action protoio.Motor) cell {
	if row, ok := t[state]; ok {
		if c, ok := row[action]; ok {
			return *c
		}
	}
	return cell{}
}

func (t table) ensure(state string, action protoio.Motor) *cell {
	row, ok := t[state]
	if !ok {
		row = make(map[protoio.Motor]*cell)
		t[state] = row
	}
	c, ok := row[action]
	if !ok {
		c = &cell{}
		row[action] = c
	}
	return c
}

// Policy owns its tables exclusively. It is not safe for concurrent use.
type Policy struct {
	cfg    Config
	tables []table
	index  map[string]int
	known  map[protoio.Motor]struct{}
	logger *slog.Logger
}

func New(cfg Config) (*Policy, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.Actions = append([]protoio.Motor(nil), cfg.Actions...)
	cfg.Objectives = append([]string(nil), cfg.Objectives...)
	if cfg.Alpha == nil {
		cfg.Alpha = DefaultAlpha()
	}
	if cfg.Aggregator == nil {
		cfg.Aggregator = SumAggregator{}
	}
	if w, ok := cfg.Aggregator.(WeightedAggregator); ok && len(w.Weights) > len(cfg.Objectives) {
		return nil, fmt.Errorf("%w: %d weights for %d objectives", model.ErrConfiguration, len(w.Weights), len(cfg.Objectives))
	}
	logger := logging.OrDefault(cfg.Logger)

	p := &Policy{
		cfg:    cfg,
		tables: make([]table, len(cfg.Objectives)),
		index:  make(map[string]int, len(cfg.Objectives)),
		known:  make(map[protoio.Motor]struct{}, len(cfg.Actions)),
		logger: logger,
	}
	for i, o := range cfg.Objectives {
		p.tables[i] = make(table)
		p.index[o] = i
	}
	for _, a := range cfg.Actions {
		p.known[a] = struct{}{}
	}
	return p, nil
}

func (p *Policy) Actions() []protoio.Motor {
	return append([]protoio.Motor(nil), p.cfg.Actions...)
}

func (p *Policy) Objectives() []string {
	return append([]string(nil), p.cfg.Objectives...)
}

// explore is f(u, n): optimistic Rplus until a pair has been tried Ne times.
func (p *Policy) explore(c cell) float64 {
	if c.visits < p.cfg.Ne {
		return p.cfg.Rplus
	}
	return c.value
}

// Select picks the action for state. With probability Epsilon it picks
// uniformly at random instead of maximising.
func (p *Policy) Select(state string) protoio.Motor {
	if p.cfg.Epsilon > 0 && p.cfg.Source.Float64() < p.cfg.Epsilon {
		action := p.cfg.Actions[p.cfg.Source.IntN(len(p.cfg.Actions))]
		p.logger.Log(context.Background(), logging.LevelTrace, "epsilon action", "state", state, "action", action)
		return action
	}

	best := p.cfg.Actions[0]
	bestScore := p.scores(state, best)
	for _, action := range p.cfg.Actions[1:] {
		score := p.scores(state, action)
		if p.cfg.Aggregator.Compare(score, bestScore) > 0 {
			best, bestScore = action, score
		}
	}
	return best
}

func (p *Policy) scores(state string, action protoio.Motor) []float64 {
	out := make([]float64, len(p.tables))
	for i, t := range p.tables {
		out[i] = p.explore(t.get(state, action))
	}
	return out
}

// Learn applies one Q update per objective for the transition
// prev --action--> next. A terminal transition has no future value.
// Objectives missing from r receive zero reward.
func (p *Policy) Learn(prev string, action protoio.Motor, r reward.Vector, next string, terminal bool) error {
	if _, ok := p.known[action]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAction, action)
	}
	for i, t := range p.tables {
		objective := p.cfg.Objectives[i]
		best := 0.0
		if !terminal {
			best = p.maxValue(t, next)
		}
		c := t.ensure(prev, action)
		c.visits++
		alpha := p.cfg.Alpha.Alpha(c.visits)
		c.value += alpha * (r.Get(objective) + p.cfg.Gamma*best - c.value)
	}
	return nil
}

// maxValue is max over all actions of Q[state, a], unseen pairs counting 0.
func (p *Policy) maxValue(t table, state string) float64 {
	best := math.Inf(-1)
	for _, a := range p.cfg.Actions {
		if v := t.get(state, a).value; v > best {
			best = v
		}
	}
	return best
}

// Value returns Q and N for one pair of one objective.
func (p *Policy) Value(objective, state string, action protoio.Motor) (float64, int, error) {
	i, ok := p.index[objective]
	if !ok {
		return 0, 0, fmt.Errorf("%w: %s", ErrUnknownObjective, objective)
	}
	c := p.tables[i].get(state, action)
	return c.value, c.visits, nil
}

// Snapshot is the utility and greedy action per state of one objective.
type Snapshot struct {
	Objective string
	U         map[string]float64
	Pi        map[string]protoio.Motor
}

func (s Snapshot) Record() model.PolicyRecord {
	pi := make(map[string]string, len(s.Pi))
	for state, m := range s.Pi {
		pi[state] = string(m)
	}
	u := make(map[string]float64, len(s.U))
	for state, v := range s.U {
		u[state] = v
	}
	return model.PolicyRecord{Objective: s.Objective, U: u, Pi: pi}
}

// UAndPi computes, for every objective, U[s] = max_a Q[s,a] and
// Pi[s] = argmax_a Q[s,a] over the pairs recorded so far. Ties go to the
// earlier action. The result is freshly built on every call.
func (p *Policy) UAndPi() map[string]Snapshot {
	out := make(map[string]Snapshot, len(p.tables))
	for i, t := range p.tables {
		snap := Snapshot{
			Objective: p.cfg.Objectives[i],
			U:         make(map[string]float64, len(t)),
			Pi:        make(map[string]protoio.Motor, len(t)),
		}
		for state, row := range t {
			found := false
			var bestAction protoio.Motor
			bestValue := 0.0
			for _, a := range p.cfg.Actions {
				c, ok := row[a]
				if !ok {
					continue
				}
				if !found || c.value > bestValue {
					found, bestAction, bestValue = true, a, c.value
				}
			}
			if found {
				snap.U[state] = bestValue
				snap.Pi[state] = bestAction
			}
		}
		out[snap.Objective] = snap
	}
	return out
}

// Export lists the entries of every objective, sorted by state then action
// order, ready to be stored.
func (p *Policy) Export(agentID string) []model.QTableRecord {
	order := make(map[protoio.Motor]int, len(p.cfg.Actions))
	for i, a := range p.cfg.Actions {
		order[a] = i
	}
	records := make([]model.QTableRecord, 0, len(p.tables))
	for i, t := range p.tables {
		states := make([]string, 0, len(t))
		for state := range t {
			states = append(states, state)
		}
		sort.Strings(states)
		var entries []model.QEntry
		for _, state := range states {
			actions := make([]protoio.Motor, 0, len(t[state]))
			for a := range t[state] {
				actions = append(actions, a)
			}
			sort.Slice(actions, func(x, y int) bool { return order[actions[x]] < order[actions[y]] })
			for _, a := range actions {
				c := t[state][a]
				entries = append(entries, model.QEntry{State: state, Action: string(a), Value: c.value, Visits: c.visits})
			}
		}
		records = append(records, model.QTableRecord{
			AgentID:   agentID,
			Objective: p.cfg.Objectives[i],
			Entries:   entries,
		})
	}
	return records
}

// Import loads previously exported entries, overwriting matching pairs.
func (p *Policy) Import(records ...model.QTableRecord) error {
	for _, rec := range records {
		i, ok := p.index[rec.Objective]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownObjective, rec.Objective)
		}
		for _, e := range rec.Entries {
			action := protoio.Motor(e.Action)
			if _, ok := p.known[action]; !ok {
				return fmt.Errorf("%w: %s", ErrUnknownAction, e.Action)
			}
			if e.Visits < 0 {
				return fmt.Errorf("%w: negative visit count for %s/%s", model.ErrConfiguration, e.State, e.Action)
			}
			c := p.tables[i].ensure(e.State, action)
			c.value, c.visits = e.Value, e.Visits
		}
	}
	return nil
}
