package reward

import (
	"log/slog"
	"sort"

	protoio "animat/internal/io"
	"animat/internal/logging"
)

// Vector is the per-objective reward of one tick.
type Vector map[string]float64

func (v Vector) Get(objective string) float64 {
	return v[objective]
}

// Total sums the components, which is what the sum aggregator and the
// reports use.
func (v Vector) Total() float64 {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	total := 0.0
	for _, k := range keys {
		total += v[k]
	}
	return total
}

type Calculator struct {
	table  *Table
	logger *slog.Logger
}

func NewCalculator(table *Table, logger *slog.Logger) *Calculator {
	return &Calculator{table: table, logger: logging.OrDefault(logger)}
}

// Apply adds every matching delta to status and returns them as a vector
// holding a component for each tracked objective. Deltas for objectives the
// status does not track are dropped. Apply never fails: an action or kind
// without rules simply yields zero reward.
func (c *Calculator) Apply(action protoio.Motor, colocated []protoio.Kind, status *Status) Vector {
	vector := make(Vector, len(status.order))
	for _, name := range status.order {
		vector[name] = 0
	}

	matched := c.table.Matching(action, colocated)
	if len(matched) == 0 {
		c.logger.Debug("no reward rule", "action", action, "objects", colocated)
	}
	for _, rule := range matched {
		objectives := make([]string, 0, len(rule.Deltas))
		for name := range rule.Deltas {
			objectives = append(objectives, name)
		}
		sort.Strings(objectives)
		for _, name := range objectives {
			if !status.tracks(name) {
				c.logger.Debug("reward for untracked objective", "rule", rule.String(), "objective", name)
				continue
			}
			delta := rule.Deltas[name]
			status.add(name, delta)
			vector[name] += delta
		}
	}

	wasViable := status.viable
	status.recompute()
	if wasViable && !status.viable {
		c.logger.Debug("objective reached floor", "action", action, "status", status.String())
	}
	return vector
}
