package stats

import (
	"math"
	"slices"
	"sort"

	"animat/internal/model"
	"animat/internal/network"
)

// PolicyFromQTable derives U and Pi from an exported table. Entries of one
// state arrive in action order, so the first maximum wins ties.
func PolicyFromQTable(table model.QTableRecord) model.PolicyRecord {
	record := model.PolicyRecord{
		Objective: table.Objective,
		U:         map[string]float64{},
		Pi:        map[string]string{},
	}
	for _, entry := range table.Entries {
		best, ok := record.U[entry.State]
		if ok && entry.Value <= best {
			continue
		}
		record.U[entry.State] = entry.Value
		record.Pi[entry.State] = entry.Action
	}
	return record
}

// PoliciesFromQTables groups derived policies by agent.
func PoliciesFromQTables(tables []model.QTableRecord) map[string][]model.PolicyRecord {
	out := make(map[string][]model.PolicyRecord)
	for _, table := range tables {
		out[table.AgentID] = append(out[table.AgentID], PolicyFromQTable(table))
	}
	return out
}

// SortStates orders activation keys by their node ids, so "{2}" comes
// before "{10}". Keys that do not parse go last, in text order.
func SortStates(states []string) {
	parsed := make(map[string][]int, len(states))
	for _, state := range states {
		if set, err := network.ParseActivationKey(state); err == nil {
			parsed[state] = set.IDs()
		}
	}
	sort.SliceStable(states, func(i, j int) bool {
		a, aok := parsed[states[i]]
		b, bok := parsed[states[j]]
		if aok != bok {
			return aok
		}
		if !aok {
			return states[i] < states[j]
		}
		return slices.Compare(a, b) < 0
	})
}

type ObjectiveSummary struct {
	Objective string  `json:"objective"`
	Initial   float64 `json:"initial"`
	Final     float64 `json:"final"`
	Min       float64 `json:"min"`
	Max       float64 `json:"max"`
	Reward    float64 `json:"reward"`
}

// SummarizeHistory reports per-objective extremes and accumulated reward
// over a status history, in sorted objective order.
func SummarizeHistory(samples []model.StatusSample) []ObjectiveSummary {
	objectives := historyObjectives(samples)
	out := make([]ObjectiveSummary, 0, len(objectives))
	for _, name := range objectives {
		summary := ObjectiveSummary{Objective: name, Min: math.Inf(1), Max: math.Inf(-1)}
		for i, sample := range samples {
			value := sample.Status[name]
			if i == 0 {
				summary.Initial = value
			}
			summary.Final = value
			summary.Min = math.Min(summary.Min, value)
			summary.Max = math.Max(summary.Max, value)
			summary.Reward += sample.Reward[name]
		}
		if len(samples) == 0 {
			summary.Min, summary.Max = 0, 0
		}
		out = append(out, summary)
	}
	return out
}
