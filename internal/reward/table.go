// Package reward maps an executed motor and the objects found at the
// agent's location onto objective deltas, and tracks each agent's
// objective status and viability.
package reward

import (
	"errors"
	"fmt"
	"math"
	"sort"

	protoio "animat/internal/io"
	"animat/internal/model"
)

var ErrUnknownActionOrObject = errors.New("reward table references unknown action or object")

const (
	// AnyAction matches every executed motor.
	AnyAction protoio.Motor = "*"
	// NoObject matches regardless of what is at the location. Rules keyed by
	// it carry ambient costs.
	NoObject protoio.Kind = ""
)

// Deltas maps objective names to the amount added on a match.
type Deltas map[string]float64

type Rule struct {
	Action protoio.Motor
	Object protoio.Kind
	Deltas Deltas
}

func (r Rule) String() string {
	object := string(r.Object)
	if r.Object == NoObject {
		object = "<none>"
	}
	return fmt.Sprintf("%s/%s", r.Action, object)
}

// Table is an immutable, ordered list of reward rules.
type Table struct {
	rules []Rule
}

func NewTable(rules ...Rule) (*Table, error) {
	seen := make(map[string]struct{}, len(rules))
	out := make([]Rule, 0, len(rules))
	for i, rule := range rules {
		if rule.Action == "" {
			return nil, fmt.Errorf("%w: reward rule %d has no action", model.ErrConfiguration, i)
		}
		key := rule.String()
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("%w: duplicate reward rule %s", model.ErrConfiguration, key)
		}
		seen[key] = struct{}{}
		deltas := make(Deltas, len(rule.Deltas))
		for objective, delta := range rule.Deltas {
			if objective == "" {
				return nil, fmt.Errorf("%w: reward rule %s has an unnamed objective", model.ErrConfiguration, key)
			}
			if math.IsNaN(delta) || math.IsInf(delta, 0) {
				return nil, fmt.Errorf("%w: reward rule %s has non-finite delta for %s", model.ErrConfiguration, key, objective)
			}
			deltas[objective] = delta
		}
		out = append(out, Rule{Action: rule.Action, Object: rule.Object, Deltas: deltas})
	}
	return &Table{rules: out}, nil
}

// FromMap builds a table from the nested action -> object -> objective form
// used by configuration files. Rules are ordered by action then object so
// summation order is stable.
func FromMap(m map[string]map[string]map[string]float64) (*Table, error) {
	actions := make([]string, 0, len(m))
	for action := range m {
		actions = append(actions, action)
	}
	sort.Strings(actions)

	var rules []Rule
	for _, action := range actions {
		objects := make([]string, 0, len(m[action]))
		for object := range m[action] {
			objects = append(objects, object)
		}
		sort.Strings(objects)
		for _, object := range objects {
			rules = append(rules, Rule{
				Action: protoio.Motor(action),
				Object: protoio.Kind(object),
				Deltas: Deltas(m[action][object]),
			})
		}
	}
	return NewTable(rules...)
}

func (t *Table) Rules() []Rule {
	out := make([]Rule, len(t.rules))
	for i, rule := range t.rules {
		deltas := make(Deltas, len(rule.Deltas))
		for k, v := range rule.Deltas {
			deltas[k] = v
		}
		out[i] = Rule{Action: rule.Action, Object: rule.Object, Deltas: deltas}
	}
	return out
}

// Matching returns the rules that fire for action with the given kinds
// present. Each present kind counts once however many objects of it there
// are.
func (t *Table) Matching(action protoio.Motor, present []protoio.Kind) []Rule {
	kinds := make(map[protoio.Kind]struct{}, len(present))
	for _, k := range present {
		kinds[k] = struct{}{}
	}
	var out []Rule
	for _, rule := range t.rules {
		if rule.Action != action && rule.Action != AnyAction {
			continue
		}
		if rule.Object != NoObject {
			if _, ok := kinds[rule.Object]; !ok {
				continue
			}
		}
		out = append(out, rule)
	}
	return out
}

// Validate is the exhaustive check: every rule must name a known motor,
// object kind and objective, and every motor must be covered by at least
// one rule.
func (t *Table) Validate(motors []protoio.Motor, kinds []protoio.Kind, objectives []string) error {
	knownMotors := make(map[protoio.Motor]struct{}, len(motors))
	for _, m := range motors {
		knownMotors[m] = struct{}{}
	}
	knownKinds := make(map[protoio.Kind]struct{}, len(kinds))
	for _, k := range kinds {
		knownKinds[k] = struct{}{}
	}
	knownObjectives := make(map[string]struct{}, len(objectives))
	for _, o := range objectives {
		knownObjectives[o] = struct{}{}
	}

	covered := make(map[protoio.Motor]bool, len(motors))
	wildcard := false
	for _, rule := range t.rules {
		if rule.Action == AnyAction {
			wildcard = true
		} else if _, ok := knownMotors[rule.Action]; !ok {
			return fmt.Errorf("%w: action %q in rule %s", ErrUnknownActionOrObject, rule.Action, rule)
		}
		covered[rule.Action] = true
		if rule.Object != NoObject {
			if _, ok := knownKinds[rule.Object]; !ok {
				return fmt.Errorf("%w: object %q in rule %s", ErrUnknownActionOrObject, rule.Object, rule)
			}
		}
		for objective := range rule.Deltas {
			if _, ok := knownObjectives[objective]; !ok {
				return fmt.Errorf("%w: objective %q in rule %s", ErrUnknownActionOrObject, objective, rule)
			}
		}
	}
	if wildcard {
		return nil
	}
	for _, m := range motors {
		if !covered[m] {
			return fmt.Errorf("%w: no rule for action %q", ErrUnknownActionOrObject, m)
		}
	}
	return nil
}
