package motor

import (
	"fmt"
	"strings"

	protoio "animat/internal/io"
	"animat/internal/model"
	"animat/internal/network"
)

type Predicate interface {
	Match(set network.ActivationSet) bool
	String() string
}

type allActive []int

func (p allActive) Match(set network.ActivationSet) bool {
	for _, id := range p {
		if !set.Has(id) {
			return false
		}
	}
	return true
}

func (p allActive) String() string { return "all" + idList(p) }

type anyActive []int

func (p anyActive) Match(set network.ActivationSet) bool {
	for _, id := range p {
		if set.Has(id) {
			return true
		}
	}
	return false
}

func (p anyActive) String() string { return "any" + idList(p) }

type noneActive []int

func (p noneActive) Match(set network.ActivationSet) bool {
	return !anyActive(p).Match(set)
}

func (p noneActive) String() string { return "none" + idList(p) }

type always struct{}

func (always) Match(network.ActivationSet) bool { return true }

func (always) String() string { return "always" }

func Active(id int) Predicate { return allActive{id} }

func AllActive(ids ...int) Predicate { return allActive(append([]int(nil), ids...)) }

func AnyActive(ids ...int) Predicate { return anyActive(append([]int(nil), ids...)) }

func NoneActive(ids ...int) Predicate { return noneActive(append([]int(nil), ids...)) }

func Always() Predicate { return always{} }

func idList(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprint(id)
	}
	return "(" + strings.Join(parts, ",") + ")"
}

type Rule struct {
	Name  string
	When  Predicate
	Motor protoio.Motor
}

// Priority evaluates rules top to bottom; the first match wins and the
// default answers when none match.
type Priority struct {
	rules    []Rule
	fallback Chooser
}

func NewPriority(rules []Rule, fallback Chooser) (*Priority, error) {
	if fallback == nil {
		return nil, fmt.Errorf("%w: priority rules require a trailing default", model.ErrConfiguration)
	}
	if f, ok := fallback.(fixed); ok && f == "" {
		return nil, fmt.Errorf("%w: priority default motor is empty", model.ErrConfiguration)
	}
	for i, rule := range rules {
		if rule.When == nil {
			return nil, fmt.Errorf("%w: rule %d (%s) has no predicate", model.ErrConfiguration, i, rule.Name)
		}
		if rule.Motor == "" {
			return nil, fmt.Errorf("%w: rule %d (%s) has no motor", model.ErrConfiguration, i, rule.Name)
		}
	}
	return &Priority{rules: append([]Rule(nil), rules...), fallback: fallback}, nil
}

func (p *Priority) Resolve(set network.ActivationSet) protoio.Motor {
	m, _ := p.Explain(set)
	return m
}

// Explain is Resolve plus the name of the rule that produced the command
// ("default" for the fallback).
func (p *Priority) Explain(set network.ActivationSet) (protoio.Motor, string) {
	for i, rule := range p.rules {
		if rule.When.Match(set) {
			name := rule.Name
			if name == "" {
				name = fmt.Sprintf("rule-%d", i)
			}
			return rule.Motor, name
		}
	}
	return p.fallback.Choose(set), "default"
}
