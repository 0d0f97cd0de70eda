package agent

import (
	protoio "animat/internal/io"
	"animat/internal/motor"
	"animat/internal/network"
	"animat/internal/qlearn"
)

// StateKey abstracts an activation set into the key used by the learning
// tables, so that equivalent percepts share a row.
type StateKey func(set network.ActivationSet) string

// FullStateKey uses the whole activation set.
func FullStateKey(set network.ActivationSet) string {
	return set.Key()
}

// ProjectedStateKey keeps only the given node ids, typically the sensors.
func ProjectedStateKey(ids ...int) StateKey {
	mask := network.NewActivationSet(ids...)
	return func(set network.ActivationSet) string {
		return set.Intersect(mask).Key()
	}
}

// Decider picks the motor for one tick.
type Decider interface {
	Decide(state string, set network.ActivationSet) protoio.Motor
}

// ResolverDecider decides from the activation set alone.
type ResolverDecider struct {
	Resolver motor.Resolver
}

func (d ResolverDecider) Decide(_ string, set network.ActivationSet) protoio.Motor {
	return d.Resolver.Resolve(set)
}

// PolicyDecider asks the learning policy.
type PolicyDecider struct {
	Policy *qlearn.Policy
}

func (d PolicyDecider) Decide(state string, _ network.ActivationSet) protoio.Motor {
	return d.Policy.Select(state)
}

// PolicyChooser lets a priority list fall back to the learning policy for
// the sets no rule claims.
func PolicyChooser(policy *qlearn.Policy, key StateKey) motor.Chooser {
	if key == nil {
		key = FullStateKey
	}
	return motor.ChooserFunc(func(set network.ActivationSet) protoio.Motor {
		return policy.Select(key(set))
	})
}
