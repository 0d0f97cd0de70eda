// Package motor turns an activation set into exactly one motor command.
//
// Two strategies are provided: Table, an exact lookup with a mandatory
// default for misses, and Priority, an ordered rule list with a mandatory
// trailing default.
package motor

import (
	"fmt"

	"animat/internal/entropy"
	protoio "animat/internal/io"
	"animat/internal/model"
	"animat/internal/network"
)

type Resolver interface {
	Resolve(set network.ActivationSet) protoio.Motor
}

// Chooser produces the command used when nothing more specific applies.
type Chooser interface {
	Choose(set network.ActivationSet) protoio.Motor
}

type ChooserFunc func(set network.ActivationSet) protoio.Motor

func (f ChooserFunc) Choose(set network.ActivationSet) protoio.Motor {
	return f(set)
}

type fixed protoio.Motor

func (f fixed) Choose(network.ActivationSet) protoio.Motor {
	return protoio.Motor(f)
}

func (f fixed) String() string {
	return string(f)
}

func Fixed(m protoio.Motor) Chooser {
	return fixed(m)
}

// Uniform picks one of its motors with equal probability, splitting one
// uniform draw into len(motors) equal bands in list order.
type Uniform struct {
	motors []protoio.Motor
	source entropy.Source
}

func NewUniform(motors []protoio.Motor, source entropy.Source) (*Uniform, error) {
	if len(motors) == 0 {
		return nil, fmt.Errorf("%w: uniform chooser needs at least one motor", model.ErrConfiguration)
	}
	if source == nil {
		return nil, fmt.Errorf("%w: uniform chooser needs a random source", model.ErrConfiguration)
	}
	for _, m := range motors {
		if m == "" {
			return nil, fmt.Errorf("%w: uniform chooser has an empty motor", model.ErrConfiguration)
		}
	}
	return &Uniform{motors: append([]protoio.Motor(nil), motors...), source: source}, nil
}

func (u *Uniform) Choose(network.ActivationSet) protoio.Motor {
	i := int(u.source.Float64() * float64(len(u.motors)))
	if i >= len(u.motors) {
		i = len(u.motors) - 1
	}
	return u.motors[i]
}
