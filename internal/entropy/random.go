// Package entropy provides the random source shared by a simulation run.
//
// A single Source is created per run and injected into every consumer
// (random logic nodes, exploration, fallback choosers, the scape). Sources
// are not safe for concurrent use.
package entropy

import (
	"errors"
	"fmt"
	"math/rand/v2"
)

var ErrEmptySequence = errors.New("sequence source has no values")

type Source interface {
	// Float64 returns a value in [0, 1).
	Float64() float64
	// IntN returns a value in [0, n). It panics if n <= 0.
	IntN(n int) int
}

// Snapshotter captures and restores the full generator state, which is what
// a replay needs when several consumers share one source.
type Snapshotter interface {
	Snapshot() ([]byte, error)
	Restore(state []byte) error
}

// PCGSource is a seeded PCG generator whose state can be captured.
type PCGSource struct {
	pcg   *rand.PCG
	rng   *rand.Rand
	draws uint64
}

func NewSource(seed uint64) *PCGSource {
	pcg := rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
	return &PCGSource{pcg: pcg, rng: rand.New(pcg)}
}

func (s *PCGSource) Float64() float64 {
	s.draws++
	return s.rng.Float64()
}

func (s *PCGSource) IntN(n int) int {
	s.draws++
	return s.rng.IntN(n)
}

// Draws reports how many values have been consumed since construction.
func (s *PCGSource) Draws() uint64 {
	return s.draws
}

func (s *PCGSource) Snapshot() ([]byte, error) {
	state, err := s.pcg.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("snapshot pcg state: %w", err)
	}
	return state, nil
}

func (s *PCGSource) Restore(state []byte) error {
	if err := s.pcg.UnmarshalBinary(state); err != nil {
		return fmt.Errorf("restore pcg state: %w", err)
	}
	return nil
}

// Sequence replays a fixed list of floats, wrapping around at the end. It is
// used to script random draws in tests and replays.
type Sequence struct {
	values []float64
	next   int
}

func NewSequence(values ...float64) (*Sequence, error) {
	if len(values) == 0 {
		return nil, ErrEmptySequence
	}
	for _, v := range values {
		if v < 0 || v >= 1 {
			return nil, fmt.Errorf("sequence value %v outside [0, 1)", v)
		}
	}
	return &Sequence{values: append([]float64(nil), values...)}, nil
}

// MustSequence is NewSequence for literals known to be valid.
func MustSequence(values ...float64) *Sequence {
	s, err := NewSequence(values...)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Sequence) Float64() float64 {
	v := s.values[s.next]
	s.next = (s.next + 1) % len(s.values)
	return v
}

func (s *Sequence) IntN(n int) int {
	if n <= 0 {
		panic("entropy: invalid argument to IntN")
	}
	return int(s.Float64() * float64(n))
}

func (s *Sequence) Snapshot() ([]byte, error) {
	return []byte{byte(s.next >> 8), byte(s.next)}, nil
}

func (s *Sequence) Restore(state []byte) error {
	if len(state) != 2 {
		return fmt.Errorf("sequence state must be 2 bytes, got %d", len(state))
	}
	next := int(state[0])<<8 | int(state[1])
	if next >= len(s.values) {
		return fmt.Errorf("sequence position %d out of range", next)
	}
	s.next = next
	return nil
}
