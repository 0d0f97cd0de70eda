// Package scape hosts the environments agents live in. A scape owns the
// world state, builds each agent's percept, executes the returned motor and
// reports the objects the agent ended up with.
package scape

import (
	"context"

	protoio "animat/internal/io"
	"animat/internal/reward"
)

type Trace map[string]any

// Agent is what a scape drives once per tick.
type Agent interface {
	ID() string
	Viable() bool
	Program(ctx context.Context, percept protoio.Percept) (protoio.Motor, error)
	Reward(ctx context.Context, action protoio.Motor, colocated []protoio.Kind) (reward.Vector, error)
}

type Position struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
}

// AgentStep is what happened to one agent in one tick.
type AgentStep struct {
	AgentID string
	Action  protoio.Motor
	From    Position
	To      Position
	Bumped  bool
	Eaten   int
	Reward  reward.Vector
	Viable  bool
}

type StepResult struct {
	Tick    int
	Agents  []AgentStep
	Spawned int
	Trace   Trace
}

type Scape interface {
	Name() string
	Step(ctx context.Context) (StepResult, error)
	// Alive counts the agents that still act.
	Alive() int
}

// World is a scape agents are placed into before the first step.
type World interface {
	Scape
	Add(agent Agent, pos Position) error
	Position(agentID string) (Position, bool)
}

var (
	_ World = (*Sea)(nil)
	_ World = (*Grid)(nil)
)

// Run steps s until steps ticks have run or no agent is viable. observe,
// when set, sees every step result; an error from it stops the run.
func Run(ctx context.Context, s Scape, steps int, observe func(StepResult) error) (int, error) {
	ticks := 0
	for ticks < steps {
		if err := ctx.Err(); err != nil {
			return ticks, err
		}
		if s.Alive() == 0 {
			break
		}
		result, err := s.Step(ctx)
		if err != nil {
			return ticks, err
		}
		ticks++
		if observe != nil {
			if err := observe(result); err != nil {
				return ticks, err
			}
		}
	}
	return ticks, nil
}
