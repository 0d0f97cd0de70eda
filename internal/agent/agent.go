// Package agent runs one animat per tick: evaluate the logic network over
// the percept, credit the previous action with the reward it earned, then
// decide the next motor.
//
// Reward for an action is only known after the environment has executed it,
// so Reward records it and the following Program call learns from it. A
// transition that kills the agent is learned immediately as terminal.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	protoio "animat/internal/io"
	"animat/internal/logging"
	"animat/internal/model"
	"animat/internal/network"
	"animat/internal/qlearn"
	"animat/internal/reward"
)

var (
	ErrNotViable  = errors.New("agent is not viable")
	ErrNoDecision = errors.New("reward reported before any decision")
)

type Config struct {
	ID         string
	Network    *network.Network
	Decider    Decider
	Calculator *reward.Calculator
	Status     *reward.Status
	// Policy, when set, learns from every transition whatever the Decider.
	Policy *qlearn.Policy
	// StateKey defaults to FullStateKey.
	StateKey   StateKey
	Logger     *slog.Logger
	Decisions  *logging.DecisionLog
	Middleware []Middleware
}

type transition struct {
	state  string
	action protoio.Motor
	reward reward.Vector
}

type Agent struct {
	id         string
	network    *network.Network
	decider    Decider
	calculator *reward.Calculator
	status     *reward.Status
	policy     *qlearn.Policy
	stateKey   StateKey
	logger     *slog.Logger
	decisions  *logging.DecisionLog
	stages     []Stage

	tick    int
	last    *Tick
	pending *transition
	history []model.StatusSample
}

func New(cfg Config) (*Agent, error) {
	if cfg.ID == "" {
		return nil, fmt.Errorf("%w: agent id is required", model.ErrConfiguration)
	}
	if cfg.Network == nil {
		return nil, fmt.Errorf("%w: agent %s has no network", model.ErrConfiguration, cfg.ID)
	}
	if cfg.Decider == nil {
		return nil, fmt.Errorf("%w: agent %s has no decider", model.ErrConfiguration, cfg.ID)
	}
	if cfg.Calculator == nil || cfg.Status == nil {
		return nil, fmt.Errorf("%w: agent %s needs a reward calculator and status", model.ErrConfiguration, cfg.ID)
	}
	a := &Agent{
		id:         cfg.ID,
		network:    cfg.Network,
		decider:    cfg.Decider,
		calculator: cfg.Calculator,
		status:     cfg.Status,
		policy:     cfg.Policy,
		stateKey:   cfg.StateKey,
		logger:     logging.OrDefault(cfg.Logger).With("agent", cfg.ID),
		decisions:  cfg.Decisions,
	}
	if a.stateKey == nil {
		a.stateKey = FullStateKey
	}

	stages := []Stage{
		{Name: StageEvaluate, Run: a.evaluate},
		{Name: StageLearn, Run: a.learn},
		{Name: StageDecide, Run: a.decide},
	}
	for i := range stages {
		for j := len(cfg.Middleware) - 1; j >= 0; j-- {
			stages[i] = cfg.Middleware[j](stages[i])
		}
	}
	a.stages = stages
	return a, nil
}

func (a *Agent) ID() string { return a.id }

func (a *Agent) Network() *network.Network { return a.network }

func (a *Agent) Status() *reward.Status { return a.status }

func (a *Agent) Viable() bool { return a.status.Viable() }

// Ticks is the number of completed Program calls.
func (a *Agent) Ticks() int { return a.tick }

// Policy returns the learning policy, or nil for a fixed-rule agent.
func (a *Agent) Policy() *qlearn.Policy { return a.policy }

// Program runs evaluate, learn and decide for one tick and returns the
// motor the environment should execute. A tick is never cut short by ctx;
// cancellation is observed between ticks by scape.Run.
func (a *Agent) Program(ctx context.Context, percept protoio.Percept) (protoio.Motor, error) {
	if !a.status.Viable() {
		return "", fmt.Errorf("%w: %s", ErrNotViable, a.id)
	}
	tick := &Tick{Number: a.tick + 1, Percept: percept}
	if err := runStages(ctx, a.stages, tick); err != nil {
		return "", fmt.Errorf("agent %s tick %d: %w", a.id, tick.Number, err)
	}
	a.tick = tick.Number
	a.last = tick
	return tick.Action, nil
}

func (a *Agent) evaluate(_ context.Context, tick *Tick) error {
	tick.Set = a.network.Evaluate(tick.Percept)
	tick.State = a.stateKey(tick.Set)
	return nil
}

func (a *Agent) learn(_ context.Context, tick *Tick) error {
	if a.policy == nil || a.pending == nil {
		return nil
	}
	p := a.pending
	if err := a.policy.Learn(p.state, p.action, p.reward, tick.State, false); err != nil {
		return err
	}
	a.pending = nil
	tick.Learned = true
	return nil
}

func (a *Agent) decide(_ context.Context, tick *Tick) error {
	action := a.decider.Decide(tick.State, tick.Set)
	if action == "" {
		return fmt.Errorf("%w: decider returned no motor for %s", model.ErrConfiguration, tick.Set)
	}
	tick.Action = action
	return nil
}

// Reward applies the outcome of action, executed after the last Program
// call, to the agent's status and returns the reward vector. colocated are
// the kinds at the agent's location after the action.
func (a *Agent) Reward(_ context.Context, action protoio.Motor, colocated []protoio.Kind) (reward.Vector, error) {
	if a.last == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoDecision, a.id)
	}
	if !a.status.Viable() {
		return nil, fmt.Errorf("%w: %s", ErrNotViable, a.id)
	}
	vec := a.calculator.Apply(action, colocated, a.status)
	viable := a.status.Viable()

	a.history = append(a.history, model.StatusSample{
		Tick:   a.last.Number,
		Action: string(action),
		Reward: map[string]float64(vec),
		Status: a.status.Values(),
		Viable: viable,
	})
	a.decisions.Log(map[string]any{
		"agent":  a.id,
		"tick":   a.last.Number,
		"state":  a.last.State,
		"action": string(action),
		"reward": map[string]float64(vec),
		"status": a.status.Values(),
		"viable": viable,
	})

	if !viable {
		a.logger.Info("agent died", "tick", a.last.Number, "status", a.status.String())
	}
	if a.policy == nil {
		return vec, nil
	}
	if !viable {
		a.pending = nil
		if err := a.policy.Learn(a.last.State, action, vec, a.last.State, true); err != nil {
			return vec, fmt.Errorf("agent %s terminal update: %w", a.id, err)
		}
		return vec, nil
	}
	a.pending = &transition{state: a.last.State, action: action, reward: vec}
	return vec, nil
}

// UAndPi is the learning policy's snapshot, or nil without a policy.
func (a *Agent) UAndPi() map[string]qlearn.Snapshot {
	if a.policy == nil {
		return nil
	}
	return a.policy.UAndPi()
}

// History returns the status samples recorded by Reward, oldest first.
func (a *Agent) History() []model.StatusSample {
	return append([]model.StatusSample(nil), a.history...)
}

// Outcome summarises the agent for a run record.
func (a *Agent) Outcome() model.AgentOutcome {
	return model.AgentOutcome{
		AgentID: a.id,
		Viable:  a.status.Viable(),
		Status:  a.status.Values(),
		Ticks:   a.tick,
	}
}
