package platform

import (
	"fmt"
	"log/slog"
	"sort"

	"animat/internal/agent"
	"animat/internal/config"
	"animat/internal/entropy"
	protoio "animat/internal/io"
	"animat/internal/logging"
	"animat/internal/model"
	"animat/internal/motor"
	"animat/internal/network"
	"animat/internal/qlearn"
	"animat/internal/reward"
	"animat/internal/scape"
)

// Assembly is everything a simulation description turns into.
type Assembly struct {
	World   scape.World
	Agents  []*agent.Agent
	Rewards *reward.Table
	Source  *entropy.PCGSource
}

type assembler struct {
	sim       *config.Simulation
	scape     string
	source    entropy.Source
	rewards   *reward.Table
	logger    *slog.Logger
	decisions *logging.DecisionLog
}

// Assemble builds the configured scape and its agents from sim. One random
// source seeded from sim.Seed is shared by every network, chooser, policy
// and the scape.
func Assemble(sim *config.Simulation, logger *slog.Logger, decisions *logging.DecisionLog) (*Assembly, error) {
	if err := sim.Validate(); err != nil {
		return nil, err
	}
	logger = logging.OrDefault(logger)

	rewards, err := reward.FromMap(sim.Rewards)
	if err != nil {
		return nil, fmt.Errorf("%w: rewards: %w", model.ErrConfiguration, err)
	}
	if err := validateRewards(sim, rewards); err != nil {
		return nil, err
	}

	source := entropy.NewSource(sim.Seed)
	a := assembler{sim: sim, scape: sim.ScapeName(), source: source, rewards: rewards, logger: logger, decisions: decisions}

	world, err := a.world()
	if err != nil {
		return nil, err
	}

	out := &Assembly{World: world, Rewards: rewards, Source: source}
	for _, cfg := range sim.Agents {
		built, err := a.agent(cfg)
		if err != nil {
			return nil, err
		}
		if err := world.Add(built, scape.Position{X: cfg.Start.X, Y: cfg.Start.Y}); err != nil {
			return nil, fmt.Errorf("%w: place %s: %v", model.ErrConfiguration, cfg.ID, err)
		}
		out.Agents = append(out.Agents, built)
	}
	return out, nil
}

func (a assembler) world() (scape.World, error) {
	switch a.scape {
	case scape.GridName:
		return scape.NewGrid(scape.GridConfig{
			Things:        a.sim.Grid.Things,
			Exogenous:     a.sim.Grid.Exogenous,
			ExogenousProb: a.sim.Grid.ExogenousProb,
			Source:        a.source,
			Logger:        a.logger,
		})
	default:
		return scape.NewSea(scape.SeaConfig{
			Things:        a.sim.Sea.Things,
			Exogenous:     a.sim.Sea.Exogenous,
			ExogenousProb: a.sim.Sea.ExogenousProb,
			BloomScale:    a.sim.Sea.BloomScale,
			BloomSeed:     int64(a.sim.Seed),
			Source:        a.source,
			Logger:        a.logger,
		})
	}
}

func (a assembler) agent(cfg config.AgentConfig) (*agent.Agent, error) {
	net, err := a.network(cfg)
	if err != nil {
		return nil, err
	}

	objectives := a.sim.AgentObjectives(cfg)
	specs := make([]reward.Objective, 0, len(objectives))
	names := make([]string, 0, len(objectives))
	for _, o := range objectives {
		specs = append(specs, reward.Objective{Name: o.Name, Baseline: o.Baseline, Floor: o.Floor})
		names = append(names, o.Name)
	}
	status, err := reward.NewStatus(specs...)
	if err != nil {
		return nil, fmt.Errorf("agent %s: %w", cfg.ID, err)
	}

	var stateKey agent.StateKey = agent.FullStateKey
	if len(cfg.StateNodes) > 0 {
		stateKey = agent.ProjectedStateKey(cfg.StateNodes...)
	}

	var policy *qlearn.Policy
	if cfg.Learning != nil {
		policy, err = a.policy(cfg, names)
		if err != nil {
			return nil, err
		}
		if err := learnable(cfg, policy); err != nil {
			return nil, err
		}
	}

	decider, err := a.decider(cfg, policy, stateKey)
	if err != nil {
		return nil, err
	}

	return agent.New(agent.Config{
		ID:         cfg.ID,
		Network:    net,
		Decider:    decider,
		Calculator: reward.NewCalculator(a.rewards, a.logger),
		Status:     status,
		Policy:     policy,
		StateKey:   stateKey,
		Logger:     a.logger,
		Decisions:  a.decisions,
		Middleware: []agent.Middleware{agent.LogStages(a.logger, cfg.ID)},
	})
}

func (a assembler) network(cfg config.AgentConfig) (*network.Network, error) {
	nodes := make([]network.Node, 0, len(cfg.Nodes))
	for _, n := range cfg.Nodes {
		kind, err := network.ParseNodeKind(n.Kind)
		if err != nil {
			return nil, fmt.Errorf("%w: agent %s node %d: %v", model.ErrConfiguration, cfg.ID, n.ID, err)
		}
		if kind == network.NodeSensor {
			if _, err := protoio.ResolveKind(protoio.Kind(n.Sensor), a.scape); err != nil {
				return nil, fmt.Errorf("%w: agent %s node %d: %v", model.ErrConfiguration, cfg.ID, n.ID, err)
			}
		}
		nodes = append(nodes, network.Node{
			ID:          n.ID,
			Kind:        kind,
			Sensor:      protoio.Kind(n.Sensor),
			Label:       n.Label,
			Probability: n.P,
			Inputs:      append([]int(nil), n.Inputs...),
		})
	}
	net, err := network.New(nodes, a.source)
	if err != nil {
		return nil, fmt.Errorf("agent %s: %w", cfg.ID, err)
	}
	return net, nil
}

func (a assembler) policy(cfg config.AgentConfig, objectives []string) (*qlearn.Policy, error) {
	l := cfg.Learning
	actions, err := a.motors(cfg.ID, l.Actions)
	if err != nil {
		return nil, err
	}
	alpha, err := qlearn.AlphaScheduleFromConfig(l.Alpha.Schedule, l.Alpha.A, l.Alpha.B)
	if err != nil {
		return nil, fmt.Errorf("%w: agent %s: %v", model.ErrConfiguration, cfg.ID, err)
	}
	aggregator, err := qlearn.AggregatorFromConfig(l.Aggregator, objectives, l.Weights)
	if err != nil {
		return nil, fmt.Errorf("%w: agent %s: %v", model.ErrConfiguration, cfg.ID, err)
	}
	policy, err := qlearn.New(qlearn.Config{
		Actions:    actions,
		Objectives: objectives,
		Gamma:      l.Gamma,
		Ne:         l.Ne,
		Rplus:      l.Rplus,
		Alpha:      alpha,
		Epsilon:    l.Epsilon,
		Aggregator: aggregator,
		Source:     a.source,
		Logger:     a.logger.With("agent", cfg.ID),
	})
	if err != nil {
		return nil, fmt.Errorf("agent %s: %w", cfg.ID, err)
	}
	return policy, nil
}

func (a assembler) decider(cfg config.AgentConfig, policy *qlearn.Policy, key agent.StateKey) (agent.Decider, error) {
	switch cfg.Strategy {
	case config.StrategyPolicy:
		return agent.PolicyDecider{Policy: policy}, nil
	case config.StrategyTable:
		table, err := a.table(cfg)
		if err != nil {
			return nil, err
		}
		return agent.ResolverDecider{Resolver: table}, nil
	case config.StrategyPriority:
		priority, err := a.priority(cfg, policy, key)
		if err != nil {
			return nil, err
		}
		return agent.ResolverDecider{Resolver: priority}, nil
	default:
		return nil, fmt.Errorf("%w: agent %s has unknown strategy %q", model.ErrConfiguration, cfg.ID, cfg.Strategy)
	}
}

func (a assembler) table(cfg config.AgentConfig) (*motor.Table, error) {
	t := cfg.Table
	def, err := a.motor(cfg.ID, t.Default)
	if err != nil {
		return nil, err
	}
	tc := motor.TableConfig{Default: def, Logger: a.logger.With("agent", cfg.ID)}
	if len(t.Mask) > 0 {
		mask := network.NewActivationSet(t.Mask...)
		tc.Mask = &mask
	}
	for _, e := range t.Entries {
		m, err := a.motor(cfg.ID, e.Motor)
		if err != nil {
			return nil, err
		}
		tc.Entries = append(tc.Entries, motor.TableEntry{State: network.NewActivationSet(e.State...), Motor: m})
	}
	table, err := motor.NewTable(tc)
	if err != nil {
		return nil, fmt.Errorf("agent %s: %w", cfg.ID, err)
	}
	return table, nil
}

func (a assembler) priority(cfg config.AgentConfig, policy *qlearn.Policy, key agent.StateKey) (*motor.Priority, error) {
	p := cfg.Priority
	rules := make([]motor.Rule, 0, len(p.Rules))
	for i, rc := range p.Rules {
		m, err := a.motor(cfg.ID, rc.Motor)
		if err != nil {
			return nil, err
		}
		rules = append(rules, motor.Rule{Name: ruleName(rc, i), When: predicate(rc), Motor: m})
	}

	var fallback motor.Chooser
	switch {
	case p.Default.Policy:
		fallback = agent.PolicyChooser(policy, key)
	case len(p.Default.Uniform) > 0:
		motors, err := a.motors(cfg.ID, p.Default.Uniform)
		if err != nil {
			return nil, err
		}
		uniform, err := motor.NewUniform(motors, a.source)
		if err != nil {
			return nil, fmt.Errorf("agent %s: %w", cfg.ID, err)
		}
		fallback = uniform
	default:
		m, err := a.motor(cfg.ID, p.Default.Fixed)
		if err != nil {
			return nil, err
		}
		fallback = motor.Fixed(m)
	}

	priority, err := motor.NewPriority(rules, fallback)
	if err != nil {
		return nil, fmt.Errorf("agent %s: %w", cfg.ID, err)
	}
	return priority, nil
}

func ruleName(rc config.RuleConfig, i int) string {
	if rc.Name != "" {
		return rc.Name
	}
	return fmt.Sprintf("rule-%d", i)
}

type allOf []motor.Predicate

func (p allOf) Match(set network.ActivationSet) bool {
	for _, each := range p {
		if !each.Match(set) {
			return false
		}
	}
	return true
}

func (p allOf) String() string {
	out := ""
	for i, each := range p {
		if i > 0 {
			out += "&"
		}
		out += each.String()
	}
	return out
}

func predicate(rc config.RuleConfig) motor.Predicate {
	if rc.Always {
		return motor.Always()
	}
	var parts allOf
	if len(rc.All) > 0 {
		parts = append(parts, motor.AllActive(rc.All...))
	}
	if len(rc.Any) > 0 {
		parts = append(parts, motor.AnyActive(rc.Any...))
	}
	if len(rc.None) > 0 {
		parts = append(parts, motor.NoneActive(rc.None...))
	}
	if len(parts) == 1 {
		return parts[0]
	}
	return parts
}

func (a assembler) motor(agentID, name string) (protoio.Motor, error) {
	m := protoio.Motor(name)
	if _, err := protoio.ResolveMotor(m, a.scape); err != nil {
		return "", fmt.Errorf("%w: agent %s: %v", model.ErrConfiguration, agentID, err)
	}
	return m, nil
}

func (a assembler) motors(agentID string, names []string) ([]protoio.Motor, error) {
	out := make([]protoio.Motor, 0, len(names))
	for _, name := range names {
		m, err := a.motor(agentID, name)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// agentMotors lists every motor the agent's strategy or policy can emit.
func agentMotors(cfg config.AgentConfig) []string {
	var names []string
	if cfg.Table != nil {
		names = append(names, cfg.Table.Default)
		for _, e := range cfg.Table.Entries {
			names = append(names, e.Motor)
		}
	}
	if cfg.Priority != nil {
		for _, r := range cfg.Priority.Rules {
			names = append(names, r.Motor)
		}
		names = append(names, cfg.Priority.Default.Fixed)
		names = append(names, cfg.Priority.Default.Uniform...)
	}
	if cfg.Learning != nil {
		names = append(names, cfg.Learning.Actions...)
	}
	return names
}

// learnable checks that the policy can learn from every motor the agent's
// strategy may emit, since it is updated after every tick.
func learnable(cfg config.AgentConfig, policy *qlearn.Policy) error {
	known := make(map[protoio.Motor]struct{}, len(policy.Actions()))
	for _, m := range policy.Actions() {
		known[m] = struct{}{}
	}
	for _, name := range agentMotors(cfg) {
		if name == "" {
			continue
		}
		if _, ok := known[protoio.Motor(name)]; !ok {
			return fmt.Errorf("%w: agent %s can emit %s, which is not a learning action", model.ErrConfiguration, cfg.ID, name)
		}
	}
	return nil
}

// validateRewards checks the shared table against every motor some agent
// can emit, the kinds the scape knows and every tracked objective.
func validateRewards(sim *config.Simulation, rewards *reward.Table) error {
	motorSet := map[protoio.Motor]struct{}{}
	objectiveSet := map[string]struct{}{}
	for _, cfg := range sim.Agents {
		for _, name := range agentMotors(cfg) {
			if name != "" {
				motorSet[protoio.Motor(name)] = struct{}{}
			}
		}
		for _, o := range sim.AgentObjectives(cfg) {
			objectiveSet[o.Name] = struct{}{}
		}
	}
	motors := make([]protoio.Motor, 0, len(motorSet))
	for m := range motorSet {
		motors = append(motors, m)
	}
	sort.Slice(motors, func(i, j int) bool { return motors[i] < motors[j] })
	objectives := make([]string, 0, len(objectiveSet))
	for o := range objectiveSet {
		objectives = append(objectives, o)
	}
	sort.Strings(objectives)

	if err := rewards.Validate(motors, protoio.ListKindsForScape(sim.ScapeName()), objectives); err != nil {
		return fmt.Errorf("%w: %w", model.ErrConfiguration, err)
	}
	return nil
}
