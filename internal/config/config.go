// Package config loads simulation descriptions from YAML. A simulation
// names its scape and layout, the reward table, the objectives and every agent
// with its logic network, motor strategy and learning hyperparameters.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"animat/internal/model"
	"animat/internal/scapeid"
)

const (
	StrategyTable    = "table"
	StrategyPriority = "priority"
	StrategyPolicy   = "policy"
)

type Simulation struct {
	Name  string `json:"name" yaml:"name"`
	Steps int    `json:"steps" yaml:"steps"`
	// Seed drives every random draw of the run.
	Seed uint64 `json:"seed" yaml:"seed"`
	// Scape is "sea" (default) or "grid"; only that scape's layout is read.
	Scape      string                                   `json:"scape,omitempty" yaml:"scape,omitempty"`
	Sea        SeaConfig                                `json:"sea" yaml:"sea"`
	Grid       GridConfig                               `json:"grid" yaml:"grid"`
	Objectives []ObjectiveConfig                        `json:"objectives" yaml:"objectives"`
	Rewards    map[string]map[string]map[string]float64 `json:"rewards" yaml:"rewards"`
	Agents     []AgentConfig                            `json:"agents" yaml:"agents"`
	Logging    LoggingConfig                            `json:"logging" yaml:"logging"`
	Store      StoreConfig                              `json:"store" yaml:"store"`
}

type SeaConfig struct {
	Things        []string `json:"things" yaml:"things"`
	Exogenous     []string `json:"exogenous,omitempty" yaml:"exogenous,omitempty"`
	ExogenousProb float64  `json:"exogenous_prob" yaml:"exogenous_prob"`
	// BloomScale > 0 makes squid reappear in drifting patches.
	BloomScale float64 `json:"bloom_scale,omitempty" yaml:"bloom_scale,omitempty"`
}

type GridConfig struct {
	Things        []string `json:"things" yaml:"things"`
	Exogenous     []string `json:"exogenous,omitempty" yaml:"exogenous,omitempty"`
	ExogenousProb float64  `json:"exogenous_prob" yaml:"exogenous_prob"`
}

type ObjectiveConfig struct {
	Name     string  `json:"name" yaml:"name"`
	Baseline float64 `json:"baseline" yaml:"baseline"`
	Floor    float64 `json:"floor" yaml:"floor"`
}

type PositionConfig struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
}

type AgentConfig struct {
	ID    string         `json:"id" yaml:"id"`
	Start PositionConfig `json:"start" yaml:"start"`
	Nodes []NodeConfig   `json:"nodes" yaml:"nodes"`
	// Strategy is "table", "priority" or "policy".
	Strategy string          `json:"strategy" yaml:"strategy"`
	Table    *TableConfig    `json:"table,omitempty" yaml:"table,omitempty"`
	Priority *PriorityConfig `json:"priority,omitempty" yaml:"priority,omitempty"`
	Learning *LearningConfig `json:"learning,omitempty" yaml:"learning,omitempty"`
	// Objectives overrides the simulation objectives for this agent.
	Objectives []ObjectiveConfig `json:"objectives,omitempty" yaml:"objectives,omitempty"`
	// StateNodes restricts the learning state key to these node ids.
	StateNodes []int `json:"state_nodes,omitempty" yaml:"state_nodes,omitempty"`
}

type NodeConfig struct {
	ID     int     `json:"id" yaml:"id"`
	Kind   string  `json:"kind" yaml:"kind"`
	Sensor string  `json:"sensor,omitempty" yaml:"sensor,omitempty"`
	Label  string  `json:"label,omitempty" yaml:"label,omitempty"`
	P      float64 `json:"p,omitempty" yaml:"p,omitempty"`
	Inputs []int   `json:"inputs,omitempty" yaml:"inputs,omitempty"`
}

type TableConfig struct {
	Default string             `json:"default" yaml:"default"`
	Mask    []int              `json:"mask,omitempty" yaml:"mask,omitempty"`
	Entries []TableEntryConfig `json:"entries" yaml:"entries"`
}

type TableEntryConfig struct {
	State []int  `json:"state" yaml:"state"`
	Motor string `json:"motor" yaml:"motor"`
}

type PriorityConfig struct {
	Rules   []RuleConfig  `json:"rules" yaml:"rules"`
	Default ChooserConfig `json:"default" yaml:"default"`
}

// RuleConfig fires when every predicate it sets holds.
type RuleConfig struct {
	Name   string `json:"name,omitempty" yaml:"name,omitempty"`
	All    []int  `json:"all,omitempty" yaml:"all,omitempty"`
	Any    []int  `json:"any,omitempty" yaml:"any,omitempty"`
	None   []int  `json:"none,omitempty" yaml:"none,omitempty"`
	Always bool   `json:"always,omitempty" yaml:"always,omitempty"`
	Motor  string `json:"motor" yaml:"motor"`
}

// ChooserConfig sets exactly one of its fields.
type ChooserConfig struct {
	Fixed   string   `json:"fixed,omitempty" yaml:"fixed,omitempty"`
	Uniform []string `json:"uniform,omitempty" yaml:"uniform,omitempty"`
	Policy  bool     `json:"policy,omitempty" yaml:"policy,omitempty"`
}

type LearningConfig struct {
	Actions    []string           `json:"actions" yaml:"actions"`
	Gamma      float64            `json:"gamma" yaml:"gamma"`
	Ne         int                `json:"ne" yaml:"ne"`
	Rplus      float64            `json:"rplus" yaml:"rplus"`
	Alpha      AlphaConfig        `json:"alpha" yaml:"alpha"`
	Epsilon    float64            `json:"epsilon" yaml:"epsilon"`
	Aggregator string             `json:"aggregator" yaml:"aggregator"`
	Weights    map[string]float64 `json:"weights,omitempty" yaml:"weights,omitempty"`
}

type AlphaConfig struct {
	Schedule string  `json:"schedule" yaml:"schedule"`
	A        float64 `json:"a,omitempty" yaml:"a,omitempty"`
	B        float64 `json:"b,omitempty" yaml:"b,omitempty"`
}

type LoggingConfig struct {
	// Level is "error", "warn", "info" (default), "debug" or "trace".
	Level string `json:"level" yaml:"level"`
	// DecisionsDir, when set and the level is debug or finer, receives a
	// decisions.jsonl trace.
	DecisionsDir string `json:"decisions_dir,omitempty" yaml:"decisions_dir,omitempty"`
}

type StoreConfig struct {
	Kind string `json:"kind" yaml:"kind"`
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// Default returns the settings every file is layered on.
func Default() *Simulation {
	return &Simulation{
		Steps: 100,
		Seed:  1,
		Objectives: []ObjectiveConfig{
			{Name: "energy", Baseline: 1.0},
		},
		Logging: LoggingConfig{Level: "info"},
		Store:   StoreConfig{Kind: "memory"},
	}
}

// Parse decodes data on top of Default. Unknown fields are rejected.
func Parse(data []byte) (*Simulation, error) {
	sim := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(sim); err != nil {
		return nil, fmt.Errorf("parsing simulation: %w", err)
	}
	return sim, nil
}

// LoadFromFile reads a simulation file and applies environment overrides.
func LoadFromFile(path string) (*Simulation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading simulation file: %w", err)
	}
	sim, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	applyEnvOverrides(sim)
	return sim, nil
}

// Load resolves nameOrPath as a built-in preset first and a file second.
func Load(nameOrPath string) (*Simulation, error) {
	sim, err := Preset(nameOrPath)
	if err == nil {
		applyEnvOverrides(sim)
		return sim, nil
	}
	if !errors.Is(err, ErrUnknownPreset) {
		return nil, err
	}
	return LoadFromFile(nameOrPath)
}

// Encode renders the simulation back to YAML.
func (s *Simulation) Encode() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return nil, fmt.Errorf("encoding simulation: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encoding simulation: %w", err)
	}
	return buf.Bytes(), nil
}

// ScapeName is the canonical name of the configured scape.
func (s *Simulation) ScapeName() string {
	if name := scapeid.Normalize(s.Scape); name != "" {
		return name
	}
	return "sea"
}

// AgentObjectives returns the agent's own objectives or the simulation's.
func (s *Simulation) AgentObjectives(agent AgentConfig) []ObjectiveConfig {
	if len(agent.Objectives) > 0 {
		return agent.Objectives
	}
	return s.Objectives
}

// Validate performs the static checks. Checks that need the registries or
// the built components happen when the run is assembled.
func (s *Simulation) Validate() error {
	if s.Steps <= 0 {
		return fmt.Errorf("%w: steps must be positive, got %d", model.ErrConfiguration, s.Steps)
	}
	var things []string
	var prob float64
	switch s.ScapeName() {
	case "sea":
		things, prob = s.Sea.Things, s.Sea.ExogenousProb
	case "grid":
		things, prob = s.Grid.Things, s.Grid.ExogenousProb
	default:
		return fmt.Errorf("%w: unsupported scape: %s", model.ErrConfiguration, s.Scape)
	}
	if len(things) == 0 {
		return fmt.Errorf("%w: %s.things is empty", model.ErrConfiguration, s.ScapeName())
	}
	if prob < 0 || prob > 1 {
		return fmt.Errorf("%w: %s.exogenous_prob must be between 0 and 1, got %v", model.ErrConfiguration, s.ScapeName(), prob)
	}
	if err := validateObjectives("objectives", s.Objectives); err != nil {
		return err
	}
	if len(s.Agents) == 0 {
		return fmt.Errorf("%w: no agents", model.ErrConfiguration)
	}
	ids := make(map[string]struct{}, len(s.Agents))
	for i, agent := range s.Agents {
		if agent.ID == "" {
			return fmt.Errorf("%w: agent %d has no id", model.ErrConfiguration, i)
		}
		if _, dup := ids[agent.ID]; dup {
			return fmt.Errorf("%w: duplicate agent id %s", model.ErrConfiguration, agent.ID)
		}
		ids[agent.ID] = struct{}{}
		if err := s.validateAgent(agent); err != nil {
			return err
		}
	}

	validLevels := map[string]bool{"": true, "error": true, "warn": true, "info": true, "debug": true, "trace": true}
	if !validLevels[strings.ToLower(s.Logging.Level)] {
		return fmt.Errorf("%w: invalid log level: %s (valid: error, warn, info, debug, trace)", model.ErrConfiguration, s.Logging.Level)
	}
	switch s.Store.Kind {
	case "", "memory":
	case "sqlite":
		if s.Store.Path == "" {
			return fmt.Errorf("%w: sqlite store needs a path", model.ErrConfiguration)
		}
	default:
		return fmt.Errorf("%w: unsupported store kind: %s", model.ErrConfiguration, s.Store.Kind)
	}
	return nil
}

func (s *Simulation) validateAgent(agent AgentConfig) error {
	if len(agent.Nodes) == 0 {
		return fmt.Errorf("%w: agent %s has no nodes", model.ErrConfiguration, agent.ID)
	}
	if len(agent.Objectives) > 0 {
		if err := validateObjectives("agent "+agent.ID+" objectives", agent.Objectives); err != nil {
			return err
		}
	}
	usesPolicy := false
	switch agent.Strategy {
	case StrategyTable:
		if agent.Table == nil {
			return fmt.Errorf("%w: agent %s uses the table strategy without a table", model.ErrConfiguration, agent.ID)
		}
		if agent.Table.Default == "" {
			return fmt.Errorf("%w: agent %s table has no default motor", model.ErrConfiguration, agent.ID)
		}
	case StrategyPriority:
		if agent.Priority == nil {
			return fmt.Errorf("%w: agent %s uses the priority strategy without rules", model.ErrConfiguration, agent.ID)
		}
		set := 0
		def := agent.Priority.Default
		if def.Fixed != "" {
			set++
		}
		if len(def.Uniform) > 0 {
			set++
		}
		if def.Policy {
			set++
			usesPolicy = true
		}
		if set != 1 {
			return fmt.Errorf("%w: agent %s priority default must set exactly one of fixed, uniform, policy", model.ErrConfiguration, agent.ID)
		}
		for i, rule := range agent.Priority.Rules {
			if rule.Motor == "" {
				return fmt.Errorf("%w: agent %s rule %d has no motor", model.ErrConfiguration, agent.ID, i)
			}
			if !rule.Always && len(rule.All) == 0 && len(rule.Any) == 0 && len(rule.None) == 0 {
				return fmt.Errorf("%w: agent %s rule %d has no condition", model.ErrConfiguration, agent.ID, i)
			}
		}
	case StrategyPolicy:
		usesPolicy = true
	default:
		return fmt.Errorf("%w: agent %s has unknown strategy %q", model.ErrConfiguration, agent.ID, agent.Strategy)
	}
	if usesPolicy && agent.Learning == nil {
		return fmt.Errorf("%w: agent %s decides by policy but has no learning section", model.ErrConfiguration, agent.ID)
	}
	if agent.Learning != nil && len(agent.Learning.Actions) == 0 {
		return fmt.Errorf("%w: agent %s learning has no actions", model.ErrConfiguration, agent.ID)
	}
	return nil
}

func validateObjectives(where string, objectives []ObjectiveConfig) error {
	if len(objectives) == 0 {
		return fmt.Errorf("%w: %s: at least one objective is required", model.ErrConfiguration, where)
	}
	seen := make(map[string]struct{}, len(objectives))
	for _, o := range objectives {
		if o.Name == "" {
			return fmt.Errorf("%w: %s: objective without a name", model.ErrConfiguration, where)
		}
		if _, dup := seen[o.Name]; dup {
			return fmt.Errorf("%w: %s: duplicate objective %s", model.ErrConfiguration, where, o.Name)
		}
		seen[o.Name] = struct{}{}
	}
	return nil
}

func applyEnvOverrides(sim *Simulation) {
	if v := os.Getenv("ANIMAT_LOG_LEVEL"); v != "" {
		sim.Logging.Level = v
	}
	if v := os.Getenv("ANIMAT_STORE"); v != "" {
		sim.Store.Kind = v
	}
	if v := os.Getenv("ANIMAT_DB_PATH"); v != "" {
		sim.Store.Path = v
	}
	if v := os.Getenv("ANIMAT_SEED"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			sim.Seed = n
		}
	}
	if v := os.Getenv("ANIMAT_STEPS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			sim.Steps = n
		}
	}
}
