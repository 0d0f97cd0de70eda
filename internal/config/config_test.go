package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"animat/internal/model"
)

func TestPresetsAreValid(t *testing.T) {
	names := Presets()
	want := []string{"grid", "mom-and-calf", "random-mom-and-calf", "random-mom-and-calf2"}
	if !reflect.DeepEqual(names, want) {
		t.Fatalf("unexpected presets: %v", names)
	}
	for _, name := range names {
		sim, err := Preset(name)
		if err != nil {
			t.Fatalf("preset %s: %v", name, err)
		}
		if sim.Name != name {
			t.Fatalf("preset %s has name %s", name, sim.Name)
		}
		if err := sim.Validate(); err != nil {
			t.Fatalf("preset %s invalid: %v", name, err)
		}
		if sim.ScapeName() == "grid" {
			continue
		}
		if len(sim.Agents) != 2 || sim.Agents[0].ID != "mom" || sim.Agents[1].ID != "calf" {
			t.Fatalf("preset %s: unexpected agents %+v", name, sim.Agents)
		}
		if len(sim.Sea.Things) != 7 || len(sim.Sea.Things[0]) != 50 {
			t.Fatalf("preset %s: unexpected layout", name)
		}
	}
}

func TestPresetDetails(t *testing.T) {
	sim, err := Preset("Random_Mom_And_Calf2")
	if err != nil {
		t.Fatalf("preset alias: %v", err)
	}
	mom := sim.Agents[0]
	if mom.Strategy != StrategyTable || mom.Table.Default != "sing_eat_and_forward" || len(mom.Table.Entries) != 8 {
		t.Fatalf("unexpected mom table: %+v", mom.Table)
	}
	if got := mom.Table.Entries[7]; len(got.State) != 0 || got.Motor != "dive_and_forward" {
		t.Fatalf("expected empty state entry last, got %+v", got)
	}
	if sim.Rewards["forward"][""]["energy"] != -0.001 || sim.Rewards["eat_and_forward"]["Squid"]["energy"] != 0.1 {
		t.Fatalf("unexpected rewards: %v", sim.Rewards)
	}

	learning, err := Preset("mom_and_calf.py")
	if err != nil {
		t.Fatalf("preset: %v", err)
	}
	l := learning.Agents[1].Learning
	if l == nil || l.Gamma != 0.9 || l.Rplus != 2 || l.Epsilon != 0.2 || l.Alpha.A != 60 || l.Alpha.B != 59 {
		t.Fatalf("unexpected learning config: %+v", l)
	}
}

func TestGridPreset(t *testing.T) {
	sim, err := Preset("gridworld")
	if err != nil {
		t.Fatalf("preset: %v", err)
	}
	if sim.ScapeName() != "grid" || len(sim.Grid.Things) != 5 || sim.Grid.ExogenousProb != 0.1 {
		t.Fatalf("unexpected grid: %s %+v", sim.ScapeName(), sim.Grid)
	}
	if len(sim.Objectives) != 2 || sim.Objectives[1].Name != "water" {
		t.Fatalf("unexpected objectives: %+v", sim.Objectives)
	}
	if sim.Rewards["*"]["Energy"]["energy"] != 1.0 || sim.Rewards["*"][""]["water"] != -0.001 {
		t.Fatalf("unexpected rewards: %v", sim.Rewards)
	}
	l := sim.Agents[0].Learning
	if l.Ne != 5 || len(l.Actions) != 4 || len(sim.Agents[0].Nodes) != 13 {
		t.Fatalf("unexpected walker: %+v", sim.Agents[0])
	}
}

func TestScapeSelection(t *testing.T) {
	sim, err := Preset("grid")
	if err != nil {
		t.Fatalf("preset: %v", err)
	}
	sim.Grid.Things = nil
	if err := sim.Validate(); !errors.Is(err, model.ErrConfiguration) {
		t.Fatalf("expected empty grid error, got %v", err)
	}
	sim.Scape = "park"
	if err := sim.Validate(); !errors.Is(err, model.ErrConfiguration) {
		t.Fatalf("expected unsupported scape error, got %v", err)
	}
	if got := (&Simulation{Scape: "Ocean"}).ScapeName(); got != "sea" {
		t.Fatalf("expected ocean alias to resolve to sea, got %s", got)
	}
}

func TestUnknownPreset(t *testing.T) {
	if _, err := Preset("blind-dog"); !errors.Is(err, ErrUnknownPreset) {
		t.Fatalf("expected ErrUnknownPreset, got %v", err)
	}
}

func TestLoadFromFileLayersOnDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sim.yaml")
	data := []byte(`
name: tiny
sea:
  things: ["s  "]
agents:
  - id: solo
    nodes: [{id: 0, kind: sensor, sensor: Squid}]
    strategy: priority
    priority:
      rules: [{all: [0], motor: eat_and_forward}]
      default: {fixed: forward}
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("ANIMAT_SEED", "42")

	sim, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if sim.Steps != 100 || sim.Store.Kind != "memory" || sim.Logging.Level != "info" {
		t.Fatalf("defaults not kept: %+v", sim)
	}
	if sim.Seed != 42 {
		t.Fatalf("expected env seed override, got %d", sim.Seed)
	}
	if len(sim.Objectives) != 1 || sim.Objectives[0].Name != "energy" {
		t.Fatalf("expected default objective, got %+v", sim.Objectives)
	}
	if err := sim.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	if _, err := Parse([]byte("steps: 10\nspeed: 3\n")); err == nil {
		t.Fatal("expected unknown field error")
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Simulation {
		sim, err := Preset("random-mom-and-calf")
		if err != nil {
			t.Fatalf("preset: %v", err)
		}
		return sim
	}
	cases := map[string]func(s *Simulation){
		"zero steps":         func(s *Simulation) { s.Steps = 0 },
		"no layout":          func(s *Simulation) { s.Sea.Things = nil },
		"bad probability":    func(s *Simulation) { s.Sea.ExogenousProb = 1.5 },
		"no objectives":      func(s *Simulation) { s.Objectives = nil },
		"no agents":          func(s *Simulation) { s.Agents = nil },
		"duplicate agent":    func(s *Simulation) { s.Agents[1].ID = "mom" },
		"unknown strategy":   func(s *Simulation) { s.Agents[0].Strategy = "dream" },
		"missing table":      func(s *Simulation) { s.Agents[0].Strategy = StrategyTable },
		"policy no learning": func(s *Simulation) { s.Agents[0].Strategy = StrategyPolicy },
		"two defaults": func(s *Simulation) {
			s.Agents[0].Priority.Default.Fixed = "forward"
		},
		"rule without condition": func(s *Simulation) {
			s.Agents[0].Priority.Rules[0].All = nil
		},
		"bad log level": func(s *Simulation) { s.Logging.Level = "loud" },
		"sqlite no path": func(s *Simulation) { s.Store.Kind = "sqlite" },
		"unknown store":  func(s *Simulation) { s.Store.Kind = "redis" },
	}
	for name, mutate := range cases {
		sim := valid()
		mutate(sim)
		if err := sim.Validate(); !errors.Is(err, model.ErrConfiguration) {
			t.Fatalf("%s: expected configuration error, got %v", name, err)
		}
	}
}

func TestEncodeParses(t *testing.T) {
	sim, err := Preset("mom-and-calf")
	if err != nil {
		t.Fatalf("preset: %v", err)
	}
	data, err := sim.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	back, err := Parse(data)
	if err != nil {
		t.Fatalf("parse encoded: %v", err)
	}
	if !reflect.DeepEqual(sim, back) {
		t.Fatalf("encoded simulation differs:\n%s", data)
	}
}
