package scape

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"animat/internal/entropy"
	protoio "animat/internal/io"
	"animat/internal/logging"
	"animat/internal/model"
)

const GridName = "grid"

type GridConfig struct {
	// Things is the initial layout, one string per row: 'l' landmark,
	// 'X' obstacle, 'S' energy, 'W' water, ' ' or '.' open ground.
	Things []string
	// Exogenous marks with 'S' or 'W' the cells where energy or water
	// may appear.
	Exogenous     []string
	ExogenousProb float64
	Source        entropy.Source
	Logger        *slog.Logger
}

type gridAgent struct {
	agent Agent
	pos   Position
	start Position
	found bool
}

type spawnCell struct {
	pos  Position
	kind protoio.Kind
}

// Grid is a bounded four-way world. Every open cell marked as a landmark is
// perceived as a Landmark labelled with its cell number (y*width + x).
// Stepping onto energy or water consumes it, and the agent is carried back
// to its start before its next move.
type Grid struct {
	width, height int
	obstacles     map[Position]bool
	landmarks     map[Position]string
	resources     map[Position]protoio.Kind
	spawnCells    []spawnCell
	prob          float64
	source        entropy.Source
	logger        *slog.Logger

	agents []*gridAgent
	ids    map[string]struct{}
	tick   int
	found  map[protoio.Kind]int
}

func NewGrid(cfg GridConfig) (*Grid, error) {
	if len(cfg.Things) == 0 {
		return nil, fmt.Errorf("%w: grid layout is empty", model.ErrConfiguration)
	}
	if cfg.ExogenousProb < 0 || cfg.ExogenousProb > 1 {
		return nil, fmt.Errorf("%w: exogenous probability %v outside [0, 1]", model.ErrConfiguration, cfg.ExogenousProb)
	}
	g := &Grid{
		height:    len(cfg.Things),
		obstacles: make(map[Position]bool),
		landmarks: make(map[Position]string),
		resources: make(map[Position]protoio.Kind),
		prob:      cfg.ExogenousProb,
		source:    cfg.Source,
		logger:    logging.OrDefault(cfg.Logger),
		ids:       make(map[string]struct{}),
		found:     make(map[protoio.Kind]int),
	}
	for _, row := range cfg.Things {
		if len(row) > g.width {
			g.width = len(row)
		}
	}
	if g.width == 0 {
		return nil, fmt.Errorf("%w: grid layout has no columns", model.ErrConfiguration)
	}
	for y, row := range cfg.Things {
		for x, c := range row {
			pos := Position{X: x, Y: y}
			switch c {
			case 'l':
				g.landmarks[pos] = strconv.Itoa(y*g.width + x)
			case 'X':
				g.obstacles[pos] = true
			case 'S':
				g.resources[pos] = protoio.KindEnergy
			case 'W':
				g.resources[pos] = protoio.KindWater
			case ' ', '.':
			default:
				return nil, fmt.Errorf("%w: unknown layout symbol %q at %d,%d", model.ErrConfiguration, c, x, y)
			}
		}
	}

	if len(cfg.Exogenous) > g.height {
		return nil, fmt.Errorf("%w: exogenous layout has %d rows, grid has %d", model.ErrConfiguration, len(cfg.Exogenous), g.height)
	}
	for y, row := range cfg.Exogenous {
		for x, c := range row {
			var kind protoio.Kind
			switch c {
			case 'S':
				kind = protoio.KindEnergy
			case 'W':
				kind = protoio.KindWater
			case ' ', '.':
				continue
			default:
				return nil, fmt.Errorf("%w: unknown exogenous symbol %q at %d,%d", model.ErrConfiguration, c, x, y)
			}
			pos := Position{X: x, Y: y}
			if !g.inBounds(pos) || g.obstacles[pos] {
				return nil, fmt.Errorf("%w: exogenous %s at blocked cell %d,%d", model.ErrConfiguration, kind, x, y)
			}
			g.spawnCells = append(g.spawnCells, spawnCell{pos: pos, kind: kind})
		}
	}
	if len(g.spawnCells) > 0 && g.prob > 0 && g.source == nil {
		return nil, fmt.Errorf("%w: exogenous resources need a random source", model.ErrConfiguration)
	}
	return g, nil
}

func (g *Grid) Name() string { return GridName }

func (g *Grid) Size() (width, height int) { return g.width, g.height }

// Add places agent at pos, which also becomes the cell it returns to after
// finding a resource.
func (g *Grid) Add(agent Agent, pos Position) error {
	if _, dup := g.ids[agent.ID()]; dup {
		return fmt.Errorf("%w: %s", ErrDuplicateID, agent.ID())
	}
	if !g.inBounds(pos) {
		return fmt.Errorf("%w: %s at %d,%d", ErrOutOfBounds, agent.ID(), pos.X, pos.Y)
	}
	if g.obstacles[pos] {
		return fmt.Errorf("%w: %s at %d,%d", ErrBlocked, agent.ID(), pos.X, pos.Y)
	}
	g.ids[agent.ID()] = struct{}{}
	g.agents = append(g.agents, &gridAgent{agent: agent, pos: pos, start: pos})
	return nil
}

func (g *Grid) Position(agentID string) (Position, bool) {
	for _, a := range g.agents {
		if a.agent.ID() == agentID {
			return a.pos, true
		}
	}
	return Position{}, false
}

// ResourceAt returns the energy or water in a cell, if any.
func (g *Grid) ResourceAt(pos Position) (protoio.Kind, bool) {
	kind, ok := g.resources[pos]
	return kind, ok
}

// Landmark is the label a cell is perceived with, or "" for none.
func (g *Grid) Landmark(pos Position) string {
	return g.landmarks[pos]
}

func (g *Grid) Alive() int {
	n := 0
	for _, a := range g.agents {
		if a.agent.Viable() {
			n++
		}
	}
	return n
}

func (g *Grid) inBounds(pos Position) bool {
	return pos.X >= 0 && pos.X < g.width && pos.Y >= 0 && pos.Y < g.height
}

func (g *Grid) percept(pos Position) protoio.Percept {
	var out protoio.Percept
	if label, ok := g.landmarks[pos]; ok {
		out = append(out, protoio.Entry{Kind: protoio.KindLandmark, Label: label})
	}
	if kind, ok := g.resources[pos]; ok {
		out = append(out, protoio.Entry{Kind: kind})
	}
	return out
}

func (g *Grid) Step(ctx context.Context) (StepResult, error) {
	g.tick++
	result := StepResult{Tick: g.tick}

	for _, a := range g.agents {
		if !a.agent.Viable() {
			continue
		}
		action, err := a.agent.Program(ctx, g.percept(a.pos))
		if err != nil {
			return result, err
		}
		primitives, err := protoio.ResolveMotor(action, GridName)
		if err != nil {
			return result, fmt.Errorf("agent %s: %w", a.agent.ID(), err)
		}

		if a.found {
			a.pos = a.start
			a.found = false
		}
		step := AgentStep{AgentID: a.agent.ID(), Action: action, From: a.pos}
		for _, p := range primitives {
			to := a.pos
			switch p {
			case protoio.PrimitiveNorth:
				to.Y--
			case protoio.PrimitiveSouth:
				to.Y++
			case protoio.PrimitiveEast:
				to.X++
			case protoio.PrimitiveWest:
				to.X--
			default:
				return result, fmt.Errorf("agent %s: primitive %s is not supported by the grid", a.agent.ID(), p)
			}
			if !g.inBounds(to) || g.obstacles[to] {
				step.Bumped = true
				continue
			}
			a.pos = to
		}

		var colocated []protoio.Kind
		if kind, ok := g.resources[a.pos]; ok {
			delete(g.resources, a.pos)
			g.found[kind]++
			a.found = true
			step.Eaten++
			colocated = append(colocated, kind)
		}

		vec, err := a.agent.Reward(ctx, action, colocated)
		if err != nil {
			return result, err
		}
		step.To = a.pos
		step.Reward = vec
		step.Viable = a.agent.Viable()
		result.Agents = append(result.Agents, step)
	}

	result.Spawned = g.spawn()
	result.Trace = Trace{
		"energy_found": g.found[protoio.KindEnergy],
		"water_found":  g.found[protoio.KindWater],
		"resources":    len(g.resources),
		"alive":        g.Alive(),
	}
	g.logger.Debug("grid step", "tick", g.tick, "resources", len(g.resources), "spawned", result.Spawned, "alive", result.Trace["alive"])
	return result, nil
}

// spawn draws once per exogenous cell per tick and fills the cell when it
// is empty.
func (g *Grid) spawn() int {
	if g.prob == 0 {
		return 0
	}
	spawned := 0
	for _, cell := range g.spawnCells {
		hit := g.source.Float64() < g.prob
		if _, taken := g.resources[cell.pos]; taken || !hit {
			continue
		}
		g.resources[cell.pos] = cell.kind
		spawned++
	}
	return spawned
}
