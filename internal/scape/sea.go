package scape

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	opensimplex "github.com/ojrac/opensimplex-go"

	"animat/internal/entropy"
	protoio "animat/internal/io"
	"animat/internal/logging"
	"animat/internal/model"
)

const SeaName = "sea"

var (
	ErrBlocked     = errors.New("position is blocked")
	ErrOutOfBounds = errors.New("position is out of bounds")
	ErrDuplicateID = errors.New("agent already placed")
)

type SeaConfig struct {
	// Things is the initial layout, one string per row: 's' squid,
	// 'X' obstacle, ' ' or '.' water.
	Things []string
	// Exogenous marks with 's' the cells where squid may reappear.
	Exogenous     []string
	ExogenousProb float64
	// BloomScale > 0 modulates the reappearance probability with a
	// slowly drifting simplex field sampled at that spatial scale.
	BloomScale float64
	BloomSeed  int64
	Source     entropy.Source
	Logger     *slog.Logger
}

type seaAgent struct {
	agent Agent
	pos   Position
}

// Sea is a lane world: forward moves right on a torus, up and down change
// lane unless blocked, eat removes one squid from the agent's cell and sing
// produces a Song every agent hears on the next tick. Agents act in the
// order they were added; dead agents are skipped.
type Sea struct {
	width, height int
	obstacles     map[Position]bool
	squid         map[Position]int
	spawnCells    []Position
	prob          float64
	bloomScale    float64
	bloom         opensimplex.Noise
	source        entropy.Source
	logger        *slog.Logger

	agents  []*seaAgent
	ids     map[string]struct{}
	tick    int
	signals []protoio.Entry
	songs   int
	eaten   int
}

func NewSea(cfg SeaConfig) (*Sea, error) {
	if len(cfg.Things) == 0 {
		return nil, fmt.Errorf("%w: sea layout is empty", model.ErrConfiguration)
	}
	if cfg.ExogenousProb < 0 || cfg.ExogenousProb > 1 {
		return nil, fmt.Errorf("%w: exogenous probability %v outside [0, 1]", model.ErrConfiguration, cfg.ExogenousProb)
	}
	if cfg.BloomScale < 0 {
		return nil, fmt.Errorf("%w: bloom scale must not be negative", model.ErrConfiguration)
	}

	s := &Sea{
		height:     len(cfg.Things),
		obstacles:  make(map[Position]bool),
		squid:      make(map[Position]int),
		prob:       cfg.ExogenousProb,
		bloomScale: cfg.BloomScale,
		source:     cfg.Source,
		logger:     logging.OrDefault(cfg.Logger),
		ids:        make(map[string]struct{}),
	}
	for _, row := range cfg.Things {
		if len(row) > s.width {
			s.width = len(row)
		}
	}
	if s.width == 0 {
		return nil, fmt.Errorf("%w: sea layout has no columns", model.ErrConfiguration)
	}
	for y, row := range cfg.Things {
		for x, c := range row {
			pos := Position{X: x, Y: y}
			switch c {
			case 's':
				s.squid[pos]++
			case 'X':
				s.obstacles[pos] = true
			case ' ', '.':
			default:
				return nil, fmt.Errorf("%w: unknown layout symbol %q at %d,%d", model.ErrConfiguration, c, x, y)
			}
		}
	}

	if len(cfg.Exogenous) > s.height {
		return nil, fmt.Errorf("%w: exogenous layout has %d rows, sea has %d", model.ErrConfiguration, len(cfg.Exogenous), s.height)
	}
	for y, row := range cfg.Exogenous {
		if len(strings.TrimRight(row, " .")) > s.width {
			return nil, fmt.Errorf("%w: exogenous row %d wider than the sea", model.ErrConfiguration, y)
		}
		for x, c := range row {
			switch c {
			case 's':
				pos := Position{X: x, Y: y}
				if s.obstacles[pos] {
					return nil, fmt.Errorf("%w: exogenous squid at obstacle %d,%d", model.ErrConfiguration, x, y)
				}
				s.spawnCells = append(s.spawnCells, pos)
			case ' ', '.':
			default:
				return nil, fmt.Errorf("%w: unknown exogenous symbol %q at %d,%d", model.ErrConfiguration, c, x, y)
			}
		}
	}
	if len(s.spawnCells) > 0 && s.prob > 0 && s.source == nil {
		return nil, fmt.Errorf("%w: exogenous squid need a random source", model.ErrConfiguration)
	}
	if s.bloomScale > 0 {
		s.bloom = opensimplex.NewNormalized(cfg.BloomSeed)
	}
	return s, nil
}

func (s *Sea) Name() string { return SeaName }

func (s *Sea) Size() (width, height int) { return s.width, s.height }

// Add places agent at pos. Agents act in the order they are added.
func (s *Sea) Add(agent Agent, pos Position) error {
	if _, dup := s.ids[agent.ID()]; dup {
		return fmt.Errorf("%w: %s", ErrDuplicateID, agent.ID())
	}
	if !s.inBounds(pos) {
		return fmt.Errorf("%w: %s at %d,%d", ErrOutOfBounds, agent.ID(), pos.X, pos.Y)
	}
	if s.obstacles[pos] {
		return fmt.Errorf("%w: %s at %d,%d", ErrBlocked, agent.ID(), pos.X, pos.Y)
	}
	s.ids[agent.ID()] = struct{}{}
	s.agents = append(s.agents, &seaAgent{agent: agent, pos: pos})
	return nil
}

func (s *Sea) Position(agentID string) (Position, bool) {
	for _, a := range s.agents {
		if a.agent.ID() == agentID {
			return a.pos, true
		}
	}
	return Position{}, false
}

// SquidAt is the number of squid in a cell.
func (s *Sea) SquidAt(pos Position) int {
	return s.squid[pos]
}

func (s *Sea) Squid() int {
	total := 0
	for _, n := range s.squid {
		total += n
	}
	return total
}

func (s *Sea) Alive() int {
	n := 0
	for _, a := range s.agents {
		if a.agent.Viable() {
			n++
		}
	}
	return n
}

func (s *Sea) inBounds(pos Position) bool {
	return pos.X >= 0 && pos.X < s.width && pos.Y >= 0 && pos.Y < s.height
}

// percept lists every object in the agent's cell plus last tick's signals.
func (s *Sea) percept(pos Position, signals []protoio.Entry) protoio.Percept {
	var out protoio.Percept
	for i := 0; i < s.squid[pos]; i++ {
		out = append(out, protoio.Entry{Kind: protoio.KindSquid})
	}
	return append(out, signals...)
}

func (s *Sea) Step(ctx context.Context) (StepResult, error) {
	s.tick++
	signals := s.signals
	s.signals = nil
	result := StepResult{Tick: s.tick}

	for _, a := range s.agents {
		if !a.agent.Viable() {
			continue
		}
		action, err := a.agent.Program(ctx, s.percept(a.pos, signals))
		if err != nil {
			return result, err
		}
		primitives, err := protoio.ResolveMotor(action, SeaName)
		if err != nil {
			return result, fmt.Errorf("agent %s: %w", a.agent.ID(), err)
		}

		step := AgentStep{AgentID: a.agent.ID(), Action: action, From: a.pos}
		var colocated []protoio.Kind
		for _, p := range primitives {
			switch p {
			case protoio.PrimitiveSing:
				s.signals = append(s.signals, protoio.Entry{Kind: protoio.KindSong, Label: a.agent.ID()})
				s.songs++
			case protoio.PrimitiveEat:
				if s.squid[a.pos] > 0 {
					s.squid[a.pos]--
					if s.squid[a.pos] == 0 {
						delete(s.squid, a.pos)
					}
					step.Eaten++
					s.eaten++
					colocated = append(colocated, protoio.KindSquid)
				}
			case protoio.PrimitiveForward:
				step.Bumped = s.move(a, Position{X: (a.pos.X + 1) % s.width, Y: a.pos.Y}) || step.Bumped
			case protoio.PrimitiveUp:
				step.Bumped = s.move(a, Position{X: a.pos.X, Y: a.pos.Y - 1}) || step.Bumped
			case protoio.PrimitiveDown:
				step.Bumped = s.move(a, Position{X: a.pos.X, Y: a.pos.Y + 1}) || step.Bumped
			default:
				return result, fmt.Errorf("agent %s: primitive %s is not supported by the sea", a.agent.ID(), p)
			}
		}
		if s.squid[a.pos] > 0 {
			colocated = append(colocated, protoio.KindSquid)
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

	result.Spawned = s.spawn()
	result.Trace = Trace{
		"squid": s.Squid(),
		"eaten": s.eaten,
		"songs": s.songs,
		"alive": s.Alive(),
	}
	s.logger.Debug("sea step", "tick", s.tick, "squid", result.Trace["squid"], "spawned", result.Spawned, "alive", result.Trace["alive"])
	return result, nil
}

// move reports whether the agent bumped into something.
func (s *Sea) move(a *seaAgent, to Position) bool {
	if !s.inBounds(to) || s.obstacles[to] {
		return true
	}
	a.pos = to
	return false
}

// spawn puts squid back on empty exogenous cells. Every cell draws once
// per tick.
func (s *Sea) spawn() int {
	if s.prob == 0 {
		return 0
	}
	spawned := 0
	for _, pos := range s.spawnCells {
		p := s.prob
		if s.bloom != nil {
			p *= 2 * s.bloom.Eval3(float64(pos.X)*s.bloomScale, float64(pos.Y)*s.bloomScale, float64(s.tick)*s.bloomScale)
			if p > 1 {
				p = 1
			}
		}
		if s.source.Float64() < p && s.squid[pos] == 0 {
			s.squid[pos]++
			spawned++
		}
	}
	return spawned
}
