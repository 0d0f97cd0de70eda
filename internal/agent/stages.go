package agent

import (
	"context"
	"fmt"
	"log/slog"

	protoio "animat/internal/io"
	"animat/internal/logging"
	"animat/internal/network"
)

// Tick carries the values one Program call produces as it moves through
// the stages.
type Tick struct {
	Number  int
	Percept protoio.Percept
	Set     network.ActivationSet
	State   string
	Action  protoio.Motor
	Learned bool
}

type Stage struct {
	Name string
	Run  func(ctx context.Context, tick *Tick) error
}

// Middleware wraps every stage of the pipeline.
type Middleware func(Stage) Stage

const (
	StageEvaluate = "evaluate"
	StageLearn    = "learn"
	StageDecide   = "decide"
)

// LogStages traces each stage with its outcome. Failures are logged at
// debug level and returned unchanged.
func LogStages(logger *slog.Logger, agentID string) Middleware {
	logger = logging.OrDefault(logger)
	return func(next Stage) Stage {
		return Stage{
			Name: next.Name,
			Run: func(ctx context.Context, tick *Tick) error {
				if err := next.Run(ctx, tick); err != nil {
					logger.Debug("stage failed", "agent", agentID, "tick", tick.Number, "stage", next.Name, "err", err)
					return err
				}
				attrs := []any{"agent", agentID, "tick", tick.Number, "stage", next.Name}
				switch next.Name {
				case StageEvaluate:
					attrs = append(attrs, "active", tick.Set.Key(), "state", tick.State)
				case StageLearn:
					attrs = append(attrs, "learned", tick.Learned)
				case StageDecide:
					attrs = append(attrs, "action", tick.Action)
				}
				logger.Log(ctx, logging.LevelTrace, "stage", attrs...)
				return nil
			},
		}
	}
}

func runStages(ctx context.Context, stages []Stage, tick *Tick) error {
	for _, stage := range stages {
		if err := stage.Run(ctx, tick); err != nil {
			return fmt.Errorf("%s: %w", stage.Name, err)
		}
	}
	return nil
}
