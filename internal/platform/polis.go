// Package platform turns simulation descriptions into runs: it assembles
// the sea and its agents, steps them to completion and persists what the
// agents learned.
package platform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"animat/internal/config"
	"animat/internal/logging"
	"animat/internal/model"
	"animat/internal/scape"
	"animat/internal/stats"
	"animat/internal/storage"
)

var (
	ErrNotInitialized = errors.New("polis is not initialized")
	ErrRunActive      = errors.New("run already active")
	ErrRunNotFound    = errors.New("run not found")
)

type Config struct {
	Store  storage.Store
	Logger *slog.Logger
}

type StopReason string

const (
	StopReasonNormal   StopReason = "normal"
	StopReasonShutdown StopReason = "shutdown"
)

// RunRequest describes one simulation run.
type RunRequest struct {
	// RunID defaults to a fresh UUID.
	RunID      string
	Preset     string
	Simulation *config.Simulation
	// ArtifactsDir, when set, receives stats artifacts for the run.
	ArtifactsDir string
	// Observe sees every tick's result; an error from it stops the run.
	Observe func(scape.StepResult) error
}

type RunResult struct {
	Run      model.RunRecord
	QTables  []model.QTableRecord
	History  map[string][]model.StatusSample
	Policies map[string][]model.PolicyRecord
	// Stopped is set when StopRun ended the run early.
	Stopped bool
	RunDir  string
}

type activeRun struct {
	cancel  context.CancelFunc
	stopped bool
}

type Polis struct {
	store  storage.Store
	logger *slog.Logger

	mu             sync.RWMutex
	started        bool
	lastStopReason StopReason
	runs           map[string]*activeRun
}

func NewPolis(cfg Config) *Polis {
	return &Polis{
		store:          cfg.Store,
		logger:         logging.OrDefault(cfg.Logger),
		runs:           make(map[string]*activeRun),
		lastStopReason: StopReasonNormal,
	}
}

func (p *Polis) Init(ctx context.Context) error {
	if p.store == nil {
		return fmt.Errorf("store is required")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return nil
	}
	if err := p.store.Init(ctx); err != nil {
		return err
	}
	p.started = true
	return nil
}

func (p *Polis) Started() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.started
}

func (p *Polis) Store() storage.Store {
	return p.store
}

// StopWithReason cancels every active run and marks the polis stopped.
func (p *Polis) StopWithReason(reason StopReason) error {
	if reason != StopReasonNormal && reason != StopReasonShutdown {
		return fmt.Errorf("invalid stop reason: %s", reason)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, run := range p.runs {
		run.stopped = true
		run.cancel()
	}
	p.started = false
	p.lastStopReason = reason
	return nil
}

func (p *Polis) Stop() {
	_ = p.StopWithReason(StopReasonNormal)
}

func (p *Polis) LastStopReason() StopReason {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastStopReason
}

// StopRun ends an active run after its current tick. The partial run is
// still persisted.
func (p *Polis) StopRun(runID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	run, ok := p.runs[runID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	run.stopped = true
	run.cancel()
	return nil
}

func (p *Polis) ActiveRuns() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	ids := make([]string, 0, len(p.runs))
	for id := range p.runs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (p *Polis) registerRun(runID string, cancel context.CancelFunc) (*activeRun, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return nil, ErrNotInitialized
	}
	if _, exists := p.runs[runID]; exists {
		return nil, fmt.Errorf("%w: %s", ErrRunActive, runID)
	}
	run := &activeRun{cancel: cancel}
	p.runs[runID] = run
	return run, nil
}

func (p *Polis) unregisterRun(runID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.runs, runID)
}

func (p *Polis) wasStopped(run *activeRun) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return run.stopped
}

// RunSimulation assembles req.Simulation, steps it until its step budget is
// spent or no agent is viable, then persists the run record, the Q-tables
// and every agent's status history.
func (p *Polis) RunSimulation(ctx context.Context, req RunRequest) (RunResult, error) {
	if req.Simulation == nil {
		return RunResult{}, fmt.Errorf("%w: simulation is required", model.ErrConfiguration)
	}
	sim := req.Simulation
	runID := req.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	active, err := p.registerRun(runID, cancel)
	if err != nil {
		return RunResult{}, err
	}
	defer p.unregisterRun(runID)

	logger := p.logger.With("run", runID)
	var decisions *logging.DecisionLog
	if sim.Logging.DecisionsDir != "" {
		decisions = logging.NewDecisionLog(sim.Logging.DecisionsDir, sim.Logging.Level)
		defer decisions.Close()
	}

	asm, err := Assemble(sim, logger, decisions)
	if err != nil {
		return RunResult{}, err
	}

	logger.Info("run started", "preset", req.Preset, "agents", len(asm.Agents), "steps", sim.Steps, "seed", sim.Seed)
	ticks, err := scape.Run(runCtx, asm.World, sim.Steps, func(step scape.StepResult) error {
		logger.Log(runCtx, logging.LevelTrace, "tick", "tick", step.Tick, "spawned", step.Spawned, "alive", asm.World.Alive())
		if req.Observe != nil {
			return req.Observe(step)
		}
		return nil
	})
	stopped := false
	if err != nil {
		if !errors.Is(err, context.Canceled) || !p.wasStopped(active) {
			return RunResult{}, fmt.Errorf("run %s: %w", runID, err)
		}
		stopped = true
	}

	result := RunResult{
		Run: model.RunRecord{
			VersionedRecord: storage.Versioned(),
			ID:              runID,
			Preset:          req.Preset,
			Scape:           asm.World.Name(),
			Seed:            sim.Seed,
			Steps:           sim.Steps,
			Ticks:           ticks,
			CreatedAt:       time.Now().UTC(),
		},
		History:  make(map[string][]model.StatusSample, len(asm.Agents)),
		Policies: make(map[string][]model.PolicyRecord),
		Stopped:  stopped,
	}
	for _, a := range asm.Agents {
		result.Run.Agents = append(result.Run.Agents, a.Outcome())
		result.History[a.ID()] = a.History()
		if policy := a.Policy(); policy != nil {
			for _, table := range policy.Export(a.ID()) {
				table.VersionedRecord = storage.Versioned()
				result.QTables = append(result.QTables, table)
			}
			snapshots := policy.UAndPi()
			for _, objective := range policy.Objectives() {
				result.Policies[a.ID()] = append(result.Policies[a.ID()], snapshots[objective].Record())
			}
		}
	}

	if err := p.persist(ctx, result); err != nil {
		return RunResult{}, err
	}
	if req.ArtifactsDir != "" {
		runDir, err := stats.WriteRunArtifacts(req.ArtifactsDir, stats.RunArtifacts{
			Run:      result.Run,
			QTables:  result.QTables,
			History:  result.History,
			Policies: result.Policies,
		})
		if err != nil {
			return RunResult{}, fmt.Errorf("write artifacts: %w", err)
		}
		if err := stats.AppendRunIndex(req.ArtifactsDir, stats.IndexEntry(result.Run)); err != nil {
			return RunResult{}, fmt.Errorf("update run index: %w", err)
		}
		result.RunDir = runDir
	}

	survivors := 0
	for _, outcome := range result.Run.Agents {
		if outcome.Viable {
			survivors++
		}
	}
	logger.Info("run finished", "ticks", ticks, "survivors", survivors, "stopped", stopped)
	return result, nil
}

func (p *Polis) persist(ctx context.Context, result RunResult) error {
	runID := result.Run.ID
	if err := p.store.SaveRun(ctx, result.Run); err != nil {
		return fmt.Errorf("save run %s: %w", runID, err)
	}
	if err := p.store.SaveQTables(ctx, runID, result.QTables); err != nil {
		return fmt.Errorf("save q-tables %s: %w", runID, err)
	}
	agentIDs := make([]string, 0, len(result.History))
	for id := range result.History {
		agentIDs = append(agentIDs, id)
	}
	sort.Strings(agentIDs)
	for _, id := range agentIDs {
		if err := p.store.SaveStatusHistory(ctx, runID, id, result.History[id]); err != nil {
			return fmt.Errorf("save status history %s/%s: %w", runID, id, err)
		}
	}
	return nil
}
