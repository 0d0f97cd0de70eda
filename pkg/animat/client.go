// Package animat is the public entry point: it runs simulations from
// presets or YAML files and reads back the stored runs, policies and
// status histories.
package animat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"animat/internal/config"
	"animat/internal/logging"
	"animat/internal/model"
	"animat/internal/platform"
	"animat/internal/scape"
	"animat/internal/stats"
	"animat/internal/storage"
)

const (
	defaultArtifactsDir = "runs"
	defaultExportsDir   = "exports"
	defaultDBPath       = "animat.db"
	defaultPreset       = "mom-and-calf"
)

var ErrRunNotFound = errors.New("run not found")

type Options struct {
	StoreKind    string
	DBPath       string
	ArtifactsDir string
	ExportsDir   string
	Logger       *slog.Logger
}

type Client struct {
	store  storage.Store
	polis  *platform.Polis
	logger *slog.Logger

	artifactsDir string
	exportsDir   string
}

type RunRequest struct {
	// Preset names a built-in simulation; ConfigPath a YAML file. When both
	// are empty the mom-and-calf preset runs.
	Preset     string
	ConfigPath string
	RunID      string
	// Steps and Seed override the loaded simulation when set.
	Steps   int
	Seed    *uint64
	Observe func(scape.StepResult) error
}

type RunSummary struct {
	RunID        string
	ArtifactsDir string
	Ticks        int
	Stopped      bool
	Agents       []model.AgentOutcome
}

type RunsRequest struct {
	Limit int
}

type RunItem struct {
	RunID     string
	CreatedAt time.Time
	Preset    string
	Scape     string
	Seed      uint64
	Ticks     int
	Agents    int
	Survivors int
}

type PolicyRequest struct {
	RunID   string
	Latest  bool
	AgentID string
}

type PolicyItem struct {
	AgentID string
	model.PolicyRecord
}

type HistoryRequest struct {
	RunID   string
	Latest  bool
	AgentID string
}

type HistorySummary struct {
	RunID      string
	AgentID    string
	Samples    []model.StatusSample
	Objectives []stats.ObjectiveSummary
}

type ExportRequest struct {
	RunID  string
	Latest bool
	OutDir string
}

type ExportSummary struct {
	RunID     string
	Directory string
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	artifactsDir := opts.ArtifactsDir
	if artifactsDir == "" {
		artifactsDir = defaultArtifactsDir
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:        store,
		logger:       logging.OrDefault(opts.Logger),
		artifactsDir: artifactsDir,
		exportsDir:   exportsDir,
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	_, err := c.ensurePolis(ctx)
	return err
}

// LoadSimulation resolves the request's preset or file and applies its
// overrides without running anything.
func LoadSimulation(req RunRequest) (*config.Simulation, string, error) {
	var (
		sim  *config.Simulation
		name string
		err  error
	)
	switch {
	case req.ConfigPath != "" && req.Preset != "":
		return nil, "", fmt.Errorf("%w: use either a preset or a config file", model.ErrConfiguration)
	case req.ConfigPath != "":
		sim, err = config.LoadFromFile(req.ConfigPath)
		name = filepath.Base(req.ConfigPath)
	default:
		name = req.Preset
		if name == "" {
			name = defaultPreset
		}
		sim, err = config.Preset(name)
	}
	if err != nil {
		return nil, "", err
	}
	if sim.Name != "" {
		name = sim.Name
	}
	if req.Steps < 0 {
		return nil, "", fmt.Errorf("%w: steps must be positive, got %d", model.ErrConfiguration, req.Steps)
	}
	if req.Steps > 0 {
		sim.Steps = req.Steps
	}
	if req.Seed != nil {
		sim.Seed = *req.Seed
	}
	if err := sim.Validate(); err != nil {
		return nil, "", err
	}
	return sim, name, nil
}

func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	sim, name, err := LoadSimulation(req)
	if err != nil {
		return RunSummary{}, err
	}
	p, err := c.ensurePolis(ctx)
	if err != nil {
		return RunSummary{}, err
	}

	result, err := p.RunSimulation(ctx, platform.RunRequest{
		RunID:        req.RunID,
		Preset:       name,
		Simulation:   sim,
		ArtifactsDir: c.artifactsDir,
		Observe:      req.Observe,
	})
	if err != nil {
		return RunSummary{}, err
	}
	return RunSummary{
		RunID:        result.Run.ID,
		ArtifactsDir: result.RunDir,
		Ticks:        result.Run.Ticks,
		Stopped:      result.Stopped,
		Agents:       result.Run.Agents,
	}, nil
}

// Runs lists stored runs newest first. A store without runs, such as a
// fresh in-memory one, falls back to the artifacts index.
func (c *Client) Runs(ctx context.Context, req RunsRequest) ([]RunItem, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}
	p, err := c.ensurePolis(ctx)
	if err != nil {
		return nil, err
	}

	runs, err := p.Store().ListRuns(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]RunItem, 0, len(runs))
	for _, run := range runs {
		entry := stats.IndexEntry(run)
		out = append(out, RunItem{
			RunID:     run.ID,
			CreatedAt: run.CreatedAt,
			Preset:    run.Preset,
			Scape:     run.Scape,
			Seed:      run.Seed,
			Ticks:     run.Ticks,
			Agents:    entry.Agents,
			Survivors: entry.Survivors,
		})
	}
	if len(out) == 0 {
		entries, err := stats.ListRunIndex(c.artifactsDir)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			created, _ := time.Parse("2006-01-02T15:04:05Z", e.CreatedAtUTC)
			out = append(out, RunItem{
				RunID:     e.RunID,
				CreatedAt: created,
				Preset:    e.Preset,
				Scape:     e.Scape,
				Seed:      e.Seed,
				Ticks:     e.Ticks,
				Agents:    e.Agents,
				Survivors: e.Survivors,
			})
		}
	}
	if len(out) > req.Limit {
		out = out[:req.Limit]
	}
	return out, nil
}

// Policy derives U and Pi for every learning agent of a run, or only
// AgentID when set.
func (c *Client) Policy(ctx context.Context, req PolicyRequest) ([]PolicyItem, error) {
	runID, err := c.resolveRunID(ctx, req.RunID, req.Latest)
	if err != nil {
		return nil, err
	}
	tables, ok, err := c.store.GetQTables(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		tables, ok, err = stats.ReadQTables(c.artifactsDir, runID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
	}

	var out []PolicyItem
	for _, table := range tables {
		if req.AgentID != "" && table.AgentID != req.AgentID {
			continue
		}
		out = append(out, PolicyItem{AgentID: table.AgentID, PolicyRecord: stats.PolicyFromQTable(table)})
	}
	if req.AgentID != "" && len(out) == 0 {
		return nil, fmt.Errorf("agent %s has no learned policy in run %s", req.AgentID, runID)
	}
	return out, nil
}

func (c *Client) History(ctx context.Context, req HistoryRequest) (HistorySummary, error) {
	if req.AgentID == "" {
		return HistorySummary{}, errors.New("history requires an agent id")
	}
	runID, err := c.resolveRunID(ctx, req.RunID, req.Latest)
	if err != nil {
		return HistorySummary{}, err
	}
	samples, ok, err := c.store.GetStatusHistory(ctx, runID, req.AgentID)
	if err != nil {
		return HistorySummary{}, err
	}
	if !ok {
		samples, ok, err = stats.ReadStatusHistory(stats.StatusHistoryPath(c.artifactsDir, runID, req.AgentID))
		if err != nil {
			return HistorySummary{}, err
		}
		if !ok {
			return HistorySummary{}, fmt.Errorf("no status history for agent %s in run %s", req.AgentID, runID)
		}
	}
	return HistorySummary{
		RunID:      runID,
		AgentID:    req.AgentID,
		Samples:    samples,
		Objectives: stats.SummarizeHistory(samples),
	}, nil
}

// Export writes a run's artifacts to OutDir/<run id>, rebuilding them from
// the store when it holds the run and copying the artifacts otherwise.
func (c *Client) Export(ctx context.Context, req ExportRequest) (ExportSummary, error) {
	if req.RunID != "" && req.Latest {
		return ExportSummary{}, errors.New("use either run id or latest")
	}
	if req.RunID == "" && !req.Latest {
		return ExportSummary{}, errors.New("export requires run id or latest")
	}
	if req.OutDir == "" {
		req.OutDir = c.exportsDir
	}
	runID, err := c.resolveRunID(ctx, req.RunID, req.Latest)
	if err != nil {
		return ExportSummary{}, err
	}

	run, ok, err := c.store.GetRun(ctx, runID)
	if err != nil {
		return ExportSummary{}, err
	}
	if !ok {
		dir, err := stats.ExportRunArtifacts(c.artifactsDir, runID, req.OutDir)
		if err != nil {
			return ExportSummary{}, fmt.Errorf("%w: %s: %v", ErrRunNotFound, runID, err)
		}
		return ExportSummary{RunID: runID, Directory: filepath.Clean(dir)}, nil
	}

	tables, _, err := c.store.GetQTables(ctx, runID)
	if err != nil {
		return ExportSummary{}, err
	}
	history := make(map[string][]model.StatusSample, len(run.Agents))
	for _, outcome := range run.Agents {
		samples, ok, err := c.store.GetStatusHistory(ctx, runID, outcome.AgentID)
		if err != nil {
			return ExportSummary{}, err
		}
		if ok {
			history[outcome.AgentID] = samples
		}
	}
	dir, err := stats.WriteRunArtifacts(req.OutDir, stats.RunArtifacts{Run: run, QTables: tables, History: history})
	if err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{RunID: runID, Directory: filepath.Clean(dir)}, nil
}

func (c *Client) resolveRunID(ctx context.Context, runID string, latest bool) (string, error) {
	if _, err := c.ensurePolis(ctx); err != nil {
		return "", err
	}
	if runID != "" && latest {
		return "", errors.New("use either run id or latest")
	}
	if runID != "" {
		return runID, nil
	}
	if !latest {
		return "", errors.New("a run id or latest is required")
	}
	items, err := c.Runs(ctx, RunsRequest{Limit: 1})
	if err != nil {
		return "", err
	}
	if len(items) == 0 {
		return "", errors.New("no runs available")
	}
	return items[0].RunID, nil
}

func (c *Client) ensurePolis(ctx context.Context) (*platform.Polis, error) {
	if c.polis != nil {
		return c.polis, nil
	}
	p := platform.NewPolis(platform.Config{Store: c.store, Logger: c.logger})
	if err := p.Init(ctx); err != nil {
		return nil, err
	}
	c.polis = p
	return c.polis, nil
}
