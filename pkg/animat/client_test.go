package animat

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"animat/internal/logging"
	"animat/internal/model"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	dir := t.TempDir()
	client, err := New(Options{
		StoreKind:    "memory",
		ArtifactsDir: filepath.Join(dir, "runs"),
		ExportsDir:   filepath.Join(dir, "exports"),
		Logger:       logging.Discard(),
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestClientRunRunsPolicyAndExport(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)

	seed := uint64(11)
	summary, err := client.Run(ctx, RunRequest{Preset: "mom-and-calf", Steps: 12, Seed: &seed, RunID: "first"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Ticks != 12 || len(summary.Agents) != 2 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if _, err := os.Stat(filepath.Join(summary.ArtifactsDir, "run.json")); err != nil {
		t.Fatalf("expected run artifacts: %v", err)
	}

	runs, err := client.Runs(ctx, RunsRequest{})
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if len(runs) != 1 || runs[0].RunID != "first" || runs[0].Seed != 11 || runs[0].Preset != "mom-and-calf" {
		t.Fatalf("unexpected runs: %+v", runs)
	}

	policies, err := client.Policy(ctx, PolicyRequest{Latest: true})
	if err != nil {
		t.Fatalf("policy: %v", err)
	}
	if len(policies) != 2 {
		t.Fatalf("expected a policy per learning agent, got %+v", policies)
	}
	calf, err := client.Policy(ctx, PolicyRequest{RunID: "first", AgentID: "calf"})
	if err != nil {
		t.Fatalf("calf policy: %v", err)
	}
	if len(calf) != 1 || calf[0].Objective != "energy" || len(calf[0].Pi) == 0 {
		t.Fatalf("unexpected calf policy: %+v", calf)
	}

	history, err := client.History(ctx, HistoryRequest{RunID: "first", AgentID: "mom"})
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history.Samples) != 12 || len(history.Objectives) != 1 {
		t.Fatalf("unexpected history: %+v", history)
	}

	exported, err := client.Export(ctx, ExportRequest{Latest: true})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	for _, name := range []string{"run.json", "qtables.json", "policy.json", "status_mom.csv", "status_calf.csv"} {
		if _, err := os.Stat(filepath.Join(exported.Directory, name)); err != nil {
			t.Fatalf("expected exported %s: %v", name, err)
		}
	}
}

func TestClientFallsBackToArtifacts(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	opts := Options{StoreKind: "memory", ArtifactsDir: filepath.Join(dir, "runs"), Logger: logging.Discard()}

	first, err := New(opts)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := first.Run(ctx, RunRequest{Preset: "random-mom-and-calf", Steps: 5, RunID: "kept"}); err != nil {
		t.Fatalf("run: %v", err)
	}

	// A second client starts with an empty in-memory store.
	second, err := New(opts)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	runs, err := second.Runs(ctx, RunsRequest{})
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if len(runs) != 1 || runs[0].RunID != "kept" {
		t.Fatalf("expected run from artifacts index, got %+v", runs)
	}
	history, err := second.History(ctx, HistoryRequest{Latest: true, AgentID: "calf"})
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history.Samples) != 5 {
		t.Fatalf("expected five samples, got %d", len(history.Samples))
	}
	exported, err := second.Export(ctx, ExportRequest{RunID: "kept", OutDir: filepath.Join(dir, "out")})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if _, err := os.Stat(filepath.Join(exported.Directory, "run.json")); err != nil {
		t.Fatalf("expected copied run.json: %v", err)
	}
}

func TestLoadSimulation(t *testing.T) {
	sim, name, err := LoadSimulation(RunRequest{})
	if err != nil {
		t.Fatalf("default preset: %v", err)
	}
	if name != "mom-and-calf" || len(sim.Agents) != 2 {
		t.Fatalf("unexpected default simulation %q: %+v", name, sim.Agents)
	}

	path := filepath.Join(t.TempDir(), "sim.yaml")
	data, err := sim.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	seed := uint64(99)
	fromFile, _, err := LoadSimulation(RunRequest{ConfigPath: path, Steps: 7, Seed: &seed})
	if err != nil {
		t.Fatalf("load file: %v", err)
	}
	if fromFile.Steps != 7 || fromFile.Seed != 99 {
		t.Fatalf("overrides not applied: steps=%d seed=%d", fromFile.Steps, fromFile.Seed)
	}

	tests := []struct {
		name string
		req  RunRequest
	}{
		{"both sources", RunRequest{Preset: "mom-and-calf", ConfigPath: path}},
		{"negative steps", RunRequest{Steps: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := LoadSimulation(tt.req); !errors.Is(err, model.ErrConfiguration) {
				t.Fatalf("expected ErrConfiguration, got %v", err)
			}
		})
	}
	if _, _, err := LoadSimulation(RunRequest{Preset: "no-such-preset"}); err == nil {
		t.Fatal("expected unknown preset error")
	}
}

func TestClientRequestValidation(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)
	if _, err := client.Export(ctx, ExportRequest{}); err == nil {
		t.Fatal("expected export to require a run")
	}
	if _, err := client.Export(ctx, ExportRequest{RunID: "x", Latest: true}); err == nil {
		t.Fatal("expected conflicting selectors error")
	}
	if _, err := client.Policy(ctx, PolicyRequest{Latest: true}); err == nil {
		t.Fatal("expected no runs error")
	}
	if _, err := client.Policy(ctx, PolicyRequest{RunID: "missing"}); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
	if _, err := client.History(ctx, HistoryRequest{RunID: "x"}); err == nil {
		t.Fatal("expected history to require an agent")
	}
}
