package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestPresetsCommand(t *testing.T) {
	out, err := execute(t, "presets")
	if err != nil {
		t.Fatalf("presets: %v", err)
	}
	for _, name := range []string{"grid", "mom-and-calf", "random-mom-and-calf", "random-mom-and-calf2"} {
		if !strings.Contains(out, name) {
			t.Fatalf("expected %s in %q", name, out)
		}
	}

	out, err = execute(t, "presets", "networkmomandcalf")
	if err != nil {
		t.Fatalf("presets by alias: %v", err)
	}
	if !strings.Contains(out, "strategy: table") {
		t.Fatalf("expected preset yaml, got %q", out)
	}
}

func TestRunThenInspect(t *testing.T) {
	dir := t.TempDir()
	artifacts := filepath.Join(dir, "runs")
	common := []string{"--store", "memory", "--artifacts-dir", artifacts, "--log-level", "error"}

	out, err := execute(t, append([]string{"run", "--preset", "mom-and-calf", "--steps", "8", "--seed", "5", "--run-id", "cli-run", "--json"}, common...)...)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	var summary struct {
		RunID string
		Ticks int
	}
	if err := json.Unmarshal([]byte(out), &summary); err != nil {
		t.Fatalf("decode run output %q: %v", out, err)
	}
	if summary.RunID != "cli-run" || summary.Ticks != 8 {
		t.Fatalf("unexpected run summary: %+v", summary)
	}

	out, err = execute(t, append([]string{"runs"}, common...)...)
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if !strings.Contains(out, "cli-run") || !strings.Contains(out, "mom-and-calf") {
		t.Fatalf("expected run listed, got %q", out)
	}

	out, err = execute(t, append([]string{"policy", "--latest", "--agent", "calf"}, common...)...)
	if err != nil {
		t.Fatalf("policy: %v", err)
	}
	if !strings.Contains(out, "calf") || !strings.Contains(out, "energy") {
		t.Fatalf("expected calf policy, got %q", out)
	}

	out, err = execute(t, append([]string{"history", "--run-id", "cli-run", "--agent", "mom"}, common...)...)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if !strings.Contains(out, "samples=8") {
		t.Fatalf("expected eight samples, got %q", out)
	}

	exportDir := filepath.Join(dir, "exports")
	if _, err := execute(t, append([]string{"export", "--run-id", "cli-run", "--out", exportDir}, common...)...); err != nil {
		t.Fatalf("export: %v", err)
	}
	if _, err := os.Stat(filepath.Join(exportDir, "cli-run", "policy.json")); err != nil {
		t.Fatalf("expected exported policy: %v", err)
	}
}

func TestRunRejectsConflictingSources(t *testing.T) {
	_, err := execute(t, "run", "--store", "memory", "--artifacts-dir", t.TempDir(), "--preset", "mom-and-calf", "--config", "sim.yaml")
	if err == nil {
		t.Fatal("expected conflicting source error")
	}
}

func TestHistoryRequiresAgent(t *testing.T) {
	if _, err := execute(t, "history", "--latest", "--store", "memory"); err == nil {
		t.Fatal("expected missing --agent error")
	}
}
