package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"animat/internal/model"
)

func sampleRun(id string, created time.Time) model.RunRecord {
	return model.RunRecord{
		VersionedRecord: Versioned(),
		ID:              id,
		Preset:          "mom-and-calf",
		Scape:           "sea",
		Seed:            7,
		Steps:           10,
		Ticks:           10,
		CreatedAt:       created,
		Agents: []model.AgentOutcome{
			{AgentID: "mom", Viable: true, Status: map[string]float64{"energy": 1.2}, Ticks: 10},
		},
	}
}

func TestMemoryStoreRequiresInit(t *testing.T) {
	store := NewMemoryStore()
	err := store.SaveRun(context.Background(), sampleRun("r1", time.Now()))
	if !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
}

func TestMemoryStoreRunRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	if err := store.SaveRun(ctx, sampleRun("older", base)); err != nil {
		t.Fatalf("save older: %v", err)
	}
	if err := store.SaveRun(ctx, sampleRun("newer", base.Add(time.Minute))); err != nil {
		t.Fatalf("save newer: %v", err)
	}

	run, ok, err := store.GetRun(ctx, "older")
	if err != nil || !ok {
		t.Fatalf("get run: ok=%t err=%v", ok, err)
	}
	if run.Agents[0].Status["energy"] != 1.2 {
		t.Fatalf("unexpected run: %+v", run)
	}
	if _, ok, _ := store.GetRun(ctx, "missing"); ok {
		t.Fatal("expected missing run")
	}

	runs, err := store.ListRuns(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "newer" || runs[1].ID != "older" {
		t.Fatalf("expected newest first, got %+v", runs)
	}
}

func TestMemoryStoreRejectsVersionMismatch(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	run := sampleRun("r1", time.Now())
	run.SchemaVersion = 99
	if err := store.SaveRun(ctx, run); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected ErrVersionMismatch, got %v", err)
	}
}

func TestMemoryStoreQTablesAndHistory(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	tables := []model.QTableRecord{{
		VersionedRecord: Versioned(),
		AgentID:         "calf",
		Objective:       "energy",
		Entries:         []model.QEntry{{State: "{0}", Action: "eat_and_forward", Value: 0.4, Visits: 3}},
	}}
	if err := store.SaveQTables(ctx, "r1", tables); err != nil {
		t.Fatalf("save q-tables: %v", err)
	}
	tables[0].AgentID = "mutated"
	got, ok, err := store.GetQTables(ctx, "r1")
	if err != nil || !ok {
		t.Fatalf("get q-tables: ok=%t err=%v", ok, err)
	}
	if got[0].AgentID != "calf" || got[0].Entries[0].Visits != 3 {
		t.Fatalf("unexpected q-tables: %+v", got)
	}

	samples := []model.StatusSample{
		{Tick: 1, Action: "forward", Status: map[string]float64{"energy": 0.999}, Viable: true},
		{Tick: 2, Action: "forward", Status: map[string]float64{"energy": 0.998}, Viable: true},
	}
	if err := store.SaveStatusHistory(ctx, "r1", "calf", samples); err != nil {
		t.Fatalf("save history: %v", err)
	}
	history, ok, err := store.GetStatusHistory(ctx, "r1", "calf")
	if err != nil || !ok {
		t.Fatalf("get history: ok=%t err=%v", ok, err)
	}
	if len(history) != 2 || history[1].Tick != 2 {
		t.Fatalf("unexpected history: %+v", history)
	}
	if _, ok, _ := store.GetStatusHistory(ctx, "r1", "mom"); ok {
		t.Fatal("expected no history for mom")
	}
}
