package storage

import (
	"context"

	"animat/internal/model"
)

// Store persists finished runs: the run record, every agent's exported
// Q-tables and the per-tick status history.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run model.RunRecord) error
	GetRun(ctx context.Context, id string) (model.RunRecord, bool, error)
	// ListRuns returns every run, newest first.
	ListRuns(ctx context.Context) ([]model.RunRecord, error)
	SaveQTables(ctx context.Context, runID string, tables []model.QTableRecord) error
	GetQTables(ctx context.Context, runID string) ([]model.QTableRecord, bool, error)
	SaveStatusHistory(ctx context.Context, runID, agentID string, samples []model.StatusSample) error
	GetStatusHistory(ctx context.Context, runID, agentID string) ([]model.StatusSample, bool, error)
}

// Versioned stamps a record with the versions this build writes.
func Versioned() model.VersionedRecord {
	return model.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion}
}
