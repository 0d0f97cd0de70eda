package storage

import (
	"encoding/json"
	"errors"
	"fmt"

	"animat/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

func EncodeRun(r model.RunRecord) ([]byte, error) {
	return json.Marshal(r)
}

func DecodeRun(data []byte) (model.RunRecord, error) {
	var run model.RunRecord
	if err := json.Unmarshal(data, &run); err != nil {
		return model.RunRecord{}, err
	}
	if err := checkVersion(run.VersionedRecord); err != nil {
		return model.RunRecord{}, fmt.Errorf("run %s: %w", run.ID, err)
	}
	return run, nil
}

func EncodeQTables(tables []model.QTableRecord) ([]byte, error) {
	return json.Marshal(tables)
}

func DecodeQTables(data []byte) ([]model.QTableRecord, error) {
	var tables []model.QTableRecord
	if err := json.Unmarshal(data, &tables); err != nil {
		return nil, err
	}
	for _, table := range tables {
		if err := checkVersion(table.VersionedRecord); err != nil {
			return nil, fmt.Errorf("q-table %s/%s: %w", table.AgentID, table.Objective, err)
		}
	}
	return tables, nil
}

func EncodeStatusHistory(samples []model.StatusSample) ([]byte, error) {
	return json.Marshal(samples)
}

func DecodeStatusHistory(data []byte) ([]model.StatusSample, error) {
	var samples []model.StatusSample
	if err := json.Unmarshal(data, &samples); err != nil {
		return nil, err
	}
	return samples, nil
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return fmt.Errorf("%w: schema=%d codec=%d", ErrVersionMismatch, v.SchemaVersion, v.CodecVersion)
	}
	return nil
}
