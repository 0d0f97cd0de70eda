package model

import "time"

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

type RunRecord struct {
	VersionedRecord
	ID        string         `json:"id"`
	Preset    string         `json:"preset"`
	Scape     string         `json:"scape"`
	Seed      uint64         `json:"seed"`
	Steps     int            `json:"steps"`
	Ticks     int            `json:"ticks"`
	CreatedAt time.Time      `json:"created_at"`
	Agents    []AgentOutcome `json:"agents"`
}

type AgentOutcome struct {
	AgentID string             `json:"agent_id"`
	Viable  bool               `json:"viable"`
	Status  map[string]float64 `json:"status"`
	Ticks   int                `json:"ticks"`
}

type QEntry struct {
	State  string  `json:"state"`
	Action string  `json:"action"`
	Value  float64 `json:"value"`
	Visits int     `json:"visits"`
}

// QTableRecord is the exported form of one objective's table.
type QTableRecord struct {
	VersionedRecord
	AgentID   string   `json:"agent_id"`
	Objective string   `json:"objective"`
	Entries   []QEntry `json:"entries"`
}

type StatusSample struct {
	Tick   int                `json:"tick"`
	Action string             `json:"action"`
	Reward map[string]float64 `json:"reward,omitempty"`
	Status map[string]float64 `json:"status"`
	Viable bool               `json:"viable"`
}

type PolicyRecord struct {
	Objective string             `json:"objective"`
	U         map[string]float64 `json:"u"`
	Pi        map[string]string  `json:"pi"`
}
