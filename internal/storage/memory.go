package storage

import (
	"context"
	"errors"
	"sort"
	"sync"

	"animat/internal/model"
)

var ErrNotInitialized = errors.New("store is not initialized")

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	runs        map[string]model.RunRecord
	qtables     map[string][]model.QTableRecord
	history     map[string]map[string][]model.StatusSample
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.runs = make(map[string]model.RunRecord)
	s.qtables = make(map[string][]model.QTableRecord)
	s.history = make(map[string]map[string][]model.StatusSample)
	return nil
}

func (s *MemoryStore) SaveRun(_ context.Context, run model.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return ErrNotInitialized
	}
	if err := checkVersion(run.VersionedRecord); err != nil {
		return err
	}
	run.Agents = append([]model.AgentOutcome(nil), run.Agents...)
	s.runs[run.ID] = run
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, id string) (model.RunRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return model.RunRecord{}, false, nil
	}
	run.Agents = append([]model.AgentOutcome(nil), run.Agents...)
	return run, true, nil
}

func (s *MemoryStore) ListRuns(_ context.Context) ([]model.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]model.RunRecord, 0, len(s.runs))
	for _, run := range s.runs {
		runs = append(runs, run)
	}
	sortRuns(runs)
	return runs, nil
}

func sortRuns(runs []model.RunRecord) {
	sort.Slice(runs, func(i, j int) bool {
		if !runs[i].CreatedAt.Equal(runs[j].CreatedAt) {
			return runs[i].CreatedAt.After(runs[j].CreatedAt)
		}
		return runs[i].ID < runs[j].ID
	})
}

func (s *MemoryStore) SaveQTables(_ context.Context, runID string, tables []model.QTableRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return ErrNotInitialized
	}
	for _, table := range tables {
		if err := checkVersion(table.VersionedRecord); err != nil {
			return err
		}
	}
	s.qtables[runID] = append([]model.QTableRecord(nil), tables...)
	return nil
}

func (s *MemoryStore) GetQTables(_ context.Context, runID string) ([]model.QTableRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tables, ok := s.qtables[runID]
	if !ok {
		return nil, false, nil
	}
	return append([]model.QTableRecord(nil), tables...), true, nil
}

func (s *MemoryStore) SaveStatusHistory(_ context.Context, runID, agentID string, samples []model.StatusSample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return ErrNotInitialized
	}
	byAgent, ok := s.history[runID]
	if !ok {
		byAgent = make(map[string][]model.StatusSample)
		s.history[runID] = byAgent
	}
	byAgent[agentID] = append([]model.StatusSample(nil), samples...)
	return nil
}

func (s *MemoryStore) GetStatusHistory(_ context.Context, runID, agentID string) ([]model.StatusSample, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	samples, ok := s.history[runID][agentID]
	if !ok {
		return nil, false, nil
	}
	return append([]model.StatusSample(nil), samples...), true, nil
}
