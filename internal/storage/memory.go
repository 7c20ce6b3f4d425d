package storage

import (
	"context"
	"sync"

	"hplattice/internal/model"
)

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	densities   map[string]model.DensityRecord
	natives     map[string]model.NativeStateRecord
	runs        map[string]model.SamplingRunRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.densities = make(map[string]model.DensityRecord)
	s.natives = make(map[string]model.NativeStateRecord)
	s.runs = make(map[string]model.SamplingRunRecord)
	return nil
}

func (s *MemoryStore) SaveDensity(_ context.Context, density model.DensityRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.densities[density.ID] = cloneDensity(density)
	return nil
}

func (s *MemoryStore) GetDensity(_ context.Context, id string) (model.DensityRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	density, ok := s.densities[id]
	if !ok {
		return model.DensityRecord{}, false, nil
	}
	return cloneDensity(density), true, nil
}

func (s *MemoryStore) SaveNativeState(_ context.Context, native model.NativeStateRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.natives[native.Sequence] = native
	return nil
}

func (s *MemoryStore) GetNativeState(_ context.Context, sequence string) (model.NativeStateRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	native, ok := s.natives[sequence]
	return native, ok, nil
}

func (s *MemoryStore) SaveSamplingRun(_ context.Context, run model.SamplingRunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs[run.RunID] = cloneSamplingRun(run)
	return nil
}

func (s *MemoryStore) GetSamplingRun(_ context.Context, runID string) (model.SamplingRunRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[runID]
	if !ok {
		return model.SamplingRunRecord{}, false, nil
	}
	return cloneSamplingRun(run), true, nil
}

func cloneDensity(d model.DensityRecord) model.DensityRecord {
	d.States = append([]model.ContactStateCount(nil), d.States...)
	d.Levels = append([]model.EnergyLevel(nil), d.Levels...)
	d.Restrained = append([]model.RestrainedLevel(nil), d.Restrained...)
	return d
}

func cloneSamplingRun(r model.SamplingRunRecord) model.SamplingRunRecord {
	r.Temperatures = append([]float64(nil), r.Temperatures...)
	r.Replicas = append([]model.ReplicaSummary(nil), r.Replicas...)
	return r
}
