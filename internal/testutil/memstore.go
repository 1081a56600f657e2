package testutil

import (
	"sync"

	"github.com/fermlab/fermentd/internal/batch"
	"github.com/fermlab/fermentd/internal/thermal"
)

// MemStore is an in-memory batch.Store for tests.
type MemStore struct {
	mu        sync.Mutex
	Batches   map[string]batch.Batch
	Readings  map[string][]batch.Reading
	Models    map[string]thermal.Model
	Decisions map[string]thermal.Action

	SaveBatchErr error
	HistoryErr   error
}

func NewMemStore() *MemStore {
	return &MemStore{
		Batches:   make(map[string]batch.Batch),
		Readings:  make(map[string][]batch.Reading),
		Models:    make(map[string]thermal.Model),
		Decisions: make(map[string]thermal.Action),
	}
}

func (s *MemStore) SaveBatch(b batch.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SaveBatchErr != nil {
		return s.SaveBatchErr
	}
	s.Batches[b.ID] = b
	return nil
}

func (s *MemStore) ListBatches() ([]batch.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]batch.Batch, 0, len(s.Batches))
	for _, b := range s.Batches {
		out = append(out, b)
	}
	return out, nil
}

func (s *MemStore) AppendReading(id string, r batch.Reading) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Readings[id] = append(s.Readings[id], r)
	return nil
}

func (s *MemStore) LastReading(id string) (batch.Reading, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rs := s.Readings[id]
	if len(rs) == 0 {
		return batch.Reading{}, false, nil
	}
	return rs[len(rs)-1], true, nil
}

func (s *MemStore) History(id string) (thermal.History, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.HistoryErr != nil {
		return thermal.History{}, s.HistoryErr
	}
	rs := s.Readings[id]
	if len(rs) == 0 {
		return thermal.History{}, nil
	}
	h := thermal.History{}
	hasCooler := true
	for _, r := range rs {
		if r.CoolerOn == nil {
			hasCooler = false
			break
		}
	}
	origin := rs[0].At
	for _, r := range rs {
		h.Temps = append(h.Temps, r.Temp)
		h.Times = append(h.Times, r.At.Sub(origin).Hours())
		h.Heater = append(h.Heater, r.HeaterOn)
		h.Ambient = append(h.Ambient, r.Ambient)
		if hasCooler {
			h.Cooler = append(h.Cooler, *r.CoolerOn)
		}
	}
	return h, nil
}

func (s *MemStore) SaveModel(id string, m thermal.Model) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Models[id] = m
	return nil
}

func (s *MemStore) LoadModel(id string) (thermal.Model, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.Models[id]
	return m, ok, nil
}

func (s *MemStore) SaveDecision(id string, a thermal.Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Decisions[id] = a
	return nil
}

func (s *MemStore) LoadDecision(id string) (thermal.Action, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.Decisions[id]
	return a, ok, nil
}
