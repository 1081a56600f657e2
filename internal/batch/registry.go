package batch

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fermlab/fermentd/internal/thermal"
)

// Fermentation happens well inside this band; anything outside is a caller
// mistake, not a setpoint.
const (
	MinTargetTemp = 0.0
	MaxTargetTemp = 45.0
)

// Registry owns one thermal controller per batch. Batches are independent:
// each entry has its own lock, so cycles for different batches may run in
// parallel while learn/decide calls for the same batch are serialized.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry

	store    Store
	settings thermal.Settings
	log      *slog.Logger
}

type entry struct {
	mu         sync.Mutex
	batch      Batch
	controller *thermal.Controller
	last       thermal.Action
	hasLast    bool
}

func NewRegistry(store Store, settings thermal.Settings, log *slog.Logger) (*Registry, error) {
	if log == nil {
		log = slog.Default()
	}
	r := &Registry{
		entries:  make(map[string]*entry),
		store:    store,
		settings: settings,
		log:      log,
	}

	// Restore persisted batches, their learned models and last decisions.
	batches, err := store.ListBatches()
	if err != nil {
		return nil, fmt.Errorf("restore batches: %w", err)
	}
	for _, b := range batches {
		e := r.newEntry(b)
		if m, ok, err := store.LoadModel(b.ID); err != nil {
			return nil, fmt.Errorf("restore model for %s: %w", b.ID, err)
		} else if ok {
			e.controller.Restore(m)
		}
		if a, ok, err := store.LoadDecision(b.ID); err != nil {
			return nil, fmt.Errorf("restore decision for %s: %w", b.ID, err)
		} else if ok {
			e.last = a
			e.hasLast = true
		}
		r.entries[b.ID] = e
	}
	return r, nil
}

func (r *Registry) newEntry(b Batch) *entry {
	return &entry{
		batch:      b,
		controller: thermal.NewController(r.log.With("batch", b.ID), r.settings),
	}
}

func (r *Registry) List() []Batch {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Batch, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.batch)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (r *Registry) Get(id string) (Batch, bool) {
	e, ok := r.entry(id)
	if !ok {
		return Batch{}, false
	}
	return e.batch, true
}

func (r *Registry) Create(name string, target float64) (Batch, error) {
	if name == "" {
		return Batch{}, ErrEmptyName
	}
	if target < MinTargetTemp || target > MaxTargetTemp {
		return Batch{}, ErrInvalidTarget
	}
	b := Batch{
		ID:         uuid.NewString(),
		Name:       name,
		TargetTemp: target,
		CreatedAt:  time.Now().UTC(),
	}
	if err := r.store.SaveBatch(b); err != nil {
		return Batch{}, fmt.Errorf("save batch: %w", err)
	}

	r.mu.Lock()
	r.entries[b.ID] = r.newEntry(b)
	r.mu.Unlock()
	return b, nil
}

func (r *Registry) SetTarget(id string, target float64) error {
	if target < MinTargetTemp || target > MaxTargetTemp {
		return ErrInvalidTarget
	}
	e, ok := r.entry(id)
	if !ok {
		return ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.batch.TargetTemp = target
	return r.store.SaveBatch(e.batch)
}

// Record appends a sensor reading to the batch's history.
func (r *Registry) Record(id string, reading Reading) error {
	if _, ok := r.entry(id); !ok {
		return ErrNotFound
	}
	return r.store.AppendReading(id, reading)
}

// LastDecision returns the most recent control action for a batch.
func (r *Registry) LastDecision(id string) (thermal.Action, bool) {
	e, ok := r.entry(id)
	if !ok {
		return thermal.Action{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.last, e.hasLast
}

// Learn refits the batch's thermal model from its stored history and
// persists the result.
func (r *Registry) Learn(id string) (thermal.LearnResult, error) {
	e, ok := r.entry(id)
	if !ok {
		return thermal.LearnResult{}, ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return r.learnLocked(e)
}

func (r *Registry) learnLocked(e *entry) (thermal.LearnResult, error) {
	h, err := r.store.History(e.batch.ID)
	if err != nil {
		return thermal.LearnResult{}, fmt.Errorf("load history: %w", err)
	}
	res, err := e.controller.Learn(h)
	if err != nil {
		return res, err
	}
	if err := r.store.SaveModel(e.batch.ID, e.controller.Model()); err != nil {
		return res, fmt.Errorf("save model: %w", err)
	}
	return res, nil
}

func (r *Registry) entry(id string) (*entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	return e, ok
}
