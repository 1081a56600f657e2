package testutil

import (
	"time"

	"github.com/fermlab/fermentd/internal/batch"
	"github.com/fermlab/fermentd/internal/thermal"
)

// FakeBatchService is a reusable fake implementing ports.BatchService and
// ports.SampleSink. Put ONLY what multiple test packages need here.
type FakeBatchService struct {
	Batches   map[string]batch.Batch
	Decisions map[string]thermal.Action

	CreateCalled bool
	CreateName   string
	CreateTarget float64
	CreateErr    error

	SetTargetCalled bool
	SetTargetID     string
	SetTargetArg    float64
	SetTargetErr    error

	RecordCalled  bool
	RecordID      string
	RecordReading batch.Reading
	RecordErr     error

	LearnCalled bool
	LearnID     string
	LearnResult thermal.LearnResult
	LearnErr    error
}

func NewFakeBatchService() *FakeBatchService {
	return &FakeBatchService{
		Batches: map[string]batch.Batch{
			"b1": {
				ID:         "b1",
				Name:       "saison",
				TargetTemp: 24,
				CreatedAt:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
			},
		},
		Decisions: make(map[string]thermal.Action),
	}
}

func (f *FakeBatchService) List() []batch.Batch {
	out := make([]batch.Batch, 0, len(f.Batches))
	for _, b := range f.Batches {
		out = append(out, b)
	}
	return out
}

func (f *FakeBatchService) Get(id string) (batch.Batch, bool) {
	b, ok := f.Batches[id]
	return b, ok
}

func (f *FakeBatchService) Create(name string, target float64) (batch.Batch, error) {
	f.CreateCalled = true
	f.CreateName = name
	f.CreateTarget = target
	if f.CreateErr != nil {
		return batch.Batch{}, f.CreateErr
	}
	b := batch.Batch{ID: "created", Name: name, TargetTemp: target, CreatedAt: time.Now().UTC()}
	f.Batches[b.ID] = b
	return b, nil
}

func (f *FakeBatchService) SetTarget(id string, target float64) error {
	f.SetTargetCalled = true
	f.SetTargetID = id
	f.SetTargetArg = target
	if f.SetTargetErr != nil {
		return f.SetTargetErr
	}
	b, ok := f.Batches[id]
	if !ok {
		return batch.ErrNotFound
	}
	b.TargetTemp = target
	f.Batches[id] = b
	return nil
}

func (f *FakeBatchService) LastDecision(id string) (thermal.Action, bool) {
	a, ok := f.Decisions[id]
	return a, ok
}

func (f *FakeBatchService) Learn(id string) (thermal.LearnResult, error) {
	f.LearnCalled = true
	f.LearnID = id
	return f.LearnResult, f.LearnErr
}

func (f *FakeBatchService) Record(id string, r batch.Reading) error {
	f.RecordCalled = true
	f.RecordID = id
	f.RecordReading = r
	return f.RecordErr
}
