package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/fermlab/fermentd/internal/batch"
	"github.com/fermlab/fermentd/internal/thermal"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "fermentd.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func boolPtr(b bool) *bool { return &b }

func TestBatchRoundTrip(t *testing.T) {
	s := newTestStore(t)
	b := batch.Batch{
		ID:         "b1",
		Name:       "saison",
		TargetTemp: 24,
		CreatedAt:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	if err := s.SaveBatch(b); err != nil {
		t.Fatalf("SaveBatch() failed: %v", err)
	}
	got, err := s.ListBatches()
	if err != nil {
		t.Fatalf("ListBatches() failed: %v", err)
	}
	if len(got) != 1 || got[0] != b {
		t.Errorf("ListBatches() = %+v, want [%+v]", got, b)
	}
}

func TestModelRoundTrip(t *testing.T) {
	s := newTestStore(t)
	m := thermal.Model{
		HeatingRate:  1.29,
		CoolingRate:  1.07,
		AmbientCoeff: 0.1,
		HasModel:     true,
		HasCooling:   true,
	}
	if err := s.SaveModel("b1", m); err != nil {
		t.Fatalf("SaveModel() failed: %v", err)
	}
	got, ok, err := s.LoadModel("b1")
	if err != nil {
		t.Fatalf("LoadModel() failed: %v", err)
	}
	if !ok || got != m {
		t.Errorf("LoadModel() = %+v, %v; want %+v", got, ok, m)
	}

	if _, ok, err := s.LoadModel("missing"); err != nil || ok {
		t.Errorf("LoadModel(missing) = ok=%v err=%v, want absent", ok, err)
	}
}

func TestHistoryAssembly(t *testing.T) {
	s := newTestStore(t)
	origin := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		r := batch.Reading{
			Temp:     20 + float64(i),
			Ambient:  18,
			HeaterOn: i%2 == 0,
			CoolerOn: boolPtr(false),
			At:       origin.Add(time.Duration(i) * 30 * time.Minute),
		}
		if err := s.AppendReading("b1", r); err != nil {
			t.Fatalf("AppendReading() failed: %v", err)
		}
	}

	h, err := s.History("b1")
	if err != nil {
		t.Fatalf("History() failed: %v", err)
	}
	if err := h.Validate(); err != nil {
		t.Fatalf("assembled history invalid: %v", err)
	}
	if h.Cooler == nil {
		t.Error("Cooler series missing despite every reading reporting one")
	}
	wantTimes := []float64{0, 0.5, 1, 1.5}
	for i, w := range wantTimes {
		if h.Times[i] != w {
			t.Errorf("Times[%d] = %v, want %v", i, h.Times[i], w)
		}
	}
	if h.Temps[3] != 23 || !h.Heater[2] || h.Heater[1] {
		t.Errorf("series out of insertion order: %+v", h)
	}
}

// A cooler gap anywhere in the series disables the cooling capability.
func TestHistoryCoolerGap(t *testing.T) {
	s := newTestStore(t)
	origin := time.Now().UTC()
	for i := 0; i < 3; i++ {
		r := batch.Reading{Temp: 20, Ambient: 18, At: origin.Add(time.Duration(i) * time.Hour)}
		if i != 1 {
			r.CoolerOn = boolPtr(true)
		}
		if err := s.AppendReading("b1", r); err != nil {
			t.Fatalf("AppendReading() failed: %v", err)
		}
	}
	h, err := s.History("b1")
	if err != nil {
		t.Fatalf("History() failed: %v", err)
	}
	if h.Cooler != nil {
		t.Errorf("Cooler series present despite a gap: %+v", h.Cooler)
	}
}

func TestLastReading(t *testing.T) {
	s := newTestStore(t)

	if _, ok, err := s.LastReading("b1"); err != nil || ok {
		t.Fatalf("LastReading(empty) = ok=%v err=%v, want absent", ok, err)
	}

	origin := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		r := batch.Reading{Temp: float64(i), Ambient: 18, At: origin.Add(time.Duration(i) * time.Minute)}
		if err := s.AppendReading("b1", r); err != nil {
			t.Fatalf("AppendReading() failed: %v", err)
		}
	}
	got, ok, err := s.LastReading("b1")
	if err != nil || !ok {
		t.Fatalf("LastReading() = ok=%v err=%v", ok, err)
	}
	if got.Temp != 4 {
		t.Errorf("LastReading().Temp = %v, want 4", got.Temp)
	}
}

func TestDecisionRoundTrip(t *testing.T) {
	s := newTestStore(t)
	on, off := true, false
	predicted, cost := 20.4, 3.2
	a := thermal.Action{
		HeaterOn:      &on,
		CoolerOn:      &off,
		Reason:        thermal.ReasonHeatingToTarget,
		PredictedTemp: &predicted,
		Cost:          &cost,
	}
	if err := s.SaveDecision("b1", a); err != nil {
		t.Fatalf("SaveDecision() failed: %v", err)
	}
	got, ok, err := s.LoadDecision("b1")
	if err != nil || !ok {
		t.Fatalf("LoadDecision() = ok=%v err=%v", ok, err)
	}
	if got.Reason != a.Reason || *got.HeaterOn != on || *got.CoolerOn != off {
		t.Errorf("LoadDecision() = %+v, want %+v", got, a)
	}
	if *got.PredictedTemp != predicted || *got.Cost != cost {
		t.Errorf("forecast fields lost: %+v", got)
	}
}
