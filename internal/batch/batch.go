package batch

import (
	"context"
	"time"

	"github.com/fermlab/fermentd/internal/thermal"
)

// Batch is one fermentation batch: the unit a thermal controller is owned by.
type Batch struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	TargetTemp float64   `json:"target_temp"` // °C
	CreatedAt  time.Time `json:"created_at"`
}

// Reading is one normalized sensor observation for a batch. CoolerOn is nil
// for vessels without cooling capability.
type Reading struct {
	Temp     float64   `json:"temp"`    // °C
	Ambient  float64   `json:"ambient"` // °C
	HeaterOn bool      `json:"heater_on"`
	CoolerOn *bool     `json:"cooler_on,omitempty"`
	At       time.Time `json:"at"`
}

// Store persists batches, readings, models and decisions between cycles.
// Implemented by internal/store.
type Store interface {
	SaveBatch(b Batch) error
	ListBatches() ([]Batch, error)
	AppendReading(id string, r Reading) error
	History(id string) (thermal.History, error)
	LastReading(id string) (Reading, bool, error)
	SaveModel(id string, m thermal.Model) error
	LoadModel(id string) (thermal.Model, bool, error)
	SaveDecision(id string, a thermal.Action) error
	LoadDecision(id string) (thermal.Action, bool, error)
}

// ActuatorSwitch drives the heater and cooler relays for one vessel.
type ActuatorSwitch interface {
	Apply(ctx context.Context, heaterOn, coolerOn bool) error
	State() (heaterOn, coolerOn bool)
}

// DecisionPublisher is notified after every completed control cycle.
type DecisionPublisher interface {
	PublishDecision(id string, a thermal.Action)
}
