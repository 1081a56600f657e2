package ports

import (
	"github.com/fermlab/fermentd/internal/batch"
	"github.com/fermlab/fermentd/internal/thermal"
)

// BatchService is the control-plane port used by controllers (HTTP/MQTT/etc).
type BatchService interface {
	List() []batch.Batch
	Get(id string) (batch.Batch, bool)
	Create(name string, target float64) (batch.Batch, error)
	SetTarget(id string, target float64) error
	LastDecision(id string) (thermal.Action, bool)
	Learn(id string) (thermal.LearnResult, error)
}

// SampleSink receives sensor readings from device-facing adapters.
type SampleSink interface {
	Record(id string, r batch.Reading) error
}
