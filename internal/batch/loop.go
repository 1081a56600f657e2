package batch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fermlab/fermentd/internal/metrics"
	"github.com/fermlab/fermentd/internal/thermal"
)

// Runner drives one control cycle per interval for every registered batch:
// relearn from stored history, decide, apply the actuator command, persist
// and publish the decision.
type Runner struct {
	reg       *Registry
	interval  time.Duration
	switches  func(id string) ActuatorSwitch // nil result means no actuator wired
	publisher DecisionPublisher              // may be nil
	log       *slog.Logger
}

func NewRunner(reg *Registry, interval time.Duration, switches func(id string) ActuatorSwitch, publisher DecisionPublisher, log *slog.Logger) *Runner {
	if interval <= 0 {
		interval = time.Minute
	}
	if switches == nil {
		switches = func(string) ActuatorSwitch { return nil }
	}
	if log == nil {
		log = slog.Default()
	}
	return &Runner{
		reg:       reg,
		interval:  interval,
		switches:  switches,
		publisher: publisher,
		log:       log,
	}
}

func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.CycleAll(ctx)
		}
	}
}

// CycleAll runs one control cycle for every batch. Batches are independent;
// a failing cycle is logged and does not stop the others.
func (r *Runner) CycleAll(ctx context.Context) {
	for _, b := range r.reg.List() {
		if _, err := r.Cycle(ctx, b.ID); err != nil {
			r.log.Error("control cycle failed", "batch", b.ID, "err", err)
		}
	}
}

// Cycle runs one learn+decide cycle for a single batch.
func (r *Runner) Cycle(ctx context.Context, id string) (thermal.Action, error) {
	e, ok := r.reg.entry(id)
	if !ok {
		return thermal.Action{}, ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	res, err := r.reg.learnLocked(e)
	if err != nil && !thermal.IsRecoverable(err) {
		return thermal.Action{}, err
	}
	metrics.LearnsTotal.WithLabelValues(metrics.LearnOutcome(res.HasModel)).Inc()
	if res.HasModel {
		metrics.ModelCoefficient.WithLabelValues(id, "heating_rate").Set(res.HeatingRate)
		metrics.ModelCoefficient.WithLabelValues(id, "ambient_coeff").Set(res.AmbientCoeff)
		if res.HasCooling {
			metrics.ModelCoefficient.WithLabelValues(id, "cooling_rate").Set(res.CoolingRate)
		}
	}

	reading, ok, err := r.reg.store.LastReading(id)
	if err != nil {
		return thermal.Action{}, fmt.Errorf("load last reading: %w", err)
	}
	if !ok {
		// Nothing measured yet; nothing to decide on.
		return thermal.Action{}, nil
	}

	sw := r.switches(id)
	heaterOn, coolerOn := reading.HeaterOn, reading.CoolerOn != nil && *reading.CoolerOn
	if sw != nil {
		heaterOn, coolerOn = sw.State()
	}

	act := e.controller.Decide(reading.Temp, e.batch.TargetTemp, reading.Ambient, heaterOn, coolerOn)
	metrics.DecisionsTotal.WithLabelValues(string(act.Reason)).Inc()
	if act.PredictedTemp != nil {
		metrics.PredictedTemp.WithLabelValues(id).Set(*act.PredictedTemp)
	}

	if sw != nil && act.HeaterOn != nil && act.CoolerOn != nil {
		if err := sw.Apply(ctx, *act.HeaterOn, *act.CoolerOn); err != nil {
			return thermal.Action{}, fmt.Errorf("apply actuators: %w", err)
		}
	}

	if err := r.reg.store.SaveDecision(id, act); err != nil {
		return thermal.Action{}, fmt.Errorf("save decision: %w", err)
	}
	e.last = act
	e.hasLast = true

	if r.publisher != nil {
		r.publisher.PublishDecision(id, act)
	}
	return act, nil
}
