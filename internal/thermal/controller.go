package thermal

import (
	"errors"
	"log/slog"
)

// Controller is the per-vessel facade over the learner, predictor and
// optimizer. It caches the learned model between cycles and encodes the
// degraded no-model and heater-only behaviors as reason-coded outcomes, so
// the calling control loop never needs exception paths for cold start.
//
// The controller provides no internal locking: each vessel is driven by a
// single cycle at a time, and independent vessels each own their own
// Controller.
type Controller struct {
	model    Model
	learner  *Learner
	settings Settings
	log      *slog.Logger
}

func NewController(log *slog.Logger, settings Settings) *Controller {
	if log == nil {
		log = slog.Default()
	}
	if settings.Step <= 0 {
		settings = DefaultSettings()
	}
	return &Controller{
		learner:  NewLearner(log),
		settings: settings,
		log:      log,
	}
}

// Model returns the cached model, e.g. for persistence between cycles.
func (c *Controller) Model() Model { return c.model }

// Restore installs a previously persisted model.
func (c *Controller) Restore(m Model) { c.model = m }

// Learn refits the model from fresh history. It is idempotent and safe to
// call every cycle. ErrInsufficientData is recoverable: the prior model (if
// any) is retained, and the result mirrors the failure. A length mismatch is
// a caller contract violation and also leaves the model untouched.
//
// A known-good coefficient is never dropped just because the current sample
// window lacked the matching actuator events: a relearn without cooling
// intervals keeps a previously learned cooling rate, and a window with no
// actuator activity at all keeps the whole prior model.
func (c *Controller) Learn(h History) (LearnResult, error) {
	res, err := c.learner.Fit(h)
	if err != nil {
		return res, err
	}
	if !res.HasModel {
		if c.model.HasModel {
			return res, nil
		}
		c.model = res.Model()
		return res, nil
	}

	m := res.Model()
	if !m.HasCooling && c.model.HasCooling && c.model.CoolingRate > 0 {
		m.HasCooling = true
		m.CoolingRate = c.model.CoolingRate
	}
	c.model = m
	return res, nil
}

// Decide picks the actuator command for this cycle. It never returns an
// error: no-model and no-cooling situations are normal reason-coded outcomes.
func (c *Controller) Decide(current, target, ambient float64, heaterOn, coolerOn bool) Action {
	choice, ok := Optimize(c.model, current, target, ambient, heaterOn, coolerOn, c.settings)
	if !ok {
		return Action{Reason: ReasonNoModel}
	}

	h, co := choice.HeaterOn, choice.CoolerOn
	predicted, cost := choice.PredictedTemp, choice.Cost
	return Action{
		HeaterOn:      &h,
		CoolerOn:      &co,
		Reason:        c.classify(choice, current, target),
		PredictedTemp: &predicted,
		Cost:          &cost,
	}
}

// classify derives the reason code from which candidate won. When the chosen
// action differs from the naive rule (heat below target, cool above target),
// the more specific preventing_* code wins.
func (c *Controller) classify(choice Choice, current, target float64) Reason {
	switch {
	case choice.HeaterOn:
		if current < target {
			return ReasonHeatingToTarget
		}
		return ReasonPreventingUndershoot
	case choice.CoolerOn:
		if current > target {
			return ReasonCoolingToTarget
		}
		return ReasonPreventingOvershoot
	default:
		switch {
		case current > target && !c.model.HasCooling:
			return ReasonAboveTargetNoCooling
		case current < target:
			return ReasonPreventingOvershoot
		case current > target:
			return ReasonPreventingUndershoot
		default:
			return ReasonMaintainingTarget
		}
	}
}

// IsRecoverable reports whether a learn error is the expected too-little-data
// case rather than a caller bug.
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrInsufficientData)
}
