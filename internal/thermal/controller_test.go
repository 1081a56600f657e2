package thermal

import (
	"math"
	"testing"
)

func newTestController(t *testing.T, opts ...func(*Controller)) *Controller {
	t.Helper()
	c := NewController(nil, DefaultSettings())
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func withModel(m Model) func(*Controller) {
	return func(c *Controller) { c.Restore(m) }
}

func TestDecideNoModel(t *testing.T) {
	c := newTestController(t)
	a := c.Decide(20, 20, 18, false, false)
	if a.Reason != ReasonNoModel {
		t.Errorf("Reason = %q, want %q", a.Reason, ReasonNoModel)
	}
	if a.HeaterOn != nil || a.CoolerOn != nil || a.PredictedTemp != nil || a.Cost != nil {
		t.Errorf("expected all optional fields nil, got %+v", a)
	}
}

func TestDecideCoolingToTarget(t *testing.T) {
	c := newTestController(t, withModel(newDualModel()))
	a := c.Decide(22, 20, 18, false, false)
	if a.HeaterOn == nil || a.CoolerOn == nil {
		t.Fatalf("expected populated action, got %+v", a)
	}
	if *a.HeaterOn || !*a.CoolerOn {
		t.Errorf("heater=%v cooler=%v, want cooler only", *a.HeaterOn, *a.CoolerOn)
	}
	if a.Reason != ReasonCoolingToTarget {
		t.Errorf("Reason = %q, want %q", a.Reason, ReasonCoolingToTarget)
	}
	if a.PredictedTemp == nil || a.Cost == nil {
		t.Errorf("expected forecast and cost, got %+v", a)
	}
}

func TestDecideHeatingToTarget(t *testing.T) {
	c := newTestController(t, withModel(newDualModel()))
	a := c.Decide(18.5, 20, 18, false, false)
	if !*a.HeaterOn || *a.CoolerOn {
		t.Errorf("heater=%v cooler=%v, want heater only", *a.HeaterOn, *a.CoolerOn)
	}
	if a.Reason != ReasonHeatingToTarget {
		t.Errorf("Reason = %q, want %q", a.Reason, ReasonHeatingToTarget)
	}
}

func TestDecideAboveTargetNoCooling(t *testing.T) {
	m := Model{HeatingRate: 1.0, AmbientCoeff: 0.1, HasModel: true}
	c := newTestController(t, withModel(m))
	a := c.Decide(22, 20, 18, false, false)
	if *a.HeaterOn || *a.CoolerOn {
		t.Errorf("heater=%v cooler=%v, want idle", *a.HeaterOn, *a.CoolerOn)
	}
	if a.Reason != ReasonAboveTargetNoCooling {
		t.Errorf("Reason = %q, want %q", a.Reason, ReasonAboveTargetNoCooling)
	}
}

func TestDecidePreventingOvershoot(t *testing.T) {
	m := Model{HeatingRate: 1.0, AmbientCoeff: 0.1, HasModel: true}
	c := newTestController(t, withModel(m))
	// Warm environment lifts the vessel past the target on its own; the
	// naive rule says heat, the look-ahead says don't.
	a := c.Decide(19.5, 20, 25, true, false)
	if *a.HeaterOn {
		t.Errorf("heater on below target despite imminent overshoot: %+v", a)
	}
	if a.Reason != ReasonPreventingOvershoot {
		t.Errorf("Reason = %q, want %q", a.Reason, ReasonPreventingOvershoot)
	}
}

func TestDecidePreventingUndershoot(t *testing.T) {
	m := Model{HeatingRate: 1.0, AmbientCoeff: 0.1, HasModel: true}
	c := newTestController(t, withModel(m))
	// Sitting at target in a very cold room: idling loses heat far too
	// fast, so the heater stays on even though the naive rule says idle.
	a := c.Decide(20, 20, 5, true, false)
	if !*a.HeaterOn {
		t.Errorf("expected heater on to prevent undershoot, got %+v", a)
	}
	if a.Reason != ReasonPreventingUndershoot {
		t.Errorf("Reason = %q, want %q", a.Reason, ReasonPreventingUndershoot)
	}
}

func TestDecideMaintainingTarget(t *testing.T) {
	c := newTestController(t, withModel(newDualModel()))
	a := c.Decide(20, 20, 20, false, false)
	if *a.HeaterOn || *a.CoolerOn {
		t.Errorf("heater=%v cooler=%v, want idle", *a.HeaterOn, *a.CoolerOn)
	}
	if a.Reason != ReasonMaintainingTarget {
		t.Errorf("Reason = %q, want %q", a.Reason, ReasonMaintainingTarget)
	}
}

func TestDecideNeverBothOn(t *testing.T) {
	c := newTestController(t, withModel(newDualModel()))
	for current := 10.0; current <= 30; current += 0.7 {
		for _, heaterOn := range []bool{false, true} {
			a := c.Decide(current, 20, 18, heaterOn, !heaterOn && current > 20)
			if a.HeaterOn != nil && a.CoolerOn != nil && *a.HeaterOn && *a.CoolerOn {
				t.Fatalf("both actuators on at current=%v", current)
			}
		}
	}
}

func TestLearnIdleOnlyThenNoModel(t *testing.T) {
	c := newTestController(t)
	h := History{}
	temp := 22.0
	for i := 0; i < 10; i++ {
		h.Temps = append(h.Temps, temp)
		h.Times = append(h.Times, float64(i)*5.0/9.0)
		h.Heater = append(h.Heater, false)
		h.Ambient = append(h.Ambient, 18)
		temp = 18 + (temp-18)*math.Exp(-0.2*5.0/9.0)
	}
	res, err := c.Learn(h)
	if err != nil {
		t.Fatalf("Learn() failed: %v", err)
	}
	if res.HasModel {
		t.Fatalf("expected no model from idle-only data, got %+v", res)
	}
	if a := c.Decide(20, 20, 18, false, false); a.Reason != ReasonNoModel {
		t.Errorf("Reason = %q, want %q", a.Reason, ReasonNoModel)
	}
}

func TestLearnInsufficientDataKeepsModel(t *testing.T) {
	prior := newDualModel()
	c := newTestController(t, withModel(prior))
	short := History{
		Temps:   []float64{20, 21},
		Times:   []float64{0, 1},
		Heater:  []bool{true, true},
		Ambient: []float64{18, 18},
	}
	res, err := c.Learn(short)
	if !IsRecoverable(err) {
		t.Fatalf("expected recoverable error, got %v", err)
	}
	if res.Success {
		t.Errorf("Success = true on insufficient data")
	}
	if c.Model() != prior {
		t.Errorf("model changed on insufficient data: %+v", c.Model())
	}
}

// A relearn window without cooling events must not discard the previously
// learned cooling rate.
func TestRelearnKeepsCoolingRate(t *testing.T) {
	c := newTestController(t, withModel(newDualModel()))
	res, err := c.Learn(newHeaterOnlyHistory())
	if err != nil {
		t.Fatalf("Learn() failed: %v", err)
	}
	if res.HasCooling {
		t.Fatalf("the heater-only window itself should not report cooling: %+v", res)
	}
	m := c.Model()
	if !m.HasCooling || m.CoolingRate != 1.2 {
		t.Errorf("cooling capability dropped on relearn: %+v", m)
	}
	// And the fresh heating fit did land.
	if !almostEqual(m.HeatingRate, 1.29, 1e-9) {
		t.Errorf("HeatingRate = %v, want 1.29", m.HeatingRate)
	}
}

// An all-idle window likewise keeps the whole prior model.
func TestRelearnIdleWindowKeepsModel(t *testing.T) {
	prior := newDualModel()
	c := newTestController(t, withModel(prior))
	h := History{
		Temps:   []float64{20.1, 19.9, 19.7, 19.5},
		Times:   []float64{0, 1, 2, 3},
		Heater:  []bool{false, false, false, false},
		Ambient: []float64{18, 18, 18, 18},
	}
	if _, err := c.Learn(h); err != nil {
		t.Fatalf("Learn() failed: %v", err)
	}
	if c.Model() != prior {
		t.Errorf("model changed on an idle-only window: %+v", c.Model())
	}
}

func TestLearnWithoutCoolerNeverCools(t *testing.T) {
	c := newTestController(t)
	res, err := c.Learn(newHeaterOnlyHistory())
	if err != nil {
		t.Fatalf("Learn() failed: %v", err)
	}
	if res.HasCooling {
		t.Fatalf("HasCooling = true without cooler history")
	}
	for current := 16.0; current <= 26; current += 0.5 {
		a := c.Decide(current, 20, 18, false, false)
		if a.CoolerOn != nil && *a.CoolerOn {
			t.Fatalf("cooler commanded on a heater-only vessel at current=%v", current)
		}
	}
}
