package thermal

// MaxTempRate bounds the simulated rate of change to a physically plausible
// value (1 °F/hour expressed in Celsius) so a degenerate fit cannot produce
// runaway forecasts.
const MaxTempRate = 5.0 / 9.0

// Step is one horizon step's actuator request.
type Step struct {
	HeaterOn bool
	CoolerOn bool
}

// Predict simulates the vessel temperature forward from initial under the
// given action sequence and returns one predicted temperature per step. It is
// a pure function of its inputs.
//
// A step requesting both actuators returns ErrMutualExclusion: the optimizer
// never generates one, but the guard matters because Predict is also usable
// standalone for diagnostics. A cooling request on a model without cooling
// degrades to idle rather than erroring.
func Predict(initial, ambient float64, steps []Step, m Model, stepHours float64) ([]float64, error) {
	out := make([]float64, 0, len(steps))
	temp := initial
	for _, st := range steps {
		if st.HeaterOn && st.CoolerOn {
			return nil, ErrMutualExclusion
		}
		above := temp - ambient
		var rate float64
		switch {
		case st.HeaterOn:
			rate = m.HeatingRate - m.AmbientCoeff*above
		case st.CoolerOn && m.HasCooling:
			rate = -m.CoolingRate - m.AmbientCoeff*above
		default:
			rate = -m.AmbientCoeff * above
		}
		if rate > MaxTempRate {
			rate = MaxTempRate
		} else if rate < -MaxTempRate {
			rate = -MaxTempRate
		}
		temp += rate * stepHours
		out = append(out, temp)
	}
	return out, nil
}
