package thermal

// Regime is an integer enum classifying one historical interval by which
// actuator (if any) was active during it.
type Regime int

const (
	RegimeIdle Regime = iota
	RegimeHeating
	RegimeCooling
	RegimeInvalid
)

func (r Regime) String() string {
	switch r {
	case RegimeIdle:
		return "idle"
	case RegimeHeating:
		return "heating"
	case RegimeCooling:
		return "cooling"
	default:
		return "invalid"
	}
}

// Model holds the learned thermal coefficients for one vessel.
// It is never partially valid: either HasModel is false and every other field
// is ignored, or HeatingRate and AmbientCoeff are both populated.
type Model struct {
	HeatingRate  float64 `json:"heating_rate"`  // °C/hour while the heater is on
	CoolingRate  float64 `json:"cooling_rate"`  // °C/hour while the cooler is on
	AmbientCoeff float64 `json:"ambient_coeff"` // heat exchange with the environment, per °C above ambient
	HasModel     bool    `json:"has_model"`
	HasCooling   bool    `json:"has_cooling"`
}

// History carries parallel sample series for one vessel. Times are in hours
// from an arbitrary origin and must be monotonically increasing. A nil Cooler
// slice means the vessel has no cooling capability.
type History struct {
	Temps   []float64 `json:"temps"`
	Times   []float64 `json:"times"`
	Heater  []bool    `json:"heater"`
	Cooler  []bool    `json:"cooler,omitempty"`
	Ambient []float64 `json:"ambient"`
}

// Validate checks the hard preconditions on a history: all series the same
// length, and at least 3 samples. A length mismatch is a contract violation;
// a short history is the recoverable ErrInsufficientData.
func (h History) Validate() error {
	n := len(h.Temps)
	if len(h.Times) != n || len(h.Heater) != n || len(h.Ambient) != n {
		return ErrLengthMismatch
	}
	if h.Cooler != nil && len(h.Cooler) != n {
		return ErrLengthMismatch
	}
	if n < 3 {
		return ErrInsufficientData
	}
	return nil
}

// regimeAt classifies the interval starting at sample i by the actuator
// states prevailing over it.
func (h History) regimeAt(i int) Regime {
	heater := h.Heater[i]
	cooler := h.Cooler != nil && h.Cooler[i]
	switch {
	case heater && cooler:
		return RegimeInvalid
	case heater:
		return RegimeHeating
	case cooler:
		return RegimeCooling
	default:
		return RegimeIdle
	}
}

// Reason explains a decision (or a learn outcome) to the caller.
type Reason string

const (
	ReasonNoModel              Reason = "no_model"
	ReasonAboveTargetNoCooling Reason = "above_target_no_cooling"
	ReasonHeatingToTarget      Reason = "heating_to_target"
	ReasonCoolingToTarget      Reason = "cooling_to_target"
	ReasonPreventingOvershoot  Reason = "preventing_overshoot"
	ReasonPreventingUndershoot Reason = "preventing_undershoot"
	ReasonMaintainingTarget    Reason = "maintaining_target"

	// Learn-side reasons.
	ReasonInsufficientData Reason = "insufficient_data"
	ReasonNoHeatingData    Reason = "no_heating_data"
)

// Action is the controller's output for one cycle. HeaterOn and CoolerOn are
// nil when no model exists; they are never both true.
type Action struct {
	HeaterOn      *bool   `json:"heater_on,omitempty"`
	CoolerOn      *bool   `json:"cooler_on,omitempty"`
	Reason        Reason  `json:"reason"`
	PredictedTemp *float64 `json:"predicted_temp,omitempty"`
	Cost          *float64 `json:"cost,omitempty"`
}
