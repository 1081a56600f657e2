package thermal

import (
	"errors"
	"log/slog"
	"sort"
)

const (
	// DefaultAmbientCoeff is used when a history contains no usable idle
	// intervals to solve for the exchange coefficient.
	DefaultAmbientCoeff = 0.1
	// DefaultHeatingRate is used in the rare case where a history contains
	// cooling intervals but no heating intervals.
	DefaultHeatingRate = 1.0
)

// LearnResult is the structured outcome of one fit. AmbientCoeff is populated
// even when HasModel is false, so an idle-only history still yields a usable
// exchange estimate for diagnostics.
type LearnResult struct {
	Success      bool    `json:"success"`
	Reason       Reason  `json:"reason,omitempty"`
	HeatingRate  float64 `json:"heating_rate,omitempty"`
	CoolingRate  float64 `json:"cooling_rate,omitempty"`
	AmbientCoeff float64 `json:"ambient_coeff,omitempty"`
	HasModel     bool    `json:"has_model"`
	HasCooling   bool    `json:"has_cooling"`
}

// Model converts the fitted coefficients into a Model value.
func (r LearnResult) Model() Model {
	return Model{
		HeatingRate:  r.HeatingRate,
		CoolingRate:  r.CoolingRate,
		AmbientCoeff: r.AmbientCoeff,
		HasModel:     r.HasModel,
		HasCooling:   r.HasCooling,
	}
}

// Learner fits thermal coefficients from historical samples.
type Learner struct {
	log *slog.Logger
}

func NewLearner(log *slog.Logger) *Learner {
	if log == nil {
		log = slog.Default()
	}
	return &Learner{log: log}
}

// samplePair is one adjacent-sample interval, pre-classified by regime.
type samplePair struct {
	rate         float64 // observed °C/hour over the interval
	aboveAmbient float64 // mean temp minus mean ambient over the interval
	regime       Regime
}

// Fit estimates heating rate, cooling rate and ambient exchange coefficient
// from one vessel's history. The per-regime solutions use the median rather
// than the mean so the transient mixing right at an actuator transition does
// not skew the fit. Intervals with both actuators recorded on predate the
// mutual-exclusion guarantee: they are logged and excluded from every
// coefficient.
func (l *Learner) Fit(h History) (LearnResult, error) {
	if err := h.Validate(); err != nil {
		if errors.Is(err, ErrInsufficientData) {
			return LearnResult{Reason: ReasonInsufficientData}, err
		}
		return LearnResult{}, err
	}

	pairs := make([]samplePair, 0, len(h.Temps)-1)
	for i := 0; i < len(h.Temps)-1; i++ {
		dt := h.Times[i+1] - h.Times[i]
		if dt <= 0 {
			// Non-increasing timestamps cannot yield a rate.
			continue
		}
		regime := h.regimeAt(i)
		if regime == RegimeInvalid {
			l.log.Warn("discarding interval with both actuators on", "index", i)
			continue
		}
		tempAvg := (h.Temps[i] + h.Temps[i+1]) / 2
		ambAvg := (h.Ambient[i] + h.Ambient[i+1]) / 2
		pairs = append(pairs, samplePair{
			rate:         (h.Temps[i+1] - h.Temps[i]) / dt,
			aboveAmbient: tempAvg - ambAvg,
			regime:       regime,
		})
	}

	// Idle intervals: rate = -ambientCoeff * aboveAmbient. Intervals at
	// ambient are degenerate and excluded.
	var idleSolutions []float64
	for _, p := range pairs {
		if p.regime == RegimeIdle && p.aboveAmbient != 0 {
			idleSolutions = append(idleSolutions, -p.rate/p.aboveAmbient)
		}
	}
	ambientCoeff := DefaultAmbientCoeff
	if len(idleSolutions) > 0 {
		ambientCoeff = median(idleSolutions)
	}

	// Heating intervals: heatingRate = rate + ambientCoeff * aboveAmbient.
	// Non-positive solutions are physically inconsistent and discarded, so a
	// fitted model always carries a positive heating rate.
	var heatingSolutions []float64
	for _, p := range pairs {
		if p.regime != RegimeHeating {
			continue
		}
		if s := p.rate + ambientCoeff*p.aboveAmbient; s > 0 {
			heatingSolutions = append(heatingSolutions, s)
		}
	}

	// Cooling intervals: coolingRate = -rate - ambientCoeff * aboveAmbient.
	// Non-positive solutions are physically inconsistent and discarded.
	var coolingSolutions []float64
	if h.Cooler != nil {
		for _, p := range pairs {
			if p.regime != RegimeCooling {
				continue
			}
			if s := -p.rate - ambientCoeff*p.aboveAmbient; s > 0 {
				coolingSolutions = append(coolingSolutions, s)
			}
		}
	}

	res := LearnResult{AmbientCoeff: ambientCoeff}
	if len(coolingSolutions) > 0 {
		res.CoolingRate = median(coolingSolutions)
		res.HasCooling = true
	}

	switch {
	case len(heatingSolutions) > 0:
		res.HeatingRate = median(heatingSolutions)
		res.HasModel = true
	case res.HasCooling:
		res.HeatingRate = DefaultHeatingRate
		res.HasModel = true
	default:
		res.Reason = ReasonNoHeatingData
		return res, nil
	}

	res.Success = true
	return res, nil
}

func median(vals []float64) float64 {
	s := make([]float64, len(vals))
	copy(s, vals)
	sort.Float64s(s)
	mid := len(s) / 2
	if len(s)%2 == 0 {
		return (s[mid-1] + s[mid]) / 2
	}
	return s[mid]
}
