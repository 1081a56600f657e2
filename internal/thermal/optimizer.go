package thermal

import (
	"fmt"
	"time"
)

// Settings configure the look-ahead used to score candidate actions.
type Settings struct {
	Horizon         time.Duration // total simulated look-ahead
	Step            time.Duration // one control step
	OvershootWeight float64       // cost multiplier once a trajectory crosses the target the wrong way
	SwitchPenalty   float64       // flat cost for changing the running actuator state
}

func DefaultSettings() Settings {
	return Settings{
		Horizon:         4 * time.Hour,
		Step:            15 * time.Minute,
		OvershootWeight: 10,
		SwitchPenalty:   0.1,
	}
}

func (s Settings) steps() int {
	n := int(s.Horizon / s.Step)
	if n < 1 {
		n = 1
	}
	return n
}

// Choice is the optimizer's winning candidate.
type Choice struct {
	HeaterOn      bool
	CoolerOn      bool
	PredictedTemp float64 // end-of-horizon forecast under the chosen action
	Cost          float64
}

// Optimize scores each candidate immediate action over the horizon and
// returns the cheapest one. The second return value is false when the model
// has not been learned yet.
//
// Each candidate holds its action for the first step and idles for the
// remainder: the horizon only needs to reveal whether committing to an action
// now causes overshoot later, not to find a globally optimal schedule.
// Candidates are scored in the order idle, heat, cool with a strict
// comparison, so idle wins exact cost ties.
func Optimize(m Model, current, target, ambient float64, heaterOn, coolerOn bool, set Settings) (Choice, bool) {
	if !m.HasModel {
		return Choice{}, false
	}

	candidates := []Step{
		{},               // idle
		{HeaterOn: true}, // heat
	}
	if m.HasCooling {
		candidates = append(candidates, Step{CoolerOn: true})
	}

	n := set.steps()
	stepHours := set.Step.Hours()

	var best Choice
	have := false
	for _, cand := range candidates {
		steps := make([]Step, n)
		steps[0] = cand // remainder stays idle

		traj, err := Predict(current, ambient, steps, m, stepHours)
		if err != nil {
			// Candidate generation is mutually exclusive by construction.
			panic(fmt.Sprintf("optimizer produced invalid candidate: %v", err))
		}

		weight := 1.0
		for _, p := range traj {
			if crossesWrongWay(cand, p, target) {
				weight = set.OvershootWeight
				break
			}
		}
		cost := 0.0
		for _, p := range traj {
			d := p - target
			cost += weight * d * d
		}
		if cand.HeaterOn != heaterOn || cand.CoolerOn != coolerOn {
			cost += set.SwitchPenalty
		}

		if !have || cost < best.Cost {
			best = Choice{
				HeaterOn:      cand.HeaterOn,
				CoolerOn:      cand.CoolerOn,
				PredictedTemp: traj[len(traj)-1],
				Cost:          cost,
			}
			have = true
		}
	}
	return best, true
}

// crossesWrongWay reports whether a predicted temperature is past the target
// in the direction the candidate action pushes: above it while heating, below
// it while cooling. Idling has no wrong direction.
func crossesWrongWay(cand Step, predicted, target float64) bool {
	switch {
	case cand.HeaterOn:
		return predicted > target
	case cand.CoolerOn:
		return predicted < target
	default:
		return false
	}
}
