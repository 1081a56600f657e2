package main

import (
	"encoding/csv"
	"fmt"
	"os"

	"github.com/fermlab/fermentd/internal/thermal"
)

// TargetCommand changes the target temperature at a given iteration, so
// the resulting plot shows both pull-up and settling behavior.
type TargetCommand struct {
	IterationNumber int
	Value           float64
}

// plant is the simulated vessel. Its true coefficients are what the
// learner should converge toward.
type plant struct {
	heatingRate  float64
	coolingRate  float64
	ambientCoeff float64

	temp    float64
	ambient float64
}

func (p *plant) step(heaterOn, coolerOn bool, dtHours float64) {
	rate := -p.ambientCoeff * (p.temp - p.ambient)
	if heaterOn {
		rate += p.heatingRate
	}
	if coolerOn {
		rate -= p.coolingRate
	}
	p.temp += rate * dtHours
}

func SimulateVessel(iterations int, filename string, targetCommands []TargetCommand) error {
	p := &plant{
		heatingRate:  0.9,
		coolingRate:  1.1,
		ambientCoeff: 0.15,
		temp:         16.0,
		ambient:      14.0,
	}
	target := 20.0
	const stepHours = 0.25

	ctrl := thermal.NewController(nil, thermal.DefaultSettings())

	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{"Hour", "Temp", "Ambient", "Target", "Heater", "Cooler", "Reason"}); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	hist := thermal.History{Cooler: []bool{}}
	heaterOn, coolerOn := false, false

	for i := range iterations {
		for _, cmd := range targetCommands {
			if cmd.IterationNumber == i+1 {
				target = cmd.Value
				break
			}
		}

		hour := float64(i) * stepHours
		hist.Temps = append(hist.Temps, p.temp)
		hist.Times = append(hist.Times, hour)
		hist.Heater = append(hist.Heater, heaterOn)
		hist.Cooler = append(hist.Cooler, coolerOn)
		hist.Ambient = append(hist.Ambient, p.ambient)

		if _, err := ctrl.Learn(hist); err != nil && !thermal.IsRecoverable(err) {
			return fmt.Errorf("failed to learn: %v", err)
		}

		act := ctrl.Decide(p.temp, target, p.ambient, heaterOn, coolerOn)
		if act.HeaterOn != nil && act.CoolerOn != nil {
			heaterOn, coolerOn = *act.HeaterOn, *act.CoolerOn
		} else {
			// Bootstrap until enough history exists for a model.
			heaterOn, coolerOn = p.temp < target, false
		}

		if err := writer.Write([]string{
			fmt.Sprintf("%.2f", hour),
			fmt.Sprintf("%.3f", p.temp),
			fmt.Sprintf("%.2f", p.ambient),
			fmt.Sprintf("%.2f", target),
			fmt.Sprintf("%t", heaterOn),
			fmt.Sprintf("%t", coolerOn),
			string(act.Reason),
		}); err != nil {
			return fmt.Errorf("failed to write CSV record: %v", err)
		}

		p.step(heaterOn, coolerOn, stepHours)
	}

	return nil
}

func main() {
	commands := []TargetCommand{
		{
			IterationNumber: 120,
			Value:           18.0,
		},
	}
	if err := SimulateVessel(320, "fermentd.csv", commands); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
