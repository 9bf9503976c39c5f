package mcmc

import "math"

// TemperatureSchedule gives the temperature for a step. The log-probability
// delta is divided by the temperature before the acceptance test: a high
// temperature accepts almost anything, a temperature near zero only
// improvements. Temperature 1 is plain Metropolis-Hastings.
type TemperatureSchedule interface {
	Temperature(step int) float64
}

// ConstantTemperature uses the same temperature for every step.
type ConstantTemperature float64

// Temperature implements TemperatureSchedule.
func (c ConstantTemperature) Temperature(int) float64 { return float64(c) }

// ExponentialSchedule cools from Max to Min over Steps steps and stays at
// Min afterwards. Combined with Samples.MostProbable it turns the sampler
// into a simulated annealing optimizer.
type ExponentialSchedule struct {
	Steps int
	Max   float64
	Min   float64
}

// Temperature implements TemperatureSchedule.
func (e ExponentialSchedule) Temperature(step int) float64 {
	if e.Steps <= 0 || step >= e.Steps {
		return e.Min
	}
	frac := float64(step) / float64(e.Steps)
	return e.Max * math.Pow(e.Min/e.Max, frac)
}
