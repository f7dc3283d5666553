/*
Package game
File: environment.go
Description:
    Ambient conditions fed into the growth model: light, and multipliers on water
    and nitrate uptake. Providers are pure functions of simulated time (and a seed),
    so replaying the same ticks always sees the same weather.
*/

package game

import (
	"math"
	"math/rand/v2"
)

// EnvironmentProvider supplies the conditions for the tick starting at elapsed.
type EnvironmentProvider interface {
	Conditions(elapsed float64) Environment
}

// ConstantEnvironment always returns the same conditions.
type ConstantEnvironment struct {
	Env Environment
}

// Conditions implements EnvironmentProvider.
func (c ConstantEnvironment) Conditions(float64) Environment {
	return c.Env
}

// DayCycle models a sinusoidal day with a weather table that changes every
// WeatherInterval seconds. Nights are dark.
type DayCycle struct {
	params EnvironmentParams
	seed   uint64
}

// NewEnvironmentProvider builds the provider described by a level.
// Unknown or empty modes fall back to constant light.
func NewEnvironmentProvider(params EnvironmentParams, seed uint64) EnvironmentProvider {
	if params.Mode == "cycle" && params.DayLength > 0 {
		return &DayCycle{params: params, seed: seed}
	}
	light := params.Light
	if light < 0 {
		light = 0
	}
	return ConstantEnvironment{Env: Environment{
		Light:         light,
		WaterFactor:   1,
		NitrateFactor: 1,
		Weather:       "constant",
		Daytime:       light > 0,
	}}
}

// Conditions implements EnvironmentProvider.
func (d *DayCycle) Conditions(elapsed float64) Environment {
	phase := math.Mod(elapsed, d.params.DayLength) / d.params.DayLength
	sun := math.Sin(2 * math.Pi * phase)

	peak := d.params.PeakLight
	if peak <= 0 {
		peak = 1
	}

	weather := d.weatherAt(elapsed)
	return Environment{
		Light:         math.Max(0, sun) * peak * weather.LightFactor,
		WaterFactor:   weather.WaterFactor,
		NitrateFactor: weather.NitrateFactor,
		Weather:       weather.Name,
		Daytime:       sun > 0,
	}
}

// weatherAt picks the weather for the interval containing elapsed. The draw is
// seeded by (session seed, interval index) so it needs no stored state.
func (d *DayCycle) weatherAt(elapsed float64) WeatherState {
	fair := WeatherState{Name: "clear", LightFactor: 1, WaterFactor: 1, NitrateFactor: 1, Weight: 1}
	if len(d.params.Weather) == 0 {
		return fair
	}

	var totalWeight float64
	for _, w := range d.params.Weather {
		totalWeight += math.Max(0, w.Weight)
	}
	if totalWeight <= 0 {
		return fair
	}

	var interval uint64
	if d.params.WeatherInterval > 0 {
		interval = uint64(elapsed / d.params.WeatherInterval)
	}
	rng := rand.New(rand.NewPCG(d.seed, interval))
	pick := rng.Float64() * totalWeight

	for _, w := range d.params.Weather {
		pick -= math.Max(0, w.Weight)
		if pick < 0 {
			return w
		}
	}
	return d.params.Weather[len(d.params.Weather)-1]
}
