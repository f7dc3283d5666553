/*
Package game
File: mechanics.go
Description:
    The rate formulas of the growth model: photosynthetic supply, sink demand,
    transpiration and root uptake. All of them return absolute amounts for a
    tick of length dt; none of them touch state.
*/

package game

import "math"

// Supply computes the carbon fixed during dt.
// Light response saturates: rate(light) = light/(light+K) * (1+K), so the
// reference light of 1.0 yields exactly PhotosynthesisRate.
// Closed stomata stop gas exchange entirely.
func Supply(p ModelParams, leaf, light float64, stomata bool, dt float64) float64 {
	if !stomata || leaf <= 0 || light <= 0 {
		return 0
	}
	k := p.LightHalfSaturation
	response := light
	if k > 0 {
		response = light / (light + k) * (1 + k)
	}
	return p.PhotosynthesisRate * leaf * response * dt
}

// SinkCapacity is the most carbon the organs can incorporate during dt.
// Seedlings below MinGrowthBiomass are treated as having that much biomass.
func SinkCapacity(p ModelParams, totalBiomass, dt float64) float64 {
	return p.MaxRelativeGrowth * math.Max(totalBiomass, p.MinGrowthBiomass) * dt
}

// Mobilization is the starch a drawdown of the given percentage burns during dt.
func Mobilization(p ModelParams, drawdownPercent, dt float64) float64 {
	if drawdownPercent <= 0 {
		return 0
	}
	return drawdownPercent / 100 * p.MaxStarchMobilization * dt
}

// Transpiration is the water lost through open stomata during dt.
func Transpiration(p ModelParams, leaf, light float64, stomata bool, dt float64) float64 {
	if !stomata || leaf <= 0 || light <= 0 {
		return 0
	}
	return p.TranspirationRate * leaf * light * dt
}

// WaterUptake is the water the roots pull in during dt.
func WaterUptake(p ModelParams, root float64, env Environment, dt float64) float64 {
	return math.Max(0, (p.WaterBaseUptake+p.WaterUptakePerRoot*math.Max(root, 0))*env.WaterFactor*dt)
}

// NitrateUptake is the nitrate the roots pull in during dt.
func NitrateUptake(p ModelParams, root float64, env Environment, dt float64) float64 {
	return math.Max(0, (p.NitrateBaseUptake+p.NitrateUptakePerRoot*math.Max(root, 0))*env.NitrateFactor*dt)
}

// coverage returns available/needed capped at 1. Nothing needed means fully covered.
func coverage(available, needed float64) float64 {
	if needed <= 0 {
		return 1
	}
	if available <= 0 {
		return 0
	}
	return math.Min(1, available/needed)
}
