/*
Package game
File: growth.go
Description:
    The growth model turns a normalised allocation plan, the plant's pools and the
    ambient light into per-organ growth and starch exchange for one tick.

    Order of operations per tick:
    1. Rescale pool capacities from current biomass.
    2. Estimate photosynthetic supply (zero with closed stomata).
    3. Compute organ demand from sink capacity and the plan.
    4. Ration: realised growth = demand * min(carbon, water, nitrate coverage),
       where carbon coverage counts supply plus the whole starch reserve.
    5. Settle carbon: draw any shortfall (or requested drawdown) from starch,
       store any surplus when the plan does not ask for a drawdown.
    6. Consume water and nitrate, lose water to transpiration.
    7. Commit biomass and time, rescale capacities, take up water and nitrate.

    The model keeps no state of its own. Compute never mutates its input.
*/

package game

import (
	"fmt"
	"math"
)

// GrowthModel advances PlantStates. It is safe for concurrent use.
type GrowthModel struct {
	Params ModelParams
}

// NewGrowthModel creates a model with the given tuning constants.
func NewGrowthModel(params ModelParams) *GrowthModel {
	return &GrowthModel{Params: params}
}

// Compute runs one tick of length dt seconds and returns the advanced state
// together with the rates report. On error the returned state is the input.
func (m *GrowthModel) Compute(state PlantState, plan NormalizedPlan, env Environment, dt float64) (PlantState, GrowthReport, error) {
	if dt <= 0 || math.IsNaN(dt) || math.IsInf(dt, 0) {
		return state, state.Rates, fmt.Errorf("%w: got %v", ErrInvalidTick, dt)
	}

	p := m.Params
	next := state.Clone()
	report := GrowthReport{Limiting: LimitNone}

	// 1. Capacities follow biomass.
	total := next.TotalBiomass()
	next.rescalePools(total)

	light := env.Light
	if light < 0 || math.IsNaN(light) {
		light = 0
	}

	// 2. Supply.
	supply := Supply(p, next.Biomass.Leaf, light, plan.Stomata, dt)

	// 3. Demand. A drawdown lets the plant burn reserve on top of its sink capacity.
	organShare := plan.OrganShare()
	mobilize := Mobilization(p, plan.Drawdown, dt)
	demand := SinkCapacity(p, total, dt) * organShare / 100
	if organShare > 0 {
		demand += mobilize
	}

	// 4. Rationing. Ties resolve in favour of carbon, then water, then nitrate.
	ratio := 1.0
	carbon := coverage(supply+next.Starch.Level, demand)
	water := coverage(next.Water.Level, p.WaterPerGrowth*demand)
	nitrate := coverage(next.Nitrate.Level, p.NitratePerGrowth*demand)
	if carbon < ratio {
		ratio, report.Limiting = carbon, LimitCarbon
	}
	if water < ratio {
		ratio, report.Limiting = water, LimitWater
	}
	if nitrate < ratio {
		ratio, report.Limiting = nitrate, LimitNitrate
	}
	realized := demand * ratio

	// 5. Carbon settlement.
	shortfall := math.Max(realized-supply, 0)
	drained := next.Starch.Drain(math.Max(shortfall, mobilize))
	var stored float64
	if plan.Drawdown == 0 {
		stored = next.Starch.Add(supply + drained - realized)
	}

	// 6. Water and nitrate.
	waterOut := next.Water.Drain(p.WaterPerGrowth * realized)
	waterOut += next.Water.Drain(Transpiration(p, next.Biomass.Leaf, light, plan.Stomata, dt))
	nitrateOut := next.Nitrate.Drain(p.NitratePerGrowth * realized)

	// 7. Commit.
	grown := make(map[Organ]float64, len(Organs))
	if organShare > 0 {
		for _, o := range Organs {
			grown[o] = realized * plan.Share(o) / organShare
			next.Biomass.add(o, grown[o])
		}
	}
	report.Diagnostics.Clamped = next.Biomass.clamp()

	next.Elapsed += dt
	next.Ticks++
	next.rescalePools(next.TotalBiomass())

	waterIn := next.Water.Add(WaterUptake(p, next.Biomass.Root, env, dt))
	nitrateIn := next.Nitrate.Add(NitrateUptake(p, next.Biomass.Root, env, dt))

	next.Starch.IntakeRate, next.Starch.DrainRate = stored/dt, drained/dt
	next.Water.IntakeRate, next.Water.DrainRate = waterIn/dt, waterOut/dt
	next.Nitrate.IntakeRate, next.Nitrate.DrainRate = nitrateIn/dt, nitrateOut/dt

	report.LeafRate = grown[OrganLeaf] / dt
	report.StemRate = grown[OrganStem] / dt
	report.RootRate = grown[OrganRoot] / dt
	report.SeedRate = grown[OrganSeed] / dt
	report.StarchRate = stored / dt
	report.StarchIntake = drained / dt
	report.SupplyRate = supply / dt
	report.Rationing = ratio

	report.Diagnostics.FillWarnings = next.fillWarnings()

	next.Rates = report
	return next, report, nil
}

// fillWarnings names the pools whose fill ratio is outside [0,1].
func (s PlantState) fillWarnings() []string {
	var names []string
	pools := []struct {
		name string
		pool ResourcePool
	}{{"starch", s.Starch}, {"water", s.Water}, {"nitrate", s.Nitrate}}
	for _, p := range pools {
		if _, ok := p.pool.FillPercentage(); !ok {
			names = append(names, p.name)
		}
	}
	return names
}

func (s *PlantState) rescalePools(total float64) {
	s.Starch.RescaleCapacity(total)
	s.Water.RescaleCapacity(total)
	s.Nitrate.RescaleCapacity(total)
}
