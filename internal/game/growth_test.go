package game

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"
)

func testParams() ModelParams {
	return ModelParams{
		PhotosynthesisRate:    0.0005,
		LightHalfSaturation:   0.5,
		MaxRelativeGrowth:     0.0002,
		MinGrowthBiomass:      0.05,
		MaxStarchMobilization: 0.0005,
		WaterPerGrowth:        2,
		NitratePerGrowth:      0.2,
		TranspirationRate:     0.0002,
		WaterBaseUptake:       0.0005,
		WaterUptakePerRoot:    0.01,
		NitrateBaseUptake:     0.0001,
		NitrateUptakePerRoot:  0.002,
		StarchPerBiomass:      10,
		WaterPerBiomass:       5,
		NitratePerBiomass:     5,
		MinPoolCapacity:       0.5,
	}
}

// seedling is the reference starting plant: 1 g leaf, empty starch, full water and nitrate.
func seedling() PlantState {
	return NewPlantState(InitialState{
		Biomass: Biomass{Leaf: 1},
		Water:   5,
		Nitrate: 5,
	}, testParams())
}

func sunny() Environment {
	return Environment{Light: 1, WaterFactor: 1, NitrateFactor: 1, Weather: "constant", Daytime: true}
}

func mustNormalize(t *testing.T, raw AllocationPlan) NormalizedPlan {
	t.Helper()
	plan, err := Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize(%+v): %v", raw, err)
	}
	return plan
}

func TestSeedlingStartingPools(t *testing.T) {
	s := seedling()
	if s.Starch.Capacity != 10 || s.Water.Capacity != 5 || s.Nitrate.Capacity != 5 {
		t.Errorf("capacities = %v/%v/%v, want 10/5/5", s.Starch.Capacity, s.Water.Capacity, s.Nitrate.Capacity)
	}
	if s.Water.Level != 5 || s.Nitrate.Level != 5 || s.Starch.Level != 0 {
		t.Errorf("levels = %v/%v/%v, want 0/5/5", s.Starch.Level, s.Water.Level, s.Nitrate.Level)
	}
}

func TestComputeLeafGrowthStoresSurplus(t *testing.T) {
	model := NewGrowthModel(testParams())
	plan := mustNormalize(t, AllocationPlan{LeafPercent: 100, Stomata: true})

	next, report, err := model.Compute(seedling(), plan, sunny(), 60)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}

	// supply = 0.0005 * 1 * 1 * 60 = 0.03, sink = 0.0002 * 1 * 60 = 0.012
	if math.Abs(report.LeafRate-0.012/60) > 1e-12 {
		t.Errorf("leaf rate = %v, want %v", report.LeafRate, 0.012/60)
	}
	if report.StemRate != 0 || report.RootRate != 0 || report.SeedRate != 0 {
		t.Errorf("non-leaf rates should be 0, got %+v", report)
	}
	if math.Abs(report.StarchRate-0.018/60) > 1e-12 {
		t.Errorf("starch rate = %v, want surplus %v", report.StarchRate, 0.018/60)
	}
	if math.Abs(next.Starch.Level-0.018) > 1e-12 {
		t.Errorf("starch level = %v, want 0.018", next.Starch.Level)
	}
	if report.Limiting != LimitNone || report.Rationing != 1 {
		t.Errorf("unexpected rationing %v (%s)", report.Rationing, report.Limiting)
	}
	if next.Elapsed != 60 || next.Ticks != 1 {
		t.Errorf("elapsed = %v ticks = %v", next.Elapsed, next.Ticks)
	}
	if next.Rates.LeafRate != report.LeafRate {
		t.Error("state should expose the last report")
	}
}

func TestComputeClosedStomataEmptyStarch(t *testing.T) {
	model := NewGrowthModel(testParams())
	plan := mustNormalize(t, AllocationPlan{LeafPercent: 25, StemPercent: 25, RootPercent: 25, SeedPercent: 25, Stomata: false})

	next, report, err := model.Compute(seedling(), plan, sunny(), 60)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if report.LeafRate != 0 || report.StemRate != 0 || report.RootRate != 0 || report.SeedRate != 0 {
		t.Errorf("all growth should be 0, got %+v", report)
	}
	if report.SupplyRate != 0 {
		t.Errorf("closed stomata should fix no carbon, got %v", report.SupplyRate)
	}
	if report.Limiting != LimitCarbon {
		t.Errorf("limiting = %s, want carbon", report.Limiting)
	}
	if next.Elapsed != 60 {
		t.Errorf("elapsed = %v, want 60", next.Elapsed)
	}
}

func TestComputeClosedStomataUsesStarch(t *testing.T) {
	model := NewGrowthModel(testParams())
	state := seedling()
	state.Starch.Level = 1
	plan := mustNormalize(t, AllocationPlan{StemPercent: 100})

	next, report, err := model.Compute(state, plan, sunny(), 60)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(report.StemRate-0.012/60) > 1e-12 {
		t.Errorf("stem rate = %v, want full sink %v", report.StemRate, 0.012/60)
	}
	if math.Abs(next.Starch.Level-(1-0.012)) > 1e-12 {
		t.Errorf("starch = %v, want %v", next.Starch.Level, 1-0.012)
	}
	if math.Abs(report.StarchIntake-0.012/60) > 1e-12 {
		t.Errorf("starch intake = %v", report.StarchIntake)
	}
	if next.Water.Level > next.Water.Capacity {
		t.Errorf("water over capacity: %v > %v", next.Water.Level, next.Water.Capacity)
	}
}

func TestComputeShortfallRationsUniformly(t *testing.T) {
	model := NewGrowthModel(testParams())
	state := seedling()
	state.Starch.Level = 0.002
	plan := mustNormalize(t, AllocationPlan{LeafPercent: 50, RootPercent: 50})

	// Dark: no supply, demand 0.012, reserve 0.002.
	dark := sunny()
	dark.Light = 0
	next, report, err := model.Compute(state, plan, dark, 60)
	if err != nil {
		t.Fatal(err)
	}
	wantRatio := 0.002 / 0.012
	if math.Abs(report.Rationing-wantRatio) > 1e-9 {
		t.Errorf("rationing = %v, want %v", report.Rationing, wantRatio)
	}
	if math.Abs(report.LeafRate-report.RootRate) > 1e-15 {
		t.Errorf("rationing should be uniform: leaf %v root %v", report.LeafRate, report.RootRate)
	}
	if next.Starch.Level > 1e-12 {
		t.Errorf("reserve should be exhausted, got %v", next.Starch.Level)
	}
}

func TestComputeRejectsNonPositiveDelta(t *testing.T) {
	model := NewGrowthModel(testParams())
	plan := mustNormalize(t, AllocationPlan{LeafPercent: 100, Stomata: true})
	state := seedling()

	for _, dt := range []float64{-5, 0, math.NaN(), math.Inf(1)} {
		next, _, err := model.Compute(state, plan, sunny(), dt)
		if !errors.Is(err, ErrInvalidTick) {
			t.Errorf("dt=%v: err = %v, want ErrInvalidTick", dt, err)
		}
		if next.Biomass != state.Biomass || next.Starch != state.Starch || next.Elapsed != state.Elapsed || next.Ticks != state.Ticks {
			t.Errorf("dt=%v: state changed on rejected tick", dt)
		}
	}
}

func TestComputeWaterLimited(t *testing.T) {
	model := NewGrowthModel(testParams())
	state := seedling()
	state.Water.Level = 0
	plan := mustNormalize(t, AllocationPlan{RootPercent: 100, Stomata: true})

	next, report, err := model.Compute(state, plan, sunny(), 60)
	if err != nil {
		t.Fatal(err)
	}
	if report.RootRate != 0 {
		t.Errorf("root rate = %v, want 0 without water", report.RootRate)
	}
	if report.Limiting != LimitWater {
		t.Errorf("limiting = %s, want water", report.Limiting)
	}
	if next.Water.Level < 0 {
		t.Errorf("water went negative: %v", next.Water.Level)
	}
	// Everything fixed this tick went to storage.
	if math.Abs(report.StarchRate-report.SupplyRate) > 1e-12 {
		t.Errorf("starch rate %v should equal supply %v", report.StarchRate, report.SupplyRate)
	}
}

func TestComputeNitrateLimited(t *testing.T) {
	model := NewGrowthModel(testParams())
	state := seedling()
	state.Nitrate.Level = 0.0012 // covers half of 0.2 * 0.012
	plan := mustNormalize(t, AllocationPlan{LeafPercent: 100, Stomata: true})

	_, report, err := model.Compute(state, plan, sunny(), 60)
	if err != nil {
		t.Fatal(err)
	}
	if report.Limiting != LimitNitrate {
		t.Errorf("limiting = %s, want nitrate", report.Limiting)
	}
	if math.Abs(report.Rationing-0.5) > 1e-9 {
		t.Errorf("rationing = %v, want 0.5", report.Rationing)
	}
}

func TestComputeDrawdownBurnsReserve(t *testing.T) {
	model := NewGrowthModel(testParams())
	state := seedling()
	state.Starch.Level = 5
	plan := mustNormalize(t, AllocationPlan{LeafPercent: 100, StarchPercent: -100, Stomata: true})

	next, report, err := model.Compute(state, plan, sunny(), 60)
	if err != nil {
		t.Fatal(err)
	}
	// Mobilisation 0.0005 * 60 = 0.03 on top of the 0.012 sink.
	if math.Abs(report.LeafRate-0.042/60) > 1e-12 {
		t.Errorf("leaf rate = %v, want %v", report.LeafRate, 0.042/60)
	}
	if math.Abs(next.Starch.Level-(5-0.03)) > 1e-12 {
		t.Errorf("starch = %v, want %v", next.Starch.Level, 5-0.03)
	}
	if report.StarchRate != 0 {
		t.Errorf("drawdown should store nothing, got %v", report.StarchRate)
	}
}

func TestComputeSurplusBoundedByCapacity(t *testing.T) {
	model := NewGrowthModel(testParams())
	state := seedling()
	state.Starch.Level = 9.999
	plan := mustNormalize(t, AllocationPlan{StarchPercent: 100, Stomata: true})

	next, report, err := model.Compute(state, plan, sunny(), 60)
	if err != nil {
		t.Fatal(err)
	}
	if next.Starch.Level > next.Starch.Capacity {
		t.Errorf("starch %v over capacity %v", next.Starch.Level, next.Starch.Capacity)
	}
	if math.Abs(report.StarchRate*60-0.001) > 1e-9 {
		t.Errorf("stored %v, want only the 0.001 of headroom", report.StarchRate*60)
	}
}

func TestComputeDoesNotMutateInput(t *testing.T) {
	model := NewGrowthModel(testParams())
	state := seedling()
	before := state.Clone()
	plan := mustNormalize(t, AllocationPlan{LeafPercent: 30, RootPercent: 70, Stomata: true})

	if _, _, err := model.Compute(state, plan, sunny(), 60); err != nil {
		t.Fatal(err)
	}
	if state.Biomass != before.Biomass || state.Starch != before.Starch || state.Elapsed != before.Elapsed {
		t.Error("Compute mutated its input state")
	}
}

func TestComputeHugeSplitStillGrows(t *testing.T) {
	model := NewGrowthModel(testParams())
	plan := mustNormalize(t, AllocationPlan{LeafPercent: 1e308, StemPercent: 1e308, Stomata: true})

	_, report, err := model.Compute(seedling(), plan, sunny(), 60)
	if err != nil {
		t.Fatal(err)
	}
	if report.LeafRate <= 0 || report.StemRate <= 0 {
		t.Errorf("leaf rate %v, stem rate %v, want both > 0", report.LeafRate, report.StemRate)
	}
	if math.Abs(report.LeafRate-report.StemRate) > 1e-15 {
		t.Errorf("equal shares grew unequally: %v vs %v", report.LeafRate, report.StemRate)
	}
}

func TestComputeInvariantsUnderAdversarialPlans(t *testing.T) {
	model := NewGrowthModel(testParams())
	rng := rand.New(rand.NewPCG(42, 7))
	state := seedling()

	for tick := 0; tick < 2000; tick++ {
		raw := AllocationPlan{
			LeafPercent:   rng.Float64()*400 - 200,
			StemPercent:   rng.Float64()*400 - 200,
			RootPercent:   rng.Float64()*400 - 200,
			SeedPercent:   rng.Float64()*400 - 200,
			StarchPercent: rng.Float64()*400 - 200,
			Stomata:       rng.IntN(3) > 0,
		}
		plan := mustNormalize(t, raw)
		env := Environment{Light: rng.Float64() * 1.5, WaterFactor: rng.Float64(), NitrateFactor: rng.Float64()}
		dt := rng.Float64()*120 + 0.01

		prevTotal := state.TotalBiomass()
		prevElapsed := state.Elapsed

		next, report, err := model.Compute(state, plan, env, dt)
		if err != nil {
			t.Fatalf("tick %d: %v", tick, err)
		}

		for _, o := range Organs {
			if next.Biomass.Get(o) < 0 {
				t.Fatalf("tick %d: %s biomass negative", tick, o)
			}
		}
		for name, pool := range map[string]ResourcePool{"starch": next.Starch, "water": next.Water, "nitrate": next.Nitrate} {
			if pool.Level < 0 || pool.Level > pool.Capacity+1e-12 {
				t.Fatalf("tick %d: %s level %v outside [0, %v]", tick, name, pool.Level, pool.Capacity)
			}
		}
		if next.TotalBiomass() < prevTotal {
			t.Fatalf("tick %d: biomass decreased %v -> %v", tick, prevTotal, next.TotalBiomass())
		}
		if math.Abs(next.Elapsed-(prevElapsed+dt)) > 1e-9 {
			t.Fatalf("tick %d: elapsed %v, want %v", tick, next.Elapsed, prevElapsed+dt)
		}
		if report.Rationing < 0 || report.Rationing > 1 {
			t.Fatalf("tick %d: rationing %v", tick, report.Rationing)
		}
		if report.Diagnostics.Clamped != 0 {
			t.Fatalf("tick %d: clamped %d values", tick, report.Diagnostics.Clamped)
		}
		state = next
	}
}

func TestSupplyLightResponse(t *testing.T) {
	p := testParams()
	if got := Supply(p, 1, 1, true, 1); math.Abs(got-p.PhotosynthesisRate) > 1e-15 {
		t.Errorf("reference light supply = %v, want %v", got, p.PhotosynthesisRate)
	}
	low, high := Supply(p, 1, 0.5, true, 1), Supply(p, 1, 2, true, 1)
	if !(low < p.PhotosynthesisRate && high > p.PhotosynthesisRate) {
		t.Errorf("supply should rise with light: low %v high %v", low, high)
	}
	if high >= 2*p.PhotosynthesisRate {
		t.Errorf("supply should saturate, got %v at light 2", high)
	}
	if got := Supply(p, 1, 1, false, 60); got != 0 {
		t.Errorf("closed stomata supply = %v", got)
	}
}
