/*
Package game
File: models.go
Description:
    Defines the data structures shared by the growth engine, the session layer and
    the wire protocol. Every entity has exactly one canonical schema; the JSON tags
    here are what clients see, the YAML tags are what the config files use.

    No simulation logic lives here.
*/

package game

// Organ identifies one of the growing biomass pools.
type Organ string

const (
	OrganLeaf Organ = "leaf"
	OrganStem Organ = "stem"
	OrganRoot Organ = "root"
	OrganSeed Organ = "seed"
)

// Organs lists the organs in their canonical order.
var Organs = []Organ{OrganLeaf, OrganStem, OrganRoot, OrganSeed}

// Limit names the input that rationed growth during a tick.
type Limit string

const (
	LimitNone    Limit = "none"
	LimitCarbon  Limit = "carbon"
	LimitWater   Limit = "water"
	LimitNitrate Limit = "nitrate"
)

// Biomass holds the dry mass (grams) of each organ.
type Biomass struct {
	Leaf float64 `json:"leaf" yaml:"leaf"`
	Stem float64 `json:"stem" yaml:"stem"`
	Root float64 `json:"root" yaml:"root"`
	Seed float64 `json:"seed" yaml:"seed"`
}

// ResourcePool is a bounded store of water, nitrate or starch.
type ResourcePool struct {
	Level      float64 `json:"level"`       // Current amount (grams)
	Capacity   float64 `json:"capacity"`    // Upper bound, rescaled from biomass every tick
	IntakeRate float64 `json:"intake_rate"` // Amount accepted per second during the last tick
	DrainRate  float64 `json:"drain_rate"`  // Amount removed per second during the last tick

	PerBiomass  float64 `json:"-"` // Capacity per gram of total biomass
	MinCapacity float64 `json:"-"` // Capacity floor for a seedling with no biomass yet
}

// AllocationPlan is the raw split submitted by the player for one tick.
// Values may be negative or not sum to 100; see Normalize.
type AllocationPlan struct {
	LeafPercent   float64 `json:"leaf_percent"`
	StemPercent   float64 `json:"stem_percent"`
	RootPercent   float64 `json:"root_percent"`
	SeedPercent   float64 `json:"seed_percent"`
	StarchPercent float64 `json:"starch_percent"` // Negative = draw from the reserve
	Stomata       bool    `json:"stomata"`        // true = open
}

// NormalizedPlan is the only form of a plan the GrowthModel consumes.
type NormalizedPlan struct {
	Leaf   float64 `json:"leaf_percent"`
	Stem   float64 `json:"stem_percent"`
	Root   float64 `json:"root_percent"`
	Seed   float64 `json:"seed_percent"`
	Starch float64 `json:"starch_percent"` // Share routed to storage, >= 0

	// Drawdown is the requested starch mobilisation as a percentage of the
	// configured maximum. Non-zero only when the raw starch percent was negative.
	Drawdown float64 `json:"drawdown_percent"`
	Stomata  bool    `json:"stomata"`

	Clamped []Organ        `json:"clamped,omitempty"` // Organs whose negative share was zeroed
	Raw     AllocationPlan `json:"-"`
}

// Diagnostics collects conditions worth flagging that did not fail the tick.
type Diagnostics struct {
	Clamped      int      `json:"clamped"`                 // Negative values clamped to zero before commit
	FillWarnings []string `json:"fill_warnings,omitempty"` // Pools whose fill ratio left [0,1]
}

// GrowthReport is the rates report produced by one tick. Rates are flows
// (grams per second), not absolute amounts.
type GrowthReport struct {
	LeafRate     float64 `json:"leaf_rate"`
	StemRate     float64 `json:"stem_rate"`
	RootRate     float64 `json:"root_rate"`
	SeedRate     float64 `json:"seed_rate"`
	StarchRate   float64 `json:"starch_rate"`   // Surplus carbon stored per second
	StarchIntake float64 `json:"starch_intake"` // Starch mobilised per second

	SupplyRate float64 `json:"supply_rate"` // Photosynthetic carbon per second
	Limiting   Limit   `json:"limiting"`
	Rationing  float64 `json:"rationing"` // Realised fraction of organ demand, [0,1]

	Diagnostics Diagnostics `json:"diagnostics"`
}

// PlantState aggregates everything the GrowthModel advances.
type PlantState struct {
	Biomass Biomass      `json:"biomass"`
	Starch  ResourcePool `json:"starch"`
	Water   ResourcePool `json:"water"`
	Nitrate ResourcePool `json:"nitrate"`
	Elapsed float64      `json:"elapsed"` // Simulated seconds
	Ticks   int          `json:"ticks"`
	Rates   GrowthReport `json:"-"` // Last report, served next to the state
}

// Environment holds the ambient conditions used for one tick.
type Environment struct {
	Light         float64 `json:"light"`          // 0 = darkness, 1 = reference full sun
	WaterFactor   float64 `json:"water_factor"`   // Multiplier on root water uptake
	NitrateFactor float64 `json:"nitrate_factor"` // Multiplier on root nitrate uptake
	Weather       string  `json:"weather"`
	Daytime       bool    `json:"daytime"`
}

// ModelParams are the tuning constants of the growth model, loaded from YAML.
type ModelParams struct {
	PhotosynthesisRate    float64 `yaml:"photosynthesis_rate" json:"photosynthesis_rate"`         // Carbon per gram leaf per second at light 1
	LightHalfSaturation   float64 `yaml:"light_half_saturation" json:"light_half_saturation"`     // Light level giving half of the saturated rate
	MaxRelativeGrowth     float64 `yaml:"max_relative_growth" json:"max_relative_growth"`         // Sink capacity per gram biomass per second
	MinGrowthBiomass      float64 `yaml:"min_growth_biomass" json:"min_growth_biomass"`           // Biomass floor used for sink capacity
	MaxStarchMobilization float64 `yaml:"max_starch_mobilization" json:"max_starch_mobilization"` // Starch burned per second at a -100% drawdown

	WaterPerGrowth    float64 `yaml:"water_per_growth" json:"water_per_growth"`     // Water consumed per gram of growth
	NitratePerGrowth  float64 `yaml:"nitrate_per_growth" json:"nitrate_per_growth"` // Nitrate consumed per gram of growth
	TranspirationRate float64 `yaml:"transpiration_rate" json:"transpiration_rate"` // Water lost per gram leaf per second with open stomata

	WaterBaseUptake      float64 `yaml:"water_base_uptake" json:"water_base_uptake"`
	WaterUptakePerRoot   float64 `yaml:"water_uptake_per_root" json:"water_uptake_per_root"`
	NitrateBaseUptake    float64 `yaml:"nitrate_base_uptake" json:"nitrate_base_uptake"`
	NitrateUptakePerRoot float64 `yaml:"nitrate_uptake_per_root" json:"nitrate_uptake_per_root"`

	StarchPerBiomass  float64 `yaml:"starch_per_biomass" json:"starch_per_biomass"`
	WaterPerBiomass   float64 `yaml:"water_per_biomass" json:"water_per_biomass"`
	NitratePerBiomass float64 `yaml:"nitrate_per_biomass" json:"nitrate_per_biomass"`
	MinPoolCapacity   float64 `yaml:"min_pool_capacity" json:"min_pool_capacity"`
}

// InitialState seeds a fresh PlantState.
type InitialState struct {
	Biomass Biomass `yaml:"biomass" json:"biomass"`
	Starch  float64 `yaml:"starch" json:"starch"`
	Water   float64 `yaml:"water" json:"water"`
	Nitrate float64 `yaml:"nitrate" json:"nitrate"`
}

// WeatherState is one entry of the weather table.
type WeatherState struct {
	Name          string  `yaml:"name" json:"name"`
	LightFactor   float64 `yaml:"light_factor" json:"light_factor"`
	WaterFactor   float64 `yaml:"water_factor" json:"water_factor"`
	NitrateFactor float64 `yaml:"nitrate_factor" json:"nitrate_factor"`
	Weight        float64 `yaml:"weight" json:"weight"` // Relative likelihood
}

// EnvironmentParams configures the environment provider of a level.
type EnvironmentParams struct {
	Mode            string         `yaml:"mode" json:"mode"`                         // "constant" or "cycle"
	Light           float64        `yaml:"light" json:"light"`                       // Constant mode light level
	DayLength       float64        `yaml:"day_length" json:"day_length"`             // Seconds per day/night cycle
	PeakLight       float64        `yaml:"peak_light" json:"peak_light"`             // Light at solar noon
	WeatherInterval float64        `yaml:"weather_interval" json:"weather_interval"` // Seconds between weather changes
	Weather         []WeatherState `yaml:"weather" json:"weather"`
}

// Level is a named starting scenario.
type Level struct {
	Name        string            `yaml:"name" json:"name"`
	Description string            `yaml:"description" json:"description"`
	Initial     InitialState      `yaml:"initial" json:"initial"`
	Environment EnvironmentParams `yaml:"environment" json:"environment"`
}

// FindLevel looks a level up by name. An empty name selects the first level.
func FindLevel(levels []Level, name string) (Level, bool) {
	if len(levels) == 0 {
		return Level{}, false
	}
	if name == "" {
		return levels[0], true
	}
	for _, l := range levels {
		if l.Name == name {
			return l, true
		}
	}
	return Level{}, false
}
