/*
Package game
File: state.go
Description:
    Construction and copying of PlantState. There is no package-level "current
    plant": every session owns its own state and passes it in explicitly.
*/

package game

import (
	"slices"

	"gonum.org/v1/gonum/floats"
)

// NewPlantState builds a fresh plant from a level's initial conditions.
// Pool capacities are derived from the initial biomass.
func NewPlantState(initial InitialState, params ModelParams) PlantState {
	b := initial.Biomass
	b.clamp()
	total := b.Total()

	return PlantState{
		Biomass: b,
		Starch:  NewPool(initial.Starch, params.StarchPerBiomass, params.MinPoolCapacity, total),
		Water:   NewPool(initial.Water, params.WaterPerBiomass, params.MinPoolCapacity, total),
		Nitrate: NewPool(initial.Nitrate, params.NitratePerBiomass, params.MinPoolCapacity, total),
		Rates:   GrowthReport{Limiting: LimitNone},
	}
}

// Clone returns a deep copy safe to mutate independently.
func (s PlantState) Clone() PlantState {
	c := s
	c.Rates.Diagnostics.FillWarnings = slices.Clone(s.Rates.Diagnostics.FillWarnings)
	return c
}

// TotalBiomass sums all organs.
func (s PlantState) TotalBiomass() float64 {
	return s.Biomass.Total()
}

// Total sums all organs.
func (b Biomass) Total() float64 {
	return floats.Sum([]float64{b.Leaf, b.Stem, b.Root, b.Seed})
}

// Get returns the biomass of one organ.
func (b Biomass) Get(o Organ) float64 {
	switch o {
	case OrganLeaf:
		return b.Leaf
	case OrganStem:
		return b.Stem
	case OrganRoot:
		return b.Root
	case OrganSeed:
		return b.Seed
	}
	return 0
}

func (b *Biomass) add(o Organ, amount float64) {
	switch o {
	case OrganLeaf:
		b.Leaf += amount
	case OrganStem:
		b.Stem += amount
	case OrganRoot:
		b.Root += amount
	case OrganSeed:
		b.Seed += amount
	}
}

// clamp zeroes negative organs and returns how many were touched.
func (b *Biomass) clamp() int {
	n := 0
	for _, v := range []*float64{&b.Leaf, &b.Stem, &b.Root, &b.Seed} {
		if *v < 0 {
			*v = 0
			n++
		}
	}
	return n
}
