/*
Package game
File: allocation.go
Description:
    Two-phase handling of the player's allocation split: validate, then normalise.

    Negative organ shares are clamped to zero. A negative starch share is a request
    to draw from the reserve with magnitude |starch|; it takes no part in the split.
    Everything non-negative is rescaled to sum to 100.
*/

package game

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Validate reports whether the raw plan can be interpreted at all.
// Only non-finite numbers are rejected; range problems are Normalize's job.
func (p AllocationPlan) Validate() error {
	fields := []struct {
		name  string
		value float64
	}{
		{"leaf_percent", p.LeafPercent},
		{"stem_percent", p.StemPercent},
		{"root_percent", p.RootPercent},
		{"seed_percent", p.SeedPercent},
		{"starch_percent", p.StarchPercent},
	}
	for _, f := range fields {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return fmt.Errorf("%w: %s is not a finite number", ErrMalformedAllocation, f.name)
		}
	}
	return nil
}

// Normalize validates the raw plan and produces the form the GrowthModel uses.
// An all-zero split stores everything as starch.
func Normalize(raw AllocationPlan) (NormalizedPlan, error) {
	if err := raw.Validate(); err != nil {
		return NormalizedPlan{}, err
	}

	plan := NormalizedPlan{Stomata: raw.Stomata, Raw: raw}

	organs := []float64{raw.LeafPercent, raw.StemPercent, raw.RootPercent, raw.SeedPercent}
	for i, v := range organs {
		if v < 0 {
			organs[i] = 0
			plan.Clamped = append(plan.Clamped, Organs[i])
		}
	}

	starch := raw.StarchPercent
	if starch < 0 {
		plan.Drawdown = -starch
		starch = 0
	}

	shares := append(organs, starch)
	largest := floats.Max(shares)
	if largest <= 0 {
		// Nothing asked for growth, so there is nothing for a drawdown to fuel.
		plan.Starch = 100
		plan.Drawdown = 0
		return plan, nil
	}
	// Relative to the largest share first, so huge finite inputs cannot overflow the sum.
	for i := range shares {
		shares[i] /= largest
	}
	floats.Scale(100/floats.Sum(shares), shares)

	plan.Leaf, plan.Stem, plan.Root, plan.Seed, plan.Starch = shares[0], shares[1], shares[2], shares[3], shares[4]
	return plan, nil
}

// OrganShare is the percentage of the split going to organs rather than storage.
func (n NormalizedPlan) OrganShare() float64 {
	return n.Leaf + n.Stem + n.Root + n.Seed
}

// Share returns the normalised percentage for one organ.
func (n NormalizedPlan) Share(o Organ) float64 {
	switch o {
	case OrganLeaf:
		return n.Leaf
	case OrganStem:
		return n.Stem
	case OrganRoot:
		return n.Root
	case OrganSeed:
		return n.Seed
	}
	return 0
}

// Plan converts back to the wire form. Normalising the result yields n again.
func (n NormalizedPlan) Plan() AllocationPlan {
	starch := n.Starch
	if n.Drawdown > 0 {
		starch = -n.Drawdown
	}
	return AllocationPlan{
		LeafPercent:   n.Leaf,
		StemPercent:   n.Stem,
		RootPercent:   n.Root,
		SeedPercent:   n.Seed,
		StarchPercent: starch,
		Stomata:       n.Stomata,
	}
}
