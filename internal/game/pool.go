/*
Package game
File: pool.go
Description:
    ResourcePool bookkeeping. Pools never go negative and never exceed capacity;
    anything that would overflow is discarded (transpiration, excretion).
*/

package game

import "math"

// NewPool creates a pool with capacity derived from the given biomass.
func NewPool(level, perBiomass, minCapacity, biomass float64) ResourcePool {
	p := ResourcePool{PerBiomass: perBiomass, MinCapacity: minCapacity}
	p.RescaleCapacity(biomass)
	p.Add(level)
	return p
}

// Add increases the level, clamped to [0, Capacity].
// Returns the amount actually accepted.
func (p *ResourcePool) Add(amount float64) float64 {
	if amount <= 0 || math.IsNaN(amount) {
		return 0
	}
	room := p.Capacity - p.Level
	if room <= 0 {
		return 0
	}
	accepted := math.Min(amount, room)
	p.Level += accepted
	return accepted
}

// Drain removes up to amount from the pool and returns what was actually removed.
// A result smaller than requested signals a shortage to the caller.
func (p *ResourcePool) Drain(amount float64) float64 {
	if amount <= 0 || math.IsNaN(amount) || p.Level <= 0 {
		return 0
	}
	removed := math.Min(amount, p.Level)
	p.Level -= removed
	if p.Level < 0 {
		p.Level = 0
	}
	return removed
}

// RescaleCapacity recomputes capacity from total biomass. A level above the
// new capacity is clamped down.
func (p *ResourcePool) RescaleCapacity(biomass float64) {
	if biomass < 0 || math.IsNaN(biomass) {
		biomass = 0
	}
	p.Capacity = math.Max(p.PerBiomass*biomass, p.MinCapacity)
	if p.Level > p.Capacity {
		p.Level = p.Capacity
	}
	if p.Level < 0 {
		p.Level = 0
	}
}

// FillPercentage returns Level/Capacity. ok is false when the ratio falls
// outside [0,1] or the pool has no capacity; callers should treat that as the
// pool being momentarily over or under capacity, not as a failure.
func (p ResourcePool) FillPercentage() (ratio float64, ok bool) {
	if p.Capacity <= 0 {
		return 0, false
	}
	ratio = p.Level / p.Capacity
	return ratio, ratio >= 0 && ratio <= 1
}
