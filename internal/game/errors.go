/*
Package game
File: errors.go
Description: Errors returned by the growth model.
*/

package game

import "errors"

var (
	// ErrInvalidTick rejects a tick whose delta_t is not a positive finite number.
	ErrInvalidTick = errors.New("invalid tick: delta_t must be positive")

	// ErrMalformedAllocation rejects a payload that cannot be read as an
	// allocation at all. Out-of-range percentages are not malformed.
	ErrMalformedAllocation = errors.New("malformed allocation")
)
