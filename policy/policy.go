// Package policy selects which of the three cast roles speaks next.
//
// Three interchangeable strategies are provided: round-robin, balanced and
// reactive (the default). Switching strategy is a pure value swap and never
// requires recreating the history; only the round-robin cursor resets.
package policy

import (
	"math/rand"

	"github.com/Kerastion/trioflow/analysis"
	"github.com/Kerastion/trioflow/types"
)

// Strategy names the selection behavior.
type Strategy string

const (
	StrategyRoundRobin Strategy = "round_robin"
	StrategyBalanced   Strategy = "balanced"
	StrategyReactive   Strategy = "reactive"
)

// Policy picks the next role from the latest metrics snapshot and history.
// Implementations hold at most trivial internal state (a cursor) and are
// owned by a single session loop.
type Policy interface {
	// Name returns the strategy tag.
	Name() Strategy
	// Next returns the role that should speak next.
	Next(snap *analysis.Snapshot, history types.History) types.Role
	// Reset clears any internal cursor state.
	Reset()
}

// New constructs the named strategy. rng is used for the reactive strategy's
// post-moderator coin flip; pass nil outside tests to seed freely.
func New(strategy Strategy, rng *rand.Rand) Policy {
	switch strategy {
	case StrategyRoundRobin:
		return NewRoundRobin()
	case StrategyBalanced:
		return NewBalanced()
	default:
		return NewReactive(rng)
	}
}
