package policy

import (
	"math/rand"
	"time"

	"github.com/Kerastion/trioflow/analysis"
	"github.com/Kerastion/trioflow/types"
)

// Reactive moderator-intervention thresholds. Deliberately stricter than the
// analyzer's forecast thresholds so the moderator does not over-trigger; the
// forecast is advisory and the two sets must stay independent.
const (
	interveneDrift      = 0.85
	interveneTension    = 0.9
	interveneMomentum   = 0.2
	interveneQuietTurns = 10
)

// RoundRobin cycles through the fixed order (moderator, initiator, reactor),
// ignoring metrics entirely.
type RoundRobin struct {
	cursor int
}

// NewRoundRobin creates the cyclic strategy.
func NewRoundRobin() *RoundRobin { return &RoundRobin{} }

func (r *RoundRobin) Name() Strategy { return StrategyRoundRobin }

func (r *RoundRobin) Next(_ *analysis.Snapshot, _ types.History) types.Role {
	order := types.AllRoles()
	role := order[r.cursor%len(order)]
	r.cursor++
	return role
}

// Reset rewinds the cursor to the start of the cycle.
func (r *RoundRobin) Reset() { r.cursor = 0 }

// Balanced picks the role with the fewest utterances so far among roles
// other than the immediately previous speaker, so nobody speaks twice in a
// row. Ties break by the fixed first-seen order.
type Balanced struct{}

// NewBalanced creates the fewest-utterances strategy.
func NewBalanced() *Balanced { return &Balanced{} }

func (b *Balanced) Name() Strategy { return StrategyBalanced }

func (b *Balanced) Next(_ *analysis.Snapshot, history types.History) types.Role {
	var prev types.Role
	if last, ok := history.Last(); ok {
		prev = last.Role
	}

	var pick types.Role
	best := -1
	for _, role := range types.AllRoles() {
		if role == prev {
			continue
		}
		c := history.CountByRole(role)
		if best < 0 || c < best {
			best = c
			pick = role
		}
	}
	return pick
}

func (b *Balanced) Reset() {}

// Reactive is the default strategy: the moderator intervenes only when the
// conversation has clearly derailed, otherwise the initiator and reactor
// alternate. After a moderator turn it picks uniformly at random between the
// two.
type Reactive struct {
	rng *rand.Rand
}

// NewReactive creates the reactive strategy. rng may be nil, in which case a
// time-seeded source is used; tests inject a fixed seed.
func NewReactive(rng *rand.Rand) *Reactive {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Reactive{rng: rng}
}

func (r *Reactive) Name() Strategy { return StrategyReactive }

// ShouldModeratorIntervene applies the strict intervention thresholds.
func ShouldModeratorIntervene(snap *analysis.Snapshot) bool {
	return snap.TopicDrift > interveneDrift ||
		snap.Tension > interveneTension ||
		snap.Momentum < interveneMomentum ||
		snap.TurnsSinceModerator > interveneQuietTurns
}

func (r *Reactive) Next(snap *analysis.Snapshot, history types.History) types.Role {
	if ShouldModeratorIntervene(snap) {
		return types.RoleModerator
	}

	last, ok := history.Last()
	if !ok {
		return types.RoleInitiator
	}
	switch last.Role {
	case types.RoleInitiator:
		return types.RoleReactor
	case types.RoleReactor:
		return types.RoleInitiator
	default:
		if r.rng.Intn(2) == 0 {
			return types.RoleInitiator
		}
		return types.RoleReactor
	}
}

func (r *Reactive) Reset() {}
