package policy

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kerastion/trioflow/analysis"
	"github.com/Kerastion/trioflow/types"
)

func calmSnapshot() *analysis.Snapshot {
	return &analysis.Snapshot{
		Momentum:   0.5,
		TopicDrift: 0.2,
		Tension:    0.3,
	}
}

func utter(role types.Role, text string) types.Utterance {
	return types.Utterance{Role: role, Text: text}
}

func TestRoundRobin_CyclesFixedOrder(t *testing.T) {
	t.Parallel()

	p := NewRoundRobin()
	want := []types.Role{
		types.RoleModerator, types.RoleInitiator, types.RoleReactor,
		types.RoleModerator, types.RoleInitiator, types.RoleReactor,
	}
	for i, w := range want {
		assert.Equalf(t, w, p.Next(nil, nil), "step %d", i)
	}

	p.Reset()
	assert.Equal(t, types.RoleModerator, p.Next(nil, nil))
}

func TestBalanced_PicksFewestExcludingPrevious(t *testing.T) {
	t.Parallel()

	p := NewBalanced()
	history := types.History{
		utter(types.RoleModerator, "intro"),
		utter(types.RoleInitiator, "a"),
		utter(types.RoleReactor, "b"),
		utter(types.RoleInitiator, "c"),
	}
	// Counts: moderator 1, initiator 2, reactor 1. Initiator spoke last, so
	// the tie between moderator and reactor breaks by first-seen order.
	assert.Equal(t, types.RoleModerator, p.Next(calmSnapshot(), history))

	// Empty history: everyone at zero, first-seen order wins.
	assert.Equal(t, types.RoleModerator, p.Next(calmSnapshot(), nil))

	// Never repeats the immediately previous speaker.
	solo := types.History{utter(types.RoleModerator, "x")}
	assert.NotEqual(t, types.RoleModerator, p.Next(calmSnapshot(), solo))
}

func TestReactive_AlternatesWhenCalm(t *testing.T) {
	t.Parallel()

	p := NewReactive(rand.New(rand.NewSource(1)))
	snap := calmSnapshot()

	assert.Equal(t, types.RoleInitiator, p.Next(snap, nil))

	afterInit := types.History{utter(types.RoleInitiator, "joke")}
	assert.Equal(t, types.RoleReactor, p.Next(snap, afterInit))

	afterReactor := types.History{utter(types.RoleReactor, "rebuttal")}
	assert.Equal(t, types.RoleInitiator, p.Next(snap, afterReactor))
}

func TestReactive_InterventionThresholds(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		snap analysis.Snapshot
		want bool
	}{
		{"calm", analysis.Snapshot{Momentum: 0.5, TopicDrift: 0.5, Tension: 0.5}, false},
		{"drift at limit", analysis.Snapshot{Momentum: 0.5, TopicDrift: 0.85}, false},
		{"drift over limit", analysis.Snapshot{Momentum: 0.5, TopicDrift: 0.86}, true},
		{"tension over limit", analysis.Snapshot{Momentum: 0.5, Tension: 0.91}, true},
		{"momentum collapsed", analysis.Snapshot{Momentum: 0.19}, true},
		{"moderator silent too long", analysis.Snapshot{Momentum: 0.5, TurnsSinceModerator: 11}, true},
		{"moderator quiet but within bound", analysis.Snapshot{Momentum: 0.5, TurnsSinceModerator: 10}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ShouldModeratorIntervene(&tc.snap))
		})
	}
}

func TestReactive_ModeratorIntervenes(t *testing.T) {
	t.Parallel()

	p := NewReactive(rand.New(rand.NewSource(1)))
	snap := &analysis.Snapshot{Momentum: 0.5, TopicDrift: 0.95}
	history := types.History{utter(types.RoleInitiator, "way off topic")}
	assert.Equal(t, types.RoleModerator, p.Next(snap, history))
}

func TestReactive_RandomAfterModerator(t *testing.T) {
	t.Parallel()

	p := NewReactive(rand.New(rand.NewSource(42)))
	snap := calmSnapshot()
	history := types.History{utter(types.RoleModerator, "back on track")}

	seen := map[types.Role]bool{}
	for i := 0; i < 50; i++ {
		role := p.Next(snap, history)
		require.NotEqual(t, types.RoleModerator, role)
		seen[role] = true
	}
	// Both sides show up over enough draws.
	assert.True(t, seen[types.RoleInitiator])
	assert.True(t, seen[types.RoleReactor])
}

// Scenario: moderator intro, 35-char initiator joke, 15-char reactor
// rebuttal; no intervention and the initiator speaks next.
func TestReactive_CalmRefrigeratorChat(t *testing.T) {
	t.Parallel()

	e := analysis.NewEngine(nil)
	history := types.History{
		utter(types.RoleModerator, "lets talk refrigerators"),
		utter(types.RoleInitiator, "refrigerators hum because of pumps!"),
		utter(types.RoleReactor, "that hum though"),
	}
	snap := e.Analyze(history, "why refrigerators hum", 10, 20)

	require.False(t, ShouldModeratorIntervene(snap))

	p := NewReactive(rand.New(rand.NewSource(1)))
	assert.Equal(t, types.RoleInitiator, p.Next(snap, history))
}

func TestNew_StrategySwap(t *testing.T) {
	t.Parallel()

	assert.Equal(t, StrategyRoundRobin, New(StrategyRoundRobin, nil).Name())
	assert.Equal(t, StrategyBalanced, New(StrategyBalanced, nil).Name())
	assert.Equal(t, StrategyReactive, New(StrategyReactive, nil).Name())
	// Unknown tags fall back to the default.
	assert.Equal(t, StrategyReactive, New("bogus", nil).Name())
}
