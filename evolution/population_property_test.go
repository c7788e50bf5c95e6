package evolution

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/Kerastion/trioflow/types"
)

// The baseline must survive any sequence of experiments and prunes.
func TestProperty_BaselineNeverPruned(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		cfg := DefaultConfig()
		cfg.MaxVariants = rapid.IntRange(2, 6).Draw(rt, "maxVariants")
		cfg.MinSampleSize = rapid.IntRange(1, 4).Draw(rt, "minSampleSize")
		seed := rapid.Int64().Draw(rt, "seed")

		p := NewPopulation(types.RoleInitiator, cfg, rand.New(rand.NewSource(seed)), nil)
		baseline, err := p.RegisterBaseline(seedConfig())
		require.NoError(rt, err)

		steps := rapid.IntRange(1, 40).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			if rapid.Bool().Draw(rt, "prune") {
				p.PruneWorstVariant()
				continue
			}
			ids := make([]string, 0, p.Size())
			for _, v := range p.Variants() {
				ids = append(ids, v.ID)
			}
			p.RecordExperiment(ExperimentOutcome{
				VariantID: rapid.SampledFrom(ids).Draw(rt, "variant"),
				QualityMetrics: QualityMetrics{
					Overall: rapid.Float64Range(0, 1).Draw(rt, "overall"),
				},
			})
		}

		got, ok := p.Get(baseline.ID)
		require.True(rt, ok, "baseline must never be pruned")
		require.True(rt, got.IsBaseline)
	})
}

// Auto-improvement breeds children, but the population never exceeds
// MaxVariants no matter how the outcomes land.
func TestProperty_SizeNeverExceedsMaxVariants(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		cfg := DefaultConfig()
		cfg.MaxVariants = rapid.IntRange(1, 5).Draw(rt, "maxVariants")
		seed := rapid.Int64().Draw(rt, "seed")

		p := NewPopulation(types.RoleReactor, cfg, rand.New(rand.NewSource(seed)), nil)
		_, err := p.RegisterBaseline(seedConfig())
		require.NoError(rt, err)

		steps := rapid.IntRange(1, 60).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			variants := p.Variants()
			target := variants[rapid.IntRange(0, len(variants)-1).Draw(rt, "idx")]
			p.RecordExperiment(ExperimentOutcome{
				VariantID: target.ID,
				QualityMetrics: QualityMetrics{
					Overall: rapid.Float64Range(0, 1).Draw(rt, "overall"),
				},
			})
			require.LessOrEqual(rt, p.Size(), cfg.MaxVariants,
				"step %d exceeded the variant cap", i)
		}
	})
}

// With exploration forced on, an under-sampled active variant is always
// chosen ahead of fully sampled ones.
func TestProperty_ColdStartSelection(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		cfg := DefaultConfig()
		cfg.ExplorationRate = 1
		cfg.MaxVariants = 10
		cfg.MinSampleSize = rapid.IntRange(2, 6).Draw(rt, "minSampleSize")
		seed := rapid.Int64().Draw(rt, "seed")

		p := NewPopulation(types.RoleModerator, cfg, rand.New(rand.NewSource(seed)), nil)

		warmCount := rapid.IntRange(1, 5).Draw(rt, "warmCount")
		for i := 0; i < warmCount; i++ {
			v := newVariant(p.role, seedConfig(), KindManual)
			v.ExperimentCount = cfg.MinSampleSize + rapid.IntRange(0, 10).Draw(rt, "extra")
			v.Performance.AvgQualityScore = rapid.Float64Range(0, 1).Draw(rt, "score")
			p.insert(v)
		}
		cold := newVariant(p.role, seedConfig(), KindManual)
		cold.ExperimentCount = rapid.IntRange(0, cfg.MinSampleSize-1).Draw(rt, "coldCount")
		p.insert(cold)

		picked, err := p.SelectPrompt()
		require.NoError(rt, err)
		require.Less(rt, picked.ExperimentCount, cfg.MinSampleSize,
			"an under-sampled variant must win the exploration pick")
	})
}
