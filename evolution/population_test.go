package evolution

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kerastion/trioflow/types"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.MaxVariants = 20
	return cfg
}

func newTestPopulation(t *testing.T, cfg Config, seed int64) *Population {
	t.Helper()
	return NewPopulation(types.RoleInitiator, cfg, rand.New(rand.NewSource(seed)), nil)
}

func seedConfig() PromptConfig {
	return PromptConfig{
		SystemText:  "You open topics and keep energy high.",
		StyleText:   "Playful, concise.",
		Temperature: 0.7,
	}
}

// plant inserts a hand-built variant for scenario setup.
func plant(p *Population, score float64, experiments int, active bool) *PromptVariant {
	v := newVariant(p.role, seedConfig(), KindManual)
	v.Performance.AvgQualityScore = score
	v.ExperimentCount = experiments
	v.Performance.TotalUses = experiments
	v.IsActive = active
	p.insert(v)
	return v
}

func TestRegisterBaseline(t *testing.T) {
	t.Parallel()

	p := newTestPopulation(t, testConfig(), 1)
	v, err := p.RegisterBaseline(seedConfig())
	require.NoError(t, err)

	assert.True(t, v.IsBaseline)
	assert.True(t, v.IsActive)
	assert.Equal(t, 1, v.Generation)
	assert.Equal(t, 1, v.Version)
	assert.Equal(t, 0.5, v.Performance.AvgQualityScore)
	assert.Zero(t, v.Performance.TotalUses)
	assert.Same(t, v, p.Best())

	_, err = p.RegisterBaseline(seedConfig())
	assert.ErrorIs(t, err, ErrBaselineExists)
}

func TestSelectPrompt_FailsFastWithoutBaseline(t *testing.T) {
	t.Parallel()

	p := newTestPopulation(t, testConfig(), 1)
	_, err := p.SelectPrompt()
	assert.ErrorIs(t, err, ErrNoVariants)
}

func TestSelectPrompt_ExploitReturnsBest(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.ExplorationRate = 0 // always exploit
	p := newTestPopulation(t, cfg, 1)
	baseline, err := p.RegisterBaseline(seedConfig())
	require.NoError(t, err)
	plant(p, 0.9, 10, true) // better, but not promoted

	v, err := p.SelectPrompt()
	require.NoError(t, err)
	assert.Same(t, baseline, v)
}

func TestSelectPrompt_ColdStartPriority(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.ExplorationRate = 1 // always explore
	cfg.MinSampleSize = 5
	p := newTestPopulation(t, cfg, 1)
	_, err := p.RegisterBaseline(seedConfig())
	require.NoError(t, err)

	warm := plant(p, 0.9, 10, true)
	cold := plant(p, 0.1, 2, true)

	// Baseline is itself under-sampled here; saturate it first.
	p.byID[p.baselineID].ExperimentCount = 10
	p.byID[p.baselineID].Performance.TotalUses = 10

	for i := 0; i < 20; i++ {
		v, err := p.SelectPrompt()
		require.NoError(t, err)
		assert.Same(t, cold, v, "cold variant must win over %s", warm.ID)
	}
}

func TestSelectPrompt_UCBPicksBestUpperBound(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.ExplorationRate = 1
	cfg.MinSampleSize = 2
	cfg.SelectionPressure = 1 // always the UCB maximizer
	p := newTestPopulation(t, cfg, 1)

	// Equal sampling, different scores: UCB reduces to score order.
	strong := plant(p, 0.9, 10, true)
	plant(p, 0.2, 10, true)

	v, err := p.SelectPrompt()
	require.NoError(t, err)
	assert.Same(t, strong, v)
}

func TestRecordExperiment_IncrementalLedger(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.AutoImprove = false
	cfg.MinSampleSize = 2
	p := newTestPopulation(t, cfg, 1)
	v, err := p.RegisterBaseline(seedConfig())
	require.NoError(t, err)

	p.RecordExperiment(ExperimentOutcome{
		VariantID:       v.ID,
		QualityMetrics:  QualityMetrics{Coherence: 0.8, Engagement: 0.6, TopicRelevance: 1, Overall: 0.8},
		ResponseMetrics: ResponseMetrics{AvgLength: 100, AvgTime: 2},
	})
	// First sample replaces the neutral prior: (0.5*0 + x)/1 = x.
	assert.InDelta(t, 0.8, v.Performance.AvgQualityScore, 1e-9)
	assert.InDelta(t, 0.8, v.Performance.CoherenceScore, 1e-9)
	assert.InDelta(t, 100, v.Performance.AvgResponseLength, 1e-9)
	assert.Equal(t, 1, v.Performance.TotalUses)
	assert.Equal(t, 1, v.ExperimentCount)
	assert.Zero(t, v.Performance.ConfidenceEstimate) // below MinSampleSize

	p.RecordExperiment(ExperimentOutcome{
		VariantID:       v.ID,
		QualityMetrics:  QualityMetrics{Coherence: 0.4, Engagement: 0.4, TopicRelevance: 0.5, Overall: 0.4},
		ResponseMetrics: ResponseMetrics{AvgLength: 50, AvgTime: 4},
		UserFeedback:    &UserFeedback{Rating: 4},
	})
	assert.InDelta(t, 0.6, v.Performance.AvgQualityScore, 1e-9)
	assert.InDelta(t, 75, v.Performance.AvgResponseLength, 1e-9)
	assert.InDelta(t, 3, v.Performance.AvgResponseTime, 1e-9)
	assert.Equal(t, []int{4}, v.Performance.UserRatings)
	assert.InDelta(t, 4, v.Performance.AvgUserRating, 1e-9)
	// successRate: first sample 1 (0.8 >= 0.5), second 0. (0.5*0+1)/1=1, then (1+0)/2.
	assert.InDelta(t, 0.5, v.Performance.SuccessRate, 1e-9)
	assert.Greater(t, v.Performance.ConfidenceEstimate, 0.0)
}

func TestRecordExperiment_UnknownVariantIgnored(t *testing.T) {
	t.Parallel()

	p := newTestPopulation(t, testConfig(), 1)
	v, err := p.RegisterBaseline(seedConfig())
	require.NoError(t, err)

	p.RecordExperiment(ExperimentOutcome{VariantID: "no-such-id", QualityMetrics: QualityMetrics{Overall: 1}})
	assert.Zero(t, v.Performance.TotalUses)
	assert.Equal(t, 1, p.Size())
}

// Scenario: avgQualityScore 0.65 at experimentCount 1; one more outcome
// with overall 0.6 triggers an improvement attempt that adds exactly one new
// non-baseline child pointing back at the original.
func TestRecordExperiment_TriggersImprovement(t *testing.T) {
	t.Parallel()

	p := newTestPopulation(t, testConfig(), 7)
	_, err := p.RegisterBaseline(seedConfig())
	require.NoError(t, err)

	v := plant(p, 0.65, 1, true)
	require.Equal(t, 2, p.Size())

	p.RecordExperiment(ExperimentOutcome{
		VariantID:      v.ID,
		QualityMetrics: QualityMetrics{Coherence: 0.6, Engagement: 0.6, TopicRelevance: 0.6, Overall: 0.6},
	})

	require.Equal(t, 3, p.Size())
	var child *PromptVariant
	for _, cand := range p.Variants() {
		if cand.ParentID == v.ID {
			require.Nil(t, child, "exactly one child expected")
			child = cand
		}
	}
	require.NotNil(t, child)
	assert.False(t, child.IsBaseline)
	assert.True(t, child.IsActive)
	assert.Equal(t, v.Generation+1, child.Generation)
	assert.Zero(t, child.ExperimentCount)
	assert.Equal(t, 0.5, child.Performance.AvgQualityScore)
}

func TestRecordExperiment_NoImprovementWhenScoreHigh(t *testing.T) {
	t.Parallel()

	p := newTestPopulation(t, testConfig(), 7)
	_, err := p.RegisterBaseline(seedConfig())
	require.NoError(t, err)
	v := plant(p, 0.9, 1, true)

	p.RecordExperiment(ExperimentOutcome{
		VariantID:      v.ID,
		QualityMetrics: QualityMetrics{Overall: 0.9},
	})
	assert.Equal(t, 2, p.Size())
}

func TestRecordExperiment_DiversityMutantEveryThird(t *testing.T) {
	t.Parallel()

	p := newTestPopulation(t, testConfig(), 7)
	_, err := p.RegisterBaseline(seedConfig())
	require.NoError(t, err)
	// High score: no improvement children, only the every-3rd mutant.
	v := plant(p, 0.95, 2, true)

	p.RecordExperiment(ExperimentOutcome{
		VariantID:      v.ID,
		QualityMetrics: QualityMetrics{Overall: 0.95},
	})
	assert.Equal(t, 3, v.ExperimentCount)
	assert.Equal(t, 3, p.Size(), "3rd experiment spawns one diversity mutant")
}

func TestRecordExperiment_LineageStopsAtMaxGenerations(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.MaxGenerations = 2
	p := newTestPopulation(t, cfg, 7)
	_, err := p.RegisterBaseline(seedConfig())
	require.NoError(t, err)

	v := plant(p, 0.2, 1, true)
	v.Generation = 2 // at the cap

	p.RecordExperiment(ExperimentOutcome{
		VariantID:      v.ID,
		QualityMetrics: QualityMetrics{Overall: 0.2},
	})
	assert.Equal(t, 2, p.Size(), "capped lineage must not breed")
}

// Scenario: maxVariants=2 with [baseline .5, child .3]; inserting a
// third non-baseline child prunes the low-scoring child first.
func TestInsert_PrunesBeforeInsertAtCapacity(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.MaxVariants = 2
	p := newTestPopulation(t, cfg, 7)
	_, err := p.RegisterBaseline(seedConfig())
	require.NoError(t, err)

	weak := plant(p, 0.3, 5, true)
	require.Equal(t, 2, p.Size())

	incoming := newVariant(p.role, seedConfig(), KindMutation)
	require.True(t, p.insert(incoming))

	assert.Equal(t, 2, p.Size())
	_, gone := p.Get(weak.ID)
	assert.False(t, gone, "lowest-scoring non-baseline must be pruned")
	_, kept := p.Get(p.baselineID)
	assert.True(t, kept)
	_, added := p.Get(incoming.ID)
	assert.True(t, added)
}

func TestPruneWorstVariant_NeverBaseline(t *testing.T) {
	t.Parallel()

	p := newTestPopulation(t, testConfig(), 7)
	baseline, err := p.RegisterBaseline(seedConfig())
	require.NoError(t, err)
	baseline.Performance.AvgQualityScore = 0.01 // worst score of all

	plant(p, 0.4, 1, true)
	plant(p, 0.6, 1, true)

	p.PruneWorstVariant()
	_, ok := p.Get(baseline.ID)
	assert.True(t, ok, "baseline survives even with the worst score")
	assert.Equal(t, 2, p.Size())
}

func TestPruneWorstVariant_NoOpCases(t *testing.T) {
	t.Parallel()

	p := newTestPopulation(t, testConfig(), 7)
	_, err := p.RegisterBaseline(seedConfig())
	require.NoError(t, err)

	p.PruneWorstVariant() // single variant
	assert.Equal(t, 1, p.Size())

	inactive := plant(p, 0.2, 1, false)
	p.PruneWorstVariant() // no active non-baseline candidates
	assert.Equal(t, 2, p.Size())
	_, ok := p.Get(inactive.ID)
	assert.True(t, ok)
}

func TestPromoteBest_RequiresMarginAndConfidence(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.MinSampleSize = 1
	cfg.ImprovementThreshold = 0.05
	cfg.ConfidenceThreshold = 0.7

	t.Run("margin without confidence", func(t *testing.T) {
		p := newTestPopulation(t, cfg, 7)
		baseline, err := p.RegisterBaseline(seedConfig())
		require.NoError(t, err)
		baseline.ExperimentCount = 5

		cand := plant(p, 0.9, 5, true)
		cand.Performance.ConfidenceEstimate = 0.5
		p.promoteBest()
		assert.Equal(t, baseline.ID, p.bestID)
	})

	t.Run("confidence without margin", func(t *testing.T) {
		p := newTestPopulation(t, cfg, 7)
		baseline, err := p.RegisterBaseline(seedConfig())
		require.NoError(t, err)
		baseline.ExperimentCount = 5

		cand := plant(p, 0.52, 5, true)
		cand.Performance.ConfidenceEstimate = 0.99
		p.promoteBest()
		assert.Equal(t, baseline.ID, p.bestID)
	})

	t.Run("both conditions", func(t *testing.T) {
		p := newTestPopulation(t, cfg, 7)
		baseline, err := p.RegisterBaseline(seedConfig())
		require.NoError(t, err)
		baseline.ExperimentCount = 5

		cand := plant(p, 0.9, 5, true)
		cand.Performance.ConfidenceEstimate = 0.99
		p.promoteBest()
		assert.Equal(t, cand.ID, p.bestID)
	})
}

func TestOverallQuality_Weighting(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 1.0, OverallQuality(1, 1, 1), 1e-9)
	assert.InDelta(t, 0.35, OverallQuality(1, 0, 0), 1e-9)
	assert.InDelta(t, 0.30, OverallQuality(0, 0, 1), 1e-9)
}
