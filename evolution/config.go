package evolution

// Config holds the immutable evolution tunables, supplied once at population
// construction.
type Config struct {
	// ExplorationRate is the probability that SelectPrompt runs the
	// exploration selector instead of returning the promoted best.
	ExplorationRate float64 `yaml:"exploration_rate" json:"exploration_rate"`

	// MinSampleSize is the experiment count below which a variant is
	// considered under-sampled (cold-start priority, no confidence yet).
	MinSampleSize int `yaml:"min_sample_size" json:"min_sample_size"`

	// ConfidenceThreshold gates best promotion: a candidate's confidence
	// estimate must exceed it.
	ConfidenceThreshold float64 `yaml:"confidence_threshold" json:"confidence_threshold"`

	// MutationRate and CrossoverRate weight the improvement-mechanism draw;
	// the remainder goes to heuristic repair.
	MutationRate  float64 `yaml:"mutation_rate" json:"mutation_rate"`
	CrossoverRate float64 `yaml:"crossover_rate" json:"crossover_rate"`

	// SelectionPressure is the probability that the exploration selector
	// picks the UCB maximizer rather than a uniformly random active variant.
	SelectionPressure float64 `yaml:"selection_pressure" json:"selection_pressure"`

	// MaxVariants caps the per-role population; the worst non-baseline
	// variant is pruned before an insertion at capacity.
	MaxVariants int `yaml:"max_variants" json:"max_variants"`

	// MaxGenerations stops a lineage from breeding further.
	MaxGenerations int `yaml:"max_generations" json:"max_generations"`

	// AutoImprove enables synthesizing children inside RecordExperiment.
	AutoImprove bool `yaml:"auto_improve" json:"auto_improve"`

	// ImprovementThreshold is the score margin a candidate must exceed the
	// incumbent best by before promotion.
	ImprovementThreshold float64 `yaml:"improvement_threshold" json:"improvement_threshold"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		ExplorationRate:      0.2,
		MinSampleSize:        5,
		ConfidenceThreshold:  0.7,
		MutationRate:         0.4,
		CrossoverRate:        0.3,
		SelectionPressure:    0.8,
		MaxVariants:          10,
		MaxGenerations:       5,
		AutoImprove:          true,
		ImprovementThreshold: 0.05,
	}
}
