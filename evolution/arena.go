package evolution

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/Kerastion/trioflow/types"
)

// Arena keys the three role populations and owns the global, write-once
// experiment log. No variant or ledger is ever shared across roles.
type Arena struct {
	cfg    Config
	logger *zap.Logger
	pops   map[types.Role]*Population
	log    []ExperimentOutcome
}

// NewArena builds one population per cast role. rng is shared across the
// populations; pass nil outside tests.
func NewArena(cfg Config, rng *rand.Rand, logger *zap.Logger) *Arena {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	pops := make(map[types.Role]*Population, 3)
	for _, role := range types.AllRoles() {
		pops[role] = NewPopulation(role, cfg, rng, logger)
	}
	return &Arena{cfg: cfg, logger: logger, pops: pops}
}

// Population returns the population owned by role.
func (a *Arena) Population(role types.Role) *Population {
	return a.pops[role]
}

// RegisterBaseline seeds role's population with its baseline prompt.
func (a *Arena) RegisterBaseline(role types.Role, seed PromptConfig) (*PromptVariant, error) {
	pop, ok := a.pops[role]
	if !ok {
		return nil, types.NewError(types.ErrUnknownRole, fmt.Sprintf("no population for role %q", role))
	}
	return pop.RegisterBaseline(seed)
}

// SelectPrompt picks the next variant for role.
func (a *Arena) SelectPrompt(role types.Role) (*PromptVariant, error) {
	pop, ok := a.pops[role]
	if !ok {
		return nil, types.NewError(types.ErrUnknownRole, fmt.Sprintf("no population for role %q", role))
	}
	return pop.SelectPrompt()
}

// RecordExperiment routes the outcome to the owning population and appends
// it to the global log. Outcomes for unknown variant ids are silently
// dropped: no ledger update, no log entry, no error.
func (a *Arena) RecordExperiment(outcome ExperimentOutcome) {
	for _, pop := range a.pops {
		if _, ok := pop.Get(outcome.VariantID); ok {
			a.log = append(a.log, outcome)
			pop.RecordExperiment(outcome)
			return
		}
	}
	a.logger.Debug("experiment for unknown variant ignored",
		zap.String("variant", outcome.VariantID))
}

// RecordFeedback routes a user rating to whichever population owns the
// variant. Unknown ids are silently dropped.
func (a *Arena) RecordFeedback(variantID string, fb UserFeedback) {
	for _, pop := range a.pops {
		if _, ok := pop.Get(variantID); ok {
			pop.RecordFeedback(variantID, fb)
			return
		}
	}
}

// OnBreed registers a churn observer on every population.
func (a *Arena) OnBreed(fn func(*PromptVariant)) {
	for _, pop := range a.pops {
		pop.OnBreed(fn)
	}
}

// OnPrune registers a churn observer on every population.
func (a *Arena) OnPrune(fn func(*PromptVariant)) {
	for _, pop := range a.pops {
		pop.OnPrune(fn)
	}
}

// ExperimentLog returns a copy of the global experiment log.
func (a *Arena) ExperimentLog() []ExperimentOutcome {
	out := make([]ExperimentOutcome, len(a.log))
	copy(out, a.log)
	return out
}

// Stats is the aggregate observability view for one role.
type Stats struct {
	Role             types.Role `json:"role"`
	TotalVariants    int        `json:"total_variants"`
	ActiveVariants   int        `json:"active_variants"`
	MaxGeneration    int        `json:"max_generation"`
	BestVariantID    string     `json:"best_variant_id,omitempty"`
	BestScore        float64    `json:"best_score"`
	BaselineScore    float64    `json:"baseline_score"`
	ImprovementRate  float64    `json:"improvement_rate"`
	TotalExperiments int        `json:"total_experiments"`
}

// EvolutionStats aggregates counts, the max generation, best score and the
// improvement rate over the baseline for one role.
func (a *Arena) EvolutionStats(role types.Role) Stats {
	s := Stats{Role: role}
	pop, ok := a.pops[role]
	if !ok {
		return s
	}
	for _, v := range pop.variants {
		s.TotalVariants++
		if v.IsActive {
			s.ActiveVariants++
		}
		if v.Generation > s.MaxGeneration {
			s.MaxGeneration = v.Generation
		}
		s.TotalExperiments += v.ExperimentCount
	}
	if best := pop.Best(); best != nil {
		s.BestVariantID = best.ID
		s.BestScore = best.Performance.AvgQualityScore
	}
	if baseline, ok := pop.byID[pop.baselineID]; ok {
		s.BaselineScore = baseline.Performance.AvgQualityScore
		if s.BaselineScore > 0 {
			s.ImprovementRate = (s.BestScore - s.BaselineScore) / s.BaselineScore
		}
	}
	return s
}

// AllStats returns stats for every role.
func (a *Arena) AllStats() map[types.Role]Stats {
	out := make(map[types.Role]Stats, len(a.pops))
	for role := range a.pops {
		out[role] = a.EvolutionStats(role)
	}
	return out
}

// snapshot is the wire form of an exported arena. Opaque to collaborators.
type snapshot struct {
	Variants map[types.Role][]*PromptVariant `json:"variants"`
	BestIDs  map[types.Role]string           `json:"best_ids"`
	Log      []ExperimentOutcome             `json:"experiment_log"`
}

// ExportState serializes all variants per role, the current-best references
// and the full experiment log into an opaque blob for the persistence
// collaborator.
func (a *Arena) ExportState() ([]byte, error) {
	snap := snapshot{
		Variants: make(map[types.Role][]*PromptVariant, len(a.pops)),
		BestIDs:  make(map[types.Role]string, len(a.pops)),
		Log:      a.log,
	}
	for role, pop := range a.pops {
		snap.Variants[role] = pop.variants
		snap.BestIDs[role] = pop.bestID
	}
	return json.Marshal(snap)
}

// ImportState restores a previously exported snapshot, replacing all
// populations and the experiment log.
func (a *Arena) ImportState(data []byte) error {
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return types.NewError(types.ErrSnapshotCorrupt, "cannot decode population snapshot").WithCause(err)
	}

	for role, pop := range a.pops {
		variants := snap.Variants[role]
		pop.variants = variants
		pop.byID = make(map[string]*PromptVariant, len(variants))
		pop.baselineID = ""
		for _, v := range variants {
			pop.byID[v.ID] = v
			if v.IsBaseline {
				pop.baselineID = v.ID
			}
		}
		pop.bestID = snap.BestIDs[role]
	}
	a.log = snap.Log
	return nil
}
