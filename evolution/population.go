package evolution

import (
	"errors"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/Kerastion/trioflow/types"
)

// Population errors.
var (
	ErrNoVariants       = errors.New("no variants registered; call RegisterBaseline first")
	ErrBaselineExists   = errors.New("baseline already registered for role")
	ErrUnknownVariant   = errors.New("variant not found")
	ErrInactivePopulace = errors.New("population has no active variants")
)

// Population owns the growable/prunable variant arena for one role. It is
// touched exclusively by a single sequential session loop, so it carries no
// locking; concurrent sessions must each own their own Population set.
type Population struct {
	role   types.Role
	cfg    Config
	rng    *rand.Rand
	logger *zap.Logger

	variants   []*PromptVariant
	byID       map[string]*PromptVariant
	baselineID string
	bestID     string

	// onBreed/onPrune let the arena observe population churn (metrics).
	onBreed func(*PromptVariant)
	onPrune func(*PromptVariant)
}

// NewPopulation creates an empty population for role. rng may be nil outside
// tests.
func NewPopulation(role types.Role, cfg Config, rng *rand.Rand, logger *zap.Logger) *Population {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Population{
		role:   role,
		cfg:    cfg,
		rng:    rng,
		logger: logger.With(zap.String("component", "evolution"), zap.String("role", string(role))),
		byID:   make(map[string]*PromptVariant),
	}
}

// Role returns the owning role.
func (p *Population) Role() types.Role { return p.role }

// RegisterBaseline creates the generation-1, version-1 baseline variant with
// a neutral ledger and promotes it as current best. Exactly one baseline per
// role; it is never pruned and never deactivated.
func (p *Population) RegisterBaseline(seed PromptConfig) (*PromptVariant, error) {
	if p.baselineID != "" {
		return nil, ErrBaselineExists
	}
	v := newVariant(p.role, seed, KindManual)
	v.IsBaseline = true
	p.insert(v)
	p.baselineID = v.ID
	p.bestID = v.ID

	p.logger.Info("baseline registered", zap.String("variant", v.ID))
	return v, nil
}

// SelectPrompt returns the variant to use for the next utterance: with
// probability ExplorationRate an exploration pick, otherwise the promoted
// current best (falling back to any active variant).
func (p *Population) SelectPrompt() (*PromptVariant, error) {
	if len(p.variants) == 0 {
		return nil, ErrNoVariants
	}

	if p.rng.Float64() < p.cfg.ExplorationRate {
		if v := p.explore(); v != nil {
			return v, nil
		}
	}

	if best, ok := p.byID[p.bestID]; ok && best.IsActive {
		return best, nil
	}
	for _, v := range p.variants {
		if v.IsActive {
			return v, nil
		}
	}
	return nil, ErrInactivePopulace
}

// explore implements the exploration selector: any under-sampled active
// variant takes cold-start priority; otherwise an upper-confidence-bound
// pick, softened by SelectionPressure.
func (p *Population) explore() *PromptVariant {
	active := p.active()
	if len(active) == 0 {
		return nil
	}

	for _, v := range active {
		if v.ExperimentCount < p.cfg.MinSampleSize {
			return v
		}
	}

	if p.rng.Float64() >= p.cfg.SelectionPressure {
		return active[p.rng.Intn(len(active))]
	}

	var totalTrials int
	for _, v := range active {
		totalTrials += v.ExperimentCount
	}

	var pick *PromptVariant
	bestScore := math.Inf(-1)
	for _, v := range active {
		score := v.Performance.AvgQualityScore +
			math.Sqrt(2*math.Log(float64(totalTrials))/float64(v.ExperimentCount))
		if score > bestScore {
			bestScore = score
			pick = v
		}
	}
	return pick
}

// RecordExperiment updates the target variant's ledger via O(1) incremental
// means, re-evaluates the promoted best, and, when auto-improvement is on,
// may breed one child. Unknown variant ids are silently ignored.
func (p *Population) RecordExperiment(outcome ExperimentOutcome) {
	v, ok := p.byID[outcome.VariantID]
	if !ok {
		return
	}

	n := float64(v.Performance.TotalUses)
	inc := func(old, sample float64) float64 { return (old*n + sample) / (n + 1) }

	q := outcome.QualityMetrics
	led := &v.Performance
	led.AvgQualityScore = inc(led.AvgQualityScore, q.Overall)
	led.CoherenceScore = inc(led.CoherenceScore, q.Coherence)
	led.EngagementScore = inc(led.EngagementScore, q.Engagement)
	led.TopicRelevanceScore = inc(led.TopicRelevanceScore, q.TopicRelevance)
	led.AvgResponseLength = inc(led.AvgResponseLength, outcome.ResponseMetrics.AvgLength)
	led.AvgResponseTime = inc(led.AvgResponseTime, outcome.ResponseMetrics.AvgTime)

	success := 0.0
	if q.Overall >= 0.5 {
		success = 1
	}
	led.SuccessRate = inc(led.SuccessRate, success)
	led.TotalUses++

	if fb := outcome.UserFeedback; fb != nil && fb.Rating >= 1 && fb.Rating <= 5 {
		led.UserRatings = append(led.UserRatings, fb.Rating)
		var sum int
		for _, r := range led.UserRatings {
			sum += r
		}
		led.AvgUserRating = float64(sum) / float64(len(led.UserRatings))
	}

	if led.TotalUses >= p.cfg.MinSampleSize {
		led.ConfidenceEstimate = confidenceEstimate(led.AvgQualityScore, led.TotalUses)
	}

	v.ExperimentCount++
	p.promoteBest()

	if p.cfg.AutoImprove {
		p.autoImprove(v)
	}
}

// confidenceEstimate is the lightweight Wald-style heuristic
// clamp(0, 1, 1 - 1.96*sqrt(p(1-p)/n)). It is not a calibrated estimator.
func confidenceEstimate(p float64, n int) float64 {
	if n <= 0 {
		return 0
	}
	se := math.Sqrt(p * (1 - p) / float64(n))
	v := 1 - 1.96*se
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// promoteBest replaces the current best only when the top sufficiently
// sampled candidate beats the incumbent by at least ImprovementThreshold AND
// its confidence estimate meets ConfidenceThreshold. Neither condition alone
// is enough.
func (p *Population) promoteBest() {
	var candidate *PromptVariant
	for _, v := range p.variants {
		if !v.IsActive || v.ExperimentCount < p.cfg.MinSampleSize {
			continue
		}
		if candidate == nil || v.Performance.AvgQualityScore > candidate.Performance.AvgQualityScore {
			candidate = v
		}
	}
	if candidate == nil {
		return
	}

	incumbent, ok := p.byID[p.bestID]
	if !ok {
		p.bestID = candidate.ID
		return
	}
	if candidate.ID == incumbent.ID {
		return
	}

	margin := candidate.Performance.AvgQualityScore - incumbent.Performance.AvgQualityScore
	if margin >= p.cfg.ImprovementThreshold &&
		candidate.Performance.ConfidenceEstimate >= p.cfg.ConfidenceThreshold {
		p.logger.Info("best variant promoted",
			zap.String("from", incumbent.ID),
			zap.String("to", candidate.ID),
			zap.Float64("margin", margin),
			zap.Float64("confidence", candidate.Performance.ConfidenceEstimate))
		p.bestID = candidate.ID
	}
}

// PruneWorstVariant removes the non-baseline active variant with the lowest
// average quality score. No-op with one variant or no non-baseline
// candidates; the baseline is never pruned.
func (p *Population) PruneWorstVariant() {
	if len(p.variants) <= 1 {
		return
	}
	var worst *PromptVariant
	for _, v := range p.variants {
		if v.IsBaseline || !v.IsActive {
			continue
		}
		if worst == nil || v.Performance.AvgQualityScore < worst.Performance.AvgQualityScore {
			worst = v
		}
	}
	if worst == nil {
		return
	}

	delete(p.byID, worst.ID)
	for i, v := range p.variants {
		if v.ID == worst.ID {
			p.variants = append(p.variants[:i], p.variants[i+1:]...)
			break
		}
	}
	if p.bestID == worst.ID {
		p.bestID = p.baselineID
	}
	if p.onPrune != nil {
		p.onPrune(worst)
	}
	p.logger.Debug("variant pruned",
		zap.String("variant", worst.ID),
		zap.Float64("score", worst.Performance.AvgQualityScore))
}

// RecordFeedback appends a user rating to the variant's ledger without
// touching the quality means. Unknown variant ids are silently ignored.
func (p *Population) RecordFeedback(variantID string, fb UserFeedback) {
	v, ok := p.byID[variantID]
	if !ok || fb.Rating < 1 || fb.Rating > 5 {
		return
	}
	led := &v.Performance
	led.UserRatings = append(led.UserRatings, fb.Rating)
	var sum int
	for _, r := range led.UserRatings {
		sum += r
	}
	led.AvgUserRating = float64(sum) / float64(len(led.UserRatings))
}

// OnBreed registers an observer invoked for every adopted child.
func (p *Population) OnBreed(fn func(*PromptVariant)) { p.onBreed = fn }

// OnPrune registers an observer invoked for every pruned variant.
func (p *Population) OnPrune(fn func(*PromptVariant)) { p.onPrune = fn }

// Best returns the currently promoted variant, nil when empty.
func (p *Population) Best() *PromptVariant {
	return p.byID[p.bestID]
}

// Get returns a variant by id.
func (p *Population) Get(id string) (*PromptVariant, bool) {
	v, ok := p.byID[id]
	return v, ok
}

// Size returns the number of variants in the arena.
func (p *Population) Size() int { return len(p.variants) }

// Variants returns the arena in insertion order.
func (p *Population) Variants() []*PromptVariant {
	out := make([]*PromptVariant, len(p.variants))
	copy(out, p.variants)
	return out
}

func (p *Population) active() []*PromptVariant {
	var out []*PromptVariant
	for _, v := range p.variants {
		if v.IsActive {
			out = append(out, v)
		}
	}
	return out
}

// insert adds a variant, pruning first when the arena is at capacity. When
// nothing can be pruned (only the baseline remains) the insertion is dropped
// so the population never exceeds MaxVariants.
func (p *Population) insert(v *PromptVariant) bool {
	if p.cfg.MaxVariants > 0 && len(p.variants) >= p.cfg.MaxVariants {
		p.PruneWorstVariant()
		if len(p.variants) >= p.cfg.MaxVariants {
			return false
		}
	}
	p.variants = append(p.variants, v)
	p.byID[v.ID] = v
	return true
}
