package evolution

import (
	"strings"

	"go.uber.org/zap"
)

// improveBelow is the ledger score under which a just-updated variant
// triggers an improvement attempt.
const improveBelow = 0.7

// diversityInterval spawns one extra mutant every Nth experiment on a
// variant, regardless of its score.
const diversityInterval = 3

// stylisticDirectives are the transforms mutation can append.
var stylisticDirectives = []string{
	"Lean into vivid, concrete imagery.",
	"Favor short, punchy sentences.",
	"Work in one unexpected comparison.",
	"Address the other speakers by role.",
	"End on a question or a hook.",
	"Let a little dry wit through.",
}

// autoImprove runs at most once per RecordExperiment call: one improvement
// child when the variant is underperforming, plus the unconditional
// diversity mutant on every 3rd experiment. A lineage stops breeding once it
// reaches MaxGenerations.
func (p *Population) autoImprove(v *PromptVariant) {
	if v.Generation >= p.cfg.MaxGenerations {
		return
	}

	if v.ExperimentCount >= 1 && v.Performance.AvgQualityScore < improveBelow {
		if child := p.breedImprovement(v); child != nil {
			p.adopt(child)
		}
	}

	if v.ExperimentCount >= diversityInterval && v.ExperimentCount%diversityInterval == 0 {
		p.adopt(p.mutate(v))
	}
}

// breedImprovement picks one mechanism by a draw weighted with MutationRate
// (mutation) and CrossoverRate (crossover), remainder heuristic repair.
// Crossover without an eligible partner and repair with nothing to fix are
// normal outcomes; both fall back to mutation so an improvement attempt
// always yields exactly one child.
func (p *Population) breedImprovement(parent *PromptVariant) *PromptVariant {
	draw := p.rng.Float64()
	var child *PromptVariant
	switch {
	case draw < p.cfg.MutationRate:
		child = p.mutate(parent)
	case draw < p.cfg.MutationRate+p.cfg.CrossoverRate:
		child = p.crossover(parent)
	default:
		child = p.repair(parent)
	}
	if child == nil {
		child = p.mutate(parent)
	}
	return child
}

// adopt inserts a bred child, pruning first at capacity.
func (p *Population) adopt(child *PromptVariant) {
	if !p.insert(child) {
		return
	}
	if p.onBreed != nil {
		p.onBreed(child)
	}
	p.logger.Debug("variant bred",
		zap.String("child", child.ID),
		zap.String("parent", child.ParentID),
		zap.String("kind", string(child.MutationKind)),
		zap.Int("generation", child.Generation))
}

// mutate applies exactly one randomly chosen transform: a text edit to the
// system or style text (50/50), a ±0.15 temperature nudge, or a fresh random
// temperature in [0.1,1]. A further 10% chance overlays a major mutation:
// a style-text prefix rewrite plus a re-randomized temperature in [0.2,1].
func (p *Population) mutate(parent *PromptVariant) *PromptVariant {
	cfg := parent.Config()

	switch p.rng.Intn(3) {
	case 0:
		directive := stylisticDirectives[p.rng.Intn(len(stylisticDirectives))]
		transform := func(text string) string {
			if p.rng.Intn(2) == 0 {
				return appendDirective(text, directive)
			}
			return reverseVerbosity(text)
		}
		if p.rng.Intn(2) == 0 {
			cfg.SystemText = transform(cfg.SystemText)
		} else {
			cfg.StyleText = transform(cfg.StyleText)
		}
	case 1:
		delta := 0.15
		if p.rng.Intn(2) == 0 {
			delta = -0.15
		}
		cfg.Temperature = clampTemp(cfg.Temperature + delta)
	default:
		cfg.Temperature = 0.1 + p.rng.Float64()*0.9
	}

	if p.rng.Float64() < 0.1 {
		cfg.StyleText = strings.TrimSpace("Reinvent your delivery this turn. " + cfg.StyleText)
		cfg.Temperature = 0.2 + p.rng.Float64()*0.8
	}

	return childOf(parent, cfg, KindMutation)
}

// crossover picks the highest-scoring active, non-parent partner with
// avgQualityScore > 0.6; the child takes its system text from the
// higher-coherence parent, style text from the higher-engagement parent and
// the mean temperature. Returns nil when no eligible partner exists.
func (p *Population) crossover(parent *PromptVariant) *PromptVariant {
	var partner *PromptVariant
	for _, v := range p.variants {
		if !v.IsActive || v.ID == parent.ID || v.Performance.AvgQualityScore <= 0.6 {
			continue
		}
		if partner == nil || v.Performance.AvgQualityScore > partner.Performance.AvgQualityScore {
			partner = v
		}
	}
	if partner == nil {
		return nil
	}

	cfg := parent.Config()
	if partner.Performance.CoherenceScore > parent.Performance.CoherenceScore {
		cfg.SystemText = partner.SystemText
	}
	if partner.Performance.EngagementScore > parent.Performance.EngagementScore {
		cfg.StyleText = partner.StyleText
	}
	cfg.Temperature = (parent.Temperature + partner.Temperature) / 2

	return childOf(parent, cfg, KindCrossover)
}

// repair inspects the parent's ledger against fixed thresholds and appends
// one corrective directive per triggered condition. Returns nil when nothing
// triggered.
func (p *Population) repair(parent *PromptVariant) *PromptVariant {
	cfg := parent.Config()
	led := parent.Performance
	triggered := false

	if led.CoherenceScore < 0.5 {
		cfg.SystemText = appendDirective(cfg.SystemText,
			"Pick up the previous speaker's point before adding your own.")
		triggered = true
	}
	if led.EngagementScore < 0.5 {
		cfg.StyleText = appendDirective(cfg.StyleText,
			"Invite a reaction: pose a question or a challenge.")
		triggered = true
	}
	if led.TopicRelevanceScore < 0.5 {
		cfg.SystemText = appendDirective(cfg.SystemText,
			"Anchor every reply to the stated topic.")
		triggered = true
	}
	if led.AvgResponseLength > 0 && led.AvgResponseLength < 30 {
		cfg.StyleText = appendDirective(cfg.StyleText,
			"Develop your replies with a little more substance.")
		triggered = true
	}
	if led.AvgResponseLength > 200 {
		cfg.StyleText = appendDirective(cfg.StyleText,
			"Keep replies tight; two or three sentences at most.")
		triggered = true
	}

	if !triggered {
		return nil
	}
	return childOf(parent, cfg, KindAuto)
}

func appendDirective(text, directive string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return directive
	}
	return text + " " + directive
}

// reverseVerbosity flips a concise/detailed directive; text without either
// word gets a concise directive appended.
func reverseVerbosity(text string) string {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "concise"):
		return strings.ReplaceAll(strings.ReplaceAll(text, "concise", "detailed"), "Concise", "Detailed")
	case strings.Contains(lower, "detailed"):
		return strings.ReplaceAll(strings.ReplaceAll(text, "detailed", "concise"), "Detailed", "Concise")
	default:
		return appendDirective(text, "Stay concise.")
	}
}

func clampTemp(t float64) float64 {
	if t < 0.1 {
		return 0.1
	}
	if t > 1 {
		return 1
	}
	return t
}
