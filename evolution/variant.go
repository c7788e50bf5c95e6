package evolution

import (
	"time"

	"github.com/google/uuid"

	"github.com/Kerastion/trioflow/types"
)

// MutationKind records how a variant came to exist.
type MutationKind string

const (
	KindManual    MutationKind = "manual"
	KindAuto      MutationKind = "auto"
	KindCrossover MutationKind = "crossover"
	KindMutation  MutationKind = "mutation"
)

// PromptConfig is the editable core of a variant: what actually gets sent to
// the completion service.
type PromptConfig struct {
	SystemText  string  `json:"system_text"`
	StyleText   string  `json:"style_text"`
	Temperature float64 `json:"temperature"`
}

// PerformanceLedger holds the running statistics attached to a variant.
// Updated only through incremental (online) mean updates, never recomputed
// from raw history, so every experiment costs O(1).
type PerformanceLedger struct {
	TotalUses           int     `json:"total_uses"`
	SuccessRate         float64 `json:"success_rate"`
	AvgQualityScore     float64 `json:"avg_quality_score"`
	AvgResponseLength   float64 `json:"avg_response_length"`
	AvgResponseTime     float64 `json:"avg_response_time"` // seconds
	CoherenceScore      float64 `json:"coherence_score"`
	EngagementScore     float64 `json:"engagement_score"`
	TopicRelevanceScore float64 `json:"topic_relevance_score"`
	UserRatings         []int   `json:"user_ratings,omitempty"`
	AvgUserRating       float64 `json:"avg_user_rating"`
	ConfidenceEstimate  float64 `json:"confidence_estimate"`
}

// neutralLedger is the starting ledger for baselines and freshly bred
// children: every score sits at 0.5 with zero counts.
func neutralLedger() PerformanceLedger {
	return PerformanceLedger{
		SuccessRate:         0.5,
		AvgQualityScore:     0.5,
		CoherenceScore:      0.5,
		EngagementScore:     0.5,
		TopicRelevanceScore: 0.5,
	}
}

// PromptVariant is one candidate prompt formulation for a role.
type PromptVariant struct {
	ID              string            `json:"id"`
	Role            types.Role        `json:"role"`
	Version         int               `json:"version"`    // monotonic per lineage
	Generation      int               `json:"generation"` // parent.Generation+1, 1 for baseline
	SystemText      string            `json:"system_text"`
	StyleText       string            `json:"style_text"`
	Temperature     float64           `json:"temperature"`
	Performance     PerformanceLedger `json:"performance"`
	CreatedAt       time.Time         `json:"created_at"`
	ParentID        string            `json:"parent_id,omitempty"`
	MutationKind    MutationKind      `json:"mutation_kind"`
	ExperimentCount int               `json:"experiment_count"`
	IsActive        bool              `json:"is_active"`
	IsBaseline      bool              `json:"is_baseline"`
}

// Config returns the variant's prompt configuration.
func (v *PromptVariant) Config() PromptConfig {
	return PromptConfig{
		SystemText:  v.SystemText,
		StyleText:   v.StyleText,
		Temperature: v.Temperature,
	}
}

// newVariant builds a fresh variant with a neutral ledger.
func newVariant(role types.Role, cfg PromptConfig, kind MutationKind) *PromptVariant {
	return &PromptVariant{
		ID:           uuid.NewString(),
		Role:         role,
		Version:      1,
		Generation:   1,
		SystemText:   cfg.SystemText,
		StyleText:    cfg.StyleText,
		Temperature:  cfg.Temperature,
		Performance:  neutralLedger(),
		CreatedAt:    time.Now(),
		MutationKind: kind,
		IsActive:     true,
	}
}

// childOf builds a bred child of parent carrying the given prompt config.
func childOf(parent *PromptVariant, cfg PromptConfig, kind MutationKind) *PromptVariant {
	child := newVariant(parent.Role, cfg, kind)
	child.Version = parent.Version + 1
	child.Generation = parent.Generation + 1
	child.ParentID = parent.ID
	return child
}

// QualityMetrics carries the analyzer-derived quality of one utterance.
type QualityMetrics struct {
	Coherence      float64 `json:"coherence"`
	Engagement     float64 `json:"engagement"`
	Humor          float64 `json:"humor"`
	TopicRelevance float64 `json:"topic_relevance"`
	Overall        float64 `json:"overall"`
}

// ResponseMetrics carries the transport-level shape of one utterance.
type ResponseMetrics struct {
	AvgLength float64 `json:"avg_length"`
	AvgTime   float64 `json:"avg_time"` // seconds
	TurnCount int     `json:"turn_count"`
}

// UserFeedback is an optional human rating attached to an outcome.
type UserFeedback struct {
	Rating  int    `json:"rating"` // 1-5
	Comment string `json:"comment,omitempty"`
}

// ExperimentOutcome is a write-once record of one completed utterance. It is
// appended to the global experiment log and updates exactly one variant's
// ledger.
type ExperimentOutcome struct {
	VariantID       string          `json:"variant_id"`
	ConversationID  string          `json:"conversation_id"`
	Timestamp       time.Time       `json:"timestamp"`
	QualityMetrics  QualityMetrics  `json:"quality_metrics"`
	ResponseMetrics ResponseMetrics `json:"response_metrics"`
	UserFeedback    *UserFeedback   `json:"user_feedback,omitempty"`
}

// Overall-quality weighting, used on every scoring path.
const (
	weightCoherence      = 0.35
	weightEngagement     = 0.35
	weightTopicRelevance = 0.30
)

// OverallQuality combines the three analyzer metrics into a single score.
func OverallQuality(coherence, engagement, topicRelevance float64) float64 {
	return weightCoherence*coherence +
		weightEngagement*engagement +
		weightTopicRelevance*topicRelevance
}
