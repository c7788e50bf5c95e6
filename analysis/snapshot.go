package analysis

import (
	"time"

	"github.com/Kerastion/trioflow/types"
)

// Phase is a coarse stage of conversation progress derived from the
// currentTurn/maxTurns ratio.
type Phase string

const (
	PhaseOpening     Phase = "opening"     // [0, 0.15)
	PhaseWarmUp      Phase = "warm_up"     // [0.15, 0.3)
	PhaseDevelopment Phase = "development" // [0.3, 0.7)
	PhasePeak        Phase = "peak"        // [0.7, 0.85)
	PhaseClosing     Phase = "closing"     // [0.85, 1]
)

// ResponsePattern classifies how a speaker tends to enter the conversation.
type ResponsePattern string

const (
	PatternLeading   ResponsePattern = "leading"
	PatternFollowing ResponsePattern = "following"
	PatternBalanced  ResponsePattern = "balanced"
)

// RecommendationKind enumerates the advisory nudges the analyzer can emit.
type RecommendationKind string

const (
	RecommendEnergyBoost  RecommendationKind = "energy_boost"
	RecommendTopicShift   RecommendationKind = "topic_shift"
	RecommendIntervention RecommendationKind = "intervention"
)

// Urgency grades a recommendation.
type Urgency string

const (
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

// Recommendation is an advisory nudge derived from the current metrics.
// Multiple recommendations may co-occur in one snapshot.
type Recommendation struct {
	Kind    RecommendationKind `json:"kind"`
	Urgency Urgency            `json:"urgency"`
	Message string             `json:"message"`
	Target  types.Role         `json:"target,omitempty"`
}

// SpeakerStats aggregates per-role behavior over the whole history.
type SpeakerStats struct {
	UtteranceCount    int             `json:"utterance_count"`
	TotalChars        int             `json:"total_chars"`
	AverageLength     float64         `json:"average_length"`
	LastSpokeIndex    int             `json:"last_spoke_index"` // -1 if never spoke
	ContributionScore float64         `json:"contribution_score"`
	TopicRelevance    float64         `json:"topic_relevance"`
	Pattern           ResponsePattern `json:"pattern"`
}

// Forecast is the advisory next-speaker prediction. The reactive speaker
// policy applies its own, deliberately stricter thresholds, so the forecast
// and the actual next speaker can legitimately diverge.
type Forecast struct {
	Role       types.Role `json:"role"`
	Confidence float64    `json:"confidence"`
	Reasons    []string   `json:"reasons"`
}

// Snapshot is the full analyzer output for one step. Recomputed fresh each
// step, never mutated, only replaced.
type Snapshot struct {
	// Primary quality/behavior metrics, each in [0,1].
	Momentum   float64 `json:"momentum"`
	TopicDrift float64 `json:"topic_drift"`
	Tension    float64 `json:"tension"`
	Coherence  float64 `json:"coherence"`
	Engagement float64 `json:"engagement"`
	Humor      float64 `json:"humor"`

	// Derived aggregates.
	AverageResponseLength float64 `json:"average_response_length"`
	ResponseTimeVariance  float64 `json:"response_time_variance"`
	KeywordDensity        float64 `json:"keyword_density"`
	TurnBalance           float64 `json:"turn_balance"`
	RepetitionRate        float64 `json:"repetition_rate"`
	TurnsSinceModerator   int     `json:"turns_since_moderator"`

	Speakers map[types.Role]SpeakerStats `json:"speakers"`

	Phase         Phase   `json:"phase"`
	PhaseProgress float64 `json:"phase_progress"`

	Recommendations []Recommendation `json:"recommendations,omitempty"`
	NextSpeaker     Forecast         `json:"next_speaker"`

	GeneratedAt time.Time `json:"generated_at"`
}
