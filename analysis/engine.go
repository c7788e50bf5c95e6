package analysis

import (
	"time"

	"go.uber.org/zap"

	"github.com/Kerastion/trioflow/types"
)

// recentWindow is the number of trailing messages most metrics look at.
const recentWindow = 5

// engagementWindow is the wider window used for engagement and repetition.
const engagementWindow = 10

// Engine computes a Snapshot from a rolling message history. It is owned by
// a single session loop and holds no state beyond the cached topic keyword
// set, so it needs no locking.
type Engine struct {
	logger *zap.Logger

	cachedTopic   string
	topicKeywords map[string]struct{}
}

// NewEngine creates a conversation analyzer.
func NewEngine(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		logger:        logger.With(zap.String("component", "analysis")),
		topicKeywords: map[string]struct{}{},
	}
}

// Analyze produces a fresh metrics snapshot. Deterministic given identical
// inputs except for the GeneratedAt stamp. No side effects beyond the topic
// keyword cache.
func (e *Engine) Analyze(history types.History, topic string, currentTurn, maxTurns int) *Snapshot {
	if topic != e.cachedTopic {
		e.cachedTopic = topic
		e.topicKeywords = extractKeywords(topic)
		e.logger.Debug("topic keywords recomputed",
			zap.String("topic", topic),
			zap.Int("keywords", len(e.topicKeywords)))
	}

	recent := history.Tail(recentWindow)
	density := keywordDensity(recent, e.topicKeywords)
	phase, progress := phaseOf(currentTurn, maxTurns)

	snap := &Snapshot{
		Momentum:   momentum(history),
		TopicDrift: topicDrift(recent, e.topicKeywords, density),
		Tension:    tension(recent),
		Coherence:  coherence(recent),
		Engagement: engagement(history.Tail(engagementWindow)),
		Humor:      humor(recent),

		AverageResponseLength: averageLength(history),
		ResponseTimeVariance:  interArrivalVariance(history),
		KeywordDensity:        density,
		TurnBalance:           turnBalance(history),
		RepetitionRate:        repetitionRate(history.Tail(engagementWindow)),
		TurnsSinceModerator:   turnsSinceModerator(history),

		Speakers: speakerStats(history, e.topicKeywords),

		Phase:         phase,
		PhaseProgress: progress,

		GeneratedAt: time.Now(),
	}

	snap.Recommendations = recommend(snap)
	snap.NextSpeaker = forecast(snap, history)
	return snap
}

// turnsSinceModerator counts utterances since the moderator last spoke.
// Equals len(history) when the moderator has not spoken yet.
func turnsSinceModerator(history types.History) int {
	idx := history.LastIndexOf(types.RoleModerator)
	if idx < 0 {
		return len(history)
	}
	return len(history) - 1 - idx
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
