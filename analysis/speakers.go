package analysis

import (
	"math"

	"github.com/Kerastion/trioflow/types"
)

// leadMargin is the factor by which one entry pattern must dominate the
// other before a speaker is classified as leading or following.
const leadMargin = 1.5

// speakerStats computes per-role aggregates over the whole history.
func speakerStats(history types.History, topicKeywords map[string]struct{}) map[types.Role]SpeakerStats {
	stats := make(map[types.Role]SpeakerStats, 3)
	for _, role := range types.AllRoles() {
		stats[role] = statsForRole(history, role, topicKeywords)
	}
	return stats
}

func statsForRole(history types.History, role types.Role, topicKeywords map[string]struct{}) SpeakerStats {
	s := SpeakerStats{LastSpokeIndex: -1, Pattern: PatternBalanced}

	var own types.History
	var afterModerator, afterOther int
	for i := range history {
		if history[i].Role != role {
			continue
		}
		own = append(own, history[i])
		s.UtteranceCount++
		s.TotalChars += len(history[i].Text)
		s.LastSpokeIndex = i
		if i > 0 {
			if history[i-1].Role == types.RoleModerator {
				afterModerator++
			} else {
				afterOther++
			}
		}
	}

	if s.UtteranceCount == 0 {
		return s
	}
	s.AverageLength = float64(s.TotalChars) / float64(s.UtteranceCount)

	// Relevance of the speaker's own words to the topic, scaled the same
	// way drift is: 10x density saturates.
	s.TopicRelevance = math.Min(1, 10*keywordDensity(own, topicKeywords))

	share := float64(s.UtteranceCount) / float64(len(history))
	s.ContributionScore = clamp01(share * (s.AverageLength / 100) * s.TopicRelevance)

	switch {
	case float64(afterModerator) > leadMargin*float64(afterOther):
		s.Pattern = PatternLeading
	case float64(afterOther) > leadMargin*float64(afterModerator):
		s.Pattern = PatternFollowing
	}
	return s
}
