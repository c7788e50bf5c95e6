package analysis

import (
	"math"
	"strings"

	"github.com/Kerastion/trioflow/types"
)

// negativeWords are the markers counted by the tension metric.
var negativeWords = map[string]struct{}{
	"no": {}, "not": {}, "never": {}, "wrong": {}, "bad": {},
	"hate": {}, "stupid": {}, "terrible": {}, "awful": {}, "worst": {},
	"annoying": {}, "boring": {}, "nonsense": {}, "ridiculous": {},
	"disagree": {}, "stop": {},
}

// humorMarkers are the laughter tokens and "funny"-type words scanned by the
// humor metric. Substring match, lowercased.
var humorMarkers = []string{
	"haha", "hehe", "lol", "lmao", "rofl",
	"funny", "hilarious", "joke", "pun", "witty", "absurd",
}

// momentum compares the average utterance length of the last 5 messages
// against the previous 5, combined 50/50 with a variance-based
// inter-arrival-time signal when timestamps are present.
// Defaults: 0.5 with fewer than 3 messages, 0.7 when there is no older
// window to compare against.
func momentum(history types.History) float64 {
	if len(history) < 3 {
		return 0.5
	}
	if len(history) <= recentWindow {
		return 0.7
	}

	recent := history[len(history)-recentWindow:]
	older := history[:len(history)-recentWindow]
	if len(older) > recentWindow {
		older = older[len(older)-recentWindow:]
	}

	recentAvg := averageLength(recent)
	olderAvg := averageLength(older)
	// Equal lengths sit at 0.5; a recent window twice as long saturates.
	lengthSignal := 0.5
	if olderAvg > 0 {
		lengthSignal = clamp01(recentAvg / (2 * olderAvg))
	}

	timing, ok := timingSignal(recent)
	if !ok {
		return lengthSignal
	}
	return clamp01(0.5*lengthSignal + 0.5*timing)
}

// timingSignal maps the coefficient of variation of inter-arrival times to
// [0,1]: steady, regular replies score high, erratic gaps score low.
// Returns ok=false when timestamps are absent or there are too few gaps.
func timingSignal(window types.History) (float64, bool) {
	var gaps []float64
	for i := 1; i < len(window); i++ {
		if window[i].Timestamp.IsZero() || window[i-1].Timestamp.IsZero() {
			return 0, false
		}
		gaps = append(gaps, window[i].Timestamp.Sub(window[i-1].Timestamp).Seconds())
	}
	if len(gaps) < 2 {
		return 0, false
	}
	m := mean(gaps)
	if m <= 0 {
		return 0, false
	}
	return clamp01(1 - stdDev(gaps, m)/m), true
}

// keywordDensity is the share of topic-keyword occurrences among all words
// in the window. 0 when the window or the keyword set is empty.
func keywordDensity(window types.History, topicKeywords map[string]struct{}) float64 {
	if len(window) == 0 || len(topicKeywords) == 0 {
		return 0
	}
	var total, hits int
	for i := range window {
		for _, tok := range tokenize(window[i].Text) {
			total++
			if _, ok := topicKeywords[tok]; ok {
				hits++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

// topicDrift is 1 − min(1, 10 × keywordDensity) over the last 5 messages.
// Defaults: 0 with no messages or no topic keywords, 0.5 when the messages
// contain no extractable words at all.
func topicDrift(window types.History, topicKeywords map[string]struct{}, density float64) float64 {
	if len(window) == 0 || len(topicKeywords) == 0 {
		return 0
	}
	var words int
	for i := range window {
		words += len(tokenize(window[i].Text))
	}
	if words == 0 {
		return 0.5
	}
	return 1 - math.Min(1, 10*density)
}

// tension averages a length-bucketed base score, the exclamation/question
// mark frequency and the negative-word frequency, each clamped to [0,1].
// Default: 0 with no messages.
func tension(window types.History) float64 {
	if len(window) == 0 {
		return 0
	}

	avgLen := averageLength(window)
	base := 0.3
	switch {
	case avgLen < 30:
		base = 0.8
	case avgLen < 60:
		base = 0.5
	}

	var marks, negatives int
	for i := range window {
		marks += strings.Count(window[i].Text, "!") + strings.Count(window[i].Text, "?")
		for _, tok := range tokenize(window[i].Text) {
			if _, ok := negativeWords[tok]; ok {
				negatives++
			}
		}
	}
	n := float64(len(window))
	markScore := clamp01(float64(marks) / (2 * n))
	negScore := clamp01(float64(negatives) / n)

	return (clamp01(base) + markScore + negScore) / 3
}

// coherence is the fraction of adjacent message pairs in the window where
// the later message shares at least one keyword with the one before it.
// Default: 1 with fewer than 2 messages.
func coherence(window types.History) float64 {
	if len(window) < 2 {
		return 1
	}
	var linked int
	prev := extractKeywords(window[0].Text)
	for i := 1; i < len(window); i++ {
		cur := extractKeywords(window[i].Text)
		for k := range cur {
			if _, ok := prev[k]; ok {
				linked++
				break
			}
		}
		prev = cur
	}
	return float64(linked) / float64(len(window)-1)
}

// engagement averages the distinct-speaker ratio, a normalized
// length-variance term (stddev/mean capped at 1) and the fraction of
// messages containing a question mark, over the last 10 messages.
// Default: 0 with no messages.
func engagement(window types.History) float64 {
	if len(window) == 0 {
		return 0
	}

	roles := make(map[types.Role]struct{})
	var questions int
	lengths := make([]float64, len(window))
	for i := range window {
		roles[window[i].Role] = struct{}{}
		lengths[i] = float64(len(window[i].Text))
		if strings.Contains(window[i].Text, "?") {
			questions++
		}
	}

	speakerRatio := float64(len(roles)) / 3
	m := mean(lengths)
	variance := 0.0
	if m > 0 {
		variance = math.Min(1, stdDev(lengths, m)/m)
	}
	questionRatio := float64(questions) / float64(len(window))

	return (speakerRatio + variance + questionRatio) / 3
}

// humor scans the window for humor markers, adding 0.2 per match plus a flat
// 0.1 bonus per initiator message, divided by the window size and capped at 1.
// Default: 0 with no messages.
func humor(window types.History) float64 {
	if len(window) == 0 {
		return 0
	}
	var score float64
	for i := range window {
		text := strings.ToLower(window[i].Text)
		for _, marker := range humorMarkers {
			if strings.Contains(text, marker) {
				score += 0.2
			}
		}
		if window[i].Role == types.RoleInitiator {
			score += 0.1
		}
	}
	return math.Min(1, score/float64(len(window)))
}

// averageLength is the mean character count per utterance, 0 when empty.
func averageLength(window types.History) float64 {
	if len(window) == 0 {
		return 0
	}
	var total int
	for i := range window {
		total += len(window[i].Text)
	}
	return float64(total) / float64(len(window))
}

// interArrivalVariance is the sample variance of inter-arrival seconds over
// the whole history, 0 when timestamps are absent or fewer than 3 messages.
func interArrivalVariance(history types.History) float64 {
	if len(history) < 3 {
		return 0
	}
	var gaps []float64
	for i := 1; i < len(history); i++ {
		if history[i].Timestamp.IsZero() || history[i-1].Timestamp.IsZero() {
			return 0
		}
		gaps = append(gaps, history[i].Timestamp.Sub(history[i-1].Timestamp).Seconds())
	}
	m := mean(gaps)
	return variance(gaps, m)
}

// turnBalance is 1 minus the spread between the most and least talkative
// roles, normalized by total utterances. 1 when the history is empty.
func turnBalance(history types.History) float64 {
	if len(history) == 0 {
		return 1
	}
	minCount, maxCount := -1, 0
	for _, role := range types.AllRoles() {
		c := history.CountByRole(role)
		if c > maxCount {
			maxCount = c
		}
		if minCount < 0 || c < minCount {
			minCount = c
		}
	}
	return clamp01(1 - float64(maxCount-minCount)/float64(len(history)))
}

// repetitionRate is the share of repeated words in the window: 1 minus the
// distinct/total word ratio. 0 when the window has no words.
func repetitionRate(window types.History) float64 {
	distinct := make(map[string]struct{})
	var total int
	for i := range window {
		for _, tok := range tokenize(window[i].Text) {
			total++
			distinct[tok] = struct{}{}
		}
	}
	if total == 0 {
		return 0
	}
	return clamp01(1 - float64(len(distinct))/float64(total))
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func variance(values []float64, m float64) float64 {
	if len(values) < 2 {
		return 0
	}
	var sumSquares float64
	for _, v := range values {
		d := v - m
		sumSquares += d * d
	}
	return sumSquares / float64(len(values)-1)
}

func stdDev(values []float64, m float64) float64 {
	return math.Sqrt(variance(values, m))
}
