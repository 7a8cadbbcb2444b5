package sentiment

import (
	"math"
	"regexp"
	"strings"
)

// Sentiment labels ordered from most to least favorable.
const (
	LabelConstructive = "constructive"
	LabelPositive     = "positive"
	LabelNeutral      = "neutral"
	LabelCritical     = "critical"
	LabelNegative     = "negative"
)

// Result holds the outcome of scoring a single message.
type Result struct {
	// Score is the normalized tone in [-1, 1].
	Score float64
	// Magnitude is the keyword density in [0, 1], independent of direction.
	Magnitude float64
}

// Analyze scores a message by lexicon matching. It is pure and safe for
// concurrent use; identical input always yields an identical result.
func Analyze(text string) Result {
	lower := strings.ToLower(text)

	positive := float64(countMatches(lower, positivePatterns))
	negative := strongNegativeWeight*float64(countMatches(lower, strongNegativePatterns)) +
		moderateNegativeWeight*float64(countMatches(lower, moderateNegativePatterns)) +
		mildNegativeWeight*float64(countMatches(lower, mildNegativePatterns))
	constructive := constructiveWeight * float64(countMatches(lower, constructivePatterns))

	adjustment := 0.0
	for i, m := range contextModifiers {
		if modifierPatterns[i].MatchString(lower) {
			adjustment += m.bonus
		}
	}

	words := len(strings.Fields(text))
	if words < 1 {
		words = 1
	}

	net := positive + constructive + adjustment - negative
	score := clamp(net/float64(words), -1, 1)
	magnitude := clamp((positive+negative+constructive)/float64(words), 0, 1)

	return Result{
		Score:     round3(score),
		Magnitude: round3(magnitude),
	}
}

// Label maps a score to its categorical bucket.
func Label(score float64) string {
	switch {
	case score > 0.3:
		return LabelConstructive
	case score > 0.1:
		return LabelPositive
	case score > -0.1:
		return LabelNeutral
	case score > -0.3:
		return LabelCritical
	default:
		return LabelNegative
	}
}

func countMatches(text string, patterns []*regexp.Regexp) int {
	total := 0
	for _, p := range patterns {
		total += len(p.FindAllStringIndex(text, -1))
	}
	return total
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
