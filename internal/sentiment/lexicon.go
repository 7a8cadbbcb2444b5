package sentiment

import (
	"regexp"
	"strings"
)

// Lexicon weights. Entries appearing in more than one bucket contribute
// independently; that double-counting matches the reference scoring and
// changing it would shift scores materially.
const (
	strongNegativeWeight   = 2.0
	moderateNegativeWeight = 1.2
	mildNegativeWeight     = 0.5
	constructiveWeight     = 1.5
)

var positiveWords = []string{
	"good", "great", "excellent", "amazing", "wonderful", "fantastic", "love", "like",
	"happy", "pleased", "excited", "brilliant", "awesome", "perfect", "best", "beautiful",
	"agree", "support", "helpful", "valuable", "important", "appreciate", "thank",
	"constructive", "insightful", "interesting", "thoughtful", "reasonable", "fair",
	"solution", "opportunity", "progress", "hope", "optimistic", "positive", "inspiring",
	"refreshing", "enlightening", "grateful", "faith", "quality", "learning",
}

var strongNegativeWords = []string{
	"hate", "horrible", "terrible", "awful", "stupid", "ridiculous", "useless", "pointless",
	"disaster", "impossible", "hopeless", "destructive", "dangerous", "waste", "shit", "fuck",
	"damn", "crap",
}

var moderateNegativeWords = []string{
	"bad", "dislike", "angry", "upset", "disappointed", "frustrated", "worried",
	"concerned", "wrong", "problem", "issue", "failure", "harmful", "pessimistic",
	"negative", "fear", "threat", "oppose", "against",
}

// "disagree" can open a constructive exchange, so it carries the lightest weight.
var mildNegativeWords = []string{
	"disagree",
}

var constructivePhrases = []string{
	"understand", "perspective", "common ground", "together", "compromise", "balance",
	"both sides", "middle ground", "collaborate", "cooperation", "listen", "respect",
	"discussion", "dialogue", "conversation", "consider", "think about", "maybe",
	"perhaps", "could be", "might", "possibly", "research shows", "evidence",
	"study", "data", "facts", "information", "diverse", "viewpoints", "nuanced",
	"backing up", "well-reasoned", "civil", "respectful", "thoughtful discussion",
}

// contextModifiers are flat additive adjustments applied once when the phrase
// is present, regardless of how often it occurs.
var contextModifiers = []struct {
	phrase string
	bonus  float64
}{
	{"but i understand", 0.3},
	{"however i see", 0.2},
	{"while i disagree", 0.2},
	{"i respectfully disagree", 0.4},
	{"mixed results", 0}, // purely statistical framing stays neutral
	{"worth considering", 0.1},
}

// compilePattern builds a matcher for a lexicon entry: whole-word for single
// words, literal with whitespace-flexible gaps for multi-word phrases.
func compilePattern(entry string) *regexp.Regexp {
	fields := strings.Fields(entry)
	if len(fields) == 1 {
		return regexp.MustCompile(`\b` + regexp.QuoteMeta(entry) + `\b`)
	}
	quoted := make([]string, len(fields))
	for i, f := range fields {
		quoted[i] = regexp.QuoteMeta(f)
	}
	return regexp.MustCompile(strings.Join(quoted, `\s+`))
}

func compileAll(entries []string) []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, len(entries))
	for i, entry := range entries {
		patterns[i] = compilePattern(entry)
	}
	return patterns
}

var (
	positivePatterns         = compileAll(positiveWords)
	strongNegativePatterns   = compileAll(strongNegativeWords)
	moderateNegativePatterns = compileAll(moderateNegativeWords)
	mildNegativePatterns     = compileAll(mildNegativeWords)
	constructivePatterns     = compileAll(constructivePhrases)
	modifierPatterns         = func() []*regexp.Regexp {
		patterns := make([]*regexp.Regexp, len(contextModifiers))
		for i, m := range contextModifiers {
			patterns[i] = compilePattern(m.phrase)
		}
		return patterns
	}()
)
