// Package sentiment implements keyword-based tone scoring for chat messages.
//
// Analyze is a pure function over a fixed lexicon: positive words, three
// severity tiers of negative words, constructive-dialogue phrases, and a
// handful of hedging context modifiers. No stemming, negation scoping, or
// sarcasm detection - that precision ceiling is accepted.
package sentiment
