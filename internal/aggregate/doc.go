// Package aggregate maintains the rolling sentiment summary per question.
//
// Recent messages are weighted double so the summary tracks the current mood
// of the discussion rather than its whole history. Each question gets an
// incremental tracker seeded once from stored messages, so a recompute after
// every new message is O(window) instead of O(history).
package aggregate
