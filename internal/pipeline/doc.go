// Package pipeline runs observation cycles end to end: segment extraction
// from the elevation grid, one tracker Advance, then optional persistence.
//
// Cycles run sequentially on the caller's goroutine. Context cancellation is
// honoured between cycles, never inside one.
package pipeline
