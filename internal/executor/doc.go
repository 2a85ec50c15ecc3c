// Package executor drives one rendition through the engine as a small
// state machine: Idle, Submitted, Running, then Completed or Failed.
//
// A rendition planned for the hardware backend that fails is planned again
// for software and submitted exactly once more. A rendition only counts as
// Completed when the engine exits cleanly and the output file exists.
// Every transition is reported to an optional observer so callers can
// surface progress and record metrics.
package executor
