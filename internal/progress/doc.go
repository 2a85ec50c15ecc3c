// Package progress merges pipeline and per-rendition progress into one
// ordered, monotonic 0-100 timeline and fans it out to sinks.
//
// Fixed bands: staging reports 5, staged inputs 10, renditions share 15
// through 95 in equal slices, cleanup reports 98, and the final record is
// either complete at 100 or an error naming each failing rendition.
package progress
