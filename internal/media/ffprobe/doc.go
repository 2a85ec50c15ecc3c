// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// Inspect runs ffprobe and returns a Result; helper methods on Result expose
// duration, stream counts, audio presence, and still-image detection.
package ffprobe
