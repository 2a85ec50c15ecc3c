// Package duration reconciles the running times of the time-based inputs into
// the single duration every rendition is cut to.
//
// Probing is best effort: an input that cannot be probed contributes a fixed
// fallback duration instead of failing the invocation. Each input's outcome
// is reported explicitly as Probed or Fallback so callers and tests can tell
// the two paths apart.
package duration
