// Package services defines shared utilities consumed by the pipeline stages and
// the external tool adapters.
//
// Key responsibilities:
//   - Context helpers that stamp invocation IDs, stage names, renditions, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper so callers can classify a
//     failure (validation, mask, execution, cleanup) with errors.Is.
//
// Use these helpers when wiring new stage logic so error handling and
// observability stay uniform across the pipeline.
package services
