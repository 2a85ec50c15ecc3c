// Package api defines wire-format types and the in-memory render job service
// behind the daemon's HTTP surface.
//
// # Key Types
//
// Job: transport snapshot of an asynchronous render with its latest progress
// record and, once finished, the render result.
//
// JobService: runs renders through a Renderer under a weighted semaphore,
// keeps each job's progress timeline for replay, fans new events out to
// subscribers, and trims finished jobs beyond the configured history.
//
// ProfileInfo, DaemonStatus: catalog and health payloads.
//
// # Design Notes
//
// DTOs use camelCase JSON tags for JavaScript consumers. Timestamps use
// RFC3339 with milliseconds. Progress events are passed through in their own
// wire shape so a stream and a replay look identical to the client.
package api
