// Package notifications announces finished render jobs via ntfy.
//
// NewService returns a no-op implementation when no topic is configured, so
// callers publish unconditionally. Successful jobs are only announced when
// notify_success is enabled; failed and partial jobs always are.
package notifications
