// Package daemon coordinates the long-running pipcast process.
//
// It wires configuration, the render job service, metrics, and the HTTP
// surface into a single lifecycle with flock-based locking to prevent
// multiple instances sharing a work directory. At start and then hourly the
// daemon sweeps abandoned workspaces and prunes rendered outputs past their
// retention.
//
// Keep orchestration logic here: rendering lives in internal/pipeline and
// job bookkeeping in internal/api, while the daemon focuses on startup,
// shutdown, and request plumbing.
package daemon
