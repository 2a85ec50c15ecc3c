// Package pipeline runs one render invocation end to end.
//
// Service.Run validates the request, stages the payloads into a private
// workspace, reconciles the render duration, probes the encode backend,
// ensures the mask assets, and then renders each selected profile in turn.
// The workspace is removed on every exit path. Progress flows to a
// progress.Sink chosen by the caller, so the same pipeline serves blocking,
// streaming, and asynchronous callers.
package pipeline
