// Package backend decides whether a pipeline invocation renders on the
// hardware encoder or in software, and carries the encoder parameters for
// each choice.
//
// The hardware probe encodes a single synthetic frame with the hardware
// encoder. Any failure selects Software, which is always assumed available.
// The probe runs once per invocation; its answer is never cached because
// driver and device availability change underneath a long-running daemon.
package backend
