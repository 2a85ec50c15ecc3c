// Package engine runs one rendition through the ffmpeg command-line tool.
//
// Job describes the inputs, the serialized filter graph, and the encoder
// settings. FFmpeg turns a Job into an argument vector, launches the process
// in its own process group, streams the machine-readable progress blocks
// from stdout, and keeps the last stderr lines for diagnostics. Cancelling
// the context kills the whole process group.
package engine
