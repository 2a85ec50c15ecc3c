// Package main hosts the pipcast CLI entrypoint and command graph.
//
// Commands render a screen recording and a face recording into the
// configured picture-in-picture profiles on the local machine, inspect
// inputs, pre-generate mask assets, report host readiness, and run the HTTP
// render daemon in the foreground. Rendering itself lives in
// internal/pipeline; this package only parses flags and presents results.
package main
