// Package graph builds the layered composition graph for one rendition.
//
// A Graph is an ordered list of typed Nodes (scale, crop, alpha merge, blur,
// overlay, pad, ...) wired together by labels. Build is a pure function of
// the profile, the backend, and which optional inputs are present; the same
// arguments always yield the same graph. Validate checks that the graph is a
// single-terminal DAG ending at the label "out", and Serialize renders it as
// an ffmpeg filter_complex script.
package graph
