// Package masks produces the rounded-rectangle alpha masks used to cut
// corners off composited layers.
//
// Masks are content-addressed by their (width, height, top radius, bottom
// radius) key and cached on disk. The cache is shared by every invocation in
// the process and by other processes pointed at the same directory, so
// generation is deduplicated in-process, serialized across processes with a
// lock file, and published with an atomic rename. Readers never observe a
// partially written mask.
package masks
