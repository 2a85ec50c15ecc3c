// Package geometry holds the immutable table of output profiles: canvas sizes
// and the position, size, corner radii, and stacking order of every layer.
//
// The table is built once at package initialization from constants and is
// validated by tests; nothing in the process mutates it afterwards.
package geometry
