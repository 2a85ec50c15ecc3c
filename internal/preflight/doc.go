// Package preflight provides readiness checks for the media tools and
// filesystem paths that pipcast depends on.
//
// These checks run in two contexts:
//   - The daemon calls RunAll at startup and refuses to serve when a
//     required check fails.
//   - The CLI "pipcast status" command displays every result.
//
// Checks run concurrently; results keep a stable order.
package preflight
