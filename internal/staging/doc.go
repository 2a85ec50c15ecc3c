// Package staging owns the per-invocation workspaces that hold uploaded
// inputs while a render runs, and sweeps workspaces abandoned by crashed
// invocations.
package staging
