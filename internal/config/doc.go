// Package config loads, normalizes, and validates pipcast configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and overlays PIPCAST_* environment variables,
// optionally sourced from a .env file. The Config type centralizes every knob
// the daemon and CLI need so directories, engine binaries, and encoder
// parameters are discovered in one pass.
package config
