// Package testsupport builds isolated configurations and fixture files for
// tests across pipcast packages.
package testsupport
