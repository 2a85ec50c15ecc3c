//go:build !unix

package engine

import "os/exec"

func configureProcessGroup(*exec.Cmd) {}
