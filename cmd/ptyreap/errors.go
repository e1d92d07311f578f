package main

import (
	"fmt"

	"github.com/PiranhaCodes/ptyreap/internal/pty"
)

// exitCodeError carries a child's exit status out of a command so main can
// exit with the same code.
type exitCodeError struct {
	code int
}

func (e *exitCodeError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

// exitCode maps a child's status onto a shell-style exit code.
func exitCode(status pty.ExitStatus) int {
	if status.Signaled {
		return 128 + int(status.Signal)
	}
	return status.Code
}
