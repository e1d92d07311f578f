package session

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// DetectShell finds the first available shell in order of preference:
// 1. preferred, when non-empty
// 2. $SHELL environment variable
// 3. /bin/bash
// 4. /bin/zsh
// 5. /bin/sh
// Returns an error if none are found.
func DetectShell(preferred string) (string, error) {
	if preferred != "" {
		if isExecutable(preferred) {
			return preferred, nil
		}
		if path, err := exec.LookPath(preferred); err == nil {
			return path, nil
		}
	}

	if shell := os.Getenv("SHELL"); shell != "" {
		if isExecutable(shell) {
			return shell, nil
		}
	}

	candidates := []string{
		"/bin/bash",
		"/bin/zsh",
		"/bin/sh",
	}

	for _, candidate := range candidates {
		if isExecutable(candidate) {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("no shell found: checked preferred, $SHELL, /bin/bash, /bin/zsh, /bin/sh")
}

// isExecutable checks if a regular file exists and has an execute bit.
func isExecutable(path string) bool {
	if !filepath.IsAbs(path) {
		return false
	}
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	mode := info.Mode()
	return mode.IsRegular() && mode&0111 != 0
}
