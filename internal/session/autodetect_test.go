package session

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectShellPrefersArgument(t *testing.T) {
	dir := t.TempDir()
	shell := filepath.Join(dir, "myshell")
	require.NoError(t, os.WriteFile(shell, []byte("#!/bin/sh\n"), 0o755))

	got, err := DetectShell(shell)
	require.NoError(t, err)
	assert.Equal(t, shell, got)
}

func TestDetectShellFallsBack(t *testing.T) {
	if !isExecutable("/bin/sh") {
		t.Skip("/bin/sh not available")
	}
	t.Setenv("SHELL", "/nonexistent/shell")

	got, err := DetectShell("/nonexistent/preferred")
	require.NoError(t, err)
	assert.True(t, isExecutable(got), got)
}

func TestIsExecutable(t *testing.T) {
	dir := t.TempDir()
	plain := filepath.Join(dir, "plain")
	require.NoError(t, os.WriteFile(plain, nil, 0o644))

	assert.False(t, isExecutable(plain))
	assert.False(t, isExecutable(dir))
	assert.False(t, isExecutable("relative/sh"))
}
