package pidfile

import (
	"os"
	"path/filepath"
	"strconv"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireAndRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run", "ptyreap.pid")

	f, err := Acquire(path)
	require.NoError(t, err)
	assert.Equal(t, path, f.Path())

	pid, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)

	_, err = Acquire(path)
	assert.ErrorIs(t, err, ErrRunning)

	f.Release()
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestAcquireReplacesStaleFile(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"dead process", "2147483646\n"},
		{"garbage", "not a pid"},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "ptyreap.pid")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			f, err := Acquire(path)
			require.NoError(t, err)
			defer f.Release()

			pid, err := Read(path)
			require.NoError(t, err)
			assert.Equal(t, os.Getpid(), pid)
		})
	}
}

func TestReleaseKeepsForeignFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ptyreap.pid")
	f, err := Acquire(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte(strconv.Itoa(os.Getppid())), 0o644))
	f.Release()

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestSignal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ptyreap.pid")
	f, err := Acquire(path)
	require.NoError(t, err)
	defer f.Release()

	pid, err := Signal(path, syscall.Signal(0))
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)

	_, err = Signal(filepath.Join(t.TempDir(), "missing.pid"), syscall.Signal(0))
	assert.Error(t, err)
}
