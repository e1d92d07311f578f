package config

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PiranhaCodes/ptyreap/internal/pty"
)

func TestLoadDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, err := Load("")
	require.NoError(t, err)

	socket, err := cfg.Socket()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".ptyreap", "pty.sock"), socket)
	pidFile, err := cfg.PIDFile()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".ptyreap", "ptyreap.pid"), pidFile)
	assert.Equal(t, pty.DefaultSize(), cfg.Size())
	assert.Equal(t, pty.DefaultDrainTimeout, cfg.DrainTimeout())
	assert.Equal(t, pty.DefaultKillGrace, cfg.KillGrace())
	assert.Equal(t, pty.DefaultInputBuffer, cfg.InputBuffer())

	level, err := cfg.LogLevel()
	require.NoError(t, err)
	assert.Equal(t, logrus.InfoLevel, level)

	stderr, err := cfg.Stderr()
	require.NoError(t, err)
	assert.Equal(t, pty.StderrMerged, stderr)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ptyreap.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
socket: /tmp/custom.sock
log_level: debug
terminal:
  rows: 50
  cols: 160
  stderr: separate
reap:
  drain_timeout: 250ms
`), 0o644))
	t.Setenv("PTYREAP_REAP_KILL_GRACE", "2s")
	t.Setenv("PTYREAP_SOCKET", "/tmp/env.sock")

	cfg, err := Load(path)
	require.NoError(t, err)

	socket, err := cfg.Socket()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/env.sock", socket, "environment wins over the file")
	assert.Equal(t, pty.Size{Rows: 50, Cols: 160}, cfg.Size())
	assert.Equal(t, 250*time.Millisecond, cfg.DrainTimeout())
	assert.Equal(t, 2*time.Second, cfg.KillGrace())

	level, err := cfg.LogLevel()
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, level)

	opts, err := cfg.SessionOptions(nil)
	require.NoError(t, err)
	assert.Equal(t, pty.StderrSeparate, opts.Stderr)
	assert.Equal(t, 250*time.Millisecond, opts.DrainTimeout)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestInvalidValues(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg, err := Load("")
	require.NoError(t, err)

	cfg.Set("log_level", "loud")
	_, err = cfg.LogLevel()
	assert.Error(t, err)

	cfg.Set("terminal.stderr", "both")
	_, err = cfg.SessionOptions(nil)
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name     string
		logLevel logrus.Level
	}{
		{name: "debug level", logLevel: logrus.DebugLevel},
		{name: "info level", logLevel: logrus.InfoLevel},
		{name: "warn level", logLevel: logrus.WarnLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := NewLogger(tt.logLevel, io.Discard)

			assert.Equal(t, tt.logLevel, logger.GetLevel())
			formatter, ok := logger.Formatter.(*logrus.TextFormatter)
			require.True(t, ok)
			assert.True(t, formatter.FullTimestamp)
			assert.Equal(t, time.RFC3339, formatter.TimestampFormat)
		})
	}
}

func TestExpandPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"~", home},
		{"~/x/y.sock", filepath.Join(home, "x", "y.sock")},
		{"/abs/path", "/abs/path"},
		{"~user/path", "~user/path"},
	}
	for _, tt := range tests {
		got, err := ExpandPath(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, tt.in)
	}
}
