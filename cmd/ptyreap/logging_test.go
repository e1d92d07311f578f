package main

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PiranhaCodes/ptyreap/internal/config"
	"github.com/PiranhaCodes/ptyreap/internal/pty"
)

func newFlagCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("log-level", "", "")
	cmd.Flags().BoolP("verbose", "v", false, "")
	return cmd
}

func TestConfigureLogger(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg, err := config.Load("")
	require.NoError(t, err)
	warn := logrus.WarnLevel

	tests := []struct {
		name     string
		args     []string
		fallback *logrus.Level
		want     logrus.Level
		wantErr  bool
	}{
		{name: "configured level", want: logrus.InfoLevel},
		{name: "fallback", fallback: &warn, want: logrus.WarnLevel},
		{name: "verbose", args: []string{"-v"}, fallback: &warn, want: logrus.DebugLevel},
		{name: "log level wins", args: []string{"-v", "--log-level", "error"}, want: logrus.ErrorLevel},
		{name: "invalid", args: []string{"--log-level", "loud"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := newFlagCommand()
			require.NoError(t, cmd.ParseFlags(tt.args))

			logger, err := configureLogger(cmd, cfg, tt.fallback)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, logger.GetLevel())
		})
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		status pty.ExitStatus
		want   int
	}{
		{pty.ExitStatus{Code: 0}, 0},
		{pty.ExitStatus{Code: 42}, 42},
		{pty.ExitStatus{Code: -1, Signaled: true, Signal: 15}, 143},
		{pty.ExitStatus{Code: -1, Signaled: true, Signal: 9}, 137},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, exitCode(tt.status), tt.status.String())
	}
}
