// Package config handles ptyreap configuration using Viper.
//
// Configuration sources (in priority order):
//  1. Environment variables (PTYREAP_*)
//  2. Config file (~/.config/ptyreap/config.yaml, or --config)
//  3. Built-in defaults
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/PiranhaCodes/ptyreap/internal/pty"
	"github.com/PiranhaCodes/ptyreap/internal/session"
)

const (
	// DefaultSocket is the control socket the daemon listens on.
	DefaultSocket = "~/.ptyreap/pty.sock"
	// DefaultSessionsDir holds per-session output FIFOs.
	DefaultSessionsDir = "~/.ptyreap/sessions"
	// DefaultLogDir holds per-session transcripts.
	DefaultLogDir = "~/.ptyreap/log"
	// DefaultPIDFile records the running daemon.
	DefaultPIDFile = "~/.ptyreap/ptyreap.pid"
)

// Config holds the ptyreap configuration.
type Config struct {
	v *viper.Viper
}

// Load reads configuration from all sources. A non-empty file overrides
// the default config location; unlike the default, it must exist.
func Load(file string) (*Config, error) {
	v := viper.New()

	v.SetDefault("socket", DefaultSocket)
	v.SetDefault("sessions_dir", DefaultSessionsDir)
	v.SetDefault("log_dir", DefaultLogDir)
	v.SetDefault("pid_file", DefaultPIDFile)
	v.SetDefault("log_level", "info")
	v.SetDefault("shell", "")
	v.SetDefault("terminal.rows", pty.DefaultSize().Rows)
	v.SetDefault("terminal.cols", pty.DefaultSize().Cols)
	v.SetDefault("terminal.stderr", pty.StderrMerged.String())
	v.SetDefault("reap.drain_timeout", pty.DefaultDrainTimeout)
	v.SetDefault("reap.kill_grace", pty.DefaultKillGrace)
	v.SetDefault("io.input_buffer", pty.DefaultInputBuffer)
	v.SetDefault("io.backlog", 256*1024)

	if file != "" {
		v.SetConfigFile(file)
	} else if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "ptyreap"))
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("PTYREAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return &Config{v: v}, nil
}

// Set overrides a value for this process only.
func (c *Config) Set(key string, value interface{}) {
	c.v.Set(key, value)
}

// All returns all configuration as a map.
func (c *Config) All() map[string]interface{} {
	return c.v.AllSettings()
}

// Socket returns the control socket path.
func (c *Config) Socket() (string, error) {
	return ExpandPath(c.v.GetString("socket"))
}

// PIDFile returns the daemon PID file path.
func (c *Config) PIDFile() (string, error) {
	return ExpandPath(c.v.GetString("pid_file"))
}

// LogLevel parses log_level.
func (c *Config) LogLevel() (logrus.Level, error) {
	level, err := logrus.ParseLevel(c.v.GetString("log_level"))
	if err != nil {
		return logrus.InfoLevel, fmt.Errorf("invalid log_level: %w", err)
	}
	return level, nil
}

// Size returns the default terminal size.
func (c *Config) Size() pty.Size {
	return pty.Size{
		Rows: uint16(c.v.GetUint("terminal.rows")),
		Cols: uint16(c.v.GetUint("terminal.cols")),
	}.OrDefault()
}

// Stderr returns the default stderr mode.
func (c *Config) Stderr() (pty.StderrMode, error) {
	return pty.ParseStderrMode(c.v.GetString("terminal.stderr"))
}

// DrainTimeout returns reap.drain_timeout.
func (c *Config) DrainTimeout() time.Duration {
	return c.v.GetDuration("reap.drain_timeout")
}

// KillGrace returns reap.kill_grace.
func (c *Config) KillGrace() time.Duration {
	return c.v.GetDuration("reap.kill_grace")
}

// InputBuffer returns io.input_buffer.
func (c *Config) InputBuffer() int {
	return c.v.GetInt("io.input_buffer")
}

// SessionOptions assembles the session manager options.
func (c *Config) SessionOptions(logger *logrus.Logger) (session.Options, error) {
	stderr, err := c.Stderr()
	if err != nil {
		return session.Options{}, err
	}
	sessionsDir, err := ExpandPath(c.v.GetString("sessions_dir"))
	if err != nil {
		return session.Options{}, fmt.Errorf("failed to expand sessions directory: %w", err)
	}
	logDir, err := ExpandPath(c.v.GetString("log_dir"))
	if err != nil {
		return session.Options{}, fmt.Errorf("failed to expand log directory: %w", err)
	}
	return session.Options{
		SessionsDir:  sessionsDir,
		LogDir:       logDir,
		Shell:        c.v.GetString("shell"),
		Size:         c.Size(),
		Stderr:       stderr,
		DrainTimeout: c.DrainTimeout(),
		KillGrace:    c.KillGrace(),
		InputBuffer:  c.InputBuffer(),
		BacklogSize:  c.v.GetInt("io.backlog"),
		Logger:       logger,
	}, nil
}

// ExpandPath expands the tilde (~) character to the user's home directory.
func ExpandPath(path string) (string, error) {
	if len(path) == 0 {
		return path, nil
	}

	if path[0] == '~' {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		if len(path) == 1 {
			return homeDir, nil
		}
		if path[1] == '/' || path[1] == '\\' {
			return filepath.Join(homeDir, path[2:]), nil
		}
	}

	return path, nil
}
