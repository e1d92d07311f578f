package pty

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestStartChildSeesTerminal(t *testing.T) {
	requirePTY(t)
	requireCommand(t, "tty")

	proc, err := Start(Command{Path: "tty"}, Options{Size: DefaultSize()})
	require.NoError(t, err)
	defer proc.Close()

	ttyName := proc.(interface{ TTYName() string }).TTYName()

	c := newCapture()
	status, err := Reap(context.Background(), proc, c.sink, ReapOptions{})
	require.NoError(t, err)
	assert.True(t, status.Success(), status.String())

	out := strings.TrimSpace(c.stdout())
	assert.Regexp(t, regexp.MustCompile(`^/dev/(pts/\d+|tty\w+)$`), out)
	assert.Equal(t, ttyName, out)
}

func TestStartControllingTerminal(t *testing.T) {
	requirePTY(t)
	requireCommand(t, "sh")

	// /dev/tty opens only for a process with a controlling terminal.
	c, status := startAndReap(t, Command{
		Path: "sh",
		Args: []string{"-c", "exec 3</dev/tty && echo ctty-ok"},
	}, Options{Size: DefaultSize()})
	assert.True(t, status.Success(), status.String())
	assert.Contains(t, c.stdout(), "ctty-ok")
}

func TestStartSessionLeader(t *testing.T) {
	requirePTY(t)
	requireCommand(t, "sleep")

	proc, err := Start(Command{Path: "sleep", Args: []string{"30"}}, Options{Size: DefaultSize()})
	require.NoError(t, err)
	defer proc.Close()

	pid := proc.Pid()
	sid, err := unix.Getsid(pid)
	require.NoError(t, err)
	pgid, err := unix.Getpgid(pid)
	require.NoError(t, err)
	assert.Equal(t, pid, sid)
	assert.Equal(t, pid, pgid)

	require.NoError(t, proc.Kill())
	status, err := proc.Wait()
	require.NoError(t, err)
	assert.True(t, status.Signaled)
	assert.Equal(t, syscall.SIGKILL, status.Signal)
}

func TestStartAppliesSize(t *testing.T) {
	requirePTY(t)
	requireCommand(t, "sh", "stty")

	c, status := startAndReap(t, Command{
		Path: "sh",
		Args: []string{"-c", "stty size"},
	}, Options{Size: Size{Rows: 33, Cols: 101}})
	assert.True(t, status.Success(), status.String())
	assert.Contains(t, c.stdout(), "33 101")
}

var fdinfoFlags = regexp.MustCompile(`fdinfo/(\d):flags:\s+([0-7]+)`)

func TestStartChildStdioBlocking(t *testing.T) {
	requireCommand(t, "grep")
	if _, err := os.Stat("/proc/self/fdinfo/0"); err != nil {
		t.Skipf("/proc/self/fdinfo unavailable: %v", err)
	}

	cmd := Command{Path: "grep", Args: []string{"flags", "/proc/self/fdinfo/0", "/proc/self/fdinfo/1", "/proc/self/fdinfo/2"}}
	tests := []struct {
		name string
		opts Options
	}{
		{"terminal", Options{Size: DefaultSize()}},
		{"terminal separate stderr", Options{Size: DefaultSize(), Stderr: StderrSeparate}},
		{"direct", Options{Mode: ModeDirect}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.opts.Mode == ModePTY {
				requirePTY(t)
			}
			c, status := startAndReap(t, cmd, tt.opts)
			require.True(t, status.Success(), status.String())

			matches := fdinfoFlags.FindAllStringSubmatch(c.stdout(), -1)
			require.Len(t, matches, 3, c.stdout())
			for _, m := range matches {
				flags, err := strconv.ParseUint(m[2], 8, 64)
				require.NoError(t, err)
				assert.Zero(t, flags&unix.O_NONBLOCK, "fd %s has O_NONBLOCK (flags %s)", m[1], m[2])
			}
		})
	}
}

var sigIgnMask = regexp.MustCompile(`SigIgn:\s+([0-9a-f]+)`)

func TestStartResetsIgnoredSignals(t *testing.T) {
	requirePTY(t)
	requireCommand(t, "grep")
	if _, err := os.Stat("/proc/self/status"); err != nil {
		t.Skipf("/proc/self/status unavailable: %v", err)
	}

	signal.Ignore(syscall.SIGHUP, syscall.SIGALRM)
	t.Cleanup(func() { signal.Reset(syscall.SIGHUP, syscall.SIGALRM) })

	c, status := startAndReap(t, Command{Path: "grep", Args: []string{"SigIgn", "/proc/self/status"}}, Options{Size: DefaultSize()})
	require.True(t, status.Success(), status.String())

	m := sigIgnMask.FindStringSubmatch(c.stdout())
	require.NotNil(t, m, c.stdout())
	mask, err := strconv.ParseUint(m[1], 16, 64)
	require.NoError(t, err)
	for _, sig := range []syscall.Signal{syscall.SIGHUP, syscall.SIGALRM} {
		assert.Zero(t, mask&(1<<(uint(sig)-1)), "%s ignored in child (SigIgn %s)", sig, m[1])
	}
}

func TestStartMissingCommand(t *testing.T) {
	requirePTY(t)

	// Warm up the poller so its descriptors are not counted as a leak.
	warm, err := Allocate(DefaultSize())
	require.NoError(t, err)
	warm.Close()

	tests := []struct {
		name string
		mode Mode
	}{
		{"pty", ModePTY},
		{"direct", ModeDirect},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := openFDs(t)
			_, err := Start(Command{Path: "/nonexistent/ptyreap-no-such-command"}, Options{Mode: tt.mode})
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrSpawn)
			assert.ErrorIs(t, err, os.ErrNotExist)

			var lerr *LaunchError
			require.ErrorAs(t, err, &lerr)
			assert.Equal(t, KindSpawn, lerr.Kind)
			assert.Equal(t, before, openFDs(t))
		})
	}
}

func TestStartNotExecutable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "script")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"), 0o644))

	_, err := Start(Command{Path: path}, Options{Mode: ModeDirect})
	assert.ErrorIs(t, err, ErrSpawn)
}

func TestStartNoDescriptorLeak(t *testing.T) {
	requirePTY(t)
	requireCommand(t, "true")

	warm, err := Allocate(DefaultSize())
	require.NoError(t, err)
	warm.Close()

	before := openFDs(t)
	proc, err := Start(Command{Path: "true"}, Options{Size: DefaultSize(), Stderr: StderrSeparate})
	require.NoError(t, err)
	_, err = Reap(context.Background(), proc, nil, ReapOptions{DrainTimeout: time.Second})
	require.NoError(t, err)
	require.NoError(t, proc.Close())

	assert.Equal(t, before, openFDs(t))
}

func TestDirectProcessHasNoTerminal(t *testing.T) {
	requireCommand(t, "sh")

	proc, err := Start(Command{Path: "sh", Args: []string{"-c", "test -t 0 || echo no-tty"}}, Options{Mode: ModeDirect})
	require.NoError(t, err)
	defer proc.Close()

	assert.ErrorIs(t, proc.Resize(DefaultSize()), ErrNotTerminal)

	c := newCapture()
	status, err := Reap(context.Background(), proc, c.sink, ReapOptions{})
	require.NoError(t, err)
	assert.True(t, status.Success())
	assert.Equal(t, "no-tty\n", c.stdout())
}

func TestParseStderrMode(t *testing.T) {
	tests := []struct {
		in      string
		want    StderrMode
		wantErr bool
	}{
		{"", StderrMerged, false},
		{"merged", StderrMerged, false},
		{"separate", StderrSeparate, false},
		{"both", StderrMerged, true},
	}
	for _, tt := range tests {
		got, err := ParseStderrMode(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
		if tt.in != "" {
			assert.Equal(t, tt.in, got.String())
		}
	}
}
