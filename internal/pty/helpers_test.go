package pty

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// requirePTY skips the test when pseudo-terminals cannot be allocated.
func requirePTY(t *testing.T) {
	t.Helper()
	p, err := Allocate(DefaultSize())
	if err != nil {
		t.Skipf("pseudo-terminals unavailable: %v", err)
	}
	p.Close()
}

func requireCommand(t *testing.T, names ...string) {
	t.Helper()
	for _, name := range names {
		if _, err := exec.LookPath(name); err != nil {
			t.Skipf("%s not available: %v", name, err)
		}
	}
}

// openFDs counts the descriptors open in this process.
func openFDs(t *testing.T) int {
	t.Helper()
	entries, err := os.ReadDir("/proc/self/fd")
	if err != nil {
		t.Skipf("/proc/self/fd unavailable: %v", err)
	}
	return len(entries)
}

// capture records reap events per channel.
type capture struct {
	mu      sync.Mutex
	out     bytes.Buffer
	err     bytes.Buffer
	eofs    map[Channel]int
	errs    []error
	lateOut bool // data seen after a channel's EOF
	onData  func(Channel, []byte)
}

func newCapture() *capture {
	return &capture{eofs: make(map[Channel]int)}
}

func (c *capture) sink(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case ev.EOF:
		c.eofs[ev.Channel]++
	case ev.Err != nil:
		c.errs = append(c.errs, ev.Err)
	default:
		if c.eofs[ev.Channel] > 0 {
			c.lateOut = true
		}
		if ev.Channel == ChannelErr {
			c.err.Write(ev.Data)
		} else {
			c.out.Write(ev.Data)
		}
		if c.onData != nil {
			c.onData(ev.Channel, ev.Data)
		}
	}
}

func (c *capture) stdout() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.out.String()
}

func (c *capture) stderr() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err.String()
}

// startAndReap runs cmd to completion and returns what it produced.
func startAndReap(t *testing.T, cmd Command, opts Options) (*capture, ExitStatus) {
	t.Helper()
	proc, err := Start(cmd, opts)
	require.NoError(t, err)
	t.Cleanup(func() { proc.Close() })

	c := newCapture()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	status, err := Reap(ctx, proc, c.sink, ReapOptions{DrainTimeout: 2 * time.Second})
	require.NoError(t, err)
	return c, status
}
