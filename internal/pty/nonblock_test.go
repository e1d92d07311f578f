package pty

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetNonblockingToggles(t *testing.T) {
	parent, child, err := socketPair("toggle")
	require.NoError(t, err)
	defer closeAll(parent, child)

	fd := parent.Fd()
	require.NoError(t, SetNonblocking(fd, false))
	nb, err := IsNonblocking(fd)
	require.NoError(t, err)
	assert.False(t, nb)

	require.NoError(t, MakeNonblocking(fd))
	nb, err = IsNonblocking(fd)
	require.NoError(t, err)
	assert.True(t, nb)

	// The flag belongs to the open file description, so duplicates see it.
	dup, err := parent.Dup()
	require.NoError(t, err)
	defer dup.Close()
	nb, err = IsNonblocking(dup.Fd())
	require.NoError(t, err)
	assert.True(t, nb)
}

func TestWrapForAsyncSocket(t *testing.T) {
	parent, child, err := socketPair("wrap")
	require.NoError(t, err)
	defer closeAll(child)

	s, err := WrapForAsync(parent, ChannelOut)
	require.NoError(t, err)
	defer s.Close()

	assert.True(t, parent.Closed(), "wrapping consumes the descriptor")
	assert.True(t, s.Pollable())
	assert.Equal(t, ChannelOut, s.Channel())

	var nb bool
	require.NoError(t, s.control(func(fd int) { nb, err = IsNonblocking(fd) }))
	require.NoError(t, err)
	assert.True(t, nb)
}

func TestWrapForAsyncRegularFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))
	f, err := os.Open(path)
	require.NoError(t, err)

	s, err := WrapForAsync(NewDescriptor(f), ChannelOut)
	require.NoError(t, err)
	defer s.Close()

	assert.False(t, s.Pollable())

	var nb bool
	require.NoError(t, s.control(func(fd int) { nb, err = IsNonblocking(fd) }))
	require.NoError(t, err)
	assert.False(t, nb)

	buf := make([]byte, 16)
	n, err := s.TryRead(buf)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf[:n]))
}

func TestWrapForAsyncClosedDescriptor(t *testing.T) {
	d := &Descriptor{}
	_, err := WrapForAsync(d, ChannelIn)
	assert.ErrorIs(t, err, os.ErrClosed)
}
