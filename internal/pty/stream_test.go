package pty

import (
	"io"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamMasterEOFAfterSlaveClose(t *testing.T) {
	requirePTY(t)

	p, err := Allocate(DefaultSize())
	require.NoError(t, err)
	defer p.Close()

	dup, err := p.Master.Dup()
	require.NoError(t, err)
	s, err := wrapForAsync(dup, ChannelOut, true)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, p.CloseSlave())

	buf := make([]byte, 64)
	_, err = s.Read(buf)
	assert.ErrorIs(t, err, io.EOF)

	_, err = s.TryRead(buf)
	assert.ErrorIs(t, err, io.EOF)
}

func TestStreamTryRead(t *testing.T) {
	parent, child, err := socketPair("try")
	require.NoError(t, err)
	s, err := WrapForAsync(parent, ChannelOut)
	require.NoError(t, err)
	defer s.Close()

	buf := make([]byte, 64)
	_, err = s.TryRead(buf)
	assert.ErrorIs(t, err, ErrNoData)

	_, err = child.File().Write([]byte("ping"))
	require.NoError(t, err)
	n, err := s.TryRead(buf)
	require.NoError(t, err)
	assert.Equal(t, "ping", string(buf[:n]))

	require.NoError(t, child.Close())
	_, err = s.TryRead(buf)
	assert.ErrorIs(t, err, io.EOF)
}

func TestStreamReadDeadline(t *testing.T) {
	parent, child, err := socketPair("deadline")
	require.NoError(t, err)
	defer child.Close()
	s, err := WrapForAsync(parent, ChannelOut)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.SetReadDeadline(time.Now().Add(50*time.Millisecond)))
	start := time.Now()
	_, err = s.Read(make([]byte, 8))
	assert.ErrorIs(t, err, os.ErrDeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestStreamWriteAndClose(t *testing.T) {
	parent, child, err := socketPair("write")
	require.NoError(t, err)
	defer child.Close()
	s, err := WrapForAsync(parent, ChannelIn)
	require.NoError(t, err)

	n, err := s.Write([]byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	buf := make([]byte, 8)
	n, err = child.File().Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(buf[:n]))

	require.NoError(t, s.Close())
	assert.NoError(t, s.Close())
}
