package pty

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSocketInput(t *testing.T, capacity int) (*Input, *Descriptor) {
	t.Helper()
	parent, child, err := socketPair("input")
	require.NoError(t, err)
	s, err := WrapForAsync(parent, ChannelIn)
	require.NoError(t, err)
	in := newInput(s, capacity, nil)
	t.Cleanup(func() {
		in.Close()
		child.Close()
	})
	return in, child
}

func TestInputPreservesOrderPastCapacity(t *testing.T) {
	in, child := newSocketInput(t, 16)

	want := bytes.Repeat([]byte("0123456789abcdef"), 4096)
	go func() {
		for off := 0; off < len(want); off += 1000 {
			end := min(off+1000, len(want))
			if _, err := in.Write(want[off:end]); err != nil {
				return
			}
		}
		in.CloseInput()
	}()

	got, err := io.ReadAll(child.File())
	require.NoError(t, err)
	assert.Equal(t, want, got)
	<-in.Done()
	assert.Equal(t, uint64(len(want)), in.Written())
	assert.Zero(t, in.Pending())
}

func TestInputCloseInputRejectsWrites(t *testing.T) {
	in, child := newSocketInput(t, 0)

	_, err := in.Write([]byte("last"))
	require.NoError(t, err)
	require.NoError(t, in.CloseInput())
	require.NoError(t, in.CloseInput())

	_, err = in.Write([]byte("more"))
	assert.ErrorIs(t, err, ErrInputClosed)

	got, err := io.ReadAll(child.File())
	require.NoError(t, err)
	assert.Equal(t, "last", string(got))
}

func TestInputWriteFailureIsReported(t *testing.T) {
	in, child := newSocketInput(t, 0)
	require.NoError(t, child.Close())

	_, err := in.Write([]byte("data"))
	require.NoError(t, err)
	<-in.Done()

	_, err = in.Write([]byte("more"))
	assert.Error(t, err)

	var berr *BridgeError
	require.ErrorAs(t, in.Err(), &berr)
	assert.Equal(t, ChannelIn, berr.Channel)
	assert.Equal(t, "write", berr.Op)
}
