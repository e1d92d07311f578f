package pty

import (
	"errors"
	"io"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"github.com/smallnest/ringbuffer"
	"golang.org/x/sys/unix"
)

// DefaultInputBuffer is the capacity of the input queue in bytes.
const DefaultInputBuffer = 64 * 1024

// Input is the writable side of a bridge. Writes are queued in order and a
// pump goroutine copies them to the descriptor, resuming short writes. Bytes
// written before the child starts reading are held by the queue and the
// terminal driver until it does.
type Input struct {
	s      *Stream
	ring   *ringbuffer.RingBuffer
	logger *logrus.Entry

	closed  atomic.Bool
	written atomic.Uint64

	mu  sync.Mutex
	err error

	done chan struct{}
}

func newInput(s *Stream, capacity int, logger *logrus.Logger) *Input {
	if capacity <= 0 {
		capacity = DefaultInputBuffer
	}
	in := &Input{
		s:      s,
		ring:   ringbuffer.New(capacity).SetBlocking(true),
		logger: loggerOrDiscard(logger).WithField("channel", ChannelIn.String()),
		done:   make(chan struct{}),
	}
	go in.pump()
	return in
}

// Write queues p. It blocks while the queue is full and only returns a short
// count together with an error.
func (in *Input) Write(p []byte) (int, error) {
	if in.closed.Load() {
		return 0, ErrInputClosed
	}
	if err := in.Err(); err != nil {
		return 0, err
	}
	n, err := in.ring.Write(p)
	if err != nil {
		if in.closed.Load() {
			return n, ErrInputClosed
		}
		if perr := in.Err(); perr != nil {
			return n, perr
		}
		return n, err
	}
	return n, nil
}

// Pending returns the number of queued bytes not yet handed to the OS.
func (in *Input) Pending() int {
	return in.ring.Length()
}

// Written returns the number of bytes handed to the OS so far.
func (in *Input) Written() uint64 {
	return in.written.Load()
}

// Err returns the write error that stopped the pump, if any.
func (in *Input) Err() error {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.err
}

// CloseInput stops accepting writes. Queued bytes are still delivered; on a
// terminal the end-of-file character follows them.
func (in *Input) CloseInput() error {
	if in.closed.CompareAndSwap(false, true) {
		in.ring.CloseWriter()
	}
	return nil
}

// Close discards queued bytes, stops the pump and closes the descriptor.
func (in *Input) Close() error {
	in.closed.Store(true)
	in.ring.CloseWithError(ErrInputClosed)
	err := in.s.Close()
	<-in.done
	return err
}

// Done is closed when the pump has exited.
func (in *Input) Done() <-chan struct{} {
	return in.done
}

func (in *Input) pump() {
	defer close(in.done)

	buf := make([]byte, 4096)
	for {
		n, err := in.ring.Read(buf)
		if n > 0 {
			if werr := in.writeAll(buf[:n]); werr != nil {
				in.fail(werr)
				return
			}
		}
		if err == nil {
			continue
		}
		if errors.Is(err, io.EOF) {
			in.sendEOF()
		}
		return
	}
}

func (in *Input) writeAll(b []byte) error {
	for off := 0; off < len(b); {
		n, err := in.s.Write(b[off:])
		if n > 0 {
			off += n
			in.written.Add(uint64(n))
		}
		if err != nil {
			return &BridgeError{Channel: ChannelIn, Op: "write", Err: err}
		}
	}
	return nil
}

func (in *Input) fail(err error) {
	in.mu.Lock()
	if in.err == nil {
		in.err = err
	}
	in.mu.Unlock()
	in.logger.Warnf("input pump stopped: %v", err)
	in.ring.CloseWithError(err)
}

// sendEOF tells the child no more input follows: the VEOF character on a
// terminal, a write shutdown on a socket.
func (in *Input) sendEOF() {
	if in.s.terminal {
		if err := in.writeAll([]byte{in.eofChar()}); err != nil {
			in.logger.Debugf("failed to send end-of-file: %v", err)
		}
		return
	}
	var serr error
	_ = in.s.control(func(fd int) {
		serr = unix.Shutdown(fd, unix.SHUT_WR)
	})
	if errors.Is(serr, unix.ENOTSOCK) {
		serr = in.s.Close()
	}
	if serr != nil {
		in.logger.Debugf("failed to close input: %v", serr)
	}
}

// eofChar returns the terminal's VEOF character, ^D when unknown.
func (in *Input) eofChar() byte {
	eof := byte(4)
	_ = in.s.control(func(fd int) {
		if t, err := unix.IoctlGetTermios(fd, ioctlReadTermios); err == nil && t.Cc[unix.VEOF] != 0 {
			eof = t.Cc[unix.VEOF]
		}
	})
	return eof
}
