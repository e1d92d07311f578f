package pty

import (
	"errors"
	"io"
	"os"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// Channel tags one logical standard stream.
type Channel uint8

const (
	ChannelIn Channel = iota
	ChannelOut
	ChannelErr
)

func (c Channel) String() string {
	switch c {
	case ChannelIn:
		return "in"
	case ChannelOut:
		return "out"
	case ChannelErr:
		return "err"
	default:
		return "unknown"
	}
}

var noDeadline time.Time

// Stream is one ordered, asynchronous byte channel backed by a descriptor
// registered with the runtime poller. It owns the descriptor.
type Stream struct {
	ch       Channel
	f        *os.File
	pollable bool
	terminal bool // PTY master: EIO means the slave side is gone

	closeOnce sync.Once
	closeErr  error
}

// Channel returns the logical channel the stream carries.
func (s *Stream) Channel() Channel { return s.ch }

// Pollable reports whether the descriptor is registered with the poller.
// Non-pollable streams (regular files) behave as if always ready.
func (s *Stream) Pollable() bool { return s.pollable }

// Name returns the underlying file name.
func (s *Stream) Name() string { return s.f.Name() }

// Read reads from the stream, suspending the goroutine until data is ready.
// On a terminal master, EIO is reported as io.EOF.
func (s *Stream) Read(p []byte) (int, error) {
	n, err := s.f.Read(p)
	if err != nil && s.isEOF(err) {
		return n, io.EOF
	}
	return n, err
}

// TryRead performs one synchronous read that never waits. It returns
// ErrNoData when nothing is buffered and io.EOF at end-of-stream. It must not
// run concurrently with Read.
func (s *Stream) TryRead(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	sc, err := s.f.SyscallConn()
	if err != nil {
		return 0, err
	}

	var (
		n    int
		rerr error
	)
	cerr := sc.Control(func(fd uintptr) {
		fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
		for {
			ready, perr := unix.Poll(fds, 0)
			if errors.Is(perr, unix.EINTR) {
				continue
			}
			if perr != nil {
				rerr = os.NewSyscallError("poll", perr)
				return
			}
			if ready == 0 {
				rerr = ErrNoData
				return
			}
			break
		}
		for {
			n, rerr = unix.Read(int(fd), p)
			if !errors.Is(rerr, unix.EINTR) {
				break
			}
		}
	})
	if cerr != nil {
		return 0, cerr
	}
	if n < 0 {
		n = 0
	}

	switch {
	case rerr == nil && n == 0:
		return 0, io.EOF
	case rerr == nil, errors.Is(rerr, ErrNoData):
		return n, rerr
	case errors.Is(rerr, unix.EAGAIN):
		return n, ErrNoData
	case s.isEOF(rerr):
		return n, io.EOF
	default:
		return n, os.NewSyscallError("read", rerr)
	}
}

// Write performs one write attempt and may return a short count. When the
// descriptor is not writable the goroutine waits on the poller. Callers
// resume from the returned offset; Input does that for them.
func (s *Stream) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	sc, err := s.f.SyscallConn()
	if err != nil {
		return 0, err
	}

	var (
		n    int
		werr error
	)
	cerr := sc.Write(func(fd uintptr) bool {
		for {
			n, werr = unix.Write(int(fd), p)
			if !errors.Is(werr, unix.EINTR) {
				break
			}
		}
		return !errors.Is(werr, unix.EAGAIN)
	})
	if cerr != nil {
		return 0, cerr
	}
	if n < 0 {
		n = 0
	}
	if werr != nil {
		return n, os.NewSyscallError("write", werr)
	}
	return n, nil
}

// SetReadDeadline bounds pending and future Reads. It is a no-op on
// non-pollable streams.
func (s *Stream) SetReadDeadline(t time.Time) error {
	if err := s.f.SetReadDeadline(t); err != nil && !errors.Is(err, os.ErrNoDeadline) {
		return err
	}
	return nil
}

// Close closes the descriptor and deregisters it from the poller. A Read
// blocked on a pollable stream returns os.ErrClosed.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.f.Close()
	})
	return s.closeErr
}

// control runs fn with the raw descriptor.
func (s *Stream) control(fn func(fd int)) error {
	sc, err := s.f.SyscallConn()
	if err != nil {
		return err
	}
	return sc.Control(func(fd uintptr) { fn(int(fd)) })
}

func (s *Stream) isEOF(err error) bool {
	return s.terminal && errors.Is(err, syscall.EIO)
}
