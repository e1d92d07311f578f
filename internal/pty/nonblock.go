package pty

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// SetNonblocking turns O_NONBLOCK on or off. The flag lives on the open file
// description, so every duplicate of fd observes the change. Toggling is not
// atomic with concurrent I/O on the same descriptor; callers must own it.
func SetNonblocking(fd int, on bool) error {
	if err := unix.SetNonblock(fd, on); err != nil {
		return os.NewSyscallError("fcntl(F_SETFL)", err)
	}
	return nil
}

// MakeNonblocking sets O_NONBLOCK on fd.
func MakeNonblocking(fd int) error {
	return SetNonblocking(fd, true)
}

// IsNonblocking reports whether O_NONBLOCK is set on fd.
func IsNonblocking(fd int) (bool, error) {
	flags, err := unix.FcntlInt(uintptr(fd), unix.F_GETFL, 0)
	if err != nil {
		return false, os.NewSyscallError("fcntl(F_GETFL)", err)
	}
	return flags&unix.O_NONBLOCK != 0, nil
}

// isRegularFile reports whether fd refers to a regular file. Regular files
// cannot be registered with epoll and are always ready.
func isRegularFile(fd int) (bool, error) {
	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		return false, os.NewSyscallError("fstat", err)
	}
	return st.Mode&unix.S_IFMT == unix.S_IFREG, nil
}

// WrapForAsync consumes d and returns a Stream registered with the runtime
// poller. O_NONBLOCK is enabled unless already set. Regular files are
// accepted as they are and reported as not pollable.
func WrapForAsync(d *Descriptor, ch Channel) (*Stream, error) {
	return wrapForAsync(d, ch, false)
}

func wrapForAsync(d *Descriptor, ch Channel, terminal bool) (*Stream, error) {
	name := d.Name()
	fd := d.Fd()
	if fd < 0 {
		return nil, os.ErrClosed
	}

	regular, err := isRegularFile(fd)
	if err != nil {
		return nil, fmt.Errorf("wrap %s: %w", name, err)
	}

	if !regular {
		nb, err := IsNonblocking(fd)
		if err != nil {
			return nil, fmt.Errorf("wrap %s: %w", name, err)
		}
		if !nb {
			if err := MakeNonblocking(fd); err != nil {
				return nil, fmt.Errorf("wrap %s: %w", name, err)
			}
		}
	}

	// os.NewFile only registers descriptors that are already nonblocking,
	// so the file is rebuilt around a duplicate taken after the flag change.
	nfd, err := d.dupFD()
	if err != nil {
		return nil, fmt.Errorf("wrap %s: %w", name, err)
	}
	f := os.NewFile(uintptr(nfd), name)
	_ = d.Close()

	return &Stream{
		ch:       ch,
		f:        f,
		pollable: !regular && f.SetReadDeadline(noDeadline) == nil,
		terminal: terminal,
	}, nil
}
