package pty

import (
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// Descriptor exclusively owns one open file descriptor. The zero value is an
// empty descriptor. Descriptors must be passed by pointer and never copied.
type Descriptor struct {
	mu sync.Mutex
	f  *os.File
}

// NewDescriptor takes ownership of f.
func NewDescriptor(f *os.File) *Descriptor {
	return &Descriptor{f: f}
}

// adopt wraps a raw descriptor returned by a syscall. It must be called
// directly after the call that produced fd.
func adopt(fd int, name string) *Descriptor {
	return NewDescriptor(os.NewFile(uintptr(fd), name))
}

// File returns the underlying file, or nil once closed or released.
// Ownership stays with the Descriptor.
func (d *Descriptor) File() *os.File {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.f
}

// Name returns the name of the underlying file.
func (d *Descriptor) Name() string {
	if f := d.File(); f != nil {
		return f.Name()
	}
	return ""
}

// Fd returns the raw descriptor number without touching its blocking mode,
// or -1 when the descriptor is closed.
func (d *Descriptor) Fd() int {
	f := d.File()
	if f == nil {
		return -1
	}
	fd, err := rawFD(f)
	if err != nil {
		return -1
	}
	return fd
}

// Dup returns a new, independently owned descriptor referring to the same
// open file. The duplicate carries close-on-exec.
func (d *Descriptor) Dup() (*Descriptor, error) {
	name := d.Name()
	nfd, err := d.dupFD()
	if err != nil {
		return nil, err
	}
	return adopt(nfd, name), nil
}

// dupFD duplicates the descriptor and returns the raw number. The caller
// owns the result and must adopt it immediately.
func (d *Descriptor) dupFD() (int, error) {
	f := d.File()
	if f == nil {
		return -1, os.ErrClosed
	}

	sc, err := f.SyscallConn()
	if err != nil {
		return -1, fmt.Errorf("dup %s: %w", f.Name(), err)
	}

	nfd := -1
	var dupErr error
	if err := sc.Control(func(fd uintptr) {
		nfd, dupErr = unix.FcntlInt(fd, unix.F_DUPFD_CLOEXEC, 0)
	}); err != nil {
		return -1, fmt.Errorf("dup %s: %w", f.Name(), err)
	}
	if dupErr != nil {
		return -1, os.NewSyscallError("fcntl(F_DUPFD_CLOEXEC)", dupErr)
	}
	return nfd, nil
}

// Release transfers ownership of the file to the caller. The Descriptor is
// empty afterwards and Close becomes a no-op.
func (d *Descriptor) Release() *os.File {
	d.mu.Lock()
	defer d.mu.Unlock()
	f := d.f
	d.f = nil
	return f
}

// Close closes the descriptor. Only the first call reaches the OS.
func (d *Descriptor) Close() error {
	f := d.Release()
	if f == nil {
		return nil
	}
	return f.Close()
}

// Closed reports whether the descriptor has been closed or released.
func (d *Descriptor) Closed() bool {
	return d.File() == nil
}

// rawFD extracts the descriptor number. Calling os.File.Fd instead would put
// the descriptor back into blocking mode.
func rawFD(f *os.File) (int, error) {
	sc, err := f.SyscallConn()
	if err != nil {
		return -1, err
	}
	fd := -1
	if err := sc.Control(func(u uintptr) { fd = int(u) }); err != nil {
		return -1, err
	}
	return fd, nil
}

// closeAll closes every non-nil descriptor, ignoring errors.
func closeAll(ds ...*Descriptor) {
	for _, d := range ds {
		if d != nil {
			_ = d.Close()
		}
	}
}
