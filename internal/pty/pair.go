package pty

import (
	"fmt"
	"os"

	ptylib "github.com/creack/pty"
	"golang.org/x/sys/unix"
)

// Size is the terminal geometry.
type Size struct {
	Rows        uint16 `json:"rows"`
	Cols        uint16 `json:"cols"`
	PixelWidth  uint16 `json:"pixel_width,omitempty"`
	PixelHeight uint16 `json:"pixel_height,omitempty"`
}

// DefaultSize returns the classic 24x80 terminal with no pixel geometry.
func DefaultSize() Size {
	return Size{Rows: 24, Cols: 80}
}

// OrDefault returns DefaultSize for an unspecified (all zero) size.
func (s Size) OrDefault() Size {
	if s == (Size{}) {
		return DefaultSize()
	}
	return s
}

func (s Size) winsize() *ptylib.Winsize {
	return &ptylib.Winsize{Rows: s.Rows, Cols: s.Cols, X: s.PixelWidth, Y: s.PixelHeight}
}

func sizeFromWinsize(ws *ptylib.Winsize) Size {
	return Size{Rows: ws.Rows, Cols: ws.Cols, PixelWidth: ws.X, PixelHeight: ws.Y}
}

// Pair is one kernel pseudo-terminal. Master stays with the parent; Slave is
// handed to the child and must be closed by the parent afterwards, or reads
// on the master never see end-of-stream.
type Pair struct {
	Master  *Descriptor
	Slave   *Descriptor
	ttyName string
}

// Allocate opens a new pseudo-terminal with the given geometry. Both ends
// carry close-on-exec; if that cannot be guaranteed, both are closed and the
// allocation fails.
func Allocate(size Size) (*Pair, error) {
	master, slave, err := ptylib.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to allocate PTY: %w", err)
	}

	p := &Pair{
		Master:  NewDescriptor(master),
		Slave:   NewDescriptor(slave),
		ttyName: slave.Name(),
	}

	for _, d := range []*Descriptor{p.Master, p.Slave} {
		if err := setCloexec(d); err != nil {
			p.Close()
			return nil, fmt.Errorf("failed to set close-on-exec on %s: %w", d.Name(), err)
		}
	}

	if err := ptylib.Setsize(master, size.winsize()); err != nil {
		p.Close()
		return nil, fmt.Errorf("failed to set PTY size: %w", err)
	}

	return p, nil
}

// TTYName returns the slave device path, e.g. /dev/pts/3.
func (p *Pair) TTYName() string {
	return p.ttyName
}

// Size reports the geometry currently recorded by the kernel.
func (p *Pair) Size() (Size, error) {
	f := p.Master.File()
	if f == nil {
		return Size{}, os.ErrClosed
	}
	ws, err := ptylib.GetsizeFull(f)
	if err != nil {
		return Size{}, fmt.Errorf("failed to read PTY size: %w", err)
	}
	return sizeFromWinsize(ws), nil
}

// Resize changes the geometry. The kernel delivers SIGWINCH to the
// foreground process group of the terminal.
func (p *Pair) Resize(size Size) error {
	f := p.Master.File()
	if f == nil {
		return os.ErrClosed
	}
	return ptylib.Setsize(f, size.winsize())
}

// CloseSlave drops the parent's copy of the slave.
func (p *Pair) CloseSlave() error {
	return p.Slave.Close()
}

// Close releases both ends.
func (p *Pair) Close() error {
	serr := p.Slave.Close()
	merr := p.Master.Close()
	if merr != nil {
		return merr
	}
	return serr
}

func setCloexec(d *Descriptor) error {
	f := d.File()
	if f == nil {
		return os.ErrClosed
	}
	sc, err := f.SyscallConn()
	if err != nil {
		return err
	}
	var opErr error
	if err := sc.Control(func(fd uintptr) {
		var flags int
		flags, opErr = unix.FcntlInt(fd, unix.F_GETFD, 0)
		if opErr != nil {
			opErr = os.NewSyscallError("fcntl(F_GETFD)", opErr)
			return
		}
		if flags&unix.FD_CLOEXEC != 0 {
			return
		}
		if _, opErr = unix.FcntlInt(fd, unix.F_SETFD, flags|unix.FD_CLOEXEC); opErr != nil {
			opErr = os.NewSyscallError("fcntl(F_SETFD)", opErr)
		}
	}); err != nil {
		return err
	}
	return opErr
}

// isCloexec reports whether fd carries FD_CLOEXEC.
func isCloexec(fd int) (bool, error) {
	flags, err := unix.FcntlInt(uintptr(fd), unix.F_GETFD, 0)
	if err != nil {
		return false, os.NewSyscallError("fcntl(F_GETFD)", err)
	}
	return flags&unix.FD_CLOEXEC != 0, nil
}
