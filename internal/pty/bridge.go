package pty

import (
	"errors"
	"fmt"
	"os"
	"syscall"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// Bridge exposes the parent side of a child's standard streams. Err is nil
// when stderr is merged into the terminal.
type Bridge struct {
	In  *Input
	Out *Stream
	Err *Stream
}

// Outputs returns the readable streams, out first.
func (b *Bridge) Outputs() []*Stream {
	streams := []*Stream{b.Out}
	if b.Err != nil {
		streams = append(streams, b.Err)
	}
	return streams
}

// Close closes every stream. Safe to call more than once.
func (b *Bridge) Close() error {
	var errs []error
	if b.In != nil {
		errs = append(errs, b.In.Close())
	}
	for _, s := range b.Outputs() {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}

// NewPTYBridge builds a bridge over a terminal master. In and out share the
// terminal through two independent duplicates; master itself is left to the
// caller. errEnd, when non-nil, is the parent end of a separate stderr
// channel and is consumed.
func NewPTYBridge(master *Descriptor, errEnd *Descriptor, inputCap int, logger *logrus.Logger) (*Bridge, error) {
	outDup, err := master.Dup()
	if err != nil {
		closeAll(errEnd)
		return nil, err
	}
	out, err := wrapForAsync(outDup, ChannelOut, true)
	if err != nil {
		closeAll(outDup, errEnd)
		return nil, err
	}

	inDup, err := master.Dup()
	if err != nil {
		_ = out.Close()
		closeAll(errEnd)
		return nil, err
	}
	inStream, err := wrapForAsync(inDup, ChannelIn, true)
	if err != nil {
		_ = out.Close()
		closeAll(inDup, errEnd)
		return nil, err
	}

	b := &Bridge{Out: out, In: newInput(inStream, inputCap, logger)}
	if errEnd != nil {
		if b.Err, err = wrapForAsync(errEnd, ChannelErr, false); err != nil {
			closeAll(errEnd)
			_ = b.Close()
			return nil, err
		}
	}
	return b, nil
}

// NewSocketBridge builds a bridge over the parent ends of three socket
// pairs. All three descriptors are consumed.
func NewSocketBridge(in, out, errEnd *Descriptor, inputCap int, logger *logrus.Logger) (*Bridge, error) {
	outStream, err := WrapForAsync(out, ChannelOut)
	if err != nil {
		closeAll(in, out, errEnd)
		return nil, err
	}
	errStream, err := WrapForAsync(errEnd, ChannelErr)
	if err != nil {
		_ = outStream.Close()
		closeAll(in, errEnd)
		return nil, err
	}
	inStream, err := WrapForAsync(in, ChannelIn)
	if err != nil {
		_ = outStream.Close()
		_ = errStream.Close()
		closeAll(in)
		return nil, err
	}
	return &Bridge{
		In:  newInput(inStream, inputCap, logger),
		Out: outStream,
		Err: errStream,
	}, nil
}

// socketPair returns the parent and child ends of a connected stream
// socket pair. Both carry close-on-exec.
func socketPair(name string) (parent, child *Descriptor, err error) {
	syscall.ForkLock.RLock()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err == nil {
		unix.CloseOnExec(fds[0])
		unix.CloseOnExec(fds[1])
	}
	syscall.ForkLock.RUnlock()
	if err != nil {
		return nil, nil, os.NewSyscallError("socketpair", err)
	}
	parent = adopt(fds[0], fmt.Sprintf("%s(parent)", name))
	child = adopt(fds[1], fmt.Sprintf("%s(child)", name))
	return parent, child, nil
}
