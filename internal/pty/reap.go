package pty

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// DefaultDrainTimeout bounds how long output is awaited after the child
	// has been reaped.
	DefaultDrainTimeout = time.Second
	// DefaultKillGrace is the delay between SIGTERM and SIGKILL on cancel.
	DefaultKillGrace = 5 * time.Second

	defaultReadBuffer = 32 * 1024
	maxSweepReads     = 64
)

// State is the phase of the reap loop.
type State int

const (
	StateActive State = iota
	StateDraining
	StateDone
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateDraining:
		return "draining"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Event is one delivery on an output channel: a chunk of data, the
// channel's end-of-stream marker, or a read error on that channel only.
type Event struct {
	Channel Channel
	Data    []byte
	EOF     bool
	Err     error
}

// ReapOptions configures Reap.
type ReapOptions struct {
	DrainTimeout time.Duration // zero uses DefaultDrainTimeout
	KillGrace    time.Duration // zero uses DefaultKillGrace, negative never escalates
	ReadBuffer   int
	Logger       *logrus.Logger
	OnState      func(State)
}

type reaper struct {
	proc   Process
	sink   func(Event)
	opts   ReapOptions
	logger *logrus.Entry

	events chan Event
	wg     sync.WaitGroup

	state State
	ended map[Channel]bool // end-of-stream marker delivered
	// failed channels reported a read error and are skipped by the sweep
	failed map[Channel]bool
}

// Reap drives proc until it has exited and its output has been drained. Every
// output event is passed to sink in the order the OS produced it on its
// channel; each channel ends with exactly one EOF event. Reap returns the exit
// status after the final sweep.
//
// Cancelling ctx sends SIGTERM to the child, then SIGKILL after KillGrace;
// the drain and the wait still happen. A signalling failure is returned
// joined with whatever the wait produced.
func Reap(ctx context.Context, proc Process, sink func(Event), opts ReapOptions) (ExitStatus, error) {
	if sink == nil {
		sink = func(Event) {}
	}
	if opts.DrainTimeout <= 0 {
		opts.DrainTimeout = DefaultDrainTimeout
	}
	if opts.KillGrace == 0 {
		opts.KillGrace = DefaultKillGrace
	}
	if opts.ReadBuffer <= 0 {
		opts.ReadBuffer = defaultReadBuffer
	}

	r := &reaper{
		proc:   proc,
		sink:   sink,
		opts:   opts,
		logger: loggerOrDiscard(opts.Logger).WithField("pid", proc.Pid()),
		events: make(chan Event),
		ended:  make(map[Channel]bool),
		failed: make(map[Channel]bool),
	}
	return r.run(ctx)
}

func (r *reaper) run(ctx context.Context) (ExitStatus, error) {
	outputs := r.proc.Bridge().Outputs()
	for _, s := range outputs {
		r.wg.Add(1)
		go r.readLoop(s)
	}
	readersDone := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(readersDone)
	}()

	var (
		exited      = r.proc.Done()
		cancelled   = ctx.Done()
		killTimer   <-chan time.Time
		readersLeft = true
		signalErr   error
	)

	r.setState(StateActive)
	for r.state != StateDone {
		select {
		case ev := <-r.events:
			r.deliver(ev)

		case <-exited:
			exited = nil
			cancelled = nil
			killTimer = nil
			r.setState(StateDraining)
			deadline := time.Now().Add(r.opts.DrainTimeout)
			for _, s := range outputs {
				if err := s.SetReadDeadline(deadline); err != nil {
					r.logger.Debugf("failed to set drain deadline on %s: %v", s.Channel(), err)
				}
			}

		case <-cancelled:
			cancelled = nil
			r.logger.Info("cancelled, terminating child")
			if err := r.proc.Terminate(); err != nil {
				r.logger.Warnf("terminate failed: %v", err)
				signalErr = errors.Join(signalErr, err)
			}
			if r.opts.KillGrace > 0 {
				killTimer = time.After(r.opts.KillGrace)
			}

		case <-killTimer:
			killTimer = nil
			r.logger.Warnf("child still running %v after SIGTERM, killing", r.opts.KillGrace)
			if err := r.proc.Kill(); err != nil {
				r.logger.Warnf("kill failed: %v", err)
				signalErr = errors.Join(signalErr, err)
			}

		case <-readersDone:
			readersDone = nil
			readersLeft = false
		}

		if r.state == StateDraining && !readersLeft {
			r.setState(StateDone)
		}
	}

	r.sweep(outputs)

	status, err := r.proc.Wait()
	return status, errors.Join(err, signalErr)
}

// readLoop forwards one stream's output until end-of-stream, an error, or
// the drain deadline.
func (r *reaper) readLoop(s *Stream) {
	defer r.wg.Done()

	buf := make([]byte, r.opts.ReadBuffer)
	for {
		n, err := s.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			r.events <- Event{Channel: s.Channel(), Data: data}
		}
		if err == nil {
			continue
		}
		switch {
		case errors.Is(err, io.EOF):
			r.events <- Event{Channel: s.Channel(), EOF: true}
		case errors.Is(err, os.ErrDeadlineExceeded), errors.Is(err, os.ErrClosed):
			// The sweep picks up anything left.
		default:
			r.events <- Event{Channel: s.Channel(), Err: &BridgeError{Channel: s.Channel(), Op: "read", Err: err}}
		}
		return
	}
}

// sweep makes a bounded number of nonblocking reads on every stream that
// has not ended, then closes every channel that still lacks its marker.
func (r *reaper) sweep(outputs []*Stream) {
	buf := make([]byte, r.opts.ReadBuffer)
	for _, s := range outputs {
		ch := s.Channel()
		if r.ended[ch] || r.failed[ch] {
			continue
		}
	reads:
		for i := 0; i < maxSweepReads; i++ {
			n, err := s.TryRead(buf)
			if n > 0 {
				data := make([]byte, n)
				copy(data, buf[:n])
				r.deliver(Event{Channel: ch, Data: data})
			}
			if err == nil {
				continue
			}
			switch {
			case errors.Is(err, io.EOF):
				r.deliver(Event{Channel: ch, EOF: true})
			case errors.Is(err, ErrNoData):
			default:
				r.deliver(Event{Channel: ch, Err: &BridgeError{Channel: ch, Op: "sweep", Err: err}})
			}
			break reads
		}
	}

	for _, s := range outputs {
		if !r.ended[s.Channel()] {
			r.deliver(Event{Channel: s.Channel(), EOF: true})
		}
	}
}

func (r *reaper) deliver(ev Event) {
	switch {
	case ev.EOF:
		if r.ended[ev.Channel] {
			return
		}
		r.ended[ev.Channel] = true
	case ev.Err != nil:
		r.failed[ev.Channel] = true
		r.logger.WithField("channel", ev.Channel.String()).Warnf("read failed: %v", ev.Err)
	}
	r.sink(ev)
}

func (r *reaper) setState(s State) {
	r.state = s
	r.logger.WithField("state", s.String()).Debug("reap state")
	if r.opts.OnState != nil {
		r.opts.OnState(s)
	}
}
