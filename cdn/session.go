// Copyright 2019 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package cdn

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"k8s.io/klog/v2"
)

// Status is the non-terminal/terminal state of a conversation step.
type Status int

const (
	// Pending means the Op must be polled again.
	Pending Status = iota
	// Done means the Op completed; it is reported exactly once.
	Done
)

func (s Status) String() string {
	if s == Done {
		return "Done"
	}
	return "Pending"
}

// Op is one conversation with the firmware, driven by Session.Poll() or
// Session.Run().
//
// An Op must not be shared between Sessions.
type Op interface {
	fmt.Stringer
	step(s *Session) (Status, error)
	reset()
}

// Opts is the Session configuration.
type Opts struct {
	// Timeout bounds every blocking conversation. 0 means wait forever.
	Timeout time.Duration
}

// DefaultOpts is the recommended configuration.
//
// The firmware normally answers within a few hundred microseconds.
var DefaultOpts = Opts{
	Timeout: 100 * time.Millisecond,
}

// Session is the state of the conversation with one firmware instance.
//
// It must be created with New(). A Session is safe for concurrent use; the
// blocking calls are totally ordered.
type Session struct {
	bus  Bus
	opts Opts

	// mu is held for the duration of a blocking conversation and for each
	// non-blocking step.
	mu  sync.Mutex
	cur Op
	x   transfer
}

// New returns a Session talking over b.
func New(b Bus, opts *Opts) *Session {
	if opts == nil {
		opts = &DefaultOpts
	}
	return &Session{bus: b, opts: *opts}
}

// Bus returns the underlying register bus.
func (s *Session) Bus() Bus {
	return s.bus
}

// Poll advances op by one step.
//
// If another context currently holds the Session or another Op is in flight,
// Pending is returned without side effect. A non-nil error is terminal and
// the conversation is abandoned.
func (s *Session) Poll(op Op) (Status, error) {
	if !s.mu.TryLock() {
		return Pending, nil
	}
	defer s.mu.Unlock()
	return s.poll(op)
}

// Run drives op to completion.
//
// The Session lock is held for the whole conversation.
func (s *Session) Run(op Op) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.run(op)
}

// Atomic runs fn while holding the Session lock. fn must use the provided
// run function instead of Run to drive its Ops.
//
// It is used for read-modify-write sequences that must not interleave with
// other contexts.
func (s *Session) Atomic(fn func(run func(Op) error) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.run)
}

// Busy reports whether a conversation is in flight.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur != nil
}

//

func (s *Session) poll(op Op) (Status, error) {
	if s.cur != nil && s.cur != op {
		return Pending, nil
	}
	st, err := op.step(s)
	if err != nil {
		s.abandon(op)
		return Done, err
	}
	if st == Done {
		s.cur = nil
		return Done, nil
	}
	s.cur = op
	return Pending, nil
}

func (s *Session) run(op Op) error {
	if s.cur != nil && s.cur != op {
		return fmt.Errorf("%w: %s while running %s", ErrInFlight, op, s.cur)
	}
	var deadline time.Time
	if s.opts.Timeout > 0 {
		deadline = time.Now().Add(s.opts.Timeout)
	}
	for {
		st, err := s.poll(op)
		if err != nil {
			return err
		}
		if st == Done {
			return nil
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			s.abandon(op)
			return fmt.Errorf("%w: %s", ErrTimeout, op)
		}
	}
}

func (s *Session) abandon(op Op) {
	klog.V(2).Infof("cdn: abandoning %s", op)
	s.cur = nil
	s.x.abandon(s.bus)
	op.reset()
}

func (s *Session) locked(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn()
}

// Bounds on the bus accesses done to resynchronize the mailbox.
const (
	flushPolls = 1000
	drainMax   = HeaderSize + MaxPayload
)

// transfer is the byte pump between the message buffers and the mailbox
// FIFOs.
type transfer struct {
	tx   []byte
	txi  int
	rx   []byte
	want int
	rxOn bool

	// Replies the host gave up on. They are dropped as they arrive, in
	// order, before the response to the current request.
	owed int
	hdr  []byte
	skip int
}

func (x *transfer) start(msg []byte, reply bool) {
	x.tx = msg
	x.txi = 0
	x.rx = x.rx[:0]
	x.want = HeaderSize
	x.rxOn = reply
}

func (x *transfer) reset() {
	x.tx = nil
	x.txi = 0
	x.rx = x.rx[:0]
	x.want = 0
	x.rxOn = false
}

// process moves as many bytes as the FIFOs permit.
func (x *transfer) process(b Bus) (Status, error) {
	for x.txi < len(x.tx) {
		full, err := b.ReadReg(RegMailboxFull)
		if err != nil {
			return Pending, err
		}
		if full&0xFF != 0 {
			return Pending, nil
		}
		if err := b.WriteReg(RegMailboxWr, uint32(x.tx[x.txi])); err != nil {
			return Pending, err
		}
		x.txi++
	}
	for x.rxOn && len(x.rx) < x.want {
		empty, err := b.ReadReg(RegMailboxEmpty)
		if err != nil {
			return Pending, err
		}
		if empty&0xFF != 0 {
			return Pending, nil
		}
		v, err := b.ReadReg(RegMailboxRd)
		if err != nil {
			return Pending, err
		}
		if x.drop(byte(v)) {
			continue
		}
		x.rx = append(x.rx, byte(v))
		if len(x.rx) == HeaderSize {
			x.want = HeaderSize + int(binary.BigEndian.Uint16(x.rx[2:]))
		}
	}
	x.rxOn = false
	return Done, nil
}

// abandon ends the current conversation.
//
// A request partially sent is completed, otherwise the firmware would take
// the next request as its tail. A response not fully read is accounted for
// so it is dropped when it arrives.
func (x *transfer) abandon(b Bus) {
	if x.txi > 0 && x.txi < len(x.tx) {
		if err := x.flush(b); err != nil {
			klog.Errorf("cdn: firmware left with a partial request: %v", err)
			x.rxOn = false
		}
	}
	if x.rxOn && len(x.tx) != 0 && x.txi == len(x.tx) {
		switch {
		case len(x.rx) == 0:
			x.owed++
		case len(x.rx) < HeaderSize:
			x.owed++
			x.hdr = append(x.hdr, x.rx...)
		default:
			x.skip += x.want - len(x.rx)
		}
	}
	x.reset()
}

// flush writes the rest of the request.
func (x *transfer) flush(b Bus) error {
	for i := 0; x.txi < len(x.tx); i++ {
		if i == flushPolls {
			return errors.New("cdn: mailbox stays full")
		}
		full, err := b.ReadReg(RegMailboxFull)
		if err != nil {
			return err
		}
		if full&0xFF != 0 {
			continue
		}
		if err := b.WriteReg(RegMailboxWr, uint32(x.tx[x.txi])); err != nil {
			return err
		}
		x.txi++
	}
	return nil
}

// drop consumes v when it belongs to an abandoned response.
func (x *transfer) drop(v byte) bool {
	switch {
	case x.skip > 0:
		x.skip--
	case x.owed > 0:
		x.hdr = append(x.hdr, v)
		if len(x.hdr) == HeaderSize {
			h, _ := ParseHeader(x.hdr)
			klog.V(1).Infof("cdn: dropping late response %s", h)
			x.skip = h.Len
			x.hdr = x.hdr[:0]
			x.owed--
		}
	default:
		return false
	}
	return true
}

// drain empties the firmware to host FIFO before a request is sent. Nothing
// in it can be the response to that request.
func (x *transfer) drain(b Bus) error {
	n := 0
	for i := 0; i < drainMax; i++ {
		empty, err := b.ReadReg(RegMailboxEmpty)
		if err != nil {
			return err
		}
		if empty&0xFF != 0 {
			break
		}
		v, err := b.ReadReg(RegMailboxRd)
		if err != nil {
			return err
		}
		if !x.drop(byte(v)) {
			n++
		}
	}
	if n != 0 {
		klog.Warningf("cdn: discarded %d unsolicited bytes", n)
	}
	return nil
}
