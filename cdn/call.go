// Copyright 2019 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package cdn

import (
	"fmt"

	"k8s.io/klog/v2"
)

// Call is a single request, optionally followed by a response from the
// firmware.
type Call struct {
	Module  Module
	Opcode  Opcode
	Payload []byte
	// Reply decodes the response payload. nil means the firmware doesn't
	// answer this request.
	Reply func(r *Reader) error

	sent bool
}

// NewCall returns a Call with the payload accumulated in b.
func NewCall(m Module, op Opcode, b *Builder, reply func(r *Reader) error) *Call {
	c := &Call{Module: m, Opcode: op, Reply: reply}
	if b != nil {
		c.Payload = b.Payload()
	}
	return c
}

func (c *Call) String() string {
	return fmt.Sprintf("%s/%#02x", c.Module, uint8(c.Opcode))
}

func (c *Call) reset() {
	c.sent = false
}

func (c *Call) step(s *Session) (Status, error) {
	if !c.sent {
		msg, err := Encode(c.Module, c.Opcode, c.Payload)
		if err != nil {
			return Done, err
		}
		if err := s.x.drain(s.bus); err != nil {
			return Done, err
		}
		klog.V(4).Infof("cdn: tx %s % x", c, c.Payload)
		s.x.start(msg, c.Reply != nil)
		c.sent = true
		return Pending, nil
	}
	st, err := s.x.process(s.bus)
	if err != nil || st == Pending {
		return st, err
	}
	c.sent = false
	if c.Reply == nil {
		return Done, nil
	}
	h, err := ParseHeader(s.x.rx)
	if err != nil {
		return Done, err
	}
	klog.V(4).Infof("cdn: rx %s % x", h, s.x.rx[HeaderSize:])
	if err := headErr(h, c.Module, c.Opcode); err != nil {
		return Done, err
	}
	r := NewReader(s.x.rx[HeaderSize:])
	if err := c.Reply(r); err != nil {
		return Done, err
	}
	return Done, r.Err()
}

// Sequence is a multi-step Op. Each Poll() advances at most the current
// step; Done is reported once after the last step.
type Sequence struct {
	name string
	ops  []Op
	i    int
}

// NewSequence returns a Sequence running ops in order.
func NewSequence(name string, ops ...Op) *Sequence {
	return &Sequence{name: name, ops: ops}
}

func (q *Sequence) String() string {
	return fmt.Sprintf("%s[%d/%d]", q.name, q.i, len(q.ops))
}

// Step returns the index of the step in progress.
func (q *Sequence) Step() int {
	return q.i
}

// Len returns the number of steps.
func (q *Sequence) Len() int {
	return len(q.ops)
}

func (q *Sequence) reset() {
	for _, op := range q.ops {
		op.reset()
	}
	q.i = 0
}

func (q *Sequence) step(s *Session) (Status, error) {
	if len(q.ops) == 0 {
		return Done, nil
	}
	st, err := q.ops[q.i].step(s)
	if err != nil {
		return Done, fmt.Errorf("%s: %w", q, err)
	}
	if st == Pending {
		return Pending, nil
	}
	if q.i++; q.i < len(q.ops) {
		return Pending, nil
	}
	q.i = 0
	return Done, nil
}
