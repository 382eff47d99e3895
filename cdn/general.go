// Copyright 2019 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package cdn

import (
	"bytes"
	"fmt"

	"periph.io/x/periph/conn/physic"
)

// aliveRetries is the number of keep alive samples taken before declaring
// the firmware dead.
const aliveRetries = 10

// Events is the content of the SW_EVENTS registers.
type Events uint32

// Event bits.
const (
	EventHPD      Events = 1 << 0 // hot plug state changed
	EventTraining Events = 1 << 1 // link training progressed
)

// Version is the firmware and library version reported by the firmware.
type Version struct {
	FW  uint16
	Lib uint16
}

func (v Version) String() string {
	return fmt.Sprintf("fw %d, lib %d", v.FW, v.Lib)
}

// CheckAlive returns an Op that completes once the firmware keep alive
// counter moves. It fails with ErrNotAlive after 10 unchanged samples.
func CheckAlive() Op {
	return &aliveOp{}
}

type aliveOp struct {
	n    int
	last uint32
}

func (a *aliveOp) String() string {
	return "General/CheckAlive"
}

func (a *aliveOp) reset() {
	a.n = 0
}

func (a *aliveOp) step(s *Session) (Status, error) {
	v, err := s.bus.ReadReg(RegKeepAlive)
	if err != nil {
		return Done, err
	}
	if a.n == 0 {
		a.last = v
		a.n++
		return Pending, nil
	}
	if v != a.last {
		a.n = 0
		return Done, nil
	}
	if a.n++; a.n > aliveRetries {
		a.n = 0
		return Done, ErrNotAlive
	}
	return Pending, nil
}

// MainControl turns the IP activity on (mode 1) or off (mode 0).
func MainControl(mode uint8, resp *uint8) *Call {
	var b Builder
	b.U8(mode)
	return NewCall(ModuleGeneral, GeneralMainControl, &b, func(r *Reader) error {
		*resp = r.U8()
		return nil
	})
}

// TestEcho sends v and expects it back.
func TestEcho(v uint32) *Call {
	var b Builder
	b.U32(v)
	return NewCall(ModuleGeneral, GeneralTestEcho, &b, func(r *Reader) error {
		got := r.U32()
		if err := r.Err(); err != nil {
			return err
		}
		if got != v {
			return fmt.Errorf("%w: got %#x, want %#x", ErrEcho, got, v)
		}
		return nil
	})
}

// TestEchoExt sends out and reads the echo into in, which must be the same
// length.
func TestEchoExt(out, in []byte) *Call {
	var b Builder
	b.Bytes(out)
	return NewCall(ModuleGeneral, GeneralTestEcho, &b, func(r *Reader) error {
		r.Bytes(in)
		if err := r.Err(); err != nil {
			return err
		}
		if !bytes.Equal(in, out) {
			return fmt.Errorf("%w: got %q, want %q", ErrEcho, in, out)
		}
		return nil
	})
}

// WriteRegister writes a firmware visible register.
func WriteRegister(addr, v uint32) *Call {
	var b Builder
	b.U32(addr).U32(v)
	return NewCall(ModuleGeneral, GeneralWriteRegister, &b, nil)
}

// WriteField writes width bits at start in a firmware visible register.
func WriteField(addr uint32, start, width uint8, v uint32) *Call {
	var b Builder
	b.U32(addr).U8(start).U8(width).U32(v)
	return NewCall(ModuleGeneral, GeneralWriteField, &b, nil)
}

// ReadRegister reads a firmware visible register.
func ReadRegister(addr uint32, v *uint32) *Call {
	var b Builder
	b.U32(addr)
	return NewCall(ModuleGeneral, GeneralReadRegister, &b, func(r *Reader) error {
		a := r.U32()
		val := r.U32()
		if err := r.Err(); err != nil {
			return err
		}
		if a != addr {
			return fmt.Errorf("cdn: read register %#x answered for %#x", addr, a)
		}
		*v = val
		return nil
	})
}

// GetHPDState reads the hot plug detect line as seen by the firmware.
func GetHPDState(hpd *bool) *Call {
	return NewCall(ModuleGeneral, GeneralGetHPDState, nil, func(r *Reader) error {
		*hpd = r.U8() != 0
		return nil
	})
}

// Blocking variants.

// CheckAlive blocks until the firmware is confirmed running.
func (s *Session) CheckAlive() error {
	return s.Run(CheckAlive())
}

// MainControl is the blocking variant of MainControl().
func (s *Session) MainControl(mode uint8) (uint8, error) {
	var resp uint8
	err := s.Run(MainControl(mode, &resp))
	return resp, err
}

// TestEcho is the blocking variant of TestEcho().
func (s *Session) TestEcho(v uint32) error {
	return s.Run(TestEcho(v))
}

// TestEchoExt is the blocking variant of TestEchoExt(). It returns the
// echoed buffer.
func (s *Session) TestEchoExt(out []byte) ([]byte, error) {
	in := make([]byte, len(out))
	err := s.Run(TestEchoExt(out, in))
	return in, err
}

// WriteRegister is the blocking variant of WriteRegister().
func (s *Session) WriteRegister(addr, v uint32) error {
	return s.Run(WriteRegister(addr, v))
}

// WriteField is the blocking variant of WriteField().
func (s *Session) WriteField(addr uint32, start, width uint8, v uint32) error {
	return s.Run(WriteField(addr, start, width, v))
}

// ReadRegister is the blocking variant of ReadRegister().
func (s *Session) ReadRegister(addr uint32) (uint32, error) {
	var v uint32
	err := s.Run(ReadRegister(addr, &v))
	return v, err
}

// GetHPDState is the blocking variant of GetHPDState().
func (s *Session) GetHPDState() (bool, error) {
	var hpd bool
	err := s.Run(GetHPDState(&hpd))
	return hpd, err
}

// Register level accesses. They don't use the mailbox but still serialize
// with conversations.

// ReleaseCPU releases the firmware uCPU from reset.
func (s *Session) ReleaseCPU() error {
	return s.locked(func() error {
		return s.bus.WriteReg(RegAPBCtrl, 0)
	})
}

// SetClock tells the firmware the frequency of its core clock.
func (s *Session) SetClock(f physic.Frequency) error {
	if f < physic.MegaHertz {
		return fmt.Errorf("cdn: invalid firmware clock %s", f)
	}
	return s.locked(func() error {
		return s.bus.WriteReg(RegSWClkH, uint32(f/physic.MegaHertz))
	})
}

// Version reads the firmware version registers.
func (s *Session) Version() (Version, error) {
	var v Version
	err := s.locked(func() error {
		var r [4]uint32
		for i, off := range [...]uint32{RegVerL, RegVerH, RegVerLibL, RegVerLibH} {
			var err error
			if r[i], err = s.bus.ReadReg(off); err != nil {
				return err
			}
		}
		v.FW = uint16(r[1]&0xFF)<<8 | uint16(r[0]&0xFF)
		v.Lib = uint16(r[3]&0xFF)<<8 | uint16(r[2]&0xFF)
		return nil
	})
	return v, err
}

// Events reads the pending firmware events.
//
// The registers are cleared on read.
func (s *Session) Events() (Events, error) {
	var e Events
	err := s.locked(func() error {
		for i, off := range [...]uint32{RegSWEvents0, RegSWEvents1, RegSWEvents2, RegSWEvents3} {
			v, err := s.bus.ReadReg(off)
			if err != nil {
				return err
			}
			e |= Events(v&0xFF) << (8 * uint(i))
		}
		return nil
	})
	return e, err
}
