// Copyright 2019 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package cdn

import (
	"fmt"
)

// EDIDBlockSize is the size of one EDID block.
const EDIDBlockSize = 128

// HostCap is the DisplayPort source capability set sent with DPSetHostCap().
type HostCap struct {
	MaxRate LinkRate
	Lanes   uint8
	SSC     bool
	// Scrambler enables the link scrambler.
	Scrambler    bool
	MaxVSwing    uint8
	ForceVSwing  bool
	MaxPreEmph   uint8
	ForcePreEmph bool
	// TestPatterns is a bitmask of the supported TPS1..TPS4.
	TestPatterns uint8
	// FastTraining skips the AUX handshake during training.
	FastTraining bool
	// LaneMapping maps logical lanes to pads, 2 bits per lane.
	LaneMapping uint8
	Enhanced    bool
}

// LinkEvent is the response to DPReadEvent().
type LinkEvent struct {
	// Training is the link training sub event ID.
	Training uint8
	// HPD is the hot plug sub event mask.
	HPD uint8
}

// LinkStatus is the response to DPReadLinkStat().
type LinkStatus struct {
	Rate    LinkRate
	Lanes   uint8
	VSwing  [4]uint8
	PreEmph [4]uint8
}

func (l *LinkStatus) String() string {
	return fmt.Sprintf("%s x%d swing=%v preemph=%v", l.Rate, l.Lanes, l.VSwing, l.PreEmph)
}

// EDIDResponse is the header of a firmware EDID response.
type EDIDResponse struct {
	Size  uint8
	Block uint8
}

func b2u(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

// DPSetPowerMng sets the sink power state through DPCD 0x600.
func DPSetPowerMng(mode uint8) *Call {
	var b Builder
	b.U8(mode)
	return NewCall(ModuleDPTX, DPTXSetPowerMng, &b, nil)
}

// DPSetHostCap sends the source capabilities.
func DPSetHostCap(c *HostCap) *Call {
	var b Builder
	b.U8(uint8(c.MaxRate))
	b.U8(c.Lanes&7 | b2u(c.SSC)<<3 | b2u(c.Scrambler)<<4)
	b.U8(c.MaxVSwing&0xF | b2u(c.ForceVSwing)<<4)
	b.U8(c.MaxPreEmph&0xF | b2u(c.ForcePreEmph)<<4)
	b.U8(c.TestPatterns)
	b.U8(b2u(c.FastTraining))
	b.U8(c.LaneMapping)
	b.U8(b2u(c.Enhanced))
	return NewCall(ModuleDPTX, DPTXSetHostCap, &b, nil)
}

// DPGetEDID reads one 128 bytes EDID block through AUX into buf.
func DPGetEDID(segment, ext uint8, buf []byte, resp *EDIDResponse) *Call {
	var b Builder
	b.U8(segment).U8(ext)
	return NewCall(ModuleDPTX, DPTXGetEDID, &b, edidReply(buf, resp))
}

func edidReply(buf []byte, resp *EDIDResponse) func(r *Reader) error {
	return func(r *Reader) error {
		resp.Size = r.U8()
		resp.Block = r.U8()
		if len(buf) > EDIDBlockSize {
			buf = buf[:EDIDBlockSize]
		}
		r.Bytes(buf)
		return nil
	}
}

// DPReadDPCD reads len(buf) bytes of sink DPCD at addr.
func DPReadDPCD(addr uint32, buf []byte) *Call {
	var b Builder
	b.U16(uint16(len(buf))).U24(addr)
	return NewCall(ModuleDPTX, DPTXReadDPCD, &b, func(r *Reader) error {
		n := r.U16()
		a := r.U24()
		if err := r.Err(); err != nil {
			return err
		}
		if a != addr || int(n) != len(buf) {
			return fmt.Errorf("cdn: DPCD read %d@%#x answered %d@%#x", len(buf), addr, n, a)
		}
		r.Bytes(buf)
		return nil
	})
}

// DPWriteDPCD writes data to the sink DPCD at addr.
func DPWriteDPCD(addr uint32, data []byte) *Call {
	var b Builder
	b.U16(uint16(len(data))).U24(addr).Bytes(data)
	return NewCall(ModuleDPTX, DPTXWriteDPCD, &b, func(r *Reader) error {
		n := r.U16()
		a := r.U24()
		if err := r.Err(); err != nil {
			return err
		}
		if a != addr || int(n) != len(data) {
			return fmt.Errorf("cdn: DPCD write %d@%#x answered %d@%#x", len(data), addr, n, a)
		}
		return nil
	})
}

// DPEnableEvent selects which events the firmware reports in SW_EVENTS.
func DPEnableEvent(hpd, training bool) *Call {
	var b Builder
	b.U8(b2u(hpd) | b2u(training)<<1).U8(0).U8(0).U8(0).U8(0)
	return NewCall(ModuleDPTX, DPTXEnableEvent, &b, nil)
}

// DPWriteRegister writes a DPTX controller register.
func DPWriteRegister(addr uint16, v uint32) *Call {
	var b Builder
	b.U16(addr).U32(v)
	return NewCall(ModuleDPTX, DPTXWriteRegister, &b, nil)
}

// DPReadRegister reads a DPTX controller register.
func DPReadRegister(addr uint16, v *uint32) *Call {
	var b Builder
	b.U16(addr)
	return NewCall(ModuleDPTX, DPTXReadRegister, &b, func(r *Reader) error {
		a := r.U16()
		val := r.U32()
		if err := r.Err(); err != nil {
			return err
		}
		if a != addr {
			return fmt.Errorf("cdn: DPTX read register %#x answered for %#x", addr, a)
		}
		*v = val
		return nil
	})
}

// DPWriteField writes width bits at start in a DPTX controller register.
func DPWriteField(addr uint16, start, width uint8, v uint32) *Call {
	var b Builder
	b.U16(addr).U8(start).U8(width).U32(v)
	return NewCall(ModuleDPTX, DPTXWriteField, &b, nil)
}

// DPTrainingControl starts (1) or stops (0) link training.
func DPTrainingControl(v uint8) *Call {
	var b Builder
	b.U8(v)
	return NewCall(ModuleDPTX, DPTXTrainingControl, &b, nil)
}

// DPReadEvent reads the pending DPTX sub events.
func DPReadEvent(e *LinkEvent) *Call {
	return NewCall(ModuleDPTX, DPTXReadEvent, nil, func(r *Reader) error {
		e.Training = r.U8()
		e.HPD = r.U8()
		return nil
	})
}

// DPReadLinkStat reads the trained link parameters.
func DPReadLinkStat(l *LinkStatus) *Call {
	return NewCall(ModuleDPTX, DPTXReadLinkStat, nil, func(r *Reader) error {
		l.Rate = LinkRate(r.U8())
		l.Lanes = r.U8()
		r.Bytes(l.VSwing[:])
		r.Bytes(l.PreEmph[:])
		return nil
	})
}

// DPSetVideo turns the video stream on (1) or off (0).
func DPSetVideo(mode uint8) *Call {
	var b Builder
	b.U8(mode)
	return NewCall(ModuleDPTX, DPTXSetVideo, &b, nil)
}

// DPHPDState reads the DisplayPort hot plug state.
func DPHPDState(hpd *bool) *Call {
	return NewCall(ModuleDPTX, DPTXHPDState, nil, func(r *Reader) error {
		*hpd = r.U8() != 0
		return nil
	})
}

// Blocking variants.

// DPSetPowerMng is the blocking variant of DPSetPowerMng().
func (s *Session) DPSetPowerMng(mode uint8) error {
	return s.Run(DPSetPowerMng(mode))
}

// DPSetHostCap is the blocking variant of DPSetHostCap().
func (s *Session) DPSetHostCap(c *HostCap) error {
	return s.Run(DPSetHostCap(c))
}

// DPGetEDID is the blocking variant of DPGetEDID().
func (s *Session) DPGetEDID(segment, ext uint8, buf []byte) (EDIDResponse, error) {
	var resp EDIDResponse
	err := s.Run(DPGetEDID(segment, ext, buf, &resp))
	return resp, err
}

// DPReadDPCD is the blocking variant of DPReadDPCD().
func (s *Session) DPReadDPCD(addr uint32, buf []byte) error {
	return s.Run(DPReadDPCD(addr, buf))
}

// DPWriteDPCD is the blocking variant of DPWriteDPCD().
func (s *Session) DPWriteDPCD(addr uint32, data []byte) error {
	return s.Run(DPWriteDPCD(addr, data))
}

// DPEnableEvent is the blocking variant of DPEnableEvent().
func (s *Session) DPEnableEvent(hpd, training bool) error {
	return s.Run(DPEnableEvent(hpd, training))
}

// DPWriteRegister is the blocking variant of DPWriteRegister().
func (s *Session) DPWriteRegister(addr uint16, v uint32) error {
	return s.Run(DPWriteRegister(addr, v))
}

// DPReadRegister is the blocking variant of DPReadRegister().
func (s *Session) DPReadRegister(addr uint16) (uint32, error) {
	var v uint32
	err := s.Run(DPReadRegister(addr, &v))
	return v, err
}

// DPWriteField is the blocking variant of DPWriteField().
func (s *Session) DPWriteField(addr uint16, start, width uint8, v uint32) error {
	return s.Run(DPWriteField(addr, start, width, v))
}

// DPTrainingControl is the blocking variant of DPTrainingControl().
func (s *Session) DPTrainingControl(v uint8) error {
	return s.Run(DPTrainingControl(v))
}

// DPReadEvent is the blocking variant of DPReadEvent().
func (s *Session) DPReadEvent() (LinkEvent, error) {
	var e LinkEvent
	err := s.Run(DPReadEvent(&e))
	return e, err
}

// DPReadLinkStat is the blocking variant of DPReadLinkStat().
func (s *Session) DPReadLinkStat() (LinkStatus, error) {
	var l LinkStatus
	err := s.Run(DPReadLinkStat(&l))
	return l, err
}

// DPSetVideo is the blocking variant of DPSetVideo().
func (s *Session) DPSetVideo(mode uint8) error {
	return s.Run(DPSetVideo(mode))
}

// DPHPDState is the blocking variant of DPHPDState().
func (s *Session) DPHPDState() (bool, error) {
	var hpd bool
	err := s.Run(DPHPDState(&hpd))
	return hpd, err
}

// DPSetVIC programs the DPTX framer for v. See DPSetVIC().
func (s *Session) DPSetVIC(v *Video) (TU, error) {
	q, tu, err := DPSetVIC(v)
	if err != nil {
		return tu, err
	}
	return tu, s.Run(q)
}
