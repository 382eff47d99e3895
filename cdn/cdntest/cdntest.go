// Copyright 2019 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package cdntest emulates the HDP firmware mailbox for unit testing.
package cdntest

import (
	"encoding/binary"
	"errors"
	"sync"

	"k8s.io/klog/v2"
	"periph.io/x/hdp/cdn"
)

// Msg is a request received by the Firmware.
type Msg struct {
	Module  cdn.Module
	Opcode  cdn.Opcode
	Payload []byte
}

// Firmware implements cdn.Bus by emulating the firmware behind the APB
// mailbox.
//
// Exported fields can be changed between conversations; they must not be
// modified while a Session is using the Firmware.
type Firmware struct {
	// Delay is the number of MAILBOX_EMPTY reads reporting empty before a
	// response becomes visible.
	Delay int
	// Full is the number of MAILBOX_FULL reads reporting full before the
	// next byte is accepted.
	Full int
	// Dead stops the keep alive counter.
	Dead bool
	// Err is returned by every register access when set.
	Err error
	// Mangle, when set, rewrites every response header.
	Mangle func(h *cdn.Header)

	// Version registers.
	FW  uint16
	Lib uint16

	// Training returns the training sub events reported for an attempt,
	// starting at 1. Defaults to a successful full training.
	Training func(attempt int) []uint8
	// EDID is the sink EDID, one 128 bytes block per entry.
	EDID [][]byte
	// EDIDGlitches is the number of EDID requests answered with the wrong
	// block number.
	EDIDGlitches int
	// NoDDC makes every DDC transfer fail with a NACK.
	NoDDC bool

	mu       sync.Mutex
	in       []byte
	out      []byte
	wait     int
	full     int
	alive    uint32
	reset    bool
	clock    uint32
	events   uint32
	hpd      bool
	hpdEvent uint8
	hdmiEv   uint8
	queue    []uint8
	attempts int
	active   uint8
	video    uint8
	hostCap  []byte
	enabled  uint8
	msgs     []Msg
	regs     map[uint32]uint32
	dpRegs   map[uint16]uint32
	dpcd     map[uint32]byte
	ddc      map[uint8][]byte
}

// New returns a running Firmware with the sink unplugged.
func New() *Firmware {
	return &Firmware{
		FW:     0x2b1,
		Lib:    0x1234,
		regs:   map[uint32]uint32{},
		dpRegs: map[uint16]uint32{},
		dpcd:   map[uint32]byte{},
		ddc:    map[uint8][]byte{},
	}
}

// ReadReg implements cdn.Bus.
func (f *Firmware) ReadReg(off uint32) (uint32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return 0, f.Err
	}
	switch off {
	case cdn.RegAPBCtrl:
		if f.reset {
			return 1, nil
		}
		return 0, nil
	case cdn.RegMailboxFull:
		if f.full > 0 {
			f.full--
			return 1, nil
		}
		return 0, nil
	case cdn.RegMailboxEmpty:
		if len(f.out) == 0 {
			return 1, nil
		}
		if f.wait > 0 {
			f.wait--
			return 1, nil
		}
		return 0, nil
	case cdn.RegMailboxRd:
		if len(f.out) == 0 || f.wait > 0 {
			return 0, errors.New("cdntest: read from empty mailbox")
		}
		b := f.out[0]
		f.out = f.out[1:]
		return uint32(b), nil
	case cdn.RegKeepAlive:
		if !f.Dead && !f.reset {
			f.alive++
		}
		return f.alive, nil
	case cdn.RegVerL:
		return uint32(f.FW & 0xFF), nil
	case cdn.RegVerH:
		return uint32(f.FW >> 8), nil
	case cdn.RegVerLibL:
		return uint32(f.Lib & 0xFF), nil
	case cdn.RegVerLibH:
		return uint32(f.Lib >> 8), nil
	case cdn.RegSWClkH:
		return f.clock, nil
	case cdn.RegSWEvents0, cdn.RegSWEvents1, cdn.RegSWEvents2, cdn.RegSWEvents3:
		shift := 8 * ((off - cdn.RegSWEvents0) / 4)
		v := (f.events >> shift) & 0xFF
		f.events &^= 0xFF << shift
		return v, nil
	default:
		return 0, nil
	}
}

// WriteReg implements cdn.Bus.
func (f *Firmware) WriteReg(off, v uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	switch off {
	case cdn.RegAPBCtrl:
		f.reset = v&1 != 0
	case cdn.RegSWClkH:
		f.clock = v
	case cdn.RegMailboxWr:
		if f.full > 0 {
			return errors.New("cdntest: write to full mailbox")
		}
		f.full = f.Full
		f.in = append(f.in, byte(v))
		if len(f.in) >= cdn.HeaderSize {
			h, _ := cdn.ParseHeader(f.in)
			if len(f.in) == cdn.HeaderSize+h.Len {
				p := make([]byte, h.Len)
				copy(p, f.in[cdn.HeaderSize:])
				f.in = f.in[:0]
				f.handle(h, p)
			}
		}
	}
	return nil
}

// SetHPD plugs or unplugs the sink and raises the hot plug event.
func (f *Firmware) SetHPD(plugged bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hpd = plugged
	if plugged {
		f.hpdEvent = 1
	} else {
		f.hpdEvent = 2
	}
	f.hdmiEv |= 1
	f.events |= uint32(cdn.EventHPD)
}

// Msgs returns the requests received so far.
func (f *Firmware) Msgs() []Msg {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Msg(nil), f.msgs...)
}

// Count returns the number of requests received for opcode op of module m
// whose payload starts with prefix.
func (f *Firmware) Count(m cdn.Module, op cdn.Opcode, prefix ...byte) int {
	n := 0
	for _, msg := range f.Msgs() {
		if msg.Module != m || msg.Opcode != op || len(msg.Payload) < len(prefix) {
			continue
		}
		if string(msg.Payload[:len(prefix)]) == string(prefix) {
			n++
		}
	}
	return n
}

// TrainingAttempts returns the number of times training was started.
func (f *Firmware) TrainingAttempts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts
}

// Reg returns the value of a register written through the General module.
func (f *Firmware) Reg(addr uint32) uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.regs[addr]
}

// SetReg presets a register accessed through the General module.
func (f *Firmware) SetReg(addr, v uint32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.regs[addr] = v
}

// DPReg returns the value of a DPTX controller register.
func (f *Firmware) DPReg(addr uint16) uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dpRegs[addr]
}

// DPCD returns the sink DPCD byte at addr.
func (f *Firmware) DPCD(addr uint32) byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dpcd[addr]
}

// DDC returns the 256 bytes memory of the DDC slave, creating it if needed.
func (f *Firmware) DDC(slave uint8) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ddcMem(slave)
}

// Video returns the last SET_VIDEO value.
func (f *Firmware) Video() uint8 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.video
}

// Active returns the last MAIN_CONTROL mode.
func (f *Firmware) Active() uint8 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active
}

// Clock returns the firmware clock written to SW_CLK_H, in MHz.
func (f *Firmware) Clock() uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.clock
}

// HostCap returns the last SET_HOST_CAPABILITIES payload.
func (f *Firmware) HostCap() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]byte(nil), f.hostCap...)
}

//

func (f *Firmware) ddcMem(slave uint8) []byte {
	m := f.ddc[slave]
	if m == nil {
		m = make([]byte, 256)
		f.ddc[slave] = m
	}
	return m
}

func (f *Firmware) handle(h cdn.Header, p []byte) {
	f.msgs = append(f.msgs, Msg{Module: h.Module, Opcode: h.Opcode, Payload: p})
	klog.V(4).Infof("cdntest: %s % x", h, p)
	r := cdn.NewReader(p)
	var b cdn.Builder
	switch h.Module {
	case cdn.ModuleGeneral:
		if !f.general(h.Opcode, r, &b) {
			return
		}
	case cdn.ModuleDPTX:
		if !f.dptx(h.Opcode, r, &b) {
			return
		}
	case cdn.ModuleHDMITX:
		if !f.hdmitx(h.Opcode, r, &b) {
			return
		}
	default:
		return
	}
	f.reply(h.Module, h.Opcode, b.Payload())
}

func (f *Firmware) reply(m cdn.Module, op cdn.Opcode, payload []byte) {
	h := cdn.Header{Opcode: op, Module: m, Len: len(payload)}
	if f.Mangle != nil {
		f.Mangle(&h)
	}
	var hdr [cdn.HeaderSize]byte
	hdr[0] = byte(h.Opcode)
	hdr[1] = byte(h.Module)
	binary.BigEndian.PutUint16(hdr[2:], uint16(h.Len))
	f.out = append(f.out, hdr[:]...)
	f.out = append(f.out, payload...)
	f.wait = f.Delay
}

// general handles the General module. It returns false when no response is
// sent.
func (f *Firmware) general(op cdn.Opcode, r *cdn.Reader, b *cdn.Builder) bool {
	switch op {
	case cdn.GeneralMainControl:
		f.active = r.U8()
		b.U8(f.active)
	case cdn.GeneralTestEcho:
		b.Bytes(r.Rest())
	case cdn.GeneralWriteRegister:
		addr, v := r.U32(), r.U32()
		f.regs[addr] = v
		return false
	case cdn.GeneralWriteField:
		addr, start, width, v := r.U32(), r.U8(), r.U8(), r.U32()
		f.regs[addr] = field(f.regs[addr], start, width, v)
		return false
	case cdn.GeneralReadRegister:
		addr := r.U32()
		b.U32(addr).U32(f.regs[addr])
	case cdn.GeneralGetHPDState:
		b.U8(b2u(f.hpd))
	default:
		return false
	}
	return true
}

func (f *Firmware) dptx(op cdn.Opcode, r *cdn.Reader, b *cdn.Builder) bool {
	switch op {
	case cdn.DPTXSetPowerMng:
		f.dpcd[0x600] = r.U8()
		return false
	case cdn.DPTXSetHostCap:
		f.hostCap = r.Rest()
		return false
	case cdn.DPTXGetEDID:
		seg, ext := r.U8(), r.U8()
		f.edid(int(seg)*2+int(ext), ext, b)
	case cdn.DPTXReadDPCD:
		n, addr := r.U16(), r.U24()
		b.U16(n).U24(addr)
		for i := uint32(0); i < uint32(n); i++ {
			b.U8(f.dpcd[addr+i])
		}
	case cdn.DPTXWriteDPCD:
		n, addr := r.U16(), r.U24()
		data := r.Rest()
		for i, d := range data {
			f.dpcd[addr+uint32(i)] = d
		}
		b.U16(n).U24(addr)
	case cdn.DPTXEnableEvent:
		f.enabled = r.U8()
		return false
	case cdn.DPTXWriteRegister:
		addr, v := r.U16(), r.U32()
		f.dpRegs[addr] = v
		return false
	case cdn.DPTXReadRegister:
		addr := r.U16()
		b.U16(addr).U32(f.dpRegs[addr])
	case cdn.DPTXWriteField:
		addr, start, width, v := r.U16(), r.U8(), r.U8(), r.U32()
		f.dpRegs[addr] = field(f.dpRegs[addr], start, width, v)
		return false
	case cdn.DPTXTrainingControl:
		if r.U8() == 0 {
			f.queue = nil
			return false
		}
		f.attempts++
		if f.Training != nil {
			f.queue = append([]uint8(nil), f.Training(f.attempts)...)
		} else {
			f.queue = []uint8{0x01, 0x04, 0x08}
		}
		if len(f.queue) != 0 {
			f.events |= uint32(cdn.EventTraining)
		}
		return false
	case cdn.DPTXReadEvent:
		var ev uint8
		if len(f.queue) != 0 {
			ev = f.queue[0]
			f.queue = f.queue[1:]
			if len(f.queue) != 0 {
				f.events |= uint32(cdn.EventTraining)
			}
		}
		b.U8(ev).U8(f.hpdEvent)
		f.hpdEvent = 0
	case cdn.DPTXReadLinkStat:
		rate, lanes := uint8(cdn.HBR2), uint8(4)
		if len(f.hostCap) >= 2 {
			rate, lanes = f.hostCap[0], f.hostCap[1]&7
		}
		b.U8(rate).U8(lanes).Bytes(make([]byte, 8))
	case cdn.DPTXSetVideo:
		f.video = r.U8()
		return false
	case cdn.DPTXHPDState:
		b.U8(b2u(f.hpd))
	default:
		return false
	}
	return true
}

func (f *Firmware) hdmitx(op cdn.Opcode, r *cdn.Reader, b *cdn.Builder) bool {
	switch op {
	case cdn.HDMITXRead:
		slave, off, n := r.U8(), r.U8(), r.U16()
		if f.NoDDC {
			b.U8(uint8(cdn.DDCNack)).U8(slave).U8(off).U16(0)
			break
		}
		m := f.ddcMem(slave)
		b.U8(uint8(cdn.DDCOK)).U8(slave).U8(off).U16(n)
		for i := 0; i < int(n); i++ {
			b.U8(m[(int(off)+i)&0xFF])
		}
	case cdn.HDMITXWrite:
		slave, off, n := r.U8(), r.U8(), r.U16()
		data := r.Rest()
		if f.NoDDC {
			b.U8(uint8(cdn.DDCNack)).U8(slave).U8(off).U16(n)
			break
		}
		m := f.ddcMem(slave)
		for i, d := range data {
			m[(int(off)+i)&0xFF] = d
		}
		b.U8(uint8(cdn.DDCOK)).U8(slave).U8(off).U16(n)
	case cdn.HDMITXEDID:
		seg, ext := r.U8(), r.U8()
		f.edid(int(seg)*2+int(ext), ext, b)
	case cdn.HDMITXEvents:
		b.U8(f.hdmiEv)
		f.hdmiEv = 0
	case cdn.HDMITXHPDStatus:
		b.U8(b2u(f.hpd))
	case cdn.HDMITXDebugEcho:
		b.Bytes(r.Rest())
	default:
		return false
	}
	return true
}

func (f *Firmware) edid(block int, ext uint8, b *cdn.Builder) {
	if f.EDIDGlitches > 0 {
		f.EDIDGlitches--
		ext ^= 1
	}
	buf := make([]byte, cdn.EDIDBlockSize)
	if block < len(f.EDID) {
		copy(buf, f.EDID[block])
	}
	b.U8(cdn.EDIDBlockSize).U8(ext).Bytes(buf)
}

func field(old uint32, start, width uint8, v uint32) uint32 {
	mask := uint32(1)<<width - 1
	if width >= 32 {
		mask = 0xFFFFFFFF
	}
	return old&^(mask<<start) | (v&mask)<<start
}

func b2u(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
