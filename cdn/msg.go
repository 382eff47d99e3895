// Copyright 2019 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package cdn

import (
	"encoding/binary"
	"fmt"
)

// Module identifies the firmware module a message is addressed to.
type Module uint8

// Firmware modules.
const (
	ModuleDPTX        Module = 0x01
	ModuleDPRX        Module = 0x02
	ModuleHDMITX      Module = 0x03
	ModuleHDMIRX      Module = 0x04
	ModuleMHLTX       Module = 0x05
	ModuleMHLRX       Module = 0x06
	ModuleHDCPTX      Module = 0x07
	ModuleHDCPRX      Module = 0x08
	ModuleHDCPGeneral Module = 0x09
	ModuleGeneral     Module = 0x0A
)

func (m Module) String() string {
	switch m {
	case ModuleDPTX:
		return "DPTX"
	case ModuleDPRX:
		return "DPRX"
	case ModuleHDMITX:
		return "HDMITX"
	case ModuleHDMIRX:
		return "HDMIRX"
	case ModuleMHLTX:
		return "MHLTX"
	case ModuleMHLRX:
		return "MHLRX"
	case ModuleHDCPTX:
		return "HDCPTX"
	case ModuleHDCPRX:
		return "HDCPRX"
	case ModuleHDCPGeneral:
		return "HDCP"
	case ModuleGeneral:
		return "General"
	default:
		return fmt.Sprintf("Module(%#02x)", uint8(m))
	}
}

// Opcode is the operation requested within a Module.
type Opcode uint8

// General module opcodes.
const (
	GeneralMainControl   Opcode = 0x01
	GeneralTestEcho      Opcode = 0x02
	GeneralBusSettings   Opcode = 0x03
	GeneralTestAccess    Opcode = 0x04
	GeneralWriteRegister Opcode = 0x05
	GeneralWriteField    Opcode = 0x06
	GeneralReadRegister  Opcode = 0x07
	GeneralGetHPDState   Opcode = 0x11
)

// DPTX module opcodes.
const (
	DPTXSetPowerMng      Opcode = 0x00
	DPTXSetHostCap       Opcode = 0x01
	DPTXGetEDID          Opcode = 0x02
	DPTXReadDPCD         Opcode = 0x03
	DPTXWriteDPCD        Opcode = 0x04
	DPTXEnableEvent      Opcode = 0x05
	DPTXWriteRegister    Opcode = 0x06
	DPTXReadRegister     Opcode = 0x07
	DPTXWriteField       Opcode = 0x08
	DPTXTrainingControl  Opcode = 0x09
	DPTXReadEvent        Opcode = 0x0a
	DPTXReadLinkStat     Opcode = 0x0b
	DPTXSetVideo         Opcode = 0x0c
	DPTXSetAudio         Opcode = 0x0d
	DPTXGetLastAUXStatus Opcode = 0x0e
	DPTXSetLinkBreakPt   Opcode = 0x0f
	DPTXForceLanes       Opcode = 0x10
	DPTXHPDState         Opcode = 0x11
	DPTXAdjustLT         Opcode = 0x12
)

// HDMITX module opcodes.
const (
	HDMITXRead       Opcode = 0x00
	HDMITXWrite      Opcode = 0x01
	HDMITXUpdateRead Opcode = 0x02
	HDMITXEDID       Opcode = 0x03
	HDMITXEvents     Opcode = 0x04
	HDMITXHPDStatus  Opcode = 0x05
	HDMITXDebugEcho  Opcode = 0xAA
	HDMITXTest       Opcode = 0xBB
)

// HeaderSize is the size of the message header.
const HeaderSize = 4

// MaxPayload is the largest payload the length field can describe.
const MaxPayload = 0xFFFF

// Header is the decoded message header.
type Header struct {
	Opcode Opcode
	Module Module
	Len    int
}

func (h Header) String() string {
	return fmt.Sprintf("%s/%#02x len=%d", h.Module, uint8(h.Opcode), h.Len)
}

// ParseHeader decodes a message header.
func ParseHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, ErrShortMessage
	}
	return Header{
		Opcode: Opcode(b[0]),
		Module: Module(b[1]),
		Len:    int(binary.BigEndian.Uint16(b[2:])),
	}, nil
}

// Encode returns the complete message, header included.
func Encode(m Module, op Opcode, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayload {
		return nil, fmt.Errorf("cdn: payload too large: %d bytes", len(payload))
	}
	out := make([]byte, HeaderSize+len(payload))
	out[0] = byte(op)
	out[1] = byte(m)
	binary.BigEndian.PutUint16(out[2:], uint16(len(payload)))
	copy(out[HeaderSize:], payload)
	return out, nil
}

// Builder builds a message payload field by field.
//
// The zero value is ready to use.
type Builder struct {
	b []byte
}

// U8 appends a 1 byte field.
func (b *Builder) U8(v uint8) *Builder {
	b.b = append(b.b, v)
	return b
}

// U16 appends a 2 bytes big endian field.
func (b *Builder) U16(v uint16) *Builder {
	b.b = append(b.b, byte(v>>8), byte(v))
	return b
}

// U24 appends a 3 bytes big endian field, used for DPCD addresses.
func (b *Builder) U24(v uint32) *Builder {
	b.b = append(b.b, byte(v>>16), byte(v>>8), byte(v))
	return b
}

// U32 appends a 4 bytes big endian field.
func (b *Builder) U32(v uint32) *Builder {
	b.b = append(b.b, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
	return b
}

// Bytes appends a raw buffer.
func (b *Builder) Bytes(p []byte) *Builder {
	b.b = append(b.b, p...)
	return b
}

// Len returns the current payload length.
func (b *Builder) Len() int {
	return len(b.b)
}

// Payload returns the accumulated payload.
func (b *Builder) Payload() []byte {
	return b.b
}

// Reader decodes a message payload in declared order.
//
// Every accessor checks the remaining length; the first failure is sticky and
// returned by Err().
type Reader struct {
	b   []byte
	err error
}

// NewReader returns a Reader over a payload.
func NewReader(p []byte) *Reader {
	return &Reader{b: p}
}

func (r *Reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if len(r.b) < n {
		r.err = fmt.Errorf("%w: need %d bytes, have %d", ErrShortMessage, n, len(r.b))
		r.b = nil
		return nil
	}
	p := r.b[:n]
	r.b = r.b[n:]
	return p
}

// U8 reads a 1 byte field.
func (r *Reader) U8() uint8 {
	p := r.take(1)
	if p == nil {
		return 0
	}
	return p[0]
}

// U16 reads a 2 bytes big endian field.
func (r *Reader) U16() uint16 {
	p := r.take(2)
	if p == nil {
		return 0
	}
	return binary.BigEndian.Uint16(p)
}

// U24 reads a 3 bytes big endian field.
func (r *Reader) U24() uint32 {
	p := r.take(3)
	if p == nil {
		return 0
	}
	return uint32(p[0])<<16 | uint32(p[1])<<8 | uint32(p[2])
}

// U32 reads a 4 bytes big endian field.
func (r *Reader) U32() uint32 {
	p := r.take(4)
	if p == nil {
		return 0
	}
	return binary.BigEndian.Uint32(p)
}

// Bytes copies exactly len(p) bytes into p.
func (r *Reader) Bytes(p []byte) {
	if q := r.take(len(p)); q != nil {
		copy(p, q)
	}
}

// Rest returns whatever is left in the payload.
func (r *Reader) Rest() []byte {
	if r.err != nil {
		return nil
	}
	p := r.b
	r.b = nil
	return p
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.b)
}

// Err returns the first decoding error.
func (r *Reader) Err() error {
	return r.err
}
