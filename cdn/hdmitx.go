// Copyright 2019 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package cdn

import (
	"bytes"
	"fmt"
)

// DDCStatus is the firmware status of an HDMI DDC transfer.
type DDCStatus uint8

// DDCError is returned when the firmware reports a failed DDC transfer.
type DDCError struct {
	Status DDCStatus
	Slave  uint8
	Offset uint8
}

func (e *DDCError) Error() string {
	return fmt.Sprintf("cdn: DDC transfer to %#02x@%#02x failed with status %d", e.Slave, e.Offset, e.Status)
}

// DDC statuses.
const (
	DDCOK        DDCStatus = 0
	DDCNack      DDCStatus = 1
	DDCArbitLost DDCStatus = 2
	DDCTimeout   DDCStatus = 3
)

// HDMIRead reads len(buf) bytes at offset from the DDC slave through the
// firmware.
func HDMIRead(slave, offset uint8, buf []byte) *Call {
	var b Builder
	b.U8(slave).U8(offset).U16(uint16(len(buf)))
	return NewCall(ModuleHDMITX, HDMITXRead, &b, func(r *Reader) error {
		st := DDCStatus(r.U8())
		sl := r.U8()
		off := r.U8()
		n := r.U16()
		if err := r.Err(); err != nil {
			return err
		}
		if st != DDCOK {
			return &DDCError{Status: st, Slave: sl, Offset: off}
		}
		if int(n) != len(buf) {
			return fmt.Errorf("cdn: DDC read returned %d bytes, want %d", n, len(buf))
		}
		r.Bytes(buf)
		return nil
	})
}

// HDMIWrite writes data at offset to the DDC slave through the firmware.
func HDMIWrite(slave, offset uint8, data []byte) *Call {
	var b Builder
	b.U8(slave).U8(offset).U16(uint16(len(data))).Bytes(data)
	return NewCall(ModuleHDMITX, HDMITXWrite, &b, func(r *Reader) error {
		st := DDCStatus(r.U8())
		sl := r.U8()
		off := r.U8()
		r.U16()
		if err := r.Err(); err != nil {
			return err
		}
		if st != DDCOK {
			return &DDCError{Status: st, Slave: sl, Offset: off}
		}
		return nil
	})
}

// HDMIGetEDID reads one EDID block through the firmware DDC master.
func HDMIGetEDID(segment, ext uint8, buf []byte, resp *EDIDResponse) *Call {
	var b Builder
	b.U8(segment).U8(ext)
	return NewCall(ModuleHDMITX, HDMITXEDID, &b, edidReply(buf, resp))
}

// HDMIEvents reads the pending HDMI transmitter events.
func HDMIEvents(ev *uint8) *Call {
	return NewCall(ModuleHDMITX, HDMITXEvents, nil, func(r *Reader) error {
		*ev = r.U8()
		return nil
	})
}

// HDMIHPDStatus reads the HDMI hot plug state.
func HDMIHPDStatus(hpd *bool) *Call {
	return NewCall(ModuleHDMITX, HDMITXHPDStatus, nil, func(r *Reader) error {
		*hpd = r.U8() != 0
		return nil
	})
}

// HDMIDebugEcho sends out to the HDMI transmitter module and checks that it
// is echoed back.
func HDMIDebugEcho(out []byte) *Call {
	var b Builder
	b.Bytes(out)
	return NewCall(ModuleHDMITX, HDMITXDebugEcho, &b, func(r *Reader) error {
		in := r.Rest()
		if !bytes.Equal(in, out) {
			return fmt.Errorf("%w: got %q, want %q", ErrEcho, in, out)
		}
		return nil
	})
}

// Blocking variants.

// HDMIRead is the blocking variant of HDMIRead().
func (s *Session) HDMIRead(slave, offset uint8, buf []byte) error {
	return s.Run(HDMIRead(slave, offset, buf))
}

// HDMIWrite is the blocking variant of HDMIWrite().
func (s *Session) HDMIWrite(slave, offset uint8, data []byte) error {
	return s.Run(HDMIWrite(slave, offset, data))
}

// HDMIGetEDID is the blocking variant of HDMIGetEDID().
func (s *Session) HDMIGetEDID(segment, ext uint8, buf []byte) (EDIDResponse, error) {
	var resp EDIDResponse
	err := s.Run(HDMIGetEDID(segment, ext, buf, &resp))
	return resp, err
}

// HDMIEvents is the blocking variant of HDMIEvents().
func (s *Session) HDMIEvents() (uint8, error) {
	var ev uint8
	err := s.Run(HDMIEvents(&ev))
	return ev, err
}

// HDMIHPDStatus is the blocking variant of HDMIHPDStatus().
func (s *Session) HDMIHPDStatus() (bool, error) {
	var hpd bool
	err := s.Run(HDMIHPDStatus(&hpd))
	return hpd, err
}

// HDMIDebugEcho is the blocking variant of HDMIDebugEcho().
func (s *Session) HDMIDebugEcho(out []byte) error {
	return s.Run(HDMIDebugEcho(out))
}
