// Copyright 2019 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package ddc reads EDID blocks and accesses the SCDC over the HDMI DDC I²C
// bus.
//
// It is used when the DDC lines are wired to a host I²C controller instead of
// the transmitter firmware.
//
// Datasheet
//
// VESA Enhanced Display Data Channel (E-DDC) Standard, version 1.3.
package ddc

import (
	"errors"
	"fmt"

	"periph.io/x/periph/conn/i2c"
)

// DDC slave addresses.
const (
	SegmentAddr = 0x30
	EDIDAddr    = 0x50
	SCDCAddr    = 0x54
)

// BlockSize is the size of an EDID block.
const BlockSize = 128

// ErrChecksum is returned when an EDID block checksum doesn't add up to 0.
var ErrChecksum = errors.New("ddc: invalid EDID block checksum")

// Dev is the DDC bus of a sink.
type Dev struct {
	b i2c.Bus
}

// New returns a Dev on the I²C bus b.
func New(b i2c.Bus) *Dev {
	return &Dev{b: b}
}

func (d *Dev) String() string {
	return fmt.Sprintf("ddc(%s)", d.b)
}

// ReadBlock reads EDID block number block into buf, which must be at least
// BlockSize long.
//
// The segment pointer is only written for blocks 2 and above, since sinks
// without E-DDC support NACK it.
func (d *Dev) ReadBlock(buf []byte, block int) error {
	if block < 0 || block > 255 {
		return fmt.Errorf("ddc: invalid block %d", block)
	}
	if len(buf) < BlockSize {
		return fmt.Errorf("ddc: buffer too short: %d bytes", len(buf))
	}
	buf = buf[:BlockSize]
	if seg := byte(block / 2); seg != 0 {
		if err := d.b.Tx(SegmentAddr, []byte{seg}, nil); err != nil {
			return fmt.Errorf("ddc: segment %d: %w", seg, err)
		}
	}
	off := byte(block%2) * BlockSize
	if err := d.b.Tx(EDIDAddr, []byte{off}, buf); err != nil {
		return fmt.Errorf("ddc: block %d: %w", block, err)
	}
	return Checksum(buf)
}

// Read implements hdmi.DDC.
func (d *Dev) Read(slave, offset uint8, buf []byte) error {
	return d.b.Tx(uint16(slave), []byte{offset}, buf)
}

// Write implements hdmi.DDC.
func (d *Dev) Write(slave, offset uint8, data []byte) error {
	w := make([]byte, 1+len(data))
	w[0] = offset
	copy(w[1:], data)
	return d.b.Tx(uint16(slave), w, nil)
}

// Checksum verifies the checksum of an EDID block.
func Checksum(block []byte) error {
	var s byte
	for _, c := range block {
		s += c
	}
	if s != 0 {
		return ErrChecksum
	}
	return nil
}
