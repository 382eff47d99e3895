// Copyright 2019 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ddc

import (
	"bytes"
	"testing"

	"periph.io/x/periph/conn/i2c/i2ctest"
)

func TestReadBlock(t *testing.T) {
	blk := makeBlock(0x11)
	b := i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: EDIDAddr, W: []byte{0x80}, R: blk},
		},
	}
	d := New(&b)
	buf := make([]byte, BlockSize)
	if err := d.ReadBlock(buf, 1); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(buf, blk) {
		t.Fatal("block mismatch")
	}
	if err := b.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestReadBlock_Segment(t *testing.T) {
	blk := makeBlock(0x22)
	b := i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: SegmentAddr, W: []byte{1}},
			{Addr: EDIDAddr, W: []byte{0x00}, R: blk},
		},
	}
	d := New(&b)
	buf := make([]byte, BlockSize)
	if err := d.ReadBlock(buf, 2); err != nil {
		t.Fatal(err)
	}
	if err := b.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestReadBlock_Checksum(t *testing.T) {
	blk := makeBlock(0x33)
	blk[10]++
	b := i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: EDIDAddr, W: []byte{0x00}, R: blk},
		},
	}
	d := New(&b)
	buf := make([]byte, BlockSize)
	if err := d.ReadBlock(buf, 0); err != ErrChecksum {
		t.Fatalf("ReadBlock() = %v", err)
	}
}

func TestReadBlock_Invalid(t *testing.T) {
	d := New(&i2ctest.Playback{})
	if err := d.ReadBlock(make([]byte, 10), 0); err == nil {
		t.Fatal("short buffer must fail")
	}
	if err := d.ReadBlock(make([]byte, BlockSize), 256); err == nil {
		t.Fatal("invalid block must fail")
	}
}

func TestSCDC(t *testing.T) {
	b := i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: SCDCAddr, W: []byte{0x20, 0x03}},
			{Addr: SCDCAddr, W: []byte{0x20}, R: []byte{0x03}},
		},
	}
	d := New(&b)
	if err := d.Write(SCDCAddr, 0x20, []byte{3}); err != nil {
		t.Fatal(err)
	}
	var v [1]byte
	if err := d.Read(SCDCAddr, 0x20, v[:]); err != nil || v[0] != 3 {
		t.Fatalf("Read() = %d, %v", v[0], err)
	}
	if err := b.Close(); err != nil {
		t.Fatal(err)
	}
}

//

// makeBlock returns a block filled with fill and a valid checksum.
func makeBlock(fill byte) []byte {
	b := bytes.Repeat([]byte{fill}, BlockSize)
	var s byte
	for _, c := range b[:BlockSize-1] {
		s += c
	}
	b[BlockSize-1] = -s
	return b
}
