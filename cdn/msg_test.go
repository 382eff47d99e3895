// Copyright 2019 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package cdn

import (
	"bytes"
	"errors"
	"testing"

	"periph.io/x/periph/conn/physic"
)

func TestEncode(t *testing.T) {
	var b Builder
	b.U8(0x12).U16(0x3456).U24(0x789abc).U32(0xdef01234).Bytes([]byte("hi"))
	if l := b.Len(); l != 12 {
		t.Fatalf("Len() = %d", l)
	}
	got, err := Encode(ModuleDPTX, DPTXReadDPCD, b.Payload())
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{
		0x03, 0x01, 0x00, 0x0c,
		0x12, 0x34, 0x56, 0x78, 0x9a, 0xbc, 0xde, 0xf0, 0x12, 0x34, 'h', 'i',
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("Encode() = % x, want % x", got, want)
	}
	h, err := ParseHeader(got)
	if err != nil {
		t.Fatal(err)
	}
	if h.Module != ModuleDPTX || h.Opcode != DPTXReadDPCD || h.Len != 12 {
		t.Fatalf("ParseHeader() = %s", h)
	}
}

func TestEncode_TooLarge(t *testing.T) {
	if _, err := Encode(ModuleGeneral, GeneralTestEcho, make([]byte, MaxPayload+1)); err == nil {
		t.Fatal("expected error")
	}
}

func TestParseHeader_Short(t *testing.T) {
	if _, err := ParseHeader([]byte{1, 2, 3}); err != ErrShortMessage {
		t.Fatalf("ParseHeader() = %v", err)
	}
}

func TestReader(t *testing.T) {
	r := NewReader([]byte{0x12, 0x34, 0x56, 0x78, 0x9a, 0xbc, 0xde, 0xf0, 0x11, 0x22, 0x33, 0x44, 0x55})
	if v := r.U8(); v != 0x12 {
		t.Fatalf("U8() = %#x", v)
	}
	if v := r.U16(); v != 0x3456 {
		t.Fatalf("U16() = %#x", v)
	}
	if v := r.U24(); v != 0x789abc {
		t.Fatalf("U24() = %#x", v)
	}
	if v := r.U32(); v != 0xdef01122 {
		t.Fatalf("U32() = %#x", v)
	}
	var p [2]byte
	r.Bytes(p[:])
	if p != [2]byte{0x33, 0x44} {
		t.Fatalf("Bytes() = % x", p)
	}
	if n := r.Remaining(); n != 1 {
		t.Fatalf("Remaining() = %d", n)
	}
	if rest := r.Rest(); !bytes.Equal(rest, []byte{0x55}) {
		t.Fatalf("Rest() = % x", rest)
	}
	if err := r.Err(); err != nil {
		t.Fatal(err)
	}
}

func TestReader_Short(t *testing.T) {
	r := NewReader([]byte{1, 2, 3})
	if v := r.U32(); v != 0 {
		t.Fatalf("U32() = %#x", v)
	}
	if !errors.Is(r.Err(), ErrShortMessage) {
		t.Fatalf("Err() = %v", r.Err())
	}
	// Sticky.
	if v := r.U8(); v != 0 {
		t.Fatalf("U8() = %#x", v)
	}
	if r.Rest() != nil {
		t.Fatal("Rest() after error")
	}
}

func TestModule_String(t *testing.T) {
	if s := ModuleHDMITX.String(); s != "HDMITX" {
		t.Fatal(s)
	}
	if s := Module(0x42).String(); s != "Module(0x42)" {
		t.Fatal(s)
	}
}

func TestHostCapEncoding(t *testing.T) {
	c := DPSetHostCap(&HostCap{
		MaxRate:      HBR2,
		Lanes:        4,
		SSC:          true,
		MaxVSwing:    3,
		ForceVSwing:  true,
		MaxPreEmph:   2,
		TestPatterns: 0x0F,
		LaneMapping:  0x1B,
		Enhanced:     true,
	})
	want := []byte{0x14, 0x0c, 0x13, 0x02, 0x0F, 0x00, 0x1B, 0x01}
	if !bytes.Equal(c.Payload, want) {
		t.Fatalf("payload = % x, want % x", c.Payload, want)
	}
	if c.Reply != nil {
		t.Fatal("SET_HOST_CAPABILITIES has no response")
	}
}

func TestFormat_BitsPerPixel(t *testing.T) {
	data := []struct {
		f     Format
		depth int
		want  int
	}{
		{RGB, 8, 24},
		{YCbCr444, 10, 30},
		{YCbCr422, 8, 16},
		{YCbCr420, 8, 12},
		{YOnly, 8, 8},
	}
	for _, line := range data {
		if got := line.f.BitsPerPixel(line.depth); got != line.want {
			t.Errorf("%s.BitsPerPixel(%d) = %d, want %d", line.f, line.depth, got, line.want)
		}
	}
}

func TestLinkRate(t *testing.T) {
	if k := HBR2.SymbolKHz(); k != 540000 {
		t.Fatalf("SymbolKHz() = %d", k)
	}
	if f := HBR2.Frequency(); f != 5400*physic.MegaHertz {
		t.Fatalf("Frequency() = %s", f)
	}
	if LinkRate(0x07).Valid() {
		t.Fatal("0x07 is not a link rate")
	}
}
