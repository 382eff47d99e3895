// Copyright 2019 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package hdmi

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"periph.io/x/hdp/cdn"
	"periph.io/x/hdp/cdn/cdntest"
	"periph.io/x/hdp/ddc"
	"periph.io/x/periph/conn/i2c/i2ctest"
	"periph.io/x/periph/conn/physic"
)

func TestCharacterRate(t *testing.T) {
	data := []struct {
		pixel physic.Frequency
		f     cdn.Format
		depth int
		want  physic.Frequency
	}{
		{148500 * physic.KiloHertz, cdn.RGB, 8, 148500 * physic.KiloHertz},
		{148500 * physic.KiloHertz, cdn.RGB, 10, 185625 * physic.KiloHertz},
		{148500 * physic.KiloHertz, cdn.YCbCr444, 12, 222750 * physic.KiloHertz},
		{148500 * physic.KiloHertz, cdn.YCbCr422, 12, 148500 * physic.KiloHertz},
		{594 * physic.MegaHertz, cdn.YCbCr420, 8, 297 * physic.MegaHertz},
		{594 * physic.MegaHertz, cdn.YCbCr420, 10, 371250 * physic.KiloHertz},
	}
	for i, line := range data {
		if got := CharacterRate(line.pixel, line.f, line.depth); got != line.want {
			t.Errorf("#%d: CharacterRate() = %d, want %d", i, got, line.want)
		}
	}
}

func TestSelectProtocol(t *testing.T) {
	hdmi := &Sink{HDMI: true}
	if p := SelectProtocol(&Sink{}, 594*physic.MegaHertz); p != DVI {
		t.Fatal(p)
	}
	if p := SelectProtocol(hdmi, 340*physic.MegaHertz); p != HDMI14 {
		t.Fatal(p)
	}
	if p := SelectProtocol(hdmi, 341*physic.MegaHertz); p != HDMI20 {
		t.Fatal(p)
	}
	if p := SelectProtocol(&Sink{HDMI: true, Scrambling: true}, 297*physic.MegaHertz); p != HDMI20 {
		t.Fatal(p)
	}
	if p := SelectProtocol(&Sink{Scrambling: true}, 297*physic.MegaHertz); p != DVI {
		t.Fatal(p)
	}
	if s := Protocol(7).String(); s != "Protocol(7)" {
		t.Fatal(s)
	}
}

func TestAVIInfoframe(t *testing.T) {
	b, err := AVIInfoframe(&mode1080p, cdn.RGB, 8, &Sink{HDMI: true}, 16)
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{0x82, 2, 13, 0x27, 0x10, 0x28, 0, 16, 0, 0, 0, 0, 0, 0, 0, 0, 0}
	if !bytes.Equal(b, want) {
		t.Fatalf("% x\nwant % x", b, want)
	}
	sink := &Sink{HDMI: true, Colorimetry: BT2020YCC | BT2020RGB}
	if b, err = AVIInfoframe(&mode1080p, cdn.YCbCr444, 10, sink, 16); err != nil {
		t.Fatal(err)
	}
	if b[4] != 0x50 || b[5] != 0xE8 || b[6] != 0x60 || sum(b) != 0 {
		t.Fatalf("% x", b)
	}
	// BT.2020 isn't used at 8 bits.
	if b, err = AVIInfoframe(&mode1080p, cdn.YCbCr422, 8, sink, 16); err != nil {
		t.Fatal(err)
	}
	if b[4] != 0x30 || b[5] != 0xA8 || b[6] != 0 || sum(b) != 0 {
		t.Fatalf("% x", b)
	}
	// 8 bits VICs need version 3.
	if b, err = AVIInfoframe(&mode1080p, cdn.RGB, 8, sink, 200); err != nil {
		t.Fatal(err)
	}
	if b[1] != 3 || b[7] != 200 || sum(b) != 0 {
		t.Fatalf("% x", b)
	}
	if _, err = AVIInfoframe(&mode1080p, cdn.YOnly, 8, sink, 16); err == nil {
		t.Fatal("Y only can't be sent")
	}
}

func TestVendorInfoframe(t *testing.T) {
	if b := VendorInfoframe(16); b != nil {
		t.Fatalf("% x", b)
	}
	b := VendorInfoframe(95)
	want := []byte{0x81, 1, 5, 0, 0x03, 0x0C, 0x00, 0x20, 1}
	want[3] = -sum(want)
	if !bytes.Equal(b, want) {
		t.Fatalf("% x\nwant % x", b, want)
	}
	for vic, hv := range map[uint8]uint8{93: 3, 94: 2, 98: 4} {
		if b := VendorInfoframe(vic); b[8] != hv {
			t.Fatalf("VIC %d: % x", vic, b)
		}
	}
}

func TestVIC(t *testing.T) {
	m := mode1080p
	m.VIC = 0
	if v := VIC(&m); v != 16 {
		t.Fatal(v)
	}
	m.PixelClock = 148352 * physic.KiloHertz
	if v := VIC(&m); v != 16 {
		t.Fatalf("59.94Hz: %d", v)
	}
	m.PixelClock = 140 * physic.MegaHertz
	if v := VIC(&m); v != 0 {
		t.Fatal(v)
	}
	m = mode1080p
	m.VIC = 31
	if v := VIC(&m); v != 31 {
		t.Fatal(v)
	}
}

func TestInfoframeSet(t *testing.T) {
	f := cdntest.New()
	tx := New(cdn.New(f, nil), nil, nil)
	pkt := []byte{0, 1, 2, 3, 4, 5}
	if err := tx.InfoframeSet(3, pkt, TypeAVI); err != nil {
		t.Fatal(err)
	}
	want := []reg{
		{RegPIFPktAlloc, 1<<17 | 3},
		{RegPIFPktAllocWr, 1},
		{RegPIFFifo1Flush, 1},
		{RegPIFDataWr, 0x03020100},
		{RegPIFDataWr, 0x00000504},
		{RegPIFWrAddr, 3},
		{RegPIFWrReq, 1},
		{RegPIFPktAlloc, 1<<17 | 1<<16 | 0x82<<8 | 3},
		{RegPIFPktAllocWr, 1},
	}
	got := writes(f)
	if len(got) != len(want) {
		t.Fatalf("%x\nwant %x", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("#%d: %x, want %x", i, got[i], want[i])
		}
	}
}

func TestModeSet_HDMI14(t *testing.T) {
	f := cdntest.New()
	tx := New(cdn.New(f, nil), nil, nil)
	p, err := tx.ModeSet(&mode1080p, cdn.RGB, 8, &Sink{HDMI: true})
	if p != HDMI14 || err != nil {
		t.Fatalf("ModeSet() = %s, %v", p, err)
	}
	v := f.Reg(RegController)
	if v&ctrlModeMask != uint32(HDMI14) || v&ctrlDataEn == 0 || v&ctrlGCPEn == 0 {
		t.Fatalf("HDTX_CONTROLLER = %#x", v)
	}
	if f.Count(cdn.ModuleHDMITX, cdn.HDMITXWrite) != 0 {
		t.Fatal("no SCDC access expected")
	}
	if v := f.Reg(RegSchedulerHSize); v != 1920<<16|280 {
		t.Fatalf("SCHEDULER_H_SIZE = %#x", v)
	}
	if v := f.Reg(RegSchedulerVSize); v != 1080<<16|45 {
		t.Fatalf("SCHEDULER_V_SIZE = %#x", v)
	}
	if v := f.Reg(RegFrontWidth); v != 4<<16|88 {
		t.Fatalf("FRONT_WIDTH = %#x", v)
	}
	if v := f.Reg(RegSyncWidth); v != 5<<16|44 {
		t.Fatalf("SYNC_WIDTH = %#x", v)
	}
	if v := f.Reg(RegBackWidth); v != 36<<16|148 {
		t.Fatalf("BACK_WIDTH = %#x", v)
	}
	if v := f.Reg(RegHSync2VSyncPolCtrl); v != 0 {
		t.Fatalf("polarity = %#x", v)
	}
	if v := f.Reg(RegHPD); v != 4 {
		t.Fatalf("HDTX_HPD = %#x", v)
	}
	if v := f.Reg(RegClock1); v != 0xFFFFF {
		t.Fatalf("CLOCK_REG_1 = %#x", v)
	}
	pkts := packets(f)
	if len(pkts) != 1 || pkts[0].typ != TypeAVI || pkts[0].data[8] != 16 {
		t.Fatalf("%+v", pkts)
	}
}

func TestModeSet_HDMI14VendorInfoframe(t *testing.T) {
	f := cdntest.New()
	tx := New(cdn.New(f, nil), nil, nil)
	p, err := tx.ModeSet(&mode2160p30, cdn.RGB, 8, &Sink{HDMI: true})
	if p != HDMI14 || err != nil {
		t.Fatalf("ModeSet() = %s, %v", p, err)
	}
	pkts := packets(f)
	if len(pkts) != 2 {
		t.Fatalf("%+v", pkts)
	}
	// The AVI VIC is 0, the mode is carried by the HDMI_VIC.
	if pkts[0].entry != EntryAVI || pkts[0].data[8] != 0 {
		t.Fatalf("AVI %+v", pkts[0])
	}
	if pkts[1].entry != EntryVendor || pkts[1].typ != TypeVendor || pkts[1].data[9] != 1 {
		t.Fatalf("vendor %+v", pkts[1])
	}
}

func TestModeSet_HDMI20(t *testing.T) {
	f := cdntest.New()
	tx := New(cdn.New(f, nil), nil, nil)
	m := mode2160p30
	m.PixelClock = 594 * physic.MegaHertz
	m.VIC = 97
	p, err := tx.ModeSet(&m, cdn.RGB, 8, &Sink{HDMI: true})
	if p != HDMI20 || err != nil {
		t.Fatalf("ModeSet() = %s, %v", p, err)
	}
	if v := f.DDC(scdcAddr)[scdcTMDSConfig]; v != 3 {
		t.Fatalf("TMDS_Config = %d", v)
	}
	if v := f.Reg(RegController); v&ctrlModeMask != uint32(HDMI20) {
		t.Fatalf("HDTX_CONTROLLER = %#x", v)
	}
	pkts := packets(f)
	if len(pkts) != 1 || pkts[0].data[8] != 97 {
		t.Fatalf("%+v", pkts)
	}
}

func TestModeSet_HDMI20LowRate(t *testing.T) {
	f := cdntest.New()
	tx := New(cdn.New(f, nil), nil, nil)
	p, err := tx.ModeSet(&mode1080p, cdn.RGB, 8, &Sink{HDMI: true, Scrambling: true})
	if p != HDMI20 || err != nil {
		t.Fatalf("ModeSet() = %s, %v", p, err)
	}
	if v := f.DDC(scdcAddr)[scdcTMDSConfig]; v != 1 {
		t.Fatalf("TMDS_Config = %d", v)
	}
	if v := f.Reg(RegController); v&ctrlModeMask != uint32(HDMI20) {
		t.Fatalf("HDTX_CONTROLLER = %#x", v)
	}
}

func TestModeSet_DVI(t *testing.T) {
	f := cdntest.New()
	tx := New(cdn.New(f, nil), nil, nil)
	m := mode1080p
	m.HSyncPositive = false
	p, err := tx.ModeSet(&m, cdn.RGB, 8, &Sink{})
	if p != DVI || err != nil {
		t.Fatalf("ModeSet() = %s, %v", p, err)
	}
	if pkts := packets(f); len(pkts) != 0 {
		t.Fatalf("%+v", pkts)
	}
	if v := f.Reg(RegHSync2VSyncPolCtrl); v != polHSyncLow {
		t.Fatalf("polarity = %#x", v)
	}
}

func TestModeSet_SCDCNack(t *testing.T) {
	f := cdntest.New()
	f.NoDDC = true
	tx := New(cdn.New(f, nil), nil, nil)
	m := mode2160p30
	m.PixelClock = 594 * physic.MegaHertz
	_, err := tx.ModeSet(&m, cdn.RGB, 8, &Sink{HDMI: true})
	var de *cdn.DDCError
	if !errors.As(err, &de) || de.Status != cdn.DDCNack {
		t.Fatalf("ModeSet() = %v", err)
	}
	if f.Reg(RegController)&ctrlDataEn != 0 {
		t.Fatal("data must stay disabled")
	}
}

func TestModeSet_BadDepth(t *testing.T) {
	f := cdntest.New()
	tx := New(cdn.New(f, nil), nil, nil)
	if _, err := tx.ModeSet(&mode1080p, cdn.RGB, 9, &Sink{}); !errors.Is(err, ErrNotSupported) {
		t.Fatal(err)
	}
}

func TestSetMode_I2C(t *testing.T) {
	b := i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: scdcAddr, W: []byte{scdcTMDSConfig, 1}},
		},
	}
	f := cdntest.New()
	tx := New(cdn.New(f, nil), ddc.New(&b), nil)
	if err := tx.SetMode(HDMI20, 297*physic.MegaHertz); err != nil {
		t.Fatal(err)
	}
	if err := b.Close(); err != nil {
		t.Fatal(err)
	}
	if f.Count(cdn.ModuleHDMITX, cdn.HDMITXWrite) != 0 {
		t.Fatal("the firmware DDC must not be used")
	}
}

func TestPhyInit(t *testing.T) {
	f := cdntest.New()
	p := &fakePHY{}
	tx := New(cdn.New(f, nil), nil, p)
	if err := tx.PhyInit(&mode1080p, cdn.YCbCr444, 10); err != nil {
		t.Fatal(err)
	}
	if p.rate != 185625*physic.KiloHertz || p.f != cdn.YCbCr444 || p.depth != 10 {
		t.Fatalf("%+v", p)
	}
	m := mode2160p30
	m.PixelClock = 594 * physic.MegaHertz
	if err := tx.PhyInit(&m, cdn.RGB, 10); !errors.Is(err, ErrNotSupported) {
		t.Fatal(err)
	}
	p.err = errors.New("no power")
	if err := tx.PhyInit(&mode1080p, cdn.RGB, 8); err == nil {
		t.Fatal("expected error")
	}
}

//

type reg struct {
	addr, v uint32
}

// writes returns the General module register writes.
func writes(f *cdntest.Firmware) []reg {
	var out []reg
	for _, m := range f.Msgs() {
		if m.Module == cdn.ModuleGeneral && m.Opcode == cdn.GeneralWriteRegister {
			out = append(out, reg{binary.BigEndian.Uint32(m.Payload), binary.BigEndian.Uint32(m.Payload[4:])})
		}
	}
	return out
}

type packet struct {
	entry uint8
	typ   uint8
	data  []byte
}

// packets reconstructs the packets written to the packet memory.
func packets(f *cdntest.Firmware) []packet {
	var out []packet
	var data []byte
	for _, r := range writes(f) {
		switch r.addr {
		case RegPIFDataWr:
			var w [4]byte
			binary.LittleEndian.PutUint32(w[:], r.v)
			data = append(data, w[:]...)
		case RegPIFPktAlloc:
			if r.v&pktTypeValid != 0 {
				out = append(out, packet{uint8(r.v & 0xF), uint8(r.v >> 8), data})
				data = nil
			}
		}
	}
	return out
}

func sum(b []byte) byte {
	var s byte
	for _, c := range b {
		s += c
	}
	return s
}

type fakePHY struct {
	rate  physic.Frequency
	f     cdn.Format
	depth int
	err   error
}

func (p *fakePHY) Init(rate physic.Frequency, f cdn.Format, depth int) error {
	p.rate = rate
	p.f = f
	p.depth = depth
	return p.err
}

var mode1080p = cdn.Mode{
	PixelClock:    148500 * physic.KiloHertz,
	HDisplay:      1920,
	HSyncStart:    2008,
	HSyncEnd:      2052,
	HTotal:        2200,
	VDisplay:      1080,
	VSyncStart:    1084,
	VSyncEnd:      1089,
	VTotal:        1125,
	HSyncPositive: true,
	VSyncPositive: true,
	VIC:           16,
}

var mode2160p30 = cdn.Mode{
	PixelClock:    297 * physic.MegaHertz,
	HDisplay:      3840,
	HSyncStart:    4016,
	HSyncEnd:      4104,
	HTotal:        4400,
	VDisplay:      2160,
	VSyncStart:    2168,
	VSyncEnd:      2178,
	VTotal:        2250,
	HSyncPositive: true,
	VSyncPositive: true,
}
