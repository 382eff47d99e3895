// Copyright 2019 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package hdmi drives an HDMI transmitter through the HDP firmware.
//
// The transmitter registers are reached through the firmware General module
// register accesses. SCDC accesses go through a DDC implementation, by default
// the firmware DDC master.
package hdmi

import (
	"encoding/binary"
	"errors"
	"fmt"

	"k8s.io/klog/v2"
	"periph.io/x/hdp/cdn"
	"periph.io/x/periph/conn/physic"
)

// Register windows.
const (
	addrSourceMHLHD = 0x01000
	addrSourceVIF   = 0x00b00
	addrSourcePIF   = 0x30800
)

// ADDR_SOURCE_MHL_HD registers.
const (
	RegSchedulerHSize = addrSourceMHLHD + 0x00
	RegSchedulerVSize = addrSourceMHLHD + 0x04
	RegFrontWidth     = addrSourceMHLHD + 0x08
	RegSyncWidth      = addrSourceMHLHD + 0x0c
	RegBackWidth      = addrSourceMHLHD + 0x10
	RegController     = addrSourceMHLHD + 0x18
	RegHPD            = addrSourceMHLHD + 0x1c
	RegClock0         = addrSourceMHLHD + 0x20
	RegClock1         = addrSourceMHLHD + 0x24
)

// ADDR_SOURCE_VIF registers.
const (
	RegBndHSync2VSync     = addrSourceVIF + 0x00
	RegHSync2VSyncPolCtrl = addrSourceVIF + 0x10
)

// ADDR_SOURCE_PIF registers.
const (
	RegPIFWrAddr     = addrSourcePIF + 0<<2
	RegPIFWrReq      = addrSourcePIF + 1<<2
	RegPIFDataWr     = addrSourcePIF + 4<<2
	RegPIFFifo1Flush = addrSourcePIF + 6<<2
	RegPIFPktAlloc   = addrSourcePIF + 11<<2
	RegPIFPktAllocWr = addrSourcePIF + 12<<2
)

// HDTX_CONTROLLER fields.
const (
	ctrlModeMask  = 0x3
	ctrlGCPEn     = 1 << 2
	ctrlDataEn    = 1 << 3
	ctrlBCHEn     = 1 << 7
	ctrlEncShift  = 16
	ctrlEncMask   = 0x1F << ctrlEncShift
	ctrlWidthShft = 22
	ctrlWidthMask = 0x3 << ctrlWidthShft
)

// PKT_ALLOC fields.
const (
	pktTypeValid = 1 << 16
	pktActive    = 1 << 17
)

const (
	vifBypassInterlace = 1 << 13
	polHSyncLow        = 1 << 1
	polVSyncLow        = 1 << 2
)

// SCDC.
const (
	scdcAddr       = 0x54
	scdcTMDSConfig = 0x20
)

// MaxCharacterRate is the fastest TMDS character rate of HDMI 2.0.
const MaxCharacterRate = 600 * physic.MegaHertz

// scramblingThreshold is the character rate above which HDMI 2.0 scrambling
// and the 1/40 clock ratio are mandatory.
const scramblingThreshold = 340 * physic.MegaHertz

// ErrNotSupported is returned when a mode can't be transmitted.
var ErrNotSupported = errors.New("hdmi: not supported")

// Protocol is the link protocol.
type Protocol uint8

// Protocols, as in HDTX_CONTROLLER.
const (
	DVI    Protocol = 0
	HDMI14 Protocol = 1
	HDMI20 Protocol = 2
)

func (p Protocol) String() string {
	switch p {
	case DVI:
		return "DVI"
	case HDMI14:
		return "HDMI1.4"
	case HDMI20:
		return "HDMI2.0"
	default:
		return fmt.Sprintf("Protocol(%d)", uint8(p))
	}
}

// DDC is the sink DDC bus.
type DDC interface {
	Read(slave, offset uint8, buf []byte) error
	Write(slave, offset uint8, data []byte) error
}

// PHY is the platform specific HDMI PHY.
type PHY interface {
	// Init sets the PHY up for a TMDS character rate.
	Init(charRate physic.Frequency, f cdn.Format, depth int) error
}

// Tx is an HDMI transmitter.
type Tx struct {
	s   *cdn.Session
	ddc DDC
	phy PHY
}

// New returns a Tx using the firmware behind s.
//
// ddc nil means the firmware DDC master. phy may be nil when the PHY is
// initialized by other means.
func New(s *cdn.Session, ddc DDC, phy PHY) *Tx {
	if ddc == nil {
		ddc = &fwDDC{s: s}
	}
	return &Tx{s: s, ddc: ddc, phy: phy}
}

func (t *Tx) String() string {
	return "hdmi"
}

// CharacterRate returns the TMDS character rate needed to carry pixel at
// depth bits per component in f.
func CharacterRate(pixel physic.Frequency, f cdn.Format, depth int) physic.Frequency {
	switch f {
	case cdn.YCbCr422:
		return pixel
	case cdn.YCbCr420:
		return pixel * physic.Frequency(depth) / 16
	default:
		return pixel * physic.Frequency(depth) / 8
	}
}

// SelectProtocol returns the protocol to use with sink.
//
// HDMI 2.0 is required above 340MHz and used below it when the sink supports
// low rate scrambling.
func SelectProtocol(sink *Sink, charRate physic.Frequency) Protocol {
	switch {
	case !sink.HDMI:
		return DVI
	case charRate > scramblingThreshold, sink.Scrambling:
		return HDMI20
	default:
		return HDMI14
	}
}

// Init resets the transmitter controller and sets the hot plug filter and the
// TMDS clock pattern.
func (t *Tx) Init() error {
	regs := []struct{ addr, v uint32 }{
		{RegController, ctrlBCHEn | uint32(HDMI14)},
		{RegHPD, 4},
		{RegClock0, 0x00000},
		{RegClock1, 0xFFFFF},
	}
	for _, r := range regs {
		if err := t.s.WriteRegister(r.addr, r.v); err != nil {
			return fmt.Errorf("hdmi: init: %w", err)
		}
	}
	return nil
}

// SetMode switches the link protocol.
//
// For HDMI 2.0 the sink TMDS configuration is written through SCDC first:
// scrambling, and the 1/40 clock ratio above 340MHz.
func (t *Tx) SetMode(p Protocol, charRate physic.Frequency) error {
	if p == HDMI20 {
		v := uint8(1)
		if charRate > scramblingThreshold {
			v = 3
		}
		if err := t.ddc.Write(scdcAddr, scdcTMDSConfig, []byte{v}); err != nil {
			return fmt.Errorf("hdmi: SCDC: %w", err)
		}
	}
	return t.s.Atomic(func(run func(cdn.Op) error) error {
		var v uint32
		if err := run(cdn.ReadRegister(RegController, &v)); err != nil {
			return err
		}
		v &^= ctrlModeMask | ctrlDataEn
		v |= uint32(p)
		if err := run(cdn.WriteRegister(RegController, v)); err != nil {
			return err
		}
		return run(cdn.WriteRegister(RegController, v|ctrlDataEn))
	})
}

// InfoframeSet writes packet in the packet memory entry and schedules it as
// type typ.
//
// The packet is padded to a multiple of 4 bytes.
func (t *Tx) InfoframeSet(entry uint8, packet []byte, typ uint8) error {
	entry &= 0xF
	words := (len(packet) + 3) / 4
	buf := make([]byte, words*4)
	copy(buf, packet)
	alloc := uint32(entry) | uint32(typ)<<8 | pktActive
	ops := []cdn.Op{
		// Invalidate the entry while it is rewritten.
		cdn.WriteRegister(RegPIFPktAlloc, uint32(entry)|pktActive),
		cdn.WriteRegister(RegPIFPktAllocWr, 1),
		cdn.WriteRegister(RegPIFFifo1Flush, 1),
	}
	for i := 0; i < words; i++ {
		ops = append(ops, cdn.WriteRegister(RegPIFDataWr, binary.LittleEndian.Uint32(buf[4*i:])))
	}
	ops = append(ops,
		cdn.WriteRegister(RegPIFWrAddr, uint32(entry)),
		cdn.WriteRegister(RegPIFWrReq, 1),
		cdn.WriteRegister(RegPIFPktAlloc, alloc|pktTypeValid),
		cdn.WriteRegister(RegPIFPktAllocWr, 1),
	)
	return t.s.Run(cdn.NewSequence("HDMITX/InfoframeSet", ops...))
}

// SetVIC programs the video timing.
func (t *Tx) SetVIC(mode *cdn.Mode, f cdn.Format, depth int) error {
	if err := mode.Validate(); err != nil {
		return err
	}
	width, err := dataWidth(depth)
	if err != nil {
		return err
	}
	hblank := uint32(mode.HTotal - mode.HDisplay)
	vblank := uint32(mode.VTotal - mode.VDisplay)
	hfront := uint32(mode.HSyncStart - mode.HDisplay)
	vfront := uint32(mode.VSyncStart - mode.VDisplay)
	hsync := uint32(mode.HSyncEnd - mode.HSyncStart)
	vsync := uint32(mode.VSyncEnd - mode.VSyncStart)
	hback := uint32(mode.HTotal - mode.HSyncEnd)
	vback := uint32(mode.VTotal - mode.VSyncEnd)
	var pol uint32
	if !mode.HSyncPositive {
		pol |= polHSyncLow
	}
	if !mode.VSyncPositive {
		pol |= polVSyncLow
	}
	return t.s.Atomic(func(run func(cdn.Op) error) error {
		q := cdn.NewSequence("HDMITX/SetVIC",
			cdn.WriteRegister(RegSchedulerHSize, uint32(mode.HDisplay)<<16|hblank),
			cdn.WriteRegister(RegSchedulerVSize, uint32(mode.VDisplay)<<16|vblank),
			cdn.WriteRegister(RegFrontWidth, vfront<<16|hfront),
			cdn.WriteRegister(RegSyncWidth, vsync<<16|hsync),
			cdn.WriteRegister(RegBackWidth, vback<<16|hback),
			cdn.WriteRegister(RegBndHSync2VSync, vifBypassInterlace),
			cdn.WriteRegister(RegHSync2VSyncPolCtrl, pol),
		)
		if err := run(q); err != nil {
			return err
		}
		var v uint32
		if err := run(cdn.ReadRegister(RegController, &v)); err != nil {
			return err
		}
		v &^= ctrlWidthMask | ctrlEncMask
		v |= width<<ctrlWidthShft | uint32(f)<<ctrlEncShift | ctrlGCPEn
		return run(cdn.WriteRegister(RegController, v))
	})
}

func dataWidth(depth int) (uint32, error) {
	switch depth {
	case 8:
		return 0, nil
	case 10:
		return 1, nil
	case 12:
		return 2, nil
	case 16:
		return 3, nil
	default:
		return 0, fmt.Errorf("%w: %d bits per component", ErrNotSupported, depth)
	}
}

// PhyInit checks that the mode can be carried and sets the PHY and the
// controller up.
func (t *Tx) PhyInit(mode *cdn.Mode, f cdn.Format, depth int) error {
	rate := CharacterRate(mode.PixelClock, f, depth)
	if rate > MaxCharacterRate {
		return fmt.Errorf("%w: character rate %s", ErrNotSupported, rate)
	}
	if t.phy != nil {
		if err := t.phy.Init(rate, f, depth); err != nil {
			return fmt.Errorf("hdmi: phy: %w", err)
		}
	}
	return t.Init()
}

// ModeSet configures the transmitter for mode.
//
// The steps are Init, protocol selection, infoframes then timing; the first
// failure aborts the sequence without rollback.
func (t *Tx) ModeSet(mode *cdn.Mode, f cdn.Format, depth int, sink *Sink) (Protocol, error) {
	rate := CharacterRate(mode.PixelClock, f, depth)
	if err := t.Init(); err != nil {
		klog.Errorf("hdmi: %v", err)
		return 0, err
	}
	p := SelectProtocol(sink, rate)
	klog.V(1).Infof("hdmi: %s %s %dbpc at %s: %s", mode, f, depth, rate, p)
	if err := t.SetMode(p, rate); err != nil {
		klog.Errorf("hdmi: set mode %s: %v", p, err)
		return p, err
	}
	if p != DVI {
		if err := t.infoframes(mode, f, depth, sink, p); err != nil {
			klog.Errorf("hdmi: infoframes: %v", err)
			return p, err
		}
	}
	if err := t.SetVIC(mode, f, depth); err != nil {
		klog.Errorf("hdmi: %s: %v", mode, err)
		return p, err
	}
	return p, nil
}

func (t *Tx) infoframes(mode *cdn.Mode, f cdn.Format, depth int, sink *Sink, p Protocol) error {
	vic := VIC(mode)
	vendor := VendorInfoframe(vic)
	if p == HDMI20 {
		vendor = nil
	}
	aviVIC := vic
	if vendor != nil {
		aviVIC = 0
	}
	avi, err := AVIInfoframe(mode, f, depth, sink, aviVIC)
	if err != nil {
		return err
	}
	// The packet memory is preceded by one padding byte.
	if err := t.InfoframeSet(EntryAVI, append([]byte{0}, avi...), TypeAVI); err != nil {
		return err
	}
	if vendor != nil {
		return t.InfoframeSet(EntryVendor, append([]byte{0}, vendor...), TypeVendor)
	}
	return nil
}

// fwDDC is the firmware DDC master.
type fwDDC struct {
	s *cdn.Session
}

func (d *fwDDC) Read(slave, offset uint8, buf []byte) error {
	return d.s.HDMIRead(slave, offset, buf)
}

func (d *fwDDC) Write(slave, offset uint8, data []byte) error {
	return d.s.HDMIWrite(slave, offset, data)
}
