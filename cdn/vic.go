// Copyright 2019 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package cdn

import (
	"fmt"
)

// DPTX controller registers written by DPSetVIC().
const (
	DPRegBndHSync2VSync     uint16 = 0x0b00
	DPRegHSync2VSyncPolCtrl uint16 = 0x0b10
	DPRegFramerGlobalConfig uint16 = 0x2200
	DPRegFramerTU           uint16 = 0x2208
	DPRegFramerPxlRepr      uint16 = 0x220c
	DPRegFramerSP           uint16 = 0x2210
	DPRegVCTable0           uint16 = 0x2218
	DPRegVBID               uint16 = 0x2258
	DPRegFrontBackPorch     uint16 = 0x2278
	DPRegByteCount          uint16 = 0x227c
	DPRegMSAHorizontal0     uint16 = 0x2280
	DPRegMSAHorizontal1     uint16 = 0x2284
	DPRegMSAVertical0       uint16 = 0x2288
	DPRegMSAVertical1       uint16 = 0x228c
	DPRegMSAMisc            uint16 = 0x2290
	DPRegStreamConfig       uint16 = 0x2294
	DPRegHorizontal         uint16 = 0x22b0
	DPRegVertical0          uint16 = 0x22b4
	DPRegVertical1          uint16 = 0x22b8
)

// DPRegVCTable returns the address of virtual channel table entry i.
func DPRegVCTable(i int) uint16 {
	return DPRegVCTable0 + uint16(i)<<2
}

// Register bits.
const (
	vifBypassInterlace = 1 << 13

	polHSyncLow = 1 << 1
	polVSyncLow = 1 << 2

	spInterlace = 1 << 0
	spHSP       = 1 << 1
	spVSP       = 1 << 2

	msaSyncLow = 1 << 15

	globalEnable    = 1 << 3
	globalRGEnable  = 1 << 4
	globalInterlace = 1 << 6

	// ITU-601 color space conversion for YCbCr in MSA_MISC.
	bt601 = 1
)

// bcs returns the DP_FRAMER_PXL_REPR bits per component code.
func bcs(depth int) (uint32, error) {
	switch depth {
	case 6:
		return 0x1, nil
	case 8:
		return 0x2, nil
	case 10:
		return 0x4, nil
	case 12:
		return 0x8, nil
	case 16:
		return 0x10, nil
	default:
		return 0, fmt.Errorf("%w: %d bits per component", ErrNotSupported, depth)
	}
}

// msaMisc returns the MSA MISC0/MISC1 fields.
func msaMisc(f Format, depth int) uint32 {
	var c, d uint32
	switch f {
	case YCbCr444:
		c = 6 + bt601*8
	case YCbCr422:
		c = 5 + bt601*8
	case YCbCr420:
		c = 5
	}
	switch depth {
	case 8:
		d = 1
	case 10:
		d = 2
	case 12:
		d = 3
	case 16:
		d = 4
	}
	v := 2*c + 32*d
	if f == YOnly {
		v |= 1 << 14
	}
	return v
}

// DPSetVIC returns the register programming of the DPTX framer for v as a
// Sequence of 19 register writes, and the transfer unit it uses.
//
// Each Poll() of the Sequence advances at most one write. An error is
// returned without touching the hardware when the mode can't be carried over
// the link.
func DPSetVIC(v *Video) (*Sequence, TU, error) {
	m := v.Mode
	if m == nil {
		return nil, TU{}, fmt.Errorf("%w: no mode", ErrNotSupported)
	}
	if err := m.Validate(); err != nil {
		return nil, TU{}, err
	}
	code, err := bcs(v.Depth)
	if err != nil {
		return nil, TU{}, err
	}
	bpp := v.BitsPerPixel()
	tu, err := FindTU(m.ClockKHz(), v.Lanes, v.Rate, bpp)
	if err != nil {
		return nil, TU{}, err
	}

	var pol, sp, hneg, vneg, interlace uint32
	if !m.HSyncPositive {
		pol |= polHSyncLow
		sp |= spHSP
		hneg = msaSyncLow
	}
	if !m.VSyncPositive {
		pol |= polVSyncLow
		sp |= spVSP
		vneg = msaSyncLow
	}
	global := uint32(v.Lanes-1) | globalEnable | globalRGEnable
	if m.Interlaced {
		sp |= spInterlace
		global |= globalInterlace
		interlace = 1
	}

	hfp := uint32(m.HSyncStart - m.HDisplay)
	hbp := uint32(m.HTotal - m.HSyncEnd)
	hsw := uint32(m.HSyncEnd - m.HSyncStart)
	vsw := uint32(m.VSyncEnd - m.VSyncStart)
	htot := uint32(m.HTotal)
	vtot := uint32(m.VTotal)

	q := NewSequence("DPTX/SetVIC",
		DPWriteRegister(DPRegBndHSync2VSync, vifBypassInterlace),
		DPWriteRegister(DPRegHSync2VSyncPolCtrl, pol),
		DPWriteRegister(DPRegFramerTU, tu.Framer),
		DPWriteRegister(DPRegVCTable(15), tu.LineThreshold),
		DPWriteRegister(DPRegFramerPxlRepr, code|uint32(v.Format)<<8),
		DPWriteRegister(DPRegFramerSP, sp),
		DPWriteRegister(DPRegFrontBackPorch, hfp|hbp<<16),
		DPWriteRegister(DPRegByteCount, uint32(m.HDisplay*bpp/8)),
		DPWriteRegister(DPRegMSAHorizontal0, htot|(htot-uint32(m.HSyncStart))<<16),
		DPWriteRegister(DPRegMSAHorizontal1, hsw|hneg|uint32(m.HDisplay)<<16),
		DPWriteRegister(DPRegMSAVertical0, vtot|(vtot-uint32(m.VSyncStart))<<16),
		DPWriteRegister(DPRegMSAVertical1, vsw|vneg|uint32(m.VDisplay)<<16),
		DPWriteRegister(DPRegMSAMisc, msaMisc(v.Format, v.Depth)),
		DPWriteRegister(DPRegStreamConfig, 1),
		DPWriteRegister(DPRegHorizontal, hsw|uint32(m.HDisplay)<<16),
		DPWriteRegister(DPRegVertical0, uint32(m.VDisplay)|(vtot-uint32(m.VSyncStart))<<16),
		DPWriteRegister(DPRegVertical1, vtot),
		DPWriteField(DPRegVBID, 2, 1, interlace),
		DPWriteRegister(DPRegFramerGlobalConfig, global),
	)
	return q, tu, nil
}
