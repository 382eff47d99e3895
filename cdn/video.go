// Copyright 2019 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package cdn

import (
	"errors"
	"fmt"

	"periph.io/x/periph/conn/physic"
)

// Format is the pixel encoding on the link.
//
// The values are the ones the firmware expects in the pixel representation
// registers.
type Format uint8

// Pixel encodings.
const (
	RGB      Format = 0x01
	YCbCr444 Format = 0x02
	YCbCr422 Format = 0x04
	YCbCr420 Format = 0x08
	YOnly    Format = 0x10
)

func (f Format) String() string {
	switch f {
	case RGB:
		return "RGB"
	case YCbCr444:
		return "YCbCr4:4:4"
	case YCbCr422:
		return "YCbCr4:2:2"
	case YCbCr420:
		return "YCbCr4:2:0"
	case YOnly:
		return "Y-only"
	default:
		return fmt.Sprintf("Format(%#02x)", uint8(f))
	}
}

// BitsPerPixel returns the number of bits per pixel on the link for depth
// bits per component.
func (f Format) BitsPerPixel(depth int) int {
	switch f {
	case YCbCr422:
		return depth * 2
	case YCbCr420:
		return depth * 3 / 2
	case YOnly:
		return depth
	default:
		return depth * 3
	}
}

// Mode is a display timing.
type Mode struct {
	PixelClock physic.Frequency

	HDisplay   int
	HSyncStart int
	HSyncEnd   int
	HTotal     int

	VDisplay   int
	VSyncStart int
	VSyncEnd   int
	VTotal     int

	HSyncPositive bool
	VSyncPositive bool
	Interlaced    bool

	// VIC is the CEA-861 video identification code, 0 if unknown.
	VIC uint8
}

func (m *Mode) String() string {
	return fmt.Sprintf("%dx%d@%s", m.HDisplay, m.VDisplay, m.PixelClock)
}

// ClockKHz returns the pixel clock in kHz, truncated.
func (m *Mode) ClockKHz() uint64 {
	return uint64(m.PixelClock / physic.KiloHertz)
}

// Validate checks that the timing is self consistent.
func (m *Mode) Validate() error {
	if m.PixelClock < physic.MegaHertz {
		return fmt.Errorf("cdn: invalid pixel clock %s", m.PixelClock)
	}
	if m.HDisplay <= 0 || m.HSyncStart < m.HDisplay || m.HSyncEnd < m.HSyncStart || m.HTotal < m.HSyncEnd {
		return errors.New("cdn: invalid horizontal timing")
	}
	if m.VDisplay <= 0 || m.VSyncStart < m.VDisplay || m.VSyncEnd < m.VSyncStart || m.VTotal < m.VSyncEnd {
		return errors.New("cdn: invalid vertical timing")
	}
	return nil
}

// LinkRate is a DisplayPort main link rate, encoded as in DPCD
// MAX_LINK_RATE.
type LinkRate uint8

// DisplayPort link rates.
const (
	RBR  LinkRate = 0x06 // 1.62Gbps
	HBR  LinkRate = 0x0a // 2.7Gbps
	HBR2 LinkRate = 0x14 // 5.4Gbps
	HBR3 LinkRate = 0x1e // 8.1Gbps
)

// Valid returns true for the four standard link rates.
func (r LinkRate) Valid() bool {
	switch r {
	case RBR, HBR, HBR2, HBR3:
		return true
	}
	return false
}

// SymbolKHz returns the link symbol clock in kHz.
func (r LinkRate) SymbolKHz() uint64 {
	return uint64(r) * 27000
}

// Frequency returns the per lane bit rate.
func (r LinkRate) Frequency() physic.Frequency {
	return physic.Frequency(r) * 270 * physic.MegaHertz
}

func (r LinkRate) String() string {
	name := ""
	switch r {
	case RBR:
		name = "RBR"
	case HBR:
		name = "HBR"
	case HBR2:
		name = "HBR2"
	case HBR3:
		name = "HBR3"
	default:
		return fmt.Sprintf("LinkRate(%#02x)", uint8(r))
	}
	return name + "(" + r.Frequency().String() + ")"
}

// Video is the stream to carry over a DisplayPort link.
type Video struct {
	Mode   *Mode
	Format Format
	// Depth is the number of bits per component.
	Depth int
	Lanes int
	Rate  LinkRate
}

// BitsPerPixel returns the link bits per pixel.
func (v *Video) BitsPerPixel() int {
	return v.Format.BitsPerPixel(v.Depth)
}
