// Copyright 2019 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package hdmi

import (
	"fmt"

	"periph.io/x/hdp/cdn"
)

// Infoframe types.
const (
	TypeVendor = 0x81
	TypeAVI    = 0x82
)

// Packet memory entries used for each infoframe.
const (
	EntryAVI    = 0
	EntryVendor = 1
)

// Sink colorimetry capabilities, as in the CEA-861 colorimetry data block.
const (
	XvYCC601  = 1 << 0
	XvYCC709  = 1 << 1
	SYCC601   = 1 << 2
	OpYCC601  = 1 << 3
	OpRGB     = 1 << 4
	BT2020CYC = 1 << 5
	BT2020YCC = 1 << 6
	BT2020RGB = 1 << 7
)

// Colorimetry allowed per colour format.
const (
	rgbColorimetry = OpRGB | BT2020RGB
	yccColorimetry = XvYCC601 | XvYCC709 | SYCC601 | OpYCC601 | BT2020CYC | BT2020YCC
)

// AVI infoframe C1C0 and EC2..EC0 values.
const (
	colorimetryNone     = 0
	colorimetryITU601   = 1
	colorimetryITU709   = 2
	colorimetryExtended = 3

	extBT2020 = 6
	extOpRGB  = 4
)

// Sink is what the transmitter needs to know about the sink, usually
// gathered from its EDID.
type Sink struct {
	// HDMI is false for DVI sinks.
	HDMI bool
	// Colorimetry is the colorimetry data block capability mask.
	Colorimetry uint8
	// Scrambling is set when the sink accepts scrambling at character rates
	// of 340MHz and below (LTE_340Mcsc_scramble).
	Scrambling bool
}

// colorimetry returns the C1C0 and EC fields for f.
func colorimetry(mode *cdn.Mode, f cdn.Format, depth int, sink *Sink) (uint8, uint8) {
	allowed := sink.Colorimetry
	if f == cdn.RGB {
		allowed &= rgbColorimetry
	} else {
		allowed &= yccColorimetry
	}
	if depth >= 10 {
		if f == cdn.RGB && allowed&BT2020RGB != 0 {
			return colorimetryExtended, extBT2020
		}
		if f != cdn.RGB && allowed&BT2020YCC != 0 {
			return colorimetryExtended, extBT2020
		}
	}
	if f == cdn.RGB {
		return colorimetryNone, 0
	}
	if mode.VDisplay >= 720 {
		return colorimetryITU709, 0
	}
	return colorimetryITU601, 0
}

// pictureAspect returns the M1M0 field.
func pictureAspect(mode *cdn.Mode) uint8 {
	switch {
	case mode.HDisplay*9 == mode.VDisplay*16:
		return 2
	case mode.HDisplay*3 == mode.VDisplay*4:
		return 1
	default:
		return 0
	}
}

// AVIInfoframe returns the AVI infoframe for mode, checksum included.
//
// vic is the CEA-861 VIC to advertise; 0 when the mode is signaled in the
// vendor infoframe or isn't a CEA mode. Version 2 carries 7 bits VICs, the
// version 3 layout is used above 127.
func AVIInfoframe(mode *cdn.Mode, f cdn.Format, depth int, sink *Sink, vic uint8) ([]byte, error) {
	var y uint8
	switch f {
	case cdn.RGB:
		y = 0
	case cdn.YCbCr422:
		y = 1
	case cdn.YCbCr444:
		y = 2
	case cdn.YCbCr420:
		y = 3
	default:
		return nil, fmt.Errorf("hdmi: %s can't be sent over HDMI", f)
	}
	c, ec := colorimetry(mode, f, depth, sink)
	b := make([]byte, 4+13)
	b[0] = TypeAVI
	b[1] = 2
	b[2] = 13
	// PB1: Y1Y0, active format present.
	b[4] = y<<5 | 1<<4
	// PB2: C1C0, M1M0, active aspect same as picture.
	b[5] = c<<6 | pictureAspect(mode)<<4 | 8
	// PB3: EC2..EC0.
	b[6] = ec << 4
	b[7] = vic
	if vic > 0x7F {
		b[1] = 3
	}
	checksum(b)
	return b, nil
}

// VendorInfoframe returns the HDMI vendor specific infoframe signaling the
// HDMI_VIC of the 4K modes of HDMI 1.4. It returns nil for other VICs.
func VendorInfoframe(vic uint8) []byte {
	hv := hdmiVIC(vic)
	if hv == 0 {
		return nil
	}
	b := make([]byte, 4+5)
	b[0] = TypeVendor
	b[1] = 1
	b[2] = 5
	// IEEE OUI 0x000C03, LSB first.
	b[4] = 0x03
	b[5] = 0x0C
	b[6] = 0x00
	// Extended resolution format.
	b[7] = 1 << 5
	b[8] = hv
	checksum(b)
	return b
}

// checksum sets byte 3 so that the infoframe sums to 0.
func checksum(b []byte) {
	b[3] = 0
	var s byte
	for _, c := range b {
		s += c
	}
	b[3] = -s
}
