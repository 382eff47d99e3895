// Copyright 2019 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package hdmi

import (
	"periph.io/x/hdp/cdn"
)

// timing identifies a CEA-861 mode.
type timing struct {
	vic        uint8
	hdisplay   int
	vdisplay   int
	htotal     int
	vtotal     int
	clockKHz   uint64
	interlaced bool
}

// ceaModes is the subset of CEA-861 modes this transmitter is used with.
// 4:3 variants share their timing with the 16:9 one and are omitted.
var ceaModes = []timing{
	{1, 640, 480, 800, 525, 25175, false},
	{3, 720, 480, 858, 525, 27000, false},
	{4, 1280, 720, 1650, 750, 74250, false},
	{5, 1920, 1080, 2200, 1125, 74250, true},
	{16, 1920, 1080, 2200, 1125, 148500, false},
	{18, 720, 576, 864, 625, 27000, false},
	{19, 1280, 720, 1980, 750, 74250, false},
	{31, 1920, 1080, 2640, 1125, 148500, false},
	{32, 1920, 1080, 2750, 1125, 74250, false},
	{33, 1920, 1080, 2640, 1125, 74250, false},
	{34, 1920, 1080, 2200, 1125, 74250, false},
	{93, 3840, 2160, 5500, 2250, 297000, false},
	{94, 3840, 2160, 5280, 2250, 297000, false},
	{95, 3840, 2160, 4400, 2250, 297000, false},
	{96, 3840, 2160, 5280, 2250, 594000, false},
	{97, 3840, 2160, 4400, 2250, 594000, false},
	{98, 4096, 2160, 5500, 2250, 297000, false},
}

// VIC returns the CEA-861 VIC of mode, 0 when it isn't a CEA mode.
//
// mode.VIC is trusted when set.
func VIC(mode *cdn.Mode) uint8 {
	if mode.VIC != 0 {
		return mode.VIC
	}
	clk := mode.ClockKHz()
	for i := range ceaModes {
		t := &ceaModes[i]
		if t.hdisplay != mode.HDisplay || t.vdisplay != mode.VDisplay || t.htotal != mode.HTotal || t.vtotal != mode.VTotal || t.interlaced != mode.Interlaced {
			continue
		}
		// 59.94Hz variants are 1000/1001 slower.
		if clk+clk/500 >= t.clockKHz && clk <= t.clockKHz+t.clockKHz/500 {
			return t.vic
		}
	}
	return 0
}

// hdmiVIC returns the HDMI 1.4 HDMI_VIC for the 4K VICs.
func hdmiVIC(vic uint8) uint8 {
	switch vic {
	case 95:
		return 1
	case 94:
		return 2
	case 93:
		return 3
	case 98:
		return 4
	default:
		return 0
	}
}
