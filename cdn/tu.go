// Copyright 2019 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package cdn

import (
	"fmt"
)

// Transfer unit search bounds.
const (
	tuMin = 34
	tuMax = 64
)

// tuCntRstEn is DP_FRAMER_TU bit TU_CNT_RST_EN.
const tuCntRstEn = 1 << 15

// TU is the DisplayPort transfer unit configuration for a stream.
type TU struct {
	// Size is the transfer unit size in link symbols.
	Size int
	// ValidSymbols is the number of symbols carrying pixel data per TU.
	ValidSymbols int
	// Framer is the DP_FRAMER_TU register value.
	Framer uint32
	// LineThreshold is the framer FIFO watermark.
	LineThreshold uint32
}

func (t TU) String() string {
	return fmt.Sprintf("TU(%d, valid=%d, thresh=%d)", t.Size, t.ValidSymbols, t.LineThreshold)
}

// FindTU returns the smallest transfer unit size that carries bpp bits per
// pixel at pixelKHz over lanes lanes at rate.
//
// The number of valid symbols must be the same at the nominal and at a 0.5%
// slower link symbol clock, with a fractional part within [0.1, 0.85] in both
// cases. It is a pure function of its arguments.
func FindTU(pixelKHz uint64, lanes int, rate LinkRate, bpp int) (TU, error) {
	if pixelKHz == 0 || lanes <= 0 || bpp <= 0 || !rate.Valid() {
		return TU{}, fmt.Errorf("%w: pclk=%dkHz lanes=%d rate=%s bpp=%d", ErrNotSupported, pixelKHz, lanes, rate, bpp)
	}
	rateKHz := rate.SymbolKHz()
	derated := rateKHz * 995 / 1000
	for size := uint64(tuMin); size <= tuMax; size += 2 {
		// Multiply before dividing; the result is in 1/1000 of a symbol.
		v := size * pixelKHz * uint64(bpp) * 1000 / (uint64(lanes) * rateKHz * 8)
		v2 := size * pixelKHz * uint64(bpp) * 1000 / (uint64(lanes) * derated * 8)
		val, rem := v/1000, v%1000
		val2, rem2 := v2/1000, v2%1000
		if val+2 > size || val != val2 {
			continue
		}
		if rem < 100 || rem > 850 || rem2 < 100 || rem2 > 850 {
			continue
		}
		t := TU{
			Size:         int(size),
			ValidSymbols: int(val),
			Framer:       uint32(val) | uint32(size)<<8 | tuCntRstEn,
		}
		t.LineThreshold = lineThreshold(pixelKHz, lanes, rate, bpp, val)
		return t, nil
	}
	return TU{}, fmt.Errorf("%w: no transfer unit for pclk=%dkHz lanes=%d rate=%s bpp=%d", ErrNotSupported, pixelKHz, lanes, rate, bpp)
}

// lineThreshold computes the framer FIFO watermark for vs valid symbols.
func lineThreshold(pixelKHz uint64, lanes int, rate LinkRate, bpp int, vs uint64) uint32 {
	rateMHz := rate.SymbolKHz() / 1000
	t := pixelKHz*(vs+1)/1000 + rateMHz
	t /= uint64(lanes) * rateMHz
	th := int64(8*(vs+1)/uint64(bpp)) - int64(t) + 2
	if th < 0 {
		th = 0
	}
	return uint32(th) & 0x3F
}
