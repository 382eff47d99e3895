// Copyright 2019 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package cdn

import (
	"errors"
	"testing"
)

func TestFindTU(t *testing.T) {
	want := TU{Size: 36, ValidSymbols: 7, Framer: 0xA407, LineThreshold: 4}
	for i := 0; i < 3; i++ {
		got, err := FindTU(148500, 4, HBR2, 24)
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Fatalf("FindTU() = %#v, want %#v", got, want)
		}
	}
}

func TestFindTU_Modes(t *testing.T) {
	data := []struct {
		pclk  uint64
		lanes int
		rate  LinkRate
		bpp   int
	}{
		{25175, 1, RBR, 24},
		{74250, 2, HBR, 24},
		{148500, 2, HBR2, 30},
		{297000, 4, HBR2, 24},
		{594000, 4, HBR3, 24},
	}
	for _, line := range data {
		tu, err := FindTU(line.pclk, line.lanes, line.rate, line.bpp)
		if err != nil {
			t.Errorf("FindTU(%d, %d, %s, %d) = %v", line.pclk, line.lanes, line.rate, line.bpp, err)
			continue
		}
		if tu.Size&1 != 0 || tu.Size < 34 || tu.Size > 64 {
			t.Errorf("FindTU(%d) size %d", line.pclk, tu.Size)
		}
		if tu.Size-tu.ValidSymbols < 2 {
			t.Errorf("FindTU(%d) no headroom: %s", line.pclk, tu)
		}
		if tu.Framer&0xFF != uint32(tu.ValidSymbols) || (tu.Framer>>8)&0x7F != uint32(tu.Size) || tu.Framer&tuCntRstEn == 0 {
			t.Errorf("FindTU(%d) framer %#x", line.pclk, tu.Framer)
		}
	}
}

func TestFindTU_NotSupported(t *testing.T) {
	// 4K60 doesn't fit on a single RBR lane.
	if _, err := FindTU(594000, 1, RBR, 24); !errors.Is(err, ErrNotSupported) {
		t.Fatalf("FindTU() = %v", err)
	}
	if _, err := FindTU(148500, 4, LinkRate(7), 24); !errors.Is(err, ErrNotSupported) {
		t.Fatalf("FindTU() = %v", err)
	}
	if _, err := FindTU(148500, 0, HBR, 24); !errors.Is(err, ErrNotSupported) {
		t.Fatalf("FindTU() = %v", err)
	}
}
