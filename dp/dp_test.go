// Copyright 2019 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package dp

import (
	"errors"
	"testing"
	"time"

	"periph.io/x/hdp/cdn"
	"periph.io/x/hdp/cdn/cdntest"
	"periph.io/x/periph/conn/physic"
)

func TestOutcome(t *testing.T) {
	for i := 0; i < 256; i++ {
		e := TrainingEvent(i)
		want := Invalid
		switch i {
		case 0x01, 0x02, 0x04:
			want = Progress
		case 0x08, 0x10:
			want = Success
		case 0x20, 0x40, 0x80:
			want = Failure
		}
		if got := e.Outcome(); got != want {
			t.Errorf("%s.Outcome() = %s, want %s", e, got, want)
		}
		if e.Outcome().Terminal() == (want == Progress) {
			t.Errorf("%s.Outcome().Terminal() = %t", e, e.Outcome().Terminal())
		}
	}
}

func TestTrainingStatus(t *testing.T) {
	data := []struct {
		events []uint8
		want   TrainingEvent
		state  State
	}{
		{[]uint8{0x01, 0x04, 0x08}, EqualizationFinished, Trained},
		{[]uint8{0x02, 0x10}, FastTrainingFinished, Trained},
		{[]uint8{0x01, 0x20}, ClockRecoveryFailed, Failed},
		{[]uint8{0x01, 0x04, 0x40}, EqualizationFailed, Failed},
		{[]uint8{0x02, 0x80}, FastTrainingFailed, Failed},
		{[]uint8{0x01, 0x03}, TrainingEvent(0x03), Failed},
		{[]uint8{0x00}, TrainingEvent(0), Failed},
	}
	for i, line := range data {
		f := cdntest.New()
		f.Training = func(int) []uint8 { return line.events }
		l := newLink(t, f, nil)
		if err := l.s.DPTrainingControl(1); err != nil {
			t.Fatal(err)
		}
		ev, err := l.TrainingStatus()
		if err != nil {
			t.Fatalf("#%d: %v", i, err)
		}
		if ev != line.want {
			t.Errorf("#%d: TrainingStatus() = %s, want %s", i, ev, line.want)
		}
		if s := l.State(); s != line.state {
			t.Errorf("#%d: State() = %s, want %s", i, s, line.state)
		}
	}
}

func TestTrainingStatus_Timeout(t *testing.T) {
	f := cdntest.New()
	l := newLink(t, f, nil)
	l.cfg.EventTimeout = time.Millisecond
	if _, err := l.TrainingStatus(); err != ErrEventTimeout {
		t.Fatalf("TrainingStatus() = %v", err)
	}
}

func TestTrainingStatus_DeferredHPD(t *testing.T) {
	f := cdntest.New()
	l := newLink(t, f, nil)
	f.SetHPD(true)
	if err := l.s.DPTrainingControl(1); err != nil {
		t.Fatal(err)
	}
	if _, err := l.TrainingStatus(); err != nil {
		t.Fatal(err)
	}
	if e := l.Deferred(); e != cdn.EventHPD {
		t.Fatalf("Deferred() = %#x", e)
	}
	if e := l.Deferred(); e != 0 {
		t.Fatalf("Deferred() = %#x", e)
	}
}

func TestModeSet(t *testing.T) {
	f := cdntest.New()
	l := newLink(t, f, nil)
	res, err := l.ModeSet(&mode1080p, cdn.RGB, 8, 0)
	if res != LinkTrained || err != nil {
		t.Fatalf("ModeSet() = %s, %v", res, err)
	}
	if n := f.TrainingAttempts(); n != 1 {
		t.Fatalf("%d training attempts", n)
	}
	if l.Attempts() != 1 || l.State() != Trained {
		t.Fatalf("attempts=%d state=%s", l.Attempts(), l.State())
	}
	if v := f.Video(); v != 1 {
		t.Fatalf("video = %d", v)
	}
	if v := f.DPReg(cdn.DPRegFramerTU); v != 0xA407 {
		t.Fatalf("DP_FRAMER_TU = %#x", v)
	}
	hc := f.HostCap()
	if len(hc) != 8 || hc[0] != uint8(cdn.HBR2) || hc[1]&7 != 4 || hc[6] != 0x1B {
		t.Fatalf("host capabilities % x", hc)
	}
	// The order of the conversations.
	var ops []cdn.Opcode
	for _, m := range f.Msgs() {
		if m.Module != cdn.ModuleDPTX || m.Opcode == cdn.DPTXWriteRegister || m.Opcode == cdn.DPTXWriteField || m.Opcode == cdn.DPTXReadEvent {
			continue
		}
		ops = append(ops, m.Opcode)
	}
	want := []cdn.Opcode{cdn.DPTXSetHostCap, cdn.DPTXTrainingControl, cdn.DPTXSetVideo}
	if len(ops) != len(want) {
		t.Fatalf("opcodes %v, want %v", ops, want)
	}
	for i := range want {
		if ops[i] != want[i] {
			t.Fatalf("opcodes %v, want %v", ops, want)
		}
	}
}

func TestModeSet_RetryBound(t *testing.T) {
	f := cdntest.New()
	f.Training = func(int) []uint8 { return []uint8{0x01, 0x20} }
	l := newLink(t, f, nil)
	res, err := l.ModeSet(&mode1080p, cdn.RGB, 8, cdn.HBR)
	if res != TimedOutBestEffort || err != nil {
		t.Fatalf("ModeSet() = %s, %v", res, err)
	}
	if n := f.Count(cdn.ModuleDPTX, cdn.DPTXTrainingControl, 1); n != 10 {
		t.Fatalf("%d training starts, want 10", n)
	}
	if n := f.Count(cdn.ModuleDPTX, cdn.DPTXTrainingControl, 0); n != 10 {
		t.Fatalf("%d training stops, want 10", n)
	}
	if v := f.Video(); v != 1 {
		t.Fatal("video must be enabled as best effort")
	}
}

func TestModeSet_RequireTraining(t *testing.T) {
	f := cdntest.New()
	f.Training = func(int) []uint8 { return []uint8{0x01, 0x04, 0x40} }
	cfg := testConfig
	cfg.RequireTraining = true
	cfg.TrainingRetries = 3
	l, err := New(cdn.New(f, nil), &cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	res, err := l.ModeSet(&mode1080p, cdn.RGB, 8, 0)
	if res != TimedOutBestEffort || err != ErrTrainingFailed {
		t.Fatalf("ModeSet() = %s, %v", res, err)
	}
	if n := f.TrainingAttempts(); n != 3 {
		t.Fatalf("%d training attempts", n)
	}
	if f.Count(cdn.ModuleDPTX, cdn.DPTXSetVideo) != 0 {
		t.Fatal("video must stay off")
	}
}

func TestModeSet_ThirdAttempt(t *testing.T) {
	f := cdntest.New()
	f.Training = func(attempt int) []uint8 {
		if attempt < 3 {
			return []uint8{0x02, 0x80}
		}
		return []uint8{0x02, 0x10}
	}
	l := newLink(t, f, nil)
	if res, err := l.ModeSet(&mode1080p, cdn.RGB, 8, 0); res != LinkTrained || err != nil {
		t.Fatalf("ModeSet() = %s, %v", res, err)
	}
	if l.Attempts() != 3 {
		t.Fatalf("Attempts() = %d", l.Attempts())
	}
}

func TestModeSet_EventTimeout(t *testing.T) {
	f := cdntest.New()
	f.Training = func(int) []uint8 { return nil }
	cfg := testConfig
	cfg.EventTimeout = time.Millisecond
	cfg.TrainingRetries = 2
	l, err := New(cdn.New(f, nil), &cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res, err := l.ModeSet(&mode1080p, cdn.RGB, 8, 0); res != TimedOutBestEffort || err != nil {
		t.Fatalf("ModeSet() = %s, %v", res, err)
	}
	if n := f.TrainingAttempts(); n != 2 {
		t.Fatalf("%d training attempts", n)
	}
}

func TestModeSet_NotSupported(t *testing.T) {
	f := cdntest.New()
	cfg := testConfig
	cfg.Lanes = 1
	l, err := New(cdn.New(f, nil), &cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	m := mode1080p
	m.PixelClock = 594 * physic.MegaHertz
	res, err := l.ModeSet(&m, cdn.RGB, 8, cdn.RBR)
	if res != HardFailure || !errors.Is(err, cdn.ErrNotSupported) {
		t.Fatalf("ModeSet() = %s, %v", res, err)
	}
	if f.TrainingAttempts() != 0 {
		t.Fatal("no training expected")
	}
}

func TestModeSet_HardFailure(t *testing.T) {
	f := cdntest.New()
	l := newLink(t, f, nil)
	f.Mangle = func(h *cdn.Header) { h.Module = cdn.ModuleGeneral }
	res, err := l.ModeSet(&mode1080p, cdn.RGB, 8, 0)
	if res != HardFailure || !errors.Is(err, cdn.ErrBadModule) {
		t.Fatalf("ModeSet() = %s, %v", res, err)
	}
	if f.Count(cdn.ModuleDPTX, cdn.DPTXSetVideo) != 0 {
		t.Fatal("video must stay off")
	}
}

func TestPhyInit(t *testing.T) {
	f := cdntest.New()
	p := &fakePHY{}
	l := newLink(t, f, p)
	if err := l.PhyInit(148500 * physic.KiloHertz); err != nil {
		t.Fatal(err)
	}
	if p.rate != cdn.HBR2 || p.lanes != 4 || p.pixel != 148500*physic.KiloHertz {
		t.Fatalf("%+v", p)
	}
	if f.Count(cdn.ModuleDPTX, cdn.DPTXSetVideo, 0) != 1 {
		t.Fatal("video must be turned off")
	}
	p.err = errors.New("no power")
	if err := l.PhyInit(0); err == nil {
		t.Fatal("expected error")
	}
}

func TestNew_Invalid(t *testing.T) {
	cfg := testConfig
	cfg.Lanes = 3
	if _, err := New(cdn.New(cdntest.New(), nil), &cfg, nil); err == nil {
		t.Fatal("3 lanes must be rejected")
	}
	cfg = testConfig
	cfg.MaxRate = 0
	if _, err := New(cdn.New(cdntest.New(), nil), &cfg, nil); err == nil {
		t.Fatal("invalid rate must be rejected")
	}
}

//

var testConfig = func() Config {
	c := DefaultConfig
	c.RetryDelay = 0
	c.SettleDelay = 0
	c.EventPoll = 0
	return c
}()

func newLink(t *testing.T, f *cdntest.Firmware, p PHY) *Link {
	cfg := testConfig
	l, err := New(cdn.New(f, nil), &cfg, p)
	if err != nil {
		t.Fatal(err)
	}
	return l
}

type fakePHY struct {
	pixel physic.Frequency
	rate  cdn.LinkRate
	lanes int
	err   error
}

func (f *fakePHY) Init(pixel physic.Frequency, rate cdn.LinkRate, lanes int) error {
	f.pixel = pixel
	f.rate = rate
	f.lanes = lanes
	return f.err
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
