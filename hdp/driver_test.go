// Copyright 2019 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package hdp

import (
	"errors"
	"testing"

	"periph.io/x/hdp/cdn"
	"periph.io/x/hdp/cdn/cdntest"
)

func TestProbe(t *testing.T) {
	mu.Lock()
	defer mu.Unlock()
	all = nil
	defer func() { all = nil }()
	cfgs := []Config{
		{Name: "hdmi", Kind: HDMI, SoC: IMX8MQ, Regs: []Region{{0x32c00000, 0x100000}}},
		{Name: "dp", Kind: DP, SoC: IMX8QM, Disabled: true},
		{Name: "broken", Kind: DP, SoC: IMX8QM},
	}
	var opened []string
	err := probe(cfgs, func(c *Config) (cdn.Bus, error) {
		opened = append(opened, c.Name)
		if len(c.Regs) == 0 {
			return nil, errors.New("no window")
		}
		return cdntest.New(), nil
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if len(opened) != 2 || opened[0] != "hdmi" || opened[1] != "broken" {
		t.Fatal(opened)
	}
	if len(all) != 1 || all[0].Config().Kind != HDMI {
		t.Fatal(all)
	}
}

func TestMapBus_Invalid(t *testing.T) {
	if _, err := mapBus(&Config{Name: "x", SoC: IMX8MQ}); err == nil {
		t.Fatal("no window")
	}
	if _, err := mapBus(&Config{Name: "x", SoC: IMX8QM, Regs: []Region{{0x56268000, 0x10000}}}); err == nil {
		t.Fatal("no page select window")
	}
	if _, err := mapBus(&Config{Name: "x", Regs: []Region{{0x56268000, 0x10000}}}); err == nil {
		t.Fatal("unknown SoC")
	}
}

func TestDriver(t *testing.T) {
	old := fdtPath
	defer func() { fdtPath = old }()
	fdtPath = "/nonexistent"
	d := driver{}
	if ok, err := d.Init(); ok || err == nil {
		t.Fatalf("Init() = %t, %v", ok, err)
	}
	if d.String() != "hdp" || d.Prerequisites() != nil || d.After() != nil {
		t.Fatal("unexpected driver metadata")
	}
}
