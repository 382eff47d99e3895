// Copyright 2019 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package hdpsmoketest is leveraged by extra-smoketest to verify that an HDP
// transmitter with a sink plugged in is working as expected.
package hdpsmoketest

import (
	"errors"
	"flag"
	"fmt"

	"periph.io/x/hdp/cdn"
	"periph.io/x/hdp/ddc"
	"periph.io/x/hdp/dp"
	"periph.io/x/hdp/hdp"
	"periph.io/x/periph/conn/physic"
)

// SmokeTest is imported by extra-smoketest.
type SmokeTest struct {
}

// Name implements the SmokeTest interface.
func (s *SmokeTest) Name() string {
	return "hdp"
}

// Description implements the SmokeTest interface.
func (s *SmokeTest) Description() string {
	return "Tests an HDP transmitter with a 1080p60 capable sink"
}

// Run implements the SmokeTest interface.
func (s *SmokeTest) Run(f *flag.FlagSet, args []string) error {
	name := f.String("name", "", "Device tree node name of the transmitter to test")
	strict := f.Bool("strict", false, "Fail when DisplayPort training fails")
	if err := f.Parse(args); err != nil {
		return err
	}
	if f.NArg() != 0 {
		f.Usage()
		return errors.New("unrecognized arguments")
	}
	d, err := find(*name)
	if err != nil {
		return err
	}
	if err := d.FwInit(); err != nil {
		return err
	}
	plugged, err := d.HPDState()
	if err != nil {
		return err
	}
	if !plugged {
		return fmt.Errorf("%s: no sink plugged", d)
	}
	if err := testEDID(d); err != nil {
		return err
	}
	if err := d.PhyInit(&mode1080p60, cdn.RGB, 8); err != nil {
		return err
	}
	res, err := d.ModeSet(&mode1080p60, cdn.RGB, 8, 0)
	if err != nil {
		return err
	}
	if l := d.Link(); l != nil {
		if *strict && res.Training != dp.LinkTrained {
			return fmt.Errorf("%s: %s after %d attempts", d, res.Training, l.Attempts())
		}
		st, err := l.LinkStatus()
		if err != nil {
			return err
		}
		if st.Lanes == 0 {
			return fmt.Errorf("%s: no lane active", d)
		}
	}
	return nil
}

func find(name string) (*hdp.Dev, error) {
	all := hdp.All()
	if name == "" {
		if len(all) != 1 {
			return nil, fmt.Errorf("exactly one device is expected, got %d; use -name", len(all))
		}
		return all[0], nil
	}
	for _, d := range all {
		if d.Config().Name == name {
			return d, nil
		}
	}
	return nil, fmt.Errorf("%s not found", name)
}

func testEDID(d *hdp.Dev) error {
	if d.Config().NoEDID {
		return nil
	}
	e, err := d.EDID()
	if err != nil {
		return err
	}
	for i := 0; i < len(e); i += ddc.BlockSize {
		if err := ddc.Checksum(e[i : i+ddc.BlockSize]); err != nil {
			return fmt.Errorf("EDID block %d: %w", i/ddc.BlockSize, err)
		}
	}
	return nil
}

var mode1080p60 = cdn.Mode{
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
