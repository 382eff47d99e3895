// Copyright 2019 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// hdp prints out the state of the HDP transmitters found in the device tree
// and optionally sets a 1080p60 mode.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"k8s.io/klog/v2"
	"periph.io/x/hdp/cdn"
	"periph.io/x/hdp/cdn/cdntest"
	"periph.io/x/hdp/devices/screen"
	"periph.io/x/hdp/dp"
	"periph.io/x/hdp/hdp"
	"periph.io/x/hdp/hostextra"
	"periph.io/x/periph/conn/physic"
)

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

func process(s *screen.Dev, d *hdp.Dev, modeset bool, watch time.Duration) error {
	if err := d.FwInit(); err != nil {
		s.Err("firmware", err, "")
		return err
	}
	s.Status(screen.OK, "firmware", d.Version().String())
	plugged, err := d.HPDState()
	if err != nil {
		s.Err("sink", err, "")
		return err
	}
	if !plugged {
		s.Status(screen.Degraded, "sink", "unplugged")
	} else {
		s.Status(screen.OK, "sink", "plugged")
		e, err := d.EDID()
		s.Err("EDID", err, fmt.Sprintf("%d bytes", len(e)))
	}
	if modeset {
		if err := d.PhyInit(&mode1080p60, cdn.RGB, 8); err != nil {
			s.Err("phy", err, "")
			return err
		}
		res, err := d.ModeSet(&mode1080p60, cdn.RGB, 8, 0)
		if err != nil {
			s.Err("mode", err, "")
			return err
		}
		if l := d.Link(); l != nil {
			lvl := screen.OK
			if res.Training != dp.LinkTrained {
				lvl = screen.Degraded
			}
			s.Status(lvl, "mode", fmt.Sprintf("%s, %s after %d attempt(s)", &mode1080p60, res.Training, l.Attempts()))
			st, err := l.LinkStatus()
			if err != nil {
				s.Err("link", err, "")
				return err
			}
			s.Lanes(&st, l.Config().Lanes)
		} else {
			s.Status(screen.OK, "mode", fmt.Sprintf("%s, %s", &mode1080p60, res.Protocol))
		}
	}
	if watch > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), watch)
		defer cancel()
		err := d.Watch(ctx, func(e hdp.Event) {
			s.Status(screen.OK, "event", e.String())
		})
		if err != context.DeadlineExceeded {
			return err
		}
	}
	return nil
}

// newFake returns a DisplayPort transmitter backed by an emulated firmware
// with a sink plugged in.
func newFake() (*hdp.Dev, error) {
	f := cdntest.New()
	edid := make([]byte, 128)
	copy(edid, []byte{0, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0})
	var sum byte
	for _, c := range edid[:127] {
		sum += c
	}
	edid[127] = -sum
	f.EDID = [][]byte{edid}
	f.SetHPD(true)
	opts := hdp.DefaultOpts
	opts.Config.Name = "fake"
	opts.PollInterval = 10 * time.Millisecond
	return hdp.New(f, &opts)
}

func mainImpl() error {
	klog.InitFlags(nil)
	fake := flag.Bool("fake", false, "use an emulated firmware instead of the hardware")
	name := flag.String("name", "", "only process the transmitter with this device tree node name")
	modeset := flag.Bool("modeset", false, "set 1920x1080@60 RGB 8bpc")
	watch := flag.Duration("watch", 0, "report hot plug events for this long")
	flag.Parse()
	defer klog.Flush()
	if flag.NArg() != 0 {
		return errors.New("unexpected argument, try -help")
	}

	var all []*hdp.Dev
	if *fake {
		d, err := newFake()
		if err != nil {
			return err
		}
		all = append(all, d)
	} else {
		if _, err := hostextra.Init(); err != nil {
			return err
		}
		all = hdp.All()
	}
	s := screen.New()
	defer s.Halt()
	found := 0
	for _, d := range all {
		if *name != "" && d.Config().Name != *name {
			continue
		}
		found++
		fmt.Printf("- %s\n", d)
		if err := process(s, d, *modeset, *watch); err != nil {
			return err
		}
	}
	if found == 0 {
		return errors.New("no transmitter found")
	}
	return nil
}

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "hdp: %s.\n", err)
		os.Exit(1)
	}
}
