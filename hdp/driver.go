// Copyright 2019 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package hdp

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/u-root/u-root/pkg/dt"
	"periph.io/x/hdp/cdn"
	"periph.io/x/hdp/mmio"
	"periph.io/x/periph"
)

// All returns the transmitters found in the device tree.
func All() []*Dev {
	mu.Lock()
	defer mu.Unlock()
	out := make([]*Dev, len(all))
	copy(out, all)
	return out
}

//

var (
	mu  sync.Mutex
	all []*Dev
)

// fdtPath is the flattened device tree exposed by the kernel.
var fdtPath = "/sys/firmware/fdt"

// mapBus maps the registers of the transmitter described by c.
func mapBus(c *Config) (cdn.Bus, error) {
	if len(c.Regs) == 0 {
		return nil, fmt.Errorf("hdp: %s: no register window", c)
	}
	switch c.SoC {
	case IMX8MQ:
		return mmio.Map(c.Regs[0].Base, int(c.Regs[0].Size))
	case IMX8QM:
		if len(c.Regs) < 2 {
			return nil, fmt.Errorf("hdp: %s: no page select window", c)
		}
		win, err := mmio.Map(c.Regs[0].Base, mmio.PageSize)
		if err != nil {
			return nil, err
		}
		ctrl, err := mmio.Map(c.Regs[1].Base, int(c.Regs[1].Size))
		if err != nil {
			win.Close()
			return nil, err
		}
		return mmio.NewPaged(win, ctrl, mmio.PageSelAPB), nil
	default:
		return nil, fmt.Errorf("hdp: %s: unsupported SoC", c)
	}
}

// probe creates a Dev for every enabled transmitter in cfgs.
//
// Must be called with mu held.
func probe(cfgs []Config, open func(c *Config) (cdn.Bus, error)) error {
	var err error
	for i := range cfgs {
		c := cfgs[i]
		if c.Disabled {
			continue
		}
		b, err1 := open(&c)
		if err1 != nil {
			err = err1
			continue
		}
		opts := DefaultOpts
		opts.Config = c
		d, err1 := New(b, &opts)
		if err1 != nil {
			err = err1
			continue
		}
		all = append(all, d)
	}
	return err
}

// driver implements periph.Driver.
type driver struct {
}

func (d *driver) String() string {
	return "hdp"
}

func (d *driver) Prerequisites() []string {
	return nil
}

func (d *driver) After() []string {
	return nil
}

func (d *driver) Init() (bool, error) {
	f, err := os.Open(fdtPath)
	if err != nil {
		return false, errors.New("no device tree")
	}
	defer f.Close()
	fdt, err := dt.ReadFDT(f)
	if err != nil {
		return true, err
	}
	cfgs, err := ParseDT(fdt.RootNode)
	if err != nil {
		return true, err
	}
	if len(cfgs) == 0 {
		return false, errors.New("no HDP transmitter in the device tree")
	}
	mu.Lock()
	defer mu.Unlock()
	return true, probe(cfgs, mapBus)
}

func init() {
	periph.MustRegister(&driver{})
}

var _ periph.Driver = &driver{}
