// Copyright 2019 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package hdp

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/u-root/u-root/pkg/dt"
	"periph.io/x/hdp/cdn"
	"periph.io/x/hdp/dp"
)

// Kind is the transmitter protocol family.
type Kind uint8

// Kinds.
const (
	HDMI Kind = iota + 1
	DP
)

func (k Kind) String() string {
	switch k {
	case HDMI:
		return "HDMI"
	case DP:
		return "DP"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// SoC is the SoC integrating the transmitter. It decides how the registers
// are reached.
type SoC uint8

// SoCs.
const (
	IMX8MQ SoC = iota + 1
	IMX8QM
)

func (s SoC) String() string {
	switch s {
	case IMX8MQ:
		return "i.MX8MQ"
	case IMX8QM:
		return "i.MX8QM"
	default:
		return fmt.Sprintf("SoC(%d)", uint8(s))
	}
}

// compatibles lists the supported device tree compatible strings.
var compatibles = map[string]struct {
	kind Kind
	soc  SoC
}{
	"fsl,imx8mq-hdmi": {HDMI, IMX8MQ},
	"fsl,imx8mq-dp":   {DP, IMX8MQ},
	"fsl,imx8qm-hdmi": {HDMI, IMX8QM},
	"fsl,imx8qm-dp":   {DP, IMX8QM},
}

// Region is a physical memory region from the reg property.
type Region struct {
	Base uint64
	Size uint64
}

// Config is the static configuration of one transmitter, as found in the
// device tree.
type Config struct {
	// Name is the device tree node name.
	Name string
	Kind Kind
	SoC  SoC
	// Regs are the register windows. On i.MX8QM the second one holds the page
	// select registers.
	Regs []Region

	// DisplayPort link overrides; zero values keep dp.DefaultConfig.
	// LinkRate and Lanes describe an embedded panel and are only used when
	// EDP is set.
	LaneMapping uint8
	LinkRate    cdn.LinkRate
	Lanes       int

	// EDP is set for embedded DisplayPort panels. They are always
	// connected.
	EDP bool
	// DualMode is set when the pixel stream is split over two pipes, each
	// clocked at half the pixel clock.
	DualMode bool
	// NoEDID is set when the sink has no readable EDID.
	NoEDID bool
	// Disabled mirrors status = "disabled".
	Disabled bool
}

func (c *Config) String() string {
	return fmt.Sprintf("%s(%s %s)", c.Name, c.SoC, c.Kind)
}

// DPConfig returns dp.DefaultConfig with the device tree overrides applied.
//
// The eDP link rate and lane count are ignored for external connectors, where
// the sink capabilities are discovered by the firmware.
func (c *Config) DPConfig() *dp.Config {
	cfg := dp.DefaultConfig
	if c.LaneMapping != 0 {
		cfg.LaneMapping = c.LaneMapping
	}
	if !c.EDP {
		return &cfg
	}
	if c.LinkRate != 0 {
		cfg.MaxRate = c.LinkRate
	}
	if c.Lanes != 0 {
		cfg.Lanes = c.Lanes
	}
	return &cfg
}

// ParseDT returns the configuration of every transmitter found under root.
func ParseDT(root *dt.Node) ([]Config, error) {
	var out []Config
	err := walk(root, 2, 1, func(n *dt.Node, ac, sc int) error {
		c, ok, err := parseNode(n, ac, sc)
		if ok {
			out = append(out, c)
		}
		return err
	})
	return out, err
}

// walk calls fn on every node below n with the cell sizes defined by its
// parent.
func walk(n *dt.Node, ac, sc int, fn func(n *dt.Node, ac, sc int) error) error {
	cac, csc := 2, 1
	if v, ok := u32(n, "#address-cells"); ok {
		cac = int(v)
	}
	if v, ok := u32(n, "#size-cells"); ok {
		csc = int(v)
	}
	for _, c := range n.Children {
		if err := fn(c, cac, csc); err != nil {
			return err
		}
		if err := walk(c, cac, csc, fn); err != nil {
			return err
		}
	}
	return nil
}

func parseNode(n *dt.Node, ac, sc int) (Config, bool, error) {
	p, ok := n.LookProperty("compatible")
	if !ok {
		return Config{}, false, nil
	}
	c := Config{Name: n.Name}
	found := false
	for _, s := range strings.Split(strings.TrimRight(string(p.Value), "\x00"), "\x00") {
		if m, ok := compatibles[s]; ok {
			c.Kind = m.kind
			c.SoC = m.soc
			found = true
			break
		}
	}
	if !found {
		return c, false, nil
	}
	if p, ok := n.LookProperty("status"); ok {
		if s, err := p.AsString(); err == nil && s != "okay" && s != "ok" {
			c.Disabled = true
		}
	}
	var err error
	if c.Regs, err = regions(n, ac, sc); err != nil {
		return c, true, err
	}
	if v, ok := u32(n, "lane_mapping"); ok {
		c.LaneMapping = uint8(v)
	}
	if v, ok := u32(n, "edp_link_rate"); ok {
		c.LinkRate = cdn.LinkRate(v)
		if !c.LinkRate.Valid() {
			return c, true, fmt.Errorf("hdp: %s: invalid edp_link_rate %#x", n.Name, v)
		}
	}
	if v, ok := u32(n, "edp_num_lanes"); ok {
		c.Lanes = int(v)
		if c.Lanes != 1 && c.Lanes != 2 && c.Lanes != 4 {
			return c, true, fmt.Errorf("hdp: %s: invalid edp_num_lanes %d", n.Name, v)
		}
	}
	_, c.EDP = n.LookProperty("fsl,edp")
	_, c.DualMode = n.LookProperty("fsl,dual_mode")
	_, c.NoEDID = n.LookProperty("fsl,no_edid")
	return c, true, nil
}

// regions decodes the reg property.
func regions(n *dt.Node, ac, sc int) ([]Region, error) {
	p, ok := n.LookProperty("reg")
	if !ok {
		return nil, fmt.Errorf("hdp: %s: no reg property", n.Name)
	}
	if ac < 1 || ac > 2 || sc < 0 || sc > 2 {
		return nil, fmt.Errorf("hdp: %s: unsupported cells %d/%d", n.Name, ac, sc)
	}
	stride := 4 * (ac + sc)
	if len(p.Value) == 0 || len(p.Value)%stride != 0 {
		return nil, fmt.Errorf("hdp: %s: malformed reg property", n.Name)
	}
	var out []Region
	for b := p.Value; len(b) != 0; b = b[stride:] {
		out = append(out, Region{Base: cells(b, ac), Size: cells(b[4*ac:], sc)})
	}
	return out, nil
}

func cells(b []byte, n int) uint64 {
	var v uint64
	for i := 0; i < n; i++ {
		v = v<<32 | uint64(binary.BigEndian.Uint32(b[4*i:]))
	}
	return v
}

func u32(n *dt.Node, name string) (uint32, bool) {
	p, ok := n.LookProperty(name)
	if !ok {
		return 0, false
	}
	v, err := p.AsU32()
	return v, err == nil
}
