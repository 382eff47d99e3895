// Copyright 2019 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package hdp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"k8s.io/klog/v2"
	"periph.io/x/hdp/cdn"
	"periph.io/x/hdp/ddc"
	"periph.io/x/hdp/dp"
	"periph.io/x/hdp/hdmi"
	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/i2c"
	"periph.io/x/periph/conn/physic"
)

var (
	// ErrNoFirmware is returned by FwInit when the firmware doesn't run or
	// doesn't answer the echo test.
	ErrNoFirmware = errors.New("hdp: firmware is not responding")
	// ErrNoEDID is returned by EDIDBlock when the sink has no EDID.
	ErrNoEDID = errors.New("hdp: sink has no EDID")
	// ErrEDIDBlock is returned by EDIDBlock when the firmware kept returning
	// another block than the one requested.
	ErrEDIDBlock = errors.New("hdp: EDID block mismatch")
)

// echoPattern is sent at firmware initialization.
var echoPattern = []byte("echo test")

// Opts is the device configuration.
type Opts struct {
	Config Config
	// Clock is the firmware core clock.
	Clock physic.Frequency
	// Session is the mailbox configuration.
	Session cdn.Opts
	// DP overrides Config.DPConfig().
	DP *dp.Config
	// PHY hooks, optional.
	DPPHY   dp.PHY
	HDMIPHY hdmi.PHY
	// DDC is the HDMI DDC bus. When nil the firmware DDC master is used.
	DDC i2c.Bus
	// HPD is an optional hot plug pin that wakes up Watch.
	HPD gpio.PinIn
	// PollInterval is the Watch polling period.
	PollInterval time.Duration
	// EDIDRetries is the number of EDID reads done when the firmware returns
	// the wrong block.
	EDIDRetries int
}

// DefaultOpts is the recommended configuration.
var DefaultOpts = Opts{
	Config:       Config{Name: "hdp", Kind: DP, SoC: IMX8MQ},
	Clock:        200 * physic.MegaHertz,
	Session:      cdn.DefaultOpts,
	PollInterval: 200 * time.Millisecond,
	EDIDRetries:  4,
}

// Result is the outcome of a mode set.
type Result struct {
	// Training is the DisplayPort link training result.
	Training dp.TrainingResult
	// Protocol is the HDMI protocol selected.
	Protocol hdmi.Protocol
}

// Event is a hot plug or link training event reported by Watch.
type Event struct {
	// HPD is set when the hot plug state changed. Plugged is the new state.
	HPD     bool
	Plugged bool
	// Training is the DisplayPort training sub event, if any.
	Training dp.TrainingEvent
}

func (e Event) String() string {
	switch {
	case e.HPD && e.Plugged:
		return "plugged"
	case e.HPD:
		return "unplugged"
	default:
		return e.Training.String()
	}
}

// Dev is one HDP transmitter.
type Dev struct {
	opts Opts
	s    *cdn.Session
	link *dp.Link
	tx   *hdmi.Tx
	ddc  *ddc.Dev

	// mu serializes mode sets with the hot plug worker.
	mu      sync.Mutex
	sink    hdmi.Sink
	version cdn.Version
}

// New returns a Dev talking to the firmware over b.
//
// The firmware isn't touched until FwInit is called.
func New(b cdn.Bus, opts *Opts) (*Dev, error) {
	if opts == nil {
		opts = &DefaultOpts
	}
	d := &Dev{opts: *opts, sink: hdmi.Sink{HDMI: true}}
	if d.opts.PollInterval <= 0 {
		d.opts.PollInterval = DefaultOpts.PollInterval
	}
	if d.opts.EDIDRetries < 1 {
		d.opts.EDIDRetries = 1
	}
	d.s = cdn.New(b, &d.opts.Session)
	if d.opts.DDC != nil {
		d.ddc = ddc.New(d.opts.DDC)
	}
	switch d.opts.Config.Kind {
	case DP:
		cfg := d.opts.DP
		if cfg == nil {
			cfg = d.opts.Config.DPConfig()
		}
		var err error
		if d.link, err = dp.New(d.s, cfg, d.opts.DPPHY); err != nil {
			return nil, err
		}
	case HDMI:
		var bus hdmi.DDC
		if d.ddc != nil {
			bus = d.ddc
		}
		d.tx = hdmi.New(d.s, bus, d.opts.HDMIPHY)
	default:
		return nil, fmt.Errorf("hdp: invalid kind %s", d.opts.Config.Kind)
	}
	return d, nil
}

func (d *Dev) String() string {
	return d.opts.Config.String()
}

// Config returns the device configuration.
func (d *Dev) Config() Config {
	return d.opts.Config
}

// Session returns the firmware session, for direct opcode access.
func (d *Dev) Session() *cdn.Session {
	return d.s
}

// Link returns the DisplayPort link, nil for HDMI.
func (d *Dev) Link() *dp.Link {
	return d.link
}

// Version returns the firmware version read by FwInit.
func (d *Dev) Version() cdn.Version {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.version
}

// SetSink records the HDMI sink capabilities used by the next ModeSet.
func (d *Dev) SetSink(s hdmi.Sink) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sink = s
}

// FwInit starts the firmware and checks that it answers.
func (d *Dev) FwInit() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.s.SetClock(d.opts.Clock); err != nil {
		return err
	}
	if err := d.s.ReleaseCPU(); err != nil {
		return err
	}
	if err := d.s.CheckAlive(); err != nil {
		klog.Errorf("hdp: %s: %v", d, err)
		return fmt.Errorf("%w: %v", ErrNoFirmware, err)
	}
	if _, err := d.s.MainControl(1); err != nil {
		return err
	}
	if _, err := d.s.TestEchoExt(echoPattern); err != nil {
		klog.Errorf("hdp: %s: %v", d, err)
		return fmt.Errorf("%w: %v", ErrNoFirmware, err)
	}
	v, err := d.s.Version()
	if err != nil {
		return err
	}
	d.version = v
	klog.Infof("hdp: %s: firmware %s", d, v)
	if d.link != nil {
		return d.link.Init()
	}
	return nil
}

// PhyInit powers the PHY up for mode.
func (d *Dev) PhyInit(mode *cdn.Mode, f cdn.Format, depth int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	m := *mode
	if d.opts.Config.DualMode {
		m.PixelClock /= 2
	}
	if d.link != nil {
		return d.link.PhyInit(m.PixelClock)
	}
	if rate := hdmi.CharacterRate(mode.PixelClock, f, depth); rate > hdmi.MaxCharacterRate {
		return fmt.Errorf("%w: character rate %s", hdmi.ErrNotSupported, rate)
	}
	return d.tx.PhyInit(&m, f, depth)
}

// ModeSet configures the transmitter for mode.
//
// rate is the DisplayPort link rate, 0 means the configured maximum; it is
// ignored for HDMI.
func (d *Dev) ModeSet(mode *cdn.Mode, f cdn.Format, depth int, rate cdn.LinkRate) (Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.link != nil {
		res, err := d.link.ModeSet(mode, f, depth, rate)
		return Result{Training: res}, err
	}
	sink := d.sink
	p, err := d.tx.ModeSet(mode, f, depth, &sink)
	return Result{Protocol: p}, err
}

// EDIDBlock reads the EDID block number block into buf.
func (d *Dev) EDIDBlock(buf []byte, block int) error {
	if d.opts.Config.NoEDID {
		return ErrNoEDID
	}
	if len(buf) < ddc.BlockSize {
		return fmt.Errorf("hdp: EDID buffer of %d bytes", len(buf))
	}
	if block < 0 || block > 255 {
		return fmt.Errorf("hdp: invalid EDID block %d", block)
	}
	buf = buf[:ddc.BlockSize]
	if d.ddc != nil {
		return d.ddc.ReadBlock(buf, block)
	}
	seg, ext := uint8(block/2), uint8(block%2)
	for i := 0; i < d.opts.EDIDRetries; i++ {
		var resp cdn.EDIDResponse
		var err error
		if d.link != nil {
			resp, err = d.s.DPGetEDID(seg, ext, buf)
		} else {
			resp, err = d.s.HDMIGetEDID(seg, ext, buf)
		}
		if err != nil {
			return err
		}
		if resp.Block == ext {
			return nil
		}
		klog.V(1).Infof("hdp: %s: EDID block %d returned as %d", d, block, resp.Block)
	}
	return fmt.Errorf("%w: block %d", ErrEDIDBlock, block)
}

// EDID reads the base block and its extensions.
func (d *Dev) EDID() ([]byte, error) {
	buf := make([]byte, ddc.BlockSize)
	if err := d.EDIDBlock(buf, 0); err != nil {
		return nil, err
	}
	if !bytes.Equal(buf[:8], []byte{0, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0}) {
		return nil, errors.New("hdp: invalid EDID header")
	}
	n := int(buf[126])
	for i := 1; i <= n; i++ {
		b := make([]byte, ddc.BlockSize)
		if err := d.EDIDBlock(b, i); err != nil {
			return nil, err
		}
		buf = append(buf, b...)
	}
	return buf, nil
}

// HPDState returns true when a sink is plugged.
//
// An embedded DisplayPort panel is always reported as plugged.
func (d *Dev) HPDState() (bool, error) {
	if d.opts.Config.EDP {
		return true, nil
	}
	if d.link != nil {
		return d.s.DPHPDState()
	}
	return d.s.HDMIHPDStatus()
}

// Watch reports hot plug and training events to fn until ctx is canceled.
//
// Events are polled every Opts.PollInterval, or earlier on an Opts.HPD edge.
// Polling is suspended during mode sets. Transport errors are logged and
// polling continues.
func (d *Dev) Watch(ctx context.Context, fn func(Event)) error {
	if d.opts.HPD != nil {
		if err := d.opts.HPD.In(gpio.PullNoChange, gpio.BothEdges); err != nil {
			return err
		}
		defer d.opts.HPD.In(gpio.PullNoChange, gpio.NoEdge)
	}
	for {
		if err := d.wait(ctx); err != nil {
			return err
		}
		evs, err := d.poll()
		if err != nil {
			klog.Warningf("hdp: %s: %v", d, err)
			continue
		}
		for _, e := range evs {
			fn(e)
		}
	}
}

func (d *Dev) wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d.opts.HPD != nil {
		// WaitForEdge can't be interrupted, it is bounded by the interval.
		d.opts.HPD.WaitForEdge(d.opts.PollInterval)
		return ctx.Err()
	}
	t := time.NewTimer(d.opts.PollInterval)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// poll reads the pending events.
func (d *Dev) poll() ([]Event, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, err := d.s.Events()
	if err != nil {
		return nil, err
	}
	if d.link != nil {
		// Events consumed while training.
		e |= d.link.Deferred()
	}
	if e&(cdn.EventHPD|cdn.EventTraining) == 0 {
		return nil, nil
	}
	var out []Event
	if d.link != nil {
		ev, err := d.s.DPReadEvent()
		if err != nil {
			return nil, err
		}
		if ev.Training != 0 {
			out = append(out, Event{Training: dp.TrainingEvent(ev.Training)})
		}
		if e&cdn.EventHPD == 0 && ev.HPD == 0 {
			return out, nil
		}
	} else {
		if e&cdn.EventHPD == 0 {
			return nil, nil
		}
		if _, err := d.s.HDMIEvents(); err != nil {
			return nil, err
		}
	}
	plugged, err := d.HPDState()
	if err != nil {
		return out, err
	}
	klog.V(1).Infof("hdp: %s: plugged=%t", d, plugged)
	return append(out, Event{HPD: true, Plugged: plugged}), nil
}

// Halt stops the video and the IP activity.
func (d *Dev) Halt() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.link != nil {
		if err := d.s.DPSetVideo(0); err != nil {
			return err
		}
	}
	_, err := d.s.MainControl(0)
	return err
}
