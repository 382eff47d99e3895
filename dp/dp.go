// Copyright 2019 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package dp drives a DisplayPort link through the HDP firmware.
//
// It negotiates the source capabilities, programs the video timing, trains
// the link and enables the video stream.
package dp

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"k8s.io/klog/v2"
	"periph.io/x/hdp/cdn"
	"periph.io/x/periph/conn/physic"
)

var (
	// ErrTrainingFailed is returned by ModeSet when Config.RequireTraining is
	// set and every training attempt failed.
	ErrTrainingFailed = errors.New("dp: link training failed")
	// ErrEventTimeout is returned by TrainingStatus when the firmware
	// doesn't report a training event within Config.EventTimeout.
	ErrEventTimeout = errors.New("dp: no training event")
)

// PHY is the platform specific DisplayPort PHY.
type PHY interface {
	// Init powers the PHY up for lanes lanes at rate, fed with a pixel clock
	// of pixel.
	Init(pixel physic.Frequency, rate cdn.LinkRate, lanes int) error
}

// Config is the static link configuration.
type Config struct {
	Lanes   int
	MaxRate cdn.LinkRate
	// LaneMapping maps logical lanes to pads, 2 bits per lane.
	LaneMapping  uint8
	SSC          bool
	Scrambler    bool
	MaxVSwing    uint8
	ForceVSwing  bool
	MaxPreEmph   uint8
	ForcePreEmph bool
	TestPatterns uint8
	FastTraining bool
	Enhanced     bool

	// TrainingRetries is the maximum number of training attempts.
	TrainingRetries int
	// RetryDelay is the pause between a failed attempt and the next one.
	RetryDelay time.Duration
	// EventTimeout bounds the wait for each training event. 0 means forever.
	EventTimeout time.Duration
	// EventPoll is the interval between SW_EVENTS reads.
	EventPoll time.Duration
	// SettleDelay is waited before a mode set, to let the sink wake up.
	SettleDelay time.Duration
	// RequireTraining keeps the video off when training fails.
	RequireTraining bool
}

// DefaultConfig is the recommended configuration.
var DefaultConfig = Config{
	Lanes:           4,
	MaxRate:         cdn.HBR2,
	LaneMapping:     0x1B,
	Scrambler:       true,
	MaxVSwing:       3,
	MaxPreEmph:      3,
	TestPatterns:    0x0F,
	Enhanced:        true,
	TrainingRetries: 10,
	RetryDelay:      time.Millisecond,
	EventTimeout:    500 * time.Millisecond,
	EventPoll:       100 * time.Microsecond,
	SettleDelay:     50 * time.Millisecond,
}

// Link is a DisplayPort link.
type Link struct {
	s   *cdn.Session
	cfg Config
	phy PHY

	mu       sync.Mutex
	state    State
	attempts int
	deferred cdn.Events
}

// New returns a Link using the firmware behind s.
//
// phy may be nil when the PHY is initialized by other means.
func New(s *cdn.Session, cfg *Config, phy PHY) (*Link, error) {
	if cfg == nil {
		cfg = &DefaultConfig
	}
	if cfg.Lanes != 1 && cfg.Lanes != 2 && cfg.Lanes != 4 {
		return nil, fmt.Errorf("dp: invalid lane count %d", cfg.Lanes)
	}
	if !cfg.MaxRate.Valid() {
		return nil, fmt.Errorf("dp: invalid link rate %s", cfg.MaxRate)
	}
	l := &Link{s: s, cfg: *cfg, phy: phy}
	if l.cfg.TrainingRetries < 1 {
		l.cfg.TrainingRetries = 1
	}
	return l, nil
}

func (l *Link) String() string {
	return fmt.Sprintf("dp(%s x%d)", l.cfg.MaxRate, l.cfg.Lanes)
}

// Config returns the link configuration.
func (l *Link) Config() Config {
	return l.cfg
}

// State returns the link training state.
func (l *Link) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Attempts returns the number of training attempts of the last training.
func (l *Link) Attempts() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.attempts
}

// Deferred returns and clears the events read while waiting for training
// events that weren't training events.
func (l *Link) Deferred() cdn.Events {
	l.mu.Lock()
	defer l.mu.Unlock()
	e := l.deferred
	l.deferred = 0
	return e
}

// Init enables hot plug and training event reporting.
func (l *Link) Init() error {
	return l.s.DPEnableEvent(true, true)
}

// PhyInit powers up the PHY for a pixel clock of pixel and turns the video
// stream off.
func (l *Link) PhyInit(pixel physic.Frequency) error {
	if l.phy != nil {
		if err := l.phy.Init(pixel, l.cfg.MaxRate, l.cfg.Lanes); err != nil {
			return fmt.Errorf("dp: phy: %w", err)
		}
	}
	return l.s.DPSetVideo(0)
}

// HostCap returns the capabilities sent to the firmware for rate.
func (l *Link) HostCap(rate cdn.LinkRate) cdn.HostCap {
	return cdn.HostCap{
		MaxRate:      rate,
		Lanes:        uint8(l.cfg.Lanes),
		SSC:          l.cfg.SSC,
		Scrambler:    l.cfg.Scrambler,
		MaxVSwing:    l.cfg.MaxVSwing,
		ForceVSwing:  l.cfg.ForceVSwing,
		MaxPreEmph:   l.cfg.MaxPreEmph,
		ForcePreEmph: l.cfg.ForcePreEmph,
		TestPatterns: l.cfg.TestPatterns,
		FastTraining: l.cfg.FastTraining,
		LaneMapping:  l.cfg.LaneMapping,
		Enhanced:     l.cfg.Enhanced,
	}
}

// TrainingStatus waits for the next terminal training event.
//
// Informational events advance State() and are otherwise skipped. The
// returned event is a Success, Failure or Invalid one.
func (l *Link) TrainingStatus() (TrainingEvent, error) {
	for {
		ev, err := l.waitEvent()
		if err != nil {
			return 0, err
		}
		klog.V(1).Infof("dp: training event %s", ev)
		l.mu.Lock()
		l.state = l.state.next(ev)
		l.mu.Unlock()
		if ev.Outcome().Terminal() {
			return ev, nil
		}
	}
}

// waitEvent waits for the training bit in SW_EVENTS and reads the sub event.
func (l *Link) waitEvent() (TrainingEvent, error) {
	var deadline time.Time
	if l.cfg.EventTimeout > 0 {
		deadline = time.Now().Add(l.cfg.EventTimeout)
	}
	for {
		e, err := l.s.Events()
		if err != nil {
			return 0, err
		}
		if other := e &^ cdn.EventTraining; other != 0 {
			l.mu.Lock()
			l.deferred |= other
			l.mu.Unlock()
		}
		if e&cdn.EventTraining != 0 {
			break
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			return 0, ErrEventTimeout
		}
		time.Sleep(l.cfg.EventPoll)
	}
	ev, err := l.s.DPReadEvent()
	if err != nil {
		return 0, err
	}
	return TrainingEvent(ev.Training), nil
}

// Train trains the link, retrying up to Config.TrainingRetries times.
//
// Exhausting the retries is not an error; TimedOutBestEffort is returned.
func (l *Link) Train() (TrainingResult, error) {
	n := l.cfg.TrainingRetries
	for attempt := 1; attempt <= n; attempt++ {
		l.mu.Lock()
		l.state = TrainingStarted
		l.attempts = attempt
		l.mu.Unlock()
		if err := l.s.DPTrainingControl(1); err != nil {
			l.fail()
			return HardFailure, err
		}
		ev, err := l.TrainingStatus()
		switch {
		case err == nil && ev.Outcome() == Success:
			klog.V(1).Infof("dp: link trained after %d attempt(s)", attempt)
			return LinkTrained, nil
		case err == nil:
			klog.Warningf("dp: training attempt %d/%d failed: %s", attempt, n, ev)
		case errors.Is(err, ErrEventTimeout):
			l.fail()
			klog.Warningf("dp: training attempt %d/%d: %v", attempt, n, err)
		default:
			l.fail()
			return HardFailure, err
		}
		if err := l.s.DPTrainingControl(0); err != nil {
			return HardFailure, err
		}
		time.Sleep(l.cfg.RetryDelay)
	}
	return TimedOutBestEffort, nil
}

func (l *Link) fail() {
	l.mu.Lock()
	l.state = Failed
	l.mu.Unlock()
}

// ModeSet configures the link for mode and enables the video stream.
//
// rate 0 means Config.MaxRate. The steps are the source capabilities, the
// video timing, link training then video enable; the first failure aborts the
// sequence without rollback.
//
// When training fails, the video is enabled anyway and TimedOutBestEffort is
// returned with a nil error, unless Config.RequireTraining is set.
func (l *Link) ModeSet(mode *cdn.Mode, f cdn.Format, depth int, rate cdn.LinkRate) (TrainingResult, error) {
	if rate == 0 {
		rate = l.cfg.MaxRate
	}
	if !rate.Valid() {
		return Untrained, fmt.Errorf("dp: invalid link rate %s", rate)
	}
	time.Sleep(l.cfg.SettleDelay)
	l.mu.Lock()
	l.state = Idle
	l.attempts = 0
	l.mu.Unlock()

	hc := l.HostCap(rate)
	if err := l.s.DPSetHostCap(&hc); err != nil {
		klog.Errorf("dp: host capabilities: %v", err)
		return HardFailure, err
	}
	v := cdn.Video{Mode: mode, Format: f, Depth: depth, Lanes: l.cfg.Lanes, Rate: rate}
	tu, err := l.s.DPSetVIC(&v)
	if err != nil {
		klog.Errorf("dp: %s: %v", mode, err)
		return HardFailure, err
	}
	klog.V(1).Infof("dp: %s %s %dbpc over %s x%d: %s", mode, f, depth, rate, l.cfg.Lanes, tu)
	res, err := l.Train()
	if err != nil {
		klog.Errorf("dp: training: %v", err)
		return res, err
	}
	if res == TimedOutBestEffort {
		if l.cfg.RequireTraining {
			klog.Errorf("dp: giving up after %d training attempts", l.cfg.TrainingRetries)
			return res, ErrTrainingFailed
		}
		klog.Warningf("dp: enabling video on an untrained link")
	}
	if err := l.s.DPSetVideo(1); err != nil {
		klog.Errorf("dp: video on: %v", err)
		return HardFailure, err
	}
	return res, nil
}

// LinkStatus returns the trained link parameters.
func (l *Link) LinkStatus() (cdn.LinkStatus, error) {
	return l.s.DPReadLinkStat()
}
