// Copyright 2019 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package dp

import (
	"fmt"
	"strconv"
)

// TrainingEvent is a link training sub event reported by the firmware.
type TrainingEvent uint8

// Training sub events.
const (
	FullTrainingStarted   TrainingEvent = 0x01
	FastTrainingStarted   TrainingEvent = 0x02
	ClockRecoveryFinished TrainingEvent = 0x04
	EqualizationFinished  TrainingEvent = 0x08
	FastTrainingFinished  TrainingEvent = 0x10
	ClockRecoveryFailed   TrainingEvent = 0x20
	EqualizationFailed    TrainingEvent = 0x40
	FastTrainingFailed    TrainingEvent = 0x80
)

func (e TrainingEvent) String() string {
	switch e {
	case FullTrainingStarted:
		return "FullTrainingStarted"
	case FastTrainingStarted:
		return "FastTrainingStarted"
	case ClockRecoveryFinished:
		return "ClockRecoveryFinished"
	case EqualizationFinished:
		return "EqualizationFinished"
	case FastTrainingFinished:
		return "FastTrainingFinished"
	case ClockRecoveryFailed:
		return "ClockRecoveryFailed"
	case EqualizationFailed:
		return "EqualizationFailed"
	case FastTrainingFailed:
		return "FastTrainingFailed"
	default:
		return "TrainingEvent(0x" + strconv.FormatUint(uint64(e), 16) + ")"
	}
}

// Outcome classifies a TrainingEvent.
type Outcome int

// Training event outcomes.
const (
	// Progress events are informational; training goes on.
	Progress Outcome = iota
	Success
	Failure
	// Invalid is an unknown event ID. It is treated as a failure.
	Invalid
)

func (o Outcome) String() string {
	switch o {
	case Progress:
		return "Progress"
	case Success:
		return "Success"
	case Failure:
		return "Failure"
	default:
		return "Invalid"
	}
}

// Terminal returns true when training is over.
func (o Outcome) Terminal() bool {
	return o != Progress
}

// Outcome returns the effect of the event on the training.
func (e TrainingEvent) Outcome() Outcome {
	switch e {
	case FullTrainingStarted, FastTrainingStarted, ClockRecoveryFinished:
		return Progress
	case EqualizationFinished, FastTrainingFinished:
		return Success
	case ClockRecoveryFailed, EqualizationFailed, FastTrainingFailed:
		return Failure
	default:
		return Invalid
	}
}

// State is the link training state.
type State int

// Link training states.
const (
	Idle State = iota
	TrainingStarted
	ClockRecovery
	ChannelEqualization
	Trained
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case TrainingStarted:
		return "TrainingStarted"
	case ClockRecovery:
		return "ClockRecovery"
	case ChannelEqualization:
		return "ChannelEqualization"
	case Trained:
		return "Trained"
	case Failed:
		return "Failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// next returns the state after event e.
func (s State) next(e TrainingEvent) State {
	switch e {
	case FullTrainingStarted, FastTrainingStarted:
		return ClockRecovery
	case ClockRecoveryFinished:
		return ChannelEqualization
	}
	switch e.Outcome() {
	case Success:
		return Trained
	case Progress:
		return s
	default:
		return Failed
	}
}

// TrainingResult is the outcome of a mode set as far as link training is
// concerned.
type TrainingResult int

// Training results.
const (
	// Untrained means training wasn't attempted.
	Untrained TrainingResult = iota
	// LinkTrained means the link trained successfully.
	LinkTrained
	// TimedOutBestEffort means every attempt failed; video may have been
	// enabled anyway.
	TimedOutBestEffort
	// HardFailure means a firmware conversation failed.
	HardFailure
)

func (r TrainingResult) String() string {
	switch r {
	case Untrained:
		return "Untrained"
	case LinkTrained:
		return "Trained"
	case TimedOutBestEffort:
		return "TimedOutBestEffort"
	case HardFailure:
		return "HardFailure"
	default:
		return fmt.Sprintf("TrainingResult(%d)", int(r))
	}
}
