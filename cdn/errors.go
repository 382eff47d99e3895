// Copyright 2019 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package cdn

import (
	"errors"
	"fmt"
)

var (
	// ErrBadOpcode is returned when the response header carries another
	// opcode than the request. The conversation is abandoned.
	ErrBadOpcode = errors.New("cdn: unexpected response opcode")
	// ErrBadModule is returned when the response header carries another
	// module than the request. The conversation is abandoned.
	ErrBadModule = errors.New("cdn: unexpected response module")
	// ErrShortMessage is returned when a response is shorter than its layout.
	ErrShortMessage = errors.New("cdn: message too short")
	// ErrNotAlive is returned when the firmware keep alive counter is stuck.
	ErrNotAlive = errors.New("cdn: firmware is not running")
	// ErrEcho is returned when the firmware doesn't echo the test pattern.
	ErrEcho = errors.New("cdn: echo test mismatch")
	// ErrNotSupported is returned when a video mode can't be transported.
	ErrNotSupported = errors.New("cdn: not supported")
	// ErrTimeout is returned by blocking calls when Opts.Timeout elapsed.
	ErrTimeout = errors.New("cdn: firmware didn't answer in time")
	// ErrInFlight is returned by blocking calls when a non-blocking
	// conversation for another Op was left in flight.
	ErrInFlight = errors.New("cdn: another conversation is in flight")
)

// headErr validates a response header against the request.
func headErr(got Header, m Module, op Opcode) error {
	if got.Opcode != op {
		return fmt.Errorf("%w: got %#02x, want %#02x", ErrBadOpcode, uint8(got.Opcode), uint8(op))
	}
	if got.Module != m {
		return fmt.Errorf("%w: got %s, want %s", ErrBadModule, got.Module, m)
	}
	return nil
}
