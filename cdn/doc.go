// Copyright 2019 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package cdn implements the mailbox protocol spoken by the firmware running
// on the Cadence HDP (HDMI/DisplayPort) transmitter found in NXP i.MX8 SoCs.
//
// The host and the firmware exchange short messages through a pair of byte
// FIFOs exposed as APB registers. Every message starts with a 4 bytes header
// (opcode, module, big endian length) followed by big endian fields.
//
// Non-blocking and blocking calls
//
// Each opcode is exposed twice. The package level function, for example
// DPTrainingControl(), returns an Op that is driven one step at a time with
// Session.Poll(). This permits a single polling loop to drive long
// configuration sequences without blocking. The Session method of the same
// name is the blocking variant: it holds the Session lock and spins until the
// conversation completes.
//
// Only one conversation can be in flight on a Session at a time. A Poll() for
// another Op while one is in flight returns Pending without side effect.
//
// Datasheets
//
// The mailbox layout is not publicly documented; it is a fixed binary contract
// per opcode shared with the firmware image loaded by the boot loader.
package cdn
