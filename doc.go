// Copyright 2019 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package hdp is for documentation only. Explains how to use the Cadence HDP
// transmitter drivers.
//
// Layout
//
// cdn talks to the transmitter firmware through its APB mailbox. dp and hdmi
// build the DisplayPort link training and the HDMI mode set on top of it. hdp
// ties them to the device tree and registers a periph driver, loaded by
// hostextra.Init().
//
// Permissions
//
// The registers are reached through /dev/mem. Either run as root or grant
// CAP_SYS_RAWIO:
//
//  sudo setcap cap_sys_rawio=ep ./hdp
//
// No cgo is needed.
//
// Testing without hardware
//
// cdn/cdntest emulates the firmware. The hdp command uses it with -fake:
//
//  go run ./cmd/hdp -fake -modeset -watch 1s -v 1
package hdp
