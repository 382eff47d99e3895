// Copyright 2019 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package cdn

// Bus is the register bus used to reach the firmware.
//
// Offsets are byte offsets relative to the APB configuration window.
type Bus interface {
	ReadReg(off uint32) (uint32, error)
	WriteReg(off, v uint32) error
}

// APB configuration registers.
const (
	RegAPBCtrl      uint32 = 0x00 // uCPU reset and stall
	RegXTIntCtrl    uint32 = 0x04
	RegMailboxFull  uint32 = 0x08 // non-zero when the host to firmware FIFO is full
	RegMailboxEmpty uint32 = 0x0c // non-zero when the firmware to host FIFO is empty
	RegMailboxWr    uint32 = 0x10 // MAILBOX0_WR_DATA
	RegMailboxRd    uint32 = 0x14 // MAILBOX0_RD_DATA
	RegKeepAlive    uint32 = 0x18 // incremented by the firmware main loop
	RegVerL         uint32 = 0x1c
	RegVerH         uint32 = 0x20
	RegVerLibL      uint32 = 0x24
	RegVerLibH      uint32 = 0x28
	RegSWDebugL     uint32 = 0x2c
	RegSWDebugH     uint32 = 0x30
	RegMailboxIntM  uint32 = 0x34
	RegMailboxIntS  uint32 = 0x38
	RegSWClkL       uint32 = 0x3c
	RegSWClkH       uint32 = 0x40 // firmware clock in MHz
	RegSWEvents0    uint32 = 0x44
	RegSWEvents1    uint32 = 0x48
	RegSWEvents2    uint32 = 0x4c
	RegSWEvents3    uint32 = 0x50
)
