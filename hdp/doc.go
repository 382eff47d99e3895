// Copyright 2019 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package hdp implements support for the Cadence HDP HDMI/DisplayPort
// transmitter found in NXP i.MX8 SoCs.
//
// The transmitter is run by a firmware reached through an APB mailbox. Dev
// starts the firmware, powers the PHY up, sets video modes, reads the sink
// EDID and reports hot plug events.
//
// Configuration
//
// The transmitters are found in the flattened device tree exposed at
// /sys/firmware/fdt. The recognized properties are:
//
//  compatible     fsl,imx8mq-hdmi, fsl,imx8mq-dp, fsl,imx8qm-hdmi or fsl,imx8qm-dp
//  reg            register windows; the page select window second on i.MX8QM
//  lane_mapping   logical to physical lane mapping
//  edp_link_rate  eDP maximum link rate code, e.g. 0x14 for HBR2
//  edp_num_lanes  eDP lane count: 1, 2 or 4
//  fsl,edp        embedded DisplayPort panel, always connected
//  fsl,dual_mode  the pixel stream is split over two pipes
//  fsl,no_edid    the sink has no EDID
//
// Permissions
//
// The registers are mapped through /dev/mem, which requires root.
//
// The firmware must have been loaded by the boot loader.
package hdp
