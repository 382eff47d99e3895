// Copyright 2017 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package screen prints the state of an HDP transmitter to the terminal
// (stdout) using ANSI color codes.
//
// Each line starts with a colored block: green for healthy, red for failed,
// yellow for degraded.
package screen // import "periph.io/x/hdp/devices/screen"

import (
	"bytes"
	"fmt"
	"image/color"
	"io"

	"github.com/maruel/ansi256"
	"github.com/mattn/go-colorable"
	"periph.io/x/hdp/cdn"
)

// Level is the health shown by a status line.
type Level int

// Levels.
const (
	OK Level = iota
	Degraded
	Failed
)

var levelColors = [...]color.NRGBA{
	OK:       {0x00, 0xC0, 0x00, 0xFF},
	Degraded: {0xE0, 0xC0, 0x00, 0xFF},
	Failed:   {0xE0, 0x00, 0x00, 0xFF},
}

// Dev writes status lines to a terminal.
type Dev struct {
	w   io.Writer
	buf bytes.Buffer
}

// New returns a Dev that writes to the console.
func New() *Dev {
	return NewWriter(colorable.NewColorableStdout())
}

// NewWriter returns a Dev that writes to w.
func NewWriter(w io.Writer) *Dev {
	return &Dev{w: w}
}

func (d *Dev) String() string {
	return "Screen"
}

// Halt implements conn.Resource.
//
// It resets the terminal colors.
func (d *Dev) Halt() error {
	_, err := d.w.Write([]byte("\033[0m"))
	return err
}

// Status prints one status line.
func (d *Dev) Status(l Level, label, detail string) error {
	d.buf.Reset()
	d.block(levelColors[l])
	fmt.Fprintf(&d.buf, " %-10s %s\n", label+":", detail)
	_, err := d.buf.WriteTo(d.w)
	return err
}

// Err prints a status line for an operation result.
func (d *Dev) Err(label string, err error, detail string) error {
	if err != nil {
		return d.Status(Failed, label, err.Error())
	}
	return d.Status(OK, label, detail)
}

// Lanes prints one block per configured lane, brighter for higher voltage
// swing, followed by the link status. Lanes not trained are red.
func (d *Dev) Lanes(st *cdn.LinkStatus, lanes int) error {
	d.buf.Reset()
	for i := 0; i < lanes; i++ {
		c := levelColors[Failed]
		if i < int(st.Lanes) {
			v := uint8(0x60 + 0x30*int(st.VSwing[i&3]&3))
			c = color.NRGBA{0, v, v, 0xFF}
		}
		d.block(c)
	}
	fmt.Fprintf(&d.buf, " %s\n", st)
	_, err := d.buf.WriteTo(d.w)
	return err
}

func (d *Dev) block(c color.NRGBA) {
	_, _ = d.buf.WriteString("\033[0m")
	_, _ = io.WriteString(&d.buf, ansi256.Default.Block(c))
	_, _ = d.buf.WriteString("\033[0m")
}

var _ fmt.Stringer = &Dev{}
