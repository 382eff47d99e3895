// Copyright 2019 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package mmio implements cdn.Bus over memory mapped registers.
//
// On i.MX8MQ the HDP APB registers are directly visible in the physical
// address space. On i.MX8QM they are reached through a 4KiB window whose page
// is selected in the subsystem control registers; use Paged for these.
//
// Mapping physical memory requires access to /dev/mem, which usually means
// running as root.
package mmio

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"periph.io/x/periph/host/pmem"
)

// PageSize is the size of the paged window on i.MX8QM.
const PageSize = 0x1000

// Page select registers, relative to the subsystem control window.
const (
	PageSelAPB  uint32 = 0x08
	PageSelSAPB uint32 = 0x0c
)

// Window is a window of 32 bits registers.
type Window struct {
	base uint64
	view *pmem.View
	regs []uint32
}

// Map maps size bytes of physical memory at base.
func Map(base uint64, size int) (*Window, error) {
	if base&3 != 0 || size <= 0 || size&3 != 0 {
		return nil, fmt.Errorf("mmio: invalid window %#x+%#x", base, size)
	}
	v, err := pmem.Map(base, size)
	if err != nil {
		return nil, fmt.Errorf("mmio: %w", err)
	}
	w := &Window{base: base, view: v}
	if err := v.AsPOD(&w.regs); err != nil {
		v.Close()
		return nil, fmt.Errorf("mmio: %w", err)
	}
	return w, nil
}

// NewWindow returns a Window over regs. It is meant for testing and for
// memory already mapped by other means.
func NewWindow(regs []uint32) *Window {
	return &Window{regs: regs}
}

func (w *Window) String() string {
	if w.view != nil {
		return fmt.Sprintf("mmio(%#x)", w.base)
	}
	return "mmio"
}

// ReadReg implements cdn.Bus.
func (w *Window) ReadReg(off uint32) (uint32, error) {
	i, err := w.index(off)
	if err != nil {
		return 0, err
	}
	return atomic.LoadUint32(&w.regs[i]), nil
}

// WriteReg implements cdn.Bus.
func (w *Window) WriteReg(off, v uint32) error {
	i, err := w.index(off)
	if err != nil {
		return err
	}
	atomic.StoreUint32(&w.regs[i], v)
	return nil
}

// Close unmaps the window.
func (w *Window) Close() error {
	w.regs = nil
	if w.view == nil {
		return nil
	}
	err := w.view.Close()
	w.view = nil
	return err
}

func (w *Window) index(off uint32) (int, error) {
	if off&3 != 0 {
		return 0, fmt.Errorf("mmio: unaligned register %#x", off)
	}
	i := int(off >> 2)
	if i >= len(w.regs) {
		if w.regs == nil {
			return 0, errClosed
		}
		return 0, fmt.Errorf("mmio: register %#x out of window", off)
	}
	return i, nil
}

// Paged is a register bus reached through a PageSize window.
//
// The page of each access is written to a select register of another
// window first. Accesses are serialized.
type Paged struct {
	mu   sync.Mutex
	win  *Window
	ctrl *Window
	sel  uint32
}

// NewPaged returns a Paged bus over win, selecting pages with register sel
// of ctrl.
func NewPaged(win, ctrl *Window, sel uint32) *Paged {
	return &Paged{win: win, ctrl: ctrl, sel: sel}
}

// ReadReg implements cdn.Bus.
func (p *Paged) ReadReg(off uint32) (uint32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.selectPage(off); err != nil {
		return 0, err
	}
	return p.win.ReadReg(off & (PageSize - 1))
}

// WriteReg implements cdn.Bus.
func (p *Paged) WriteReg(off, v uint32) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.selectPage(off); err != nil {
		return err
	}
	return p.win.WriteReg(off&(PageSize-1), v)
}

// selectPage is done on every access.
func (p *Paged) selectPage(off uint32) error {
	return p.ctrl.WriteReg(p.sel, off>>12)
}

var errClosed = errors.New("mmio: window is closed")
