// Copyright 2017 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package screen

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"periph.io/x/hdp/cdn"
)

func TestStatus(t *testing.T) {
	var b bytes.Buffer
	d := NewWriter(&b)
	if err := d.Status(OK, "sink", "plugged"); err != nil {
		t.Fatal(err)
	}
	s := b.String()
	if !strings.HasPrefix(s, "\033[0m") || !strings.HasSuffix(s, " sink:      plugged\n") {
		t.Fatalf("%q", s)
	}
	b.Reset()
	if err := d.Err("firmware", errors.New("dead"), "ignored"); err != nil {
		t.Fatal(err)
	}
	if s := b.String(); !strings.HasSuffix(s, "dead\n") || strings.Contains(s, "ignored") {
		t.Fatalf("%q", s)
	}
	if d.String() != "Screen" {
		t.Fatal(d.String())
	}
}

func TestLanes(t *testing.T) {
	var b bytes.Buffer
	d := NewWriter(&b)
	st := cdn.LinkStatus{Rate: cdn.HBR2, Lanes: 2}
	if err := d.Lanes(&st, 4); err != nil {
		t.Fatal(err)
	}
	s := b.String()
	if n := strings.Count(s, "\033[0m"); n < 8 {
		t.Fatalf("%d resets in %q", n, s)
	}
	if !strings.HasSuffix(s, st.String()+"\n") {
		t.Fatalf("%q", s)
	}
}

func TestHalt(t *testing.T) {
	var b bytes.Buffer
	if err := NewWriter(&b).Halt(); err != nil {
		t.Fatal(err)
	}
	if b.String() != "\033[0m" {
		t.Fatalf("%q", b.String())
	}
}
