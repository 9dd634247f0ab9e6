// Copyright 2025 The xonevm Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package compile

import (
	"bytes"
	"errors"
	"testing"
)

func TestPageAllocator(t *testing.T) {
	a := NewPageAllocator(0)
	defer a.Close()

	region, base, err := a.Allocate(4)
	if err != nil {
		t.Fatal(err)
	}
	copy(region, []byte{1, 2, 3, 4})
	if base == 0 || base%allocationAlignment != 0 {
		t.Fatalf("base = %#x, want non-zero and %d-byte aligned", base, allocationAlignment)
	}
	if len(a.Pages()) != 1 || a.Pages()[0].Size() != DefaultPageSize {
		t.Fatalf("pages = %d, size = %d", len(a.Pages()), a.Pages()[0].Size())
	}
	if used := a.Pages()[0].Used(); used != allocationAlignment {
		t.Errorf("used = %d, want %d", used, allocationAlignment)
	}

	second, secondBase, err := a.Allocate(4)
	if err != nil {
		t.Fatal(err)
	}
	copy(second, []byte{4, 3, 2, 1})
	if secondBase != base+allocationAlignment {
		t.Errorf("second base = %#x, want %#x", secondBase, base+allocationAlignment)
	}
	// The first region is untouched; returned pointers are stable.
	if !bytes.Equal(region, []byte{1, 2, 3, 4}) {
		t.Errorf("first region = %v", region)
	}

	// An oversized request maps a fresh multi-page block.
	big, _, err := a.Allocate(3 * DefaultPageSize / 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(big) != 3*DefaultPageSize/2 {
		t.Fatalf("big allocation = %d bytes", len(big))
	}
	if len(a.Pages()) != 2 || a.Pages()[1].Size() != 2*DefaultPageSize {
		t.Fatalf("pages = %d, second size = %d", len(a.Pages()), a.Pages()[1].Size())
	}
}

func TestPageAllocatorMakeExecutable(t *testing.T) {
	a := NewPageAllocator(0)
	defer a.Close()

	region, _, err := a.Allocate(8)
	if err != nil {
		t.Fatal(err)
	}
	copy(region, []byte{0xC3})

	if err := a.MakeExecutable(); err != nil {
		t.Fatal(err)
	}
	if _, _, err := a.Allocate(8); !errors.Is(err, ErrPageExecutable) {
		t.Fatalf("Allocate after MakeExecutable = %v, want ErrPageExecutable", err)
	}
}

func TestPageAllocatorRejectsEmpty(t *testing.T) {
	a := NewPageAllocator(0)
	defer a.Close()
	if _, _, err := a.Allocate(0); err == nil {
		t.Fatal("Allocate(0) must fail")
	}
}
