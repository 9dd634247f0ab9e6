// Copyright 2025 The xonevm Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package compile

import (
	"errors"
	"fmt"
	"unsafe"
)

// DefaultPageSize is the nominal size of one code page.
const DefaultPageSize = 4096

// allocationAlignment keeps every returned region 16-byte aligned.
const allocationAlignment = 16

// ErrPageExecutable is returned when an allocation is attempted after
// the pages have been made executable.
var ErrPageExecutable = errors.New("compile: code pages are already executable")

// CodePage is one mapped region of code memory. It starts out
// read/write and is flipped to read/execute exactly once; no further
// bytes may be placed on it afterwards.
type CodePage struct {
	mem        []byte
	used       int
	executable bool
}

// Base returns the address of the first byte of the page. Returned
// pointers are stable for the lifetime of the allocator.
func (p *CodePage) Base() uintptr {
	return uintptr(unsafe.Pointer(&p.mem[0]))
}

// Size returns the mapped size of the page.
func (p *CodePage) Size() int { return len(p.mem) }

// Used returns how many bytes have been placed on the page.
func (p *CodePage) Used() int { return p.used }

// PageAllocator bump-allocates regions of code memory from mapped
// pages. Regions are never freed individually and never move; the
// whole set of pages is released by Close.
type PageAllocator struct {
	pageSize int
	pages    []*CodePage
}

// NewPageAllocator creates an allocator mapping pages of the given
// size; zero selects DefaultPageSize.
func NewPageAllocator(pageSize int) *PageAllocator {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &PageAllocator{pageSize: pageSize}
}

// Allocate places size bytes of code memory and returns the writable
// region together with its native address.
func (a *PageAllocator) Allocate(size int) ([]byte, uintptr, error) {
	if size <= 0 {
		return nil, 0, fmt.Errorf("compile: invalid code allocation size %d", size)
	}

	page, err := a.pageWithRoom(size)
	if err != nil {
		return nil, 0, err
	}

	region := page.mem[page.used : page.used+size : page.used+size]
	base := page.Base() + uintptr(page.used)
	page.used += size
	if rem := page.used % allocationAlignment; rem != 0 {
		page.used += allocationAlignment - rem
		if page.used > len(page.mem) {
			page.used = len(page.mem)
		}
	}
	return region, base, nil
}

func (a *PageAllocator) pageWithRoom(size int) (*CodePage, error) {
	if len(a.pages) > 0 {
		page := a.pages[len(a.pages)-1]
		if page.executable {
			return nil, ErrPageExecutable
		}
		if len(page.mem)-page.used >= size {
			return page, nil
		}
	}

	mapSize := a.pageSize
	if size > mapSize {
		mapSize = (size + a.pageSize - 1) / a.pageSize * a.pageSize
	}
	mem, err := mapPages(mapSize)
	if err != nil {
		return nil, fmt.Errorf("compile: mapping code page: %w", err)
	}
	page := &CodePage{mem: mem}
	a.pages = append(a.pages, page)
	return page, nil
}

// Pages returns the mapped pages in allocation order.
func (a *PageAllocator) Pages() []*CodePage { return a.pages }

// MakeExecutable flips every page to read/execute. It must be called
// before the first invocation of any entry point; afterwards no
// further allocation is possible.
func (a *PageAllocator) MakeExecutable() error {
	for _, page := range a.pages {
		if page.executable {
			continue
		}
		if err := protectExec(page.mem); err != nil {
			return fmt.Errorf("compile: protecting code page: %w", err)
		}
		page.executable = true
	}
	return nil
}

// Close releases every page back to the operating system.
func (a *PageAllocator) Close() error {
	var firstErr error
	for _, page := range a.pages {
		if err := freePages(page.mem); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	a.pages = nil
	return firstErr
}
