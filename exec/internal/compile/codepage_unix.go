// Copyright 2025 The xonevm Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build !windows

package compile

import (
	mmap "github.com/edsrzf/mmap-go"
	"golang.org/x/sys/unix"
)

func mapPages(size int) ([]byte, error) {
	m, err := mmap.MapRegion(nil, size, mmap.RDWR, mmap.ANON, 0)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func protectExec(mem []byte) error {
	return unix.Mprotect(mem, unix.PROT_READ|unix.PROT_EXEC)
}

func freePages(mem []byte) error {
	m := mmap.MMap(mem)
	return m.Unmap()
}
