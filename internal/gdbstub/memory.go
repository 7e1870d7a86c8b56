// Copyright 2015 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package gdbstub

import (
	"sync"

	"github.com/libalis/mpstubs-gruppe-05-sub000/internal/errs"
)

// Memory is the address space the `m`/`M`/`X` commands read and write
// (spec.md §4.7). original_source dereferences raw pointers directly;
// idiomatic Go has no equivalent unsafe escape hatch available to a
// debug stub, so callers supply a Memory implementation instead.
type Memory interface {
	ReadAt(addr uint64, buf []byte) error
	WriteAt(addr uint64, buf []byte) error
}

// FlatMemory is a fixed-size simulated address space, the stand-in used
// when no richer memory model (e.g. a process image) is wired in.
type FlatMemory struct {
	mu  sync.Mutex
	buf []byte
}

// NewFlatMemory returns a zeroed address space of size bytes.
func NewFlatMemory(size int) *FlatMemory {
	return &FlatMemory{buf: make([]byte, size)}
}

func (m *FlatMemory) ReadAt(addr uint64, buf []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if addr+uint64(len(buf)) > uint64(len(m.buf)) {
		return errs.EFAULT
	}
	copy(buf, m.buf[addr:])
	return nil
}

func (m *FlatMemory) WriteAt(addr uint64, buf []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if addr+uint64(len(buf)) > uint64(len(m.buf)) {
		return errs.EFAULT
	}
	copy(m.buf[addr:], buf)
	return nil
}
