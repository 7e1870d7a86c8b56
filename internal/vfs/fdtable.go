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

// Package vfs implements the POSIX-flavored syscall surface of spec.md
// §4.10 on top of a single mounted package minix filesystem.
package vfs

import (
	"sync"

	"github.com/libalis/mpstubs-gruppe-05-sub000/internal/errs"
	"github.com/libalis/mpstubs-gruppe-05-sub000/internal/inode"
	"github.com/libalis/mpstubs-gruppe-05-sub000/internal/metrics"
)

// MaxFD is the fixed bitmap size spec.md §4.10 specifies: "fixed-size
// bitmap (1024 bits)".
const MaxFD = 1024

// OpenFile is one process-global open-file-description entry; all
// descriptors are process-global per spec.md §4.10.
type OpenFile struct {
	Inode  *inode.Inode
	Offset uint64
	Flags  int
}

// fdTable is the bitmap-plus-hash descriptor table of spec.md §4.10.
type fdTable struct {
	mu     sync.Mutex
	bitmap [MaxFD / 64]uint64
	files  map[int]*OpenFile
}

func newFDTable() *fdTable {
	return &fdTable{files: make(map[int]*OpenFile)}
}

// alloc reserves the lowest free bit and associates f with it.
func (t *fdTable) alloc(f *OpenFile) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for w := range t.bitmap {
		if t.bitmap[w] == ^uint64(0) {
			continue
		}
		for b := 0; b < 64; b++ {
			if t.bitmap[w]&(1<<uint(b)) == 0 {
				fd := w*64 + b
				t.bitmap[w] |= 1 << uint(b)
				t.files[fd] = f
				metrics.FDTableOccupancy.Set(float64(len(t.files)))
				return fd, nil
			}
		}
	}
	return 0, errs.EMFILE
}

func (t *fdTable) get(fd int) (*OpenFile, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	f, ok := t.files[fd]
	if !ok {
		return nil, errs.EBADF
	}
	return f, nil
}

// release returns fd's bit to the pool.
func (t *fdTable) release(fd int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.files[fd]; !ok {
		return errs.EBADF
	}
	delete(t.files, fd)
	t.bitmap[fd/64] &^= 1 << uint(fd%64)
	metrics.FDTableOccupancy.Set(float64(len(t.files)))
	return nil
}
