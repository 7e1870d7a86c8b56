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

package minix

import (
	"github.com/libalis/mpstubs-gruppe-05-sub000/internal/blockdev"
	"github.com/libalis/mpstubs-gruppe-05-sub000/internal/errs"
)

// bitmap is a bit-indexed allocator backed by a run of pinned blocks
// (spec.md §4.11: "scan zmap bitmaps for the first zero, set it, dirty
// the bitmap block"). Resolution of the §9 open question on bitmap
// atomicity: test-and-set here is documented single-writer -- callers
// must already hold the filesystem's syncutil.InvariantMutex (entered
// via the guarded prologue/epilogue region), so no internal locking is
// done.
type bitmap struct {
	blocks []*blockdev.Block
}

// Alloc finds the first zero bit, sets it, marks its block dirty, and
// returns the bit's index. Bit 0 is reserved unused (matching Minix's
// convention that zone/inode numbering starts at 1), so scanning begins
// at bit 1.
func (bm *bitmap) Alloc() (uint32, error) {
	for blockIdx, b := range bm.blocks {
		data := b.Data
		for byteIdx, by := range data {
			if by == 0xFF {
				continue
			}
			for bit := 0; bit < 8; bit++ {
				globalBit := uint32(blockIdx)*uint32(len(data))*8 + uint32(byteIdx)*8 + uint32(bit)
				if globalBit == 0 {
					continue
				}
				if by&(1<<uint(bit)) == 0 {
					data[byteIdx] |= 1 << uint(bit)
					b.MarkDirty()
					return globalBit, nil
				}
			}
		}
	}
	return 0, errs.ENOSPC
}

// Free clears bit's slot and marks its block dirty.
func (bm *bitmap) Free(bit uint32) {
	bitsPerBlock := uint32(len(bm.blocks[0].Data)) * 8
	blockIdx := bit / bitsPerBlock
	within := bit % bitsPerBlock
	b := bm.blocks[blockIdx]
	b.Data[within/8] &^= 1 << (within % 8)
	b.MarkDirty()
}

// Test reports whether bit is currently set.
func (bm *bitmap) Test(bit uint32) bool {
	bitsPerBlock := uint32(len(bm.blocks[0].Data)) * 8
	blockIdx := bit / bitsPerBlock
	within := bit % bitsPerBlock
	b := bm.blocks[blockIdx]
	return b.Data[within/8]&(1<<(within%8)) != 0
}
