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

// Package blockdev implements the fix/unfix block abstraction of
// spec.md §4.8: every device (RAM disk, simulated ATA drive, or a regular
// host file) is reached through the same Device interface, handing back
// short-lived Block handles.
package blockdev

import "github.com/libalis/mpstubs-gruppe-05-sub000/internal/errs"

// AllowedBlockSizes enumerates the block sizes spec.md's Data Model
// permits.
var AllowedBlockSizes = [...]int{512, 1024, 2048, 4096}

// Block is the short-lived ownership handle spec.md's Data Model
// describes: a fixed-size buffer identified by (device, block number),
// with a dirty flag and an error field. Data is nil on error.
type Block struct {
	Device      Device
	BlockNumber uint32
	Data        []byte
	dirty       bool
	err         error
}

// MarkDirty flags the block as modified; Unfix/Sync will write it back.
func (b *Block) MarkDirty() { b.dirty = true }

// Dirty reports whether the block has unwritten modifications.
func (b *Block) Dirty() bool { return b.dirty }

// Err returns the error recorded against this block, if any (spec.md §4.8:
// "Errors are carried back on the Block's error field with data null").
func (b *Block) Err() error { return b.err }

// Device is the block device interface spec.md §4.8 specifies.
type Device interface {
	// Fix acquires a handle on blockNumber.
	Fix(blockNumber uint32) *Block

	// Unfix releases a handle, writing it back first if dirty.
	Unfix(b *Block)

	// Sync flushes what the device itself buffers (the host file for
	// FileDevice; nothing for RamDisk and AtaDisk). It does not write back
	// blocks that are still fixed; SyncOne writes back one such block.
	Sync()
	SyncOne(b *Block)

	// SetBlockSize installs the device's block size; n must be one of
	// AllowedBlockSizes.
	SetBlockSize(n int) error

	// BlockSize returns the device's current block size.
	BlockSize() int

	// BlockCount returns the number of addressable blocks.
	BlockCount() uint32
}

// ValidBlockSize reports whether n is one of the sizes spec.md permits.
func ValidBlockSize(n int) bool {
	for _, v := range AllowedBlockSizes {
		if v == n {
			return true
		}
	}
	return false
}

func log2(n int) uint {
	var shift uint
	for (1 << shift) < n {
		shift++
	}
	return shift
}

// checkBlockSize validates n and returns errs.EINVAL if it is not allowed.
func checkBlockSize(n int) error {
	if !ValidBlockSize(n) {
		return errs.EINVAL
	}
	return nil
}
