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

import "github.com/libalis/mpstubs-gruppe-05-sub000/internal/blockdev"

// FormatForTesting hand-writes the smallest on-disk layout Mount accepts
// onto dev: a superblock, one imap/zmap block each, and a bare, linkless
// root directory disk inode (ino 1) with its own imap bit already marked.
// It does not add the root's "." and ".." entries -- callers Mount the
// result and add those through the real AddLink, the same way a freshly
// laid-down volume grows rather than arriving pre-seeded with bytes for
// everything. There being no off-line image-formatting tool in this
// repository (spec.md's Non-goals exclude it), this is also the only way
// any test -- in this package or another -- gets a mountable volume.
func FormatForTesting(dev blockdev.Device, blockSize int, nInodes uint32) (*Superblock, error) {
	if err := dev.SetBlockSize(blockSize); err != nil {
		return nil, err
	}

	inodesPerBlock := uint32(blockSize) / DiskInodeSize
	inodeBlocks := (nInodes + inodesPerBlock - 1) / inodesPerBlock
	firstDataZone := 2 + 1 + 1 + inodeBlocks
	totalBlocks := dev.BlockCount()

	sb := &Superblock{
		NInodes:       nInodes,
		ImapBlocks:    1,
		ZmapBlocks:    1,
		FirstDataZone: uint16(firstDataZone),
		MaxSize:       1 << 24,
		Zones:         totalBlocks - firstDataZone,
		Magic:         Magic,
		BlockSize:     uint16(blockSize),
	}
	sbBlock := dev.Fix(1)
	if err := sbBlock.Err(); err != nil {
		return nil, err
	}
	copy(sbBlock.Data, sb.marshal())
	dev.Unfix(sbBlock)

	imapBlock := dev.Fix(2)
	imapBlock.Data[0] = 0x02 // bit 1: ino 1 (root) already allocated
	dev.Unfix(imapBlock)

	root := &DiskInode{Mode: ModeDir | 0755, NLinks: 2}
	rootBlock := dev.Fix(sb.FirstInodeBlock())
	root.marshal(rootBlock.Data[:DiskInodeSize])
	dev.Unfix(rootBlock)

	return sb, nil
}
