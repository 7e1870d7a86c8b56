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

// Package minix implements the on-disk filesystem of spec.md §4.11: a
// Minix v3 layout of superblock, inode/zone bitmaps, disk inodes and
// packed directory entries, riding on top of package blockdev.
package minix

import (
	"encoding/binary"

	"github.com/libalis/mpstubs-gruppe-05-sub000/internal/errs"
)

// Magic is the fixed 16-bit little-endian superblock signature spec.md §6
// requires.
const Magic uint16 = 0x4D5A

// SuperblockSize is the on-disk size of the fixed layout. The superblock
// sits at the start of block 1, whatever the blocksize.
const SuperblockSize = 64

// Superblock is the fixed 16-bit little-endian layout of spec.md §6.
type Superblock struct {
	NInodes       uint32
	ImapBlocks    uint16
	ZmapBlocks    uint16
	FirstDataZone uint16
	LogZoneSize   uint16
	MaxSize       uint32
	Zones         uint32
	Magic         uint16
	BlockSize     uint16
}

// InodesPerBlock returns how many packed disk inodes fit in one block.
func (s *Superblock) InodesPerBlock() uint32 {
	return uint32(s.BlockSize) / DiskInodeSize
}

// FirstInodeBlock is the block number of the first disk-inode block,
// following the boot block, superblock and the imap/zmap bitmaps
// (spec.md §4.11: "blockno = 2 + imap_blocks + zmap_blocks + ...").
func (s *Superblock) FirstInodeBlock() uint32 {
	return 2 + uint32(s.ImapBlocks) + uint32(s.ZmapBlocks)
}

// InodeBlockOffset returns the (block, offset-within-block) location of
// inode number ino on disk.
func (s *Superblock) InodeBlockOffset(ino uint32) (block uint32, offset uint32) {
	ipb := s.InodesPerBlock()
	block = s.FirstInodeBlock() + (ino-1)/ipb
	offset = (ino - 1) % ipb
	return
}

func (s *Superblock) marshal() []byte {
	buf := make([]byte, SuperblockSize)
	binary.LittleEndian.PutUint32(buf[0:], s.NInodes)
	binary.LittleEndian.PutUint16(buf[4:], s.ImapBlocks)
	binary.LittleEndian.PutUint16(buf[6:], s.ZmapBlocks)
	binary.LittleEndian.PutUint16(buf[8:], s.FirstDataZone)
	binary.LittleEndian.PutUint16(buf[10:], s.LogZoneSize)
	binary.LittleEndian.PutUint32(buf[12:], s.MaxSize)
	binary.LittleEndian.PutUint32(buf[16:], s.Zones)
	binary.LittleEndian.PutUint16(buf[20:], s.Magic)
	binary.LittleEndian.PutUint16(buf[22:], s.BlockSize)
	return buf
}

func unmarshalSuperblock(buf []byte) (*Superblock, error) {
	if len(buf) < 24 {
		return nil, errs.EIO
	}
	s := &Superblock{
		NInodes:       binary.LittleEndian.Uint32(buf[0:]),
		ImapBlocks:    binary.LittleEndian.Uint16(buf[4:]),
		ZmapBlocks:    binary.LittleEndian.Uint16(buf[6:]),
		FirstDataZone: binary.LittleEndian.Uint16(buf[8:]),
		LogZoneSize:   binary.LittleEndian.Uint16(buf[10:]),
		MaxSize:       binary.LittleEndian.Uint32(buf[12:]),
		Zones:         binary.LittleEndian.Uint32(buf[16:]),
		Magic:         binary.LittleEndian.Uint16(buf[20:]),
		BlockSize:     binary.LittleEndian.Uint16(buf[22:]),
	}
	if s.Magic != Magic {
		return nil, errs.EIO
	}
	return s, nil
}
