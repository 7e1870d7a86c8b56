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

import "encoding/binary"

// Mode bits, the POSIX subset spec.md's VFS operations need.
const (
	ModeFmt     uint16 = 0170000
	ModeDir     uint16 = 0040000
	ModeRegular uint16 = 0100000
	ModeSymlink uint16 = 0120000
	ModePerm    uint16 = 0007777
)

// NumZones is the number of zone slots in a disk inode: 7 direct, one
// single-, one double- and one triple-indirect (spec.md §4.11).
const NumZones = 10

const (
	DirectZones    = 7
	SingleIndirect = 7
	DoubleIndirect = 8
	TripleIndirect = 9
)

// DiskInodeSize is the packed on-disk size of one inode record.
const DiskInodeSize = 64

// DiskInode is the on-disk inode record.
type DiskInode struct {
	Mode   uint16
	NLinks uint16
	UID    uint16
	GID    uint16
	Size   uint32
	Atime  uint32
	Mtime  uint32
	Ctime  uint32
	Zones  [NumZones]uint32
}

func (d *DiskInode) marshal(buf []byte) {
	binary.LittleEndian.PutUint16(buf[0:], d.Mode)
	binary.LittleEndian.PutUint16(buf[2:], d.NLinks)
	binary.LittleEndian.PutUint16(buf[4:], d.UID)
	binary.LittleEndian.PutUint16(buf[6:], d.GID)
	binary.LittleEndian.PutUint32(buf[8:], d.Size)
	binary.LittleEndian.PutUint32(buf[12:], d.Atime)
	binary.LittleEndian.PutUint32(buf[16:], d.Mtime)
	binary.LittleEndian.PutUint32(buf[20:], d.Ctime)
	for i, z := range d.Zones {
		binary.LittleEndian.PutUint32(buf[24+i*4:], z)
	}
}

func unmarshalDiskInode(buf []byte) *DiskInode {
	d := &DiskInode{
		Mode:   binary.LittleEndian.Uint16(buf[0:]),
		NLinks: binary.LittleEndian.Uint16(buf[2:]),
		UID:    binary.LittleEndian.Uint16(buf[4:]),
		GID:    binary.LittleEndian.Uint16(buf[6:]),
		Size:   binary.LittleEndian.Uint32(buf[8:]),
		Atime:  binary.LittleEndian.Uint32(buf[12:]),
		Mtime:  binary.LittleEndian.Uint32(buf[16:]),
		Ctime:  binary.LittleEndian.Uint32(buf[20:]),
	}
	for i := range d.Zones {
		d.Zones[i] = binary.LittleEndian.Uint32(buf[24+i*4:])
	}
	return d
}
