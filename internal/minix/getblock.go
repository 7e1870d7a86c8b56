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
	"encoding/binary"

	"github.com/libalis/mpstubs-gruppe-05-sub000/internal/errs"
	"github.com/libalis/mpstubs-gruppe-05-sub000/internal/inode"
)

// AllocZone reserves a free zone, translating the zmap bit index into a
// zone number per spec.md §4.11 ("the returned zone number is
// i*bits_per_zone + j + first_data_zone - 1").
func (fs *Filesystem) AllocZone() (uint32, error) {
	bit, err := fs.zmap.Alloc()
	if err != nil {
		return 0, err
	}
	return bit + uint32(fs.sb.FirstDataZone) - 1, nil
}

// FreeZone releases zone back to the zmap.
func (fs *Filesystem) FreeZone(zone uint32) {
	fs.zmap.Free(zone - uint32(fs.sb.FirstDataZone) + 1)
}

func (fs *Filesystem) ptrsPerBlock() uint32 {
	return uint32(fs.sb.BlockSize) / 4
}

// readZonePtr reads the logical'th uint32 pointer out of the zone-pointer
// block at physical address blockZone.
func (fs *Filesystem) readZonePtr(blockZone uint32, index uint32) (uint32, error) {
	b := fs.dev.Fix(blockZone)
	defer fs.dev.Unfix(b)
	if err := b.Err(); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b.Data[index*4:]), nil
}

func (fs *Filesystem) writeZonePtr(blockZone uint32, index uint32, value uint32) error {
	b := fs.dev.Fix(blockZone)
	defer fs.dev.Unfix(b)
	if err := b.Err(); err != nil {
		return err
	}
	cur := binary.LittleEndian.Uint32(b.Data[index*4:])
	if cur != 0 {
		// Another walk already spliced a zone into this slot: the whole
		// logical-to-physical walk is restartable with EAGAIN (spec.md
		// §4.11), so GetBlock re-enters the walk from the top rather
		// than clobbering the winner's allocation.
		return errs.EAGAIN
	}
	binary.LittleEndian.PutUint32(b.Data[index*4:], value)
	b.MarkDirty()
	return nil
}

// fetchOrCreate resolves one level of indirection: reads zones[slot]; if
// zero and create is requested, allocates a fresh zone and splices it in,
// verifying the slot is still zero first.
func (fs *Filesystem) fetchOrCreate(zones *Zones, slot int, create bool) (uint32, error) {
	z := zones.Z[slot]
	if z != 0 || !create {
		return z, nil
	}
	nz, err := fs.AllocZone()
	if err != nil {
		return 0, err
	}
	if zones.Z[slot] != 0 {
		fs.FreeZone(nz)
		return 0, errs.EAGAIN
	}
	zones.Z[slot] = nz
	return nz, nil
}

// fetchOrCreateIndirect resolves one hop through an on-disk indirect
// block, following the same zero-check-then-splice discipline as
// fetchOrCreate but against a pointer block rather than the inode's own
// zone array.
func (fs *Filesystem) fetchOrCreateIndirect(blockZone uint32, index uint32, create bool) (uint32, error) {
	cur, err := fs.readZonePtr(blockZone, index)
	if err != nil {
		return 0, err
	}
	if cur != 0 || !create {
		return cur, nil
	}
	nz, err := fs.AllocZone()
	if err != nil {
		return 0, err
	}
	if err := fs.writeZonePtr(blockZone, index, nz); err != nil {
		fs.FreeZone(nz)
		return 0, err
	}
	return nz, nil
}

// GetBlock implements spec.md §4.11's get_block(inode, logical, create):
// a depth 1..4 chain (7 direct zones, then single/double/triple
// indirect). When a concurrent walk wins a race to splice the same slot,
// the losing step reports EAGAIN and GetBlock re-enters the walk from the
// top.
func (fs *Filesystem) GetBlock(i *inode.Inode, logical uint32, create bool) (uint32, error) {
	for {
		phys, err := fs.getBlockOnce(i, logical, create)
		if !errs.Is(err, errs.EAGAIN) {
			return phys, err
		}
	}
}

// getBlockOnce is a single pass of GetBlock's walk.
func (fs *Filesystem) getBlockOnce(i *inode.Inode, logical uint32, create bool) (uint32, error) {
	zones := i.Ext.(*Zones)
	ppb := fs.ptrsPerBlock()

	if logical < DirectZones {
		z, err := fs.fetchOrCreate(zones, int(logical), create)
		if z != 0 {
			i.MarkDirty()
		}
		return z, err
	}
	logical -= DirectZones

	if logical < ppb {
		return fs.walkIndirect(zones, SingleIndirect, []uint32{logical}, create, i)
	}
	logical -= ppb

	if logical < ppb*ppb {
		return fs.walkIndirect(zones, DoubleIndirect, []uint32{logical / ppb, logical % ppb}, create, i)
	}
	logical -= ppb * ppb

	if logical < ppb*ppb*ppb {
		return fs.walkIndirect(zones, TripleIndirect, []uint32{
			logical / (ppb * ppb),
			(logical / ppb) % ppb,
			logical % ppb,
		}, create, i)
	}

	return 0, errs.EFAULT // logical block number exceeds the triple-indirect range
}

// walkIndirect resolves the root indirect zone (allocating it from the
// inode if necessary) then follows indices through successive on-disk
// pointer blocks.
func (fs *Filesystem) walkIndirect(zones *Zones, rootSlot int, indices []uint32, create bool, i *inode.Inode) (uint32, error) {
	root, err := fs.fetchOrCreate(zones, rootSlot, create)
	if err != nil {
		return 0, err
	}
	if root == 0 {
		return 0, nil // sparse hole, not creating
	}
	if zones.Z[rootSlot] == root {
		i.MarkDirty()
	}

	cur := root
	for n, idx := range indices {
		last := n == len(indices)-1
		next, err := fs.fetchOrCreateIndirect(cur, idx, create)
		if err != nil {
			return 0, err
		}
		if next == 0 {
			return 0, nil
		}
		if last {
			return next, nil
		}
		cur = next
	}
	return 0, errs.EFAULT
}
