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

	"github.com/libalis/mpstubs-gruppe-05-sub000/internal/inode"
)

// slotRanges describes the logical-block range each of the 10
// zone slots covers: the 7 direct slots each cover exactly one block at
// depth 0; slot 7/8/9 are the single/double/triple indirect roots,
// covering ppb/ppb²/ppb³ blocks at depth 1/2/3 respectively.
func (fs *Filesystem) slotRanges() (start [NumZones]uint64, capacity [NumZones]uint64, depth [NumZones]int) {
	ppb := uint64(fs.ptrsPerBlock())
	for s := 0; s < DirectZones; s++ {
		start[s] = uint64(s)
		capacity[s] = 1
		depth[s] = 0
	}
	start[SingleIndirect] = DirectZones
	capacity[SingleIndirect] = ppb
	depth[SingleIndirect] = 1

	start[DoubleIndirect] = start[SingleIndirect] + capacity[SingleIndirect]
	capacity[DoubleIndirect] = ppb * ppb
	depth[DoubleIndirect] = 2

	start[TripleIndirect] = start[DoubleIndirect] + capacity[DoubleIndirect]
	capacity[TripleIndirect] = ppb * ppb * ppb
	depth[TripleIndirect] = 3
	return
}

// freeSubtree frees zone and, if depth > 0 (zone is an indirect pointer
// block rather than a data block), every non-nil child beneath it.
func (fs *Filesystem) freeSubtree(zone uint32, depth int) {
	if zone == 0 {
		return
	}
	if depth == 0 {
		fs.FreeZone(zone)
		return
	}
	ppb := fs.ptrsPerBlock()
	b := fs.dev.Fix(zone)
	for idx := uint32(0); idx < ppb; idx++ {
		child := binary.LittleEndian.Uint32(b.Data[idx*4:])
		if child != 0 {
			fs.freeSubtree(child, depth-1)
		}
	}
	fs.dev.Unfix(b)
	fs.FreeZone(zone)
}

// partialFreeSubtree is free_branches for a node that is only partly
// discarded: cut is the logical index, relative to this subtree's own
// numbering, at which retention stops. Entries before cut survive
// untouched; the entry straddling cut (if any) is kept but recursed
// into; everything after is freed outright. zone itself, having
// surviving children, is never freed here -- this is the "highest shared
// ancestor between the retained and the removed region" spec.md §4.11
// names.
func (fs *Filesystem) partialFreeSubtree(zone uint32, depth int, cut uint64) {
	if zone == 0 || depth == 0 {
		return
	}
	ppb := uint64(fs.ptrsPerBlock())
	childCapacity := uint64(1)
	for d := 1; d < depth; d++ {
		childCapacity *= ppb
	}
	childIdx := cut / childCapacity
	within := cut % childCapacity

	b := fs.dev.Fix(zone)
	for idx := childIdx; idx < ppb; idx++ {
		off := idx * 4
		child := binary.LittleEndian.Uint32(b.Data[off:])
		if child == 0 {
			continue
		}
		if idx == childIdx && within != 0 {
			fs.partialFreeSubtree(child, depth-1, within)
			continue // child retained, boundary recursion keeps it
		}
		fs.freeSubtree(child, depth-1)
		binary.LittleEndian.PutUint32(b.Data[off:], 0)
	}
	b.MarkDirty()
	fs.dev.Unfix(b)
}

func ceilDivBlocks(size uint64, blockSize uint64) uint64 {
	if blockSize == 0 {
		return 0
	}
	return (size + blockSize - 1) / blockSize
}

// Truncate frees every block beyond newSize and resizes i (spec.md
// §4.11); growing is handled purely at the VFS layer (auto-extend with
// a zero-filled hole), so Truncate only ever releases storage here.
func (fs *Filesystem) Truncate(i *inode.Inode, newSize uint64) error {
	if newSize >= i.Size {
		i.Size = newSize
		i.MarkDirty()
		return nil
	}

	zones := i.Ext.(*Zones)
	newBlocks := ceilDivBlocks(newSize, uint64(fs.sb.BlockSize))
	start, capacity, depth := fs.slotRanges()

	for s := NumZones - 1; s >= 0; s-- {
		if zones.Z[s] == 0 {
			continue
		}
		switch {
		case newBlocks <= start[s]:
			fs.freeSubtree(zones.Z[s], depth[s])
			zones.Z[s] = 0
		case newBlocks < start[s]+capacity[s] && depth[s] > 0:
			fs.partialFreeSubtree(zones.Z[s], depth[s], newBlocks-start[s])
		}
	}

	i.Size = newSize
	i.MarkDirty()
	return nil
}
