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
	"sync"
	"time"

	"github.com/jacobsa/syncutil"

	"github.com/libalis/mpstubs-gruppe-05-sub000/internal/blockdev"
	"github.com/libalis/mpstubs-gruppe-05-sub000/internal/errs"
	"github.com/libalis/mpstubs-gruppe-05-sub000/internal/inode"
)

// RootIno is the fixed inode number of the filesystem root (spec.md
// §4.11: "Read the root inode (number 1)").
const RootIno = 1

// Zones is the Minix-specific payload an *inode.Inode carries in its Ext
// field: the 10 zone pointers of its on-disk record.
type Zones struct {
	Z [NumZones]uint32
}

// Filesystem is one mounted Minix v3 volume (spec.md §4.11). Only one
// mount is supported process-wide, per spec.md's Non-goals ("multi-mount"
// excluded).
type Filesystem struct {
	dev   blockdev.Device
	cache *inode.Cache

	mu syncutil.InvariantMutex // guards sb, imap, zmap, outstanding

	sbBlock *blockdev.Block
	sb      *Superblock

	imapBlocks []*blockdev.Block
	zmapBlocks []*blockdev.Block
	imap       *bitmap
	zmap       *bitmap

	outstanding int // cache.Filesystem's "num_inode_references" (spec.md §4.9)

	rootOnce sync.Once
	root     *inode.Inode
}

func (fs *Filesystem) checkInvariants() {
	if fs.outstanding < 0 {
		errs.PanicBug("minix: negative outstanding inode reference count")
	}
}

// Mount reads the superblock off dev, pins the imap/zmap bitmap blocks
// for the filesystem's lifetime, and fetches the root inode (spec.md
// §4.11: "On mount, set blocksize to the value in the superblock,
// fix-pin the superblock plus all imap and zmap blocks ... Read the root
// inode").
func Mount(dev blockdev.Device, cache *inode.Cache) (*Filesystem, error) {
	// The superblock's own blocksize field is unknown until read, so fix
	// it at the device's current (default) blocksize first.
	sbBlock := dev.Fix(1)
	if err := sbBlock.Err(); err != nil {
		return nil, err
	}
	sb, err := unmarshalSuperblock(sbBlock.Data)
	if err != nil {
		dev.Unfix(sbBlock)
		return nil, err
	}

	if err := dev.SetBlockSize(int(sb.BlockSize)); err != nil {
		dev.Unfix(sbBlock)
		return nil, err
	}

	fs := &Filesystem{dev: dev, cache: cache, sbBlock: sbBlock, sb: sb}
	fs.mu = syncutil.NewInvariantMutex(fs.checkInvariants)

	fs.imapBlocks = make([]*blockdev.Block, sb.ImapBlocks)
	for i := range fs.imapBlocks {
		fs.imapBlocks[i] = dev.Fix(uint32(2 + i))
	}
	fs.imap = &bitmap{blocks: fs.imapBlocks}

	fs.zmapBlocks = make([]*blockdev.Block, sb.ZmapBlocks)
	for i := range fs.zmapBlocks {
		fs.zmapBlocks[i] = dev.Fix(uint32(2) + uint32(sb.ImapBlocks) + uint32(i))
	}
	fs.zmap = &bitmap{blocks: fs.zmapBlocks}

	root := cache.Get(fs, RootIno)
	if root.IsNew() {
		if err := fs.loadInode(root); err != nil {
			return nil, err
		}
	}
	fs.root = root
	fs.outstanding = 1

	return fs, nil
}

// Root returns the filesystem's root inode, already referenced once on
// its behalf (released by Unmount).
func (fs *Filesystem) Root() *inode.Inode { return fs.root }

// Unmount releases Mount's own root reference and refuses with EBUSY if
// any other inode reference is still outstanding (VFS.Umount drops its
// cwd reference before calling this; spec.md §4.9/§4.10), otherwise syncs
// and evicts every cached inode belonging to fs and unpins its
// bitmap/superblock blocks.
func (fs *Filesystem) Unmount() error {
	fs.cache.Put(fs.root) // release Mount's own root reference
	if fs.outstanding > 0 {
		fs.cache.Get(fs, RootIno) // undo: still mounted, caller must retry
		return errs.EBUSY
	}

	fs.cache.SyncFSInodes(fs)
	fs.cache.RemoveFSInodes(fs)

	for _, b := range fs.zmapBlocks {
		fs.dev.Unfix(b)
	}
	for _, b := range fs.imapBlocks {
		fs.dev.Unfix(b)
	}
	fs.dev.Unfix(fs.sbBlock)
	return nil
}

// IncRef/DecRef implement inode.Filesystem: they track the filesystem's
// outstanding reference counter, consulted by Unmount.
func (fs *Filesystem) IncRef() { fs.outstanding++ }
func (fs *Filesystem) DecRef() { fs.outstanding-- }

// NumInodeReferences exposes the outstanding counter for the §8 round-trip
// law ("filesystem.num_inode_references == 0 after umount succeeds").
func (fs *Filesystem) NumInodeReferences() int { return fs.outstanding }

// Alloc implements inode.Filesystem: returns a bare placeholder, to be
// populated by loadInode (existing disk inode) or initialized fresh
// (newly created inode) by the caller.
func (fs *Filesystem) Alloc(ino uint32) *inode.Inode {
	i := &inode.Inode{}
	i.Ext = &Zones{}
	i.SetOps(fs)
	return i
}

// LoadInode populates a freshly cache-allocated placeholder from its disk
// record; callers must check inode.Inode.IsNew and call this before using
// any entry the cache handed back.
func (fs *Filesystem) LoadInode(i *inode.Inode) error {
	return fs.loadInode(i)
}

// loadInode reads ino's disk record into i and clears its New flag.
func (fs *Filesystem) loadInode(i *inode.Inode) error {
	d, err := fs.readDiskInode(i.Number)
	if err != nil {
		return err
	}
	applyDiskInode(i, d)
	i.ClearNew()
	return nil
}

func applyDiskInode(i *inode.Inode, d *DiskInode) {
	i.Mode = d.Mode
	i.NLinks = d.NLinks
	i.UID = uint32(d.UID)
	i.GID = uint32(d.GID)
	i.Size = uint64(d.Size)
	i.Atime = time.Unix(int64(d.Atime), 0)
	i.Mtime = time.Unix(int64(d.Mtime), 0)
	i.Ctime = time.Unix(int64(d.Ctime), 0)
	i.Ext.(*Zones).Z = d.Zones
}

func toDiskInode(i *inode.Inode) *DiskInode {
	z := i.Ext.(*Zones)
	return &DiskInode{
		Mode:   i.Mode,
		NLinks: i.NLinks,
		UID:    uint16(i.UID),
		GID:    uint16(i.GID),
		Size:   uint32(i.Size),
		Atime:  uint32(i.Atime.Unix()),
		Mtime:  uint32(i.Mtime.Unix()),
		Ctime:  uint32(i.Ctime.Unix()),
		Zones:  z.Z,
	}
}

func (fs *Filesystem) readDiskInode(ino uint32) (*DiskInode, error) {
	blockNo, offset := fs.sb.InodeBlockOffset(ino)
	b := fs.dev.Fix(blockNo)
	defer fs.dev.Unfix(b)
	if err := b.Err(); err != nil {
		return nil, err
	}
	start := offset * DiskInodeSize
	return unmarshalDiskInode(b.Data[start : start+DiskInodeSize]), nil
}

func (fs *Filesystem) writeDiskInode(ino uint32, d *DiskInode) error {
	blockNo, offset := fs.sb.InodeBlockOffset(ino)
	b := fs.dev.Fix(blockNo)
	defer fs.dev.Unfix(b)
	if err := b.Err(); err != nil {
		return err
	}
	start := offset * DiskInodeSize
	d.marshal(b.Data[start : start+DiskInodeSize])
	b.MarkDirty()
	return nil
}

// Flush implements inode.Ops: writes a dirty inode's in-memory fields
// back to its disk record.
func (fs *Filesystem) Flush(i *inode.Inode) error {
	if err := fs.writeDiskInode(i.Number, toDiskInode(i)); err != nil {
		return err
	}
	return nil
}

// Destroy implements inode.Ops: truncates to zero, frees the disk inode
// and clears its bitmap bit (spec.md §4.11: "Destruction of an inode
// with nlinks == 0 calls truncate(0) then frees the disk inode and
// clears the bitmap bit").
func (fs *Filesystem) Destroy(i *inode.Inode) error {
	if err := fs.Truncate(i, 0); err != nil {
		return err
	}
	fs.imap.Free(i.Number)
	return nil
}

// AllocInode reserves a free inode number from the imap.
func (fs *Filesystem) AllocInode() (uint32, error) {
	return fs.imap.Alloc()
}

// Sync flushes every dirty inode and the pinned bitmap/superblock blocks.
func (fs *Filesystem) Sync() {
	fs.cache.SyncFSInodes(fs)
	fs.dev.SyncOne(fs.sbBlock)
	for _, b := range fs.imapBlocks {
		fs.dev.SyncOne(b)
	}
	for _, b := range fs.zmapBlocks {
		fs.dev.SyncOne(b)
	}
	fs.dev.Sync()
}
