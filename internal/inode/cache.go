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

// Package inode implements the process-wide inode cache of spec.md §4.9:
// a single list shared by every mounted filesystem, soft-capped at
// SoftCap entries and FIFO-evicted on pressure.
package inode

import (
	"sync"
	"time"

	"github.com/libalis/mpstubs-gruppe-05-sub000/internal/errs"
	"github.com/libalis/mpstubs-gruppe-05-sub000/internal/metrics"
)

// SoftCap is the cache's target size; Get tries to evict refcount-0
// entries down to this many before searching (spec.md §4.9).
const SoftCap = 64

// Filesystem is the shape a mounted filesystem presents to the cache:
// it allocates placeholder inodes and tracks how many cache entries
// currently reference it (spec.md §4.9: "filesystem's outstanding
// counter", consulted by umount).
type Filesystem interface {
	Alloc(ino uint32) *Inode
	IncRef()
	DecRef()
}

// Ops are the filesystem-specific operations the cache invokes when an
// entry becomes dirty or is evicted with no remaining links.
type Ops interface {
	// Flush writes a dirty inode back to its filesystem.
	Flush(i *Inode) error
	// Destroy truncates i to zero length, frees its disk inode, and
	// clears its bitmap bit (spec.md §4.11: called when nlinks reaches
	// zero at eviction time).
	Destroy(i *Inode) error
}

// Inode is the in-memory representation shared by every filesystem type;
// filesystem-specific state (e.g. Minix zone pointers) lives behind Ext.
type Inode struct {
	FS     Filesystem
	Number uint32

	Mode   uint16
	NLinks uint16
	UID    uint32
	GID    uint32
	Size   uint64

	Atime, Mtime, Ctime time.Time

	Ext any // filesystem-specific payload, e.g. *minix.Zones

	ops      Ops
	refcount int
	dirty    bool
	isNew    bool
	next     *Inode // cache list link
}

// MarkDirty flags the inode for write-back on flush or eviction.
func (i *Inode) MarkDirty() { i.dirty = true }

// Dirty reports whether the inode has unwritten changes.
func (i *Inode) Dirty() bool { return i.dirty }

// IsNew reports whether Get just allocated this entry; the filesystem
// must populate its fields and call ClearNew before any other thread can
// observe it through the cache.
func (i *Inode) IsNew() bool { return i.isNew }

// ClearNew marks initialization complete.
func (i *Inode) ClearNew() { i.isNew = false }

// RefCount returns the inode's current reference count.
func (i *Inode) RefCount() int { return i.refcount }

// Cache is the global singly-linked list of spec.md §4.9.
type Cache struct {
	mu   sync.Mutex
	head *Inode
	tail *Inode
	size int
}

// New returns an empty cache.
func New() *Cache {
	return &Cache{}
}

// Insert adds inode to the cache. A duplicate (fs, ino) pair is a
// filesystem bug (spec.md §4.9: "reject duplicate (fs, ino) as a
// filesystem bug").
func (c *Cache) Insert(i *Inode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.insertLocked(i)
}

func (c *Cache) insertLocked(i *Inode) {
	for n := c.head; n != nil; n = n.next {
		if n.FS == i.FS && n.Number == i.Number {
			errs.PanicBug("inode.Cache: duplicate entry for ino %d", i.Number)
		}
	}
	if c.tail == nil {
		c.head = i
	} else {
		c.tail.next = i
	}
	c.tail = i
	i.next = nil
	c.size++
	metrics.InodeCacheSize.Set(float64(c.size))
}

// Get returns the cached inode for (fs, ino), allocating and inserting a
// fresh one if it is not already present. Callers must check IsNew: if
// true, the filesystem must populate the inode's fields from disk and
// call ClearNew before releasing it to other callers.
func (c *Cache) Get(fs Filesystem, ino uint32) *Inode {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.evictToCapLocked()

	for n := c.head; n != nil; n = n.next {
		if n.FS == fs && n.Number == ino {
			n.refcount++
			fs.IncRef()
			return n
		}
	}

	i := fs.Alloc(ino)
	i.FS = fs
	i.Number = ino
	i.isNew = true
	i.refcount = 1
	c.insertLocked(i)
	fs.IncRef()
	return i
}

// Put releases one reference to i, decrementing both the inode's own
// refcount and its filesystem's outstanding counter (spec.md §4.9).
func (c *Cache) Put(i *Inode) {
	c.mu.Lock()
	if i.refcount > 0 {
		i.refcount--
	}
	c.mu.Unlock()
	i.FS.DecRef()
}

// evictToCapLocked evicts refcount-0 entries, oldest first, until the
// cache is at or below SoftCap or no further entry qualifies. Caller
// holds c.mu.
func (c *Cache) evictToCapLocked() {
	var prev *Inode
	n := c.head
	for n != nil && c.size > SoftCap {
		next := n.next
		if n.refcount == 0 {
			c.evictNodeLocked(prev, n)
			n = next
			continue
		}
		prev = n
		n = next
	}
}

// evictNodeLocked unlinks n (whose predecessor is prev, possibly nil)
// from the list, running its destroy-or-flush obligation first. n must
// have refcount 0; evicting a pinned entry is a programmer bug (spec.md
// §9's open question on eviction under live reference).
func (c *Cache) evictNodeLocked(prev, n *Inode) {
	if n.refcount != 0 {
		errs.PanicBug("inode.Cache: evict called on pinned inode %d", n.Number)
	}
	if n.NLinks == 0 {
		if n.ops != nil {
			n.ops.Destroy(n)
		}
	} else if n.dirty {
		if n.ops != nil {
			n.ops.Flush(n)
		}
	}

	if prev == nil {
		c.head = n.next
	} else {
		prev.next = n.next
	}
	if c.tail == n {
		c.tail = prev
	}
	c.size--
	metrics.InodeCacheSize.Set(float64(c.size))
}

// SyncFSInodes flushes or evicts every cache entry belonging to fs: a
// dead (refcount 0, nlinks 0) entry is evicted; a live dirty entry is
// flushed in place (spec.md §4.9).
func (c *Cache) SyncFSInodes(fs Filesystem) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var prev *Inode
	n := c.head
	for n != nil {
		next := n.next
		if n.FS != fs {
			prev = n
			n = next
			continue
		}
		if n.refcount == 0 && n.NLinks == 0 {
			c.evictNodeLocked(prev, n)
			n = next
			continue
		}
		if n.dirty && n.ops != nil {
			n.ops.Flush(n)
		}
		prev = n
		n = next
	}
}

// RemoveFSInodes unconditionally evicts every cache entry belonging to
// fs, for umount (spec.md §4.9). A dirty entry is flushed first; unlike
// the cap-pressure and SyncFSInodes paths, entries with surviving links
// are never destroyed here -- umount drops the filesystem from the
// cache, it does not delete files still reachable on disk.
func (c *Cache) RemoveFSInodes(fs Filesystem) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var prev *Inode
	n := c.head
	for n != nil {
		next := n.next
		if n.FS != fs {
			prev = n
			n = next
			continue
		}
		if n.refcount != 0 {
			errs.PanicBug("inode.Cache: RemoveFSInodes on pinned inode %d", n.Number)
		}
		if n.dirty && n.ops != nil {
			n.ops.Flush(n)
		}
		if prev == nil {
			c.head = n.next
		} else {
			prev.next = n.next
		}
		if c.tail == n {
			c.tail = prev
		}
		c.size--
		n = next
	}
	metrics.InodeCacheSize.Set(float64(c.size))
}

// SetOps installs the filesystem-specific flush/destroy behavior for i;
// called by the owning filesystem's Alloc implementation.
func (i *Inode) SetOps(ops Ops) { i.ops = ops }

// Len returns the number of entries currently cached, for tests.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}
