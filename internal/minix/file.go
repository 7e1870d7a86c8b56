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
	"github.com/libalis/mpstubs-gruppe-05-sub000/internal/errs"
	"github.com/libalis/mpstubs-gruppe-05-sub000/internal/inode"
)

// ReadAt reads len(buf) bytes of i's data starting at off, clipped to
// i.Size (spec.md §4.10: "read auto-clips at inode size").
func (fs *Filesystem) ReadAt(i *inode.Inode, buf []byte, off uint64) (int, error) {
	if off >= i.Size {
		return 0, nil
	}
	if uint64(len(buf)) > i.Size-off {
		buf = buf[:i.Size-off]
	}

	bs := uint64(fs.sb.BlockSize)
	n := 0
	for n < len(buf) {
		pos := off + uint64(n)
		logical := uint32(pos / bs)
		within := pos % bs

		phys, err := fs.GetBlock(i, logical, false)
		if err != nil {
			return n, err
		}
		chunk := int(bs - within)
		if rem := len(buf) - n; chunk > rem {
			chunk = rem
		}
		if phys == 0 {
			// sparse hole: reads as zero
			for k := 0; k < chunk; k++ {
				buf[n+k] = 0
			}
		} else {
			b := fs.dev.Fix(phys)
			if err := b.Err(); err != nil {
				fs.dev.Unfix(b)
				return n, err
			}
			copy(buf[n:n+chunk], b.Data[within:within+uint64(chunk)])
			fs.dev.Unfix(b)
		}
		n += chunk
	}
	return n, nil
}

// WriteAt writes buf at off, allocating blocks (and a zero-filled hole
// from i.Size to off, if off > i.Size) as needed; the inode's size is
// extended only after every block has been written successfully
// (spec.md §4.10).
func (fs *Filesystem) WriteAt(i *inode.Inode, buf []byte, off uint64) (int, error) {
	bs := uint64(fs.sb.BlockSize)
	n := 0
	for n < len(buf) {
		pos := off + uint64(n)
		logical := uint32(pos / bs)
		within := pos % bs

		phys, err := fs.GetBlock(i, logical, true)
		if err != nil {
			return n, err
		}
		if phys == 0 {
			return n, errs.ENOSPC
		}
		chunk := int(bs - within)
		if rem := len(buf) - n; chunk > rem {
			chunk = rem
		}

		b := fs.dev.Fix(phys)
		if err := b.Err(); err != nil {
			fs.dev.Unfix(b)
			return n, err
		}
		copy(b.Data[within:within+uint64(chunk)], buf[n:n+chunk])
		b.MarkDirty()
		fs.dev.Unfix(b)
		n += chunk
	}

	if end := off + uint64(n); end > i.Size {
		i.Size = end
	}
	i.MarkDirty()
	return n, nil
}

// CreateInode allocates a fresh inode of the given mode/perm with no
// links; the caller's Link into a directory gives it its first one.
func (fs *Filesystem) CreateInode(mode uint16, perm uint16) (*inode.Inode, error) {
	ino, err := fs.AllocInode()
	if err != nil {
		return nil, err
	}
	i := fs.cache.Get(fs, ino)
	if !i.IsNew() {
		errs.PanicBug("minix: freshly allocated inode %d already cached", ino)
	}
	i.Number = ino
	i.Mode = (mode & ModeFmt) | (perm & ModePerm)
	i.NLinks = 0
	i.MarkDirty()
	i.ClearNew()
	return i, nil
}

// Link adds name -> target.Number in dir and bumps target's link count
// (spec.md §4.10: link refuses directories with EPERM, enforced by the
// VFS layer before calling this).
func (fs *Filesystem) Link(dir *inode.Inode, name string, target *inode.Inode) error {
	if err := fs.AddLink(dir, name, target.Number); err != nil {
		return err
	}
	target.NLinks++
	target.MarkDirty()
	return nil
}

// Unlink removes name from dir and drops target's link count by one.
func (fs *Filesystem) Unlink(dir *inode.Inode, name string, target *inode.Inode) error {
	if err := fs.DeleteEntry(dir, name); err != nil {
		return err
	}
	if target.NLinks > 0 {
		target.NLinks--
	}
	target.MarkDirty()
	return nil
}
