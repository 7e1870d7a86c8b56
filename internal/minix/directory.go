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
	"bytes"
	"encoding/binary"

	"github.com/libalis/mpstubs-gruppe-05-sub000/internal/errs"
	"github.com/libalis/mpstubs-gruppe-05-sub000/internal/inode"
)

// DirEntrySize is the packed size of one directory entry: 4 bytes inode
// number, 60 bytes null-padded name (spec.md §4.11).
const DirEntrySize = 64
const maxNameLen = 60

// DirEntry is one packed directory record.
type DirEntry struct {
	Ino  uint32
	Name string
}

func decodeDirEntry(buf []byte) DirEntry {
	ino := binary.LittleEndian.Uint32(buf[0:4])
	raw := buf[4:DirEntrySize]
	if i := bytes.IndexByte(raw, 0); i >= 0 {
		raw = raw[:i]
	}
	return DirEntry{Ino: ino, Name: string(raw)}
}

func encodeDirEntry(buf []byte, e DirEntry) {
	binary.LittleEndian.PutUint32(buf[0:4], e.Ino)
	for i := 4; i < DirEntrySize; i++ {
		buf[i] = 0
	}
	copy(buf[4:DirEntrySize], e.Name)
}

// entryBlock returns the number of the physical block backing the
// logical'th directory block of dir, allocating it if create is set.
func (fs *Filesystem) entryBlock(dir *inode.Inode, logical uint32, create bool) (uint32, error) {
	phys, err := fs.GetBlock(dir, logical, create)
	if err != nil {
		return 0, err
	}
	if phys == 0 {
		return 0, errs.EIO // sparse hole inside a directory is a corrupt filesystem
	}
	return phys, nil
}

func (fs *Filesystem) entriesPerBlock() uint32 {
	return uint32(fs.sb.BlockSize) / DirEntrySize
}

// IterateDir walks dir's entries starting at byte offset pos, calling
// emit(name, ino) for every occupied slot; it stops when emit returns
// false or the directory's size is exhausted, returning the pos to
// resume from next time (spec.md §4.11: "iterate_dir ... updating pos in
// entry-sized steps").
func (fs *Filesystem) IterateDir(dir *inode.Inode, pos uint32, emit func(name string, ino uint32) bool) (uint32, error) {
	epb := fs.entriesPerBlock()
	for uint64(pos) < dir.Size {
		logical := pos / (epb * DirEntrySize)
		within := pos % (epb * DirEntrySize)

		phys, err := fs.entryBlock(dir, logical, false)
		if err != nil {
			return pos, err
		}
		b := fs.dev.Fix(phys)
		e := decodeDirEntry(b.Data[within : within+DirEntrySize])
		fs.dev.Unfix(b)

		pos += DirEntrySize
		if e.Ino == 0 {
			continue
		}
		if !emit(e.Name, e.Ino) {
			return pos, nil
		}
	}
	return pos, nil
}

// Lookup scans dir for name, returning its inode number or ENOENT.
func (fs *Filesystem) Lookup(dir *inode.Inode, name string) (uint32, error) {
	return fs.lookup(dir, name)
}

// lookup scans dir for name, returning its inode number or ENOENT.
func (fs *Filesystem) lookup(dir *inode.Inode, name string) (uint32, error) {
	var found uint32
	_, err := fs.IterateDir(dir, 0, func(n string, ino uint32) bool {
		if n == name {
			found = ino
			return false
		}
		return true
	})
	if err != nil {
		return 0, err
	}
	if found == 0 {
		return 0, errs.ENOENT
	}
	return found, nil
}

// AddLink scans for a free slot (ino == 0) and writes name -> ino there;
// if none exists it extends the directory by one entry (spec.md §4.11).
func (fs *Filesystem) AddLink(dir *inode.Inode, name string, ino uint32) error {
	if len(name) > maxNameLen {
		return errs.ENAMETOOLONG
	}

	epb := fs.entriesPerBlock()
	var pos uint32
	for uint64(pos) < dir.Size {
		logical := pos / (epb * DirEntrySize)
		within := pos % (epb * DirEntrySize)

		phys, err := fs.entryBlock(dir, logical, false)
		if err != nil {
			return err
		}
		b := fs.dev.Fix(phys)
		e := decodeDirEntry(b.Data[within : within+DirEntrySize])

		if e.Ino != 0 && e.Name == name {
			fs.dev.Unfix(b)
			return errs.EEXIST
		}
		if e.Ino == 0 {
			encodeDirEntry(b.Data[within:within+DirEntrySize], DirEntry{Ino: ino, Name: name})
			b.MarkDirty()
			fs.dev.Unfix(b)
			return nil
		}
		fs.dev.Unfix(b)
		pos += DirEntrySize
	}

	// No free slot: extend by one entry.
	logical := pos / (epb * DirEntrySize)
	within := pos % (epb * DirEntrySize)
	phys, err := fs.entryBlock(dir, logical, true)
	if err != nil {
		return err
	}
	b := fs.dev.Fix(phys)
	encodeDirEntry(b.Data[within:within+DirEntrySize], DirEntry{Ino: ino, Name: name})
	b.MarkDirty()
	fs.dev.Unfix(b)

	dir.Size += DirEntrySize
	dir.MarkDirty()
	return nil
}

// DeleteEntry zeroes name's slot; directories never shrink (spec.md
// §4.11).
func (fs *Filesystem) DeleteEntry(dir *inode.Inode, name string) error {
	epb := fs.entriesPerBlock()
	var pos uint32
	for uint64(pos) < dir.Size {
		logical := pos / (epb * DirEntrySize)
		within := pos % (epb * DirEntrySize)

		phys, err := fs.entryBlock(dir, logical, false)
		if err != nil {
			return err
		}
		b := fs.dev.Fix(phys)
		e := decodeDirEntry(b.Data[within : within+DirEntrySize])
		if e.Ino != 0 && e.Name == name {
			encodeDirEntry(b.Data[within:within+DirEntrySize], DirEntry{})
			b.MarkDirty()
			fs.dev.Unfix(b)
			return nil
		}
		fs.dev.Unfix(b)
		pos += DirEntrySize
	}
	return errs.ENOENT
}

// IsEmptyDir reports whether dir contains only "." and "..".
func (fs *Filesystem) IsEmptyDir(dir *inode.Inode) (bool, error) {
	count := 0
	_, err := fs.IterateDir(dir, 0, func(name string, ino uint32) bool {
		count++
		return count < 3
	})
	if err != nil {
		return false, err
	}
	return count <= 2, nil
}

// Mkdir creates a directory inode under parent with the given permission
// bits, links it as name, and populates its "." and ".." entries (spec.md
// §4.11).
func (fs *Filesystem) Mkdir(parent *inode.Inode, name string, perm uint16) (*inode.Inode, error) {
	if _, err := fs.lookup(parent, name); err == nil {
		return nil, errs.EEXIST
	}

	ino, err := fs.AllocInode()
	if err != nil {
		return nil, err
	}

	child := fs.cache.Get(fs, ino)
	if !child.IsNew() {
		errs.PanicBug("minix: freshly allocated inode %d already cached", ino)
	}
	child.Number = ino
	child.Mode = ModeDir | (perm & ModePerm)
	child.NLinks = 0
	child.MarkDirty()
	child.ClearNew()

	if err := fs.AddLink(parent, name, ino); err != nil {
		return nil, err
	}
	parent.NLinks++ // ".." in the new directory references parent
	parent.MarkDirty()

	if err := fs.AddLink(child, ".", ino); err != nil {
		return nil, err
	}
	if err := fs.AddLink(child, "..", parent.Number); err != nil {
		return nil, err
	}
	child.NLinks = 2 // the parent's entry for `name`, plus "."
	child.MarkDirty()

	return child, nil
}

// Rmdir removes an empty subdirectory named name from parent.
func (fs *Filesystem) Rmdir(parent *inode.Inode, name string, child *inode.Inode) error {
	empty, err := fs.IsEmptyDir(child)
	if err != nil {
		return err
	}
	if !empty {
		return errs.ENOTEMPTY
	}
	if err := fs.DeleteEntry(parent, name); err != nil {
		return err
	}
	parent.NLinks--
	parent.MarkDirty()
	child.NLinks = 0
	child.MarkDirty()
	return nil
}
