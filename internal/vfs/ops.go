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

package vfs

import (
	"io"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/libalis/mpstubs-gruppe-05-sub000/internal/errs"
	"github.com/libalis/mpstubs-gruppe-05-sub000/internal/inode"
	"github.com/libalis/mpstubs-gruppe-05-sub000/internal/metrics"
	"github.com/libalis/mpstubs-gruppe-05-sub000/internal/minix"
)

// Open flags, matching the POSIX bit positions spec.md §4.10 assumes.
const (
	ORdOnly    = 0
	OWrOnly    = 0x1
	ORdWr      = 0x2
	OCreat     = 0x40
	OExcl      = 0x80
	OTrunc     = 0x200
	OAppend    = 0x400
	ODirectory = 0x10000
)

// Stat mirrors the POSIX stat(2) fields spec.md's VFS exposes.
type Stat struct {
	Ino                 uint32
	Mode                uint16
	NLinks              uint16
	UID, GID            uint32
	Size                uint64
	Atime, Mtime, Ctime time.Time
}

func statOf(i *inode.Inode) Stat {
	return Stat{
		Ino: i.Number, Mode: i.Mode, NLinks: i.NLinks,
		UID: i.UID, GID: i.GID, Size: i.Size,
		Atime: i.Atime, Mtime: i.Mtime, Ctime: i.Ctime,
	}
}

// observe records the VFSOpsTotal counter and otel span status for one
// top-level syscall (gcsfuse's latency/error-attribute pattern).
func (v *VFS) observe(op string, err error) error {
	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.VFSOpsTotal.WithLabelValues(op, result).Inc()
	return err
}

// Open implements open(2): allocates a descriptor for path, creating it
// under O_CREAT if absent (spec.md §4.10).
func (v *VFS) Open(path string, flags int, perm uint16) (fd int, err error) {
	_, span := v.span("open")
	defer func() { v.finish(span, v.observe("open", err)) }()

	var target *inode.Inode
	if flags&OCreat != 0 {
		parent, name, trailingSlash, perr := v.resolveParent(path)
		if perr != nil {
			return 0, perr
		}
		defer v.putInode(parent)

		ino, lerr := v.fs.Lookup(parent, name)
		switch {
		case lerr == nil:
			if flags&OExcl != 0 {
				return 0, errs.EEXIST
			}
			t, gerr := v.getInode(ino)
			if gerr != nil {
				return 0, gerr
			}
			target = t
		case errs.Is(lerr, errs.ENOENT):
			if trailingSlash {
				return 0, errs.ENOENT
			}
			t, cerr := v.fs.CreateInode(minix.ModeRegular, perm)
			if cerr != nil {
				return 0, cerr
			}
			if lerr := v.fs.Link(parent, name, t); lerr != nil {
				v.putInode(t)
				return 0, lerr
			}
			target = t
		default:
			return 0, lerr
		}
	} else {
		t, rerr := v.resolve(path, true)
		if rerr != nil {
			return 0, rerr
		}
		target = t
	}

	if flags&ODirectory != 0 && !isDir(target) {
		v.putInode(target)
		return 0, errs.ENOTDIR
	}
	if flags&OTrunc != 0 && flags&(OWrOnly|ORdWr) != 0 {
		if terr := v.fs.Truncate(target, 0); terr != nil {
			v.putInode(target)
			return 0, terr
		}
	}

	of := &OpenFile{Inode: target, Flags: flags}
	if flags&OAppend != 0 {
		of.Offset = target.Size
	}
	fd, aerr := v.fds.alloc(of)
	if aerr != nil {
		v.putInode(target)
		return 0, aerr
	}
	return fd, nil
}

// Close implements close(2).
func (v *VFS) Close(fd int) (err error) {
	defer func() { v.observe("close", err) }()
	f, ferr := v.fds.get(fd)
	if ferr != nil {
		return ferr
	}
	if err := v.fds.release(fd); err != nil {
		return err
	}
	v.putInode(f.Inode)
	return nil
}

// Read implements read(2): clips at the inode's size (spec.md §4.10).
func (v *VFS) Read(fd int, buf []byte) (n int, err error) {
	_, span := v.span("read")
	defer func() { v.finish(span, err); v.observe("read", err) }()

	f, ferr := v.fds.get(fd)
	if ferr != nil {
		err = ferr
		return 0, err
	}
	n, err = v.fs.ReadAt(f.Inode, buf, f.Offset)
	f.Offset += uint64(n)
	return n, err
}

// Write implements write(2): auto-extends, punching a zero-filled hole
// first if pos > size, and truncates back to the original size on error
// (spec.md §4.10).
func (v *VFS) Write(fd int, buf []byte) (n int, err error) {
	_, span := v.span("write")
	defer func() { v.finish(span, err); v.observe("write", err) }()

	f, ferr := v.fds.get(fd)
	if ferr != nil {
		err = ferr
		return 0, err
	}
	if f.Flags&OAppend != 0 {
		f.Offset = f.Inode.Size
	}
	originalSize := f.Inode.Size

	n, err = v.fs.WriteAt(f.Inode, buf, f.Offset)
	if err != nil {
		v.fs.Truncate(f.Inode, originalSize)
		return n, err
	}
	f.Offset += uint64(n)
	return n, nil
}

// Lseek implements lseek(2).
func (v *VFS) Lseek(fd int, offset int64, whence int) (pos int64, err error) {
	defer func() { v.observe("lseek", err) }()
	f, ferr := v.fds.get(fd)
	if ferr != nil {
		return 0, ferr
	}
	var base int64
	switch whence {
	case io.SeekStart:
		base = 0
	case io.SeekCurrent:
		base = int64(f.Offset)
	case io.SeekEnd:
		base = int64(f.Inode.Size)
	default:
		return 0, errs.EINVAL
	}
	newPos := base + offset
	if newPos < 0 {
		return 0, errs.EINVAL
	}
	f.Offset = uint64(newPos)
	return newPos, nil
}

// Truncate implements truncate(2).
func (v *VFS) Truncate(path string, size uint64) (err error) {
	defer func() { v.observe("truncate", err) }()
	i, rerr := v.resolve(path, true)
	if rerr != nil {
		return rerr
	}
	defer v.putInode(i)
	if isDir(i) {
		return errs.EISDIR
	}
	return v.fs.Truncate(i, size)
}

// Ftruncate implements ftruncate(2).
func (v *VFS) Ftruncate(fd int, size uint64) (err error) {
	defer func() { v.observe("ftruncate", err) }()
	f, ferr := v.fds.get(fd)
	if ferr != nil {
		return ferr
	}
	return v.fs.Truncate(f.Inode, size)
}

// Link implements link(2): refuses directories with EPERM, and a
// trailing slash in newpath with EINVAL (spec.md §4.10).
func (v *VFS) Link(oldpath, newpath string) (err error) {
	defer func() { v.observe("link", err) }()
	target, rerr := v.resolve(oldpath, false)
	if rerr != nil {
		return rerr
	}
	defer v.putInode(target)
	if isDir(target) {
		return errs.EPERM
	}

	parent, name, trailingSlash, perr := v.resolveParent(newpath)
	if perr != nil {
		return perr
	}
	defer v.putInode(parent)
	if trailingSlash {
		return errs.EINVAL
	}
	return v.fs.Link(parent, name, target)
}

// Symlink implements symlink(2): creates a symlink inode whose content is
// the target path string.
func (v *VFS) Symlink(target, linkpath string) (err error) {
	defer func() { v.observe("symlink", err) }()
	parent, name, _, perr := v.resolveParent(linkpath)
	if perr != nil {
		return perr
	}
	defer v.putInode(parent)

	link, cerr := v.fs.CreateInode(minix.ModeSymlink, 0777)
	if cerr != nil {
		return cerr
	}
	if _, werr := v.fs.WriteAt(link, []byte(target), 0); werr != nil {
		v.putInode(link)
		return werr
	}
	if lerr := v.fs.Link(parent, name, link); lerr != nil {
		v.putInode(link)
		return lerr
	}
	v.putInode(link)
	return nil
}

// Readlink implements readlink(2).
func (v *VFS) Readlink(path string) (target string, err error) {
	defer func() { v.observe("readlink", err) }()
	i, rerr := v.resolve(path, false)
	if rerr != nil {
		return "", rerr
	}
	defer v.putInode(i)
	if !isSymlink(i) {
		return "", errs.EINVAL
	}
	return v.readlinkTarget(i)
}

// Unlink implements unlink(2).
func (v *VFS) Unlink(path string) (err error) {
	defer func() { v.observe("unlink", err) }()
	parent, name, _, perr := v.resolveParent(path)
	if perr != nil {
		return perr
	}
	defer v.putInode(parent)

	ino, lerr := v.fs.Lookup(parent, name)
	if lerr != nil {
		return lerr
	}
	target, gerr := v.getInode(ino)
	if gerr != nil {
		return gerr
	}
	defer v.putInode(target)
	if isDir(target) {
		return errs.EISDIR
	}
	return v.fs.Unlink(parent, name, target)
}

// Mkdir implements mkdir(2).
func (v *VFS) Mkdir(path string, perm uint16) (err error) {
	defer func() { v.observe("mkdir", err) }()
	parent, name, _, perr := v.resolveParent(path)
	if perr != nil {
		return perr
	}
	defer v.putInode(parent)
	child, merr := v.fs.Mkdir(parent, name, perm)
	if merr != nil {
		return merr
	}
	v.putInode(child)
	return nil
}

// Rmdir implements rmdir(2).
func (v *VFS) Rmdir(path string) (err error) {
	defer func() { v.observe("rmdir", err) }()
	parent, name, _, perr := v.resolveParent(path)
	if perr != nil {
		return perr
	}
	defer v.putInode(parent)

	ino, lerr := v.fs.Lookup(parent, name)
	if lerr != nil {
		return lerr
	}
	child, gerr := v.getInode(ino)
	if gerr != nil {
		return gerr
	}
	defer v.putInode(child)
	if !isDir(child) {
		return errs.ENOTDIR
	}
	return v.fs.Rmdir(parent, name, child)
}

// Rename implements rename(2) (spec.md §4.10's semantics: same
// filesystem only, target-is-directory-iff-source-is, target must be
// empty if a directory, moved directory's ".." is rewritten).
func (v *VFS) Rename(oldpath, newpath string) (err error) {
	_, span := v.span("rename")
	defer func() { v.finish(span, err); v.observe("rename", err) }()

	oldParent, oldName, _, perr := v.resolveParent(oldpath)
	if perr != nil {
		return perr
	}
	defer v.putInode(oldParent)

	oldIno, lerr := v.fs.Lookup(oldParent, oldName)
	if lerr != nil {
		return lerr
	}
	src, gerr := v.getInode(oldIno)
	if gerr != nil {
		return gerr
	}
	defer v.putInode(src)

	newParent, newName, trailingSlash, perr := v.resolveParent(newpath)
	if perr != nil {
		return perr
	}
	defer v.putInode(newParent)

	if newParent.FS != oldParent.FS {
		return errs.EXDEV // always false for a single mount, kept for fidelity with spec.md
	}

	if newIno, lerr := v.fs.Lookup(newParent, newName); lerr == nil {
		dst, gerr := v.getInode(newIno)
		if gerr != nil {
			return gerr
		}
		defer v.putInode(dst)

		if isDir(src) != isDir(dst) {
			return errs.ENOTDIR
		}
		if isDir(dst) {
			empty, eerr := v.fs.IsEmptyDir(dst)
			if eerr != nil {
				return eerr
			}
			if !empty {
				return errs.ENOTEMPTY
			}
		}
		if derr := v.fs.DeleteEntry(newParent, newName); derr != nil {
			return derr
		}
	} else if trailingSlash && !isDir(src) {
		return errs.ENOTDIR
	}

	if err := v.fs.AddLink(newParent, newName, src.Number); err != nil {
		return err
	}
	if err := v.fs.DeleteEntry(oldParent, oldName); err != nil {
		return err
	}

	if isDir(src) {
		if err := v.fs.DeleteEntry(src, ".."); err != nil {
			return err
		}
		if err := v.fs.AddLink(src, "..", newParent.Number); err != nil {
			return err
		}
		oldParent.NLinks--
		oldParent.MarkDirty()
		newParent.NLinks++
		newParent.MarkDirty()
	}
	return nil
}

// Stat implements stat(2): resolves and follows a final symlink.
func (v *VFS) Stat(path string) (Stat, error) {
	i, err := v.resolve(path, true)
	if err != nil {
		return Stat{}, v.observe("stat", err)
	}
	defer v.putInode(i)
	return statOf(i), v.observe("stat", nil)
}

// Lstat implements lstat(2): does not follow a final symlink.
func (v *VFS) Lstat(path string) (Stat, error) {
	i, err := v.resolve(path, false)
	if err != nil {
		return Stat{}, v.observe("lstat", err)
	}
	defer v.putInode(i)
	return statOf(i), v.observe("lstat", nil)
}

// Fstat implements fstat(2).
func (v *VFS) Fstat(fd int) (Stat, error) {
	f, err := v.fds.get(fd)
	if err != nil {
		return Stat{}, v.observe("fstat", err)
	}
	return statOf(f.Inode), v.observe("fstat", nil)
}

// Chdir implements chdir(2).
func (v *VFS) Chdir(path string) (err error) {
	defer func() { v.observe("chdir", err) }()
	i, rerr := v.resolve(path, true)
	if rerr != nil {
		return rerr
	}
	if !isDir(i) {
		v.putInode(i)
		return errs.ENOTDIR
	}
	v.mu.Lock()
	old := v.cwd
	v.cwd = i
	v.mu.Unlock()
	v.putInode(old)
	return nil
}

// Fchdir implements fchdir(2).
func (v *VFS) Fchdir(fd int) (err error) {
	defer func() { v.observe("fchdir", err) }()
	f, ferr := v.fds.get(fd)
	if ferr != nil {
		return ferr
	}
	if !isDir(f.Inode) {
		return errs.ENOTDIR
	}
	next, gerr := v.getInode(f.Inode.Number)
	if gerr != nil {
		return gerr
	}
	v.mu.Lock()
	old := v.cwd
	v.cwd = next
	v.mu.Unlock()
	v.putInode(old)
	return nil
}

// Dirent is one entry handed back by Getdents.
type Dirent struct {
	Ino  uint32
	Name string
	Type uint8 // the ModeFmt bits of the mode, shifted right by 12
}

// Getdents implements getdents(2): reads directory entries starting at
// pos, returning the updated pos to resume from.
func (v *VFS) Getdents(fd int, pos uint32, max int) (entries []Dirent, newPos uint32, err error) {
	defer func() { v.observe("getdents", err) }()
	f, ferr := v.fds.get(fd)
	if ferr != nil {
		return nil, pos, ferr
	}
	if !isDir(f.Inode) {
		return nil, pos, errs.ENOTDIR
	}

	newPos, err = v.fs.IterateDir(f.Inode, pos, func(name string, ino uint32) bool {
		child, gerr := v.getInode(ino)
		typ := uint16(minix.ModeRegular)
		if gerr == nil {
			typ = child.Mode & minix.ModeFmt
			v.putInode(child)
		}
		entries = append(entries, Dirent{Ino: ino, Name: name, Type: uint8(typ >> 12)})
		return len(entries) < max
	})
	return entries, newPos, err
}

// Dir is a directory-stream handle for opendir/readdir/rewinddir/closedir.
type Dir struct {
	v   *VFS
	fd  int
	pos uint32
}

// Opendir implements opendir(3).
func (v *VFS) Opendir(path string) (*Dir, error) {
	fd, err := v.Open(path, ODirectory, 0)
	if err != nil {
		return nil, err
	}
	return &Dir{v: v, fd: fd}, nil
}

// Readdir implements readdir(3): returns one entry at a time, nil at
// end-of-directory.
func (d *Dir) Readdir() (*Dirent, error) {
	entries, newPos, err := d.v.Getdents(d.fd, d.pos, 1)
	if err != nil {
		return nil, err
	}
	d.pos = newPos
	if len(entries) == 0 {
		return nil, nil
	}
	return &entries[0], nil
}

// Rewinddir implements rewinddir(3).
func (d *Dir) Rewinddir() { d.pos = 0 }

// Closedir implements closedir(3).
func (d *Dir) Closedir() error { return d.v.Close(d.fd) }

func (v *VFS) finish(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
