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
	"strings"

	"github.com/jacobsa/reqtrace"
	"golang.org/x/net/context"

	"github.com/libalis/mpstubs-gruppe-05-sub000/internal/errs"
	"github.com/libalis/mpstubs-gruppe-05-sub000/internal/inode"
	"github.com/libalis/mpstubs-gruppe-05-sub000/internal/minix"
)

// maxSymlinkDepth bounds recursive symlink resolution (spec.md §4.10:
// "fail with LOOP if depth >= 6").
const maxSymlinkDepth = 6

func splitComponents(path string) (comps []string, trailingSlash bool) {
	trailingSlash = len(path) > 1 && strings.HasSuffix(path, "/")
	for _, c := range strings.Split(path, "/") {
		if c == "" {
			continue // collapses multiple slashes and a leading slash alike
		}
		comps = append(comps, c)
	}
	return
}

// startRef returns the Step 1 starting inode, with its own cache
// reference: the root for an absolute path, cwd for a relative one
// (spec.md §4.10 Step 1).
func (v *VFS) startRef(path string) (*inode.Inode, error) {
	if strings.HasPrefix(path, "/") {
		return v.getInode(minix.RootIno)
	}
	v.mu.Lock()
	cwdIno := v.cwd.Number
	v.mu.Unlock()
	return v.getInode(cwdIno)
}

func isDir(i *inode.Inode) bool     { return i.Mode&minix.ModeFmt == minix.ModeDir }
func isSymlink(i *inode.Inode) bool { return i.Mode&minix.ModeFmt == minix.ModeSymlink }

// readlinkTarget returns the stored target path of a symlink inode.
func (v *VFS) readlinkTarget(i *inode.Inode) (string, error) {
	buf := make([]byte, i.Size)
	if _, err := v.fs.ReadAt(i, buf, 0); err != nil {
		return "", err
	}
	return string(buf), nil
}

// step2 walks every intermediate (non-last) component of comps starting
// from cur (spec.md §4.10 Step 2): looks up each in turn, requiring a
// directory and following symlinks recursively with a depth bound.
// Returns the directory reached after the last intermediate component.
// cur is consumed (Put internally as the walk advances); the returned
// inode is a fresh reference the caller must Put.
func (v *VFS) step2(cur *inode.Inode, comps []string, depth int) (result *inode.Inode, err error) {
	_, report := reqtrace.StartSpan(context.Background(), "vfs.step2")
	defer func() { report(err) }()

	for _, comp := range comps {
		if !isDir(cur) {
			v.putInode(cur)
			return nil, errs.ENOTDIR
		}
		if comp == "." {
			continue
		}
		if comp == ".." {
			if cur.Number == minix.RootIno {
				continue // ".." in the root inode is self (spec.md §4.10)
			}
			ino, err := v.fs.Lookup(cur, "..")
			if err != nil {
				v.putInode(cur)
				return nil, err
			}
			next, err := v.getInode(ino)
			v.putInode(cur)
			if err != nil {
				return nil, err
			}
			cur = next
			continue
		}

		ino, err := v.fs.Lookup(cur, comp)
		if err != nil {
			v.putInode(cur)
			return nil, err
		}
		dirIno := cur.Number
		child, err := v.getInode(ino)
		v.putInode(cur)
		if err != nil {
			return nil, err
		}

		if isSymlink(child) {
			if depth+1 >= maxSymlinkDepth {
				v.putInode(child)
				return nil, errs.ELOOP
			}
			target, err := v.readlinkTarget(child)
			v.putInode(child)
			if err != nil {
				return nil, err
			}
			base, err := v.startRefRelativeTo(target, dirIno)
			if err != nil {
				return nil, err
			}
			comps2, _ := splitComponents(target)
			resolved, err := v.step3(base, comps2, depth+1, false)
			if err != nil {
				return nil, err
			}
			cur = resolved
			continue
		}

		cur = child
	}
	return cur, nil
}

// startRefRelativeTo picks the Step-1 starting point for resolving a
// symlink's target: the root for an absolute target, otherwise dirIno,
// the directory containing the symlink itself.
func (v *VFS) startRefRelativeTo(target string, dirIno uint32) (*inode.Inode, error) {
	if strings.HasPrefix(target, "/") {
		return v.getInode(minix.RootIno)
	}
	return v.getInode(dirIno)
}

// step3 resolves the full path given a Step-1 starting point, including
// the last component (spec.md §4.10 Step 3), following a final symlink
// when followLast is set.
func (v *VFS) step3(start *inode.Inode, comps []string, depth int, followLast bool) (out *inode.Inode, err error) {
	_, report := reqtrace.StartSpan(context.Background(), "vfs.step3")
	defer func() { report(err) }()

	if len(comps) == 0 {
		return start, nil
	}
	last := comps[len(comps)-1]
	dir, err := v.step2(start, comps[:len(comps)-1], depth)
	if err != nil {
		return nil, err
	}
	if !isDir(dir) {
		v.putInode(dir)
		return nil, errs.ENOTDIR
	}

	if last == "." || last == ".." {
		return v.step2(dir, []string{last}, depth)
	}

	ino, err := v.fs.Lookup(dir, last)
	if err != nil {
		v.putInode(dir)
		return nil, err
	}
	dirIno := dir.Number
	result, err := v.getInode(ino)
	v.putInode(dir)
	if err != nil {
		return nil, err
	}

	if followLast && isSymlink(result) {
		if depth+1 >= maxSymlinkDepth {
			v.putInode(result)
			return nil, errs.ELOOP
		}
		target, err := v.readlinkTarget(result)
		v.putInode(result)
		if err != nil {
			return nil, err
		}
		base, err := v.startRefRelativeTo(target, dirIno)
		if err != nil {
			return nil, err
		}
		comps2, _ := splitComponents(target)
		return v.step3(base, comps2, depth+1, followLast)
	}

	return result, nil
}

// resolve implements the full three-step walk of spec.md §4.10 for a
// complete path, returning the final inode with a cache reference the
// caller must Put.
func (v *VFS) resolve(path string, followLast bool) (*inode.Inode, error) {
	start, err := v.startRef(path)
	if err != nil {
		return nil, err
	}
	comps, _ := splitComponents(path)
	return v.step3(start, comps, 0, followLast)
}

// resolveParent walks every component but the last, returning the
// parent directory (a fresh reference the caller must Put), the last
// path component, and whether the original path had a trailing slash
// (spec.md §4.10: "trailing slash forces directory check").
func (v *VFS) resolveParent(path string) (parent *inode.Inode, name string, trailingSlash bool, err error) {
	start, err := v.startRef(path)
	if err != nil {
		return nil, "", false, err
	}
	comps, trailingSlash := splitComponents(path)
	if len(comps) == 0 {
		return start, "", trailingSlash, nil
	}
	name = comps[len(comps)-1]
	parent, err = v.step2(start, comps[:len(comps)-1], 0)
	if err != nil {
		return nil, "", trailingSlash, err
	}
	if !isDir(parent) {
		v.putInode(parent)
		return nil, "", trailingSlash, errs.ENOTDIR
	}
	return parent, name, trailingSlash, nil
}
