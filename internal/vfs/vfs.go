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
	"context"
	"sync"

	"github.com/moby/sys/mountinfo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/libalis/mpstubs-gruppe-05-sub000/internal/blockdev"
	"github.com/libalis/mpstubs-gruppe-05-sub000/internal/inode"
	"github.com/libalis/mpstubs-gruppe-05-sub000/internal/minix"
)

var tracer = otel.Tracer("stubskernel/vfs")

// VFS is the single-mount POSIX surface of spec.md §4.10, sitting above
// exactly one mounted package minix filesystem (the Non-goals explicitly
// exclude multi-mount).
type VFS struct {
	mu    sync.Mutex
	cache *inode.Cache
	fs    *minix.Filesystem
	cwd   *inode.Inode
	fds   *fdTable

	mountSource string
}

// Mount opens dev as a Minix v3 volume and installs it as the sole mount,
// with cwd initialized to the root inode.
func Mount(dev blockdev.Device, source string) (*VFS, error) {
	cache := inode.New()
	fs, err := minix.Mount(dev, cache)
	if err != nil {
		return nil, err
	}

	cwd := cache.Get(fs, minix.RootIno) // vfs owns an independent reference, distinct from fs's own root pin

	return &VFS{
		cache:       cache,
		fs:          fs,
		cwd:         cwd,
		fds:         newFDTable(),
		mountSource: source,
	}, nil
}

// Umount releases the VFS's own cwd reference and unmounts the
// filesystem, refusing with EBUSY if references remain outstanding
// (spec.md §4.10: "umount refuses when outstanding references exceed
// {root inode} ∪ {cwd if in this fs}").
func (v *VFS) Umount() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	cwdIno := v.cwd.Number
	v.putInode(v.cwd)
	if err := v.fs.Unmount(); err != nil {
		if cwd, gerr := v.getInode(cwdIno); gerr == nil {
			v.cwd = cwd // still mounted: take the cwd reference back
		}
		return err
	}
	return nil
}

// Sync flushes every dirty inode and device block.
func (v *VFS) Sync() {
	v.fs.Sync()
}

// MountSource returns the path/device name this VFS was mounted from.
func (v *VFS) MountSource() string { return v.mountSource }

// MountInfo returns the single mount-table entry for this VFS, shaped like
// a row of github.com/moby/sys/mountinfo.GetMounts's output (one struct
// per line of /proc/self/mountinfo) so that stubsctl status and tests can
// introspect the mount the same way a Linux tool would read
// /proc/mounts -- there being exactly one mount (spec.md §4.10's
// Non-goals exclude multi-mount), ID/Parent are fixed rather than read
// from a real mount namespace.
func (v *VFS) MountInfo() mountinfo.Info {
	return mountinfo.Info{
		ID:         1,
		Parent:     0,
		Mountpoint: "/",
		Root:       "/",
		FSType:     "minix",
		Source:     v.mountSource,
		Options:    "rw",
		VFSOptions: "rw",
	}
}

// getInode fetches (and, if newly cached, loads) the inode for ino.
func (v *VFS) getInode(ino uint32) (*inode.Inode, error) {
	i := v.cache.Get(v.fs, ino)
	if i.IsNew() {
		if err := v.fs.LoadInode(i); err != nil {
			v.cache.Put(i)
			return nil, err
		}
	}
	return i, nil
}

func (v *VFS) putInode(i *inode.Inode) {
	v.cache.Put(i)
}

// span starts an otel span for a top-level syscall, per gcsfuse's
// pattern of wrapping filesystem operations for latency/error
// attribution.
func (v *VFS) span(op string) (context.Context, trace.Span) {
	return tracer.Start(context.Background(), "vfs."+op)
}
