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
	"testing"

	. "github.com/jacobsa/oglematchers"
	. "github.com/jacobsa/ogletest"

	"github.com/libalis/mpstubs-gruppe-05-sub000/internal/blockdev"
	"github.com/libalis/mpstubs-gruppe-05-sub000/internal/errs"
	"github.com/libalis/mpstubs-gruppe-05-sub000/internal/inode"
	"github.com/libalis/mpstubs-gruppe-05-sub000/internal/minix"
)

func TestVFS(t *testing.T) { RunTests(t) }

////////////////////////////////////////////////////////////////////////
// Boilerplate
////////////////////////////////////////////////////////////////////////

// mountTestVFS lays down the same bare mkfs'ed volume internal/minix's own
// tests use (minix.FormatForTesting, then AddLink for the root's "." and
// ".."), then builds a VFS directly over it rather than going through
// Mount, since Mount only knows how to open an already-formatted image and
// this package carries no mkfs tool of its own (spec.md's Non-goals
// exclude the interactive image CLI). Panics on failure, matching
// memfs_test.go's own SetUp idiom for a fixture ogletest gives no
// *testing.T to fail through.
func mountTestVFS(source string) *VFS {
	const blockSize = 1024
	const nInodes = 32
	dev := blockdev.NewRamDisk(64 * blockSize)
	if _, err := minix.FormatForTesting(dev, blockSize, nInodes); err != nil {
		panic(err)
	}

	cache := inode.New()
	fs, err := minix.Mount(dev, cache)
	if err != nil {
		panic(err)
	}
	if err := fs.AddLink(fs.Root(), ".", minix.RootIno); err != nil {
		panic(err)
	}
	if err := fs.AddLink(fs.Root(), "..", minix.RootIno); err != nil {
		panic(err)
	}

	cwd := cache.Get(fs, minix.RootIno)
	return &VFS{
		cache:       cache,
		fs:          fs,
		cwd:         cwd,
		fds:         newFDTable(),
		mountSource: source,
	}
}

type VFSTest struct {
	v *VFS
}

var _ SetUpInterface = &VFSTest{}

func init() { RegisterTestSuite(&VFSTest{}) }

func (t *VFSTest) SetUp(ti *TestInfo) {
	t.v = mountTestVFS("/dev/test-volume")
}

////////////////////////////////////////////////////////////////////////
// Test functions
////////////////////////////////////////////////////////////////////////

// Three-step path walk (spec.md §4.10): Mkdir creates through a resolved
// parent, and the new directory's own "." / ".." make it immediately
// walkable.
func (t *VFSTest) MkdirThenStatReportsADirectory() {
	AssertEq(nil, t.v.Mkdir("/a", 0755))

	st, err := t.v.Stat("/a")
	AssertEq(nil, err)
	ExpectTrue(st.Mode&minix.ModeFmt == minix.ModeDir)

	AssertEq(nil, t.v.Mkdir("/a/b", 0755))
	st, err = t.v.Stat("/a/b")
	AssertEq(nil, err)
	ExpectTrue(st.Mode&minix.ModeFmt == minix.ModeDir)
}

// ".." at the root resolves to the root itself (spec.md §4.10 step 2:
// "'..' in the root inode is self").
func (t *VFSTest) DotDotAtRootStaysAtRoot() {
	AssertEq(nil, t.v.Mkdir("/a", 0755))

	st, err := t.v.Stat("/a/../..") // the final ".." is taken at the root
	AssertEq(nil, err)
	ExpectEq(minix.RootIno, st.Ino)
}

// Open/Write/Read round-trip through a path walk that creates the file
// under O_CREAT, then finds it again on the second Open.
func (t *VFSTest) OpenCreateWriteReadRoundTrip() {
	fd, err := t.v.Open("/greeting", OCreat|ORdWr, 0644)
	AssertEq(nil, err)

	n, err := t.v.Write(fd, []byte("hello"))
	AssertEq(nil, err)
	AssertEq(5, n)
	AssertEq(nil, t.v.Close(fd))

	fd2, err := t.v.Open("/greeting", ORdWr, 0)
	AssertEq(nil, err)
	buf := make([]byte, 5)
	n, err = t.v.Read(fd2, buf)
	AssertEq(nil, err)
	AssertEq(5, n)
	ExpectEq("hello", string(buf))
	AssertEq(nil, t.v.Close(fd2))
}

// Rename moves a file across directories and makes it unreachable under
// its old name (spec.md §4.10's rename semantics).
func (t *VFSTest) RenameMovesFileAcrossDirectories() {
	AssertEq(nil, t.v.Mkdir("/src", 0755))
	AssertEq(nil, t.v.Mkdir("/dst", 0755))

	fd, err := t.v.Open("/src/file", OCreat|ORdWr, 0644)
	AssertEq(nil, err)
	AssertEq(nil, t.v.Close(fd))

	AssertEq(nil, t.v.Rename("/src/file", "/dst/file"))

	_, err = t.v.Stat("/src/file")
	ExpectTrue(errs.Is(err, errs.ENOENT))

	st, err := t.v.Stat("/dst/file")
	AssertEq(nil, err)
	ExpectTrue(st.Mode&minix.ModeFmt == minix.ModeRegular)
}

// Renaming a directory rewrites its ".." to point at the new parent
// (spec.md §4.10: "moved directory's \"..\" is rewritten").
func (t *VFSTest) RenameOfADirectoryRewritesDotDot() {
	AssertEq(nil, t.v.Mkdir("/src", 0755))
	AssertEq(nil, t.v.Mkdir("/dst", 0755))
	AssertEq(nil, t.v.Mkdir("/src/child", 0755))

	AssertEq(nil, t.v.Rename("/src/child", "/dst/child"))

	st, err := t.v.Stat("/dst/child/..")
	AssertEq(nil, err)
	dstStat, err := t.v.Stat("/dst")
	AssertEq(nil, err)
	ExpectEq(dstStat.Ino, st.Ino)
}

// Symlink resolution follows the stored target text (spec.md §4.10 step
// 2's recursive symlink handling).
func (t *VFSTest) SymlinkIsFollowedOnResolve() {
	fd, err := t.v.Open("/target", OCreat|ORdWr, 0644)
	AssertEq(nil, err)
	_, err = t.v.Write(fd, []byte("x"))
	AssertEq(nil, err)
	AssertEq(nil, t.v.Close(fd))

	AssertEq(nil, t.v.Symlink("/target", "/link"))

	got, err := t.v.Readlink("/link")
	AssertEq(nil, err)
	ExpectEq("/target", got)

	st, err := t.v.Stat("/link") // Stat follows the final symlink
	AssertEq(nil, err)
	ExpectTrue(st.Mode&minix.ModeFmt == minix.ModeRegular)

	lst, err := t.v.Lstat("/link") // Lstat does not
	AssertEq(nil, err)
	ExpectTrue(lst.Mode&minix.ModeFmt == minix.ModeSymlink)
}

// Rmdir refuses a non-empty directory (spec.md §4.10).
func (t *VFSTest) RmdirRefusesNonEmptyDirectory() {
	AssertEq(nil, t.v.Mkdir("/a", 0755))
	AssertEq(nil, t.v.Mkdir("/a/b", 0755))

	err := t.v.Rmdir("/a")
	ExpectTrue(errs.Is(err, errs.ENOTEMPTY))
}

// MountInfo exposes a single mountinfo.Info-shaped entry for the sole
// mount (spec.md §4.10, no multi-mount).
func (t *VFSTest) MountInfoReflectsTheMountedSource() {
	info := t.v.MountInfo()
	ExpectEq("/dev/test-volume", info.Source)
	ExpectEq("minix", info.FSType)
	ExpectEq("/", info.Mountpoint)
	ExpectThat(info.Options, HasSubstr("rw"))
}
