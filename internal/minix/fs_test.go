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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/libalis/mpstubs-gruppe-05-sub000/internal/errs"
)

func TestMkdirLinksDotAndDotDot(t *testing.T) {
	fs := mkfsTestVolume(t, 512)

	sub, err := fs.Mkdir(fs.Root(), "sub", 0755)
	require.NoError(t, err)
	assert.Equal(t, uint16(2), sub.NLinks)

	ino, err := fs.Lookup(sub, ".")
	require.NoError(t, err)
	assert.Equal(t, sub.Number, ino)

	ino, err = fs.Lookup(sub, "..")
	require.NoError(t, err)
	assert.Equal(t, fs.Root().Number, ino)
}

func TestMkdirRejectsDuplicateName(t *testing.T) {
	fs := mkfsTestVolume(t, 512)

	_, err := fs.Mkdir(fs.Root(), "sub", 0755)
	require.NoError(t, err)

	_, err = fs.Mkdir(fs.Root(), "sub", 0755)
	assert.ErrorIs(t, err, errs.EEXIST)
}

func TestRmdirRefusesNonEmptyDirectory(t *testing.T) {
	fs := mkfsTestVolume(t, 512)

	sub, err := fs.Mkdir(fs.Root(), "sub", 0755)
	require.NoError(t, err)
	_, err = fs.Mkdir(sub, "grandchild", 0755)
	require.NoError(t, err)

	err = fs.Rmdir(fs.Root(), "sub", sub)
	assert.ErrorIs(t, err, errs.ENOTEMPTY)
}

func TestRmdirRemovesEmptyDirectory(t *testing.T) {
	fs := mkfsTestVolume(t, 512)

	sub, err := fs.Mkdir(fs.Root(), "sub", 0755)
	require.NoError(t, err)

	require.NoError(t, fs.Rmdir(fs.Root(), "sub", sub))
	assert.Equal(t, uint16(0), sub.NLinks)

	_, err = fs.Lookup(fs.Root(), "sub")
	assert.ErrorIs(t, err, errs.ENOENT)
}

func TestAddLinkReusesFreedSlotBeforeExtending(t *testing.T) {
	fs := mkfsTestVolume(t, 512)
	startSize := fs.Root().Size

	require.NoError(t, fs.AddLink(fs.Root(), "a", 10))
	require.NoError(t, fs.AddLink(fs.Root(), "b", 11))
	require.NoError(t, fs.DeleteEntry(fs.Root(), "a"))

	require.NoError(t, fs.AddLink(fs.Root(), "c", 12))
	assert.Equal(t, startSize+2*DirEntrySize, fs.Root().Size, "AddLink must reuse a's freed slot rather than growing again")

	ino, err := fs.Lookup(fs.Root(), "c")
	require.NoError(t, err)
	assert.EqualValues(t, 12, ino)
}

func TestAddLinkRejectsNameTooLong(t *testing.T) {
	fs := mkfsTestVolume(t, 512)
	long := make([]byte, maxNameLen+1)
	for i := range long {
		long[i] = 'x'
	}
	err := fs.AddLink(fs.Root(), string(long), 5)
	assert.ErrorIs(t, err, errs.ENAMETOOLONG)
}

func TestDeleteEntryMissingNameReturnsENOENT(t *testing.T) {
	fs := mkfsTestVolume(t, 512)
	err := fs.DeleteEntry(fs.Root(), "nope")
	assert.ErrorIs(t, err, errs.ENOENT)
}

// TestGetBlockWalksThroughIndirection exercises the direct, single- and
// double-indirect depths of the walk: the first and last direct slot, the
// first and last single-indirect slot, and the first double-indirect slot.
// The triple-indirect chain is not reached.
func TestGetBlockWalksThroughIndirection(t *testing.T) {
	fs := mkfsTestVolume(t, 512)
	f, err := fs.CreateInode(ModeRegular, 0644)
	require.NoError(t, err)

	ppb := fs.ptrsPerBlock()
	logicals := []uint32{
		0, DirectZones - 1, // direct
		DirectZones,           // first single-indirect slot
		DirectZones + ppb - 1, // last single-indirect slot
		DirectZones + ppb,     // first double-indirect slot
	}

	seen := map[uint32]bool{}
	for _, logical := range logicals {
		phys, err := fs.GetBlock(f, logical, true)
		require.NoErrorf(t, err, "logical=%d", logical)
		require.NotZerof(t, phys, "logical=%d returned a sparse hole despite create=true", logical)
		assert.Falsef(t, seen[phys], "logical=%d reused physical block %d already claimed by another logical offset", logical, phys)
		seen[phys] = true

		again, err := fs.GetBlock(f, logical, false)
		require.NoError(t, err)
		assert.Equal(t, phys, again, "re-reading the same logical offset must return the same physical zone")
	}
}

// TestGetBlockRestartsOnConcurrentSplice drives the EAGAIN path directly:
// a second writer wins the race to splice a pointer-block slot, so the
// first writer's attempt to write the same slot must be told to restart
// rather than clobber the winner (spec.md §4.11).
func TestGetBlockRestartsOnConcurrentSplice(t *testing.T) {
	fs := mkfsTestVolume(t, 512)
	f, err := fs.CreateInode(ModeRegular, 0644)
	require.NoError(t, err)

	// Establish the single-indirect root block via slot 0, then race over
	// slot 1, which is still unspliced.
	_, err = fs.GetBlock(f, DirectZones, true)
	require.NoError(t, err)
	indirectZone := f.Ext.(*Zones).Z[SingleIndirect]
	require.NotZero(t, indirectZone)

	// A concurrent walk wins the splice race for slot 1 first.
	winner, err := fs.AllocZone()
	require.NoError(t, err)
	require.NoError(t, fs.writeZonePtr(indirectZone, 1, winner))

	// This walk's own attempt to splice the same slot must restart instead
	// of clobbering the winner.
	mine, err := fs.AllocZone()
	require.NoError(t, err)
	err = fs.writeZonePtr(indirectZone, 1, mine)
	assert.ErrorIs(t, err, errs.EAGAIN)
}

func TestTruncateFreesDirectAndIndirectZones(t *testing.T) {
	fs := mkfsTestVolume(t, 512)
	f, err := fs.CreateInode(ModeRegular, 0644)
	require.NoError(t, err)

	_, err = fs.GetBlock(f, 0, true)
	require.NoError(t, err)
	_, err = fs.GetBlock(f, DirectZones, true) // forces a single-indirect block
	require.NoError(t, err)
	f.Size = uint64(DirectZones+1) * uint64(fs.sb.BlockSize)

	require.NoError(t, fs.Truncate(f, 0))

	zones := f.Ext.(*Zones)
	for s, z := range zones.Z {
		assert.Zerof(t, z, "slot %d still points at a zone after truncating to 0", s)
	}
}
