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

	"github.com/stretchr/testify/require"

	"github.com/libalis/mpstubs-gruppe-05-sub000/internal/blockdev"
	"github.com/libalis/mpstubs-gruppe-05-sub000/internal/inode"
)

// mkfsTestVolume hand-writes the smallest on-disk layout Mount accepts: a
// superblock, one imap/zmap block each, four inode blocks and an empty,
// linkless root directory (ino 1), then mounts it. Tests use AddLink et al.
// from there on rather than poking bytes directly, the same way a real
// volume grows after the boot-block layout is laid down.
func mkfsTestVolume(t *testing.T, blockSize int) *Filesystem {
	t.Helper()

	const nInodes = 32
	const totalBlocks = 64

	dev := blockdev.NewRamDisk(totalBlocks * blockSize)
	_, err := FormatForTesting(dev, blockSize, nInodes)
	require.NoError(t, err)

	cache := inode.New()
	fs, err := Mount(dev, cache)
	require.NoError(t, err)

	require.NoError(t, fs.AddLink(fs.Root(), ".", RootIno))
	require.NoError(t, fs.AddLink(fs.Root(), "..", RootIno))

	return fs
}
