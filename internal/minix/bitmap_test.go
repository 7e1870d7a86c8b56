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
	"golang.org/x/sys/unix"

	"github.com/libalis/mpstubs-gruppe-05-sub000/internal/blockdev"
	"github.com/libalis/mpstubs-gruppe-05-sub000/internal/errs"
)

func newTestBitmap(t *testing.T, blockSize int) *bitmap {
	t.Helper()
	dev := blockdev.NewRamDisk(blockSize * 2)
	require.NoError(t, dev.SetBlockSize(blockSize))
	return &bitmap{blocks: []*blockdev.Block{dev.Fix(0)}}
}

func TestBitmapAllocSkipsReservedBitZero(t *testing.T) {
	bm := newTestBitmap(t, 512)

	bit, err := bm.Alloc()
	require.NoError(t, err)
	assert.Equal(t, uint32(1), bit, "bit 0 is reserved; the first real allocation must be bit 1")
	assert.True(t, bm.Test(1))
	assert.False(t, bm.Test(0))
}

func TestBitmapAllocIsMonotonicUntilFreed(t *testing.T) {
	bm := newTestBitmap(t, 512)

	first, err := bm.Alloc()
	require.NoError(t, err)
	second, err := bm.Alloc()
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	bm.Free(first)
	assert.False(t, bm.Test(first))

	third, err := bm.Alloc()
	require.NoError(t, err)
	assert.Equal(t, first, third, "a freed bit must be reused before scanning further")
}

func TestBitmapAllocExhaustionReturnsENOSPC(t *testing.T) {
	bm := newTestBitmap(t, 512)

	total := len(bm.blocks[0].Data) * 8
	for i := 0; i < total-1; i++ { // -1 for the reserved bit 0
		_, err := bm.Alloc()
		require.NoError(t, err)
	}

	_, err := bm.Alloc()
	require.ErrorIs(t, err, errs.ENOSPC)
	// Cross-check errs' negative-errno convention against the real errno
	// table the teacher stack already depends on (golang.org/x/sys/unix),
	// rather than hand-maintaining the numbering independently.
	assert.EqualValues(t, -int(unix.ENOSPC), int(errs.ENOSPC))
}
