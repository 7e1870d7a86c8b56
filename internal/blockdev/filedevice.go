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

package blockdev

import (
	"os"
	"sync"

	"github.com/libalis/mpstubs-gruppe-05-sub000/internal/errs"
)

// FileDevice backs the block device with a regular host file, the way
// original_source's fs/tool/fs_host.cc lets the reference kernel mount a
// filesystem image living on the host rather than in simulated RAM or on a
// simulated ATA drive. It is read with os.File.ReadAt/WriteAt rather than
// the sequential Seek+Read/Write pairing fs_host.cc uses, since Go's
// pread/pwrite-style calls let Fix/Unfix stay free of a shared file
// offset.
type FileDevice struct {
	mu        sync.Mutex
	f         *os.File
	blockSize int
	shift     uint
}

// OpenFileDevice opens (or creates, if create is true) path as a block
// device. The file's size must already be a multiple of the block size
// once SetBlockSize is called.
func OpenFileDevice(path string, create bool) (*FileDevice, error) {
	flag := os.O_RDWR
	if create {
		flag |= os.O_CREATE
	}
	f, err := os.OpenFile(path, flag, 0644)
	if err != nil {
		return nil, err
	}
	d := &FileDevice{f: f}
	if err := d.SetBlockSize(512); err != nil {
		f.Close()
		return nil, err
	}
	return d, nil
}

// Truncate resizes the backing file to blockCount blocks, for image
// creation (mirrors fs_host.cc's fixed-size image allocation).
func (d *FileDevice) Truncate(blockCount uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.f.Truncate(int64(blockCount) * int64(d.blockSize))
}

func (d *FileDevice) SetBlockSize(n int) error {
	if err := checkBlockSize(n); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.blockSize = n
	d.shift = log2(n)
	return nil
}

func (d *FileDevice) BlockSize() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.blockSize
}

func (d *FileDevice) BlockCount() uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	info, err := d.f.Stat()
	if err != nil || d.blockSize == 0 {
		return 0
	}
	return uint32(info.Size() / int64(d.blockSize))
}

func (d *FileDevice) Fix(blockNumber uint32) *Block {
	d.mu.Lock()
	defer d.mu.Unlock()

	buf := make([]byte, d.blockSize)
	off := int64(blockNumber) << d.shift
	if _, err := d.f.ReadAt(buf, off); err != nil {
		return &Block{Device: d, BlockNumber: blockNumber, err: errs.EIO}
	}
	return &Block{Device: d, BlockNumber: blockNumber, Data: buf}
}

func (d *FileDevice) Unfix(b *Block) {
	if b.dirty {
		d.writeBack(b)
	}
}

func (d *FileDevice) SyncOne(b *Block) {
	if b.dirty {
		d.writeBack(b)
	}
}

// Sync flushes the underlying host file to stable storage.
func (d *FileDevice) Sync() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.f.Sync()
}

func (d *FileDevice) writeBack(b *Block) {
	d.mu.Lock()
	defer d.mu.Unlock()
	off := int64(b.BlockNumber) << d.shift
	if _, err := d.f.WriteAt(b.Data, off); err != nil {
		b.err = errs.EIO
		return
	}
	b.dirty = false
}

// Close releases the underlying host file handle.
func (d *FileDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.f.Close()
}
