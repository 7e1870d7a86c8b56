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
	"sync"
	"time"

	"github.com/libalis/mpstubs-gruppe-05-sub000/internal/cpu"
	"github.com/libalis/mpstubs-gruppe-05-sub000/internal/errs"
)

// Bus identifies one of the four 28-bit-LBA PIO port ranges spec.md §6
// names.
type Bus int

const (
	BusPrimary Bus = iota
	BusSecondary
	BusTertiary
	BusQuaternary
)

// PortBase returns the I/O-port base address for bus, matching
// spec.md §6 (0x1F0, 0x170, 0x1E8, 0x168).
func (b Bus) PortBase() uint16 {
	switch b {
	case BusPrimary:
		return 0x1F0
	case BusSecondary:
		return 0x170
	case BusTertiary:
		return 0x1E8
	default:
		return 0x168
	}
}

// AtaDisk simulates a 28-bit-LBA PIO ATA drive: a busy/DRQ register pair
// polled between sector transfers, backed by an in-memory sector store so
// the polling discipline (spec.md §4.8, §8: "single-sector LBA requests...
// eight-sector operations under the hood") is exercised without real
// hardware.
type AtaDisk struct {
	mu        sync.Mutex
	bus       Bus
	slave     bool
	sectors   [][512]byte
	blockSize int
	shift     uint

	busy, drq bool
	latency   time.Duration
}

const sectorSize = 512

// NewAtaDisk returns a simulated drive with sectorCount 512-byte sectors.
func NewAtaDisk(bus Bus, slave bool, sectorCount int) *AtaDisk {
	d := &AtaDisk{
		bus:     bus,
		slave:   slave,
		sectors: make([][512]byte, sectorCount),
		latency: 50 * time.Microsecond,
	}
	d.SetBlockSize(512)
	return d
}

func (d *AtaDisk) SetBlockSize(n int) error {
	if err := checkBlockSize(n); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.blockSize = n
	d.shift = log2(n)
	return nil
}

func (d *AtaDisk) BlockSize() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.blockSize
}

func (d *AtaDisk) BlockCount() uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.blockSize == 0 {
		return 0
	}
	return uint32(len(d.sectors) * sectorSize / d.blockSize)
}

// sectorsPerBlock returns how many 512-byte sectors one logical block
// spans -- 1 for a 512-byte blocksize, up to 8 for 4096 (spec.md §8).
func (d *AtaDisk) sectorsPerBlock() int { return d.blockSize / sectorSize }

// pollBusyDRQ simulates waiting for the drive's status register to clear
// BSY and set DRQ, the PIO handshake spec.md §4.8 describes, using
// cpu.PITDelay's politely-yielding busy wait instead of a real status-port
// poll.
func (d *AtaDisk) pollBusyDRQ() {
	d.busy = true
	d.drq = false
	cpu.PITDelay(d.latency)
	d.busy = false
	d.drq = true
}

func (d *AtaDisk) Fix(blockNumber uint32) *Block {
	d.mu.Lock()
	defer d.mu.Unlock()

	spb := d.sectorsPerBlock()
	firstSector := int(blockNumber) * spb
	if firstSector < 0 || firstSector+spb > len(d.sectors) {
		return &Block{Device: d, BlockNumber: blockNumber, err: errs.EIO}
	}

	out := make([]byte, d.blockSize)
	for i := 0; i < spb; i++ {
		d.pollBusyDRQ() // one READ SECTORS PIO transfer per 512-byte sector
		copy(out[i*sectorSize:], d.sectors[firstSector+i][:])
	}
	return &Block{Device: d, BlockNumber: blockNumber, Data: out}
}

func (d *AtaDisk) Unfix(b *Block) {
	if b.dirty {
		d.writeBack(b)
	}
}

func (d *AtaDisk) SyncOne(b *Block) {
	if b.dirty {
		d.writeBack(b)
	}
}

func (d *AtaDisk) Sync() {}

func (d *AtaDisk) writeBack(b *Block) {
	d.mu.Lock()
	defer d.mu.Unlock()

	spb := d.sectorsPerBlock()
	firstSector := int(b.BlockNumber) * spb
	if firstSector < 0 || firstSector+spb > len(d.sectors) {
		b.err = errs.EIO
		return
	}
	for i := 0; i < spb; i++ {
		d.pollBusyDRQ() // one WRITE SECTORS PIO transfer per 512-byte sector
		copy(d.sectors[firstSector+i][:], b.Data[i*sectorSize:(i+1)*sectorSize])
	}
	b.dirty = false
}
