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

package gdbstub

import "testing"

func TestRegistersSizeIs536(t *testing.T) {
	if RegistersSize != 536 {
		t.Fatalf("RegistersSize = %d, want 536 (state.h's assert_size(Registers, 536))", RegistersSize)
	}
	if NumRegisters != 57 {
		t.Fatalf("NumRegisters = %d, want 57", NumRegisters)
	}
}

func TestRegistersHexRoundTrip(t *testing.T) {
	r := NewRegisters()
	r.SetRIP(0xdeadbeefcafe)
	hexStr := r.MarshalHex()

	r2 := NewRegisters()
	if err := r2.UnmarshalHex(hexStr); err != nil {
		t.Fatalf("UnmarshalHex: %v", err)
	}
	if r2.RIP() != 0xdeadbeefcafe {
		t.Fatalf("RIP after round trip = %#x, want %#x", r2.RIP(), 0xdeadbeefcafe)
	}
}

func TestRegistersHexRoundTripOne(t *testing.T) {
	r := NewRegisters()
	r.SetRIP(0x1234)
	encoded, err := r.MarshalHexOne(RegRIP)
	if err != nil {
		t.Fatalf("MarshalHexOne: %v", err)
	}

	r2 := NewRegisters()
	if err := r2.UnmarshalHexOne(RegRIP, encoded); err != nil {
		t.Fatalf("UnmarshalHexOne: %v", err)
	}
	if r2.RIP() != 0x1234 {
		t.Fatalf("RIP = %#x, want %#x", r2.RIP(), 0x1234)
	}
}

func TestRegistersOutOfRange(t *testing.T) {
	r := NewRegisters()
	if _, err := r.MarshalHexOne(NumRegisters); err == nil {
		t.Fatalf("MarshalHexOne(NumRegisters) succeeded, want an error")
	}
}

func TestSysContinueAndStepToggleTrapFlag(t *testing.T) {
	r := NewRegisters()
	r.SysStep()
	if binaryEFlags(r)&trapFlag == 0 {
		t.Fatalf("SysStep did not set the trap flag")
	}
	r.SysContinue()
	if binaryEFlags(r)&trapFlag != 0 {
		t.Fatalf("SysContinue did not clear the trap flag")
	}
}

func binaryEFlags(r *Registers) uint32 {
	b := r.rflagsBytes()
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
