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

import (
	"testing"
	"time"

	"golang.org/x/net/context"

	"github.com/libalis/mpstubs-gruppe-05-sub000/internal/cpu"
)

func newTestStub(t *testing.T, cores int) (*Stub, Transport) {
	t.Helper()
	topo, err := cpu.New(cores)
	if err != nil {
		t.Fatalf("cpu.New: %v", err)
	}
	lapics := make([]*cpu.LAPIC, cores)
	for i := range lapics {
		lapics[i] = cpu.NewLAPIC(cpu.CoreID(i))
	}
	client, server := NewPipePair()
	return New(context.Background(), server, topo, lapics, NewFlatMemory(4096), false), client
}

// driveClient sends cmd as an RSP packet and returns the host's reply data
// (without the leading '$' or trailing checksum), acking it in turn.
func driveClient(t *testing.T, framer *Framer, cmd string) string {
	t.Helper()
	if err := framer.SendPacket([]byte(cmd)); err != nil {
		t.Fatalf("SendPacket(%q): %v", cmd, err)
	}
	reply, err := framer.ReceivePacket()
	if err != nil {
		t.Fatalf("ReceivePacket after %q: %v", cmd, err)
	}
	return string(reply)
}

// sendContinue sends "c", which ends the monitor loop without a reply
// packet (spec.md §4.7 point 6: "case 'c': sysContinue(); return").
func sendContinue(t *testing.T, framer *Framer) {
	t.Helper()
	if err := framer.SendPacket([]byte("c")); err != nil {
		t.Fatalf("SendPacket(\"c\"): %v", err)
	}
}

func TestStubHandlesQuerySequence(t *testing.T) {
	stub, client := newTestStub(t, 2)
	clientFramer := NewFramer(client, false)

	trapDone := make(chan struct{})
	go func() {
		stub.Trap(0, 3, NewRegisters())
		close(trapDone)
	}()

	// handle() unconditionally opens with a signal packet (spec.md §4.7,
	// matching original_source's unconditional sendSignalPacket(...,0)).
	if sig, err := clientFramer.ReceivePacket(); err != nil || string(sig) != "S00" {
		t.Fatalf("initial signal packet = %q, err %v, want \"S00\"", sig, err)
	}

	if got := driveClient(t, clientFramer, "qfThreadInfo"); got != "m1,2" {
		t.Fatalf("qfThreadInfo = %q, want %q", got, "m1,2")
	}
	if got := driveClient(t, clientFramer, "qsThreadInfo"); got != "l" {
		t.Fatalf("qsThreadInfo = %q, want %q", got, "l")
	}
	if got := driveClient(t, clientFramer, "qC"); got != "QC1" {
		t.Fatalf("qC = %q, want %q", got, "QC1")
	}

	sendContinue(t, clientFramer)

	select {
	case <-trapDone:
	case <-time.After(time.Second):
		t.Fatalf("Trap did not return after a continue command")
	}
}

func TestStubReadWriteRegisters(t *testing.T) {
	stub, client := newTestStub(t, 1)
	clientFramer := NewFramer(client, false)

	go stub.Trap(0, 3, NewRegisters())
	if _, err := clientFramer.ReceivePacket(); err != nil {
		t.Fatalf("initial signal packet: %v", err)
	}

	allRegs := driveClient(t, clientFramer, "g")
	if len(allRegs) != RegistersSize*2 {
		t.Fatalf("g reply length = %d, want %d", len(allRegs), RegistersSize*2)
	}

	// Write RIP (register 16) via P, then read it back via p.
	if got := driveClient(t, clientFramer, "P10=efbeadde00000000"); got != "OK" {
		t.Fatalf("P10=... = %q, want OK", got)
	}
	if got := driveClient(t, clientFramer, "p10"); got != "efbeadde00000000" {
		t.Fatalf("p10 = %q, want %q", got, "efbeadde00000000")
	}

	sendContinue(t, clientFramer)
}

func TestStubMemoryReadWrite(t *testing.T) {
	stub, client := newTestStub(t, 1)
	clientFramer := NewFramer(client, false)

	go stub.Trap(0, 3, NewRegisters())
	if _, err := clientFramer.ReceivePacket(); err != nil {
		t.Fatalf("initial signal packet: %v", err)
	}

	if got := driveClient(t, clientFramer, "M10,4:deadbeef"); got != "OK" {
		t.Fatalf("M10,4:... = %q, want OK", got)
	}
	if got := driveClient(t, clientFramer, "m10,4"); got != "deadbeef" {
		t.Fatalf("m10,4 = %q, want %q", got, "deadbeef")
	}

	sendContinue(t, clientFramer)
}

func TestStubUnknownCommandReturnsEmptyPacket(t *testing.T) {
	stub, client := newTestStub(t, 1)
	clientFramer := NewFramer(client, false)

	go stub.Trap(0, 3, NewRegisters())
	if _, err := clientFramer.ReceivePacket(); err != nil {
		t.Fatalf("initial signal packet: %v", err)
	}

	if got := driveClient(t, clientFramer, "z"); got != "" {
		t.Fatalf("unknown command reply = %q, want empty", got)
	}

	sendContinue(t, clientFramer)
}
