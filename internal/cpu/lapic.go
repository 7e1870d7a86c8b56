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

package cpu

import "sync"

// IPI is the set of inter-processor interrupt vectors the scheduler and GDB
// stub rely on (spec.md §4.5, §4.7). These are logical kinds only: SendIPI
// hands the kind straight to the delivery function, and no vector number
// is assigned to them.
type IPI int

const (
	IPIWakeup IPI = iota
	IPIAssassin
	IPIStop
)

// LAPIC models the fields of the local interrupt controller spec.md §6
// names: identification, EOI, ICR, destination-format, logical-destination,
// task-priority, spurious-vector and timer registers.
type LAPIC struct {
	mu sync.Mutex

	id                 CoreID
	taskPriority       uint32
	spuriousVector     uint32
	timerLVT           uint32
	timerInitialCount  uint32
	timerCurrentCount  uint32
	destinationFormat  uint32
	logicalDestination uint32

	// deliver receives (target core, ipi kind) when SendIPI is called;
	// gdbstub.New registers a handler here instead of this package knowing
	// about it (avoiding an import cycle with internal/gdbstub). The
	// scheduler does not register one.
	deliver func(target CoreID, kind IPI)
}

// NewLAPIC returns the LAPIC register file for core id.
func NewLAPIC(id CoreID) *LAPIC {
	return &LAPIC{id: id, spuriousVector: 0xFF}
}

// ID returns the controller's local core id register.
func (l *LAPIC) ID() CoreID { return l.id }

// SetDeliveryFunc installs the callback used to deliver IPIs raised through
// this controller. Called by gdbstub.New.
func (l *LAPIC) SetDeliveryFunc(f func(target CoreID, kind IPI)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.deliver = f
}

// SendIPI writes the ICR, which on real hardware triggers delivery; here it
// invokes the registered delivery function synchronously.
func (l *LAPIC) SendIPI(target CoreID, kind IPI) {
	l.mu.Lock()
	deliver := l.deliver
	l.mu.Unlock()
	if deliver != nil {
		deliver(target, kind)
	}
}

// EOI signals end-of-interrupt to the local controller (spec.md §4.1: the
// low-level vector handler does this after report(vector)->prologue()).
func (l *LAPIC) EOI() {}

// SetTaskPriority / TaskPriority access the TPR register.
func (l *LAPIC) SetTaskPriority(p uint32) {
	l.mu.Lock()
	l.taskPriority = p
	l.mu.Unlock()
}

func (l *LAPIC) TaskPriority() uint32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.taskPriority
}

// IOAPIC models the index/window register pair and 24 redirection entries
// spec.md §6 describes.
type IOAPIC struct {
	mu      sync.Mutex
	entries [24]uint64
	selectR uint32
}

// NewIOAPIC returns a freshly masked IOAPIC (all redirection entries
// masked, matching power-on state).
func NewIOAPIC() *IOAPIC {
	a := &IOAPIC{}
	for i := range a.entries {
		a.entries[i] = 1 << 16 // mask bit
	}
	return a
}

// Select writes the index register.
func (a *IOAPIC) Select(index uint32) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.selectR = index
}

// Write writes the window register at the currently selected index.
func (a *IOAPIC) Write(value uint32) {
	a.mu.Lock()
	defer a.mu.Unlock()
	entry := a.selectR / 2
	if int(entry) >= len(a.entries) {
		return
	}
	if a.selectR%2 == 0 {
		a.entries[entry] = a.entries[entry]&^0xFFFFFFFF | uint64(value)
	} else {
		a.entries[entry] = a.entries[entry]&0xFFFFFFFF | uint64(value)<<32
	}
}

// Read reads the window register at the currently selected index.
func (a *IOAPIC) Read() uint32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	entry := a.selectR / 2
	if int(entry) >= len(a.entries) {
		return 0
	}
	if a.selectR%2 == 0 {
		return uint32(a.entries[entry])
	}
	return uint32(a.entries[entry] >> 32)
}

// Redirect sets redirection table entry irq (0..23) to route to vector,
// unmasked.
func (a *IOAPIC) Redirect(irq int, vector uint8) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if irq < 0 || irq >= len(a.entries) {
		return
	}
	a.entries[irq] = uint64(vector) // mask bit (1<<16) cleared: unmasked
}
