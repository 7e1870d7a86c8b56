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

// Package interrupt implements the two-stage interrupt discipline of
// spec.md §4.1/§4.3: a 256-vector dispatch table, per-core gate queues, and
// the prologue/epilogue engine that keeps at most one epilogue running
// system-wide. It is the Go-native analogue of the teacher's request
// dispatch loop (connection.go's Conn.ReadRequest/handleFuseRequest):
// a fixed table maps an identifier to a handler object, and incoming
// events are routed through it one at a time.
package interrupt

import (
	"github.com/libalis/mpstubs-gruppe-05-sub000/internal/cpu"
	"github.com/libalis/mpstubs-gruppe-05-sub000/internal/logging"
)

// Handler is the interrupt gate object spec.md's Data Model names:
// Prologue runs with interrupts disabled on the core that took the trap and
// reports whether an epilogue should be scheduled; Epilogue runs later,
// system-wide mutually exclusive with every other epilogue.
type Handler interface {
	Prologue() bool
	Epilogue()
}

// NumVectors is the size of the vector table (spec.md §4.1: "0..255").
const NumVectors = 256

// Vector is an interrupt vector number.
type Vector uint8

// HandlerFunc lets ordinary functions satisfy Handler for handlers whose
// prologue has no further epilogue work, such as the wake-up IPI
// (spec.md §4.5: "empty prologue returning false").
type HandlerFunc struct {
	PrologueFn func() bool
	EpilogueFn func()
}

func (h HandlerFunc) Prologue() bool {
	if h.PrologueFn == nil {
		return false
	}
	return h.PrologueFn()
}

func (h HandlerFunc) Epilogue() {
	if h.EpilogueFn != nil {
		h.EpilogueFn()
	}
}

// panicHandler is the sentinel installed in every unassigned vector slot
// (spec.md §4.1). Its prologue logs and halts the current core permanently;
// real hardware cannot return from this, so it never schedules an epilogue.
type panicHandler struct {
	topology *cpu.Topology
	core     cpu.CoreID
	reason   string
}

// NewPanicHandler returns a handler that halts core id with reason when
// it fires, used both as the default vector-table entry and directly by
// assertion-failure call sites (spec.md §7: programmer-bug class).
func NewPanicHandler(topology *cpu.Topology, id cpu.CoreID, reason string) Handler {
	return &panicHandler{topology: topology, core: id, reason: reason}
}

func (p *panicHandler) Prologue() bool {
	logging.Core(int(p.core)).Error("kernel panic: core halted", "reason", p.reason)
	p.topology.Halt(p.core)
	return false
}

func (p *panicHandler) Epilogue() {}
