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

package interrupt

import (
	"github.com/libalis/mpstubs-gruppe-05-sub000/internal/cpu"
	"github.com/libalis/mpstubs-gruppe-05-sub000/internal/logging"
)

// Dispatcher ties the vector table, per-core LAPICs and the prologue/
// epilogue engine together, standing in for the low-level vector-table
// entry point spec.md §4.1 describes: save registers, call
// report(vector)->prologue(), signal EOI, relay if the prologue asked for
// an epilogue.
type Dispatcher struct {
	Plugbox *Plugbox
	Engine  *Engine
	lapics  []*cpu.LAPIC
}

// NewDispatcher wires a Plugbox and Engine to the per-core LAPICs used for
// end-of-interrupt signalling.
func NewDispatcher(plugbox *Plugbox, engine *Engine, lapics []*cpu.LAPIC) *Dispatcher {
	return &Dispatcher{Plugbox: plugbox, Engine: engine, lapics: lapics}
}

// Load installs the dispatcher as the active vector table for every core.
// On real hardware this writes IDT descriptors; the handler table itself
// is per-process state assigned via Plugbox.Assign, so Load here only logs
// readiness (spec.md §4.1: "the handler table is per-process state, the
// vector-table program is architectural").
func (d *Dispatcher) Load() {
	logging.Get().Info("interrupt vector table loaded", "vectors", NumVectors)
}

// Fire simulates the hardware delivering vector v to core. It is the entry
// point external interrupt sources (timer, IPIs, ATA, serial) call.
func (d *Dispatcher) Fire(core cpu.CoreID, v Vector) {
	h := d.Plugbox.Report(v)
	needsEpilogue := h.Prologue()
	if int(core) < len(d.lapics) {
		d.lapics[core].EOI()
	}
	if needsEpilogue {
		d.Engine.Relay(core, h)
	}
}
