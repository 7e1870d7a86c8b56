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
	"github.com/libalis/mpstubs-gruppe-05-sub000/internal/metrics"
	"github.com/libalis/mpstubs-gruppe-05-sub000/internal/sync2"
)

// Engine is the prologue/epilogue engine of spec.md §4.3: level 0
// (preemptible normal code) and level 1 (prologue) are per-core; the
// epilogue level is mutually exclusive with level 0 on the same core via
// CoreLock, and globally mutually exclusive across cores via
// BigKernelLock.
type Engine struct {
	big   sync2.TicketLock
	cores []coreState
}

type coreState struct {
	lock  sync2.TicketLock
	gates *GateQueue
}

// NewEngine returns an engine for n cores, each with its own gate queue.
func NewEngine(n int) *Engine {
	e := &Engine{cores: make([]coreState, n)}
	for i := range e.cores {
		e.cores[i].gates = NewGateQueue()
	}
	return e
}

var _ sync2.EnterLeaver = (*coreEngine)(nil)

// coreEngine binds an Engine to one core so callers get the Enter/Leave
// shape sync2.Guarded expects.
type coreEngine struct {
	e    *Engine
	core cpu.CoreID
}

// Bind returns the per-core view of e used by normal-code call sites
// (spec.md: "enter() — called by normal code before touching shared
// state").
func (e *Engine) Bind(core cpu.CoreID) sync2.EnterLeaver {
	return &coreEngine{e: e, core: core}
}

func (c *coreEngine) Enter() { c.e.enter(c.core) }
func (c *coreEngine) Leave() { c.e.leave(c.core) }

func (e *Engine) enter(core cpu.CoreID) {
	e.cores[core].lock.Lock()
}

// leave drains the core's gate queue, running each handler's epilogue
// under the big kernel lock, then releases CoreLock. It loops until the
// queue is empty rather than a single pass, since a prologue may relay a
// new handler onto this core's queue while we are draining (spec.md: "no
// epilogue runs with interrupts disabled... prologues may therefore
// interrupt epilogues").
func (e *Engine) leave(core cpu.CoreID) {
	e.drain(core)
	e.cores[core].lock.Unlock()
}

func (e *Engine) drain(core cpu.CoreID) {
	for {
		handlers := e.cores[core].gates.PopAll()
		if handlers == nil {
			return
		}
		for _, h := range handlers {
			e.big.Lock()
			metrics.EpiloguesRunning.Inc()
			h.Epilogue()
			metrics.EpiloguesRunning.Dec()
			e.big.Unlock()
		}
	}
}

// Relay is invoked from the interrupt tail when a prologue requested an
// epilogue (spec.md §4.3). It pushes handler onto core's gate queue; if
// CoreLock is free, it runs enter()+leave() immediately, otherwise the
// active level-0 path will drain the queue itself when it eventually calls
// Leave.
func (e *Engine) Relay(core cpu.CoreID, handler Handler) {
	e.cores[core].gates.Push(handler)
	if e.cores[core].lock.TryLock() {
		e.drain(core)
		e.cores[core].lock.Unlock()
	}
}
