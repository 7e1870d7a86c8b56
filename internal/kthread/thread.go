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

// Package kthread implements the cooperative thread abstraction and
// scheduler of spec.md §4.4/§4.5. A Thread's "stack" is a parked goroutine:
// PrepareContext/Kickoff/ContextSwitch (machine/context.cc in
// original_source) become a goroutine blocked on a condition variable until
// the scheduler wakes it, which preserves the single-point-of-transfer and
// non-preemptive-yield-point discipline the spec tests (§5, §8) without
// hand-written stack-pointer assembly.
package kthread

import (
	"sync"
	"sync/atomic"
)

// Location records which of the four states spec.md's Thread invariant
// names the thread is currently in.
type Location int32

const (
	LocNone Location = iota
	LocReady
	LocWaiting
	LocRunning
	LocTerminated
)

// RoomRef is the back-reference a waiting room implements so Scheduler.Kill
// can detach a blocked thread without kthread importing package waitroom
// (which in turn needs *Thread).
type RoomRef interface {
	Remove(t *Thread)
}

// Thread is the cooperative thread of spec.md's Data Model: a unique id, a
// kill flag, and membership in exactly one of {ready queue, waiting room,
// running, terminated}.
type Thread struct {
	ID uint64

	killFlag atomic.Bool
	loc      atomic.Int32

	mu       sync.Mutex
	room     RoomRef // GUARDED_BY(mu); set while loc == LocWaiting
	cond     *sync.Cond
	runnable bool // GUARDED_BY(mu): the parked goroutine may proceed

	action  func()
	done    chan struct{}
	started sync.Once
}

var nextID atomic.Uint64

// New allocates a thread that will invoke action once the scheduler first
// resumes it (the Kickoff trampoline of spec.md §4.4). If action returns
// without calling Scheduler.Exit, its goroutine ends and Done is closed;
// nothing detects this, logs it or halts the core.
func New(action func()) *Thread {
	t := &Thread{
		ID:     nextID.Add(1),
		action: action,
		done:   make(chan struct{}),
	}
	t.cond = sync.NewCond(&t.mu)
	t.loc.Store(int32(LocNone))
	return t
}

// Kill sets the kill flag (spec.md §4.5: "kill" is the only cancellation
// channel).
func (t *Thread) Kill() { t.killFlag.Store(true) }

// Killed reports whether Kill has been called on t.
func (t *Thread) Killed() bool { return t.killFlag.Load() }

// Location returns the thread's current queue-membership state.
func (t *Thread) Location() Location { return Location(t.loc.Load()) }

func (t *Thread) setLocation(l Location) { t.loc.Store(int32(l)) }

// setRoom / room back-reference bookkeeping, cleared by the waiting room's
// Remove (spec.md: "remove clears it").
func (t *Thread) setRoom(r RoomRef) {
	t.mu.Lock()
	t.room = r
	t.mu.Unlock()
}

func (t *Thread) clearRoom() {
	t.mu.Lock()
	t.room = nil
	t.mu.Unlock()
}

func (t *Thread) currentRoom() RoomRef {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.room
}

// start launches the backing goroutine exactly once. It immediately parks
// until the scheduler marks it runnable -- the Go analogue of
// prepareContext seeding a stack that will not actually execute until the
// first context switch targets it. Safe to call repeatedly; only the first
// call has an effect.
func (t *Thread) start() {
	t.started.Do(func() {
		go func() {
			t.park() // wait for the first context switch into this thread.

			defer close(t.done)
			defer func() {
				if r := recover(); r != nil {
					panic(r) // programmer-bug class (spec.md §7): propagate, halting the core.
				}
			}()
			t.action()
		}()
	})
}

// park suspends the calling goroutine -- which must be this thread's own
// backing goroutine -- until a subsequent wake. This is both how a new
// thread waits to be scheduled in for the first time and how a running
// thread is switched out: ContextSwitch's "save state, wait to be resumed"
// half (spec.md §4.4).
func (t *Thread) park() {
	t.mu.Lock()
	for !t.runnable {
		t.cond.Wait()
	}
	t.runnable = false
	t.mu.Unlock()
}

// wake marks the thread runnable and signals its goroutine to proceed; the
// caller is the scheduler performing a context switch into t. This is
// ContextSwitch's "load state, resume" half.
func (t *Thread) wake() {
	t.mu.Lock()
	t.runnable = true
	t.cond.Signal()
	t.mu.Unlock()
}

// Done returns a channel closed when the thread's action has returned.
func (t *Thread) Done() <-chan struct{} { return t.done }
