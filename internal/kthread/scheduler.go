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

package kthread

import (
	"container/list"
	"sync"

	"github.com/libalis/mpstubs-gruppe-05-sub000/internal/cpu"
	"github.com/libalis/mpstubs-gruppe-05-sub000/internal/metrics"
)

// Room is the minimal shape Scheduler.Block needs from a waiting room,
// satisfied by waitroom.Room. Kept here (rather than importing package
// waitroom) so kthread has no dependency on it; waitroom depends on
// kthread for *Thread instead.
type Room interface {
	Enqueue(t *Thread)
}

// Scheduler is the single global FIFO ready queue plus per-core active/idle
// threads of spec.md §4.5. Every exported method must be called with the
// per-core prologue/epilogue guard already entered (spec.md: "all invoked
// under a guarded region"); Scheduler itself does not take that lock, to
// avoid a dependency on package interrupt.
type Scheduler struct {
	mu     sync.Mutex
	ready  list.List // of *Thread
	active []*Thread
	idle   []*Thread
	wakeCh []chan struct{}

	// DebugSafepoint, if set, is polled once per idle-loop iteration so a
	// parked core still honors a GDB stop-the-world request (spec.md §4.7
	// point 4). Wired from cmd/stubsctl, never imported directly: kthread
	// has no dependency on internal/gdbstub.
	DebugSafepoint func(core cpu.CoreID)
}

// NewScheduler returns a scheduler for n cores with no idle threads yet;
// SetIdle installs and starts each core's idle thread (normally running
// Scheduler.IdleLoop(core)).
func NewScheduler(n int) *Scheduler {
	s := &Scheduler{
		active: make([]*Thread, n),
		idle:   make([]*Thread, n),
		wakeCh: make([]chan struct{}, n),
	}
	for i := range s.wakeCh {
		s.wakeCh[i] = make(chan struct{}, 1)
	}
	return s
}

// SetIdle installs core's idle thread and makes it the initially active
// thread, mirroring Go(first) being used once per core at boot
// (spec.md §4.4): there is no outgoing thread to save, so we simply wake
// it.
func (s *Scheduler) SetIdle(core cpu.CoreID, idle *Thread) {
	s.mu.Lock()
	s.idle[core] = idle
	s.active[core] = idle
	s.mu.Unlock()
	idle.start()
	idle.setLocation(LocRunning)
	idle.wake()
}

func (s *Scheduler) poke(core cpu.CoreID) {
	select {
	case s.wakeCh[core] <- struct{}{}:
	default:
	}
}

func (s *Scheduler) pokeAllExcept(self cpu.CoreID) {
	for c := range s.wakeCh {
		if cpu.CoreID(c) != self {
			s.poke(cpu.CoreID(c))
		}
	}
}

// Ready appends t to the ready queue and pokes every core, the caller's own
// included, so a halted one can pick it up (the Go stand-in for sending a
// wake-up IPI -- see internal/cpu.IPIWakeup).
func (s *Scheduler) Ready(t *Thread) {
	s.mu.Lock()
	t.start()
	s.ready.PushBack(t)
	t.setLocation(LocReady)
	metrics.ReadyQueueDepth.Set(float64(s.ready.Len()))
	s.mu.Unlock()
	s.pokeAllExcept(-1)
}

// popReadyOrIdleLocked removes and returns the ready queue's head, or
// core's idle thread if the queue is empty. Caller holds s.mu.
func (s *Scheduler) popReadyOrIdleLocked(core cpu.CoreID) *Thread {
	if e := s.ready.Front(); e != nil {
		s.ready.Remove(e)
		metrics.ReadyQueueDepth.Set(float64(s.ready.Len()))
		return e.Value.(*Thread)
	}
	return s.idle[core]
}

// switchLocked performs the single point-of-transfer context switch
// (spec.md §4.4): wake next, then, unless cur is nil or being abandoned
// (Exit), park the caller's own goroutine until it is scheduled again.
// Caller holds s.mu; it is released before parking so other cores can
// make progress while this one is blocked.
func (s *Scheduler) switchLocked(core cpu.CoreID, cur, next *Thread, parkCur bool) {
	s.active[core] = next
	next.setLocation(LocRunning)
	s.mu.Unlock()

	next.wake()
	if parkCur && cur != nil {
		cur.park()
	}
}

// Resume yields the calling thread (the thread currently active on core)
// back into the scheduler: if it is not the idle thread and has not been
// killed, it is re-appended to the ready queue; the next thread (or idle)
// is then switched in.
func (s *Scheduler) Resume(core cpu.CoreID) {
	s.mu.Lock()
	cur := s.active[core]
	requeue := cur != s.idle[core] && !cur.Killed()
	if requeue {
		cur.start()
		s.ready.PushBack(cur)
		cur.setLocation(LocReady)
		metrics.ReadyQueueDepth.Set(float64(s.ready.Len()))
	}
	next := s.popReadyOrIdleLocked(core)
	s.switchLocked(core, cur, next, true)
}

// Block enqueues the calling thread into room and records the
// back-reference used by Kill, then switches to the next thread.
func (s *Scheduler) Block(core cpu.CoreID, room Room, ref RoomRef) {
	s.mu.Lock()
	cur := s.active[core]
	cur.setRoom(ref)
	cur.setLocation(LocWaiting)
	room.Enqueue(cur)
	next := s.popReadyOrIdleLocked(core)
	s.switchLocked(core, cur, next, true)
}

// Wakeup removes t from whatever waiting room it is in (the room's own
// Remove already does this before calling Wakeup) and makes it ready.
func (s *Scheduler) Wakeup(t *Thread) {
	t.clearRoom()
	s.Ready(t)
}

// Exit retires the calling thread without re-queueing it; its goroutine is
// abandoned once action() returns (spec.md: "the old stack is abandoned").
func (s *Scheduler) Exit(core cpu.CoreID) {
	s.mu.Lock()
	cur := s.active[core]
	cur.setLocation(LocTerminated)
	next := s.popReadyOrIdleLocked(core)
	s.switchLocked(core, cur, next, false)
}

// Kill sets t's kill flag and, depending on where t currently is, either
// detaches it from a waiting room, removes it from the ready queue, or (if
// it is running on another core) notifies that core so it re-checks the
// kill flag at its own next scheduler call -- our Go model's stand-in for
// the assassin IPI (spec.md §4.5/§5: a killed running thread "finishes its
// current non-yielding section and yields at the next scheduler call", so
// no forced preemption of the victim goroutine is required for the spec's
// observable guarantees to hold).
func (s *Scheduler) Kill(t *Thread) {
	t.Kill()

	if room := t.currentRoom(); room != nil {
		room.Remove(t)
		return
	}

	s.mu.Lock()
	removed := removeFromList(&s.ready, t)
	if removed {
		metrics.ReadyQueueDepth.Set(float64(s.ready.Len()))
	}
	var runningCore cpu.CoreID
	runningOn := false
	if !removed {
		for c, active := range s.active {
			if active == t {
				runningCore = cpu.CoreID(c)
				runningOn = true
				break
			}
		}
	}
	s.mu.Unlock()

	if runningOn {
		s.poke(runningCore) // assassin IPI: wake a halted peer so it observes the kill promptly
	}
}

func removeFromList(l *list.List, t *Thread) bool {
	for e := l.Front(); e != nil; e = e.Next() {
		if e.Value.(*Thread) == t {
			l.Remove(e)
			return true
		}
	}
	return false
}

// IdleLoop is the per-core idle thread action of spec.md §4.5: while the
// ready queue is empty it blocks on core's doorbell channel (our
// substitute for "sti; hlt"); otherwise it calls Resume.
func (s *Scheduler) IdleLoop(core cpu.CoreID) func() {
	return func() {
		for {
			if s.DebugSafepoint != nil {
				s.DebugSafepoint(core)
			}

			s.mu.Lock()
			empty := s.ready.Len() == 0
			s.mu.Unlock()

			if !empty {
				s.Resume(core)
				continue
			}

			<-s.wakeCh[core]
		}
	}
}

// ReadyLen reports the current ready-queue depth (used by tests and the
// §8 invariant probe).
func (s *Scheduler) ReadyLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready.Len()
}

// ActiveOn returns the thread currently active on core.
func (s *Scheduler) ActiveOn(core cpu.CoreID) *Thread {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active[core]
}
