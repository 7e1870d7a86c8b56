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

package waitroom

import (
	"sync"

	"github.com/libalis/mpstubs-gruppe-05-sub000/internal/cpu"
	"github.com/libalis/mpstubs-gruppe-05-sub000/internal/kthread"
)

// Blocker is the scheduler surface Semaphore.P needs to suspend the calling
// thread.
type Blocker interface {
	Scheduler
	Block(core cpu.CoreID, room kthread.Room, ref kthread.RoomRef)
}

// Semaphore is the non-negative counter plus waiting room of spec.md's
// Data Model. Invariant: counter > 0 implies the room is empty.
type Semaphore struct {
	mu      sync.Mutex
	counter int
	room    *Room
	sched   Blocker
}

// NewSemaphore returns a semaphore initialized to count, backed by sched
// for blocking/waking.
func NewSemaphore(count int, sched Blocker) *Semaphore {
	return &Semaphore{counter: count, room: NewRoom(sched), sched: sched}
}

// P decrements the counter, blocking the calling thread (running on core)
// if it would go negative.
func (s *Semaphore) P(core cpu.CoreID, self *kthread.Thread) {
	s.mu.Lock()
	if s.counter > 0 {
		s.counter--
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	// Block enqueues `self` into s.room and switches away; by the time this
	// call returns, self has been woken by a matching V (or killed, per
	// Scheduler.Kill, in which case it was removed from s.room first).
	s.sched.Block(core, s.room, s.room)
}

// V increments the counter, waking the longest-waiting thread if any
// (spec.md §5: "Semaphore v wakes the longest-waiting thread").
func (s *Semaphore) V() {
	s.mu.Lock()
	if t := s.room.Pop(); t != nil {
		s.mu.Unlock()
		s.sched.Wakeup(t)
		return
	}
	s.counter++
	s.mu.Unlock()
}

// Count returns the current counter value, for tests asserting the
// invariant directly.
func (s *Semaphore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counter
}

// Waiting returns the number of threads currently blocked in P.
func (s *Semaphore) Waiting() int {
	return s.room.Len()
}
