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
	"testing"

	"github.com/libalis/mpstubs-gruppe-05-sub000/internal/cpu"
	"github.com/libalis/mpstubs-gruppe-05-sub000/internal/kthread"
)

// fakeBlocker is a Blocker that records Block calls instead of performing a
// real context switch, enqueuing the calling thread into room the way
// Scheduler.Block would.
type fakeBlocker struct {
	fakeScheduler
	blocked []*kthread.Thread
}

func (f *fakeBlocker) Block(core cpu.CoreID, room kthread.Room, ref kthread.RoomRef) {
	t := kthread.New(func() {})
	f.blocked = append(f.blocked, t)
	room.Enqueue(t)
}

func TestSemaphorePNonBlockingWhenPositive(t *testing.T) {
	sched := &fakeBlocker{}
	s := NewSemaphore(2, sched)

	s.P(0, kthread.New(func() {}))
	if got := s.Count(); got != 1 {
		t.Fatalf("Count after one P = %d, want 1", got)
	}
	if len(sched.blocked) != 0 {
		t.Fatalf("P blocked even though the counter was positive")
	}
}

func TestSemaphorePBlocksWhenZero(t *testing.T) {
	sched := &fakeBlocker{}
	s := NewSemaphore(0, sched)

	s.P(0, kthread.New(func() {}))
	if got := s.Waiting(); got != 1 {
		t.Fatalf("Waiting = %d, want 1", got)
	}
	if len(sched.blocked) != 1 {
		t.Fatalf("P did not block when the counter was zero")
	}
}

func TestSemaphoreVWakesOverIncrementing(t *testing.T) {
	sched := &fakeBlocker{}
	s := NewSemaphore(0, sched)

	s.P(0, kthread.New(func() {})) // counter stays 0, one waiter queued

	s.V()
	if got := s.Waiting(); got != 0 {
		t.Fatalf("Waiting after V = %d, want 0", got)
	}
	if got := s.Count(); got != 0 {
		t.Fatalf("Count after V woke a waiter = %d, want 0 (V should not also increment)", got)
	}
	if len(sched.woken) != 1 {
		t.Fatalf("V did not wake the waiting thread")
	}
}

func TestSemaphoreVIncrementsWhenNoWaiters(t *testing.T) {
	sched := &fakeBlocker{}
	s := NewSemaphore(0, sched)

	s.V()
	if got := s.Count(); got != 1 {
		t.Fatalf("Count after V with no waiters = %d, want 1", got)
	}
}
