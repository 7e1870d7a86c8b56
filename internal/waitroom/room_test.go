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

	"github.com/libalis/mpstubs-gruppe-05-sub000/internal/kthread"
)

// fakeScheduler records Wakeup calls in order, standing in for
// kthread.Scheduler so room/semaphore/bell tests don't need a full
// scheduler and a set of real running threads.
type fakeScheduler struct {
	woken []*kthread.Thread
}

func (f *fakeScheduler) Wakeup(t *kthread.Thread) {
	f.woken = append(f.woken, t)
}

func TestRoomFIFOPop(t *testing.T) {
	sched := &fakeScheduler{}
	r := NewRoom(sched)

	a := kthread.New(func() {})
	b := kthread.New(func() {})
	c := kthread.New(func() {})

	r.Enqueue(a)
	r.Enqueue(b)
	r.Enqueue(c)

	if got := r.Len(); got != 3 {
		t.Fatalf("Len = %d, want 3", got)
	}
	if r.Pop() != a {
		t.Fatalf("Pop did not return the longest-waiting thread first")
	}
	if r.Pop() != b {
		t.Fatalf("Pop did not return threads in FIFO order")
	}
	if got := r.Len(); got != 1 {
		t.Fatalf("Len after two pops = %d, want 1", got)
	}
}

func TestRoomPopEmptyReturnsNil(t *testing.T) {
	r := NewRoom(&fakeScheduler{})
	if r.Pop() != nil {
		t.Fatalf("Pop on an empty room returned non-nil")
	}
}

func TestRoomRemoveFromMiddleWakes(t *testing.T) {
	sched := &fakeScheduler{}
	r := NewRoom(sched)

	a := kthread.New(func() {})
	b := kthread.New(func() {})
	c := kthread.New(func() {})
	r.Enqueue(a)
	r.Enqueue(b)
	r.Enqueue(c)

	r.Remove(b)

	if got := r.Len(); got != 2 {
		t.Fatalf("Len after Remove = %d, want 2", got)
	}
	if len(sched.woken) != 1 || sched.woken[0] != b {
		t.Fatalf("woken = %v, want [b]", sched.woken)
	}
	// b must be gone, leaving a and c in original order.
	if r.Pop() != a || r.Pop() != c {
		t.Fatalf("Remove corrupted FIFO order of the remaining threads")
	}
}

func TestRoomWakeAllDrainsInOrder(t *testing.T) {
	sched := &fakeScheduler{}
	r := NewRoom(sched)

	a := kthread.New(func() {})
	b := kthread.New(func() {})
	r.Enqueue(a)
	r.Enqueue(b)

	r.WakeAll()

	if r.Len() != 0 {
		t.Fatalf("room not empty after WakeAll")
	}
	if len(sched.woken) != 2 || sched.woken[0] != a || sched.woken[1] != b {
		t.Fatalf("woken = %v, want [a b]", sched.woken)
	}
}
