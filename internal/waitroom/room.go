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

// Package waitroom implements the waiting room, semaphore and bell-ringer
// primitives of spec.md §4.6: FIFO blocking queues a thread can be
// Scheduler.Block()ed into and later woken from, in enqueue order.
package waitroom

import (
	"container/list"
	"sync"

	"github.com/libalis/mpstubs-gruppe-05-sub000/internal/kthread"
)

// Scheduler is the slice of *kthread.Scheduler a Room needs: enough to wake
// a thread it is removing.
type Scheduler interface {
	Wakeup(t *kthread.Thread)
}

// Room is the FIFO of blocked threads spec.md's Data Model describes. A
// thread records a back-reference to the room it is in; Remove clears it.
type Room struct {
	mu    sync.Mutex
	order list.List // of *kthread.Thread
	sched Scheduler
}

var _ kthread.RoomRef = (*Room)(nil)

// NewRoom returns an empty waiting room that wakes removed threads through
// sched.
func NewRoom(sched Scheduler) *Room {
	return &Room{sched: sched}
}

// Enqueue appends t to the back of the room (called by
// Scheduler.Block while the caller is being switched out).
func (r *Room) Enqueue(t *kthread.Thread) {
	r.mu.Lock()
	r.order.PushBack(t)
	r.mu.Unlock()
}

// Remove detaches t from the room (wherever it is in the FIFO -- Kill may
// remove a thread that is not at the front) and wakes it.
func (r *Room) Remove(t *kthread.Thread) {
	r.mu.Lock()
	for e := r.order.Front(); e != nil; e = e.Next() {
		if e.Value.(*kthread.Thread) == t {
			r.order.Remove(e)
			break
		}
	}
	r.mu.Unlock()
	r.sched.Wakeup(t)
}

// Pop removes and returns the longest-waiting thread, or nil if empty.
func (r *Room) Pop() *kthread.Thread {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.order.Front()
	if e == nil {
		return nil
	}
	r.order.Remove(e)
	return e.Value.(*kthread.Thread)
}

// Len reports the number of threads currently queued.
func (r *Room) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.order.Len()
}

// WakeAll wakes every queued thread in FIFO order and empties the room,
// the behaviour spec.md's Data Model requires "on destruction" -- callers
// invoke this explicitly (Go has no deterministic destructors) when a room
// is being torn down, e.g. unmounting a filesystem with pending waiters.
func (r *Room) WakeAll() {
	for {
		t := r.Pop()
		if t == nil {
			return
		}
		r.sched.Wakeup(t)
	}
}
