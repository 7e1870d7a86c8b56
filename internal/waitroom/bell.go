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
	"container/list"
	"sync"

	"github.com/jacobsa/timeutil"

	"github.com/libalis/mpstubs-gruppe-05-sub000/internal/cpu"
	"github.com/libalis/mpstubs-gruppe-05-sub000/internal/kthread"
	"github.com/libalis/mpstubs-gruppe-05-sub000/internal/metrics"
)

// Bell is a waiting room with a deadline (spec.md's Data Model): delayMS
// is the node's delta relative to its predecessor in the BellRinger's
// delta queue, not its absolute deadline.
type Bell struct {
	Room    *Room
	delayMS int
}

// NewBell returns a bell backed by its own waiting room.
func NewBell(sched Scheduler) *Bell {
	return &Bell{Room: NewRoom(sched)}
}

// Sleep submits b to ringer for ms milliseconds and blocks the calling
// thread in b's room (spec.md §4.6: "Bell::sleep(ms)").
func (b *Bell) Sleep(ringer *BellRinger, core cpu.CoreID, self *kthread.Thread, sched Blocker, ms int) {
	ringer.Job(b, ms)
	sched.Block(core, b.Room, b.Room)
}

// BellRinger is the process-wide delta queue of spec.md §4.6: each node's
// delay is relative to the previous node, so the head always expires
// first and the sum of deltas from head to any node is that node's
// absolute remaining time.
type BellRinger struct {
	mu    sync.Mutex
	order list.List // of *Bell
	clock timeutil.Clock
}

// NewBellRinger returns an empty delta queue. clock is used only to stamp
// log lines and tests that want deterministic timestamps; the countdown
// itself is tick-driven (ms granularity) via Check, not wall-clock.
func NewBellRinger(clock timeutil.Clock) *BellRinger {
	return &BellRinger{clock: clock}
}

// Job inserts bell into the queue so it rings after ms milliseconds,
// walking the queue subtracting each node's delta from the residual time
// until the cumulative delta would exceed it, then splicing in at that
// point with delta equal to what's left, and decrementing the successor's
// delta by that same residual so the total-ordering invariant holds
// (spec.md §4.6, scenario 3 in §8).
func (r *BellRinger) Job(bell *Bell, ms int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	bell.delayMS = ms
	residual := ms

	for e := r.order.Front(); e != nil; e = e.Next() {
		node := e.Value.(*Bell)
		if residual < node.delayMS {
			node.delayMS -= residual
			bell.delayMS = residual
			r.order.InsertBefore(bell, e)
			r.updateDepth()
			return
		}
		residual -= node.delayMS
	}

	bell.delayMS = residual
	r.order.PushBack(bell)
	r.updateDepth()
}

// Cancel removes bell from the queue, folding its delta into the
// successor's so the invariant is preserved.
func (r *BellRinger) Cancel(bell *Bell) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for e := r.order.Front(); e != nil; e = e.Next() {
		if e.Value.(*Bell) != bell {
			continue
		}
		if next := e.Next(); next != nil {
			next.Value.(*Bell).delayMS += bell.delayMS
		}
		r.order.Remove(e)
		r.updateDepth()
		return
	}
}

// Check is called once per timer-interrupt tick: it decrements the head's
// delta by one, and while the head's delta has reached zero, dequeues it
// and rings every waiter in its room.
func (r *BellRinger) Check() {
	var toRing []*Bell

	r.mu.Lock()
	if e := r.order.Front(); e != nil {
		e.Value.(*Bell).delayMS--
	}
	for {
		e := r.order.Front()
		if e == nil || e.Value.(*Bell).delayMS > 0 {
			break
		}
		toRing = append(toRing, e.Value.(*Bell))
		r.order.Remove(e)
	}
	r.updateDepth()
	r.mu.Unlock()

	for _, b := range toRing {
		b.Room.WakeAll()
	}
}

// updateDepth refreshes the bell-queue-depth gauge; caller holds r.mu.
func (r *BellRinger) updateDepth() {
	metrics.BellQueueDepth.Set(float64(r.order.Len()))
}

// Len reports the number of bells currently pending.
func (r *BellRinger) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.order.Len()
}

// HeadDelay returns the current head's remaining delta, for tests.
func (r *BellRinger) HeadDelay() (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e := r.order.Front(); e != nil {
		return e.Value.(*Bell).delayMS, true
	}
	return 0, false
}
