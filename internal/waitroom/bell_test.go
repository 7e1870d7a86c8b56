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

	"github.com/jacobsa/timeutil"

	"github.com/libalis/mpstubs-gruppe-05-sub000/internal/kthread"
)

func TestBellRingerJobOrdersByAbsoluteDeadline(t *testing.T) {
	r := NewBellRinger(timeutil.RealClock())
	sched := &fakeScheduler{}

	far := NewBell(sched)
	near := NewBell(sched)

	r.Job(far, 100)
	r.Job(near, 10) // must be spliced in before far, with delta 10

	if got, ok := r.HeadDelay(); !ok || got != 10 {
		t.Fatalf("HeadDelay = %d, %v, want 10, true", got, ok)
	}
	if r.Len() != 2 {
		t.Fatalf("Len = %d, want 2", r.Len())
	}
}

func TestBellRingerCheckRingsExpiredBells(t *testing.T) {
	r := NewBellRinger(timeutil.RealClock())
	sched := &fakeScheduler{}

	b := NewBell(sched)
	r.Job(b, 1)

	waiter := b.Room
	// Seed the room directly as Sleep would via Scheduler.Block, since no
	// real scheduler is wired into this test.
	t1 := kthread.New(func() {})
	waiter.Enqueue(t1)

	r.Check() // delta reaches zero, bell rings

	if r.Len() != 0 {
		t.Fatalf("Len after Check = %d, want 0", r.Len())
	}
	if len(sched.woken) != 1 || sched.woken[0] != t1 {
		t.Fatalf("Check did not wake the bell's waiting room")
	}
}

func TestBellRingerCancelFoldsDeltaIntoSuccessor(t *testing.T) {
	r := NewBellRinger(timeutil.RealClock())
	sched := &fakeScheduler{}

	first := NewBell(sched)
	second := NewBell(sched)
	r.Job(first, 10)
	r.Job(second, 20) // delta becomes 10 relative to first

	r.Cancel(first)

	if got, ok := r.HeadDelay(); !ok || got != 20 {
		t.Fatalf("HeadDelay after Cancel = %d, %v, want 20, true (10 folded into 10)", got, ok)
	}
}
