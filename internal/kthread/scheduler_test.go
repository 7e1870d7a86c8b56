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

package kthread_test

import (
	"testing"
	"time"

	. "github.com/jacobsa/ogletest"

	"github.com/libalis/mpstubs-gruppe-05-sub000/internal/cpu"
	"github.com/libalis/mpstubs-gruppe-05-sub000/internal/kthread"
)

func TestScheduler(t *testing.T) { RunTests(t) }

const testTimeout = time.Second

// waitOrFail blocks on ch, failing the test if it isn't closed within
// testTimeout -- the same belt-and-suspenders idiom internal/gdbstub's own
// tests use to keep a wedged goroutine from hanging the suite forever.
func waitOrFail(ch <-chan struct{}, msg string) {
	select {
	case <-ch:
	case <-time.After(testTimeout):
		AssertTrue(false, msg)
	}
}

////////////////////////////////////////////////////////////////////////
// Boilerplate
////////////////////////////////////////////////////////////////////////

type SchedulerTest struct {
	sched *kthread.Scheduler
	core  cpu.CoreID
	idle  *kthread.Thread
}

var _ SetUpInterface = &SchedulerTest{}

func init() { RegisterTestSuite(&SchedulerTest{}) }

func (t *SchedulerTest) SetUp(ti *TestInfo) {
	t.sched = kthread.NewScheduler(1)
	t.core = cpu.CoreID(0)
	t.idle = kthread.New(t.sched.IdleLoop(t.core))
	t.sched.SetIdle(t.core, t.idle)
}

////////////////////////////////////////////////////////////////////////
// fakeRoom
////////////////////////////////////////////////////////////////////////

// fakeRoom is the minimal kthread.Room + kthread.RoomRef double, the other
// side of the same seam internal/waitroom's own fakeScheduler test double
// stands in for. enqueued/removed, if non-nil, let a test synchronize on
// the moment a blocked thread actually registers with or is detached from
// its room, instead of guessing at scheduling timing.
type fakeRoom struct {
	enqueued chan struct{}
	removed  chan *kthread.Thread
	sched    *kthread.Scheduler
}

func (r *fakeRoom) Enqueue(t *kthread.Thread) {
	if r.enqueued != nil {
		close(r.enqueued)
	}
}

func (r *fakeRoom) Remove(t *kthread.Thread) {
	if r.removed != nil {
		r.removed <- t
	}
	if r.sched != nil {
		r.sched.Wakeup(t)
	}
}

////////////////////////////////////////////////////////////////////////
// Test functions
////////////////////////////////////////////////////////////////////////

// Ready appends in FIFO order (spec.md §4.5); IdleLoop drains the queue one
// at a time via Resume, so two readied threads must run in the order they
// were made ready, regardless of exactly when the idle loop notices each.
func (t *SchedulerTest) ReadyRunsInFIFOOrder() {
	order := make(chan int, 2)
	aDone := make(chan struct{})
	bDone := make(chan struct{})

	a := kthread.New(func() {
		order <- 1
		close(aDone)
		t.sched.Exit(t.core)
	})
	b := kthread.New(func() {
		order <- 2
		close(bDone)
		t.sched.Exit(t.core)
	})

	t.sched.Ready(a)
	t.sched.Ready(b)

	waitOrFail(aDone, "thread a never ran")
	waitOrFail(bDone, "thread b never ran")

	AssertEq(1, <-order)
	AssertEq(2, <-order)
}

// Block removes the calling thread from scheduling entirely: it is not
// requeued by Resume, only by an explicit Wakeup naming it, matching
// spec.md §4.6's "blocked threads are only ever woken by name".
func (t *SchedulerTest) BlockedThreadDoesNotRunUntilWoken() {
	room := &fakeRoom{}
	started := make(chan struct{})
	ran := make(chan struct{})

	worker := kthread.New(func() {
		close(started)
		t.sched.Block(t.core, room, room)
		close(ran)
		t.sched.Exit(t.core)
	})

	t.sched.Ready(worker)
	waitOrFail(started, "worker never started running")

	AssertEq(0, t.sched.ReadyLen())
	select {
	case <-ran:
		AssertTrue(false, "blocked thread ran before being woken")
	case <-time.After(50 * time.Millisecond):
	}

	t.sched.Wakeup(worker)
	waitOrFail(ran, "worker never resumed after Wakeup")
}

// Kill on a thread blocked in a room detaches it via the room's own Remove
// (spec.md §4.5: "kill" is the only cancellation channel) rather than the
// ready-queue removal path, and the room's Remove is responsible for the
// actual Wakeup -- exactly as internal/waitroom.Room.Remove does it.
func (t *SchedulerTest) KillOfBlockedThreadDetachesItFromItsRoom() {
	room := &fakeRoom{
		enqueued: make(chan struct{}),
		removed:  make(chan *kthread.Thread, 1),
		sched:    t.sched,
	}
	resumed := make(chan struct{})

	victim := kthread.New(func() {
		t.sched.Block(t.core, room, room)
		close(resumed)
		t.sched.Exit(t.core)
	})

	t.sched.Ready(victim)
	waitOrFail(room.enqueued, "victim never enqueued into its room")

	t.sched.Kill(victim)

	select {
	case got := <-room.removed:
		AssertEq(victim, got)
	case <-time.After(testTimeout):
		AssertTrue(false, "Kill never detached the blocked thread from its room")
	}
	waitOrFail(resumed, "killed thread never resumed after its room's Remove")
	AssertTrue(victim.Killed())
}

// IdleLoop polls DebugSafepoint once per iteration even while the ready
// queue stays empty (spec.md §4.7 point 4: a parked core still honors a
// stop-the-world request), so it must be observed on an iteration forced
// by a Ready/Exit pair even though that readied thread does no real work.
func (t *SchedulerTest) IdleLoopPollsDebugSafepointWhileParked() {
	polled := make(chan struct{}, 1)
	t.sched.DebugSafepoint = func(core cpu.CoreID) {
		select {
		case polled <- struct{}{}:
		default:
		}
	}

	nudge := kthread.New(func() { t.sched.Exit(t.core) })
	t.sched.Ready(nudge)

	waitOrFail(polled, "DebugSafepoint was never polled by the idle loop")
}
