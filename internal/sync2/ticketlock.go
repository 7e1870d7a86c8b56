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

// Package sync2 provides the ticket lock spec.md §4.2 describes and the
// Guarded Enter/Leave helper; the per-core locks, the big kernel lock and
// the prologue/epilogue engine built from them live in internal/interrupt.
// Locks spin with runtime.Gosched rather than a "pause"
// instruction -- see internal/cpu.PITDelay for the same substitution.
package sync2

import (
	"runtime"
	"sync/atomic"
)

// TicketLock hands out tickets in FIFO order and spins until a caller's
// ticket becomes current, giving the strict acquisition-order fairness
// spec.md §8 scenario 1 tests.
type TicketLock struct {
	next    atomic.Uint64
	current atomic.Uint64
}

// Lock blocks until the caller holds the lock.
func (t *TicketLock) Lock() {
	ticket := t.next.Add(1) - 1
	for t.current.Load() != ticket {
		runtime.Gosched()
	}
}

// Unlock releases the lock, admitting the next ticket holder.
func (t *TicketLock) Unlock() {
	t.current.Add(1)
}

// TryLock attempts to acquire the lock without blocking. It succeeds only
// if no other ticket is outstanding.
func (t *TicketLock) TryLock() bool {
	for {
		next := t.next.Load()
		cur := t.current.Load()
		if next != cur {
			return false
		}
		if t.next.CompareAndSwap(next, next+1) {
			return true
		}
	}
}
