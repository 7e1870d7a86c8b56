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

package interrupt

import (
	"container/list"
	"sync"
)

// GateQueue is one core's FIFO of handlers awaiting epilogue execution
// (spec.md's Data Model). The same handler may be queued on several cores'
// GateQueues at once but at most once per core; re-queuing on the same
// core is a no-op, tracked here with a membership set rather than the
// teacher's per-handler next[core] link field, since Go interfaces cannot
// carry an intrusive link array without a wrapper type.
type GateQueue struct {
	mu     sync.Mutex
	order  list.List
	queued map[Handler]*list.Element
}

// NewGateQueue returns an empty gate queue.
func NewGateQueue() *GateQueue {
	return &GateQueue{queued: make(map[Handler]*list.Element)}
}

// Push appends h to the queue unless it is already present.
func (q *GateQueue) Push(h Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.queued[h]; ok {
		return
	}
	q.queued[h] = q.order.PushBack(h)
}

// PopAll atomically drains the queue in FIFO order.
func (q *GateQueue) PopAll() []Handler {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.order.Len() == 0 {
		return nil
	}
	out := make([]Handler, 0, q.order.Len())
	for e := q.order.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(Handler))
	}
	q.order.Init()
	q.queued = make(map[Handler]*list.Element)
	return out
}

// Empty reports whether the queue currently has no pending handlers.
func (q *GateQueue) Empty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.order.Len() == 0
}
