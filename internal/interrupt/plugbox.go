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

import "sync"

// Plugbox is the fixed 256-slot vector-to-handler table (spec.md §4.1).
type Plugbox struct {
	mu    sync.RWMutex
	table [NumVectors]Handler
	panic Handler
}

// NewPlugbox returns a Plugbox in which every slot reports panicHandler
// until assigned.
func NewPlugbox(panicHandler Handler) *Plugbox {
	return &Plugbox{panic: panicHandler}
}

// Assign places handler in the table at vector. A handler may only be
// referenced from one vector at a time; callers must not Assign the same
// handler object to two vectors.
func (p *Plugbox) Assign(v Vector, handler Handler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.table[v] = handler
}

// Report returns the handler assigned to v, or the panic handler if the
// slot is empty, so Report never returns nil (spec.md §8 invariant).
func (p *Plugbox) Report(v Vector) Handler {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if h := p.table[v]; h != nil {
		return h
	}
	return p.panic
}
