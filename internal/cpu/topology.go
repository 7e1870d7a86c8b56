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

// Package cpu models the platform glue spec.md §6 describes: core
// identification, the local interrupt controller (LAPIC), the I/O APIC, and
// a PIT-style delay helper. On real hardware these are MMIO register
// windows reached after GDT/IDT/paging setup; here they are addressable
// in-memory register files behind the same method surface, so the layers
// above (interrupt dispatch, block device polling) are unaware whether the
// registers are real or simulated.
package cpu

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// MaxCores is the symmetric-multiprocessing ceiling spec.md §1 names.
const MaxCores = 8

// CoreID identifies one of up to MaxCores logical cores.
type CoreID int

// Topology tracks which cores are online and which core is the bootstrap
// processor, mirroring original_source's startup.cc/startup_ap.cc split.
type Topology struct {
	n      int
	halted [MaxCores]bool
}

// New returns a Topology for n cores (1..MaxCores).
func New(n int) (*Topology, error) {
	if n < 1 || n > MaxCores {
		return nil, fmt.Errorf("cpu: core count %d out of range [1, %d]", n, MaxCores)
	}
	return &Topology{n: n}, nil
}

// Cores returns the number of configured cores.
func (t *Topology) Cores() int { return t.n }

// Boot runs entry on every configured core: inline for the bootstrap
// processor (core 0), and fanned out to background goroutines for the
// application processors, matching the teacher stack's use of
// golang.org/x/sync/errgroup for bounded concurrent fan-out
// (_examples/hanwen-go-fuse's parallel lookup tests use the same package).
// Boot returns once every core's entry function returns.
func (t *Topology) Boot(ctx context.Context, entry func(CoreID)) error {
	g, _ := errgroup.WithContext(ctx)
	for c := 1; c < t.n; c++ {
		c := CoreID(c)
		g.Go(func() error {
			entry(c)
			return nil
		})
	}
	entry(CoreID(0))
	return g.Wait()
}

// Halt marks core id as permanently halted (the panic-handler halt of
// spec.md §4.1 / §7). Only the flag is set: the GDB stub skips halted cores
// when stopping the world, but Dispatcher.Fire and the scheduler do not
// consult it, so a halted core can still run interrupts and scheduler code.
func (t *Topology) Halt(id CoreID) {
	t.halted[id] = true
}

// Halted reports whether core id has been permanently stopped.
func (t *Topology) Halted(id CoreID) bool {
	return t.halted[id]
}

// OnlineCount returns the number of cores not halted, using a plain loop
// since t.halted is only ever mutated under the big kernel lock umbrella
// (spec.md §5).
func (t *Topology) OnlineCount() int {
	n := 0
	for i := 0; i < t.n; i++ {
		if !t.halted[i] {
			n++
		}
	}
	return n
}
