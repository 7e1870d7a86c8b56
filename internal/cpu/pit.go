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

package cpu

import (
	"runtime"
	"time"
)

// PITDelay busy-waits for approximately d, the Go analogue of a PIT-driven
// calibrated delay loop used by boot code and by ATA PIO polling
// (spec.md §4.8). It yields the host CPU politely with runtime.Gosched
// between spins rather than a "pause" instruction -- the same discipline
// biscuit (_examples/other_examples) applies to its own busy-wait loops.
func PITDelay(d time.Duration) {
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		runtime.Gosched()
	}
}
