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

//go:build mmapdisk

package blockdev

import "golang.org/x/sys/unix"

// newRamDiskBuffer backs a RamDisk with an anonymous mmap region instead of
// a heap slice, for runs that want the buffer to live outside the Go heap
// (e.g. so a debugger attached via internal/gdbstub sees a stable address
// across GC cycles). Built only with -tags mmapdisk; the default build
// uses a plain make([]byte, size).
func newRamDiskBuffer(size int) []byte {
	buf, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		panic(err) // boot-time allocation failure, same class as a real bring-up out-of-memory halt
	}
	return buf
}
