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

package sync2

// EnterLeaver is anything with the Enter/Leave shape of the prologue/
// epilogue engine (spec.md §4.3). Guard is a scoped helper so a protected
// region can never forget to call Leave on any control-flow exit,
// mirroring the teacher's own defer-based cleanup idiom
// (mounted_file_system.go's Unmount).
type EnterLeaver interface {
	Enter()
	Leave()
}

// Guarded runs fn with g entered, guaranteeing Leave is called even if fn
// panics.
func Guarded(g EnterLeaver, fn func()) {
	g.Enter()
	defer g.Leave()
	fn()
}
