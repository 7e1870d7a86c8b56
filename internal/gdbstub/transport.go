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

package gdbstub

import "io"

// Transport is the 8N1 serial line a Stub communicates over (spec.md §4.7:
// "over an 8N1 serial line"). serialtransport.go supplies a real one via
// go.bug.st/serial; pipeTransport below is an in-memory stand-in for tests.
type Transport interface {
	io.Reader
	io.Writer
	// Drain blocks until all written bytes have left the transport.
	Drain() error
}

// pipeTransport is an in-memory Transport pairing, used by tests to drive a
// Stub with a fake GDB client without a real serial line.
type pipeTransport struct {
	r *io.PipeReader
	w *io.PipeWriter
}

// NewPipePair returns two connected Transports: writes to one are readable
// from the other.
func NewPipePair() (a, b Transport) {
	r1, w1 := io.Pipe()
	r2, w2 := io.Pipe()
	return &pipeTransport{r: r1, w: w2}, &pipeTransport{r: r2, w: w1}
}

func (p *pipeTransport) Read(b []byte) (int, error)  { return p.r.Read(b) }
func (p *pipeTransport) Write(b []byte) (int, error) { return p.w.Write(b) }
func (p *pipeTransport) Drain() error                { return nil }
