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

import (
	"bufio"
	"fmt"
	"io"

	"github.com/libalis/mpstubs-gruppe-05-sub000/internal/errs"
	"github.com/libalis/mpstubs-gruppe-05-sub000/internal/logging"
)

// Framer implements the RSP wire format over a Transport: packets of the
// form `$<data>#<checksum>` with a single-byte `+`/`-` acknowledgment
// (spec.md §4.7 point 5), assuming a 7-bit clean connection as
// original_source does.
type Framer struct {
	t     Transport
	r     *bufio.Reader
	debug bool
}

// NewFramer wraps t for packet-level send/receive.
func NewFramer(t Transport, debug bool) *Framer {
	return &Framer{t: t, r: bufio.NewReader(t), debug: debug}
}

func checksum8(data []byte) byte {
	var c byte
	for _, b := range data {
		c += b
	}
	return c
}

// SendPacket transmits data framed as `$data#cc` and waits for the host's
// acknowledgment.
func (f *Framer) SendPacket(data []byte) error {
	if f.debug {
		logging.Get().Debug("gdb: ->", "data", string(data))
	}
	if _, err := f.t.Write([]byte{'$'}); err != nil {
		return err
	}
	if _, err := f.t.Write(data); err != nil {
		return err
	}
	trailer := fmt.Sprintf("#%02x", checksum8(data))
	if _, err := f.t.Write([]byte(trailer)); err != nil {
		return err
	}
	return f.receiveAck()
}

func (f *Framer) receiveAck() error {
	b, err := f.r.ReadByte()
	if err != nil {
		return err
	}
	switch b {
	case '+':
		return nil
	case '-':
		return errs.EAGAIN // negative ack: caller may retransmit
	default:
		return errs.EIO
	}
}

// ReceivePacket blocks for the next `$data#cc` packet, verifies its
// checksum, and acks or naks it accordingly (spec.md §4.7 failure model:
// "checksum mismatch replies with `-` and waits for retransmission").
func (f *Framer) ReceivePacket() ([]byte, error) {
	for {
		b, err := f.r.ReadByte()
		if err != nil {
			return nil, err
		}
		if b == '$' {
			break
		}
	}

	var data []byte
	for {
		b, err := f.r.ReadByte()
		if err != nil {
			return nil, err
		}
		if b == '#' {
			break
		}
		data = append(data, b)
	}

	var csHex [2]byte
	if _, err := io.ReadFull(f.r, csHex[:]); err != nil {
		return nil, err
	}
	var want byte
	if _, err := fmt.Sscanf(string(csHex[:]), "%02x", &want); err != nil {
		return nil, errs.EIO
	}

	if checksum8(data) != want {
		f.t.Write([]byte{'-'})
		return nil, errs.EIO
	}
	if f.debug {
		logging.Get().Debug("gdb: <-", "data", string(data))
	}
	f.t.Write([]byte{'+'})
	return data, nil
}

// SendOk sends the `OK` packet.
func (f *Framer) SendOk() error { return f.SendPacket([]byte("OK")) }

// SendSignal sends an `S<hex-signal>` packet.
func (f *Framer) SendSignal(sig byte) error {
	return f.SendPacket([]byte(fmt.Sprintf("S%02x", sig)))
}

// SendError sends an `E<hex-code>` packet.
func (f *Framer) SendError(code byte) error {
	return f.SendPacket([]byte(fmt.Sprintf("E%02x", code)))
}

// SendEmpty sends an empty packet, RSP's convention for "unsupported".
func (f *Framer) SendEmpty() error { return f.SendPacket(nil) }

// encodeBinary escapes '$', '#', '}' and '*' with a '}' prefix and the byte
// XORed by 0x20, the RSP binary encoding used by the `X` command
// (spec.md §4.7: "m/M/X (memory read / write hex / write binary)").
func encodeBinary(data []byte) []byte {
	out := make([]byte, 0, len(data))
	for _, b := range data {
		switch b {
		case '$', '#', '}', '*':
			out = append(out, '}', b^0x20)
		default:
			out = append(out, b)
		}
	}
	return out
}

// decodeBinary reverses encodeBinary.
func decodeBinary(data []byte) []byte {
	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); i++ {
		if data[i] == '}' && i+1 < len(data) {
			i++
			out = append(out, data[i]^0x20)
		} else {
			out = append(out, data[i])
		}
	}
	return out
}
