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

import "go.bug.st/serial"

// SerialTransport is a Transport backed by a real 8N1 serial line, the
// default original_source uses ("settings for serial transmission must be
// identical on both hardware and GDB").
type SerialTransport struct {
	port serial.Port
}

// OpenSerial opens name (e.g. "/dev/ttyUSB0", "COM1") at baud, 8 data bits,
// no parity, one stop bit -- GDB's default is 9600 baud.
func OpenSerial(name string, baud int) (*SerialTransport, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(name, mode)
	if err != nil {
		return nil, err
	}
	return &SerialTransport{port: port}, nil
}

func (s *SerialTransport) Read(b []byte) (int, error)  { return s.port.Read(b) }
func (s *SerialTransport) Write(b []byte) (int, error) { return s.port.Write(b) }
func (s *SerialTransport) Drain() error                { return s.port.Drain() }

// Close releases the underlying port.
func (s *SerialTransport) Close() error { return s.port.Close() }
