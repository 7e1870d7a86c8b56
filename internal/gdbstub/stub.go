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
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/context"

	"github.com/libalis/mpstubs-gruppe-05-sub000/internal/cpu"
	"github.com/libalis/mpstubs-gruppe-05-sub000/internal/errs"
	"github.com/libalis/mpstubs-gruppe-05-sub000/internal/logging"
	"github.com/libalis/mpstubs-gruppe-05-sub000/internal/sync2"
)

// stopSpinDelay is the fixed spin Trap waits after issuing the stop-IPI
// before entering the monitor loop (spec.md §4.7 point 3).
const stopSpinDelay = 2 * time.Millisecond

// Stub is the GDB Remote Serial Protocol monitor of spec.md §4.7: it
// alternates trap handlers for a fixed set of vectors, stops every other
// core while one core is under inspection, and answers RSP commands over a
// Transport.
type Stub struct {
	ctx      context.Context // session lifetime; canceled to tear down a parked monitor loop
	framer   *Framer
	topology *cpu.Topology
	lapics   []*cpu.LAPIC
	mem      Memory
	debug    bool
	bootID   uuid.UUID

	monitor sync2.TicketLock // the wait/slot fairness protocol of spec.md §4.7 point 2

	mu         sync.Mutex
	contexts   []*Registers    // per-core saved debug context, valid only while stopped
	stopReq    []chan struct{} // per-core "please stop" mailbox, buffered 1
	releaseCh  chan struct{}   // closed to resume every parked core
	cpuOps     [127]int8       // H command: ASCII op byte -> selected core + 1 (0 == current)
	lastSignal int
}

// New returns a Stub for a topology of up to topology.Cores() cores,
// communicating over transport and backing memory accesses with mem. ctx
// bounds the whole debug session: canceling it (process shutdown, the
// caller giving up on the connection) unparks any monitor loop currently
// waiting on a command instead of leaving it blocked forever. A nil ctx
// behaves like context.Background().
func New(ctx context.Context, transport Transport, topology *cpu.Topology, lapics []*cpu.LAPIC, mem Memory, debug bool) *Stub {
	if ctx == nil {
		ctx = context.Background()
	}
	n := topology.Cores()
	s := &Stub{
		ctx:       ctx,
		framer:    NewFramer(transport, debug),
		topology:  topology,
		lapics:    lapics,
		mem:       mem,
		debug:     debug,
		bootID:    uuid.New(),
		contexts:  make([]*Registers, n),
		stopReq:   make([]chan struct{}, n),
		releaseCh: make(chan struct{}),
	}
	close(s.releaseCh) // nobody is stopped yet
	for i := range s.stopReq {
		s.stopReq[i] = make(chan struct{}, 1)
	}
	for _, l := range lapics {
		l.SetDeliveryFunc(s.deliverIPI)
	}
	return s
}

// deliverIPI is installed on every core's LAPIC and receives whichever IPI
// kind that core's SendIPI call raises; only IPIStop is meaningful here.
func (s *Stub) deliverIPI(target cpu.CoreID, kind cpu.IPI) {
	if kind != cpu.IPIStop {
		return
	}
	select {
	case s.stopReq[target] <- struct{}{}:
	default:
	}
}

// Safepoint is the point other cores' run loops call to honor a pending
// stop request (spec.md §4.7 point 4: "other cores, on receipt of the
// stop-IPI, spin on the slot counter until their turn or release"). It is a
// non-blocking check unless a stop is actually pending, at which point it
// parks until the trapping core's monitor loop releases it.
func (s *Stub) Safepoint(core cpu.CoreID) {
	select {
	case <-s.stopReq[core]:
	default:
		return
	}
	s.mu.Lock()
	ch := s.releaseCh
	s.mu.Unlock()
	<-ch
}

// Trap is called by the interrupt tail for any of the vectors the GDB stub
// has claimed (0..16, excluding NMI and vector 15 per spec.md §4.7) once a
// full debug context has been saved into regs. It serializes against
// concurrent traps on other cores, stops them, and runs the monitor loop
// until a continue or step command releases this core.
func (s *Stub) Trap(core cpu.CoreID, vector int, regs *Registers) {
	s.mu.Lock()
	s.contexts[core] = regs
	s.mu.Unlock()

	s.monitor.Lock()
	defer s.monitor.Unlock()

	s.lastSignal = vector

	s.mu.Lock()
	s.releaseCh = make(chan struct{})
	s.mu.Unlock()

	for c := 0; c < s.topology.Cores(); c++ {
		if cpu.CoreID(c) == core || s.topology.Halted(cpu.CoreID(c)) {
			continue
		}
		s.lapics[core].SendIPI(cpu.CoreID(c), cpu.IPIStop)
	}
	cpu.PITDelay(stopSpinDelay)

	s.handle(core)

	s.mu.Lock()
	close(s.releaseCh)
	s.mu.Unlock()
}

// LastSignal returns the last trap/interrupt vector handled, mirroring
// original_source's `GDB_Stub::signal` (queryable from the GDB shell there
// as `print GDB_Stub::signal`). No caller in this module reads it.
func (s *Stub) LastSignal() int { return s.lastSignal }

func (s *Stub) resolveCore(op byte, trapping cpu.CoreID) cpu.CoreID {
	if int(op) >= len(s.cpuOps) {
		return trapping
	}
	sel := s.cpuOps[op]
	if sel <= 0 {
		return trapping
	}
	return cpu.CoreID(sel - 1)
}

func (s *Stub) contextFor(core cpu.CoreID) *Registers {
	s.mu.Lock()
	defer s.mu.Unlock()
	if int(core) < 0 || int(core) >= len(s.contexts) || s.contexts[core] == nil {
		return NewRegisters()
	}
	return s.contexts[core]
}

// handle runs the monitor loop for the core that just trapped, dispatching
// RSP commands until a continue or step request ends the session
// (spec.md §4.7 point 5).
func (s *Stub) handle(core cpu.CoreID) {
	// original_source unconditionally reports signal 0 here and for `?`,
	// regardless of the actual trap vector; GDB_Stub::signal is kept for
	// introspection only. Preserved for fidelity.
	if err := s.framer.SendSignal(0); err != nil {
		return
	}

	for {
		pkt, err := s.receivePacket()
		if err != nil {
			return
		}
		if len(pkt) == 0 {
			continue
		}

		if done := s.dispatch(core, pkt); done {
			return
		}
	}
}

// receivePacket waits for the next RSP packet, but gives up the instant
// s.ctx is canceled rather than blocking on the transport forever; the
// read goroutine itself is abandoned to the transport's own teardown
// (Drain/Close), the same way a canceled HTTP request abandons its
// in-flight read.
func (s *Stub) receivePacket() ([]byte, error) {
	type result struct {
		pkt []byte
		err error
	}
	ch := make(chan result, 1)
	go func() {
		pkt, err := s.framer.ReceivePacket()
		ch <- result{pkt, err}
	}()

	select {
	case r := <-ch:
		return r.pkt, r.err
	case <-s.ctx.Done():
		return nil, s.ctx.Err()
	}
}

// dispatch handles one RSP command, returning true if the monitor loop
// should end (continue or step).
func (s *Stub) dispatch(core cpu.CoreID, pkt []byte) (done bool) {
	cmd := pkt[0]
	rest := string(pkt[1:])

	switch cmd {
	case 'H':
		s.cmdH(pkt)
	case 'q':
		s.cmdQ(core, rest)
	case 'g':
		s.cmdG(s.resolveCore(cmd, core))
	case 'G':
		s.cmdCapitalG(s.resolveCore(cmd, core), rest)
	case 'p':
		s.cmdP(s.resolveCore(cmd, core), rest)
	case 'P':
		s.cmdCapitalP(s.resolveCore(cmd, core), rest)
	case 'T':
		s.cmdT(rest)
	case 'k':
		s.cmdK(core)
		return true
	case 'm':
		s.cmdM(rest)
	case 'M':
		s.cmdCapitalM(rest, false)
	case 'X':
		s.cmdCapitalM(rest, true)
	case 'c':
		s.contextFor(core).SysContinue()
		return true
	case 's':
		s.contextFor(core).SysStep()
		return true
	case '?':
		s.framer.SendSignal(0)
	default:
		if s.debug {
			logging.Get().Debug("gdb: unsupported command", "cmd", string(cmd))
		}
		s.framer.SendEmpty()
	}
	return false
}

// cmdH handles `H op core`: select a core for subsequent per-core commands
// (spec.md §4.7: "H (select thread/core for subsequent ops)").
func (s *Stub) cmdH(pkt []byte) {
	if len(pkt) < 2 {
		s.framer.SendError(0)
		return
	}
	op := pkt[1]
	if int(op) >= len(s.cpuOps) {
		s.framer.SendError(0)
		return
	}
	val, err := strconv.ParseInt(string(pkt[2:]), 16, 64)
	if err != nil {
		s.framer.SendError(0)
		return
	}
	s.cpuOps[op] = int8(val)
	s.framer.SendOk()
}

// cmdQ handles the `q` family: qC, qfThreadInfo, qsThreadInfo,
// qThreadExtraInfo,<core>.
func (s *Stub) cmdQ(core cpu.CoreID, rest string) {
	switch {
	case rest == "C":
		s.framer.SendPacket([]byte(fmt.Sprintf("QC%x", core+1)))

	case rest == "fThreadInfo":
		var ids []string
		for i := 1; i <= s.topology.Cores(); i++ {
			ids = append(ids, fmt.Sprintf("%x", i))
		}
		s.framer.SendPacket([]byte("m" + strings.Join(ids, ",")))

	case rest == "sThreadInfo":
		s.framer.SendPacket([]byte("l"))

	case strings.HasPrefix(rest, "ThreadExtraInfo,"):
		arg := strings.TrimPrefix(rest, "ThreadExtraInfo,")
		n, err := strconv.ParseUint(arg, 16, 64)
		if err != nil || n > uint64(s.topology.Cores()) {
			s.framer.SendError(0)
			return
		}
		id := cpu.CoreID(n - 1)
		lapicID := "?"
		if int(id) < len(s.lapics) {
			lapicID = fmt.Sprintf("%d", s.lapics[id].ID())
		}
		info := fmt.Sprintf("Core %d / LAPIC %s / boot %s", id, lapicID, s.bootID)
		s.framer.SendPacket([]byte(hexEncodeString(info)))

	default:
		s.framer.SendEmpty()
	}
}

func hexEncodeString(s string) string {
	b := make([]byte, 0, len(s)*2)
	const digits = "0123456789abcdef"
	for _, c := range []byte(s) {
		b = append(b, digits[c>>4], digits[c&0xf])
	}
	return string(b)
}

func (s *Stub) cmdG(core cpu.CoreID) {
	s.framer.SendPacket([]byte(s.contextFor(core).MarshalHex()))
}

func (s *Stub) cmdCapitalG(core cpu.CoreID, data string) {
	if err := s.contextFor(core).UnmarshalHex(data); err != nil {
		s.framer.SendError(0)
		return
	}
	s.framer.SendOk()
}

func (s *Stub) cmdP(core cpu.CoreID, rest string) {
	n, err := strconv.ParseUint(rest, 16, 64)
	if err != nil || n >= uint64(NumRegisters) {
		s.framer.SendError(0)
		return
	}
	v, err := s.contextFor(core).MarshalHexOne(Register(n))
	if err != nil {
		s.framer.SendError(0)
		return
	}
	s.framer.SendPacket([]byte(v))
}

func (s *Stub) cmdCapitalP(core cpu.CoreID, rest string) {
	idx := strings.IndexByte(rest, '=')
	if idx < 0 {
		s.framer.SendError(0)
		return
	}
	n, err := strconv.ParseUint(rest[:idx], 16, 64)
	if err != nil || n >= uint64(NumRegisters) {
		s.framer.SendError(0)
		return
	}
	if err := s.contextFor(core).UnmarshalHexOne(Register(n), rest[idx+1:]); err != nil {
		s.framer.SendError(0)
		return
	}
	s.framer.SendOk()
}

func (s *Stub) cmdT(rest string) {
	n, err := strconv.ParseUint(rest, 16, 64)
	if err != nil || n > uint64(s.topology.Cores()) {
		s.framer.SendError(0)
		return
	}
	s.framer.SendOk()
}

// cmdK stands in for original_source's System::reboot(): this simulated
// kernel has no reboot primitive, so a reset request permanently halts
// every online core instead, the closest available analogue.
func (s *Stub) cmdK(core cpu.CoreID) {
	logging.Core(int(core)).Warn("gdb: reset requested, halting all cores")
	for c := 0; c < s.topology.Cores(); c++ {
		s.topology.Halt(cpu.CoreID(c))
	}
}

func (s *Stub) cmdM(rest string) {
	addr, length, err := parseAddrLength(rest)
	if err != nil {
		s.framer.SendError(0)
		return
	}
	buf := make([]byte, length)
	if err := s.mem.ReadAt(addr, buf); err != nil {
		s.framer.SendError(0)
		return
	}
	s.framer.SendPacket([]byte(hexEncodeString(string(buf))))
}

func (s *Stub) cmdCapitalM(rest string, binary bool) {
	comma := strings.IndexByte(rest, ',')
	colon := strings.IndexByte(rest, ':')
	if comma < 0 || colon < 0 || colon < comma {
		s.framer.SendError(0)
		return
	}
	addr, err := strconv.ParseUint(rest[:comma], 16, 64)
	if err != nil {
		s.framer.SendError(0)
		return
	}
	length, err := strconv.ParseUint(rest[comma+1:colon], 16, 64)
	if err != nil {
		s.framer.SendError(0)
		return
	}
	payload := rest[colon+1:]

	var data []byte
	if binary {
		data = decodeBinary([]byte(payload))
	} else {
		decoded, derr := hexDecodeString(payload)
		if derr != nil {
			s.framer.SendError(0)
			return
		}
		data = decoded
	}
	if uint64(len(data)) != length {
		s.framer.SendError(0)
		return
	}
	if err := s.mem.WriteAt(addr, data); err != nil {
		s.framer.SendError(0)
		return
	}
	s.framer.SendOk()
}

func hexDecodeString(s string) ([]byte, error) {
	if len(s)%2 != 0 {
		return nil, errs.EINVAL
	}
	out := make([]byte, len(s)/2)
	for i := range out {
		var b byte
		if _, err := fmt.Sscanf(s[2*i:2*i+2], "%02x", &b); err != nil {
			return nil, errs.EINVAL
		}
		out[i] = b
	}
	return out, nil
}

func parseAddrLength(rest string) (addr, length uint64, err error) {
	comma := strings.IndexByte(rest, ',')
	if comma < 0 {
		return 0, 0, errs.EINVAL
	}
	addr, err = strconv.ParseUint(rest[:comma], 16, 64)
	if err != nil {
		return 0, 0, errs.EINVAL
	}
	length, err = strconv.ParseUint(rest[comma+1:], 16, 64)
	if err != nil {
		return 0, 0, errs.EINVAL
	}
	return addr, length, nil
}
