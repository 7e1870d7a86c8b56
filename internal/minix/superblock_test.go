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

package minix

import (
	"testing"

	"github.com/kylelemons/godebug/pretty"
)

func TestSuperblockMarshalUnmarshalRoundTrip(t *testing.T) {
	want := &Superblock{
		NInodes:       512,
		ImapBlocks:    1,
		ZmapBlocks:    2,
		FirstDataZone: 20,
		LogZoneSize:   0,
		MaxSize:       1 << 24,
		Zones:         4096,
		Magic:         Magic,
		BlockSize:     1024,
	}

	got, err := unmarshalSuperblock(want.marshal())
	if err != nil {
		t.Fatalf("unmarshalSuperblock: %v", err)
	}
	if diff := pretty.Compare(want, got); diff != "" {
		t.Fatalf("round trip changed the superblock (-want +got):\n%s", diff)
	}
}

func TestUnmarshalSuperblockRejectsBadMagic(t *testing.T) {
	sb := &Superblock{Magic: 0xDEAD, BlockSize: 1024}
	if _, err := unmarshalSuperblock(sb.marshal()); err == nil {
		t.Fatalf("unmarshalSuperblock accepted a bad magic number")
	}
}

func TestUnmarshalSuperblockRejectsShortBuffer(t *testing.T) {
	if _, err := unmarshalSuperblock(make([]byte, 4)); err == nil {
		t.Fatalf("unmarshalSuperblock accepted a too-short buffer")
	}
}
