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

func TestDirEntryEncodeDecodeRoundTrip(t *testing.T) {
	cases := []DirEntry{
		{Ino: 2, Name: "."},
		{Ino: 2, Name: ".."},
		{Ino: 17, Name: "a-fairly-long-file-name.txt"},
		{Ino: 0, Name: ""}, // a free slot
	}

	for _, want := range cases {
		buf := make([]byte, DirEntrySize)
		encodeDirEntry(buf, want)
		got := decodeDirEntry(buf)
		if diff := pretty.Compare(want, got); diff != "" {
			t.Fatalf("round trip changed entry %+v (-want +got):\n%s", want, diff)
		}
	}
}

func TestEncodeDirEntryZeroesTrailingBytes(t *testing.T) {
	buf := make([]byte, DirEntrySize)
	for i := range buf {
		buf[i] = 0xFF
	}

	encodeDirEntry(buf, DirEntry{Ino: 3, Name: "x"})
	got := decodeDirEntry(buf)

	if got.Name != "x" {
		t.Fatalf("Name = %q, want %q (stale bytes from a reused buffer leaked through)", got.Name, "x")
	}
}
