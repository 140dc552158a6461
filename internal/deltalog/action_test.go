// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
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

package deltalog

import "testing"

func TestEncodeDecodeActions_RoundTrips(t *testing.T) {
	actions := []Action{
		NewTableMetadata("tbl-1", 1000, 1, 2),
		NewAddFile("part-aaa.parquet", 4096, 1001),
		NewCommitInfo("WRITE", map[string]string{"mode": "Append"}, 1002),
	}
	b, err := EncodeActions(actions)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := DecodeActions(b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != len(actions) {
		t.Fatalf("got %d actions, want %d", len(got), len(actions))
	}
	if got[1].Path != "part-aaa.parquet" || got[1].Size != 4096 {
		t.Fatalf("unexpected add action: %+v", got[1])
	}
}

func TestDecodeActions_IgnoresUnknownFields(t *testing.T) {
	data := []byte(`[{"type":"add","path":"p.parquet","size":10,"modificationTime":1,"futureField":"x"}]`)
	got, err := DecodeActions(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].Path != "p.parquet" {
		t.Fatalf("unexpected result: %+v", got)
	}
}

func TestDecodeActions_RejectsUnknownType(t *testing.T) {
	data := []byte(`[{"type":"bogus"}]`)
	if _, err := DecodeActions(data); err == nil {
		t.Fatalf("expected error for unknown action type")
	}
}
