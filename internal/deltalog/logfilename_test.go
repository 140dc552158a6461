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

func TestFromVersion_ProducesZeroPaddedName(t *testing.T) {
	fn, err := FromVersion(123)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	const want = "00000000000000000123.json"
	if fn.Name != want {
		t.Fatalf("got name %q, want %q", fn.Name, want)
	}
	if fn.Version != 123 {
		t.Fatalf("got version %d, want 123", fn.Version)
	}
}

func TestFromVersion_RejectsNegative(t *testing.T) {
	if _, err := FromVersion(-1); err == nil {
		t.Fatalf("expected error for negative version")
	}
}

func TestParse_RoundTripsThroughFromVersion(t *testing.T) {
	fn, err := FromVersion(123)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v, err := Parse(fn.Name)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 123 {
		t.Fatalf("got %d, want 123", v)
	}
}

func TestParse_AcceptsFullPath(t *testing.T) {
	v, err := Parse("/tables/orders/_log/00000000000000000042.json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 42 {
		t.Fatalf("got %d, want 42", v)
	}
}

func TestParse_RejectsMalformedNames(t *testing.T) {
	cases := []string{
		"not-a-version.json",
		"123.json",
		"00000000000000000123.txt",
		"",
		"abc00000000000000123.json",
	}
	for _, c := range cases {
		if _, err := Parse(c); err == nil {
			t.Fatalf("expected error parsing %q", c)
		}
	}
}

func TestVersionFromName_ReturnsNegativeOneOnFailure(t *testing.T) {
	if got := VersionFromName("garbage"); got != -1 {
		t.Fatalf("got %d, want -1", got)
	}
	fn, err := FromVersion(7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := VersionFromName(fn.Name); got != 7 {
		t.Fatalf("got %d, want 7", got)
	}
}

func TestGetPathIn_JoinsWithSlash(t *testing.T) {
	if got := GetPathIn("tables/orders/_log", "00000000000000000123.json"); got != "tables/orders/_log/00000000000000000123.json" {
		t.Fatalf("got %q", got)
	}
	if got := GetPathIn("tables/orders/_log/", "00000000000000000123.json"); got != "tables/orders/_log/00000000000000000123.json" {
		t.Fatalf("got %q", got)
	}
	if got := GetPathIn("", "x.json"); got != "x.json" {
		t.Fatalf("got %q", got)
	}
}
