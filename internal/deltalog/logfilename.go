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

// Package deltalog implements the versioned, append-only transaction log
// described in spec.md §4.8–§4.9: filename encoding, the action schema,
// snapshot replay, and the per-table-path registry.
package deltalog

import (
	"fmt"
	"strconv"
	"strings"

	"lakehouse/internal/lakeerr"
)

// versionWidth is the zero-padded width of the version prefix in a log
// filename, per spec.md §3 (DDDDDDDDDDDDDDDDDDDD.json).
const versionWidth = 20

// FileName encodes and decodes versioned log filenames of the form
// "<20-digit version>.json".
type FileName struct {
	Version uint64
	Name    string
}

// FromVersion validates version and produces its zero-padded filename.
func FromVersion(version int64) (FileName, error) {
	if version < 0 {
		return FileName{}, lakeerr.InvalidArgument(fmt.Sprintf("log version must be >= 0, got %d", version))
	}
	return FileName{
		Version: uint64(version),
		Name:    fmt.Sprintf("%0*d.json", versionWidth, version),
	}, nil
}

// Parse extracts the version from a path's basename. The basename must be
// a purely numeric stem of at least versionWidth digits followed by
// ".json"; anything else fails.
func Parse(path string) (int64, error) {
	base := path
	if idx := strings.LastIndexByte(base, '/'); idx >= 0 {
		base = base[idx+1:]
	}
	stem, ok := strings.CutSuffix(base, ".json")
	if !ok {
		return 0, lakeerr.InvalidArgument(fmt.Sprintf("log filename %q does not end in .json", path))
	}
	if len(stem) < versionWidth {
		return 0, lakeerr.InvalidArgument(fmt.Sprintf("log filename %q has too short a version prefix", path))
	}
	for i := 0; i < len(stem); i++ {
		if stem[i] < '0' || stem[i] > '9' {
			return 0, lakeerr.InvalidArgument(fmt.Sprintf("log filename %q is not purely numeric", path))
		}
	}
	v, err := strconv.ParseInt(stem, 10, 64)
	if err != nil {
		return 0, lakeerr.InvalidArgument(fmt.Sprintf("log filename %q does not parse as a version: %v", path, err))
	}
	return v, nil
}

// VersionFromName is the non-throwing variant of Parse used during
// directory scans: it returns -1 on any failure instead of an error.
func VersionFromName(path string) int64 {
	v, err := Parse(path)
	if err != nil {
		return -1
	}
	return v
}

// GetPathIn joins a filename onto dir with a "/" separator, adding a
// trailing slash to dir if it's missing one.
func GetPathIn(dir, name string) string {
	if dir == "" {
		return name
	}
	if !strings.HasSuffix(dir, "/") {
		dir += "/"
	}
	return dir + name
}
