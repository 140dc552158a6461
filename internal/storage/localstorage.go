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

// Package storage implements the per-server byte-blob filesystem backing a
// StoreServer's shard. Keys are slash-separated paths joined onto a root
// directory; writes are published with a rename so readers never observe a
// partially-written blob.
package storage

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"lakehouse/internal/lakeerr"
)

// LocalStorage is a filesystem-backed blob store rooted at Root. Per-key
// locks serialize writes to the same key; distinct keys proceed in
// parallel, and reads never take a lock (rename is atomic, so a reader
// always sees either the pre- or post-write content).
type LocalStorage struct {
	Root string

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// New creates a LocalStorage rooted at root. The directory is created
// lazily on first write.
func New(root string) *LocalStorage {
	return &LocalStorage{Root: root, locks: make(map[string]*sync.Mutex)}
}

func (s *LocalStorage) lockFor(key string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	return l
}

func (s *LocalStorage) path(key string) string {
	return filepath.Join(s.Root, filepath.FromSlash(key))
}

// Put writes data under key. If overwrite is false and key already exists,
// it fails with AlreadyExists. The write lands via a temporary sibling file
// followed by an atomic rename; on any failure the temporary file is
// removed and the error is returned.
func (s *LocalStorage) Put(key string, data []byte, overwrite bool) error {
	lock := s.lockFor(key)
	lock.Lock()
	defer lock.Unlock()

	target := s.path(key)

	if !overwrite {
		if _, err := os.Stat(target); err == nil {
			return lakeerr.AlreadyExists(key)
		}
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return lakeerr.IO("mkdir", err)
	}

	tmp := filepath.Join(filepath.Dir(target), "."+filepath.Base(target)+"."+uuid.NewString()+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		_ = os.Remove(tmp)
		return lakeerr.IO("write temp file", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp)
		return lakeerr.IO("rename", err)
	}
	return nil
}

// Get returns the full blob stored at key, or a NotFound error carrying the
// exact "Failed to retrieve object: <key>" marker required by spec.md §4.3.
func (s *LocalStorage) Get(key string) ([]byte, error) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, lakeerr.NotFound(key)
		}
		return nil, lakeerr.IO("read", err)
	}
	return data, nil
}

// Delete removes key if present. A missing key is not an error.
func (s *LocalStorage) Delete(key string) error {
	lock := s.lockFor(key)
	lock.Lock()
	defer lock.Unlock()

	if err := os.Remove(s.path(key)); err != nil && !os.IsNotExist(err) {
		return lakeerr.IO("delete", err)
	}
	return nil
}

// ListObjects recursively walks Root, returning the slash-separated paths
// (relative to Root) of every regular file whose absolute path begins with
// filepath.Join(Root, prefix) as a string prefix, not a path-boundary
// match, per spec.md §4.3. If the prefix's directory doesn't exist yet, it
// is created and an empty result is returned; a prefix ending in "/" names
// that directory itself, any other prefix names its parent directory.
func (s *LocalStorage) ListObjects(prefix string) ([]string, error) {
	full := s.path(prefix)
	dir := full
	if info, err := os.Stat(full); (err != nil || !info.IsDir()) && !strings.HasSuffix(prefix, "/") {
		dir = filepath.Dir(full)
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, lakeerr.IO("mkdir", err)
		}
		return nil, nil
	}

	var results []string
	err := filepath.Walk(s.Root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if !strings.HasPrefix(p, full) {
			return nil
		}
		rel, err := filepath.Rel(s.Root, p)
		if err != nil {
			return err
		}
		results = append(results, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, lakeerr.IO("walk", err)
	}
	return results, nil
}
