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

package txn

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"

	"lakehouse/internal/deltalog"
	"lakehouse/internal/lakeerr"
)

type memStorage struct {
	mu   sync.Mutex
	objs map[string][]byte
}

func newMemStorage() *memStorage { return &memStorage{objs: make(map[string][]byte)} }

func (m *memStorage) ReadObject(path string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objs[path]
	if !ok {
		return nil, lakeerr.NotFound(path)
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, nil
}

func (m *memStorage) WriteObject(path string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	m.objs[path] = cp
	return nil
}

func (m *memStorage) ObjectExists(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objs[path]
	return ok
}

func (m *memStorage) DeleteObject(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objs, path)
	return nil
}

func (m *memStorage) ListObjects(prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for k := range m.objs {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out, nil
}

// TestOptimisticTransaction_ConflictingCommitsFailOneOfTwo covers spec
// scenarios S6 and S9: two transactions opened from the same readVersion,
// the first commit succeeds and the second fails with
// ConcurrentModification, and getLatestVersion reflects only the winner.
func TestOptimisticTransaction_ConflictingCommitsFailOneOfTwo(t *testing.T) {
	log := deltalog.New(newMemStorage(), "tables/customers")

	// Seed version 0 so both transactions share a non-bootstrap readVersion.
	seed, err := New(log, "SEED")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := seed.Stage(deltalog.NewAddFile("data/seed.parquet", 1, 1)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := seed.Commit(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tx1, err := New(log, "INSERT")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tx2, err := New(log, "INSERT")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tx1.ReadVersion() != tx2.ReadVersion() {
		t.Fatalf("expected both transactions to share a readVersion")
	}

	if err := tx1.Stage(deltalog.NewAddFile("data/cust1.parquet", 1, 1)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v1, err := tx1.Commit()
	if err != nil {
		t.Fatalf("expected tx1 to commit, got error: %v", err)
	}
	if v1 != tx1.ReadVersion()+1 {
		t.Fatalf("got version %d, want %d", v1, tx1.ReadVersion()+1)
	}

	if err := tx2.Stage(deltalog.NewAddFile("data/cust2.parquet", 1, 1)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err = tx2.Commit()
	if err == nil {
		t.Fatalf("expected tx2 commit to fail with a conflict")
	}
	if !errors.Is(err, lakeerr.ErrConcurrentModification) {
		t.Fatalf("got error %v, want ErrConcurrentModification", err)
	}

	latest, err := log.GetLatestVersion()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if latest != v1 {
		t.Fatalf("got latest %d, want %d (tx1's version)", latest, v1)
	}
}

func TestOptimisticTransaction_CommitIsSingleUse(t *testing.T) {
	log := deltalog.New(newMemStorage(), "tables/orders")
	tx, err := New(log, "INSERT")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := tx.Commit(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := tx.Commit(); err == nil {
		t.Fatalf("expected second Commit to fail")
	}
	if err := tx.Stage(deltalog.NewAddFile("x", 1, 1)); err == nil {
		t.Fatalf("expected Stage after Commit to fail")
	}
}

func TestCommitWithRetry_RetriesThroughAConflictThenSucceeds(t *testing.T) {
	log := deltalog.New(newMemStorage(), "tables/orders")

	// Pre-seed a competing commit that will have landed by the time the
	// first CommitWithRetry attempt's conflict check runs, by committing it
	// from inside the build callback itself (simulating another writer).
	first := true
	version, err := CommitWithRetry(log, "INSERT", 3, func(tx *OptimisticTransaction) error {
		if first {
			first = false
			competitor, err := New(log, "INSERT")
			if err != nil {
				return err
			}
			if err := competitor.Stage(deltalog.NewAddFile("data/other.parquet", 1, 1)); err != nil {
				return err
			}
			if _, err := competitor.Commit(); err != nil {
				return err
			}
		}
		return tx.Stage(deltalog.NewAddFile("data/mine.parquet", 1, 1))
	})
	if err != nil {
		t.Fatalf("expected eventual success, got error: %v", err)
	}
	if version < 1 {
		t.Fatalf("got version %d, want >= 1", version)
	}
}

// TestOptimisticTransaction_CommitRecordsCommitInfoParameters covers the
// CommitInfo action's required parameter set.
func TestOptimisticTransaction_CommitRecordsCommitInfoParameters(t *testing.T) {
	log := deltalog.New(newMemStorage(), "tables/orders")

	tx, err := New(log, "INSERT")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := tx.Stage(deltalog.NewAddFile("data/x.parquet", 1, 1)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	version, err := tx.Commit()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	actions, err := log.ReadVersion(version)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var commitInfo *deltalog.Action
	for i := range actions {
		if actions[i].Type == deltalog.ActionCommitInfo {
			commitInfo = &actions[i]
		}
	}
	if commitInfo == nil {
		t.Fatalf("expected a CommitInfo action in version %d", version)
	}
	if commitInfo.Operation != "INSERT" {
		t.Fatalf("got operation %q, want %q", commitInfo.Operation, "INSERT")
	}
	want := map[string]string{
		"isolationLevel": "SnapshotIsolation",
		"startVersion":   "-1",
		"operation":      "INSERT",
	}
	for k, v := range want {
		if got := commitInfo.Parameters[k]; got != v {
			t.Fatalf("parameter %q: got %q, want %q", k, got, v)
		}
	}
	if commitInfo.Parameters["commitTime"] == "" {
		t.Fatalf("expected commitTime parameter to be set")
	}
	if commitInfo.Parameters["commitId"] == "" {
		t.Fatalf("expected commitId parameter to be set")
	}
}

// TestOptimisticTransaction_InsertWritesDataFileAndStagesAddFile covers
// spec.md §4.10's insert(records) operation: Insert must write the given
// bytes through the log's Storage under <tablePath>/data/ with a
// .parquet-suffixed uuid filename, and stage an AddFile action whose Size
// matches the written payload.
func TestOptimisticTransaction_InsertWritesDataFileAndStagesAddFile(t *testing.T) {
	mem := newMemStorage()
	log := deltalog.New(mem, "tables/orders")

	tx, err := New(log, "INSERT")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data := []byte("some record bytes")
	action, err := tx.Insert(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if action.Type != deltalog.ActionAdd {
		t.Fatalf("got action type %q, want %q", action.Type, deltalog.ActionAdd)
	}
	if !strings.HasPrefix(action.Path, log.DataDir()+"/part-") || !strings.HasSuffix(action.Path, ".parquet") {
		t.Fatalf("got path %q, want it under %s/ with a part-<uuid>.parquet name", action.Path, log.DataDir())
	}
	if action.Size != uint64(len(data)) {
		t.Fatalf("got size %d, want %d", action.Size, len(data))
	}

	written, err := mem.ReadObject(action.Path)
	if err != nil {
		t.Fatalf("unexpected error reading back the written data file: %v", err)
	}
	if string(written) != string(data) {
		t.Fatalf("got written bytes %q, want %q", written, data)
	}

	version, err := tx.Commit()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	snap, err := log.Snapshot()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.Version != version {
		t.Fatalf("got snapshot version %d, want %d", snap.Version, version)
	}
	if snap.ActiveFileCount() != 1 {
		t.Fatalf("got active file count %d, want 1", snap.ActiveFileCount())
	}
}

// TestOptimisticTransaction_InsertAfterCommitFails covers the single-use
// invariant extended to Insert: staging more actions (via Insert or Stage)
// after Commit has run must fail without touching the log again.
func TestOptimisticTransaction_InsertAfterCommitFails(t *testing.T) {
	log := deltalog.New(newMemStorage(), "tables/orders")
	tx, err := New(log, "INSERT")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := tx.Commit(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := tx.Insert([]byte("too late")); err == nil {
		t.Fatalf("expected Insert after Commit to fail")
	}
}

func TestCommitWithRetry_ExhaustsRetriesAndReturnsConflict(t *testing.T) {
	log := deltalog.New(newMemStorage(), "tables/orders")

	_, err := CommitWithRetry(log, "INSERT", 2, func(tx *OptimisticTransaction) error {
		// Every attempt races a fresh competing commit in, so readVersion is
		// always stale by the time Commit checks it.
		competitor, cErr := New(log, "INSERT")
		if cErr != nil {
			return cErr
		}
		if cErr := competitor.Stage(deltalog.NewAddFile("data/x.parquet", 1, 1)); cErr != nil {
			return cErr
		}
		if _, cErr := competitor.Commit(); cErr != nil {
			return cErr
		}
		return tx.Stage(deltalog.NewAddFile("data/mine.parquet", 1, 1))
	})
	if err == nil {
		t.Fatalf("expected CommitWithRetry to exhaust retries and fail")
	}
	if !errors.Is(err, lakeerr.ErrConcurrentModification) {
		t.Fatalf("got error %v, want ErrConcurrentModification", err)
	}
}
