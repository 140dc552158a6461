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

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Registry manages a collection of DeltaLog instances in memory, one per
// table path. It is thread-safe and avoids allocating a DeltaLog (and, on
// first touch, bootstrapping a table) for a path that's already open.
type Registry struct {
	logs    sync.Map // tablePath -> *registryEntry
	storage Storage
}

// registryEntry is published to the map before its bootstrap has run, so
// every caller that observes it — the goroutine that won the LoadOrStore
// race as well as every one that lost it — can be held at ready until
// bootstrap is durably complete. Without this, a losing goroutine could
// hand back a DeltaLog whose version-0 TableMetadata write is still in
// flight.
type registryEntry struct {
	log   *DeltaLog
	ready chan struct{}
	err   error
}

// NewRegistry creates a registry that opens DeltaLogs against storage.
func NewRegistry(storage Storage) *Registry {
	return &Registry{storage: storage}
}

// ForTable returns the DeltaLog for tablePath, constructing and
// bootstrapping it on first access: a brand-new table (no committed
// versions) gets a version-0 TableMetadata action written before it is
// handed back, per SPEC_FULL.md §3.1.
//
// Fast path: avoid allocating on the common case where the path is
// already open. Only on a miss do we construct a DeltaLog and attempt a
// LoadOrStore; whichever goroutine wins the race runs bootstrap and closes
// the entry's ready channel when it's done, and every goroutine — winner
// or loser — blocks on that channel before returning, so two concurrent
// first callers always observe the same already-bootstrapped snapshot.
func (r *Registry) ForTable(tablePath string) (*DeltaLog, error) {
	if actual, ok := r.logs.Load(tablePath); ok {
		return awaitEntry(actual.(*registryEntry))
	}

	candidate := &registryEntry{log: New(r.storage, tablePath), ready: make(chan struct{})}
	actual, loaded := r.logs.LoadOrStore(tablePath, candidate)
	entry := actual.(*registryEntry)
	if loaded {
		return awaitEntry(entry)
	}

	if err := bootstrap(entry.log); err != nil {
		entry.err = err
		r.logs.Delete(tablePath)
	}
	close(entry.ready)
	return awaitEntry(entry)
}

func awaitEntry(entry *registryEntry) (*DeltaLog, error) {
	<-entry.ready
	if entry.err != nil {
		return nil, entry.err
	}
	return entry.log, nil
}

// bootstrap writes the version-0 TableMetadata action for a table that
// has no committed versions yet. It is a no-op for a table that already
// has history, so re-opening an existing table never clobbers version 0.
func bootstrap(log *DeltaLog) error {
	latest, err := log.GetLatestVersion()
	if err != nil {
		return err
	}
	if latest >= 0 {
		return nil
	}
	md := NewTableMetadata(uuid.NewString(), uint64(time.Now().UnixNano()), 1, 1)
	return log.Write(0, []Action{md})
}

// Forget removes a table's DeltaLog from the registry without touching
// its persisted state. Intended for tests that want a fresh in-memory
// DeltaLog on the next ForTable call.
func (r *Registry) Forget(tablePath string) {
	r.logs.Delete(tablePath)
}
