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

// Package txn implements optimistic concurrency control on top of a
// DeltaLog, per spec.md §4.10: a transaction reads a table's version,
// stages actions against that version, and commits by re-checking the
// version under the log's lock. A stale readVersion at commit time fails
// with ConcurrentModification instead of silently clobbering history.
package txn

import (
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"

	"lakehouse/internal/deltalog"
	"lakehouse/internal/lakeerr"
	"lakehouse/internal/logging"
	"lakehouse/internal/metrics"
	"lakehouse/internal/notify"
)

// OptimisticTransaction stages a sequence of actions against a DeltaLog
// snapshot taken at construction time, and commits them atomically if no
// other commit has landed in the meantime. It is single-use: Commit may
// only be called once.
type OptimisticTransaction struct {
	log         *deltalog.DeltaLog
	readVersion int64
	operation   string
	actions     []deltalog.Action
	notifiers   []notify.CommitNotifier
	used        bool
}

// New opens a transaction against log's current latest version.
func New(log *deltalog.DeltaLog, operation string, notifiers ...notify.CommitNotifier) (*OptimisticTransaction, error) {
	readVersion, err := log.GetLatestVersion()
	if err != nil {
		return nil, err
	}
	return &OptimisticTransaction{
		log:         log,
		readVersion: readVersion,
		operation:   operation,
		notifiers:   notifiers,
	}, nil
}

// ReadVersion returns the version this transaction's conflict check is
// pinned against.
func (tx *OptimisticTransaction) ReadVersion() int64 { return tx.readVersion }

// Stage appends action to the set this transaction will commit. Staging
// after Commit has been called is a programmer error.
func (tx *OptimisticTransaction) Stage(action deltalog.Action) error {
	if tx.used {
		return lakeerr.InvalidArgument("transaction already committed")
	}
	tx.actions = append(tx.actions, action)
	return nil
}

// Insert writes data through the log's Storage at
// <tablePath>/data/part-<uuid>.parquet and stages the resulting AddFile
// action, per spec.md §4.10's insert(records) operation. The out-of-scope
// record encoding is the caller's responsibility; Insert only owns the
// file placement, the write-through, and the staged action.
func (tx *OptimisticTransaction) Insert(data []byte) (deltalog.Action, error) {
	if tx.used {
		return deltalog.Action{}, lakeerr.InvalidArgument("transaction already committed")
	}
	path := tx.log.DataDir() + "/part-" + uuid.NewString() + ".parquet"
	if err := tx.log.Storage().WriteObject(path, data); err != nil {
		return deltalog.Action{}, err
	}
	action := deltalog.NewAddFile(path, uint64(len(data)), uint64(time.Now().UnixMilli()))
	if err := tx.Stage(action); err != nil {
		return deltalog.Action{}, err
	}
	return action, nil
}

// Commit acquires the log's commit lock, re-checks the latest version
// against readVersion, and — if unchanged — writes readVersion+1 with the
// staged actions plus a trailing CommitInfo action, then refreshes the
// log's cached snapshot. A transaction may only be committed once; a
// second call returns an error without touching the log.
func (tx *OptimisticTransaction) Commit() (int64, error) {
	if tx.used {
		return 0, lakeerr.InvalidArgument("transaction already committed")
	}
	tx.used = true

	tx.log.Lock()
	defer tx.log.ReleaseLock()

	latest, err := tx.log.GetLatestVersion()
	if err != nil {
		return 0, err
	}
	if latest != tx.readVersion {
		metrics.CommitsConflicted.Inc()
		return 0, lakeerr.ConcurrentModification(tx.log.TablePath(), tx.readVersion, latest)
	}

	nextVersion := latest + 1
	commitID := uuid.NewString()
	now := time.Now()
	parameters := map[string]string{
		"commitId":       commitID,
		"isolationLevel": "SnapshotIsolation",
		"startVersion":   strconv.FormatInt(tx.readVersion, 10),
		"commitTime":     now.Format(time.RFC3339Nano),
		"operation":      tx.operation,
	}
	actions := append(append([]deltalog.Action{}, tx.actions...),
		deltalog.NewCommitInfo(tx.operation, parameters, uint64(now.UnixMilli())))

	if err := tx.log.Write(nextVersion, actions); err != nil {
		return 0, err
	}
	if _, err := tx.log.Update(); err != nil {
		return 0, err
	}
	metrics.CommitsSucceeded.Inc()
	metrics.ActiveSnapshotVersion.WithLabelValues(tx.log.TablePath()).Set(float64(nextVersion))

	event := notify.CommitEvent{
		TablePath: tx.log.TablePath(),
		Version:   nextVersion,
		Operation: tx.operation,
		Timestamp: now,
		CommitID:  commitID,
	}
	for _, n := range tx.notifiers {
		if err := n.NotifyCommit(event); err != nil {
			logging.L().Warn("commit notifier failed", "tablePath", event.TablePath, "version", event.Version, "error", err)
		}
	}

	return nextVersion, nil
}

// BuildFunc stages actions onto a freshly opened transaction. It is called
// once per CommitWithRetry attempt, so it must be safe to call more than
// once and should not assume a particular readVersion.
type BuildFunc func(tx *OptimisticTransaction) error

// CommitWithRetry opens a new transaction, runs build to stage its
// actions, and commits it; on ConcurrentModification it waits an
// exponentially growing backoff (50ms, 100ms, 200ms, ...) and retries with
// a freshly opened transaction, up to maxRetries additional attempts.
// Any other error, or exhausting retries, is returned as-is.
func CommitWithRetry(log *deltalog.DeltaLog, operation string, maxRetries int, build BuildFunc, notifiers ...notify.CommitNotifier) (int64, error) {
	backoff := 50 * time.Millisecond
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		tx, err := New(log, operation, notifiers...)
		if err != nil {
			return 0, err
		}
		if err := build(tx); err != nil {
			return 0, err
		}
		version, err := tx.Commit()
		if err == nil {
			return version, nil
		}
		if !errors.Is(err, lakeerr.ErrConcurrentModification) {
			return 0, err
		}
		lastErr = err
		if attempt < maxRetries {
			metrics.CommitRetries.Inc()
			time.Sleep(backoff)
			backoff *= 2
		}
	}
	return 0, lastErr
}
