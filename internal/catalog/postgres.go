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

// Package catalog implements an optional, non-authoritative mirror of
// each table's latest committed version in Postgres, for external tools
// (dashboards, catalog browsers) that would rather poll SQL than open the
// delta log directly. The delta log itself remains the source of truth;
// a catalog write failing or lagging never blocks or invalidates a
// commit.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"lakehouse/internal/notify"
)

// Postgres schema (reference):
//
// CREATE TABLE IF NOT EXISTS table_versions (
//   table_path TEXT PRIMARY KEY,
//   version BIGINT NOT NULL,
//   updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
// );
// CREATE TABLE IF NOT EXISTS applied_commits (
//   commit_id TEXT PRIMARY KEY,
//   table_path TEXT NOT NULL,
//   version BIGINT NOT NULL,
//   committed_at TIMESTAMPTZ NOT NULL DEFAULT now()
// );

// PostgresCatalog records a table's latest version idempotently, keyed by
// CommitID so a retried commit notification doesn't regress the recorded
// version or double-count.
type PostgresCatalog struct {
	db             *sql.DB
	defaultTimeout time.Duration
}

// NewPostgresCatalog wraps an already-open *sql.DB (registered via
// jackc/pgx/v5/stdlib).
func NewPostgresCatalog(db *sql.DB) *PostgresCatalog {
	return &PostgresCatalog{db: db, defaultTimeout: 10 * time.Second}
}

// RecordCommit upserts event's version as the table's latest known version
// and records the commit marker in the same transaction. A duplicate
// CommitID leaves table_versions untouched and returns successfully.
func (p *PostgresCatalog) RecordCommit(event notify.CommitEvent) error {
	if event.CommitID == "" {
		return errors.New("catalog: CommitEvent.CommitID must be set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.defaultTimeout)
	defer cancel()

	tx, err := p.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO applied_commits(commit_id, table_path, version) VALUES ($1, $2, $3)
		 ON CONFLICT DO NOTHING`,
		event.CommitID, event.TablePath, event.Version)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// Already applied; the version upsert below is intentionally
		// skipped too, since a later commit may have since been recorded
		// for this same table and overwriting it with a stale retry would
		// regress the catalog.
		return tx.Commit()
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO table_versions(table_path, version, updated_at) VALUES ($1, $2, now())
		 ON CONFLICT (table_path) DO UPDATE SET version = EXCLUDED.version, updated_at = now()
		 WHERE table_versions.version < EXCLUDED.version`,
		event.TablePath, event.Version); err != nil {
		return err
	}

	return tx.Commit()
}

// NotifyCommit implements notify.CommitNotifier, so a PostgresCatalog can
// be registered alongside a RedisNotifier/KafkaNotifier/LoggingNotifier as
// just another post-commit hook.
func (p *PostgresCatalog) NotifyCommit(event notify.CommitEvent) error {
	return p.RecordCommit(event)
}

// LatestVersion reads the catalog's mirrored version for tablePath. It is
// advisory only: callers needing a correctness guarantee must use
// DeltaLog.GetLatestVersion instead.
func (p *PostgresCatalog) LatestVersion(tablePath string) (int64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), p.defaultTimeout)
	defer cancel()

	var version int64
	err := p.db.QueryRowContext(ctx,
		`SELECT version FROM table_versions WHERE table_path = $1`, tablePath).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return -1, nil
	}
	return version, err
}
