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

// Package main provides the entry point for the lakehouse table-store demo.
//
// This application wires together every layer described in SPEC_FULL.md
// into one runnable process: a simulated, tick-driven network carrying a
// ring of StoreServers, a StoreClient/ObjectStorage facade routed through
// the ring, and a DeltaLog registry running optimistic transactions on top
// of that facade. It then drives a small workload of concurrent commits
// against one table to demonstrate the optimistic-concurrency retry path,
// and shuts everything down cleanly on SIGINT/SIGTERM.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"lakehouse/internal/catalog"
	"lakehouse/internal/deltalog"
	"lakehouse/internal/logging"
	"lakehouse/internal/metrics"
	"lakehouse/internal/network"
	"lakehouse/internal/notify"
	"lakehouse/internal/objectstore"
	"lakehouse/internal/storage"
	"lakehouse/internal/txn"
	"lakehouse/pkg/endpoint"
	"lakehouse/pkg/hashring"
)

func main() {
	// --- What this is ---
	// This demo runs a small simulated object store (a ring of N servers,
	// each a local directory) behind a single DeltaLog-backed table. A
	// handful of concurrent "writers" each open an OptimisticTransaction,
	// stage an AddFile action, and commit through CommitWithRetry. Because
	// they share a readVersion, most of them will hit a ConcurrentModification
	// conflict and retry — that's the interesting part to watch in the logs.
	//
	// Try it:
	//   go run ./cmd/lakehouse-demo
	//   go run ./cmd/lakehouse-demo -writers 20 -servers 8 -metrics_addr :9090
	//
	// 1. Parse configuration flags (these double as production-ready knobs).
	numServers := flag.Int("servers", 4, "Number of simulated StoreServer shards in the ring")
	numWriters := flag.Int("writers", 8, "Number of concurrent writers racing to commit against the demo table")
	tablePath := flag.String("table_path", "tables/orders", "Table path the demo writers commit against")
	budgetCapacity := flag.Int64("budget_capacity", 32, "Max in-flight requests StoreClient admits per destination shard; 0 disables the cap")
	facadeDeadline := flag.Duration("facade_deadline", 2*time.Second, "Deadline ObjectStorage waits on a single request before failing with Timeout")
	tickInterval := flag.Duration("tick_interval", 5*time.Millisecond, "Wall-clock period between automatic SimulatedNetwork ticks")
	lossRate := flag.Float64("loss_rate", 0, "Probability in [0,1] that the simulated network silently drops a message")
	latencyMinTicks := flag.Uint64("latency_min_ticks", 0, "Minimum simulated delivery latency, in ticks")
	latencyMaxTicks := flag.Uint64("latency_max_ticks", 2, "Maximum simulated delivery latency, in ticks")
	maxRetries := flag.Int("commit_max_retries", 5, "Max CommitWithRetry attempts after the first, per writer")
	rootDir := flag.String("root_dir", "", "Root directory for the simulated shards' local storage; a temp dir is used if empty")
	logLevel := flag.String("log_level", "info", "Log level: debug, info, warn, error")
	logFormat := flag.String("log_format", "text", "Log encoding: text or json")
	metricsAddr := flag.String("metrics_addr", "", "If non-empty, expose Prometheus /metrics on this address (e.g., :9090)")
	redisAddr := flag.String("redis_addr", "", "If non-empty, publish commit notifications to this Redis address")
	kafkaTopic := flag.String("kafka_topic", "", "If non-empty, publish commit notifications to this Kafka topic (demo producer only, no broker required)")
	postgresDSN := flag.String("postgres_dsn", "", "If non-empty, mirror committed versions into this Postgres DSN via jackc/pgx")
	flag.Parse()

	logging.Init(logging.Config{Level: *logLevel, Format: *logFormat})
	log := logging.L()

	if *metricsAddr != "" {
		metrics.ServeHTTP(*metricsAddr)
		log.Info("metrics endpoint listening", "addr", *metricsAddr)
	}

	root := *rootDir
	if root == "" {
		dir, err := os.MkdirTemp("", "lakehouse-demo-")
		if err != nil {
			log.Error("failed to create temp root dir", "error", err)
			os.Exit(1)
		}
		root = dir
		defer os.RemoveAll(root)
	}

	// 2. Build the simulated network and the ring of StoreServers.
	net := network.NewSimulatedNetwork()
	net.SetMessageLossRate(*lossRate)
	net.SetLatencyRange(*latencyMinTicks, *latencyMaxTicks)
	bus := network.NewMessageBus(net).WithTickInterval(*tickInterval)

	ring := hashring.New()
	for i := 0; i < *numServers; i++ {
		ep, err := endpoint.New("127.0.0.1", 9000+i)
		if err != nil {
			log.Error("invalid endpoint", "error", err)
			os.Exit(1)
		}
		local := storage.New(filepath.Join(root, fmt.Sprintf("shard-%d", i)))
		objectstore.NewStoreServer(ep, bus, local)
		ring.AddServer(ep)
		log.Debug("shard online", "endpoint", ep.String())
	}
	metrics.RingSize.Set(float64(len(ring.Members())))

	clientEp, err := endpoint.New("127.0.0.1", 9999)
	if err != nil {
		log.Error("invalid client endpoint", "error", err)
		os.Exit(1)
	}
	client := objectstore.NewStoreClient(clientEp, bus, ring, *budgetCapacity)
	store := objectstore.New(client).WithDeadline(*facadeDeadline)

	bus.Start()
	defer bus.Stop()

	// 3. Wire up optional post-commit notifiers and the optional catalog
	// mirror, each behind its own flag. None of these gate or roll back a
	// commit; a disabled or failing one just means quieter observability.
	notifiers := []notify.CommitNotifier{notify.LoggingNotifier{}}

	if *redisAddr != "" {
		evaler := notify.NewGoRedisEvaler(*redisAddr)
		defer evaler.Close()
		notifiers = append(notifiers, notify.NewRedisNotifier(evaler, 24*time.Hour))
		log.Info("redis commit notifications enabled", "addr", *redisAddr)
	}
	if *kafkaTopic != "" {
		notifiers = append(notifiers, notify.NewKafkaNotifier(notify.LoggingKafkaProducer{}, *kafkaTopic))
		log.Info("kafka commit notifications enabled", "topic", *kafkaTopic)
	}
	if *postgresDSN != "" {
		db, err := sql.Open("pgx", *postgresDSN)
		if err != nil {
			log.Error("failed to open postgres catalog", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		pg := catalog.NewPostgresCatalog(db)
		notifiers = append(notifiers, pg)
		log.Info("postgres catalog mirror enabled")
	}

	// 4. Open (and bootstrap) the demo table's DeltaLog through the
	// registry, so a second call for the same path would be free.
	registry := deltalog.NewRegistry(store)
	dlog, err := registry.ForTable(*tablePath)
	if err != nil {
		log.Error("failed to bootstrap table", "tablePath", *tablePath, "error", err)
		os.Exit(1)
	}
	metrics.ActiveSnapshotVersion.WithLabelValues(*tablePath)

	// 5. Run the writer workload: numWriters concurrent commits racing
	// against the same readVersion, each retried through conflicts.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	results := make(chan error, *numWriters)
	for i := 0; i < *numWriters; i++ {
		i := i
		go func() {
			record := []byte(fmt.Sprintf("writer %d record\n", i))
			_, err := txn.CommitWithRetry(dlog, "INSERT", *maxRetries, func(tx *txn.OptimisticTransaction) error {
				_, err := tx.Insert(record)
				return err
			}, notifiers...)
			results <- err
		}()
	}

	succeeded, failed := 0, 0
	for i := 0; i < *numWriters; i++ {
		select {
		case err := <-results:
			if err != nil {
				failed++
				log.Warn("writer failed to commit", "error", err)
			} else {
				succeeded++
			}
		case <-ctx.Done():
			log.Info("shutdown requested before all writers finished")
			goto shutdown
		}
	}

shutdown:
	snap, err := dlog.Snapshot()
	if err != nil {
		log.Error("failed to read final snapshot", "error", err)
	} else {
		log.Info("demo complete",
			"tablePath", *tablePath,
			"writersSucceeded", succeeded,
			"writersFailed", failed,
			"finalVersion", snap.Version,
			"activeFileCount", snap.ActiveFileCount(),
		)
	}
}
