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

// Package metrics exposes the process's Prometheus counters and gauges.
// All metrics are global except ActiveSnapshotVersion, which carries one
// table_path label per table; no metric is labelled per object key.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	MessagesSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lakehouse_messages_sent_total",
		Help: "Total messages handed to the simulated network by MessageBus.Send",
	})
	MessagesDelivered = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lakehouse_messages_delivered_total",
		Help: "Total messages delivered to a registered handler by a network tick",
	})
	MessagesDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lakehouse_messages_dropped_total",
		Help: "Total messages dropped by simulated loss or an active partition",
	})

	CommitsSucceeded = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lakehouse_commits_succeeded_total",
		Help: "Total OptimisticTransaction commits that succeeded",
	})
	CommitsConflicted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lakehouse_commits_conflicted_total",
		Help: "Total OptimisticTransaction commits that failed with a version conflict",
	})
	CommitRetries = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lakehouse_commit_retries_total",
		Help: "Total retry attempts made by CommitWithRetry after a conflict",
	})

	RingSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "lakehouse_ring_members",
		Help: "Number of distinct servers currently on the hash ring",
	})
	ActiveSnapshotVersion = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "lakehouse_active_snapshot_version",
		Help: "Latest version reflected in a table's cached snapshot",
	}, []string{"table_path"})
)

func init() {
	prometheus.MustRegister(
		MessagesSent, MessagesDelivered, MessagesDropped,
		CommitsSucceeded, CommitsConflicted, CommitRetries,
		RingSize, ActiveSnapshotVersion,
	)
}

// ServeHTTP starts a dedicated /metrics HTTP server on addr in the
// background. Safe to call at most once per addr; callers that already
// expose a Prometheus endpoint elsewhere should register promhttp there
// instead and skip this.
func ServeHTTP(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		_ = server.ListenAndServe()
	}()
}
