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

package notify

import (
	"context"
	"testing"
	"time"
)

type fakeEvaler struct {
	calls int
	keys  [][]string
}

func (f *fakeEvaler) Eval(ctx context.Context, script string, keys []string, args ...interface{}) (interface{}, error) {
	f.calls++
	f.keys = append(f.keys, keys)
	// Simulate Redis: only the first SETNX for a given marker key succeeds.
	seen := map[string]bool{}
	for _, prior := range f.keys[:len(f.keys)-1] {
		seen[prior[0]] = true
	}
	if seen[keys[0]] {
		return int64(0), nil
	}
	return int64(1), nil
}

func TestRedisNotifier_DuplicateCommitIDIsIdempotent(t *testing.T) {
	evaler := &fakeEvaler{}
	n := NewRedisNotifier(evaler, time.Hour)
	event := CommitEvent{TablePath: "tables/orders", Version: 3, CommitID: "c-1", Timestamp: time.Unix(0, 0)}

	if err := n.NotifyCommit(event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := n.NotifyCommit(event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if evaler.calls != 2 {
		t.Fatalf("expected 2 Eval calls, got %d", evaler.calls)
	}
}

type fakeProducer struct {
	produced []string
}

func (f *fakeProducer) Produce(ctx context.Context, topic string, key, value []byte, headers map[string]string) error {
	f.produced = append(f.produced, string(key))
	return nil
}

func TestKafkaNotifier_ProducesKeyedByCommitID(t *testing.T) {
	producer := &fakeProducer{}
	n := NewKafkaNotifier(producer, "lakehouse.commits")
	if err := n.NotifyCommit(CommitEvent{TablePath: "tables/orders", Version: 1, CommitID: "abc", Timestamp: time.Now()}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(producer.produced) != 1 || producer.produced[0] != "abc" {
		t.Fatalf("got %v, want one message keyed \"abc\"", producer.produced)
	}
}

func TestLoggingNotifier_NeverFails(t *testing.T) {
	var n LoggingNotifier
	if err := n.NotifyCommit(CommitEvent{TablePath: "tables/orders", Version: 1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
