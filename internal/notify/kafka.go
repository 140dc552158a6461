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
	"encoding/json"
	"time"
)

// KafkaProducer is a minimal abstraction over a Kafka client.
// Implementations should enable idempotent production (enable.idempotence
// = true) and use CommitID as the message key so broker-level dedup and
// per-table ordering are preserved.
//
// No concrete Kafka library is imported here: a broker-agnostic interface
// lets callers plug in whichever client their deployment already uses.
type KafkaProducer interface {
	Produce(ctx context.Context, topic string, key []byte, value []byte, headers map[string]string) error
}

// commitMessage is the JSON payload published to Kafka for a commit.
type commitMessage struct {
	TablePath string `json:"tablePath"`
	Version   int64  `json:"version"`
	Operation string `json:"operation"`
	CommitID  string `json:"commitId"`
	TsUnixMs  int64  `json:"tsUnixMs"`
}

// KafkaNotifier publishes one message per commit to a fixed topic, keyed
// by CommitID so broker-side idempotent production dedups retries.
type KafkaNotifier struct {
	producer       KafkaProducer
	topic          string
	defaultTimeout time.Duration
}

// NewKafkaNotifier returns a notifier publishing to topic via producer.
func NewKafkaNotifier(producer KafkaProducer, topic string) *KafkaNotifier {
	return &KafkaNotifier{producer: producer, topic: topic, defaultTimeout: 10 * time.Second}
}

// NotifyCommit marshals event and produces it to the configured topic.
func (k *KafkaNotifier) NotifyCommit(event CommitEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), k.defaultTimeout)
	defer cancel()

	msg := commitMessage{
		TablePath: event.TablePath,
		Version:   event.Version,
		Operation: event.Operation,
		CommitID:  event.CommitID,
		TsUnixMs:  event.Timestamp.UnixMilli(),
	}
	value, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return k.producer.Produce(ctx, k.topic, []byte(event.CommitID), value, nil)
}
