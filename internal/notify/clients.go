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

	redis "github.com/redis/go-redis/v9"

	"lakehouse/internal/logging"
)

// GoRedisEvaler wraps github.com/redis/go-redis/v9 as a RedisEvaler.
type GoRedisEvaler struct{ c *redis.Client }

// NewGoRedisEvaler returns a RedisEvaler backed by a client for addr. No
// connection is opened here; the client connects on its first command.
func NewGoRedisEvaler(addr string) *GoRedisEvaler {
	return &GoRedisEvaler{c: redis.NewClient(&redis.Options{Addr: addr})}
}

// Eval implements RedisEvaler.
func (g *GoRedisEvaler) Eval(ctx context.Context, script string, keys []string, args ...interface{}) (interface{}, error) {
	return g.c.Eval(ctx, script, keys, args...).Result()
}

// Close releases the underlying connection pool.
func (g *GoRedisEvaler) Close() error { return g.c.Close() }

// LoggingKafkaProducer is a demo KafkaProducer that logs instead of
// publishing, so the demo binary can select the Kafka-backed notifier path
// without a running broker.
type LoggingKafkaProducer struct{}

// Produce logs the message it would have sent.
func (LoggingKafkaProducer) Produce(ctx context.Context, topic string, key, value []byte, headers map[string]string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	logging.L().Info("kafka notify (demo producer)", "topic", topic, "key", string(key), "bytes", len(value))
	return nil
}
