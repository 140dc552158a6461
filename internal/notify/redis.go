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
	"fmt"
	"time"
)

// RedisEvaler abstracts the minimal surface needed from a Redis client:
// a single EVAL call. Implementations may wrap github.com/redis/go-redis/v9
// (Cmdable.Eval) or any equivalent scripting-capable client.
type RedisEvaler interface {
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) (interface{}, error)
}

// RedisNotifier publishes a commit idempotently: SETNX a per-commit marker,
// then PUBLISH the new version on a per-table channel only if the marker
// was not already set. A retried NotifyCommit call for the same CommitID
// is a no-op rather than a duplicate publish.
type RedisNotifier struct {
	client    RedisEvaler
	markerTTL time.Duration
}

// NewRedisNotifier returns a notifier using client, with markers expiring
// after markerTTL (defaulting to 24h if non-positive).
func NewRedisNotifier(client RedisEvaler, markerTTL time.Duration) *RedisNotifier {
	if markerTTL <= 0 {
		markerTTL = 24 * time.Hour
	}
	return &RedisNotifier{client: client, markerTTL: markerTTL}
}

// redisCommitScript returns 1 if this is the first time commitId was seen
// (and publishes), 0 if it was already applied.
const redisCommitScript = `
local markerKey = KEYS[1]
local channel = KEYS[2]
local payload = ARGV[1]
local ttlSeconds = tonumber(ARGV[2])
local set = redis.call('SETNX', markerKey, 1)
if set == 1 then
  redis.call('PUBLISH', channel, payload)
  if ttlSeconds and ttlSeconds > 0 then
    redis.call('EXPIRE', markerKey, ttlSeconds)
  end
  return 1
else
  return 0
end
`

func markerKey(tablePath, commitID string) string {
	return fmt.Sprintf("lakehouse:commit:%s:%s", tablePath, commitID)
}

func channelKey(tablePath string) string {
	return fmt.Sprintf("lakehouse:table:%s", tablePath)
}

// NotifyCommit publishes event.Version on the table's channel, guarded by
// an idempotency marker keyed on event.CommitID.
func (r *RedisNotifier) NotifyCommit(event CommitEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	payload := fmt.Sprintf("%d", event.Version)
	_, err := r.client.Eval(ctx, redisCommitScript,
		[]string{markerKey(event.TablePath, event.CommitID), channelKey(event.TablePath)},
		payload, int64(r.markerTTL/time.Second))
	return err
}
