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

package objectstore

import (
	"sync"

	"github.com/google/uuid"

	"lakehouse/internal/backpressure"
	"lakehouse/internal/logging"
	"lakehouse/internal/network"
	"lakehouse/pkg/endpoint"
	"lakehouse/pkg/hashring"
)

// pendingSingle is the completion state for a request routed to exactly
// one shard: Put/Get/Delete.
type pendingSingle struct {
	dst endpoint.Endpoint
	ch  chan network.Message
}

// listAggregator is the shared completion state for a listObjects fan-out
// broadcast to every member of the ring: one sub-request per server, all
// sharing remaining/keys/done.
type listAggregator struct {
	mu        sync.Mutex
	remaining int
	keys      map[string]struct{}
	errs      []string
	done      chan network.Message
	closed    bool
}

func (a *listAggregator) arrive(dst endpoint.Endpoint, msg network.Message, c *StoreClient) {
	a.mu.Lock()
	if msg.OK {
		for _, k := range msg.Keys {
			a.keys[k] = struct{}{}
		}
	} else if msg.Err != "" {
		a.errs = append(a.errs, msg.Err)
	}
	a.remaining--
	done := a.remaining <= 0
	var result network.Message
	if done && !a.closed {
		a.closed = true
		result = network.Message{Kind: network.ListObjectsResponse, OK: true, Keys: keysOf(a.keys)}
	}
	a.mu.Unlock()

	// c is nil when no budget unit was consumed for this reply.
	if c != nil {
		c.releaseBudget(dst)
	}
	if done {
		a.done <- result
		close(a.done)
	}
}

func keysOf(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

// StoreClient routes PUT/GET/DELETE requests to the ring member that owns
// the key, broadcasts LIST requests to every member, and tracks in-flight
// requests by correlationId so responses (delivered asynchronously through
// the MessageBus) can be matched back to their caller.
type StoreClient struct {
	self endpoint.Endpoint
	bus  *network.MessageBus
	ring *hashring.Ring

	budgetCapacity int64
	budgetsMu      sync.Mutex
	budgets        map[endpoint.Endpoint]*backpressure.Budget

	pendingMu sync.Mutex
	pending   map[string]pendingSingle
	lists     map[string]*listAggregator
}

// NewStoreClient constructs a client addressed at self, dispatching over
// bus and routed through ring. budgetCapacity bounds the number of
// concurrent in-flight requests allowed per destination server; 0 disables
// the cap.
func NewStoreClient(self endpoint.Endpoint, bus *network.MessageBus, ring *hashring.Ring, budgetCapacity int64) *StoreClient {
	c := &StoreClient{
		self:           self,
		bus:            bus,
		ring:           ring,
		budgetCapacity: budgetCapacity,
		budgets:        make(map[endpoint.Endpoint]*backpressure.Budget),
		pending:        make(map[string]pendingSingle),
		lists:          make(map[string]*listAggregator),
	}
	bus.RegisterHandler(self, c.handle)
	return c
}

func (c *StoreClient) budgetFor(dst endpoint.Endpoint) *backpressure.Budget {
	c.budgetsMu.Lock()
	defer c.budgetsMu.Unlock()
	b, ok := c.budgets[dst]
	if !ok {
		b = backpressure.New(c.budgetCapacity)
		c.budgets[dst] = b
	}
	return b
}

func (c *StoreClient) releaseBudget(dst endpoint.Endpoint) {
	c.budgetFor(dst).Release()
}

// Put dispatches a PUT_OBJECT request to the ring member owning key and
// returns a future channel that receives exactly one response, along with
// the correlationId the facade should pass to Abandon on timeout.
func (c *StoreClient) Put(key string, data []byte, overwrite bool) (<-chan network.Message, string, bool) {
	dst, ok := c.ring.GetServerForKey(key)
	if !ok {
		return nil, "", false
	}
	msg := network.Message{Kind: network.PutObject, Key: key, Data: data, Overwrite: overwrite}
	return c.dispatchSingle(dst, msg)
}

// Get dispatches a GET_OBJECT request to the ring member owning key.
func (c *StoreClient) Get(key string) (<-chan network.Message, string, bool) {
	dst, ok := c.ring.GetServerForKey(key)
	if !ok {
		return nil, "", false
	}
	msg := network.Message{Kind: network.GetObject, Key: key}
	return c.dispatchSingle(dst, msg)
}

// Delete dispatches a DELETE_OBJECT request to the ring member owning key.
func (c *StoreClient) Delete(key string) (<-chan network.Message, string, bool) {
	dst, ok := c.ring.GetServerForKey(key)
	if !ok {
		return nil, "", false
	}
	msg := network.Message{Kind: network.DeleteObject, Key: key}
	return c.dispatchSingle(dst, msg)
}

func (c *StoreClient) dispatchSingle(dst endpoint.Endpoint, msg network.Message) (<-chan network.Message, string, bool) {
	budget := c.budgetFor(dst)
	if !budget.TryConsume() {
		return nil, "", false
	}
	msg.CorrelationID = uuid.NewString()
	ch := make(chan network.Message, 1)

	c.pendingMu.Lock()
	c.pending[msg.CorrelationID] = pendingSingle{dst: dst, ch: ch}
	c.pendingMu.Unlock()

	c.bus.Send(msg, c.self, dst)
	return ch, msg.CorrelationID, true
}

// ListObjects broadcasts a LIST_OBJECTS request to every member of the
// ring and returns a future that fires once every shard has replied, with
// the union of all returned keys. There is no Abandon for list requests: if
// a shard never replies the future never fires, and that shard's pending
// entry and budget unit stay held.
func (c *StoreClient) ListObjects(prefix string) <-chan network.Message {
	members := c.ring.Members()
	done := make(chan network.Message, 1)
	if len(members) == 0 {
		done <- network.Message{Kind: network.ListObjectsResponse, OK: true}
		return done
	}

	agg := &listAggregator{remaining: len(members), keys: make(map[string]struct{}), done: done}
	for _, dst := range members {
		budget := c.budgetFor(dst)
		if !budget.TryConsume() {
			// Treat an exhausted budget as an empty, successful reply from
			// that shard rather than stalling the whole broadcast.
			agg.arrive(dst, network.Message{Kind: network.ListObjectsResponse, OK: true}, nil)
			continue
		}
		correlationID := uuid.NewString()
		c.pendingMu.Lock()
		c.lists[correlationID] = agg
		c.pendingMu.Unlock()
		c.bus.Send(network.Message{Kind: network.ListObjects, Prefix: prefix, CorrelationID: correlationID}, c.self, dst)
	}
	return done
}

func (c *StoreClient) handle(env network.Envelope) {
	msg := env.Payload
	switch msg.Kind {
	case network.PutObjectResponse, network.GetObjectResponse, network.DeleteObjectResponse:
		c.pendingMu.Lock()
		entry, ok := c.pending[msg.CorrelationID]
		if ok {
			delete(c.pending, msg.CorrelationID)
		}
		c.pendingMu.Unlock()
		if !ok {
			logging.L().Debug("late or unknown response, discarding", "correlationId", msg.CorrelationID)
			return
		}
		c.releaseBudget(entry.dst)
		entry.ch <- msg
		close(entry.ch)
	case network.ListObjectsResponse:
		c.pendingMu.Lock()
		agg, ok := c.lists[msg.CorrelationID]
		if ok {
			delete(c.lists, msg.CorrelationID)
		}
		c.pendingMu.Unlock()
		if !ok {
			logging.L().Debug("late or unknown list response, discarding", "correlationId", msg.CorrelationID)
			return
		}
		agg.arrive(env.Source, msg, c)
	default:
		logging.L().Warn("store client received a non-response message", "kind", msg.Kind)
	}
}

// Abandon drops the pending entry for correlationID without delivering a
// response, used by the facade when its deadline expires. A subsequent
// late arrival for the same id is discarded by handle's map-miss path.
func (c *StoreClient) Abandon(correlationID string) {
	c.pendingMu.Lock()
	entry, ok := c.pending[correlationID]
	if ok {
		delete(c.pending, correlationID)
	}
	c.pendingMu.Unlock()
	if ok {
		c.releaseBudget(entry.dst)
	}
}
