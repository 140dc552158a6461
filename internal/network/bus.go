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

package network

import (
	"sync"
	"sync/atomic"
	"time"

	"lakehouse/internal/logging"
	"lakehouse/pkg/endpoint"
)

// MessageHandler processes an inbound Envelope addressed to the Endpoint it
// is registered under.
type MessageHandler func(Envelope)

// MessageBus is a façade around SimulatedNetwork: it maintains the
// Endpoint -> MessageHandler registry and owns the single background
// ticker that drives network.Tick(). The ticker/stop/wait shape here is
// adapted from the teacher's background commit-and-eviction worker
// (internal/ratelimiter/core/worker.go): a ticker, a stopChan, and a
// sync.WaitGroup awaited on Stop.
type MessageBus struct {
	network *SimulatedNetwork

	handlersMu sync.RWMutex
	handlers   map[endpoint.Endpoint]MessageHandler

	tickInterval time.Duration
	stopChan     chan struct{}
	wg           sync.WaitGroup
	stopped      atomic.Bool
	started      atomic.Bool
}

// defaultTickInterval is the wall-clock period between automatic ticks
// when the bus drives its own ticker, per spec.md §4.2.
const defaultTickInterval = 100 * time.Millisecond

// NewMessageBus constructs a MessageBus over net with the default tick interval.
// Use WithTickInterval to override it, and Tick (exported for tests) to
// drive the network manually instead of starting the ticker.
func NewMessageBus(net *SimulatedNetwork) *MessageBus {
	b := &MessageBus{
		network:      net,
		handlers:     make(map[endpoint.Endpoint]MessageHandler),
		tickInterval: defaultTickInterval,
		stopChan:     make(chan struct{}),
	}
	net.SetDeliveryHandler(b.deliver)
	return b
}

// WithTickInterval overrides the wall-clock ticker period. Must be called
// before Start.
func (b *MessageBus) WithTickInterval(d time.Duration) *MessageBus {
	b.tickInterval = d
	return b
}

// RegisterHandler attaches handler to endpoint ep, replacing any previous
// registration.
func (b *MessageBus) RegisterHandler(ep endpoint.Endpoint, handler MessageHandler) {
	b.handlersMu.Lock()
	defer b.handlersMu.Unlock()
	b.handlers[ep] = handler
}

// UnregisterHandler removes ep's handler, if any.
func (b *MessageBus) UnregisterHandler(ep endpoint.Endpoint) {
	b.handlersMu.Lock()
	defer b.handlersMu.Unlock()
	delete(b.handlers, ep)
}

// Send wraps payload in an Envelope with a fresh monotonic message id and
// hands it to the network. It refuses silently (logging at Debug) once the
// bus is stopped; a message the network drops (loss/partition) is likewise
// silent here — its absence is only observable as a timeout upstream.
func (b *MessageBus) Send(payload Message, src, dst endpoint.Endpoint) {
	if b.stopped.Load() {
		logging.L().Debug("message bus stopped, dropping send", "src", src, "dst", dst)
		return
	}
	env := Envelope{
		MessageID:   b.network.NextMessageID(),
		Source:      src,
		Destination: dst,
		Payload:     payload,
	}
	if !b.network.Send(env) {
		logging.L().Debug("message not enqueued", "src", src, "dst", dst, "kind", payload.Kind)
	}
}

func (b *MessageBus) deliver(env Envelope) {
	b.handlersMu.RLock()
	handler, ok := b.handlers[env.Destination]
	b.handlersMu.RUnlock()
	if !ok {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logging.L().Error("handler panicked", "destination", env.Destination, "recover", r)
		}
	}()
	handler(env)
}

// Start launches the background ticker goroutine that calls network.Tick()
// every tickInterval. Calling Start twice is a no-op.
func (b *MessageBus) Start() {
	if !b.started.CompareAndSwap(false, true) {
		return
	}
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		ticker := time.NewTicker(b.tickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				b.network.Tick()
			case <-b.stopChan:
				return
			}
		}
	}()
}

// Stop cancels the ticker and waits (bounded to 5s) for it to exit.
func (b *MessageBus) Stop() {
	if !b.stopped.CompareAndSwap(false, true) {
		return
	}
	close(b.stopChan)

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		logging.L().Warn("message bus ticker did not stop within 5s")
	}
}

// Tick drives the underlying network manually, for tests that don't want
// wall-clock nondeterminism.
func (b *MessageBus) Tick() int { return b.network.Tick() }
