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
	"container/heap"
	"math/rand"
	"sync"

	"lakehouse/internal/metrics"
	"lakehouse/pkg/endpoint"
)

// DeliveryHandler is invoked synchronously by Tick for every message that
// is due and not partitioned away.
type DeliveryHandler func(Envelope)

type pairKey struct{ a, b endpoint.Endpoint }

func makePairKey(a, b endpoint.Endpoint) pairKey {
	// Canonicalize order so {a,b} and {b,a} hash to the same key.
	if a.String() > b.String() {
		a, b = b, a
	}
	return pairKey{a: a, b: b}
}

// scheduledQueue is a container/heap.Interface ordered by (DeliveryTick,
// SequenceNumber) ascending, giving FIFO tie-break at equal delivery ticks.
type scheduledQueue []ScheduledMessage

func (q scheduledQueue) Len() int { return len(q) }
func (q scheduledQueue) Less(i, j int) bool {
	if q[i].DeliveryTick != q[j].DeliveryTick {
		return q[i].DeliveryTick < q[j].DeliveryTick
	}
	return q[i].SequenceNumber < q[j].SequenceNumber
}
func (q scheduledQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *scheduledQueue) Push(x any)   { *q = append(*q, x.(ScheduledMessage)) }
func (q *scheduledQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

// SimulatedNetwork is a deterministic, configurable message transport
// driven by a monotonic integer tick, per spec.md §4.1.
type SimulatedNetwork struct {
	mu sync.Mutex

	currentTick uint64
	nextSeq     uint64
	nextMsgID   uint64
	queue       scheduledQueue
	partitions  map[pairKey]struct{}
	handler     DeliveryHandler

	lossRate         float64
	minLatencyTicks  uint64
	maxLatencyTicks  uint64
	maxPerTick       int // 0 = unbounded

	rnd *rand.Rand
}

// NewSimulatedNetwork returns a SimulatedNetwork with zero loss, zero latency, and no
// per-tick message cap — the documented defaults.
func NewSimulatedNetwork() *SimulatedNetwork {
	return &SimulatedNetwork{
		partitions: make(map[pairKey]struct{}),
		rnd:        rand.New(rand.NewSource(1)),
	}
}

// SetSeed pins the PRNG used for loss and latency jitter, for reproducible
// tests.
func (n *SimulatedNetwork) SetSeed(seed int64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.rnd = rand.New(rand.NewSource(seed))
}

// SetDeliveryHandler installs the callback Tick invokes for due messages.
func (n *SimulatedNetwork) SetDeliveryHandler(h DeliveryHandler) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.handler = h
}

// SetMessageLossRate sets the probability in [0,1] that Send silently
// drops a message.
func (n *SimulatedNetwork) SetMessageLossRate(rate float64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.lossRate = rate
}

// SetLatencyRange sets the inclusive tick range added to a message's
// delivery time: 0 <= min <= max.
func (n *SimulatedNetwork) SetLatencyRange(min, max uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.minLatencyTicks = min
	n.maxLatencyTicks = max
}

// SetMaxMessagesPerTick bounds how many due messages Tick drains in one
// call; 0 means unbounded.
func (n *SimulatedNetwork) SetMaxMessagesPerTick(max int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.maxPerTick = max
}

// Disconnect partitions a and b: no message flows in either direction
// until Reconnect or ReconnectAll.
func (n *SimulatedNetwork) Disconnect(a, b endpoint.Endpoint) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.partitions[makePairKey(a, b)] = struct{}{}
}

// Reconnect removes a single partition between a and b.
func (n *SimulatedNetwork) Reconnect(a, b endpoint.Endpoint) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.partitions, makePairKey(a, b))
}

// ReconnectAll clears every partition.
func (n *SimulatedNetwork) ReconnectAll() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.partitions = make(map[pairKey]struct{})
}

func (n *SimulatedNetwork) isPartitionedLocked(a, b endpoint.Endpoint) bool {
	_, blocked := n.partitions[makePairKey(a, b)]
	return blocked
}

// NextMessageID allocates a fresh monotonically increasing message id, for
// use by callers constructing an Envelope (e.g. MessageBus.Send).
func (n *SimulatedNetwork) NextMessageID() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.nextMsgID++
	return n.nextMsgID
}

// CurrentTick returns the current simulated tick.
func (n *SimulatedNetwork) CurrentTick() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.currentTick
}

// Send enqueues envelope for future delivery. It returns false without
// enqueuing if source<->destination is partitioned or the message is lost
// to the configured loss rate; otherwise it schedules delivery for
// currentTick + max(1, rand[min,max]) and returns true. Each call
// atomically allocates a fresh sequence number to preserve FIFO ordering
// among messages scheduled for the same tick.
func (n *SimulatedNetwork) Send(env Envelope) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.isPartitionedLocked(env.Source, env.Destination) {
		metrics.MessagesDropped.Inc()
		return false
	}
	if n.lossRate > 0 && n.rnd.Float64() < n.lossRate {
		metrics.MessagesDropped.Inc()
		return false
	}

	jitter := uint64(0)
	if n.maxLatencyTicks > n.minLatencyTicks {
		jitter = n.minLatencyTicks + uint64(n.rnd.Int63n(int64(n.maxLatencyTicks-n.minLatencyTicks+1)))
	} else {
		jitter = n.minLatencyTicks
	}
	if jitter < 1 {
		jitter = 1
	}

	n.nextSeq++
	heap.Push(&n.queue, ScheduledMessage{
		Envelope:       env,
		DeliveryTick:   n.currentTick + jitter,
		SequenceNumber: n.nextSeq,
	})
	metrics.MessagesSent.Inc()
	return true
}

// Tick advances the simulated clock by one, delivers every message whose
// DeliveryTick is now due (up to maxPerTick), and re-enqueues any overflow
// for currentTick+1 with a freshly allocated sequence number. It returns
// the number of messages actually delivered.
func (n *SimulatedNetwork) Tick() int {
	n.mu.Lock()
	n.currentTick++
	tick := n.currentTick

	var ready []ScheduledMessage
	for n.queue.Len() > 0 && n.queue[0].DeliveryTick <= tick {
		sm := heap.Pop(&n.queue).(ScheduledMessage)
		ready = append(ready, sm)
	}

	var toDeliver []ScheduledMessage
	if n.maxPerTick > 0 && len(ready) > n.maxPerTick {
		toDeliver = ready[:n.maxPerTick]
		for _, sm := range ready[n.maxPerTick:] {
			n.nextSeq++
			sm.DeliveryTick = tick + 1
			sm.SequenceNumber = n.nextSeq
			heap.Push(&n.queue, sm)
		}
	} else {
		toDeliver = ready
	}

	handler := n.handler
	partitions := n.partitions
	n.mu.Unlock()

	delivered := 0
	for _, sm := range toDeliver {
		if _, blocked := partitions[makePairKey(sm.Envelope.Source, sm.Envelope.Destination)]; blocked {
			metrics.MessagesDropped.Inc()
			continue
		}
		if handler != nil {
			handler(sm.Envelope)
		}
		metrics.MessagesDelivered.Inc()
		delivered++
	}
	return delivered
}

// Reset zeroes the tick, clears the queue and partitions, and restores the
// default loss/latency/cap configuration.
func (n *SimulatedNetwork) Reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.currentTick = 0
	n.nextSeq = 0
	n.queue = nil
	n.partitions = make(map[pairKey]struct{})
	n.lossRate = 0
	n.minLatencyTicks = 0
	n.maxLatencyTicks = 0
	n.maxPerTick = 0
}
