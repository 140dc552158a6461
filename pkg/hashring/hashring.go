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

// Package hashring implements the consistent-hash ring that routes object
// keys to the StoreServer that owns their shard. Reads (GetServerForKey,
// GetServersForKey, Members) take a shared read lock, so they run
// concurrently with each other but not with mutation; AddServer and
// RemoveServer take the exclusive write lock. Reads are not lock-free.
package hashring

import (
	"fmt"
	"sort"
	"sync"

	"lakehouse/pkg/endpoint"
)

// VirtualNodesPerServer is the number of ring points each live server owns.
const VirtualNodesPerServer = 100

// Ring is a consistent hash ring mapping 64-bit hash values to Endpoints.
type Ring struct {
	mu sync.RWMutex

	// points is kept sorted ascending by hash for binary-search routing.
	points []point
	// owned tracks the virtual-node hash set per endpoint, so RemoveServer
	// can find exactly the points to drop without a linear scan.
	owned map[endpoint.Endpoint]map[uint64]struct{}
}

type point struct {
	hash uint64
	ep   endpoint.Endpoint
}

// New returns an empty ring.
func New() *Ring {
	return &Ring{owned: make(map[endpoint.Endpoint]map[uint64]struct{})}
}

// AddServer inserts VirtualNodesPerServer ring points for ep. Adding a
// server already present first removes its old points, so re-adding is
// idempotent rather than doubling its virtual nodes.
func (r *Ring) AddServer(ep endpoint.Endpoint) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.removeLocked(ep)

	hashes := make(map[uint64]struct{}, VirtualNodesPerServer)
	for i := 0; i < VirtualNodesPerServer; i++ {
		h := hash64(fmt.Sprintf("%s#%d", ep.String(), i))
		hashes[h] = struct{}{}
		r.points = append(r.points, point{hash: h, ep: ep})
	}
	r.owned[ep] = hashes

	sort.Slice(r.points, func(i, j int) bool { return r.points[i].hash < r.points[j].hash })
}

// RemoveServer removes all of ep's ring points. A key previously routed to
// ep is reassigned to whichever server now owns the next point clockwise;
// all other keys are unaffected, the standard consistent-hashing property.
func (r *Ring) RemoveServer(ep endpoint.Endpoint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(ep)
}

func (r *Ring) removeLocked(ep endpoint.Endpoint) {
	hashes, ok := r.owned[ep]
	if !ok {
		return
	}
	filtered := r.points[:0]
	for _, p := range r.points {
		if _, drop := hashes[p.hash]; drop {
			continue
		}
		filtered = append(filtered, p)
	}
	r.points = filtered
	delete(r.owned, ep)
}

// GetServerForKey returns the Endpoint owning key: the smallest ring entry
// whose hash is >= hash(key), wrapping to the first entry if none is found.
func (r *Ring) GetServerForKey(key string) (endpoint.Endpoint, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.points) == 0 {
		return endpoint.Endpoint{}, false
	}
	h := hash64(key)
	idx := sort.Search(len(r.points), func(i int) bool { return r.points[i].hash >= h })
	if idx == len(r.points) {
		idx = 0
	}
	return r.points[idx].ep, true
}

// GetServersForKey walks clockwise from key's position, skipping repeated
// endpoints, until n distinct servers are collected or a full revolution
// completes (fewer than n servers known).
func (r *Ring) GetServersForKey(key string, n int) []endpoint.Endpoint {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.points) == 0 || n <= 0 {
		return nil
	}
	h := hash64(key)
	start := sort.Search(len(r.points), func(i int) bool { return r.points[i].hash >= h })
	if start == len(r.points) {
		start = 0
	}

	seen := make(map[endpoint.Endpoint]struct{}, n)
	result := make([]endpoint.Endpoint, 0, n)
	for i := 0; i < len(r.points) && len(result) < n; i++ {
		p := r.points[(start+i)%len(r.points)]
		if _, ok := seen[p.ep]; ok {
			continue
		}
		seen[p.ep] = struct{}{}
		result = append(result, p.ep)
	}
	return result
}

// Members returns the distinct set of live server endpoints currently on
// the ring, in no particular order.
func (r *Ring) Members() []endpoint.Endpoint {
	r.mu.RLock()
	defer r.mu.RUnlock()
	members := make([]endpoint.Endpoint, 0, len(r.owned))
	for ep := range r.owned {
		members = append(members, ep)
	}
	return members
}
