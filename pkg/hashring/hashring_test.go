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

package hashring

import (
	"fmt"
	"testing"

	"lakehouse/pkg/endpoint"
)

func mustEndpoint(t *testing.T, host string, port int) endpoint.Endpoint {
	t.Helper()
	ep, err := endpoint.New(host, port)
	if err != nil {
		t.Fatalf("endpoint.New(%q, %d): %v", host, port, err)
	}
	return ep
}

func TestRing_RoutingIsDeterministic(t *testing.T) {
	r := New()
	for i := 0; i < 5; i++ {
		r.AddServer(mustEndpoint(t, "server", 9000+i))
	}

	first, ok := r.GetServerForKey("customer-CUST0001")
	if !ok {
		t.Fatalf("expected a server for the key")
	}
	for i := 0; i < 100; i++ {
		got, ok := r.GetServerForKey("customer-CUST0001")
		if !ok || got != first {
			t.Fatalf("routing is not deterministic: got %v, want %v", got, first)
		}
	}
}

func TestRing_EmptyRingHasNoServer(t *testing.T) {
	r := New()
	if _, ok := r.GetServerForKey("anything"); ok {
		t.Fatalf("expected no server on an empty ring")
	}
}

func TestRing_AddRemoveOnlyReassignsChangedArc(t *testing.T) {
	r := New()
	servers := make([]endpoint.Endpoint, 10)
	for i := range servers {
		servers[i] = mustEndpoint(t, "server", 9000+i)
		r.AddServer(servers[i])
	}

	keys := make([]string, 200)
	before := make(map[string]endpoint.Endpoint, len(keys))
	for i := range keys {
		keys[i] = fmt.Sprintf("key-%d", i)
		ep, _ := r.GetServerForKey(keys[i])
		before[keys[i]] = ep
	}

	removed := servers[3]
	r.RemoveServer(removed)

	changed := 0
	for _, k := range keys {
		ep, ok := r.GetServerForKey(k)
		if !ok {
			t.Fatalf("expected a server for %s after removal", k)
		}
		if ep != before[k] {
			changed++
			if before[k] != removed {
				t.Fatalf("key %s moved from %v to %v but wasn't owned by the removed server", k, before[k], ep)
			}
		}
	}
	if changed == 0 {
		t.Fatalf("expected at least one key to move after removing a server")
	}
}

func TestRing_GetServersForKeyReturnsDistinctEndpoints(t *testing.T) {
	r := New()
	for i := 0; i < 4; i++ {
		r.AddServer(mustEndpoint(t, "server", 9000+i))
	}

	got := r.GetServersForKey("some-key", 3)
	if len(got) != 3 {
		t.Fatalf("expected 3 distinct servers, got %d: %v", len(got), got)
	}
	seen := make(map[endpoint.Endpoint]struct{})
	for _, ep := range got {
		if _, dup := seen[ep]; dup {
			t.Fatalf("duplicate endpoint in result: %v", ep)
		}
		seen[ep] = struct{}{}
	}
}

func TestRing_GetServersForKeyClampsToKnownServerCount(t *testing.T) {
	r := New()
	r.AddServer(mustEndpoint(t, "server", 9000))
	r.AddServer(mustEndpoint(t, "server", 9001))

	got := r.GetServersForKey("some-key", 10)
	if len(got) != 2 {
		t.Fatalf("expected 2 servers (all that are known), got %d", len(got))
	}
}

func TestRing_ReAddingServerDoesNotDoubleItsVirtualNodes(t *testing.T) {
	r := New()
	ep := mustEndpoint(t, "server", 9000)
	r.AddServer(ep)
	r.AddServer(ep)

	if got := len(r.points); got != VirtualNodesPerServer {
		t.Fatalf("expected %d ring points after re-adding the same server, got %d", VirtualNodesPerServer, got)
	}
}
