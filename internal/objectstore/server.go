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

// Package objectstore implements the RPC server/client pair and blocking
// facade described in spec.md §4.3–§4.7: StoreServer answers PUT/GET/
// DELETE/LIST requests against a LocalStorage, StoreClient routes requests
// to the right shard over a MessageBus and tracks responses by
// correlationId, and ObjectStorage is the blocking façade the transaction
// and delta-log layers consume.
package objectstore

import (
	"lakehouse/internal/logging"
	"lakehouse/internal/network"
	"lakehouse/internal/storage"
	"lakehouse/pkg/endpoint"
)

// StoreServer answers object-store requests addressed to one Endpoint by
// delegating to a local LocalStorage. One StoreServer is registered per
// shard/server in the hash ring.
type StoreServer struct {
	self  endpoint.Endpoint
	bus   *network.MessageBus
	local *storage.LocalStorage
}

// NewStoreServer registers a handler on bus for self and backs it with
// local. Requests addressed to any other endpoint are not seen by this
// server.
func NewStoreServer(self endpoint.Endpoint, bus *network.MessageBus, local *storage.LocalStorage) *StoreServer {
	s := &StoreServer{self: self, bus: bus, local: local}
	bus.RegisterHandler(self, s.handle)
	return s
}

// Endpoint returns the address this server answers requests on.
func (s *StoreServer) Endpoint() endpoint.Endpoint { return s.self }

func (s *StoreServer) handle(env network.Envelope) {
	req := env.Payload
	switch req.Kind {
	case network.PutObject:
		s.handlePut(env)
	case network.GetObject:
		s.handleGet(env)
	case network.DeleteObject:
		s.handleDelete(env)
	case network.ListObjects:
		s.handleList(env)
	default:
		logging.L().Warn("store server received a non-request message", "kind", req.Kind, "self", s.self)
	}
}

func (s *StoreServer) handlePut(env network.Envelope) {
	req := env.Payload
	resp := network.Message{Kind: network.PutObjectResponse, CorrelationID: req.CorrelationID, Key: req.Key}
	if err := s.local.Put(req.Key, req.Data, req.Overwrite); err != nil {
		resp.OK = false
		resp.Err = err.Error()
	} else {
		resp.OK = true
	}
	s.bus.Send(resp, s.self, env.Source)
}

func (s *StoreServer) handleGet(env network.Envelope) {
	req := env.Payload
	resp := network.Message{Kind: network.GetObjectResponse, CorrelationID: req.CorrelationID, Key: req.Key}
	data, err := s.local.Get(req.Key)
	if err != nil {
		resp.OK = false
		resp.Err = err.Error()
	} else {
		resp.OK = true
		resp.Data = data
	}
	s.bus.Send(resp, s.self, env.Source)
}

func (s *StoreServer) handleDelete(env network.Envelope) {
	req := env.Payload
	resp := network.Message{Kind: network.DeleteObjectResponse, CorrelationID: req.CorrelationID, Key: req.Key}
	if err := s.local.Delete(req.Key); err != nil {
		resp.OK = false
		resp.Err = err.Error()
	} else {
		resp.OK = true
	}
	s.bus.Send(resp, s.self, env.Source)
}

func (s *StoreServer) handleList(env network.Envelope) {
	req := env.Payload
	resp := network.Message{Kind: network.ListObjectsResponse, CorrelationID: req.CorrelationID, Prefix: req.Prefix}
	keys, err := s.local.ListObjects(req.Prefix)
	if err != nil {
		resp.OK = false
		resp.Err = err.Error()
	} else {
		resp.OK = true
		resp.Keys = keys
	}
	s.bus.Send(resp, s.self, env.Source)
}
