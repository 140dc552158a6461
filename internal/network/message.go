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

// Package network implements the deterministic, tick-driven simulated
// transport (SimulatedNetwork) and the handler-registry facade around it
// (MessageBus) described in spec.md §4.1–§4.2.
package network

import "lakehouse/pkg/endpoint"

// Kind discriminates the request/response pairs carried by Message. A flat
// struct with a discriminant avoids an interface/downcast hierarchy, the
// same tagged-union shape spec.md §9 calls for.
type Kind int

const (
	PutObject Kind = iota
	PutObjectResponse
	GetObject
	GetObjectResponse
	DeleteObject
	DeleteObjectResponse
	ListObjects
	ListObjectsResponse
)

func (k Kind) String() string {
	switch k {
	case PutObject:
		return "PUT_OBJECT"
	case PutObjectResponse:
		return "PUT_OBJECT_RESPONSE"
	case GetObject:
		return "GET_OBJECT"
	case GetObjectResponse:
		return "GET_OBJECT_RESPONSE"
	case DeleteObject:
		return "DELETE_OBJECT"
	case DeleteObjectResponse:
		return "DELETE_OBJECT_RESPONSE"
	case ListObjects:
		return "LIST_OBJECTS"
	case ListObjectsResponse:
		return "LIST_OBJECTS_RESPONSE"
	default:
		return "UNKNOWN"
	}
}

// Message is the tagged union described in spec.md §3/§6.1. Every request
// carries a CorrelationID; the matching response echoes it.
type Message struct {
	Kind          Kind
	CorrelationID string

	Key       string
	Data      []byte
	Overwrite bool
	Prefix    string

	// Response fields.
	OK   bool
	Err  string
	Keys []string
}

// Envelope is immutable after construction: a monotonic MessageID, the
// source and destination Endpoint, and the carried Message.
type Envelope struct {
	MessageID   uint64
	Source      endpoint.Endpoint
	Destination endpoint.Endpoint
	Payload     Message
}

// ScheduledMessage pairs an Envelope with its simulated delivery tick and a
// monotonic sequence number used to break ties between messages scheduled
// for the same tick (FIFO).
type ScheduledMessage struct {
	Envelope       Envelope
	DeliveryTick   uint64
	SequenceNumber uint64
}
