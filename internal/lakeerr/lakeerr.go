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

// Package lakeerr defines the error taxonomy shared by every layer of the
// table store: storage, transport, and the transaction manager. Each kind
// is a distinct sentinel so callers can branch with errors.Is, and each
// constructor wraps an optional cause with %w so the root error survives
// errors.As/Unwrap chains.
package lakeerr

import (
	"errors"
	"fmt"
)

// Sentinel kinds. Compare with errors.Is, never by string.
var (
	ErrNotFound               = errors.New("not found")
	ErrAlreadyExists          = errors.New("already exists")
	ErrTimeout                = errors.New("timeout")
	ErrTransport              = errors.New("transport")
	ErrConcurrentModification = errors.New("concurrent modification")
	ErrInvalidArgument        = errors.New("invalid argument")
	ErrIO                     = errors.New("io")
)

// notFoundPrefix is part of the external contract: ObjectStorage.ReadObject
// pattern-matches this exact string in a server's error reply to tell
// NotFound apart from other failures, per spec.md §4.3/§4.6/§4.7.
const notFoundPrefix = "Failed to retrieve object: "

// NotFound builds the NotFound error for a missing key. The message is part
// of the wire contract: callers may translate it into a boolean existence
// check by matching the prefix, but new code should prefer errors.Is(err,
// ErrNotFound) instead of string inspection.
func NotFound(key string) error {
	return fmt.Errorf("%s%s: %w", notFoundPrefix, key, ErrNotFound)
}

// NotFoundPrefix exposes the marker string for legacy substring matching.
func NotFoundPrefix() string { return notFoundPrefix }

// AlreadyExists builds the AlreadyExists error for a non-overwrite put that
// collided with an existing key.
func AlreadyExists(key string) error {
	return fmt.Errorf("object already exists: %s: %w", key, ErrAlreadyExists)
}

// Timeout builds a Timeout error for a facade deadline that elapsed before a
// response arrived.
func Timeout(op string) error {
	return fmt.Errorf("%s timed out: %w", op, ErrTimeout)
}

// Transport builds a Transport error for a message the simulated network
// dropped (loss, partition, or an unroutable destination).
func Transport(reason string) error {
	return fmt.Errorf("message not delivered: %s: %w", reason, ErrTransport)
}

// ConcurrentModification builds the error returned when a transaction's
// readVersion is stale at commit time.
func ConcurrentModification(tablePath string, readVersion, latestVersion int64) error {
	return fmt.Errorf("table %s: readVersion %d is stale, latest is %d: %w",
		tablePath, readVersion, latestVersion, ErrConcurrentModification)
}

// InvalidArgument builds an error for a programmer mistake: a negative
// version, a malformed log filename, or a bad configuration value.
func InvalidArgument(msg string) error {
	return fmt.Errorf("%s: %w", msg, ErrInvalidArgument)
}

// IO wraps an underlying storage failure that isn't one of the above kinds.
func IO(op string, cause error) error {
	return fmt.Errorf("%s: %w: %w", op, cause, ErrIO)
}
