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
	"strings"
	"time"

	"lakehouse/internal/lakeerr"
	"lakehouse/internal/network"
)

// defaultDeadline bounds how long ObjectStorage waits on a future before
// surfacing a Timeout error, per spec.md §5's cancellation policy.
const defaultDeadline = 10 * time.Second

// ObjectStorage is the blocking façade the delta-log and transaction
// layers are written against: it implements deltalog.Storage by racing
// each StoreClient future against a deadline timer.
type ObjectStorage struct {
	client   *StoreClient
	deadline time.Duration
}

// New constructs an ObjectStorage over client with the default deadline.
// Use WithDeadline to override it.
func New(client *StoreClient) *ObjectStorage {
	return &ObjectStorage{client: client, deadline: defaultDeadline}
}

// WithDeadline overrides the facade's per-request deadline.
func (o *ObjectStorage) WithDeadline(d time.Duration) *ObjectStorage {
	o.deadline = d
	return o
}

// WriteObject creates or overwrites the object at path.
func (o *ObjectStorage) WriteObject(path string, data []byte) error {
	ch, correlationID, ok := o.client.Put(path, data, true)
	if !ok {
		return lakeerr.Timeout("writeObject: destination backpressure exhausted")
	}
	resp, err := o.await(ch, correlationID)
	if err != nil {
		return err
	}
	if !resp.OK {
		return lakeerr.IO("writeObject", errString(resp.Err))
	}
	return nil
}

// ReadObject returns the bytes stored at path. A server reply carrying the
// NotFound marker surfaces as lakeerr.ErrNotFound; any other failure
// (a genuine LocalStorage IO error) is re-raised as lakeerr.ErrIO rather
// than silently recast as NotFound, per spec.md §4.7/§7.
func (o *ObjectStorage) ReadObject(path string) ([]byte, error) {
	ch, correlationID, ok := o.client.Get(path)
	if !ok {
		return nil, lakeerr.Timeout("readObject: destination backpressure exhausted")
	}
	resp, err := o.await(ch, correlationID)
	if err != nil {
		return nil, err
	}
	if !resp.OK {
		if strings.HasPrefix(resp.Err, lakeerr.NotFoundPrefix()) {
			return nil, lakeerr.NotFound(path)
		}
		return nil, lakeerr.IO("readObject", errString(resp.Err))
	}
	return resp.Data, nil
}

// ObjectExists reports whether path currently resolves. Any ReadObject
// error yields false: NotFound, but also Timeout and IO failures, which are
// not reported separately.
func (o *ObjectStorage) ObjectExists(path string) bool {
	_, err := o.ReadObject(path)
	return err == nil
}

// DeleteObject removes path; deletion of an absent object is not an error.
func (o *ObjectStorage) DeleteObject(path string) error {
	ch, correlationID, ok := o.client.Delete(path)
	if !ok {
		return lakeerr.Timeout("deleteObject: destination backpressure exhausted")
	}
	resp, err := o.await(ch, correlationID)
	if err != nil {
		return err
	}
	if !resp.OK {
		return lakeerr.IO("deleteObject", errString(resp.Err))
	}
	return nil
}

// ListObjects returns every key whose stored path starts with prefix,
// aggregated across every shard in the ring.
func (o *ObjectStorage) ListObjects(prefix string) ([]string, error) {
	ch := o.client.ListObjects(prefix)
	select {
	case resp := <-ch:
		if !resp.OK {
			return nil, lakeerr.IO("listObjects", errString(resp.Err))
		}
		return resp.Keys, nil
	case <-time.After(o.deadline):
		return nil, lakeerr.Timeout("listObjects")
	}
}

func (o *ObjectStorage) await(ch <-chan network.Message, correlationID string) (network.Message, error) {
	select {
	case resp := <-ch:
		return resp, nil
	case <-time.After(o.deadline):
		o.client.Abandon(correlationID)
		return network.Message{}, lakeerr.Timeout("object store request " + correlationID)
	}
}

func errString(s string) error {
	if s == "" {
		return lakeerr.ErrIO
	}
	return errorString(s)
}

type errorString string

func (e errorString) Error() string { return string(e) }
