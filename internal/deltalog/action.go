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

package deltalog

import (
	"encoding/json"
	"fmt"

	"lakehouse/internal/lakeerr"
)

// ActionType discriminates the tagged Action union, per spec.md §3/§6.2.
type ActionType string

const (
	ActionAdd        ActionType = "add"
	ActionRemove     ActionType = "remove"
	ActionCommitInfo ActionType = "commitInfo"
	// ActionMetadata is the supplemental table-bootstrap action added by
	// SPEC_FULL.md §3.1; it is not an AddFile/RemoveFile and is ignored by
	// Snapshot.ActiveFiles, but Snapshot.TableMetadata() surfaces the most
	// recently seen one.
	ActionMetadata ActionType = "metadata"
)

// Action is a single entry in a LogEntry's action sequence. Only the
// fields relevant to its Type are populated; the rest are left zero and
// omitted from JSON. Unknown fields on the wire are ignored by
// encoding/json; unknown Type values are rejected by DecodeActions.
type Action struct {
	Type ActionType `json:"type"`

	// AddFile
	Path             string            `json:"path,omitempty"`
	Size             uint64            `json:"size,omitempty"`
	ModificationTime uint64            `json:"modificationTime,omitempty"`
	PartitionValues  map[string]string `json:"partitionValues,omitempty"`
	DataChange       *bool             `json:"dataChange,omitempty"`
	Tags             map[string]string `json:"tags,omitempty"`
	Stats            string            `json:"stats,omitempty"`

	// RemoveFile (path is shared with AddFile above)
	DeletionTimestamp uint64 `json:"deletionTimestamp,omitempty"`

	// CommitInfo
	Operation  string            `json:"operation,omitempty"`
	Parameters map[string]string `json:"parameters,omitempty"`
	Timestamp  uint64            `json:"timestamp,omitempty"`

	// TableMetadata
	ID               string `json:"id,omitempty"`
	CreatedTime      uint64 `json:"createdTime,omitempty"`
	MinReaderVersion int    `json:"minReaderVersion,omitempty"`
	MinWriterVersion int    `json:"minWriterVersion,omitempty"`
}

// NewAddFile builds an AddFile action.
func NewAddFile(path string, size, modificationTime uint64) Action {
	return Action{Type: ActionAdd, Path: path, Size: size, ModificationTime: modificationTime}
}

// NewRemoveFile builds a RemoveFile action. Reserved: not exercised by any
// operation required in spec.md §8, but part of the Action union per §3.
func NewRemoveFile(path string, deletionTimestamp uint64) Action {
	return Action{Type: ActionRemove, Path: path, DeletionTimestamp: deletionTimestamp}
}

// NewCommitInfo builds a CommitInfo action.
func NewCommitInfo(operation string, parameters map[string]string, timestamp uint64) Action {
	return Action{Type: ActionCommitInfo, Operation: operation, Parameters: parameters, Timestamp: timestamp}
}

// NewTableMetadata builds the supplemental table-bootstrap action.
func NewTableMetadata(id string, createdTime uint64, minReaderVersion, minWriterVersion int) Action {
	return Action{
		Type:             ActionMetadata,
		ID:               id,
		CreatedTime:      createdTime,
		MinReaderVersion: minReaderVersion,
		MinWriterVersion: minWriterVersion,
	}
}

// EncodeActions serializes a version's action sequence into the log-entry
// wire format: a JSON array of discriminated action objects.
func EncodeActions(actions []Action) ([]byte, error) {
	b, err := json.Marshal(actions)
	if err != nil {
		return nil, lakeerr.IO("marshal log entry", err)
	}
	return b, nil
}

// DecodeActions parses a version's payload back into its action sequence.
// Unknown fields are ignored; an unrecognized "type" discriminator fails
// parsing, per spec.md §6.2's "strict" unknown-type rule.
func DecodeActions(data []byte) ([]Action, error) {
	var actions []Action
	if err := json.Unmarshal(data, &actions); err != nil {
		return nil, lakeerr.IO("unmarshal log entry", err)
	}
	for _, a := range actions {
		switch a.Type {
		case ActionAdd, ActionRemove, ActionCommitInfo, ActionMetadata:
		default:
			return nil, lakeerr.InvalidArgument(fmt.Sprintf("unknown action type %q", a.Type))
		}
	}
	return actions, nil
}
