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

package notify

import "lakehouse/internal/logging"

// LoggingNotifier writes a structured log line per commit. It is the
// default notifier for a table that hasn't been configured with Redis or
// Kafka, and the one the demo binary wires up out of the box.
type LoggingNotifier struct{}

// NotifyCommit logs event at Info and never fails.
func (LoggingNotifier) NotifyCommit(event CommitEvent) error {
	logging.L().Info("table committed",
		"tablePath", event.TablePath,
		"version", event.Version,
		"operation", event.Operation,
		"commitId", event.CommitID,
	)
	return nil
}
