// Copyright 2025 Kadir Pekel
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

// Package metrics defines the per-call observation interface the
// planner, joiner and task-fetching unit report into, scoped to exactly
// the counters spec.md's design notes call for: planner/joiner token
// usage and per-tool task latency.
package metrics

import "time"

// Sink receives per-call observations. Implementations must never block
// the caller on anything beyond the cost of incrementing a counter; a
// Sink is passed explicitly to the components that report into it (at
// construction, via compiler.New and tfu.New) rather than held as a
// package-global.
type Sink interface {
	ObservePlannerTokens(in, out int)
	ObserveJoinerTokens(in, out int)
	ObserveTaskLatency(toolName string, d time.Duration)
}

// NoopSink discards every observation. It is the zero value and the
// default used whenever a caller does not wire a registry.
type NoopSink struct{}

func (NoopSink) ObservePlannerTokens(in, out int)             {}
func (NoopSink) ObserveJoinerTokens(in, out int)               {}
func (NoopSink) ObserveTaskLatency(toolName string, d time.Duration) {}
