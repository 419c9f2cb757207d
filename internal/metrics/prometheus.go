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

package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusSink implements Sink on top of a dedicated prometheus
// registry, mirroring the counter/histogram-per-concern layout of the
// teacher's observability package, trimmed to this system's three
// concerns (planner tokens, joiner tokens, task latency).
type PrometheusSink struct {
	registry *prometheus.Registry

	plannerTokensIn   prometheus.Counter
	plannerTokensOut  prometheus.Counter
	joinerTokensIn    prometheus.Counter
	joinerTokensOut   prometheus.Counter
	taskDuration      *prometheus.HistogramVec
}

// NewPrometheusSink builds a PrometheusSink with its own registry, so
// multiple compiler instances in the same process don't collide on
// metric names.
func NewPrometheusSink() *PrometheusSink {
	reg := prometheus.NewRegistry()
	s := &PrometheusSink{
		registry: reg,
		plannerTokensIn: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "llmcompiler",
			Subsystem: "planner",
			Name:      "tokens_input_total",
			Help:      "Total planner input tokens consumed.",
		}),
		plannerTokensOut: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "llmcompiler",
			Subsystem: "planner",
			Name:      "tokens_output_total",
			Help:      "Total planner output tokens produced.",
		}),
		joinerTokensIn: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "llmcompiler",
			Subsystem: "joiner",
			Name:      "tokens_input_total",
			Help:      "Total joiner input tokens consumed.",
		}),
		joinerTokensOut: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "llmcompiler",
			Subsystem: "joiner",
			Name:      "tokens_output_total",
			Help:      "Total joiner output tokens produced.",
		}),
		taskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "llmcompiler",
			Subsystem: "tfu",
			Name:      "task_duration_seconds",
			Help:      "Task execution latency by tool name.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"tool"}),
	}

	reg.MustRegister(s.plannerTokensIn, s.plannerTokensOut, s.joinerTokensIn, s.joinerTokensOut, s.taskDuration)
	return s
}

func (s *PrometheusSink) ObservePlannerTokens(in, out int) {
	s.plannerTokensIn.Add(float64(in))
	s.plannerTokensOut.Add(float64(out))
}

func (s *PrometheusSink) ObserveJoinerTokens(in, out int) {
	s.joinerTokensIn.Add(float64(in))
	s.joinerTokensOut.Add(float64(out))
}

func (s *PrometheusSink) ObserveTaskLatency(toolName string, d time.Duration) {
	s.taskDuration.WithLabelValues(toolName).Observe(d.Seconds())
}

// Handler returns the HTTP handler that exposes this sink's registry in
// Prometheus text format, for wiring into a CLI's metrics endpoint.
func (s *PrometheusSink) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}
