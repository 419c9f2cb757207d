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

// Package compiler orchestrates the plan/execute/join cycle: it drives
// the planner to produce a task graph, runs it through the task-fetching
// unit, asks the joiner whether to finish or replan, and repeats up to a
// configured limit.
package compiler

import (
	"context"
	"fmt"
	"strings"

	"github.com/kadirpekel/llmcompiler/internal/joiner"
	"github.com/kadirpekel/llmcompiler/internal/metrics"
	"github.com/kadirpekel/llmcompiler/internal/task"
)

// Planner is the subset of planner.Planner the loop depends on.
type Planner interface {
	Plan(ctx context.Context, query string) (*task.Graph, error)
	Replan(ctx context.Context, query, contexts string) (*task.Graph, error)
	StreamPlan(ctx context.Context, query, contexts string) (<-chan *task.Task, <-chan error)
}

// Executor is the subset of tfu.Unit the loop depends on.
type Executor interface {
	RunBatch(ctx context.Context, graph *task.Graph)
	RunStream(ctx context.Context, in <-chan *task.Task) *task.Graph
}

// Joiner is the subset of joiner.Joiner the loop depends on.
type Joiner interface {
	Join(ctx context.Context, question, scratchpad string, isFinal bool) (joiner.Result, error)
}

// Loop wires a Planner, Executor, and Joiner together and runs the
// compiler's iterate-until-settled cycle.
type Loop struct {
	Planner    Planner
	Executor   Executor
	Joiner     Joiner
	MaxReplans int
	Sink       metrics.Sink

	// Streaming selects the Planner's stream_plan/Executor's RunStream
	// path instead of Plan-then-RunBatch for every iteration, overlapping
	// dispatch of early tasks with the model still generating later plan
	// lines (spec.md §4.4's two planner modes, §8 property 8). The two
	// modes are equivalent in the graph they produce; Streaming only
	// changes how early dispatch can start.
	Streaming bool
}

// sinkUser is implemented by collaborators (planner.Planner,
// joiner.Joiner) that report into a metrics.Sink once told which one to
// use. New forwards its sink to any collaborator satisfying this, so a
// caller wires metrics once, through the compiler, rather than having to
// pass the same sink separately into every collaborator's constructor.
type sinkUser interface {
	UseSink(metrics.Sink)
}

// New constructs a Loop with the given collaborators. maxReplans must be
// at least 1; Sink may be nil (a no-op sink is substituted). Sink is
// forwarded to Planner and Joiner if they implement sinkUser, so the
// planner/joiner token counts and the task-fetching unit's per-task
// latency (wired by the caller directly into its Executor) all land in
// the same registry.
func New(p Planner, e Executor, j Joiner, maxReplans int, sink metrics.Sink) *Loop {
	if maxReplans < 1 {
		maxReplans = 1
	}
	if sink == nil {
		sink = metrics.NoopSink{}
	}
	if su, ok := p.(sinkUser); ok {
		su.UseSink(sink)
	}
	if su, ok := j.(sinkUser); ok {
		su.UseSink(sink)
	}
	return &Loop{Planner: p, Executor: e, Joiner: j, MaxReplans: maxReplans, Sink: sink}
}

// Run executes the compiler loop for query and returns the final answer,
// per spec.md §4.7. It stops as soon as a join decides Finish, or once
// MaxReplans iterations have been spent — whichever comes first; the
// final iteration's joiner call is never allowed to request a replan.
func (l *Loop) Run(ctx context.Context, query string) (string, error) {
	var contexts []string
	var answer string

	for i := 0; i < l.MaxReplans; i++ {
		isFirst := i == 0
		isFinal := i == l.MaxReplans-1

		var graph *task.Graph
		var err error
		if l.Streaming {
			graph, err = l.runStreamingIteration(ctx, query, contexts, isFirst)
		} else {
			if isFirst {
				graph, err = l.Planner.Plan(ctx, query)
			} else {
				graph, err = l.Planner.Replan(ctx, query, formatContexts(contexts))
			}
			if err == nil {
				l.Executor.RunBatch(ctx, graph)
			}
		}
		if err != nil {
			return "", fmt.Errorf("compiler: planner failure: %w", err)
		}

		scratchpad := graph.Scratchpad()
		result, err := l.Joiner.Join(ctx, query, scratchpad, isFinal)
		if err != nil {
			return "", fmt.Errorf("compiler: joiner failure: %w", err)
		}
		answer = result.Answer

		if !result.Replan {
			return answer, nil
		}

		contexts = append(contexts, generateReplanContext(graph, result.Thought))
	}

	return answer, nil
}

// runStreamingIteration drives one iteration through the Planner's
// streaming mode: the task channel is handed directly to the Executor's
// RunStream, so task dispatch overlaps with the planner still producing
// later lines, rather than waiting for a complete graph first.
func (l *Loop) runStreamingIteration(ctx context.Context, query string, contexts []string, isFirst bool) (*task.Graph, error) {
	contextsStr := ""
	if !isFirst {
		contextsStr = formatContexts(contexts)
	}
	taskCh, errCh := l.Planner.StreamPlan(ctx, query, contextsStr)
	graph := l.Executor.RunStream(ctx, taskCh)
	if err := <-errCh; err != nil {
		return nil, err
	}
	return graph, nil
}

// generateReplanContext renders the prior iteration's non-join tasks
// (with their idx, action, and observation) followed by the joiner's
// thought, matching _generate_context_for_replanner.
func generateReplanContext(graph *task.Graph, joinerThought string) string {
	var taskLines []string
	for _, t := range graph.NonJoinTasksInOrder() {
		taskLines = append(taskLines, strings.TrimRight(t.TraceLine(false), "\n"))
	}
	return strings.Join(taskLines, "\n") + "\n\nThought: " + joinerThought
}

// formatContexts renders the accumulated replan contexts as successive
// "Previous Plan" blocks followed by a "Current Plan" header, matching
// _format_contexts.
func formatContexts(contexts []string) string {
	var b strings.Builder
	for _, c := range contexts {
		b.WriteString("Previous Plan:\n\n")
		b.WriteString(c)
		b.WriteString("\n\n")
	}
	b.WriteString("Current Plan:\n\n")
	return b.String()
}
