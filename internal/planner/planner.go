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

// Package planner builds the system prompt advertising the tool registry
// and the join terminator, issues it to an llm.Provider, and streams the
// response through the parser to produce a task.Graph incrementally.
package planner

import (
	"context"
	"fmt"
	"strings"

	"github.com/kadirpekel/llmcompiler/internal/llm"
	"github.com/kadirpekel/llmcompiler/internal/metrics"
	"github.com/kadirpekel/llmcompiler/internal/parser"
	"github.com/kadirpekel/llmcompiler/internal/task"
	"github.com/kadirpekel/llmcompiler/internal/tool"
)

// EndOfPlan is the stop sequence the model is instructed to emit after
// the final join action, and that callers should pass as Request.Stop.
const EndOfPlan = "<END_OF_PLAN>"

// Planner turns a user query (plus, on replan, prior iteration context)
// into a task.Graph by prompting provider and parsing its streamed
// output.
type Planner struct {
	provider provider
	registry *tool.Registry
	sink     metrics.Sink
}

// provider is the subset of llm.Provider the planner needs; declared
// locally so tests can supply a fake without importing llm.
type provider interface {
	CompleteStream(ctx context.Context, req llm.Request, onToken func(string)) (llm.Response, error)
	ModelName() string
}

// New constructs a Planner that prompts provider, resolves tool names
// against registry, and reports token usage into sink. sink may be nil,
// in which case a no-op sink is used.
func New(p provider, registry *tool.Registry, sink metrics.Sink) *Planner {
	if sink == nil {
		sink = metrics.NoopSink{}
	}
	return &Planner{provider: p, registry: registry, sink: sink}
}

// Plan runs the planner once for the initial (non-replan) iteration.
func (pl *Planner) Plan(ctx context.Context, query string) (*task.Graph, error) {
	return pl.run(ctx, query, "")
}

// Replan runs the planner again, including the rendered context of every
// previous iteration (already-formatted "Previous Plan" blocks joined by
// the caller, per spec.md §4.7's context accumulation).
func (pl *Planner) Replan(ctx context.Context, query, contexts string) (*task.Graph, error) {
	return pl.run(ctx, query, contexts)
}

func (pl *Planner) run(ctx context.Context, query, contexts string) (*task.Graph, error) {
	isReplan := contexts != ""
	system := systemPrompt(pl.registry, isReplan)
	prompt := userPrompt(query, contexts)

	req := llm.Request{
		System: system,
		Prompt: prompt,
		Stop:   []string{EndOfPlan},
	}

	p := parser.New(pl.registry)
	graph := task.NewGraph()
	var parseErr error

	resp, err := pl.provider.CompleteStream(ctx, req, func(token string) {
		if parseErr != nil {
			return
		}
		pt, done := p.IngestToken(token)
		if pt != nil {
			graph.Add(toTask(pt, pl.registry))
		}
		if done {
			return
		}
	})
	if err != nil {
		return nil, fmt.Errorf("planner: model transport: %w", err)
	}
	pl.sink.ObservePlannerTokens(resp.InputTokens, resp.OutputTokens)
	if parseErr != nil {
		return nil, parseErr
	}

	if pt := p.Finalize(); pt != nil {
		graph.Add(toTask(pt, pl.registry))
	}

	if graph.Len() == 0 {
		return nil, fmt.Errorf("planner: model produced no tasks")
	}
	return graph, nil
}

// UseSink sets the metrics sink the planner reports token usage into.
// sink may be nil, in which case a no-op sink is used. This lets a
// compiler.Loop wire one sink across all of its collaborators at
// construction time instead of requiring every caller to pass the same
// sink to each constructor.
func (pl *Planner) UseSink(sink metrics.Sink) {
	if sink == nil {
		sink = metrics.NoopSink{}
	}
	pl.sink = sink
}

func toTask(pt *parser.Task, registry *tool.Registry) *task.Task {
	t := task.New(pt.Idx, pt.Name, pt.Args, pt.Dependencies, pt.Thought)
	if registry != nil {
		if tl, err := registry.Get(pt.Name); err == nil {
			if r, ok := tl.(tool.Renderer); ok {
				t.Render = r.Render
			}
		}
	}
	return t
}

// StreamPlan is the streaming counterpart to Plan/Replan (spec.md §4.4's
// stream_plan operation): instead of collecting every task into a graph
// before returning, it places each Task on the returned channel the
// instant the parser emits it, and closes the channel at end-of-plan, so a
// task-fetching unit reading the channel (tfu.Unit.RunStream) can start
// dispatching task #1 while the model is still generating task #4. The
// returned error channel carries at most one error and is closed after
// the task channel is closed.
func (pl *Planner) StreamPlan(ctx context.Context, query, contexts string) (<-chan *task.Task, <-chan error) {
	out := make(chan *task.Task)
	errc := make(chan error, 1)

	isReplan := contexts != ""
	req := llm.Request{
		System: systemPrompt(pl.registry, isReplan),
		Prompt: userPrompt(query, contexts),
		Stop:   []string{EndOfPlan},
	}

	go func() {
		defer close(errc)
		defer close(out)

		p := parser.New(pl.registry)
		count := 0

		resp, err := pl.provider.CompleteStream(ctx, req, func(token string) {
			pt, _ := p.IngestToken(token)
			if pt == nil {
				return
			}
			count++
			out <- toTask(pt, pl.registry)
		})
		if err != nil {
			errc <- fmt.Errorf("planner: model transport: %w", err)
			return
		}
		pl.sink.ObservePlannerTokens(resp.InputTokens, resp.OutputTokens)

		if pt := p.Finalize(); pt != nil {
			count++
			out <- toTask(pt, pl.registry)
		}
		if count == 0 {
			errc <- fmt.Errorf("planner: model produced no tasks")
		}
	}()

	return out, errc
}

// systemPrompt assembles the planner's system prompt: the numbered tool
// descriptions plus join, the plan-grammar guidelines, and (on replan)
// the additional replan guidance.
func systemPrompt(registry *tool.Registry, isReplan bool) string {
	names := registry.Names()
	var b strings.Builder

	fmt.Fprintf(&b, "Given a user query, create a plan to solve it with the utmost parallelizability. "+
		"Each plan should comprise an action from the following %d types:\n", len(names)+1)
	b.WriteString(registry.DescribeAll())
	b.WriteString("\n")

	b.WriteString("Guidelines:\n" +
		" - Each action described above contains input/output types and description.\n" +
		"    - You must strictly adhere to the input and output types for each action.\n" +
		"    - The action descriptions contain the guidelines. You MUST strictly follow those guidelines when you use the actions.\n" +
		" - Each action in the plan should strictly be one of the above types.\n" +
		" - Each action MUST have a unique ID, which is strictly increasing.\n" +
		" - Inputs for actions can either be constants or outputs from preceding actions. " +
		"In the latter case, use the format $id to denote the ID of the previous action whose output will be the input.\n" +
		" - Always call join as the last action in the plan. Say '" + EndOfPlan + "' after you call join\n" +
		" - Ensure the plan maximizes parallelizability.\n" +
		" - Only use the provided action types. If a query cannot be addressed using these, invoke the join action for the next steps.\n" +
		" - Never explain the plan with comments (e.g. #).\n" +
		" - Never introduce new actions other than the ones provided.\n")

	if isReplan {
		b.WriteString(
			" - You are given \"Previous Plan\" which is the plan that the previous agent created along with the execution " +
				"results (given as Observation) of each action and a general thought (given as Thought) about the executed " +
				"results. You MUST use this information to create the next plan under \"Current Plan\".\n" +
				" - When starting the Current Plan, you should start with \"Thought\" that outlines the strategy for the next plan.\n" +
				" - In the Current Plan, you should NEVER repeat the actions that are already executed in the Previous Plan.\n")
	}

	return b.String()
}

// userPrompt renders the question, preceded by accumulated replan
// contexts when present.
func userPrompt(query, contexts string) string {
	if contexts == "" {
		return "Question: " + query
	}
	return contexts + "\n\nQuestion: " + query
}
