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

// Package joiner implements the join step: given the user's question and
// the scratchpad of thought/action/observation lines from the current
// iteration's tasks, it asks a model whether the answer can be finalized
// or the plan needs to be redone, and parses the resulting Thought/Action
// lines.
package joiner

import (
	"context"
	"fmt"
	"strings"

	"github.com/kadirpekel/llmcompiler/internal/llm"
	"github.com/kadirpekel/llmcompiler/internal/metrics"
)

// Result is the parsed outcome of a join call.
type Result struct {
	Thought string
	Answer  string
	Replan  bool
}

// provider is the subset of llm.Provider the joiner needs.
type provider interface {
	Complete(ctx context.Context, req llm.Request) (llm.Response, error)
	ModelName() string
}

// Joiner prompts provider to decide between Finish and Replan.
type Joiner struct {
	provider provider
	sink     metrics.Sink
}

// New constructs a Joiner backed by provider, reporting token usage into
// sink. sink may be nil, in which case a no-op sink is used.
func New(p provider, sink metrics.Sink) *Joiner {
	if sink == nil {
		sink = metrics.NoopSink{}
	}
	return &Joiner{provider: p, sink: sink}
}

const instructions = `Solve a question answering task. Respond in the format:

Thought: <reasoning about whether the gathered observations answer the question>
Action: Finish(<answer>)

or, if the plan's observations are insufficient or led to an error that needs correcting:

Thought: <reasoning about what went wrong or what is missing>
Action: Replan(<a short note on what the next plan should do differently>)
`

// Join asks the model to finalize or replan given question and the
// current iteration's scratchpad. When isFinal is true, the model is
// never allowed to request a replan — this is the last iteration.
func (j *Joiner) Join(ctx context.Context, question, scratchpad string, isFinal bool) (Result, error) {
	var b strings.Builder
	b.WriteString(instructions)
	if isFinal {
		b.WriteString("\nThis is the final iteration: you MUST respond with Finish, never Replan.\n")
	}

	prompt := fmt.Sprintf("Question: %s\n\n%s\n", question, scratchpad)

	resp, err := j.provider.Complete(ctx, llm.Request{System: b.String(), Prompt: prompt})
	if err != nil {
		return Result{}, fmt.Errorf("joiner: model transport: %w", err)
	}
	j.sink.ObserveJoinerTokens(resp.InputTokens, resp.OutputTokens)

	result := parse(resp.Text)
	if isFinal {
		result.Replan = false
	}
	return result, nil
}

// UseSink sets the metrics sink the joiner reports token usage into.
// sink may be nil, in which case a no-op sink is used. This lets a
// compiler.Loop wire one sink across all of its collaborators at
// construction time instead of requiring every caller to pass the same
// sink to each constructor.
func (j *Joiner) UseSink(sink metrics.Sink) {
	if sink == nil {
		sink = metrics.NoopSink{}
	}
	j.sink = sink
}

// parse extracts thought/answer/replan from a raw "Thought: ...\nAction:
// Finish(...)|Replan(...)" response, scanning line-by-line. Per spec.md
// §7's MalformedJoinerOutput handling, a response with no recognizable
// Action line defaults to Replan(""), not Finish("") — Join collapses
// this to Finish("") only on the final iteration.
func parse(raw string) Result {
	result := Result{Replan: true}
	for _, line := range strings.Split(raw, "\n") {
		switch {
		case strings.HasPrefix(line, "Action:"):
			open := strings.Index(line, "(")
			shut := strings.LastIndex(line, ")")
			if open >= 0 && shut > open {
				result.Answer = line[open+1 : shut]
			}
			result.Replan = strings.Contains(line, "Replan")
		case strings.HasPrefix(line, "Thought:"):
			result.Thought = strings.TrimSpace(strings.TrimPrefix(line, "Thought:"))
		}
	}
	return result
}
