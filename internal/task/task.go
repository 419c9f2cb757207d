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

// Package task defines the unit of work scheduled by the task-fetching unit.
//
// A Task is immutable except for its observation slot, which is filled
// exactly once when the task completes. Tasks never outlive the compiler
// iteration that created them.
package task

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// JoinName is the reserved tool name that terminates a plan.
const JoinName = "join"

// Task is one numbered action in a plan: a tool invocation or the
// terminal join. Identity fields are set once at construction; the
// observation is set exactly once, later, by the task-fetching unit.
type Task struct {
	Idx          int
	Name         string
	Args         []any
	Dependencies map[int]struct{}
	Thought      string
	IsJoin       bool

	// Render, if non-nil, formats Args for the trace instead of the
	// default "name(arg0, arg1, ...)" rendering.
	Render func(args []any) string

	mu          sync.Mutex
	done        bool
	observation string
}

// New constructs a Task. Dependencies is copied defensively.
func New(idx int, name string, args []any, dependencies map[int]struct{}, thought string) *Task {
	deps := make(map[int]struct{}, len(dependencies))
	for d := range dependencies {
		deps[d] = struct{}{}
	}
	return &Task{
		Idx:          idx,
		Name:         name,
		Args:         args,
		Dependencies: deps,
		Thought:      thought,
		IsJoin:       name == JoinName,
	}
}

// Complete sets the task's observation. Idempotent: only the first call
// takes effect; later calls are silently ignored rather than panicking,
// since a task may race a cancellation that already finalized it.
func (t *Task) Complete(observation string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return
	}
	t.observation = observation
	t.done = true
}

// Observation returns the completed observation and whether it has been
// set yet.
func (t *Task) Observation() (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.observation, t.done
}

// DependencySlice returns the task's dependencies sorted ascending.
func (t *Task) DependencySlice() []int {
	out := make([]int, 0, len(t.Dependencies))
	for d := range t.Dependencies {
		out = append(out, d)
	}
	sort.Ints(out)
	return out
}

// renderArgs formats args as a parenthesized, comma-joined list, each
// value printed bare (unquoted): "(arg0, arg1, ...)".
func renderArgs(args []any) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = fmt.Sprintf("%v", a)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// ActionLine renders "idx. name(args)" (or the custom Render rule) without
// the thought or observation.
func (t *Task) ActionLine(includeIdx bool) string {
	var body string
	if t.Render != nil {
		body = t.Render(t.Args)
	} else {
		body = fmt.Sprintf("%s%s", t.Name, renderArgs(t.Args))
	}
	if includeIdx {
		return fmt.Sprintf("%d. %s", t.Idx, body)
	}
	return body
}

// TraceLine renders the full thought+action+observation block used both
// for the joiner's scratchpad and for replan context, per spec.md §4.2(a).
func (t *Task) TraceLine(includeThought bool) string {
	var b strings.Builder
	if includeThought && t.Thought != "" {
		b.WriteString("Thought: ")
		b.WriteString(t.Thought)
		b.WriteString("\n")
	}
	b.WriteString(t.ActionLine(true))
	b.WriteString("\n")
	if obs, ok := t.Observation(); ok {
		b.WriteString("Observation: ")
		b.WriteString(obs)
		b.WriteString("\n")
	}
	return b.String()
}

// Graph is an idx-ordered set of tasks produced by a single planning
// iteration. Dependencies strictly decrease by construction, so the
// graph can never contain a cycle.
type Graph struct {
	tasks map[int]*Task
	order []int
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{tasks: make(map[int]*Task)}
}

// Add inserts a task, recording its idx in generation order.
func (g *Graph) Add(t *Task) {
	if _, exists := g.tasks[t.Idx]; !exists {
		g.order = append(g.order, t.Idx)
	}
	g.tasks[t.Idx] = t
}

// Get returns the task with the given idx.
func (g *Graph) Get(idx int) (*Task, bool) {
	t, ok := g.tasks[idx]
	return t, ok
}

// Len returns the number of tasks in the graph.
func (g *Graph) Len() int {
	return len(g.tasks)
}

// Idxs returns task idxs in ascending order (idx order, not generation
// order — §5 requires the joiner see the trace in ascending idx order).
func (g *Graph) Idxs() []int {
	out := make([]int, 0, len(g.tasks))
	for idx := range g.tasks {
		out = append(out, idx)
	}
	sort.Ints(out)
	return out
}

// NonJoinTasksInOrder returns every non-join task in ascending idx order.
func (g *Graph) NonJoinTasksInOrder() []*Task {
	idxs := g.Idxs()
	out := make([]*Task, 0, len(idxs))
	for _, idx := range idxs {
		t := g.tasks[idx]
		if !t.IsJoin {
			out = append(out, t)
		}
	}
	return out
}

// Scratchpad renders every non-join task's full trace line, in ascending
// idx order, concatenated — this is what the joiner sees (spec.md §4.6).
func (g *Graph) Scratchpad() string {
	var b strings.Builder
	for _, t := range g.NonJoinTasksInOrder() {
		b.WriteString(t.TraceLine(true))
	}
	return strings.TrimRight(b.String(), "\n")
}
