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

// Package tfu implements the task-fetching unit: it receives a stream of
// tasks (either all at once or one at a time over a channel), substitutes
// dependency placeholders with completed observations, and dispatches
// each task to its tool the instant its dependencies are satisfied.
package tfu

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kadirpekel/llmcompiler/internal/metrics"
	"github.com/kadirpekel/llmcompiler/internal/task"
	"github.com/kadirpekel/llmcompiler/internal/tool"
)

// SchedulingInterval is the poll period used when no task is currently
// executable.
const SchedulingInterval = 10 * time.Millisecond

// Unit dispatches tasks against a tool registry, respecting declared
// dependencies, with maximum parallelism among ready tasks.
type Unit struct {
	registry *tool.Registry
	sink     metrics.Sink
}

// New constructs a Unit. sink may be nil, in which case a no-op sink is
// used.
func New(registry *tool.Registry, sink metrics.Sink) *Unit {
	if sink == nil {
		sink = metrics.NoopSink{}
	}
	return &Unit{registry: registry, sink: sink}
}

// RunBatch executes every non-join task in graph to completion,
// respecting dependencies, then returns. The join task (if present) is
// left incomplete — it is the joiner's responsibility, not the TFU's.
func (u *Unit) RunBatch(ctx context.Context, graph *task.Graph) {
	tasks := graph.NonJoinTasksInOrder()

	var mu sync.Mutex
	remaining := make(map[int]*task.Task, len(tasks))
	for _, t := range tasks {
		remaining[t.Idx] = t
	}

	var wg sync.WaitGroup
	for {
		mu.Lock()
		if len(remaining) == 0 {
			mu.Unlock()
			break
		}
		ready := u.executable(graph, remaining)
		for _, t := range ready {
			delete(remaining, t.Idx)
		}
		mu.Unlock()

		if len(ready) == 0 {
			time.Sleep(SchedulingInterval)
			continue
		}

		for _, t := range ready {
			wg.Add(1)
			go func(t *task.Task) {
				defer wg.Done()
				u.run(ctx, graph, t)
			}(t)
		}
	}
	wg.Wait()
}

// RunStream consumes tasks from in (a channel delivering one *task.Task
// per generated plan line, terminated by a nil sentinel per spec.md §9's
// design note or by closing the channel) and dispatches each as soon as it
// and its dependencies are ready, overlapping dispatch with the planner
// still streaming later tasks. It returns once the sentinel or the close
// has been received and every dispatched non-join task has completed.
func (u *Unit) RunStream(ctx context.Context, in <-chan *task.Task) *task.Graph {
	graph := task.NewGraph()
	remaining := make(map[int]*task.Task)
	var wg sync.WaitGroup
	var mu sync.Mutex
	noMoreTasks := false

	for {
		if !noMoreTasks {
			t, ok := <-in
			if !ok || t == nil {
				noMoreTasks = true
			} else {
				mu.Lock()
				graph.Add(t)
				if !t.IsJoin {
					remaining[t.Idx] = t
				}
				mu.Unlock()
			}
		}

		mu.Lock()
		ready := u.executable(graph, remaining)
		for _, t := range ready {
			delete(remaining, t.Idx)
		}
		done := noMoreTasks && len(remaining) == 0
		mu.Unlock()

		for _, t := range ready {
			wg.Add(1)
			go func(t *task.Task) {
				defer wg.Done()
				u.run(ctx, graph, t)
			}(t)
		}

		if done {
			break
		}
		if len(ready) == 0 {
			time.Sleep(SchedulingInterval)
		}
	}

	wg.Wait()
	return graph
}

// executable returns, in ascending idx order, the tasks in remaining
// whose every dependency has already completed.
func (u *Unit) executable(graph *task.Graph, remaining map[int]*task.Task) []*task.Task {
	idxs := make([]int, 0, len(remaining))
	for idx := range remaining {
		idxs = append(idxs, idx)
	}
	sort.Ints(idxs)

	var ready []*task.Task
	for _, idx := range idxs {
		t := remaining[idx]
		if u.dependenciesSatisfied(graph, t) {
			ready = append(ready, t)
		}
	}
	return ready
}

func (u *Unit) dependenciesSatisfied(graph *task.Graph, t *task.Task) bool {
	for dep := range t.Dependencies {
		depTask, ok := graph.Get(dep)
		if !ok {
			return false
		}
		if _, done := depTask.Observation(); !done {
			return false
		}
	}
	return true
}

// run substitutes dependency placeholders into t's arguments, invokes its
// tool, and records the observation. Tool errors are captured into the
// observation string as "Error: ..." rather than surfaced as a Go error,
// per spec.md §4.5/§7's ToolFailure handling.
func (u *Unit) run(ctx context.Context, graph *task.Graph, t *task.Task) {
	args := substituteArgs(t.Args, t.DependencySlice(), graph)

	tl, err := u.registry.Get(t.Name)
	if err != nil {
		t.Complete(fmt.Sprintf("Error: %v", err))
		return
	}

	start := time.Now()
	observation, err := tl.Invoke(ctx, args)
	u.sink.ObserveTaskLatency(t.Name, time.Since(start))
	if err != nil {
		t.Complete(fmt.Sprintf("Error: %v", err))
		return
	}
	t.Complete(observation)
}

// substituteArgs walks args (which may nest slices), replacing every
// $K/${K} occurrence in string arguments with the observation of
// dependency K, trying dependencies in descending order so that "$10"
// isn't partially consumed by a "$1" replacement first.
func substituteArgs(args []any, dependencies []int, graph *task.Graph) []any {
	sorted := append([]int(nil), dependencies...)
	sort.Sort(sort.Reverse(sort.IntSlice(sorted)))

	out := make([]any, len(args))
	for i, a := range args {
		out[i] = substituteValue(a, sorted, graph)
	}
	return out
}

func substituteValue(v any, sortedDeps []int, graph *task.Graph) any {
	switch vv := v.(type) {
	case []any:
		out := make([]any, len(vv))
		for i, item := range vv {
			out[i] = substituteValue(item, sortedDeps, graph)
		}
		return out
	case string:
		s := vv
		for _, dep := range sortedDeps {
			t, ok := graph.Get(dep)
			if !ok {
				continue
			}
			obs, done := t.Observation()
			if !done {
				continue
			}
			for _, mask := range []string{"${" + strconv.Itoa(dep) + "}", "$" + strconv.Itoa(dep)} {
				s = strings.ReplaceAll(s, mask, obs)
			}
		}
		return s
	default:
		return v
	}
}
