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

package tfu

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/llmcompiler/internal/task"
	"github.com/kadirpekel/llmcompiler/internal/tool"
)

type echoTool struct{ name string }

func (e echoTool) Name() string        { return e.name }
func (e echoTool) Description() string { return e.name }
func (e echoTool) Invoke(ctx context.Context, args []any) (string, error) {
	return fmt.Sprintf("%v", args), nil
}

type failingTool struct{}

func (failingTool) Name() string        { return "fails" }
func (failingTool) Description() string { return "fails" }
func (failingTool) Invoke(ctx context.Context, args []any) (string, error) {
	return "", fmt.Errorf("boom")
}

type slowTool struct{ delay time.Duration }

func (s slowTool) Name() string        { return "slow" }
func (s slowTool) Description() string { return "slow" }
func (s slowTool) Invoke(ctx context.Context, args []any) (string, error) {
	time.Sleep(s.delay)
	return "done", nil
}

func newRegistry(t *testing.T, tools ...tool.Tool) *tool.Registry {
	t.Helper()
	r := tool.NewRegistry()
	for _, tl := range tools {
		require.NoError(t, r.Register(tl))
	}
	return r
}

func TestRunBatchRespectsDependencies(t *testing.T) {
	r := newRegistry(t, echoTool{"echo"})
	u := New(r, nil)

	g := task.NewGraph()
	g.Add(task.New(1, "echo", []any{"a"}, nil, ""))
	g.Add(task.New(2, "echo", []any{"before $1 after"}, map[int]struct{}{1: {}}, ""))

	u.RunBatch(context.Background(), g)

	t1, _ := g.Get(1)
	obs1, done1 := t1.Observation()
	require.True(t, done1)
	assert.Equal(t, "[a]", obs1)

	t2, _ := g.Get(2)
	obs2, done2 := t2.Observation()
	require.True(t, done2)
	assert.Equal(t, "[before [a] after]", obs2)
}

func TestRunBatchExecutesIndependentTasksConcurrently(t *testing.T) {
	r := newRegistry(t, slowTool{delay: 40 * time.Millisecond})
	u := New(r, nil)

	g := task.NewGraph()
	for i := 1; i <= 5; i++ {
		g.Add(task.New(i, "slow", nil, nil, ""))
	}

	start := time.Now()
	u.RunBatch(context.Background(), g)
	elapsed := time.Since(start)

	assert.Less(t, elapsed, 150*time.Millisecond, "independent tasks should run in parallel, not serially")
	for i := 1; i <= 5; i++ {
		tk, _ := g.Get(i)
		obs, done := tk.Observation()
		require.True(t, done)
		assert.Equal(t, "done", obs)
	}
}

func TestToolFailureIsCapturedAsObservation(t *testing.T) {
	r := newRegistry(t, failingTool{})
	u := New(r, nil)

	g := task.NewGraph()
	g.Add(task.New(1, "fails", nil, nil, ""))

	u.RunBatch(context.Background(), g)

	tk, _ := g.Get(1)
	obs, done := tk.Observation()
	require.True(t, done)
	assert.Contains(t, obs, "Error:")
	assert.Contains(t, obs, "boom")
}

func TestUnknownToolIsCapturedAsObservation(t *testing.T) {
	r := newRegistry(t)
	u := New(r, nil)

	g := task.NewGraph()
	g.Add(task.New(1, "missing", nil, nil, ""))

	u.RunBatch(context.Background(), g)

	tk, _ := g.Get(1)
	obs, done := tk.Observation()
	require.True(t, done)
	assert.Contains(t, obs, "Error:")
}

func TestRunStreamDispatchesAsTasksArriveAndStopsAtSentinel(t *testing.T) {
	r := newRegistry(t, echoTool{"echo"})
	u := New(r, nil)

	in := make(chan *task.Task, 4)
	in <- task.New(1, "echo", []any{"a"}, nil, "")
	in <- task.New(2, "echo", []any{"$1"}, map[int]struct{}{1: {}}, "")
	in <- nil

	graph := u.RunStream(context.Background(), in)

	t2, ok := graph.Get(2)
	require.True(t, ok)
	obs, done := t2.Observation()
	require.True(t, done)
	assert.Equal(t, "[[a]]", obs)
}

func TestBatchWithLongerDependencyMaskDoesNotCollideWithShorterOne(t *testing.T) {
	r := newRegistry(t, echoTool{"echo"})
	u := New(r, nil)

	g := task.NewGraph()
	g.Add(task.New(1, "echo", []any{"one"}, nil, ""))
	g.Add(task.New(11, "echo", []any{"eleven"}, nil, ""))
	g.Add(task.New(12, "echo", []any{"$11 and $1"}, map[int]struct{}{1: {}, 11: {}}, ""))

	u.RunBatch(context.Background(), g)

	tk, _ := g.Get(12)
	obs, _ := tk.Observation()
	assert.Equal(t, "[[eleven] and [one]]", obs)
}
