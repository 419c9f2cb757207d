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

package task

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompleteIsIdempotent(t *testing.T) {
	tk := New(1, "search", []any{"query"}, nil, "")

	tk.Complete("first")
	tk.Complete("second")

	obs, done := tk.Observation()
	require.True(t, done)
	assert.Equal(t, "first", obs)
}

func TestCompleteIsSafeForConcurrentCallers(t *testing.T) {
	tk := New(1, "search", []any{"query"}, nil, "")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tk.Complete("race")
		}(i)
	}
	wg.Wait()

	obs, done := tk.Observation()
	require.True(t, done)
	assert.Equal(t, "race", obs)
}

func TestDependencySliceIsSortedAscending(t *testing.T) {
	tk := New(3, "join", nil, map[int]struct{}{2: {}, 1: {}}, "")
	assert.Equal(t, []int{1, 2}, tk.DependencySlice())
}

func TestActionLineRendersSingleArgBare(t *testing.T) {
	tk := New(1, "search", []any{"capital of France"}, nil, "")
	assert.Equal(t, `1. search(capital of France)`, tk.ActionLine(true))
}

func TestActionLineRendersMultipleArgsAsTuple(t *testing.T) {
	tk := New(1, "math", []any{"2+2", int64(4)}, nil, "")
	assert.Equal(t, "1. math(2+2, 4)", tk.ActionLine(true))
}

func TestActionLineUsesCustomRenderer(t *testing.T) {
	tk := New(1, "search", []any{"x"}, nil, "")
	tk.Render = func(args []any) string { return "search(custom)" }
	assert.Equal(t, "1. search(custom)", tk.ActionLine(true))
}

func TestTraceLineIncludesThoughtAndObservation(t *testing.T) {
	tk := New(1, "search", []any{"q"}, nil, "looking it up")
	tk.Complete("an answer")

	got := tk.TraceLine(true)
	assert.Contains(t, got, "Thought: looking it up")
	assert.Contains(t, got, "1. search")
	assert.Contains(t, got, "Observation: an answer")
}

func TestGraphIdxsAreAscendingRegardlessOfInsertOrder(t *testing.T) {
	g := NewGraph()
	g.Add(New(3, "join", nil, nil, ""))
	g.Add(New(1, "search", nil, nil, ""))
	g.Add(New(2, "math", nil, nil, ""))

	assert.Equal(t, []int{1, 2, 3}, g.Idxs())
}

func TestGraphNonJoinTasksInOrderExcludesJoin(t *testing.T) {
	g := NewGraph()
	g.Add(New(1, "search", nil, nil, ""))
	g.Add(New(2, JoinName, nil, nil, ""))

	got := g.NonJoinTasksInOrder()
	require.Len(t, got, 1)
	assert.Equal(t, 1, got[0].Idx)
}

func TestScratchpadConcatenatesTraceLines(t *testing.T) {
	g := NewGraph()
	t1 := New(1, "search", []any{"q"}, nil, "")
	t1.Complete("obs1")
	g.Add(t1)
	g.Add(New(2, JoinName, nil, map[int]struct{}{1: {}}, ""))

	got := g.Scratchpad()
	assert.Contains(t, got, "1. search")
	assert.Contains(t, got, "Observation: obs1")
	assert.NotContains(t, got, "join")
}
