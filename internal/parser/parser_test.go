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

package parser

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/llmcompiler/internal/tool"
)

type stubTool struct{ name string }

func (s stubTool) Name() string        { return s.name }
func (s stubTool) Description() string { return s.name + "(x)" }
func (s stubTool) Invoke(ctx context.Context, args []any) (string, error) { return "", nil }

func newRegistry(t *testing.T, names ...string) *tool.Registry {
	t.Helper()
	r := tool.NewRegistry()
	for _, n := range names {
		require.NoError(t, r.Register(stubTool{n}))
	}
	return r
}

func ingestAll(p *Parser, lines ...string) []*Task {
	var tasks []*Task
	for _, line := range lines {
		t, done := p.IngestToken(line + "\n")
		if t != nil {
			tasks = append(tasks, t)
		}
		if done {
			break
		}
	}
	if t := p.Finalize(); t != nil {
		tasks = append(tasks, t)
	}
	return tasks
}

func TestParsesThoughtThenAction(t *testing.T) {
	r := newRegistry(t, "search")
	p := New(r)

	tasks := ingestAll(p,
		`Thought: I should look this up`,
		`1. search("capital of France")`,
	)

	require.Len(t, tasks, 1)
	assert.Equal(t, 1, tasks[0].Idx)
	assert.Equal(t, "search", tasks[0].Name)
	assert.Equal(t, "I should look this up", tasks[0].Thought)
	assert.Equal(t, []any{"capital of France"}, tasks[0].Args)
}

func TestJoinDependsOnEveryPriorIdx(t *testing.T) {
	r := newRegistry(t, "search")
	p := New(r)

	tasks := ingestAll(p,
		`1. search("a")`,
		`2. search("b")`,
		`3. join()`,
	)

	require.Len(t, tasks, 3)
	join := tasks[2]
	assert.True(t, join.IsJoin)
	assert.Equal(t, map[int]struct{}{1: {}, 2: {}}, join.Dependencies)
}

func TestDependencySigilsAreExtracted(t *testing.T) {
	r := newRegistry(t, "search", "math")
	p := New(r)

	tasks := ingestAll(p,
		`1. search("France")`,
		`2. math("population of ${1}")`,
	)

	require.Len(t, tasks, 2)
	assert.Equal(t, map[int]struct{}{1: {}}, tasks[1].Dependencies)
}

func TestUnknownToolLineIsDropped(t *testing.T) {
	r := newRegistry(t, "search")
	p := New(r)

	tasks := ingestAll(p,
		`1. nonexistent("x")`,
		`2. search("y")`,
	)

	require.Len(t, tasks, 1)
	assert.Equal(t, "search", tasks[0].Name)
}

func TestMalformedLineIsDropped(t *testing.T) {
	r := newRegistry(t, "search")
	p := New(r)

	tasks := ingestAll(p,
		`this is not a valid plan line`,
		`1. search("y")`,
	)

	require.Len(t, tasks, 1)
}

func TestIngestTokenStreamsAcrossMultipleTokenBoundaries(t *testing.T) {
	r := newRegistry(t, "search")
	p := New(r)

	var got *Task
	for _, tok := range []string{"1. se", "arch(\"q", "uery\")", "\n"} {
		if tsk, _ := p.IngestToken(tok); tsk != nil {
			got = tsk
		}
	}
	require.NotNil(t, got)
	assert.Equal(t, "search", got.Name)
	assert.Equal(t, []any{"query"}, got.Args)
}

func TestParseArgsFallsBackToRawStringOnUnparsableLiteral(t *testing.T) {
	got := ParseArgs("not, valid, python[")
	assert.Equal(t, []any{"not, valid, python["}, got)
}

func TestParseArgsParsesListLiteral(t *testing.T) {
	got := ParseArgs(`["a", "b", 3]`)
	require.Len(t, got, 1)
	assert.Equal(t, []any{"a", "b", int64(3)}, got[0])
}

func TestParseArgsParsesMultipleScalarArgs(t *testing.T) {
	got := ParseArgs(`"x", 4`)
	assert.Equal(t, []any{"x", int64(4)}, got)
}
