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

// Package parser implements the streaming plan parser (spec.md §4.3): it
// consumes model tokens incrementally and emits a Task the instant each
// plan line closes, so dispatch of an early task can overlap with the
// model still generating a later one.
package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/kadirpekel/llmcompiler/internal/tool"
)

var (
	thoughtPattern = regexp.MustCompile(`^Thought: (.*)$`)
	actionPattern  = regexp.MustCompile(`^(\d+)\. (\w+)\((.*)\)\s*(#\w*)?$`)
	idPattern      = regexp.MustCompile(`\$\{?(\d+)\}?`)
)

// Task mirrors task.Task's identity fields but without the mutable
// observation slot — the parser only ever produces brand-new tasks, so
// it returns the minimal data the planner needs to construct one. Kept
// here (rather than importing task.Task directly) because the parser has
// no business touching the completion machinery.
type Task struct {
	Idx          int
	Name         string
	RawArgs      string
	Args         []any
	Dependencies map[int]struct{}
	Thought      string
	IsJoin       bool
}

// Parser is a streaming, line-oriented recognizer for the plan grammar
// described in spec.md §6. Tokens are appended to an internal buffer;
// whenever a newline arrives the completed line is matched. Parser is
// not safe for concurrent use — each planner invocation gets its own.
type Parser struct {
	registry *tool.Registry
	buffer   string
	thought  string
}

// New returns a Parser that resolves tool names against registry. The
// registry is only consulted to validate names are known; resolution of
// the callable itself happens later, in the task-fetching unit.
func New(registry *tool.Registry) *Parser {
	return &Parser{registry: registry}
}

// IngestToken appends a token to the line buffer and, if the token
// contains a newline, attempts to match the line that just closed.
// Returns the emitted Task, if any, and whether the plan has reached its
// terminal join (in which case the caller should stop ingesting).
func (p *Parser) IngestToken(token string) (*Task, bool) {
	if !strings.Contains(token, "\n") {
		p.buffer += token
		return nil, false
	}

	prefix, suffix := splitOnce(token, "\n")
	p.buffer += strings.TrimSpace(prefix) + "\n"
	t := p.matchBuffer()
	p.buffer = suffix
	if t != nil && t.IsJoin {
		return t, true
	}
	return t, false
}

// Finalize flushes any remaining buffered content at end-of-stream
// through the same matcher, exactly once, per spec.md §4.3.
func (p *Parser) Finalize() *Task {
	p.buffer += "\n"
	t := p.matchBuffer()
	p.buffer = ""
	return t
}

// matchBuffer matches the accumulated line (minus its trailing newline)
// against the Thought and Action patterns, in that order, per spec.md
// §4.3 items 1-3.
func (p *Parser) matchBuffer() *Task {
	line := strings.TrimSuffix(p.buffer, "\n")

	if m := thoughtPattern.FindStringSubmatch(line); m != nil {
		p.thought = m[1]
		return nil
	}

	m := actionPattern.FindStringSubmatch(line)
	if m == nil {
		// Malformed or unrecognized line: dropped silently (spec.md §7).
		return nil
	}

	idx, err := strconv.Atoi(m[1])
	if err != nil {
		return nil
	}
	toolName := m[2]
	rawArgs := m[3]

	if toolName != "join" && p.registry != nil {
		if _, err := p.registry.Get(toolName); err != nil {
			// UnknownTool: dropped silently (spec.md §7).
			return nil
		}
	}

	task := &Task{
		Idx:          idx,
		Name:         toolName,
		RawArgs:      rawArgs,
		Args:         ParseArgs(rawArgs),
		Dependencies: dependenciesFor(idx, toolName, rawArgs),
		Thought:      p.thought,
		IsJoin:       toolName == "join",
	}
	p.thought = ""
	return task
}

// dependenciesFor computes the dependency set per spec.md §3: join
// depends on every idx strictly below it; any other task depends on
// every K referenced by a $K or ${K} sigil in its raw argument string.
func dependenciesFor(idx int, toolName, rawArgs string) map[int]struct{} {
	deps := make(map[int]struct{})
	if toolName == "join" {
		for i := 1; i < idx; i++ {
			deps[i] = struct{}{}
		}
		return deps
	}
	for _, m := range idPattern.FindAllStringSubmatch(rawArgs, -1) {
		if n, err := strconv.Atoi(m[1]); err == nil {
			deps[n] = struct{}{}
		}
	}
	return deps
}

// ParseArgs parses a raw argument string by attempting a safe literal
// evaluation (numbers, quoted strings, lists/tuples of the same); on
// failure it keeps the raw string as a single argument. A single
// non-sequence result is wrapped into a one-element slice. Whether a
// tool tolerates a raw, unparsed string argument is left to the tool.
func ParseArgs(raw string) []any {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return []any{}
	}
	if v, ok := literalEval(raw); ok {
		if seq, ok := v.([]any); ok {
			return seq
		}
		return []any{v}
	}
	return []any{raw}
}

// splitOnce splits s on the first occurrence of sep, returning ("", s)
// if sep is absent — but IngestToken only calls this when sep is known
// present.
func splitOnce(s, sep string) (string, string) {
	i := strings.Index(s, sep)
	if i < 0 {
		return s, ""
	}
	return s[:i], s[i+len(sep):]
}

// literalEval attempts to parse raw as a comma-separated top-level list
// of Python-style literals: quoted strings, numbers, bracketed lists, or
// parenthesized tuples. It returns (value, true) on success. This is a
// deliberately small subset of Python's ast.literal_eval — just enough
// to cover what LLM-generated plan arguments actually contain.
func literalEval(raw string) (any, bool) {
	items, ok := splitTopLevelArgs(raw)
	if !ok {
		return nil, false
	}
	values := make([]any, 0, len(items))
	for _, item := range items {
		v, ok := parseLiteral(strings.TrimSpace(item))
		if !ok {
			return nil, false
		}
		values = append(values, v)
	}
	return values, true
}

// splitTopLevelArgs splits a comma-separated argument list, respecting
// nested brackets/parens and quoted strings, so "[1, 2], \"a,b\"" splits
// into two items, not four.
func splitTopLevelArgs(raw string) ([]string, bool) {
	var items []string
	var depth int
	var inQuote rune
	start := 0
	for i, r := range raw {
		switch {
		case inQuote != 0:
			if r == inQuote && (i == 0 || raw[i-1] != '\\') {
				inQuote = 0
			}
		case r == '\'' || r == '"':
			inQuote = r
		case r == '[' || r == '(':
			depth++
		case r == ']' || r == ')':
			depth--
			if depth < 0 {
				return nil, false
			}
		case r == ',' && depth == 0:
			items = append(items, raw[start:i])
			start = i + 1
		}
	}
	if depth != 0 || inQuote != 0 {
		return nil, false
	}
	items = append(items, raw[start:])
	return items, true
}

// parseLiteral parses a single Python-style literal: a quoted string, an
// int, a float, or a bracketed list or parenthesized tuple of literals
// (both returned as []any).
func parseLiteral(s string) (any, bool) {
	if s == "" {
		return nil, false
	}
	if (strings.HasPrefix(s, "\"") && strings.HasSuffix(s, "\"")) ||
		(strings.HasPrefix(s, "'") && strings.HasSuffix(s, "'")) {
		if len(s) < 2 {
			return nil, false
		}
		return s[1 : len(s)-1], true
	}
	if (strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]")) ||
		(strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")")) {
		inner := s[1 : len(s)-1]
		if strings.TrimSpace(inner) == "" {
			return []any{}, true
		}
		items, ok := splitTopLevelArgs(inner)
		if !ok {
			return nil, false
		}
		values := make([]any, 0, len(items))
		for _, item := range items {
			v, ok := parseLiteral(strings.TrimSpace(item))
			if !ok {
				return nil, false
			}
			values = append(values, v)
		}
		return values, true
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f, true
	}
	return nil, false
}

// String returns a debug-friendly rendering of a Task, useful in tests
// and logs.
func (t *Task) String() string {
	return fmt.Sprintf("%d. %s(%s)", t.Idx, t.Name, t.RawArgs)
}
