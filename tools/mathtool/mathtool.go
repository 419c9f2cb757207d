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

// Package mathtool implements a math tool: it asks a small model to
// translate a natural-language math question into a single-line
// arithmetic expression, then evaluates it with internal/numexpr.
package mathtool

import (
	"context"
	"fmt"
	"strings"

	"github.com/kadirpekel/llmcompiler/internal/llm"
	"github.com/kadirpekel/llmcompiler/internal/numexpr"
)

const description = `math(problem: str, context: list[str] = []):
 - Solves the provided math problem.
 - 'problem' can be either a simple math problem (e.g. "1 + 3") or a word problem (e.g. "how many apples are left if 3 out of 10 apples are eaten").
 - You cannot calculate multiple expressions in one call. For instance, '1+3 and 2+4' should be split into two separate calls.
 - Minimize the number of "math" actions as much as possible. For instance, instead of calling two "math" actions for "what is the sum of 2 and 3" and "how many apples are left", you should call one "math" action for "what is the sum of 2 and 3 and how many apples are left".
 - You can optionally provide a list of strings as 'context' to help the agent solve the problem. If there are multiple contexts, you need to list them all in the list, e.g. ["context1", "context2"].
 - 'context' represents the relevant data available for the math problem, e.g. a variable value.`

const promptTemplate = `Translate a math problem into an expression that can be evaluated as a single line of arithmetic using + - * / ** ( ) and the functions max, min, abs, sqrt. Output only the expression, nothing else.

%s

Question: %s
Expression:`

// provider is the subset of llm.Provider the math tool needs.
type provider interface {
	Complete(ctx context.Context, req llm.Request) (llm.Response, error)
}

// Tool translates a math question into an expression via provider, then
// evaluates it.
type Tool struct {
	provider provider
}

// New constructs a math Tool backed by provider.
func New(p provider) *Tool {
	return &Tool{provider: p}
}

func (t *Tool) Name() string        { return "math" }
func (t *Tool) Description() string { return description }

// Invoke accepts a problem string, optionally followed by a context
// slice of supporting strings (substituted dependency observations).
func (t *Tool) Invoke(ctx context.Context, args []any) (string, error) {
	if len(args) == 0 {
		return "", fmt.Errorf("math: expected at least a problem argument")
	}
	problem, ok := args[0].(string)
	if !ok {
		return "", fmt.Errorf("math: problem argument must be a string")
	}

	var contextLines string
	if len(args) > 1 {
		if items, ok := args[1].([]any); ok {
			parts := make([]string, 0, len(items))
			for _, item := range items {
				parts = append(parts, fmt.Sprintf("%v", item))
			}
			if len(parts) > 0 {
				contextLines = "Context: " + strings.Join(parts, "; ") + "\n"
			}
		}
	}

	resp, err := t.provider.Complete(ctx, llm.Request{
		Prompt: fmt.Sprintf(promptTemplate, contextLines, problem),
	})
	if err != nil {
		return "", fmt.Errorf("math: model transport: %w", err)
	}

	expr := strings.TrimSpace(resp.Text)
	expr = strings.Trim(expr, "`")

	value, err := numexpr.Eval(expr)
	if err != nil {
		return "", fmt.Errorf("math: %w", err)
	}
	return fmt.Sprintf("%v", value), nil
}
