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

package numexpr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvalHonorsOperatorPrecedence(t *testing.T) {
	v, err := Eval("2 + 3 * 4")
	require.NoError(t, err)
	assert.Equal(t, 14.0, v)
}

func TestEvalHonorsParentheses(t *testing.T) {
	v, err := Eval("(2 + 3) * 4")
	require.NoError(t, err)
	assert.Equal(t, 20.0, v)
}

func TestEvalPowerIsRightAssociative(t *testing.T) {
	v, err := Eval("2 ** 3 ** 2")
	require.NoError(t, err)
	assert.Equal(t, 512.0, v) // 2 ** (3 ** 2), not (2 ** 3) ** 2
}

func TestEvalUnaryMinus(t *testing.T) {
	v, err := Eval("-3 + 5")
	require.NoError(t, err)
	assert.Equal(t, 2.0, v)
}

func TestEvalFunctions(t *testing.T) {
	cases := map[string]float64{
		"max(1, 5, 2)": 5,
		"min(1, 5, 2)": 1,
		"abs(-7)":      7,
		"sqrt(16)":     4,
	}
	for expr, want := range cases {
		v, err := Eval(expr)
		require.NoError(t, err, expr)
		assert.Equal(t, want, v, expr)
	}
}

func TestEvalDivisionByZeroErrors(t *testing.T) {
	_, err := Eval("1 / 0")
	require.Error(t, err)
}

func TestEvalRejectsTrailingGarbage(t *testing.T) {
	_, err := Eval("2 + 2 foo")
	require.Error(t, err)
}

func TestEvalRejectsUnbalancedParens(t *testing.T) {
	_, err := Eval("(2 + 3")
	require.Error(t, err)
}

func TestEvalNestedExpression(t *testing.T) {
	v, err := Eval("max(2 + 2, sqrt(9)) * 2")
	require.NoError(t, err)
	assert.Equal(t, 8.0, v)
}
