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

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validYAML = `
planner:
  provider: openai
  model: gpt-4o
joiner:
  provider: openai
  model: gpt-4o
compiler:
  max_replans: 2
tools:
  - name: search
    type: search
providers:
  openai:
    api_key_env: TEST_LLMCOMPILER_OPENAI_KEY
    host: https://api.openai.com
`

func writeTemp(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadValidConfig(t *testing.T) {
	t.Setenv("TEST_LLMCOMPILER_OPENAI_KEY", "sk-test")
	path := writeTemp(t, validYAML)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.Planner.Provider)
	assert.Equal(t, 2, cfg.Compiler.MaxReplans)
	assert.Len(t, cfg.Tools, 1)
}

func TestLoadDefaultsMaxReplansWhenOmitted(t *testing.T) {
	t.Setenv("TEST_LLMCOMPILER_OPENAI_KEY", "sk-test")
	path := writeTemp(t, `
planner:
  provider: openai
  model: gpt-4o
joiner:
  provider: openai
  model: gpt-4o
providers:
  openai:
    api_key_env: TEST_LLMCOMPILER_OPENAI_KEY
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Compiler.MaxReplans)
}

func TestLoadFailsOnMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestValidateRejectsUnknownProvider(t *testing.T) {
	cfg := &Config{
		Planner:  RoleConfig{Provider: "ghost"},
		Joiner:   RoleConfig{Provider: "ghost"},
		Compiler: CompilerConfig{MaxReplans: 1},
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown provider")
}

func TestValidateRejectsMissingAPIKeyEnv(t *testing.T) {
	t.Setenv("LLMCOMPILER_MISSING_KEY_TEST", "")
	os.Unsetenv("LLMCOMPILER_MISSING_KEY_TEST")

	cfg := &Config{
		Planner:  RoleConfig{Provider: "openai"},
		Joiner:   RoleConfig{Provider: "openai"},
		Compiler: CompilerConfig{MaxReplans: 1},
		Providers: map[string]ProviderConfig{
			"openai": {APIKeyEnv: "LLMCOMPILER_MISSING_KEY_TEST"},
		},
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not set")
}

func TestValidateRejectsNonPositiveMaxReplans(t *testing.T) {
	cfg := &Config{Compiler: CompilerConfig{MaxReplans: 0}}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_replans")
}

func TestValidateRejectsToolMissingNameOrType(t *testing.T) {
	t.Setenv("TEST_LLMCOMPILER_OPENAI_KEY", "sk-test")
	cfg := &Config{
		Planner:  RoleConfig{Provider: "openai"},
		Joiner:   RoleConfig{Provider: "openai"},
		Compiler: CompilerConfig{MaxReplans: 1},
		Providers: map[string]ProviderConfig{
			"openai": {APIKeyEnv: "TEST_LLMCOMPILER_OPENAI_KEY"},
		},
		Tools: []ToolConfig{{Name: "", Type: "search"}},
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name and type")
}

func TestErrorUnwrap(t *testing.T) {
	inner := assert.AnError
	e := &Error{Op: "load", Message: "boom", Err: inner}
	assert.ErrorIs(t, e, inner)
}
