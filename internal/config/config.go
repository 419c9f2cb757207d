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

// Package config loads the YAML document describing providers, tools,
// and compiler limits, via koanf's file provider and YAML parser.
package config

import (
	"fmt"
	"os"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// ProviderConfig describes how to reach one LLM backend.
type ProviderConfig struct {
	APIKeyEnv string `koanf:"api_key_env"`
	Host      string `koanf:"host"`
}

// RoleConfig describes which provider/model backs the planner or joiner.
type RoleConfig struct {
	Provider string   `koanf:"provider"`
	Model    string   `koanf:"model"`
	Stop     []string `koanf:"stop"`
}

// CompilerConfig holds the loop's iteration limit and, optionally, the
// address the Prometheus metrics endpoint is served on.
type CompilerConfig struct {
	MaxReplans  int    `koanf:"max_replans"`
	MetricsAddr string `koanf:"metrics_addr"`
}

// ToolConfig names one tool to register, by type.
type ToolConfig struct {
	Name string `koanf:"name"`
	Type string `koanf:"type"`
}

// Config is the root document, matching the layout in SPEC_FULL.md §4.9.
type Config struct {
	Planner   RoleConfig                `koanf:"planner"`
	Joiner    RoleConfig                `koanf:"joiner"`
	Compiler  CompilerConfig            `koanf:"compiler"`
	Tools     []ToolConfig              `koanf:"tools"`
	Providers map[string]ProviderConfig `koanf:"providers"`
}

// Error reports a config that failed to load or validate.
type Error struct {
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("config: %s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("config: %s: %s", e.Op, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Load reads and parses the YAML document at path, then validates it.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, &Error{Op: "load", Message: "failed to read " + path, Err: err}
	}

	cfg := &Config{Compiler: CompilerConfig{MaxReplans: 3}}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, &Error{Op: "unmarshal", Message: "failed to decode config", Err: err}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that every role references a configured provider, that
// the provider's API key environment variable is set, and that the
// compiler's replan limit is positive.
func (c *Config) Validate() error {
	if c.Compiler.MaxReplans < 1 {
		return &Error{Op: "validate", Message: "compiler.max_replans must be at least 1"}
	}
	for _, role := range []struct {
		name string
		r    RoleConfig
	}{{"planner", c.Planner}, {"joiner", c.Joiner}} {
		if role.r.Provider == "" {
			return &Error{Op: "validate", Message: role.name + ".provider is required"}
		}
		p, ok := c.Providers[role.r.Provider]
		if !ok {
			return &Error{Op: "validate", Message: role.name + " references unknown provider " + role.r.Provider}
		}
		if p.APIKeyEnv != "" && os.Getenv(p.APIKeyEnv) == "" {
			return &Error{Op: "validate", Message: "environment variable " + p.APIKeyEnv + " is not set"}
		}
	}
	for _, t := range c.Tools {
		if t.Name == "" || t.Type == "" {
			return &Error{Op: "validate", Message: "tools entries require both name and type"}
		}
	}
	return nil
}
