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

// Package llm abstracts the chat-completion backend used by the planner
// and joiner behind a single Provider interface, so neither component
// depends on a concrete vendor wire format.
package llm

import "context"

// Request is a single-turn completion request: a system prompt, the
// rendered user content, and generation controls.
type Request struct {
	System      string
	Prompt      string
	Stop        []string
	Temperature float64
	MaxTokens   int
}

// Response is a completed (or stream-terminal) model reply.
type Response struct {
	Text         string
	InputTokens  int
	OutputTokens int
}

// Provider is the transport to a chat-completion endpoint. Planner and
// Joiner depend on this interface only, never a concrete provider type.
type Provider interface {
	// Complete issues a single request and returns the full response.
	Complete(ctx context.Context, req Request) (Response, error)

	// CompleteStream issues a request and invokes onToken as each token
	// arrives, in addition to returning the final assembled Response.
	CompleteStream(ctx context.Context, req Request, onToken func(string)) (Response, error)

	// ModelName identifies the backing model, for logging and metrics.
	ModelName() string
}

// Registry is a name-keyed lookup of configured providers, mirroring the
// generic registry idiom used throughout this codebase.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry returns an empty provider Registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds a provider under name, overwriting any prior entry.
func (r *Registry) Register(name string, p Provider) {
	r.providers[name] = p
}

// Get looks up a provider by name.
func (r *Registry) Get(name string) (Provider, bool) {
	p, ok := r.providers[name]
	return p, ok
}
