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

package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeProvider struct{ model string }

func (f fakeProvider) Complete(ctx context.Context, req Request) (Response, error) {
	return Response{}, nil
}
func (f fakeProvider) CompleteStream(ctx context.Context, req Request, onToken func(string)) (Response, error) {
	return Response{}, nil
}
func (f fakeProvider) ModelName() string { return f.model }

func TestRegistryGetMissingReturnsFalse(t *testing.T) {
	r := NewRegistry()
	_, ok := r.Get("missing")
	assert.False(t, ok)
}

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	r.Register("openai", fakeProvider{model: "gpt-4o"})

	p, ok := r.Get("openai")
	assert.True(t, ok)
	assert.Equal(t, "gpt-4o", p.ModelName())
}

func TestRegistryRegisterOverwritesExisting(t *testing.T) {
	r := NewRegistry()
	r.Register("openai", fakeProvider{model: "gpt-4o"})
	r.Register("openai", fakeProvider{model: "gpt-4o-mini"})

	p, _ := r.Get("openai")
	assert.Equal(t, "gpt-4o-mini", p.ModelName())
}
